package mask

import (
	"image"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// toMat copies a row-major uint8 slice into a new single channel Mat.  The
// caller must Close the returned Mat
func toMat(width, height int, pix []uint8) (gocv.Mat, error) {

	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0),
		height, width, gocv.MatTypeCV8UC1)

	dataPtr, err := mat.DataPtrUint8()

	if err != nil {
		mat.Close()
		return gocv.Mat{}, errors.Wrap(err, "error getting data pointer for mask Mat")
	}

	copy(dataPtr, pix)

	return mat, nil
}

// fromMat reads a single channel uint8 Mat back into a Mask, mapping any non
// zero value to foreground
func fromMat(mat gocv.Mat) (*Mask, error) {

	data, err := mat.DataPtrUint8()

	if err != nil {
		return nil, errors.Wrap(err, "error getting data pointer for result Mat")
	}

	m := New(mat.Cols(), mat.Rows())

	for i, v := range data {
		if v != 0 {
			m.Pix[i] = 1
		}
	}

	return m, nil
}

// float32ToUint8 scales probabilities in the range 0 to 1 to uint8 values
// written into dst
func float32ToUint8(dst []uint8, src []float32) {
	for i, v := range src {
		dst[i] = uint8(math32.Max(0, math32.Min(v, 1)) * 255)
	}
}

// Binarize thresholds a probability map into a binary mask.  A pixel is
// foreground when its 8-bit quantised score is above threshold*255, the same
// rule the PPOCR detection bitmap uses
func Binarize(scores []float32, width, height int, threshold float32) (*Mask, error) {

	if width <= 0 || height <= 0 || len(scores) != width*height {
		return nil, errors.Wrapf(ErrDimensionMismatch,
			"score data length %d does not match %dx%d", len(scores), width, height)
	}

	size := width * height
	cbuf := scratch.get(bufBinarize, size)
	defer scratch.put(bufBinarize, cbuf)

	float32ToUint8(cbuf, scores)

	cbufMap, err := toMat(width, height, cbuf)

	if err != nil {
		return nil, err
	}

	defer cbufMap.Close()

	bitMap := gocv.NewMat()
	defer bitMap.Close()

	gocv.Threshold(cbufMap, &bitMap, math32.Max(0, threshold)*255, 1, gocv.ThresholdBinary)

	return fromMat(bitMap)
}

// Dilate grows the foreground of the mask with a 2x2 rectangular structuring
// element and returns the result as a new mask
func Dilate(m *Mask) (*Mask, error) {

	mat, err := toMat(m.Width, m.Height, m.Pix)

	if err != nil {
		return nil, err
	}

	defer mat.Close()

	dilaEle := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(2, 2))
	defer dilaEle.Close()

	dst := gocv.NewMat()
	defer dst.Close()

	gocv.Dilate(mat, &dst, dilaEle)

	return fromMat(dst)
}
