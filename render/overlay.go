package render

import (
	"github.com/pkg/errors"
	"github.com/swdee/go-guidedrefine/mask"
	"gocv.io/x/gocv"
)

// MaskOverlay renders the foreground of a level mask as a transparent
// overlay of the given color on top of a BGR image
func MaskOverlay(img *gocv.Mat, m *mask.Mask, clr Color, alpha float32) error {

	width := img.Cols()
	height := img.Rows()

	if m.Width != width || m.Height != height {
		return errors.Wrapf(mask.ErrDimensionMismatch,
			"mask %dx%d does not match image %dx%d", m.Width, m.Height, width, height)
	}

	// manipulating pixels over cgo is slow so the bytes are blended directly
	// and copied back to the Mat
	imgData := img.ToBytes()

	for j := 0; j < height; j++ {
		for k := 0; k < width; k++ {

			if !m.At(k, j) {
				continue
			}

			pixelPos := j*width*3 + k*3

			b, g, r := imgData[pixelPos+0], imgData[pixelPos+1], imgData[pixelPos+2]

			imgData[pixelPos+0] = uint8(float32(b)*(1-alpha) + float32(clr.B)*alpha)
			imgData[pixelPos+1] = uint8(float32(g)*(1-alpha) + float32(clr.G)*alpha)
			imgData[pixelPos+2] = uint8(float32(r)*(1-alpha) + float32(clr.R)*alpha)
		}
	}

	tmpImg, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC3, imgData)

	if err != nil {
		return errors.Wrap(err, "error creating overlay Mat")
	}

	defer tmpImg.Close()
	tmpImg.CopyTo(img)

	return nil
}
