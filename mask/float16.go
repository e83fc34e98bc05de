package mask

import (
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

var f16LookupTable [65536]float32

func init() {
	// precompute float16 lookup table for faster conversion to float32
	for i := range f16LookupTable {
		f16 := float16.Frombits(uint16(i))
		f16LookupTable[i] = f16.Float32()
	}
}

// ScoreMapFromFloat16 builds a ScoreMap from raw IEEE 754 half precision
// values, the native output type of NPU segmentation heads
func ScoreMapFromFloat16(width, height int, raw []uint16) (*ScoreMap, error) {

	if width <= 0 || height <= 0 || len(raw) != width*height {
		return nil, errors.Wrapf(ErrDimensionMismatch,
			"fp16 data length %d does not match %dx%d", len(raw), width, height)
	}

	s := &ScoreMap{
		Width:  width,
		Height: height,
		Data:   make([]float32, len(raw)),
	}

	for i, v := range raw {
		s.Data[i] = f16LookupTable[v]
	}

	return s, nil
}
