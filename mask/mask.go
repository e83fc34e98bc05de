package mask

import (
	"image"

	"github.com/pkg/errors"
)

// ErrDimensionMismatch is returned when masks or score maps passed together
// do not share the same width and height, or a pixel slice does not match
// the declared dimensions
var ErrDimensionMismatch = errors.New("dimension mismatch")

// Mask is a row-major binary grid.  Any non-zero value is foreground
type Mask struct {
	Width  int
	Height int
	Pix    []uint8
}

// New returns an empty mask of the given size
func New(width, height int) *Mask {
	return &Mask{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height),
	}
}

// FromBytes wraps a row-major pixel slice as a Mask.  The slice is copied
func FromBytes(width, height int, pix []uint8) (*Mask, error) {

	if width <= 0 || height <= 0 || len(pix) != width*height {
		return nil, errors.Wrapf(ErrDimensionMismatch,
			"pixel data length %d does not match %dx%d", len(pix), width, height)
	}

	m := New(width, height)
	copy(m.Pix, pix)

	return m, nil
}

// At reports whether the pixel at x,y is foreground.  Pixels outside the
// mask are background
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.Pix[y*m.Width+x] != 0
}

// Set marks the pixel at x,y as foreground or background
func (m *Mask) Set(x, y int, on bool) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	if on {
		m.Pix[y*m.Width+x] = 1
	} else {
		m.Pix[y*m.Width+x] = 0
	}
}

// FillRect marks all pixels within r as foreground
func (m *Mask) FillRect(r image.Rectangle) {
	r = r.Intersect(m.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m.Pix[y*m.Width+x] = 1
		}
	}
}

// Count returns the number of foreground pixels
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

// Bounds returns the image rectangle covered by the mask
func (m *Mask) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.Width, m.Height)
}

// Clone returns a deep copy of the mask
func (m *Mask) Clone() *Mask {
	c := New(m.Width, m.Height)
	copy(c.Pix, m.Pix)
	return c
}

// ScoreMap is a row-major probability map in the range 0 to 1
type ScoreMap struct {
	Width  int
	Height int
	Data   []float32
}

// NewScoreMap wraps a probability slice as a ScoreMap.  The slice is copied
func NewScoreMap(width, height int, data []float32) (*ScoreMap, error) {

	if width <= 0 || height <= 0 || len(data) != width*height {
		return nil, errors.Wrapf(ErrDimensionMismatch,
			"score data length %d does not match %dx%d", len(data), width, height)
	}

	s := &ScoreMap{
		Width:  width,
		Height: height,
		Data:   make([]float32, len(data)),
	}
	copy(s.Data, data)

	return s, nil
}

// At returns the score of the pixel at x,y or zero outside the map
func (s *ScoreMap) At(x, y int) float32 {
	if x < 0 || y < 0 || x >= s.Width || y >= s.Height {
		return 0
	}
	return s.Data[y*s.Width+x]
}

// Buffer holds the binary kernel masks of every scale level for a single
// image together with an optional score map.  Level 0 is the smallest and
// most confident kernel, the last level is the full instance
type Buffer struct {
	Width  int
	Height int
	Levels []*Mask
	Score  *ScoreMap
}

// NewBuffer validates that all masks and the score map share the same size
// and returns a Buffer holding them.  The score map may be nil
func NewBuffer(levels []*Mask, score *ScoreMap) (*Buffer, error) {

	if len(levels) == 0 {
		return nil, errors.Wrap(ErrDimensionMismatch, "no level masks provided")
	}

	if levels[0] == nil {
		return nil, errors.Wrap(ErrDimensionMismatch, "level 0 mask is nil")
	}

	w, h := levels[0].Width, levels[0].Height

	for i, m := range levels {
		if m == nil {
			return nil, errors.Wrapf(ErrDimensionMismatch, "level %d mask is nil", i)
		}
		if m.Width != w || m.Height != h || len(m.Pix) != w*h {
			return nil, errors.Wrapf(ErrDimensionMismatch,
				"level %d mask is %dx%d, expected %dx%d", i, m.Width, m.Height, w, h)
		}
	}

	if score != nil && (score.Width != w || score.Height != h || len(score.Data) != w*h) {
		return nil, errors.Wrapf(ErrDimensionMismatch,
			"score map is %dx%d, expected %dx%d", score.Width, score.Height, w, h)
	}

	return &Buffer{
		Width:  w,
		Height: h,
		Levels: levels,
		Score:  score,
	}, nil
}

// Validate re-checks the buffer dimensions, for buffers assembled by hand
// rather than through NewBuffer
func (b *Buffer) Validate() error {

	if b == nil {
		return errors.Wrap(ErrDimensionMismatch, "nil buffer")
	}

	nb, err := NewBuffer(b.Levels, b.Score)

	if err != nil {
		return err
	}

	if nb.Width != b.Width || nb.Height != b.Height {
		return errors.Wrapf(ErrDimensionMismatch, "buffer declares %dx%d but masks are %dx%d",
			b.Width, b.Height, nb.Width, nb.Height)
	}

	return nil
}
