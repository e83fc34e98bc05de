package guidedrefine

import (
	"image"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdee/go-guidedrefine/mask"
	"github.com/swdee/go-guidedrefine/region"
)

const epsilon = 1e-6

// testConfig returns a two level configuration with the given unclip ratio
func testConfig(ratio float64) Config {
	cfg := DefaultConfig()
	cfg.Levels = []Level{
		{Threshold: 0.5},
		{Threshold: 0.5, UnclipRatio: ratio},
	}
	cfg.MergeThreshold = 0.5
	cfg.SuppressThreshold = 0.3
	return cfg
}

// rectBuffer builds a Mask Buffer where each level has the given pixel
// rectangles set as foreground
func rectBuffer(t *testing.T, width, height int, levels ...[]image.Rectangle) *mask.Buffer {

	masks := make([]*mask.Mask, len(levels))

	for i, rects := range levels {
		masks[i] = mask.New(width, height)
		for _, r := range rects {
			masks[i].FillRect(r)
		}
	}

	buf, err := mask.NewBuffer(masks, nil)
	require.NoError(t, err)

	return buf
}

// mergeBuffer holds two 5x5 kernels inside a single text region, each kernel
// grows to 50 pixels and they overlap by 35
func mergeBuffer(t *testing.T) *mask.Buffer {
	return rectBuffer(t, 30, 20,
		[]image.Rectangle{image.Rect(2, 2, 7, 7), image.Rect(10, 2, 15, 7)},
		[]image.Rectangle{image.Rect(2, 2, 15, 7)},
	)
}

func TestRunSingleExpansion(t *testing.T) {

	pl, err := New(testConfig(3))
	require.NoError(t, err)

	buf := rectBuffer(t, 40, 40,
		[]image.Rectangle{image.Rect(10, 10, 20, 20)},
		[]image.Rectangle{image.Rect(5, 5, 25, 25)},
	)

	res, err := pl.Run(buf)
	require.NoError(t, err)
	require.Len(t, res.Detections, 1)

	det := res.Detections[0]
	assert.Equal(t, int64(1), det.ID)
	assert.Equal(t, 1, det.Level)
	assert.InDelta(t, 400, det.Area, epsilon)
	assert.InDelta(t, 400, det.Polygon.Area(), epsilon)
	assert.Equal(t, 1.0, det.Score)
	assert.Empty(t, res.Retired)
}

func TestRunMerge(t *testing.T) {

	pl, err := New(testConfig(4))
	require.NoError(t, err)

	res, err := pl.Run(mergeBuffer(t))
	require.NoError(t, err)
	require.Len(t, res.Detections, 1)

	assert.Equal(t, int64(1), res.Detections[0].ID)
	assert.InDelta(t, 65, res.Detections[0].Area, epsilon)

	require.Len(t, res.Retired, 1)
	assert.Equal(t, int64(2), res.Retired[0].ID)
	assert.Equal(t, int64(1), res.Retired[0].By)
	assert.Equal(t, region.RetiredMerged, res.Retired[0].Reason)
	assert.Equal(t, 1, res.Retired[0].Level)
	assert.InDelta(t, 0.7, res.Retired[0].Overlap, epsilon)
}

func TestRunSuppress(t *testing.T) {

	// with a merge threshold above the 0.7 overlap the smaller region is
	// suppressed instead
	cfg := testConfig(4)
	cfg.MergeThreshold = 0.8

	pl, err := New(cfg)
	require.NoError(t, err)

	res, err := pl.Run(mergeBuffer(t))
	require.NoError(t, err)
	require.Len(t, res.Detections, 1)

	assert.Equal(t, int64(1), res.Detections[0].ID)
	assert.InDelta(t, 50, res.Detections[0].Area, epsilon)

	require.Len(t, res.Retired, 1)
	assert.Equal(t, region.RetiredSuppressed, res.Retired[0].Reason)
}

func TestRunNoSeeds(t *testing.T) {

	pl, err := New(testConfig(1.5))
	require.NoError(t, err)

	// a single pixel kernel is degenerate
	buf := rectBuffer(t, 20, 20,
		[]image.Rectangle{image.Rect(5, 5, 6, 6)},
		[]image.Rectangle{image.Rect(2, 2, 10, 10)},
	)

	res, err := pl.Run(buf)
	require.NoError(t, err)
	assert.Empty(t, res.Detections)
	assert.Empty(t, res.Retired)
}

func TestRunMaskExit(t *testing.T) {

	pl, err := New(testConfig(1.5))
	require.NoError(t, err)

	// the kernel has no support in the next level so it keeps its seed
	// polygon
	buf := rectBuffer(t, 40, 40,
		[]image.Rectangle{image.Rect(5, 5, 10, 10)},
		[]image.Rectangle{image.Rect(25, 25, 35, 35)},
	)

	res, err := pl.Run(buf)
	require.NoError(t, err)
	require.Len(t, res.Detections, 1)

	assert.Equal(t, 0, res.Detections[0].Level)
	assert.InDelta(t, 25, res.Detections[0].Area, epsilon)
}

func TestRunFilters(t *testing.T) {

	cfg := testConfig(1.5)
	cfg.MinArea = 16

	pl, err := New(cfg)
	require.NoError(t, err)

	// the 2x2 kernel passes the seed area but not the detection area
	buf := rectBuffer(t, 40, 40,
		[]image.Rectangle{image.Rect(5, 5, 7, 7), image.Rect(20, 20, 26, 26)},
		nil,
	)

	res, err := pl.Run(buf)
	require.NoError(t, err)
	require.Len(t, res.Detections, 1)

	assert.Equal(t, int64(2), res.Detections[0].ID)
	assert.InDelta(t, 36, res.Detections[0].Area, epsilon)
}

func TestRunScores(t *testing.T) {

	const width, height = 40, 20

	cfg := testConfig(1.5)
	cfg.MinScore = 0.88

	pl, err := New(cfg)
	require.NoError(t, err)

	prob := make([]float32, width*height)
	score := make([]float32, width*height)

	for y := 2; y < 10; y++ {
		for x := 2; x < 10; x++ {
			prob[y*width+x] = 0.9
			score[y*width+x] = 0.95
		}
		for x := 20; x < 28; x++ {
			prob[y*width+x] = 0.9
			score[y*width+x] = 0.5
		}
	}

	buf, err := NewBuffer(cfg, width, height, [][]float32{prob, prob}, score)
	require.NoError(t, err)
	require.NotNil(t, buf.Score)

	res, err := pl.Run(buf)
	require.NoError(t, err)

	// the second region scores below the minimum
	require.Len(t, res.Detections, 1)
	assert.Equal(t, int64(1), res.Detections[0].ID)
	assert.InDelta(t, 0.95, res.Detections[0].Score, 1e-6)
	assert.InDelta(t, 64, res.Detections[0].Area, epsilon)
}

func TestRunIdempotent(t *testing.T) {

	pl, err := New(testConfig(4))
	require.NoError(t, err)

	buf := mergeBuffer(t)

	first, err := pl.Run(buf)
	require.NoError(t, err)

	second, err := pl.Run(buf)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second run differs (-first +second):\n%s", diff)
	}
}

func TestRunWorkers(t *testing.T) {

	buf := rectBuffer(t, 60, 30,
		[]image.Rectangle{
			image.Rect(2, 2, 7, 7), image.Rect(10, 2, 15, 7),
			image.Rect(30, 3, 36, 8), image.Rect(45, 15, 50, 25),
		},
		[]image.Rectangle{
			image.Rect(2, 2, 15, 7), image.Rect(28, 1, 40, 10), image.Rect(43, 12, 55, 28),
		},
	)

	serialCfg := testConfig(4)
	serialCfg.Workers = 1

	parallelCfg := testConfig(4)
	parallelCfg.Workers = 4

	serial, err := New(serialCfg)
	require.NoError(t, err)

	parallel, err := New(parallelCfg)
	require.NoError(t, err)

	want, err := serial.Run(buf)
	require.NoError(t, err)

	got, err := parallel.Run(buf)
	require.NoError(t, err)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("results depend on worker count (-serial +parallel):\n%s", diff)
	}
}

func TestRunNoOverlap(t *testing.T) {

	pl, err := New(testConfig(6))
	require.NoError(t, err)

	buf := rectBuffer(t, 60, 30,
		[]image.Rectangle{
			image.Rect(3, 3, 8, 8), image.Rect(14, 3, 19, 8), image.Rect(25, 3, 30, 8),
		},
		[]image.Rectangle{image.Rect(1, 1, 35, 12)},
	)

	res, err := pl.Run(buf)
	require.NoError(t, err)
	require.NotEmpty(t, res.Detections)

	for i := 0; i < len(res.Detections); i++ {
		for j := i + 1; j < len(res.Detections); j++ {
			a, b := res.Detections[i], res.Detections[j]
			inter, _ := region.Overlap(
				region.New(a.ID, a.Polygon, a.Score),
				region.New(b.ID, b.Polygon, b.Score),
			)
			assert.Less(t, inter, 1e-3, "detections %d and %d overlap", a.ID, b.ID)
		}
	}

	// detections are in seed order
	for i := 1; i < len(res.Detections); i++ {
		assert.Less(t, res.Detections[i-1].ID, res.Detections[i].ID)
	}
}

func TestRunDimensionMismatch(t *testing.T) {

	pl, err := New(testConfig(1.5))
	require.NoError(t, err)

	// three levels for a two level configuration
	buf := rectBuffer(t, 10, 10, nil, nil, nil)

	res, err := pl.Run(buf)
	require.ErrorIs(t, err, mask.ErrDimensionMismatch)
	assert.Nil(t, res)

	// hand assembled buffer with mismatched masks
	bad := &mask.Buffer{
		Width:  10,
		Height: 10,
		Levels: []*mask.Mask{mask.New(10, 10), mask.New(12, 10)},
	}

	_, err = pl.Run(bad)
	require.ErrorIs(t, err, mask.ErrDimensionMismatch)
}

func TestNewBuffer(t *testing.T) {

	cfg := testConfig(1.5)
	prob := make([]float32, 16)

	buf, err := NewBuffer(cfg, 4, 4, [][]float32{prob, prob}, nil)
	require.NoError(t, err)
	assert.Len(t, buf.Levels, 2)
	assert.Nil(t, buf.Score)

	_, err = NewBuffer(cfg, 4, 4, [][]float32{prob}, nil)
	require.ErrorIs(t, err, mask.ErrDimensionMismatch)

	_, err = NewBuffer(cfg, 4, 4, [][]float32{prob, prob[:10]}, nil)
	require.ErrorIs(t, err, mask.ErrDimensionMismatch)

	_, err = NewBuffer(cfg, 4, 4, [][]float32{prob, prob}, prob[:3])
	require.ErrorIs(t, err, mask.ErrDimensionMismatch)
}

func TestNewBufferDilation(t *testing.T) {

	cfg := testConfig(1.5)
	cfg.Dilation = true

	prob := make([]float32, 25)
	prob[2*5+2] = 1

	buf, err := NewBuffer(cfg, 5, 5, [][]float32{prob, prob}, nil)
	require.NoError(t, err)

	for _, lv := range buf.Levels {
		assert.Equal(t, 4, lv.Count())
	}
}

func TestNewBufferFloat16(t *testing.T) {

	cfg := testConfig(1.5)

	// 0.0, 0.25, 0.75 and 1.0 as half precision
	raw := []uint16{0x0000, 0x3400, 0x3A00, 0x3C00}

	buf, err := NewBufferFloat16(cfg, 2, 2, [][]uint16{raw, raw}, raw)
	require.NoError(t, err)

	assert.Equal(t, []uint8{0, 0, 1, 1}, buf.Levels[0].Pix)
	assert.Equal(t, []float32{0, 0.25, 0.75, 1}, buf.Score.Data)

	_, err = NewBufferFloat16(cfg, 2, 2, [][]uint16{raw, raw[:2]}, nil)
	require.ErrorIs(t, err, mask.ErrDimensionMismatch)

	_, err = NewBufferFloat16(cfg, 2, 2, [][]uint16{raw, raw}, raw[:1])
	require.ErrorIs(t, err, mask.ErrDimensionMismatch)
}
