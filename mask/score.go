package mask

import (
	"image"
	"image/draw"
	"math"

	"github.com/swdee/go-guidedrefine/geometry"
	"golang.org/x/image/vector"
)

// PolygonMean returns the mean score of the pixels covered by the polygon.
// Pixels only partially covered by the polygon boundary are weighted by
// their coverage.  Holes are excluded as the rasterizer accumulates signed
// coverage and hole rings wind opposite to the outer ring.  Returns 0 when
// the polygon does not cover any pixel of the map
func (s *ScoreMap) PolygonMean(p geometry.Polygon) float64 {

	if s == nil || p.IsEmpty() {
		return 0
	}

	b := p.Bounds()

	// pixel centers are on integer coordinates so pixel x covers x-0.5 to
	// x+0.5 and the rasterizer pixel x covers x to x+1
	xmin := clampInt(int(math.Floor(b.Min.X+0.5)), 0, s.Width)
	ymin := clampInt(int(math.Floor(b.Min.Y+0.5)), 0, s.Height)
	xmax := clampInt(int(math.Ceil(b.Max.X+0.5)), 0, s.Width)
	ymax := clampInt(int(math.Ceil(b.Max.Y+0.5)), 0, s.Height)

	w, h := xmax-xmin, ymax-ymin

	if w <= 0 || h <= 0 {
		return 0
	}

	cover := coverage(p, xmin, ymin, w, h)

	var sum, weight float64

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a := float64(cover.Pix[y*cover.Stride+x]) / 255

			if a == 0 {
				continue
			}

			sum += a * float64(s.Data[(y+ymin)*s.Width+x+xmin])
			weight += a
		}
	}

	if weight == 0 {
		return 0
	}

	return sum / weight
}

// coverage rasterizes the polygon into an alpha mask of size w x h whose
// origin is the pixel at xmin,ymin
func coverage(p geometry.Polygon, xmin, ymin, w, h int) *image.Alpha {

	z := vector.NewRasterizer(w, h)
	z.DrawOp = draw.Src

	addRing := func(r geometry.Ring) {
		if len(r) < 3 {
			return
		}

		z.MoveTo(float32(r[0].X+0.5-float64(xmin)), float32(r[0].Y+0.5-float64(ymin)))

		for _, pt := range r[1:] {
			z.LineTo(float32(pt.X+0.5-float64(xmin)), float32(pt.Y+0.5-float64(ymin)))
		}

		z.ClosePath()
	}

	addRing(p.Outer)

	for _, hole := range p.Holes {
		addRing(hole)
	}

	dst := image.NewAlpha(image.Rect(0, 0, w, h))
	z.Draw(dst, dst.Bounds(), image.Opaque, image.Point{})

	return dst
}

// clampInt restricts a value between a minimum and maximum
func clampInt(x, min, max int) int {
	if x < min {
		return min
	} else if x > max {
		return max
	}
	return x
}
