package geometry

import (
	"fmt"
	"image"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"
)

// ErrInvalidGeometry is returned when a ring or polygon is degenerate and can
// not take part in offset or clipping operations
var ErrInvalidGeometry = errors.New("invalid geometry")

// Point is a sub-pixel coordinate.  Pixel centers sit on integer values so
// the pixel at (x,y) covers the square [x-0.5,x+0.5] x [y-0.5,y+0.5]
type Point struct {
	X, Y float64
}

// Pt is shorthand for Point{X: x, Y: y}
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// vec converts the point to a gonum r2 vector
func (p Point) vec() r2.Vec {
	return r2.Vec{X: p.X, Y: p.Y}
}

// String formats the point for diagnostics
func (p Point) String() string {
	return fmt.Sprintf("(%.3f, %.3f)", p.X, p.Y)
}

// Ring is an ordered closed sequence of points.  The closing edge from the
// last point back to the first is implicit
type Ring []Point

// NewRing returns a copy of pts with consecutive duplicate points and a
// duplicated closing point removed
func NewRing(pts []Point) Ring {

	r := make(Ring, 0, len(pts))

	for _, pt := range pts {
		if len(r) > 0 && r[len(r)-1] == pt {
			continue
		}
		r = append(r, pt)
	}

	for len(r) > 1 && r[0] == r[len(r)-1] {
		r = r[:len(r)-1]
	}

	return r
}

// RingFromImagePoints converts integer pixel points, as returned by gocv
// contour functions, to a Ring
func RingFromImagePoints(pts []image.Point) Ring {

	conv := make([]Point, len(pts))

	for i, pt := range pts {
		conv[i] = Point{X: float64(pt.X), Y: float64(pt.Y)}
	}

	return NewRing(conv)
}

// SignedArea returns the shoelace area of the ring.  The sign gives the
// winding direction, outer rings are kept positive and holes negative
func (r Ring) SignedArea() float64 {

	n := len(r)

	if n < 3 {
		return 0
	}

	terms := make([]float64, n)

	for i := 0; i < n; i++ {
		terms[i] = r2.Cross(r[i].vec(), r[(i+1)%n].vec())
	}

	return floats.Sum(terms) / 2
}

// Area returns the absolute shoelace area of the ring
func (r Ring) Area() float64 {
	return math.Abs(r.SignedArea())
}

// Perimeter returns the length of the closed ring
func (r Ring) Perimeter() float64 {

	n := len(r)

	if n < 2 {
		return 0
	}

	lengths := make([]float64, n)

	for i := 0; i < n; i++ {
		lengths[i] = r2.Norm(r2.Sub(r[(i+1)%n].vec(), r[i].vec()))
	}

	return floats.Sum(lengths)
}

// Clone returns a deep copy of the ring
func (r Ring) Clone() Ring {
	if r == nil {
		return nil
	}
	c := make(Ring, len(r))
	copy(c, r)
	return c
}

// Reverse returns a copy of the ring with the winding direction reversed
func (r Ring) Reverse() Ring {
	c := make(Ring, len(r))
	for i, pt := range r {
		c[len(r)-1-i] = pt
	}
	return c
}

// Validate checks the ring has enough distinct vertices to enclose an area
func (r Ring) Validate() error {

	if len(r) < 3 {
		return errors.Wrapf(ErrInvalidGeometry, "ring has %d points, need at least 3", len(r))
	}

	for i := range r {
		if r[i] == r[(i+1)%len(r)] {
			return errors.Wrapf(ErrInvalidGeometry, "ring has duplicate consecutive point %s", r[i])
		}
	}

	return nil
}

// Contains reports whether pt lies strictly inside the ring using ray
// casting.  Points on an edge may report either way
func (r Ring) Contains(pt Point) bool {

	inside := false
	n := len(r)

	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := r[i], r[j]

		if (a.Y > pt.Y) != (b.Y > pt.Y) &&
			pt.X < (b.X-a.X)*(pt.Y-a.Y)/(b.Y-a.Y)+a.X {
			inside = !inside
		}
	}

	return inside
}

// TopLeft returns the vertex with the smallest Y, ties broken by smallest X
func (r Ring) TopLeft() Point {

	if len(r) == 0 {
		return Point{}
	}

	best := r[0]

	for _, pt := range r[1:] {
		if pt.Y < best.Y || (pt.Y == best.Y && pt.X < best.X) {
			best = pt
		}
	}

	return best
}

// Polygon is an outer ring with zero or more holes nested inside it
type Polygon struct {
	Outer Ring
	Holes []Ring
}

// NewPolygon builds a polygon and normalises the ring orientation so the
// outer ring has positive signed area and holes negative
func NewPolygon(outer Ring, holes ...Ring) Polygon {

	p := Polygon{Outer: outer.Clone()}

	if p.Outer.SignedArea() < 0 {
		p.Outer = p.Outer.Reverse()
	}

	for _, h := range holes {
		if h.SignedArea() > 0 {
			h = h.Reverse()
		} else {
			h = h.Clone()
		}
		p.Holes = append(p.Holes, h)
	}

	return p
}

// Rect returns an axis aligned rectangle polygon spanning min to max
func Rect(minX, minY, maxX, maxY float64) Polygon {
	return NewPolygon(Ring{
		{X: minX, Y: minY},
		{X: maxX, Y: minY},
		{X: maxX, Y: maxY},
		{X: minX, Y: maxY},
	})
}

// PixelRect returns the pixel edge polygon covering the pixels of the given
// image rectangle, eg: image.Rect(0,0,10,10) has an area of 100
func PixelRect(r image.Rectangle) Polygon {
	return Rect(float64(r.Min.X)-0.5, float64(r.Min.Y)-0.5,
		float64(r.Max.X)-0.5, float64(r.Max.Y)-0.5)
}

// Area returns the outer area minus the area of all holes
func (p Polygon) Area() float64 {

	area := p.Outer.Area()

	for _, h := range p.Holes {
		area -= h.Area()
	}

	if area < 0 {
		return 0
	}

	return area
}

// Perimeter returns the summed length of the outer ring and all holes
func (p Polygon) Perimeter() float64 {

	peri := p.Outer.Perimeter()

	for _, h := range p.Holes {
		peri += h.Perimeter()
	}

	return peri
}

// Clone returns a deep copy of the polygon
func (p Polygon) Clone() Polygon {

	c := Polygon{Outer: p.Outer.Clone()}

	if len(p.Holes) > 0 {
		c.Holes = make([]Ring, len(p.Holes))
		for i, h := range p.Holes {
			c.Holes[i] = h.Clone()
		}
	}

	return c
}

// Validate checks every ring of the polygon
func (p Polygon) Validate() error {

	if err := p.Outer.Validate(); err != nil {
		return errors.Wrap(err, "outer ring")
	}

	for i, h := range p.Holes {
		if err := h.Validate(); err != nil {
			return errors.Wrapf(err, "hole %d", i)
		}
	}

	return nil
}

// IsEmpty reports whether the polygon encloses no area
func (p Polygon) IsEmpty() bool {
	return len(p.Outer) < 3 || p.Area() <= 0
}

// Bounds returns the bounding box of the outer ring
func (p Polygon) Bounds() r2.Box {

	if len(p.Outer) == 0 {
		return r2.Box{}
	}

	box := r2.Box{Min: p.Outer[0].vec(), Max: p.Outer[0].vec()}

	for _, pt := range p.Outer[1:] {
		box.Min.X = math.Min(box.Min.X, pt.X)
		box.Min.Y = math.Min(box.Min.Y, pt.Y)
		box.Max.X = math.Max(box.Max.X, pt.X)
		box.Max.Y = math.Max(box.Max.Y, pt.Y)
	}

	return box
}

// TotalArea sums the area of all polygons
func TotalArea(polys []Polygon) float64 {

	areas := make([]float64, len(polys))

	for i, p := range polys {
		areas[i] = p.Area()
	}

	return floats.Sum(areas)
}
