package geometry

import (
	"math"
	"sort"

	clipper "github.com/ctessum/go.clipper"
	"github.com/pkg/errors"
)

// Precision is the scale factor applied to coordinates when converting to
// the clipper integer coordinate space.  A value of 1000 keeps a 1/1000 of a
// pixel resolution
const Precision = 1000.0

// JoinType defines how polygon corners are joined when offsetting
type JoinType int

const (
	// JoinRound rounds corners with an arc, as used by the PPOCR unclip
	JoinRound JoinType = iota
	// JoinMiter extends edges until they meet, keeping square corners square
	JoinMiter
	// JoinSquare squares off corners at the offset distance
	JoinSquare
)

// String returns the name of the join type
func (j JoinType) String() string {
	switch j {
	case JoinMiter:
		return "miter"
	case JoinSquare:
		return "square"
	default:
		return "round"
	}
}

// clipperJoin maps the JoinType to the clipper equivalent
func (j JoinType) clipperJoin() clipper.JoinType {
	switch j {
	case JoinMiter:
		return clipper.JtMiter
	case JoinSquare:
		return clipper.JtSquare
	default:
		return clipper.JtRound
	}
}

// toPath converts a ring to a clipper Path in scaled integer coordinates
func toPath(r Ring) clipper.Path {

	path := make(clipper.Path, 0, len(r))

	for _, pt := range r {
		path = append(path, &clipper.IntPoint{
			X: clipper.CInt(math.Round(pt.X * Precision)),
			Y: clipper.CInt(math.Round(pt.Y * Precision)),
		})
	}

	return path
}

// toPaths converts polygons to clipper Paths keeping outer rings positive
// and holes negative so non-zero filling treats holes as empty
func toPaths(polys []Polygon) clipper.Paths {

	var paths clipper.Paths

	for _, p := range polys {
		n := NewPolygon(p.Outer, p.Holes...)

		if len(n.Outer) < 3 {
			continue
		}

		paths = append(paths, toPath(n.Outer))

		for _, h := range n.Holes {
			if len(h) < 3 {
				continue
			}
			paths = append(paths, toPath(h))
		}
	}

	return paths
}

// fromPath converts a clipper Path back to a ring in pixel coordinates
func fromPath(path clipper.Path) Ring {

	pts := make([]Point, len(path))

	for i, pt := range path {
		pts[i] = Point{X: float64(pt.X) / Precision, Y: float64(pt.Y) / Precision}
	}

	return NewRing(pts)
}

// fromPaths groups clipper output into polygons.  Clipper returns outer
// rings with positive orientation and holes with negative orientation, each
// hole is assigned to the smallest outer ring that contains it
func fromPaths(paths clipper.Paths) []Polygon {

	var outers []Polygon
	var holes []Ring

	for _, path := range paths {
		r := fromPath(path)

		if len(r) < 3 {
			continue
		}

		area := r.SignedArea()

		switch {
		case area > 0:
			outers = append(outers, Polygon{Outer: r})
		case area < 0:
			holes = append(holes, r)
		}
	}

	for _, h := range holes {
		owner := -1
		ownerArea := math.Inf(1)

		for i, o := range outers {
			if !ringInside(h, o.Outer) {
				continue
			}
			if a := o.Outer.Area(); a < ownerArea {
				owner = i
				ownerArea = a
			}
		}

		if owner >= 0 {
			outers[owner].Holes = append(outers[owner].Holes, h)
		}
	}

	sortPolygons(outers)

	return outers
}

// ringInside reports whether inner lies inside outer.  The vertices of a
// clipper hole may touch its outer ring, so the first vertex not on the
// boundary decides
func ringInside(inner, outer Ring) bool {

	b := Polygon{Outer: outer}.Bounds()

	for _, pt := range inner {
		if pt.X < b.Min.X || pt.X > b.Max.X || pt.Y < b.Min.Y || pt.Y > b.Max.Y {
			return false
		}
	}

	for _, pt := range inner {
		if onRing(pt, outer) {
			continue
		}
		return outer.Contains(pt)
	}

	return false
}

// onRing reports whether pt sits on a vertex or edge of the ring
func onRing(pt Point, r Ring) bool {

	const eps = 0.5 / Precision

	for i := range r {
		a, b := r[i], r[(i+1)%len(r)]

		cross := (b.X-a.X)*(pt.Y-a.Y) - (b.Y-a.Y)*(pt.X-a.X)
		length := math.Hypot(b.X-a.X, b.Y-a.Y)

		if length == 0 {
			if pt == a {
				return true
			}
			continue
		}

		if math.Abs(cross)/length > eps {
			continue
		}

		if pt.X >= math.Min(a.X, b.X)-eps && pt.X <= math.Max(a.X, b.X)+eps &&
			pt.Y >= math.Min(a.Y, b.Y)-eps && pt.Y <= math.Max(a.Y, b.Y)+eps {
			return true
		}
	}

	return false
}

// sortPolygons orders polygons largest area first, ties broken by the
// topmost-leftmost vertex, so clipper output is returned deterministically
func sortPolygons(polys []Polygon) {
	sort.SliceStable(polys, func(i, j int) bool {
		ai, aj := polys[i].Area(), polys[j].Area()

		if ai != aj {
			return ai > aj
		}

		ti, tj := polys[i].Outer.TopLeft(), polys[j].Outer.TopLeft()

		if ti.Y != tj.Y {
			return ti.Y < tj.Y
		}

		return ti.X < tj.X
	})
}

// Offset displaces the polygon boundary outward (d > 0) or inward (d < 0) by
// d pixels along each edge normal.  Self intersections are resolved by the
// clipper offset algorithm and a shape that bifurcates while shrinking is
// returned as several polygons, largest first.  An offset of zero returns a
// copy of the polygon
func Offset(p Polygon, d float64, join JoinType) ([]Polygon, error) {

	if err := p.Validate(); err != nil {
		return nil, err
	}

	if d == 0 {
		return []Polygon{p.Clone()}, nil
	}

	co := clipper.NewClipperOffset()

	for _, path := range toPaths([]Polygon{p}) {
		co.AddPath(path, join.clipperJoin(), clipper.EtClosedPolygon)
	}

	solution := co.Execute(d * Precision)

	return fromPaths(solution), nil
}

// execute runs a boolean clipping operation between the subject and clip
// polygons using the non-zero fill rule
func execute(op clipper.ClipType, subject, clip []Polygon) []Polygon {

	subjPaths := toPaths(subject)

	if len(subjPaths) == 0 {
		return nil
	}

	clipPaths := toPaths(clip)

	c := clipper.NewClipper(0)

	for _, path := range subjPaths {
		c.AddPath(path, clipper.PtSubject, true)
	}

	for _, path := range clipPaths {
		c.AddPath(path, clipper.PtClip, true)
	}

	solution, ok := c.Execute1(op, clipper.PftNonZero, clipper.PftNonZero)

	if !ok {
		return nil
	}

	return fromPaths(solution)
}

// Intersect returns the area covered by both subject and clip polygons
func Intersect(subject, clip []Polygon) []Polygon {

	if len(clip) == 0 {
		return nil
	}

	return execute(clipper.CtIntersection, subject, clip)
}

// Union merges all the given polygons into non-overlapping polygons
func Union(polys ...Polygon) []Polygon {

	if len(polys) == 0 {
		return nil
	}

	return execute(clipper.CtUnion, polys, nil)
}

// Difference returns the area of the subject polygons not covered by clip
func Difference(subject, clip []Polygon) []Polygon {

	if len(clip) == 0 {
		return fromPaths(toPaths(subject))
	}

	return execute(clipper.CtDifference, subject, clip)
}

// IntersectionArea returns the area shared by polygons a and b
func IntersectionArea(a, b Polygon) float64 {

	if !boundsOverlap(a, b) {
		return 0
	}

	return TotalArea(Intersect([]Polygon{a}, []Polygon{b}))
}

// boundsOverlap is a fast rejection test on the bounding boxes of a and b
func boundsOverlap(a, b Polygon) bool {

	ba, bb := a.Bounds(), b.Bounds()

	return ba.Min.X < bb.Max.X && bb.Min.X < ba.Max.X &&
		ba.Min.Y < bb.Max.Y && bb.Min.Y < ba.Max.Y
}

// UnclipDistance returns the offset distance used to expand a polygon,
// calculated from its area and perimeter and the unclip ratio
func UnclipDistance(area, perimeter, ratio float64) float64 {

	if perimeter <= 0 {
		return 0
	}

	return area * ratio / perimeter
}

// ShrinkDistance returns the offset distance that uniformly erodes a
// polygon with the given area and perimeter to the shrink rate, where rate
// is the linear kernel scale (eg: 0.7)
func ShrinkDistance(area, perimeter, rate float64) float64 {
	return area * (1 - rate*rate) / (perimeter + 0.001)
}

// Shrink produces the kernel of a polygon for the given rate, rounding the
// shrink distance to whole pixels and capping it at maxShrink.  When the
// shrink empties the polygon or leaves a ring of 2 or fewer points the input
// polygon is returned unchanged
func Shrink(p Polygon, rate, maxShrink float64) (Polygon, error) {

	if err := p.Validate(); err != nil {
		return Polygon{}, err
	}

	dist := math.Floor(ShrinkDistance(p.Area(), p.Perimeter(), rate) + 0.5)

	if maxShrink > 0 && dist > maxShrink {
		dist = maxShrink
	}

	shrunk, err := Offset(p, -dist, JoinRound)

	if err != nil {
		return Polygon{}, errors.Wrap(err, "shrink offset")
	}

	if len(shrunk) == 0 || len(shrunk[0].Outer) <= 2 {
		return p.Clone(), nil
	}

	return shrunk[0], nil
}
