package mask

import (
	"image"
	"image/color"
	"log/slog"
	"sort"

	"github.com/pkg/errors"
	"github.com/swdee/go-guidedrefine/geometry"
	"gocv.io/x/gocv"
)

// pixelEdge is the offset from a pixel center to its edge
const pixelEdge = 0.5

// ExtractOptions defines the parameters used when extracting components
// from a mask
type ExtractOptions struct {
	// MinArea is the minimum pixel edge area a component must have to be
	// returned, smaller components are discarded
	MinArea float64
	// MaxContours caps the number of contours read from the mask, outer
	// boundaries and holes both count.  A value of 0 reads every contour
	MaxContours int
	// Logger receives a warning when contours are dropped by MaxContours,
	// defaults to slog.Default()
	Logger *slog.Logger
}

// Component is a connected foreground region of a mask
type Component struct {
	// Polygon is the pixel edge boundary of the component with any holes
	Polygon geometry.Polygon
	// Anchor is the topmost-leftmost pixel of the component and defines the
	// order components are returned in
	Anchor image.Point
}

// Extract finds the 8-connected foreground components of the mask and
// returns their pixel edge boundaries with interior holes.  Components are ordered by
// their topmost-leftmost pixel, top to bottom then left to right.  Degenerate
// components with fewer than 3 distinct boundary points, zero area or an area
// below MinArea are discarded
func Extract(m *Mask, opts ExtractOptions) ([]Component, error) {

	if m == nil || m.Width <= 0 || m.Height <= 0 || len(m.Pix) != m.Width*m.Height {
		return nil, errors.Wrap(ErrDimensionMismatch, "invalid mask for contour extraction")
	}

	bitMap, err := toMat(m.Width, m.Height, m.Pix)

	if err != nil {
		return nil, err
	}

	defer bitMap.Close()

	hierarchy := gocv.NewMat()
	defer hierarchy.Close()

	// two level hierarchy of outer boundaries and their holes
	contours := gocv.FindContoursWithParams(bitMap, &hierarchy,
		gocv.RetrievalCComp, gocv.ChainApproxSimple)
	defer contours.Close()

	numContours := contours.Size()

	if opts.MaxContours > 0 && numContours > opts.MaxContours {
		log := opts.Logger
		if log == nil {
			log = slog.Default()
		}

		log.Warn("contours truncated", "found", numContours, "max", opts.MaxContours)
		numContours = opts.MaxContours
	}

	outers := make([]int, 0, numContours)
	holes := make(map[int][][]image.Point)

	for i := 0; i < numContours; i++ {
		parent := contourParent(hierarchy, i)

		if parent < 0 {
			outers = append(outers, i)
			continue
		}

		if pts := contours.At(i).ToPoints(); len(pts) > 0 {
			holes[parent] = append(holes[parent], pts)
		}
	}

	comps := make([]Component, 0, len(outers))

	for _, idx := range outers {
		comp, ok := buildComponent(m, contours.At(idx).ToPoints(), holes[idx], opts)

		if !ok {
			continue
		}

		comps = append(comps, comp)
	}

	sort.SliceStable(comps, func(i, j int) bool {
		if comps[i].Anchor.Y != comps[j].Anchor.Y {
			return comps[i].Anchor.Y < comps[j].Anchor.Y
		}
		return comps[i].Anchor.X < comps[j].Anchor.X
	})

	return comps, nil
}

// contourParent reads the parent index of contour i from the hierarchy Mat,
// where each entry is [next, previous, first child, parent]
func contourParent(hierarchy gocv.Mat, i int) int {

	if hierarchy.Empty() || i >= hierarchy.Cols() {
		return -1
	}

	h := hierarchy.GetVeciAt(0, i)

	if len(h) < 4 {
		return -1
	}

	return int(h[3])
}

// buildComponent converts a pixel center outer contour into the pixel edge
// polygon of the component and carves out the hole pixels enclosed by the
// hole contours
func buildComponent(m *Mask, pts []image.Point, holes [][]image.Point,
	opts ExtractOptions) (Component, bool) {

	outer := geometry.RingFromImagePoints(pts)

	if len(outer) < 3 || outer.Area() == 0 {
		return Component{}, false
	}

	tl := outer.TopLeft()
	anchor := image.Pt(int(tl.X), int(tl.Y))

	// contours run through pixel centers, move them out to the pixel edges
	// so the polygon area matches the pixel count
	edges, err := geometry.Offset(geometry.NewPolygon(outer), pixelEdge, geometry.JoinMiter)

	if err != nil || len(edges) == 0 {
		return Component{}, false
	}

	poly := edges[0]

	if len(holes) > 0 {
		poly = carveHoles(m, poly, holes)
	}

	if poly.IsEmpty() || poly.Area() < opts.MinArea {
		return Component{}, false
	}

	return Component{Polygon: poly, Anchor: anchor}, true
}

// carveHoles subtracts the pixel squares of the background pixels enclosed
// by the hole contours from poly.  Hole contours run through the centers of
// the surrounding foreground pixels, so filling them covers every hole pixel.
// When carving splits the polygon, which happens where foreground pixels only
// touch diagonally around a hole, poly is returned uncarved
func carveHoles(m *Mask, poly geometry.Polygon, holes [][]image.Point) geometry.Polygon {

	fill := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0),
		m.Height, m.Width, gocv.MatTypeCV8UC1)
	defer fill.Close()

	var bounds image.Rectangle

	// holes are filled one at a time so hole contours sharing boundary
	// pixels do not cancel each other out
	for _, h := range holes {
		ptsVector := gocv.NewPointsVectorFromPoints([][]image.Point{h})
		gocv.FillPoly(&fill, ptsVector, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		ptsVector.Close()

		for _, pt := range h {
			bounds = bounds.Union(image.Rect(pt.X, pt.Y, pt.X+1, pt.Y+1))
		}
	}

	bounds = bounds.Intersect(m.Bounds())
	filled := fill.ToBytes()

	hole := func(x, y int) bool {
		return filled[y*m.Width+x] != 0 && !m.At(x, y)
	}

	// one rectangle per horizontal run of hole pixels
	var runs []geometry.Polygon

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; {
			if !hole(x, y) {
				x++
				continue
			}

			start := x
			for x < bounds.Max.X && hole(x, y) {
				x++
			}

			runs = append(runs, geometry.Rect(
				float64(start)-pixelEdge, float64(y)-pixelEdge,
				float64(x)-pixelEdge, float64(y)+pixelEdge))
		}
	}

	if len(runs) == 0 {
		return poly
	}

	carved := geometry.Difference([]geometry.Polygon{poly}, runs)

	if len(carved) != 1 {
		return poly
	}

	return carved[0]
}

// Polygons returns the polygons of the given components
func Polygons(comps []Component) []geometry.Polygon {

	polys := make([]geometry.Polygon, len(comps))

	for i, c := range comps {
		polys[i] = c.Polygon
	}

	return polys
}
