package render

import (
	"fmt"
	"image"
	"math"

	"github.com/swdee/go-guidedrefine"
	"github.com/swdee/go-guidedrefine/geometry"
	"gocv.io/x/gocv"
)

// detectionLabel defines where the detection label should be rendered on
// the source image
type detectionLabel struct {
	rect    image.Rectangle
	id      int64
	text    string
	textPos image.Point
}

// ringPoints rounds the ring vertices to integer pixel coordinates
func ringPoints(r geometry.Ring) []image.Point {

	pts := make([]image.Point, len(r))

	for i, p := range r {
		pts[i] = image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
	}

	return pts
}

// topPoint finds the highest point (Y axis) of the given points
func topPoint(pts []image.Point) image.Point {
	top := pts[0]
	for _, pt := range pts[1:] {
		if pt.Y < top.Y {
			top = pt
		}
	}
	return top
}

// Polygon draws the outline of a polygon including its holes
func Polygon(img *gocv.Mat, p geometry.Polygon, clr Color, lineThickness int) {

	if len(p.Outer) < 3 {
		return
	}

	ptsVec := gocv.NewPointsVector()
	defer ptsVec.Close()

	rings := append([]geometry.Ring{p.Outer}, p.Holes...)

	for _, r := range rings {
		if len(r) < 3 {
			continue
		}

		pv := gocv.NewPointVectorFromPoints(ringPoints(r))
		ptsVec.Append(pv)
		pv.Close()
	}

	gocv.Polylines(img, ptsVec, true, clr, lineThickness)
}

// Detections renders the outline of every detection polygon with a label
// showing its ID and score
func Detections(img *gocv.Mat, dets []guidedrefine.Detection, font Font,
	lineThickness int) {

	labels := make([]detectionLabel, 0, len(dets))

	for _, det := range dets {

		if len(det.Polygon.Outer) < 3 {
			continue
		}

		Polygon(img, det.Polygon, regionColor(det.ID), lineThickness)

		pts := ringPoints(det.Polygon.Outer)
		top := topPoint(pts)
		box := det.Polygon.Bounds()
		bounds := image.Rect(int(box.Min.X), int(box.Min.Y), int(box.Max.X), int(box.Max.Y))

		text := fmt.Sprintf("#%d %.2f", det.ID, det.Score)
		rect, pos := font.place(text, bounds, top)

		labels = append(labels, detectionLabel{
			rect:    rect,
			textPos: pos,
			id:      det.ID,
			text:    text,
		})
	}

	// labels are drawn last so outlines never cross over them
	for _, l := range labels {
		gocv.Rectangle(img, l.rect, regionColor(l.id), -1)

		gocv.PutTextWithParams(img, l.text, l.textPos,
			font.Face, font.Scale, font.Color, font.Thickness,
			font.LineType, false)
	}
}
