package render

import (
	"image"

	"gocv.io/x/gocv"
)

// Alignment of a detection label relative to the polygon bounds
type Alignment int

const (
	Left   Alignment = 1
	Center Alignment = 2
	Right  Alignment = 3
)

// Font defines the parameters for rendering detection labels using GoCV
type Font struct {
	Face      gocv.HersheyFont
	Scale     float64
	Color     Color
	Thickness int
	LineType  gocv.LineType
	// Padding to place around the label text
	LeftPad   int
	RightPad  int
	TopPad    int
	BottomPad int
	// Alignment of the label to the polygon bounds
	Alignment Alignment
}

// DefaultFont returns the label font used by the refine example
func DefaultFont() Font {
	return Font{
		Face:      gocv.FontHersheySimplex,
		Scale:     0.4,
		Color:     White,
		Thickness: 1,
		LineType:  gocv.LineAA,
		LeftPad:   3,
		RightPad:  3,
		TopPad:    3,
		BottomPad: 5,
		Alignment: Left,
	}
}

// place returns the filled background rectangle and text origin of a
// label sitting on top of the polygon, where bounds is the polygon bounding
// box and top its highest vertex
func (f Font) place(text string, bounds image.Rectangle,
	top image.Point) (image.Rectangle, image.Point) {

	size := gocv.GetTextSize(text, f.Face, f.Scale, f.Thickness)

	var left int

	switch f.Alignment {
	case Center:
		left = (bounds.Min.X+bounds.Max.X)/2 - size.X/2
	case Right:
		left = bounds.Max.X - size.X - f.RightPad
	default:
		left = bounds.Min.X + f.LeftPad
	}

	rect := image.Rect(left-f.LeftPad, top.Y-size.Y-f.TopPad-f.BottomPad,
		left+size.X+f.RightPad, top.Y)

	return rect, image.Pt(left, top.Y-f.BottomPad)
}
