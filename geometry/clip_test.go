package geometry

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hourglass returns two 10x10 squares joined by a 2 pixel wide bridge
func hourglass() Polygon {
	return NewPolygon(Ring{
		Pt(0, 0), Pt(10, 0), Pt(10, 4), Pt(12, 4), Pt(12, 0), Pt(22, 0),
		Pt(22, 10), Pt(12, 10), Pt(12, 6), Pt(10, 6), Pt(10, 10), Pt(0, 10),
	})
}

func TestOffsetIdentity(t *testing.T) {

	p := NewPolygon(Rect(0, 0, 10, 10).Outer, Rect(2, 2, 4, 4).Outer)

	got, err := Offset(p, 0, JoinRound)
	require.NoError(t, err)
	require.Len(t, got, 1)

	if diff := cmp.Diff(p, got[0]); diff != "" {
		t.Errorf("zero offset changed polygon (-want +got):\n%s", diff)
	}

	// result is a copy
	got[0].Outer[0] = Pt(-1, -1)
	assert.Equal(t, Pt(0, 0), p.Outer[0])
}

func TestOffsetOutward(t *testing.T) {

	square := Rect(0, 0, 10, 10)

	tests := []struct {
		name  string
		join  JoinType
		dist  float64
		area  float64
		delta float64
	}{
		{"miter", JoinMiter, 1, 144, epsilon},
		{"square", JoinSquare, 1, 144 - 2*(2-math.Sqrt2)*(2-math.Sqrt2), 0.05},
		{"round", JoinRound, 1, 140 + math.Pi, 0.05},
		{"round large", JoinRound, 5, 100 + 200 + 25*math.Pi, 0.5},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Offset(square, tc.dist, tc.join)
			require.NoError(t, err)
			require.Len(t, got, 1)

			assert.InDelta(t, tc.area, got[0].Area(), tc.delta)
			assert.Greater(t, got[0].Area(), square.Area())
			assert.Greater(t, got[0].Outer.SignedArea(), 0.0)
		})
	}
}

func TestOffsetInward(t *testing.T) {

	got, err := Offset(Rect(0, 0, 10, 10), -2, JoinMiter)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.InDelta(t, 36, got[0].Area(), epsilon)

	b := got[0].Bounds()
	assert.InDelta(t, 2, b.Min.X, epsilon)
	assert.InDelta(t, 8, b.Max.X, epsilon)
}

func TestOffsetCollapse(t *testing.T) {

	got, err := Offset(Rect(0, 0, 10, 10), -6, JoinRound)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestOffsetRoundTrip(t *testing.T) {

	tests := []struct {
		name  string
		poly  Polygon
		join  JoinType
		delta float64
	}{
		{"square miter", Rect(0, 0, 10, 10), JoinMiter, epsilon},
		{"square round", Rect(0, 0, 10, 10), JoinRound, 0.05},
		{"triangle round", NewPolygon(Ring{Pt(0, 0), Pt(20, 0), Pt(10, 15)}), JoinRound, 0.5},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := Offset(tc.poly, 2, tc.join)
			require.NoError(t, err)
			require.Len(t, out, 1)

			back, err := Offset(out[0], -2, tc.join)
			require.NoError(t, err)
			require.Len(t, back, 1)

			assert.InDelta(t, tc.poly.Area(), back[0].Area(), tc.delta)
		})
	}
}

func TestOffsetSplit(t *testing.T) {

	p := hourglass()
	require.InDelta(t, 204, p.Area(), epsilon)

	got, err := Offset(p, -1.5, JoinMiter)
	require.NoError(t, err)
	require.Len(t, got, 2)

	for _, piece := range got {
		assert.InDelta(t, 49, piece.Area(), 3)
	}

	// equal sized pieces are ordered left to right
	assert.Less(t, got[0].Bounds().Max.X, 11.0)
	assert.Greater(t, got[1].Bounds().Min.X, 11.0)

	assert.InDelta(t, 0, IntersectionArea(got[0], got[1]), epsilon)
}

func TestOffsetHoles(t *testing.T) {

	p := NewPolygon(Rect(0, 0, 10, 10).Outer, Rect(2, 2, 8, 8).Outer)

	got, err := Offset(p, 1, JoinMiter)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Len(t, got[0].Holes, 1)

	// outer grows to 12x12 and the hole shrinks to 4x4
	assert.InDelta(t, 128, got[0].Area(), epsilon)
	assert.Less(t, got[0].Holes[0].SignedArea(), 0.0)
}

func TestOffsetInvalidGeometry(t *testing.T) {

	tests := []struct {
		name string
		poly Polygon
	}{
		{"empty", Polygon{}},
		{"two points", Polygon{Outer: Ring{Pt(0, 0), Pt(1, 1)}}},
		{"bad hole", Polygon{Outer: Rect(0, 0, 10, 10).Outer, Holes: []Ring{{Pt(1, 1)}}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Offset(tc.poly, 1, JoinRound)
			require.ErrorIs(t, err, ErrInvalidGeometry)
		})
	}
}

func TestBooleanOperations(t *testing.T) {

	a := Rect(0, 0, 10, 10)
	b := Rect(5, 0, 15, 10)

	inter := Intersect([]Polygon{a}, []Polygon{b})
	require.Len(t, inter, 1)
	assert.InDelta(t, 50, inter[0].Area(), epsilon)
	assert.InDelta(t, 50, IntersectionArea(a, b), epsilon)

	union := Union(a, b)
	require.Len(t, union, 1)
	assert.InDelta(t, 150, union[0].Area(), epsilon)

	diff := Difference([]Polygon{a}, []Polygon{b})
	require.Len(t, diff, 1)
	assert.InDelta(t, 50, diff[0].Area(), epsilon)
	assert.InDelta(t, 5, diff[0].Bounds().Max.X, epsilon)

	// inputs are untouched
	assert.InDelta(t, 100, a.Area(), epsilon)
	assert.InDelta(t, 100, b.Area(), epsilon)
}

func TestBooleanDisjoint(t *testing.T) {

	small := Rect(20, 0, 25, 5)
	big := Rect(0, 0, 10, 10)

	assert.Empty(t, Intersect([]Polygon{big}, []Polygon{small}))
	assert.Equal(t, 0.0, IntersectionArea(big, small))

	// touching along an edge has no shared area
	assert.Equal(t, 0.0, IntersectionArea(big, Rect(10, 0, 20, 10)))

	union := Union(small, big)
	require.Len(t, union, 2)
	assert.InDelta(t, 100, union[0].Area(), epsilon)
	assert.InDelta(t, 25, union[1].Area(), epsilon)

	assert.Empty(t, Intersect([]Polygon{big}, nil))
	assert.Nil(t, Union())

	diff := Difference([]Polygon{big}, nil)
	require.Len(t, diff, 1)
	assert.InDelta(t, 100, diff[0].Area(), epsilon)
}

func TestDifferenceCreatesHole(t *testing.T) {

	got := Difference([]Polygon{Rect(0, 0, 10, 10)}, []Polygon{Rect(3, 3, 7, 7)})

	require.Len(t, got, 1)
	require.Len(t, got[0].Holes, 1)
	assert.InDelta(t, 84, got[0].Area(), epsilon)
}

func TestUnclipDistance(t *testing.T) {
	assert.InDelta(t, 3.75, UnclipDistance(100, 40, 1.5), epsilon)
	assert.InDelta(t, 7.5, UnclipDistance(100, 40, 3), epsilon)
	assert.Equal(t, 0.0, UnclipDistance(100, 0, 1.5))
}

func TestShrinkDistance(t *testing.T) {
	// 0.51 of the area over the perimeter
	assert.InDelta(t, 100*0.51/40.001, ShrinkDistance(100, 40, 0.7), epsilon)
	assert.InDelta(t, 0, ShrinkDistance(100, 40, 1), epsilon)
}

func TestShrink(t *testing.T) {

	tests := []struct {
		name      string
		poly      Polygon
		rate      float64
		maxShrink float64
		area      float64
	}{
		{
			// distance 1.275 rounds to 1
			name: "square", poly: Rect(0, 0, 10, 10), rate: 0.7, maxShrink: 20, area: 64,
		},
		{
			// distance 18.75 rounds to 19
			name: "uncapped", poly: Rect(0, 0, 100, 100), rate: 0.5, maxShrink: 20, area: 62 * 62,
		},
		{
			name: "capped", poly: Rect(0, 0, 100, 100), rate: 0.5, maxShrink: 5, area: 90 * 90,
		},
		{
			// distance rounds to 0 so the polygon is returned unchanged
			name: "tiny", poly: Rect(0, 0, 2, 2), rate: 0.1, maxShrink: 20, area: 4,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Shrink(tc.poly, tc.rate, tc.maxShrink)
			require.NoError(t, err)
			assert.InDelta(t, tc.area, got.Area(), 1e-3)
		})
	}
}

func TestShrinkInvalid(t *testing.T) {
	_, err := Shrink(Polygon{Outer: Ring{Pt(0, 0), Pt(1, 0)}}, 0.7, 20)
	require.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestJoinTypeString(t *testing.T) {
	assert.Equal(t, "round", JoinRound.String())
	assert.Equal(t, "miter", JoinMiter.String())
	assert.Equal(t, "square", JoinSquare.String())
}
