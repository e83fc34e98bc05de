package region

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/swdee/go-guidedrefine/geometry"
)

// minOverlap is the intersection area below which two regions are treated
// as touching rather than overlapping, it absorbs clipper rounding along
// shared edges
const minOverlap = 1e-6

// RetireReason records why a region was removed from the region set
type RetireReason int

const (
	// RetiredMerged regions were merged into a higher priority region
	RetiredMerged RetireReason = iota
	// RetiredSuppressed regions lost their area to a higher priority region
	RetiredSuppressed
)

// String returns the name of the retire reason
func (r RetireReason) String() string {
	switch r {
	case RetiredMerged:
		return "merged-into"
	case RetiredSuppressed:
		return "suppressed-by"
	}
	return fmt.Sprintf("retired(%d)", int(r))
}

// Retirement is the diagnostic record of a region removed by the resolver
type Retirement struct {
	// ID is the identifier of the retired region
	ID int64
	// By is the identifier of the region that merged or suppressed it
	By int64
	// Reason is why the region was retired
	Reason RetireReason
	// Level is the scale level being resolved when the region was retired
	Level int
	// Overlap is the intersection area divided by the smaller region area
	Overlap float64
}

// String formats the retirement for logging
func (r Retirement) String() string {
	return fmt.Sprintf("region %d %s %d at level %d (overlap %.3f)",
		r.ID, r.Reason, r.By, r.Level, r.Overlap)
}

// ResolverParams defines the overlap ratios used by the Resolver, where the
// overlap ratio of two regions is their intersection area divided by the
// area of the smaller region
type ResolverParams struct {
	// MergeThreshold is the overlap ratio above which two regions are merged
	// into one.  A value of 1 or more disables merging
	MergeThreshold float64
	// SuppressThreshold is the overlap ratio from which the lower priority
	// region is suppressed entirely.  Below it the lower priority region is
	// clipped so it no longer overlaps
	SuppressThreshold float64
}

// Resolver settles overlaps between regions using polygon clipping so every
// part of the image is claimed by at most one region
type Resolver struct {
	Params ResolverParams
	log    *slog.Logger
}

// NewResolver returns an instance of the Resolver
func NewResolver(p ResolverParams, log *slog.Logger) *Resolver {

	if log == nil {
		log = slog.Default()
	}

	return &Resolver{
		Params: p,
		log:    log,
	}
}

// Resolve checks every pair of live regions for overlap and merges,
// suppresses or clips the lower priority region of each overlapping pair.
// Regions are mutated in place and passes are repeated until a pass makes
// no change.  When clipping cuts a region into several pieces the largest
// piece stays with the region and every other piece becomes a new Frozen
// region with an ID from ids and Parent set to the clipped region.  A nil
// ids continues after the highest ID of regions.  The surviving regions are
// returned in priority order together with the records of all regions
// retired
func (rv *Resolver) Resolve(regions []*Region, level int,
	ids *IDGenerator) ([]*Region, []Retirement) {

	if ids == nil {
		ids = NewIDGenerator()
		for _, r := range regions {
			ids.Reserve(r.ID)
		}
	}

	live := Live(regions)
	var retired []Retirement

	// every change retires a region or removes area from one so the passes
	// stop, the cap guards against clipper rounding
	for pass := 0; pass <= len(live); pass++ {
		changed := false

		ByPriority(live)

		var pieces []*Region

		for i := 0; i < len(live); i++ {
			for j := i + 1; j < len(live); j++ {
				a, b := live[i], live[j]

				if !a.Live() {
					break
				}

				if !b.Live() {
					continue
				}

				res, ok := rv.resolvePair(a, b, level, ids)

				if !ok {
					continue
				}

				changed = true

				if res.retired != nil {
					retired = append(retired, *res.retired)
				}

				pieces = append(pieces, res.pieces...)
			}
		}

		live = append(Live(live), pieces...)

		if !changed {
			break
		}
	}

	ByPriority(live)

	return live, retired
}

// Overlap returns the intersection area of regions a and b and the ratio
// of that area to the smaller region area
func Overlap(a, b *Region) (float64, float64) {

	inter := geometry.IntersectionArea(a.Polygon, b.Polygon)

	if inter < minOverlap {
		return 0, 0
	}

	smaller := math.Min(a.Area(), b.Area())

	if smaller <= 0 {
		return inter, 1
	}

	return inter, inter / smaller
}

// pairResult is the outcome of settling the overlap of two regions
type pairResult struct {
	// retired is set when one of the regions was removed
	retired *Retirement
	// pieces are the new regions split off the clipped region
	pieces []*Region
}

// resolvePair settles the overlap between two live regions.  It returns
// false when the regions do not overlap
func (rv *Resolver) resolvePair(a, b *Region, level int,
	ids *IDGenerator) (pairResult, bool) {

	inter, ratio := Overlap(a, b)

	if inter == 0 {
		return pairResult{}, false
	}

	win, lose := a, b

	if higherPriority(b, a) {
		win, lose = b, a
	}

	switch {
	case ratio > rv.Params.MergeThreshold:
		rv.merge(win, lose)
		return pairResult{retired: rv.retire(lose, win, RetiredMerged, level, ratio)}, true

	case ratio >= rv.Params.SuppressThreshold:
		return pairResult{retired: rv.retire(lose, win, RetiredSuppressed, level, ratio)}, true
	}

	// small overlap, cut the shared area out of the lower priority region
	rest := geometry.Difference([]geometry.Polygon{lose.Polygon}, []geometry.Polygon{win.Polygon})

	if geometry.TotalArea(rest) <= 0 {
		return pairResult{retired: rv.retire(lose, win, RetiredSuppressed, level, ratio)}, true
	}

	// the region keeps its largest piece, the first one on equal areas
	keep := 0
	for i, p := range rest {
		if p.Area() > rest[keep].Area() {
			keep = i
		}
	}

	var res pairResult

	for i, p := range rest {
		if i == keep || p.IsEmpty() {
			continue
		}

		piece := lose.split(ids.Next(), p)
		res.pieces = append(res.pieces, piece)

		rv.log.Debug("region split",
			"id", piece.ID, "parent", lose.ID, "by", win.ID,
			"level", level, "area", piece.Area())
	}

	lose.setPolygon(rest[keep])
	lose.Freeze(FrozenCollision)

	rv.log.Debug("region clipped",
		"id", lose.ID, "by", win.ID, "level", level,
		"overlap", ratio, "area_after", lose.Area())

	return res, true
}

// merge unions the loser into the winner.  The winner keeps the highest
// score and scale level of the two
func (rv *Resolver) merge(win, lose *Region) {

	union := geometry.Union(win.Polygon, lose.Polygon)

	if len(union) > 0 && union[0].Area() >= win.Area() {
		win.setPolygon(union[0])
	}

	win.Score = math.Max(win.Score, lose.Score)

	if lose.Level > win.Level {
		win.Level = lose.Level
	}
}

// retire removes the loser from the region set and records why
func (rv *Resolver) retire(lose, win *Region, reason RetireReason,
	level int, ratio float64) *Retirement {

	lose.retire()

	rec := &Retirement{
		ID:      lose.ID,
		By:      win.ID,
		Reason:  reason,
		Level:   level,
		Overlap: ratio,
	}

	rv.log.Debug("region retired", "record", rec.String())

	return rec
}
