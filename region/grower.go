package region

import (
	"log/slog"

	"github.com/swdee/go-guidedrefine/geometry"
	"golang.org/x/sync/errgroup"
)

// GrowerParams defines the parameters used by the Grower
type GrowerParams struct {
	// Join is the corner join used when offsetting region polygons
	Join geometry.JoinType
	// MaxDistance caps the offset distance of a single expansion step, a
	// value of 0 disables the cap
	MaxDistance float64
	// Workers is the number of regions expanded concurrently within one
	// level, values below 2 expand regions sequentially
	Workers int
}

// Grower expands regions level by level.  Every region is grown by an
// offset computed from its own area and perimeter and the result is cut
// back to the foreground of the level guidance mask
type Grower struct {
	Params GrowerParams
	log    *slog.Logger
}

// expansion is the outcome of growing a single region, computed without
// touching the region so regions can be expanded concurrently
type expansion struct {
	poly     geometry.Polygon
	distance float64
	reason   FreezeReason
	err      error
}

// NewGrower returns an instance of the Grower
func NewGrower(p GrowerParams, log *slog.Logger) *Grower {

	if log == nil {
		log = slog.Default()
	}

	return &Grower{
		Params: p,
		log:    log,
	}
}

// Step grows every Seeded or Expanding region to the given level.  ratio is
// the unclip ratio of the level and guidance the foreground polygons of the
// level mask.  A region whose offset fails or whose expansion falls entirely
// outside the guidance mask is frozen with its previous polygon, other
// regions are not affected
func (g *Grower) Step(regions []*Region, level int, ratio float64,
	guidance []geometry.Polygon) {

	results := make([]expansion, len(regions))

	var eg errgroup.Group

	if g.Params.Workers > 1 {
		eg.SetLimit(g.Params.Workers)
	} else {
		eg.SetLimit(1)
	}

	for i, r := range regions {
		if !r.Growing() {
			continue
		}

		i, r := i, r

		eg.Go(func() error {
			results[i] = g.expand(r, ratio, guidance)
			return nil
		})
	}

	// expansion failures are carried in results, Wait only joins
	eg.Wait()

	// apply in region order so state changes and logging are deterministic
	for i, r := range regions {
		if !r.Growing() {
			continue
		}

		res := results[i]

		if res.reason != NotFrozen {
			r.Freeze(res.reason)

			if res.err != nil {
				g.log.Warn("region frozen, offset failed",
					"id", r.ID, "level", level, "error", res.err)
			} else {
				g.log.Debug("region frozen",
					"id", r.ID, "level", level, "reason", res.reason.String())
			}
			continue
		}

		before := r.Area()
		r.grow(res.poly, level)

		g.log.Debug("region expanded",
			"id", r.ID, "level", level, "distance", res.distance,
			"area_before", before, "area_after", r.Area())
	}
}

// expand computes the polygon of the region at the next level
func (g *Grower) expand(r *Region, ratio float64,
	guidance []geometry.Polygon) expansion {

	dist := geometry.UnclipDistance(r.Area(), r.Polygon.Perimeter(), ratio)

	if g.Params.MaxDistance > 0 && dist > g.Params.MaxDistance {
		dist = g.Params.MaxDistance
	}

	candidates, err := geometry.Offset(r.Polygon, dist, g.Params.Join)

	if err != nil {
		return expansion{reason: FrozenInvalidGeometry, err: err}
	}

	if len(candidates) == 0 {
		return expansion{reason: FrozenInvalidGeometry}
	}

	clipped := geometry.Intersect(candidates, guidance)

	if geometry.TotalArea(clipped) <= 0 {
		return expansion{reason: FrozenMaskExit}
	}

	// the previous polygon is always kept so the area can not decrease even
	// when the kernel of the lower level pokes out of the guidance mask
	pieces := geometry.Union(append([]geometry.Polygon{r.Polygon}, clipped...)...)

	next, ok := pieceOverlapping(pieces, r.Polygon)

	if !ok || next.Area() < r.Area() {
		next = r.Polygon.Clone()
	}

	return expansion{poly: next, distance: dist}
}

// pieceOverlapping returns the polygon of pieces sharing the most area with
// ref.  Guidance components not touching the region are dropped this way
func pieceOverlapping(pieces []geometry.Polygon, ref geometry.Polygon) (geometry.Polygon, bool) {

	if len(pieces) == 1 {
		return pieces[0], true
	}

	best := -1
	bestArea := 0.0

	for i, p := range pieces {
		if a := geometry.IntersectionArea(p, ref); a > bestArea {
			best = i
			bestArea = a
		}
	}

	if best < 0 {
		return geometry.Polygon{}, false
	}

	return pieces[best], true
}
