package region

import (
	"fmt"
	"sort"

	"github.com/swdee/go-guidedrefine/geometry"
)

// State is the lifecycle state of a Region
type State int

const (
	// Seeded regions were just created from a level 0 contour
	Seeded State = iota
	// Expanding regions are grown at each scale level
	Expanding
	// Frozen regions keep their polygon and take no further part in growth
	Frozen
	// Retired regions were merged into or suppressed by another region
	Retired
)

// String returns the name of the state
func (s State) String() string {
	switch s {
	case Seeded:
		return "seeded"
	case Expanding:
		return "expanding"
	case Frozen:
		return "frozen"
	case Retired:
		return "retired"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// FreezeReason records why a region stopped expanding
type FreezeReason int

const (
	// NotFrozen is the reason of regions still growing
	NotFrozen FreezeReason = iota
	// FrozenMaxLevel is set once the last scale level has been reached
	FrozenMaxLevel
	// FrozenMaskExit is set when the expanded polygon had no area inside the
	// guidance mask of the level
	FrozenMaskExit
	// FrozenInvalidGeometry is set when the offset of the polygon failed
	FrozenInvalidGeometry
	// FrozenCollision is set when the overlap resolver clipped the region
	// against a higher priority region
	FrozenCollision
)

// String returns the name of the freeze reason
func (f FreezeReason) String() string {
	switch f {
	case NotFrozen:
		return "none"
	case FrozenMaxLevel:
		return "max-level"
	case FrozenMaskExit:
		return "mask-exit"
	case FrozenInvalidGeometry:
		return "invalid-geometry"
	case FrozenCollision:
		return "collision"
	}
	return fmt.Sprintf("freeze(%d)", int(f))
}

// Region is a candidate detection while it is being expanded
type Region struct {
	// ID is the stable identifier assigned in seed order
	ID int64
	// Polygon is the current region boundary
	Polygon geometry.Polygon
	// Level is the scale level the polygon was last grown to
	Level int
	// Score is the confidence score of the region
	Score float64
	// State is the lifecycle state
	State State
	// Reason is why the region froze, NotFrozen while still growing
	Reason FreezeReason
	// History is the polygon area after seeding and after every expansion
	History []float64
	// Parent is the ID of the region this one was split from by the
	// Resolver, 0 for seeded regions
	Parent int64
	// area caches the polygon area
	area float64
}

// New creates a Seeded region from a seed polygon.  The polygon is copied
func New(id int64, seed geometry.Polygon, score float64) *Region {

	r := &Region{
		ID:    id,
		Score: score,
		State: Seeded,
	}

	r.setPolygon(seed.Clone())
	r.History = []float64{r.area}

	return r
}

// split creates a Frozen region from a piece of r cut off by the Resolver.
// The piece inherits the score and scale level of r
func (r *Region) split(id int64, piece geometry.Polygon) *Region {

	n := New(id, piece, r.Score)
	n.Level = r.Level
	n.Parent = r.ID
	n.State = Frozen
	n.Reason = FrozenCollision

	return n
}

// Area returns the area of the current polygon
func (r *Region) Area() float64 {
	return r.area
}

// Live reports whether the region is still part of the region set
func (r *Region) Live() bool {
	return r.State != Retired
}

// Growing reports whether the region can still be expanded
func (r *Region) Growing() bool {
	return r.State == Seeded || r.State == Expanding
}

// setPolygon replaces the polygon and refreshes the cached area
func (r *Region) setPolygon(p geometry.Polygon) {
	r.Polygon = p
	r.area = p.Area()
}

// grow replaces the polygon with an expanded one and records the new area
func (r *Region) grow(p geometry.Polygon, level int) {
	r.setPolygon(p)
	r.Level = level
	r.State = Expanding
	r.History = append(r.History, r.area)
}

// Freeze stops further expansion of the region.  Frozen or retired regions
// keep their original reason
func (r *Region) Freeze(reason FreezeReason) {
	if !r.Growing() {
		return
	}
	r.State = Frozen
	r.Reason = reason
}

// retire removes the region from the region set
func (r *Region) retire() {
	r.State = Retired
}

// String formats the region for logging
func (r *Region) String() string {
	return fmt.Sprintf("region %d [%s] level=%d area=%.2f score=%.3f",
		r.ID, r.State, r.Level, r.area, r.Score)
}

// higherPriority reports whether region a takes priority over region b when
// both claim the same area.  The larger region wins and equal areas are
// decided by the lower ID
func higherPriority(a, b *Region) bool {
	if a.area != b.area {
		return a.area > b.area
	}
	return a.ID < b.ID
}

// ByPriority sorts regions into priority order, highest first
func ByPriority(regions []*Region) {
	sort.SliceStable(regions, func(i, j int) bool {
		return higherPriority(regions[i], regions[j])
	})
}

// ByID sorts regions by ascending ID which is the seed extraction order
func ByID(regions []*Region) {
	sort.SliceStable(regions, func(i, j int) bool {
		return regions[i].ID < regions[j].ID
	})
}

// Live returns the regions that have not been retired
func Live(regions []*Region) []*Region {

	live := make([]*Region, 0, len(regions))

	for _, r := range regions {
		if r.Live() {
			live = append(live, r)
		}
	}

	return live
}
