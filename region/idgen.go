package region

// IDGenerator hands out region IDs for a single image run.  Seeds take the
// first IDs in extraction order and pieces split off by the Resolver follow,
// so identical input always yields identical IDs.  It is owned by one run and
// is not safe for concurrent use
type IDGenerator struct {
	last int64
}

// NewIDGenerator returns a generator whose first ID is 1
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// Next returns the next unused ID
func (g *IDGenerator) Next() int64 {
	g.last++
	return g.last
}

// Reserve marks every ID up to and including id as used
func (g *IDGenerator) Reserve(id int64) {
	if id > g.last {
		g.last = id
	}
}
