package guidedrefine

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/swdee/go-guidedrefine/geometry"
	"github.com/swdee/go-guidedrefine/mask"
	"github.com/swdee/go-guidedrefine/region"
)

// Detection is a final refined polygon with its confidence score
type Detection struct {
	// ID is the identifier of the seed region the detection grew from
	ID int64
	// Polygon is the refined detection boundary in pixel coordinates
	Polygon geometry.Polygon
	// Score is the confidence score of the detection
	Score float64
	// Level is the highest scale level the polygon was grown to
	Level int
	// Area is the polygon area in pixels
	Area float64
	// Parent is the ID of the region this detection was split from when the
	// overlap resolver cut a region into pieces, 0 for seeded regions
	Parent int64
}

// Result is the output of running the Pipeline on a single image
type Result struct {
	// Detections are ordered by ID, seeds in extraction order followed by
	// pieces split off by the overlap resolver
	Detections []Detection
	// Retired lists the regions removed by the overlap resolver
	Retired []region.Retirement
}

// Pipeline runs contour extraction, guided region growing and overlap
// resolution over the masks of a single image.  A Pipeline holds no per
// image state and may be used from multiple goroutines
type Pipeline struct {
	cfg      Config
	log      *slog.Logger
	grower   *region.Grower
	resolver *region.Resolver
}

// New validates the configuration and returns a Pipeline
func New(cfg Config) (*Pipeline, error) {

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := cfg.logger()

	cfg.Levels = append([]Level(nil), cfg.Levels...)

	return &Pipeline{
		cfg: cfg,
		log: log,
		grower: region.NewGrower(region.GrowerParams{
			Join:        cfg.Join,
			MaxDistance: cfg.MaxDistance,
			Workers:     cfg.Workers,
		}, log),
		resolver: region.NewResolver(region.ResolverParams{
			MergeThreshold:    cfg.MergeThreshold,
			SuppressThreshold: cfg.SuppressThreshold,
		}, log),
	}, nil
}

// Config returns a copy of the pipeline configuration
func (p *Pipeline) Config() Config {
	cfg := p.cfg
	cfg.Levels = append([]Level(nil), p.cfg.Levels...)
	return cfg
}

// NewBuffer binarizes the per level probability maps with the level
// thresholds of cfg and returns the Mask Buffer for an image.  score is the
// probability map used for region confidence and may be nil
func NewBuffer(cfg Config, width, height int, levelScores [][]float32,
	score []float32) (*mask.Buffer, error) {

	if len(levelScores) != len(cfg.Levels) {
		return nil, errors.Wrapf(mask.ErrDimensionMismatch,
			"got %d level maps for %d configured levels", len(levelScores), len(cfg.Levels))
	}

	levels := make([]*mask.Mask, len(levelScores))

	for i, s := range levelScores {
		m, err := mask.Binarize(s, width, height, cfg.Levels[i].Threshold)

		if err != nil {
			return nil, errors.Wrapf(err, "level %d", i)
		}

		if cfg.Dilation {
			if m, err = mask.Dilate(m); err != nil {
				return nil, errors.Wrapf(err, "level %d dilation", i)
			}
		}

		levels[i] = m
	}

	var sm *mask.ScoreMap

	if score != nil {
		var err error
		sm, err = mask.NewScoreMap(width, height, score)

		if err != nil {
			return nil, errors.Wrap(err, "score map")
		}
	}

	return mask.NewBuffer(levels, sm)
}

// NewBufferFloat16 is NewBuffer for probability maps held as raw IEEE 754
// half precision values.  score may be nil
func NewBufferFloat16(cfg Config, width, height int, levelScores [][]uint16,
	score []uint16) (*mask.Buffer, error) {

	levels := make([][]float32, len(levelScores))

	for i, raw := range levelScores {
		sm, err := mask.ScoreMapFromFloat16(width, height, raw)

		if err != nil {
			return nil, errors.Wrapf(err, "level %d", i)
		}

		levels[i] = sm.Data
	}

	var scores []float32

	if score != nil {
		sm, err := mask.ScoreMapFromFloat16(width, height, score)

		if err != nil {
			return nil, errors.Wrap(err, "score map")
		}

		scores = sm.Data
	}

	return NewBuffer(cfg, width, height, levels, scores)
}

// Run refines the masks of a single image into detections.  Seeds are
// extracted from level 0, grown through every following level with the
// overlap resolver run after each level, then filtered by area and score.
// A dimension mismatch between the buffer and the configuration fails the
// whole image with no partial output
func (p *Pipeline) Run(buf *mask.Buffer) (*Result, error) {

	if err := buf.Validate(); err != nil {
		return nil, err
	}

	if len(buf.Levels) != len(p.cfg.Levels) {
		return nil, errors.Wrapf(mask.ErrDimensionMismatch,
			"buffer has %d levels, configuration has %d", len(buf.Levels), len(p.cfg.Levels))
	}

	log := p.log.With("run", uuid.NewString())

	ids := region.NewIDGenerator()
	regions, err := p.seed(buf, ids, log)

	if err != nil {
		return nil, err
	}

	log.Debug("seeds extracted", "count", len(regions), "width", buf.Width, "height", buf.Height)

	res := &Result{}
	live := regions

	for k := 1; k < len(p.cfg.Levels) && k <= p.cfg.MaxIterations; k++ {
		comps, err := mask.Extract(buf.Levels[k], mask.ExtractOptions{
			MaxContours: p.cfg.MaxContours,
			Logger:      log,
		})

		if err != nil {
			return nil, errors.Wrapf(err, "level %d guidance", k)
		}

		p.grower.Step(live, k, p.cfg.Levels[k].UnclipRatio, mask.Polygons(comps))

		var retired []region.Retirement
		live, retired = p.resolver.Resolve(live, k, ids)
		res.Retired = append(res.Retired, retired...)

		log.Debug("level resolved", "level", k, "guidance", len(comps),
			"live", len(live), "retired", len(retired))
	}

	for _, r := range live {
		r.Freeze(region.FrozenMaxLevel)
	}

	var retired []region.Retirement
	live, retired = p.resolver.Resolve(live, len(p.cfg.Levels)-1, ids)
	res.Retired = append(res.Retired, retired...)

	res.Detections = p.filter(live)

	log.Debug("detections emitted", "count", len(res.Detections), "retired", len(res.Retired))

	return res, nil
}

// seed extracts the level 0 components and creates a region for each
func (p *Pipeline) seed(buf *mask.Buffer, ids *region.IDGenerator,
	log *slog.Logger) ([]*region.Region, error) {

	comps, err := mask.Extract(buf.Levels[0], mask.ExtractOptions{
		MinArea:     p.cfg.MinSeedArea,
		MaxContours: p.cfg.MaxContours,
		Logger:      log,
	})

	if err != nil {
		return nil, errors.Wrap(err, "seed extraction")
	}

	regions := make([]*region.Region, 0, len(comps))

	for _, c := range comps {
		score := 1.0

		if buf.Score != nil {
			score = buf.Score.PolygonMean(c.Polygon)
		}

		regions = append(regions, region.New(ids.Next(), c.Polygon, score))
	}

	return regions, nil
}

// filter drops regions below the minimum area or score and converts the
// rest to detections in seed order
func (p *Pipeline) filter(regions []*region.Region) []Detection {

	region.ByID(regions)

	dets := make([]Detection, 0, len(regions))

	for _, r := range regions {
		if r.Area() < p.cfg.MinArea || r.Score < p.cfg.MinScore {
			continue
		}

		dets = append(dets, Detection{
			ID:      r.ID,
			Polygon: r.Polygon.Clone(),
			Score:   r.Score,
			Level:   r.Level,
			Area:    r.Area(),
			Parent:  r.Parent,
		})
	}

	return dets
}
