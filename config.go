package guidedrefine

import (
	"log/slog"
	"math"

	"github.com/pkg/errors"
	"github.com/swdee/go-guidedrefine/geometry"
)

// ErrConfiguration is returned when the pipeline configuration is invalid
var ErrConfiguration = errors.New("configuration error")

// Level defines a single scale level of the kernel pyramid
type Level struct {
	// Threshold is the probability above which a pixel of the level score
	// map is foreground.  Thresholds must not increase from one level to the
	// next as lower levels hold the smaller and more confident kernels
	Threshold float32
	// UnclipRatio sets the offset distance used to grow regions into this
	// level, distance = area * UnclipRatio / perimeter.  It is not used for
	// level 0 which only provides the seeds
	UnclipRatio float64
}

// Config defines the parameters of the refinement Pipeline
type Config struct {
	// Levels are the scale levels from the smallest kernel (level 0) up to
	// the full instance mask
	Levels []Level
	// Dilation grows the foreground of every binarized level mask by one
	// pixel before contours are extracted
	Dilation bool
	// MinSeedArea is the minimum pixel area of a level 0 component for it to
	// be used as a seed
	MinSeedArea float64
	// MinArea is the minimum polygon area of an emitted Detection
	MinArea float64
	// MinScore is the minimum confidence score of an emitted Detection
	MinScore float64
	// MergeThreshold is the overlap ratio above which two regions are merged
	MergeThreshold float64
	// SuppressThreshold is the overlap ratio from which the lower priority of
	// two overlapping regions is suppressed, below it the region is clipped
	SuppressThreshold float64
	// Join is the corner join used when growing polygons
	Join geometry.JoinType
	// MaxDistance caps the offset of a single expansion step, 0 disables it
	MaxDistance float64
	// MaxIterations caps the number of expansion iterations per image
	MaxIterations int
	// Workers is the number of regions expanded concurrently per level
	Workers int
	// MaxContours caps the contours read from each level mask, 0 reads all
	MaxContours int
	// Logger receives diagnostic output, slog.Default() is used when nil
	Logger *slog.Logger
}

// DefaultConfig returns a Config for a two level kernel/text pyramid using
// the CBN test settings:
// - Kernel Threshold: 0.5
// - Text Threshold: 0.5, Unclip Ratio: 1.5
// - Minimum Area: 16
// - Minimum Score: 0.88
// - Merge Threshold: 0.7
// - Suppress Threshold: 0.3
func DefaultConfig() Config {
	return Config{
		Levels: []Level{
			{Threshold: 0.5},
			{Threshold: 0.5, UnclipRatio: 1.5},
		},
		MinSeedArea:       4,
		MinArea:           16,
		MinScore:          0.88,
		MergeThreshold:    0.7,
		SuppressThreshold: 0.3,
		Join:              geometry.JoinRound,
		MaxDistance:       20,
		MaxIterations:     64,
		Workers:           1,
	}
}

// Validate checks the configuration is usable
func (c Config) Validate() error {

	if len(c.Levels) == 0 {
		return errors.Wrap(ErrConfiguration, "at least one level is required")
	}

	if c.MaxIterations <= 0 {
		return errors.Wrapf(ErrConfiguration, "max iterations must be positive, got %d", c.MaxIterations)
	}

	if len(c.Levels)-1 > c.MaxIterations {
		return errors.Wrapf(ErrConfiguration, "%d levels exceed the iteration cap of %d",
			len(c.Levels), c.MaxIterations)
	}

	for i, lv := range c.Levels {
		if lv.Threshold < 0 || lv.Threshold > 1 || math.IsNaN(float64(lv.Threshold)) {
			return errors.Wrapf(ErrConfiguration, "level %d threshold %v outside 0..1", i, lv.Threshold)
		}

		if i > 0 && lv.Threshold > c.Levels[i-1].Threshold {
			return errors.Wrapf(ErrConfiguration,
				"level %d threshold %v is above level %d threshold %v, thresholds must not increase",
				i, lv.Threshold, i-1, c.Levels[i-1].Threshold)
		}

		if i > 0 && !(lv.UnclipRatio > 0) {
			return errors.Wrapf(ErrConfiguration, "level %d unclip ratio must be positive, got %v",
				i, lv.UnclipRatio)
		}
	}

	if c.MinSeedArea < 0 || c.MinArea < 0 {
		return errors.Wrapf(ErrConfiguration, "areas must not be negative (seed %v, detection %v)",
			c.MinSeedArea, c.MinArea)
	}

	if c.MinScore < 0 || c.MinScore > 1 {
		return errors.Wrapf(ErrConfiguration, "min score %v outside 0..1", c.MinScore)
	}

	if c.SuppressThreshold < 0 || c.MergeThreshold < 0 {
		return errors.Wrapf(ErrConfiguration, "overlap thresholds must not be negative (merge %v, suppress %v)",
			c.MergeThreshold, c.SuppressThreshold)
	}

	if c.SuppressThreshold > c.MergeThreshold {
		return errors.Wrapf(ErrConfiguration, "suppress threshold %v is above merge threshold %v",
			c.SuppressThreshold, c.MergeThreshold)
	}

	if c.MaxDistance < 0 {
		return errors.Wrapf(ErrConfiguration, "max distance must not be negative, got %v", c.MaxDistance)
	}

	if c.Workers < 0 {
		return errors.Wrapf(ErrConfiguration, "workers must not be negative, got %d", c.Workers)
	}

	if c.MaxContours < 0 {
		return errors.Wrapf(ErrConfiguration, "max contours must not be negative, got %d", c.MaxContours)
	}

	return nil
}

// logger returns the configured logger or the slog default
func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
