package validation

import (
	"context"
	"math"

	"github.com/okian/trajguard/internal/domain/verdict"
)

// NCurvesConfig configures an NCurves validator.
type NCurvesConfig struct {
	Axis              Axis // AxisX or AxisY
	MaxCurvesPerTrial int
	// MinDistance is how far the pointer must travel back from the furthest
	// point before a reversal is counted.
	MinDistance float64
}

// NCurves counts direction reversals along one axis and fails once there are
// more than MaxCurvesPerTrial.
type NCurves struct {
	base
	cfg NCurvesConfig

	clock    clock
	pivot    float64
	hasPivot bool
	dir      int
	curves   int
}

// NewNCurves validates cfg and builds the validator.
func NewNCurves(cfg NCurvesConfig, opts ...Option) (*NCurves, error) {
	if cfg.Axis != AxisX && cfg.Axis != AxisY {
		return nil, ErrUnsupportedAxis
	}
	if cfg.MaxCurvesPerTrial < 0 {
		return nil, verdict.InvalidOption("max curves per trial must not be negative, got %d", cfg.MaxCurvesPerTrial)
	}
	if cfg.MinDistance < 0 {
		return nil, verdict.InvalidOption("min distance must not be negative, got %v", cfg.MinDistance)
	}
	return &NCurves{base: newBase("zigzag", opts), cfg: cfg}, nil
}

// Reset implements Validator.
func (v *NCurves) Reset(_ context.Context, t0 *float64) {
	v.clock.reset(t0)
	v.hasPivot = false
	v.pivot = 0
	v.dir = 0
	v.curves = 0
}

// Curves is the number of reversals counted since the last reset.
func (v *NCurves) Curves() int { return v.curves }

// Update implements Validator.
func (v *NCurves) Update(ctx context.Context, x, y, t float64) (verdict.Verdict, error) {
	if !v.enabled {
		return verdict.Pass(), nil
	}
	if err := v.clock.advance(t); err != nil {
		return verdict.Pass(), err
	}

	coord := y
	if v.cfg.Axis == AxisX {
		coord = x
	}
	if !v.hasPivot {
		v.pivot, v.hasPivot = coord, true
		return verdict.Pass(), nil
	}

	delta := coord - v.pivot
	sign := 0
	switch {
	case delta > 0:
		sign = 1
	case delta < 0:
		sign = -1
	}

	switch {
	case sign == 0:
	case v.dir == 0:
		if math.Abs(delta) > v.cfg.MinDistance {
			v.dir = sign
			v.pivot = coord
		}
	case sign == v.dir:
		// Further along the current direction.
		v.pivot = coord
	case math.Abs(delta) > v.cfg.MinDistance:
		v.curves++
		v.dir = sign
		v.pivot = coord
	}

	if v.curves > v.cfg.MaxCurvesPerTrial {
		return v.fail(ctx, verdict.TooManyCurves, "You changed direction too many times", "curves", v.curves), nil
	}
	return verdict.Pass(), nil
}
