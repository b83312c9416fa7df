package validation

import (
	"context"
	"math"

	"github.com/okian/trajguard/internal/domain/stimulus"
	"github.com/okian/trajguard/internal/domain/verdict"
	"github.com/okian/trajguard/pkg/logger"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

const milestoneTolerance = 1e-6

// Milestone is one segment of the global speed schedule: the segment lasts
// TimeFraction of the maximal trial duration and must cover DistanceFraction
// of the origin-to-end distance.
type Milestone struct {
	TimeFraction     float64
	DistanceFraction float64
}

// DefaultMilestones require a third of the distance in the first half of the
// trial and the rest in the second half.
func DefaultMilestones() []Milestone {
	return []Milestone{{TimeFraction: 0.5, DistanceFraction: 1.0 / 3}, {TimeFraction: 0.5, DistanceFraction: 2.0 / 3}}
}

// GlobalSpeedConfig configures a GlobalSpeed validator.
type GlobalSpeedConfig struct {
	Axis             Axis    // AxisX or AxisY
	Origin           float64 // coordinate where progress is 0
	End              float64 // coordinate where progress is 1
	MaxTrialDuration float64 // seconds
	Milestones       []Milestone
	GracePeriod      float64
	// Guide, when set, is moved to the expected coordinate on each frame.
	Guide stimulus.Presentable
}

// GlobalSpeed fails when the pointer falls behind a piecewise linear
// progress schedule.
type GlobalSpeed struct {
	base
	cfg     GlobalSpeedConfig
	cumTime []float64
	cumDist []float64

	clock      clock
	start      float64
	hasStart   bool
	guideShown bool
}

// NewGlobalSpeed validates cfg and builds the validator.
func NewGlobalSpeed(cfg GlobalSpeedConfig, opts ...Option) (*GlobalSpeed, error) {
	if cfg.Axis != AxisX && cfg.Axis != AxisY {
		return nil, ErrUnsupportedAxis
	}
	if cfg.Origin == cfg.End {
		return nil, verdict.InvalidOption("origin and end must differ, both are %v", cfg.Origin)
	}
	if !(cfg.MaxTrialDuration > 0) {
		return nil, verdict.InvalidOption("max trial duration must be positive, got %v", cfg.MaxTrialDuration)
	}
	if cfg.GracePeriod < 0 {
		return nil, verdict.InvalidOption("grace period must not be negative, got %v", cfg.GracePeriod)
	}
	if len(cfg.Milestones) == 0 {
		cfg.Milestones = []Milestone{{TimeFraction: 1, DistanceFraction: 1}}
	}

	times := make([]float64, len(cfg.Milestones))
	dists := make([]float64, len(cfg.Milestones))
	for i, m := range cfg.Milestones {
		if !(m.TimeFraction > 0) || m.DistanceFraction < 0 {
			return nil, ErrInvalidMilestone
		}
		times[i] = m.TimeFraction
		dists[i] = m.DistanceFraction
	}
	if !scalar.EqualWithinAbs(floats.Sum(times), 1, milestoneTolerance) ||
		!scalar.EqualWithinAbs(floats.Sum(dists), 1, milestoneTolerance) {
		return nil, ErrInvalidMilestone
	}

	v := &GlobalSpeed{
		base:    newBase("global_speed", opts),
		cfg:     cfg,
		cumTime: floats.CumSum(make([]float64, len(times)), times),
		cumDist: floats.CumSum(make([]float64, len(dists)), dists),
	}
	return v, nil
}

// Reset implements Validator. A non-nil t0 starts the schedule clock.
func (v *GlobalSpeed) Reset(_ context.Context, t0 *float64) {
	v.clock.reset(t0)
	v.hasStart = t0 != nil
	v.start = 0
	if t0 != nil {
		v.start = *t0
	}
	v.guideShown = false
	if v.cfg.Guide != nil {
		v.cfg.Guide.SetVisible(false)
	}
}

// MovementStarted restarts the schedule clock at t, typically when the finger
// leaves the start area.
func (v *GlobalSpeed) MovementStarted(ctx context.Context, t float64) {
	v.start = t
	v.hasStart = true
	v.log.Debug(ctx, "schedule started", logger.Float64("t", t))
}

// ExpectedProgress returns the fraction of the distance that should have been
// covered after elapsed seconds.
func (v *GlobalSpeed) ExpectedProgress(elapsed float64) float64 {
	frac := elapsed / v.cfg.MaxTrialDuration
	if frac <= 0 {
		return 0
	}
	if frac >= 1 {
		return 1
	}
	prevT, prevD := 0.0, 0.0
	for i, ct := range v.cumTime {
		if frac <= ct {
			return prevD + (frac-prevT)/(ct-prevT)*(v.cumDist[i]-prevD)
		}
		prevT, prevD = ct, v.cumDist[i]
	}
	return 1
}

// ExpectedCoord converts a progress fraction into a coordinate on the axis.
func (v *GlobalSpeed) ExpectedCoord(progress float64) float64 {
	return v.cfg.Origin + progress*(v.cfg.End-v.cfg.Origin)
}

// Update implements Validator.
func (v *GlobalSpeed) Update(ctx context.Context, x, y, t float64) (verdict.Verdict, error) {
	if !v.enabled {
		return verdict.Pass(), nil
	}
	if err := v.clock.advance(t); err != nil {
		return verdict.Pass(), err
	}
	if !v.hasStart {
		v.start = t
		v.hasStart = true
	}

	elapsed := t - v.start
	expected := v.ExpectedProgress(elapsed)
	expectedCoord := v.ExpectedCoord(expected)
	v.moveGuide(expectedCoord)

	if elapsed <= v.cfg.GracePeriod {
		return verdict.Pass(), nil
	}

	coord := y
	if v.cfg.Axis == AxisX {
		coord = x
	}
	actual := (coord - v.cfg.Origin) / (v.cfg.End - v.cfg.Origin)
	if actual+milestoneTolerance < expected {
		return v.fail(ctx, verdict.TooSlowGlobal, "You moved too slowly",
			"expected_progress", expected,
			"actual_progress", actual,
			"expected_coord", expectedCoord,
		), nil
	}
	return verdict.Pass(), nil
}

func (v *GlobalSpeed) moveGuide(coord float64) {
	if v.cfg.Guide == nil || math.IsNaN(coord) {
		return
	}
	if v.cfg.Axis == AxisX {
		v.cfg.Guide.SetPosition(coord, 0)
	} else {
		v.cfg.Guide.SetPosition(0, coord)
	}
	if !v.guideShown {
		v.cfg.Guide.SetVisible(true)
		v.guideShown = true
	}
}
