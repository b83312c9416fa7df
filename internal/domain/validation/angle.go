package validation

import (
	"context"
	"math"

	"github.com/okian/trajguard/internal/domain/verdict"
)

// MovementAngleConfig configures a MovementAngle validator. Angles are in
// degrees, 0 is straight up and positive values turn clockwise.
type MovementAngleConfig struct {
	MinAngle float64
	MaxAngle float64
	// CalcAngleInterval is the minimal distance, in screen units, between the
	// two points an angle is computed from.
	CalcAngleInterval float64
	GracePeriod       float64
}

// MovementAngle fails when the direction of movement leaves
// [MinAngle, MaxAngle].
type MovementAngle struct {
	base
	cfg MovementAngleConfig

	clock     clock
	start     float64
	hasStart  bool
	anchorX   float64
	anchorY   float64
	hasAnchor bool
}

// NewMovementAngle validates cfg and builds the validator.
func NewMovementAngle(cfg MovementAngleConfig, opts ...Option) (*MovementAngle, error) {
	if cfg.MinAngle <= -180 || cfg.MaxAngle > 180 || cfg.MinAngle > cfg.MaxAngle {
		return nil, verdict.InvalidOption("angle range [%v, %v] must be ordered within (-180, 180]", cfg.MinAngle, cfg.MaxAngle)
	}
	if !(cfg.CalcAngleInterval > 0) {
		return nil, verdict.InvalidOption("angle calculation interval must be positive, got %v", cfg.CalcAngleInterval)
	}
	if cfg.GracePeriod < 0 {
		return nil, verdict.InvalidOption("grace period must not be negative, got %v", cfg.GracePeriod)
	}
	return &MovementAngle{base: newBase("direction", opts), cfg: cfg}, nil
}

// Reset implements Validator.
func (v *MovementAngle) Reset(_ context.Context, t0 *float64) {
	v.clock.reset(t0)
	v.hasStart = t0 != nil
	v.start = 0
	if t0 != nil {
		v.start = *t0
	}
	v.hasAnchor = false
}

// Angle returns the direction of the move from (x0, y0) to (x1, y1) in
// degrees within (-180, 180], 0 pointing up.
func Angle(x0, y0, x1, y1 float64) float64 {
	deg := math.Atan2(x1-x0, y1-y0) * 180 / math.Pi
	if deg == -180 {
		deg = 180
	}
	return deg
}

// Update implements Validator.
func (v *MovementAngle) Update(ctx context.Context, x, y, t float64) (verdict.Verdict, error) {
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
	if !v.hasAnchor {
		v.anchorX, v.anchorY, v.hasAnchor = x, y, true
		return verdict.Pass(), nil
	}
	if math.Hypot(x-v.anchorX, y-v.anchorY) < v.cfg.CalcAngleInterval {
		return verdict.Pass(), nil
	}

	angle := Angle(v.anchorX, v.anchorY, x, y)
	v.anchorX, v.anchorY = x, y

	if t-v.start <= v.cfg.GracePeriod {
		return verdict.Pass(), nil
	}
	if angle < v.cfg.MinAngle || angle > v.cfg.MaxAngle {
		return v.fail(ctx, verdict.InvalidDirection, "You moved in an invalid direction", "angle", angle), nil
	}
	return verdict.Pass(), nil
}
