package validation

import (
	"context"

	"github.com/okian/trajguard/internal/domain/motion"
	"github.com/okian/trajguard/internal/domain/verdict"
)

// InstantaneousSpeedConfig configures an InstantaneousSpeed validator. Zero
// MinSpeed or MaxSpeed disables that bound.
type InstantaneousSpeedConfig struct {
	Axis                Axis
	MinSpeed            float64 // mm/s
	MaxSpeed            float64 // mm/s
	GracePeriod         float64 // seconds
	CalculationInterval float64 // seconds
	UnitsPerMM          float64 // defaults to 1
}

// InstantaneousSpeed bounds the speed measured over the last calculation
// interval.
type InstantaneousSpeed struct {
	base
	cfg    InstantaneousSpeedConfig
	window *motion.SpeedWindow
}

// NewInstantaneousSpeed validates cfg and builds the validator with its own
// speed window.
func NewInstantaneousSpeed(cfg InstantaneousSpeedConfig, opts ...Option) (*InstantaneousSpeed, error) {
	if cfg.UnitsPerMM == 0 {
		cfg.UnitsPerMM = 1
	}
	if cfg.MinSpeed < 0 || cfg.MaxSpeed < 0 {
		return nil, verdict.InvalidOption("speed bounds must be positive, got min=%v max=%v", cfg.MinSpeed, cfg.MaxSpeed)
	}
	if cfg.MinSpeed > 0 && cfg.MaxSpeed > 0 && cfg.MinSpeed > cfg.MaxSpeed {
		return nil, verdict.InvalidOption("min speed %v exceeds max speed %v", cfg.MinSpeed, cfg.MaxSpeed)
	}
	if cfg.GracePeriod < 0 {
		return nil, verdict.InvalidOption("grace period must not be negative, got %v", cfg.GracePeriod)
	}
	if cfg.Axis != AxisX && cfg.Axis != AxisY && cfg.Axis != AxisXY {
		return nil, ErrUnknownAxis
	}

	v := &InstantaneousSpeed{base: newBase("inst_speed", opts), cfg: cfg}
	w, err := motion.NewSpeedWindow(
		motion.WithUnitsPerMM(cfg.UnitsPerMM),
		motion.WithInterval(cfg.CalculationInterval),
		motion.WithLogger(v.log),
	)
	if err != nil {
		return nil, err
	}
	v.window = w
	return v, nil
}

// Config returns the validated configuration.
func (v *InstantaneousSpeed) Config() InstantaneousSpeedConfig { return v.cfg }

// Window exposes the underlying speed window for read-only queries.
func (v *InstantaneousSpeed) Window() *motion.SpeedWindow { return v.window }

// Reset implements Validator.
func (v *InstantaneousSpeed) Reset(ctx context.Context, t0 *float64) {
	v.window.Reset(ctx, t0)
}

// Update implements Validator. Nothing is checked before the grace period has
// passed and the window has filled once.
func (v *InstantaneousSpeed) Update(ctx context.Context, x, y, t float64) (verdict.Verdict, error) {
	if !v.enabled {
		return verdict.Pass(), nil
	}
	if err := v.window.Push(ctx, x, y, t); err != nil {
		return verdict.Pass(), err
	}

	elapsed, ok := v.window.TimeInTrial()
	if !ok || elapsed <= v.cfg.GracePeriod {
		return verdict.Pass(), nil
	}
	if _, ok := v.window.LastInterval(); !ok {
		return verdict.Pass(), nil
	}

	var speed float64
	switch v.cfg.Axis {
	case AxisX:
		speed, ok = v.window.XSpeed()
	case AxisY:
		speed, ok = v.window.YSpeed()
	case AxisXY:
		speed, ok = v.window.XYSpeed()
	}
	if !ok {
		return verdict.Pass(), nil
	}

	if v.cfg.MinSpeed > 0 && speed < v.cfg.MinSpeed {
		return v.fail(ctx, verdict.TooSlowInstantaneous, "You moved too slowly", "speed", speed), nil
	}
	if v.cfg.MaxSpeed > 0 && speed > v.cfg.MaxSpeed {
		return v.fail(ctx, verdict.TooFast, "You moved too fast", "speed", speed), nil
	}
	return verdict.Pass(), nil
}
