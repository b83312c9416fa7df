package validation

import (
	"context"
	"image/color"
	"math"
	"strings"

	"github.com/okian/trajguard/internal/domain/verdict"
)

const (
	// DefaultCyclicRatio is the wrap heuristic factor used when none is set.
	DefaultCyclicRatio = 5
	// DefaultMaxIrrelevantColorValue is the largest value the two ignored
	// channels may have for a pixel to count in single colour mode.
	DefaultMaxIrrelevantColorValue = 10
)

// ColorSource maps screen coordinates to the colour of a reference image.
type ColorSource interface {
	// ColorAt returns false outside the image.
	ColorAt(x, y float64) (color.RGBA, bool)
	// Colors lists every colour present in the image.
	Colors() []color.RGBA
}

// MoveByGradientConfig configures a MoveByGradient validator.
type MoveByGradientConfig struct {
	Source ColorSource
	// Descend requires the colour value to decrease instead of increase.
	Descend              bool
	MaxValidBackMovement float64
	Cyclic               bool
	// CyclicRatio defaults to DefaultCyclicRatio when zero.
	CyclicRatio float64
	// SingleColor is "", "R", "G" or "B".
	SingleColor string
	// MaxIrrelevantColorValue defaults to DefaultMaxIrrelevantColorValue when
	// zero.
	MaxIrrelevantColorValue uint8
}

// MoveByGradient requires the pointer to follow a colour gradient in a
// reference image.
type MoveByGradient struct {
	base
	cfg     MoveByGradientConfig
	channel int // -1 for the full RGB value

	minColor   float64
	maxColor   float64
	rangeKnown bool

	lastColor float64
	hasLast   bool
}

// NewMoveByGradient validates cfg, computes the available colour range and
// builds the validator.
func NewMoveByGradient(cfg MoveByGradientConfig, opts ...Option) (*MoveByGradient, error) {
	if cfg.Source == nil {
		return nil, ErrMissingSource
	}
	if cfg.MaxValidBackMovement < 0 {
		return nil, verdict.InvalidOption("max valid back movement must not be negative, got %v", cfg.MaxValidBackMovement)
	}
	if cfg.CyclicRatio == 0 {
		cfg.CyclicRatio = DefaultCyclicRatio
	}
	if cfg.CyclicRatio < 0 {
		return nil, verdict.InvalidOption("cyclic ratio must be positive, got %v", cfg.CyclicRatio)
	}
	if cfg.MaxIrrelevantColorValue == 0 {
		cfg.MaxIrrelevantColorValue = DefaultMaxIrrelevantColorValue
	}

	v := &MoveByGradient{base: newBase("gradient", opts), cfg: cfg}
	switch strings.ToUpper(cfg.SingleColor) {
	case "":
		v.channel = -1
	case "R":
		v.channel = 0
	case "G":
		v.channel = 1
	case "B":
		v.channel = 2
	default:
		return nil, verdict.InvalidOption("single color must be R, G or B, got %q", cfg.SingleColor)
	}

	v.minColor, v.maxColor = math.Inf(1), math.Inf(-1)
	for _, c := range cfg.Source.Colors() {
		val, ok := v.colorValue(c)
		if !ok {
			continue
		}
		v.minColor = math.Min(v.minColor, val)
		v.maxColor = math.Max(v.maxColor, val)
		v.rangeKnown = true
	}
	return v, nil
}

// colorValue maps a pixel to the scalar the gradient is measured on. In single
// colour mode, pixels with too much of another channel are not valid.
func (v *MoveByGradient) colorValue(c color.RGBA) (float64, bool) {
	if v.channel < 0 {
		return float64(uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)), true
	}
	ch := [3]uint8{c.R, c.G, c.B}
	limit := v.cfg.MaxIrrelevantColorValue
	for i, val := range ch {
		if i != v.channel && val > limit {
			return 0, false
		}
	}
	return float64(ch[v.channel]), true
}

// ColorRange returns the smallest and largest valid colour values in the
// image, false if none is valid.
func (v *MoveByGradient) ColorRange() (lo, hi float64, ok bool) {
	return v.minColor, v.maxColor, v.rangeKnown
}

// Reset implements Validator.
func (v *MoveByGradient) Reset(context.Context, *float64) {
	v.hasLast = false
	v.lastColor = 0
}

// Update implements Validator. Time is not used.
func (v *MoveByGradient) Update(ctx context.Context, x, y, _ float64) (verdict.Verdict, error) {
	if !v.enabled {
		return verdict.Pass(), nil
	}

	px, ok := v.cfg.Source.ColorAt(x, y)
	var current float64
	if ok {
		current, ok = v.colorValue(px)
	}
	if !ok {
		// Cannot validate here.
		v.hasLast = false
		return verdict.Pass(), nil
	}
	if !v.hasLast {
		v.lastColor, v.hasLast = current, true
		return verdict.Pass(), nil
	}

	direction := 1.0
	if v.cfg.Descend {
		direction = -1
	}
	delta := (current - v.lastColor) * direction
	if delta >= 0 {
		v.lastColor = current
		return verdict.Pass(), nil
	}
	if delta >= -v.cfg.MaxValidBackMovement {
		return verdict.Pass(), nil
	}
	if v.cfg.Cyclic && v.rangeKnown {
		span := v.maxColor - v.minColor
		if math.Abs(delta) >= v.cfg.CyclicRatio*(span-math.Abs(delta)) {
			v.lastColor = current
			return verdict.Pass(), nil
		}
	}
	return v.fail(ctx, verdict.GradientViolation, "You moved in an invalid direction",
		"last_color", v.lastColor,
		"color", current,
	), nil
}
