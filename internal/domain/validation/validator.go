// Package validation holds the movement policies evaluated once per frame.
//
// Every validator is configured once through a config value checked at
// construction, then fed with Reset at trial start and Update per frame.
// Update returns a failing verdict when the movement breaks the policy and an
// error only when the caller broke the call contract (for example time going
// backwards). Validators are not safe for concurrent use.
package validation

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/okian/trajguard/internal/domain/verdict"
	"github.com/okian/trajguard/pkg/logger"
)

// Validator is the capability shared by all movement policies.
type Validator interface {
	Name() string
	Enabled() bool
	SetEnabled(enabled bool)
	Reset(ctx context.Context, t0 *float64)
	Update(ctx context.Context, x, y, t float64) (verdict.Verdict, error)
}

// Axis selects the speed or coordinate component a validator inspects.
type Axis int

const (
	AxisY Axis = iota
	AxisX
	AxisXY
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisXY:
		return "xy"
	default:
		return fmt.Sprintf("axis(%d)", int(a))
	}
}

// ParseAxis accepts "x", "y" and "xy" in any case.
func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x":
		return AxisX, nil
	case "y", "":
		return AxisY, nil
	case "xy":
		return AxisXY, nil
	default:
		return AxisY, fmt.Errorf("%w: %q", ErrUnknownAxis, s)
	}
}

// Option applies settings shared by every validator.
type Option func(*base)

// WithName overrides the validator name reported in verdicts.
func WithName(name string) Option {
	return func(b *base) {
		if name != "" {
			b.name = name
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(b *base) {
		if l != nil {
			b.log = l
		}
	}
}

// WithEnabled sets the initial enabled state. Validators start enabled.
func WithEnabled(enabled bool) Option {
	return func(b *base) {
		b.enabled = enabled
	}
}

type base struct {
	name    string
	enabled bool
	log     logger.Logger
}

func newBase(name string, opts []Option) base {
	b := base{name: name, enabled: true, log: logger.Nop()}
	for _, opt := range opts {
		opt(&b)
	}
	b.log = b.log.Named(b.name)
	return b
}

func (b *base) Name() string            { return b.name }
func (b *base) Enabled() bool           { return b.enabled }
func (b *base) SetEnabled(enabled bool) { b.enabled = enabled }

func (b *base) fail(ctx context.Context, code verdict.Code, msg string, args ...any) verdict.Verdict {
	v := verdict.Fail(b.name, code, msg, args...)
	b.log.Debug(ctx, "validation failed", logger.String("code", string(code)), logger.Any("args", v.Args))
	return v
}

// clock enforces non-decreasing time within a trial.
type clock struct {
	last float64
	set  bool
}

func (c *clock) reset(t0 *float64) {
	c.set = t0 != nil
	c.last = 0
	if t0 != nil {
		c.last = *t0
	}
}

func (c *clock) advance(t float64) error {
	if math.IsNaN(t) {
		return fmt.Errorf("%w: t is NaN", verdict.ErrOutOfOrderTime)
	}
	if c.set && t < c.last {
		return fmt.Errorf("%w: got t=%v after t=%v", verdict.ErrOutOfOrderTime, t, c.last)
	}
	c.last = t
	c.set = true
	return nil
}
