// Package crossing detects when a moving point touches a logical number line.
package crossing

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/okian/trajguard/internal/domain/stimulus"
	"github.com/okian/trajguard/internal/domain/verdict"
	"github.com/okian/trajguard/pkg/logger"
)

// Orientation of the line on screen.
type Orientation int

const (
	Horizontal Orientation = iota
	Vertical
)

func (o Orientation) String() string {
	if o == Vertical {
		return "vertical"
	}
	return "horizontal"
}

// ParseOrientation accepts "horizontal" and "vertical" (or "h"/"v").
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "h", "horizontal":
		return Horizontal, nil
	case "v", "vertical":
		return Vertical, nil
	default:
		return Horizontal, verdict.InvalidOption("unknown orientation %q", s)
	}
}

// Config describes the line. MidX and MidY are the line centre in screen
// coordinates. TouchDistance may be negative: the point must then pass the
// line by that much.
type Config struct {
	Orientation   Orientation
	MidX, MidY    float64
	Length        float64
	MinValue      float64
	MaxValue      float64
	TouchDistance float64
	// Undirected disables the approach-direction lock.
	Undirected bool

	Feedback        stimulus.Presentable
	FeedbackOffsetX float64
	FeedbackOffsetY float64
}

// LineDetector decides per frame whether the line was touched. Once touched it
// ignores further samples until Reset. Not safe for concurrent use.
type LineDetector struct {
	cfg Config
	log logger.Logger

	touched      bool
	touchCoord   float64
	initialSign  float64
	hasDirection bool
}

// Option applies a configuration option to the LineDetector.
type Option func(*LineDetector)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(d *LineDetector) {
		if l != nil {
			d.log = l.Named("number_line")
		}
	}
}

// NewLineDetector validates cfg and builds a detector.
func NewLineDetector(cfg Config, opts ...Option) (*LineDetector, error) {
	if cfg.Orientation != Horizontal && cfg.Orientation != Vertical {
		return nil, verdict.InvalidOption("unknown orientation %d", int(cfg.Orientation))
	}
	if !(cfg.Length > 0) {
		return nil, verdict.InvalidOption("line length must be positive, got %v", cfg.Length)
	}
	if !(cfg.MinValue < cfg.MaxValue) {
		return nil, verdict.InvalidOption("min value %v must be below max value %v", cfg.MinValue, cfg.MaxValue)
	}
	if math.IsNaN(cfg.TouchDistance) {
		return nil, verdict.InvalidOption("touch distance is NaN")
	}
	d := &LineDetector{cfg: cfg, log: logger.Nop()}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Config returns the validated configuration.
func (d *LineDetector) Config() Config { return d.cfg }

// Reset forgets the approach direction and any touch.
func (d *LineDetector) Reset(context.Context, *float64) {
	d.touched = false
	d.touchCoord = 0
	d.initialSign = 0
	d.hasDirection = false
}

// Update feeds one sample. It never fails a trial, so the verdict is always a
// pass; the return shape matches the validators so the pipeline can treat
// both alike.
func (d *LineDetector) Update(ctx context.Context, x, y, t float64) (verdict.Verdict, error) {
	if d.touched {
		return verdict.Pass(), nil
	}

	var pointer, line, along float64
	if d.cfg.Orientation == Horizontal {
		pointer, line, along = y, d.cfg.MidY, x-d.cfg.MidX
	} else {
		pointer, line, along = x, d.cfg.MidX, y-d.cfg.MidY
	}
	// Positive while the pointer coordinate is below the line coordinate.
	distance := line - pointer

	var touched bool
	switch {
	case d.cfg.Undirected:
		touched = math.Abs(distance) <= d.cfg.TouchDistance
	case !d.hasDirection:
		d.initialSign = sign(distance)
		d.hasDirection = true
		d.log.Debug(ctx, "approach direction set", logger.Float64("sign", d.initialSign), logger.Float64("t", t))
	default:
		touched = distance*d.initialSign < d.cfg.TouchDistance
	}

	if touched {
		d.touched = true
		d.touchCoord = along
		d.showFeedback()
		d.log.Debug(ctx, "line touched", logger.Float64("value", d.valueAt(along)), logger.Float64("t", t))
	}
	return verdict.Pass(), nil
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func (d *LineDetector) showFeedback() {
	if d.cfg.Feedback == nil {
		return
	}
	x, y := d.cfg.MidX, d.cfg.MidY
	if d.cfg.Orientation == Horizontal {
		x += d.touchCoord
	} else {
		y += d.touchCoord
	}
	d.cfg.Feedback.SetPosition(x+d.cfg.FeedbackOffsetX, y+d.cfg.FeedbackOffsetY)
	d.cfg.Feedback.SetVisible(true)
}

// Touched reports whether the line was touched since the last reset.
func (d *LineDetector) Touched() bool { return d.touched }

// LastTouchedCoord is the touch position along the line relative to its
// centre.
func (d *LineDetector) LastTouchedCoord() (float64, bool) {
	return d.touchCoord, d.touched
}

// LastTouchedValue maps the touch position onto [MinValue, MaxValue].
func (d *LineDetector) LastTouchedValue() (float64, bool) {
	if !d.touched {
		return 0, false
	}
	return d.valueAt(d.touchCoord), true
}

func (d *LineDetector) valueAt(coord float64) float64 {
	pos01 := coord/d.cfg.Length + 0.5
	return pos01*(d.cfg.MaxValue-d.cfg.MinValue) + d.cfg.MinValue
}

// ValueToCoord returns the screen position of a value on the line.
func (d *LineDetector) ValueToCoord(value float64) (x, y float64) {
	offset := ((value-d.cfg.MinValue)/(d.cfg.MaxValue-d.cfg.MinValue) - 0.5) * d.cfg.Length
	if d.cfg.Orientation == Horizontal {
		return d.cfg.MidX + offset, d.cfg.MidY
	}
	return d.cfg.MidX, d.cfg.MidY + offset
}

func (d *LineDetector) String() string {
	return fmt.Sprintf("%s line at (%g, %g) length %g", d.cfg.Orientation, d.cfg.MidX, d.cfg.MidY, d.cfg.Length)
}
