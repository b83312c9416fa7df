// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Validation errors wrap ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory trajectory queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of replay workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets how many trial ids are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxSamplesPerTrial rejects oversized submissions.
	MaxSamplesPerTrial int `koanf:"max_samples_per_trial"`

	// UnitsPerMM converts screen units to millimetres for speed checks.
	UnitsPerMM float64 `koanf:"units_per_mm"`

	Trial      TrialConfig      `koanf:"trial"`
	Validators ValidatorsConfig `koanf:"validators"`
	Line       LineConfig       `koanf:"line"`
}

// TrialConfig holds trial-level timing policies in seconds.
type TrialConfig struct {
	MinMovementTime   float64 `koanf:"min_movement_time"`
	MovementThreshold float64 `koanf:"movement_threshold"`
	MaxDuration       float64 `koanf:"max_duration"`
	FeedbackHideDelay float64 `koanf:"feedback_hide_delay"`
}

// ValidatorsConfig has one section per validator. Disabled validators are not
// built.
type ValidatorsConfig struct {
	InstSpeed   InstSpeedConfig   `koanf:"inst_speed"`
	GlobalSpeed GlobalSpeedConfig `koanf:"global_speed"`
	Direction   DirectionConfig   `koanf:"direction"`
	Zigzag      ZigzagConfig      `koanf:"zigzag"`
	Gradient    GradientConfig    `koanf:"gradient"`
}

type InstSpeedConfig struct {
	Enabled             bool    `koanf:"enabled"`
	Axis                string  `koanf:"axis"`
	MinSpeed            float64 `koanf:"min_speed"`
	MaxSpeed            float64 `koanf:"max_speed"`
	GracePeriod         float64 `koanf:"grace_period"`
	CalculationInterval float64 `koanf:"calculation_interval"`
}

type GlobalSpeedConfig struct {
	Enabled          bool              `koanf:"enabled"`
	Axis             string            `koanf:"axis"`
	Origin           float64           `koanf:"origin"`
	End              float64           `koanf:"end"`
	MaxTrialDuration float64           `koanf:"max_trial_duration"`
	GracePeriod      float64           `koanf:"grace_period"`
	Milestones       []MilestoneConfig `koanf:"milestones"`
	// ShowGuide tracks where the pace guide would be drawn.
	ShowGuide bool `koanf:"show_guide"`
}

type MilestoneConfig struct {
	TimeFraction     float64 `koanf:"time"`
	DistanceFraction float64 `koanf:"distance"`
}

type DirectionConfig struct {
	Enabled           bool    `koanf:"enabled"`
	MinAngle          float64 `koanf:"min_angle"`
	MaxAngle          float64 `koanf:"max_angle"`
	CalcAngleInterval float64 `koanf:"calc_angle_interval"`
	GracePeriod       float64 `koanf:"grace_period"`
}

type ZigzagConfig struct {
	Enabled           bool    `koanf:"enabled"`
	Axis              string  `koanf:"axis"`
	MaxCurvesPerTrial int     `koanf:"max_curves_per_trial"`
	MinDistance       float64 `koanf:"min_distance"`
}

// GradientConfig points at a reference image centred at (X, Y).
type GradientConfig struct {
	Enabled              bool    `koanf:"enabled"`
	Image                string  `koanf:"image"`
	X                    float64 `koanf:"x"`
	Y                    float64 `koanf:"y"`
	Descend              bool    `koanf:"descend"`
	MaxValidBackMovement float64 `koanf:"max_valid_back_movement"`
	Cyclic               bool    `koanf:"cyclic"`
	CyclicRatio          float64 `koanf:"cyclic_ratio"`
	SingleColor          string  `koanf:"single_color"`
	MaxIrrelevantColor   int     `koanf:"max_irrelevant_color_value"`
}

// LineConfig describes the number line. Disabled means trials end only on
// failure or timeout.
type LineConfig struct {
	Enabled       bool    `koanf:"enabled"`
	Orientation   string  `koanf:"orientation"`
	MidX          float64 `koanf:"mid_x"`
	MidY          float64 `koanf:"mid_y"`
	Length        float64 `koanf:"length"`
	MinValue      float64 `koanf:"min_value"`
	MaxValue      float64 `koanf:"max_value"`
	TouchDistance float64 `koanf:"touch_distance"`
	Undirected    bool    `koanf:"undirected"`
}

// New creates a Config with defaults: a horizontal 0-100 line 600 units above
// the start point and the speed and zigzag checks on.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:           "info",
		Addr:               ":9080",
		QueueSize:          10_000,
		WorkerCount:        runtime.NumCPU(),
		DedupeSize:         100_000,
		MaxSamplesPerTrial: 20_000,
		UnitsPerMM:         1,
		Trial: TrialConfig{
			MinMovementTime:   0.2,
			MovementThreshold: 5,
			MaxDuration:       4,
			FeedbackHideDelay: 1,
		},
		Validators: ValidatorsConfig{
			InstSpeed: InstSpeedConfig{
				Enabled:             true,
				Axis:                "y",
				MinSpeed:            20,
				GracePeriod:         0.3,
				CalculationInterval: 0.05,
			},
			GlobalSpeed: GlobalSpeedConfig{
				Axis:             "y",
				End:              600,
				MaxTrialDuration: 4,
				GracePeriod:      0.3,
			},
			Direction: DirectionConfig{
				MinAngle:          -90,
				MaxAngle:          90,
				CalcAngleInterval: 20,
			},
			Zigzag: ZigzagConfig{
				Enabled:     true,
				Axis:        "x",
				MinDistance: 20,
			},
			Gradient: GradientConfig{
				CyclicRatio: 5,
			},
		},
		Line: LineConfig{
			Enabled:     true,
			Orientation: "horizontal",
			MidY:        600,
			Length:      800,
			MinValue:    0,
			MaxValue:    100,
		},
	}
}

// Validate checks service-level settings. Validator sections are checked when
// the validators are built.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive, got %d", ErrInvalidConfig, c.QueueSize)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive, got %d", ErrInvalidConfig, c.WorkerCount)
	case c.MaxSamplesPerTrial <= 0:
		return fmt.Errorf("%w: max_samples_per_trial must be positive, got %d", ErrInvalidConfig, c.MaxSamplesPerTrial)
	case !(c.UnitsPerMM > 0):
		return fmt.Errorf("%w: units_per_mm must be positive, got %v", ErrInvalidConfig, c.UnitsPerMM)
	case c.Validators.Gradient.Enabled && c.Validators.Gradient.Image == "":
		return fmt.Errorf("%w: validators.gradient.image is required when the gradient check is enabled", ErrInvalidConfig)
	case c.Validators.Gradient.MaxIrrelevantColor < 0 || c.Validators.Gradient.MaxIrrelevantColor > 255:
		return fmt.Errorf("%w: validators.gradient.max_irrelevant_color_value must be within 0-255", ErrInvalidConfig)
	}
	return nil
}
