package service

import (
	"context"
	"fmt"

	"github.com/okian/trajguard/internal/adapters/imagemap"
	"github.com/okian/trajguard/internal/config"
	"github.com/okian/trajguard/internal/domain/crossing"
	"github.com/okian/trajguard/internal/domain/stimulus"
	"github.com/okian/trajguard/internal/domain/timeline"
	"github.com/okian/trajguard/internal/domain/trial"
	"github.com/okian/trajguard/internal/domain/validation"
	"github.com/okian/trajguard/pkg/logger"
	"github.com/okian/trajguard/pkg/metrics"
)

// PipelineBuilder turns the validator and line sections of the configuration
// into trial pipelines. The gradient image is decoded once and shared by
// every pipeline it builds.
type PipelineBuilder struct {
	cfg      *config.Config
	log      logger.Logger
	gradient *imagemap.Map
}

// NewPipelineBuilder prepares a builder and loads the gradient image when the
// gradient check is enabled.
func NewPipelineBuilder(cfg *config.Config, log logger.Logger) (*PipelineBuilder, error) {
	if cfg == nil {
		cfg = config.New(context.Background())
	}
	if log == nil {
		log = logger.Nop()
	}
	b := &PipelineBuilder{cfg: cfg, log: log}

	g := cfg.Validators.Gradient
	if g.Enabled {
		m, err := imagemap.Open(g.Image, g.X, g.Y)
		if err != nil {
			return nil, fmt.Errorf("load gradient image: %w", err)
		}
		b.gradient = m
	}

	// Validate the configuration by building one pipeline.
	if _, err := b.Build(); err != nil {
		return nil, err
	}
	return b, nil
}

// Build returns a fresh pipeline. Pipelines are not safe for concurrent use,
// so each worker builds its own.
func (b *PipelineBuilder) Build() (*trial.Pipeline, error) {
	chain, err := b.chain()
	if err != nil {
		return nil, err
	}

	sched := timeline.NewScheduler(
		timeline.WithLogger(b.log),
		timeline.WithStateHook(func(_ timeline.OperationID, st timeline.State) {
			metrics.RecordTimelineOperation(st.String())
		}),
	)
	opts := []trial.Option{trial.WithLogger(b.log), trial.WithScheduler(sched)}

	if b.cfg.Line.Enabled {
		det, err := b.detector()
		if err != nil {
			return nil, err
		}
		opts = append(opts, trial.WithDetector(det))
	}

	t := b.cfg.Trial
	return trial.New(trial.Config{
		MinMovementTime:   t.MinMovementTime,
		MovementThreshold: t.MovementThreshold,
		MaxDuration:       t.MaxDuration,
		FeedbackHideDelay: t.FeedbackHideDelay,
	}, chain, opts...)
}

// chain builds the enabled validators in a fixed order: speed checks first,
// then direction, zigzag and gradient.
func (b *PipelineBuilder) chain() (*validation.Chain, error) {
	v := b.cfg.Validators
	common := []validation.Option{validation.WithLogger(b.log)}
	var validators []validation.Validator

	if v.InstSpeed.Enabled {
		axis, err := validation.ParseAxis(v.InstSpeed.Axis)
		if err != nil {
			return nil, fmt.Errorf("inst_speed: %w", err)
		}
		is, err := validation.NewInstantaneousSpeed(validation.InstantaneousSpeedConfig{
			Axis:                axis,
			MinSpeed:            v.InstSpeed.MinSpeed,
			MaxSpeed:            v.InstSpeed.MaxSpeed,
			GracePeriod:         v.InstSpeed.GracePeriod,
			CalculationInterval: v.InstSpeed.CalculationInterval,
			UnitsPerMM:          b.cfg.UnitsPerMM,
		}, common...)
		if err != nil {
			return nil, fmt.Errorf("inst_speed: %w", err)
		}
		validators = append(validators, is)
	}

	if v.GlobalSpeed.Enabled {
		gs, err := b.globalSpeed(v.GlobalSpeed, common)
		if err != nil {
			return nil, fmt.Errorf("global_speed: %w", err)
		}
		validators = append(validators, gs)
	}

	if v.Direction.Enabled {
		ma, err := validation.NewMovementAngle(validation.MovementAngleConfig{
			MinAngle:          v.Direction.MinAngle,
			MaxAngle:          v.Direction.MaxAngle,
			CalcAngleInterval: v.Direction.CalcAngleInterval,
			GracePeriod:       v.Direction.GracePeriod,
		}, common...)
		if err != nil {
			return nil, fmt.Errorf("direction: %w", err)
		}
		validators = append(validators, ma)
	}

	if v.Zigzag.Enabled {
		axis, err := validation.ParseAxis(v.Zigzag.Axis)
		if err != nil {
			return nil, fmt.Errorf("zigzag: %w", err)
		}
		nc, err := validation.NewNCurves(validation.NCurvesConfig{
			Axis:              axis,
			MaxCurvesPerTrial: v.Zigzag.MaxCurvesPerTrial,
			MinDistance:       v.Zigzag.MinDistance,
		}, common...)
		if err != nil {
			return nil, fmt.Errorf("zigzag: %w", err)
		}
		validators = append(validators, nc)
	}

	if v.Gradient.Enabled {
		mg, err := validation.NewMoveByGradient(validation.MoveByGradientConfig{
			Source:                  b.gradient,
			Descend:                 v.Gradient.Descend,
			MaxValidBackMovement:    v.Gradient.MaxValidBackMovement,
			Cyclic:                  v.Gradient.Cyclic,
			CyclicRatio:             v.Gradient.CyclicRatio,
			SingleColor:             v.Gradient.SingleColor,
			MaxIrrelevantColorValue: uint8(v.Gradient.MaxIrrelevantColor), //nolint:gosec // range checked by config.Validate
		}, common...)
		if err != nil {
			return nil, fmt.Errorf("gradient: %w", err)
		}
		validators = append(validators, mg)
	}

	return validation.NewChain(validators...), nil
}

func (b *PipelineBuilder) globalSpeed(c config.GlobalSpeedConfig, opts []validation.Option) (*validation.GlobalSpeed, error) {
	axis, err := validation.ParseAxis(c.Axis)
	if err != nil {
		return nil, err
	}
	milestones := validation.DefaultMilestones()
	if len(c.Milestones) > 0 {
		milestones = make([]validation.Milestone, len(c.Milestones))
		for i, m := range c.Milestones {
			milestones[i] = validation.Milestone{TimeFraction: m.TimeFraction, DistanceFraction: m.DistanceFraction}
		}
	}
	gc := validation.GlobalSpeedConfig{
		Axis:             axis,
		Origin:           c.Origin,
		End:              c.End,
		MaxTrialDuration: c.MaxTrialDuration,
		Milestones:       milestones,
		GracePeriod:      c.GracePeriod,
	}
	if c.ShowGuide {
		gc.Guide = stimulus.NewTracker("pace_guide")
	}
	return validation.NewGlobalSpeed(gc, opts...)
}

func (b *PipelineBuilder) detector() (*crossing.LineDetector, error) {
	l := b.cfg.Line
	orientation, err := crossing.ParseOrientation(l.Orientation)
	if err != nil {
		return nil, fmt.Errorf("line: %w", err)
	}
	det, err := crossing.NewLineDetector(crossing.Config{
		Orientation:   orientation,
		MidX:          l.MidX,
		MidY:          l.MidY,
		Length:        l.Length,
		MinValue:      l.MinValue,
		MaxValue:      l.MaxValue,
		TouchDistance: l.TouchDistance,
		Undirected:    l.Undirected,
		Feedback:      stimulus.NewTracker("touch_feedback"),
	}, crossing.WithLogger(b.log))
	if err != nil {
		return nil, fmt.Errorf("line: %w", err)
	}
	return det, nil
}
