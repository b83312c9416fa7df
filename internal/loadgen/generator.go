package loadgen

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/okian/trajguard/internal/domain/model"
	"github.com/okian/trajguard/pkg/logger"
	"gonum.org/v1/gonum/stat/distuv"
)

// Kind names the shape of a generated trajectory.
type Kind string

const (
	// KindStraight climbs straight to the line at a comfortable pace.
	KindStraight Kind = "straight"
	// KindZigzag swings sideways while climbing.
	KindZigzag Kind = "zigzag"
	// KindTooFast reaches the line within a tenth of a second.
	KindTooFast Kind = "too_fast"
	// KindShort stops halfway to the line.
	KindShort Kind = "short"
)

// Kinds lists every trajectory shape in generation order.
func Kinds() []Kind {
	return []Kind{KindStraight, KindZigzag, KindTooFast, KindShort}
}

// Constants for trajectory shapes.
const (
	jitterSigma     = 1.5
	targetMin       = 10.0
	targetMax       = 90.0
	speedMin        = 600.0
	speedMax        = 900.0
	tooFastSpeed    = 6400.0
	zigzagAmplitude = 60.0
	zigzagFrequency = 3.0
	shortFraction   = 0.5
	subjectCount    = 20
)

// Generator builds synthetic trajectories. Not safe for concurrent use.
type Generator struct {
	rng    *rand.Rand
	jitter distuv.Normal
	target distuv.Uniform
	speed  distuv.Uniform
}

// NewGenerator returns a generator whose shapes and targets are reproducible
// for a given seed. Trial ids are random.
func NewGenerator(seed uint64) *Generator {
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	return &Generator{
		rng:    rand.New(src),
		jitter: distuv.Normal{Mu: 0, Sigma: jitterSigma, Src: src},
		target: distuv.Uniform{Min: targetMin, Max: targetMax, Src: src},
		speed:  distuv.Uniform{Min: speedMin, Max: speedMax, Src: src},
	}
}

// Next returns a trial of a random kind.
func (g *Generator) Next() Trial {
	kinds := Kinds()
	return g.Trial(kinds[g.rng.IntN(len(kinds))])
}

// Trial returns a trial of the given kind aimed at a random target value.
func (g *Generator) Trial(kind Kind) Trial {
	target := g.target.Rand()
	x0 := (target/(lineMaxValue-lineMinValue) - 0.5) * lineLength

	traj := model.Trajectory{
		TrialID: uuid.NewString(),
		Subject: fmt.Sprintf("subject-%02d", g.rng.IntN(subjectCount)),
		Target:  &target,
	}

	switch kind {
	case KindZigzag:
		speed := g.speed.Rand()
		traj.Samples = g.climb(lineY+overshoot, speed, func(t float64) float64 {
			return x0 + zigzagAmplitude*math.Sin(2*math.Pi*zigzagFrequency*t)
		})
		return Trial{Kind: kind, Expected: model.OutcomeFailed, Trajectory: traj}
	case KindTooFast:
		traj.Samples = g.climb(lineY+overshoot, tooFastSpeed, g.steady(x0))
		return Trial{Kind: kind, Expected: model.OutcomeFailed, Trajectory: traj}
	case KindShort:
		traj.Samples = g.climb(lineY*shortFraction, g.speed.Rand(), g.steady(x0))
		return Trial{Kind: kind, Expected: model.OutcomeIncomplete, Trajectory: traj}
	default:
		traj.Samples = g.climb(lineY+overshoot, g.speed.Rand(), g.steady(x0))
		return Trial{Kind: KindStraight, Expected: model.OutcomeSucceeded, Trajectory: traj}
	}
}

// steady keeps x near x0 with hand tremor.
func (g *Generator) steady(x0 float64) func(float64) float64 {
	return func(float64) float64 { return x0 + g.jitter.Rand() }
}

// climb samples a constant vertical speed from y=0 until y reaches top.
func (g *Generator) climb(top, speed float64, x func(t float64) float64) []model.Sample {
	n := int(math.Ceil(top/speed*sampleRate)) + 1
	samples := make([]model.Sample, 0, n)
	for i := 0; i < n; i++ {
		t := float64(i) / sampleRate
		samples = append(samples, model.Sample{X: x(t), Y: speed * t, T: t})
	}
	return samples
}

// generateTrials creates the configured number of trials.
func generateTrials(ctx context.Context, log logger.Logger, config *Config, stats *Stats) ([]Trial, error) {
	log.Info(ctx, "generating trajectories", logger.Int("trials", config.NumTrials))

	gen := NewGenerator(config.Seed)
	trials := make([]Trial, 0, config.NumTrials)
	for i := 0; i < config.NumTrials; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during generation: %w", err)
		}
		trials = append(trials, gen.Next())
	}

	stats.TrialsGenerated = len(trials)
	log.Info(ctx, "generated trajectories", logger.Int("count", len(trials)))
	return trials, nil
}
