// Package trial drives one trial: it feeds every frame to the validators, the
// number line detector and the timeline, and decides when the trial is over.
package trial

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/trajguard/internal/domain/crossing"
	"github.com/okian/trajguard/internal/domain/model"
	"github.com/okian/trajguard/internal/domain/timeline"
	"github.com/okian/trajguard/internal/domain/validation"
	"github.com/okian/trajguard/internal/domain/verdict"
	"github.com/okian/trajguard/pkg/logger"
)

// Timeline anchors dispatched by the pipeline.
const (
	TrialStarted        timeline.Anchor = "trial_started"
	FingerStartedMoving timeline.Anchor = "finger_started_moving"
	TrialSucceeded      timeline.Anchor = "trial_succeeded"
	TrialFailed         timeline.Anchor = "trial_failed"
	TrialEnded          timeline.Anchor = "trial_ended"
)

// TimedOut is reported when MaxDuration passes without a touch.
const TimedOut verdict.Code = "TrialTimeout"

// Status of the current trial.
type Status int

const (
	Idle Status = iota
	Running
	Succeeded
	Failed
	Ended // stopped without a verdict
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Ended:
		return "ended"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Config holds trial-level policies.
type Config struct {
	// MinMovementTime fails touches that come sooner than this after the
	// movement started.
	MinMovementTime float64
	// MovementThreshold is the distance from the first sample, in screen
	// units, that counts as having started to move.
	MovementThreshold float64
	// MaxDuration fails the trial if the line was not touched in time. Zero
	// disables it.
	MaxDuration float64
	// FeedbackHideDelay hides the detector feedback this long after the trial
	// ends. Zero keeps it visible.
	FeedbackHideDelay float64
}

// Outcome is the pipeline state after a frame.
type Outcome struct {
	Status  Status
	Verdict verdict.Verdict
}

// Done reports whether the trial is over.
func (o Outcome) Done() bool { return o.Status != Running && o.Status != Idle }

// movementAware validators restart their clock when the finger starts moving.
type movementAware interface {
	MovementStarted(ctx context.Context, t float64)
}

// Pipeline owns the per-trial components. Not safe for concurrent use; build
// one per goroutine.
type Pipeline struct {
	cfg      Config
	chain    *validation.Chain
	detector *crossing.LineDetector
	sched    *timeline.Scheduler
	log      logger.Logger
	onFrame  func(Outcome)

	status     Status
	verdict    verdict.Verdict
	t0         float64
	lastT      float64
	frames     int
	hasOrigin  bool
	originX    float64
	originY    float64
	moving     bool
	moveStartT float64
}

// Option applies a configuration option to the Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l.Named("trial")
		}
	}
}

// WithScheduler shares an existing scheduler, for example one that already
// holds recurring operations.
func WithScheduler(s *timeline.Scheduler) Option {
	return func(p *Pipeline) {
		if s != nil {
			p.sched = s
		}
	}
}

// WithDetector sets the number line detector. Without one the trial ends only
// on failure, timeout or End.
func WithDetector(d *crossing.LineDetector) Option {
	return func(p *Pipeline) {
		p.detector = d
	}
}

// WithFrameHook is called after every frame.
func WithFrameHook(hook func(Outcome)) Option {
	return func(p *Pipeline) {
		p.onFrame = hook
	}
}

// New builds a pipeline. chain may be nil for a trial without validators.
func New(cfg Config, chain *validation.Chain, opts ...Option) (*Pipeline, error) {
	if cfg.MinMovementTime < 0 || cfg.MovementThreshold < 0 || cfg.MaxDuration < 0 || cfg.FeedbackHideDelay < 0 {
		return nil, verdict.InvalidOption("trial timings must not be negative")
	}
	if chain == nil {
		chain = validation.NewChain()
	}
	p := &Pipeline{cfg: cfg, chain: chain, log: logger.Nop()}
	for _, opt := range opts {
		opt(p)
	}
	if p.sched == nil {
		p.sched = timeline.NewScheduler(timeline.WithLogger(p.log))
	}
	return p, nil
}

// Scheduler returns the timeline used by the pipeline. Register per-trial
// operations after Start.
func (p *Pipeline) Scheduler() *timeline.Scheduler { return p.sched }

// Detector returns the number line detector, nil if none.
func (p *Pipeline) Detector() *crossing.LineDetector { return p.detector }

// Chain returns the validators.
func (p *Pipeline) Chain() *validation.Chain { return p.chain }

// Status returns the current trial status.
func (p *Pipeline) Status() Status { return p.status }

// Verdict returns the verdict that ended the trial.
func (p *Pipeline) Verdict() verdict.Verdict { return p.verdict }

// Frames is the number of frames fed since Start.
func (p *Pipeline) Frames() int { return p.frames }

// LastTime is the time of the latest frame or event.
func (p *Pipeline) LastTime() float64 { return p.lastT }

// Start resets every component and dispatches the trial start at t0.
func (p *Pipeline) Start(ctx context.Context, t0 float64) error {
	p.chain.Reset(ctx, &t0)
	if p.detector != nil {
		p.detector.Reset(ctx, &t0)
	}
	p.sched.Reset(ctx)

	p.status = Running
	p.verdict = verdict.Pass()
	p.t0, p.lastT = t0, t0
	p.frames = 0
	p.hasOrigin, p.moving = false, false
	p.originX, p.originY, p.moveStartT = 0, 0, 0

	if err := p.sched.Dispatch(ctx, TrialStarted, t0); err != nil {
		return err
	}
	if p.detector != nil && p.cfg.FeedbackHideDelay > 0 {
		if fb := p.detector.Config().Feedback; fb != nil {
			_, err := p.sched.Register(ctx, TrialEnded.Plus(p.cfg.FeedbackHideDelay), func(context.Context, float64) {
				fb.SetVisible(false)
			}, timeline.Describe("hide feedback"))
			if err != nil {
				return err
			}
		}
	}
	p.log.Debug(ctx, "trial started", logger.Float64("t0", t0))
	return nil
}

// Frame feeds one sample. Once the trial is over further frames are a
// contract error.
func (p *Pipeline) Frame(ctx context.Context, x, y, t float64) (Outcome, error) {
	if p.status != Running {
		return p.outcome(), fmt.Errorf("%w: frame after trial %s", verdict.ErrContract, p.status)
	}
	if err := p.sched.Advance(ctx, t); err != nil {
		return p.outcome(), err
	}
	p.frames++
	p.lastT = t

	if err := p.trackMovement(ctx, x, y, t); err != nil {
		return p.outcome(), err
	}

	res, err := p.chain.Update(ctx, x, y, t)
	if err != nil {
		return p.outcome(), err
	}
	if res.Failed() {
		return p.finish(ctx, t, Failed, res)
	}

	if p.detector != nil {
		if _, err := p.detector.Update(ctx, x, y, t); err != nil {
			return p.outcome(), err
		}
		if p.detector.Touched() {
			moveTime := t - p.moveStartT
			if !p.moving {
				moveTime = t - p.t0
			}
			if moveTime < p.cfg.MinMovementTime {
				return p.finish(ctx, t, Failed, verdict.Fail("trial", verdict.TooFast, "Please move more slowly",
					"movement_time", moveTime))
			}
			return p.finish(ctx, t, Succeeded, verdict.Pass())
		}
	}

	if p.cfg.MaxDuration > 0 && t-p.t0 > p.cfg.MaxDuration {
		return p.finish(ctx, t, Failed, verdict.Fail("trial", TimedOut, "You did not reach the line in time",
			"max_duration", p.cfg.MaxDuration))
	}

	out := p.outcome()
	p.emit(out)
	return out, nil
}

// End stops a running trial without a verdict, for example when the recorded
// samples ran out.
func (p *Pipeline) End(ctx context.Context) error {
	if p.status != Running {
		return nil
	}
	p.status = Ended
	return p.sched.Dispatch(ctx, TrialEnded, p.lastT)
}

// Tick advances the timeline without a sample, so operations anchored on the
// end of the trial still fire between trials.
func (p *Pipeline) Tick(ctx context.Context, t float64) error {
	if p.status == Idle {
		return nil
	}
	if err := p.sched.Advance(ctx, t); err != nil {
		return err
	}
	if t > p.lastT {
		p.lastT = t
	}
	return nil
}

func (p *Pipeline) trackMovement(ctx context.Context, x, y, t float64) error {
	if p.moving {
		return nil
	}
	if !p.hasOrigin {
		p.originX, p.originY, p.hasOrigin = x, y, true
	}
	if math.Hypot(x-p.originX, y-p.originY) <= p.cfg.MovementThreshold {
		return nil
	}
	p.moving = true
	p.moveStartT = t
	for _, v := range p.chain.Validators() {
		if m, ok := v.(movementAware); ok {
			m.MovementStarted(ctx, t)
		}
	}
	return p.sched.Dispatch(ctx, FingerStartedMoving, t)
}

func (p *Pipeline) finish(ctx context.Context, t float64, status Status, v verdict.Verdict) (Outcome, error) {
	p.status = status
	p.verdict = v
	anchor := TrialSucceeded
	if status == Failed {
		anchor = TrialFailed
		p.log.Debug(ctx, "trial failed", logger.String("code", string(v.Code)), logger.String("source", v.Source), logger.Float64("t", t))
	}
	if err := p.sched.Dispatch(ctx, anchor, t); err != nil {
		return p.outcome(), err
	}
	if err := p.sched.Dispatch(ctx, TrialEnded, t); err != nil {
		return p.outcome(), err
	}
	out := p.outcome()
	p.emit(out)
	return out, nil
}

func (p *Pipeline) outcome() Outcome {
	return Outcome{Status: p.status, Verdict: p.verdict}
}

func (p *Pipeline) emit(o Outcome) {
	if p.onFrame != nil {
		p.onFrame(o)
	}
}

// Replay runs a recorded trajectory through the pipeline and summarizes it.
// Contract errors abort the replay and are returned alongside a result.
func (p *Pipeline) Replay(ctx context.Context, traj model.Trajectory) (model.Result, error) {
	res := model.Result{TrialID: traj.TrialID, Subject: traj.Subject}
	if err := p.Start(ctx, traj.Start()); err != nil {
		res.Outcome = model.OutcomeAborted
		res.Error = err.Error()
		return res, err
	}

	var replayErr error
	for _, s := range traj.Samples {
		if err := ctx.Err(); err != nil {
			replayErr = err
			break
		}
		out, err := p.Frame(ctx, s.X, s.Y, s.T)
		if err != nil {
			replayErr = err
			break
		}
		if out.Done() {
			break
		}
	}
	if replayErr == nil {
		replayErr = p.End(ctx)
	}

	res.Frames = p.frames
	res.EndTime = p.lastT
	switch p.status {
	case Succeeded:
		res.Outcome = model.OutcomeSucceeded
	case Failed:
		res.Outcome = model.OutcomeFailed
		res.Code = string(p.verdict.Code)
		res.Message = p.verdict.Message
		res.Source = p.verdict.Source
		res.Args = p.verdict.Args
	default:
		res.Outcome = model.OutcomeIncomplete
	}
	if replayErr != nil {
		res.Outcome = model.OutcomeAborted
		res.Error = replayErr.Error()
	}

	if p.detector != nil {
		res.Touched = p.detector.Touched()
		if v, ok := p.detector.LastTouchedValue(); ok {
			res.TouchValue = &v
			if traj.Target != nil {
				e := v - *traj.Target
				res.EndpointError = &e
			}
		}
	}
	return res, replayErr
}
