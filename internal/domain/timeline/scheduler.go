package timeline

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/okian/trajguard/internal/domain/verdict"
	"github.com/okian/trajguard/pkg/logger"
)

// OperationID identifies a registered operation. It is opaque to callers.
type OperationID uuid.UUID

func (id OperationID) String() string { return uuid.UUID(id).String() }

// Action runs when an operation fires. now is the trial clock at firing.
type Action func(ctx context.Context, now float64)

// State of an operation within the current trial.
type State int

const (
	Pending State = iota
	Fired
	Cancelled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Fired:
		return "fired"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type operation struct {
	id          OperationID
	trigger     Event
	cancelOn    Event
	action      Action
	recurring   bool
	description string
	state       State
}

func (op *operation) label() string {
	if op.description != "" {
		return op.description
	}
	return op.trigger.String()
}

// Scheduler fires operations at anchor-relative times on the trial clock.
//
// The clock is driven by Dispatch, when a milestone occurs, and by Advance,
// once per frame. Operations that become due during one call fire in
// registration order. An operation whose cancel-on event resolves before its
// trigger is cancelled and never fires; a tie goes to firing. Operations
// registered from inside an action are first considered on the next call.
//
// Not safe for concurrent use.
type Scheduler struct {
	log   logger.Logger
	hook  func(OperationID, State)
	newID func() OperationID

	ops      []*operation
	byID     map[OperationID]*operation
	finished map[OperationID]State
	occurred map[Anchor]float64
	now      float64
	started  bool
}

// NewScheduler returns an empty scheduler.
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		log:      logger.Nop(),
		newID:    func() OperationID { return OperationID(uuid.New()) },
		byID:     make(map[OperationID]*operation),
		finished: make(map[OperationID]State),
		occurred: make(map[Anchor]float64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register schedules action at trigger.
func (s *Scheduler) Register(ctx context.Context, trigger Event, action Action, opts ...RegisterOption) (OperationID, error) {
	if trigger.IsZero() {
		return OperationID{}, ErrNoAnchor
	}
	if action == nil {
		return OperationID{}, ErrNilAction
	}
	op := &operation{id: s.newID(), trigger: trigger, action: action}
	for _, opt := range opts {
		opt(op)
	}
	s.ops = append(s.ops, op)
	s.byID[op.id] = op
	s.log.Debug(ctx, "operation registered",
		logger.String("id", op.id.String()),
		logger.String("trigger", trigger.String()),
		logger.Bool("recurring", op.recurring),
	)
	return op.id, nil
}

// Unregister removes operations by id so they never fire. Unknown ids are
// ignored. It returns how many operations were removed.
func (s *Scheduler) Unregister(ctx context.Context, ids ...OperationID) int {
	removed := 0
	for _, id := range ids {
		op, ok := s.byID[id]
		if !ok {
			continue
		}
		delete(s.byID, id)
		removed++
		s.log.Debug(ctx, "operation unregistered", logger.String("id", id.String()), logger.String("op", op.label()))
	}
	if removed > 0 {
		s.compact()
	}
	return removed
}

// State returns the state of an operation in the current trial. Unregistered
// and unknown ids report false.
func (s *Scheduler) State(id OperationID) (State, bool) {
	if op, ok := s.byID[id]; ok {
		return op.state, true
	}
	st, ok := s.finished[id]
	return st, ok
}

// Len is the number of registered operations.
func (s *Scheduler) Len() int { return len(s.byID) }

// Now is the current trial clock.
func (s *Scheduler) Now() float64 { return s.now }

// Occurred returns the time an anchor occurred in the current trial.
func (s *Scheduler) Occurred(a Anchor) (float64, bool) {
	t, ok := s.occurred[a]
	return t, ok
}

// Resolve returns the absolute time of e if its anchor occurred.
func (s *Scheduler) Resolve(e Event) (float64, bool) {
	t, ok := s.occurred[e.anchor]
	if !ok {
		return 0, false
	}
	return t + e.offset, true
}

// Dispatch records that anchor a occurred at t and advances the clock to t.
func (s *Scheduler) Dispatch(ctx context.Context, a Anchor, t float64) error {
	if a == "" {
		return ErrNoAnchor
	}
	if err := s.checkTime(t); err != nil {
		return err
	}
	if _, ok := s.occurred[a]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyOccurred, a)
	}
	s.occurred[a] = t
	s.log.Debug(ctx, "event dispatched", logger.String("anchor", string(a)), logger.Float64("t", t))
	s.advance(ctx, t)
	return nil
}

// Advance moves the clock to t and fires whatever became due.
func (s *Scheduler) Advance(ctx context.Context, t float64) error {
	if err := s.checkTime(t); err != nil {
		return err
	}
	s.advance(ctx, t)
	return nil
}

// Reset starts a new trial: anchors are forgotten, non-recurring operations are
// dropped and recurring ones are pending again.
func (s *Scheduler) Reset(ctx context.Context) {
	kept := s.ops[:0]
	for _, op := range s.ops {
		if !op.recurring {
			delete(s.byID, op.id)
			continue
		}
		op.state = Pending
		kept = append(kept, op)
	}
	for i := len(kept); i < len(s.ops); i++ {
		s.ops[i] = nil
	}
	s.ops = kept
	clear(s.finished)
	clear(s.occurred)
	s.now = 0
	s.started = false
	s.log.Debug(ctx, "scheduler reset", logger.Int("recurring", len(kept)))
}

func (s *Scheduler) checkTime(t float64) error {
	if math.IsNaN(t) {
		return fmt.Errorf("%w: t is NaN", verdict.ErrOutOfOrderTime)
	}
	if s.started && t < s.now {
		return fmt.Errorf("%w: got t=%v after t=%v", verdict.ErrOutOfOrderTime, t, s.now)
	}
	return nil
}

func (s *Scheduler) advance(ctx context.Context, t float64) {
	s.now = t
	s.started = true

	snapshot := make([]*operation, len(s.ops))
	copy(snapshot, s.ops)

	changed := false
	for _, op := range snapshot {
		if !s.live(op) {
			continue
		}
		due, ok := s.Resolve(op.trigger)
		if !ok || due > t {
			continue
		}
		if cancelAt, ok := s.resolveCancel(op); ok && cancelAt < due {
			continue
		}
		op.state = Fired
		s.log.Debug(ctx, "operation fired", logger.String("op", op.label()), logger.Float64("due", due), logger.Float64("t", t))
		s.notify(op.id, Fired)
		op.action(ctx, t)
		changed = true
	}

	for _, op := range snapshot {
		if !s.live(op) {
			continue
		}
		if cancelAt, ok := s.resolveCancel(op); ok && cancelAt <= t {
			op.state = Cancelled
			s.log.Debug(ctx, "operation cancelled", logger.String("op", op.label()), logger.String("on", op.cancelOn.String()))
			s.notify(op.id, Cancelled)
			changed = true
		}
	}

	if changed {
		s.compact()
	}
}

// live reports whether op is still registered and pending.
func (s *Scheduler) live(op *operation) bool {
	_, registered := s.byID[op.id]
	return registered && op.state == Pending
}

func (s *Scheduler) resolveCancel(op *operation) (float64, bool) {
	if op.cancelOn.IsZero() {
		return 0, false
	}
	return s.Resolve(op.cancelOn)
}

// compact drops non-recurring operations that are done and operations that
// were unregistered, keeping registration order.
func (s *Scheduler) compact() {
	kept := s.ops[:0]
	for _, op := range s.ops {
		if _, registered := s.byID[op.id]; !registered {
			continue
		}
		if op.state != Pending && !op.recurring {
			delete(s.byID, op.id)
			s.finished[op.id] = op.state
			continue
		}
		kept = append(kept, op)
	}
	for i := len(kept); i < len(s.ops); i++ {
		s.ops[i] = nil
	}
	s.ops = kept
}

func (s *Scheduler) notify(id OperationID, st State) {
	if s.hook != nil {
		s.hook(id, st)
	}
}
