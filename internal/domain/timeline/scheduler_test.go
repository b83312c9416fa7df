package timeline

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/trajguard/internal/domain/stimulus"
	"github.com/okian/trajguard/internal/domain/verdict"
	. "github.com/smartystreets/goconvey/convey"
)

const (
	started   Anchor = "trial_started"
	moving    Anchor = "finger_started_moving"
	terminate Anchor = "trial_ended"
)

type firings struct{ names []string }

func (f *firings) action(name string) Action {
	return func(context.Context, float64) { f.names = append(f.names, name) }
}

func TestEvent(t *testing.T) {
	Convey("Event arithmetic composes values", t, func() {
		base := started.Plus(0.5)
		later := base.Plus(0.25)
		So(base.Offset(), ShouldEqual, 0.5)
		So(later.Offset(), ShouldEqual, 0.75)
		So(later.Anchor(), ShouldEqual, started)
		So(base.String(), ShouldEqual, "trial_started+0.5")
		So(At(moving).String(), ShouldEqual, "finger_started_moving")
		So(moving.Plus(-1).String(), ShouldEqual, "finger_started_moving-1")
		So(Event{}.IsZero(), ShouldBeTrue)
	})
}

func TestCancelOn(t *testing.T) {
	ctx := context.Background()

	Convey("Given an operation at started+0.5 cancelled on trial end", t, func() {
		s := NewScheduler()
		f := &firings{}
		id, err := s.Register(ctx, started.Plus(0.5), f.action("op"), CancelOn(At(terminate)))
		So(err, ShouldBeNil)
		st, ok := s.State(id)
		So(ok, ShouldBeTrue)
		So(st, ShouldEqual, Pending)

		Convey("it fires when its time comes before the cancel event", func() {
			So(s.Dispatch(ctx, started, 1.5), ShouldBeNil)
			So(s.Advance(ctx, 1.9), ShouldBeNil)
			So(f.names, ShouldBeEmpty)
			So(s.Advance(ctx, 2.0), ShouldBeNil)
			So(f.names, ShouldResemble, []string{"op"})

			So(s.Dispatch(ctx, terminate, 2.5), ShouldBeNil)
			st, _ := s.State(id)
			So(st, ShouldEqual, Fired)
			So(f.names, ShouldHaveLength, 1)
		})

		Convey("it never fires when the cancel event comes first", func() {
			So(s.Dispatch(ctx, terminate, 1.0), ShouldBeNil)
			So(s.Dispatch(ctx, started, 1.5), ShouldBeNil)
			So(s.Advance(ctx, 5), ShouldBeNil)
			So(f.names, ShouldBeEmpty)
			st, _ := s.State(id)
			So(st, ShouldEqual, Cancelled)
		})

		Convey("it is cancelled when the cancel event occurs while it is pending", func() {
			So(s.Dispatch(ctx, started, 1.5), ShouldBeNil)
			So(s.Dispatch(ctx, terminate, 1.8), ShouldBeNil)
			So(s.Advance(ctx, 3), ShouldBeNil)
			So(f.names, ShouldBeEmpty)
			So(s.Len(), ShouldEqual, 0)
		})

		Convey("a cancel event resolving before the trigger wins even when both are due", func() {
			s2 := NewScheduler()
			f2 := &firings{}
			_, _ = s2.Register(ctx, started.Plus(0.5), f2.action("late"), CancelOn(moving.Plus(0.1)))
			So(s2.Dispatch(ctx, started, 1), ShouldBeNil)
			So(s2.Dispatch(ctx, moving, 1.2), ShouldBeNil)
			So(s2.Advance(ctx, 2), ShouldBeNil)
			So(f2.names, ShouldBeEmpty)
		})
	})
}

func TestFiringOrder(t *testing.T) {
	ctx := context.Background()

	Convey("Operations due in the same call fire in registration order", t, func() {
		s := NewScheduler()
		f := &firings{}
		_, _ = s.Register(ctx, started.Plus(0.3), f.action("a"))
		_, _ = s.Register(ctx, started.Plus(0.1), f.action("b"))
		_, _ = s.Register(ctx, At(started), f.action("c"))
		_, _ = s.Register(ctx, started.Plus(2), f.action("d"))

		So(s.Dispatch(ctx, started, 0), ShouldBeNil)
		So(f.names, ShouldResemble, []string{"c"})
		So(s.Advance(ctx, 1), ShouldBeNil)
		So(f.names, ShouldResemble, []string{"c", "a", "b"})
		So(s.Len(), ShouldEqual, 1)
	})

	Convey("Operations registered by an action wait for the next call", t, func() {
		s := NewScheduler()
		f := &firings{}
		_, _ = s.Register(ctx, At(started), func(ctx context.Context, _ float64) {
			_, _ = s.Register(ctx, At(started), f.action("nested"))
		})
		So(s.Dispatch(ctx, started, 0), ShouldBeNil)
		So(f.names, ShouldBeEmpty)
		So(s.Advance(ctx, 0), ShouldBeNil)
		So(f.names, ShouldResemble, []string{"nested"})
	})
}

func TestUnregister(t *testing.T) {
	ctx := context.Background()

	Convey("Given two operations on the same anchor", t, func() {
		s := NewScheduler()
		f := &firings{}
		first, _ := s.Register(ctx, At(moving), f.action("first"))
		second, _ := s.Register(ctx, At(moving), f.action("second"))

		Convey("an unregistered operation never fires", func() {
			So(s.Unregister(ctx, second, OperationID{}), ShouldEqual, 1)
			So(s.Dispatch(ctx, moving, 1), ShouldBeNil)
			So(f.names, ShouldResemble, []string{"first"})
			_, ok := s.State(second)
			So(ok, ShouldBeFalse)
		})

		Convey("unregistering from an earlier action takes precedence", func() {
			_, _ = s.Register(ctx, At(started), func(ctx context.Context, _ float64) {
				s.Unregister(ctx, first)
			})
			So(s.Dispatch(ctx, started, 0), ShouldBeNil)
			So(s.Dispatch(ctx, moving, 1), ShouldBeNil)
			So(f.names, ShouldResemble, []string{"second"})
		})
	})
}

func TestRecurringAndReset(t *testing.T) {
	ctx := context.Background()

	Convey("Given a recurring and a one-shot operation", t, func() {
		var fired, cancelled int
		s := NewScheduler(WithStateHook(func(_ OperationID, st State) {
			switch st {
			case Fired:
				fired++
			case Cancelled:
				cancelled++
			}
		}))
		f := &firings{}
		rec, _ := s.Register(ctx, At(started), f.action("every trial"), Recurring())
		_, _ = s.Register(ctx, At(started), f.action("once"))

		So(s.Dispatch(ctx, started, 0), ShouldBeNil)
		So(s.Advance(ctx, 1), ShouldBeNil)
		So(f.names, ShouldResemble, []string{"every trial", "once"})
		st, _ := s.State(rec)
		So(st, ShouldEqual, Fired)

		Convey("reset re-arms the recurring one and drops the rest", func() {
			s.Reset(ctx)
			s.Reset(ctx)
			So(s.Len(), ShouldEqual, 1)
			st, _ := s.State(rec)
			So(st, ShouldEqual, Pending)
			_, ok := s.Occurred(started)
			So(ok, ShouldBeFalse)

			So(s.Dispatch(ctx, started, 0), ShouldBeNil)
			So(f.names, ShouldResemble, []string{"every trial", "once", "every trial"})
			So(fired, ShouldEqual, 3)
			So(cancelled, ShouldEqual, 0)
		})

		Convey("a cancelled recurring operation comes back after reset", func() {
			s.Reset(ctx)
			rec2, _ := s.Register(ctx, At(moving), f.action("move"), Recurring(), CancelOn(At(terminate)))
			So(s.Dispatch(ctx, terminate, 0), ShouldBeNil)
			st, _ := s.State(rec2)
			So(st, ShouldEqual, Cancelled)
			So(cancelled, ShouldEqual, 1)
			s.Reset(ctx)
			st, _ = s.State(rec2)
			So(st, ShouldEqual, Pending)
		})
	})
}

func TestSchedulerContract(t *testing.T) {
	ctx := context.Background()

	Convey("Contract violations are errors", t, func() {
		s := NewScheduler()
		_, err := s.Register(ctx, Event{}, func(context.Context, float64) {})
		So(errors.Is(err, ErrNoAnchor), ShouldBeTrue)
		_, err = s.Register(ctx, At(started), nil)
		So(errors.Is(err, ErrNilAction), ShouldBeTrue)

		So(s.Dispatch(ctx, started, 2), ShouldBeNil)
		err = s.Advance(ctx, 1)
		So(errors.Is(err, verdict.ErrOutOfOrderTime), ShouldBeTrue)
		err = s.Dispatch(ctx, started, 3)
		So(errors.Is(err, ErrAlreadyOccurred), ShouldBeTrue)
		So(errors.Is(err, verdict.ErrContract), ShouldBeTrue)
		So(s.Dispatch(ctx, "", 3), ShouldEqual, ErrNoAnchor)

		t0, ok := s.Occurred(started)
		So(ok, ShouldBeTrue)
		So(t0, ShouldEqual, 2.0)
		at, ok := s.Resolve(started.Plus(0.5))
		So(ok, ShouldBeTrue)
		So(at, ShouldEqual, 2.5)
		So(s.Now(), ShouldEqual, 2.0)
	})

	Convey("Custom id generators are used", t, func() {
		var n byte
		s := NewScheduler(WithIDGenerator(func() OperationID {
			n++
			return OperationID{15: n}
		}))
		id, _ := s.Register(context.Background(), At(started), func(context.Context, float64) {})
		So(id.String(), ShouldEqual, "00000000-0000-0000-0000-000000000001")
		So(Fired.String(), ShouldEqual, "fired")
	})
}

func TestSequence(t *testing.T) {
	ctx := context.Background()

	Convey("Given a two-item sequence ending on trial end", t, func() {
		s := NewScheduler()
		a, b := stimulus.NewTracker("a"), stimulus.NewTracker("b")
		q, err := NewSequence(s, At(started), At(terminate), []SequenceItem{
			{Stimulus: a, Onset: 0, Duration: 0.5},
			{Stimulus: b, Onset: 0.5, Duration: 0.5},
		})
		So(err, ShouldBeNil)
		So(q.Arm(ctx), ShouldBeNil)
		So(len(q.IDs()), ShouldEqual, 5)

		visible := func(tr *stimulus.Tracker) bool {
			v, _, _ := tr.State()
			return v
		}

		So(s.Dispatch(ctx, started, 1), ShouldBeNil)
		So(visible(a), ShouldBeTrue)
		So(visible(b), ShouldBeFalse)

		So(s.Advance(ctx, 1.5), ShouldBeNil)
		So(visible(a), ShouldBeFalse)
		So(visible(b), ShouldBeTrue)

		Convey("terminating early hides everything and drops pending operations", func() {
			So(s.Dispatch(ctx, terminate, 1.7), ShouldBeNil)
			So(visible(b), ShouldBeFalse)
			So(s.Len(), ShouldEqual, 0)
			So(q.IDs(), ShouldBeEmpty)
			So(s.Advance(ctx, 3), ShouldBeNil)
			So(b.Shows(), ShouldEqual, 1)
		})

		Convey("running to completion hides the last item", func() {
			So(s.Advance(ctx, 2), ShouldBeNil)
			So(visible(b), ShouldBeFalse)
		})
	})

	Convey("A recurring arm re-registers the sequence every trial", t, func() {
		s := NewScheduler()
		item := stimulus.NewTracker("digit")
		q, _ := NewSequence(s, moving.Plus(0.2), Event{}, []SequenceItem{{Stimulus: item}})
		_, err := s.Register(ctx, At(started), func(ctx context.Context, _ float64) {
			_ = q.Arm(ctx)
		}, Recurring())
		So(err, ShouldBeNil)

		for trial := 0; trial < 2; trial++ {
			s.Reset(ctx)
			So(s.Dispatch(ctx, started, 0), ShouldBeNil)
			So(s.Dispatch(ctx, moving, 1), ShouldBeNil)
			So(s.Advance(ctx, 1.2), ShouldBeNil)
		}
		So(item.Shows(), ShouldEqual, 2)
	})

	Convey("Invalid sequences are rejected", t, func() {
		s := NewScheduler()
		_, err := NewSequence(s, At(started), Event{}, nil)
		So(errors.Is(err, ErrEmptySequence), ShouldBeTrue)
		_, err = NewSequence(s, Event{}, Event{}, []SequenceItem{{Stimulus: stimulus.NewTracker("x")}})
		So(err, ShouldNotBeNil)
		_, err = NewSequence(s, At(started), Event{}, []SequenceItem{{}})
		So(errors.Is(err, verdict.ErrInvalidOption), ShouldBeTrue)
	})
}
