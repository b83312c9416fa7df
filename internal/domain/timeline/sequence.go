package timeline

import (
	"context"

	"github.com/okian/trajguard/internal/domain/stimulus"
	"github.com/okian/trajguard/internal/domain/verdict"
	"github.com/okian/trajguard/pkg/logger"
)

// SequenceItem is one stimulus of a rapid serial presentation. It is shown at
// Onset seconds after the start event and hidden Duration seconds later. A
// zero Duration leaves it visible until the sequence terminates.
type SequenceItem struct {
	Stimulus stimulus.Presentable
	Onset    float64
	Duration float64
}

// Sequence presents items one after the other relative to a start event. When
// the terminate event occurs, pending show and hide operations are dropped and
// every item is hidden.
type Sequence struct {
	sched     *Scheduler
	start     Event
	terminate Event
	items     []SequenceItem
	log       logger.Logger

	ids []OperationID
}

// NewSequence validates the items. terminate may be the zero Event.
func NewSequence(sched *Scheduler, start, terminate Event, items []SequenceItem) (*Sequence, error) {
	if start.IsZero() {
		return nil, ErrNoAnchor
	}
	if len(items) == 0 {
		return nil, ErrEmptySequence
	}
	for i, it := range items {
		if it.Stimulus == nil {
			return nil, verdict.InvalidOption("sequence item %d has no stimulus", i)
		}
		if it.Onset < 0 || it.Duration < 0 {
			return nil, verdict.InvalidOption("sequence item %d has negative timing", i)
		}
	}
	return &Sequence{
		sched:     sched,
		start:     start,
		terminate: terminate,
		items:     append([]SequenceItem(nil), items...),
		log:       sched.log.Named("sequence"),
	}, nil
}

// Arm registers the operations of one trial. Call it after the scheduler was
// reset, or from a recurring operation so it happens every trial.
func (q *Sequence) Arm(ctx context.Context) error {
	q.hideAll()
	q.ids = q.ids[:0]

	var opts []RegisterOption
	if !q.terminate.IsZero() {
		opts = append(opts, CancelOn(q.terminate))
	}
	for i := range q.items {
		item := q.items[i]
		id, err := q.sched.Register(ctx, q.start.Plus(item.Onset), func(context.Context, float64) {
			item.Stimulus.SetVisible(true)
		}, append(opts, Describe("sequence show"))...)
		if err != nil {
			return err
		}
		q.ids = append(q.ids, id)

		if item.Duration > 0 {
			id, err = q.sched.Register(ctx, q.start.Plus(item.Onset+item.Duration), func(context.Context, float64) {
				item.Stimulus.SetVisible(false)
			}, append(opts, Describe("sequence hide"))...)
			if err != nil {
				return err
			}
			q.ids = append(q.ids, id)
		}
	}

	if !q.terminate.IsZero() {
		id, err := q.sched.Register(ctx, q.terminate, func(ctx context.Context, _ float64) {
			q.Terminate(ctx)
		}, Describe("sequence terminate"))
		if err != nil {
			return err
		}
		q.ids = append(q.ids, id)
	}
	q.log.Debug(ctx, "sequence armed", logger.Int("items", len(q.items)), logger.String("start", q.start.String()))
	return nil
}

// Terminate drops every operation of the sequence and hides all items.
func (q *Sequence) Terminate(ctx context.Context) {
	n := q.sched.Unregister(ctx, q.ids...)
	q.ids = q.ids[:0]
	q.hideAll()
	q.log.Debug(ctx, "sequence terminated", logger.Int("dropped", n))
}

// IDs returns the operations registered by the last Arm.
func (q *Sequence) IDs() []OperationID {
	return append([]OperationID(nil), q.ids...)
}

func (q *Sequence) hideAll() {
	for _, it := range q.items {
		it.Stimulus.SetVisible(false)
	}
}
