// Package timeline schedules operations relative to named trial milestones.
package timeline

import (
	"strconv"
)

// Anchor names a milestone of the trial timeline, such as the trial start.
type Anchor string

// Event is an anchor plus an additive offset in seconds. It resolves to an
// absolute time only once its anchor has occurred. Events are values; Plus
// returns a new one.
type Event struct {
	anchor Anchor
	offset float64
}

// At returns the event that happens exactly when the anchor occurs.
func At(a Anchor) Event { return Event{anchor: a} }

// Plus returns the anchor offset by seconds.
func (a Anchor) Plus(seconds float64) Event { return Event{anchor: a, offset: seconds} }

// Plus returns a new event offset by a further seconds.
func (e Event) Plus(seconds float64) Event {
	return Event{anchor: e.anchor, offset: e.offset + seconds}
}

// Anchor returns the milestone the event is relative to.
func (e Event) Anchor() Anchor { return e.anchor }

// Offset returns the offset from the anchor in seconds.
func (e Event) Offset() float64 { return e.offset }

// IsZero reports whether the event has no anchor.
func (e Event) IsZero() bool { return e.anchor == "" }

func (e Event) String() string {
	if e.offset == 0 {
		return string(e.anchor)
	}
	sign := "+"
	if e.offset < 0 {
		sign = ""
	}
	return string(e.anchor) + sign + strconv.FormatFloat(e.offset, 'g', -1, 64)
}
