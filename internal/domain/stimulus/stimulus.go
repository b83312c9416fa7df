// Package stimulus defines the capability the validation core needs from
// anything it shows or moves on screen.
package stimulus

import "sync"

// Presentable is implemented by feedback stimuli, guides and RSVP items.
type Presentable interface {
	SetVisible(visible bool)
	SetPosition(x, y float64)
}

// Tracker is a Presentable that only remembers its state. The replay service
// uses it in place of a rendered stimulus so results can report where
// feedback would have been shown.
type Tracker struct {
	mu      sync.Mutex
	name    string
	visible bool
	x, y    float64
	shows   int
}

// NewTracker returns a hidden tracker at the origin.
func NewTracker(name string) *Tracker { return &Tracker{name: name} }

// Name is the label given at construction.
func (t *Tracker) Name() string { return t.name }

// SetVisible implements Presentable.
func (t *Tracker) SetVisible(visible bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if visible && !t.visible {
		t.shows++
	}
	t.visible = visible
}

// SetPosition implements Presentable.
func (t *Tracker) SetPosition(x, y float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.x, t.y = x, y
}

// State returns visibility and position.
func (t *Tracker) State() (visible bool, x, y float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.visible, t.x, t.y
}

// Shows counts hidden-to-visible transitions.
func (t *Tracker) Shows() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.shows
}
