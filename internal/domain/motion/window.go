// Package motion tracks recent pointer samples and derives instantaneous
// speeds from them.
package motion

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/trajguard/internal/domain/verdict"
	"github.com/okian/trajguard/pkg/logger"
)

// Sample is one pointer reading in physical units (mm). Distance is the path
// length from the previous sample.
type Sample struct {
	X, Y, T  float64
	Distance float64
}

// SpeedWindow keeps the samples of the last calculation interval plus the
// most recently evicted one, which serves as the left endpoint for speed
// calculations. Not safe for concurrent use.
type SpeedWindow struct {
	unitsPerMM float64
	interval   float64
	log        logger.Logger

	t0     float64
	hasT0  bool
	recent []Sample
	pre    Sample
	hasPre bool
}

// NewSpeedWindow creates a window. Invalid options are reported here and never
// later.
func NewSpeedWindow(opts ...Option) (*SpeedWindow, error) {
	w := &SpeedWindow{
		unitsPerMM: 1,
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if !(w.unitsPerMM > 0) {
		return nil, verdict.InvalidOption("units per mm must be positive, got %v", w.unitsPerMM)
	}
	if w.interval < 0 || math.IsNaN(w.interval) {
		return nil, verdict.InvalidOption("calculation interval must not be negative, got %v", w.interval)
	}
	return w, nil
}

// Reset starts a new trial. A nil t0 means the first pushed sample defines the
// trial start.
func (w *SpeedWindow) Reset(_ context.Context, t0 *float64) {
	w.recent = w.recent[:0]
	w.pre = Sample{}
	w.hasPre = false
	w.hasT0 = t0 != nil
	w.t0 = 0
	if t0 != nil {
		w.t0 = *t0
	}
}

// Push records a sample given in screen units. Time must not decrease.
func (w *SpeedWindow) Push(ctx context.Context, x, y, t float64) error {
	if err := w.checkTime(t); err != nil {
		w.log.Warn(ctx, "sample rejected", logger.Float64("t", t), logger.Error(err))
		return err
	}
	if !w.hasT0 {
		w.t0 = t
		w.hasT0 = true
	}

	x /= w.unitsPerMM
	y /= w.unitsPerMM

	var dist float64
	if n := len(w.recent); n > 0 {
		last := w.recent[n-1]
		dist = math.Hypot(x-last.X, y-last.Y)
	}

	// Evict before appending so the new sample always survives.
	w.evictUpTo(t - w.interval)
	w.recent = append(w.recent, Sample{X: x, Y: y, T: t, Distance: dist})
	return nil
}

func (w *SpeedWindow) checkTime(t float64) error {
	if math.IsNaN(t) {
		return fmt.Errorf("%w: t is NaN", verdict.ErrOutOfOrderTime)
	}
	var prev float64
	switch {
	case len(w.recent) > 0:
		prev = w.recent[len(w.recent)-1].T
	case w.hasT0:
		prev = w.t0
	default:
		return nil
	}
	if t < prev {
		return fmt.Errorf("%w: got t=%v after t=%v", verdict.ErrOutOfOrderTime, t, prev)
	}
	return nil
}

// evictUpTo drops every sample with T <= threshold and keeps the newest of
// them as the pre-window sample.
func (w *SpeedWindow) evictUpTo(threshold float64) {
	cut := -1
	for i, s := range w.recent {
		if s.T > threshold {
			break
		}
		cut = i
	}
	if cut < 0 {
		return
	}
	w.pre = w.recent[cut]
	w.hasPre = true
	w.recent = append(w.recent[:0], w.recent[cut+1:]...)
}

// Interval is the configured calculation interval in seconds.
func (w *SpeedWindow) Interval() float64 { return w.interval }

// UnitsPerMM is the configured screen units per millimetre.
func (w *SpeedWindow) UnitsPerMM() float64 { return w.unitsPerMM }

// Len is the number of samples inside the window, excluding the pre-window
// sample.
func (w *SpeedWindow) Len() int { return len(w.recent) }

// Samples returns a copy of the samples inside the window, oldest first.
func (w *SpeedWindow) Samples() []Sample {
	out := make([]Sample, len(w.recent))
	copy(out, w.recent)
	return out
}

// Newest returns the latest sample.
func (w *SpeedWindow) Newest() (Sample, bool) {
	if len(w.recent) == 0 {
		return Sample{}, false
	}
	return w.recent[len(w.recent)-1], true
}

// TimeInTrial is the newest sample time minus the trial start.
func (w *SpeedWindow) TimeInTrial() (float64, bool) {
	newest, ok := w.Newest()
	if !ok || !w.hasT0 {
		return 0, false
	}
	return newest.T - w.t0, true
}

// LastInterval is the time between the pre-window sample and the newest one.
func (w *SpeedWindow) LastInterval() (float64, bool) {
	if !w.hasPre {
		return 0, false
	}
	return w.recent[len(w.recent)-1].T - w.pre.T, true
}

// XSpeed is the net x displacement over LastInterval, in mm/s.
func (w *SpeedWindow) XSpeed() (float64, bool) {
	dt, ok := w.elapsed()
	if !ok {
		return 0, false
	}
	return (w.recent[len(w.recent)-1].X - w.pre.X) / dt, true
}

// YSpeed is the net y displacement over LastInterval, in mm/s.
func (w *SpeedWindow) YSpeed() (float64, bool) {
	dt, ok := w.elapsed()
	if !ok {
		return 0, false
	}
	return (w.recent[len(w.recent)-1].Y - w.pre.Y) / dt, true
}

// XYSpeed is the path length travelled inside the window over LastInterval,
// in mm/s.
func (w *SpeedWindow) XYSpeed() (float64, bool) {
	dt, ok := w.elapsed()
	if !ok {
		return 0, false
	}
	var dist float64
	for _, s := range w.recent {
		dist += s.Distance
	}
	return dist / dt, true
}

// elapsed is LastInterval, unavailable when it is zero.
func (w *SpeedWindow) elapsed() (float64, bool) {
	dt, ok := w.LastInterval()
	if !ok || dt <= 0 {
		return 0, false
	}
	return dt, true
}
