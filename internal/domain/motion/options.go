package motion

import "github.com/okian/trajguard/pkg/logger"

// Option applies a configuration option to the SpeedWindow.
type Option func(*SpeedWindow)

// WithUnitsPerMM sets how many screen units make one millimetre.
func WithUnitsPerMM(u float64) Option {
	return func(w *SpeedWindow) {
		w.unitsPerMM = u
	}
}

// WithInterval sets the calculation interval in seconds. Zero means speeds are
// computed between consecutive samples.
func WithInterval(seconds float64) Option {
	return func(w *SpeedWindow) {
		w.interval = seconds
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(w *SpeedWindow) {
		if l != nil {
			w.log = l.Named("speed_window")
		}
	}
}
