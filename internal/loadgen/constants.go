package loadgen

import "time"

// Runner configuration constants.
const (
	PollInterval         = 100 * time.Millisecond
	PercentageMultiplier = 100
)

// Screen geometry matching the default service configuration: the pointer
// starts at y=0 and the 800 unit wide line sits at y=600.
const (
	lineY        = 600.0
	lineLength   = 800.0
	overshoot    = 40.0
	sampleRate   = 60.0
	lineMinValue = 0.0
	lineMaxValue = 100.0
)
