package timeline

import "github.com/okian/trajguard/pkg/logger"

// Option applies a configuration option to the Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l.Named("timeline")
		}
	}
}

// WithStateHook is called whenever an operation fires or is cancelled.
func WithStateHook(hook func(id OperationID, state State)) Option {
	return func(s *Scheduler) {
		s.hook = hook
	}
}

// WithIDGenerator replaces the random operation id source.
func WithIDGenerator(gen func() OperationID) Option {
	return func(s *Scheduler) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// RegisterOption tunes a single registration.
type RegisterOption func(*operation)

// Recurring keeps the operation registered across Reset. It fires at most
// once per trial.
func Recurring() RegisterOption {
	return func(op *operation) {
		op.recurring = true
	}
}

// CancelOn cancels the operation if e occurs before the operation fired.
func CancelOn(e Event) RegisterOption {
	return func(op *operation) {
		op.cancelOn = e
	}
}

// Describe attaches a label used in logs.
func Describe(description string) RegisterOption {
	return func(op *operation) {
		op.description = description
	}
}
