package timeline

import (
	"fmt"

	"github.com/okian/trajguard/internal/domain/verdict"
)

// Sentinel kinds for this package. All of them are caller contract
// violations.
var (
	ErrNoAnchor        = fmt.Errorf("%w: event has no anchor", verdict.ErrContract)
	ErrNilAction       = fmt.Errorf("%w: nil action", verdict.ErrContract)
	ErrAlreadyOccurred = fmt.Errorf("%w: anchor already occurred in this trial", verdict.ErrContract)
	ErrEmptySequence   = fmt.Errorf("%w: sequence has no items", verdict.ErrInvalidOption)
)
