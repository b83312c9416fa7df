package verdict

import (
	"errors"
	"fmt"
)

// Sentinel kinds for caller contract violations. They are never reported as
// verdicts.
var (
	ErrContract       = errors.New("contract violation")
	ErrOutOfOrderTime = fmt.Errorf("%w: time went backwards", ErrContract)
	ErrInvalidOption  = fmt.Errorf("%w: invalid option", ErrContract)
)

// InvalidOption wraps ErrInvalidOption with the offending option.
func InvalidOption(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidOption, fmt.Sprintf(format, args...))
}
