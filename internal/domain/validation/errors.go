package validation

import (
	"fmt"

	"github.com/okian/trajguard/internal/domain/verdict"
)

// Sentinel kinds for this package.
var (
	ErrUnknownAxis      = fmt.Errorf("%w: unknown axis", verdict.ErrInvalidOption)
	ErrUnsupportedAxis  = fmt.Errorf("%w: axis not supported by validator", verdict.ErrInvalidOption)
	ErrMissingSource    = fmt.Errorf("%w: color source is required", verdict.ErrInvalidOption)
	ErrInvalidMilestone = fmt.Errorf("%w: invalid milestones", verdict.ErrInvalidOption)
)
