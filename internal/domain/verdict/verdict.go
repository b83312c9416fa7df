// Package verdict defines the per-frame outcome of trajectory validation and
// the error values used for caller contract violations.
package verdict

import (
	"fmt"
	"sort"
	"strings"
)

// Code identifies why a trajectory was rejected. Callers may define their own
// codes; the ones below are produced by the built-in validators.
type Code string

// Codes produced by the built-in validators.
const (
	TooSlowInstantaneous Code = "TooSlowInstantaneous"
	TooFast              Code = "TooFast"
	GradientViolation    Code = "GradientViolation"
	TooSlowGlobal        Code = "TooSlowGlobal"
	InvalidDirection     Code = "InvalidDirection"
	TooManyCurves        Code = "TooManyCurves"
)

// Verdict is the result of evaluating one frame. The zero value is a pass.
type Verdict struct {
	Code    Code
	Message string
	Args    map[string]float64
	Source  string
}

// Pass returns a passing verdict.
func Pass() Verdict { return Verdict{} }

// Fail builds a failing verdict. args are alternating key/value pairs and must
// be even in number.
func Fail(source string, code Code, message string, args ...any) Verdict {
	v := Verdict{Code: code, Message: message, Source: source}
	if len(args) > 0 {
		v.Args = make(map[string]float64, len(args)/2)
		for i := 0; i+1 < len(args); i += 2 {
			key, _ := args[i].(string)
			v.Args[key] = toFloat(args[i+1])
		}
	}
	return v
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case uint32:
		return float64(n)
	default:
		return 0
	}
}

// Failed reports whether the verdict rejects the trajectory.
func (v Verdict) Failed() bool { return v.Code != "" }

// Arg returns a named argument of a failing verdict.
func (v Verdict) Arg(name string) (float64, bool) {
	val, ok := v.Args[name]
	return val, ok
}

// Err converts a failing verdict into an *ExperimentError, nil on pass.
func (v Verdict) Err() error {
	if !v.Failed() {
		return nil
	}
	return &ExperimentError{Code: v.Code, Message: v.Message, Args: v.Args, Source: v.Source}
}

// ExperimentError carries a failed verdict through error-returning APIs.
type ExperimentError struct {
	Code    Code
	Message string
	Args    map[string]float64
	Source  string
}

func (e *ExperimentError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if len(e.Args) > 0 {
		keys := make([]string, 0, len(e.Args))
		for k := range e.Args {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%g", k, e.Args[k])
		}
		b.WriteString(")")
	}
	return b.String()
}

// Verdict turns the error back into a verdict value.
func (e *ExperimentError) Verdict() Verdict {
	return Verdict{Code: e.Code, Message: e.Message, Args: e.Args, Source: e.Source}
}
