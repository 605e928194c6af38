package edit

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrUnknownTool    = errors.New("unknown tool")
	ErrEmptySelection = errors.New("nothing selected")
)

// Failure is the single failure type surfaced by the journal.
//
// A failure raised by an edit to explain a user mistake has Internal set
// to false. Faults of any other kind, including panics, are wrapped with
// Internal set to true so callers never handle raw faults.
type Failure struct {
	Message  string
	Cause    error
	Internal bool
}

// Failf creates a user-facing failure.
func Failf(format string, args ...any) *Failure {
	return &Failure{Message: fmt.Sprintf(format, args...)}
}

// Error implements error.
func (f *Failure) Error() string {
	if f.Message == "" && f.Cause != nil {
		return f.Cause.Error()
	}
	return f.Message
}

// Unwrap returns the underlying cause.
func (f *Failure) Unwrap() error {
	return f.Cause
}

// AsFailure unifies any error into a *Failure. A failure found anywhere in
// the chain is returned as is; any other error becomes an internal one.
func AsFailure(err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{Message: err.Error(), Cause: err, Internal: true}
}

// Run calls fn and converts a panic into an internal failure.
func Run(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			cause, ok := r.(error)
			if !ok {
				cause = fmt.Errorf("%v", r)
			}
			err = &Failure{Message: "internal error: " + cause.Error(), Cause: cause, Internal: true}
		}
	}()
	return fn()
}
