package document

import (
	"errors"
	"fmt"

	"github.com/dshills/zomeedit/internal/format"
)

// Errors returned by document operations.
var (
	// ErrReentrant indicates a change listener tried to record an edit on
	// the document that is notifying it.
	ErrReentrant = errors.New("reentrant performAndRecord")

	// ErrUnknownAction indicates an action name with no command behind it.
	ErrUnknownAction = errors.New("unknown action")

	// ErrNoHistory indicates a document element without an edit history.
	ErrNoHistory = errors.New("document has no edit history")
)

const reportAddress = "bugs@zomeedit.dev"

// LoadError reports a document that could not be opened. TooNew is set
// when the file was written by a newer core, which is the likely reason.
type LoadError struct {
	TooNew      bool
	FileVersion string
	ToolVersion string
	Err         error
}

func newLoadError(h format.Header, coreVersion string, err error) *LoadError {
	return &LoadError{
		TooNew:      format.FileIsTooNew(h.CoreVersion, coreVersion),
		FileVersion: h.CoreVersion,
		ToolVersion: h.ToolVersion(),
		Err:         err,
	}
}

// Message returns the text shown to the user.
func (e *LoadError) Message() string {
	if e.TooNew {
		return "This file was authored with a newer version, " + e.ToolVersion
	}
	return "There was a problem opening this file.  Please send the file to " + reportAddress + "."
}

// Error implements error.
func (e *LoadError) Error() string {
	if e.Err == nil {
		return e.Message()
	}
	return fmt.Sprintf("%s: %v", e.Message(), e.Err)
}

// Unwrap returns the underlying error.
func (e *LoadError) Unwrap() error {
	return e.Err
}
