package format

import (
	"errors"
	"fmt"
)

// Errors returned by format operations.
var (
	// ErrMalformed indicates the input could not be parsed into an element tree.
	ErrMalformed = errors.New("malformed document")

	// ErrEmptyDocument indicates the input held no root element.
	ErrEmptyDocument = errors.New("empty document")

	// ErrUnknownFormat indicates the root namespace is not a known format.
	ErrUnknownFormat = errors.New("unknown document format")

	// ErrUnknownCodec indicates a codec name that is not registered.
	ErrUnknownCodec = errors.New("unknown codec")
)

// AttrError describes an attribute whose value could not be parsed.
type AttrError struct {
	Element string
	Attr    string
	Value   string
	Err     error
}

func (e *AttrError) Error() string {
	return fmt.Sprintf("element %s: attribute %s=%q: %v", e.Element, e.Attr, e.Value, e.Err)
}

func (e *AttrError) Unwrap() error {
	return e.Err
}
