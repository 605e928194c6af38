package format

import (
	"bytes"
	"fmt"
	"io"
)

// Codec reads and writes element trees.
type Codec interface {
	// Name returns the codec name used in configuration ("xml", "json").
	Name() string

	// Decode parses a whole document and returns its root element.
	Decode(r io.Reader) (*Element, error)

	// Encode writes root as a whole document.
	Encode(w io.Writer, root *Element) error
}

// CodecFor returns the codec registered under name.
func CodecFor(name string, indent bool) (Codec, error) {
	switch name {
	case "xml", "":
		return &XMLCodec{Indent: indent}, nil
	case "json":
		return &JSONCodec{Indent: indent}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

// Sniff picks a codec by looking at the first non-space byte of data.
func Sniff(data []byte) Codec {
	trimmed := bytes.TrimLeft(data, " \t\r\n\ufeff")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return &JSONCodec{}
	}
	return &XMLCodec{}
}

// DecodeBytes sniffs the codec and decodes data.
func DecodeBytes(data []byte) (*Element, Codec, error) {
	c := Sniff(data)
	root, err := c.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, c, err
	}
	return root, c, nil
}
