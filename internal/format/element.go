// Package format defines the serialized shape of a document: an ordered
// tree of named elements carrying string attributes, plus the codecs that
// move that tree in and out of bytes.
//
// The tree deliberately keeps attribute order and raw qualified names so
// that an element the runtime does not understand can be written back
// exactly as it was read.
package format

import (
	"strconv"
	"strings"
)

// Attr is a single name/value attribute.
type Attr struct {
	Name  string
	Value string
}

// Element is a node of the serialized tree.
type Element struct {
	// Name is the qualified element name as written (e.g. "zome:document").
	Name string

	// Attrs holds attributes in document order.
	Attrs []Attr

	// Children holds child elements in document order.
	Children []*Element

	// Text is the character content of a leaf element.
	Text string
}

// NewElement creates an empty element with the given name.
func NewElement(name string) *Element {
	return &Element{Name: name}
}

// LocalName returns the element name without any namespace prefix.
func (e *Element) LocalName() string {
	if i := strings.IndexByte(e.Name, ':'); i >= 0 {
		return e.Name[i+1:]
	}
	return e.Name
}

// Prefix returns the namespace prefix of the element name, if any.
func (e *Element) Prefix() string {
	if i := strings.IndexByte(e.Name, ':'); i >= 0 {
		return e.Name[:i]
	}
	return ""
}

// Lookup returns the value of the named attribute and whether it exists.
func (e *Element) Lookup(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Attr returns the value of the named attribute, or "" if absent.
func (e *Element) Attr(name string) string {
	v, _ := e.Lookup(name)
	return v
}

// SetAttr sets an attribute, replacing an existing value in place so that
// attribute order is preserved.
func (e *Element) SetAttr(name, value string) *Element {
	for i := range e.Attrs {
		if e.Attrs[i].Name == name {
			e.Attrs[i].Value = value
			return e
		}
	}
	e.Attrs = append(e.Attrs, Attr{Name: name, Value: value})
	return e
}

// SetInt sets an integer attribute.
func (e *Element) SetInt(name string, v int) *Element {
	return e.SetAttr(name, strconv.Itoa(v))
}

// SetBool sets a boolean attribute.
func (e *Element) SetBool(name string, v bool) *Element {
	return e.SetAttr(name, strconv.FormatBool(v))
}

// RemoveAttr deletes an attribute if present.
func (e *Element) RemoveAttr(name string) {
	for i := range e.Attrs {
		if e.Attrs[i].Name == name {
			e.Attrs = append(e.Attrs[:i], e.Attrs[i+1:]...)
			return
		}
	}
}

// Int parses an integer attribute. Missing or empty attributes yield def.
func (e *Element) Int(name string, def int) (int, error) {
	v, ok := e.Lookup(name)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def, &AttrError{Element: e.Name, Attr: name, Value: v, Err: err}
	}
	return n, nil
}

// Bool parses a boolean attribute. Missing or empty attributes yield def.
func (e *Element) Bool(name string, def bool) (bool, error) {
	v, ok := e.Lookup(name)
	if !ok || v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def, &AttrError{Element: e.Name, Attr: name, Value: v, Err: err}
	}
	return b, nil
}

// Append adds children and returns the receiver.
func (e *Element) Append(children ...*Element) *Element {
	e.Children = append(e.Children, children...)
	return e
}

// Child returns the first child with the given local name, or nil.
func (e *Element) Child(local string) *Element {
	for _, c := range e.Children {
		if c.LocalName() == local {
			return c
		}
	}
	return nil
}

// Find returns the first descendant (depth first, including e) with the
// given local name, or nil.
func (e *Element) Find(local string) *Element {
	if e.LocalName() == local {
		return e
	}
	for _, c := range e.Children {
		if found := c.Find(local); found != nil {
			return found
		}
	}
	return nil
}

// Clone returns a deep copy of the element.
func (e *Element) Clone() *Element {
	if e == nil {
		return nil
	}
	out := &Element{
		Name: e.Name,
		Text: e.Text,
	}
	if len(e.Attrs) > 0 {
		out.Attrs = make([]Attr, len(e.Attrs))
		copy(out.Attrs, e.Attrs)
	}
	if len(e.Children) > 0 {
		out.Children = make([]*Element, len(e.Children))
		for i, c := range e.Children {
			out.Children[i] = c.Clone()
		}
	}
	return out
}

// Equal reports whether two trees have identical names, attributes (in
// order), text and children.
func (e *Element) Equal(o *Element) bool {
	if e == nil || o == nil {
		return e == o
	}
	if e.Name != o.Name || e.Text != o.Text {
		return false
	}
	if len(e.Attrs) != len(o.Attrs) || len(e.Children) != len(o.Children) {
		return false
	}
	for i := range e.Attrs {
		if e.Attrs[i] != o.Attrs[i] {
			return false
		}
	}
	for i := range e.Children {
		if !e.Children[i].Equal(o.Children[i]) {
			return false
		}
	}
	return true
}
