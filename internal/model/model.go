// Package model is the realized geometric model that edits act on.
//
// Elements are identified by a key derived from their geometry, never by
// object identity, so an edit can be serialized and replayed in another
// session and still find the element it refers to.
package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Vector is an integer lattice position.
type Vector [3]int64

// Add returns v + o.
func (v Vector) Add(o Vector) Vector {
	return Vector{v[0] + o[0], v[1] + o[1], v[2] + o[2]}
}

// Sub returns v - o.
func (v Vector) Sub(o Vector) Vector {
	return Vector{v[0] - o[0], v[1] - o[1], v[2] - o[2]}
}

// IsZero reports whether v is the origin.
func (v Vector) IsZero() bool {
	return v == Vector{}
}

// String formats the vector as "x,y,z".
func (v Vector) String() string {
	return fmt.Sprintf("%d,%d,%d", v[0], v[1], v[2])
}

// ParseVector parses the "x,y,z" form produced by String.
func ParseVector(s string) (Vector, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 3 {
		return Vector{}, fmt.Errorf("vector %q: want 3 components", s)
	}
	var v Vector
	for i, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return Vector{}, fmt.Errorf("vector %q: %w", s, err)
		}
		v[i] = n
	}
	return v, nil
}

// Kind classifies an element.
type Kind int

const (
	// Ball is a point.
	Ball Kind = iota
	// Strut is a segment between two points.
	Strut
	// Panel is a polygon of three or more points.
	Panel
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Ball:
		return "ball"
	case Strut:
		return "strut"
	case Panel:
		return "panel"
	default:
		return "unknown"
	}
}

// ParseKind parses a kind name.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "ball":
		return Ball, nil
	case "strut":
		return Strut, nil
	case "panel":
		return Panel, nil
	default:
		return 0, fmt.Errorf("unknown element kind %q", s)
	}
}

// Element is one manifestation in the model.
type Element struct {
	Kind   Kind
	Points []Vector
	Color  string
	Hidden bool
}

// NewBall creates a ball element.
func NewBall(at Vector) Element {
	return Element{Kind: Ball, Points: []Vector{at}}
}

// NewStrut creates a strut element.
func NewStrut(from, to Vector) Element {
	return Element{Kind: Strut, Points: []Vector{from, to}}
}

// NewPanel creates a panel element.
func NewPanel(points ...Vector) Element {
	return Element{Kind: Panel, Points: append([]Vector(nil), points...)}
}

// Key is the identity of an element: its kind and geometry.
func (e Element) Key() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	b.WriteByte('(')
	b.WriteString(PointsString(e.Points))
	b.WriteByte(')')
	return b.String()
}

// Translate returns a copy of e moved by offset.
func (e Element) Translate(offset Vector) Element {
	out := e.Clone()
	for i := range out.Points {
		out.Points[i] = out.Points[i].Add(offset)
	}
	return out
}

// Clone returns a deep copy.
func (e Element) Clone() Element {
	e.Points = append([]Vector(nil), e.Points...)
	return e
}

// PointsString formats points as "x,y,z x,y,z ...".
func PointsString(points []Vector) string {
	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = p.String()
	}
	return strings.Join(parts, " ")
}

// ParsePoints parses the form produced by PointsString.
func ParsePoints(s string) ([]Vector, error) {
	fields := strings.Fields(s)
	out := make([]Vector, 0, len(fields))
	for _, f := range fields {
		v, err := ParseVector(f)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Realized holds the elements currently manifested.
// It is safe for concurrent use, but the journal only mutates it from
// inside the document's exclusive section.
type Realized struct {
	mu       sync.RWMutex
	elements map[string]*Element
}

// NewRealized creates an empty model.
func NewRealized() *Realized {
	return &Realized{elements: make(map[string]*Element)}
}

// Add manifests an element. It returns false if an element with the same
// key already exists, in which case the model is unchanged.
func (m *Realized) Add(e Element) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := e.Key()
	if _, ok := m.elements[key]; ok {
		return false
	}
	c := e.Clone()
	m.elements[key] = &c
	return true
}

// Remove deletes an element and returns it.
func (m *Realized) Remove(key string) (Element, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.elements[key]
	if !ok {
		return Element{}, false
	}
	delete(m.elements, key)
	return *e, true
}

// Get returns a copy of the element with the given key.
func (m *Realized) Get(key string) (Element, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.elements[key]
	if !ok {
		return Element{}, false
	}
	return e.Clone(), true
}

// SetHidden shows or hides an element and returns the previous state.
func (m *Realized) SetHidden(key string, hidden bool) (bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.elements[key]
	if !ok {
		return false, false
	}
	prev := e.Hidden
	e.Hidden = hidden
	return prev, true
}

// SetColor sets an element's color and returns the previous color.
func (m *Realized) SetColor(key, color string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.elements[key]
	if !ok {
		return "", false
	}
	prev := e.Color
	e.Color = color
	return prev, true
}

// Len returns the number of elements, hidden ones included.
func (m *Realized) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.elements)
}

// Elements returns copies of all elements sorted by key.
func (m *Realized) Elements() []Element {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Element, 0, len(m.elements))
	for _, e := range m.elements {
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Capture returns an immutable frame of the visible model.
func (m *Realized) Capture() *Frame {
	all := m.Elements()
	visible := all[:0]
	for _, e := range all {
		if !e.Hidden {
			visible = append(visible, e)
		}
	}
	return &Frame{elements: visible}
}

// Frame is a decoupled copy of render state.
type Frame struct {
	elements []Element
}

// Elements returns the frame's elements sorted by key.
func (f *Frame) Elements() []Element {
	if f == nil {
		return nil
	}
	out := make([]Element, len(f.elements))
	for i, e := range f.elements {
		out[i] = e.Clone()
	}
	return out
}

// Len returns the number of elements in the frame.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.elements)
}

// Keys returns the element keys in the frame.
func (f *Frame) Keys() []string {
	if f == nil {
		return nil
	}
	keys := make([]string, len(f.elements))
	for i, e := range f.elements {
		keys[i] = e.Key()
	}
	return keys
}
