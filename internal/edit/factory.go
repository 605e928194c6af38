package edit

import (
	"fmt"
	"sync"

	"github.com/dshills/zomeedit/internal/format"
)

// Constructor returns a zero edit ready to unmarshal into.
type Constructor func() Edit

// Factory rebuilds edits from serialized elements.
//
// Lookup is two-level: tool-instance constructors registered by name come
// first, then the built-in commands. Names matching neither become a
// Passthrough that keeps the original element.
type Factory struct {
	mu    sync.RWMutex
	tools map[string]Constructor
}

// NewFactory creates a factory with the standard tool kinds registered.
func NewFactory() *Factory {
	f := &Factory{tools: make(map[string]Constructor)}
	f.RegisterTool("BookmarkTool", func() Edit { return &BookmarkTool{} })
	f.RegisterTool("TranslationTool", func() Edit { return &TranslationTool{} })
	return f
}

// RegisterTool adds or replaces a tool-instance constructor.
func (f *Factory) RegisterTool(name string, c Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tools[name] = c
}

// Create returns a zero edit for name and whether the name is known.
func (f *Factory) Create(name string) (Edit, bool) {
	f.mu.RLock()
	c, ok := f.tools[name]
	f.mu.RUnlock()
	if ok {
		return c(), true
	}
	if op, ok := ParseOp(name); ok {
		return op.New(), true
	}
	return nil, false
}

// Known reports whether name resolves to a tool or built-in command.
func (f *Factory) Known(name string) bool {
	_, ok := f.Create(name)
	return ok
}

// Decode rebuilds an edit from el. Unknown names never fail.
func (f *Factory) Decode(el *format.Element) (Edit, error) {
	e, ok := f.Create(el.Name)
	if !ok {
		return &Passthrough{Element: el.Clone()}, nil
	}
	if u, ok := e.(Unmarshaler); ok {
		if err := u.Unmarshal(el, f); err != nil {
			return nil, fmt.Errorf("decode %s: %w", el.Name, err)
		}
	}
	return e, nil
}

// DecodeAll decodes each element in order.
func (f *Factory) DecodeAll(els []*format.Element) ([]Edit, error) {
	out := make([]Edit, 0, len(els))
	for _, el := range els {
		e, err := f.Decode(el)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
