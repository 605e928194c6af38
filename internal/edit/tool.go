package edit

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"

	"github.com/dshills/zomeedit/internal/format"
	"github.com/dshills/zomeedit/internal/model"
)

// BallAtOrigin is the name of the predefined bookmark tool.
const BallAtOrigin = "ball at origin"

// Tool is a named, reusable transformation.
type Tool interface {
	// ToolName is the user-given name the tool is registered under.
	ToolName() string

	// Apply returns the elements the tool produces for the selection.
	Apply(selected []model.Element) ([]model.Element, error)
}

// ToolMeta is presentation metadata kept alongside a tool.
type ToolMeta struct {
	Label  string
	Hidden bool
}

// ToolRegistry holds tools by name. Names are compared after NFC
// normalization; registering an existing name replaces the tool.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	meta  map[string]ToolMeta
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools: make(map[string]Tool),
		meta:  make(map[string]ToolMeta),
	}
}

// ToolKey normalizes a tool name for lookup.
func ToolKey(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// Register adds or replaces a tool. It reports whether a tool with the
// same name was replaced.
func (r *ToolRegistry) Register(t Tool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := ToolKey(t.ToolName())
	_, replaced := r.tools[key]
	r.tools[key] = t
	return replaced
}

// Unregister removes a tool by name.
func (r *ToolRegistry) Unregister(name string) (Tool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := ToolKey(name)
	t, ok := r.tools[key]
	if ok {
		delete(r.tools, key)
	}
	return t, ok
}

// Get returns the tool registered under name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[ToolKey(name)]
	return t, ok
}

// Names returns the registered names in sorted order.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for k := range r.tools {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered tools.
func (r *ToolRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// SetMeta records metadata for a tool name, registered or not yet.
func (r *ToolRegistry) SetMeta(name string, m ToolMeta) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.meta[ToolKey(name)] = m
}

// Meta returns the metadata for a tool name.
func (r *ToolRegistry) Meta(name string) (ToolMeta, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.meta[ToolKey(name)]
	return m, ok
}

// MarshalMeta writes the metadata as a Tools element.
func (r *ToolRegistry) MarshalMeta() *format.Element {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.meta))
	for k := range r.meta {
		names = append(names, k)
	}
	sort.Strings(names)
	el := format.NewElement("Tools")
	for _, n := range names {
		m := r.meta[n]
		t := format.NewElement("Tool").SetAttr("name", n)
		if m.Label != "" {
			t.SetAttr("label", m.Label)
		}
		if m.Hidden {
			t.SetBool("hidden", true)
		}
		el.Append(t)
	}
	return el
}

// UnmarshalMeta loads metadata from a Tools element.
func (r *ToolRegistry) UnmarshalMeta(el *format.Element) error {
	for _, child := range el.Children {
		if child.Name != "Tool" {
			continue
		}
		hidden, err := child.Bool("hidden", false)
		if err != nil {
			return err
		}
		r.SetMeta(child.Attr("name"), ToolMeta{Label: child.Attr("label"), Hidden: hidden})
	}
	return nil
}

// BookmarkTool remembers a set of elements and reproduces them when
// applied. Defining it is sticky.
type BookmarkTool struct {
	ID       string
	Elements []model.Element

	captured bool
}

// NewBookmarkTool creates a bookmark that captures the selection when
// performed.
func NewBookmarkTool(name string) *BookmarkTool {
	return &BookmarkTool{ID: name}
}

// NewBallAtOriginTool returns the predefined bookmark holding a single
// ball at the origin.
func NewBallAtOriginTool() *BookmarkTool {
	return &BookmarkTool{
		ID:       BallAtOrigin,
		Elements: []model.Element{model.NewBall(model.Vector{})},
		captured: true,
	}
}

// Name implements Edit.
func (b *BookmarkTool) Name() string { return "BookmarkTool" }

// ToolName implements Tool.
func (b *BookmarkTool) ToolName() string { return b.ID }

// Perform captures the selection and registers the tool.
func (b *BookmarkTool) Perform(ctx *Context) error {
	if !b.captured {
		b.Elements = selectedElements(ctx)
		for i := range b.Elements {
			b.Elements[i].Hidden = false
		}
		b.captured = true
	}
	if len(b.Elements) == 0 {
		return Failf("bookmark tool requires a selection")
	}
	ctx.Tools.Register(b)
	return nil
}

// Undo is a no-op; tools are removed with RemoveTool.
func (b *BookmarkTool) Undo(*Context) error { return nil }

// Sticky implements Stickier.
func (b *BookmarkTool) Sticky() bool { return true }

// Apply implements Tool.
func (b *BookmarkTool) Apply([]model.Element) ([]model.Element, error) {
	out := make([]model.Element, len(b.Elements))
	for i, e := range b.Elements {
		out[i] = e.Clone()
	}
	return out, nil
}

// Marshal implements Edit.
func (b *BookmarkTool) Marshal() *format.Element {
	el := format.NewElement(b.Name()).SetAttr("name", b.ID)
	appendManifestations(el, b.Elements)
	return el
}

// Unmarshal implements Unmarshaler.
func (b *BookmarkTool) Unmarshal(el *format.Element, _ *Factory) error {
	b.ID = el.Attr("name")
	if b.ID == "" {
		return fmt.Errorf("bookmark tool: missing name")
	}
	elems, err := unmarshalManifestations(el)
	if err != nil {
		return err
	}
	b.Elements = elems
	b.captured = true
	return nil
}

// TranslationTool moves copies of the selection by a fixed offset.
// Defining it is sticky.
type TranslationTool struct {
	ID     string
	Offset model.Vector

	captured bool
}

// NewTranslationTool creates a translation tool whose offset is taken
// from the selected balls when performed.
func NewTranslationTool(name string) *TranslationTool {
	return &TranslationTool{ID: name}
}

// Name implements Edit.
func (t *TranslationTool) Name() string { return "TranslationTool" }

// ToolName implements Tool.
func (t *TranslationTool) ToolName() string { return t.ID }

// Perform derives the offset and registers the tool.
func (t *TranslationTool) Perform(ctx *Context) error {
	if !t.captured {
		balls := selectedBalls(ctx)
		switch len(balls) {
		case 1:
			t.Offset = balls[0]
		case 2:
			t.Offset = balls[1].Sub(balls[0])
		default:
			return Failf("translation tool requires start and end points, or just an end point")
		}
		t.captured = true
	}
	ctx.Tools.Register(t)
	return nil
}

// Undo is a no-op; tools are removed with RemoveTool.
func (t *TranslationTool) Undo(*Context) error { return nil }

// Sticky implements Stickier.
func (t *TranslationTool) Sticky() bool { return true }

// Apply implements Tool.
func (t *TranslationTool) Apply(selected []model.Element) ([]model.Element, error) {
	if len(selected) == 0 {
		return nil, &Failure{Message: "select something to translate", Cause: ErrEmptySelection}
	}
	out := make([]model.Element, len(selected))
	for i, e := range selected {
		moved := e.Translate(t.Offset)
		moved.Hidden = false
		out[i] = moved
	}
	return out, nil
}

// Marshal implements Edit.
func (t *TranslationTool) Marshal() *format.Element {
	return format.NewElement(t.Name()).
		SetAttr("name", t.ID).
		SetAttr("offset", t.Offset.String())
}

// Unmarshal implements Unmarshaler.
func (t *TranslationTool) Unmarshal(el *format.Element, _ *Factory) error {
	t.ID = el.Attr("name")
	if t.ID == "" {
		return fmt.Errorf("translation tool: missing name")
	}
	off, err := model.ParseVector(el.Attr("offset"))
	if err != nil {
		return err
	}
	t.Offset = off
	t.captured = true
	return nil
}

// ApplyTool invokes a registered tool by name on the selection. The tool
// is resolved when the edit is performed, never captured directly.
type ApplyTool struct {
	Tool string

	captured bool
	added    []model.Element
}

// NewApplyTool creates an invocation of the named tool.
func NewApplyTool(name string) *ApplyTool {
	return &ApplyTool{Tool: name}
}

// Name implements Edit.
func (a *ApplyTool) Name() string { return OpApplyTool.String() }

// Perform implements Edit.
func (a *ApplyTool) Perform(ctx *Context) error {
	t, ok := ctx.Tools.Get(a.Tool)
	if !ok {
		return &Failure{Message: fmt.Sprintf("no tool named %q", a.Tool), Cause: ErrUnknownTool}
	}
	produced, err := t.Apply(selectedElements(ctx))
	if err != nil {
		return err
	}
	a.added = a.added[:0]
	for _, e := range produced {
		if ctx.Model.Add(e) {
			a.added = append(a.added, e)
		}
	}
	a.captured = true
	return nil
}

// Redo re-adds the elements produced by the first perform.
func (a *ApplyTool) Redo(ctx *Context) error {
	if !a.captured {
		return a.Perform(ctx)
	}
	for _, e := range a.added {
		ctx.Model.Add(e)
	}
	return nil
}

// Undo implements Edit.
func (a *ApplyTool) Undo(ctx *Context) error {
	for _, e := range a.added {
		key := e.Key()
		ctx.Model.Remove(key)
		ctx.Selection.Deselect(key)
	}
	return nil
}

// Marshal implements Edit.
func (a *ApplyTool) Marshal() *format.Element {
	return format.NewElement(a.Name()).SetAttr("tool", a.Tool)
}

// Unmarshal implements Unmarshaler.
func (a *ApplyTool) Unmarshal(el *format.Element, _ *Factory) error {
	a.Tool = el.Attr("tool")
	if a.Tool == "" {
		return fmt.Errorf("apply tool: missing tool name")
	}
	return nil
}

// RemoveTool unregisters a tool as a forward edit.
type RemoveTool struct {
	Tool string

	removed Tool
}

// NewRemoveTool creates a removal of the named tool.
func NewRemoveTool(name string) *RemoveTool {
	return &RemoveTool{Tool: name}
}

// Name implements Edit.
func (r *RemoveTool) Name() string { return OpRemoveTool.String() }

// Perform implements Edit.
func (r *RemoveTool) Perform(ctx *Context) error {
	t, ok := ctx.Tools.Unregister(r.Tool)
	if !ok {
		return &Failure{Message: fmt.Sprintf("no tool named %q", r.Tool), Cause: ErrUnknownTool}
	}
	r.removed = t
	return nil
}

// Undo implements Edit.
func (r *RemoveTool) Undo(ctx *Context) error {
	if r.removed != nil {
		ctx.Tools.Register(r.removed)
	}
	return nil
}

// Marshal implements Edit.
func (r *RemoveTool) Marshal() *format.Element {
	return format.NewElement(r.Name()).SetAttr("tool", r.Tool)
}

// Unmarshal implements Unmarshaler.
func (r *RemoveTool) Unmarshal(el *format.Element, _ *Factory) error {
	r.Tool = el.Attr("tool")
	if r.Tool == "" {
		return fmt.Errorf("remove tool: missing tool name")
	}
	return nil
}
