// Package edit defines the journal's unit of change.
//
// An Edit performs and undoes a mutation against the shared model and the
// selection, both reached through a Context passed into every call. Edits
// capture their parameters the first time they run, so a redo replays the
// same change even if the live selection has moved on, and they marshal
// those parameters to a name-tagged element the Factory can rebuild.
//
// Optional behaviour is expressed with small interfaces checked at run time:
//
//   - Redoer: custom redo (default is Perform again)
//   - Stickier: the edit cannot be undone by ordinary undo
//   - SelectionChanger: the edit only changes the selection
//   - Grouper: the edit is grouped with selection changes
package edit

import (
	"github.com/dshills/zomeedit/internal/format"
	"github.com/dshills/zomeedit/internal/model"
)

// Edit is a single undoable unit of model mutation.
type Edit interface {
	// Name is the command identifier used as the serialized element name.
	Name() string

	// Perform applies the mutation. A *Failure reports a user-facing
	// problem; any other error is an internal fault.
	Perform(ctx *Context) error

	// Undo restores the state from before Perform.
	Undo(ctx *Context) error

	// Marshal produces an element from which the Factory can rebuild an
	// equivalent edit.
	Marshal() *format.Element
}

// Unmarshaler is implemented by edits that carry parameters.
type Unmarshaler interface {
	Unmarshal(el *format.Element, f *Factory) error
}

// Redoer is implemented by edits whose redo differs from Perform.
type Redoer interface {
	Redo(ctx *Context) error
}

// Stickier is implemented by edits that ordinary undo must not pass.
type Stickier interface {
	Sticky() bool
}

// SelectionChanger is implemented by edits that only touch the selection.
type SelectionChanger interface {
	SelectionOnly() bool
}

// Grouper is implemented by edits grouped with the selection they change.
type Grouper interface {
	GroupedInSelection() bool
}

// Model is the capability surface edits use on the realized model.
type Model interface {
	Add(e model.Element) bool
	Remove(key string) (model.Element, bool)
	Get(key string) (model.Element, bool)
	SetHidden(key string, hidden bool) (bool, bool)
	SetColor(key, color string) (string, bool)
	Elements() []model.Element
	Capture() *model.Frame
}

// SnapshotRecorder stores captured frames by snapshot id.
type SnapshotRecorder interface {
	Record(id int, frame *model.Frame)
}

// SnapshotAllocator is a SnapshotRecorder that also hands out the next
// free id.
type SnapshotAllocator interface {
	SnapshotRecorder
	Next() int
}

// Context is the explicit state every edit runs against.
type Context struct {
	Model     Model
	Selection *model.Selection
	Tools     *ToolRegistry
	Snapshots SnapshotRecorder
	Factory   *Factory
}

// IsSticky reports whether e is sticky.
func IsSticky(e Edit) bool {
	s, ok := e.(Stickier)
	return ok && s.Sticky()
}

// IsSelectionOnly reports whether e only changes the selection.
func IsSelectionOnly(e Edit) bool {
	s, ok := e.(SelectionChanger)
	return ok && s.SelectionOnly()
}

// IsGrouped reports whether e is grouped in selection.
func IsGrouped(e Edit) bool {
	g, ok := e.(Grouper)
	return ok && g.GroupedInSelection()
}

// IsNoOp reports whether e should be discarded instead of recorded.
func IsNoOp(e Edit) bool {
	if e == nil {
		return true
	}
	_, ok := e.(*NoOp)
	return ok
}

// Perform runs e.Perform, converting panics into internal failures.
func Perform(e Edit, ctx *Context) error {
	return Run(func() error { return e.Perform(ctx) })
}

// Undo runs e.Undo, converting panics into internal failures.
func Undo(e Edit, ctx *Context) error {
	return Run(func() error { return e.Undo(ctx) })
}

// Redo runs the edit's redo, falling back to Perform.
func Redo(e Edit, ctx *Context) error {
	return Run(func() error {
		if r, ok := e.(Redoer); ok {
			return r.Redo(ctx)
		}
		return e.Perform(ctx)
	})
}

// NoOp is an edit that does nothing and is never recorded.
type NoOp struct{}

// Name implements Edit.
func (*NoOp) Name() string { return "NoOp" }

// Perform implements Edit.
func (*NoOp) Perform(*Context) error { return nil }

// Undo implements Edit.
func (*NoOp) Undo(*Context) error { return nil }

// Marshal implements Edit.
func (*NoOp) Marshal() *format.Element { return format.NewElement("NoOp") }
