package edit

import (
	"fmt"

	"github.com/dshills/zomeedit/internal/format"
)

// Snapshot captures the visible model under a snapshot id.
type Snapshot struct {
	ID int
}

// NewSnapshot creates a snapshot-capturing edit.
func NewSnapshot(id int) *Snapshot {
	return &Snapshot{ID: id}
}

// Name implements Edit.
func (s *Snapshot) Name() string { return OpSnapshot.String() }

// Perform records the current frame. A negative ID claims the next free
// snapshot id on first perform; the recorder must then be a
// SnapshotAllocator.
func (s *Snapshot) Perform(ctx *Context) error {
	if ctx.Snapshots == nil {
		return nil
	}
	if s.ID < 0 {
		alloc, ok := ctx.Snapshots.(SnapshotAllocator)
		if !ok {
			return &Failure{Message: "snapshot ids cannot be allocated", Internal: true}
		}
		s.ID = alloc.Next()
	}
	ctx.Snapshots.Record(s.ID, ctx.Model.Capture())
	return nil
}

// Undo leaves the captured frame in place.
func (s *Snapshot) Undo(*Context) error { return nil }

// Marshal implements Edit.
func (s *Snapshot) Marshal() *format.Element {
	return format.NewElement(s.Name()).SetInt("id", s.ID)
}

// Unmarshal implements Unmarshaler.
func (s *Snapshot) Unmarshal(el *format.Element, _ *Factory) error {
	id, err := el.Int("id", -1)
	if err != nil {
		return err
	}
	if id < 0 {
		return fmt.Errorf("snapshot: missing id")
	}
	s.ID = id
	return nil
}

// BeginBlock opens a block that undo and redo traverse as one step.
type BeginBlock struct{}

// Name implements Edit.
func (*BeginBlock) Name() string { return OpBeginBlock.String() }

// Perform implements Edit.
func (*BeginBlock) Perform(*Context) error { return nil }

// Undo implements Edit.
func (*BeginBlock) Undo(*Context) error { return nil }

// Marshal implements Edit.
func (b *BeginBlock) Marshal() *format.Element { return format.NewElement(b.Name()) }

// EndBlock closes a block.
type EndBlock struct{}

// Name implements Edit.
func (*EndBlock) Name() string { return OpEndBlock.String() }

// Perform implements Edit.
func (*EndBlock) Perform(*Context) error { return nil }

// Undo implements Edit.
func (*EndBlock) Undo(*Context) error { return nil }

// Marshal implements Edit.
func (e *EndBlock) Marshal() *format.Element { return format.NewElement(e.Name()) }

// Branch holds an explored alternative: performing it runs the nested
// edits and then undoes them, leaving the model unchanged.
type Branch struct {
	Edits []Edit
}

// NewBranch creates a branch over edits.
func NewBranch(edits ...Edit) *Branch {
	return &Branch{Edits: edits}
}

// Name implements Edit.
func (b *Branch) Name() string { return OpBranch.String() }

// Perform implements Edit.
func (b *Branch) Perform(ctx *Context) error {
	done := 0
	var err error
	for _, e := range b.Edits {
		if err = Perform(e, ctx); err != nil {
			break
		}
		done++
	}
	for i := done - 1; i >= 0; i-- {
		if uerr := Undo(b.Edits[i], ctx); uerr != nil && err == nil {
			err = uerr
		}
	}
	return err
}

// Undo implements Edit.
func (b *Branch) Undo(*Context) error { return nil }

// Marshal implements Edit.
func (b *Branch) Marshal() *format.Element {
	el := format.NewElement(b.Name())
	for _, e := range b.Edits {
		el.Append(e.Marshal())
	}
	return el
}

// Unmarshal implements Unmarshaler.
func (b *Branch) Unmarshal(el *format.Element, f *Factory) error {
	edits, err := f.DecodeAll(el.Children)
	if err != nil {
		return fmt.Errorf("branch: %w", err)
	}
	b.Edits = edits
	return nil
}

// Compound is several edits recorded as one history entry.
type Compound struct {
	Edits []Edit
}

// NewCompound creates a compound, flattening nested compounds.
func NewCompound(edits ...Edit) *Compound {
	c := &Compound{}
	for _, e := range edits {
		c.Add(e)
	}
	return c
}

// Add appends e to the compound.
func (c *Compound) Add(e Edit) {
	if inner, ok := e.(*Compound); ok {
		c.Edits = append(c.Edits, inner.Edits...)
		return
	}
	c.Edits = append(c.Edits, e)
}

// Name implements Edit.
func (c *Compound) Name() string { return OpCompound.String() }

// Perform implements Edit.
func (c *Compound) Perform(ctx *Context) error {
	for i, e := range c.Edits {
		if err := Perform(e, ctx); err != nil {
			c.rollback(ctx, i)
			return err
		}
	}
	return nil
}

// Redo implements Redoer.
func (c *Compound) Redo(ctx *Context) error {
	for i, e := range c.Edits {
		if err := Redo(e, ctx); err != nil {
			c.rollback(ctx, i)
			return err
		}
	}
	return nil
}

func (c *Compound) rollback(ctx *Context, n int) {
	for i := n - 1; i >= 0; i-- {
		_ = Undo(c.Edits[i], ctx)
	}
}

// Undo implements Edit.
func (c *Compound) Undo(ctx *Context) error {
	for i := len(c.Edits) - 1; i >= 0; i-- {
		if err := Undo(c.Edits[i], ctx); err != nil {
			return err
		}
	}
	return nil
}

// SelectionOnly implements SelectionChanger.
func (c *Compound) SelectionOnly() bool {
	for _, e := range c.Edits {
		if !IsSelectionOnly(e) {
			return false
		}
	}
	return len(c.Edits) > 0
}

// GroupedInSelection implements Grouper.
func (c *Compound) GroupedInSelection() bool {
	return len(c.Edits) > 0 && IsGrouped(c.Edits[0])
}

// Marshal implements Edit.
func (c *Compound) Marshal() *format.Element {
	el := format.NewElement(c.Name())
	for _, e := range c.Edits {
		el.Append(e.Marshal())
	}
	return el
}

// Unmarshal implements Unmarshaler.
func (c *Compound) Unmarshal(el *format.Element, f *Factory) error {
	edits, err := f.DecodeAll(el.Children)
	if err != nil {
		return fmt.Errorf("compound: %w", err)
	}
	c.Edits = edits
	return nil
}

// Passthrough preserves a command this build does not understand. It has
// no effect and marshals back to the element it was read from.
type Passthrough struct {
	Element *format.Element
}

// Name implements Edit.
func (p *Passthrough) Name() string { return p.Element.Name }

// Perform implements Edit.
func (p *Passthrough) Perform(*Context) error { return nil }

// Undo implements Edit.
func (p *Passthrough) Undo(*Context) error { return nil }

// Marshal implements Edit.
func (p *Passthrough) Marshal() *format.Element { return p.Element.Clone() }
