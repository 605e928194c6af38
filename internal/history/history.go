package history

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dshills/zomeedit/internal/edit"
	"github.com/dshills/zomeedit/internal/format"
)

// Common errors for history operations.
var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
	ErrStickyFloor   = errors.New("cannot undo past a sticky edit")
	ErrOutOfRange    = errors.New("edit number out of range")
	ErrNotPerformed  = errors.New("entry was never performed")
)

// RedoError reports recorded failures that redo moved past. Err is set
// when the redo then stopped on an entry that had performed before.
type RedoError struct {
	Failures []*edit.Failure
	Err      error
}

// Error implements error.
func (e *RedoError) Error() string {
	msg := e.Failures[0].Error()
	if n := len(e.Failures); n > 1 {
		msg = fmt.Sprintf("%s (and %d more failed edits)", msg, n-1)
	}
	if e.Err != nil {
		msg += "; " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the failures followed by Err.
func (e *RedoError) Unwrap() []error {
	out := make([]error, 0, len(e.Failures)+1)
	for _, f := range e.Failures {
		out = append(out, f)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

func redoResult(err error, failures []*edit.Failure) error {
	if len(failures) == 0 {
		return err
	}
	return &RedoError{Failures: failures, Err: err}
}

// entry wraps an edit with metadata. A deferred entry has a nil edit and
// keeps the element it was loaded from. failed marks an entry whose last
// perform raised a failure.
type entry struct {
	edit      edit.Edit
	source    *format.Element
	timestamp time.Time
	failed    bool
}

func (e *entry) name() string {
	if e.edit != nil {
		return e.edit.Name()
	}
	return e.source.Name
}

func (e *entry) marshal() *format.Element {
	if e.edit != nil {
		return e.edit.Marshal()
	}
	return e.source.Clone()
}

// EditInfo describes one history entry.
type EditInfo struct {
	Index     int
	Name      string
	Done      bool
	Sticky    bool
	Deferred  bool
	Failed    bool
	Timestamp time.Time
}

// History is the ordered edit log of one document.
type History struct {
	mu sync.Mutex

	entries     []*entry
	done        int
	floor       int
	breakpoints map[int]struct{}
}

// New creates an empty history.
func New() *History {
	return &History{breakpoints: make(map[int]struct{})}
}

// Len returns the number of entries, done and undone.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// DoneCount returns the cursor position.
func (h *History) DoneCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.done
}

// StickyFloor returns the position below which undo may not pass.
func (h *History) StickyFloor() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.floor
}

// CanUndo returns true if an ordinary undo is available.
func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.done > h.floor
}

// CanRedo returns true if redo is available.
func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.done < len(h.entries)
}

// Entries returns info about every entry.
func (h *History) Entries() []EditInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]EditInfo, len(h.entries))
	for i, e := range h.entries {
		out[i] = EditInfo{
			Index:     i,
			Name:      e.name(),
			Done:      i < h.done,
			Sticky:    e.edit != nil && edit.IsSticky(e.edit),
			Deferred:  e.edit == nil,
			Failed:    e.failed,
			Timestamp: e.timestamp,
		}
	}
	return out
}

// Edit returns the edit at index i, or nil if the entry is deferred.
func (h *History) Edit(i int) edit.Edit {
	h.mu.Lock()
	defer h.mu.Unlock()
	if i < 0 || i >= len(h.entries) {
		return nil
	}
	return h.entries[i].edit
}

// Apply performs e and records it: the edit is performed, folded into the
// previous entry if it is a pure selection change, and otherwise appended.
// The whole sequence holds the history lock.
//
// The perform error is returned. When keepFailed is false a failed edit
// is not recorded; otherwise it is appended as its own entry, marked as
// failed, and never merged.
func (h *History) Apply(ctx *edit.Context, e edit.Edit, keepFailed bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	err := edit.Perform(e, ctx)
	if err != nil {
		if keepFailed {
			h.appendLocked(e)
			h.entries[h.done-1].failed = true
		}
		return err
	}
	if !h.mergeLocked(e) {
		h.appendLocked(e)
	}
	return nil
}

// PerformAndAppend performs e and appends it without coalescing.
func (h *History) PerformAndAppend(ctx *edit.Context, e edit.Edit) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := edit.Perform(e, ctx); err != nil {
		return err
	}
	h.appendLocked(e)
	return nil
}

// Append records an already performed edit.
func (h *History) Append(e edit.Edit) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.appendLocked(e)
}

// MergeSelectionChanges folds e into the entry before the cursor if e is
// a pure selection change and that entry can take it. It reports whether
// e was merged.
func (h *History) MergeSelectionChanges(e edit.Edit) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mergeLocked(e)
}

func (h *History) mergeLocked(e edit.Edit) bool {
	if !edit.IsSelectionOnly(e) || h.done == 0 || h.done-1 < h.floor {
		return false
	}
	prev := h.entries[h.done-1]
	if prev.edit == nil || prev.failed || edit.IsSticky(prev.edit) || !mergeable(prev.edit) {
		return false
	}
	if edit.IsGrouped(prev.edit) != edit.IsGrouped(e) {
		return false
	}
	h.truncateLocked()
	c, ok := prev.edit.(*edit.Compound)
	if !ok {
		c = edit.NewCompound(prev.edit)
	}
	c.Add(e)
	prev.edit = c
	prev.timestamp = time.Now()
	return true
}

// mergeable excludes structural entries whose serialized form must stay
// as is.
func mergeable(e edit.Edit) bool {
	switch e.(type) {
	case *edit.BeginBlock, *edit.EndBlock, *edit.Snapshot, *edit.Branch, *edit.Passthrough:
		return false
	}
	return true
}

func (h *History) appendLocked(e edit.Edit) {
	h.truncateLocked()
	h.entries = append(h.entries, &entry{edit: e, timestamp: time.Now()})
	h.done++
	if edit.IsSticky(e) {
		h.floor = h.done
	}
}

// truncateLocked discards the undone suffix.
func (h *History) truncateLocked() {
	if h.done == len(h.entries) {
		return
	}
	for i := h.done; i < len(h.entries); i++ {
		h.entries[i] = nil
	}
	h.entries = h.entries[:h.done]
	for bp := range h.breakpoints {
		if bp > h.done {
			delete(h.breakpoints, bp)
		}
	}
	if h.floor > h.done {
		h.floor = h.done
	}
}

// Undo undoes the entry before the cursor. An EndBlock undoes back to its
// BeginBlock. Undo stops at the sticky floor with ErrStickyFloor.
func (h *History) Undo(ctx *edit.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.undoLocked(ctx, false)
}

// ForceUndo undoes like Undo but ignores the sticky floor.
func (h *History) ForceUndo(ctx *edit.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.undoLocked(ctx, true)
}

func (h *History) undoLocked(ctx *edit.Context, force bool) error {
	if err := h.checkUndo(force); err != nil {
		return err
	}
	depth := 0
	for {
		e := h.entries[h.done-1]
		switch e.edit.(type) {
		case *edit.EndBlock:
			depth++
		case *edit.BeginBlock:
			depth--
		}
		if err := h.undoStep(ctx); err != nil {
			return err
		}
		if depth <= 0 || h.checkUndo(force) != nil {
			return nil
		}
	}
}

func (h *History) checkUndo(force bool) error {
	if h.done == 0 {
		return ErrNothingToUndo
	}
	if !force && h.done <= h.floor {
		return ErrStickyFloor
	}
	return nil
}

func (h *History) undoStep(ctx *edit.Context) error {
	e := h.entries[h.done-1]
	if e.edit == nil {
		return ErrNotPerformed
	}
	if err := edit.Undo(e.edit, ctx); err != nil {
		return err
	}
	h.done--
	return nil
}

// Redo redoes the entry at the cursor. A BeginBlock redoes through its
// EndBlock.
//
// An entry whose first perform failed is a recorded failure: redoing it
// moves the cursor past it and the failure comes back in a *RedoError.
// Any other failure stops the redo with the cursor on the failing entry.
func (h *History) Redo(ctx *edit.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	var failures []*edit.Failure
	err := h.redoLocked(ctx, &failures)
	return redoResult(err, failures)
}

func (h *History) redoLocked(ctx *edit.Context, failures *[]*edit.Failure) error {
	if h.done == len(h.entries) {
		return ErrNothingToRedo
	}
	depth := 0
	for {
		f, err := h.redoStep(ctx)
		if err != nil {
			return err
		}
		if f != nil {
			*failures = append(*failures, f)
		}
		switch h.entries[h.done-1].edit.(type) {
		case *edit.BeginBlock:
			depth++
		case *edit.EndBlock:
			depth--
		}
		if depth <= 0 || h.done == len(h.entries) {
			return nil
		}
	}
}

// redoStep redoes the entry at the cursor. A deferred entry is decoded
// first; one that cannot be decoded is kept as a passthrough. If this is
// the entry's first perform, or its earlier perform failed, a failure is
// returned as f and the cursor still advances. Otherwise a failure is
// returned as err and the cursor stays.
func (h *History) redoStep(ctx *edit.Context) (f *edit.Failure, err error) {
	e := h.entries[h.done]
	first := e.edit == nil || e.failed
	if derr := h.materialize(ctx, e); derr != nil {
		e.edit = &edit.Passthrough{Element: e.source}
		err = fmt.Errorf("edit %d: %w", h.done, derr)
	} else {
		err = edit.Redo(e.edit, ctx)
	}
	if err != nil && !first {
		return nil, err
	}
	e.failed = err != nil
	h.done++
	if edit.IsSticky(e.edit) && h.floor < h.done {
		h.floor = h.done
	}
	return edit.AsFailure(err), nil
}

// materialize decodes a deferred entry through the factory.
func (h *History) materialize(ctx *edit.Context, e *entry) error {
	if e.edit != nil {
		return nil
	}
	decoded, err := ctx.Factory.Decode(e.source)
	if err != nil {
		return edit.AsFailure(err)
	}
	e.edit = decoded
	return nil
}

// UndoAll undoes down to the sticky floor.
func (h *History) UndoAll(ctx *edit.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for h.done > h.floor {
		if err := h.undoLocked(ctx, false); err != nil {
			return err
		}
	}
	return nil
}

// RedoAll redoes to the end of the log.
func (h *History) RedoAll(ctx *edit.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	var failures []*edit.Failure
	for h.done < len(h.entries) {
		if err := h.redoLocked(ctx, &failures); err != nil {
			return redoResult(err, failures)
		}
	}
	return redoResult(nil, failures)
}

// GoTo moves the cursor to position n one entry at a time, ignoring
// blocks. It will not undo below the sticky floor.
func (h *History) GoTo(ctx *edit.Context, n int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n < 0 || n > len(h.entries) {
		return ErrOutOfRange
	}
	if n < h.floor {
		return ErrStickyFloor
	}
	for h.done > n {
		if err := h.undoStep(ctx); err != nil {
			return err
		}
	}
	var failures []*edit.Failure
	for h.done < n {
		f, err := h.redoStep(ctx)
		if err != nil {
			return redoResult(err, failures)
		}
		if f != nil {
			failures = append(failures, f)
		}
	}
	return redoResult(nil, failures)
}

// SetBreakpoint pins the current cursor position.
func (h *History) SetBreakpoint() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.breakpoints[h.done] = struct{}{}
}

// ClearBreakpoints removes every breakpoint.
func (h *History) ClearBreakpoints() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.breakpoints = make(map[int]struct{})
}

// Breakpoints returns the pinned positions in ascending order.
func (h *History) Breakpoints() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.breakpointsLocked()
}

func (h *History) breakpointsLocked() []int {
	out := make([]int, 0, len(h.breakpoints))
	for bp := range h.breakpoints {
		out = append(out, bp)
	}
	sort.Ints(out)
	return out
}

func (h *History) isBreakpoint(n int) bool {
	_, ok := h.breakpoints[n]
	return ok
}

// UndoToBreakpoint undoes at least one step, then keeps undoing until a
// breakpoint or the sticky floor is reached.
func (h *History) UndoToBreakpoint(ctx *edit.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.undoLocked(ctx, false); err != nil {
		return err
	}
	for h.done > h.floor && !h.isBreakpoint(h.done) {
		if err := h.undoLocked(ctx, false); err != nil {
			return err
		}
	}
	return nil
}

// RedoToBreakpoint redoes at least one step, then keeps redoing until a
// breakpoint or the end of the log is reached.
func (h *History) RedoToBreakpoint(ctx *edit.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	var failures []*edit.Failure
	if err := h.redoLocked(ctx, &failures); err != nil {
		return redoResult(err, failures)
	}
	for h.done < len(h.entries) && !h.isBreakpoint(h.done) {
		if err := h.redoLocked(ctx, &failures); err != nil {
			return redoResult(err, failures)
		}
	}
	return redoResult(nil, failures)
}

// Clear removes every entry.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
	h.done = 0
	h.floor = 0
	h.breakpoints = make(map[int]struct{})
}
