// Package document is the orchestrator of one construction document. It
// owns the realized model, the selection, the tool registry, the edit
// history, the snapshot index and the lesson, and is the only place edits
// are performed and recorded.
//
// Every recorded change goes through PerformAndRecord: the edit is
// performed, folded into the previous entry when it only changes the
// selection, appended otherwise, and listeners are notified. Failures are
// never returned to the caller; they are routed to the failure channel.
package document

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dshills/zomeedit/internal/edit"
	"github.com/dshills/zomeedit/internal/event"
	"github.com/dshills/zomeedit/internal/format"
	"github.com/dshills/zomeedit/internal/history"
	"github.com/dshills/zomeedit/internal/lesson"
	"github.com/dshills/zomeedit/internal/model"
	"github.com/dshills/zomeedit/internal/snapshot"
)

// ChangeKind says what caused a change notification.
type ChangeKind int

const (
	// ChangePerformed follows PerformAndRecord.
	ChangePerformed ChangeKind = iota
	// ChangeUndone follows an undo of any kind.
	ChangeUndone
	// ChangeRedone follows a redo of any kind.
	ChangeRedone
	// ChangeLoaded follows a completed load.
	ChangeLoaded
)

// String returns the kind name.
func (k ChangeKind) String() string {
	switch k {
	case ChangePerformed:
		return "performed"
	case ChangeUndone:
		return "undone"
	case ChangeRedone:
		return "redone"
	case ChangeLoaded:
		return "loaded"
	default:
		return "unknown"
	}
}

// Change is delivered to listeners.
type Change struct {
	Kind    ChangeKind
	Edit    string
	Count   int64
	Failure *edit.Failure
}

// Listener is notified once per change, after the history lock has been
// released. The context passed in marks the notification; recording an
// edit with it returns ErrReentrant.
type Listener func(ctx context.Context, c Change)

// Result is the outcome of PerformAndRecord. Recorded and Failure are
// independent: a failed edit is still recorded unless the document was
// created with WithRecordFailed(false).
type Result struct {
	Recorded bool
	Failure  *edit.Failure
}

type notifyingKey struct{}

// Document is one open construction.
type Document struct {
	mu   sync.Mutex
	opts options

	id        string
	header    format.Header
	realized  *model.Realized
	selection *model.Selection
	tools     *edit.ToolRegistry
	factory   *edit.Factory
	snapshots *snapshot.Index
	lesson    *lesson.Lesson
	history   *history.History
	ectx      *edit.Context
	extras    []*format.Element

	changes  atomic.Int64
	migrated atomic.Bool

	listenersMu  sync.RWMutex
	listeners    map[uint64]Listener
	nextListener uint64
}

// New creates an empty document. The predefined "ball at origin" tool is
// registered without being journaled.
func New(opts ...Option) *Document {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.factory == nil {
		o.factory = edit.NewFactory()
	}

	d := &Document{
		opts:      o,
		id:        uuid.NewString(),
		realized:  model.NewRealized(),
		selection: model.NewSelection(),
		tools:     edit.NewToolRegistry(),
		factory:   o.factory,
		snapshots: snapshot.NewIndex(),
		lesson:    lesson.New(),
		history:   history.New(),
		listeners: make(map[uint64]Listener),
	}
	d.header = format.Header{
		Namespace:   format.CurrentNamespace,
		Edition:     o.edition,
		Version:     o.coreVersion,
		BuildNumber: o.build,
		CoreVersion: o.coreVersion,
		ID:          d.id,
	}
	d.ectx = &edit.Context{
		Model:     d.realized,
		Selection: d.selection,
		Tools:     d.tools,
		Snapshots: d.snapshots,
		Factory:   d.factory,
	}
	d.tools.Register(edit.NewBallAtOriginTool())
	return d
}

// ID returns the document id written in the header.
func (d *Document) ID() string { return d.id }

// Header returns the envelope the document was loaded from or will be
// saved with.
func (d *Document) Header() format.Header {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.header
}

// Model returns the realized model.
func (d *Document) Model() *model.Realized { return d.realized }

// Selection returns the selection.
func (d *Document) Selection() *model.Selection { return d.selection }

// Tools returns the tool registry.
func (d *Document) Tools() *edit.ToolRegistry { return d.tools }

// History returns the edit history.
func (d *Document) History() *history.History { return d.history }

// Lesson returns the lesson.
func (d *Document) Lesson() *lesson.Lesson { return d.lesson }

// Snapshots returns the snapshot index.
func (d *Document) Snapshots() *snapshot.Index { return d.snapshots }

// ChangeCount returns how many changes have been made since creation.
func (d *Document) ChangeCount() int64 { return d.changes.Load() }

// IsMigrated reports whether loading upgraded the document, in which case
// it should be saved in the current format.
func (d *Document) IsMigrated() bool { return d.migrated.Load() }

// AddListener registers l and returns a function that removes it.
func (d *Document) AddListener(l Listener) func() {
	d.listenersMu.Lock()
	d.nextListener++
	id := d.nextListener
	d.listeners[id] = l
	d.listenersMu.Unlock()
	return func() {
		d.listenersMu.Lock()
		delete(d.listeners, id)
		d.listenersMu.Unlock()
	}
}

// PerformAndRecord performs e and records it in the history.
//
// Nil and no-op edits are discarded. A failure raised by the edit, or
// any fault wrapping one, is routed to the failure channel and returned
// in the Result; the only error returned is ErrReentrant.
func (d *Document) PerformAndRecord(ctx context.Context, e edit.Edit) (Result, error) {
	if edit.IsNoOp(e) {
		return Result{}, nil
	}
	if isNotifying(ctx, d) {
		return Result{}, ErrReentrant
	}

	d.mu.Lock()
	err := d.history.Apply(d.ectx, e, d.opts.recordFailed)
	count := d.changes.Add(1)
	d.mu.Unlock()

	res := Result{
		Recorded: err == nil || d.opts.recordFailed,
		Failure:  edit.AsFailure(err),
	}
	if res.Failure != nil {
		d.report(ctx, res.Failure)
	}
	d.notify(ctx, Change{Kind: ChangePerformed, Edit: e.Name(), Count: count, Failure: res.Failure})
	return res, nil
}

func isNotifying(ctx context.Context, d *Document) bool {
	owner, _ := ctx.Value(notifyingKey{}).(*Document)
	return owner == d
}

func (d *Document) report(ctx context.Context, f *edit.Failure) {
	if d.opts.reporter != nil {
		d.opts.reporter(ctx, d, f)
	} else {
		d.opts.logger.Warn("edit failed: %s", f.Error())
	}
	if d.opts.bus != nil {
		if _, err := d.opts.bus.Publish(ctx, event.New(event.TopicDocumentFailure, f, d.id)); err != nil {
			d.opts.logger.Debug("publish failure: %v", err)
		}
	}
}

func (d *Document) notify(ctx context.Context, c Change) {
	d.listenersMu.RLock()
	ids := make([]uint64, 0, len(d.listeners))
	for id := range d.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	ls := make([]Listener, len(ids))
	for i, id := range ids {
		ls[i] = d.listeners[id]
	}
	d.listenersMu.RUnlock()

	nctx := context.WithValue(ctx, notifyingKey{}, d)
	for _, l := range ls {
		l(nctx, c)
	}
	if d.opts.bus != nil {
		if _, err := d.opts.bus.Publish(nctx, event.New(event.TopicDocumentChanged, c, d.id)); err != nil {
			d.opts.logger.Debug("publish change: %v", err)
		}
	}
}

// move runs a cursor operation under the document lock and notifies on
// success. Edit failures raised while moving are also reported.
//
// Recorded failures that a redo moved past are reported and not
// returned; only a failure that stopped the move is.
func (d *Document) move(ctx context.Context, kind ChangeKind, fn func(*edit.Context) error) error {
	if isNotifying(ctx, d) {
		return ErrReentrant
	}
	d.mu.Lock()
	before := d.history.DoneCount()
	err := fn(d.ectx)
	moved := d.history.DoneCount() != before
	var count int64
	if moved {
		count = d.changes.Add(1)
	}
	d.mu.Unlock()

	var failure *edit.Failure
	var re *history.RedoError
	if errors.As(err, &re) {
		for _, f := range re.Failures {
			d.report(ctx, f)
		}
		failure = re.Failures[0]
		err = re.Err
	}
	if err != nil {
		var f *edit.Failure
		if errors.As(err, &f) {
			failure = f
			d.report(ctx, f)
		}
	}
	if moved {
		d.notify(ctx, Change{Kind: kind, Count: count, Failure: failure})
	}
	return err
}

// Undo undoes one step. At the sticky floor it does nothing.
func (d *Document) Undo(ctx context.Context) error {
	return d.move(ctx, ChangeUndone, stopAtFloor(d.history.Undo))
}

// stopAtFloor turns reaching the sticky floor into a silent no-op.
func stopAtFloor(fn func(*edit.Context) error) func(*edit.Context) error {
	return func(ectx *edit.Context) error {
		if err := fn(ectx); !errors.Is(err, history.ErrStickyFloor) {
			return err
		}
		return nil
	}
}

// ForceUndo undoes one step even below the sticky floor.
func (d *Document) ForceUndo(ctx context.Context) error {
	return d.move(ctx, ChangeUndone, d.history.ForceUndo)
}

// Redo redoes one step.
func (d *Document) Redo(ctx context.Context) error {
	return d.move(ctx, ChangeRedone, d.history.Redo)
}

// UndoAll undoes down to the sticky floor.
func (d *Document) UndoAll(ctx context.Context) error {
	return d.move(ctx, ChangeUndone, d.history.UndoAll)
}

// RedoAll redoes to the end of the history.
func (d *Document) RedoAll(ctx context.Context) error {
	return d.move(ctx, ChangeRedone, d.history.RedoAll)
}

// UndoToBreakpoint undoes until a breakpoint or the floor is reached. At
// the floor it does nothing.
func (d *Document) UndoToBreakpoint(ctx context.Context) error {
	return d.move(ctx, ChangeUndone, stopAtFloor(d.history.UndoToBreakpoint))
}

// RedoToBreakpoint redoes until a breakpoint or the end is reached.
func (d *Document) RedoToBreakpoint(ctx context.Context) error {
	return d.move(ctx, ChangeRedone, d.history.RedoToBreakpoint)
}

// GoTo moves the cursor to edit number n.
func (d *Document) GoTo(ctx context.Context, n int) error {
	kind := ChangeRedone
	if n < d.history.DoneCount() {
		kind = ChangeUndone
	}
	return d.move(ctx, kind, func(ectx *edit.Context) error {
		return d.history.GoTo(ectx, n)
	})
}

// SetBreakpoint pins the current cursor position as a breakpoint.
func (d *Document) SetBreakpoint() {
	d.history.SetBreakpoint()
}
