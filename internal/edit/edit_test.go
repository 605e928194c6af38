package edit

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dshills/zomeedit/internal/format"
	"github.com/dshills/zomeedit/internal/model"
)

type frames map[int]*model.Frame

func (f frames) Record(id int, fr *model.Frame) { f[id] = fr }

func newTestContext() (*Context, frames) {
	snaps := frames{}
	return &Context{
		Model:     model.NewRealized(),
		Selection: model.NewSelection(),
		Tools:     NewToolRegistry(),
		Snapshots: snaps,
		Factory:   NewFactory(),
	}, snaps
}

func addBalls(t *testing.T, ctx *Context, pts ...model.Vector) {
	t.Helper()
	for _, p := range pts {
		b := model.NewBall(p)
		ctx.Model.Add(b)
		ctx.Selection.Select(b.Key())
	}
}

func keysOf(ctx *Context) string {
	return fmt.Sprint(ctx.Model.Capture().Keys())
}

func TestJoinPointsModes(t *testing.T) {
	tests := []struct {
		mode   JoinMode
		struts int
	}{
		{JoinChain, 2},
		{JoinClosedLoop, 3},
		{JoinAllToFirst, 2},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			ctx, _ := newTestContext()
			addBalls(t, ctx, model.Vector{0, 0, 0}, model.Vector{1, 0, 0}, model.Vector{0, 1, 0})
			e := NewJoinPoints(tt.mode)
			if err := Perform(e, ctx); err != nil {
				t.Fatalf("Perform failed: %v", err)
			}
			if got := ctx.Model.(*model.Realized).Len() - 3; got != tt.struts {
				t.Errorf("got %d struts, want %d", got, tt.struts)
			}
		})
	}
}

func TestUndoRedoInverse(t *testing.T) {
	ctx, _ := newTestContext()
	addBalls(t, ctx, model.Vector{0, 0, 0}, model.Vector{2, 0, 0})
	e := NewJoinPoints(JoinChain)
	if err := Perform(e, ctx); err != nil {
		t.Fatal(err)
	}
	after := keysOf(ctx)

	// The selection changes between perform and redo; redo must use the
	// captured points, not the live selection.
	if err := Undo(e, ctx); err != nil {
		t.Fatal(err)
	}
	ctx.Selection.Clear()
	if err := Redo(e, ctx); err != nil {
		t.Fatal(err)
	}
	if got := keysOf(ctx); got != after {
		t.Errorf("after redo %s, want %s", got, after)
	}
}

func TestStrutCreationCoincident(t *testing.T) {
	ctx, _ := newTestContext()
	err := Perform(NewStrutCreation(model.Vector{1, 1, 1}, model.Vector{1, 1, 1}), ctx)
	f := AsFailure(err)
	if f == nil || f.Internal {
		t.Fatalf("got %v, want user-facing failure", err)
	}
	if f.Message != "points are coincident" {
		t.Errorf("Message = %q", f.Message)
	}
}

func TestAsFailure(t *testing.T) {
	if AsFailure(nil) != nil {
		t.Error("AsFailure(nil) should be nil")
	}
	direct := Failf("bad %d", 1)
	if AsFailure(direct) != direct {
		t.Error("direct failure not returned as is")
	}
	wrapped := fmt.Errorf("perform: %w", direct)
	if AsFailure(wrapped) != direct {
		t.Error("wrapped failure not unwrapped")
	}
	raw := errors.New("boom")
	f := AsFailure(raw)
	if !f.Internal || !errors.Is(f, raw) {
		t.Errorf("raw fault = %+v", f)
	}

	err := Run(func() error { panic("kaboom") })
	if f := AsFailure(err); f == nil || !f.Internal {
		t.Errorf("panic not converted: %v", err)
	}
}

func TestDeleteUndo(t *testing.T) {
	ctx, _ := newTestContext()
	addBalls(t, ctx, model.Vector{0, 0, 0}, model.Vector{1, 0, 0})
	before := keysOf(ctx)
	d := &Delete{}
	if err := Perform(d, ctx); err != nil {
		t.Fatal(err)
	}
	if ctx.Model.(*model.Realized).Len() != 0 || !ctx.Selection.IsEmpty() {
		t.Errorf("delete left %d elements, %d selected", ctx.Model.(*model.Realized).Len(), ctx.Selection.Len())
	}
	if err := Undo(d, ctx); err != nil {
		t.Fatal(err)
	}
	if keysOf(ctx) != before || ctx.Selection.Len() != 2 {
		t.Errorf("undo did not restore: %s", keysOf(ctx))
	}

	ctx.Selection.Clear()
	err := Perform(&Delete{}, ctx)
	if !errors.Is(err, ErrEmptySelection) {
		t.Errorf("got %v, want ErrEmptySelection", err)
	}
}

func TestSetItemColor(t *testing.T) {
	ctx, _ := newTestContext()
	addBalls(t, ctx, model.Vector{0, 0, 0})
	key := model.NewBall(model.Vector{}).Key()

	c := NewSetItemColor("FF8000")
	if err := Perform(c, ctx); err != nil {
		t.Fatal(err)
	}
	if e, _ := ctx.Model.Get(key); e.Color != "#ff8000" {
		t.Errorf("Color = %q, want #ff8000", e.Color)
	}
	if c.Marshal().Attr("color") != "#ff8000" {
		t.Error("normalized color not serialized")
	}
	Undo(c, ctx)
	if e, _ := ctx.Model.Get(key); e.Color != "" {
		t.Errorf("undo left color %q", e.Color)
	}

	if err := Perform(NewSetItemColor("not a color"), ctx); AsFailure(err) == nil || AsFailure(err).Internal {
		t.Errorf("got %v, want user-facing failure", err)
	}
}

func TestSelectionEdits(t *testing.T) {
	ctx, _ := newTestContext()
	ctx.Model.Add(model.NewBall(model.Vector{}))
	ctx.Model.Add(model.NewBall(model.Vector{1, 0, 0}))

	all := &SelectAll{}
	if !IsSelectionOnly(all) {
		t.Error("SelectAll should be selection-only")
	}
	Perform(all, ctx)
	if ctx.Selection.Len() != 2 {
		t.Errorf("selected %d, want 2", ctx.Selection.Len())
	}
	none := &DeselectAll{}
	Perform(none, ctx)
	Undo(none, ctx)
	if ctx.Selection.Len() != 2 {
		t.Error("DeselectAll undo did not restore selection")
	}
	Undo(all, ctx)
	if !ctx.Selection.IsEmpty() {
		t.Error("SelectAll undo left selection")
	}

	toggle := NewSelectManifestation("ball(9,9,9)")
	if err := Perform(toggle, ctx); err == nil {
		t.Error("selecting a missing element should fail")
	}
}

func TestHideAndShow(t *testing.T) {
	ctx, _ := newTestContext()
	addBalls(t, ctx, model.Vector{0, 0, 0})
	hide := &HideManifestation{}
	if err := Perform(hide, ctx); err != nil {
		t.Fatal(err)
	}
	if ctx.Model.Capture().Len() != 0 || !ctx.Selection.IsEmpty() {
		t.Error("hidden element still visible or selected")
	}
	show := &ShowHidden{}
	Perform(show, ctx)
	if ctx.Model.Capture().Len() != 1 {
		t.Error("ShowHidden did not reveal")
	}
	Undo(show, ctx)
	Undo(hide, ctx)
	if ctx.Model.Capture().Len() != 1 || ctx.Selection.Len() != 1 {
		t.Error("undo sequence did not restore")
	}
}

func TestBookmarkTool(t *testing.T) {
	ctx, _ := newTestContext()
	addBalls(t, ctx, model.Vector{5, 5, 5})
	b := NewBookmarkTool("mine")
	if err := Perform(b, ctx); err != nil {
		t.Fatal(err)
	}
	if !IsSticky(b) {
		t.Error("tool definition should be sticky")
	}
	if _, ok := ctx.Tools.Get("mine"); !ok {
		t.Fatal("tool not registered")
	}

	ctx.Model.Remove(model.NewBall(model.Vector{5, 5, 5}).Key())
	apply := NewApplyTool("mine")
	if err := Perform(apply, ctx); err != nil {
		t.Fatal(err)
	}
	if ctx.Model.(*model.Realized).Len() != 1 {
		t.Errorf("Len = %d, want 1", ctx.Model.(*model.Realized).Len())
	}
	Undo(apply, ctx)
	if ctx.Model.(*model.Realized).Len() != 0 {
		t.Error("undo of ApplyTool left elements")
	}

	// Redo uses the captured result even after the tool is gone.
	ctx.Tools.Unregister("mine")
	if err := Redo(apply, ctx); err != nil {
		t.Fatal(err)
	}
	if ctx.Model.(*model.Realized).Len() != 1 {
		t.Error("redo did not re-add captured elements")
	}

	err := Perform(NewApplyTool("missing"), ctx)
	if !errors.Is(err, ErrUnknownTool) {
		t.Errorf("got %v, want ErrUnknownTool", err)
	}
}

func TestTranslationTool(t *testing.T) {
	ctx, _ := newTestContext()
	err := Perform(NewTranslationTool("t"), ctx)
	want := "translation tool requires start and end points, or just an end point"
	if f := AsFailure(err); f == nil || f.Message != want {
		t.Fatalf("got %v, want %q", err, want)
	}

	addBalls(t, ctx, model.Vector{0, 0, 0}, model.Vector{0, 0, 2})
	tr := NewTranslationTool("up")
	if err := Perform(tr, ctx); err != nil {
		t.Fatal(err)
	}
	if tr.Offset != (model.Vector{0, 0, 2}) {
		t.Errorf("Offset = %v", tr.Offset)
	}
	if err := Perform(NewApplyTool("up"), ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok := ctx.Model.Get(model.NewBall(model.Vector{0, 0, 4}).Key()); !ok {
		t.Error("translated ball missing")
	}
}

func TestRemoveTool(t *testing.T) {
	ctx, _ := newTestContext()
	ctx.Tools.Register(NewBallAtOriginTool())
	r := NewRemoveTool(BallAtOrigin)
	if err := Perform(r, ctx); err != nil {
		t.Fatal(err)
	}
	if ctx.Tools.Len() != 0 {
		t.Error("tool not removed")
	}
	Undo(r, ctx)
	if _, ok := ctx.Tools.Get(BallAtOrigin); !ok {
		t.Error("undo did not restore tool")
	}
}

func TestToolRegistry(t *testing.T) {
	r := NewToolRegistry()
	first := NewBookmarkTool("café")
	second := NewBookmarkTool("cafe\u0301")
	if r.Register(first) {
		t.Error("first registration reported replace")
	}
	if !r.Register(second) {
		t.Error("equivalent name should replace")
	}
	if got, _ := r.Get("café"); got != second {
		t.Error("last write should win")
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}

	r.SetMeta("café", ToolMeta{Label: "Coffee", Hidden: true})
	other := NewToolRegistry()
	if err := other.UnmarshalMeta(r.MarshalMeta()); err != nil {
		t.Fatal(err)
	}
	if m, ok := other.Meta("café"); !ok || m.Label != "Coffee" || !m.Hidden {
		t.Errorf("Meta = %+v, %v", m, ok)
	}
}

func TestFactoryPassthrough(t *testing.T) {
	f := NewFactory()
	el := format.NewElement("FutureCommand").SetAttr("zeta", "1").SetAttr("alpha", "2")
	el.Append(format.NewElement("Nested").SetAttr("x", "y"))
	e, err := f.Decode(el)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.(*Passthrough); !ok {
		t.Fatalf("got %T, want *Passthrough", e)
	}
	if !e.Marshal().Equal(el) {
		t.Error("passthrough did not preserve element")
	}
	el.SetAttr("zeta", "changed")
	if e.Marshal().Attr("zeta") != "1" {
		t.Error("passthrough shares the source element")
	}
}

func TestFactoryLookup(t *testing.T) {
	f := NewFactory()
	e, err := f.Decode(format.NewElement("UnselectAll"))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.(*DeselectAll); !ok {
		t.Errorf("legacy name resolved to %T", e)
	}
	if _, ok := f.Create("BookmarkTool"); !ok {
		t.Error("tool kind not registered")
	}
	if _, err := f.Decode(format.NewElement("ShowPoint").SetAttr("point", "bad")); err == nil {
		t.Error("malformed parameters should fail to decode")
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	f := NewFactory()
	edits := []Edit{
		NewShowPoint(model.Vector{1, 2, 3}),
		NewStrutCreation(model.Vector{}, model.Vector{0, 0, 1}),
		&JoinPoints{Mode: JoinChain, Points: []model.Vector{{0, 0, 0}, {1, 1, 1}}},
		&Delete{Targets: []model.Element{model.NewBall(model.Vector{4, 4, 4})}},
		&SetItemColor{Color: "#112233", Targets: []string{"ball(0,0,0)"}},
		NewSelectManifestation("ball(0,0,0)"),
		&HideManifestation{Targets: []string{"ball(0,0,0)"}},
		NewApplyTool("x"),
		NewRemoveTool("x"),
		NewSnapshot(3),
		&TranslationTool{ID: "t", Offset: model.Vector{1, 0, 0}},
		NewBallAtOriginTool(),
		NewBranch(NewShowPoint(model.Vector{}), &SelectAll{}),
		NewCompound(NewShowPoint(model.Vector{}), &DeselectAll{}),
	}
	for _, e := range edits {
		t.Run(e.Name(), func(t *testing.T) {
			el := e.Marshal()
			back, err := f.Decode(el)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if !back.Marshal().Equal(el) {
				t.Errorf("element changed across decode")
			}
		})
	}
}

func TestBranchLeavesModelUnchanged(t *testing.T) {
	ctx, _ := newTestContext()
	b := NewBranch(NewShowPoint(model.Vector{}), NewShowPoint(model.Vector{1, 0, 0}))
	if err := Perform(b, ctx); err != nil {
		t.Fatal(err)
	}
	if ctx.Model.(*model.Realized).Len() != 0 {
		t.Errorf("branch left %d elements", ctx.Model.(*model.Realized).Len())
	}
}

func TestCompound(t *testing.T) {
	ctx, _ := newTestContext()
	inner := NewCompound(NewShowPoint(model.Vector{}))
	c := NewCompound(inner, &SelectAll{})
	if len(c.Edits) != 2 {
		t.Fatalf("nested compound not flattened: %d", len(c.Edits))
	}
	if c.SelectionOnly() {
		t.Error("compound with a model edit is not selection-only")
	}
	if err := Perform(c, ctx); err != nil {
		t.Fatal(err)
	}
	if ctx.Selection.Len() != 1 {
		t.Error("compound did not run all edits")
	}
	Undo(c, ctx)
	if ctx.Model.(*model.Realized).Len() != 0 || !ctx.Selection.IsEmpty() {
		t.Error("compound undo incomplete")
	}
}

func TestSnapshotEdit(t *testing.T) {
	ctx, snaps := newTestContext()
	ctx.Model.Add(model.NewBall(model.Vector{}))
	if err := Perform(NewSnapshot(2), ctx); err != nil {
		t.Fatal(err)
	}
	if snaps[2].Len() != 1 {
		t.Error("snapshot not recorded")
	}
	if err := (&Snapshot{}).Unmarshal(format.NewElement("Snapshot"), nil); err == nil {
		t.Error("snapshot without id should fail")
	}
}

func TestOpNames(t *testing.T) {
	for op := Op(0); op < opCount; op++ {
		got, ok := ParseOp(op.String())
		if !ok || got != op {
			t.Errorf("ParseOp(%q) = %v, %v", op.String(), got, ok)
		}
		if op.New() == nil {
			t.Errorf("%v has no constructor", op)
		}
	}
	if IsNoOp(&ShowPoint{}) || !IsNoOp(nil) || !IsNoOp(&NoOp{}) {
		t.Error("IsNoOp misclassified")
	}
}
