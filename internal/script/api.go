package script

import (
	"context"
	"errors"
	"math"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/zomeedit/internal/document"
	"github.com/dshills/zomeedit/internal/edit"
	"github.com/dshills/zomeedit/internal/model"
)

func (h *Host) api() map[string]lua.LGFunction {
	return map[string]lua.LGFunction{
		"point":       h.point,
		"strut":       h.strut,
		"select":      h.selectBall,
		"doEdit":      h.doEdit,
		"undo":        h.moveFunc((*document.Document).Undo),
		"redo":        h.moveFunc((*document.Document).Redo),
		"undoAll":     h.moveFunc((*document.Document).UndoAll),
		"redoAll":     h.moveFunc((*document.Document).RedoAll),
		"goTo":        h.goTo,
		"breakpoint":  h.breakpoint,
		"addPage":     h.addPage,
		"count":       h.count,
		"elements":    h.elements,
		"editNumber":  h.editNumber,
		"actions":     h.actions,
		"changeCount": h.changeCount,
	}
}

func luaContext(L *lua.LState) context.Context {
	if ctx := L.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func checkInt(L *lua.LState, n int) int64 {
	v := float64(L.CheckNumber(n))
	if v != math.Trunc(v) {
		L.ArgError(n, "integer expected")
	}
	return int64(v)
}

func checkVector(L *lua.LState, first int) model.Vector {
	return model.Vector{checkInt(L, first), checkInt(L, first+1), checkInt(L, first+2)}
}

// record pushes the outcome of an edit: true, or false and the failure
// message. Errors other than edit failures are raised.
func (h *Host) record(L *lua.LState, res document.Result, err error) int {
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	if res.Failure != nil {
		L.Push(lua.LFalse)
		L.Push(lua.LString(res.Failure.Error()))
		return 2
	}
	L.Push(lua.LTrue)
	return 1
}

func (h *Host) perform(L *lua.LState, e edit.Edit) int {
	res, err := h.doc.PerformAndRecord(luaContext(L), e)
	return h.record(L, res, err)
}

func (h *Host) point(L *lua.LState) int {
	return h.perform(L, edit.NewShowPoint(checkVector(L, 1)))
}

func (h *Host) strut(L *lua.LState) int {
	return h.perform(L, edit.NewStrutCreation(checkVector(L, 1), checkVector(L, 4)))
}

func (h *Host) selectBall(L *lua.LState) int {
	key := model.NewBall(checkVector(L, 1)).Key()
	return h.perform(L, edit.NewSelectManifestation(key))
}

func (h *Host) doEdit(L *lua.LState) int {
	res, err := h.doc.DoEdit(luaContext(L), L.CheckString(1))
	return h.record(L, res, err)
}

// moveFunc adapts a cursor move. Running out of history is reported like
// a failed edit; anything else is raised.
func (h *Host) moveFunc(fn func(*document.Document, context.Context) error) lua.LGFunction {
	return func(L *lua.LState) int {
		return h.moved(L, fn(h.doc, luaContext(L)))
	}
}

func (h *Host) moved(L *lua.LState, err error) int {
	var f *edit.Failure
	switch {
	case err == nil:
		L.Push(lua.LTrue)
		return 1
	case errors.Is(err, document.ErrReentrant), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		L.RaiseError("%s", err.Error())
		return 0
	case errors.As(err, &f):
		L.Push(lua.LFalse)
		L.Push(lua.LString(f.Error()))
		return 2
	default:
		L.Push(lua.LFalse)
		L.Push(lua.LString(err.Error()))
		return 2
	}
}

func (h *Host) goTo(L *lua.LState) int {
	return h.moved(L, h.doc.GoTo(luaContext(L), int(checkInt(L, 1))))
}

func (h *Host) breakpoint(L *lua.LState) int {
	h.doc.SetBreakpoint()
	return 0
}

func (h *Host) addPage(L *lua.LState) int {
	title := L.CheckString(1)
	content := L.OptString(2, "")
	i, res, err := h.doc.AddSnapshotPage(luaContext(L), title, content)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	if res.Failure != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(res.Failure.Error()))
		return 2
	}
	// Lua indexes from one.
	L.Push(lua.LNumber(i + 1))
	return 1
}

func (h *Host) count(L *lua.LState) int {
	L.Push(lua.LNumber(h.doc.Model().Capture().Len()))
	return 1
}

func (h *Host) elements(L *lua.LState) int {
	t := L.NewTable()
	for _, k := range h.doc.Model().Capture().Keys() {
		t.Append(lua.LString(k))
	}
	L.Push(t)
	return 1
}

func (h *Host) editNumber(L *lua.LState) int {
	L.Push(lua.LNumber(h.doc.History().DoneCount()))
	return 1
}

func (h *Host) changeCount(L *lua.LState) int {
	L.Push(lua.LNumber(h.doc.ChangeCount()))
	return 1
}

func (h *Host) actions(L *lua.LState) int {
	t := L.NewTable()
	for _, name := range document.Actions() {
		t.Append(lua.LString(name))
	}
	L.Push(t)
	return 1
}
