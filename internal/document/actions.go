package document

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dshills/zomeedit/internal/edit"
)

// actionFunc builds the edit for a named action. It may inspect the
// document but must not change it.
type actionFunc func(d *Document, arg string) (edit.Edit, error)

var actions = map[string]actionFunc{
	"selectAll": func(*Document, string) (edit.Edit, error) {
		return &edit.SelectAll{}, nil
	},
	"unselectAll": func(*Document, string) (edit.Edit, error) {
		return &edit.DeselectAll{}, nil
	},
	"ballAtOrigin": func(*Document, string) (edit.Edit, error) {
		return edit.NewApplyTool(edit.BallAtOrigin), nil
	},
	"joinballs": func(*Document, string) (edit.Edit, error) {
		return edit.NewJoinPoints(edit.JoinClosedLoop), nil
	},
	"chainBalls": func(*Document, string) (edit.Edit, error) {
		return edit.NewJoinPoints(edit.JoinChain), nil
	},
	"joinBallsAllToFirst": func(*Document, string) (edit.Edit, error) {
		return edit.NewJoinPoints(edit.JoinAllToFirst), nil
	},
	"delete": func(*Document, string) (edit.Edit, error) {
		return &edit.Delete{}, nil
	},
	"hideball": func(d *Document, _ string) (edit.Edit, error) {
		if d.selection.IsEmpty() {
			return &edit.ShowHidden{}, nil
		}
		return &edit.HideManifestation{}, nil
	},
	"setItemColor": func(_ *Document, arg string) (edit.Edit, error) {
		if arg == "" {
			return nil, fmt.Errorf("%w: setItemColor requires a color", ErrUnknownAction)
		}
		return edit.NewSetItemColor(arg), nil
	},
	"applyTool": func(_ *Document, arg string) (edit.Edit, error) {
		if arg == "" {
			return nil, fmt.Errorf("%w: applyTool requires a tool name", ErrUnknownAction)
		}
		return edit.NewApplyTool(arg), nil
	},
}

// Actions returns the names DoEdit accepts, sorted.
func Actions() []string {
	names := make([]string, 0, len(actions))
	for name := range actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DoEdit resolves a user action to an edit and records it. An action may
// carry an argument after a slash, as in "setItemColor/#ff0000". Names
// that are not actions are tried as command names, which also accepts
// legacy aliases.
func (d *Document) DoEdit(ctx context.Context, action string) (Result, error) {
	e, err := d.resolve(action)
	if err != nil {
		return Result{}, err
	}
	return d.PerformAndRecord(ctx, e)
}

func (d *Document) resolve(action string) (edit.Edit, error) {
	name, arg, _ := strings.Cut(action, "/")
	if fn, ok := actions[name]; ok {
		return fn(d, arg)
	}
	if op, ok := edit.ParseOp(name); ok && arg == "" && commandAction(op) {
		return op.New(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
}

// commandAction reports whether a command can run with no parameters
// beyond the current selection.
func commandAction(op edit.Op) bool {
	switch op {
	case edit.OpSelectAll, edit.OpDeselectAll, edit.OpDelete, edit.OpHideManifestation, edit.OpShowHidden:
		return true
	}
	return false
}
