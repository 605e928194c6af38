// Package script runs Lua scripts against a document.
//
// A script sees a single global module, zome, whose functions record
// edits through the document exactly as interactive actions would:
//
//	zome.point(1, 0, 0)
//	zome.point(0, 1, 0)
//	zome.doEdit("selectAll")
//	zome.doEdit("chainBalls")
//	zome.addPage("Two balls", "A strut between two balls.")
//
// Edit functions return true on success, or false and a message when the
// edit failed. Misuse such as an unknown action raises a Lua error.
package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/zomeedit/internal/document"
	"github.com/dshills/zomeedit/internal/logging"
)

// DefaultTimeout bounds a single script run.
const DefaultTimeout = 30 * time.Second

// ModuleName is the global table scripts use to reach the document.
const ModuleName = "zome"

// Errors returned by the host.
var (
	ErrHostClosed = errors.New("script host is closed")
	ErrTimeout    = errors.New("script timed out")
)

// Host owns a Lua state bound to one document.
//
// gopher-lua states are not goroutine-safe; the host serializes runs.
type Host struct {
	L   *lua.LState
	doc *document.Document

	mu      sync.Mutex
	timeout time.Duration
	out     io.Writer
	logger  *logging.Logger
	closed  bool
}

// Option configures a Host.
type Option func(*Host)

// WithTimeout sets the limit for one run. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(h *Host) {
		h.timeout = d
	}
}

// WithOutput redirects print.
func WithOutput(w io.Writer) Option {
	return func(h *Host) {
		h.out = w
	}
}

// WithLogger sets the host logger.
func WithLogger(l *logging.Logger) Option {
	return func(h *Host) {
		h.logger = l
	}
}

// NewHost creates a host for doc with only the safe standard libraries
// opened.
func NewHost(doc *document.Document, opts ...Option) *Host {
	h := &Host{
		doc:     doc,
		timeout: DefaultTimeout,
		out:     os.Stdout,
		logger:  logging.Null(),
	}
	for _, opt := range opts {
		opt(h)
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)
	h.L = L
	L.SetGlobal("print", L.NewFunction(h.print))
	L.SetGlobal(ModuleName, L.SetFuncs(L.NewTable(), h.api()))
	return h
}

// openSafeLibraries opens base, table, string and math. io, os, debug
// and package stay closed.
func openSafeLibraries(L *lua.LState) {
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
}

// Document returns the document scripts edit.
func (h *Host) Document() *document.Document {
	return h.doc
}

// Run executes Lua source. name labels the chunk in error messages.
func (h *Host) Run(ctx context.Context, name, code string) error {
	fn, err := h.compile(name, code)
	if err != nil {
		return err
	}
	return h.call(ctx, name, fn)
}

// RunFile executes a Lua file.
func (h *Host) RunFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return h.Run(ctx, path, string(data))
}

func (h *Host) compile(name, code string) (*lua.LFunction, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHostClosed
	}
	fn, err := h.L.Load(strings.NewReader(code), name)
	if err != nil {
		return nil, &Error{Script: name, Err: err}
	}
	return fn, nil
}

func (h *Host) call(ctx context.Context, name string, fn *lua.LFunction) (err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHostClosed
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	h.L.SetContext(ctx)
	defer h.L.RemoveContext()

	defer func() {
		if r := recover(); r != nil {
			err = &Error{Script: name, Err: fmt.Errorf("lua panic: %v", r)}
		}
	}()

	start := time.Now()
	h.L.Push(fn)
	if perr := h.L.PCall(0, lua.MultRet, nil); perr != nil {
		h.L.SetTop(0)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &Error{Script: name, Err: ErrTimeout}
		}
		if ctx.Err() != nil {
			return &Error{Script: name, Err: ctx.Err()}
		}
		return &Error{Script: name, Err: perr}
	}
	h.L.SetTop(0)
	h.logger.Debug("ran %s in %s", name, time.Since(start))
	return nil
}

// Close releases the Lua state.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.L.Close()
	h.closed = true
	return nil
}

func (h *Host) print(L *lua.LState) int {
	n := L.GetTop()
	parts := make([]string, n)
	for i := 1; i <= n; i++ {
		parts[i-1] = L.ToStringMeta(L.Get(i)).String()
	}
	fmt.Fprintln(h.out, strings.Join(parts, "\t"))
	return 0
}

// Error is a script that failed to compile or run.
type Error struct {
	Script string
	Err    error
}

// Error implements error.
func (e *Error) Error() string {
	return fmt.Sprintf("script %s: %v", e.Script, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}
