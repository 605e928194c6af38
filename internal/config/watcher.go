package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/zomeedit/internal/event"
	"github.com/dshills/zomeedit/internal/logging"
)

// ChangeHandler is called with the absolute path of a changed file.
type ChangeHandler func(path string)

// Watcher reports writes to a set of files. It watches their parent
// directories so that editors which save by rename are still seen.
type Watcher struct {
	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	files    map[string]bool
	dirs     map[string]bool
	handler  ChangeHandler
	debounce time.Duration
	pending  map[string]*time.Timer
	logger   *logging.Logger

	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce coalesces bursts of events for the same file.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the watcher logger.
func WithLogger(l *logging.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = l
	}
}

// NewWatcher creates a watcher that calls handler on changes.
func NewWatcher(handler ChangeHandler, opts ...WatcherOption) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:      fsw,
		files:    make(map[string]bool),
		dirs:     make(map[string]bool),
		handler:  handler,
		debounce: 100 * time.Millisecond,
		pending:  make(map[string]*time.Timer),
		logger:   logging.Null(),
		closeCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.wg.Add(1)
	go w.processLoop()
	return w, nil
}

// Watch adds a file. The file need not exist yet, but its directory must.
func (w *Watcher) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWatcherClosed
	}
	dir := filepath.Dir(abs)
	if !w.dirs[dir] {
		if err := w.fsw.Add(dir); err != nil {
			return err
		}
		w.dirs[dir] = true
	}
	w.files[abs] = true
	return nil
}

// Close stops the watcher and waits for pending callbacks to be dropped.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	w.wg.Wait()
	return w.fsw.Close()
}

func (w *Watcher) processLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.closeCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleFSEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error: %v", err)
		}
	}
}

func (w *Watcher) handleFSEvent(ev fsnotify.Event) {
	if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Rename) {
		return
	}
	path, err := filepath.Abs(ev.Name)
	if err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || !w.files[path] {
		return
	}
	if w.debounce == 0 {
		go w.handler(path)
		return
	}
	if t, ok := w.pending[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		closed := w.closed
		w.mu.Unlock()
		if !closed {
			w.handler(path)
		}
	})
}

// Reloader re-reads a config file when it changes and publishes the new
// settings on the bus under event.TopicConfigReloaded.
type Reloader struct {
	path    string
	bus     *event.Bus
	logger  *logging.Logger
	watcher *Watcher

	mu      sync.RWMutex
	current *Config
}

// NewReloader loads path and starts watching it.
func NewReloader(path string, bus *event.Bus, logger *logging.Logger) (*Reloader, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Null()
	}
	r := &Reloader{path: path, bus: bus, logger: logger.WithComponent("config"), current: cfg}
	w, err := NewWatcher(r.reload, WithLogger(r.logger))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(path); err != nil {
		_ = w.Close()
		return nil, err
	}
	r.watcher = w
	return r, nil
}

// Current returns the most recently loaded settings.
func (r *Reloader) Current() *Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

func (r *Reloader) reload(string) {
	cfg, err := Load(r.path)
	if err != nil {
		r.logger.Warn("config reload rejected: %v", err)
		return
	}
	r.mu.Lock()
	r.current = cfg
	r.mu.Unlock()
	r.logger.Info("config reloaded from %s", r.path)
	if r.bus != nil {
		if _, err := r.bus.Publish(context.Background(), event.New(event.TopicConfigReloaded, cfg, "config")); err != nil {
			r.logger.Warn("publish config reload: %v", err)
		}
	}
}

// Close stops watching.
func (r *Reloader) Close() error {
	return r.watcher.Close()
}
