// Package app coordinates open documents, configuration, logging and the
// event bus for the zomeedit tools.
package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dshills/zomeedit/internal/config"
	"github.com/dshills/zomeedit/internal/document"
	"github.com/dshills/zomeedit/internal/edit"
	"github.com/dshills/zomeedit/internal/event"
	"github.com/dshills/zomeedit/internal/format"
	"github.com/dshills/zomeedit/internal/logging"
)

// Options configures the application.
type Options struct {
	// ConfigPath is the path to the configuration file. Empty uses
	// Config, or the defaults.
	ConfigPath string

	// Config is used when ConfigPath is empty.
	Config *config.Config

	// WatchConfig reloads ConfigPath when it changes.
	WatchConfig bool

	// Logger overrides the logger built from the configuration.
	Logger *logging.Logger

	// LogOutput is where the built logger writes. Defaults to os.Stderr.
	LogOutput io.Writer
}

// Application owns the open documents and the services they share.
type Application struct {
	mu     sync.RWMutex
	cfg    *config.Config
	closed bool

	logger   *logging.Logger
	bus      *event.Bus
	docs     *DocumentManager
	metrics  *Metrics
	reloader *config.Reloader

	unsubscribe []func()
}

// New creates an application.
func New(opts Options) (*Application, error) {
	a := &Application{
		docs:    NewDocumentManager(),
		metrics: NewMetrics(),
	}

	cfg := opts.Config
	if opts.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(opts.ConfigPath); err != nil {
			return nil, NewOperationError("load config", opts.ConfigPath, err)
		}
	}
	if cfg == nil {
		cfg = config.Default()
	}
	a.cfg = cfg

	a.logger = opts.Logger
	if a.logger == nil {
		lc := logging.DefaultConfig()
		lc.Level = cfg.LogLevel()
		lc.Output = opts.LogOutput
		a.logger = logging.New(lc)
	}

	a.bus = event.NewBus(event.WithPanicHandler(func(ev event.Event, r any) {
		a.logger.Error("handler for %s panicked: %v", ev.Topic, r)
	}))
	if err := a.subscribe(); err != nil {
		return nil, err
	}

	if opts.WatchConfig && opts.ConfigPath != "" {
		r, err := config.NewReloader(opts.ConfigPath, a.bus, a.logger)
		if err != nil {
			a.Shutdown()
			return nil, NewOperationError("watch config", opts.ConfigPath, err)
		}
		a.reloader = r
	}
	return a, nil
}

func (a *Application) subscribe() error {
	subs := []struct {
		topic event.Topic
		fn    event.HandlerFunc
	}{
		{event.TopicConfigReloaded, a.onConfigReloaded},
		{event.TopicDocumentChanged, func(context.Context, event.Event) { a.metrics.RecordChange() }},
		{event.TopicDocumentFailure, func(context.Context, event.Event) { a.metrics.RecordFailure() }},
	}
	for _, s := range subs {
		cancel, err := a.bus.Subscribe(s.topic, s.fn)
		if err != nil {
			return err
		}
		a.unsubscribe = append(a.unsubscribe, cancel)
	}
	return nil
}

func (a *Application) onConfigReloaded(_ context.Context, ev event.Event) {
	cfg, ok := ev.Payload.(*config.Config)
	if !ok {
		return
	}
	a.ApplyConfig(cfg)
}

// ApplyConfig replaces the settings. The log level applies at once; the
// other settings apply to documents opened or saved afterwards.
func (a *Application) ApplyConfig(cfg *config.Config) {
	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()
	a.logger.SetLevel(cfg.LogLevel())
	a.logger.Debug("applied config: level %s, codec %s", cfg.LogLevel(), cfg.Save.Codec)
}

// Config returns the current settings.
func (a *Application) Config() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

// Logger returns the application logger.
func (a *Application) Logger() *logging.Logger { return a.logger }

// Bus returns the event bus documents publish on.
func (a *Application) Bus() *event.Bus { return a.bus }

// Documents returns the document manager.
func (a *Application) Documents() *DocumentManager { return a.docs }

// Metrics returns the application metrics.
func (a *Application) Metrics() *Metrics { return a.metrics }

// documentOptions builds the options for a new document from the
// current settings. extra options are applied last.
func (a *Application) documentOptions(extra ...document.Option) []document.Option {
	cfg := a.Config()
	opts := []document.Option{
		document.WithCore(cfg.Core.Version, cfg.Core.Edition, cfg.Core.Build),
		document.WithRecordFailed(cfg.History.RecordFailed),
		document.WithOpenUndone(cfg.History.OpenUndone),
		document.WithLogger(a.logger.WithComponent("document")),
		document.WithReporter(a.reportFailure),
		document.WithBus(a.bus),
	}
	return append(opts, extra...)
}

// reportFailure is the failure channel for every document: failures go to
// the log here and to the bus from the document itself.
func (a *Application) reportFailure(_ context.Context, d *document.Document, f *edit.Failure) {
	log := a.logger.WithField("document", d.ID())
	if f.Internal {
		log.Error("internal failure: %v", f)
		return
	}
	log.Warn("edit failed: %s", f.Message)
}

func (a *Application) checkOpen() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	return nil
}

// Create makes a new empty document.
func (a *Application) Create(opts ...document.Option) (*Document, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}
	codec, err := format.CodecFor(a.Config().Save.Codec, a.Config().Save.Indent)
	if err != nil {
		return nil, err
	}
	d := newDocument("", document.New(a.documentOptions(opts...)...), codec)
	if err := a.docs.add(d); err != nil {
		return nil, err
	}
	a.metrics.RecordCreate()
	return d, nil
}

// Open reads and loads the document at path. Opening a path that is
// already open returns ErrDocumentAlreadyOpen.
func (a *Application) Open(ctx context.Context, path string, opts ...document.Option) (*Document, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, NewOperationError("open", path, err)
	}
	if _, exists := a.docs.Get(abs); exists {
		return nil, NewOperationError("open", abs, ErrDocumentAlreadyOpen)
	}

	start := time.Now()
	f, err := os.Open(abs)
	if err != nil {
		return nil, NewOperationError("open", abs, err)
	}
	defer f.Close()

	doc, codec, err := document.Read(ctx, f, a.documentOptions(opts...)...)
	if err != nil {
		var le *document.LoadError
		if errors.As(err, &le) && le.TooNew {
			return nil, NewOperationError("open", abs, err).WithContext("file version " + le.FileVersion)
		}
		return nil, NewOperationError("open", abs, err)
	}
	elapsed := time.Since(start)

	d := newDocument(abs, doc, codec)
	if err := a.docs.add(d); err != nil {
		return nil, NewOperationError("open", abs, err)
	}
	a.metrics.RecordLoad(elapsed)
	a.logger.Info("opened %s (%d edits, %s)", abs, doc.History().Len(), elapsed.Round(time.Millisecond))
	if doc.IsMigrated() {
		a.logger.Info("%s was migrated from an older format; save it to keep the new format", abs)
	}
	return d, nil
}

// Save writes a document back to its path.
func (a *Application) Save(key string) error {
	d, ok := a.docs.Get(key)
	if !ok {
		return NewOperationError("save", key, ErrDocumentNotFound)
	}
	if d.Path == "" {
		return NewOperationError("save", d.Name, ErrNoPath)
	}
	return a.write(d, d.Path)
}

// SaveAs writes a document to path and makes path its new home.
func (a *Application) SaveAs(key, path string) error {
	d, ok := a.docs.Get(key)
	if !ok {
		return NewOperationError("save", key, ErrDocumentNotFound)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return NewOperationError("save", path, err)
	}
	if err := a.write(d, abs); err != nil {
		return err
	}
	if err := a.docs.rekey(d, abs); err != nil {
		return NewOperationError("save", abs, err)
	}
	return nil
}

// write encodes d with its codec and replaces path with the result.
func (a *Application) write(d *Document, path string) error {
	cfg := a.Config()
	name := cfg.Save.Codec
	if d.Codec != nil {
		name = d.Codec.Name()
	}
	codec, err := format.CodecFor(name, cfg.Save.Indent)
	if err != nil {
		return NewOperationError("save", path, err)
	}

	var buf bytes.Buffer
	if err := d.Model.Save(&buf, codec); err != nil {
		return NewOperationError("save", path, err)
	}
	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return NewOperationError("save", path, err)
	}
	d.markSaved()
	a.metrics.RecordSave()
	if _, err := a.bus.Publish(context.Background(), event.New(event.TopicDocumentSaved, path, "app")); err != nil {
		a.logger.Warn("publish save: %v", err)
	}
	a.logger.Info("saved %s", path)
	return nil
}

// writeFileAtomic writes data to a temporary file beside path and renames
// it into place.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return err
	}
	return nil
}

// Close closes a document. Unless force is set, a document with unsaved
// changes is kept open and ErrUnsavedChanges returned.
func (a *Application) Close(key string, force bool) error {
	d, ok := a.docs.Get(key)
	if !ok {
		return NewOperationError("close", key, ErrDocumentNotFound)
	}
	if !force && d.IsModified() {
		return NewOperationError("close", d.Name, ErrUnsavedChanges)
	}
	if _, err := a.docs.remove(key); err != nil {
		return NewOperationError("close", key, err)
	}
	a.metrics.RecordClose()
	return nil
}

// CloseAll closes every document, collecting the errors.
func (a *Application) CloseAll(force bool) error {
	var errs ErrorList
	for _, d := range a.docs.All() {
		errs.Add(a.Close(d.Key(), force))
	}
	return errs.AsError()
}

// Shutdown stops watching the configuration and drops every document
// without saving.
func (a *Application) Shutdown() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	var errs ErrorList
	if a.reloader != nil {
		errs.Add(a.reloader.Close())
	}
	errs.Add(a.CloseAll(true))
	for _, cancel := range a.unsubscribe {
		cancel()
	}
	return errs.AsError()
}
