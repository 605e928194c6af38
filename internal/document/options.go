package document

import (
	"context"

	"github.com/dshills/zomeedit/internal/edit"
	"github.com/dshills/zomeedit/internal/event"
	"github.com/dshills/zomeedit/internal/logging"
)

// Reporter receives every failure the document routes to its failure
// channel.
type Reporter func(ctx context.Context, d *Document, f *edit.Failure)

type options struct {
	recordFailed bool
	openUndone   bool
	asTemplate   bool
	coreVersion  string
	edition      string
	build        string
	logger       *logging.Logger
	reporter     Reporter
	bus          *event.Bus
	factory      *edit.Factory
}

func defaultOptions() options {
	return options{
		recordFailed: true,
		coreVersion:  "5.0.0",
		edition:      "zomeedit",
		logger:       logging.Null(),
	}
}

// Option configures a Document.
type Option func(*options)

// WithRecordFailed sets whether edits whose perform failed are kept in
// the history. The change counter and listeners fire either way.
func WithRecordFailed(keep bool) Option {
	return func(o *options) {
		o.recordFailed = keep
	}
}

// WithOpenUndone loads documents with the cursor at zero.
func WithOpenUndone(undone bool) Option {
	return func(o *options) {
		o.openUndone = undone
	}
}

// WithAsTemplate loads documents without their lesson and saved views.
func WithAsTemplate(template bool) Option {
	return func(o *options) {
		o.asTemplate = template
	}
}

// WithCore sets the version, edition and build written on save and used
// to classify loaded files.
func WithCore(version, edition, build string) Option {
	return func(o *options) {
		if version != "" {
			o.coreVersion = version
		}
		if edition != "" {
			o.edition = edition
		}
		o.build = build
	}
}

// WithLogger sets the document logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithReporter sets the failure channel. Without one, failures are
// logged at warn level.
func WithReporter(r Reporter) Option {
	return func(o *options) {
		o.reporter = r
	}
}

// WithBus publishes change and failure events on b.
func WithBus(b *event.Bus) Option {
	return func(o *options) {
		o.bus = b
	}
}

// WithFactory sets the edit factory, for callers registering extra tool
// kinds.
func WithFactory(f *edit.Factory) Option {
	return func(o *options) {
		o.factory = f
	}
}
