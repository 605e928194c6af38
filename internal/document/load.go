package document

import (
	"context"
	"io"
	"time"

	"github.com/dshills/zomeedit/internal/format"
	"github.com/dshills/zomeedit/internal/history"
	"github.com/dshills/zomeedit/internal/lesson"
)

// Element names read from a document root besides the history and lesson.
const (
	viewingElement = "Viewing"
	toolsElement   = "Tools"
	defaultView    = "default"
)

const savedViewNote = "This page was a saved view created by an older version."

// Read decodes a document in either codec and loads it.
func Read(ctx context.Context, r io.Reader, opts ...Option) (*Document, format.Codec, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}
	root, codec, err := format.DecodeBytes(data)
	if err != nil {
		return nil, codec, err
	}
	d, err := Load(ctx, root, opts...)
	return d, codec, err
}

// Load creates a document from a root element.
func Load(ctx context.Context, root *format.Element, opts ...Option) (*Document, error) {
	d := New(opts...)
	if err := d.finishLoading(ctx, root); err != nil {
		return nil, err
	}
	return d, nil
}

// finishLoading replays root into the empty document d.
//
// Saved views and lesson placeholders are turned into snapshot ids, tool
// metadata is loaded, and the history is replayed to the saved cursor
// with one Snapshot edit spliced in per placeholder edit number.
func (d *Document) finishLoading(ctx context.Context, root *format.Element) error {
	start := time.Now()
	log := d.opts.logger.WithField("document", d.id)

	header, err := format.ReadHeader(root)
	if err != nil {
		return newLoadError(header, d.opts.coreVersion, err)
	}

	hist := root.Child(history.ElementName)
	if hist == nil {
		hist = root.Find("editHistory")
	}
	if hist == nil {
		return newLoadError(header, d.opts.coreVersion, ErrNoHistory)
	}
	editNum, err := hist.Int("editNumber", len(hist.Children))
	if err != nil {
		return newLoadError(header, d.opts.coreVersion, err)
	}

	var implicit map[int]int
	if !d.opts.asTemplate {
		if notes := root.Child(lesson.ElementName); notes != nil {
			if err := d.lesson.Load(notes, editNum); err != nil {
				return newLoadError(header, d.opts.coreVersion, err)
			}
		}
		if views := root.Child(viewingElement); views != nil {
			for _, v := range views.Children {
				name := v.Attr("name")
				if name == "" || name == defaultView {
					continue
				}
				d.lesson.Append(lesson.Page{Title: name, Content: savedViewNote, Snapshot: -editNum})
			}
		}
		implicit = d.lesson.Reconcile()
		d.snapshots.Reserve(d.lesson.MaxSnapshot() + 1)
	}

	if tools := root.Child(toolsElement); tools != nil {
		if err := d.tools.UnmarshalMeta(tools); err != nil {
			return newLoadError(header, d.opts.coreVersion, err)
		}
	}

	for _, child := range hist.Children {
		if !d.factory.Known(child.Name) {
			log.Warn("unknown command %s will be preserved as is", child.Name)
		}
	}

	d.mu.Lock()
	pos, err := d.history.Load(hist)
	if err != nil {
		d.mu.Unlock()
		return newLoadError(header, d.opts.coreVersion, err)
	}
	if d.opts.openUndone {
		pos.Done = 0
	}
	failures, err := d.history.Synchronize(d.ectx, pos, implicit)
	if err == nil {
		for _, f := range failures {
			if f.Internal {
				err = f
				break
			}
		}
	}
	if err != nil {
		d.mu.Unlock()
		return newLoadError(header, d.opts.coreVersion, err)
	}

	migrated := d.opts.openUndone || header.IsMigration() || len(implicit) > 0
	if header.ID != "" {
		d.id = header.ID
	}
	header.ID = d.id
	header.Namespace = format.CurrentNamespace
	d.header = header
	d.extras = d.extras[:0]
	for _, child := range root.Children {
		switch child.LocalName() {
		case history.ElementName, "editHistory", lesson.ElementName, viewingElement, toolsElement:
			continue
		}
		d.extras = append(d.extras, child.Clone())
	}
	d.mu.Unlock()

	for _, f := range failures {
		d.report(ctx, f)
	}
	d.migrated.Store(migrated)

	log.Debug("loaded %d edits in %s", d.history.Len(), time.Since(start))
	d.notify(ctx, Change{Kind: ChangeLoaded, Count: d.changes.Load()})
	return nil
}
