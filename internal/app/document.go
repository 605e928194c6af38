package app

import (
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/dshills/zomeedit/internal/document"
	"github.com/dshills/zomeedit/internal/format"
)

// Document is an open document with the file it belongs to.
type Document struct {
	// Path is the absolute file path (empty for documents created in
	// memory).
	Path string

	// Name is the display name (file name or "Untitled").
	Name string

	// Model is the edit journal and everything it drives.
	Model *document.Document

	// Codec is the codec the file was read with, used again on save.
	Codec format.Codec

	// savedAt is the change count at the last save or load.
	savedAt atomic.Int64

	// pendingMigration is set while a migrated document has not been
	// saved in the current format.
	pendingMigration atomic.Bool

	key string
}

func newDocument(path string, doc *document.Document, codec format.Codec) *Document {
	name := "Untitled"
	if path != "" {
		name = filepath.Base(path)
	}
	d := &Document{Path: path, Name: name, Model: doc, Codec: codec}
	d.savedAt.Store(doc.ChangeCount())
	d.pendingMigration.Store(doc.IsMigrated())
	return d
}

// IsModified reports whether the document has changes to save. A
// migrated document counts as modified until it is saved.
func (d *Document) IsModified() bool {
	return d.Model.ChangeCount() != d.savedAt.Load() || d.pendingMigration.Load()
}

// markSaved records the current change count as saved.
func (d *Document) markSaved() {
	d.savedAt.Store(d.Model.ChangeCount())
	d.pendingMigration.Store(false)
}

// Key returns the key the manager stores the document under.
func (d *Document) Key() string {
	return d.key
}

// DocumentManager manages all open documents.
type DocumentManager struct {
	mu        sync.RWMutex
	documents map[string]*Document // key -> document
	active    *Document
	order     []string // tracks open order
	counter   int      // for naming documents created in memory
}

// NewDocumentManager creates a new document manager.
func NewDocumentManager() *DocumentManager {
	return &DocumentManager{
		documents: make(map[string]*Document),
	}
}

// add stores d and makes it active. Documents with a path are keyed by
// it; others get a generated key.
func (dm *DocumentManager) add(d *Document) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	key := d.Path
	if key == "" {
		dm.counter++
		key = "untitled-" + strconv.Itoa(dm.counter)
		if dm.counter > 1 {
			d.Name = "Untitled-" + strconv.Itoa(dm.counter)
		}
	}
	if _, exists := dm.documents[key]; exists {
		return ErrDocumentAlreadyOpen
	}
	d.key = key
	dm.documents[key] = d
	dm.order = append(dm.order, key)
	dm.active = d
	return nil
}

// rekey moves d to the key for its new path after a save-as.
func (dm *DocumentManager) rekey(d *Document, path string) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if d.key == path {
		return nil
	}
	if _, exists := dm.documents[path]; exists {
		return ErrDocumentAlreadyOpen
	}
	delete(dm.documents, d.key)
	for i, k := range dm.order {
		if k == d.key {
			dm.order[i] = path
			break
		}
	}
	d.key = path
	d.Path = path
	d.Name = filepath.Base(path)
	dm.documents[path] = d
	return nil
}

// remove removes a document by key.
func (dm *DocumentManager) remove(key string) (*Document, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	doc, exists := dm.documents[key]
	if !exists {
		return nil, ErrDocumentNotFound
	}
	delete(dm.documents, key)
	for i, k := range dm.order {
		if k == key {
			dm.order = append(dm.order[:i], dm.order[i+1:]...)
			break
		}
	}
	if dm.active == doc {
		dm.active = nil
		if len(dm.order) > 0 {
			dm.active = dm.documents[dm.order[len(dm.order)-1]]
		}
	}
	return doc, nil
}

// Active returns the currently active document.
func (dm *DocumentManager) Active() *Document {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.active
}

// SetActive sets the active document by key.
func (dm *DocumentManager) SetActive(key string) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	doc, exists := dm.documents[key]
	if !exists {
		return ErrDocumentNotFound
	}
	dm.active = doc
	return nil
}

// Get returns a document by key.
func (dm *DocumentManager) Get(key string) (*Document, bool) {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	doc, exists := dm.documents[key]
	return doc, exists
}

// All returns all open documents in open order.
func (dm *DocumentManager) All() []*Document {
	dm.mu.RLock()
	defer dm.mu.RUnlock()

	docs := make([]*Document, 0, len(dm.order))
	for _, key := range dm.order {
		docs = append(docs, dm.documents[key])
	}
	return docs
}

// Count returns the number of open documents.
func (dm *DocumentManager) Count() int {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return len(dm.documents)
}

// DirtyDocuments returns the documents with unsaved changes.
func (dm *DocumentManager) DirtyDocuments() []*Document {
	var dirty []*Document
	for _, doc := range dm.All() {
		if doc.IsModified() {
			dirty = append(dirty, doc)
		}
	}
	return dirty
}
