package document

import (
	"io"

	"github.com/dshills/zomeedit/internal/format"
)

// Element serializes the document in the current format. Root children
// the document did not interpret when loading are written back unchanged.
func (d *Document) Element() *format.Element {
	d.mu.Lock()
	h := d.header
	extras := make([]*format.Element, len(d.extras))
	for i, x := range d.extras {
		extras[i] = x.Clone()
	}
	d.mu.Unlock()

	h.Edition = d.opts.edition
	h.Version = d.opts.coreVersion
	h.CoreVersion = d.opts.coreVersion
	h.BuildNumber = d.opts.build
	h.ID = d.id

	root := h.NewRoot()
	root.Append(d.history.Element())
	if d.lesson.Len() > 0 {
		root.Append(d.lesson.Element())
	}
	root.Append(extras...)
	root.Append(d.tools.MarshalMeta())
	return root
}

// Save writes the document with codec.
func (d *Document) Save(w io.Writer, codec format.Codec) error {
	return codec.Encode(w, d.Element())
}
