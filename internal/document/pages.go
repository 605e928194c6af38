package document

import (
	"context"
	"errors"

	"github.com/dshills/zomeedit/internal/edit"
	"github.com/dshills/zomeedit/internal/lesson"
	"github.com/dshills/zomeedit/internal/model"
)

// RecordSnapshot records a Snapshot edit capturing the current frame
// under id.
func (d *Document) RecordSnapshot(ctx context.Context, id int) (Result, error) {
	return d.PerformAndRecord(ctx, edit.NewSnapshot(id))
}

// AddSnapshotPage captures the current frame under the next free snapshot
// id and adds a lesson page for it after the current page. It returns the
// new page index. The id is claimed while the edit is performed, so
// concurrent callers never share one.
func (d *Document) AddSnapshotPage(ctx context.Context, title, content string) (int, Result, error) {
	snap := edit.NewSnapshot(-1)
	res, err := d.PerformAndRecord(ctx, snap)
	if err != nil {
		return -1, res, err
	}
	if snap.ID < 0 {
		if res.Failure != nil {
			return -1, res, res.Failure
		}
		return -1, res, errors.New("snapshot id was not allocated")
	}
	i := d.lesson.Add(lesson.Page{Title: title, Content: content, Snapshot: snap.ID})
	return i, res, nil
}

// PageFrame returns the captured frame shown by lesson page i.
func (d *Document) PageFrame(i int) (*model.Frame, bool) {
	p, err := d.lesson.Page(i)
	if err != nil {
		return nil, false
	}
	return d.snapshots.Get(p.Snapshot)
}
