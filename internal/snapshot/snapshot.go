// Package snapshot maps small integer ids to captured render frames.
//
// Ids are chosen by whoever asks for a capture, typically a lesson page,
// and are independent of positions in the edit log.
package snapshot

import (
	"sync"

	"github.com/dshills/zomeedit/internal/model"
)

const initialCapacity = 8

// Index is a growable id -> frame table. Its length never shrinks.
type Index struct {
	mu     sync.RWMutex
	frames []*model.Frame
	count  int
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{frames: make([]*model.Frame, initialCapacity)}
}

// Record stores frame under id, doubling the table until id fits.
// Negative ids are ignored.
func (x *Index) Record(id int, frame *model.Frame) {
	if id < 0 {
		return
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if id >= len(x.frames) {
		size := max(len(x.frames), 1)
		for id >= size {
			size *= 2
		}
		grown := make([]*model.Frame, size)
		copy(grown, x.frames)
		x.frames = grown
	}
	x.frames[id] = frame
	if id >= x.count {
		x.count = id + 1
	}
}

// Get returns the frame for id, if captured.
func (x *Index) Get(id int) (*model.Frame, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if id < 0 || id >= len(x.frames) || x.frames[id] == nil {
		return nil, false
	}
	return x.frames[id], true
}

// Len returns the table length.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.frames)
}

// Next returns the id following the highest one recorded.
func (x *Index) Next() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.count
}

// Reserve makes Next return at least n, for ids that are referenced but
// not yet captured.
func (x *Index) Reserve(n int) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if n > x.count {
		x.count = n
	}
}
