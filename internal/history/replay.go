package history

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/zomeedit/internal/edit"
	"github.com/dshills/zomeedit/internal/format"
)

// ElementName is the name of the serialized history element. Legacy
// documents use the lower-case form.
const (
	ElementName       = "EditHistory"
	legacyElementName = "editHistory"
)

// IsHistoryElement reports whether el is a serialized history.
func IsHistoryElement(el *format.Element) bool {
	return el != nil && (el.Name == ElementName || el.Name == legacyElementName)
}

// Position is the cursor state stored with a serialized history.
type Position struct {
	// Done is the saved cursor position.
	Done int
	// Sticky is the saved sticky floor, or -1 if none was saved.
	Sticky int
}

// Load replaces the log with deferred entries read from el and returns
// the saved position. Nothing is performed.
func (h *History) Load(el *format.Element) (Position, error) {
	if !IsHistoryElement(el) {
		return Position{}, fmt.Errorf("%w: expected %s, got %s", format.ErrMalformed, ElementName, el.Name)
	}
	done, err := el.Int("editNumber", len(el.Children))
	if err != nil {
		return Position{}, err
	}
	sticky, err := el.Int("lastStickyEdit", -1)
	if err != nil {
		return Position{}, err
	}
	bps, err := parseBreakpoints(el.Attr("breakpoints"))
	if err != nil {
		return Position{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	now := time.Now()
	h.entries = make([]*entry, 0, len(el.Children))
	for _, child := range el.Children {
		h.entries = append(h.entries, &entry{source: child.Clone(), timestamp: now})
	}
	h.done = 0
	h.floor = 0
	h.breakpoints = make(map[int]struct{}, len(bps))
	for _, bp := range bps {
		h.breakpoints[bp] = struct{}{}
	}
	return Position{Done: done, Sticky: sticky}, nil
}

func parseBreakpoints(s string) ([]int, error) {
	var out []int
	for _, f := range strings.Fields(s) {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, &format.AttrError{Element: ElementName, Attr: "breakpoints", Value: s, Err: err}
		}
		out = append(out, n)
	}
	return out, nil
}

// Synchronize brings a loaded log to its saved position.
//
// snapshots maps an edit number N to a snapshot id; a Snapshot edit for
// each is spliced in before the original entry N. Entries are then
// redone far enough to reach the saved cursor and every Snapshot entry,
// and undone back to the saved cursor. Redo failures do not stop the
// replay; they are returned so the caller can report them.
func (h *History) Synchronize(ctx *edit.Context, pos Position, snapshots map[int]int) ([]*edit.Failure, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := len(h.entries)
	lastDone := clamp(pos.Done, 0, n)
	lastSticky := clamp(pos.Sticky, -1, n)

	nums := make([]int, 0, len(snapshots))
	for num := range snapshots {
		if num >= 0 {
			nums = append(nums, num)
		}
	}
	sort.Ints(nums)

	doneShift, stickyShift := 0, 0
	bps := h.breakpointsLocked()
	bpShift := make([]int, len(bps))
	for i, num := range nums {
		at := min(num, n)
		h.insertLocked(at+i, &entry{edit: edit.NewSnapshot(snapshots[num]), timestamp: time.Now()})
		if at <= lastDone {
			doneShift++
		}
		if at < lastSticky {
			stickyShift++
		}
		for j, bp := range bps {
			if at < bp {
				bpShift[j]++
			}
		}
	}
	lastDone += doneShift
	if lastSticky >= 0 {
		lastSticky += stickyShift
	}
	h.breakpoints = make(map[int]struct{}, len(bps))
	for j, bp := range bps {
		h.breakpoints[bp+bpShift[j]] = struct{}{}
	}

	target := lastDone
	for i, e := range h.entries {
		if isSnapshotEntry(e) && i+1 > target {
			target = i + 1
		}
	}

	var failures []*edit.Failure
	for h.done < target {
		f, err := h.redoStep(ctx)
		if err != nil {
			return failures, err
		}
		if f != nil {
			failures = append(failures, f)
		}
	}
	for h.done > lastDone {
		if err := h.undoStep(ctx); err != nil {
			return failures, fmt.Errorf("undo to edit %d: %w", lastDone, err)
		}
	}

	if lastSticky >= 0 {
		h.floor = lastSticky
	}
	if h.floor > h.done {
		h.floor = h.done
	}
	return failures, nil
}

func isSnapshotEntry(e *entry) bool {
	if e.edit != nil {
		_, ok := e.edit.(*edit.Snapshot)
		return ok
	}
	return e.source.Name == edit.OpSnapshot.String()
}

func (h *History) insertLocked(at int, e *entry) {
	h.entries = append(h.entries, nil)
	copy(h.entries[at+1:], h.entries[at:])
	h.entries[at] = e
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// Element serializes the log with its cursor, sticky floor and
// breakpoints. Deferred entries are written back as they were read.
func (h *History) Element() *format.Element {
	h.mu.Lock()
	defer h.mu.Unlock()
	el := format.NewElement(ElementName).SetInt("editNumber", h.done)
	sticky := -1
	if h.floor > 0 {
		sticky = h.floor
	}
	el.SetInt("lastStickyEdit", sticky)
	if bps := h.breakpointsLocked(); len(bps) > 0 {
		parts := make([]string, len(bps))
		for i, bp := range bps {
			parts[i] = strconv.Itoa(bp)
		}
		el.SetAttr("breakpoints", strings.Join(parts, " "))
	}
	for _, e := range h.entries {
		el.Append(e.marshal())
	}
	return el
}
