// Package lesson holds the presentation pages of a document. Each page
// refers to a snapshot id.
package lesson

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rivo/uniseg"

	"github.com/dshills/zomeedit/internal/format"
)

// ElementName is the name of the serialized lesson.
const ElementName = "notes"

// ErrNoPage is returned for an out-of-range page index.
var ErrNoPage = errors.New("no such page")

// Page is one lesson page.
type Page struct {
	Title   string
	Content string
	// Snapshot is a snapshot id. A negative value -N is a legacy
	// placeholder for "the state right after edit N".
	Snapshot int
}

// Summary returns the content cut to at most n grapheme clusters.
func (p Page) Summary(n int) string {
	content := strings.Join(strings.Fields(p.Content), " ")
	if n <= 0 {
		return ""
	}
	var b strings.Builder
	g := uniseg.NewGraphemes(content)
	count := 0
	for g.Next() {
		if count == n {
			return b.String() + "…"
		}
		b.WriteString(g.Str())
		count++
	}
	return b.String()
}

// Lesson is an ordered list of pages with a current-page cursor.
type Lesson struct {
	mu      sync.RWMutex
	pages   []Page
	current int
}

// New creates an empty lesson.
func New() *Lesson {
	return &Lesson{current: -1}
}

// Len returns the number of pages.
func (l *Lesson) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.pages)
}

// Pages returns a copy of the pages.
func (l *Lesson) Pages() []Page {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Page(nil), l.pages...)
}

// Page returns page i.
func (l *Lesson) Page(i int) (Page, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i < 0 || i >= len(l.pages) {
		return Page{}, ErrNoPage
	}
	return l.pages[i], nil
}

// Current returns the current page index, -1 when empty.
func (l *Lesson) Current() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// CurrentSnapshot returns the snapshot id of the current page.
func (l *Lesson) CurrentSnapshot() (int, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.current < 0 || l.current >= len(l.pages) {
		return 0, false
	}
	return l.pages[l.current].Snapshot, true
}

// Add appends a page after the current one and makes it current.
func (l *Lesson) Add(p Page) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	at := l.current + 1
	l.pages = append(l.pages, Page{})
	copy(l.pages[at+1:], l.pages[at:])
	l.pages[at] = p
	l.current = at
	return at
}

// Append adds a page at the end without moving the cursor.
func (l *Lesson) Append(p Page) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pages = append(l.pages, p)
	if l.current < 0 {
		l.current = 0
	}
}

// Update replaces page i.
func (l *Lesson) Update(i int, p Page) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= len(l.pages) {
		return ErrNoPage
	}
	l.pages[i] = p
	return nil
}

// Duplicate copies page i to just after it and makes the copy current.
func (l *Lesson) Duplicate(i int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= len(l.pages) {
		return ErrNoPage
	}
	l.pages = append(l.pages, Page{})
	copy(l.pages[i+2:], l.pages[i+1:])
	l.pages[i+1] = l.pages[i]
	l.current = i + 1
	return nil
}

// Delete removes page i.
func (l *Lesson) Delete(i int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= len(l.pages) {
		return ErrNoPage
	}
	l.pages = append(l.pages[:i], l.pages[i+1:]...)
	if l.current > i {
		l.current--
	}
	if l.current >= len(l.pages) {
		l.current = len(l.pages) - 1
	}
	return nil
}

// Move relocates page from to index to, keeping it current.
func (l *Lesson) Move(from, to int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if from < 0 || from >= len(l.pages) || to < 0 || to >= len(l.pages) {
		return ErrNoPage
	}
	p := l.pages[from]
	l.pages = append(l.pages[:from], l.pages[from+1:]...)
	l.pages = append(l.pages[:to], append([]Page{p}, l.pages[to:]...)...)
	l.current = to
	return nil
}

// GoTo makes page i current.
func (l *Lesson) GoTo(i int) (Page, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= len(l.pages) {
		return Page{}, ErrNoPage
	}
	l.current = i
	return l.pages[i], nil
}

// First goes to the first page.
func (l *Lesson) First() (Page, error) { return l.GoTo(0) }

// Last goes to the last page.
func (l *Lesson) Last() (Page, error) { return l.GoTo(l.Len() - 1) }

// Next goes to the page after the current one.
func (l *Lesson) Next() (Page, error) { return l.GoTo(l.Current() + 1) }

// Previous goes to the page before the current one.
func (l *Lesson) Previous() (Page, error) { return l.GoTo(l.Current() - 1) }

// Reconcile replaces legacy negative snapshot placeholders with dense
// snapshot ids. Placeholders are deduplicated and sorted by edit number;
// ids are assigned in that order starting after the highest id already
// in use. It returns edit number -> assigned id.
func (l *Lesson) Reconcile() map[int]int {
	l.mu.Lock()
	defer l.mu.Unlock()

	base := 0
	seen := make(map[int]struct{})
	var nums []int
	for _, p := range l.pages {
		if p.Snapshot >= 0 {
			base = max(base, p.Snapshot+1)
			continue
		}
		n := -p.Snapshot
		if _, ok := seen[n]; !ok {
			seen[n] = struct{}{}
			nums = append(nums, n)
		}
	}
	if len(nums) == 0 {
		return nil
	}
	sort.Ints(nums)
	ids := make(map[int]int, len(nums))
	for i, n := range nums {
		ids[n] = base + i
	}
	for i := range l.pages {
		if s := l.pages[i].Snapshot; s < 0 {
			l.pages[i].Snapshot = ids[-s]
		}
	}
	return ids
}

// HasPlaceholders reports whether any page still carries a placeholder.
func (l *Lesson) HasPlaceholders() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, p := range l.pages {
		if p.Snapshot < 0 {
			return true
		}
	}
	return false
}

// MaxSnapshot returns the highest snapshot id referenced, or -1.
func (l *Lesson) MaxSnapshot() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	highest := -1
	for _, p := range l.pages {
		highest = max(highest, p.Snapshot)
	}
	return highest
}

// Element serializes the lesson.
func (l *Lesson) Element() *format.Element {
	l.mu.RLock()
	defer l.mu.RUnlock()
	el := format.NewElement(ElementName)
	for _, p := range l.pages {
		page := format.NewElement("page").SetAttr("title", p.Title).SetInt("snapshot", p.Snapshot)
		content := format.NewElement("content")
		content.Text = p.Content
		el.Append(page.Append(content))
	}
	return el
}

// Load replaces the pages with those in el. A page without a snapshot
// attribute gets the placeholder for editNumber.
func (l *Lesson) Load(el *format.Element, editNumber int) error {
	var pages []Page
	for _, child := range el.Children {
		if child.Name != "page" {
			continue
		}
		snap, err := child.Int("snapshot", -editNumber)
		if err != nil {
			return fmt.Errorf("lesson page %d: %w", len(pages), err)
		}
		p := Page{Title: child.Attr("title"), Snapshot: snap}
		if c := child.Child("content"); c != nil {
			p.Content = c.Text
		}
		pages = append(pages, p)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.pages = pages
	l.current = -1
	if len(pages) > 0 {
		l.current = 0
	}
	return nil
}
