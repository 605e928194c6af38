package lesson

import (
	"errors"
	"testing"

	"github.com/dshills/zomeedit/internal/format"
)

func TestReconcilePlaceholders(t *testing.T) {
	l := New()
	l.Append(Page{Title: "a", Snapshot: -5})
	l.Append(Page{Title: "b", Snapshot: -5})
	l.Append(Page{Title: "c", Snapshot: -2})

	ids := l.Reconcile()
	if len(ids) != 2 {
		t.Fatalf("got %d snapshots, want 2: %v", len(ids), ids)
	}
	if ids[2] != 0 || ids[5] != 1 {
		t.Errorf("ids = %v, want map[2:0 5:1]", ids)
	}
	want := []int{1, 1, 0}
	for i, p := range l.Pages() {
		if p.Snapshot != want[i] {
			t.Errorf("page %d snapshot = %d, want %d", i, p.Snapshot, want[i])
		}
	}
	if l.HasPlaceholders() {
		t.Error("placeholders left after reconcile")
	}
	if again := l.Reconcile(); again != nil {
		t.Errorf("second reconcile = %v, want nil", again)
	}
}

func TestReconcileAfterExistingIDs(t *testing.T) {
	l := New()
	l.Append(Page{Snapshot: 0})
	l.Append(Page{Snapshot: -3})
	ids := l.Reconcile()
	if ids[3] != 1 {
		t.Errorf("ids = %v, want map[3:1]", ids)
	}
}

func TestNavigation(t *testing.T) {
	l := New()
	if _, err := l.First(); !errors.Is(err, ErrNoPage) {
		t.Errorf("got %v, want ErrNoPage", err)
	}
	l.Add(Page{Title: "one", Snapshot: 0})
	l.Add(Page{Title: "two", Snapshot: 1})
	l.Add(Page{Title: "three", Snapshot: 2})

	if p, _ := l.First(); p.Title != "one" {
		t.Errorf("First = %q", p.Title)
	}
	if p, _ := l.Next(); p.Title != "two" {
		t.Errorf("Next = %q", p.Title)
	}
	if p, _ := l.Last(); p.Title != "three" {
		t.Errorf("Last = %q", p.Title)
	}
	if _, err := l.Next(); err == nil {
		t.Error("Next past the end should fail")
	}
	if p, _ := l.Previous(); p.Title != "two" {
		t.Errorf("Previous = %q", p.Title)
	}
	if id, ok := l.CurrentSnapshot(); !ok || id != 1 {
		t.Errorf("CurrentSnapshot = %d, %v", id, ok)
	}
}

func TestEditing(t *testing.T) {
	l := New()
	l.Add(Page{Title: "a"})
	l.Add(Page{Title: "b"})
	if err := l.Duplicate(0); err != nil {
		t.Fatal(err)
	}
	titles := func() string {
		s := ""
		for _, p := range l.Pages() {
			s += p.Title
		}
		return s
	}
	if titles() != "aab" || l.Current() != 1 {
		t.Errorf("after duplicate %q current %d", titles(), l.Current())
	}
	if err := l.Move(2, 0); err != nil {
		t.Fatal(err)
	}
	if titles() != "baa" || l.Current() != 0 {
		t.Errorf("after move %q current %d", titles(), l.Current())
	}
	l.GoTo(2)
	if err := l.Delete(0); err != nil {
		t.Fatal(err)
	}
	if titles() != "aa" || l.Current() != 1 {
		t.Errorf("after delete %q current %d", titles(), l.Current())
	}
	if err := l.Delete(5); !errors.Is(err, ErrNoPage) {
		t.Errorf("got %v, want ErrNoPage", err)
	}
}

func TestElementRoundTrip(t *testing.T) {
	l := New()
	l.Append(Page{Title: "Intro", Content: "first\nsecond", Snapshot: 0})
	l.Append(Page{Title: "Next", Snapshot: 3})

	back := New()
	if err := back.Load(l.Element(), 0); err != nil {
		t.Fatal(err)
	}
	got, want := back.Pages(), l.Pages()
	if len(got) != len(want) {
		t.Fatalf("got %d pages, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("page %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestLoadDefaultsToPlaceholder(t *testing.T) {
	l := New()
	el := New().Element()
	el.Append(pageWithoutSnapshot())
	if err := l.Load(el, 7); err != nil {
		t.Fatal(err)
	}
	if p, _ := l.Page(0); p.Snapshot != -7 {
		t.Errorf("Snapshot = %d, want -7", p.Snapshot)
	}
}

func TestSummary(t *testing.T) {
	p := Page{Content: "  héllo\n  wörld  "}
	if got := p.Summary(5); got != "héllo…" {
		t.Errorf("Summary(5) = %q", got)
	}
	if got := p.Summary(100); got != "héllo wörld" {
		t.Errorf("Summary(100) = %q", got)
	}
	flag := Page{Content: "🇩🇪🇫🇷"}
	if got := flag.Summary(1); got != "🇩🇪…" {
		t.Errorf("Summary(1) = %q", got)
	}
}

func pageWithoutSnapshot() *format.Element {
	return format.NewElement("page").SetAttr("title", "old")
}
