package snapshot

import (
	"testing"

	"github.com/dshills/zomeedit/internal/model"
)

func TestRecordGrowsByDoubling(t *testing.T) {
	x := NewIndex()
	frame := model.NewRealized().Capture()
	x.Record(20, frame)
	if x.Len() != 32 {
		t.Errorf("Len = %d, want 32", x.Len())
	}
	if got, ok := x.Get(20); !ok || got != frame {
		t.Error("frame not stored")
	}
	if _, ok := x.Get(3); ok {
		t.Error("uncaptured id reported present")
	}
	if x.Next() != 21 {
		t.Errorf("Next = %d, want 21", x.Next())
	}

	prev := x.Len()
	x.Record(1, frame)
	if x.Len() != prev {
		t.Error("length shrank or changed for a small id")
	}
}

func TestRecordIgnoresNegative(t *testing.T) {
	x := NewIndex()
	x.Record(-1, model.NewRealized().Capture())
	if x.Next() != 0 {
		t.Errorf("Next = %d, want 0", x.Next())
	}
	if _, ok := x.Get(-1); ok {
		t.Error("negative id stored")
	}
}

func TestReserve(t *testing.T) {
	x := NewIndex()
	x.Reserve(3)
	x.Reserve(1)
	if x.Next() != 3 {
		t.Errorf("Next = %d, want 3", x.Next())
	}
}
