package availability

import (
	"testing"
	"time"

	"github.com/JeromeLaquay/Jeroka-backoffice-sub000/internal/model"
)

func TestGenerateSlots_Tiling(t *testing.T) {
	loc := time.UTC
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, loc)
	windowStart := day.Add(9 * time.Hour)
	windowEnd := day.Add(10 * time.Hour)

	slots := GenerateSlots("owner-1", day, windowStart, windowEnd, 30*time.Minute)
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if !slots[0].StartTime.Equal(windowStart) {
		t.Fatalf("expected first slot 09:00, got %s", slots[0].StartTime.Format(time.RFC3339))
	}
	if !slots[0].EndTime.Equal(day.Add(9*time.Hour + 30*time.Minute)) {
		t.Fatalf("expected first slot end 09:30, got %s", slots[0].EndTime.Format(time.RFC3339))
	}
	if !slots[1].StartTime.Equal(slots[0].EndTime) {
		t.Fatal("expected second slot to start where the first ends")
	}
	if !slots[1].EndTime.Equal(windowEnd) {
		t.Fatalf("expected second slot end 10:00, got %s", slots[1].EndTime.Format(time.RFC3339))
	}
	for i, s := range slots {
		if s.Status != model.SlotPending {
			t.Fatalf("slot %d: expected pending status, got %s", i, s.Status)
		}
		if s.OwnerID != "owner-1" {
			t.Fatalf("slot %d: unexpected owner %q", i, s.OwnerID)
		}
		if s.ID == "" {
			t.Fatalf("slot %d: expected generated id", i)
		}
	}
}

func TestGenerateSlots_CountAndAdjacency(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	windowStart := day.Add(8 * time.Hour)
	windowEnd := day.Add(12*time.Hour + 10*time.Minute)
	duration := 45 * time.Minute

	slots := GenerateSlots("owner-1", day, windowStart, windowEnd, duration)

	// floor((4h10m)/45m) = 5
	if len(slots) != 5 {
		t.Fatalf("expected 5 slots, got %d", len(slots))
	}
	for i, s := range slots {
		if s.EndTime.Sub(s.StartTime) != duration {
			t.Fatalf("slot %d is not exactly %s long", i, duration)
		}
		if i > 0 && !s.StartTime.Equal(slots[i-1].EndTime) {
			t.Fatalf("slot %d does not start at slot %d's end", i, i-1)
		}
	}
	if slots[len(slots)-1].EndTime.After(windowEnd) {
		t.Fatal("last slot overruns the window")
	}
}

func TestGenerateSlots_Deterministic(t *testing.T) {
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	a := GenerateSlots("owner-1", day, day.Add(9*time.Hour), day.Add(11*time.Hour), 20*time.Minute)
	b := GenerateSlots("owner-1", day, day.Add(9*time.Hour), day.Add(11*time.Hour), 20*time.Minute)
	if len(a) != len(b) {
		t.Fatalf("tilings differ in length: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if !a[i].StartTime.Equal(b[i].StartTime) || !a[i].EndTime.Equal(b[i].EndTime) {
			t.Fatalf("tiling %d differs between runs", i)
		}
	}
}

func TestGenerateSlots_Degenerate(t *testing.T) {
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	start := day.Add(9 * time.Hour)

	if got := GenerateSlots("owner-1", day, start, start, 30*time.Minute); got != nil {
		t.Fatalf("empty window: expected no slots, got %d", len(got))
	}
	if got := GenerateSlots("owner-1", day, start.Add(time.Hour), start, 30*time.Minute); got != nil {
		t.Fatalf("inverted window: expected no slots, got %d", len(got))
	}
	if got := GenerateSlots("owner-1", day, start, start.Add(time.Hour), 0); got != nil {
		t.Fatalf("zero duration: expected no slots, got %d", len(got))
	}
	if got := GenerateSlots("owner-1", day, start, start.Add(time.Hour), -time.Minute); got != nil {
		t.Fatalf("negative duration: expected no slots, got %d", len(got))
	}
	// Window shorter than one slot.
	if got := GenerateSlots("owner-1", day, start, start.Add(20*time.Minute), 30*time.Minute); got != nil {
		t.Fatalf("short window: expected no slots, got %d", len(got))
	}
}
