package history

import (
	"testing"
	"time"
)

func TestSortChronological(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	msgs := []Message{
		{ID: "3", Timestamp: base.Add(2 * time.Second)},
		{ID: "2", Timestamp: base.Add(time.Second)},
		{ID: "1", Timestamp: base},
	}
	SortChronological(msgs)
	for i, want := range []string{"1", "2", "3"} {
		if msgs[i].ID != want {
			t.Errorf("msgs[%d].ID = %q, want %q", i, msgs[i].ID, want)
		}
	}
}

func TestSortChronologicalStable(t *testing.T) {
	ts := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	msgs := []Message{{ID: "a", Timestamp: ts}, {ID: "b", Timestamp: ts}}
	SortChronological(msgs)
	if msgs[0].ID != "a" || msgs[1].ID != "b" {
		t.Errorf("equal timestamps reordered: %q %q", msgs[0].ID, msgs[1].ID)
	}
}

func TestWithoutRole(t *testing.T) {
	msgs := []Message{
		{ID: "1", Role: RoleUser},
		{ID: "2", Role: RoleTool},
		{ID: "3", Role: RoleAssistant},
	}
	got := WithoutRole(msgs, RoleTool)
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "3" {
		t.Errorf("got %+v", got)
	}
}
