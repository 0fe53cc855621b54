package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JonMunkholm/cardconv/internal/core"
)

func TestMemoryStore_SaveAndGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	run := core.RunRecord{ID: "r1", SessionID: "s1", State: core.StateCompleted, Records: []core.OutputRecord{{Name: "Bolt"}}}
	if err := s.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}

	got, err := s.GetRun(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.SessionID != "s1" || len(got.Records) != 1 {
		t.Errorf("GetRun() = %+v", got)
	}

	if _, err := s.GetRun(ctx, "missing"); !errors.Is(err, core.ErrRunNotFound) {
		t.Errorf("GetRun(missing) error = %v, want ErrRunNotFound", err)
	}
}

func TestMemoryStore_ListRuns(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, sess := range []string{"a", "b", "a", "a"} {
		run := core.RunRecord{ID: string(rune('1' + i)), SessionID: sess, StartedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := s.SaveRun(ctx, run); err != nil {
			t.Fatalf("SaveRun() error = %v", err)
		}
	}

	tests := []struct {
		name    string
		session string
		limit   int
		wantIDs []string
	}{
		{"session newest first", "a", 0, []string{"4", "3", "1"}},
		{"limit", "a", 2, []string{"4", "3"}},
		{"all sessions", "", 0, []string{"4", "3", "2", "1"}},
		{"unknown session", "zzz", 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := s.ListRuns(ctx, tt.session, tt.limit)
			if err != nil {
				t.Fatalf("ListRuns() error = %v", err)
			}
			if len(runs) != len(tt.wantIDs) {
				t.Fatalf("got %d runs, want %d", len(runs), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if runs[i].ID != id {
					t.Errorf("runs[%d].ID = %q, want %q", i, runs[i].ID, id)
				}
			}
		})
	}
}

func TestMemoryStore_PurgeBefore(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	_ = s.SaveRun(ctx, core.RunRecord{ID: "old", FinishedAt: now.Add(-72 * time.Hour)})
	_ = s.SaveRun(ctx, core.RunRecord{ID: "new", FinishedAt: now})

	n, err := s.PurgeBefore(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PurgeBefore() error = %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d, want 1", n)
	}
	if _, err := s.GetRun(ctx, "old"); !errors.Is(err, core.ErrRunNotFound) {
		t.Error("old run still present")
	}
	if _, err := s.GetRun(ctx, "new"); err != nil {
		t.Errorf("new run missing: %v", err)
	}
}
