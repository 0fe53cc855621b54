package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/JonMunkholm/cardconv/internal/core"
)

// MemoryStore is a core.RunStore held in process memory. It is used when no
// database is configured; history is lost on restart.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]core.RunRecord
}

var _ core.RunStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]core.RunRecord)}
}

func (m *MemoryStore) SaveRun(_ context.Context, run core.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	return nil
}

func (m *MemoryStore) GetRun(_ context.Context, id string) (core.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return core.RunRecord{}, core.ErrRunNotFound
	}
	return run, nil
}

func (m *MemoryStore) ListRuns(_ context.Context, sessionID string, limit int) ([]core.RunRecord, error) {
	m.mu.RLock()
	runs := make([]core.RunRecord, 0, len(m.runs))
	for _, run := range m.runs {
		if sessionID == "" || run.SessionID == sessionID {
			runs = append(runs, run)
		}
	}
	m.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (m *MemoryStore) PurgeBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var purged int64
	for id, run := range m.runs {
		if run.FinishedAt.Before(cutoff) {
			delete(m.runs, id)
			purged++
		}
	}
	return purged, nil
}
