package core

import (
	"context"
	"sync"
	"time"
)

// fakeSource is an in-memory CardSource. Lookups for ids listed in delays
// sleep before answering, which lets tests force a completion order.
type fakeSource struct {
	cards     map[string]CanonicalCard
	results   map[SearchQuery][]CanonicalCard
	lookupErr map[string]error
	searchErr error
	delays    map[string]time.Duration

	mu       sync.Mutex
	lookups  []string
	searches []SearchQuery
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		cards:     make(map[string]CanonicalCard),
		results:   make(map[SearchQuery][]CanonicalCard),
		lookupErr: make(map[string]error),
		delays:    make(map[string]time.Duration),
	}
}

func (f *fakeSource) LookupByMarketplaceID(ctx context.Context, id string) (CanonicalCard, error) {
	f.mu.Lock()
	f.lookups = append(f.lookups, id)
	f.mu.Unlock()

	if d := f.delays[id]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return CanonicalCard{}, ctx.Err()
		}
	}
	if err := f.lookupErr[id]; err != nil {
		return CanonicalCard{}, err
	}
	card, ok := f.cards[id]
	if !ok {
		return CanonicalCard{}, ErrNotFound
	}
	return card, nil
}

func (f *fakeSource) Search(ctx context.Context, q SearchQuery) ([]CanonicalCard, error) {
	f.mu.Lock()
	f.searches = append(f.searches, q)
	f.mu.Unlock()

	if f.searchErr != nil {
		return nil, f.searchErr
	}
	cards, ok := f.results[q]
	if !ok {
		return nil, ErrNotFound
	}
	return cards, nil
}

func (f *fakeSource) lookupCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.lookups)
}

func (f *fakeSource) searchLog() []SearchQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SearchQuery(nil), f.searches...)
}
