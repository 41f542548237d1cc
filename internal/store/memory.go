package store

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process Store, used when persistence is disabled and in
// tests.
type Memory struct {
	mu   sync.Mutex
	recs map[string]Record
}

func NewMemory() *Memory { return &Memory{recs: make(map[string]Record)} }

func (m *Memory) Save(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[rec.MatchID] = rec
	return nil
}

func (m *Memory) Load(_ context.Context, id string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (m *Memory) Latest(_ context.Context) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest Record
	found := false
	for _, rec := range m.recs {
		if !found || rec.SavedAt.After(latest.SavedAt) {
			latest, found = rec, true
		}
	}
	if !found {
		return Record{}, ErrNotFound
	}
	return latest, nil
}

func (m *Memory) History(_ context.Context) ([]Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Summary, 0, len(m.recs))
	for _, rec := range m.recs {
		out = append(out, summarize(rec))
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recs[id]; !ok {
		return ErrNotFound
	}
	delete(m.recs, id)
	return nil
}

func (m *Memory) Close() error { return nil }

func sortNewestFirst(s []Summary) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].SavedAt.Equal(s[j].SavedAt) {
			return s[i].MatchID < s[j].MatchID
		}
		return s[i].SavedAt.After(s[j].SavedAt)
	})
}
