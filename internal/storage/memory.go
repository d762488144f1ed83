package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/renderinc/notice-cache/internal/notice"
)

// MemoryStore is a process-local Store. Nothing survives a restart.
type MemoryStore struct {
	mu              sync.RWMutex
	notices         map[uint32]notice.Record
	cursors         map[string]time.Time
	interpretations map[uint32]map[string]notice.Interpretation
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		notices:         make(map[uint32]notice.Record),
		cursors:         make(map[string]time.Time),
		interpretations: make(map[uint32]map[string]notice.Interpretation),
	}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) QueryActive(_ context.Context, locations []string, w notice.Window, processedSince time.Time) ([]notice.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	want := make(map[string]struct{}, len(locations))
	for _, loc := range locations {
		want[loc] = struct{}{}
	}

	var out []notice.Record
	for _, r := range m.notices {
		if _, ok := want[r.Location]; !ok {
			continue
		}
		if r.ProcessedAt.Before(processedSince) {
			continue
		}
		if notice.IsActive(w, r) {
			out = append(out, m.withFlag(r))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Location != out[j].Location {
			return out[i].Location < out[j].Location
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) UpsertRecords(_ context.Context, records []notice.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range records {
		if old, ok := m.notices[r.ID]; ok && r.ProcessedAt.Before(old.ProcessedAt) {
			continue
		}
		m.notices[r.ID] = r
	}
	return nil
}

func (m *MemoryStore) ExistingIDs(_ context.Context, ids []uint32) (map[uint32]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	existing := make(map[uint32]struct{})
	for _, id := range ids {
		if _, ok := m.notices[id]; ok {
			existing[id] = struct{}{}
		}
	}
	return existing, nil
}

func (m *MemoryStore) GetByIDs(_ context.Context, ids []uint32) ([]notice.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []notice.Record
	seen := make(map[uint32]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if r, ok := m.notices[id]; ok {
			out = append(out, m.withFlag(r))
		}
	}
	return out, nil
}

func (m *MemoryStore) List(_ context.Context) ([]notice.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]notice.Record, 0, len(m.notices))
	for _, r := range m.notices {
		out = append(out, m.withFlag(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProcessedAt.After(out[j].ProcessedAt) })
	return out, nil
}

func (m *MemoryStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.notices), nil
}

func (m *MemoryStore) LastFetched(_ context.Context, location string) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	at, ok := m.cursors[location]
	return at, ok, nil
}

func (m *MemoryStore) SetLastFetched(_ context.Context, location string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[location] = at
	return nil
}

// Cursors lists every fetch cursor, most recent first
func (m *MemoryStore) Cursors(_ context.Context) ([]Cursor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Cursor, 0, len(m.cursors))
	for loc, at := range m.cursors {
		out = append(out, Cursor{Location: loc, LastFetchedAt: at})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastFetchedAt.After(out[j].LastFetchedAt) })
	return out, nil
}

func (m *MemoryStore) PendingInterpretation(_ context.Context, ids []uint32, model string) ([]uint32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	done := make(map[uint32]struct{})
	for _, id := range ids {
		if _, ok := m.interpretations[id][model]; ok {
			done[id] = struct{}{}
		}
	}
	return missing(ids, done), nil
}

func (m *MemoryStore) SaveInterpretation(_ context.Context, in notice.Interpretation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byModel, ok := m.interpretations[in.NoticeID]
	if !ok {
		byModel = make(map[string]notice.Interpretation)
		m.interpretations[in.NoticeID] = byModel
	}
	byModel[in.Model] = in
	return nil
}

func (m *MemoryStore) Interpretations(_ context.Context, ids []uint32) ([]notice.InterpretedNotice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []notice.InterpretedNotice
	seen := make(map[uint32]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		r, ok := m.notices[id]
		if !ok {
			continue
		}
		item := notice.InterpretedNotice{Record: m.withFlag(r)}
		for _, in := range m.interpretations[id] {
			if item.Interpretation == nil || in.ProcessedAt.After(item.Interpretation.ProcessedAt) {
				in := in
				item.Interpretation = &in
			}
		}
		out = append(out, item)
	}

	sortInterpreted(out)
	return out, nil
}

// withFlag sets Interpreted; callers hold mu
func (m *MemoryStore) withFlag(r notice.Record) notice.Record {
	r.Interpreted = len(m.interpretations[r.ID]) > 0
	return r
}
