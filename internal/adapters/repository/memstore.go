package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/okian/dosewatch/internal/domain/model"
)

// MemStore is an in-memory Store used by tests and storeless runs.
type MemStore struct {
	mu       sync.RWMutex
	nextID   model.SubjectID
	subjects map[model.SubjectID]model.Subject
	events   []model.Event
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		nextID:   1,
		subjects: make(map[model.SubjectID]model.Subject),
	}
}

// LatestSubjectID implements Store.
func (m *MemStore) LatestSubjectID(ctx context.Context) (model.SubjectID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest model.SubjectID
	found := false
	for id := range m.subjects {
		if !found || id > latest {
			latest = id
			found = true
		}
	}
	if !found {
		return 0, ErrNotFound
	}
	return latest, nil
}

// LoadSubject implements Store.
func (m *MemStore) LoadSubject(ctx context.Context, id model.SubjectID) (model.Subject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.subjects[id]
	if !ok {
		return model.Subject{}, ErrNotFound
	}
	return s, nil
}

// UpdateSubject implements Store.
func (m *MemStore) UpdateSubject(ctx context.Context, id model.SubjectID, pillWeight float64, adherenceScore int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.subjects[id]
	if !ok {
		return ErrNotFound
	}
	s.PillWeight = pillWeight
	s.CurrAdherenceScore = adherenceScore
	m.subjects[id] = s
	return nil
}

// CountTodayEvents implements Store.
func (m *MemStore) CountTodayEvents(ctx context.Context, id model.SubjectID, day string) (int, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total, bad := 0, 0
	for _, e := range m.events {
		if e.SubjectID != id || e.Day() != day {
			continue
		}
		total++
		if e.Kind.IsAnomalous() {
			bad++
		}
	}
	return total, bad, nil
}

// InsertEvent implements Store.
func (m *MemStore) InsertEvent(ctx context.Context, e model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, e)
	return nil
}

// CreateSubject implements Store.
func (m *MemStore) CreateSubject(ctx context.Context, s model.Subject) (model.SubjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s.ID = m.nextID
	m.nextID++
	m.subjects[s.ID] = s
	return s.ID, nil
}

// ListSubjects implements Store.
func (m *MemStore) ListSubjects(ctx context.Context) ([]model.Subject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Subject, 0, len(m.subjects))
	for _, s := range m.subjects {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListEventsByDay implements Store.
func (m *MemStore) ListEventsByDay(ctx context.Context, id model.SubjectID, day string) ([]model.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Event
	for _, e := range m.events {
		if e.SubjectID == id && e.Day() == day {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out, nil
}
