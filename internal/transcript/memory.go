package transcript

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in a map. It is the default backend and the
// reference behaviour for the others.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (m *MemoryStore) Start(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		m.sessions[id] = &Session{ID: id, StartedAt: at, Events: []Event{}}
	}
	return nil
}

func (m *MemoryStore) Append(_ context.Context, id string, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		s = &Session{ID: id, StartedAt: ev.TS, Events: []Event{}}
		m.sessions[id] = s
	}
	s.Events = append(s.Events, ev)
	return nil
}

func (m *MemoryStore) End(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok && s.EndedAt == nil {
		t := at
		s.EndedAt = &t
	}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.clone(), nil
}

func (m *MemoryStore) List(_ context.Context) ([]Summary, error) {
	m.mu.RLock()
	list := make([]Summary, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s.summary())
	}
	m.mu.RUnlock()
	sortNewestFirst(list)
	return list, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return false, nil
	}
	delete(m.sessions, id)
	return true, nil
}

func (m *MemoryStore) Prune(_ context.Context, max int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := make([]Summary, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s.summary())
	}
	ids := oldest(list, max)
	for _, id := range ids {
		delete(m.sessions, id)
	}
	return ids, nil
}
