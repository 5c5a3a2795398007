package store

import (
	"context"
	"sort"
	"sync"
)

// Memory is a map-backed Store. State does not survive a restart.
type Memory struct {
	mu    sync.RWMutex
	users map[string]User
	saves map[string]SavedTable
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users: make(map[string]User),
		saves: make(map[string]SavedTable),
	}
}

func (m *Memory) GetUser(_ context.Context, username string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[username]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) CreateUser(_ context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Username]; ok {
		return ErrExists
	}
	m.users[u.Username] = u
	return nil
}

func (m *Memory) UpdateUserLocale(_ context.Context, username, locale string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return ErrNotFound
	}
	u.Locale = locale
	m.users[username] = u
	return nil
}

func (m *Memory) PutSave(_ context.Context, s SavedTable) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves[s.ID] = s
	return nil
}

func (m *Memory) GetSave(_ context.Context, id string) (SavedTable, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.saves[id]
	if !ok {
		return SavedTable{}, ErrNotFound
	}
	return s, nil
}

func (m *Memory) ListSaves(_ context.Context, owner string) ([]SavedTable, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []SavedTable
	for _, s := range m.saves {
		if s.Owner == owner {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SavedAt.After(out[j].SavedAt) })
	return out, nil
}

func (m *Memory) DeleteSave(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.saves[id]; !ok {
		return ErrNotFound
	}
	delete(m.saves, id)
	return nil
}

func (m *Memory) Close() {}
