package session

import (
	"sync"

	"github.com/google/uuid"
)

// Manager holds the sessions that are being played.
type Manager struct {
	sessions map[uuid.UUID]*Session
	mu       sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[uuid.UUID]*Session),
	}
}

func (m *Manager) Add(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
}

func (m *Manager) Get(id uuid.UUID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, exists := m.sessions[id]
	return s, exists
}

func (m *Manager) Remove(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.sessions[id]
	delete(m.sessions, id)
	return exists
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
