package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store holds live sessions. Implementations return the live *SessionState;
// the orchestrator serializes access via the session's own mutex.
type Store interface {
	Create(location string) (*SessionState, error)
	Get(id string) (*SessionState, error)
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*SessionState
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[string]*SessionState{}}
}

func (m *MemoryStore) Create(location string) (*SessionState, error) {
	id := uuid.NewString()
	state := newSessionState(id, location, time.Now().UTC())

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = state
	return state, nil
}

func (m *MemoryStore) Get(id string) (*SessionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return state, nil
}

// Len reports the number of live sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
