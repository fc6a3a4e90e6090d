package session

import (
	"sync"

	"github.com/taxpilot/taxpilot/internal/profile"
)

// Memory is an in-memory Store. All values are copied on the way in and out
// so callers never share slice storage with the store.
type Memory struct {
	mu            sync.RWMutex
	profiles      map[string]profile.Business
	documents     map[string]string
	conversations map[string][]Turn
}

// NewMemory creates an empty in-memory session store.
func NewMemory() *Memory {
	return &Memory{
		profiles:      make(map[string]profile.Business),
		documents:     make(map[string]string),
		conversations: make(map[string][]Turn),
	}
}

func (m *Memory) GetProfile(sessionID string) (profile.Business, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[sessionID]
	if !ok {
		return profile.Business{}, false, nil
	}
	return p.Clone(), true, nil
}

func (m *Memory) PutProfile(sessionID string, p profile.Business) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[sessionID] = p.Clone()
	return nil
}

func (m *Memory) GetDocument(sessionID string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	text, ok := m.documents[sessionID]
	return text, ok, nil
}

func (m *Memory) PutDocument(sessionID string, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[sessionID] = text
	return nil
}

func (m *Memory) DeleteDocument(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.documents, sessionID)
	return nil
}

func (m *Memory) GetConversation(sessionID string) ([]Turn, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	turns, ok := m.conversations[sessionID]
	if !ok {
		return nil, false, nil
	}
	cp := make([]Turn, len(turns))
	copy(cp, turns)
	return cp, true, nil
}

func (m *Memory) PutConversation(sessionID string, turns []Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]Turn, len(turns))
	copy(cp, turns)
	m.conversations[sessionID] = cp
	return nil
}
