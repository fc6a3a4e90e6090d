package session

import "sync"

// Locker serializes access per session identifier. Handlers and the chat
// pipeline hold the session lock across their read-modify-write so two
// concurrent requests for the same session cannot interleave; different
// sessions never contend.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLocker creates an empty Locker.
func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the lock for sessionID and returns the unlock function.
// Locks are created on first use and retained for the life of the process,
// matching the lifetime of the in-memory session state itself.
func (l *Locker) Lock(sessionID string) func() {
	l.mu.Lock()
	m, ok := l.locks[sessionID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[sessionID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
