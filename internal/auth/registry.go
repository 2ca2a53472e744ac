package auth

import "sync"

// Registry holds one Session per Telegram user for the process lifetime.
type Registry struct {
	refresher Refresher

	mu       sync.Mutex
	sessions map[int64]*Session
}

func NewRegistry(refresher Refresher) *Registry {
	return &Registry{refresher: refresher, sessions: map[int64]*Session{}}
}

// Get returns the user's session, creating a guest session on first use.
func (r *Registry) Get(userID int64) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	if !ok {
		s = NewSession(r.refresher)
		r.sessions[userID] = s
	}
	return s
}

// Len is the number of known sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
