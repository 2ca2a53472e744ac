// Package booking holds the booking dialog: what the user picked so far and
// which step comes next.
package booking

import (
	"sync"
	"time"
)

// State represents the current step of the booking dialog.
type State string

const (
	StateIdle        State = "idle"
	StateChooseStyle State = "choose_style"
	StateChooseDate  State = "choose_date"
	StateChooseTime  State = "choose_time"
	StateAskContact  State = "ask_contact"
	StateAskNotes    State = "ask_notes"
	StateConfirm     State = "confirm"
	StateComplete    State = "complete"
	StateCanceled    State = "canceled"
)

// ContactInfo is collected from guests; signed-in users get it from
// their account.
type ContactInfo struct {
	Name  string
	Email string
	Phone string
}

// Draft is the data collected by the dialog.
type Draft struct {
	State     State
	Selection Selection
	Contact   ContactInfo
	Notes     string
	// Guest is fixed when the dialog starts.
	Guest bool
	// AppointmentID is set once the backend accepted the booking.
	AppointmentID string
}

// Session represents one user's booking dialog.
type Session struct {
	Draft
	UserID    int64
	StartedAt time.Time
	UpdatedAt time.Time
	mu        sync.Mutex
}

// NewSession creates a new booking session.
func NewSession(userID int64) *Session {
	now := time.Now()
	return &Session{
		Draft:     Draft{State: StateIdle, Selection: NewSelection()},
		UserID:    userID,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// SetState updates the session state.
func (s *Session) SetState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = state
	s.UpdatedAt = time.Now()
}

// GetState returns current state.
func (s *Session) GetState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.State
}

// Snapshot returns a copy of the dialog data.
func (s *Session) Snapshot() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Draft
}

// Update runs fn with the session locked and bumps UpdatedAt.
func (s *Session) Update(fn func(d *Draft)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.Draft)
	s.UpdatedAt = time.Now()
}

// IsExpired checks if session has expired.
func (s *Session) IsExpired(timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.UpdatedAt) > timeout
}

// SessionStore manages booking sessions.
type SessionStore struct {
	sessions map[int64]*Session
	mu       sync.RWMutex
	timeout  time.Duration
}

// NewSessionStore creates a new session store.
func NewSessionStore(timeout time.Duration) *SessionStore {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &SessionStore{
		sessions: make(map[int64]*Session),
		timeout:  timeout,
	}
}

// Get returns a live session for user or nil.
func (ss *SessionStore) Get(userID int64) *Session {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	s := ss.sessions[userID]
	if s == nil || s.IsExpired(ss.timeout) {
		return nil
	}
	return s
}

// GetOrCreate returns existing or creates new session.
func (ss *SessionStore) GetOrCreate(userID int64) *Session {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	session, ok := ss.sessions[userID]
	if ok && !session.IsExpired(ss.timeout) {
		return session
	}

	session = NewSession(userID)
	ss.sessions[userID] = session
	return session
}

// Delete removes a session.
func (ss *SessionStore) Delete(userID int64) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.sessions, userID)
}

// Reset replaces the user's session with a fresh one.
func (ss *SessionStore) Reset(userID int64) *Session {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	session := NewSession(userID)
	ss.sessions[userID] = session
	return session
}

// Cleanup removes expired sessions.
func (ss *SessionStore) Cleanup() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	removed := 0
	for userID, session := range ss.sessions {
		if session.IsExpired(ss.timeout) {
			delete(ss.sessions, userID)
			removed++
		}
	}
	return removed
}

// FSM manages state transitions for the booking dialog.
type FSM struct {
	transitions map[State][]State
}

// NewFSM creates a new FSM with predefined transitions. Guests give their
// contact right after the style so the time picker already knows which
// bookings are theirs. Signed-in users go from style straight to date.
func NewFSM() *FSM {
	return &FSM{
		transitions: map[State][]State{
			StateIdle:        {StateChooseStyle},
			StateChooseStyle: {StateAskContact, StateChooseDate, StateCanceled},
			StateAskContact:  {StateChooseDate, StateChooseStyle, StateCanceled},
			StateChooseDate:  {StateChooseTime, StateAskContact, StateChooseStyle, StateCanceled},
			StateChooseTime:  {StateAskNotes, StateChooseDate, StateCanceled},
			StateAskNotes:    {StateConfirm, StateChooseTime, StateCanceled},
			StateConfirm:     {StateComplete, StateAskNotes, StateChooseTime, StateCanceled},
			StateComplete:    {StateIdle},
			StateCanceled:    {StateIdle},
		},
	}
}

// CanTransition checks if transition is allowed.
func (f *FSM) CanTransition(from, to State) bool {
	for _, s := range f.transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Previous is the step "back" leads to.
func (f *FSM) Previous(state State, guest bool) State {
	switch state {
	case StateAskContact:
		return StateChooseStyle
	case StateChooseDate:
		if guest {
			return StateAskContact
		}
		return StateChooseStyle
	case StateChooseTime:
		return StateChooseDate
	case StateAskNotes:
		return StateChooseTime
	case StateConfirm:
		return StateAskNotes
	}
	return state
}

// AfterStyle is the step following a chosen style.
func (f *FSM) AfterStyle(guest bool) State {
	if guest {
		return StateAskContact
	}
	return StateChooseDate
}
