package bot

import (
	"sync"

	"salonbook/internal/availability"
	"salonbook/internal/catalog"
)

// inputStep is the free-text answer the bot waits for outside the booking
// dialog.
type inputStep string

const (
	inputNone          inputStep = ""
	inputLoginEmail    inputStep = "login_email"
	inputLoginPassword inputStep = "login_password"
	inputRegFirstName  inputStep = "reg_first_name"
	inputRegLastName   inputStep = "reg_last_name"
	inputRegEmail      inputStep = "reg_email"
	inputRegPassword   inputStep = "reg_password"
	inputRegDOB        inputStep = "reg_dob"
	inputResetEmail    inputStep = "reset_email"
	inputProfilePhone  inputStep = "profile_phone"
	inputProfileEmail  inputStep = "profile_email"
)

type registration struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

type userState struct {
	Input    inputStep
	Email    string
	Register registration
	// Browse is the filter of the last /styles listing.
	Browse catalog.Filter

	// Picker is the message that shows the time picker.
	Picker int
	// Result is the availability last rendered in Picker.
	Result *availability.Result
}

type stateStore struct {
	mu sync.Mutex
	m  map[int64]*userState
}

func newStateStore() *stateStore {
	return &stateStore{m: make(map[int64]*userState)}
}

// update runs fn on the user's state with the store locked.
func (s *stateStore) update(userID int64, fn func(st *userState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.m[userID]
	if st == nil {
		st = &userState{}
		s.m[userID] = st
	}
	fn(st)
}

// get returns a copy of the user's state.
func (s *stateStore) get(userID int64) userState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st := s.m[userID]; st != nil {
		return *st
	}
	return userState{}
}

func (s *stateStore) clearInput(userID int64) {
	s.update(userID, func(st *userState) {
		st.Input = inputNone
		st.Email = ""
		st.Register = registration{}
	})
}

func (s *stateStore) reset(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, userID)
}
