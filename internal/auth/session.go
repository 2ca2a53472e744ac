// Package auth keeps per-user login state. A Session is passed explicitly
// to whatever needs to know who is booking; there is no global state.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"salonbook/internal/availability"
	"salonbook/internal/salonapi"

	"golang.org/x/oauth2"
)

var (
	ErrNotAuthenticated = errors.New("not signed in")
	ErrTokenExpired     = errors.New("session expired, please sign in again")
)

// User is the signed-in account.
type User struct {
	ID        string
	Email     string
	Name      string
	FirstName string
}

// State is delivered to subscribers on every sign-in and sign-out.
type State struct {
	Authenticated bool
	User          User
}

// AuthContext is the read side of a session.
type AuthContext interface {
	IsAuthenticated() bool
	CurrentUser() (User, bool)
	// Contact is the identity used to scope guest availability.
	Contact() availability.Contact
	// Subscribe registers fn for state changes and returns its unsubscribe.
	Subscribe(fn func(State)) func()
}

// Refresher trades a refresh token for a new access token.
type Refresher interface {
	Refresh(ctx context.Context, refresh string) (*salonapi.TokenPair, error)
}

// Session is one user's authentication state.
type Session struct {
	refresher Refresher
	now       func() time.Time

	mu      sync.Mutex
	token   *oauth2.Token
	user    User
	contact availability.Contact
	subs    map[int]func(State)
	nextSub int
}

var _ AuthContext = (*Session)(nil)

func NewSession(refresher Refresher) *Session {
	return &Session{refresher: refresher, now: time.Now, subs: map[int]func(State){}}
}

// SignIn installs the tokens of a successful login.
func (s *Session) SignIn(pair *salonapi.TokenPair) error {
	if pair == nil || pair.Access == "" {
		return fmt.Errorf("sign in: empty access token")
	}
	claims, err := ParseClaims(pair.Access)
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	user := User{ID: claims.UserID, Email: claims.Email, Name: claims.Name, FirstName: claims.FirstName}
	if pair.FirstName != "" {
		user.FirstName = pair.FirstName
	}

	s.mu.Lock()
	s.token = &oauth2.Token{
		AccessToken:  pair.Access,
		RefreshToken: pair.Refresh,
		TokenType:    "Bearer",
		Expiry:       claims.ExpiresAt,
	}
	s.user = user
	st := s.stateLocked()
	subs := s.subscribersLocked()
	s.mu.Unlock()

	notify(subs, st)
	return nil
}

// SignOut clears the tokens. The remembered guest contact survives.
func (s *Session) SignOut() {
	s.mu.Lock()
	if s.token == nil {
		s.mu.Unlock()
		return
	}
	s.clearLocked()
	st := s.stateLocked()
	subs := s.subscribersLocked()
	s.mu.Unlock()

	notify(subs, st)
}

// IsAuthenticated evicts a session whose access token expired and cannot
// be refreshed.
func (s *Session) IsAuthenticated() bool {
	s.mu.Lock()
	if s.token == nil {
		s.mu.Unlock()
		return false
	}
	if s.usableLocked() {
		s.mu.Unlock()
		return true
	}
	s.clearLocked()
	st := s.stateLocked()
	subs := s.subscribersLocked()
	s.mu.Unlock()

	notify(subs, st)
	return false
}

func (s *Session) CurrentUser() (User, bool) {
	if !s.IsAuthenticated() {
		return User{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user, true
}

// Contact returns the account email when signed in, else the remembered
// guest contact.
func (s *Session) Contact() availability.Contact {
	if u, ok := s.CurrentUser(); ok {
		return availability.Contact{Email: u.Email}.Normalize()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contact
}

// RememberContact stores the guest contact used for prefill and scoping.
func (s *Session) RememberContact(c availability.Contact) {
	s.mu.Lock()
	s.contact = c.Normalize()
	s.mu.Unlock()
}

func (s *Session) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// TokenSource returns a source that refreshes the access token when it
// expires. ctx bounds the refresh calls.
func (s *Session) TokenSource(ctx context.Context) oauth2.TokenSource {
	s.mu.Lock()
	var current *oauth2.Token
	if s.token != nil {
		cp := *s.token
		current = &cp
	}
	s.mu.Unlock()
	return oauth2.ReuseTokenSource(current, &refreshSource{ctx: ctx, session: s})
}

// usableLocked: the access token is valid, or a refresh token exists.
func (s *Session) usableLocked() bool {
	if s.token.Expiry.IsZero() || s.now().Before(s.token.Expiry) {
		return true
	}
	return s.token.RefreshToken != "" && s.refresher != nil
}

func (s *Session) clearLocked() {
	s.token = nil
	s.user = User{}
}

func (s *Session) stateLocked() State {
	return State{Authenticated: s.token != nil, User: s.user}
}

func (s *Session) subscribersLocked() []func(State) {
	out := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}

func notify(subs []func(State), st State) {
	for _, fn := range subs {
		fn(st)
	}
}

// refreshSource is called by oauth2.ReuseTokenSource once the cached token
// is no longer valid.
type refreshSource struct {
	ctx     context.Context
	session *Session
}

func (r *refreshSource) Token() (*oauth2.Token, error) {
	s := r.session

	s.mu.Lock()
	if s.token == nil {
		s.mu.Unlock()
		return nil, ErrNotAuthenticated
	}
	if s.token.Expiry.IsZero() || s.now().Add(time.Minute).Before(s.token.Expiry) {
		cp := *s.token
		s.mu.Unlock()
		return &cp, nil
	}
	refresh := s.token.RefreshToken
	s.mu.Unlock()

	if refresh == "" || s.refresher == nil {
		s.SignOut()
		return nil, ErrTokenExpired
	}

	pair, err := s.refresher.Refresh(r.ctx, refresh)
	if err != nil {
		if errors.Is(err, salonapi.ErrUnauthorized) {
			s.SignOut()
			return nil, ErrTokenExpired
		}
		return nil, err
	}
	claims, err := ParseClaims(pair.Access)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == nil {
		return nil, ErrNotAuthenticated
	}
	if pair.Refresh != "" {
		s.token.RefreshToken = pair.Refresh
	}
	s.token.AccessToken = pair.Access
	s.token.Expiry = claims.ExpiresAt
	cp := *s.token
	return &cp, nil
}
