package salonapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// TokenPair is the login response. FirstName is sent by newer backends.
type TokenPair struct {
	Access    string `json:"access"`
	Refresh   string `json:"refresh"`
	FirstName string `json:"first_name,omitempty"`
}

// Login exchanges credentials for tokens. The backend takes the email as
// username.
func (c *Client) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	body := map[string]string{"username": strings.TrimSpace(email), "password": password}
	var pair TokenPair
	if err := c.do(ctx, call{op: "login", method: http.MethodPost, path: "/auth/login/", body: body}, &pair); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if pair.Access == "" {
		return nil, fmt.Errorf("login: no access token in response")
	}
	return &pair, nil
}

// Refresh trades a refresh token for a new access token. Refresh is empty
// in the result when the backend does not rotate it.
func (c *Client) Refresh(ctx context.Context, refresh string) (*TokenPair, error) {
	var pair TokenPair
	body := map[string]string{"refresh": refresh}
	if err := c.do(ctx, call{op: "refresh", method: http.MethodPost, path: "/auth/refresh/", body: body}, &pair); err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	if pair.Access == "" {
		return nil, fmt.Errorf("refresh token: no access token in response")
	}
	return &pair, nil
}

// RegisterRequest creates an account. DOB is "YYYY-MM-DD".
type RegisterRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	DOB       string `json:"dob,omitempty"`
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	if err := c.do(ctx, call{op: "register", method: http.MethodPost, path: "/auth/register/", body: req}, nil); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	return nil
}

// ResetPassword asks the backend to email a reset link.
func (c *Client) ResetPassword(ctx context.Context, email string) error {
	body := map[string]string{"email": strings.TrimSpace(email)}
	if err := c.do(ctx, call{op: "password_reset", method: http.MethodPost, path: "/auth/password/reset/", body: body}, nil); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	return nil
}

// Profile is the authenticated user's profile.
type Profile struct {
	ID               string `json:"id"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	DOB              string `json:"dob"`
	PreferredStylist string `json:"preferred_stylist"`
}

type profileWire struct {
	ID               flexString `json:"id"`
	FirstName        string     `json:"first_name"`
	LastName         string     `json:"last_name"`
	Email            string     `json:"email"`
	Phone            string     `json:"phone"`
	DOB              string     `json:"dob"`
	PreferredStylist string     `json:"preferred_stylist"`
}

func (w profileWire) profile() *Profile {
	return &Profile{
		ID:               string(w.ID),
		FirstName:        w.FirstName,
		LastName:         w.LastName,
		Email:            w.Email,
		Phone:            w.Phone,
		DOB:              w.DOB,
		PreferredStylist: w.PreferredStylist,
	}
}

// ProfilePatch updates only the non-nil fields.
type ProfilePatch struct {
	FirstName        *string `json:"first_name,omitempty"`
	LastName         *string `json:"last_name,omitempty"`
	Email            *string `json:"email,omitempty"`
	Phone            *string `json:"phone,omitempty"`
	DOB              *string `json:"dob,omitempty"`
	PreferredStylist *string `json:"preferred_stylist,omitempty"`
}

func (c *Client) GetProfile(ctx context.Context) (*Profile, error) {
	var w profileWire
	if err := c.do(ctx, call{op: "profile", method: http.MethodGet, path: "/me/profile/", auth: true}, &w); err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return w.profile(), nil
}

func (c *Client) UpdateProfile(ctx context.Context, patch ProfilePatch) (*Profile, error) {
	var w profileWire
	if err := c.do(ctx, call{op: "profile_update", method: http.MethodPatch, path: "/me/profile/", body: patch, auth: true}, &w); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return w.profile(), nil
}
