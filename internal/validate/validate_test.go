package validate

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrimitives(t *testing.T) {
	assert.True(t, Email(" ana@example.com "))
	assert.False(t, Email("ana@example"))
	assert.False(t, Email("ana example.com"))

	for _, p := range []string{"704-555-0123", "(704) 555 0123", "704.555.0123", "7045550123"} {
		assert.True(t, Phone(p), p)
	}
	for _, p := range []string{"555-0123", "+44 20 7946 0958", "704-555-01234"} {
		assert.False(t, Phone(p), p)
	}

	assert.True(t, SignupPassword("Secret123"))
	assert.False(t, SignupPassword("secret123"))
	assert.False(t, SignupPassword("Short1"))
}

func TestPasswordStrength(t *testing.T) {
	tests := []struct {
		pw   string
		want int
	}{
		{"", 0},
		{"abc", 1},
		{"abcdefgh", 2},
		{"Abcdefgh", 3},
		{"Abcdefg1", 4},
		{"Abcdefghijk1!", 4},
	}
	for _, tt := range tests {
		t.Run(tt.pw, func(t *testing.T) {
			assert.Equal(t, tt.want, PasswordStrength(tt.pw))
		})
	}
	assert.Equal(t, "weak", StrengthLabel(1))
	assert.Equal(t, "strong", StrengthLabel(4))
}

func TestDOB(t *testing.T) {
	now := time.Date(2026, 10, 17, 15, 0, 0, 0, time.UTC)
	assert.True(t, DOB("2013-10-17", now), "13th birthday today")
	assert.False(t, DOB("2013-10-18", now))
	assert.True(t, DOB("1990-01-01", now))
	assert.False(t, DOB("17/10/2000", now))
}

func TestBookingForm(t *testing.T) {
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	valid := BookingForm{
		Guest:   true,
		StyleID: "3",
		Name:    "Ana",
		Email:   "ana@example.com",
		Start:   now.Add(24 * time.Hour),
	}
	require.NoError(t, valid.Validate(now))

	tests := []struct {
		name   string
		mutate func(*BookingForm)
		want   FieldErrors
	}{
		{"missing style", func(f *BookingForm) { f.StyleID = "" }, FieldErrors{"style": "is required"}},
		{"guest without name", func(f *BookingForm) { f.Name = "" }, FieldErrors{"name": "is required"}},
		{"bad email", func(f *BookingForm) { f.Email = "nope" }, FieldErrors{"email": "must be a valid email address"}},
		{"bad phone", func(f *BookingForm) { f.Phone = "123" }, FieldErrors{"phone": "must be a valid phone number, e.g. 704-555-0123"}},
		{"past time", func(f *BookingForm) { f.Start = now.Add(-time.Hour) }, FieldErrors{"datetime": "must be in the future"}},
		{"no time", func(f *BookingForm) { f.Start = time.Time{} }, FieldErrors{"datetime": "is required"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := valid
			tt.mutate(&f)
			err := f.Validate(now)

			var fe FieldErrors
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.want, fe)
		})
	}
}

func TestBookingFormSignedIn(t *testing.T) {
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	f := BookingForm{StyleID: "3", Start: now.Add(time.Hour)}
	assert.NoError(t, f.Validate(now), "account users need no contact fields")
}

func TestSignupForm(t *testing.T) {
	err := SignupForm{Email: "ana@example.com", Password: "weak", DOB: "2020-01-01"}.Validate()

	var fe FieldErrors
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "is required", fe["first_name"])
	assert.Contains(t, fe["password"], "at least 8 characters")
	assert.Equal(t, "you must be at least 13 years old", fe["dob"])
	assert.NotContains(t, fe, "email")
}

func TestGuestContact(t *testing.T) {
	tests := []struct {
		name    string
		in      GuestContact
		wantErr string
	}{
		{"anonymous", GuestContact{}, ""},
		{"phone only", GuestContact{Phone: "704-555-0123"}, ""},
		{"email only", GuestContact{Email: "a@b.co"}, ""},
		{"bad email", GuestContact{Email: "bad"}, "email: must be a valid email address"},
		{"bad phone", GuestContact{Email: "a@b.co", Phone: "12"}, "phone: must be a valid phone number, e.g. 704-555-0123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestProfileForm(t *testing.T) {
	assert.NoError(t, ProfileForm{Email: "ana@example.com"}.Validate())
	err := ProfileForm{Email: "ana@example.com", Phone: "12"}.Validate()
	assert.EqualError(t, err, "phone: must be a valid phone number, e.g. 704-555-0123")
}

func TestContactForm(t *testing.T) {
	assert.NoError(t, ContactForm{Name: "Ana", Email: "ana@example.com"}.Validate())

	var fe FieldErrors
	require.True(t, errors.As(ContactForm{Phone: "704-555-0123"}.Validate(), &fe))
	assert.Equal(t, FieldErrors{"name": "is required", "email": "is required"}, fe)
}
