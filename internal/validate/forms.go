package validate

import (
	"errors"
	"time"
)

// BookingForm is what the booking dialog collects before submitting.
// Name and email are required from guests only.
type BookingForm struct {
	Guest   bool      `json:"-"`
	StyleID string    `json:"style" validate:"required"`
	Name    string    `json:"name" validate:"required_if=Guest true,max=100"`
	Email   string    `json:"email" validate:"required_if=Guest true,omitempty,salon_email"`
	Phone   string    `json:"phone" validate:"omitempty,us_phone"`
	Start   time.Time `json:"datetime" validate:"required"`
	Notes   string    `json:"notes" validate:"max=500"`
}

// Validate also requires Start to be after now.
func (f BookingForm) Validate(now time.Time) error {
	fe, err := collect(Struct(f))
	if err != nil {
		return err
	}
	if !f.Start.IsZero() && !f.Start.After(now) {
		fe["datetime"] = "must be in the future"
	}
	return fe.orNil()
}

type SignupForm struct {
	FirstName string `json:"first_name" validate:"required,max=50"`
	LastName  string `json:"last_name" validate:"required,max=50"`
	Email     string `json:"email" validate:"required,salon_email"`
	Password  string `json:"password" validate:"required,signup_password"`
	DOB       string `json:"dob" validate:"required,dob"`
}

func (f SignupForm) Validate() error {
	return Struct(f)
}

type LoginForm struct {
	Email    string `json:"email" validate:"required,salon_email"`
	Password string `json:"password" validate:"required"`
}

func (f LoginForm) Validate() error {
	return Struct(f)
}

// ProfileForm mirrors the editable profile. Phone is optional.
type ProfileForm struct {
	FirstName        string `json:"first_name" validate:"max=50"`
	LastName         string `json:"last_name" validate:"max=50"`
	Email            string `json:"email" validate:"required,salon_email"`
	Phone            string `json:"phone" validate:"omitempty,us_phone"`
	DOB              string `json:"dob" validate:"omitempty,dob"`
	PreferredStylist string `json:"preferred_stylist" validate:"max=100"`
}

func (f ProfileForm) Validate() error {
	return Struct(f)
}

// GuestContact is how a guest identifies their own bookings when asking
// for free times. Both fields are optional.
type GuestContact struct {
	Email string `json:"email" validate:"omitempty,salon_email"`
	Phone string `json:"phone" validate:"omitempty,us_phone"`
}

func (g GuestContact) Validate() error {
	return Struct(g)
}

func collect(err error) (FieldErrors, error) {
	if err == nil {
		return FieldErrors{}, nil
	}
	var fe FieldErrors
	if errors.As(err, &fe) {
		return fe, nil
	}
	return nil, err
}

func (fe FieldErrors) orNil() error {
	if len(fe) == 0 {
		return nil
	}
	return fe
}

// ContactForm is the contact step of a guest booking.
type ContactForm struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"required,salon_email"`
	Phone string `json:"phone" validate:"omitempty,us_phone"`
}

func (f ContactForm) Validate() error {
	return Struct(f)
}
