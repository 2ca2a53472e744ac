// Package validate checks user input before it is sent to the backend.
package validate

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	emailRe    = regexp.MustCompile(`^\S+@\S+\.\S+$`)
	phoneRe    = regexp.MustCompile(`^\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}$`)
	lowerRe    = regexp.MustCompile(`[a-z]`)
	upperRe    = regexp.MustCompile(`[A-Z]`)
	digitRe    = regexp.MustCompile(`\d`)
	digitSymRe = regexp.MustCompile(`\d|[^A-Za-z0-9]`)
)

// MinAge is the youngest age allowed to register.
const MinAge = 13

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("salon_email", func(fl validator.FieldLevel) bool {
		return Email(fl.Field().String())
	})
	_ = validate.RegisterValidation("us_phone", func(fl validator.FieldLevel) bool {
		return Phone(fl.Field().String())
	})
	_ = validate.RegisterValidation("signup_password", func(fl validator.FieldLevel) bool {
		return SignupPassword(fl.Field().String())
	})
	_ = validate.RegisterValidation("dob", func(fl validator.FieldLevel) bool {
		return DOB(fl.Field().String(), time.Now())
	})
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
}

// Email uses the same loose rule as the booking site.
func Email(s string) bool {
	return emailRe.MatchString(strings.TrimSpace(s))
}

// Phone accepts US formats like "704-555-0123" or "(704) 555 0123".
func Phone(s string) bool {
	return phoneRe.MatchString(strings.TrimSpace(s))
}

// PasswordStrength scores a password from 0 to 4.
func PasswordStrength(pw string) int {
	if pw == "" {
		return 0
	}
	score := 0
	if len(pw) >= 8 {
		score++
	}
	if lowerRe.MatchString(pw) {
		score++
	}
	if upperRe.MatchString(pw) {
		score++
	}
	if digitSymRe.MatchString(pw) {
		score++
	}
	if len(pw) >= 12 {
		score++
	}
	return min(score, 4)
}

// StrengthLabel names a PasswordStrength score.
func StrengthLabel(score int) string {
	switch {
	case score <= 1:
		return "weak"
	case score == 2:
		return "fair"
	case score == 3:
		return "good"
	}
	return "strong"
}

// SignupPassword requires 8+ characters with upper, lower and a digit.
func SignupPassword(pw string) bool {
	return len(pw) >= 8 && lowerRe.MatchString(pw) && upperRe.MatchString(pw) && digitRe.MatchString(pw)
}

// DOB reports whether an ISO date of birth is at least MinAge years before now.
func DOB(iso string, now time.Time) bool {
	dob, err := time.Parse("2006-01-02", strings.TrimSpace(iso))
	if err != nil {
		return false
	}
	limit := time.Date(now.Year()-MinAge, now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return !dob.After(limit)
}

// FieldErrors maps a field name to a user-facing message.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + fe[k]
	}
	return strings.Join(parts, "; ")
}

// Struct runs the tag rules and converts failures into FieldErrors.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	out := FieldErrors{}
	for _, fe := range verrs {
		if _, seen := out[fe.Field()]; !seen {
			out[fe.Field()] = message(fe)
		}
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "required_without":
		return "email or phone is required"
	case "salon_email", "email":
		return "must be a valid email address"
	case "us_phone":
		return "must be a valid phone number, e.g. 704-555-0123"
	case "signup_password":
		return "must be at least 8 characters with upper, lower case and a digit"
	case "dob":
		return fmt.Sprintf("you must be at least %d years old", MinAge)
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	}
	return "is invalid"
}
