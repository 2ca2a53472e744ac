package availability

import "strings"

// Contact is a guest contact identity. Either field may be empty.
type Contact struct {
	Email string
	Phone string
}

// Normalize lower-cases the email and reduces the phone to its national
// digits so "(704) 555-0123" and "+1 704.555.0123" compare equal.
func (c Contact) Normalize() Contact {
	return Contact{
		Email: strings.ToLower(strings.TrimSpace(c.Email)),
		Phone: normalizePhone(c.Phone),
	}
}

// IsZero reports whether neither field carries a value.
func (c Contact) IsZero() bool {
	n := c.Normalize()
	return n.Email == "" && n.Phone == ""
}

// Matches reports whether c and other share a non-empty email or phone.
func (c Contact) Matches(other Contact) bool {
	a, b := c.Normalize(), other.Normalize()
	if a.Email != "" && a.Email == b.Email {
		return true
	}
	return a.Phone != "" && a.Phone == b.Phone
}

func normalizePhone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	return digits
}
