package auth

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Claims is what the bot reads from an access token. The signature is not
// verified: the backend does that on every request.
type Claims struct {
	UserID    string
	Email     string
	Name      string
	FirstName string
	ExpiresAt time.Time
}

// ParseClaims decodes the payload of a JWT access token.
func ParseClaims(access string) (*Claims, error) {
	parser := new(jwt.Parser)
	token, _, err := parser.ParseUnverified(access, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("parse access token: unexpected claims type %T", token.Claims)
	}

	c := &Claims{
		UserID: claimString(mc["user_id"]),
		Email:  strings.ToLower(claimString(mc["email"])),
		Name:   claimString(mc["name"]),
	}
	if c.UserID == "" {
		c.UserID = claimString(mc["sub"])
	}
	c.FirstName = claimString(mc["first_name"])
	if c.FirstName == "" {
		c.FirstName = firstWord(c.Name)
	}

	switch exp := mc["exp"].(type) {
	case float64:
		sec, frac := math.Modf(exp)
		c.ExpiresAt = time.Unix(int64(sec), int64(frac*1e9))
	case json.Number:
		if v, err := exp.Int64(); err == nil {
			c.ExpiresAt = time.Unix(v, 0)
		}
	}
	return c, nil
}

func claimString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	}
	return ""
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
