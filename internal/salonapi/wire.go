package salonapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// flexString accepts a JSON string or number, e.g. ids.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*f = flexString(n.String())
	return nil
}

// flexNumber accepts a JSON number or a money-like string such as "$45.00".
type flexNumber struct {
	Value float64
	Set   bool
}

func (f *flexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, ok, err := ParseAmount(s)
		if err != nil {
			return err
		}
		f.Value, f.Set = v, ok
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("expected number, got %s", b)
	}
	f.Value, f.Set = v, true
	return nil
}

// ParseAmount parses prices such as "45", "$45.00" or "1,200.50". An empty
// or symbol-only string reports ok=false.
func ParseAmount(s string) (float64, bool, error) {
	var sb strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			sb.WriteRune(r)
		}
	}
	cleaned := sb.String()
	if cleaned == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid amount %q", s)
	}
	return v, true, nil
}

func firstNumber(vals ...flexNumber) (float64, bool) {
	for _, v := range vals {
		if v.Set {
			return v.Value, true
		}
	}
	return 0, false
}

func firstString(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// decodeList accepts a bare JSON array or a paginated {"results": [...]}.
func decodeList[T any](raw json.RawMessage) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if raw[0] == '[' {
		var out []T
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	var env struct {
		Results []T `json:"results"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	return env.Results, nil
}

// parseDateTime accepts RFC 3339 and zone-less ISO-8601 values; the latter
// are read in loc.
func parseDateTime(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid value %q", s)
}
