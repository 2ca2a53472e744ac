package availability

import (
	"fmt"
	"strconv"
	"strings"
)

// SlotMinutes is the slot granularity and the assumed length of a taken
// entry whose duration is not reported.
const SlotMinutes = 30

const minutesPerDay = 24 * 60

// FormatClock renders minutes after midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ParseClock converts a time label into minutes after midnight.
// Accepted forms: "14:00", "14:00:00", "10:00 AM", "2:30pm".
func ParseClock(s string) (int, error) {
	label := strings.ToUpper(strings.TrimSpace(s))
	if label == "" {
		return 0, fmt.Errorf("invalid time %q: empty", s)
	}

	meridiem := ""
	switch {
	case strings.HasSuffix(label, "AM"):
		meridiem = "AM"
	case strings.HasSuffix(label, "PM"):
		meridiem = "PM"
	}
	if meridiem != "" {
		label = strings.TrimSpace(strings.TrimSuffix(label, meridiem))
	}

	parts := strings.Split(label, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	if len(parts) == 3 && parts[2] != "00" {
		return 0, fmt.Errorf("invalid time %q: seconds are not supported", s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || len(parts[0]) > 2 {
		return 0, fmt.Errorf("invalid time %q: bad hour", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid time %q: bad minute", s)
	}
	if minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid time %q: minute out of range", s)
	}

	if meridiem == "" {
		if hour < 0 || hour > 23 {
			return 0, fmt.Errorf("invalid time %q: hour out of range", s)
		}
		return hour*60 + minute, nil
	}

	if hour < 1 || hour > 12 {
		return 0, fmt.Errorf("invalid time %q: hour out of range", s)
	}
	if meridiem == "PM" && hour < 12 {
		hour += 12
	}
	if meridiem == "AM" && hour == 12 {
		hour = 0
	}
	return hour*60 + minute, nil
}
