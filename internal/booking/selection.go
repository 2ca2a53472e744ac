package booking

import (
	"time"

	"salonbook/internal/availability"
	"salonbook/internal/loader"
)

// NoSlot marks a Selection without a chosen time.
const NoSlot = -1

// Selection is the in-progress choice of style, date and time. Changing
// the style or the date drops the chosen time.
type Selection struct {
	StyleID         string
	StyleName       string
	DurationMinutes int
	Date            time.Time
	Slot            int
}

func NewSelection() Selection {
	return Selection{Slot: NoSlot}
}

func (s *Selection) SetStyle(id, name string, durationMinutes int) {
	if id != s.StyleID || durationMinutes != s.DurationMinutes {
		s.Slot = NoSlot
	}
	s.StyleID = id
	s.StyleName = name
	s.DurationMinutes = durationMinutes
}

// SetDate keeps only the calendar day of date.
func (s *Selection) SetDate(date time.Time) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	if !day.Equal(s.Date) {
		s.Slot = NoSlot
	}
	s.Date = day
}

func (s *Selection) SetSlot(slot int) {
	s.Slot = slot
}

func (s *Selection) Reset() {
	*s = NewSelection()
}

func (s Selection) HasStyle() bool { return s.StyleID != "" }
func (s Selection) HasDate() bool  { return !s.Date.IsZero() }
func (s Selection) HasSlot() bool  { return s.Slot != NoSlot }

// Key identifies the availability data this selection needs.
func (s Selection) Key() loader.Key {
	return loader.Key{Date: s.Date, StyleID: s.StyleID}
}

// Start is the appointment start in the date's location.
func (s Selection) Start() time.Time {
	if !s.HasDate() || !s.HasSlot() {
		return time.Time{}
	}
	d := s.Date
	return time.Date(d.Year(), d.Month(), d.Day(), s.Slot/60, s.Slot%60, 0, 0, d.Location())
}

// End is Start plus the service duration.
func (s Selection) End() time.Time {
	start := s.Start()
	if start.IsZero() {
		return start
	}
	return start.Add(time.Duration(s.DurationMinutes) * time.Minute)
}

// TimeLabel renders the chosen slot as "HH:MM".
func (s Selection) TimeLabel() string {
	if !s.HasSlot() {
		return ""
	}
	return availability.FormatClock(s.Slot)
}
