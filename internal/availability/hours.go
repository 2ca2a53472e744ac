package availability

import (
	"fmt"
	"time"
)

// Window is a day's operating window in minutes after midnight: slots
// start at or after Open and services must finish by Close.
type Window struct {
	Open  int
	Close int
}

// Validate checks that the window lies inside one day and is non-empty.
func (w Window) Validate() error {
	if w.Open < 0 || w.Open >= minutesPerDay {
		return fmt.Errorf("open: %d out of range", w.Open)
	}
	if w.Close <= 0 || w.Close > minutesPerDay {
		return fmt.Errorf("close: %d out of range", w.Close)
	}
	if w.Open >= w.Close {
		return fmt.Errorf("open %s must be before close %s", FormatClock(w.Open), FormatClock(w.Close))
	}
	return nil
}

func (w Window) String() string {
	return FormatClock(w.Open) + "-" + FormatClock(w.Close)
}

// Schedule resolves the operating window for a calendar date. The second
// return value is false when the salon is closed that day.
type Schedule interface {
	WindowOn(date time.Time) (Window, bool)
}

// BusinessHours maps a weekday to its window. A missing weekday is closed.
type BusinessHours map[time.Weekday]Window

// DefaultBusinessHours returns Mon-Fri 09:00-19:00, Sat 09:00-18:00 and a
// closed Sunday.
func DefaultBusinessHours() BusinessHours {
	weekday := Window{Open: 9 * 60, Close: 19 * 60}
	return BusinessHours{
		time.Monday:    weekday,
		time.Tuesday:   weekday,
		time.Wednesday: weekday,
		time.Thursday:  weekday,
		time.Friday:    weekday,
		time.Saturday:  {Open: 9 * 60, Close: 18 * 60},
	}
}

// WindowOn implements Schedule using only the weekday of date.
func (h BusinessHours) WindowOn(date time.Time) (Window, bool) {
	w, ok := h[date.Weekday()]
	return w, ok
}

// Validate checks every configured weekday.
func (h BusinessHours) Validate() error {
	for day := time.Sunday; day <= time.Saturday; day++ {
		w, ok := h[day]
		if !ok {
			continue
		}
		if err := w.Validate(); err != nil {
			return fmt.Errorf("%s: %w", day, err)
		}
	}
	return nil
}
