package availability

import "time"

// Interval is a half-open range [Start, Start+Duration) in minutes after
// midnight on one calendar date. A non-positive Duration counts as one slot.
type Interval struct {
	Start    int
	Duration int
}

func (i Interval) span() int {
	if i.Duration <= 0 {
		return SlotMinutes
	}
	return i.Duration
}

// End returns the exclusive end minute.
func (i Interval) End() int {
	return i.Start + i.span()
}

// Enumerate returns the ordered slot starts inside the date's operating
// window. A closed day yields no slots.
func Enumerate(date time.Time, schedule Schedule) []int {
	if schedule == nil {
		return nil
	}
	w, ok := schedule.WindowOn(date)
	if !ok {
		return nil
	}
	return enumerateWindow(w)
}

func enumerateWindow(w Window) []int {
	if w.Open >= w.Close {
		return nil
	}
	first := alignUp(w.Open)
	if first >= w.Close {
		return nil
	}
	slots := make([]int, 0, (w.Close-first+SlotMinutes-1)/SlotMinutes)
	for s := first; s < w.Close; s += SlotMinutes {
		slots = append(slots, s)
	}
	return slots
}

func alignUp(m int) int {
	if r := m % SlotMinutes; r != 0 {
		return m + SlotMinutes - r
	}
	return m
}

// Overlaps reports whether two intervals share any minute. Intervals that
// only touch (one ends when the other starts) do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start < b.End() && a.End() > b.Start
}

// ConflictsAny reports whether candidate overlaps any booked interval.
func ConflictsAny(candidate Interval, booked []Interval) bool {
	for _, b := range booked {
		if Overlaps(candidate, b) {
			return true
		}
	}
	return false
}

// PastOnDate reports whether slot on date has already started at now.
// Only the current date is affected; earlier dates are entirely past and
// later dates never are.
func PastOnDate(date, now time.Time, slot int) bool {
	now = now.In(date.Location())
	switch cmp := compareDays(date, now); {
	case cmp < 0:
		return true
	case cmp > 0:
		return false
	}
	return slot <= now.Hour()*60+now.Minute()
}

// RunsPastClose reports whether a service of duration minutes starting at
// slot would finish after closing. Finishing exactly at close is allowed.
func RunsPastClose(slot, duration int, w Window) bool {
	return slot+duration > w.Close
}

func compareDays(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	ka := ay*10000 + int(am)*100 + ad
	kb := by*10000 + int(bm)*100 + bd
	switch {
	case ka < kb:
		return -1
	case ka > kb:
		return 1
	}
	return 0
}

// SameDay reports whether a and b fall on the same calendar date in the
// location of a.
func SameDay(a, b time.Time) bool {
	return compareDays(a, b.In(a.Location())) == 0
}
