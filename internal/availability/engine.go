// Package availability computes which appointment slots of a day can be
// booked. It is pure: callers fetch the taken feed and the viewer's own
// bookings and pass them in.
package availability

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Policy selects which bookings block an authenticated viewer.
type Policy string

const (
	// PolicySelfOverlap blocks authenticated viewers only by their own
	// bookings and guests only by taken entries under their contact.
	PolicySelfOverlap Policy = "self"
	// PolicyAnyBooking treats the salon as a single resource: every taken
	// entry blocks every viewer.
	PolicyAnyBooking Policy = "any"
)

// ParsePolicy maps a config value to a Policy. Empty means PolicySelfOverlap.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicySelfOverlap, nil
	case PolicySelfOverlap, PolicyAnyBooking:
		return p, nil
	}
	return "", fmt.Errorf("unknown conflict policy %q, expected self or any", s)
}

// Reason explains why a slot is disabled.
type Reason string

const (
	ReasonPast         Reason = "past"
	ReasonClosing      Reason = "closing"
	ReasonConflict     Reason = "conflict"
	ReasonOutsideHours Reason = "outside_hours"
)

// ErrSlotUnavailable matches every *SlotError via errors.Is.
var ErrSlotUnavailable = errors.New("slot unavailable")

// SlotError is returned by Result.Check for an unusable candidate.
type SlotError struct {
	Slot   int
	Reason Reason
}

func (e *SlotError) Error() string {
	return fmt.Sprintf("slot %s unavailable: %s", FormatClock(e.Slot), e.Reason)
}

func (e *SlotError) Unwrap() error { return ErrSlotUnavailable }

// InputError reports a malformed Query field.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return e.Field + ": " + e.Reason
}

// Viewer describes who is looking at the time picker.
type Viewer struct {
	Authenticated bool
	// Contact is the guest contact identity. Ignored for authenticated viewers.
	Contact Contact
}

// TakenSlot is one entry of the cross-user taken feed.
type TakenSlot struct {
	Start int
	// DurationMinutes is zero when the feed does not report it.
	DurationMinutes int
	Contact         Contact
}

// OwnBooking is one of the authenticated viewer's upcoming appointments.
type OwnBooking struct {
	Start           time.Time
	DurationMinutes int
}

// Query is the full input of one availability computation.
type Query struct {
	Date time.Time
	// Now drives the past guard. The zero value disables it.
	Now             time.Time
	DurationMinutes int
	Viewer          Viewer
	Taken           []TakenSlot
	// Own may span any dates; only bookings on Date are considered.
	Own    []OwnBooking
	Policy Policy
}

func (q *Query) validate() error {
	if q.Date.IsZero() {
		return &InputError{Field: "date", Reason: "required"}
	}
	if q.DurationMinutes <= 0 {
		return &InputError{Field: "duration_minutes", Reason: fmt.Sprintf("must be positive, got %d", q.DurationMinutes)}
	}
	switch q.Policy {
	case "", PolicySelfOverlap, PolicyAnyBooking:
	default:
		return &InputError{Field: "policy", Reason: fmt.Sprintf("unknown value %q", q.Policy)}
	}
	for i, t := range q.Taken {
		if t.Start < 0 || t.Start >= minutesPerDay {
			return &InputError{Field: fmt.Sprintf("taken[%d].time", i), Reason: fmt.Sprintf("%d minutes out of range", t.Start)}
		}
		if t.DurationMinutes < 0 {
			return &InputError{Field: fmt.Sprintf("taken[%d].duration_minutes", i), Reason: "must not be negative"}
		}
	}
	for i, b := range q.Own {
		if b.Start.IsZero() {
			return &InputError{Field: fmt.Sprintf("own[%d].datetime", i), Reason: "required"}
		}
		if b.DurationMinutes < 0 {
			return &InputError{Field: fmt.Sprintf("own[%d].duration_minutes", i), Reason: "must not be negative"}
		}
	}
	return nil
}

// Result is the derived availability of one date for one duration. Each
// enumerated slot is in at most one of Past, Closing and Conflicting,
// checked in that order.
type Result struct {
	Date            time.Time
	DurationMinutes int
	Open            bool
	Window          Window

	Slots       []int
	Past        []int
	Closing     []int
	Conflicting []int

	reasons map[int]Reason
}

// Compute enumerates the date's slots and classifies each one.
func Compute(q Query, schedule Schedule) (*Result, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	policy := q.Policy
	if policy == "" {
		policy = PolicySelfOverlap
	}

	res := &Result{
		Date:            q.Date,
		DurationMinutes: q.DurationMinutes,
		reasons:         make(map[int]Reason),
	}
	if schedule == nil {
		return res, nil
	}
	w, open := schedule.WindowOn(q.Date)
	if !open {
		return res, nil
	}
	res.Open = true
	res.Window = w
	res.Slots = enumerateWindow(w)

	booked := blockingIntervals(&q, policy)
	for _, slot := range res.Slots {
		switch {
		case PastOnDate(q.Date, q.Now, slot):
			res.Past = append(res.Past, slot)
			res.reasons[slot] = ReasonPast
		case RunsPastClose(slot, q.DurationMinutes, w):
			res.Closing = append(res.Closing, slot)
			res.reasons[slot] = ReasonClosing
		case ConflictsAny(Interval{Start: slot, Duration: q.DurationMinutes}, booked):
			res.Conflicting = append(res.Conflicting, slot)
			res.reasons[slot] = ReasonConflict
		}
	}
	return res, nil
}

func blockingIntervals(q *Query, policy Policy) []Interval {
	var out []Interval
	if q.Viewer.Authenticated {
		loc := q.Date.Location()
		for _, b := range q.Own {
			start := b.Start.In(loc)
			if !SameDay(q.Date, start) {
				continue
			}
			out = append(out, Interval{Start: start.Hour()*60 + start.Minute(), Duration: b.DurationMinutes})
		}
	}
	for _, t := range q.Taken {
		blocks := policy == PolicyAnyBooking ||
			(!q.Viewer.Authenticated && q.Viewer.Contact.Matches(t.Contact))
		if blocks {
			out = append(out, Interval{Start: t.Start, Duration: t.DurationMinutes})
		}
	}
	return out
}

// Empty reports a day without any enumerated slot, e.g. a closed weekday.
func (r *Result) Empty() bool {
	return len(r.Slots) == 0
}

// IsDisabled reports whether an enumerated slot is disabled.
func (r *Result) IsDisabled(slot int) bool {
	_, ok := r.reasons[slot]
	return ok
}

// Reason returns why slot is disabled.
func (r *Result) Reason(slot int) (Reason, bool) {
	reason, ok := r.reasons[slot]
	return reason, ok
}

// Disabled returns the disabled slots in order.
func (r *Result) Disabled() []int {
	out := make([]int, 0, len(r.reasons))
	for _, s := range r.Slots {
		if r.IsDisabled(s) {
			out = append(out, s)
		}
	}
	return out
}

// DisabledLabels returns the disabled slots as "HH:MM".
func (r *Result) DisabledLabels() []string {
	disabled := r.Disabled()
	out := make([]string, len(disabled))
	for i, s := range disabled {
		out[i] = FormatClock(s)
	}
	return out
}

// Available returns the enabled slots in order.
func (r *Result) Available() []int {
	out := make([]int, 0, len(r.Slots))
	for _, s := range r.Slots {
		if !r.IsDisabled(s) {
			out = append(out, s)
		}
	}
	return out
}

// Check gates submission of a candidate slot.
func (r *Result) Check(slot int) error {
	if _, found := slices.BinarySearch(r.Slots, slot); !found {
		return &SlotError{Slot: slot, Reason: ReasonOutsideHours}
	}
	if reason, ok := r.reasons[slot]; ok {
		return &SlotError{Slot: slot, Reason: reason}
	}
	return nil
}

// CheckLabel parses label with ParseClock and runs Check.
func (r *Result) CheckLabel(label string) error {
	slot, err := ParseClock(label)
	if err != nil {
		return &InputError{Field: "time", Reason: err.Error()}
	}
	return r.Check(slot)
}

// IsCandidateInvalid is the boolean form of Check.
func (r *Result) IsCandidateInvalid(slot int) bool {
	return r.Check(slot) != nil
}
