package booking

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"salonbook/internal/availability"
	"salonbook/internal/loader"
	"salonbook/internal/salonapi"
	"salonbook/internal/validate"
)

var (
	ErrDateInPast = errors.New("date is in the past")
	ErrDateTooFar = errors.New("date is too far ahead")
	ErrDayClosed  = errors.New("the salon is closed on that day")
	ErrNoStyle    = errors.New("no style selected")
)

// TransitionError is returned for a step that is not allowed from the
// session's current state, e.g. a stale button press.
type TransitionError struct {
	From, To State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot go from %s to %s", e.From, e.To)
}

// FlowConfig configures a Flow.
type FlowConfig struct {
	Schedule   availability.Schedule
	Policy     availability.Policy
	Location   *time.Location
	MaxAdvance time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Flow applies user choices to a Session.
type Flow struct {
	fsm        *FSM
	schedule   availability.Schedule
	policy     availability.Policy
	loc        *time.Location
	maxAdvance time.Duration
	now        func() time.Time
}

func NewFlow(cfg FlowConfig) *Flow {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	maxAdvance := cfg.MaxAdvance
	if maxAdvance <= 0 {
		maxAdvance = 60 * 24 * time.Hour
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Flow{
		fsm:        NewFSM(),
		schedule:   cfg.Schedule,
		policy:     cfg.Policy,
		loc:        loc,
		maxAdvance: maxAdvance,
		now:        now,
	}
}

// Location of the salon.
func (f *Flow) Location() *time.Location { return f.loc }

// Now in the salon's location.
func (f *Flow) Now() time.Time { return f.now().In(f.loc) }

// Today is the current calendar day in the salon's location.
func (f *Flow) Today() time.Time {
	n := f.Now()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, f.loc)
}

// LastBookableDay is the furthest day the calendar offers.
func (f *Flow) LastBookableDay() time.Time {
	days := int(f.maxAdvance / (24 * time.Hour))
	return f.Today().AddDate(0, 0, days)
}

func (f *Flow) move(d *Draft, to State) error {
	if !f.fsm.CanTransition(d.State, to) {
		return &TransitionError{From: d.State, To: to}
	}
	d.State = to
	return nil
}

// Begin starts a dialog. contact prefills the guest step or carries the
// account's details.
func (f *Flow) Begin(s *Session, guest bool, contact ContactInfo) {
	s.Update(func(d *Draft) {
		*d = Draft{
			State:     StateChooseStyle,
			Selection: NewSelection(),
			Contact:   contact,
			Guest:     guest,
		}
	})
}

func (f *Flow) ChooseStyle(s *Session, style salonapi.Style) error {
	var err error
	s.Update(func(d *Draft) {
		next := f.fsm.AfterStyle(d.Guest)
		if d.State != StateChooseStyle {
			err = &TransitionError{From: d.State, To: next}
			return
		}
		d.Selection.SetStyle(style.ID, style.Name, style.DurationMinutes)
		err = f.move(d, next)
	})
	return err
}

// DateAllowed reports why a day cannot be picked, or nil.
func (f *Flow) DateAllowed(date time.Time) error {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, f.loc)
	if day.Before(f.Today()) {
		return ErrDateInPast
	}
	if day.After(f.LastBookableDay()) {
		return ErrDateTooFar
	}
	if f.schedule == nil {
		return ErrDayClosed
	}
	if _, open := f.schedule.WindowOn(day); !open {
		return ErrDayClosed
	}
	return nil
}

// ChooseDate accepts the calendar day of date in the salon's location.
func (f *Flow) ChooseDate(s *Session, date time.Time) error {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, f.loc)
	if err := f.DateAllowed(day); err != nil {
		return err
	}
	var err error
	s.Update(func(d *Draft) {
		if !d.Selection.HasStyle() {
			err = ErrNoStyle
			return
		}
		if d.State == StateChooseTime {
			// Picking another day from the time step.
			d.Selection.SetDate(day)
			return
		}
		if err = f.move(d, StateChooseTime); err != nil {
			return
		}
		d.Selection.SetDate(day)
	})
	return err
}

// Viewer builds the availability viewer for the draft.
func Viewer(authenticated bool, d Draft, remembered availability.Contact) availability.Viewer {
	if authenticated {
		return availability.Viewer{Authenticated: true}
	}
	c := availability.Contact{Email: d.Contact.Email, Phone: d.Contact.Phone}
	if c.IsZero() {
		c = remembered
	}
	return availability.Viewer{Contact: c.Normalize()}
}

// Availability computes the time picker for d from a loaded snapshot. A
// nil snapshot means nothing is known to be taken.
func (f *Flow) Availability(d Draft, snap *loader.Snapshot, viewer availability.Viewer) (*availability.Result, error) {
	if !d.Selection.HasStyle() {
		return nil, ErrNoStyle
	}
	q := availability.Query{
		Date:            d.Selection.Date,
		Now:             f.Now(),
		DurationMinutes: d.Selection.DurationMinutes,
		Viewer:          viewer,
		Policy:          f.policy,
	}
	if snap != nil {
		q.Taken = snap.Taken
		q.Own = snap.Own
	}
	return availability.Compute(q, f.schedule)
}

// ChooseTime stores slot if res allows it.
func (f *Flow) ChooseTime(s *Session, slot int, res *availability.Result) error {
	if err := res.Check(slot); err != nil {
		return err
	}
	var err error
	s.Update(func(d *Draft) {
		if !d.Selection.HasDate() || !res.Date.Equal(d.Selection.Date) {
			err = fmt.Errorf("time picked for %s but %s is selected", res.Date.Format("2006-01-02"), d.Selection.Date.Format("2006-01-02"))
			return
		}
		if err = f.move(d, StateAskNotes); err != nil {
			return
		}
		d.Selection.SetSlot(slot)
	})
	return err
}

// SetContact stores the guest's contact details and moves on to the date.
func (f *Flow) SetContact(s *Session, c ContactInfo) error {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)

	if err := (validate.ContactForm{Name: c.Name, Email: c.Email, Phone: c.Phone}).Validate(); err != nil {
		return err
	}
	var err error
	s.Update(func(d *Draft) {
		if err = f.move(d, StateChooseDate); err != nil {
			return
		}
		d.Contact = c
	})
	return err
}

// SetNotes stores optional notes and moves to confirmation.
func (f *Flow) SetNotes(s *Session, notes string) error {
	notes = strings.TrimSpace(notes)
	if len(notes) > 500 {
		return validate.FieldErrors{"notes": "must be at most 500 characters"}
	}
	var err error
	s.Update(func(d *Draft) {
		if err = f.move(d, StateConfirm); err != nil {
			return
		}
		d.Notes = notes
	})
	return err
}

// Back moves one step back and returns the new state.
func (f *Flow) Back(s *Session) State {
	var st State
	s.Update(func(d *Draft) {
		prev := f.fsm.Previous(d.State, d.Guest)
		if prev == StateChooseDate {
			d.Selection.SetSlot(NoSlot)
		}
		d.State = prev
		st = prev
	})
	return st
}

// ReopenTimes sends the dialog back to the time picker after the chosen
// slot was taken in the meantime.
func (f *Flow) ReopenTimes(s *Session) error {
	var err error
	s.Update(func(d *Draft) {
		if err = f.move(d, StateChooseTime); err != nil {
			return
		}
		d.Selection.SetSlot(NoSlot)
	})
	return err
}

func (f *Flow) Cancel(s *Session) {
	s.Update(func(d *Draft) {
		d.State = StateCanceled
	})
}

// Form converts the draft into the submission form.
func (f *Flow) Form(d Draft) validate.BookingForm {
	return validate.BookingForm{
		Guest:   d.Guest,
		StyleID: d.Selection.StyleID,
		Name:    d.Contact.Name,
		Email:   d.Contact.Email,
		Phone:   d.Contact.Phone,
		Start:   d.Selection.Start(),
		Notes:   d.Notes,
	}
}

// Validate runs the submission form rules.
func (f *Flow) Validate(d Draft) error {
	return f.Form(d).Validate(f.now())
}

// Request builds the backend request. Contact fields are sent for guests.
func (f *Flow) Request(d Draft) salonapi.CreateAppointmentRequest {
	req := salonapi.CreateAppointmentRequest{
		StyleID: d.Selection.StyleID,
		Start:   d.Selection.Start(),
		Notes:   d.Notes,
	}
	if d.Guest {
		req.CustomerName = d.Contact.Name
		req.CustomerEmail = d.Contact.Email
		req.CustomerPhone = d.Contact.Phone
	}
	return req
}

// Complete records the created appointment.
func (f *Flow) Complete(s *Session, appointmentID string) error {
	var err error
	s.Update(func(d *Draft) {
		if err = f.move(d, StateComplete); err != nil {
			return
		}
		d.AppointmentID = appointmentID
	})
	return err
}
