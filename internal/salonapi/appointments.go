package salonapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"salonbook/internal/availability"
)

// takenWire is one entry of the aggregate taken feed.
type takenWire struct {
	Time              string     `json:"time"`
	ContactEmail      string     `json:"contact_email"`
	ContactEmailCamel string     `json:"contactEmail"`
	ContactPhone      string     `json:"contact_phone"`
	ContactPhoneCamel string     `json:"contactPhone"`
	Duration          flexNumber `json:"duration_minutes"`
	DurationCamel     flexNumber `json:"durationMinutes"`
}

// takenCached is the canonical, cacheable form of a feed entry.
type takenCached struct {
	Start           int    `json:"start"`
	DurationMinutes int    `json:"durationMinutes,omitempty"`
	ContactEmail    string `json:"contactEmail,omitempty"`
	ContactPhone    string `json:"contactPhone,omitempty"`
}

func (w takenWire) normalize() (availability.TakenSlot, error) {
	start, err := availability.ParseClock(w.Time)
	if err != nil {
		return availability.TakenSlot{}, fmt.Errorf("time: %w", err)
	}
	dur, _ := firstNumber(w.Duration, w.DurationCamel)
	if dur < 0 {
		return availability.TakenSlot{}, fmt.Errorf("duration_minutes: must not be negative")
	}
	return availability.TakenSlot{
		Start:           start,
		DurationMinutes: int(dur),
		Contact: availability.Contact{
			Email: firstString(w.ContactEmail, w.ContactEmailCamel),
			Phone: firstString(w.ContactPhone, w.ContactPhoneCamel),
		}.Normalize(),
	}, nil
}

func takenKey(date time.Time) string {
	return "taken:" + date.Format("2006-01-02")
}

// TakenSlots returns the cross-user taken feed for date.
func (c *Client) TakenSlots(ctx context.Context, date time.Time) ([]availability.TakenSlot, error) {
	var cached []takenCached
	if c.readCache(ctx, takenKey(date), &cached) {
		out := make([]availability.TakenSlot, len(cached))
		for i, t := range cached {
			out[i] = availability.TakenSlot{
				Start:           t.Start,
				DurationMinutes: t.DurationMinutes,
				Contact:         availability.Contact{Email: t.ContactEmail, Phone: t.ContactPhone},
			}
		}
		return out, nil
	}

	q := url.Values{"date": {date.Format("2006-01-02")}}
	var raw json.RawMessage
	if err := c.do(ctx, call{op: "taken", method: http.MethodGet, path: "/appointments/taken/", query: q}, &raw); err != nil {
		return nil, fmt.Errorf("taken slots: %w", err)
	}
	wires, err := decodeList[takenWire](raw)
	if err != nil {
		return nil, fmt.Errorf("taken slots: decode: %w", err)
	}

	out := make([]availability.TakenSlot, 0, len(wires))
	cached = make([]takenCached, 0, len(wires))
	for i, w := range wires {
		t, err := w.normalize()
		if err != nil {
			return nil, fmt.Errorf("taken slots: taken[%d].%w", i, err)
		}
		out = append(out, t)
		cached = append(cached, takenCached{
			Start:           t.Start,
			DurationMinutes: t.DurationMinutes,
			ContactEmail:    t.Contact.Email,
			ContactPhone:    t.Contact.Phone,
		})
	}
	c.writeCache(ctx, takenKey(date), cached, c.takenTTL)
	return out, nil
}

// Appointment is a booking in canonical form.
type Appointment struct {
	ID              string    `json:"id"`
	StyleID         string    `json:"styleId,omitempty"`
	StyleName       string    `json:"styleName,omitempty"`
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"durationMinutes,omitempty"`
	Status          string    `json:"status,omitempty"`
	Amount          float64   `json:"amount"`
	Paid            bool      `json:"paid"`
	Notes           string    `json:"notes,omitempty"`
}

// OwnBooking converts the appointment into the availability engine input.
func (a Appointment) OwnBooking() availability.OwnBooking {
	return availability.OwnBooking{Start: a.Start, DurationMinutes: a.DurationMinutes}
}

type appointmentWire struct {
	ID flexString `json:"id"`

	Datetime        string `json:"datetime"`
	AppointmentTime string `json:"appointment_time"`
	StartTime       string `json:"start_time"`

	Duration      flexNumber `json:"duration_minutes"`
	DurationCamel flexNumber `json:"durationMinutes"`

	StyleName string          `json:"style_name"`
	Style     json.RawMessage `json:"style"`

	Status string     `json:"status"`
	Amount flexNumber `json:"amount"`
	IsPaid bool       `json:"is_paid"`
	Notes  string     `json:"notes"`
}

func (w appointmentWire) normalize(loc *time.Location) (Appointment, error) {
	a := Appointment{
		ID:        string(w.ID),
		StyleName: strings.TrimSpace(w.StyleName),
		Status:    strings.ToLower(strings.TrimSpace(w.Status)),
		Notes:     w.Notes,
	}
	if a.ID == "" {
		return Appointment{}, fmt.Errorf("id: missing")
	}

	when := firstString(w.Datetime, w.AppointmentTime, w.StartTime)
	if when == "" {
		return Appointment{}, fmt.Errorf("datetime: missing")
	}
	start, err := parseDateTime(when, loc)
	if err != nil {
		return Appointment{}, fmt.Errorf("datetime: %w", err)
	}
	a.Start = start

	// style is either an id or a nested object.
	var nested *styleWire
	if raw := bytes.TrimSpace(w.Style); len(raw) > 0 && raw[0] == '{' {
		nested = &styleWire{}
		if err := json.Unmarshal(raw, nested); err != nil {
			return Appointment{}, fmt.Errorf("style: %w", err)
		}
		a.StyleID = string(nested.ID)
		if a.StyleName == "" {
			a.StyleName = strings.TrimSpace(nested.Name)
		}
	} else if len(raw) > 0 {
		var id flexString
		if err := json.Unmarshal(raw, &id); err != nil {
			return Appointment{}, fmt.Errorf("style: %w", err)
		}
		a.StyleID = string(id)
	}

	dur, ok := firstNumber(w.Duration, w.DurationCamel)
	if !ok && nested != nil {
		dur, _ = firstNumber(nested.DurationMinutes, nested.DurationMinutesCamel, nested.DurationMins, nested.DurationMinsCamel)
	}
	if dur < 0 {
		return Appointment{}, fmt.Errorf("duration_minutes: must not be negative")
	}
	a.DurationMinutes = int(dur)

	amount, ok := firstNumber(w.Amount)
	if !ok && nested != nil {
		amount, _ = firstNumber(nested.PriceMin, nested.PriceMinCamel, nested.Price)
	}
	a.Amount = amount
	a.Paid = a.Status == "paid" || w.IsPaid
	return a, nil
}

// UpcomingAppointments lists the authenticated user's future bookings,
// cancelled ones excluded.
func (c *Client) UpcomingAppointments(ctx context.Context) ([]Appointment, error) {
	var raw json.RawMessage
	err := c.do(ctx, call{op: "upcoming", method: http.MethodGet, path: "/appointments/upcoming/", auth: true}, &raw)
	if err != nil {
		return nil, fmt.Errorf("upcoming appointments: %w", err)
	}
	wires, err := decodeList[appointmentWire](raw)
	if err != nil {
		return nil, fmt.Errorf("upcoming appointments: decode: %w", err)
	}

	out := make([]Appointment, 0, len(wires))
	for i, w := range wires {
		a, err := w.normalize(c.location())
		if err != nil {
			return nil, fmt.Errorf("upcoming appointments: own[%d].%w", i, err)
		}
		if a.Status == "cancelled" || a.Status == "canceled" {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// UpcomingBookings adapts UpcomingAppointments for the availability loader.
func (c *Client) UpcomingBookings(ctx context.Context) ([]availability.OwnBooking, error) {
	appts, err := c.UpcomingAppointments(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]availability.OwnBooking, len(appts))
	for i, a := range appts {
		out[i] = a.OwnBooking()
	}
	return out, nil
}

// CreateAppointmentRequest books a style. Guests fill the Customer fields.
type CreateAppointmentRequest struct {
	StyleID       string
	Start         time.Time
	Notes         string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
}

type createAppointmentWire struct {
	Style         any    `json:"style"`
	Datetime      string `json:"datetime"`
	Notes         string `json:"notes,omitempty"`
	CustomerName  string `json:"customer_name,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`
	CustomerPhone string `json:"customer_phone,omitempty"`
}

// styleRef sends numeric ids as numbers.
func styleRef(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}

// CreateAppointment books an appointment. The request is authenticated
// when the client carries a token source.
func (c *Client) CreateAppointment(ctx context.Context, req CreateAppointmentRequest) (*Appointment, error) {
	body := createAppointmentWire{
		Style:         styleRef(req.StyleID),
		Datetime:      req.Start.UTC().Format(time.RFC3339),
		Notes:         req.Notes,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
	}

	var w appointmentWire
	err := c.do(ctx, call{op: "create_appointment", method: http.MethodPost, path: "/appointments/", body: body, auth: c.tokens != nil}, &w)
	if err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}
	c.dropCache(ctx, takenKey(req.Start))

	// Some deployments answer with only the id.
	if w.Datetime == "" && w.AppointmentTime == "" && w.StartTime == "" {
		w.Datetime = body.Datetime
	}
	a, err := w.normalize(c.location())
	if err != nil {
		return nil, fmt.Errorf("create appointment: response %w", err)
	}
	if a.StyleID == "" {
		a.StyleID = req.StyleID
	}
	return &a, nil
}

// StartCheckout returns the payment page url for an appointment.
func (c *Client) StartCheckout(ctx context.Context, appointmentID string) (string, error) {
	var resp struct {
		URL string `json:"url"`
	}
	path := "/appointments/" + url.PathEscape(appointmentID) + "/start_checkout/"
	if err := c.do(ctx, call{op: "checkout", method: http.MethodPost, path: path, auth: c.tokens != nil}, &resp); err != nil {
		return "", fmt.Errorf("start checkout: %w", err)
	}
	if resp.URL == "" {
		return "", fmt.Errorf("start checkout: empty url in response")
	}
	return resp.URL, nil
}

// CancelAppointment cancels one of the user's appointments.
func (c *Client) CancelAppointment(ctx context.Context, appointmentID string) error {
	path := "/appointments/" + url.PathEscape(appointmentID) + "/cancel/"
	if err := c.do(ctx, call{op: "cancel_appointment", method: http.MethodPost, path: path, auth: true}, nil); err != nil {
		return fmt.Errorf("cancel appointment: %w", err)
	}
	return nil
}
