// Package events is an in-process bus for booking events.
package events

import (
	"errors"
	"sync"
	"time"
)

const (
	BookingCreated   = "booking.created"
	BookingCancelled = "booking.cancelled"
	SignedIn         = "auth.signed_in"
	SignedOut        = "auth.signed_out"
)

// Event describes something that happened to one Telegram user.
type Event struct {
	Type       string
	TelegramID int64
	// Booking is set for booking events.
	Booking   *Booking
	CreatedAt time.Time
}

// Booking is the payload of booking events.
type Booking struct {
	AppointmentID   string
	StyleName       string
	Start           time.Time
	DurationMinutes int
	ContactEmail    string
	ContactPhone    string
	Guest           bool
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	now         func() time.Time
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler), now: time.Now}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish runs the handlers in subscription order and joins their errors.
// A failing handler does not stop the others.
func (b *EventBus) Publish(event Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = b.now()
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
