package events

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPublish(t *testing.T) {
	bus := NewEventBus()
	fixed := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	bus.now = func() time.Time { return fixed }

	var got []string
	bus.Subscribe(BookingCreated, func(e Event) error {
		got = append(got, "journal:"+e.Booking.AppointmentID)
		assert.Equal(t, fixed, e.CreatedAt)
		return errors.New("disk full")
	})
	bus.Subscribe(BookingCreated, func(e Event) error {
		got = append(got, "notify")
		return nil
	})
	bus.Subscribe(BookingCancelled, func(Event) error {
		got = append(got, "cancelled")
		return nil
	})

	err := bus.Publish(Event{Type: BookingCreated, TelegramID: 1, Booking: &Booking{AppointmentID: "42"}})
	assert.EqualError(t, err, "disk full")
	assert.Equal(t, []string{"journal:42", "notify"}, got)

	assert.NoError(t, bus.Publish(Event{Type: SignedOut}))
}
