package db

import (
	"context"
	"errors"
	"fmt"

	"salonbook/internal/events"
)

// RecordEvent keeps the booking journal in step with the bus. Cancelling
// an appointment that was not booked through the bot is not an error.
func (db *DB) RecordEvent(e events.Event) error {
	if e.Booking == nil {
		return nil
	}
	ctx := context.Background()

	switch e.Type {
	case events.BookingCreated:
		entry := &JournalEntry{
			TelegramID:      e.TelegramID,
			AppointmentID:   e.Booking.AppointmentID,
			StyleName:       e.Booking.StyleName,
			StartTime:       e.Booking.Start,
			DurationMinutes: e.Booking.DurationMinutes,
			ContactEmail:    e.Booking.ContactEmail,
			ContactPhone:    e.Booking.ContactPhone,
		}
		if err := db.AddJournalEntry(ctx, entry); err != nil {
			return fmt.Errorf("journal %s: %w", e.Booking.AppointmentID, err)
		}
	case events.BookingCancelled:
		err := db.SetJournalStatus(ctx, e.Booking.AppointmentID, StatusCancelled)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("journal %s: %w", e.Booking.AppointmentID, err)
		}
	}
	return nil
}
