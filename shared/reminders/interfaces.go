package reminders

import (
	"context"
	"time"
)

// Booking represents a booking that may need a reminder.
type Booking interface {
	GetID() int64
	GetUserID() int64
	GetStartTime() time.Time
	GetStyleName() string
	IsReminderSent() bool
}

// BookingStore provides access to bookings for the reminder service.
type BookingStore interface {
	// GetUpcomingBookings returns bookings starting within the given duration
	// that haven't had reminders sent yet.
	GetUpcomingBookings(ctx context.Context, within time.Duration) ([]Booking, error)

	// MarkReminderSent marks a booking as having had its reminder sent.
	MarkReminderSent(ctx context.Context, bookingID int64) error
}

// Notifier sends reminder notifications to users.
type Notifier interface {
	SendReminder(ctx context.Context, userID int64, booking Booking) error
}

// Logger interface for logging.
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Debug(msg string, fields ...interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{}) {}
