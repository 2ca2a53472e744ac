package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"salonbook/shared/reminders"
)

const (
	StatusBooked    = "booked"
	StatusCancelled = "cancelled"
)

// JournalEntry records an appointment created through the bot.
type JournalEntry struct {
	ID              int64
	TelegramID      int64
	AppointmentID   string
	StyleName       string
	StartTime       time.Time
	DurationMinutes int
	ContactEmail    string
	ContactPhone    string
	Status          string
	ReminderSent    bool
	CreatedAt       time.Time
}

func (e *JournalEntry) GetID() int64            { return e.ID }
func (e *JournalEntry) GetUserID() int64        { return e.TelegramID }
func (e *JournalEntry) GetStartTime() time.Time { return e.StartTime }
func (e *JournalEntry) GetStyleName() string    { return e.StyleName }
func (e *JournalEntry) IsReminderSent() bool    { return e.ReminderSent }

const journalColumns = `id, telegram_id, appointment_id, style_name, start_time, duration_minutes,
	contact_email, contact_phone, status, reminder_sent, created_at`

// JournalColumns lists the exported columns in order.
var JournalColumns = []string{
	"id", "telegram_id", "appointment_id", "style_name", "start_time", "duration_minutes",
	"contact_email", "contact_phone", "status", "reminder_sent", "created_at",
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*JournalEntry, error) {
	var e JournalEntry
	err := s.Scan(&e.ID, &e.TelegramID, &e.AppointmentID, &e.StyleName, &e.StartTime, &e.DurationMinutes,
		&e.ContactEmail, &e.ContactPhone, &e.Status, &e.ReminderSent, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// AddJournalEntry stores e and sets its ID and CreatedAt. A repeated
// appointment id updates the existing row.
func (db *DB) AddJournalEntry(ctx context.Context, e *JournalEntry) error {
	if e.Status == "" {
		e.Status = StatusBooked
	}
	e.CreatedAt = time.Now().UTC()
	e.StartTime = e.StartTime.UTC()

	err := db.QueryRowContext(ctx, `
		INSERT INTO booking_journal (telegram_id, appointment_id, style_name, start_time, duration_minutes,
			contact_email, contact_phone, status, reminder_sent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT(appointment_id) DO UPDATE SET
			style_name = excluded.style_name,
			start_time = excluded.start_time,
			duration_minutes = excluded.duration_minutes,
			status = excluded.status
		RETURNING id`,
		e.TelegramID, e.AppointmentID, e.StyleName, e.StartTime, e.DurationMinutes,
		e.ContactEmail, e.ContactPhone, e.Status, e.CreatedAt,
	).Scan(&e.ID)
	return err
}

// GetJournalEntry looks up a row by backend appointment id.
func (db *DB) GetJournalEntry(ctx context.Context, appointmentID string) (*JournalEntry, error) {
	e, err := scanEntry(db.QueryRowContext(ctx,
		"SELECT "+journalColumns+" FROM booking_journal WHERE appointment_id = ?", appointmentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// SetJournalStatus updates the status of an appointment.
func (db *DB) SetJournalStatus(ctx context.Context, appointmentID, status string) error {
	res, err := db.ExecContext(ctx,
		"UPDATE booking_journal SET status = ? WHERE appointment_id = ?", status, appointmentID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UserJournal returns the user's booked entries starting after from.
func (db *DB) UserJournal(ctx context.Context, telegramID int64, from time.Time) ([]JournalEntry, error) {
	rows, err := db.QueryContext(ctx, "SELECT "+journalColumns+`
		FROM booking_journal
		WHERE telegram_id = ? AND status = ? AND start_time > ?
		ORDER BY start_time`,
		telegramID, StatusBooked, from.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// GetUpcomingBookings returns booked entries starting within the given
// duration whose reminder has not been sent.
func (db *DB) GetUpcomingBookings(ctx context.Context, within time.Duration) ([]reminders.Booking, error) {
	now := time.Now().UTC()
	rows, err := db.QueryContext(ctx, "SELECT "+journalColumns+`
		FROM booking_journal
		WHERE status = ? AND reminder_sent = 0 AND start_time > ? AND start_time <= ?
		ORDER BY start_time`,
		StatusBooked, now, now.Add(within))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reminders.Booking
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkReminderSent flags the journal row with the given id.
func (db *DB) MarkReminderSent(ctx context.Context, id int64) error {
	_, err := db.ExecContext(ctx, "UPDATE booking_journal SET reminder_sent = 1 WHERE id = ?", id)
	return err
}

// JournalRows returns rows created in [from, to) as cell values in
// JournalColumns order.
func (db *DB) JournalRows(ctx context.Context, from, to time.Time) ([][]any, error) {
	rows, err := db.QueryContext(ctx, "SELECT "+journalColumns+`
		FROM booking_journal
		WHERE created_at >= ? AND created_at < ?
		ORDER BY created_at`,
		from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, []any{
			e.ID, e.TelegramID, e.AppointmentID, e.StyleName, e.StartTime.Format(time.RFC3339), e.DurationMinutes,
			e.ContactEmail, e.ContactPhone, e.Status, e.ReminderSent, e.CreatedAt.Format(time.RFC3339),
		})
	}
	return out, rows.Err()
}

// DeleteJournalBefore removes rows whose appointment started before t.
func (db *DB) DeleteJournalBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, "DELETE FROM booking_journal WHERE start_time < ?", t.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ExportColumns is JournalColumns for the audit export.
func (db *DB) ExportColumns() []string { return JournalColumns }
