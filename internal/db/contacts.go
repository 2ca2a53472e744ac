package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// GuestContact is what a guest typed last time, offered as prefill.
type GuestContact struct {
	TelegramID int64
	FirstName  string
	Email      string
	Phone      string
	UpdatedAt  time.Time
}

// GetGuestContact returns ErrNotFound when nothing is remembered.
func (db *DB) GetGuestContact(ctx context.Context, telegramID int64) (*GuestContact, error) {
	var c GuestContact
	err := db.QueryRowContext(ctx,
		"SELECT telegram_id, first_name, email, phone, updated_at FROM guest_contacts WHERE telegram_id = ?",
		telegramID,
	).Scan(&c.TelegramID, &c.FirstName, &c.Email, &c.Phone, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveGuestContact replaces the remembered contact. Empty fields keep the
// stored value.
func (db *DB) SaveGuestContact(ctx context.Context, c GuestContact) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO guest_contacts (telegram_id, first_name, email, phone, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(telegram_id) DO UPDATE SET
			first_name = CASE WHEN excluded.first_name = '' THEN first_name ELSE excluded.first_name END,
			email = CASE WHEN excluded.email = '' THEN email ELSE excluded.email END,
			phone = CASE WHEN excluded.phone = '' THEN phone ELSE excluded.phone END,
			updated_at = excluded.updated_at`,
		c.TelegramID, strings.TrimSpace(c.FirstName), strings.ToLower(strings.TrimSpace(c.Email)),
		strings.TrimSpace(c.Phone), time.Now().UTC(),
	)
	return err
}

// ForgetGuestContact removes the remembered contact.
func (db *DB) ForgetGuestContact(ctx context.Context, telegramID int64) error {
	_, err := db.ExecContext(ctx, "DELETE FROM guest_contacts WHERE telegram_id = ?", telegramID)
	return err
}
