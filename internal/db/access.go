package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"salonbook/shared/access"
)

// IsBlocked checks if a user is blocked.
func (db *DB) IsBlocked(ctx context.Context, userID int64) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM blocked_users WHERE user_id = ?", userID).Scan(&count)
	return count > 0, err
}

// GetBlockedUser returns nil, nil when the user is not blocked.
func (db *DB) GetBlockedUser(ctx context.Context, userID int64) (*access.BlockedUser, error) {
	var bu access.BlockedUser
	err := db.QueryRowContext(ctx,
		"SELECT user_id, blocked_at, reason, blocked_by FROM blocked_users WHERE user_id = ?",
		userID,
	).Scan(&bu.UserID, &bu.BlockedAt, &bu.Reason, &bu.BlockedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bu, nil
}

func (db *DB) BlockUser(ctx context.Context, userID int64, reason string, blockedBy int64) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR REPLACE INTO blocked_users (user_id, blocked_at, reason, blocked_by) VALUES (?, ?, ?, ?)`,
		userID, time.Now().UTC(), reason, blockedBy,
	)
	return err
}

func (db *DB) UnblockUser(ctx context.Context, userID int64) error {
	_, err := db.ExecContext(ctx, "DELETE FROM blocked_users WHERE user_id = ?", userID)
	return err
}

// ListBlockedUsers returns the most recently blocked first.
func (db *DB) ListBlockedUsers(ctx context.Context) ([]access.BlockedUser, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT user_id, blocked_at, reason, blocked_by FROM blocked_users ORDER BY blocked_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []access.BlockedUser
	for rows.Next() {
		var bu access.BlockedUser
		if err := rows.Scan(&bu.UserID, &bu.BlockedAt, &bu.Reason, &bu.BlockedBy); err != nil {
			return nil, err
		}
		users = append(users, bu)
	}
	return users, rows.Err()
}

func (db *DB) IsManager(ctx context.Context, userID int64) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM managers WHERE user_id = ?", userID).Scan(&count)
	return count > 0, err
}

// GetManager returns nil, nil for a user who is not a manager.
func (db *DB) GetManager(ctx context.Context, userID int64) (*access.Manager, error) {
	var m access.Manager
	err := db.QueryRowContext(ctx,
		"SELECT user_id, chat_id, name, added_at, added_by FROM managers WHERE user_id = ?",
		userID,
	).Scan(&m.UserID, &m.ChatID, &m.Name, &m.AddedAt, &m.AddedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (db *DB) AddManager(ctx context.Context, userID, chatID int64, name string, addedBy int64) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR REPLACE INTO managers (user_id, chat_id, name, added_at, added_by) VALUES (?, ?, ?, ?, ?)`,
		userID, chatID, name, time.Now().UTC(), addedBy,
	)
	return err
}

func (db *DB) RemoveManager(ctx context.Context, userID int64) error {
	_, err := db.ExecContext(ctx, "DELETE FROM managers WHERE user_id = ?", userID)
	return err
}

func (db *DB) ListManagers(ctx context.Context) ([]access.Manager, error) {
	rows, err := db.QueryContext(ctx, "SELECT user_id, chat_id, name, added_at, added_by FROM managers ORDER BY added_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var managers []access.Manager
	for rows.Next() {
		var m access.Manager
		if err := rows.Scan(&m.UserID, &m.ChatID, &m.Name, &m.AddedAt, &m.AddedBy); err != nil {
			return nil, err
		}
		managers = append(managers, m)
	}
	return managers, rows.Err()
}

func (db *DB) GetManagerChatIDs(ctx context.Context) ([]int64, error) {
	rows, err := db.QueryContext(ctx, "SELECT chat_id FROM managers ORDER BY user_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chatIDs []int64
	for rows.Next() {
		var chatID int64
		if err := rows.Scan(&chatID); err != nil {
			return nil, err
		}
		chatIDs = append(chatIDs, chatID)
	}
	return chatIDs, rows.Err()
}

// SyncManagers replaces the config-seeded managers (added_by = 0) with ids.
// Private chats share the user's id, so it doubles as the chat id.
func (db *DB) SyncManagers(ctx context.Context, ids []int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM managers WHERE added_by = 0"); err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO managers (user_id, chat_id, name, added_at, added_by) VALUES (?, ?, '', ?, 0)`,
			id, id, now,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}
