package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const backupPrefix = "salonbook_"

// Backup writes a consistent copy of the database to dir and returns the
// file path.
func (db *DB) Backup(ctx context.Context, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}
	dest := filepath.Join(dir, backupPrefix+time.Now().Format("20060102_150405")+".db")
	if _, err := os.Stat(dest); err == nil {
		return "", fmt.Errorf("backup %s already exists", dest)
	}
	if _, err := db.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return "", fmt.Errorf("vacuum into %s: %w", dest, err)
	}
	return dest, nil
}

// CleanupBackups removes backups in dir older than retention and returns
// how many were deleted.
func CleanupBackups(dir string, retention time.Duration, now time.Time) (int, error) {
	if retention <= 0 {
		return 0, nil
	}
	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := now.Add(-retention)
	removed := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasPrefix(file.Name(), backupPrefix) {
			continue
		}
		info, err := file.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, file.Name())); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}

// BackupLoop backs up every interval until ctx is done.
func (db *DB) BackupLoop(ctx context.Context, dir string, interval, retention time.Duration, logger *zerolog.Logger) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	logger.Info().Str("path", dir).Dur("interval", interval).Msg("backup loop started")

	run := func() {
		path, err := db.Backup(ctx, dir)
		if err != nil {
			logger.Error().Err(err).Msg("backup failed")
			return
		}
		logger.Info().Str("path", path).Msg("backup completed")

		removed, err := CleanupBackups(dir, retention, time.Now())
		if err != nil {
			logger.Error().Err(err).Msg("backup cleanup failed")
		} else if removed > 0 {
			logger.Info().Int("removed", removed).Msg("old backups deleted")
		}
	}

	run()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}
