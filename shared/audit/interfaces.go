package audit

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Source provides the journal rows to export.
type Source interface {
	ExportColumns() []string
	// JournalRows returns rows created in [from, to).
	JournalRows(ctx context.Context, from, to time.Time) ([][]any, error)
}

// Cleaner deletes journal rows past retention.
type Cleaner interface {
	DeleteJournalBefore(ctx context.Context, t time.Time) (int64, error)
}

// ExcelWriter writes data to Excel format.
type ExcelWriter interface {
	AddSheet(name string) error
	WriteHeader(columns []string) error
	WriteRow(row []interface{}) error
	Save(w io.Writer) error
	Close() error
}

// Notifier sends audit reports to managers.
type Notifier interface {
	SendDocument(ctx context.Context, filename string, data io.Reader, caption string) error
}

// Logger for audit operations.
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Debug(msg string, fields ...interface{})
}

// GenerateFilename creates a filename like "bookings_2026_10.xlsx".
func GenerateFilename(month time.Time) string {
	return fmt.Sprintf("bookings_%d_%02d.xlsx", month.Year(), int(month.Month()))
}

// MonthRange returns the first instant of t's month and of the next one.
func MonthRange(t time.Time) (time.Time, time.Time) {
	from := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return from, from.AddDate(0, 1, 0)
}
