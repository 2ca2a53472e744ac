// Package audit exports the booking journal to a spreadsheet every month,
// sends it to the managers and prunes old journal rows.
package audit

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"
)

// Config holds configuration for the audit service.
type Config struct {
	// RetentionDays is how long journal rows are kept. Default: 365.
	RetentionDays int

	// SalonName is used in the report caption.
	SalonName string

	// Location decides where month boundaries fall. Default: time.Local.
	Location *time.Location
}

func DefaultConfig() *Config {
	return &Config{
		RetentionDays: 365,
		SalonName:     "salon",
		Location:      time.Local,
	}
}

// Service handles monthly audit exports and data cleanup.
type Service struct {
	config   *Config
	source   Source
	writer   func() ExcelWriter
	notifier Notifier
	cleaner  Cleaner
	logger   Logger
	now      func() time.Time
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

func NewService(config *Config, source Source, writerFactory func() ExcelWriter, notifier Notifier, cleaner Cleaner, logger Logger) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	if config.RetentionDays <= 0 {
		config.RetentionDays = 365
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if writerFactory == nil {
		writerFactory = NewExcelizeWriter
	}

	return &Service{
		config:   config,
		source:   source,
		writer:   writerFactory,
		notifier: notifier,
		cleaner:  cleaner,
		logger:   logger,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start schedules the export on the first day of every month.
func (s *Service) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop()

	if s.logger != nil {
		s.logger.Info("Audit service started", "retention_days", s.config.RetentionDays)
	}
}

func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()

	if s.logger != nil {
		s.logger.Info("Audit service stopped")
	}
}

func (s *Service) loop() {
	defer s.wg.Done()

	nextRun := s.nextFirstOfMonth()
	timer := time.NewTimer(time.Until(nextRun))
	defer timer.Stop()

	for {
		if s.logger != nil {
			s.logger.Info("Next audit scheduled", "time", nextRun)
		}
		select {
		case <-s.stopCh:
			return
		case <-timer.C:
			s.RunMonthly()
			nextRun = s.nextFirstOfMonth()
			timer.Reset(time.Until(nextRun))
		}
	}
}

func (s *Service) nextFirstOfMonth() time.Time {
	now := s.now().In(s.config.Location)
	return time.Date(now.Year(), now.Month()+1, 1, 0, 1, 0, 0, s.config.Location)
}

// RunMonthly sends the previous month's report and prunes old rows.
func (s *Service) RunMonthly() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	prev := s.now().In(s.config.Location).AddDate(0, -1, 0)
	if err := s.SendReport(ctx, prev); err != nil && s.logger != nil {
		s.logger.Error("Failed to send audit report", "error", err)
	}
	if _, err := s.Cleanup(ctx); err != nil && s.logger != nil {
		s.logger.Error("Failed to cleanup old data", "error", err)
	}
}

// Export writes the journal rows created in month's calendar month.
func (s *Service) Export(ctx context.Context, month time.Time) (*bytes.Buffer, int, error) {
	if s.source == nil {
		return nil, 0, fmt.Errorf("no export source configured")
	}
	from, to := MonthRange(month.In(s.config.Location))
	rows, err := s.source.JournalRows(ctx, from, to)
	if err != nil {
		return nil, 0, fmt.Errorf("load journal: %w", err)
	}

	excel := s.writer()
	defer excel.Close()

	if err := excel.AddSheet(from.Format("January 2006")); err != nil {
		return nil, 0, err
	}
	if err := excel.WriteHeader(s.source.ExportColumns()); err != nil {
		return nil, 0, fmt.Errorf("write header: %w", err)
	}
	for i, row := range rows {
		if err := excel.WriteRow(row); err != nil {
			return nil, 0, fmt.Errorf("write row %d: %w", i, err)
		}
	}

	var buf bytes.Buffer
	if err := excel.Save(&buf); err != nil {
		return nil, 0, fmt.Errorf("save excel: %w", err)
	}
	return &buf, len(rows), nil
}

// SendReport exports month and sends the file to the managers.
func (s *Service) SendReport(ctx context.Context, month time.Time) error {
	buf, count, err := s.Export(ctx, month)
	if err != nil {
		return err
	}
	if s.notifier == nil {
		return nil
	}

	filename := GenerateFilename(month)
	caption := fmt.Sprintf("📊 %s bookings, %s: %d", s.config.SalonName, month.Format("January 2006"), count)
	if err := s.notifier.SendDocument(ctx, filename, buf, caption); err != nil {
		return fmt.Errorf("send document: %w", err)
	}
	if s.logger != nil {
		s.logger.Info("Audit report sent", "filename", filename, "rows", count)
	}
	return nil
}

// Cleanup deletes journal rows older than the retention period.
func (s *Service) Cleanup(ctx context.Context) (int64, error) {
	if s.cleaner == nil {
		return 0, nil
	}
	cutoff := s.now().AddDate(0, 0, -s.config.RetentionDays)
	deleted, err := s.cleaner.DeleteJournalBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old journal rows: %w", err)
	}
	if s.logger != nil {
		s.logger.Info("Cleaned up old data",
			"deleted_count", deleted,
			"retention_days", s.config.RetentionDays,
		)
	}
	return deleted, nil
}
