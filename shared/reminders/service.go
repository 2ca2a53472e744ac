// Package reminders sends a Telegram reminder some hours before each
// booking recorded by the bot.
package reminders

import (
	"context"
	"sync"
	"time"
)

// Config holds configuration for the reminder service.
type Config struct {
	// CheckInterval is how often to look for due reminders. Default: 15 minutes.
	CheckInterval time.Duration

	// HoursBefore is how long before the start a reminder is sent. Default: 24.
	HoursBefore int

	// MaxConcurrentNotifications limits parallel sends. Default: 10.
	MaxConcurrentNotifications int
}

func DefaultConfig() *Config {
	return &Config{
		CheckInterval:              15 * time.Minute,
		HoursBefore:                24,
		MaxConcurrentNotifications: 10,
	}
}

// Service periodically sends due reminders.
type Service struct {
	config   *Config
	bookings BookingStore
	sender   *Sender
	metrics  *Metrics
	logger   Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

func NewService(config *Config, bookings BookingStore, sender *Sender, metrics *Metrics, logger Logger) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = 15 * time.Minute
	}
	if config.HoursBefore <= 0 {
		config.HoursBefore = 24
	}
	if config.MaxConcurrentNotifications <= 0 {
		config.MaxConcurrentNotifications = 10
	}
	if logger == nil {
		logger = nopLogger{}
	}

	return &Service{
		config:   config,
		bookings: bookings,
		sender:   sender,
		metrics:  metrics,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the reminder check loop.
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

	s.logger.Info("Reminder service started",
		"check_interval", s.config.CheckInterval,
		"hours_before", s.config.HoursBefore,
	)
}

// Stop waits for the current check to finish.
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

	s.logger.Info("Reminder service stopped")
}

func (s *Service) loop() {
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-s.stopCh
		cancel()
	}()

	s.CheckNow(ctx)

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.CheckNow(ctx)
		}
	}
}

// CheckNow sends every due reminder and returns how many were delivered.
func (s *Service) CheckNow(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	within := time.Duration(s.config.HoursBefore) * time.Hour
	bookings, err := s.bookings.GetUpcomingBookings(ctx, within)
	if err != nil {
		s.logger.Error("Failed to get upcoming bookings", "error", err)
		return 0
	}
	s.metrics.SetDue(len(bookings))
	if len(bookings) == 0 {
		return 0
	}
	s.logger.Debug("Found bookings due for a reminder", "count", len(bookings))

	sem := make(chan struct{}, s.config.MaxConcurrentNotifications)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		sent int
	)
	for _, booking := range bookings {
		if booking.IsReminderSent() {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(b Booking) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := s.sender.Send(ctx, b); err != nil {
				s.logger.Error("Failed to send reminder",
					"booking_id", b.GetID(),
					"user_id", b.GetUserID(),
					"error", err,
				)
				return
			}
			mu.Lock()
			sent++
			mu.Unlock()
			s.logger.Info("Reminder sent", "booking_id", b.GetID(), "user_id", b.GetUserID())
		}(booking)
	}
	wg.Wait()
	return sent
}
