package reminders

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUndeliverable is returned when Telegram refuses the message for good,
// e.g. the user blocked the bot. The booking is marked so it is not retried.
var ErrUndeliverable = errors.New("reminder undeliverable")

// RetryConfig holds configuration for retry logic.
type RetryConfig struct {
	MaxRetries  int
	RetryDelays []time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		RetryDelays: []time.Duration{
			1 * time.Second,
			5 * time.Second,
			30 * time.Second,
		},
	}
}

func (c RetryConfig) delay(attempt int) time.Duration {
	if len(c.RetryDelays) == 0 {
		return time.Second
	}
	if attempt >= len(c.RetryDelays) {
		return c.RetryDelays[len(c.RetryDelays)-1]
	}
	return c.RetryDelays[attempt]
}

// TelegramError represents an error from Telegram API.
type TelegramError struct {
	Code       int
	Message    string
	RetryAfter int // seconds, set for 429
}

func (e *TelegramError) Error() string {
	return fmt.Sprintf("telegram error %d: %s", e.Code, e.Message)
}

func IsTelegramError(err error) (*TelegramError, bool) {
	var tgErr *TelegramError
	if errors.As(err, &tgErr) {
		return tgErr, true
	}
	return nil, false
}

// Sender delivers one reminder with rate limiting and retries.
type Sender struct {
	notifier    Notifier
	bookings    BookingStore
	rateLimiter *RateLimiter
	retryConfig RetryConfig
	metrics     *Metrics
	logger      Logger
}

type SenderConfig struct {
	RateLimiter RateLimiterConfig
	Retry       RetryConfig
}

func DefaultSenderConfig() SenderConfig {
	return SenderConfig{
		RateLimiter: DefaultRateLimiterConfig(),
		Retry:       DefaultRetryConfig(),
	}
}

func NewSender(notifier Notifier, bookings BookingStore, config SenderConfig, metrics *Metrics, logger Logger) *Sender {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Sender{
		notifier:    notifier,
		bookings:    bookings,
		rateLimiter: NewRateLimiter(config.RateLimiter),
		retryConfig: config.Retry,
		metrics:     metrics,
		logger:      logger,
	}
}

// Send notifies the booking's user and marks the booking as reminded.
func (s *Sender) Send(ctx context.Context, b Booking) error {
	waited, err := s.rateLimiter.Wait(ctx)
	if err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	if waited {
		s.metrics.IncRateLimitWaits()
	}

	start := time.Now()
	defer func() { s.metrics.ObserveSendDuration(time.Since(start).Seconds()) }()

	var lastErr error
	for attempt := 0; attempt <= s.retryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			s.metrics.IncRetries()
		}
		err := s.notifier.SendReminder(ctx, b.GetUserID(), b)
		if err == nil {
			s.metrics.IncSent("sent")
			return s.markSent(ctx, b)
		}
		lastErr = err

		wait := s.retryConfig.delay(attempt)
		if tgErr, ok := IsTelegramError(err); ok {
			switch tgErr.Code {
			case 429:
				if tgErr.RetryAfter > 0 {
					wait = time.Duration(tgErr.RetryAfter) * time.Second
				}
				s.logger.Info("rate limited by Telegram, waiting",
					"retry_after", wait,
					"attempt", attempt,
					"booking_id", b.GetID())
			case 400, 403:
				s.logger.Info("reminder rejected by Telegram",
					"code", tgErr.Code,
					"user_id", b.GetUserID(),
					"booking_id", b.GetID())
				s.metrics.IncSent("undeliverable")
				if err := s.markSent(ctx, b); err != nil {
					return err
				}
				return fmt.Errorf("%w: %v", ErrUndeliverable, err)
			}
		}

		if attempt == s.retryConfig.MaxRetries {
			break
		}
		s.logger.Info("retrying reminder send",
			"attempt", attempt+1,
			"max_retries", s.retryConfig.MaxRetries,
			"delay", wait,
			"error", err)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.metrics.IncSent("failed")
	s.logger.Error("max retries exceeded for reminder",
		"booking_id", b.GetID(),
		"user_id", b.GetUserID(),
		"error", lastErr)
	return fmt.Errorf("send reminder for booking %d: %w", b.GetID(), lastErr)
}

func (s *Sender) markSent(ctx context.Context, b Booking) error {
	if err := s.bookings.MarkReminderSent(ctx, b.GetID()); err != nil {
		s.logger.Error("failed to mark reminder as sent",
			"booking_id", b.GetID(),
			"error", err)
		return err
	}
	return nil
}
