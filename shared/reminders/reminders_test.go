package reminders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testBooking struct {
	id, user int64
	start    time.Time
	sent     bool
}

func (b *testBooking) GetID() int64            { return b.id }
func (b *testBooking) GetUserID() int64        { return b.user }
func (b *testBooking) GetStartTime() time.Time { return b.start }
func (b *testBooking) GetStyleName() string    { return "Taper Fade" }
func (b *testBooking) IsReminderSent() bool    { return b.sent }

type memoryStore struct {
	mu       sync.Mutex
	bookings []*testBooking
	marked   []int64
	within   time.Duration
}

func (m *memoryStore) GetUpcomingBookings(_ context.Context, within time.Duration) ([]Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.within = within
	var out []Booking
	for _, b := range m.bookings {
		out = append(out, b)
	}
	return out, nil
}

func (m *memoryStore) MarkReminderSent(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marked = append(m.marked, id)
	return nil
}

type scriptedNotifier struct {
	mu    sync.Mutex
	errs  []error
	calls map[int64]int
}

func (n *scriptedNotifier) SendReminder(_ context.Context, _ int64, b Booking) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.calls == nil {
		n.calls = map[int64]int{}
	}
	n.calls[b.GetID()]++
	if len(n.errs) == 0 {
		return nil
	}
	err := n.errs[0]
	n.errs = n.errs[1:]
	return err
}

func fastSenderConfig() SenderConfig {
	return SenderConfig{
		RateLimiter: RateLimiterConfig{Rate: 1000, Burst: 10},
		Retry:       RetryConfig{MaxRetries: 2, RetryDelays: []time.Duration{time.Millisecond}},
	}
}

func TestServiceSendsDueReminders(t *testing.T) {
	store := &memoryStore{bookings: []*testBooking{
		{id: 1, user: 10, start: time.Now().Add(time.Hour)},
		{id: 2, user: 11, start: time.Now().Add(2 * time.Hour), sent: true},
		{id: 3, user: 12, start: time.Now().Add(3 * time.Hour)},
	}}
	notifier := &scriptedNotifier{}
	sender := NewSender(notifier, store, fastSenderConfig(), nil, nil)
	svc := NewService(&Config{HoursBefore: 6}, store, sender, nil, nil)

	sent := svc.CheckNow(context.Background())

	assert.Equal(t, 2, sent)
	assert.Equal(t, 6*time.Hour, store.within)
	assert.ElementsMatch(t, []int64{1, 3}, store.marked)
	assert.Zero(t, notifier.calls[2])
}

func TestSenderRetries(t *testing.T) {
	tests := []struct {
		name       string
		errs       []error
		wantErr    error
		wantCalls  int
		wantMarked bool
	}{
		{"first try", nil, nil, 1, true},
		{"transient failure", []error{errors.New("timeout")}, nil, 2, true},
		{"rate limited", []error{&TelegramError{Code: 429, Message: "Too Many Requests"}}, nil, 2, true},
		{"blocked by user", []error{&TelegramError{Code: 403, Message: "Forbidden"}}, ErrUndeliverable, 1, true},
		{"gives up", []error{errors.New("a"), errors.New("b"), errors.New("c")}, errors.New("c"), 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memoryStore{}
			notifier := &scriptedNotifier{errs: tt.errs}
			reg := prometheus.NewRegistry()
			metrics := NewMetrics("test", reg)
			sender := NewSender(notifier, store, fastSenderConfig(), metrics, nil)

			err := sender.Send(context.Background(), &testBooking{id: 9, user: 1})

			switch {
			case tt.wantErr == nil:
				assert.NoError(t, err)
			case errors.Is(tt.wantErr, ErrUndeliverable):
				assert.ErrorIs(t, err, ErrUndeliverable)
			default:
				assert.ErrorContains(t, err, tt.wantErr.Error())
			}
			assert.Equal(t, tt.wantCalls, notifier.calls[9])
			assert.Equal(t, tt.wantMarked, len(store.marked) == 1)
			assert.Equal(t, float64(tt.wantCalls-1), testutil.ToFloat64(metrics.ReminderRetries))
		})
	}
}

func TestSenderHonoursContext(t *testing.T) {
	store := &memoryStore{}
	notifier := &scriptedNotifier{errs: []error{errors.New("down"), errors.New("down")}}
	cfg := fastSenderConfig()
	cfg.Retry.RetryDelays = []time.Duration{time.Hour}
	sender := NewSender(notifier, store, cfg, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err := sender.Send(ctx, &testBooking{id: 1})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, store.marked)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 2})
	assert.True(t, rl.TryAcquire())
	assert.True(t, rl.TryAcquire())
	assert.False(t, rl.TryAcquire())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	waited, err := rl.Wait(ctx)
	assert.True(t, waited)
	require.Error(t, err)

	unlimited := NewRateLimiter(RateLimiterConfig{})
	for range 100 {
		require.True(t, unlimited.TryAcquire())
	}
}

func TestServiceStartStop(t *testing.T) {
	store := &memoryStore{bookings: []*testBooking{{id: 1, user: 1, start: time.Now().Add(time.Hour)}}}
	sender := NewSender(&scriptedNotifier{}, store, fastSenderConfig(), nil, nil)
	svc := NewService(&Config{CheckInterval: time.Hour}, store, sender, nil, nil)

	svc.Start()
	svc.Start()
	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.marked) == 1
	}, time.Second, 5*time.Millisecond)
	svc.Stop()
	svc.Stop()
}
