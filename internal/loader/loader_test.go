package loader

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"salonbook/internal/availability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type takenReply struct {
	slots []availability.TakenSlot
	err   error
}

// fakeSource blocks every TakenSlots call until the test answers on the
// channel registered for that date.
type fakeSource struct {
	mu      sync.Mutex
	replies map[string]chan takenReply
	started chan string
	own     []availability.OwnBooking
	ownErr  error
}

func newFakeSource() *fakeSource {
	return &fakeSource{replies: map[string]chan takenReply{}, started: make(chan string, 8)}
}

func (f *fakeSource) reply(date string) chan takenReply {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.replies[date]
	if !ok {
		ch = make(chan takenReply, 1)
		f.replies[date] = ch
	}
	return ch
}

func (f *fakeSource) TakenSlots(ctx context.Context, date time.Time) ([]availability.TakenSlot, error) {
	key := date.Format("2006-01-02")
	f.started <- key
	select {
	case r := <-f.reply(key):
		return r.slots, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeSource) UpcomingBookings(context.Context) ([]availability.OwnBooking, error) {
	return f.own, f.ownErr
}

func day(d int) time.Time {
	return time.Date(2026, 10, d, 0, 0, 0, 0, time.UTC)
}

func TestLoaderReturnsSnapshot(t *testing.T) {
	src := newFakeSource()
	src.own = []availability.OwnBooking{{Start: day(19).Add(10 * time.Hour), DurationMinutes: 60}}
	src.reply("2026-10-19") <- takenReply{slots: []availability.TakenSlot{{Start: 600}}}

	l := New(src, nil)
	snap, err := l.Load(context.Background(), Key{Date: day(19), StyleID: "3"}, true)
	require.NoError(t, err)
	assert.Equal(t, []availability.TakenSlot{{Start: 600}}, snap.Taken)
	assert.Len(t, snap.Own, 1)
	assert.False(t, snap.FetchedAt.IsZero())
	assert.Same(t, snap, l.Current())
}

func TestLoaderDiscardsSupersededResponse(t *testing.T) {
	src := newFakeSource()
	l := New(src, nil)

	firstDone := make(chan error, 1)
	go func() {
		_, err := l.Load(context.Background(), Key{Date: day(19), StyleID: "1"}, false)
		firstDone <- err
	}()
	require.Equal(t, "2026-10-19", <-src.started)

	// The user switches to another date while the first fetch is in flight.
	src.reply("2026-10-20") <- takenReply{slots: []availability.TakenSlot{{Start: 540}}}
	snap, err := l.Load(context.Background(), Key{Date: day(20), StyleID: "1"}, false)
	require.NoError(t, err)
	<-src.started

	assert.ErrorIs(t, <-firstDone, ErrStale)
	assert.Equal(t, day(20), l.Current().Key.Date)
	assert.Equal(t, snap, l.Current())
}

func TestLoaderLateResponseNeverOverwrites(t *testing.T) {
	src := newFakeSource()
	l := New(src, nil)

	// First call resolves late but ignores cancellation.
	slow := &ignoringSource{fakeSource: src, release: make(chan struct{})}
	l.source = slow

	firstDone := make(chan error, 1)
	go func() {
		_, err := l.Load(context.Background(), Key{Date: day(19)}, false)
		firstDone <- err
	}()
	require.Equal(t, "2026-10-19", <-src.started)

	slow.setPassThrough()
	src.reply("2026-10-21") <- takenReply{}
	_, err := l.Load(context.Background(), Key{Date: day(21)}, false)
	require.NoError(t, err)
	<-src.started

	close(slow.release)
	assert.ErrorIs(t, <-firstDone, ErrStale)
	assert.Equal(t, day(21), l.Current().Key.Date)
}

// ignoringSource answers its first call only after release is closed,
// whatever happens to the context.
type ignoringSource struct {
	*fakeSource
	mu          sync.Mutex
	release     chan struct{}
	passThrough bool
}

func (s *ignoringSource) setPassThrough() {
	s.mu.Lock()
	s.passThrough = true
	s.mu.Unlock()
}

func (s *ignoringSource) TakenSlots(ctx context.Context, date time.Time) ([]availability.TakenSlot, error) {
	s.mu.Lock()
	pass := s.passThrough
	s.mu.Unlock()
	if pass {
		return s.fakeSource.TakenSlots(ctx, date)
	}
	s.fakeSource.started <- date.Format("2006-01-02")
	<-s.release
	return []availability.TakenSlot{{Start: 900}}, nil
}

func TestLoaderFetchFailure(t *testing.T) {
	boom := errors.New("connection refused")

	tests := []struct {
		name      string
		retryDate time.Time
		wantTaken []availability.TakenSlot
	}{
		{"same date keeps previous data", day(19), []availability.TakenSlot{{Start: 600}}},
		{"new date starts empty", day(22), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newFakeSource()
			l := New(src, nil)

			src.reply("2026-10-19") <- takenReply{slots: []availability.TakenSlot{{Start: 600}}}
			_, err := l.Load(context.Background(), Key{Date: day(19), StyleID: "1"}, false)
			require.NoError(t, err)

			src.reply(tt.retryDate.Format("2006-01-02")) <- takenReply{err: boom}
			snap, err := l.Load(context.Background(), Key{Date: tt.retryDate, StyleID: "2"}, false)

			var fe *FetchError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, "taken", fe.Source)
			assert.ErrorIs(t, err, boom)
			require.NotNil(t, snap)
			assert.Equal(t, "2", snap.Key.StyleID)
			assert.Equal(t, tt.wantTaken, snap.Taken)
		})
	}
}

func TestLoaderUpcomingFailure(t *testing.T) {
	src := newFakeSource()
	src.ownErr = errors.New("401")
	src.reply("2026-10-19") <- takenReply{}

	l := New(src, nil)
	snap, err := l.Load(context.Background(), Key{Date: day(19)}, true)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "upcoming", fe.Source)
	assert.True(t, snap.FetchedAt.IsZero())
}

func TestGenerationCommit(t *testing.T) {
	var g Generation
	first, ctx1, cancel := g.Begin(context.Background())
	defer cancel()
	assert.True(t, first.Current())

	second, _, release := g.Begin(context.Background())
	defer release()

	assert.Error(t, ctx1.Err(), "beginning a new ticket cancels the old context")
	assert.False(t, first.Current())
	assert.False(t, first.Commit(func() { t.Fatal("stale commit must not run") }))

	ran := false
	assert.True(t, second.Commit(func() { ran = true }))
	assert.True(t, ran)
	assert.Equal(t, uint64(2), g.Latest())
}
