// Package loader fetches the inputs of an availability computation and
// makes sure only the latest selection's response is ever used.
package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"salonbook/internal/availability"
	"salonbook/internal/metrics"

	"github.com/rs/zerolog"
)

// ErrStale is returned for a response that resolved after a newer Load began.
var ErrStale = errors.New("availability request superseded")

// Key identifies a selection: one date and one style.
type Key struct {
	Date    time.Time
	StyleID string
}

func (k Key) String() string {
	return k.Date.Format("2006-01-02") + "/" + k.StyleID
}

// Snapshot is the fetched input for one Key.
type Snapshot struct {
	Key   Key
	Taken []availability.TakenSlot
	Own   []availability.OwnBooking
	// FetchedAt is zero for a placeholder built after a failed fetch.
	FetchedAt time.Time
}

// Source provides the remote feeds.
type Source interface {
	TakenSlots(ctx context.Context, date time.Time) ([]availability.TakenSlot, error)
	UpcomingBookings(ctx context.Context) ([]availability.OwnBooking, error)
}

// FetchError reports a failed fetch. It is not fatal: the Snapshot returned
// alongside it is still safe to render.
type FetchError struct {
	Key    Key
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s for %s: %v", e.Source, e.Key, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Loader serializes availability fetches for one viewer.
type Loader struct {
	source Source
	logger *zerolog.Logger
	now    func() time.Time

	gen     Generation
	mu      sync.Mutex
	current *Snapshot
}

func New(source Source, logger *zerolog.Logger) *Loader {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Loader{source: source, logger: logger, now: time.Now}
}

// Load fetches the taken feed for key.Date and, when withOwn is set, the
// viewer's upcoming bookings. A Load superseded by a later call returns
// ErrStale and leaves the current snapshot untouched.
func (l *Loader) Load(ctx context.Context, key Key, withOwn bool) (*Snapshot, error) {
	ticket, fctx, release := l.gen.Begin(ctx)
	defer release()

	snap, fetchErr := l.fetch(fctx, key, withOwn)

	var out *Snapshot
	committed := ticket.Commit(func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if fetchErr == nil {
			l.current = snap
			out = snap
			return
		}
		l.current = l.fallback(key)
		out = l.current
	})
	if !committed {
		metrics.IncStaleDiscarded()
		l.logger.Debug().Str("key", key.String()).Uint64("ticket", ticket.Number()).Msg("discarded stale availability response")
		return nil, ErrStale
	}

	if fetchErr != nil {
		var fe *FetchError
		if errors.As(fetchErr, &fe) {
			metrics.IncFetchError(fe.Source)
		}
		l.logger.Warn().Err(fetchErr).Str("key", key.String()).Msg("availability fetch failed")
		return out, fetchErr
	}
	return out, nil
}

// fallback keeps the previous data while the date is unchanged. Must be
// called with l.mu held.
func (l *Loader) fallback(key Key) *Snapshot {
	if l.current != nil && availability.SameDay(l.current.Key.Date, key.Date) {
		kept := *l.current
		kept.Key = key
		return &kept
	}
	return &Snapshot{Key: key}
}

func (l *Loader) fetch(ctx context.Context, key Key, withOwn bool) (*Snapshot, error) {
	snap := &Snapshot{Key: key}

	var (
		wg      sync.WaitGroup
		ownErr  error
		own     []availability.OwnBooking
		taken   []availability.TakenSlot
		takeErr error
	)
	if withOwn {
		wg.Add(1)
		go func() {
			defer wg.Done()
			own, ownErr = l.source.UpcomingBookings(ctx)
		}()
	}
	taken, takeErr = l.source.TakenSlots(ctx, key.Date)
	wg.Wait()

	if takeErr != nil {
		return nil, &FetchError{Key: key, Source: "taken", Err: takeErr}
	}
	if ownErr != nil {
		return nil, &FetchError{Key: key, Source: "upcoming", Err: ownErr}
	}
	snap.Taken = taken
	snap.Own = own
	snap.FetchedAt = l.now()
	return snap, nil
}

// Current returns the last committed snapshot, or nil.
func (l *Loader) Current() *Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Invalidate drops the cached snapshot, e.g. after the viewer books.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	l.current = nil
	l.mu.Unlock()
}
