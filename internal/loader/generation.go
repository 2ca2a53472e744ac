package loader

import (
	"context"
	"sync"
)

// Generation hands out monotonically increasing tickets. Starting a new
// ticket cancels the context of the previous one.
type Generation struct {
	mu     sync.Mutex
	n      uint64
	cancel context.CancelFunc
}

// Ticket identifies one request issued by a Generation.
type Ticket struct {
	g *Generation
	n uint64
}

// Begin supersedes every earlier ticket. The returned context is cancelled
// when the next ticket begins or when release is called.
func (g *Generation) Begin(parent context.Context) (Ticket, context.Context, context.CancelFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cancel != nil {
		g.cancel()
	}
	g.n++
	ctx, cancel := context.WithCancel(parent)
	g.cancel = cancel
	return Ticket{g: g, n: g.n}, ctx, cancel
}

// Latest returns the number of the newest ticket.
func (g *Generation) Latest() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

// Number of the ticket.
func (t Ticket) Number() uint64 { return t.n }

// Current reports whether no newer ticket has begun.
func (t Ticket) Current() bool {
	t.g.mu.Lock()
	defer t.g.mu.Unlock()
	return t.n == t.g.n
}

// Commit runs fn under the generation lock if t is still current, so a
// concurrent Begin cannot interleave with the commit.
func (t Ticket) Commit(fn func()) bool {
	t.g.mu.Lock()
	defer t.g.mu.Unlock()
	if t.n != t.g.n {
		return false
	}
	fn()
	return true
}
