// Package gate implements a capacity-bounded admission primitive built on a
// buffered channel used as a counting semaphore.
//
// A Gate is the building block shared by the admission package's execution
// gate and waiting area: both are fixed-capacity pools of slots that must be
// acquired before use and released by exactly one caller on exactly one exit
// path. The channel-as-semaphore idiom makes TryAcquire atomic with respect
// to concurrent acquirers -- there is no separate "is it full?" check that
// could race with another goroutine's acquire, unlike a naive
// locked()-then-acquire() pattern.
package gate

import (
	"context"
	"fmt"
)

// Gate is a fixed-capacity pool of slots. The zero value is not usable; use
// New to construct one.
type Gate struct {
	sem chan struct{}
}

// New creates a Gate with the given capacity. Capacity must be >= 0; a
// capacity of 0 produces a Gate that never admits (TryAcquire always fails).
func New(capacity int) *Gate {
	if capacity < 0 {
		panic("gate: capacity must be >= 0")
	}
	return &Gate{sem: make(chan struct{}, capacity)}
}

// TryAcquire attempts to take one slot without blocking. It reports success
// or failure in a single indivisible step: a select with a default branch on
// a buffered channel, so no other goroutine can observe the decision and
// race past it. Safe to call concurrently.
func (g *Gate) TryAcquire() bool {
	select {
	case g.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

// AcquireWithDeadline blocks until a slot becomes available or ctx is done,
// whichever happens first. A slot that is free at the moment of the call is
// always taken, even if ctx is already done. Callers that need a deadline rather than an
// ambient cancellation should derive ctx with context.WithDeadline using a
// monotonic clock reading (time.Now().Add(d) satisfies this on all
// supported platforms) so that wall-clock adjustments cannot shorten or
// extend the wait.
func (g *Gate) AcquireWithDeadline(ctx context.Context) error {
	select {
	case g.sem <- struct{}{}:
		return nil
	default:
	}
	select {
	case g.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns one slot to the gate. It panics if called more times than
// slots were successfully acquired, since that indicates a bookkeeping bug
// in the caller rather than a condition callers should handle.
func (g *Gate) Release() {
	select {
	case <-g.sem:
	default:
		panic(fmt.Sprintf("gate: release without a matching acquire (capacity %d)", cap(g.sem)))
	}
}

// InUse returns the number of slots currently held.
func (g *Gate) InUse() int { return len(g.sem) }

// Capacity returns the total number of slots.
func (g *Gate) Capacity() int { return cap(g.sem) }

// Available returns the number of free slots.
func (g *Gate) Available() int { return g.Capacity() - g.InUse() }
