package admission

import (
	"sync"

	"github.com/nulone/backpressure/autostr"
)

// Snapshot is an immutable record of all six occupancy and rejection
// counters at one point in time. All fields are read under the same
// critical section, so a Snapshot is always self-consistent: for example
// TotalRejected always equals the sum of the three per-reason counters in
// the same Snapshot.
type Snapshot struct {
	Active                   int64 `string:"include" display:"active"`
	Queued                   int64 `string:"include" display:"queued"`
	TotalRejected            int64 `string:"include" display:"total_rejected"`
	RejectedConcurrencyLimit int64 `string:"include" display:"rejected_concurrency_limit"`
	RejectedQueueFull        int64 `string:"include" display:"rejected_queue_full"`
	RejectedQueueTimeout     int64 `string:"include" display:"rejected_queue_timeout"`
}

func (s Snapshot) String() string {
	return autostr.String(s)
}

// counters holds the mutable occupancy and cumulative rejection counters of
// a Controller, protected by a single mutex so every cross-field read (a
// Snapshot) and every related update is internally consistent.
type counters struct {
	mu sync.Mutex

	active int64
	queued int64

	rejectedConcurrencyLimit int64
	rejectedQueueFull        int64
	rejectedQueueTimeout     int64
}

func (c *counters) incActive() {
	c.mu.Lock()
	c.active++
	c.mu.Unlock()
}

func (c *counters) decActive() {
	c.mu.Lock()
	c.active--
	c.mu.Unlock()
}

// promote atomically moves one request from queued to active, so no
// external observer can ever see active+queued dip during a promotion.
func (c *counters) promote() {
	c.mu.Lock()
	c.queued--
	c.active++
	c.mu.Unlock()
}

func (c *counters) incQueued() {
	c.mu.Lock()
	c.queued++
	c.mu.Unlock()
}

func (c *counters) decQueued() {
	c.mu.Lock()
	c.queued--
	c.mu.Unlock()
}

// incRejected bumps the counter for reason in one critical section, then
// returns a Snapshot taken in that same section (its TotalRejected is the
// sum of the three reason counters). Callers must use the returned Snapshot
// (rather than calling snapshot separately) to build a rejection payload, so
// the counters observed by the payload are guaranteed to include this
// rejection -- see the ordering note on Controller.reject.
func (c *counters) incRejected(reason Reason) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch reason {
	case ReasonConcurrencyLimit:
		c.rejectedConcurrencyLimit++
	case ReasonQueueFull:
		c.rejectedQueueFull++
	case ReasonQueueTimeout:
		c.rejectedQueueTimeout++
	}

	return c.snapshotLocked()
}

// snapshot returns a coordinated, self-consistent snapshot of all six
// counters.
func (c *counters) snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *counters) snapshotLocked() Snapshot {
	total := c.rejectedConcurrencyLimit + c.rejectedQueueFull + c.rejectedQueueTimeout
	return Snapshot{
		Active:                   c.active,
		Queued:                   c.queued,
		TotalRejected:            total,
		RejectedConcurrencyLimit: c.rejectedConcurrencyLimit,
		RejectedQueueFull:        c.rejectedQueueFull,
		RejectedQueueTimeout:     c.rejectedQueueTimeout,
	}
}
