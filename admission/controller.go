package admission

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nulone/backpressure/internal/gate"
	"github.com/nulone/backpressure/zlog"
)

// Downstream is the opaque handler a Controller invokes once a request has
// been admitted. The controller never interprets its return value or
// error: handler errors propagate unchanged and are not recorded as
// admission rejections.
type Downstream func(ctx context.Context, request any) (any, error)

// Controller is the admission state machine described by the package
// documentation: a fixed-capacity execution gate paired with a bounded,
// deadline-aware waiting area, plus the counters needed to classify and
// report overload. A Controller is safe for concurrent use by many callers
// and holds no state beyond its configuration and counters -- multiple
// Controllers with different limits may coexist.
type Controller struct {
	cfg Config

	execGate *gate.Gate
	waitGate *gate.Gate // nil when cfg.QueueSize == 0: the waiting area does not exist

	counters *counters
	logger   zlog.ZLogger
}

// New constructs a Controller from cfg, validating it synchronously.
// Configuration errors are returned here, never deferred to first use.
func New(cfg Config) (*Controller, error) {
	cfg, err := normalize(cfg)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		cfg:      cfg,
		execGate: gate.New(cfg.MaxConcurrent),
		counters: &counters{},
		logger:   cfg.Logger,
	}
	if cfg.QueueSize > 0 {
		c.waitGate = gate.New(cfg.QueueSize)
	}
	return c, nil
}

// Snapshot returns a coordinated, self-consistent view of all six counters.
func (c *Controller) Snapshot() Snapshot { return c.counters.snapshot() }

// Config returns the Controller's (immutable) configuration.
func (c *Controller) Config() Config { return c.cfg }

// Handle runs request through the admission state machine and, once
// admitted, through downstream. It returns downstream's result directly,
// or an *OverloadError if the request could not be admitted within the
// configured limits, or ctx.Err() if the caller's context was canceled
// while the request was waiting.
//
// Admission proceeds in up to three steps:
//
//  1. Try the execution gate without blocking. This is a single atomic
//     operation -- there is no separate "is it full?" check that a
//     concurrent acquirer could race past.
//  2. If the gate is full and no waiting area is configured, reject with
//     reason concurrency_limit.
//  3. If the gate is full and a waiting area is configured, try to enter
//     it (reject with reason queue_full if it too is at capacity), then
//     wait for promotion to the execution gate until either it happens,
//     the request's own queue_timeout deadline elapses (reject with
//     reason queue_timeout), or ctx is canceled (propagate, not a
//     rejection).
func (c *Controller) Handle(ctx context.Context, request any, downstream Downstream) (any, error) {
	log := c.logger
	if log != zlog.Discard {
		log = log.With(zlog.String("request_id", uuid.NewString()))
	}

	if c.execGate.TryAcquire() {
		c.counters.incActive()
		return c.runAdmitted(ctx, request, downstream, log)
	}

	if c.waitGate == nil {
		return nil, c.reject(ReasonConcurrencyLimit, log)
	}

	if !c.waitGate.TryAcquire() {
		return nil, c.reject(ReasonQueueFull, log)
	}

	c.counters.incQueued()
	log.Debug("request entered waiting area")

	return c.waitAndExecute(ctx, request, downstream, log)
}

// waitAndExecute runs the slow path: the caller already holds a
// waiting-area slot and must either be promoted to the execution gate
// before its deadline, time out, or be canceled.
func (c *Controller) waitAndExecute(ctx context.Context, request any, downstream Downstream, log zlog.ZLogger) (any, error) {
	// Deadline is measured from the moment of entering the waiting area,
	// against a monotonic clock, so wall-clock adjustments cannot shorten
	// or extend the wait.
	waitCtx, cancel := context.WithDeadline(ctx, time.Now().Add(c.cfg.QueueTimeout))
	defer cancel()

	if err := c.execGate.AcquireWithDeadline(waitCtx); err != nil {
		// Whatever stopped the wait, the waiting-area slot must come back.
		c.counters.decQueued()
		c.waitGate.Release()

		if ctx.Err() != nil {
			// The caller's own context ended the wait: this is a
			// cancellation, not a rejection, and must not bump any
			// rejection counter.
			log.Debug("request canceled while queued")
			return nil, ctx.Err()
		}

		return nil, c.reject(ReasonQueueTimeout, log)
	}

	// Promoted. The waiting-area slot is released and the execution slot
	// is held; decrementing queued and incrementing active happens in one
	// locked step so no external snapshot can observe active+queued
	// transiently dip by one.
	c.counters.promote()
	c.waitGate.Release()
	log.Debug("request promoted")

	return c.runAdmitted(ctx, request, downstream, log)
}

// runAdmitted invokes downstream once a request holds an execution slot
// and has already been counted in active. It releases the execution gate
// and decrements active on every exit path, including a panic propagating
// out of downstream.
func (c *Controller) runAdmitted(ctx context.Context, request any, downstream Downstream, log zlog.ZLogger) (any, error) {
	defer func() {
		c.counters.decActive()
		c.execGate.Release()
	}()

	log.Debug("request executing")
	return downstream(ctx, request)
}

// reject increments the counter for reason, snapshots the counters in the
// same critical section, builds the rejection payload from that snapshot,
// notifies the overload sink, and returns the payload as an error. The
// increment-before-snapshot ordering guarantees that any observer reading
// counters from inside a caller's catch block -- or from the OnOverload
// callback -- sees this rejection already reflected.
func (c *Controller) reject(reason Reason, log zlog.ZLogger) error {
	snap := c.counters.incRejected(reason)
	err := newOverloadError(reason, c.cfg, snap)

	log.Warn("request rejected",
		zlog.String("reason", string(reason)),
		zlog.Int("active", err.Data.Active),
		zlog.Int("queued", err.Data.Queued),
	)

	c.notifyOverload(err)
	return err
}

// notifyOverload invokes the configured OnOverload sink, if any, isolating
// the controller from a panicking sink: a failing sink must not corrupt
// counters or prevent the original overload from reaching the caller, so
// its panic is recovered and logged rather than propagated.
func (c *Controller) notifyOverload(err *OverloadError) {
	if c.cfg.OnOverload == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("on_overload sink panicked", zlog.Any("panic", r))
		}
	}()
	c.cfg.OnOverload(err)
}
