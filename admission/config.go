package admission

import (
	"errors"
	"time"

	"go.uber.org/multierr"

	"github.com/nulone/backpressure/zlog"
)

// DefaultOverloadErrorCode is the JSON-RPC-style error code carried in a
// rejection payload when Config.OverloadErrorCode is left at zero.
const DefaultOverloadErrorCode = -32001

// DefaultRetryAfterMS is the advisory retry hint carried in a rejection
// payload when no other value is computed.
const DefaultRetryAfterMS = 1000

// Config holds the immutable configuration of a Controller. It is validated
// once at construction time by New; a Controller built from an invalid
// Config is never returned.
type Config struct {
	// MaxConcurrent bounds how many requests may run downstream at once.
	// Must be >= 1.
	MaxConcurrent int

	// QueueSize bounds how many requests may wait for an execution slot.
	// Zero disables the waiting area: every request that finds the gate
	// full is rejected immediately with reason concurrency_limit.
	QueueSize int

	// QueueTimeout is the maximum time a single request may spend in the
	// waiting area before being rejected with reason queue_timeout. Must
	// be positive.
	QueueTimeout time.Duration

	// OverloadErrorCode is carried in rejection payloads. Defaults to
	// DefaultOverloadErrorCode when zero.
	OverloadErrorCode int

	// OnOverload, if set, is invoked synchronously with each rejection
	// payload after it is built and before the caller observes the
	// rejection. It must not block -- the controller does not hold the
	// execution gate while notifying, but a slow sink still delays the
	// rejecting caller. Panics from OnOverload are recovered and logged,
	// never propagated, so a misbehaving sink cannot corrupt counters or
	// mask the original overload.
	OnOverload func(*OverloadError)

	// Logger receives traces of admission decisions: Debug for admits,
	// queue entries, promotions and cancellations, Warn for rejections,
	// Error for a panicking OnOverload. A nil Logger is replaced with
	// zlog.Discard.
	Logger zlog.ZLogger
}

var (
	// ErrMaxConcurrentInvalid is returned by New when MaxConcurrent < 1.
	ErrMaxConcurrentInvalid = errors.New("admission: max_concurrent must be >= 1")
	// ErrQueueSizeInvalid is returned by New when QueueSize < 0.
	ErrQueueSizeInvalid = errors.New("admission: queue_size must be >= 0")
	// ErrQueueTimeoutInvalid is returned by New when QueueTimeout <= 0.
	ErrQueueTimeoutInvalid = errors.New("admission: queue_timeout must be > 0")
)

// normalize fills in defaults and validates cfg, returning a combined error
// (via multierr) naming every field that failed validation at once rather
// than stopping at the first problem.
func normalize(cfg Config) (Config, error) {
	var err error

	if cfg.MaxConcurrent < 1 {
		err = multierr.Append(err, ErrMaxConcurrentInvalid)
	}
	if cfg.QueueSize < 0 {
		err = multierr.Append(err, ErrQueueSizeInvalid)
	}
	if cfg.QueueTimeout <= 0 {
		err = multierr.Append(err, ErrQueueTimeoutInvalid)
	}
	if err != nil {
		return Config{}, err
	}

	if cfg.OverloadErrorCode == 0 {
		cfg.OverloadErrorCode = DefaultOverloadErrorCode
	}
	if cfg.Logger == nil {
		cfg.Logger = zlog.Discard
	}

	return cfg, nil
}
