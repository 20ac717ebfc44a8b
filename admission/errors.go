package admission

import (
	"encoding/json"

	"github.com/nulone/backpressure/autostr"
)

// Reason classifies why a request was rejected.
type Reason string

const (
	// ReasonConcurrencyLimit means the execution gate was full and no
	// waiting area is configured.
	ReasonConcurrencyLimit Reason = "concurrency_limit"
	// ReasonQueueFull means the execution gate was full and the waiting
	// area was also at capacity.
	ReasonQueueFull Reason = "queue_full"
	// ReasonQueueTimeout means the request was admitted to the waiting
	// area but its deadline elapsed before promotion.
	ReasonQueueTimeout Reason = "queue_timeout"
)

// overloadMessage is the fixed human-readable message carried by every
// rejection payload, per the wire format.
const overloadMessage = "SERVER_OVERLOADED"

// OverloadData is the "data" object of an overload rejection payload. All
// seven fields are always present on the wire.
type OverloadData struct {
	Reason         Reason `json:"reason" string:"include" display:"reason"`
	Active         int    `json:"active" string:"include" display:"active"`
	Queued         int    `json:"queued" string:"include" display:"queued"`
	MaxConcurrent  int    `json:"max_concurrent" string:"include" display:"max_concurrent"`
	QueueSize      int    `json:"queue_size" string:"include" display:"queue_size"`
	QueueTimeoutMS int    `json:"queue_timeout_ms" string:"include" display:"queue_timeout_ms"`
	RetryAfterMS   int    `json:"retry_after_ms" string:"include" display:"retry_after_ms"`
}

// OverloadError is the structured signal raised when a request cannot be
// admitted. It satisfies the error interface and also JSON-marshals to
// {code, message, data}.
//
// OverloadError is constructed once at the moment of rejection and never
// mutated afterward; it is safe to retain and inspect after Handle returns.
type OverloadError struct {
	Code    int          `json:"code" string:"include" display:"code"`
	Message string       `json:"message" string:"include" display:"message"`
	Data    OverloadData `json:"data"`
}

// Error implements the error interface.
func (e *OverloadError) Error() string {
	return autostr.String(*e) + " " + autostr.String(e.Data)
}

// MarshalJSON is implemented explicitly (rather than relying on the default
// struct encoding) only to document that the wire shape is load-bearing:
// callers across the network rely on exactly these fields being present.
func (e *OverloadError) MarshalJSON() ([]byte, error) {
	type wire OverloadError
	return json.Marshal((*wire)(e))
}

func newOverloadError(reason Reason, cfg Config, snap Snapshot) *OverloadError {
	return &OverloadError{
		Code:    cfg.OverloadErrorCode,
		Message: overloadMessage,
		Data: OverloadData{
			Reason:         reason,
			Active:         int(snap.Active),
			Queued:         int(snap.Queued),
			MaxConcurrent:  cfg.MaxConcurrent,
			QueueSize:      cfg.QueueSize,
			QueueTimeoutMS: int(cfg.QueueTimeout.Milliseconds()),
			RetryAfterMS:   DefaultRetryAfterMS,
		},
	}
}
