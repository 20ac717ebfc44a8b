package admission

import (
	"encoding/json"
	"testing"
	"time"
)

func TestOverloadErrorJSONRoundTrip(t *testing.T) {
	cfg := Config{MaxConcurrent: 5, QueueSize: 10, QueueTimeout: 30 * time.Second, OverloadErrorCode: -32001}
	for _, reason := range []Reason{ReasonConcurrencyLimit, ReasonQueueFull, ReasonQueueTimeout} {
		snap := Snapshot{Active: 5, Queued: 3}
		err := newOverloadError(reason, cfg, snap)

		b, jsonErr := json.Marshal(err)
		if jsonErr != nil {
			t.Fatalf("marshal: %v", jsonErr)
		}

		var decoded struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Data    struct {
				Reason         Reason `json:"reason"`
				Active         int    `json:"active"`
				Queued         int    `json:"queued"`
				MaxConcurrent  int    `json:"max_concurrent"`
				QueueSize      int    `json:"queue_size"`
				QueueTimeoutMS int    `json:"queue_timeout_ms"`
				RetryAfterMS   int    `json:"retry_after_ms"`
			} `json:"data"`
		}
		if jsonErr := json.Unmarshal(b, &decoded); jsonErr != nil {
			t.Fatalf("unmarshal: %v", jsonErr)
		}

		if decoded.Code != -32001 || decoded.Message != "SERVER_OVERLOADED" {
			t.Fatalf("unexpected envelope: %+v", decoded)
		}
		if decoded.Data.Reason != reason {
			t.Fatalf("reason did not round-trip: got %s want %s", decoded.Data.Reason, reason)
		}
		if decoded.Data.Active != 5 || decoded.Data.Queued != 3 {
			t.Fatalf("occupancy did not round-trip: %+v", decoded.Data)
		}
		if decoded.Data.MaxConcurrent != 5 || decoded.Data.QueueSize != 10 {
			t.Fatalf("config fields did not round-trip: %+v", decoded.Data)
		}
		if decoded.Data.QueueTimeoutMS != 30000 {
			t.Fatalf("expected queue_timeout_ms=30000, got %d", decoded.Data.QueueTimeoutMS)
		}
		if decoded.Data.RetryAfterMS != DefaultRetryAfterMS {
			t.Fatalf("expected retry_after_ms=%d, got %d", DefaultRetryAfterMS, decoded.Data.RetryAfterMS)
		}
	}
}

func TestOverloadErrorImplementsError(t *testing.T) {
	var err error = newOverloadError(ReasonQueueFull, Config{MaxConcurrent: 1, QueueTimeout: time.Second}, Snapshot{})
	if err.Error() == "" {
		t.Fatal("expected a non-empty error string")
	}
}
