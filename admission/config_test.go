package admission

import (
	"testing"
	"time"

	"go.uber.org/multierr"
)

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{MaxConcurrent: 0, QueueSize: -1, QueueTimeout: 0})
	if err == nil {
		t.Fatal("expected an error for an all-invalid config")
	}
	errs := multierr.Errors(err)
	if len(errs) != 3 {
		t.Fatalf("expected all three validation errors reported together, got %d: %v", len(errs), errs)
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	c, err := New(Config{MaxConcurrent: 1, QueueTimeout: time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cfg := c.Config()
	if cfg.OverloadErrorCode != DefaultOverloadErrorCode {
		t.Fatalf("expected default overload code, got %d", cfg.OverloadErrorCode)
	}
	if cfg.Logger == nil {
		t.Fatal("expected a non-nil default logger")
	}
}

func TestNewAcceptsZeroQueueSize(t *testing.T) {
	c, err := New(Config{MaxConcurrent: 1, QueueSize: 0, QueueTimeout: time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.waitGate != nil {
		t.Fatal("expected no waiting area when QueueSize is 0")
	}
}
