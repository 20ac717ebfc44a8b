package srvx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nulone/backpressure/admission"
)

func TestBackpressureMiddlewareAdmits(t *testing.T) {
	ctrl, err := admission.New(admission.Config{MaxConcurrent: 1, QueueTimeout: time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	handler := NewBackpressureMiddleware(ctrl, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestBackpressureMiddlewareRejectsWithPayload(t *testing.T) {
	ctrl, err := admission.New(admission.Config{MaxConcurrent: 1, QueueTimeout: time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	release := make(chan struct{})
	blocked := NewBackpressureMiddleware(ctrl, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))

	go blocked.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && ctrl.Snapshot().Active != 1 {
		time.Sleep(time.Millisecond)
	}

	rec := httptest.NewRecorder()
	blocked.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	close(release)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected a Retry-After header")
	}

	var payload struct {
		Code int `json:"code"`
		Data struct {
			Reason string `json:"reason"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode rejection body: %v", err)
	}
	if payload.Data.Reason != string(admission.ReasonConcurrencyLimit) {
		t.Fatalf("expected concurrency_limit, got %s", payload.Data.Reason)
	}
}
