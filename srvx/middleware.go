package srvx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/nulone/backpressure/admission"
)

// NewBackpressureMiddleware wraps next with ctrl so every request passes
// through the admission controller before reaching next. On overload it
// writes ctrl's structured rejection payload as the response body with
// HTTP 503 and a Retry-After header derived from the payload's retry hint,
// instead of calling next at all.
//
// The request itself is passed through to ctrl unmodified, and next is
// invoked with the context ctrl hands to its downstream, which is the
// request's own context: the queue deadline bounds only the wait for a slot,
// not the call to next. ctrl never inspects or rewrites either.
func NewBackpressureMiddleware(ctrl *admission.Controller, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := ctrl.Handle(r.Context(), r, func(ctx context.Context, request any) (any, error) {
			next.ServeHTTP(w, r.WithContext(ctx))
			return nil, nil
		})
		if err == nil {
			return
		}

		var overload *admission.OverloadError
		if errors.As(err, &overload) {
			writeOverload(w, overload)
			return
		}

		// Anything else is the caller's own context ending (e.g. the
		// client disconnected while queued); there is no one left to
		// write a response to.
	})
}

func writeOverload(w http.ResponseWriter, overload *admission.OverloadError) {
	retrySeconds := overload.Data.RetryAfterMS / 1000
	if overload.Data.RetryAfterMS%1000 != 0 {
		retrySeconds++
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(retrySeconds))
	w.WriteHeader(http.StatusServiceUnavailable)
	_ = json.NewEncoder(w).Encode(overload)
}
