// Package admission implements the backpressure admission-control core that
// sits in front of RPC/tool request handlers.
//
// A Controller enforces two protective limits: a bound on the number of
// requests concurrently executing (the execution gate) and an optional
// bound on the number of requests waiting for an execution slot (the
// waiting area). Requests that cannot be admitted within the configured
// queue timeout are rejected with a structured OverloadError so callers can
// retry or shed load.
//
// The package is transport-agnostic: Controller.Handle accepts an opaque
// request value and a Downstream function and does not interpret either.
// Wiring the Controller into an actual transport (HTTP, gRPC, ...) is the
// job of the embedding layer; see package srvx for an HTTP adapter.
package admission
