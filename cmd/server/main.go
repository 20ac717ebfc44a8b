// Command server demonstrates wiring an admission.Controller into an HTTP
// server: every request to /work passes through the controller before
// reaching the (intentionally slow) handler, and /metrics exposes the
// controller's counters to Prometheus.
package main

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nulone/backpressure/admission"
	"github.com/nulone/backpressure/promexport"
	"github.com/nulone/backpressure/srvx"
	"github.com/nulone/backpressure/zlog"
)

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func main() {
	logger := zlog.NewDefault("backpressure-demo")
	defer logger.Sync()

	cfg := admission.Config{
		MaxConcurrent: envInt("MAX_CONCURRENT", 5),
		QueueSize:     envInt("QUEUE_SIZE", 10),
		QueueTimeout:  30 * time.Second,
		Logger:        logger,
		OnOverload: func(err *admission.OverloadError) {
			logger.Warn("overload",
				zlog.String("reason", string(err.Data.Reason)),
				zlog.Int("active", err.Data.Active),
				zlog.Int("queued", err.Data.Queued),
			)
		},
	}

	ctrl, err := admission.New(cfg)
	if err != nil {
		logger.Error("invalid admission config", zlog.Any("error", err))
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(promexport.NewCollector("demo", ctrl))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Handle("/work", srvx.NewBackpressureMiddleware(ctrl, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("done\n"))
		case <-r.Context().Done():
		}
	})))

	err = srvx.RunServer(mux, srvx.ServerConfig{
		Addr:   "127.0.0.1",
		Port:   envIntAsString("PORT", 8080),
		Logger: logger,
	})
	if err != nil {
		logger.Error("server exited with error", zlog.Any("error", err))
		os.Exit(1)
	}
}

func envIntAsString(key string, fallback int) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return strconv.Itoa(fallback)
}
