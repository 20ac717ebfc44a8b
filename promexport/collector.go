// Package promexport adapts an admission.Controller's counters to
// Prometheus, the metrics surface the rest of this example server's stack
// uses. It implements prometheus.Collector directly rather than polling on
// a timer, so every scrape reflects a fresh, coordinated Snapshot -- there
// is no window where Prometheus and a concurrently-running test see
// different counter values.
package promexport

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nulone/backpressure/admission"
)

// Snapshotter is the subset of *admission.Controller the Collector depends
// on. Tests can satisfy it with a fake to exercise Collect without running
// a real Controller.
type Snapshotter interface {
	Snapshot() admission.Snapshot
	Config() admission.Config
}

// Collector exports an admission.Controller's occupancy and rejection
// counters as Prometheus metrics. Register it with a prometheus.Registerer
// once per Controller instance; give each one a distinct name if more than
// one Controller is registered in the same process.
type Collector struct {
	src  Snapshotter
	name string

	active        *prometheus.Desc
	queued        *prometheus.Desc
	maxConcurrent *prometheus.Desc
	queueSize     *prometheus.Desc
	rejectedTotal *prometheus.Desc
}

// NewCollector builds a Collector for src. name is attached as a constant
// "controller" label so metrics from multiple controllers in one process
// registry stay distinguishable.
func NewCollector(name string, src Snapshotter) *Collector {
	labels := []string{"controller"}
	return &Collector{
		src:  src,
		name: name,

		active: prometheus.NewDesc(
			"backpressure_active_requests",
			"Number of requests currently executing downstream.",
			labels, nil,
		),
		queued: prometheus.NewDesc(
			"backpressure_queued_requests",
			"Number of requests currently waiting for an execution slot.",
			labels, nil,
		),
		maxConcurrent: prometheus.NewDesc(
			"backpressure_max_concurrent",
			"Configured execution gate capacity.",
			labels, nil,
		),
		queueSize: prometheus.NewDesc(
			"backpressure_queue_size",
			"Configured waiting-area capacity.",
			labels, nil,
		),
		rejectedTotal: prometheus.NewDesc(
			"backpressure_rejected_total",
			"Cumulative number of rejected requests by reason.",
			append(labels, "reason"), nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.active
	ch <- c.queued
	ch <- c.maxConcurrent
	ch <- c.queueSize
	ch <- c.rejectedTotal
}

// Collect implements prometheus.Collector. It takes exactly one Snapshot
// and one Config read, so the counters it reports for a given scrape are
// mutually consistent.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.src.Snapshot()
	cfg := c.src.Config()

	ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, float64(snap.Active), c.name)
	ch <- prometheus.MustNewConstMetric(c.queued, prometheus.GaugeValue, float64(snap.Queued), c.name)
	ch <- prometheus.MustNewConstMetric(c.maxConcurrent, prometheus.GaugeValue, float64(cfg.MaxConcurrent), c.name)
	ch <- prometheus.MustNewConstMetric(c.queueSize, prometheus.GaugeValue, float64(cfg.QueueSize), c.name)

	ch <- prometheus.MustNewConstMetric(c.rejectedTotal, prometheus.CounterValue, float64(snap.RejectedConcurrencyLimit), c.name, "concurrency_limit")
	ch <- prometheus.MustNewConstMetric(c.rejectedTotal, prometheus.CounterValue, float64(snap.RejectedQueueFull), c.name, "queue_full")
	ch <- prometheus.MustNewConstMetric(c.rejectedTotal, prometheus.CounterValue, float64(snap.RejectedQueueTimeout), c.name, "queue_timeout")
}
