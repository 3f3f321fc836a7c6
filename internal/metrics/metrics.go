// Package metrics defines the broker's Prometheus collectors and a
// Collector that adapts them to internal/broker.Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pigato_broker"

var (
	// RequestsTotal counts requests by outcome: queued, dispatched,
	// cache_hit, timed_out, rejected, requeued.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of requests processed, by outcome",
		},
		[]string{"outcome"},
	)

	// CacheHits counts response cache hits.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of response cache hits",
		},
	)

	// CacheMisses counts response cache misses.
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of response cache misses",
		},
	)

	// WorkersActive tracks the number of currently registered workers.
	WorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers_active",
			Help:      "Number of currently registered workers",
		},
	)

	// QueueDepth tracks pending requests per service.
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Number of requests queued per service",
		},
		[]string{"service"},
	)

	// DispatchDuration measures time from request enqueue to dispatch.
	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time from request enqueue to worker dispatch",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		},
	)

	// Info exposes build info.
	Info = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "info",
			Help:      "Broker build info",
		},
		[]string{"version", "go_version", "os", "arch"},
	)
)

// InitInfo sets the info gauge once at startup.
func InitInfo(version, goVersion, os, arch string) {
	Info.WithLabelValues(version, goVersion, os, arch).Set(1)
}

// Collector adapts the package-level Prometheus collectors to
// internal/broker.Metrics.
type Collector struct{}

func NewCollector() Collector { return Collector{} }

func (Collector) RequestQueued()     { RequestsTotal.WithLabelValues("queued").Inc() }
func (Collector) RequestDispatched() { RequestsTotal.WithLabelValues("dispatched").Inc() }
func (Collector) RequestCacheHit() {
	RequestsTotal.WithLabelValues("cache_hit").Inc()
	CacheHits.Inc()
}
func (Collector) RequestCacheMiss()   { CacheMisses.Inc() }
func (Collector) RequestTimedOut()    { RequestsTotal.WithLabelValues("timed_out").Inc() }
func (Collector) RequestRejected()    { RequestsTotal.WithLabelValues("rejected").Inc() }
func (Collector) RequestRequeued()    { RequestsTotal.WithLabelValues("requeued").Inc() }
func (Collector) WorkersActive(n int) { WorkersActive.Set(float64(n)) }
func (Collector) QueueDepth(service string, n int) {
	QueueDepth.WithLabelValues(service).Set(float64(n))
}
func (Collector) DispatchDuration(d time.Duration) {
	DispatchDuration.Observe(d.Seconds())
}
