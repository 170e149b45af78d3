// Package metrics exposes the Prometheus registry and the instruments of the
// collection pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "indexes"

// Registry is the global Prometheus registry for all metrics.
var Registry = prometheus.NewRegistry()

// AppInfo exposes build information as labels, value pinned to 1.
var AppInfo = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_info",
		Help:      "Application version information (always 1, version info in labels)",
	},
	[]string{"version", "commit"},
)

// CollectionRuns counts finished collection runs by outcome.
var CollectionRuns = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "collection_runs_total",
		Help:      "Total number of collection runs",
	},
	[]string{"outcome"}, // ok|error
)

// CollectionRunDuration tracks end-to-end collection run duration.
var CollectionRunDuration = promauto.With(Registry).NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "collection_run_duration_seconds",
		Help:      "Duration of a collection run in seconds",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	},
)

// QuotationsInserted counts quotation rows written, labeled by data source.
var QuotationsInserted = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quotations_inserted_total",
		Help:      "Total number of quotation rows upserted",
	},
	[]string{"source"},
)

// CollectionWarnings counts warnings accumulated across runs.
var CollectionWarnings = promauto.With(Registry).NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "collection_warnings_total",
		Help:      "Total number of warnings emitted by collection runs",
	},
)

// ProviderRequests counts wire calls to external providers by source and
// status.
var ProviderRequests = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_requests_total",
		Help:      "Total number of provider wire requests",
	},
	[]string{"source", "status"}, // status: success|error
)

// ProviderRequestLatency tracks provider wire request latency.
var ProviderRequestLatency = promauto.With(Registry).NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "provider_request_latency_seconds",
		Help:      "Provider wire request latency in seconds",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 90},
	},
	[]string{"source"},
)

// Init registers the runtime collectors and pins the build info gauge.
func Init(version, commit string) {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	AppInfo.WithLabelValues(version, commit).Set(1)
}
