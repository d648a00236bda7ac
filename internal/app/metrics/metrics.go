package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "appforge",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "appforge",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "appforge",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	deployments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "appforge",
			Subsystem: "deploy",
			Name:      "deployments_total",
			Help:      "Total number of deployment attempts.",
		},
		[]string{"environment", "status"},
	)

	deployDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "appforge",
			Subsystem: "deploy",
			Name:      "duration_seconds",
			Help:      "End-to-end duration of deployments.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to ~2m
		},
		[]string{"environment"},
	)

	bundleSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "appforge",
			Subsystem: "bundle",
			Name:      "size_bytes",
			Help:      "Size of generated worker bundles.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 12),
		},
	)

	assetsUploaded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "appforge",
			Subsystem: "assets",
			Name:      "uploaded_total",
			Help:      "Total number of assets offloaded to object storage.",
		},
	)

	tablesProvisioned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "appforge",
			Subsystem: "schema",
			Name:      "tables_provisioned_total",
			Help:      "Total number of schema provisioning outcomes per table.",
		},
		[]string{"outcome"},
	)

	pendingRLSReplays = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "appforge",
			Subsystem: "schema",
			Name:      "pending_rls_replayed_total",
			Help:      "Total number of deferred RLS policies replayed by the sweeper.",
		},
		[]string{"outcome"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		deployments,
		deployDuration,
		bundleSize,
		assetsUploaded,
		tablesProvisioned,
		pendingRLSReplays,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordDeployment records the outcome and duration of a deployment run.
func RecordDeployment(environment string, duration time.Duration, success bool) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	status := "failure"
	if success {
		status = "success"
	}
	deployments.WithLabelValues(environment, status).Inc()
	deployDuration.WithLabelValues(environment).Observe(duration.Seconds())
}

// RecordBundleSize records the size of a generated worker bundle.
func RecordBundleSize(bytes int) {
	bundleSize.Observe(float64(bytes))
}

// RecordAssetsUploaded records assets offloaded to object storage.
func RecordAssetsUploaded(count int) {
	if count <= 0 {
		return
	}
	assetsUploaded.Add(float64(count))
}

// RecordTableProvisioned records a schema provisioning outcome.
func RecordTableProvisioned(outcome string) {
	tablesProvisioned.WithLabelValues(outcome).Inc()
}

// RecordPendingRLSReplay records a replayed deferred RLS policy.
func RecordPendingRLSReplay(success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	pendingRLSReplays.WithLabelValues(outcome).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if parts[0] != "apps" {
		return "/" + parts[0]
	}
	if len(parts) == 1 {
		return "/apps"
	}
	if len(parts) == 2 {
		return "/apps/:id"
	}
	return "/apps/:id/" + parts[2]
}
