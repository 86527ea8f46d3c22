package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all Wryteon metrics
const namespace = "wryteon"

// Registry is the global Prometheus registry for all metrics
var Registry = prometheus.NewRegistry()

// AppInfo exposes build information as labels; the value is always 1.
var AppInfo = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_info",
		Help:      "Application version information (always set to 1, version info in labels)",
	},
	[]string{"version", "commit", "build_date", "backend"},
)

// HealthStatus is 0 when the last health check failed and 1 when it passed.
var HealthStatus = promauto.With(Registry).NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "health_status",
		Help:      "Server health status (0=unhealthy, 1=healthy)",
	},
)

// Post metrics
var (
	// PostsSavedTotal counts successful saves by operation (insert, update).
	PostsSavedTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_saved_total",
			Help:      "Total number of posts saved",
		},
		[]string{"operation", "status"},
	)

	// PostsDeletedTotal counts deleted posts.
	PostsDeletedTotal = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_deleted_total",
			Help:      "Total number of posts deleted",
		},
	)

	// PostRejectionsTotal counts save attempts rejected before hitting storage.
	PostRejectionsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "post_rejections_total",
			Help:      "Total number of rejected post saves",
		},
		[]string{"reason"}, // reason: validation, slug_taken
	)
)

// Auth metrics
var (
	// LoginAttemptsTotal counts login attempts by result (success, failure, rate_limited).
	LoginAttemptsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Total number of admin login attempts",
		},
		[]string{"result"},
	)

	// SessionsDeletedTotal counts expired sessions removed by the cleanup job.
	SessionsDeletedTotal = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_deleted_total",
			Help:      "Total number of expired sessions deleted by cleanup job",
		},
	)

	// SessionCleanupDuration tracks how long the cleanup job takes.
	SessionCleanupDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_cleanup_duration_seconds",
			Help:      "Duration of session cleanup job execution in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
	)
)

// Upload and export metrics
var (
	// UploadsTotal counts image uploads by result (success, rejected, error).
	UploadsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Total number of image uploads",
		},
		[]string{"result"},
	)

	// UploadBytesTotal sums the size of stored uploads.
	UploadBytesTotal = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_bytes_total",
			Help:      "Total bytes written by image uploads",
		},
	)

	// ExportPagesTotal counts pages written by the static exporter.
	ExportPagesTotal = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_pages_total",
			Help:      "Total number of pages written by static export",
		},
	)
)

// Init registers runtime collectors and sets version information.
func Init(version, commit, buildDate, backend string) {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	AppInfo.WithLabelValues(version, commit, buildDate, backend).Set(1)
}
