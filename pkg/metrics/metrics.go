package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Custom histogram buckets for API response times ranging from milliseconds to 30+ seconds
	CustomAPIBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 13, 21, 34, 55}

	// HTTP Metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_server_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: CustomAPIBuckets,
		},
		[]string{"http_request_method", "http_route", "http_response_status_code"},
	)

	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_server_request_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"http_request_method", "http_route", "http_response_status_code"},
	)

	ActiveRequests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_server_active_requests",
			Help: "Number of active HTTP requests",
		},
		[]string{"http_request_method"},
	)

	// Database Client Metrics
	DBOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_client_operation_duration_seconds",
			Help:    "Database client operation duration in seconds",
			Buckets: CustomAPIBuckets,
		},
		[]string{"operation", "status"},
	)

	DBOperationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_client_operation_total",
			Help: "Total number of database client operations",
		},
		[]string{"operation", "status"},
	)

	// Collaborator (identity, notifications) client metrics
	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_client_request_duration_seconds",
			Help:    "Upstream collaborator request duration in seconds",
			Buckets: CustomAPIBuckets,
		},
		[]string{"service", "operation", "status"},
	)

	UpstreamDegraded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_client_degraded_total",
			Help: "Total number of collaborator calls answered with a degraded default",
		},
		[]string{"service", "operation"},
	)

	// UpstreamBreakerState is 0 closed, 1 half-open, 2 open
	UpstreamBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "upstream_client_breaker_state",
			Help: "Circuit breaker state per collaborator",
		},
		[]string{"breaker"},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_name"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_name"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of cache evictions",
		},
		[]string{"cache_name", "reason"}, // "size", "expired"
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Number of entries in cache",
		},
		[]string{"cache_name"},
	)

	// Business Metrics
	SlotMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "getmentor_availability_slot_mutations_total",
			Help: "Total availability slot mutations",
		},
		[]string{"operation", "status"},
	)

	SessionBookings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "getmentor_session_bookings_total",
			Help: "Total session booking attempts",
		},
		[]string{"status"},
	)

	SessionBookingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "getmentor_session_booking_duration_seconds",
			Help:    "Session booking duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	SessionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "getmentor_session_transitions_total",
			Help: "Total session lifecycle transitions",
		},
		[]string{"event", "status"},
	)

	RemindersScheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "getmentor_reminders_scheduled_total",
			Help: "Total reminder rows created",
		},
		[]string{"offset"},
	)

	ReminderDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "getmentor_reminder_deliveries_total",
			Help: "Total reminder delivery attempts per recipient",
		},
		[]string{"offset", "recipient", "status"}, // status: "delivered", "failed", "abandoned"
	)

	ReminderDeliveryLag = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "getmentor_reminder_delivery_lag_seconds",
			Help:    "Delay between reminder scheduled time and delivery",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)

	SweepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "getmentor_sweep_duration_seconds",
			Help:    "Duration of periodic sweep phases",
			Buckets: CustomAPIBuckets,
		},
		[]string{"phase"},
	)

	ReviewSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "getmentor_review_submissions_total",
			Help: "Total number of review submissions",
		},
		[]string{"status"},
	)

	// Infrastructure Metrics
	GoRoutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "process_runtime_go_goroutines",
			Help: "Number of goroutines",
		},
	)

	HeapAlloc = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "process_runtime_go_mem_heap_alloc_bytes",
			Help: "Heap allocated bytes",
		},
	)
)

// RecordInfrastructureMetrics collects infrastructure metrics periodically
func RecordInfrastructureMetrics() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		for range ticker.C {
			var m runtime.MemStats
			runtime.ReadMemStats(&m)

			GoRoutines.Set(float64(runtime.NumGoroutine()))
			HeapAlloc.Set(float64(m.HeapAlloc))
		}
	}()
}

// MeasureDuration measures the duration of an operation
func MeasureDuration(start time.Time) float64 {
	return time.Since(start).Seconds()
}
