package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "salonbook"

var (
	once sync.Once

	availabilityQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_queries_total",
			Help:      "Count of availability computations by result.",
		},
		[]string{"result"},
	)

	staleDiscarded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_stale_discarded_total",
			Help:      "Count of availability fetches discarded because a newer selection superseded them.",
		},
	)

	fetchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_fetch_errors_total",
			Help:      "Count of failed availability fetches by source.",
		},
		[]string{"source"},
	)

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_created_total",
			Help:      "Count of appointment submissions by status.",
		},
		[]string{"status"},
	)

	bookingCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_cancelled_total",
			Help:      "Count of appointments cancelled by users.",
		},
	)

	apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Count of salon API requests by endpoint and status code.",
		},
		[]string{"endpoint", "code"},
	)

	apiDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Latency of salon API requests.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of requests served by the JSON API by route.",
		},
		[]string{"route"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			availabilityQueries,
			staleDiscarded,
			fetchErrors,
			bookingCreated,
			bookingCancelled,
			apiRequests,
			apiDuration,
			httpRequests,
		)
	})
}

func IncAvailabilityQuery(result string) {
	availabilityQueries.WithLabelValues(result).Inc()
}

func IncStaleDiscarded() {
	staleDiscarded.Inc()
}

func IncFetchError(source string) {
	fetchErrors.WithLabelValues(source).Inc()
}

func IncBookingCreated(status string) {
	bookingCreated.WithLabelValues(status).Inc()
}

func IncBookingCancelled() {
	bookingCancelled.Inc()
}

// ObserveAPI records one outbound call. code 0 means a transport error.
func ObserveAPI(endpoint string, code int, took time.Duration) {
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	apiRequests.WithLabelValues(endpoint, label).Inc()
	apiDuration.WithLabelValues(endpoint).Observe(took.Seconds())
}

func IncHTTP(route string) {
	httpRequests.WithLabelValues(route).Inc()
}
