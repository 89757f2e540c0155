// Package metrics holds the Prometheus collectors of the service. The
// collectors work unregistered, so tests never call MustRegister.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	AuthRegistrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_registrations_total",
			Help: "Total number of registration attempts.",
		},
		[]string{"result"},
	)

	AuthLoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Total number of login attempts.",
		},
		[]string{"result"},
	)

	OtpIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_otp_issued_total",
			Help: "Total number of one-time codes issued, by type and delivery result.",
		},
		[]string{"type", "result"},
	)

	RentalsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rentals_created_total",
			Help: "Total number of booking requests, by result.",
		},
		[]string{"result"},
	)

	RentalTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rental_transitions_total",
			Help: "Total number of executed rental status transitions.",
		},
		[]string{"from", "to"},
	)

	RentalsAutoDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rentals_auto_denied_total",
			Help: "Pending rentals denied because an overlapping rental was approved.",
		},
	)

	PopularCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "popular_cars_cache_total",
			Help: "Popular car cache lookups, by result.",
		},
		[]string{"result"},
	)
)

// MustRegister registers every collector on reg with a constant service label.
func MustRegister(reg prometheus.Registerer, serviceName string) {
	prometheus.WrapRegistererWith(prometheus.Labels{"service": serviceName}, reg).MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
		AuthRegistrationsTotal,
		AuthLoginsTotal,
		OtpIssuedTotal,
		RentalsCreatedTotal,
		RentalTransitionsTotal,
		RentalsAutoDeniedTotal,
		PopularCacheTotal,
	)
}
