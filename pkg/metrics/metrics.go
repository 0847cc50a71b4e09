package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by flow (signup|login|federated) and result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrigpt_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"flow", "result"},
	)

	// OTPCodesIssued counts one-time codes issued by purpose.
	OTPCodesIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrigpt_otp_codes_issued_total",
			Help: "Total number of one-time codes issued",
		},
		[]string{"purpose"},
	)

	// OTPVerifications counts verification outcomes (success|invalid|expired).
	OTPVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrigpt_otp_verifications_total",
			Help: "Total number of one-time code verification attempts",
		},
		[]string{"purpose", "result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agrigpt_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
