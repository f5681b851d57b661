package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OTPIssued counts issuance requests by result (issued|too_many_attempts).
	OTPIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eotm_otp_issued_total",
			Help: "Total number of one-time code issuance requests",
		},
		[]string{"result"},
	)

	// OTPVerifications counts verification attempts by result (success|not_found|expired|mismatch).
	OTPVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eotm_otp_verifications_total",
			Help: "Total number of one-time code verification attempts",
		},
		[]string{"result"},
	)

	// OTPSwept counts records removed by the expiry sweep.
	OTPSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eotm_otp_swept_total",
			Help: "Total number of expired one-time codes removed by the sweeper",
		},
	)

	// DeliveryAttempts counts gateway attempts by outcome (success|status|network|timeout|malformed|rejected|unconfigured).
	DeliveryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eotm_delivery_attempts_total",
			Help: "Total number of outbound delivery attempts",
		},
		[]string{"outcome"},
	)

	// VoteAdmissions counts vote submissions by result.
	VoteAdmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eotm_vote_admissions_total",
			Help: "Total number of vote submissions",
		},
		[]string{"result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eotm_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)
