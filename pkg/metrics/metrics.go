package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sanchay_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sanchay_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Payment and auto-save metrics
	PaymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sanchay_payments_total",
			Help: "Total number of payments recorded",
		},
		[]string{"status"},
	)

	AutoSaveCreditsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sanchay_autosave_credits_total",
			Help: "Total number of auto-save wallet credits",
		},
	)

	AutoSaveAmount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sanchay_autosave_amount_inr",
			Help:    "Auto-save amounts in INR",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
		},
	)

	// Auto-invest metrics
	RuleEvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sanchay_rule_evaluations_total",
			Help: "Total number of auto-invest rule evaluations",
		},
		[]string{"trigger", "outcome"},
	)

	InvestmentsExecutedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sanchay_investments_executed_total",
			Help: "Total number of investments executed by the rule engine",
		},
	)

	ScheduledSweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sanchay_scheduled_sweep_duration_seconds",
			Help:    "Duration of the monthly scheduled rule sweep",
			Buckets: []float64{1, 5, 15, 60, 300, 900},
		},
	)

	// KYC metrics
	VerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sanchay_kyc_verifications_total",
			Help: "Total number of KYC fact verifications",
		},
		[]string{"fact", "result"},
	)

	// Provider metrics
	ProviderFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sanchay_provider_failures_total",
			Help: "Total number of upstream provider failures",
		},
		[]string{"provider"},
	)
)

// RecordRuleEvaluation records the outcome of a single rule evaluation
func RecordRuleEvaluation(trigger, outcome string) {
	RuleEvaluationsTotal.WithLabelValues(trigger, outcome).Inc()
}

// RecordVerification records a KYC fact verification attempt
func RecordVerification(fact, result string) {
	VerificationsTotal.WithLabelValues(fact, result).Inc()
}
