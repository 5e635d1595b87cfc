package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/stripe-gateway/internal/domain"
)

var (
	// TransactionsTotal counts engine results by operation and outcome.
	TransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_transactions_total",
			Help: "Total number of gateway transactions by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// ProviderCallDuration observes provider call latency per call site.
	ProviderCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_provider_call_duration_seconds",
			Help:    "Duration of payment provider calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "operation", "result"},
	)
)

func outcomeLabel(resp *domain.GatewayResponse) string {
	switch {
	case !resp.IsDeclined:
		return "approved"
	case resp.RemoteConnectionStatus == domain.ConnectionStatusReject:
		return "rejected"
	default:
		return "error"
	}
}

func recordTransaction(operation string, resp *domain.GatewayResponse) {
	TransactionsTotal.WithLabelValues(operation, outcomeLabel(resp)).Inc()
}

func observeProviderCall(providerName, operation string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	ProviderCallDuration.WithLabelValues(providerName, operation, result).Observe(time.Since(start).Seconds())
}
