package metrics

import "github.com/prometheus/client_golang/prometheus"

// Marketplace fallback Prometheus metrics.
var (
	MarketplaceRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medfind",
			Name:      "marketplace_requests_total",
			Help:      "Total number of marketplace Browse API calls",
		},
		[]string{"kind", "status"}, // kind: "category" / "general", status: "success" / "error"
	)

	MarketplaceTokenRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medfind",
			Name:      "marketplace_token_refresh_total",
			Help:      "Total number of OAuth token refresh attempts",
		},
		[]string{"status"},
	)

	FallbackTriggeredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medfind",
			Name:      "fallback_triggered_total",
			Help:      "Reconcile decisions to call the live marketplace",
		},
		[]string{"reason"}, // "no_local_results" / "low_confidence"
	)
)

var mktMetricsRegistered bool

// RegisterMarketplaceMetrics registers marketplace metrics. Must be called once from main.
func RegisterMarketplaceMetrics() {
	if mktMetricsRegistered {
		return
	}
	prometheus.MustRegister(MarketplaceRequestsTotal)
	prometheus.MustRegister(MarketplaceTokenRefreshTotal)
	prometheus.MustRegister(FallbackTriggeredTotal)
	mktMetricsRegistered = true
}
