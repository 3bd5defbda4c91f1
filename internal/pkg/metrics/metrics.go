package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_operations_total",
		Help: "Ledger operations processed, by operation and outcome",
	}, []string{"op", "status"})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arena_latency_seconds",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	TradesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_trades_total",
		Help: "Trade results recorded across all agents",
	})

	Rejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_rejections_total",
		Help: "Operations rejected by the ledger, by error code",
	}, []string{"reason"})

	RiskBreaches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_risk_breaches_total",
		Help: "Recorded trades that exceeded an agent's declared limits",
	}, []string{"kind"})

	VaultBalance = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arena_vault_balance",
		Help: "Vault balance in lamports after the last operation",
	}, []string{"agent"})
)
