// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tripsplit"

var (
	NettingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "netting_duration_seconds",
		Help:      "Time spent computing net positions for a team.",
		Buckets:   prometheus.DefBuckets,
	})

	NetEdges = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "net_edges",
		Help:      "Number of edges returned by one netting computation.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	})

	SettledEntries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "settled_entries_total",
		Help:      "Ledger entries marked settled by settle-between.",
	})

	LedgerMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_mutations_total",
		Help:      "Ledger writes by operation.",
	}, []string{"operation"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})
)

// Handler exposes the default registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
