package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "orders"

const (
	CacheHit    = "hit"
	CacheMiss   = "miss"
	CacheError  = "error"
	OutcomeOK   = "ok"
	OutcomeFail = "fail"
)

var (
	CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "requests_total",
		Help:      "Read-cache lookups by result (hit, miss, error).",
	}, []string{"result"})

	CacheInvalidationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "invalidation_failures_total",
		Help:      "Invalidate calls that could not reach the cache backend.",
	})

	Operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Order and product mutations by operation and outcome.",
	}, []string{"op", "outcome"})

	EventsReplayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "invalidator",
		Name:      "events_total",
		Help:      "Order events consumed by the invalidation replayer.",
	}, []string{"event_type", "outcome"})
)

func Handler() http.Handler { return promhttp.Handler() }

func ObserveOp(op string, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeFail
	}
	Operations.WithLabelValues(op, outcome).Inc()
}
