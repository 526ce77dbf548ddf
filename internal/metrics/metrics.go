package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	StoreRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal", Name: "store_requests_total", Help: "Record store requests by method and outcome",
	}, []string{"method", "outcome"})
	StoreLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "portal", Name: "store_request_seconds", Help: "Record store request latency",
		Buckets: prometheus.DefBuckets,
	})
	CacheRefreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal", Name: "cache_refreshes_total", Help: "Cache list refreshes by cache and outcome",
	}, []string{"cache", "outcome"})
	CacheMutations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal", Name: "cache_mutations_total", Help: "Cache mutations by cache, operation and outcome",
	}, []string{"cache", "op", "outcome"})
)

func init() {
	prometheus.MustRegister(StoreRequests, StoreLatency, CacheRefreshes, CacheMutations)
}

func Handler() http.Handler { return promhttp.Handler() }

func ObserveStore(method string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	StoreRequests.WithLabelValues(method, outcome).Inc()
	StoreLatency.Observe(time.Since(start).Seconds())
}
