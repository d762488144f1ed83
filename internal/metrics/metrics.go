// Package metrics holds the Prometheus collectors for the fetch path.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upstream call outcomes
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

type Metrics struct {
	RefetchedLocations prometheus.Counter
	UpstreamCalls      *prometheus.CounterVec
	InsertedNotices    prometheus.Counter
	CacheOnly          prometheus.Counter
	FetchDuration      prometheus.Histogram
	Interpretations    *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		RefetchedLocations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "notice_cache",
			Name:      "refetched_locations_total",
			Help:      "Locations judged due and refetched from upstream",
		}),
		UpstreamCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "notice_cache",
			Name:      "upstream_calls_total",
			Help:      "Upstream notice API calls by outcome",
		}, []string{"outcome"}),
		InsertedNotices: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "notice_cache",
			Name:      "inserted_notices_total",
			Help:      "Notices newly written to the store",
		}),
		CacheOnly: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "notice_cache",
			Name:      "cache_only_responses_total",
			Help:      "Fetch calls answered without an upstream call",
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "notice_cache",
			Name:      "fetch_duration_seconds",
			Help:      "Time spent in FetchOrFromCache",
			Buckets:   prometheus.DefBuckets,
		}),
		Interpretations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "notice_cache",
			Name:      "interpretations_total",
			Help:      "Summarizer interpretations by outcome",
		}, []string{"outcome"}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.RefetchedLocations, m.UpstreamCalls, m.InsertedNotices,
		m.CacheOnly, m.FetchDuration, m.Interpretations,
	)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
