package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Simplici0/voltquote/internal/quote"
)

// Metrics holds the quote engine's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	quotesTotal   *prometheus.CounterVec
	reviewTotal   prometheus.Counter
	clampsTotal   *prometheus.CounterVec
	blendedMargin prometheus.Histogram
	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		quotesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voltquote_quotes_total",
			Help: "Quotes built, by industry.",
		}, []string{"industry"}),
		reviewTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voltquote_quotes_review_total",
			Help: "Quotes flagged for human review or failing quote-level guards.",
		}),
		clampsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voltquote_margin_clamps_total",
			Help: "Margin clamp events, by reason.",
		}, []string{"reason"}),
		blendedMargin: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "voltquote_blended_margin_ratio",
			Help:    "Blended margin of built quotes.",
			Buckets: []float64{0, 0.02, 0.05, 0.08, 0.10, 0.12, 0.15, 0.20, 0.25, 0.30, 0.35},
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voltquote_policy_cache_hits_total",
			Help: "Policy snapshot cache hits.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voltquote_policy_cache_misses_total",
			Help: "Policy snapshot cache misses.",
		}),
	}

	m.registry.MustRegister(
		m.quotesTotal,
		m.reviewTotal,
		m.clampsTotal,
		m.blendedMargin,
		m.cacheHits,
		m.cacheMisses,
	)
	return m
}

// ObserveQuote records one built quote.
func (m *Metrics) ObserveQuote(q quote.Quote) {
	if m == nil {
		return
	}
	m.quotesTotal.WithLabelValues(q.Inputs.Industry).Inc()
	if q.NeedsReview() {
		m.reviewTotal.Inc()
	}
	for _, ev := range q.Pricing.ClampEvents {
		m.clampsTotal.WithLabelValues(string(ev.Reason)).Inc()
	}
	if len(q.Pricing.LineItems) > 0 {
		m.blendedMargin.Observe(q.Pricing.BlendedMargin)
	}
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
