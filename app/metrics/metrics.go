package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "media_report"

const (
	ResultSuccess   = "success"
	ResultFetch     = "fetch_error"
	ResultMalformed = "malformed"
	ResultError     = "error"
)

type Metrics struct {
	registry *prometheus.Registry

	FeedLoads    *prometheus.CounterVec
	ItemWarnings *prometheus.CounterVec
	FeedItems    *prometheus.GaugeVec
	ViewDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FeedLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_loads_total",
			Help:      "Feed loads by source and result.",
		}, []string{"source", "result"}),
		ItemWarnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "item_warnings_total",
			Help:      "Items dropped during normalization by source and warning kind.",
		}, []string{"source", "kind"}),
		FeedItems: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_items",
			Help:      "Items in the current feed of a source.",
		}, []string{"source"}),
		ViewDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "view_duration_seconds",
			Help:      "Time spent computing filtered views.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
		}, []string{"source"}),
	}

	m.registry.MustRegister(
		m.FeedLoads,
		m.ItemWarnings,
		m.FeedItems,
		m.ViewDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveLoad(source, result string) {
	m.FeedLoads.WithLabelValues(source, result).Inc()
}

func (m *Metrics) ObserveWarning(source, kind string) {
	m.ItemWarnings.WithLabelValues(source, kind).Inc()
}

func (m *Metrics) SetItems(source string, n int) {
	m.FeedItems.WithLabelValues(source).Set(float64(n))
}

func (m *Metrics) ObserveView(source string, started time.Time) {
	m.ViewDuration.WithLabelValues(source).Observe(time.Since(started).Seconds())
}

func (m *Metrics) Forget(source string) {
	m.FeedItems.DeleteLabelValues(source)
}
