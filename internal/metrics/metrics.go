package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "newsinsight"

// Metrics holds the process collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ingestRuns        *prometheus.CounterVec
	ingestUsers       *prometheus.CounterVec
	articlesStored    *prometheus.CounterVec
	analyses          *prometheus.CounterVec
	ingestRunDuration prometheus.Histogram
	digestsSent       *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ingestRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_runs_total",
			Help:      "Ingestion runs by outcome.",
		}, []string{"outcome"}),
		ingestUsers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_users_total",
			Help:      "Users processed by ingestion, by result.",
		}, []string{"result"}),
		articlesStored: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_stored_total",
			Help:      "Articles upserted by ingestion, by source.",
		}, []string{"source"}),
		analyses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Language-model analyses by result (parsed or fallback reason).",
		}, []string{"result"}),
		ingestRunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_run_duration_seconds",
			Help:      "Wall time of one ingestion run.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		digestsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "digests_total",
			Help:      "Telegram digests by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) IngestRun(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.ingestRuns.WithLabelValues(outcome).Inc()
	m.ingestRunDuration.Observe(seconds)
}

func (m *Metrics) IngestUser(result string) {
	if m == nil {
		return
	}
	m.ingestUsers.WithLabelValues(result).Inc()
}

func (m *Metrics) ArticleStored(source string) {
	if m == nil {
		return
	}
	m.articlesStored.WithLabelValues(source).Inc()
}

func (m *Metrics) Analysis(result string) {
	if m == nil {
		return
	}
	m.analyses.WithLabelValues(result).Inc()
}

func (m *Metrics) Digest(outcome string) {
	if m == nil {
		return
	}
	m.digestsSent.WithLabelValues(outcome).Inc()
}
