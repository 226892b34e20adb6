// Package metrics exposes Prometheus counters for the expense service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"expensetracker/internal/classifier"
	"expensetracker/internal/core"
)

const namespace = "expensetracker"

type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	predictions *prometheus.CounterVec
	trainings   *prometheus.CounterVec
	trainedSize prometheus.Gauge

	transactions *prometheus.CounterVec
	alerts       prometheus.Counter
	cacheLookups *prometheus.CounterVec
	syncs        *prometheus.CounterVec
	rateLimited  prometheus.Counter
}

var _ classifier.Recorder = (*Metrics)(nil)

// New builds a Metrics with its own registry, including Go runtime collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route, method and status code",
			},
			[]string{"route", "method", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by route",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"route"},
		),
		predictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "classifier_predictions_total",
				Help:      "Category predictions by outcome and predicted category",
			},
			[]string{"outcome", "category_id"},
		),
		trainings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "classifier_trainings_total",
				Help:      "Model fits by corpus source and result",
			},
			[]string{"source", "result"},
		),
		trainedSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "classifier_training_examples",
				Help:      "Examples in the currently published model",
			},
		),
		transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_created_total",
				Help:      "Stored transactions by how the category was chosen",
			},
			[]string{"category_source"},
		),
		alerts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "budget_alerts_total",
				Help:      "Budget alerts raised",
			},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "report_cache_lookups_total",
				Help:      "Report cache lookups by result",
			},
			[]string{"result"},
		),
		syncs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mirror_syncs_total",
				Help:      "Spreadsheet mirror attempts by result",
			},
			[]string{"result"},
		),
		rateLimited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_rate_limited_total",
				Help:      "Requests rejected by the per-IP rate limiter",
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.predictions,
		m.trainings,
		m.trainedSize,
		m.transactions,
		m.alerts,
		m.cacheLookups,
		m.syncs,
		m.rateLimited,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) PredictionMade(category core.CategoryID, ok bool) {
	if !ok {
		m.predictions.WithLabelValues("none", "").Inc()
		return
	}
	m.predictions.WithLabelValues("predicted", strconv.Itoa(int(category))).Inc()
}

func (m *Metrics) ModelTrained(source string, examples int, ok bool) {
	if !ok {
		m.trainings.WithLabelValues(source, "failed").Inc()
		return
	}
	m.trainings.WithLabelValues(source, "ok").Inc()
	m.trainedSize.Set(float64(examples))
}

func (m *Metrics) TransactionCreated(autoCategory bool) {
	source := "explicit"
	if autoCategory {
		source = "auto"
	}
	m.transactions.WithLabelValues(source).Inc()
}

func (m *Metrics) BudgetAlertRaised() {
	m.alerts.Inc()
}

func (m *Metrics) CacheLookup(hit bool) {
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

func (m *Metrics) MirrorSynced(ok bool) {
	if ok {
		m.syncs.WithLabelValues("ok").Inc()
		return
	}
	m.syncs.WithLabelValues("error").Inc()
}

func (m *Metrics) RequestRateLimited() {
	m.rateLimited.Inc()
}

// Instrument wraps h so its requests are counted under route.
func (m *Metrics) Instrument(route string, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(sw, r)
		m.httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(sw.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
