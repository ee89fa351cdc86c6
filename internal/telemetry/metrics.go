package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "symptom2disease"

// Prediction outcomes.
const (
	OutcomeOK         = "ok"
	OutcomeInputError = "input_error"
	OutcomeError      = "error"
)

// Metrics owns a private registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	predictions     *prometheus.CounterVec
	unknownSymptoms prometheus.Counter
	topProbability  prometheus.Histogram
	bundle          *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"method", "route", "status"}),

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"route"}),

		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "predict",
			Name:      "requests_total",
			Help:      "Prediction requests by outcome",
		}, []string{"outcome"}), // ok, input_error, error

		unknownSymptoms: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "predict",
			Name:      "unknown_symptoms_total",
			Help:      "Submitted symptoms missing from the vocabulary",
		}),

		topProbability: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "predict",
			Name:      "top_probability",
			Help:      "Probability of the highest ranked disease",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}),

		bundle: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bundle_info",
			Help:      "Loaded model bundle; the value is the vocabulary size",
		}, []string{"version", "model_kind"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestDuration,
		m.predictions,
		m.unknownSymptoms,
		m.topProbability,
		m.bundle,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObservePrediction records one prediction request. top is ignored unless
// the outcome is OutcomeOK.
func (m *Metrics) ObservePrediction(outcome string, unknown int, top float64) {
	m.predictions.WithLabelValues(outcome).Inc()
	if outcome != OutcomeOK {
		return
	}
	m.unknownSymptoms.Add(float64(unknown))
	m.topProbability.Observe(top)
}

// SetBundle publishes the loaded bundle identity.
func (m *Metrics) SetBundle(version, kind string, vocabulary int) {
	m.bundle.Reset()
	m.bundle.WithLabelValues(version, kind).Set(float64(vocabulary))
}
