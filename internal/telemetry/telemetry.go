// Package telemetry exposes Prometheus instruments for the server.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sentinel"

// Instruments groups the server's Prometheus collectors on a private registry.
type Instruments struct {
	registry *prometheus.Registry

	uploads          *prometheus.CounterVec
	analyses         *prometheus.CounterVec
	analysisDuration prometheus.Histogram
	anomalies        *prometheus.CounterVec
	pushMessages     *prometheus.CounterVec
}

// New creates and registers the instruments.
func New() *Instruments {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	i := &Instruments{
		registry: reg,
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Uploads received, by result.",
		}, []string{"result"}),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Finished analyses, by final upload status.",
		}, []string{"status"}),
		analysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Time spent analyzing one upload.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_total",
			Help:      "Anomalies detected, by severity.",
		}, []string{"severity"}),
		pushMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_messages_total",
			Help:      "Messages broadcast on the push channel, by type.",
		}, []string{"type"}),
	}
	reg.MustRegister(i.uploads, i.analyses, i.analysisDuration, i.anomalies, i.pushMessages)
	return i
}

// RegisterClientGauge exposes the number of connected push clients through fn.
func (i *Instruments) RegisterClientGauge(fn func() int) {
	i.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "push_clients",
		Help:      "Connected push channel clients.",
	}, func() float64 { return float64(fn()) }))
}

func (i *Instruments) UploadReceived(result string) {
	i.uploads.WithLabelValues(result).Inc()
}

func (i *Instruments) AnalysisFinished(status string, elapsed time.Duration) {
	i.analyses.WithLabelValues(status).Inc()
	i.analysisDuration.Observe(elapsed.Seconds())
}

func (i *Instruments) AnomalyDetected(severity string) {
	i.anomalies.WithLabelValues(severity).Inc()
}

func (i *Instruments) MessageBroadcast(msgType string) {
	i.pushMessages.WithLabelValues(msgType).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (i *Instruments) Handler() http.Handler {
	return promhttp.HandlerFor(i.registry, promhttp.HandlerOpts{Registry: i.registry})
}

// Registry returns the underlying registry.
func (i *Instruments) Registry() *prometheus.Registry {
	return i.registry
}
