// Package metrics exposes publish pipeline metrics to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blacktop/threadpost/internal/threads"
)

// Label values for inputs outside the known enumerations.
const (
	InvalidMediaType = "invalid"
	UnknownStatus    = "unknown"
)

// Collector implements threads.Observer with Prometheus metrics registered on
// its own registry.
type Collector struct {
	registry          *prometheus.Registry
	composeTotal      *prometheus.CounterVec
	composeDuration   *prometheus.HistogramVec
	containerPolls    *prometheus.CounterVec
	containersCreated *prometheus.CounterVec
}

var _ threads.Observer = (*Collector)(nil)

// NewCollector creates a Collector with Go runtime and process metrics.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		composeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "threadpost_compose_total",
				Help: "Total number of compose calls by media type and outcome",
			},
			[]string{"media_type", "outcome"},
		),
		composeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "threadpost_compose_duration_seconds",
				Help:    "Wall time of compose calls",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 40},
			},
			[]string{"media_type"},
		),
		containerPolls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "threadpost_container_polls_total",
				Help: "Container status reads by observed status",
			},
			[]string{"status"},
		),
		containersCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "threadpost_containers_created_total",
				Help: "Containers created by kind (item or outer)",
			},
			[]string{"kind"},
		),
	}
	reg.MustRegister(
		c.composeTotal,
		c.composeDuration,
		c.containerPolls,
		c.containersCreated,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// ContainerCreated counts a created container.
func (c *Collector) ContainerCreated(kind string) {
	c.containersCreated.WithLabelValues(kind).Inc()
}

// ContainerPolled counts a status read.
func (c *Collector) ContainerPolled(status threads.ContainerStatus) {
	c.containerPolls.WithLabelValues(statusLabel(status)).Inc()
}

// ComposeFinished records the outcome and duration of a compose call.
func (c *Collector) ComposeFinished(mediaType threads.MediaType, code string, elapsed time.Duration) {
	label := string(mediaType)
	if !mediaType.Valid() {
		label = InvalidMediaType
	}
	c.composeTotal.WithLabelValues(label, code).Inc()
	c.composeDuration.WithLabelValues(label).Observe(elapsed.Seconds())
}

func statusLabel(s threads.ContainerStatus) string {
	if s == threads.StatusInProgress || s.Terminal() {
		return string(s)
	}
	return UnknownStatus
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
