// Package metrics exports worker counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mosaic"

// Job outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Collector holds the metrics of one worker. A nil *Collector records
// nothing.
type Collector struct {
	jobsTotal      *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	tilesTotal     prometheus.Counter
	bytesReceived  prometheus.Counter
	imagesReceived *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
}

// New creates a Collector and registers it with reg. A nil reg leaves the
// metrics unregistered.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		jobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_total",
				Help:      "Total number of mosaic jobs by outcome",
			},
			[]string{"outcome"},
		),
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Duration of mosaic jobs from process to terminal reply",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"outcome"},
		),
		tilesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tiles_total",
				Help:      "Total number of tiles matched and composited",
			},
		),
		bytesReceived: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "received_bytes_total",
				Help:      "Total uncompressed image bytes received in chunks",
			},
		),
		imagesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "received_images_total",
				Help:      "Total number of fully reassembled images",
			},
			[]string{"role"}, // role: target, pool
		),
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of error replies by kind",
			},
			[]string{"kind"},
		),
	}
	if reg != nil {
		reg.MustRegister(c.jobsTotal, c.jobDuration, c.tilesTotal, c.bytesReceived, c.imagesReceived, c.errorsTotal)
	}
	return c
}

// JobFinished records a terminal reply.
func (c *Collector) JobFinished(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.jobsTotal.WithLabelValues(outcome).Inc()
	c.jobDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// Tiles adds n processed tiles.
func (c *Collector) Tiles(n int) {
	if c == nil {
		return
	}
	c.tilesTotal.Add(float64(n))
}

// Received records n bytes written by a chunk.
func (c *Collector) Received(n int) {
	if c == nil {
		return
	}
	c.bytesReceived.Add(float64(n))
}

// ImageComplete records a reassembled image; role is "target" or "pool".
func (c *Collector) ImageComplete(role string) {
	if c == nil {
		return
	}
	c.imagesReceived.WithLabelValues(role).Inc()
}

// Error records an error reply of the given kind.
func (c *Collector) Error(kind string) {
	if c == nil {
		return
	}
	c.errorsTotal.WithLabelValues(kind).Inc()
}
