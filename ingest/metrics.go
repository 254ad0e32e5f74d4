package ingest

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts ingestion progress on a private registry. A nil *Metrics
// records nothing.
type Metrics struct {
	Registry   *prometheus.Registry
	Seeds      *prometheus.CounterVec
	Timepoints prometheus.Counter
	Cells      prometheus.Counter
	SeedTime   prometheus.Histogram
}

// NewMetrics creates and registers the ingestion collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Seeds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tumorsnap",
			Subsystem: "ingest",
			Name:      "seeds_total",
			Help:      "Seed files seen, by result (decoded, excluded, failed).",
		}, []string{"result"}),
		Timepoints: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tumorsnap",
			Subsystem: "ingest",
			Name:      "timepoints_total",
			Help:      "Timepoints decoded.",
		}),
		Cells: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tumorsnap",
			Subsystem: "ingest",
			Name:      "cells_total",
			Help:      "Cell records written into snapshot arrays.",
		}),
		SeedTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tumorsnap",
			Subsystem: "ingest",
			Name:      "seed_decode_seconds",
			Help:      "Wall time to decode one seed.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}
	m.Registry.MustRegister(m.Seeds, m.Timepoints, m.Cells, m.SeedTime)
	return m
}

func (m *Metrics) seed(result string) {
	if m == nil {
		return
	}
	m.Seeds.WithLabelValues(result).Inc()
}

func (m *Metrics) decoded(timepoints, cells int, seconds float64) {
	if m == nil {
		return
	}
	m.Seeds.WithLabelValues("decoded").Inc()
	m.Timepoints.Add(float64(timepoints))
	m.Cells.Add(float64(cells))
	m.SeedTime.Observe(seconds)
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}
