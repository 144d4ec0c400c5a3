// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package distributed

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace     = "harmonics"
	collectivesSubsystem = "collectives"
)

// Metrics holds prometheus collectors for the traffic of collectives.
//
// Create it with NewMetrics and attach it to groups with Instrument. The same Metrics can be shared by all the
// groups of all the ranks of a process.
type Metrics struct {
	callsTotal      *prometheus.CounterVec
	bytesSentTotal  *prometheus.CounterVec
	durationSeconds *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
// Use a custom prometheus.NewRegistry() to avoid conflicts with the global registry.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		callsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: collectivesSubsystem,
				Name:      "all_gather_calls_total",
				Help:      "Total number of all-gather calls by group and status",
			},
			[]string{"group", "status"},
		),
		bytesSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: collectivesSubsystem,
				Name:      "all_gather_sent_bytes_total",
				Help:      "Total bytes contributed to all-gather calls by group",
			},
			[]string{"group"},
		),
		durationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: collectivesSubsystem,
				Name:      "all_gather_duration_seconds",
				Help:      "Time blocked in all-gather calls, including waiting for peers",
				Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 10),
			},
			[]string{"group"},
		),
	}
	for _, c := range []prometheus.Collector{m.callsTotal, m.bytesSentTotal, m.durationSeconds} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "failed to register collective metrics")
		}
	}
	return m, nil
}

// Instrument returns a Group that forwards to g and records its traffic under the given group label
// (e.g. "row" or "column"). If m is nil, g is returned unchanged.
func Instrument(g Group, m *Metrics, label string) Group {
	if m == nil || g == nil {
		return g
	}
	return &instrumentedGroup{Group: g, metrics: m, label: label}
}

type instrumentedGroup struct {
	Group
	metrics *Metrics
	label   string
}

// AllGather implements Group.
func (g *instrumentedGroup) AllGather(local []float64) ([][]float64, error) {
	start := time.Now()
	parts, err := g.Group.AllGather(local)
	g.metrics.durationSeconds.WithLabelValues(g.label).Observe(time.Since(start).Seconds())
	status := "ok"
	if err != nil {
		status = "error"
	}
	g.metrics.callsTotal.WithLabelValues(g.label, status).Inc()
	g.metrics.bytesSentTotal.WithLabelValues(g.label).Add(float64(8 * len(local)))
	return parts, err
}
