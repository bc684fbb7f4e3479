// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package proxy

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes recorded by Metrics.Requests.
const (
	OutcomeNetwork  = "network"
	OutcomeCache    = "cache"
	OutcomeOffline  = "offline"
	OutcomeBypass   = "bypass"
	OutcomeRejected = "rejected"
)

// Metrics are the proxy's prometheus collectors.
type Metrics struct {
	Requests       *prometheus.CounterVec
	UpstreamErrors *prometheus.CounterVec
	Upstream       *prometheus.HistogramVec
	Purged         *prometheus.CounterVec
	Refreshes      prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "amt",
			Subsystem: "proxy",
			Name:      "requests_total",
			Help:      "Proxied requests by class and where the response came from.",
		}, []string{"class", "outcome"}),
		UpstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "amt",
			Subsystem: "proxy",
			Name:      "upstream_errors_total",
			Help:      "Upstream fetches that failed at the transport level.",
		}, []string{"class"}),
		Upstream: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "amt",
			Subsystem: "proxy",
			Name:      "upstream_duration_seconds",
			Help:      "Upstream fetch latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"class"}),
		Purged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "amt",
			Subsystem: "proxy",
			Name:      "cache_purged_total",
			Help:      "Cache entries removed by activation or pruning.",
		}, []string{"reason"}),
		Refreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "amt",
			Subsystem: "proxy",
			Name:      "background_refreshes_total",
			Help:      "Background refreshes of cached static assets.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Requests, m.UpstreamErrors, m.Upstream, m.Purged, m.Refreshes)
	}
	return m
}
