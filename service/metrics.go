// Copyright (C) 2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package service

import (
	"context"

	"github.com/luxfi/badge"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks API and registry activity.
type Metrics struct {
	approveMintRequests       prometheus.Counter
	approveInvalidateRequests prometheus.Counter
	failedRequests            prometheus.Counter
	badgesIssued              prometheus.Counter
	badgesInvalidated         prometheus.Counter
	approvalLatencyMS         prometheus.Histogram
}

// NewMetrics registers and returns the service metrics.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := Metrics{
		approveMintRequests: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "approve_mint_requests",
				Help: "Number of mint approval requests",
			},
		),
		approveInvalidateRequests: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "approve_invalidate_requests",
				Help: "Number of invalidation approval requests",
			},
		),
		failedRequests: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "failed_requests",
				Help: "Number of API requests that returned an error",
			},
		),
		badgesIssued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "badges_issued",
				Help: "Number of badges issued",
			},
		),
		badgesInvalidated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "badges_invalidated",
				Help: "Number of badges invalidated",
			},
		),
		approvalLatencyMS: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "approval_latency_ms",
				Help:    "Latency of approval requests in milliseconds",
				Buckets: prometheus.ExponentialBucketsRange(1, 1000, 10),
			},
		),
	}
	registerer.MustRegister(m.approveMintRequests)
	registerer.MustRegister(m.approveInvalidateRequests)
	registerer.MustRegister(m.failedRequests)
	registerer.MustRegister(m.badgesIssued)
	registerer.MustRegister(m.badgesInvalidated)
	registerer.MustRegister(m.approvalLatencyMS)

	return &m
}

var _ badge.Acceptor = (*metricsAcceptor)(nil)

// metricsAcceptor bridges ledger events into counters
type metricsAcceptor struct {
	metrics *Metrics
}

// Acceptor returns an event acceptor that counts issuance and invalidation
// events.
func (m *Metrics) Acceptor() badge.Acceptor {
	return &metricsAcceptor{metrics: m}
}

func (a *metricsAcceptor) Accept(_ context.Context, e badge.Event) error {
	switch e.(type) {
	case badge.BadgeIssuedEvent:
		a.metrics.badgesIssued.Inc()
	case badge.BadgeInvalidatedEvent:
		a.metrics.badgesInvalidated.Inc()
	}
	return nil
}
