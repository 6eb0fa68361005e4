// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"time"

	"github.com/absmach/certkeeper/monitoring"
	"github.com/go-kit/kit/metrics"
)

var _ monitoring.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     monitoring.Service
}

// MetricsMiddleware instruments the monitoring service by tracking
// request count and latency.
func MetricsMiddleware(svc monitoring.Service, counter metrics.Counter, latency metrics.Histogram) monitoring.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) CreateAlert(ctx context.Context, alert monitoring.Alert) (monitoring.Alert, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "create_alert").Add(1)
		mm.latency.With("method", "create_alert").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.CreateAlert(ctx, alert)
}

func (mm *metricsMiddleware) ListAlerts(ctx context.Context, pm monitoring.PageMetadata) (monitoring.AlertsPage, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list_alerts").Add(1)
		mm.latency.With("method", "list_alerts").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ListAlerts(ctx, pm)
}

func (mm *metricsMiddleware) AcknowledgeAlert(ctx context.Context, id string) (monitoring.Alert, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "acknowledge_alert").Add(1)
		mm.latency.With("method", "acknowledge_alert").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.AcknowledgeAlert(ctx, id)
}

func (mm *metricsMiddleware) Scan(ctx context.Context) (monitoring.ScanSummary, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "scan").Add(1)
		mm.latency.With("method", "scan").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Scan(ctx)
}

func (mm *metricsMiddleware) LastScan(ctx context.Context) (monitoring.ScanSummary, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "last_scan").Add(1)
		mm.latency.With("method", "last_scan").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.LastScan(ctx)
}

func (mm *metricsMiddleware) StartScheduler(ctx context.Context) error {
	return mm.svc.StartScheduler(ctx)
}
