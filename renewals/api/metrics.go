// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"time"

	"github.com/absmach/certkeeper/renewals"
	"github.com/go-kit/kit/metrics"
)

var _ renewals.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     renewals.Service
}

// MetricsMiddleware instruments the renewal service by tracking
// pass count and latency.
func MetricsMiddleware(svc renewals.Service, counter metrics.Counter, latency metrics.Histogram) renewals.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) ScheduleRenewals(ctx context.Context) (int, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "schedule_renewals").Add(1)
		mm.latency.With("method", "schedule_renewals").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ScheduleRenewals(ctx)
}

func (mm *metricsMiddleware) ProcessRenewals(ctx context.Context) (int, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "process_renewals").Add(1)
		mm.latency.With("method", "process_renewals").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ProcessRenewals(ctx)
}
