// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"time"

	"github.com/absmach/certkeeper/certs"
	"github.com/go-kit/kit/metrics"
)

var _ certs.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     certs.Service
}

// MetricsMiddleware instruments the certificate service by tracking
// request count and latency.
func MetricsMiddleware(svc certs.Service, counter metrics.Counter, latency metrics.Histogram) certs.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) IssueCert(ctx context.Context, deviceID string, info certs.DeviceInfo, template string) (certs.Bundle, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "issue_cert").Add(1)
		mm.latency.With("method", "issue_cert").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.IssueCert(ctx, deviceID, info, template)
}

func (mm *metricsMiddleware) IssueBulk(ctx context.Context, reqs []certs.IssueRequest) (certs.BulkResult, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "issue_bulk").Add(1)
		mm.latency.With("method", "issue_bulk").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.IssueBulk(ctx, reqs)
}

func (mm *metricsMiddleware) ViewCert(ctx context.Context, serial string) (certs.Cert, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "view_cert").Add(1)
		mm.latency.With("method", "view_cert").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ViewCert(ctx, serial)
}

func (mm *metricsMiddleware) ListCerts(ctx context.Context, deviceID string, pm certs.PageMetadata) (certs.Page, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list_certs").Add(1)
		mm.latency.With("method", "list_certs").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ListCerts(ctx, deviceID, pm)
}

func (mm *metricsMiddleware) ListExpiring(ctx context.Context, days uint, pm certs.PageMetadata) (certs.Page, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list_expiring").Add(1)
		mm.latency.With("method", "list_expiring").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ListExpiring(ctx, days, pm)
}

func (mm *metricsMiddleware) Reissue(ctx context.Context, serial string) (certs.Bundle, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "reissue").Add(1)
		mm.latency.With("method", "reissue").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Reissue(ctx, serial)
}

func (mm *metricsMiddleware) RevokeCert(ctx context.Context, serial string, reason certs.RevocationReason) (certs.Revoke, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "revoke_cert").Add(1)
		mm.latency.With("method", "revoke_cert").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.RevokeCert(ctx, serial, reason)
}

func (mm *metricsMiddleware) GenerateCRL(ctx context.Context) ([]byte, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "generate_crl").Add(1)
		mm.latency.With("method", "generate_crl").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.GenerateCRL(ctx)
}

func (mm *metricsMiddleware) ViewCRL(ctx context.Context) ([]byte, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "view_crl").Add(1)
		mm.latency.With("method", "view_crl").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ViewCRL(ctx)
}

func (mm *metricsMiddleware) ViewCA(ctx context.Context) ([]byte, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "view_ca").Add(1)
		mm.latency.With("method", "view_ca").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ViewCA(ctx)
}

func (mm *metricsMiddleware) DeviceStatus(ctx context.Context, deviceID string) (certs.DeviceStatus, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "device_status").Add(1)
		mm.latency.With("method", "device_status").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.DeviceStatus(ctx, deviceID)
}
