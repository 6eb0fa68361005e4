// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/absmach/certkeeper/certs"
)

var _ certs.Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    certs.Service
}

// LoggingMiddleware adds logging facilities to the certificate service.
func LoggingMiddleware(svc certs.Service, logger *slog.Logger) certs.Service {
	return &loggingMiddleware{logger, svc}
}

func (lm *loggingMiddleware) IssueCert(ctx context.Context, deviceID string, info certs.DeviceInfo, template string) (b certs.Bundle, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("device_id", deviceID),
			slog.String("template", template),
		}
		if err != nil {
			args = append(args, slog.String("error", err.Error()))
			lm.logger.Warn("Issue certificate failed", args...)
			return
		}
		args = append(args, slog.String("serial_number", b.SerialNumber))
		lm.logger.Info("Issue certificate completed successfully", args...)
	}(time.Now())

	return lm.svc.IssueCert(ctx, deviceID, info, template)
}

func (lm *loggingMiddleware) IssueBulk(ctx context.Context, reqs []certs.IssueRequest) (res certs.BulkResult, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("requested", len(reqs)),
			slog.Int("issued", len(res.Issued)),
			slog.Int("failed", len(res.Failed)),
		}
		if err != nil {
			args = append(args, slog.String("error", err.Error()))
			lm.logger.Warn("Bulk issue failed", args...)
			return
		}
		lm.logger.Info("Bulk issue completed", args...)
	}(time.Now())

	return lm.svc.IssueBulk(ctx, reqs)
}

func (lm *loggingMiddleware) ViewCert(ctx context.Context, serial string) (c certs.Cert, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("serial_number", serial),
		}
		if err != nil {
			args = append(args, slog.String("error", err.Error()))
			lm.logger.Warn("View certificate failed", args...)
			return
		}
		lm.logger.Info("View certificate completed successfully", args...)
	}(time.Now())

	return lm.svc.ViewCert(ctx, serial)
}

func (lm *loggingMiddleware) ListCerts(ctx context.Context, deviceID string, pm certs.PageMetadata) (p certs.Page, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("device_id", deviceID),
			slog.Group("page",
				slog.Uint64("offset", pm.Offset),
				slog.Uint64("limit", pm.Limit),
				slog.Uint64("total", p.Total),
			),
		}
		if err != nil {
			args = append(args, slog.String("error", err.Error()))
			lm.logger.Warn("List certificates failed", args...)
			return
		}
		lm.logger.Info("List certificates completed successfully", args...)
	}(time.Now())

	return lm.svc.ListCerts(ctx, deviceID, pm)
}

func (lm *loggingMiddleware) ListExpiring(ctx context.Context, days uint, pm certs.PageMetadata) (p certs.Page, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("days", uint64(days)),
			slog.Uint64("total", p.Total),
		}
		if err != nil {
			args = append(args, slog.String("error", err.Error()))
			lm.logger.Warn("List expiring certificates failed", args...)
			return
		}
		lm.logger.Info("List expiring certificates completed successfully", args...)
	}(time.Now())

	return lm.svc.ListExpiring(ctx, days, pm)
}

func (lm *loggingMiddleware) Reissue(ctx context.Context, serial string) (b certs.Bundle, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("old_serial_number", serial),
		}
		if err != nil {
			args = append(args, slog.String("error", err.Error()))
			lm.logger.Warn("Reissue certificate failed", args...)
			return
		}
		args = append(args, slog.String("serial_number", b.SerialNumber))
		lm.logger.Info("Reissue certificate completed successfully", args...)
	}(time.Now())

	return lm.svc.Reissue(ctx, serial)
}

func (lm *loggingMiddleware) RevokeCert(ctx context.Context, serial string, reason certs.RevocationReason) (r certs.Revoke, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("serial_number", serial),
			slog.String("reason", reason.String()),
		}
		if err != nil {
			args = append(args, slog.String("error", err.Error()))
			lm.logger.Warn("Revoke certificate failed", args...)
			return
		}
		lm.logger.Info("Revoke certificate completed successfully", args...)
	}(time.Now())

	return lm.svc.RevokeCert(ctx, serial, reason)
}

func (lm *loggingMiddleware) GenerateCRL(ctx context.Context) (crl []byte, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.String("error", err.Error()))
			lm.logger.Warn("Generate CRL failed", args...)
			return
		}
		lm.logger.Info("Generate CRL completed successfully", args...)
	}(time.Now())

	return lm.svc.GenerateCRL(ctx)
}

func (lm *loggingMiddleware) ViewCRL(ctx context.Context) ([]byte, error) {
	return lm.svc.ViewCRL(ctx)
}

func (lm *loggingMiddleware) ViewCA(ctx context.Context) ([]byte, error) {
	return lm.svc.ViewCA(ctx)
}

func (lm *loggingMiddleware) DeviceStatus(ctx context.Context, deviceID string) (ds certs.DeviceStatus, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("device_id", deviceID),
		}
		if err != nil {
			args = append(args, slog.String("error", err.Error()))
			lm.logger.Warn("Device status failed", args...)
			return
		}
		lm.logger.Info("Device status completed successfully", args...)
	}(time.Now())

	return lm.svc.DeviceStatus(ctx, deviceID)
}
