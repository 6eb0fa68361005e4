// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/absmach/certkeeper/monitoring"
)

var _ monitoring.Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    monitoring.Service
}

// LoggingMiddleware adds logging facilities to the monitoring service.
func LoggingMiddleware(svc monitoring.Service, logger *slog.Logger) monitoring.Service {
	return &loggingMiddleware{logger, svc}
}

func (lm *loggingMiddleware) CreateAlert(ctx context.Context, alert monitoring.Alert) (a monitoring.Alert, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("alert_type", alert.Type.String()),
			slog.String("severity", alert.Severity.String()),
			slog.String("serial_number", alert.SerialNumber),
		}
		if err != nil {
			args = append(args, slog.String("error", err.Error()))
			lm.logger.Warn("Create alert failed", args...)
			return
		}
		lm.logger.Info("Create alert completed successfully", args...)
	}(time.Now())

	return lm.svc.CreateAlert(ctx, alert)
}

func (lm *loggingMiddleware) ListAlerts(ctx context.Context, pm monitoring.PageMetadata) (p monitoring.AlertsPage, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("total", p.Total),
		}
		if err != nil {
			args = append(args, slog.String("error", err.Error()))
			lm.logger.Warn("List alerts failed", args...)
			return
		}
		lm.logger.Info("List alerts completed successfully", args...)
	}(time.Now())

	return lm.svc.ListAlerts(ctx, pm)
}

func (lm *loggingMiddleware) AcknowledgeAlert(ctx context.Context, id string) (a monitoring.Alert, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("alert_id", id),
		}
		if err != nil {
			args = append(args, slog.String("error", err.Error()))
			lm.logger.Warn("Acknowledge alert failed", args...)
			return
		}
		lm.logger.Info("Acknowledge alert completed successfully", args...)
	}(time.Now())

	return lm.svc.AcknowledgeAlert(ctx, id)
}

func (lm *loggingMiddleware) Scan(ctx context.Context) (s monitoring.ScanSummary, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("total", s.Total),
			slog.Uint64("alerts_raised", s.AlertsRaised),
		}
		if err != nil {
			args = append(args, slog.String("error", err.Error()))
			lm.logger.Warn("Health scan failed", args...)
			return
		}
		lm.logger.Info("Health scan completed successfully", args...)
	}(time.Now())

	return lm.svc.Scan(ctx)
}

func (lm *loggingMiddleware) LastScan(ctx context.Context) (monitoring.ScanSummary, error) {
	return lm.svc.LastScan(ctx)
}

func (lm *loggingMiddleware) StartScheduler(ctx context.Context) error {
	return lm.svc.StartScheduler(ctx)
}
