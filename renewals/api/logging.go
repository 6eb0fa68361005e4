// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/absmach/certkeeper/renewals"
)

var _ renewals.Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    renewals.Service
}

// LoggingMiddleware adds logging facilities to the renewal service.
func LoggingMiddleware(svc renewals.Service, logger *slog.Logger) renewals.Service {
	return &loggingMiddleware{logger, svc}
}

func (lm *loggingMiddleware) ScheduleRenewals(ctx context.Context) (n int, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("scheduled", n),
		}
		if err != nil {
			args = append(args, slog.String("error", err.Error()))
			lm.logger.Warn("Schedule renewals failed", args...)
			return
		}
		lm.logger.Info("Schedule renewals completed successfully", args...)
	}(time.Now())

	return lm.svc.ScheduleRenewals(ctx)
}

func (lm *loggingMiddleware) ProcessRenewals(ctx context.Context) (n int, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("processed", n),
		}
		if err != nil {
			args = append(args, slog.String("error", err.Error()))
			lm.logger.Warn("Process renewals failed", args...)
			return
		}
		lm.logger.Info("Process renewals completed successfully", args...)
	}(time.Now())

	return lm.svc.ProcessRenewals(ctx)
}
