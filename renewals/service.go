// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package renewals

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/absmach/certkeeper"
	"github.com/absmach/certkeeper/certs"
	"github.com/absmach/certkeeper/monitoring"
	"github.com/absmach/certkeeper/pkg/errors"
	pkglog "github.com/absmach/certkeeper/pkg/logger"
)

const schedulePageSize = uint64(500)

var (
	// ErrFailedScheduling indicates an aborted scheduling pass.
	ErrFailedScheduling = errors.New("failed to schedule certificate renewals")

	// ErrFailedProcessing indicates an aborted processing pass.
	ErrFailedProcessing = errors.New("failed to process renewal jobs")
)

// Config holds the auto-renewal settings.
type Config struct {
	Enabled         bool          `env:"AUTO_RENEWAL_ENABLED"          envDefault:"true"`
	CheckInterval   time.Duration `env:"AUTO_RENEWAL_CHECK_INTERVAL"   envDefault:"24h"`
	ProcessInterval time.Duration `env:"AUTO_RENEWAL_PROCESS_INTERVAL" envDefault:"1h"`
	ThresholdDays   uint          `env:"AUTO_RENEWAL_THRESHOLD_DAYS"   envDefault:"30"`
	RevokeOld       bool          `env:"AUTO_RENEWAL_REVOKE_OLD"       envDefault:"true"`
	MaxAttempts     uint          `env:"AUTO_RENEWAL_MAX_ATTEMPTS"     envDefault:"3"`
}

// Service specifies the renewal scheduling API.
type Service interface {
	// ScheduleRenewals creates or refreshes a renewal job for every
	// active certificate inside the renewal window. It is idempotent:
	// a device with an outstanding job gets that job updated, never a
	// second one. Returns the number of jobs scheduled.
	ScheduleRenewals(ctx context.Context) (int, error)

	// ProcessRenewals drains pending jobs in strict priority order,
	// sequentially. Returns the number of jobs brought to a terminal
	// state.
	ProcessRenewals(ctx context.Context) (int, error)
}

var _ Service = (*renewalsService)(nil)

type renewalsService struct {
	repo    Repository
	certs   certs.Service
	alerts  monitoring.Service
	idp     certkeeper.IDProvider
	runInfo chan pkglog.RunInfo
	cfg     Config
}

// New instantiates the renewal scheduling service.
func New(repo Repository, certsSvc certs.Service, alerts monitoring.Service, idp certkeeper.IDProvider, runInfo chan pkglog.RunInfo, cfg Config) Service {
	return &renewalsService{
		repo:    repo,
		certs:   certsSvc,
		alerts:  alerts,
		idp:     idp,
		runInfo: runInfo,
		cfg:     cfg,
	}
}

func (rs *renewalsService) ScheduleRenewals(ctx context.Context) (int, error) {
	if !rs.cfg.Enabled {
		return 0, nil
	}

	scheduled := 0
	now := time.Now().UTC()

	for offset := uint64(0); ; offset += schedulePageSize {
		page, err := rs.certs.ListExpiring(ctx, rs.cfg.ThresholdDays, certs.PageMetadata{Offset: offset, Limit: schedulePageSize})
		if err != nil {
			return scheduled, errors.Wrap(ErrFailedScheduling, err)
		}

		for _, cert := range page.Certificates {
			if cert.DeviceID == "" {
				continue
			}

			id, err := rs.idp.ID()
			if err != nil {
				return scheduled, errors.Wrap(ErrFailedScheduling, err)
			}
			days := int(cert.NotAfter.Sub(now).Hours() / 24)
			job := Job{
				ID:           id,
				DeviceID:     cert.DeviceID,
				SerialNumber: cert.SerialNumber,
				ExpiryDate:   cert.NotAfter,
				Priority:     PriorityForDays(days),
				MaxAttempts:  rs.cfg.MaxAttempts,
				Status:       Pending,
			}
			if _, err := rs.repo.Upsert(ctx, job); err != nil {
				return scheduled, errors.Wrap(ErrFailedScheduling, err)
			}
			scheduled++
		}

		if offset+schedulePageSize >= page.Total {
			break
		}
	}

	return scheduled, nil
}

func (rs *renewalsService) ProcessRenewals(ctx context.Context) (int, error) {
	jobs, err := rs.repo.RetrievePending(ctx)
	if err != nil {
		return 0, errors.Wrap(ErrFailedProcessing, err)
	}

	processed := 0
	for _, job := range jobs {
		// Cancellation is honored between jobs only, so an in-flight
		// issuance is always recorded.
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}

		done, err := rs.processJob(ctx, job)
		if err != nil {
			return processed, err
		}
		if done {
			processed++
		}
	}

	return processed, nil
}

// processJob brings one job closer to a terminal state. It returns true
// when the job reached completed or failed.
func (rs *renewalsService) processJob(ctx context.Context, job Job) (bool, error) {
	if job.Attempts >= job.MaxAttempts {
		job.Status = Failed
		if _, err := rs.repo.Update(ctx, job); err != nil {
			return false, errors.Wrap(ErrFailedProcessing, err)
		}
		alert := monitoring.Alert{
			Type:         monitoring.RenewalFailed,
			DeviceID:     job.DeviceID,
			SerialNumber: job.SerialNumber,
			Message:      fmt.Sprintf("renewal for device %s failed after %d attempts", job.DeviceID, job.Attempts),
			Severity:     monitoring.Critical,
		}
		if _, err := rs.alerts.CreateAlert(ctx, alert); err != nil {
			return false, errors.Wrap(ErrFailedProcessing, err)
		}
		return true, nil
	}

	// Mark in_progress so a concurrent scheduling pass cannot hand the
	// job out twice during a slow issuance call.
	job.Status = InProgress
	if _, err := rs.repo.Update(ctx, job); err != nil {
		return false, errors.Wrap(ErrFailedProcessing, err)
	}

	now := time.Now().UTC()
	bundle, err := rs.certs.Reissue(ctx, job.SerialNumber)
	if err != nil {
		job.Status = Pending
		job.Attempts++
		job.LastAttempt = &now
		if _, err := rs.repo.Update(ctx, job); err != nil {
			return false, errors.Wrap(ErrFailedProcessing, err)
		}
		rs.report(pkglog.RunInfo{
			Level:   slog.LevelWarn,
			Message: fmt.Sprintf("renewal attempt failed: %s", err),
			Details: []slog.Attr{
				slog.String("device_id", job.DeviceID),
				slog.String("serial_number", job.SerialNumber),
				slog.Uint64("attempts", uint64(job.Attempts)),
			},
		})
		return false, nil
	}

	if rs.cfg.RevokeOld {
		if _, err := rs.certs.RevokeCert(ctx, job.SerialNumber, certs.Superseded); err != nil {
			rs.report(pkglog.RunInfo{
				Level:   slog.LevelWarn,
				Message: fmt.Sprintf("failed to revoke replaced certificate: %s", err),
				Details: []slog.Attr{slog.String("serial_number", job.SerialNumber)},
			})
		}
	}

	job.Status = Completed
	job.Attempts++
	job.LastAttempt = &now
	if _, err := rs.repo.Update(ctx, job); err != nil {
		return false, errors.Wrap(ErrFailedProcessing, err)
	}

	alert := monitoring.Alert{
		Type:         monitoring.RenewalCompleted,
		DeviceID:     job.DeviceID,
		SerialNumber: bundle.SerialNumber,
		Message:      fmt.Sprintf("certificate for device %s renewed, serial %s replaces %s", job.DeviceID, bundle.SerialNumber, job.SerialNumber),
		Severity:     monitoring.Info,
	}
	if _, err := rs.alerts.CreateAlert(ctx, alert); err != nil {
		return false, errors.Wrap(ErrFailedProcessing, err)
	}

	return true, nil
}

// report forwards a log entry without blocking. An entry is dropped
// when the channel is full, so a stalled log drainer can never stall
// job processing or shutdown.
func (rs *renewalsService) report(info pkglog.RunInfo) {
	select {
	case rs.runInfo <- info:
	default:
	}
}
