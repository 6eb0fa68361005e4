// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package monitoring

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/absmach/certkeeper"
	"github.com/absmach/certkeeper/certs"
	"github.com/absmach/certkeeper/pkg/errors"
	pkglog "github.com/absmach/certkeeper/pkg/logger"
	"github.com/absmach/certkeeper/pkg/ticker"
	"github.com/cenkalti/backoff/v4"
)

const (
	scanPageSize = uint64(500)
	errBackoff   = time.Minute
)

// ErrFailedScan indicates an aborted health scan cycle.
var ErrFailedScan = errors.New("failed to complete certificate health scan")

// ScanSummary is the outcome of one completed health scan. Queries
// always reflect the last completed scan, never a partial one.
type ScanSummary struct {
	Total        uint64    `json:"total"`
	Active       uint64    `json:"active"`
	Expiring     uint64    `json:"expiring"`
	Expired      uint64    `json:"expired"`
	Revoked      uint64    `json:"revoked"`
	Inconsistent uint64    `json:"inconsistent"`
	AlertsRaised uint64    `json:"alerts_raised"`
	CompletedAt  time.Time `json:"completed_at"`
}

// Service specifies the certificate health monitoring API.
type Service interface {
	// CreateAlert persists an alert and then attempts delivery on every
	// configured channel. Delivery failures never fail the alert.
	CreateAlert(ctx context.Context, alert Alert) (Alert, error)

	// ListAlerts lists persisted alerts, newest first.
	ListAlerts(ctx context.Context, pm PageMetadata) (AlertsPage, error)

	// AcknowledgeAlert marks the alert with the given ID acknowledged.
	AcknowledgeAlert(ctx context.Context, id string) (Alert, error)

	// Scan classifies every certificate record and raises alerts for
	// newly detected expiring, expired or inconsistent records.
	Scan(ctx context.Context) (ScanSummary, error)

	// LastScan returns the summary of the last completed scan.
	LastScan(ctx context.Context) (ScanSummary, error)

	// StartScheduler runs periodic health scans until the context is
	// canceled. A failed cycle is retried after a short backoff and
	// never terminates the loop.
	StartScheduler(ctx context.Context) error
}

var _ Service = (*monitoringService)(nil)

type monitoringService struct {
	alerts    Repository
	certsRepo certs.Repository
	notifiers []Notifier
	idp       certkeeper.IDProvider
	ticker    ticker.Ticker
	runInfo   chan pkglog.RunInfo
	window    uint

	mu   sync.Mutex
	last *ScanSummary
}

// New instantiates the health monitoring service. The window is the
// expiring classification threshold in days.
func New(alerts Repository, certsRepo certs.Repository, nfs []Notifier, idp certkeeper.IDProvider, tick ticker.Ticker, runInfo chan pkglog.RunInfo, windowDays uint) Service {
	return &monitoringService{
		alerts:    alerts,
		certsRepo: certsRepo,
		notifiers: nfs,
		idp:       idp,
		ticker:    tick,
		runInfo:   runInfo,
		window:    windowDays,
	}
}

func (ms *monitoringService) CreateAlert(ctx context.Context, alert Alert) (Alert, error) {
	if alert.ID == "" {
		id, err := ms.idp.ID()
		if err != nil {
			return Alert{}, errors.Wrap(errors.ErrCreateEntity, err)
		}
		alert.ID = id
	}
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now().UTC()
	}

	saved, err := ms.alerts.Save(ctx, alert)
	if err != nil {
		return Alert{}, err
	}

	ms.dispatch(ctx, saved)

	return saved, nil
}

// dispatch attempts each channel independently. A failed channel is
// reported and skipped, never retried here.
func (ms *monitoringService) dispatch(ctx context.Context, alert Alert) {
	for _, n := range ms.notifiers {
		if err := n.Notify(ctx, alert); err != nil {
			ms.report(pkglog.RunInfo{
				Level:   slog.LevelWarn,
				Message: fmt.Sprintf("failed to deliver alert notification: %s", err),
				Details: []slog.Attr{
					slog.String("alert_id", alert.ID),
					slog.String("alert_type", alert.Type.String()),
					slog.String("serial_number", alert.SerialNumber),
				},
			})
		}
	}
}

// report forwards a log entry without blocking. An entry is dropped
// when the channel is full, so a stalled log drainer can never stall
// a scan or shutdown.
func (ms *monitoringService) report(info pkglog.RunInfo) {
	select {
	case ms.runInfo <- info:
	default:
	}
}

func (ms *monitoringService) ListAlerts(ctx context.Context, pm PageMetadata) (AlertsPage, error) {
	return ms.alerts.RetrieveAll(ctx, pm)
}

func (ms *monitoringService) AcknowledgeAlert(ctx context.Context, id string) (Alert, error) {
	return ms.alerts.Acknowledge(ctx, id)
}

func (ms *monitoringService) Scan(ctx context.Context) (ScanSummary, error) {
	summary := ScanSummary{}
	now := time.Now().UTC()
	windowEnd := now.Add(time.Duration(ms.window) * 24 * time.Hour)

	for offset := uint64(0); ; offset += scanPageSize {
		page, err := ms.certsRepo.RetrieveAll(ctx, certs.PageMetadata{Offset: offset, Limit: scanPageSize})
		if err != nil {
			return ScanSummary{}, errors.Wrap(ErrFailedScan, err)
		}

		for _, cert := range page.Certificates {
			summary.Total++

			if cert.Status == certs.Revoked {
				summary.Revoked++
				continue
			}

			switch {
			case cert.NotAfter.Before(now):
				summary.Expired++
				// An expired record still marked active is a hard
				// inconsistency and is always critical.
				if cert.Status == certs.Active {
					summary.Inconsistent++
					if err := ms.raise(ctx, cert, Expired, Critical, &summary); err != nil {
						return ScanSummary{}, err
					}
					continue
				}
				if err := ms.raise(ctx, cert, Expired, Critical, &summary); err != nil {
					return ScanSummary{}, err
				}
			case cert.Status == certs.Active && cert.NotAfter.Before(windowEnd):
				summary.Expiring++
				days := int(cert.NotAfter.Sub(now).Hours() / 24)
				if err := ms.raise(ctx, cert, Expiring, ExpirySeverity(days), &summary); err != nil {
					return ScanSummary{}, err
				}
			default:
				summary.Active++
			}
		}

		if offset+scanPageSize >= page.Total {
			break
		}
	}

	summary.CompletedAt = time.Now().UTC()

	ms.mu.Lock()
	ms.last = &summary
	ms.mu.Unlock()

	return summary, nil
}

// raise persists an alert for the record unless an identical one has
// already been recorded.
func (ms *monitoringService) raise(ctx context.Context, cert certs.Cert, alertType AlertType, severity Severity, summary *ScanSummary) error {
	exists, err := ms.alerts.Exists(ctx, cert.SerialNumber, alertType, severity)
	if err != nil {
		return errors.Wrap(ErrFailedScan, err)
	}
	if exists {
		return nil
	}

	days := int(time.Until(cert.NotAfter).Hours() / 24)
	msg := fmt.Sprintf("certificate for device %s expires in %d days", cert.DeviceID, days)
	if alertType == Expired {
		msg = fmt.Sprintf("certificate for device %s has expired", cert.DeviceID)
		if cert.Status == certs.Active {
			msg = fmt.Sprintf("certificate for device %s has expired but is still marked active", cert.DeviceID)
		}
	}

	alert := Alert{
		Type:         alertType,
		DeviceID:     cert.DeviceID,
		SerialNumber: cert.SerialNumber,
		Message:      msg,
		Severity:     severity,
	}
	if _, err := ms.CreateAlert(ctx, alert); err != nil {
		return errors.Wrap(ErrFailedScan, err)
	}
	summary.AlertsRaised++

	return nil
}

func (ms *monitoringService) LastScan(_ context.Context) (ScanSummary, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.last == nil {
		return ScanSummary{}, errors.ErrNotFound
	}
	return *ms.last, nil
}

func (ms *monitoringService) StartScheduler(ctx context.Context) error {
	defer ms.ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ms.ticker.Tick():
			boff := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(errBackoff), 1), ctx)
			op := func() error {
				summary, err := ms.Scan(ctx)
				if err != nil {
					ms.report(pkglog.RunInfo{
						Level:   slog.LevelError,
						Message: fmt.Sprintf("health scan failed: %s", err),
						Details: []slog.Attr{slog.Time("time", time.Now().UTC())},
					})
					return err
				}
				ms.report(pkglog.RunInfo{
					Level:   slog.LevelInfo,
					Message: "health scan completed",
					Details: []slog.Attr{
						slog.Uint64("total", summary.Total),
						slog.Uint64("expiring", summary.Expiring),
						slog.Uint64("expired", summary.Expired),
						slog.Uint64("inconsistent", summary.Inconsistent),
						slog.Uint64("alerts_raised", summary.AlertsRaised),
					},
				})
				return nil
			}
			if err := backoff.Retry(op, boff); err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
}
