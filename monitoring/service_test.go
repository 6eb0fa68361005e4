// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package monitoring_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/absmach/certkeeper/certs"
	certsmocks "github.com/absmach/certkeeper/certs/mocks"
	"github.com/absmach/certkeeper/monitoring"
	"github.com/absmach/certkeeper/monitoring/mocks"
	"github.com/absmach/certkeeper/monitoring/notifiers"
	"github.com/absmach/certkeeper/pkg/errors"
	pkglog "github.com/absmach/certkeeper/pkg/logger"
	"github.com/absmach/certkeeper/pkg/ticker"
	"github.com/absmach/certkeeper/pkg/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const windowDays = 30

func newService(t *testing.T) (monitoring.Service, certs.Repository, *mocks.Notifier) {
	certsRepo := certsmocks.NewRepository()
	alerts := mocks.NewRepository()
	notifier := mocks.NewNotifier()
	runInfo := make(chan pkglog.RunInfo, 100)

	svc := monitoring.New(alerts, certsRepo, []notifiers.Notifier{notifier}, uuid.NewMock(), ticker.NewTicker(time.Hour), runInfo, windowDays)

	return svc, certsRepo, notifier
}

func seedCert(t *testing.T, repo certs.Repository, serial, deviceID string, status certs.Status, notAfter time.Time) {
	_, err := repo.Save(context.Background(), certs.Cert{
		SerialNumber: serial,
		DeviceID:     deviceID,
		Template:     certs.TemplateSmartMeter,
		Status:       status,
		Fingerprint:  "fp-" + serial,
		Certificate:  "placeholder",
		NotBefore:    time.Now().Add(-24 * time.Hour),
		NotAfter:     notAfter,
	})
	require.Nil(t, err, fmt.Sprintf("unexpected cert seed error: %s\n", err))
}

func TestScan(t *testing.T) {
	svc, certsRepo, notifier := newService(t)

	now := time.Now().UTC()
	seedCert(t, certsRepo, "1001", "SM-001", certs.Active, now.Add(200*24*time.Hour))
	seedCert(t, certsRepo, "1002", "SM-002", certs.Active, now.Add(5*24*time.Hour))
	seedCert(t, certsRepo, "1003", "SM-003", certs.Active, now.Add(12*24*time.Hour))
	seedCert(t, certsRepo, "1004", "SM-004", certs.Expired, now.Add(-24*time.Hour))
	seedCert(t, certsRepo, "1005", "SM-005", certs.Active, now.Add(-48*time.Hour))
	seedCert(t, certsRepo, "1006", "SM-006", certs.Revoked, now.Add(100*24*time.Hour))

	summary, err := svc.Scan(context.Background())
	require.Nil(t, err, fmt.Sprintf("unexpected scan error: %s\n", err))

	assert.Equal(t, uint64(6), summary.Total, "total mismatch")
	assert.Equal(t, uint64(1), summary.Active, "active mismatch")
	assert.Equal(t, uint64(2), summary.Expiring, "expiring mismatch")
	assert.Equal(t, uint64(2), summary.Expired, "expired mismatch")
	assert.Equal(t, uint64(1), summary.Revoked, "revoked mismatch")
	assert.Equal(t, uint64(1), summary.Inconsistent, "inconsistent mismatch")
	assert.Equal(t, uint64(4), summary.AlertsRaised, "alerts raised mismatch")
	assert.False(t, summary.CompletedAt.IsZero(), "expected a completion time")

	severities := map[string]monitoring.Severity{}
	for _, alert := range notifier.Delivered() {
		severities[alert.SerialNumber] = alert.Severity
	}
	assert.Equal(t, monitoring.Critical, severities["1002"], "cert expiring in 5 days must be critical")
	assert.Equal(t, monitoring.Warning, severities["1003"], "cert expiring in 12 days must be warning")
	assert.Equal(t, monitoring.Critical, severities["1004"], "expired cert must be critical")
	assert.Equal(t, monitoring.Critical, severities["1005"], "expired-but-active cert must be critical")
}

func TestScanIdempotent(t *testing.T) {
	svc, certsRepo, notifier := newService(t)

	now := time.Now().UTC()
	seedCert(t, certsRepo, "2001", "SM-001", certs.Active, now.Add(5*24*time.Hour))
	seedCert(t, certsRepo, "2002", "SM-002", certs.Expired, now.Add(-24*time.Hour))

	first, err := svc.Scan(context.Background())
	require.Nil(t, err, fmt.Sprintf("unexpected scan error: %s\n", err))
	assert.Equal(t, uint64(2), first.AlertsRaised, "expected two alerts on first scan")

	second, err := svc.Scan(context.Background())
	require.Nil(t, err, fmt.Sprintf("unexpected scan error: %s\n", err))
	assert.Equal(t, first.Expiring, second.Expiring, "classification must be stable across scans")
	assert.Equal(t, first.Expired, second.Expired, "classification must be stable across scans")
	assert.Equal(t, uint64(0), second.AlertsRaised, "repeated scan must not raise duplicate alerts")
	assert.Len(t, notifier.Delivered(), 2, "expected two delivered alerts in total")
}

func TestScanEmpty(t *testing.T) {
	svc, _, _ := newService(t)

	summary, err := svc.Scan(context.Background())
	require.Nil(t, err, fmt.Sprintf("unexpected scan error: %s\n", err))
	assert.Equal(t, uint64(0), summary.Total, "expected an empty summary")
	assert.Equal(t, uint64(0), summary.AlertsRaised, "expected no alerts")
}

func TestCreateAlert(t *testing.T) {
	svc, _, notifier := newService(t)

	alert := monitoring.Alert{
		Type:         monitoring.RenewalFailed,
		DeviceID:     "SM-001",
		SerialNumber: "3001",
		Message:      "renewal attempts exhausted for device SM-001",
		Severity:     monitoring.Critical,
	}

	saved, err := svc.CreateAlert(context.Background(), alert)
	require.Nil(t, err, fmt.Sprintf("unexpected alert creation error: %s\n", err))
	assert.NotEmpty(t, saved.ID, "expected a generated alert ID")
	assert.False(t, saved.Timestamp.IsZero(), "expected a generated timestamp")

	delivered := notifier.Delivered()
	require.Len(t, delivered, 1, "expected one delivered alert")
	assert.Equal(t, saved.ID, delivered[0].ID, "delivered alert mismatch")
}

func TestCreateAlertDeliveryFailure(t *testing.T) {
	svc, _, notifier := newService(t)

	notifier.Fail(errors.New("webhook endpoint unreachable"))

	alert := monitoring.Alert{
		Type:         monitoring.Expiring,
		DeviceID:     "SM-001",
		SerialNumber: "3002",
		Message:      "certificate for device SM-001 expires in 10 days",
		Severity:     monitoring.Warning,
	}

	saved, err := svc.CreateAlert(context.Background(), alert)
	require.Nil(t, err, fmt.Sprintf("delivery failure must not fail alert creation: %s\n", err))

	page, err := svc.ListAlerts(context.Background(), monitoring.PageMetadata{Limit: 10})
	require.Nil(t, err, fmt.Sprintf("unexpected listing error: %s\n", err))
	require.Equal(t, uint64(1), page.Total, "expected the alert persisted despite delivery failure")
	assert.Equal(t, saved.ID, page.Alerts[0].ID, "persisted alert mismatch")
	assert.Empty(t, notifier.Delivered(), "expected no recorded delivery")
}

func TestCreateAlertWithoutLogDrainer(t *testing.T) {
	// An unbuffered channel nobody reads must not block alert creation.
	notifier := mocks.NewNotifier()
	notifier.Fail(errors.New("webhook endpoint unreachable"))
	svc := monitoring.New(mocks.NewRepository(), certsmocks.NewRepository(), []notifiers.Notifier{notifier}, uuid.NewMock(), ticker.NewTicker(time.Hour), make(chan pkglog.RunInfo), windowDays)

	alert := monitoring.Alert{
		Type:         monitoring.Expiring,
		DeviceID:     "SM-001",
		SerialNumber: "3003",
		Message:      "certificate for device SM-001 expires in 10 days",
		Severity:     monitoring.Warning,
	}

	saved, err := svc.CreateAlert(context.Background(), alert)
	require.Nil(t, err, fmt.Sprintf("delivery failure must not fail alert creation: %s\n", err))
	assert.NotEmpty(t, saved.ID, "expected the alert persisted")
}

func TestListAlerts(t *testing.T) {
	svc, _, _ := newService(t)

	types := []monitoring.AlertType{monitoring.Expiring, monitoring.Expired, monitoring.Expiring}
	severities := []monitoring.Severity{monitoring.Warning, monitoring.Critical, monitoring.Info}
	for i := 0; i < 3; i++ {
		_, err := svc.CreateAlert(context.Background(), monitoring.Alert{
			Type:         types[i],
			DeviceID:     fmt.Sprintf("SM-%03d", i),
			SerialNumber: fmt.Sprintf("400%d", i),
			Message:      "test alert",
			Severity:     severities[i],
		})
		require.Nil(t, err, fmt.Sprintf("unexpected alert creation error: %s\n", err))
	}

	cases := []struct {
		desc  string
		pm    monitoring.PageMetadata
		total uint64
	}{
		{
			desc:  "list all alerts",
			pm:    monitoring.PageMetadata{Limit: 10},
			total: 3,
		},
		{
			desc:  "list expiring alerts",
			pm:    monitoring.PageMetadata{Limit: 10, Type: "expiring"},
			total: 2,
		},
		{
			desc:  "list critical alerts",
			pm:    monitoring.PageMetadata{Limit: 10, Severity: "critical"},
			total: 1,
		},
		{
			desc:  "list critical expiring alerts",
			pm:    monitoring.PageMetadata{Limit: 10, Type: "expiring", Severity: "critical"},
			total: 0,
		},
	}

	for _, tc := range cases {
		page, err := svc.ListAlerts(context.Background(), tc.pm)
		require.Nil(t, err, fmt.Sprintf("%s: unexpected listing error: %s\n", tc.desc, err))
		assert.Equal(t, tc.total, page.Total, fmt.Sprintf("%s: expected %d alerts got %d\n", tc.desc, tc.total, page.Total))
	}
}

func TestAcknowledgeAlert(t *testing.T) {
	svc, _, _ := newService(t)

	saved, err := svc.CreateAlert(context.Background(), monitoring.Alert{
		Type:         monitoring.Expiring,
		DeviceID:     "SM-001",
		SerialNumber: "5001",
		Message:      "test alert",
		Severity:     monitoring.Warning,
	})
	require.Nil(t, err, fmt.Sprintf("unexpected alert creation error: %s\n", err))

	cases := []struct {
		desc string
		id   string
		err  error
	}{
		{
			desc: "acknowledge existing alert",
			id:   saved.ID,
			err:  nil,
		},
		{
			desc: "acknowledge non-existing alert",
			id:   "unknown",
			err:  errors.ErrNotFound,
		},
	}

	for _, tc := range cases {
		alert, err := svc.AcknowledgeAlert(context.Background(), tc.id)
		assert.True(t, errors.Contains(err, tc.err), fmt.Sprintf("%s: expected %s got %s\n", tc.desc, tc.err, err))
		if err == nil {
			assert.True(t, alert.Acknowledged, fmt.Sprintf("%s: expected an acknowledged alert\n", tc.desc))
		}
	}
}

func TestLastScan(t *testing.T) {
	svc, certsRepo, _ := newService(t)

	_, err := svc.LastScan(context.Background())
	assert.True(t, errors.Contains(err, errors.ErrNotFound), fmt.Sprintf("expected %s got %s\n", errors.ErrNotFound, err))

	seedCert(t, certsRepo, "6001", "SM-001", certs.Active, time.Now().Add(200*24*time.Hour))

	summary, err := svc.Scan(context.Background())
	require.Nil(t, err, fmt.Sprintf("unexpected scan error: %s\n", err))

	last, err := svc.LastScan(context.Background())
	require.Nil(t, err, fmt.Sprintf("unexpected last scan error: %s\n", err))
	assert.Equal(t, summary, last, "expected the last completed scan summary")
}
