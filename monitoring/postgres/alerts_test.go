// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/absmach/certkeeper/monitoring"
	"github.com/absmach/certkeeper/monitoring/postgres"
	"github.com/absmach/certkeeper/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cleanDB(t *testing.T) {
	_, err := db.Exec("DELETE FROM alerts")
	require.Nil(t, err, fmt.Sprintf("clean alerts unexpected error: %s", err))
}

func testAlert(id string, alertType monitoring.AlertType, severity monitoring.Severity, created time.Time) monitoring.Alert {
	return monitoring.Alert{
		ID:           id,
		Type:         alertType,
		DeviceID:     "SM-001",
		SerialNumber: "serial-" + id,
		Message:      "test alert",
		Severity:     severity,
		Timestamp:    created,
	}
}

func TestSave(t *testing.T) {
	repo := postgres.NewRepository(db)
	defer cleanDB(t)

	now := time.Now().UTC()
	alert := testAlert("alert-1", monitoring.Expiring, monitoring.Warning, now)

	saved, err := repo.Save(context.Background(), alert)
	require.Nil(t, err, fmt.Sprintf("unexpected save error: %s\n", err))
	assert.Equal(t, alert.ID, saved.ID, "ID mismatch")
	assert.Equal(t, alert.Type, saved.Type, "type mismatch")
	assert.Equal(t, alert.Severity, saved.Severity, "severity mismatch")
	assert.False(t, saved.Acknowledged, "new alert must not be acknowledged")

	_, err = repo.Save(context.Background(), alert)
	assert.True(t, errors.Contains(err, errors.ErrConflict), fmt.Sprintf("expected %s got %s\n", errors.ErrConflict, err))
}

func TestRetrieveByID(t *testing.T) {
	repo := postgres.NewRepository(db)
	defer cleanDB(t)

	alert := testAlert("alert-1", monitoring.Expired, monitoring.Critical, time.Now().UTC())
	_, err := repo.Save(context.Background(), alert)
	require.Nil(t, err, fmt.Sprintf("unexpected save error: %s\n", err))

	cases := []struct {
		desc string
		id   string
		err  error
	}{
		{
			desc: "retrieve existing alert",
			id:   "alert-1",
			err:  nil,
		},
		{
			desc: "retrieve non-existing alert",
			id:   "none",
			err:  errors.ErrNotFound,
		},
	}

	for _, tc := range cases {
		stored, err := repo.RetrieveByID(context.Background(), tc.id)
		assert.True(t, errors.Contains(err, tc.err), fmt.Sprintf("%s: expected %s got %s\n", tc.desc, tc.err, err))
		if err == nil {
			assert.Equal(t, alert.SerialNumber, stored.SerialNumber, fmt.Sprintf("%s: serial mismatch\n", tc.desc))
			assert.Equal(t, alert.DeviceID, stored.DeviceID, fmt.Sprintf("%s: device ID mismatch\n", tc.desc))
		}
	}
}

func TestRetrieveAll(t *testing.T) {
	repo := postgres.NewRepository(db)
	defer cleanDB(t)

	now := time.Now().UTC()
	alerts := []monitoring.Alert{
		testAlert("alert-1", monitoring.Expiring, monitoring.Warning, now.Add(-3*time.Hour)),
		testAlert("alert-2", monitoring.Expired, monitoring.Critical, now.Add(-2*time.Hour)),
		testAlert("alert-3", monitoring.Expiring, monitoring.Critical, now.Add(-time.Hour)),
		testAlert("alert-4", monitoring.RenewalFailed, monitoring.Critical, now),
	}
	for _, alert := range alerts {
		_, err := repo.Save(context.Background(), alert)
		require.Nil(t, err, fmt.Sprintf("unexpected save error: %s\n", err))
	}

	cases := []struct {
		desc  string
		pm    monitoring.PageMetadata
		size  int
		total uint64
		first string
	}{
		{
			desc:  "retrieve all alerts newest first",
			pm:    monitoring.PageMetadata{Limit: 10},
			size:  4,
			total: 4,
			first: "alert-4",
		},
		{
			desc:  "retrieve alerts with offset and limit",
			pm:    monitoring.PageMetadata{Offset: 1, Limit: 2},
			size:  2,
			total: 4,
			first: "alert-3",
		},
		{
			desc:  "retrieve alerts by type",
			pm:    monitoring.PageMetadata{Limit: 10, Type: "expiring"},
			size:  2,
			total: 2,
			first: "alert-3",
		},
		{
			desc:  "retrieve alerts by severity",
			pm:    monitoring.PageMetadata{Limit: 10, Severity: "critical"},
			size:  3,
			total: 3,
			first: "alert-4",
		},
		{
			desc:  "retrieve alerts by type and severity",
			pm:    monitoring.PageMetadata{Limit: 10, Type: "expiring", Severity: "critical"},
			size:  1,
			total: 1,
			first: "alert-3",
		},
		{
			desc:  "retrieve alerts with no match",
			pm:    monitoring.PageMetadata{Limit: 10, Type: "revoked"},
			size:  0,
			total: 0,
		},
	}

	for _, tc := range cases {
		page, err := repo.RetrieveAll(context.Background(), tc.pm)
		require.Nil(t, err, fmt.Sprintf("%s: unexpected retrieval error: %s\n", tc.desc, err))
		assert.Len(t, page.Alerts, tc.size, fmt.Sprintf("%s: page size mismatch\n", tc.desc))
		assert.Equal(t, tc.total, page.Total, fmt.Sprintf("%s: total mismatch\n", tc.desc))
		if tc.first != "" {
			assert.Equal(t, tc.first, page.Alerts[0].ID, fmt.Sprintf("%s: ordering mismatch\n", tc.desc))
		}
	}
}

func TestAcknowledge(t *testing.T) {
	repo := postgres.NewRepository(db)
	defer cleanDB(t)

	alert := testAlert("alert-1", monitoring.Expiring, monitoring.Warning, time.Now().UTC())
	_, err := repo.Save(context.Background(), alert)
	require.Nil(t, err, fmt.Sprintf("unexpected save error: %s\n", err))

	acked, err := repo.Acknowledge(context.Background(), "alert-1")
	require.Nil(t, err, fmt.Sprintf("unexpected acknowledge error: %s\n", err))
	assert.True(t, acked.Acknowledged, "expected an acknowledged alert")

	// Acknowledging twice is a no-op.
	acked, err = repo.Acknowledge(context.Background(), "alert-1")
	require.Nil(t, err, fmt.Sprintf("unexpected repeated acknowledge error: %s\n", err))
	assert.True(t, acked.Acknowledged, "expected the alert to stay acknowledged")

	_, err = repo.Acknowledge(context.Background(), "none")
	assert.True(t, errors.Contains(err, errors.ErrNotFound), fmt.Sprintf("expected %s got %s\n", errors.ErrNotFound, err))
}

func TestExists(t *testing.T) {
	repo := postgres.NewRepository(db)
	defer cleanDB(t)

	alert := testAlert("alert-1", monitoring.Expiring, monitoring.Warning, time.Now().UTC())
	_, err := repo.Save(context.Background(), alert)
	require.Nil(t, err, fmt.Sprintf("unexpected save error: %s\n", err))

	cases := []struct {
		desc     string
		serial   string
		typ      monitoring.AlertType
		severity monitoring.Severity
		exists   bool
	}{
		{
			desc:     "identical alert exists",
			serial:   alert.SerialNumber,
			typ:      monitoring.Expiring,
			severity: monitoring.Warning,
			exists:   true,
		},
		{
			desc:     "same serial with escalated severity",
			serial:   alert.SerialNumber,
			typ:      monitoring.Expiring,
			severity: monitoring.Critical,
			exists:   false,
		},
		{
			desc:     "same serial with different type",
			serial:   alert.SerialNumber,
			typ:      monitoring.Expired,
			severity: monitoring.Warning,
			exists:   false,
		},
		{
			desc:     "unknown serial",
			serial:   "none",
			typ:      monitoring.Expiring,
			severity: monitoring.Warning,
			exists:   false,
		},
	}

	for _, tc := range cases {
		exists, err := repo.Exists(context.Background(), tc.serial, tc.typ, tc.severity)
		require.Nil(t, err, fmt.Sprintf("%s: unexpected error: %s\n", tc.desc, err))
		assert.Equal(t, tc.exists, exists, fmt.Sprintf("%s: existence mismatch\n", tc.desc))
	}
}
