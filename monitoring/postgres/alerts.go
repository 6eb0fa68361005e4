// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/absmach/certkeeper/internal/postgres"
	"github.com/absmach/certkeeper/monitoring"
	"github.com/absmach/certkeeper/pkg/errors"
	"github.com/jmoiron/sqlx"
)

var _ monitoring.Repository = (*alertsRepo)(nil)

type alertsRepo struct {
	db *sqlx.DB
}

// NewRepository instantiates a PostgreSQL implementation of the alert
// store.
func NewRepository(db *sqlx.DB) monitoring.Repository {
	return &alertsRepo{db: db}
}

func (ar alertsRepo) Save(ctx context.Context, alert monitoring.Alert) (monitoring.Alert, error) {
	q := `INSERT INTO alerts (id, alert_type, device_id, serial_number, message, severity, created_at, acknowledged)
		VALUES (:id, :alert_type, :device_id, :serial_number, :message, :severity, :created_at, :acknowledged)
		RETURNING id, alert_type, device_id, serial_number, message, severity, created_at, acknowledged`

	row, err := ar.db.NamedQueryContext(ctx, q, toDBAlert(alert))
	if err != nil {
		return monitoring.Alert{}, postgres.HandleError(errors.ErrCreateEntity, err)
	}
	defer row.Close()

	if !row.Next() {
		return monitoring.Alert{}, errors.ErrCreateEntity
	}
	dba := dbAlert{}
	if err := row.StructScan(&dba); err != nil {
		return monitoring.Alert{}, errors.Wrap(errors.ErrCreateEntity, err)
	}

	return toAlert(dba)
}

func (ar alertsRepo) RetrieveByID(ctx context.Context, id string) (monitoring.Alert, error) {
	q := `SELECT id, alert_type, device_id, serial_number, message, severity, created_at, acknowledged
		FROM alerts WHERE id = :id`

	row, err := ar.db.NamedQueryContext(ctx, q, dbAlert{ID: id})
	if err != nil {
		return monitoring.Alert{}, postgres.HandleError(errors.ErrViewEntity, err)
	}
	defer row.Close()

	if !row.Next() {
		return monitoring.Alert{}, errors.ErrNotFound
	}
	dba := dbAlert{}
	if err := row.StructScan(&dba); err != nil {
		return monitoring.Alert{}, errors.Wrap(errors.ErrViewEntity, err)
	}

	return toAlert(dba)
}

func (ar alertsRepo) RetrieveAll(ctx context.Context, pm monitoring.PageMetadata) (monitoring.AlertsPage, error) {
	filters := []string{}
	params := map[string]interface{}{
		"limit":  normalizeLimit(pm.Limit),
		"offset": pm.Offset,
	}
	if pm.Type != "" {
		filters = append(filters, "alert_type = :alert_type")
		params["alert_type"] = pm.Type
	}
	if pm.Severity != "" {
		filters = append(filters, "severity = :severity")
		params["severity"] = pm.Severity
	}

	where := ""
	if len(filters) > 0 {
		where = " WHERE " + strings.Join(filters, " AND ")
	}

	q := fmt.Sprintf(`SELECT id, alert_type, device_id, serial_number, message, severity, created_at, acknowledged
		FROM alerts%s ORDER BY created_at DESC LIMIT :limit OFFSET :offset`, where)
	cq := fmt.Sprintf("SELECT COUNT(*) FROM alerts%s", where)

	rows, err := ar.db.NamedQueryContext(ctx, q, params)
	if err != nil {
		return monitoring.AlertsPage{}, postgres.HandleError(errors.ErrViewEntity, err)
	}
	defer rows.Close()

	items := []monitoring.Alert{}
	for rows.Next() {
		dba := dbAlert{}
		if err := rows.StructScan(&dba); err != nil {
			return monitoring.AlertsPage{}, errors.Wrap(errors.ErrViewEntity, err)
		}
		alert, err := toAlert(dba)
		if err != nil {
			return monitoring.AlertsPage{}, err
		}
		items = append(items, alert)
	}

	total := uint64(0)
	crows, err := ar.db.NamedQueryContext(ctx, cq, params)
	if err != nil {
		return monitoring.AlertsPage{}, errors.Wrap(errors.ErrViewEntity, err)
	}
	defer crows.Close()
	if crows.Next() {
		if err := crows.Scan(&total); err != nil {
			return monitoring.AlertsPage{}, errors.Wrap(errors.ErrViewEntity, err)
		}
	}

	page := monitoring.AlertsPage{
		PageMetadata: monitoring.PageMetadata{
			Total:    total,
			Offset:   pm.Offset,
			Limit:    pm.Limit,
			Type:     pm.Type,
			Severity: pm.Severity,
		},
		Alerts: items,
	}

	return page, nil
}

func (ar alertsRepo) Acknowledge(ctx context.Context, id string) (monitoring.Alert, error) {
	q := `UPDATE alerts SET acknowledged = true WHERE id = :id
		RETURNING id, alert_type, device_id, serial_number, message, severity, created_at, acknowledged`

	row, err := ar.db.NamedQueryContext(ctx, q, dbAlert{ID: id})
	if err != nil {
		return monitoring.Alert{}, postgres.HandleError(errors.ErrUpdateEntity, err)
	}
	defer row.Close()

	if !row.Next() {
		return monitoring.Alert{}, errors.ErrNotFound
	}
	dba := dbAlert{}
	if err := row.StructScan(&dba); err != nil {
		return monitoring.Alert{}, errors.Wrap(errors.ErrUpdateEntity, err)
	}

	return toAlert(dba)
}

func (ar alertsRepo) Exists(ctx context.Context, serial string, alertType monitoring.AlertType, severity monitoring.Severity) (bool, error) {
	q := `SELECT EXISTS (SELECT 1 FROM alerts
		WHERE serial_number = :serial_number AND alert_type = :alert_type AND severity = :severity)`

	params := map[string]interface{}{
		"serial_number": serial,
		"alert_type":    alertType.String(),
		"severity":      severity.String(),
	}

	rows, err := ar.db.NamedQueryContext(ctx, q, params)
	if err != nil {
		return false, postgres.HandleError(errors.ErrViewEntity, err)
	}
	defer rows.Close()

	exists := false
	if rows.Next() {
		if err := rows.Scan(&exists); err != nil {
			return false, errors.Wrap(errors.ErrViewEntity, err)
		}
	}

	return exists, nil
}

func normalizeLimit(limit uint64) uint64 {
	if limit == 0 {
		return 1000
	}
	return limit
}

type dbAlert struct {
	ID           string         `db:"id"`
	Type         string         `db:"alert_type"`
	DeviceID     sql.NullString `db:"device_id"`
	SerialNumber string         `db:"serial_number"`
	Message      string         `db:"message"`
	Severity     string         `db:"severity"`
	CreatedAt    time.Time      `db:"created_at"`
	Acknowledged bool           `db:"acknowledged"`
}

func toDBAlert(alert monitoring.Alert) dbAlert {
	dba := dbAlert{
		ID:           alert.ID,
		Type:         alert.Type.String(),
		SerialNumber: alert.SerialNumber,
		Message:      alert.Message,
		Severity:     alert.Severity.String(),
		CreatedAt:    alert.Timestamp,
		Acknowledged: alert.Acknowledged,
	}
	if alert.DeviceID != "" {
		dba.DeviceID = sql.NullString{String: alert.DeviceID, Valid: true}
	}
	return dba
}

func toAlert(dba dbAlert) (monitoring.Alert, error) {
	alertType, err := monitoring.ToAlertType(dba.Type)
	if err != nil {
		return monitoring.Alert{}, errors.Wrap(errors.ErrViewEntity, err)
	}
	severity, err := monitoring.ToSeverity(dba.Severity)
	if err != nil {
		return monitoring.Alert{}, errors.Wrap(errors.ErrViewEntity, err)
	}

	alert := monitoring.Alert{
		ID:           dba.ID,
		Type:         alertType,
		SerialNumber: dba.SerialNumber,
		Message:      dba.Message,
		Severity:     severity,
		Timestamp:    dba.CreatedAt,
		Acknowledged: dba.Acknowledged,
	}
	if dba.DeviceID.Valid {
		alert.DeviceID = dba.DeviceID.String
	}

	return alert, nil
}
