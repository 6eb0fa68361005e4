// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/absmach/certkeeper/internal/postgres"
	"github.com/absmach/certkeeper/pkg/errors"
	"github.com/absmach/certkeeper/renewals"
	"github.com/jmoiron/sqlx"
)

var _ renewals.Repository = (*jobsRepo)(nil)

type jobsRepo struct {
	db *sqlx.DB
}

// NewRepository instantiates a PostgreSQL implementation of the renewal
// job store.
func NewRepository(db *sqlx.DB) renewals.Repository {
	return &jobsRepo{db: db}
}

func (jr jobsRepo) Upsert(ctx context.Context, job renewals.Job) (renewals.Job, error) {
	// The partial unique index on outstanding jobs per device makes
	// this idempotent: re-scheduling refreshes the existing job instead
	// of creating a second one.
	q := `INSERT INTO renewal_jobs (id, device_id, serial_number, expiry_date, priority, attempts, max_attempts, last_attempt, status)
		VALUES (:id, :device_id, :serial_number, :expiry_date, :priority, :attempts, :max_attempts, :last_attempt, :status)
		ON CONFLICT (device_id) WHERE status IN ('pending', 'in_progress') DO UPDATE SET
			serial_number = EXCLUDED.serial_number,
			expiry_date = EXCLUDED.expiry_date,
			priority = EXCLUDED.priority,
			max_attempts = EXCLUDED.max_attempts
		RETURNING id, device_id, serial_number, expiry_date, priority, attempts, max_attempts, last_attempt, status`

	return jr.queryJob(ctx, q, toDBJob(job), errors.ErrCreateEntity)
}

func (jr jobsRepo) Update(ctx context.Context, job renewals.Job) (renewals.Job, error) {
	q := `UPDATE renewal_jobs SET
			status = :status,
			attempts = :attempts,
			last_attempt = :last_attempt,
			priority = :priority,
			expiry_date = :expiry_date,
			serial_number = :serial_number
		WHERE id = :id
		RETURNING id, device_id, serial_number, expiry_date, priority, attempts, max_attempts, last_attempt, status`

	return jr.queryJob(ctx, q, toDBJob(job), errors.ErrUpdateEntity)
}

func (jr jobsRepo) RetrieveByID(ctx context.Context, id string) (renewals.Job, error) {
	q := `SELECT id, device_id, serial_number, expiry_date, priority, attempts, max_attempts, last_attempt, status
		FROM renewal_jobs WHERE id = :id`

	return jr.queryJob(ctx, q, dbJob{ID: id}, errors.ErrViewEntity)
}

func (jr jobsRepo) RetrievePending(ctx context.Context) ([]renewals.Job, error) {
	q := `SELECT id, device_id, serial_number, expiry_date, priority, attempts, max_attempts, last_attempt, status
		FROM renewal_jobs WHERE status = 'pending'
		ORDER BY priority ASC, expiry_date ASC`

	rows, err := jr.db.QueryxContext(ctx, q)
	if err != nil {
		return nil, postgres.HandleError(errors.ErrViewEntity, err)
	}
	defer rows.Close()

	jobs := []renewals.Job{}
	for rows.Next() {
		dbj := dbJob{}
		if err := rows.StructScan(&dbj); err != nil {
			return nil, errors.Wrap(errors.ErrViewEntity, err)
		}
		job, err := toJob(dbj)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	return jobs, nil
}

func (jr jobsRepo) queryJob(ctx context.Context, q string, arg interface{}, wrapper error) (renewals.Job, error) {
	row, err := jr.db.NamedQueryContext(ctx, q, arg)
	if err != nil {
		return renewals.Job{}, postgres.HandleError(wrapper, err)
	}
	defer row.Close()

	if !row.Next() {
		return renewals.Job{}, errors.ErrNotFound
	}
	dbj := dbJob{}
	if err := row.StructScan(&dbj); err != nil {
		return renewals.Job{}, errors.Wrap(wrapper, err)
	}

	return toJob(dbj)
}

type dbJob struct {
	ID           string       `db:"id"`
	DeviceID     string       `db:"device_id"`
	SerialNumber string       `db:"serial_number"`
	ExpiryDate   time.Time    `db:"expiry_date"`
	Priority     uint8        `db:"priority"`
	Attempts     uint         `db:"attempts"`
	MaxAttempts  uint         `db:"max_attempts"`
	LastAttempt  sql.NullTime `db:"last_attempt"`
	Status       string       `db:"status"`
}

func toDBJob(job renewals.Job) dbJob {
	dbj := dbJob{
		ID:           job.ID,
		DeviceID:     job.DeviceID,
		SerialNumber: job.SerialNumber,
		ExpiryDate:   job.ExpiryDate,
		Priority:     uint8(job.Priority),
		Attempts:     job.Attempts,
		MaxAttempts:  job.MaxAttempts,
		Status:       job.Status.String(),
	}
	if job.LastAttempt != nil {
		dbj.LastAttempt = sql.NullTime{Time: *job.LastAttempt, Valid: true}
	}
	return dbj
}

func toJob(dbj dbJob) (renewals.Job, error) {
	status, err := renewals.ToStatus(dbj.Status)
	if err != nil {
		return renewals.Job{}, errors.Wrap(errors.ErrViewEntity, err)
	}

	job := renewals.Job{
		ID:           dbj.ID,
		DeviceID:     dbj.DeviceID,
		SerialNumber: dbj.SerialNumber,
		ExpiryDate:   dbj.ExpiryDate,
		Priority:     renewals.Priority(dbj.Priority),
		Attempts:     dbj.Attempts,
		MaxAttempts:  dbj.MaxAttempts,
		Status:       status,
	}
	if dbj.LastAttempt.Valid {
		t := dbj.LastAttempt.Time
		job.LastAttempt = &t
	}

	return job, nil
}
