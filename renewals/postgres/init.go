// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package postgres

import migrate "github.com/rubenv/sql-migrate"

// Migration of the renewal job store.
func Migration() *migrate.MemoryMigrationSource {
	return &migrate.MemoryMigrationSource{
		Migrations: []*migrate.Migration{
			{
				Id: "renewals_1",
				Up: []string{
					`CREATE TABLE IF NOT EXISTS renewal_jobs (
						id            VARCHAR(36) PRIMARY KEY,
						device_id     TEXT NOT NULL,
						serial_number TEXT NOT NULL,
						expiry_date   TIMESTAMPTZ NOT NULL,
						priority      SMALLINT NOT NULL,
						attempts      INTEGER NOT NULL DEFAULT 0,
						max_attempts  INTEGER NOT NULL,
						last_attempt  TIMESTAMPTZ,
						status        TEXT NOT NULL DEFAULT 'pending'
					)`,
					`CREATE UNIQUE INDEX IF NOT EXISTS idx_renewal_jobs_outstanding
						ON renewal_jobs (device_id)
						WHERE status IN ('pending', 'in_progress')`,
					`CREATE INDEX IF NOT EXISTS idx_renewal_jobs_order
						ON renewal_jobs (status, priority, expiry_date)`,
				},
				Down: []string{
					"DROP TABLE renewal_jobs",
				},
			},
		},
	}
}
