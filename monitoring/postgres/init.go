// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package postgres

import migrate "github.com/rubenv/sql-migrate"

// Migration of the alert store.
func Migration() *migrate.MemoryMigrationSource {
	return &migrate.MemoryMigrationSource{
		Migrations: []*migrate.Migration{
			{
				Id: "monitoring_1",
				Up: []string{
					`CREATE TABLE IF NOT EXISTS alerts (
						id            VARCHAR(36) PRIMARY KEY,
						alert_type    TEXT NOT NULL,
						device_id     TEXT,
						serial_number TEXT NOT NULL,
						message       TEXT NOT NULL,
						severity      TEXT NOT NULL,
						created_at    TIMESTAMPTZ NOT NULL,
						acknowledged  BOOLEAN NOT NULL DEFAULT false
					)`,
					`CREATE INDEX IF NOT EXISTS idx_alerts_serial
						ON alerts (serial_number, alert_type, severity)`,
					`CREATE INDEX IF NOT EXISTS idx_alerts_created
						ON alerts (created_at DESC)`,
				},
				Down: []string{
					"DROP TABLE alerts",
				},
			},
		},
	}
}
