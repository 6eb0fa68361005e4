// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package postgres

import migrate "github.com/rubenv/sql-migrate"

// Migration of the certificate record store.
func Migration() *migrate.MemoryMigrationSource {
	return &migrate.MemoryMigrationSource{
		Migrations: []*migrate.Migration{
			{
				Id: "certs_1",
				Up: []string{
					`CREATE TABLE IF NOT EXISTS certificates (
						serial_number      TEXT PRIMARY KEY,
						subject_dn         TEXT NOT NULL,
						issuer_dn          TEXT NOT NULL,
						not_before         TIMESTAMPTZ NOT NULL,
						not_after          TIMESTAMPTZ NOT NULL,
						status             TEXT NOT NULL DEFAULT 'active',
						fingerprint_sha256 TEXT NOT NULL UNIQUE,
						certificate        TEXT NOT NULL,
						device_id          TEXT,
						template_name      TEXT NOT NULL,
						revocation_date    TIMESTAMPTZ,
						revocation_reason  TEXT,
						renewal_count      INTEGER NOT NULL DEFAULT 0
					)`,
					`CREATE INDEX IF NOT EXISTS idx_certificates_device
						ON certificates (device_id, not_after DESC)`,
					`CREATE INDEX IF NOT EXISTS idx_certificates_expiry
						ON certificates (status, not_after)`,
					`CREATE TABLE IF NOT EXISTS crl_entries (
						serial_number   TEXT PRIMARY KEY
							REFERENCES certificates (serial_number),
						revocation_date TIMESTAMPTZ NOT NULL,
						reason_code     INTEGER NOT NULL
					)`,
				},
				Down: []string{
					"DROP TABLE crl_entries",
					"DROP TABLE certificates",
				},
			},
		},
	}
}
