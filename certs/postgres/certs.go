// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/absmach/certkeeper/certs"
	"github.com/absmach/certkeeper/internal/postgres"
	"github.com/absmach/certkeeper/pkg/errors"
	"github.com/jmoiron/sqlx"
)

var _ certs.Repository = (*certsRepo)(nil)

type certsRepo struct {
	db *sqlx.DB
}

// NewRepository instantiates a PostgreSQL implementation of the
// certificate record store.
func NewRepository(db *sqlx.DB) certs.Repository {
	return &certsRepo{db: db}
}

func (cr certsRepo) Save(ctx context.Context, cert certs.Cert) (string, error) {
	q := `INSERT INTO certificates (serial_number, subject_dn, issuer_dn, not_before, not_after,
		status, fingerprint_sha256, certificate, device_id, template_name, revocation_date,
		revocation_reason, renewal_count)
		VALUES (:serial_number, :subject_dn, :issuer_dn, :not_before, :not_after, :status,
		:fingerprint_sha256, :certificate, :device_id, :template_name, :revocation_date,
		:revocation_reason, :renewal_count)
		ON CONFLICT (serial_number) DO UPDATE SET
			status = EXCLUDED.status,
			revocation_date = EXCLUDED.revocation_date,
			revocation_reason = EXCLUDED.revocation_reason,
			renewal_count = EXCLUDED.renewal_count
		RETURNING serial_number`

	dbc, err := toDBCert(cert)
	if err != nil {
		return "", errors.Wrap(errors.ErrCreateEntity, err)
	}

	row, err := cr.db.NamedQueryContext(ctx, q, dbc)
	if err != nil {
		return "", postgres.HandleError(errors.ErrCreateEntity, err)
	}
	defer row.Close()

	var serial string
	if row.Next() {
		if err := row.Scan(&serial); err != nil {
			return "", errors.Wrap(errors.ErrCreateEntity, err)
		}
	}

	return serial, nil
}

func (cr certsRepo) RetrieveBySerial(ctx context.Context, serial string) (certs.Cert, error) {
	q := `SELECT serial_number, subject_dn, issuer_dn, not_before, not_after, status,
		fingerprint_sha256, certificate, device_id, template_name, revocation_date,
		revocation_reason, renewal_count FROM certificates WHERE serial_number = :serial_number`

	row, err := cr.db.NamedQueryContext(ctx, q, dbCert{SerialNumber: serial})
	if err != nil {
		return certs.Cert{}, postgres.HandleError(errors.ErrViewEntity, err)
	}
	defer row.Close()

	if !row.Next() {
		return certs.Cert{}, errors.ErrNotFound
	}
	dbc := dbCert{}
	if err := row.StructScan(&dbc); err != nil {
		return certs.Cert{}, errors.Wrap(errors.ErrViewEntity, err)
	}

	return toCert(dbc)
}

func (cr certsRepo) RetrieveByDevice(ctx context.Context, deviceID string, pm certs.PageMetadata) (certs.Page, error) {
	q := `SELECT serial_number, subject_dn, issuer_dn, not_before, not_after, status,
		fingerprint_sha256, certificate, device_id, template_name, revocation_date,
		revocation_reason, renewal_count FROM certificates WHERE device_id = :device_id
		ORDER BY not_after DESC LIMIT :limit OFFSET :offset`
	cq := `SELECT COUNT(*) FROM certificates WHERE device_id = :device_id`

	params := map[string]interface{}{
		"device_id": deviceID,
		"limit":     normalizeLimit(pm.Limit),
		"offset":    pm.Offset,
	}

	return cr.retrievePage(ctx, q, cq, params, pm)
}

func (cr certsRepo) RetrieveExpiring(ctx context.Context, until time.Time, pm certs.PageMetadata) (certs.Page, error) {
	q := `SELECT serial_number, subject_dn, issuer_dn, not_before, not_after, status,
		fingerprint_sha256, certificate, device_id, template_name, revocation_date,
		revocation_reason, renewal_count FROM certificates
		WHERE status = 'active' AND not_after <= :until
		ORDER BY not_after ASC LIMIT :limit OFFSET :offset`
	cq := `SELECT COUNT(*) FROM certificates WHERE status = 'active' AND not_after <= :until`

	params := map[string]interface{}{
		"until":  until,
		"limit":  normalizeLimit(pm.Limit),
		"offset": pm.Offset,
	}

	return cr.retrievePage(ctx, q, cq, params, pm)
}

func (cr certsRepo) RetrieveAll(ctx context.Context, pm certs.PageMetadata) (certs.Page, error) {
	q := `SELECT serial_number, subject_dn, issuer_dn, not_before, not_after, status,
		fingerprint_sha256, certificate, device_id, template_name, revocation_date,
		revocation_reason, renewal_count FROM certificates
		ORDER BY not_after ASC LIMIT :limit OFFSET :offset`
	cq := `SELECT COUNT(*) FROM certificates`

	params := map[string]interface{}{
		"limit":  normalizeLimit(pm.Limit),
		"offset": pm.Offset,
	}

	return cr.retrievePage(ctx, q, cq, params, pm)
}

func (cr certsRepo) AddCRLEntry(ctx context.Context, entry certs.CRLEntry) error {
	q := `INSERT INTO crl_entries (serial_number, revocation_date, reason_code)
		VALUES (:serial_number, :revocation_date, :reason_code)
		ON CONFLICT (serial_number) DO NOTHING`

	dbe := dbCRLEntry{
		SerialNumber:   entry.SerialNumber,
		RevocationDate: entry.RevocationDate,
		ReasonCode:     int(entry.ReasonCode),
	}
	if _, err := cr.db.NamedExecContext(ctx, q, dbe); err != nil {
		return postgres.HandleError(errors.ErrCreateEntity, err)
	}

	return nil
}

func (cr certsRepo) RetrieveCRLEntries(ctx context.Context) ([]certs.CRLEntry, error) {
	q := `SELECT serial_number, revocation_date, reason_code FROM crl_entries
		ORDER BY revocation_date ASC`

	rows, err := cr.db.QueryxContext(ctx, q)
	if err != nil {
		return nil, postgres.HandleError(errors.ErrViewEntity, err)
	}
	defer rows.Close()

	entries := []certs.CRLEntry{}
	for rows.Next() {
		dbe := dbCRLEntry{}
		if err := rows.StructScan(&dbe); err != nil {
			return nil, errors.Wrap(errors.ErrViewEntity, err)
		}
		entries = append(entries, certs.CRLEntry{
			SerialNumber:   dbe.SerialNumber,
			RevocationDate: dbe.RevocationDate,
			ReasonCode:     certs.RevocationReason(dbe.ReasonCode),
		})
	}

	return entries, nil
}

func (cr certsRepo) retrievePage(ctx context.Context, q, cq string, params map[string]interface{}, pm certs.PageMetadata) (certs.Page, error) {
	rows, err := cr.db.NamedQueryContext(ctx, q, params)
	if err != nil {
		return certs.Page{}, postgres.HandleError(errors.ErrViewEntity, err)
	}
	defer rows.Close()

	items := []certs.Cert{}
	for rows.Next() {
		dbc := dbCert{}
		if err := rows.StructScan(&dbc); err != nil {
			return certs.Page{}, errors.Wrap(errors.ErrViewEntity, err)
		}
		cert, err := toCert(dbc)
		if err != nil {
			return certs.Page{}, err
		}
		items = append(items, cert)
	}

	total, err := cr.total(ctx, cq, params)
	if err != nil {
		return certs.Page{}, errors.Wrap(errors.ErrViewEntity, err)
	}

	page := certs.Page{
		PageMetadata: certs.PageMetadata{
			Total:  total,
			Offset: pm.Offset,
			Limit:  pm.Limit,
		},
		Certificates: items,
	}

	return page, nil
}

func (cr certsRepo) total(ctx context.Context, query string, params map[string]interface{}) (uint64, error) {
	rows, err := cr.db.NamedQueryContext(ctx, query, params)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	total := uint64(0)
	if rows.Next() {
		if err := rows.Scan(&total); err != nil {
			return 0, err
		}
	}

	return total, nil
}

// Unpaged callers get a high default page size instead of zero rows.
func normalizeLimit(limit uint64) uint64 {
	if limit == 0 {
		return 1000
	}
	return limit
}

type dbCert struct {
	SerialNumber     string         `db:"serial_number"`
	SubjectDN        string         `db:"subject_dn"`
	IssuerDN         string         `db:"issuer_dn"`
	NotBefore        time.Time      `db:"not_before"`
	NotAfter         time.Time      `db:"not_after"`
	Status           string         `db:"status"`
	Fingerprint      string         `db:"fingerprint_sha256"`
	Certificate      string         `db:"certificate"`
	DeviceID         sql.NullString `db:"device_id"`
	Template         string         `db:"template_name"`
	RevocationDate   sql.NullTime   `db:"revocation_date"`
	RevocationReason sql.NullString `db:"revocation_reason"`
	RenewalCount     uint32         `db:"renewal_count"`
}

type dbCRLEntry struct {
	SerialNumber   string    `db:"serial_number"`
	RevocationDate time.Time `db:"revocation_date"`
	ReasonCode     int       `db:"reason_code"`
}

func toDBCert(cert certs.Cert) (dbCert, error) {
	dbc := dbCert{
		SerialNumber: cert.SerialNumber,
		SubjectDN:    cert.SubjectDN,
		IssuerDN:     cert.IssuerDN,
		NotBefore:    cert.NotBefore,
		NotAfter:     cert.NotAfter,
		Status:       cert.Status.String(),
		Fingerprint:  cert.Fingerprint,
		Certificate:  cert.Certificate,
		Template:     cert.Template,
		RenewalCount: cert.RenewalCount,
	}
	if cert.DeviceID != "" {
		dbc.DeviceID = sql.NullString{String: cert.DeviceID, Valid: true}
	}
	if cert.RevocationDate != nil {
		dbc.RevocationDate = sql.NullTime{Time: *cert.RevocationDate, Valid: true}
		dbc.RevocationReason = sql.NullString{String: cert.RevocationReason.String(), Valid: true}
	}

	return dbc, nil
}

func toCert(dbc dbCert) (certs.Cert, error) {
	status, err := certs.ToStatus(dbc.Status)
	if err != nil {
		return certs.Cert{}, errors.Wrap(errors.ErrViewEntity, err)
	}

	cert := certs.Cert{
		SerialNumber: dbc.SerialNumber,
		SubjectDN:    dbc.SubjectDN,
		IssuerDN:     dbc.IssuerDN,
		NotBefore:    dbc.NotBefore,
		NotAfter:     dbc.NotAfter,
		Status:       status,
		Fingerprint:  dbc.Fingerprint,
		Certificate:  dbc.Certificate,
		Template:     dbc.Template,
		RenewalCount: dbc.RenewalCount,
	}
	if dbc.DeviceID.Valid {
		cert.DeviceID = dbc.DeviceID.String
	}
	if dbc.RevocationDate.Valid {
		t := dbc.RevocationDate.Time
		cert.RevocationDate = &t
	}
	if dbc.RevocationReason.Valid {
		reason, err := certs.ToReason(dbc.RevocationReason.String)
		if err != nil {
			return certs.Cert{}, errors.Wrap(errors.ErrViewEntity, err)
		}
		cert.RevocationReason = reason
	}

	return cert, nil
}
