// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package certs

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/absmach/certkeeper/pkg/errors"
)

// Status represents the lifecycle state of an issued certificate.
// It is a logical field: a record whose validity window has passed may
// still read Active, which the health monitor reports as an inconsistency.
type Status uint8

const (
	Active Status = iota
	Revoked
	Expired
)

const (
	active  = "active"
	revoked = "revoked"
	expired = "expired"
)

// String converts certificate status to string literal.
func (s Status) String() string {
	switch s {
	case Active:
		return active
	case Revoked:
		return revoked
	case Expired:
		return expired
	default:
		return "unknown"
	}
}

// ToStatus converts string value to a valid certificate status.
func ToStatus(status string) (Status, error) {
	switch status {
	case active:
		return Active, nil
	case revoked:
		return Revoked, nil
	case expired:
		return Expired, nil
	}

	return Status(0), errors.ErrMalformedEntity
}

// MarshalJSON marshals status as its string literal.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON parses a status string literal.
func (s *Status) UnmarshalJSON(data []byte) error {
	str := strings.Trim(string(data), "\"")
	val, err := ToStatus(str)
	*s = val
	return err
}

// RevocationReason is a standard revocation-reason code as used in CRL
// entries.
type RevocationReason int

const (
	Unspecified          RevocationReason = 0
	KeyCompromise        RevocationReason = 1
	CACompromise         RevocationReason = 2
	AffiliationChanged   RevocationReason = 3
	Superseded           RevocationReason = 4
	CessationOfOperation RevocationReason = 5
	CertificateHold      RevocationReason = 6
	PrivilegeWithdrawn   RevocationReason = 9
	AACompromise         RevocationReason = 10
)

var reasonNames = map[RevocationReason]string{
	Unspecified:          "unspecified",
	KeyCompromise:        "key_compromise",
	CACompromise:         "ca_compromise",
	AffiliationChanged:   "affiliation_changed",
	Superseded:           "superseded",
	CessationOfOperation: "cessation_of_operation",
	CertificateHold:      "certificate_hold",
	PrivilegeWithdrawn:   "privilege_withdrawn",
	AACompromise:         "aa_compromise",
}

// String converts a revocation reason to its string literal.
func (r RevocationReason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return "unknown"
}

// ToReason converts a string literal to a valid revocation reason.
func ToReason(reason string) (RevocationReason, error) {
	for code, name := range reasonNames {
		if name == reason {
			return code, nil
		}
	}

	return Unspecified, errors.ErrMalformedEntity
}

// MarshalJSON marshals a revocation reason as its string literal.
func (r RevocationReason) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON parses a revocation reason string literal.
func (r *RevocationReason) UnmarshalJSON(data []byte) error {
	str := strings.Trim(string(data), "\"")
	val, err := ToReason(str)
	*r = val
	return err
}

// DeviceInfo holds the subject fields of the device a certificate is
// issued for. The device ID itself becomes the common name.
type DeviceInfo struct {
	Organization       string `json:"organization,omitempty"`
	OrganizationalUnit string `json:"organizational_unit,omitempty"`
	Country            string `json:"country,omitempty"`
	State              string `json:"state,omitempty"`
	Locality           string `json:"locality,omitempty"`
}

// Cert is the stored record of an issued certificate. Serial,
// fingerprint and certificate bytes are immutable once persisted; only
// status, revocation metadata and the renewal counter may change.
type Cert struct {
	SerialNumber     string           `json:"serial_number"`
	SubjectDN        string           `json:"subject_dn"`
	IssuerDN         string           `json:"issuer_dn"`
	NotBefore        time.Time        `json:"not_before"`
	NotAfter         time.Time        `json:"not_after"`
	Status           Status           `json:"status"`
	Fingerprint      string           `json:"fingerprint_sha256"`
	Certificate      string           `json:"certificate,omitempty"`
	DeviceID         string           `json:"device_id,omitempty"`
	Template         string           `json:"template_name"`
	RevocationDate   *time.Time       `json:"revocation_date,omitempty"`
	RevocationReason RevocationReason `json:"revocation_reason,omitempty"`
	RenewalCount     uint32           `json:"renewal_count"`
}

// CRLEntry is an append-only revocation ledger row. Entries survive the
// natural expiry of the certificate they reference.
type CRLEntry struct {
	SerialNumber   string           `json:"serial_number"`
	RevocationDate time.Time        `json:"revocation_date"`
	ReasonCode     RevocationReason `json:"reason_code"`
}

// PageMetadata contains page related query parameters.
type PageMetadata struct {
	Total  uint64 `json:"total"`
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
}

// Page contains a listing of certificate records with page metadata.
type Page struct {
	PageMetadata
	Certificates []Cert `json:"certificates"`
}

// Repository specifies the certificate record persistence API.
type Repository interface {
	// Save upserts a certificate record. An insert persists the full
	// record; a re-save of an existing serial updates only status,
	// revocation metadata and the renewal counter.
	Save(ctx context.Context, cert Cert) (string, error)

	// RetrieveBySerial retrieves the record with the given serial number.
	RetrieveBySerial(ctx context.Context, serial string) (Cert, error)

	// RetrieveByDevice retrieves records issued to the given device,
	// most recently expiring first.
	RetrieveByDevice(ctx context.Context, deviceID string, pm PageMetadata) (Page, error)

	// RetrieveExpiring retrieves active records whose not-after falls
	// before the given instant.
	RetrieveExpiring(ctx context.Context, until time.Time, pm PageMetadata) (Page, error)

	// RetrieveAll retrieves all certificate records.
	RetrieveAll(ctx context.Context, pm PageMetadata) (Page, error)

	// AddCRLEntry appends a row to the revocation ledger.
	AddCRLEntry(ctx context.Context, entry CRLEntry) error

	// RetrieveCRLEntries retrieves the complete revocation ledger.
	RetrieveCRLEntries(ctx context.Context) ([]CRLEntry, error)
}
