// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package certs

import (
	"context"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/absmach/certkeeper/certs/pki"
	"github.com/absmach/certkeeper/pkg/errors"
)

const (
	crlPEMType  = "X509 CRL"
	certPEMType = "CERTIFICATE"
	keyPEMType  = "PRIVATE KEY"

	crlValidity = 7 * 24 * time.Hour
)

var (
	// ErrUnknownTemplate indicates an issuance request naming a template
	// that is not configured.
	ErrUnknownTemplate = errors.New("unknown certificate template")

	// ErrFailedCertCreation indicates failure to issue a certificate.
	ErrFailedCertCreation = errors.New("failed to create device certificate")

	// ErrFailedCertRevocation indicates failure to revoke a certificate.
	ErrFailedCertRevocation = errors.New("failed to revoke certificate")

	// ErrFailedCRLGeneration indicates failure to rebuild the CRL.
	ErrFailedCRLGeneration = errors.New("failed to generate certificate revocation list")
)

// IssueRequest describes one device in a bulk issuance call.
type IssueRequest struct {
	DeviceID   string     `json:"device_id"`
	DeviceInfo DeviceInfo `json:"device_info"`
	Template   string     `json:"template"`
}

// Bundle is the device-facing result of issuance: the stored record
// plus the PEM-encoded private key handed off for mutual TLS.
type Bundle struct {
	Cert
	PrivateKey string `json:"private_key"`
}

// BulkFailure reports a single failed device in a bulk issuance call.
type BulkFailure struct {
	DeviceID string `json:"device_id"`
	Error    string `json:"error"`
}

// BulkResult lists per-device outcomes of a bulk issuance call. One
// device failing never fails the batch.
type BulkResult struct {
	Issued []Bundle      `json:"issued"`
	Failed []BulkFailure `json:"failed"`
}

// Revoke holds the effective revocation time.
type Revoke struct {
	RevocationTime time.Time `json:"revocation_time"`
}

// DeviceStatus summarizes the current certificate of a device.
type DeviceStatus struct {
	DeviceID        string `json:"device_id"`
	Certificate     Cert   `json:"certificate"`
	DaysUntilExpiry int    `json:"days_until_expiry"`
	RenewalNeeded   bool   `json:"renewal_needed"`
	Urgency         string `json:"urgency,omitempty"`
}

// Service specifies the certificate lifecycle API fulfilled by the
// domain service and all of its decorators.
type Service interface {
	// IssueCert issues a certificate for the given device from a named
	// template, returning the record and the device private key.
	IssueCert(ctx context.Context, deviceID string, info DeviceInfo, template string) (Bundle, error)

	// IssueBulk issues certificates for multiple devices independently,
	// reporting per-device success and failure.
	IssueBulk(ctx context.Context, reqs []IssueRequest) (BulkResult, error)

	// ViewCert retrieves the record with the given serial number.
	ViewCert(ctx context.Context, serial string) (Cert, error)

	// ListCerts lists records issued to the given device, most recently
	// expiring first.
	ListCerts(ctx context.Context, deviceID string, pm PageMetadata) (Page, error)

	// ListExpiring lists active records expiring within the given
	// number of days.
	ListExpiring(ctx context.Context, days uint, pm PageMetadata) (Page, error)

	// Reissue replaces the certificate with the given serial: a fresh
	// key pair and serial, the same template, and the renewal counter
	// incremented. The old record is left untouched.
	Reissue(ctx context.Context, serial string) (Bundle, error)

	// RevokeCert revokes the certificate with the given serial, appends
	// to the revocation ledger and rebuilds the CRL.
	RevokeCert(ctx context.Context, serial string, reason RevocationReason) (Revoke, error)

	// GenerateCRL rebuilds, signs and persists the CRL, returning it
	// PEM encoded.
	GenerateCRL(ctx context.Context) ([]byte, error)

	// ViewCRL returns the current CRL PEM, generating one if none
	// exists yet.
	ViewCRL(ctx context.Context) ([]byte, error)

	// ViewCA returns the CA certificate PEM.
	ViewCA(ctx context.Context) ([]byte, error)

	// DeviceStatus reports the current certificate state of a device.
	DeviceStatus(ctx context.Context, deviceID string) (DeviceStatus, error)
}

var _ Service = (*certsService)(nil)

type certsService struct {
	repo      Repository
	agent     pki.Agent
	templates map[string]Template
	domain    string
	renewDays uint

	crlMu   sync.Mutex
	crlPEM  []byte
	crlPath string
}

// NewService instantiates the certificate lifecycle service. The CA is
// owned by the agent and is never recreated after construction.
func NewService(repo Repository, agent pki.Agent, baseDir, sanDomain string, renewThresholdDays uint) Service {
	return &certsService{
		repo:      repo,
		agent:     agent,
		templates: Templates(),
		domain:    sanDomain,
		renewDays: renewThresholdDays,
		crlPath:   filepath.Join(baseDir, "crl", "crl.pem"),
	}
}

func (cs *certsService) IssueCert(ctx context.Context, deviceID string, info DeviceInfo, template string) (Bundle, error) {
	return cs.issue(ctx, deviceID, info, template, 0)
}

// issue carries the renewal counter so renewal re-issuance can thread
// old.renewal_count+1 through a single code path.
func (cs *certsService) issue(ctx context.Context, deviceID string, info DeviceInfo, template string, renewalCount uint32) (Bundle, error) {
	tmpl, ok := cs.templates[template]
	if !ok {
		return Bundle{}, errors.Wrap(ErrUnknownTemplate, errors.New(template))
	}

	key, err := cs.agent.GenerateKey(tmpl.KeyBits)
	if err != nil {
		return Bundle{}, errors.Wrap(ErrFailedCertCreation, err)
	}

	serial, err := pki.NewSerial()
	if err != nil {
		return Bundle{}, errors.Wrap(ErrFailedCertCreation, err)
	}
	ski, err := pki.SubjectKeyID(key.Public())
	if err != nil {
		return Bundle{}, errors.Wrap(ErrFailedCertCreation, err)
	}

	now := time.Now().UTC()
	leaf := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               deviceSubject(deviceID, info),
		NotBefore:             now,
		NotAfter:              now.Add(time.Duration(tmpl.ValidityDays) * 24 * time.Hour),
		BasicConstraintsValid: true,
		KeyUsage:              tmpl.KeyUsage,
		ExtKeyUsage:           tmpl.ExtKeyUsage,
		SubjectKeyId:          ski,
	}
	if tmpl.DNSName {
		leaf.DNSNames = []string{fmt.Sprintf("meter-%s.%s", deviceID, cs.domain)}
	}
	if tmpl.EmailName {
		leaf.EmailAddresses = []string{fmt.Sprintf("%s@%s", deviceID, cs.domain)}
	}
	if tmpl.ExtKeyUsageCritical && len(tmpl.ExtKeyUsage) > 0 {
		ekuExt, err := pki.ExtKeyUsageExtension(tmpl.ExtKeyUsage, true)
		if err != nil {
			return Bundle{}, errors.Wrap(ErrFailedCertCreation, err)
		}
		leaf.ExtraExtensions = append(leaf.ExtraExtensions, ekuExt)
	}

	der, err := cs.agent.SignCertificate(leaf, key.Public())
	if err != nil {
		return Bundle{}, errors.Wrap(ErrFailedCertCreation, err)
	}
	parsed, err := x509.ParseCertificate(der)
	if err != nil {
		return Bundle{}, errors.Wrap(ErrFailedCertCreation, err)
	}

	fingerprint := sha256.Sum256(der)
	cert := Cert{
		SerialNumber: parsed.SerialNumber.String(),
		SubjectDN:    parsed.Subject.String(),
		IssuerDN:     parsed.Issuer.String(),
		NotBefore:    parsed.NotBefore,
		NotAfter:     parsed.NotAfter,
		Status:       Active,
		Fingerprint:  hex.EncodeToString(fingerprint[:]),
		Certificate:  string(pem.EncodeToMemory(&pem.Block{Type: certPEMType, Bytes: der})),
		DeviceID:     deviceID,
		Template:     template,
		RenewalCount: renewalCount,
	}

	if _, err := cs.repo.Save(ctx, cert); err != nil {
		return Bundle{}, errors.Wrap(ErrFailedCertCreation, err)
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return Bundle{}, errors.Wrap(ErrFailedCertCreation, err)
	}

	return Bundle{
		Cert:       cert,
		PrivateKey: string(pem.EncodeToMemory(&pem.Block{Type: keyPEMType, Bytes: keyDER})),
	}, nil
}

func (cs *certsService) IssueBulk(ctx context.Context, reqs []IssueRequest) (BulkResult, error) {
	res := BulkResult{
		Issued: []Bundle{},
		Failed: []BulkFailure{},
	}
	for _, req := range reqs {
		bundle, err := cs.IssueCert(ctx, req.DeviceID, req.DeviceInfo, req.Template)
		if err != nil {
			res.Failed = append(res.Failed, BulkFailure{DeviceID: req.DeviceID, Error: err.Error()})
			continue
		}
		res.Issued = append(res.Issued, bundle)
	}
	return res, nil
}

func (cs *certsService) ViewCert(ctx context.Context, serial string) (Cert, error) {
	return cs.repo.RetrieveBySerial(ctx, serial)
}

func (cs *certsService) ListCerts(ctx context.Context, deviceID string, pm PageMetadata) (Page, error) {
	return cs.repo.RetrieveByDevice(ctx, deviceID, pm)
}

func (cs *certsService) ListExpiring(ctx context.Context, days uint, pm PageMetadata) (Page, error) {
	until := time.Now().UTC().Add(time.Duration(days) * 24 * time.Hour)
	return cs.repo.RetrieveExpiring(ctx, until, pm)
}

func (cs *certsService) Reissue(ctx context.Context, serial string) (Bundle, error) {
	old, err := cs.repo.RetrieveBySerial(ctx, serial)
	if err != nil {
		return Bundle{}, errors.Wrap(ErrFailedCertCreation, err)
	}
	if old.DeviceID == "" {
		return Bundle{}, errors.Wrap(ErrFailedCertCreation, errors.ErrMalformedEntity)
	}

	info := DeviceInfo{}
	if block, _ := pem.Decode([]byte(old.Certificate)); block != nil {
		if parsed, err := x509.ParseCertificate(block.Bytes); err == nil {
			info = subjectInfo(parsed.Subject)
		}
	}

	return cs.issue(ctx, old.DeviceID, info, old.Template, old.RenewalCount+1)
}

func (cs *certsService) RevokeCert(ctx context.Context, serial string, reason RevocationReason) (Revoke, error) {
	cert, err := cs.repo.RetrieveBySerial(ctx, serial)
	if err != nil {
		return Revoke{}, errors.Wrap(ErrFailedCertRevocation, err)
	}

	// Revoking twice is a no-op returning the original revocation time.
	if cert.Status == Revoked && cert.RevocationDate != nil {
		return Revoke{RevocationTime: *cert.RevocationDate}, nil
	}

	now := time.Now().UTC()
	cert.Status = Revoked
	cert.RevocationDate = &now
	cert.RevocationReason = reason

	if _, err := cs.repo.Save(ctx, cert); err != nil {
		return Revoke{}, errors.Wrap(ErrFailedCertRevocation, err)
	}
	entry := CRLEntry{
		SerialNumber:   cert.SerialNumber,
		RevocationDate: now,
		ReasonCode:     reason,
	}
	if err := cs.repo.AddCRLEntry(ctx, entry); err != nil {
		return Revoke{}, errors.Wrap(ErrFailedCertRevocation, err)
	}

	if _, err := cs.GenerateCRL(ctx); err != nil {
		return Revoke{}, err
	}

	return Revoke{RevocationTime: now}, nil
}

func (cs *certsService) GenerateCRL(ctx context.Context) ([]byte, error) {
	entries, err := cs.repo.RetrieveCRLEntries(ctx)
	if err != nil {
		return nil, errors.Wrap(ErrFailedCRLGeneration, err)
	}

	revoked := make([]x509.RevocationListEntry, 0, len(entries))
	for _, e := range entries {
		serial, ok := new(big.Int).SetString(e.SerialNumber, 10)
		if !ok {
			return nil, errors.Wrap(ErrFailedCRLGeneration, errors.ErrMalformedEntity)
		}
		revoked = append(revoked, x509.RevocationListEntry{
			SerialNumber:   serial,
			RevocationTime: e.RevocationDate.UTC(),
			ReasonCode:     int(e.ReasonCode),
		})
	}

	now := time.Now().UTC()
	template := &x509.RevocationList{
		RevokedCertificateEntries: revoked,
		Number:                    big.NewInt(now.UnixNano()),
		ThisUpdate:                now,
		NextUpdate:                now.Add(crlValidity),
	}

	der, err := cs.agent.SignCRL(template)
	if err != nil {
		return nil, errors.Wrap(ErrFailedCRLGeneration, err)
	}
	crlPEM := pem.EncodeToMemory(&pem.Block{Type: crlPEMType, Bytes: der})

	cs.crlMu.Lock()
	defer cs.crlMu.Unlock()
	if err := os.MkdirAll(filepath.Dir(cs.crlPath), 0o755); err != nil {
		return nil, errors.Wrap(ErrFailedCRLGeneration, err)
	}
	if err := os.WriteFile(cs.crlPath, crlPEM, 0o644); err != nil {
		return nil, errors.Wrap(ErrFailedCRLGeneration, err)
	}
	cs.crlPEM = crlPEM

	return crlPEM, nil
}

func (cs *certsService) ViewCRL(ctx context.Context) ([]byte, error) {
	cs.crlMu.Lock()
	cached := cs.crlPEM
	if cached == nil {
		if data, err := os.ReadFile(cs.crlPath); err == nil {
			cs.crlPEM = data
			cached = data
		}
	}
	cs.crlMu.Unlock()

	if cached != nil {
		return cached, nil
	}
	return cs.GenerateCRL(ctx)
}

func (cs *certsService) ViewCA(_ context.Context) ([]byte, error) {
	ca := cs.agent.CA()
	if ca == nil {
		return nil, pki.ErrMissingCA
	}
	return pem.EncodeToMemory(&pem.Block{Type: certPEMType, Bytes: ca.Raw}), nil
}

func (cs *certsService) DeviceStatus(ctx context.Context, deviceID string) (DeviceStatus, error) {
	page, err := cs.repo.RetrieveByDevice(ctx, deviceID, PageMetadata{Limit: 1})
	if err != nil {
		return DeviceStatus{}, err
	}
	if len(page.Certificates) == 0 {
		return DeviceStatus{}, errors.ErrNotFound
	}

	cert := page.Certificates[0]
	days := int(time.Until(cert.NotAfter).Hours() / 24)
	status := DeviceStatus{
		DeviceID:        deviceID,
		Certificate:     cert,
		DaysUntilExpiry: days,
	}
	if cert.Status == Active && days <= int(cs.renewDays) {
		status.RenewalNeeded = true
		status.Urgency = urgency(days)
	}

	return status, nil
}

func urgency(days int) string {
	switch {
	case days <= 7:
		return "critical"
	case days <= 14:
		return "high"
	case days <= 21:
		return "medium"
	default:
		return "low"
	}
}

func subjectInfo(name pkix.Name) DeviceInfo {
	info := DeviceInfo{}
	if len(name.Country) > 0 {
		info.Country = name.Country[0]
	}
	if len(name.Province) > 0 {
		info.State = name.Province[0]
	}
	if len(name.Locality) > 0 {
		info.Locality = name.Locality[0]
	}
	if len(name.Organization) > 0 {
		info.Organization = name.Organization[0]
	}
	if len(name.OrganizationalUnit) > 0 {
		info.OrganizationalUnit = name.OrganizationalUnit[0]
	}
	return info
}

func deviceSubject(deviceID string, info DeviceInfo) pkix.Name {
	name := pkix.Name{CommonName: deviceID}
	if info.Country != "" {
		name.Country = []string{info.Country}
	}
	if info.State != "" {
		name.Province = []string{info.State}
	}
	if info.Locality != "" {
		name.Locality = []string{info.Locality}
	}
	if info.Organization != "" {
		name.Organization = []string{info.Organization}
	}
	if info.OrganizationalUnit != "" {
		name.OrganizationalUnit = []string{info.OrganizationalUnit}
	}
	return name
}
