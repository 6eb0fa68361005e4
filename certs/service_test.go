// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package certs_test

import (
	"context"
	"crypto/x509"
	"encoding/asn1"
	"encoding/pem"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/absmach/certkeeper/certs"
	"github.com/absmach/certkeeper/certs/mocks"
	pkimocks "github.com/absmach/certkeeper/certs/pki/mocks"
	"github.com/absmach/certkeeper/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	deviceID   = "SM-001"
	sanDomain  = "example.local"
	renewDays  = 30
	wrongValue = "wrong-value"
)

var deviceInfo = certs.DeviceInfo{
	Organization:       "GridTokenX",
	OrganizationalUnit: "Smart Meters",
	Country:            "TH",
	State:              "Bangkok",
	Locality:           "Bangkok",
}

func newService(t *testing.T) (certs.Service, certs.Repository, *pkimocks.Agent) {
	agent, err := pkimocks.NewAgent()
	require.Nil(t, err, fmt.Sprintf("unexpected agent creation error: %s\n", err))

	repo := mocks.NewRepository()
	svc := certs.NewService(repo, agent, t.TempDir(), sanDomain, renewDays)

	return svc, repo, agent
}

func readCert(t *testing.T, certPEM string) *x509.Certificate {
	block, _ := pem.Decode([]byte(certPEM))
	require.NotNil(t, block, "expected PEM encoded certificate")
	cert, err := x509.ParseCertificate(block.Bytes)
	require.Nil(t, err, fmt.Sprintf("unexpected certificate parse error: %s\n", err))
	return cert
}

func TestIssueCert(t *testing.T) {
	svc, _, _ := newService(t)

	cases := []struct {
		desc     string
		deviceID string
		template string
		err      error
	}{
		{
			desc:     "issue cert from meter template",
			deviceID: deviceID,
			template: certs.TemplateSmartMeter,
			err:      nil,
		},
		{
			desc:     "issue cert from server template",
			deviceID: "hes-01",
			template: certs.TemplateServer,
			err:      nil,
		},
		{
			desc:     "issue cert from gateway template",
			deviceID: "gw-01",
			template: certs.TemplateAPIGateway,
			err:      nil,
		},
		{
			desc:     "issue cert from unknown template",
			deviceID: deviceID,
			template: wrongValue,
			err:      certs.ErrUnknownTemplate,
		},
	}

	for _, tc := range cases {
		bundle, err := svc.IssueCert(context.Background(), tc.deviceID, deviceInfo, tc.template)
		assert.True(t, errors.Contains(err, tc.err), fmt.Sprintf("%s: expected %s got %s\n", tc.desc, tc.err, err))
		if err != nil {
			continue
		}
		assert.Equal(t, certs.Active, bundle.Status, fmt.Sprintf("%s: expected active status\n", tc.desc))
		assert.Equal(t, tc.deviceID, bundle.DeviceID, fmt.Sprintf("%s: expected device ID %s got %s\n", tc.desc, tc.deviceID, bundle.DeviceID))
		assert.NotEmpty(t, bundle.PrivateKey, fmt.Sprintf("%s: expected private key PEM\n", tc.desc))

		cert := readCert(t, bundle.Certificate)
		assert.Equal(t, tc.deviceID, cert.Subject.CommonName, fmt.Sprintf("%s: expected CN %s got %s\n", tc.desc, tc.deviceID, cert.Subject.CommonName))
		assert.Equal(t, bundle.SerialNumber, cert.SerialNumber.String(), fmt.Sprintf("%s: serial mismatch\n", tc.desc))
	}
}

func TestIssueCertTemplates(t *testing.T) {
	svc, _, _ := newService(t)

	cases := []struct {
		desc         string
		template     string
		validityDays int
		extKeyUsage  []x509.ExtKeyUsage
		dnsName      string
		emailName    string
	}{
		{
			desc:         "meter cert carries client and server auth with SAN pair",
			template:     certs.TemplateSmartMeter,
			validityDays: 365,
			extKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
			dnsName:      fmt.Sprintf("meter-%s.%s", deviceID, sanDomain),
			emailName:    fmt.Sprintf("%s@%s", deviceID, sanDomain),
		},
		{
			desc:         "server cert carries server auth with DNS SAN",
			template:     certs.TemplateServer,
			validityDays: 730,
			extKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
			dnsName:      fmt.Sprintf("meter-%s.%s", deviceID, sanDomain),
		},
		{
			desc:         "gateway cert carries server and client auth with DNS SAN",
			template:     certs.TemplateAPIGateway,
			validityDays: 365,
			extKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
			dnsName:      fmt.Sprintf("meter-%s.%s", deviceID, sanDomain),
		},
	}

	for _, tc := range cases {
		bundle, err := svc.IssueCert(context.Background(), deviceID, deviceInfo, tc.template)
		require.Nil(t, err, fmt.Sprintf("%s: unexpected issuance error: %s\n", tc.desc, err))

		cert := readCert(t, bundle.Certificate)
		validity := cert.NotAfter.Sub(cert.NotBefore)
		assert.Equal(t, time.Duration(tc.validityDays)*24*time.Hour, validity, fmt.Sprintf("%s: expected %d day validity got %s\n", tc.desc, tc.validityDays, validity))
		assert.Equal(t, tc.extKeyUsage, cert.ExtKeyUsage, fmt.Sprintf("%s: extended key usage mismatch\n", tc.desc))
		if tc.dnsName != "" {
			assert.Contains(t, cert.DNSNames, tc.dnsName, fmt.Sprintf("%s: expected DNS SAN %s\n", tc.desc, tc.dnsName))
		}
		if tc.emailName != "" {
			assert.Contains(t, cert.EmailAddresses, tc.emailName, fmt.Sprintf("%s: expected email SAN %s\n", tc.desc, tc.emailName))
		} else {
			assert.Empty(t, cert.EmailAddresses, fmt.Sprintf("%s: expected no email SAN\n", tc.desc))
		}
	}
}

func TestIssueCertExtensionCriticality(t *testing.T) {
	svc, _, _ := newService(t)

	keyUsageOID := asn1.ObjectIdentifier{2, 5, 29, 15}
	extKeyUsageOID := asn1.ObjectIdentifier{2, 5, 29, 37}

	for _, template := range []string{certs.TemplateSmartMeter, certs.TemplateServer, certs.TemplateAPIGateway} {
		bundle, err := svc.IssueCert(context.Background(), deviceID, deviceInfo, template)
		require.Nil(t, err, fmt.Sprintf("%s: unexpected issuance error: %s\n", template, err))

		cert := readCert(t, bundle.Certificate)
		foundKU, foundEKU := false, false
		for _, ext := range cert.Extensions {
			switch {
			case ext.Id.Equal(keyUsageOID):
				foundKU = true
				assert.True(t, ext.Critical, fmt.Sprintf("%s: expected critical key usage extension\n", template))
			case ext.Id.Equal(extKeyUsageOID):
				foundEKU = true
				assert.True(t, ext.Critical, fmt.Sprintf("%s: expected critical extended key usage extension\n", template))
			}
		}
		assert.True(t, foundKU, fmt.Sprintf("%s: expected key usage extension\n", template))
		assert.True(t, foundEKU, fmt.Sprintf("%s: expected extended key usage extension\n", template))
	}
}

func TestIssueCertUniqueSerials(t *testing.T) {
	svc, _, _ := newService(t)

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		bundle, err := svc.IssueCert(context.Background(), fmt.Sprintf("SM-%03d", i), deviceInfo, certs.TemplateSmartMeter)
		require.Nil(t, err, fmt.Sprintf("unexpected issuance error: %s\n", err))
		assert.False(t, seen[bundle.SerialNumber], fmt.Sprintf("duplicate serial %s\n", bundle.SerialNumber))
		seen[bundle.SerialNumber] = true
	}
}

func TestIssueBulk(t *testing.T) {
	svc, _, _ := newService(t)

	reqs := []certs.IssueRequest{
		{DeviceID: "SM-001", DeviceInfo: deviceInfo, Template: certs.TemplateSmartMeter},
		{DeviceID: "SM-002", DeviceInfo: deviceInfo, Template: wrongValue},
		{DeviceID: "SM-003", DeviceInfo: deviceInfo, Template: certs.TemplateSmartMeter},
	}

	res, err := svc.IssueBulk(context.Background(), reqs)
	require.Nil(t, err, fmt.Sprintf("unexpected bulk issuance error: %s\n", err))

	assert.Len(t, res.Issued, 2, "expected two issued certificates")
	require.Len(t, res.Failed, 1, "expected one failed device")
	assert.Equal(t, "SM-002", res.Failed[0].DeviceID, "expected failure for SM-002")
	assert.True(t, strings.Contains(res.Failed[0].Error, "unknown certificate template"), fmt.Sprintf("unexpected failure reason: %s\n", res.Failed[0].Error))
}

func TestViewCert(t *testing.T) {
	svc, _, _ := newService(t)

	bundle, err := svc.IssueCert(context.Background(), deviceID, deviceInfo, certs.TemplateSmartMeter)
	require.Nil(t, err, fmt.Sprintf("unexpected issuance error: %s\n", err))

	cases := []struct {
		desc   string
		serial string
		err    error
	}{
		{
			desc:   "view existing cert",
			serial: bundle.SerialNumber,
			err:    nil,
		},
		{
			desc:   "view non-existing cert",
			serial: wrongValue,
			err:    errors.ErrNotFound,
		},
	}

	for _, tc := range cases {
		cert, err := svc.ViewCert(context.Background(), tc.serial)
		assert.True(t, errors.Contains(err, tc.err), fmt.Sprintf("%s: expected %s got %s\n", tc.desc, tc.err, err))
		if err == nil {
			assert.Equal(t, bundle.Fingerprint, cert.Fingerprint, fmt.Sprintf("%s: fingerprint mismatch\n", tc.desc))
		}
	}
}

func TestReissue(t *testing.T) {
	svc, _, _ := newService(t)

	bundle, err := svc.IssueCert(context.Background(), deviceID, deviceInfo, certs.TemplateSmartMeter)
	require.Nil(t, err, fmt.Sprintf("unexpected issuance error: %s\n", err))

	renewed, err := svc.Reissue(context.Background(), bundle.SerialNumber)
	require.Nil(t, err, fmt.Sprintf("unexpected reissuance error: %s\n", err))

	assert.NotEqual(t, bundle.SerialNumber, renewed.SerialNumber, "expected a fresh serial number")
	assert.Equal(t, bundle.RenewalCount+1, renewed.RenewalCount, "expected renewal count to increment")
	assert.Equal(t, bundle.Template, renewed.Template, "expected the same template")
	assert.Equal(t, deviceID, renewed.DeviceID, "expected the same device")

	cert := readCert(t, renewed.Certificate)
	assert.Equal(t, deviceInfo.Organization, cert.Subject.Organization[0], "expected the original subject organization")

	_, err = svc.Reissue(context.Background(), wrongValue)
	assert.True(t, errors.Contains(err, certs.ErrFailedCertCreation), fmt.Sprintf("expected %s got %s\n", certs.ErrFailedCertCreation, err))
}

func TestRevokeCert(t *testing.T) {
	svc, _, _ := newService(t)

	bundle, err := svc.IssueCert(context.Background(), deviceID, deviceInfo, certs.TemplateSmartMeter)
	require.Nil(t, err, fmt.Sprintf("unexpected issuance error: %s\n", err))

	cases := []struct {
		desc   string
		serial string
		reason certs.RevocationReason
		err    error
	}{
		{
			desc:   "revoke existing cert",
			serial: bundle.SerialNumber,
			reason: certs.KeyCompromise,
			err:    nil,
		},
		{
			desc:   "revoke non-existing cert",
			serial: wrongValue,
			reason: certs.Unspecified,
			err:    errors.ErrNotFound,
		},
	}

	for _, tc := range cases {
		_, err := svc.RevokeCert(context.Background(), tc.serial, tc.reason)
		assert.True(t, errors.Contains(err, tc.err), fmt.Sprintf("%s: expected %s got %s\n", tc.desc, tc.err, err))
	}

	cert, err := svc.ViewCert(context.Background(), bundle.SerialNumber)
	require.Nil(t, err, fmt.Sprintf("unexpected view error: %s\n", err))
	assert.Equal(t, certs.Revoked, cert.Status, "expected revoked status")
	assert.Equal(t, certs.KeyCompromise, cert.RevocationReason, "expected key compromise reason")
	require.NotNil(t, cert.RevocationDate, "expected a revocation date")
}

func TestRevokeCertIdempotent(t *testing.T) {
	svc, _, _ := newService(t)

	bundle, err := svc.IssueCert(context.Background(), deviceID, deviceInfo, certs.TemplateSmartMeter)
	require.Nil(t, err, fmt.Sprintf("unexpected issuance error: %s\n", err))

	first, err := svc.RevokeCert(context.Background(), bundle.SerialNumber, certs.Superseded)
	require.Nil(t, err, fmt.Sprintf("unexpected revocation error: %s\n", err))

	second, err := svc.RevokeCert(context.Background(), bundle.SerialNumber, certs.KeyCompromise)
	require.Nil(t, err, fmt.Sprintf("unexpected repeated revocation error: %s\n", err))
	assert.Equal(t, first.RevocationTime, second.RevocationTime, "expected the original revocation time")

	cert, err := svc.ViewCert(context.Background(), bundle.SerialNumber)
	require.Nil(t, err, fmt.Sprintf("unexpected view error: %s\n", err))
	assert.Equal(t, certs.Superseded, cert.RevocationReason, "expected the original revocation reason")
}

func TestCRL(t *testing.T) {
	svc, _, agent := newService(t)

	revokedBundle, err := svc.IssueCert(context.Background(), deviceID, deviceInfo, certs.TemplateSmartMeter)
	require.Nil(t, err, fmt.Sprintf("unexpected issuance error: %s\n", err))
	activeBundle, err := svc.IssueCert(context.Background(), "SM-002", deviceInfo, certs.TemplateSmartMeter)
	require.Nil(t, err, fmt.Sprintf("unexpected issuance error: %s\n", err))

	_, err = svc.RevokeCert(context.Background(), revokedBundle.SerialNumber, certs.CessationOfOperation)
	require.Nil(t, err, fmt.Sprintf("unexpected revocation error: %s\n", err))

	crlPEM, err := svc.ViewCRL(context.Background())
	require.Nil(t, err, fmt.Sprintf("unexpected CRL error: %s\n", err))

	block, _ := pem.Decode(crlPEM)
	require.NotNil(t, block, "expected PEM encoded CRL")
	assert.Equal(t, "X509 CRL", block.Type, "unexpected PEM type")

	crl, err := x509.ParseRevocationList(block.Bytes)
	require.Nil(t, err, fmt.Sprintf("unexpected CRL parse error: %s\n", err))
	assert.Nil(t, crl.CheckSignatureFrom(agent.CA()), "expected CRL signed by the CA")
	assert.True(t, crl.NextUpdate.After(crl.ThisUpdate), "expected next update after this update")

	require.Len(t, crl.RevokedCertificateEntries, 1, "expected a single CRL entry")
	entry := crl.RevokedCertificateEntries[0]
	assert.Equal(t, revokedBundle.SerialNumber, entry.SerialNumber.String(), "CRL serial mismatch")
	assert.Equal(t, int(certs.CessationOfOperation), entry.ReasonCode, "CRL reason code mismatch")
	assert.NotEqual(t, activeBundle.SerialNumber, entry.SerialNumber.String(), "active cert must not appear in the CRL")
}

func TestGenerateCRLEmpty(t *testing.T) {
	svc, _, _ := newService(t)

	crlPEM, err := svc.GenerateCRL(context.Background())
	require.Nil(t, err, fmt.Sprintf("unexpected CRL error: %s\n", err))

	block, _ := pem.Decode(crlPEM)
	require.NotNil(t, block, "expected PEM encoded CRL")
	crl, err := x509.ParseRevocationList(block.Bytes)
	require.Nil(t, err, fmt.Sprintf("unexpected CRL parse error: %s\n", err))
	assert.Empty(t, crl.RevokedCertificateEntries, "expected an empty CRL")
}

func TestViewCA(t *testing.T) {
	svc, _, agent := newService(t)

	caPEM, err := svc.ViewCA(context.Background())
	require.Nil(t, err, fmt.Sprintf("unexpected CA error: %s\n", err))

	ca := readCert(t, string(caPEM))
	assert.True(t, ca.IsCA, "expected a CA certificate")
	assert.Equal(t, agent.CA().SerialNumber.String(), ca.SerialNumber.String(), "CA serial mismatch")
}

func TestDeviceStatus(t *testing.T) {
	svc, repo, _ := newService(t)

	_, err := svc.IssueCert(context.Background(), deviceID, deviceInfo, certs.TemplateSmartMeter)
	require.Nil(t, err, fmt.Sprintf("unexpected issuance error: %s\n", err))

	expiring := certs.Cert{
		SerialNumber: "12345",
		DeviceID:     "SM-EXP",
		Template:     certs.TemplateSmartMeter,
		Status:       certs.Active,
		Fingerprint:  "fp-expiring",
		Certificate:  "placeholder",
		NotAfter:     time.Now().Add(5 * 24 * time.Hour),
	}
	_, err = repo.Save(context.Background(), expiring)
	require.Nil(t, err, fmt.Sprintf("unexpected save error: %s\n", err))

	cases := []struct {
		desc          string
		deviceID      string
		renewalNeeded bool
		urgency       string
		err           error
	}{
		{
			desc:          "status of freshly issued cert",
			deviceID:      deviceID,
			renewalNeeded: false,
			err:           nil,
		},
		{
			desc:          "status of cert expiring within a week",
			deviceID:      "SM-EXP",
			renewalNeeded: true,
			urgency:       "critical",
			err:           nil,
		},
		{
			desc:     "status of unknown device",
			deviceID: wrongValue,
			err:      errors.ErrNotFound,
		},
	}

	for _, tc := range cases {
		status, err := svc.DeviceStatus(context.Background(), tc.deviceID)
		assert.True(t, errors.Contains(err, tc.err), fmt.Sprintf("%s: expected %s got %s\n", tc.desc, tc.err, err))
		if err != nil {
			continue
		}
		assert.Equal(t, tc.renewalNeeded, status.RenewalNeeded, fmt.Sprintf("%s: renewal flag mismatch\n", tc.desc))
		assert.Equal(t, tc.urgency, status.Urgency, fmt.Sprintf("%s: expected urgency %q got %q\n", tc.desc, tc.urgency, status.Urgency))
	}
}

func TestListExpiring(t *testing.T) {
	svc, repo, _ := newService(t)

	_, err := svc.IssueCert(context.Background(), deviceID, deviceInfo, certs.TemplateSmartMeter)
	require.Nil(t, err, fmt.Sprintf("unexpected issuance error: %s\n", err))

	expiring := certs.Cert{
		SerialNumber: "54321",
		DeviceID:     "SM-EXP",
		Template:     certs.TemplateSmartMeter,
		Status:       certs.Active,
		Fingerprint:  "fp-listing",
		Certificate:  "placeholder",
		NotAfter:     time.Now().Add(10 * 24 * time.Hour),
	}
	_, err = repo.Save(context.Background(), expiring)
	require.Nil(t, err, fmt.Sprintf("unexpected save error: %s\n", err))

	page, err := svc.ListExpiring(context.Background(), renewDays, certs.PageMetadata{Limit: 10})
	require.Nil(t, err, fmt.Sprintf("unexpected listing error: %s\n", err))
	require.Equal(t, uint64(1), page.Total, "expected a single expiring certificate")
	assert.Equal(t, "SM-EXP", page.Certificates[0].DeviceID, "expected the expiring device")
}

func TestIssueCertSigningFailure(t *testing.T) {
	svc, _, agent := newService(t)

	agent.Fail(errors.New("signing backend offline"))
	_, err := svc.IssueCert(context.Background(), deviceID, deviceInfo, certs.TemplateSmartMeter)
	assert.True(t, errors.Contains(err, certs.ErrFailedCertCreation), fmt.Sprintf("expected %s got %s\n", certs.ErrFailedCertCreation, err))
}
