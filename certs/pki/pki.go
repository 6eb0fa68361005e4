// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package pki abstracts key generation and certificate signing behind
// an Agent so the signing key can live on disk or in an external
// secrets manager without the issuing service knowing which.
package pki

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"time"

	"github.com/absmach/certkeeper/pkg/errors"
)

var (
	// ErrKeyGeneration indicates failure to generate a key pair.
	ErrKeyGeneration = errors.New("failed to generate key pair")

	// ErrSigning indicates failure of the signing backend.
	ErrSigning = errors.New("signing backend failure")

	// ErrMissingCA indicates that no CA material could be loaded or created.
	ErrMissingCA = errors.New("missing CA material")

	errUnknownExtKeyUsage = errors.New("unknown extended key usage")
)

var oidExtKeyUsage = asn1.ObjectIdentifier{2, 5, 29, 37}

// Extended key usage OIDs from RFC 5280, section 4.2.1.12.
var extKeyUsageOIDs = map[x509.ExtKeyUsage]asn1.ObjectIdentifier{
	x509.ExtKeyUsageServerAuth:      {1, 3, 6, 1, 5, 5, 7, 3, 1},
	x509.ExtKeyUsageClientAuth:      {1, 3, 6, 1, 5, 5, 7, 3, 2},
	x509.ExtKeyUsageCodeSigning:     {1, 3, 6, 1, 5, 5, 7, 3, 3},
	x509.ExtKeyUsageEmailProtection: {1, 3, 6, 1, 5, 5, 7, 3, 4},
	x509.ExtKeyUsageTimeStamping:    {1, 3, 6, 1, 5, 5, 7, 3, 8},
	x509.ExtKeyUsageOCSPSigning:     {1, 3, 6, 1, 5, 5, 7, 3, 9},
}

// Agent is the signing backend boundary. Implementations own the CA
// private key exclusively; callers only ever see the CA certificate.
type Agent interface {
	// GenerateKey generates a fresh RSA key pair of the given size.
	GenerateKey(bits int) (*rsa.PrivateKey, error)

	// SignCertificate signs the given to-be-signed certificate with the
	// CA key and returns the DER encoding.
	SignCertificate(template *x509.Certificate, pub crypto.PublicKey) ([]byte, error)

	// SignCRL signs the given revocation list with the CA key and
	// returns the DER encoding.
	SignCRL(template *x509.RevocationList) ([]byte, error)

	// CA returns the CA certificate.
	CA() *x509.Certificate
}

// Config holds the root subject fields and validity used when
// bootstrapping a CA. Loaded once at startup; rotation is an explicit
// administrative act, never implicit.
type Config struct {
	Country            string `env:"CA_COUNTRY"             envDefault:"TH"`
	State              string `env:"CA_STATE"               envDefault:"Bangkok"`
	Locality           string `env:"CA_LOCALITY"            envDefault:"Bangkok"`
	Organization       string `env:"CA_ORGANIZATION"        envDefault:"GridTokenX"`
	OrganizationalUnit string `env:"CA_ORGANIZATIONAL_UNIT" envDefault:"Smart Meter PKI"`
	CommonName         string `env:"CA_COMMON_NAME"         envDefault:"GridTokenX Root CA"`
	ValidityDays       uint   `env:"CA_VALIDITY_DAYS"       envDefault:"3650"`
	KeyBits            int    `env:"CA_KEY_BITS"            envDefault:"4096"`
}

func (c Config) subject() pkix.Name {
	return pkix.Name{
		Country:            []string{c.Country},
		Province:           []string{c.State},
		Locality:           []string{c.Locality},
		Organization:       []string{c.Organization},
		OrganizationalUnit: []string{c.OrganizationalUnit},
		CommonName:         c.CommonName,
	}
}

// NewSerial returns a random 128-bit certificate serial number.
func NewSerial() (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	serial, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return nil, errors.Wrap(ErrKeyGeneration, err)
	}
	return serial, nil
}

// buildRoot self-signs a CA certificate for the given public key using
// the provided signer.
func buildRoot(cfg Config, pub crypto.PublicKey, signer crypto.Signer) (*x509.Certificate, error) {
	serial, err := NewSerial()
	if err != nil {
		return nil, err
	}

	ski, err := SubjectKeyID(pub)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               cfg.subject(),
		NotBefore:             now,
		NotAfter:              now.Add(time.Duration(cfg.ValidityDays) * 24 * time.Hour),
		IsCA:                  true,
		MaxPathLen:            0,
		MaxPathLenZero:        true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		SubjectKeyId:          ski,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, pub, signer)
	if err != nil {
		return nil, errors.Wrap(ErrSigning, err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, errors.Wrap(ErrSigning, err)
	}

	return cert, nil
}

// ExtKeyUsageExtension encodes the given usages as an extended key
// usage extension with the requested criticality. The x509 package
// skips its own encoding of the extension when one with this OID is
// present in ExtraExtensions.
func ExtKeyUsageExtension(usages []x509.ExtKeyUsage, critical bool) (pkix.Extension, error) {
	oids := make([]asn1.ObjectIdentifier, 0, len(usages))
	for _, usage := range usages {
		oid, ok := extKeyUsageOIDs[usage]
		if !ok {
			return pkix.Extension{}, errors.Wrap(ErrSigning, errUnknownExtKeyUsage)
		}
		oids = append(oids, oid)
	}

	value, err := asn1.Marshal(oids)
	if err != nil {
		return pkix.Extension{}, errors.Wrap(ErrSigning, err)
	}

	return pkix.Extension{Id: oidExtKeyUsage, Critical: critical, Value: value}, nil
}

// SubjectKeyID derives a subject-key-identifier from a public key.
func SubjectKeyID(pub crypto.PublicKey) ([]byte, error) {
	encoded, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, errors.Wrap(ErrSigning, err)
	}
	sum := sha1.Sum(encoded)
	return sum[:], nil
}
