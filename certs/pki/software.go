// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package pki

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"

	"github.com/absmach/certkeeper/pkg/errors"
)

const (
	caCertFile = "ca.pem"
	caKeyFile  = "ca-key.pem"

	certPEMType = "CERTIFICATE"
	keyPEMType  = "PRIVATE KEY"
)

var errLoadCA = errors.New("failed to load CA material from disk")

var _ Agent = (*softwareAgent)(nil)

// softwareAgent keeps the CA key pair on the local filesystem. The key
// is stored unencrypted in PKCS#8 with owner-only permissions.
type softwareAgent struct {
	ca  *x509.Certificate
	key *rsa.PrivateKey
}

// NewSoftwareAgent loads the CA from baseDir, bootstrapping a new
// self-signed root when none exists yet.
func NewSoftwareAgent(baseDir string, cfg Config) (Agent, error) {
	caDir := filepath.Join(baseDir, "ca")
	privateDir := filepath.Join(baseDir, "private")
	for _, dir := range []string{caDir, privateDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(ErrMissingCA, err)
		}
	}

	certPath := filepath.Join(caDir, caCertFile)
	keyPath := filepath.Join(privateDir, caKeyFile)

	if _, err := os.Stat(certPath); err == nil {
		ca, key, err := loadCA(certPath, keyPath)
		if err != nil {
			return nil, err
		}
		return &softwareAgent{ca: ca, key: key}, nil
	}

	key, err := rsa.GenerateKey(rand.Reader, cfg.KeyBits)
	if err != nil {
		return nil, errors.Wrap(ErrKeyGeneration, err)
	}

	ca, err := buildRoot(cfg, key.Public(), key)
	if err != nil {
		return nil, err
	}

	if err := writePEM(certPath, certPEMType, ca.Raw, 0o644); err != nil {
		return nil, err
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, errors.Wrap(ErrMissingCA, err)
	}
	if err := writePEM(keyPath, keyPEMType, keyDER, 0o600); err != nil {
		return nil, err
	}

	return &softwareAgent{ca: ca, key: key}, nil
}

func (a *softwareAgent) GenerateKey(bits int) (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, errors.Wrap(ErrKeyGeneration, err)
	}
	return key, nil
}

func (a *softwareAgent) SignCertificate(template *x509.Certificate, pub crypto.PublicKey) ([]byte, error) {
	der, err := x509.CreateCertificate(rand.Reader, template, a.ca, pub, a.key)
	if err != nil {
		return nil, errors.Wrap(ErrSigning, err)
	}
	return der, nil
}

func (a *softwareAgent) SignCRL(template *x509.RevocationList) ([]byte, error) {
	der, err := x509.CreateRevocationList(rand.Reader, template, a.ca, a.key)
	if err != nil {
		return nil, errors.Wrap(ErrSigning, err)
	}
	return der, nil
}

func (a *softwareAgent) CA() *x509.Certificate {
	return a.ca
}

func loadCA(certPath, keyPath string) (*x509.Certificate, *rsa.PrivateKey, error) {
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nil, nil, errors.Wrap(errLoadCA, err)
	}
	block, _ := pem.Decode(certPEM)
	if block == nil {
		return nil, nil, errors.Wrap(ErrMissingCA, errLoadCA)
	}
	ca, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, nil, errors.Wrap(errLoadCA, err)
	}

	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, nil, errors.Wrap(errLoadCA, err)
	}
	block, _ = pem.Decode(keyPEM)
	if block == nil {
		return nil, nil, errors.Wrap(ErrMissingCA, errLoadCA)
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, nil, errors.Wrap(errLoadCA, err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, nil, errors.Wrap(ErrMissingCA, errLoadCA)
	}

	return ca, key, nil
}

func writePEM(path, pemType string, der []byte, mode os.FileMode) error {
	encoded := pem.EncodeToMemory(&pem.Block{Type: pemType, Bytes: der})
	if err := os.WriteFile(path, encoded, mode); err != nil {
		return errors.Wrap(ErrMissingCA, err)
	}
	return nil
}
