// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package mocks

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"sync"
	"time"

	"github.com/absmach/certkeeper/certs/pki"
)

var _ pki.Agent = (*Agent)(nil)

// Agent is an in-memory signing backend for tests. Setting SignErr
// makes every signing call fail with that error.
type Agent struct {
	mu      sync.Mutex
	ca      *x509.Certificate
	key     *rsa.PrivateKey
	SignErr error
}

// NewAgent creates a mock agent with a freshly generated root.
func NewAgent() (*Agent, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "Test Root CA"},
		NotBefore:             now,
		NotAfter:              now.Add(24 * time.Hour * 3650),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, key.Public(), key)
	if err != nil {
		return nil, err
	}
	ca, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, err
	}

	return &Agent{ca: ca, key: key}, nil
}

func (a *Agent) GenerateKey(bits int) (*rsa.PrivateKey, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.SignErr != nil {
		return nil, a.SignErr
	}
	return rsa.GenerateKey(rand.Reader, bits)
}

func (a *Agent) SignCertificate(template *x509.Certificate, pub crypto.PublicKey) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.SignErr != nil {
		return nil, a.SignErr
	}
	return x509.CreateCertificate(rand.Reader, template, a.ca, pub, a.key)
}

func (a *Agent) SignCRL(template *x509.RevocationList) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.SignErr != nil {
		return nil, a.SignErr
	}
	return x509.CreateRevocationList(rand.Reader, template, a.ca, a.key)
}

func (a *Agent) CA() *x509.Certificate {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ca
}

// Fail makes subsequent signing calls return err. Passing nil restores
// normal operation.
func (a *Agent) Fail(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.SignErr = err
}
