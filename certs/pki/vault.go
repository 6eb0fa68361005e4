// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package pki

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/absmach/certkeeper/pkg/errors"
	"github.com/hashicorp/vault/api"
	"github.com/mitchellh/mapstructure"
)

var (
	errFailedVaultRead  = errors.New("failed to read key from vault transit engine")
	errFailedVaultSign  = errors.New("failed to sign with vault transit engine")
	errFailedKeyDecode  = errors.New("failed to decode vault key response")
	errFailedSigDecode  = errors.New("failed to decode vault signature response")
	errUnsupportedVault = errors.New("vault transit key is not an RSA key")
)

var _ Agent = (*vaultAgent)(nil)

// vaultAgent keeps the CA private key inside a Vault transit engine.
// Only the CA certificate is materialized on disk; every signature is
// produced remotely. Device keys are still generated locally since they
// are handed off to the device.
type vaultAgent struct {
	ca     *x509.Certificate
	signer crypto.Signer
}

type transitKey struct {
	LatestVersion int                    `mapstructure:"latest_version"`
	Keys          map[string]transitKeyV `mapstructure:"keys"`
}

type transitKeyV struct {
	PublicKey string `mapstructure:"public_key"`
}

type transitSignature struct {
	Signature string `mapstructure:"signature"`
}

// NewVaultAgent connects to Vault, resolves the transit key named by
// keyID and loads or bootstraps the CA certificate under baseDir.
func NewVaultAgent(baseDir, address, token, mount, keyID string, cfg Config) (Agent, error) {
	client, err := api.NewClient(&api.Config{Address: address})
	if err != nil {
		return nil, errors.Wrap(ErrMissingCA, err)
	}
	client.SetToken(token)

	signer, err := newTransitSigner(client, mount, keyID)
	if err != nil {
		return nil, err
	}

	caDir := filepath.Join(baseDir, "ca")
	if err := os.MkdirAll(caDir, 0o755); err != nil {
		return nil, errors.Wrap(ErrMissingCA, err)
	}
	certPath := filepath.Join(caDir, caCertFile)

	if _, err := os.Stat(certPath); err == nil {
		certPEM, err := os.ReadFile(certPath)
		if err != nil {
			return nil, errors.Wrap(errLoadCA, err)
		}
		block, _ := pem.Decode(certPEM)
		if block == nil {
			return nil, errors.Wrap(ErrMissingCA, errLoadCA)
		}
		ca, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, errors.Wrap(errLoadCA, err)
		}
		return &vaultAgent{ca: ca, signer: signer}, nil
	}

	ca, err := buildRoot(cfg, signer.Public(), signer)
	if err != nil {
		return nil, err
	}
	if err := writePEM(certPath, certPEMType, ca.Raw, 0o644); err != nil {
		return nil, err
	}

	return &vaultAgent{ca: ca, signer: signer}, nil
}

func (a *vaultAgent) GenerateKey(bits int) (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, errors.Wrap(ErrKeyGeneration, err)
	}
	return key, nil
}

func (a *vaultAgent) SignCertificate(template *x509.Certificate, pub crypto.PublicKey) ([]byte, error) {
	der, err := x509.CreateCertificate(rand.Reader, template, a.ca, pub, a.signer)
	if err != nil {
		return nil, errors.Wrap(ErrSigning, err)
	}
	return der, nil
}

func (a *vaultAgent) SignCRL(template *x509.RevocationList) ([]byte, error) {
	der, err := x509.CreateRevocationList(rand.Reader, template, a.ca, a.signer)
	if err != nil {
		return nil, errors.Wrap(ErrSigning, err)
	}
	return der, nil
}

func (a *vaultAgent) CA() *x509.Certificate {
	return a.ca
}

// transitSigner adapts a Vault transit RSA key to crypto.Signer so the
// standard x509 builders can use it.
type transitSigner struct {
	client  *api.Client
	signURL string
	pub     *rsa.PublicKey
	version int
}

func newTransitSigner(client *api.Client, mount, keyID string) (*transitSigner, error) {
	secret, err := client.Logical().Read(mount + "/keys/" + keyID)
	if err != nil {
		return nil, errors.Wrap(errFailedVaultRead, err)
	}
	if secret == nil {
		return nil, errors.Wrap(ErrMissingCA, errFailedVaultRead)
	}

	var key transitKey
	if err := mapstructure.Decode(secret.Data, &key); err != nil {
		return nil, errors.Wrap(errFailedKeyDecode, err)
	}

	latest, ok := key.Keys[strconv.Itoa(key.LatestVersion)]
	if !ok {
		return nil, errors.Wrap(ErrMissingCA, errFailedKeyDecode)
	}
	block, _ := pem.Decode([]byte(latest.PublicKey))
	if block == nil {
		return nil, errors.Wrap(ErrMissingCA, errFailedKeyDecode)
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(errFailedKeyDecode, err)
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, errUnsupportedVault
	}

	return &transitSigner{
		client:  client,
		signURL: mount + "/sign/" + keyID + "/sha2-256",
		pub:     pub,
		version: key.LatestVersion,
	}, nil
}

func (s *transitSigner) Public() crypto.PublicKey {
	return s.pub
}

func (s *transitSigner) Sign(_ io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	if opts.HashFunc() != crypto.SHA256 {
		return nil, errFailedVaultSign
	}

	secret, err := s.client.Logical().Write(s.signURL, map[string]interface{}{
		"input":               base64.StdEncoding.EncodeToString(digest),
		"prehashed":           true,
		"signature_algorithm": "pkcs1v15",
		"key_version":         s.version,
	})
	if err != nil {
		return nil, errors.Wrap(errFailedVaultSign, err)
	}
	if secret == nil {
		return nil, errFailedVaultSign
	}

	var sig transitSignature
	if err := mapstructure.Decode(secret.Data, &sig); err != nil {
		return nil, errors.Wrap(errFailedSigDecode, err)
	}

	// Transit signatures come back as "vault:v<N>:<base64>".
	parts := strings.SplitN(sig.Signature, ":", 3)
	if len(parts) != 3 {
		return nil, errFailedSigDecode
	}
	raw, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, errors.Wrap(errFailedSigDecode, err)
	}

	return raw, nil
}
