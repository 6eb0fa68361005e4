// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/absmach/certkeeper/certs"
	"github.com/absmach/certkeeper/pkg/errors"
)

var _ certs.Repository = (*certsRepoMock)(nil)

type certsRepoMock struct {
	mu      sync.Mutex
	records map[string]certs.Cert
	ledger  []certs.CRLEntry
}

// NewRepository creates an in-memory certificate record store mirroring
// the upsert semantics of the PostgreSQL implementation.
func NewRepository() certs.Repository {
	return &certsRepoMock{
		records: make(map[string]certs.Cert),
	}
}

func (crm *certsRepoMock) Save(_ context.Context, cert certs.Cert) (string, error) {
	crm.mu.Lock()
	defer crm.mu.Unlock()

	if existing, ok := crm.records[cert.SerialNumber]; ok {
		existing.Status = cert.Status
		existing.RevocationDate = cert.RevocationDate
		existing.RevocationReason = cert.RevocationReason
		existing.RenewalCount = cert.RenewalCount
		crm.records[cert.SerialNumber] = existing
		return cert.SerialNumber, nil
	}

	for _, rec := range crm.records {
		if rec.Fingerprint == cert.Fingerprint {
			return "", errors.ErrConflict
		}
	}
	crm.records[cert.SerialNumber] = cert

	return cert.SerialNumber, nil
}

func (crm *certsRepoMock) RetrieveBySerial(_ context.Context, serial string) (certs.Cert, error) {
	crm.mu.Lock()
	defer crm.mu.Unlock()

	cert, ok := crm.records[serial]
	if !ok {
		return certs.Cert{}, errors.ErrNotFound
	}

	return cert, nil
}

func (crm *certsRepoMock) RetrieveByDevice(_ context.Context, deviceID string, pm certs.PageMetadata) (certs.Page, error) {
	crm.mu.Lock()
	defer crm.mu.Unlock()

	matched := []certs.Cert{}
	for _, rec := range crm.records {
		if rec.DeviceID == deviceID {
			matched = append(matched, rec)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].NotAfter.After(matched[j].NotAfter)
	})

	return paginate(matched, pm), nil
}

func (crm *certsRepoMock) RetrieveExpiring(_ context.Context, until time.Time, pm certs.PageMetadata) (certs.Page, error) {
	crm.mu.Lock()
	defer crm.mu.Unlock()

	matched := []certs.Cert{}
	for _, rec := range crm.records {
		if rec.Status == certs.Active && !rec.NotAfter.After(until) {
			matched = append(matched, rec)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].NotAfter.Before(matched[j].NotAfter)
	})

	return paginate(matched, pm), nil
}

func (crm *certsRepoMock) RetrieveAll(_ context.Context, pm certs.PageMetadata) (certs.Page, error) {
	crm.mu.Lock()
	defer crm.mu.Unlock()

	matched := make([]certs.Cert, 0, len(crm.records))
	for _, rec := range crm.records {
		matched = append(matched, rec)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].NotAfter.Before(matched[j].NotAfter)
	})

	return paginate(matched, pm), nil
}

func (crm *certsRepoMock) AddCRLEntry(_ context.Context, entry certs.CRLEntry) error {
	crm.mu.Lock()
	defer crm.mu.Unlock()

	for _, e := range crm.ledger {
		if e.SerialNumber == entry.SerialNumber {
			return nil
		}
	}
	crm.ledger = append(crm.ledger, entry)

	return nil
}

func (crm *certsRepoMock) RetrieveCRLEntries(_ context.Context) ([]certs.CRLEntry, error) {
	crm.mu.Lock()
	defer crm.mu.Unlock()

	entries := make([]certs.CRLEntry, len(crm.ledger))
	copy(entries, crm.ledger)

	return entries, nil
}

func paginate(matched []certs.Cert, pm certs.PageMetadata) certs.Page {
	total := uint64(len(matched))
	limit := pm.Limit
	if limit == 0 {
		limit = 1000
	}

	first := pm.Offset
	if first > total {
		first = total
	}
	last := first + limit
	if last > total {
		last = total
	}

	return certs.Page{
		PageMetadata: certs.PageMetadata{
			Total:  total,
			Offset: pm.Offset,
			Limit:  pm.Limit,
		},
		Certificates: matched[first:last],
	}
}
