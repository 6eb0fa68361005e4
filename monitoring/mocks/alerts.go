// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/absmach/certkeeper/monitoring"
	"github.com/absmach/certkeeper/pkg/errors"
)

var _ monitoring.Repository = (*alertsRepoMock)(nil)

type alertsRepoMock struct {
	mu     sync.Mutex
	alerts map[string]monitoring.Alert
}

// NewRepository creates an in-memory alert store.
func NewRepository() monitoring.Repository {
	return &alertsRepoMock{
		alerts: make(map[string]monitoring.Alert),
	}
}

func (arm *alertsRepoMock) Save(_ context.Context, alert monitoring.Alert) (monitoring.Alert, error) {
	arm.mu.Lock()
	defer arm.mu.Unlock()

	if _, ok := arm.alerts[alert.ID]; ok {
		return monitoring.Alert{}, errors.ErrConflict
	}
	arm.alerts[alert.ID] = alert

	return alert, nil
}

func (arm *alertsRepoMock) RetrieveByID(_ context.Context, id string) (monitoring.Alert, error) {
	arm.mu.Lock()
	defer arm.mu.Unlock()

	alert, ok := arm.alerts[id]
	if !ok {
		return monitoring.Alert{}, errors.ErrNotFound
	}

	return alert, nil
}

func (arm *alertsRepoMock) RetrieveAll(_ context.Context, pm monitoring.PageMetadata) (monitoring.AlertsPage, error) {
	arm.mu.Lock()
	defer arm.mu.Unlock()

	matched := []monitoring.Alert{}
	for _, alert := range arm.alerts {
		if pm.Type != "" && alert.Type.String() != pm.Type {
			continue
		}
		if pm.Severity != "" && alert.Severity.String() != pm.Severity {
			continue
		}
		matched = append(matched, alert)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

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

	page := monitoring.AlertsPage{
		PageMetadata: monitoring.PageMetadata{
			Total:    total,
			Offset:   pm.Offset,
			Limit:    pm.Limit,
			Type:     pm.Type,
			Severity: pm.Severity,
		},
		Alerts: matched[first:last],
	}

	return page, nil
}

func (arm *alertsRepoMock) Acknowledge(_ context.Context, id string) (monitoring.Alert, error) {
	arm.mu.Lock()
	defer arm.mu.Unlock()

	alert, ok := arm.alerts[id]
	if !ok {
		return monitoring.Alert{}, errors.ErrNotFound
	}
	alert.Acknowledged = true
	arm.alerts[id] = alert

	return alert, nil
}

func (arm *alertsRepoMock) Exists(_ context.Context, serial string, alertType monitoring.AlertType, severity monitoring.Severity) (bool, error) {
	arm.mu.Lock()
	defer arm.mu.Unlock()

	for _, alert := range arm.alerts {
		if alert.SerialNumber == serial && alert.Type == alertType && alert.Severity == severity {
			return true, nil
		}
	}

	return false, nil
}
