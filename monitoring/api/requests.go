// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"github.com/absmach/certkeeper/internal/apiutil"
	"github.com/absmach/certkeeper/monitoring"
)

const maxLimitSize = 1000

type listAlertsReq struct {
	offset    uint64
	limit     uint64
	alertType string
	severity  string
}

func (req listAlertsReq) validate() error {
	if req.limit > maxLimitSize {
		return apiutil.ErrLimitSize
	}
	if req.alertType != "" {
		if _, err := monitoring.ToAlertType(req.alertType); err != nil {
			return apiutil.ErrInvalidQueryParams
		}
	}
	if req.severity != "" {
		if _, err := monitoring.ToSeverity(req.severity); err != nil {
			return apiutil.ErrInvalidQueryParams
		}
	}

	return nil
}

type ackAlertReq struct {
	id string
}

func (req ackAlertReq) validate() error {
	if req.id == "" {
		return apiutil.ErrMissingID
	}

	return nil
}
