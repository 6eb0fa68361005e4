// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"github.com/absmach/certkeeper/certs"
	"github.com/absmach/certkeeper/internal/apiutil"
)

const maxLimitSize = 1000

type issueCertReq struct {
	DeviceID   string           `json:"device_id"`
	DeviceInfo certs.DeviceInfo `json:"device_info"`
	Template   string           `json:"template"`
}

func (req issueCertReq) validate() error {
	if req.DeviceID == "" {
		return apiutil.ErrMissingDeviceID
	}
	if req.Template == "" {
		return apiutil.ErrMissingTemplate
	}

	return nil
}

type bulkIssueReq struct {
	Requests []issueCertReq `json:"requests"`
}

func (req bulkIssueReq) validate() error {
	if len(req.Requests) == 0 {
		return apiutil.ErrEmptyList
	}
	for _, r := range req.Requests {
		if err := r.validate(); err != nil {
			return err
		}
	}

	return nil
}

type viewCertReq struct {
	serial string
}

func (req viewCertReq) validate() error {
	if req.serial == "" {
		return apiutil.ErrMissingSerial
	}

	return nil
}

type revokeCertReq struct {
	serial string
	Reason string `json:"reason"`
}

func (req revokeCertReq) validate() error {
	if req.serial == "" {
		return apiutil.ErrMissingSerial
	}
	if req.Reason != "" {
		if _, err := certs.ToReason(req.Reason); err != nil {
			return apiutil.ErrInvalidRevocationReason
		}
	}

	return nil
}

type listByDeviceReq struct {
	deviceID string
	offset   uint64
	limit    uint64
}

func (req listByDeviceReq) validate() error {
	if req.deviceID == "" {
		return apiutil.ErrMissingDeviceID
	}
	if req.limit > maxLimitSize {
		return apiutil.ErrLimitSize
	}

	return nil
}

type deviceStatusReq struct {
	deviceID string
}

func (req deviceStatusReq) validate() error {
	if req.deviceID == "" {
		return apiutil.ErrMissingDeviceID
	}

	return nil
}
