// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"

	"github.com/absmach/certkeeper/internal/apiutil"
	"github.com/absmach/certkeeper/monitoring"
	"github.com/absmach/certkeeper/pkg/errors"
	"github.com/go-kit/kit/endpoint"
)

func listAlerts(svc monitoring.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(listAlertsReq)
		if err := req.validate(); err != nil {
			return nil, errors.Wrap(apiutil.ErrValidation, err)
		}

		pm := monitoring.PageMetadata{
			Offset:   req.offset,
			Limit:    req.limit,
			Type:     req.alertType,
			Severity: req.severity,
		}
		page, err := svc.ListAlerts(ctx, pm)
		if err != nil {
			return nil, err
		}

		return alertsPageRes{AlertsPage: page}, nil
	}
}

func ackAlert(svc monitoring.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(ackAlertReq)
		if err := req.validate(); err != nil {
			return nil, errors.Wrap(apiutil.ErrValidation, err)
		}

		alert, err := svc.AcknowledgeAlert(ctx, req.id)
		if err != nil {
			return nil, err
		}

		return alertRes{Alert: alert}, nil
	}
}

func certHealth(svc monitoring.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ interface{}) (interface{}, error) {
		summary, err := svc.LastScan(ctx)
		if err != nil {
			return nil, err
		}

		return summaryRes{ScanSummary: summary}, nil
	}
}
