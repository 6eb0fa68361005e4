// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"

	"github.com/absmach/certkeeper/certs"
	"github.com/absmach/certkeeper/internal/apiutil"
	"github.com/absmach/certkeeper/pkg/errors"
	"github.com/go-kit/kit/endpoint"
)

func issueCert(svc certs.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(issueCertReq)
		if err := req.validate(); err != nil {
			return nil, errors.Wrap(apiutil.ErrValidation, err)
		}

		bundle, err := svc.IssueCert(ctx, req.DeviceID, req.DeviceInfo, req.Template)
		if err != nil {
			return nil, err
		}

		return certRes{Bundle: bundle, created: true}, nil
	}
}

func issueBulk(svc certs.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(bulkIssueReq)
		if err := req.validate(); err != nil {
			return nil, errors.Wrap(apiutil.ErrValidation, err)
		}

		reqs := make([]certs.IssueRequest, 0, len(req.Requests))
		for _, r := range req.Requests {
			reqs = append(reqs, certs.IssueRequest{
				DeviceID:   r.DeviceID,
				DeviceInfo: r.DeviceInfo,
				Template:   r.Template,
			})
		}

		res, err := svc.IssueBulk(ctx, reqs)
		if err != nil {
			return nil, err
		}

		return bulkRes{BulkResult: res}, nil
	}
}

func viewCert(svc certs.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(viewCertReq)
		if err := req.validate(); err != nil {
			return nil, errors.Wrap(apiutil.ErrValidation, err)
		}

		cert, err := svc.ViewCert(ctx, req.serial)
		if err != nil {
			return nil, err
		}

		return viewRes{Cert: cert}, nil
	}
}

func revokeCert(svc certs.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(revokeCertReq)
		if err := req.validate(); err != nil {
			return nil, errors.Wrap(apiutil.ErrValidation, err)
		}

		reason := certs.Unspecified
		if req.Reason != "" {
			var err error
			if reason, err = certs.ToReason(req.Reason); err != nil {
				return nil, errors.Wrap(apiutil.ErrValidation, err)
			}
		}

		res, err := svc.RevokeCert(ctx, req.serial, reason)
		if err != nil {
			return nil, err
		}

		return revokeRes{Revoke: res}, nil
	}
}

func listCerts(svc certs.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(listByDeviceReq)
		if err := req.validate(); err != nil {
			return nil, errors.Wrap(apiutil.ErrValidation, err)
		}

		page, err := svc.ListCerts(ctx, req.deviceID, certs.PageMetadata{Offset: req.offset, Limit: req.limit})
		if err != nil {
			return nil, err
		}

		return pageRes{Page: page}, nil
	}
}

func deviceStatus(svc certs.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(deviceStatusReq)
		if err := req.validate(); err != nil {
			return nil, errors.Wrap(apiutil.ErrValidation, err)
		}

		status, err := svc.DeviceStatus(ctx, req.deviceID)
		if err != nil {
			return nil, err
		}

		return statusRes{DeviceStatus: status}, nil
	}
}

func viewCA(svc certs.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ interface{}) (interface{}, error) {
		data, err := svc.ViewCA(ctx)
		if err != nil {
			return nil, err
		}

		return pemRes{data: data}, nil
	}
}

func viewCRL(svc certs.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ interface{}) (interface{}, error) {
		data, err := svc.ViewCRL(ctx)
		if err != nil {
			return nil, err
		}

		return pemRes{data: data}, nil
	}
}
