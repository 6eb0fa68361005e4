// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/absmach/certkeeper"
	"github.com/absmach/certkeeper/certs"
	"github.com/absmach/certkeeper/certs/pki"
	"github.com/absmach/certkeeper/internal/apiutil"
	"github.com/absmach/certkeeper/pkg/errors"
	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
)

const (
	contentType = "application/json"
	offsetKey   = "offset"
	limitKey    = "limit"
	defOffset   = 0
	defLimit    = 10
)

// MakeHandler registers the certificate lifecycle endpoints on the
// given router.
func MakeHandler(r *chi.Mux, svc certs.Service, logger *slog.Logger) *chi.Mux {
	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(apiutil.LoggingErrorEncoder(logger, EncodeError)),
	}

	r.Route("/certs", func(r chi.Router) {
		r.Post("/", kithttp.NewServer(
			issueCert(svc),
			decodeIssueCert,
			EncodeResponse,
			opts...,
		).ServeHTTP)

		r.Post("/bulk", kithttp.NewServer(
			issueBulk(svc),
			decodeBulkIssue,
			EncodeResponse,
			opts...,
		).ServeHTTP)

		r.Get("/{serial}", kithttp.NewServer(
			viewCert(svc),
			decodeViewCert,
			EncodeResponse,
			opts...,
		).ServeHTTP)

		r.Delete("/{serial}", kithttp.NewServer(
			revokeCert(svc),
			decodeRevokeCert,
			EncodeResponse,
			opts...,
		).ServeHTTP)
	})

	r.Route("/devices/{deviceID}", func(r chi.Router) {
		r.Get("/certs", kithttp.NewServer(
			listCerts(svc),
			decodeListCerts,
			EncodeResponse,
			opts...,
		).ServeHTTP)

		r.Get("/status", kithttp.NewServer(
			deviceStatus(svc),
			decodeDeviceStatus,
			EncodeResponse,
			opts...,
		).ServeHTTP)
	})

	r.Get("/ca", kithttp.NewServer(
		viewCA(svc),
		decodeEmpty,
		EncodeResponse,
		opts...,
	).ServeHTTP)

	r.Get("/crl", kithttp.NewServer(
		viewCRL(svc),
		decodeEmpty,
		EncodeResponse,
		opts...,
	).ServeHTTP)

	return r
}

func decodeIssueCert(_ context.Context, r *http.Request) (interface{}, error) {
	if r.Header.Get("Content-Type") != contentType {
		return nil, errors.ErrUnsupportedContentType
	}

	req := issueCertReq{Template: certs.TemplateSmartMeter}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Wrap(errors.ErrMalformedEntity, err)
	}

	return req, nil
}

func decodeBulkIssue(_ context.Context, r *http.Request) (interface{}, error) {
	if r.Header.Get("Content-Type") != contentType {
		return nil, errors.ErrUnsupportedContentType
	}

	req := bulkIssueReq{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Wrap(errors.ErrMalformedEntity, err)
	}
	for i := range req.Requests {
		if req.Requests[i].Template == "" {
			req.Requests[i].Template = certs.TemplateSmartMeter
		}
	}

	return req, nil
}

func decodeViewCert(_ context.Context, r *http.Request) (interface{}, error) {
	req := viewCertReq{
		serial: chi.URLParam(r, "serial"),
	}

	return req, nil
}

func decodeRevokeCert(_ context.Context, r *http.Request) (interface{}, error) {
	req := revokeCertReq{
		serial: chi.URLParam(r, "serial"),
	}
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, errors.Wrap(errors.ErrMalformedEntity, err)
		}
	}

	return req, nil
}

func decodeListCerts(_ context.Context, r *http.Request) (interface{}, error) {
	o, err := apiutil.ReadUintQuery(r, offsetKey, defOffset)
	if err != nil {
		return nil, errors.Wrap(apiutil.ErrValidation, err)
	}
	l, err := apiutil.ReadUintQuery(r, limitKey, defLimit)
	if err != nil {
		return nil, errors.Wrap(apiutil.ErrValidation, err)
	}

	req := listByDeviceReq{
		deviceID: chi.URLParam(r, "deviceID"),
		offset:   o,
		limit:    l,
	}

	return req, nil
}

func decodeDeviceStatus(_ context.Context, r *http.Request) (interface{}, error) {
	req := deviceStatusReq{
		deviceID: chi.URLParam(r, "deviceID"),
	}

	return req, nil
}

func decodeEmpty(_ context.Context, _ *http.Request) (interface{}, error) {
	return nil, nil
}

// EncodeResponse encodes a successful response. PEM payloads are
// written raw, everything else as JSON.
func EncodeResponse(_ context.Context, w http.ResponseWriter, response interface{}) error {
	if pr, ok := response.(pemRes); ok {
		for k, v := range pr.Headers() {
			w.Header().Set(k, v)
		}
		w.WriteHeader(pr.Code())
		_, err := w.Write(pr.data)
		return err
	}

	w.Header().Set("Content-Type", contentType)

	if ar, ok := response.(certkeeper.Response); ok {
		for k, v := range ar.Headers() {
			w.Header().Set(k, v)
		}
		w.WriteHeader(ar.Code())

		if ar.Empty() {
			return nil
		}
	}

	return json.NewEncoder(w).Encode(response)
}

// EncodeError maps domain errors to HTTP status codes.
func EncodeError(_ context.Context, err error, w http.ResponseWriter) {
	var wrapper error
	if errors.Contains(err, apiutil.ErrValidation) {
		wrapper, err = errors.Unwrap(err)
	}

	switch {
	case errors.Contains(err, errors.ErrNotFound):
		w.WriteHeader(http.StatusNotFound)
	case errors.Contains(err, errors.ErrConflict):
		w.WriteHeader(http.StatusConflict)
	case errors.Contains(err, errors.ErrMalformedEntity),
		errors.Contains(err, certs.ErrUnknownTemplate),
		errors.Contains(err, apiutil.ErrMissingID),
		errors.Contains(err, apiutil.ErrMissingDeviceID),
		errors.Contains(err, apiutil.ErrMissingSerial),
		errors.Contains(err, apiutil.ErrMissingTemplate),
		errors.Contains(err, apiutil.ErrInvalidRevocationReason),
		errors.Contains(err, apiutil.ErrEmptyList),
		errors.Contains(err, apiutil.ErrLimitSize),
		errors.Contains(err, apiutil.ErrInvalidQueryParams):
		w.WriteHeader(http.StatusBadRequest)
	case errors.Contains(err, errors.ErrUnsupportedContentType):
		w.WriteHeader(http.StatusUnsupportedMediaType)
	case errors.Contains(err, pki.ErrSigning),
		errors.Contains(err, pki.ErrMissingCA),
		errors.Contains(err, certs.ErrFailedCertCreation),
		errors.Contains(err, certs.ErrFailedCertRevocation),
		errors.Contains(err, certs.ErrFailedCRLGeneration):
		w.WriteHeader(http.StatusServiceUnavailable)
	default:
		w.WriteHeader(http.StatusInternalServerError)
	}

	if wrapper != nil {
		err = errors.Wrap(wrapper, err)
	}
	if errorVal, ok := err.(errors.Error); ok {
		w.Header().Set("Content-Type", contentType)
		if err := json.NewEncoder(w).Encode(apiutil.ErrorRes{Err: errorVal.Msg()}); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}
}
