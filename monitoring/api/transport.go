// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"log/slog"
	"net/http"

	certsapi "github.com/absmach/certkeeper/certs/api"
	"github.com/absmach/certkeeper/internal/apiutil"
	"github.com/absmach/certkeeper/monitoring"
	"github.com/absmach/certkeeper/pkg/errors"
	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
)

const (
	offsetKey   = "offset"
	limitKey    = "limit"
	typeKey     = "alert_type"
	severityKey = "severity"
	defOffset   = 0
	defLimit    = 10
)

// MakeHandler registers the alert and fleet health endpoints on the
// given router.
func MakeHandler(r *chi.Mux, svc monitoring.Service, logger *slog.Logger) *chi.Mux {
	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(apiutil.LoggingErrorEncoder(logger, certsapi.EncodeError)),
	}

	r.Route("/alerts", func(r chi.Router) {
		r.Get("/", kithttp.NewServer(
			listAlerts(svc),
			decodeListAlerts,
			certsapi.EncodeResponse,
			opts...,
		).ServeHTTP)

		r.Post("/{id}/ack", kithttp.NewServer(
			ackAlert(svc),
			decodeAckAlert,
			certsapi.EncodeResponse,
			opts...,
		).ServeHTTP)
	})

	r.Get("/health/certificates", kithttp.NewServer(
		certHealth(svc),
		decodeEmpty,
		certsapi.EncodeResponse,
		opts...,
	).ServeHTTP)

	return r
}

func decodeListAlerts(_ context.Context, r *http.Request) (interface{}, error) {
	o, err := apiutil.ReadUintQuery(r, offsetKey, defOffset)
	if err != nil {
		return nil, errors.Wrap(apiutil.ErrValidation, err)
	}
	l, err := apiutil.ReadUintQuery(r, limitKey, defLimit)
	if err != nil {
		return nil, errors.Wrap(apiutil.ErrValidation, err)
	}
	t, err := apiutil.ReadStringQuery(r, typeKey, "")
	if err != nil {
		return nil, errors.Wrap(apiutil.ErrValidation, err)
	}
	s, err := apiutil.ReadStringQuery(r, severityKey, "")
	if err != nil {
		return nil, errors.Wrap(apiutil.ErrValidation, err)
	}

	req := listAlertsReq{
		offset:    o,
		limit:     l,
		alertType: t,
		severity:  s,
	}

	return req, nil
}

func decodeAckAlert(_ context.Context, r *http.Request) (interface{}, error) {
	req := ackAlertReq{
		id: chi.URLParam(r, "id"),
	}

	return req, nil
}

func decodeEmpty(_ context.Context, _ *http.Request) (interface{}, error) {
	return nil, nil
}
