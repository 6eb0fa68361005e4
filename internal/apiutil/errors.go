// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package apiutil

import "github.com/absmach/certkeeper/pkg/errors"

var (
	// ErrValidation indicates that an error was returned by the API.
	ErrValidation = errors.New("something went wrong with the request")

	// ErrMissingID indicates a missing entity ID.
	ErrMissingID = errors.New("missing entity id")

	// ErrMissingDeviceID indicates a missing device ID.
	ErrMissingDeviceID = errors.New("missing device id")

	// ErrMissingSerial indicates a missing certificate serial number.
	ErrMissingSerial = errors.New("missing certificate serial number")

	// ErrMissingTemplate indicates a missing certificate template name.
	ErrMissingTemplate = errors.New("missing certificate template name")

	// ErrInvalidRevocationReason indicates an unknown revocation reason code.
	ErrInvalidRevocationReason = errors.New("invalid revocation reason")

	// ErrEmptyList indicates an empty list in the request.
	ErrEmptyList = errors.New("empty list provided")

	// ErrLimitSize indicates that an invalid limit size.
	ErrLimitSize = errors.New("invalid limit size")

	// ErrInvalidQueryParams indicates invalid query parameters.
	ErrInvalidQueryParams = errors.New("invalid query parameters")
)

// ErrorRes represents the HTTP error response body.
type ErrorRes struct {
	Err string `json:"error"`
}
