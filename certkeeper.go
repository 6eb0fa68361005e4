// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package certkeeper

import (
	"encoding/json"
	"net/http"
)

const version string = "0.1.0"

// Response contains HTTP response specific methods.
type Response interface {
	// Code returns HTTP response code.
	Code() int

	// Headers returns map of HTTP headers with their values.
	Headers() map[string]string

	// Empty indicates if HTTP response has content.
	Empty() bool
}

// IDProvider specifies an API for generating unique identifiers.
type IDProvider interface {
	// ID generates the unique identifier.
	ID() (string, error)
}

// HealthInfo contains health check endpoint response.
type HealthInfo struct {
	// Status contains service status.
	Status string `json:"status"`

	// Service contains service name.
	Service string `json:"service"`

	// Version contains service current version value.
	Version string `json:"version"`
}

// Health exposes an HTTP handler for retrieving service health.
func Health(service string) http.HandlerFunc {
	return http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		res := HealthInfo{
			Status:  "pass",
			Service: service,
			Version: version,
		}

		rw.Header().Set("Content-Type", "application/health+json")
		data, _ := json.Marshal(res)

		rw.Write(data)
	})
}
