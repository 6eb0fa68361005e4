// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package monitoring scans the certificate store for expiring, expired
// and inconsistent records and raises persisted alerts.
package monitoring

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/absmach/certkeeper/pkg/errors"
)

// AlertType classifies what a certificate alert is about.
type AlertType uint8

const (
	Expiring AlertType = iota
	Expired
	RenewalFailed
	RenewalCompleted
	RevokedAlert
)

const (
	expiring         = "expiring"
	expired          = "expired"
	renewalFailed    = "renewal_failed"
	renewalCompleted = "renewal_completed"
	revokedAlert     = "revoked"
)

// String converts an alert type to its string literal.
func (t AlertType) String() string {
	switch t {
	case Expiring:
		return expiring
	case Expired:
		return expired
	case RenewalFailed:
		return renewalFailed
	case RenewalCompleted:
		return renewalCompleted
	case RevokedAlert:
		return revokedAlert
	default:
		return "unknown"
	}
}

// ToAlertType converts a string literal to a valid alert type.
func ToAlertType(alertType string) (AlertType, error) {
	switch alertType {
	case expiring:
		return Expiring, nil
	case expired:
		return Expired, nil
	case renewalFailed:
		return RenewalFailed, nil
	case renewalCompleted:
		return RenewalCompleted, nil
	case revokedAlert:
		return RevokedAlert, nil
	}

	return AlertType(0), errors.ErrMalformedEntity
}

// MarshalJSON marshals an alert type as its string literal.
func (t AlertType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON parses an alert type string literal.
func (t *AlertType) UnmarshalJSON(data []byte) error {
	str := strings.Trim(string(data), "\"")
	val, err := ToAlertType(str)
	*t = val
	return err
}

// Severity grades the urgency of an alert.
type Severity uint8

const (
	Info Severity = iota
	Warning
	Critical
)

const (
	info     = "info"
	warning  = "warning"
	critical = "critical"
)

// String converts a severity to its string literal.
func (s Severity) String() string {
	switch s {
	case Info:
		return info
	case Warning:
		return warning
	case Critical:
		return critical
	default:
		return "unknown"
	}
}

// ToSeverity converts a string literal to a valid severity.
func ToSeverity(severity string) (Severity, error) {
	switch severity {
	case info:
		return Info, nil
	case warning:
		return Warning, nil
	case critical:
		return Critical, nil
	}

	return Severity(0), errors.ErrMalformedEntity
}

// MarshalJSON marshals a severity as its string literal.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON parses a severity string literal.
func (s *Severity) UnmarshalJSON(data []byte) error {
	str := strings.Trim(string(data), "\"")
	val, err := ToSeverity(str)
	*s = val
	return err
}

// ExpirySeverity grades an alert by days left until expiry.
func ExpirySeverity(daysLeft int) Severity {
	switch {
	case daysLeft <= 7:
		return Critical
	case daysLeft <= 14:
		return Warning
	default:
		return Info
	}
}

// Alert is a persisted certificate alert. Alerts are stored before any
// notification delivery is attempted.
type Alert struct {
	ID           string    `json:"id"`
	Type         AlertType `json:"alert_type"`
	DeviceID     string    `json:"device_id,omitempty"`
	SerialNumber string    `json:"serial_number"`
	Message      string    `json:"message"`
	Severity     Severity  `json:"severity"`
	Timestamp    time.Time `json:"timestamp"`
	Acknowledged bool      `json:"acknowledged"`
}

// PageMetadata contains alert listing query parameters.
type PageMetadata struct {
	Total    uint64 `json:"total"`
	Offset   uint64 `json:"offset"`
	Limit    uint64 `json:"limit"`
	Type     string `json:"alert_type,omitempty"`
	Severity string `json:"severity,omitempty"`
}

// AlertsPage contains a listing of alerts with page metadata.
type AlertsPage struct {
	PageMetadata
	Alerts []Alert `json:"alerts"`
}

// Notifier represents an API for delivering an alert to one channel.
type Notifier interface {
	// Notify delivers the alert.
	Notify(ctx context.Context, alert Alert) error
}

// Repository specifies the alert persistence API.
type Repository interface {
	// Save persists an alert.
	Save(ctx context.Context, alert Alert) (Alert, error)

	// RetrieveByID retrieves the alert with the given ID.
	RetrieveByID(ctx context.Context, id string) (Alert, error)

	// RetrieveAll retrieves alerts filtered by the page metadata,
	// newest first.
	RetrieveAll(ctx context.Context, pm PageMetadata) (AlertsPage, error)

	// Acknowledge marks the alert with the given ID acknowledged.
	Acknowledge(ctx context.Context, id string) (Alert, error)

	// Exists reports whether an alert with the same serial, type and
	// severity has already been recorded.
	Exists(ctx context.Context, serial string, alertType AlertType, severity Severity) (bool, error)
}
