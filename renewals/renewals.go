// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package renewals tracks and drives re-issuance of certificates
// nearing expiry.
package renewals

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/absmach/certkeeper/pkg/errors"
)

// Priority orders renewal jobs by urgency. Lower values are more
// urgent, so ascending sort processes the most urgent devices first.
type Priority uint8

const (
	CriticalPriority Priority = iota
	HighPriority
	MediumPriority
	LowPriority
)

const (
	criticalPriority = "critical"
	highPriority     = "high"
	mediumPriority   = "medium"
	lowPriority      = "low"
)

// String converts a priority to its string literal.
func (p Priority) String() string {
	switch p {
	case CriticalPriority:
		return criticalPriority
	case HighPriority:
		return highPriority
	case MediumPriority:
		return mediumPriority
	case LowPriority:
		return lowPriority
	default:
		return "unknown"
	}
}

// ToPriority converts a string literal to a valid priority.
func ToPriority(priority string) (Priority, error) {
	switch priority {
	case criticalPriority:
		return CriticalPriority, nil
	case highPriority:
		return HighPriority, nil
	case mediumPriority:
		return MediumPriority, nil
	case lowPriority:
		return LowPriority, nil
	}

	return Priority(0), errors.ErrMalformedEntity
}

// MarshalJSON marshals a priority as its string literal.
func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON parses a priority string literal.
func (p *Priority) UnmarshalJSON(data []byte) error {
	str := strings.Trim(string(data), "\"")
	val, err := ToPriority(str)
	*p = val
	return err
}

// PriorityForDays maps days until expiry to a renewal priority.
func PriorityForDays(days int) Priority {
	switch {
	case days <= 7:
		return CriticalPriority
	case days <= 14:
		return HighPriority
	case days <= 21:
		return MediumPriority
	default:
		return LowPriority
	}
}

// Status is the renewal job state. Completed and Failed are terminal.
type Status uint8

const (
	Pending Status = iota
	InProgress
	Completed
	Failed
)

const (
	pending    = "pending"
	inProgress = "in_progress"
	completed  = "completed"
	failed     = "failed"
)

// String converts a job status to its string literal.
func (s Status) String() string {
	switch s {
	case Pending:
		return pending
	case InProgress:
		return inProgress
	case Completed:
		return completed
	case Failed:
		return failed
	default:
		return "unknown"
	}
}

// ToStatus converts a string literal to a valid job status.
func ToStatus(status string) (Status, error) {
	switch status {
	case pending:
		return Pending, nil
	case inProgress:
		return InProgress, nil
	case completed:
		return Completed, nil
	case failed:
		return Failed, nil
	}

	return Status(0), errors.ErrMalformedEntity
}

// MarshalJSON marshals a job status as its string literal.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON parses a job status string literal.
func (s *Status) UnmarshalJSON(data []byte) error {
	str := strings.Trim(string(data), "\"")
	val, err := ToStatus(str)
	*s = val
	return err
}

// Job is a tracked renewal of one device certificate. A device has at
// most one outstanding job at a time.
type Job struct {
	ID           string     `json:"id"`
	DeviceID     string     `json:"device_id"`
	SerialNumber string     `json:"serial_number"`
	ExpiryDate   time.Time  `json:"expiry_date"`
	Priority     Priority   `json:"priority"`
	Attempts     uint       `json:"attempts"`
	MaxAttempts  uint       `json:"max_attempts"`
	LastAttempt  *time.Time `json:"last_attempt,omitempty"`
	Status       Status     `json:"status"`
}

// Repository specifies the renewal job persistence API.
type Repository interface {
	// Upsert creates a job, or updates the serial, expiry and priority
	// of the device's outstanding job if one already exists. Attempt
	// bookkeeping is preserved on update.
	Upsert(ctx context.Context, job Job) (Job, error)

	// Update replaces the mutable fields of a job by ID.
	Update(ctx context.Context, job Job) (Job, error)

	// RetrieveByID retrieves the job with the given ID.
	RetrieveByID(ctx context.Context, id string) (Job, error)

	// RetrievePending retrieves all pending jobs ordered by priority
	// then expiry date, most urgent first.
	RetrievePending(ctx context.Context) ([]Job, error)
}
