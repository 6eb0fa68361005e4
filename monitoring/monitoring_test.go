// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package monitoring_test

import (
	"fmt"
	"testing"

	"github.com/absmach/certkeeper/monitoring"
	"github.com/absmach/certkeeper/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestExpirySeverity(t *testing.T) {
	cases := []struct {
		desc     string
		days     int
		severity monitoring.Severity
	}{
		{
			desc:     "already expired",
			days:     -1,
			severity: monitoring.Critical,
		},
		{
			desc:     "a week out",
			days:     7,
			severity: monitoring.Critical,
		},
		{
			desc:     "two weeks out",
			days:     14,
			severity: monitoring.Warning,
		},
		{
			desc:     "three weeks out",
			days:     21,
			severity: monitoring.Info,
		},
	}

	for _, tc := range cases {
		severity := monitoring.ExpirySeverity(tc.days)
		assert.Equal(t, tc.severity, severity, fmt.Sprintf("%s: expected %s got %s\n", tc.desc, tc.severity, severity))
	}
}

func TestToAlertType(t *testing.T) {
	cases := []struct {
		desc      string
		value     string
		alertType monitoring.AlertType
		err       error
	}{
		{
			desc:      "convert expiring",
			value:     "expiring",
			alertType: monitoring.Expiring,
			err:       nil,
		},
		{
			desc:      "convert renewal failed",
			value:     "renewal_failed",
			alertType: monitoring.RenewalFailed,
			err:       nil,
		},
		{
			desc:  "convert unknown type",
			value: "bogus",
			err:   errors.ErrMalformedEntity,
		},
	}

	for _, tc := range cases {
		alertType, err := monitoring.ToAlertType(tc.value)
		assert.True(t, errors.Contains(err, tc.err), fmt.Sprintf("%s: expected %s got %s\n", tc.desc, tc.err, err))
		if err == nil {
			assert.Equal(t, tc.alertType, alertType, fmt.Sprintf("%s: type mismatch\n", tc.desc))
			assert.Equal(t, tc.value, alertType.String(), fmt.Sprintf("%s: round trip mismatch\n", tc.desc))
		}
	}
}
