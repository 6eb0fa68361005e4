// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package renewals_test

import (
	"fmt"
	"testing"

	"github.com/absmach/certkeeper/renewals"
	"github.com/stretchr/testify/assert"
)

func TestPriorityForDays(t *testing.T) {
	cases := []struct {
		desc     string
		days     int
		priority renewals.Priority
	}{
		{
			desc:     "already expired",
			days:     0,
			priority: renewals.CriticalPriority,
		},
		{
			desc:     "a week out",
			days:     7,
			priority: renewals.CriticalPriority,
		},
		{
			desc:     "two weeks out",
			days:     14,
			priority: renewals.HighPriority,
		},
		{
			desc:     "three weeks out",
			days:     21,
			priority: renewals.MediumPriority,
		},
		{
			desc:     "a month out",
			days:     30,
			priority: renewals.LowPriority,
		},
	}

	for _, tc := range cases {
		priority := renewals.PriorityForDays(tc.days)
		assert.Equal(t, tc.priority, priority, fmt.Sprintf("%s: expected %s got %s\n", tc.desc, tc.priority, priority))
	}
}
