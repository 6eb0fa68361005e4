// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package notifiers delivers certificate alerts to external channels.
// Delivery is best effort: each channel is attempted independently and
// failures never escalate past logging.
package notifiers

import (
	"github.com/absmach/certkeeper/monitoring"
	"github.com/absmach/certkeeper/pkg/errors"
)

// ErrNotify wraps notification delivery errors.
var ErrNotify = errors.New("error sending notification")

// Notifier represents an API for delivering an alert to one channel.
type Notifier = monitoring.Notifier
