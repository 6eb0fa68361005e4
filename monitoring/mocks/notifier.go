// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package mocks

import (
	"context"
	"sync"

	"github.com/absmach/certkeeper/monitoring"
	"github.com/absmach/certkeeper/monitoring/notifiers"
)

var _ notifiers.Notifier = (*Notifier)(nil)

// Notifier records every delivered alert. Setting Err makes delivery
// fail without recording.
type Notifier struct {
	mu        sync.Mutex
	delivered []monitoring.Alert
	Err       error
}

// NewNotifier creates a recording notifier.
func NewNotifier() *Notifier {
	return &Notifier{}
}

func (n *Notifier) Notify(_ context.Context, alert monitoring.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.Err != nil {
		return n.Err
	}
	n.delivered = append(n.delivered, alert)

	return nil
}

// Delivered returns a copy of all delivered alerts.
func (n *Notifier) Delivered() []monitoring.Alert {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]monitoring.Alert, len(n.delivered))
	copy(out, n.delivered)

	return out
}

// Fail makes subsequent deliveries return err.
func (n *Notifier) Fail(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Err = err
}
