// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package smtp

import (
	"context"
	"fmt"

	"github.com/absmach/certkeeper/internal/email"
	"github.com/absmach/certkeeper/monitoring"
	"github.com/absmach/certkeeper/monitoring/notifiers"
	"github.com/absmach/certkeeper/pkg/errors"
)

const (
	footer          = "Sent by CertKeeper"
	contentTemplate = "Certificate alert for device %s (serial %s):\n%s"
)

var _ notifiers.Notifier = (*notifier)(nil)

type notifier struct {
	agent *email.Agent
	to    []string
}

// New instantiates an SMTP alert notifier delivering to a fixed list
// of operator addresses.
func New(agent *email.Agent, to []string) notifiers.Notifier {
	return &notifier{agent: agent, to: to}
}

func (n *notifier) Notify(_ context.Context, alert monitoring.Alert) error {
	subject := fmt.Sprintf("[%s] Certificate %s alert", alert.Severity, alert.Type)
	content := fmt.Sprintf(contentTemplate, alert.DeviceID, alert.SerialNumber, alert.Message)

	if err := n.agent.Send(n.to, "", subject, "", content, footer); err != nil {
		return errors.Wrap(notifiers.ErrNotify, err)
	}

	return nil
}
