// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/absmach/certkeeper/monitoring"
	"github.com/absmach/certkeeper/monitoring/notifiers"
	"github.com/absmach/certkeeper/pkg/errors"
)

const (
	contentType = "application/json"
	defTimeout  = 10 * time.Second
)

var errUnexpectedStatus = errors.New("webhook returned non-2xx status")

var _ notifiers.Notifier = (*notifier)(nil)

type notifier struct {
	url    string
	client *http.Client
}

type payload struct {
	AlertType    string `json:"alert_type"`
	DeviceID     string `json:"device_id"`
	SerialNumber string `json:"serial_number"`
	Message      string `json:"message"`
	Severity     string `json:"severity"`
	Timestamp    string `json:"timestamp"`
}

// New instantiates a webhook alert notifier posting JSON alerts to the
// given URL with a bounded per-attempt timeout.
func New(url string, timeout time.Duration) notifiers.Notifier {
	if timeout == 0 {
		timeout = defTimeout
	}
	return &notifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (n *notifier) Notify(ctx context.Context, alert monitoring.Alert) error {
	body, err := json.Marshal(payload{
		AlertType:    alert.Type.String(),
		DeviceID:     alert.DeviceID,
		SerialNumber: alert.SerialNumber,
		Message:      alert.Message,
		Severity:     alert.Severity.String(),
		Timestamp:    alert.Timestamp.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return errors.Wrap(notifiers.ErrNotify, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(notifiers.ErrNotify, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := n.client.Do(req)
	if err != nil {
		return errors.Wrap(notifiers.ErrNotify, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return errors.Wrap(notifiers.ErrNotify, errUnexpectedStatus)
	}

	return nil
}
