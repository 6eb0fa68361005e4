// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package renewals

import (
	"context"
	"time"

	"github.com/absmach/certkeeper/pkg/ticker"
	"github.com/cenkalti/backoff/v4"
)

const errBackoff = time.Minute

// Runner drives periodic scheduling and processing passes over a
// Service. Passing in the decorated service instruments every pass.
type Runner struct {
	svc          Service
	scheduleTick ticker.Ticker
	processTick  ticker.Ticker
}

// NewRunner instantiates a runner over the given service.
func NewRunner(svc Service, scheduleTick, processTick ticker.Ticker) *Runner {
	return &Runner{
		svc:          svc,
		scheduleTick: scheduleTick,
		processTick:  processTick,
	}
}

// StartScheduler runs periodic scheduling passes until the context is
// canceled.
func (r *Runner) StartScheduler(ctx context.Context) error {
	defer r.scheduleTick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.scheduleTick.Tick():
			r.runCycle(ctx, func() (int, error) {
				return r.svc.ScheduleRenewals(ctx)
			})
		}
	}
}

// StartProcessor runs periodic processing passes until the context is
// canceled. An in-flight job finishes before cancellation is honored.
func (r *Runner) StartProcessor(ctx context.Context) error {
	defer r.processTick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.processTick.Tick():
			r.runCycle(ctx, func() (int, error) {
				return r.svc.ProcessRenewals(ctx)
			})
		}
	}
}

// runCycle executes one pass, retrying once after a short backoff on
// failure. A failed pass never terminates the loop; outcomes are
// reported by the service and its middlewares.
func (r *Runner) runCycle(ctx context.Context, op func() (int, error)) {
	boff := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(errBackoff), 1), ctx)
	attempt := func() error {
		_, err := op()
		return err
	}
	_ = backoff.Retry(attempt, boff)
}
