// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package renewals_test

import (
	"context"
	"testing"
	"time"

	"github.com/absmach/certkeeper/renewals"
	"github.com/stretchr/testify/assert"
)

type manualTicker struct {
	c chan time.Time
}

func newManualTicker() *manualTicker {
	return &manualTicker{c: make(chan time.Time)}
}

func (t *manualTicker) Tick() <-chan time.Time {
	return t.c
}

func (t *manualTicker) Stop() {}

type countingService struct {
	scheduled chan struct{}
	processed chan struct{}
}

func (s *countingService) ScheduleRenewals(_ context.Context) (int, error) {
	s.scheduled <- struct{}{}
	return 1, nil
}

func (s *countingService) ProcessRenewals(_ context.Context) (int, error) {
	s.processed <- struct{}{}
	return 1, nil
}

func TestRunnerDrivesPasses(t *testing.T) {
	svc := &countingService{
		scheduled: make(chan struct{}, 1),
		processed: make(chan struct{}, 1),
	}
	scheduleTick := newManualTicker()
	processTick := newManualTicker()
	runner := renewals.NewRunner(svc, scheduleTick, processTick)

	ctx, cancel := context.WithCancel(context.Background())
	schedErr := make(chan error, 1)
	procErr := make(chan error, 1)
	go func() {
		schedErr <- runner.StartScheduler(ctx)
	}()
	go func() {
		procErr <- runner.StartProcessor(ctx)
	}()

	scheduleTick.c <- time.Now()
	select {
	case <-svc.scheduled:
	case <-time.After(time.Second):
		t.Fatal("expected a scheduling pass after a tick")
	}

	processTick.c <- time.Now()
	select {
	case <-svc.processed:
	case <-time.After(time.Second):
		t.Fatal("expected a processing pass after a tick")
	}

	cancel()
	select {
	case err := <-schedErr:
		assert.Equal(t, context.Canceled, err, "expected the scheduler loop stopped on cancellation")
	case <-time.After(time.Second):
		t.Fatal("expected the scheduler loop to stop")
	}
	select {
	case err := <-procErr:
		assert.Equal(t, context.Canceled, err, "expected the processor loop stopped on cancellation")
	case <-time.After(time.Second):
		t.Fatal("expected the processor loop to stop")
	}
}
