// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/absmach/certkeeper/pkg/errors"
	"github.com/absmach/certkeeper/renewals"
)

var _ renewals.Repository = (*jobsRepoMock)(nil)

type jobsRepoMock struct {
	mu   sync.Mutex
	jobs map[string]renewals.Job
}

// NewRepository creates an in-memory renewal job store mirroring the
// one-outstanding-job-per-device upsert semantics of the PostgreSQL
// implementation.
func NewRepository() renewals.Repository {
	return &jobsRepoMock{
		jobs: make(map[string]renewals.Job),
	}
}

func (jrm *jobsRepoMock) Upsert(_ context.Context, job renewals.Job) (renewals.Job, error) {
	jrm.mu.Lock()
	defer jrm.mu.Unlock()

	for id, existing := range jrm.jobs {
		if existing.DeviceID == job.DeviceID && (existing.Status == renewals.Pending || existing.Status == renewals.InProgress) {
			existing.SerialNumber = job.SerialNumber
			existing.ExpiryDate = job.ExpiryDate
			existing.Priority = job.Priority
			existing.MaxAttempts = job.MaxAttempts
			jrm.jobs[id] = existing
			return existing, nil
		}
	}
	jrm.jobs[job.ID] = job

	return job, nil
}

func (jrm *jobsRepoMock) Update(_ context.Context, job renewals.Job) (renewals.Job, error) {
	jrm.mu.Lock()
	defer jrm.mu.Unlock()

	existing, ok := jrm.jobs[job.ID]
	if !ok {
		return renewals.Job{}, errors.ErrNotFound
	}
	existing.Status = job.Status
	existing.Attempts = job.Attempts
	existing.LastAttempt = job.LastAttempt
	existing.Priority = job.Priority
	existing.ExpiryDate = job.ExpiryDate
	existing.SerialNumber = job.SerialNumber
	jrm.jobs[job.ID] = existing

	return existing, nil
}

func (jrm *jobsRepoMock) RetrieveByID(_ context.Context, id string) (renewals.Job, error) {
	jrm.mu.Lock()
	defer jrm.mu.Unlock()

	job, ok := jrm.jobs[id]
	if !ok {
		return renewals.Job{}, errors.ErrNotFound
	}

	return job, nil
}

func (jrm *jobsRepoMock) RetrievePending(_ context.Context) ([]renewals.Job, error) {
	jrm.mu.Lock()
	defer jrm.mu.Unlock()

	jobs := []renewals.Job{}
	for _, job := range jrm.jobs {
		if job.Status == renewals.Pending {
			jobs = append(jobs, job)
		}
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].Priority != jobs[j].Priority {
			return jobs[i].Priority < jobs[j].Priority
		}
		return jobs[i].ExpiryDate.Before(jobs[j].ExpiryDate)
	})

	return jobs, nil
}
