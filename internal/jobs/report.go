package jobs

import (
	"context"
	"fmt"
)

// StatusReport counts jobs by status and keeps the failed ones.
type StatusReport struct {
	Counts map[JobStatus]int
	Failed []*ImportBillJob
}

// Total is the number of jobs counted.
func (r StatusReport) Total() int {
	n := 0
	for _, c := range r.Counts {
		n += c
	}
	return n
}

// Report summarizes every job in the store.
func Report(ctx context.Context, store JobStore) (StatusReport, error) {
	all, err := store.ListJobs(ctx, JobFilter{})
	if err != nil {
		return StatusReport{}, fmt.Errorf("Report: %w", err)
	}

	r := StatusReport{Counts: make(map[JobStatus]int)}
	for _, job := range all {
		r.Counts[job.Status]++
		if job.Status == JobStatusFailed {
			r.Failed = append(r.Failed, job)
		}
	}
	return r, nil
}
