package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/billrecon/internal/billsource"
	"github.com/dvloznov/billrecon/internal/logger"
)

// Lister lists bill files at a location.
type Lister interface {
	List(ctx context.Context, location string) ([]billsource.Object, error)
}

// JobReader looks up a published job.
type JobReader interface {
	GetJob(ctx context.Context, jobID string) (*ImportBillJob, error)
}

// InboxScanner publishes an import job for every new or changed bill in an
// inbox. A file is published again only when its modification time changes.
type InboxScanner struct {
	lister    Lister
	publisher Publisher
	inbox     string

	// AllowUnreconciled is copied onto every published job.
	AllowUnreconciled bool
	// Jobs, when set, holds back a changed bill until the import queued for
	// its previous version has finished.
	Jobs JobReader

	mu   sync.Mutex
	seen map[string]queuedBill
}

type queuedBill struct {
	updated time.Time
	jobID   string
}

// NewInboxScanner creates a scanner for inbox.
func NewInboxScanner(lister Lister, publisher Publisher, inbox string) *InboxScanner {
	return &InboxScanner{
		lister:    lister,
		publisher: publisher,
		inbox:     inbox,
		seen:      make(map[string]queuedBill),
	}
}

// Scan lists the inbox once and returns the number of jobs published.
func (s *InboxScanner) Scan(ctx context.Context) (int, error) {
	log := logger.FromContext(ctx)

	objs, err := s.lister.List(ctx, s.inbox)
	if err != nil {
		return 0, fmt.Errorf("Scan: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	published := 0
	for _, obj := range objs {
		prev, ok := s.seen[obj.URI]
		if ok && prev.updated.Equal(obj.Updated) {
			continue
		}
		if ok && s.inFlight(ctx, prev.jobID) {
			log.Debug().
				Str("uri", obj.URI).
				Str("job_id", prev.jobID).
				Msg("Bill changed while its import is in flight, deferring")
			continue
		}

		job := &ImportBillJob{
			URI:               obj.URI,
			AllowUnreconciled: s.AllowUnreconciled,
		}
		if err := s.publisher.PublishImportBill(ctx, job); err != nil {
			return published, fmt.Errorf("Scan: publishing %s: %w", obj.URI, err)
		}
		s.seen[obj.URI] = queuedBill{updated: obj.Updated, jobID: job.JobID}
		published++

		log.Info().
			Str("job_id", job.JobID).
			Str("uri", obj.URI).
			Int64("size", obj.Size).
			Msg("Queued bill import")
	}
	return published, nil
}

// inFlight reports whether a job is still waiting, running or retrying.
// Unknown jobs count as finished.
func (s *InboxScanner) inFlight(ctx context.Context, jobID string) bool {
	if s.Jobs == nil || jobID == "" {
		return false
	}
	job, err := s.Jobs.GetJob(ctx, jobID)
	if err != nil {
		return false
	}
	return job.Status != JobStatusCompleted && job.Status != JobStatusFailed
}
