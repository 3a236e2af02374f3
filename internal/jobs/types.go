package jobs

import (
	"context"
	"errors"
	"time"
)

// ErrJobNotFound is returned by a JobStore for an unknown job ID.
var ErrJobNotFound = errors.New("job not found")

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeImportBill represents a bill import job.
	JobTypeImportBill JobType = "import_bill"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// ImportBillJob represents a job to import one bill export.
type ImportBillJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// URI is the local path or gs:// URI of the bill.
	URI string `json:"uri"`

	// Source is the provider key; empty means detect from the filename.
	Source string `json:"source,omitempty"`

	// AllowUnreconciled lets a bill without a summary import as unverified.
	AllowUnreconciled bool `json:"allow_unreconciled,omitempty"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// RetryCount is the number of times this job has been retried.
	RetryCount int `json:"retry_count"`

	// MaxRetries is the maximum number of retries allowed.
	MaxRetries int `json:"max_retries"`

	// Verdict is the reconciliation status of the last successful run.
	Verdict string `json:"verdict,omitempty"`

	// Inserted and Duplicates count ledger writes of the last successful run.
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`

	// Warnings counts rows skipped as malformed.
	Warnings int `json:"warnings"`
}

// Job is a generic interface for all job types.
type Job interface {
	// GetID returns the unique job identifier.
	GetID() string

	// GetType returns the job type.
	GetType() JobType

	// GetStatus returns the current job status.
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *ImportBillJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *ImportBillJob) GetType() JobType {
	return JobTypeImportBill
}

// GetStatus implements the Job interface.
func (j *ImportBillJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// PublishImportBill publishes a bill import job.
	PublishImportBill(ctx context.Context, job *ImportBillJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job.
// It should return an error if the job failed and should be retried.
type JobHandler func(ctx context.Context, job Job) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *ImportBillJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*ImportBillJob, error)

	// ListJobs retrieves jobs with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*ImportBillJob, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// URI filters jobs by bill location.
	URI string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
