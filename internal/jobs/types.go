package jobs

import (
	"context"
	"time"

	"github.com/finlog/finlog/internal/domain"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeExportTransaction mirrors one transaction change to the export sinks.
	JobTypeExportTransaction JobType = "export_transaction"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// ExportAction says what happened to the transaction being exported.
type ExportAction string

const (
	ExportUpsert ExportAction = "upsert"
	ExportDelete ExportAction = "delete"
)

// ExportTransactionJob carries a persisted transaction change to the
// analytics and notes mirrors. Export never affects the API response.
type ExportTransactionJob struct {
	JobID         string       `json:"job_id"`
	UserID        string       `json:"user_id"`
	TransactionID string       `json:"transaction_id"`
	Action        ExportAction `json:"action"`

	// Transaction is the persisted record for upserts; nil for deletes.
	Transaction *domain.Transaction `json:"transaction,omitempty"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	RetryCount  int        `json:"retry_count"`
	MaxRetries  int        `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *ExportTransactionJob) GetID() string { return j.JobID }

// GetType implements the Job interface.
func (j *ExportTransactionJob) GetType() JobType { return JobTypeExportTransaction }

// GetStatus implements the Job interface.
func (j *ExportTransactionJob) GetStatus() JobStatus { return j.Status }

// Publisher enqueues jobs for asynchronous processing.
type Publisher interface {
	PublishExport(ctx context.Context, job *ExportTransactionJob) error
	Close() error
}

// Consumer runs a handler over queued jobs.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. A returned error makes the job eligible for retry.
type JobHandler func(ctx context.Context, job Job) error

// JobStore tracks job state for the jobs endpoint.
type JobStore interface {
	SaveJob(ctx context.Context, job *ExportTransactionJob) error
	GetJob(ctx context.Context, jobID string) (*ExportTransactionJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*ExportTransactionJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	UserID        string
	TransactionID string
	Status        JobStatus
	Limit         int
	Offset        int
}
