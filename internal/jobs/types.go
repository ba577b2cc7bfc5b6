package jobs

import (
	"context"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeProcessDocument represents an uploaded-document processing job.
	JobTypeProcessDocument JobType = "process_document"
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

// ProcessDocumentJob asks a worker to run the ingestion pipeline for one
// uploaded document. The document record itself carries the storage path and
// all processing state; the job is just the dispatch envelope.
type ProcessDocumentJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// DocumentID identifies the uploaded document to process.
	DocumentID string `json:"document_id"`

	// UserID is the owner of the document.
	UserID string `json:"user_id"`

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

	// MaxRetries is the maximum number of automatic retries. Processing
	// jobs keep this at zero: the document status guard makes pipeline
	// failures terminal until a caller explicitly retries.
	MaxRetries int `json:"max_retries"`
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
func (j *ProcessDocumentJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *ProcessDocumentJob) GetType() JobType {
	return JobTypeProcessDocument
}

// GetStatus implements the Job interface.
func (j *ProcessDocumentJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher defines the interface for publishing jobs to a queue.
// This abstraction allows for different queue implementations (in-memory, Cloud Tasks, Pub/Sub).
type Publisher interface {
	// PublishProcessDocument publishes a document processing job.
	PublishProcessDocument(ctx context.Context, job *ProcessDocumentJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
// This abstraction allows for different queue implementations (in-memory, Cloud Tasks, Pub/Sub).
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
// This allows tracking job execution across service restarts.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *ProcessDocumentJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*ProcessDocumentJob, error)

	// ListJobs retrieves jobs with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*ProcessDocumentJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// DocumentID filters jobs by document ID.
	DocumentID string

	// UserID filters jobs by owner.
	UserID string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
