package jobs

import (
	"context"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeRecordExchange archives and logs one completed analysis.
	JobTypeRecordExchange JobType = "record_exchange"
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

// RecordExchangeJob carries one prompt/response exchange to the recording
// sinks (attachment archive, exchange table).
type RecordExchangeJob struct {
	JobID      string `json:"job_id"`
	ExchangeID string `json:"exchange_id"`
	SessionID  string `json:"session_id"`

	Model        string `json:"model"`
	SystemPrompt string `json:"-"`
	UserPrompt   string `json:"user_prompt"`
	Response     string `json:"-"`

	// AttachmentKind is "text", "image" or "audio".
	AttachmentKind     string `json:"attachment_kind"`
	AttachmentMIMEType string `json:"attachment_mime_type,omitempty"`
	Attachment         []byte `json:"-"`

	// ArchiveURI is set once the attachment has been stored, so retries
	// do not upload it twice.
	ArchiveURI string `json:"archive_uri,omitempty"`

	OccurredAt  time.Time  `json:"occurred_at"`
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

func (j *RecordExchangeJob) GetID() string        { return j.JobID }
func (j *RecordExchangeJob) GetType() JobType     { return JobTypeRecordExchange }
func (j *RecordExchangeJob) GetStatus() JobStatus { return j.Status }

// Publisher enqueues jobs.
type Publisher interface {
	PublishRecordExchange(ctx context.Context, job *RecordExchangeJob) error
	Close() error
}

// Consumer runs a handler for every queued job.
type Consumer interface {
	Start(ctx context.Context, handler JobHandler) error
	Stop(ctx context.Context) error
}

// JobHandler processes one job. A returned error makes the job eligible
// for retry.
type JobHandler func(ctx context.Context, job Job) error

// JobStore keeps job state for status lookups.
type JobStore interface {
	SaveJob(ctx context.Context, job *RecordExchangeJob) error
	GetJob(ctx context.Context, jobID string) (*RecordExchangeJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*RecordExchangeJob, error)
}

// JobFilter narrows ListJobs results.
type JobFilter struct {
	SessionID string
	Status    JobStatus
	Limit     int
	Offset    int
}
