// Package jobs tracks asynchronous transcription requests: a Store for job
// records and a Runner that executes the pipeline with bounded concurrency.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/houzhh15/scribe/pkg/transcript"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending      Status = "pending"
	StatusTranscribing Status = "transcribing"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusCancelled    Status = "cancelled"
)

// Terminal reports whether no further transitions happen from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Job is one transcription request.
type Job struct {
	ID          string             `json:"job_id"`
	Status      Status             `json:"status"`
	Filename    string             `json:"filename"`
	Language    string             `json:"language,omitempty"`
	Progress    int                `json:"progress"`
	Error       string             `json:"error,omitempty"`
	ErrorCode   string             `json:"error_code,omitempty"`
	Result      *transcript.Result `json:"result,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

// Summary returns a copy without the result payload, for listings.
func (j *Job) Summary() *Job {
	c := *j
	c.Result = nil
	return &c
}

// ErrNotFound is returned when a job id is unknown or has expired.
var ErrNotFound = errors.New("job not found")

// ErrExists is returned by Create for a duplicate id.
var ErrExists = errors.New("job already exists")

// Store persists job records. Implementations must be safe for concurrent use.
type Store interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	// Update applies fn to the stored job and saves the result. If fn returns
	// an error nothing is saved and the error is returned.
	Update(ctx context.Context, id string, fn func(*Job) error) (*Job, error)
	Delete(ctx context.Context, id string) error
	// List returns all jobs, newest first.
	List(ctx context.Context) ([]*Job, error)
}
