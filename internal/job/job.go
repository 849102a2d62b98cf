// Package job provides the export Job aggregate, its persistence port and the
// service that runs exports on background goroutines.
package job

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/maauso/framecut/internal/export"
	"github.com/maauso/framecut/internal/job/id"
	"github.com/maauso/framecut/internal/segment"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusQueued indicates the job was accepted and has not started yet.
	StatusQueued Status = "QUEUED"
	// StatusRunning indicates the export is in progress.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates every requested frame was written.
	StatusCompleted Status = "COMPLETED"
	// StatusPartial indicates the export stopped early and kept what it wrote.
	StatusPartial Status = "PARTIAL"
	// StatusFailed indicates the export could not start or hit a write error.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the job was cancelled.
	StatusCancelled Status = "CANCELLED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

var validTransitions = map[Status][]Status{
	StatusQueued:    {StatusRunning, StatusFailed, StatusCancelled},
	StatusRunning:   {StatusCompleted, StatusPartial, StatusFailed, StatusCancelled},
	StatusCompleted: {},
	StatusPartial:   {},
	StatusFailed:    {},
	StatusCancelled: {},
}

func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Job is one export request and its outcome.
type Job struct {
	mu sync.RWMutex

	ID   string
	Kind export.Kind
	// Status is the current job state.
	Status Status
	// Segment is the range snapshot taken when the job was submitted.
	Segment segment.Segment
	// SourcePath is the video file for image and video exports.
	SourcePath string
	// SourceDir is the still directory for GIF assembly.
	SourceDir string
	// OutputPath is the output directory for image exports and the output
	// file otherwise.
	OutputPath    string
	FrameDuration time.Duration
	// Discard removes partial output when the job is cancelled.
	Discard bool
	// Publish uploads the artifact through storage when the job finishes.
	Publish     bool
	Requested   int
	Written     int
	Progress    int
	Error       string
	ArtifactURL string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

// New creates a queued job of the given kind with a generated ID.
func New(kind export.Kind) *Job {
	return NewWithID(id.Generate(), kind)
}

// NewWithID creates a queued job with the specified ID.
func NewWithID(jobID string, kind export.Kind) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Kind:      kind,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.transitionLocked(status)
}

func (j *Job) transitionLocked(status Status) error {
	if !canTransition(j.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, status)
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusPartial, StatusFailed, StatusCancelled:
		j.CompletedAt = j.UpdatedAt
	}
	return nil
}

// Start transitions the job from QUEUED to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Finish records an export result and moves the job to COMPLETED or PARTIAL.
// A result that never started moves it to FAILED. A write error after the
// export started still leaves the job PARTIAL: earlier frames stay on disk.
func (j *Job) Finish(res export.Result) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Requested = res.Requested
	j.Written = res.Written
	j.Progress = percent(res.Written, res.Requested)

	switch res.Status() {
	case export.StatusCompleted:
		return j.transitionLocked(StatusCompleted)
	case export.StatusPartial:
		return j.transitionLocked(StatusPartial)
	default:
		return j.transitionLocked(StatusFailed)
	}
}

// Fail records errMsg and transitions the job to FAILED.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Error = errMsg
	return j.transitionLocked(StatusFailed)
}

// Cancel transitions the job to CANCELLED.
func (j *Job) Cancel() error {
	return j.TransitionTo(StatusCancelled)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// UpdateProgress records written out of requested frames.
func (j *Job) UpdateProgress(written, requested int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Written = written
	j.Requested = requested
	j.Progress = percent(written, requested)
	j.UpdatedAt = time.Now()
}

// SetError records a non-fatal error message, such as a failed upload.
func (j *Job) SetError(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Error = msg
	j.UpdatedAt = time.Now()
}

// SetArtifactURL records where the published artifact lives.
func (j *Job) SetArtifactURL(url string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ArtifactURL = url
	j.UpdatedAt = time.Now()
}

// Summary renders the outcome the way export results do.
func (j *Job) Summary() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	switch j.Status {
	case StatusCompleted:
		return "completed fully"
	case StatusPartial:
		return fmt.Sprintf("completed partially (%d of %d frames)", j.Written, j.Requested)
	case StatusFailed:
		return "failed before starting"
	case StatusCancelled:
		return fmt.Sprintf("cancelled after %d of %d frames", j.Written, j.Requested)
	default:
		return string(j.Status)
	}
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted ||
		j.Status == StatusPartial ||
		j.Status == StatusFailed ||
		j.Status == StatusCancelled
}

// Clone creates a copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return &Job{
		ID:            j.ID,
		Kind:          j.Kind,
		Status:        j.Status,
		Segment:       j.Segment,
		SourcePath:    j.SourcePath,
		SourceDir:     j.SourceDir,
		OutputPath:    j.OutputPath,
		FrameDuration: j.FrameDuration,
		Discard:       j.Discard,
		Publish:       j.Publish,
		Requested:     j.Requested,
		Written:       j.Written,
		Progress:      j.Progress,
		Error:         j.Error,
		ArtifactURL:   j.ArtifactURL,
		CreatedAt:     j.CreatedAt,
		UpdatedAt:     j.UpdatedAt,
		StartedAt:     j.StartedAt,
		CompletedAt:   j.CompletedAt,
	}
}

func percent(written, requested int) int {
	if requested <= 0 {
		return 0
	}
	p := written * 100 / requested
	if p > 100 {
		p = 100
	}
	return p
}
