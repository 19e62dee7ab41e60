// Package job tracks long-running video generation requests. It provides
// the Job aggregate with a state machine mirroring the provider job
// lifecycle, a repository port for lookups, and the service that runs
// generation in the background.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/mediaremix/studio-api/internal/job/id"
)

// Kind distinguishes the asynchronous operations a job can represent.
type Kind string

const (
	// KindVideo is a text-to-video generation.
	KindVideo Kind = "video"
	// KindRemix is a video generation seeded from an uploaded video.
	KindRemix Kind = "remix"
	// KindNarrated is a video generation joined with a synthesized voice-over.
	KindNarrated Kind = "narrated"
)

// IsValid returns true if the kind is one of the known job kinds.
func (k Kind) IsValid() bool {
	return k == KindVideo || k == KindRemix || k == KindNarrated
}

// Status represents the current state of a Job.
type Status string

const (
	// StatusSubmitted indicates the request has been accepted but not yet
	// handed to the provider.
	StatusSubmitted Status = "SUBMITTED"
	// StatusPolling indicates the provider job is in flight and being polled.
	StatusPolling Status = "POLLING"
	// StatusSucceeded indicates the job finished and its artifacts are ready.
	StatusSucceeded Status = "SUCCEEDED"
	// StatusFailed indicates the job encountered an error.
	StatusFailed Status = "FAILED"
	// StatusBlocked indicates the provider refused the request on policy grounds.
	StatusBlocked Status = "BLOCKED"
	// StatusTimedOut indicates the job did not reach a terminal provider
	// state before the polling deadline.
	StatusTimedOut Status = "TIMED_OUT"
	// StatusCancelled indicates the job was abandoned by the caller.
	StatusCancelled Status = "CANCELLED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed. Terminal
// states have no successors: a resolved job is immutable and never
// re-polled.
var validTransitions = map[Status][]Status{
	StatusSubmitted: {StatusPolling, StatusFailed, StatusCancelled},
	StatusPolling:   {StatusSucceeded, StatusFailed, StatusBlocked, StatusTimedOut, StatusCancelled},
	StatusSucceeded: {},
	StatusFailed:    {},
	StatusBlocked:   {},
	StatusTimedOut:  {},
	StatusCancelled: {},
}

// canTransition checks if a transition from one status to another is valid.
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

// Job represents one asynchronous generation request.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Kind is the operation this job represents.
	Kind Kind
	// Status is the current job state.
	Status Status
	// OperationName is the opaque provider-assigned handle, once known.
	OperationName string
	// Prompt is the generation instruction.
	Prompt string
	// AspectRatio is the requested aspect ratio for fresh generations.
	AspectRatio string
	// VoiceOverText is the narration text for narrated jobs.
	VoiceOverText string
	// SourceVideoPath is the uploaded source video for remix jobs.
	SourceVideoPath string
	// Error contains the normalized message if the job failed.
	Error string
	// VideoPath is the local path of the finished video.
	VideoPath string
	// AudioPath is the local path of the narration WAV, for narrated jobs.
	AudioPath string
	// CombinedPath is the local path of the muxed WebM, for narrated jobs.
	CombinedPath string
	// VideoURL is the published URL if the artifact was uploaded.
	VideoURL string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when provider polling started.
	StartedAt time.Time
	// CompletedAt is when the job reached a terminal state.
	CompletedAt time.Time
}

// New creates a new Job of the given kind with a generated ID and
// initial SUBMITTED status.
func New(kind Kind) *Job {
	now := time.Now()
	return &Job{
		ID:        id.Generate(),
		Kind:      kind,
		Status:    StatusSubmitted,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewWithID creates a new Job with the specified ID. Useful for testing
// or when the ID needs to be externally generated.
func NewWithID(jobID string, kind Kind) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Kind:      kind,
		Status:    StatusSubmitted,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusPolling:
		j.StartedAt = j.UpdatedAt
	case StatusSucceeded, StatusFailed, StatusBlocked, StatusTimedOut, StatusCancelled:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from SUBMITTED to POLLING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusPolling)
}

// Succeed transitions the job to SUCCEEDED.
func (j *Job) Succeed() error {
	return j.TransitionTo(StatusSucceeded)
}

// Fail transitions the job to FAILED with a message.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	j.Error = errMsg
	j.mu.Unlock()
	return j.TransitionTo(StatusFailed)
}

// Block transitions the job to BLOCKED with the provider's stated reason.
func (j *Job) Block(reason string) error {
	j.mu.Lock()
	j.Error = reason
	j.mu.Unlock()
	return j.TransitionTo(StatusBlocked)
}

// Timeout transitions the job to TIMED_OUT with a message.
func (j *Job) Timeout(errMsg string) error {
	j.mu.Lock()
	j.Error = errMsg
	j.mu.Unlock()
	return j.TransitionTo(StatusTimedOut)
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

// SetOperationName records the provider-assigned handle.
func (j *Job) SetOperationName(name string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.OperationName = name
	j.UpdatedAt = time.Now()
}

// SetOutput records the finished artifact paths.
func (j *Job) SetOutput(videoPath, audioPath, combinedPath string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.VideoPath = videoPath
	j.AudioPath = audioPath
	j.CombinedPath = combinedPath
	j.UpdatedAt = time.Now()
}

// SetVideoURL records the published artifact URL.
func (j *Job) SetVideoURL(url string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.VideoURL = url
	j.UpdatedAt = time.Now()
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	switch j.Status {
	case StatusSucceeded, StatusFailed, StatusBlocked, StatusTimedOut, StatusCancelled:
		return true
	default:
		return false
	}
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:              j.ID,
		Kind:            j.Kind,
		Status:          j.Status,
		OperationName:   j.OperationName,
		Prompt:          j.Prompt,
		AspectRatio:     j.AspectRatio,
		VoiceOverText:   j.VoiceOverText,
		SourceVideoPath: j.SourceVideoPath,
		Error:           j.Error,
		VideoPath:       j.VideoPath,
		AudioPath:       j.AudioPath,
		CombinedPath:    j.CombinedPath,
		VideoURL:        j.VideoURL,
		CreatedAt:       j.CreatedAt,
		UpdatedAt:       j.UpdatedAt,
		StartedAt:       j.StartedAt,
		CompletedAt:     j.CompletedAt,
	}
}
