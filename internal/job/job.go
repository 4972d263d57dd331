// Package job provides the Job aggregate for video summarization requests.
// A Job tracks one submission to the external GPU worker from creation
// through the webhook callback that finalizes it, including the credit
// debit on acceptance and the exactly-once refund on failure.
package job

import (
	"errors"
	"fmt"
	"time"

	"github.com/echoclip/echoclip-api/internal/job/id"
)

// Method selects the summarization pipeline on the worker.
type Method string

const (
	// MethodLLMOnly scores scenes from the transcript alone.
	MethodLLMOnly Method = "llm_only"
	// MethodEchoFusion fuses visual and transcript scores.
	MethodEchoFusion Method = "echofusion"
)

// IsValid returns true if the method is valid.
func (m Method) IsValid() bool {
	return m == MethodLLMOnly || m == MethodEchoFusion
}

// Status represents the current state of a Job.
type Status string

const (
	// StatusPending indicates the job row exists but the worker has not
	// accepted the submission yet.
	StatusPending Status = "pending"
	// StatusProcessing indicates the worker accepted the job and assigned
	// a worker-side job ID.
	StatusProcessing Status = "processing"
	// StatusCompleted indicates the worker delivered a result.
	StatusCompleted Status = "completed"
	// StatusFailed indicates submission failed or the worker reported failure.
	StatusFailed Status = "failed"
)

// IsTerminal returns true if no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Static errors for job operations.
var (
	// ErrInvalidTransition is returned when an invalid state transition is attempted.
	ErrInvalidTransition = errors.New("job: invalid state transition")
	// ErrInvalidTrimRange is returned when a trim range has end <= start or negative bounds.
	ErrInvalidTrimRange = errors.New("job: trim range end must be greater than start and both must be non-negative")
	// ErrInvalidMethod is returned when the processing method is not recognized.
	ErrInvalidMethod = errors.New("job: unknown processing method")
)

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusCompleted:  {},
	StatusFailed:     {},
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

// TrimRange restricts processing to a segment of the source video, in seconds.
type TrimRange struct {
	Start float64
	End   float64
}

// Params are the processing parameters forwarded to the worker.
type Params struct {
	// Method selects the summarization pipeline.
	Method Method
	// Subtitle enables burned-in subtitles on the output.
	Subtitle bool
	// SubtitleStyle names the subtitle style preset.
	SubtitleStyle string
	// Vertical produces a vertical (9:16) output.
	Vertical bool
	// CropMethod selects how the frame is cropped for vertical output.
	CropMethod string
	// Language is the transcription language ("auto" for detection).
	Language string
	// TargetDuration is the requested summary length in seconds.
	TargetDuration int
	// Trim optionally restricts processing to a segment of the source.
	Trim *TrimRange
}

// Validate checks the parameters. Unknown methods and malformed trim ranges
// are rejected before a job row is created.
func (p Params) Validate() error {
	if !p.Method.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidMethod, p.Method)
	}
	if p.Trim != nil {
		if p.Trim.Start < 0 || p.Trim.End < 0 || p.Trim.End <= p.Trim.Start {
			return ErrInvalidTrimRange
		}
	}
	return nil
}

// Job represents one request to summarize a video, tracked through
// submission to the external worker and back via webhook.
type Job struct {
	// ID is the locally assigned identifier, embedded in the webhook URL.
	ID string
	// UserID is the owning user.
	UserID string
	// VideoID references the source video. The video cannot be deleted
	// while this job is non-terminal.
	VideoID string
	// Name is the display name, derived from the worker ID on acceptance.
	Name string
	// Status is the current lifecycle state.
	Status Status
	// Params are the processing parameters.
	Params Params
	// WorkerJobID is the worker-assigned identifier, empty until the
	// worker accepts the submission.
	WorkerJobID string
	// ResultURL points at the summary artifact once completed.
	ResultURL string
	// ErrorMessage holds the failure reason, or an informational note on
	// completion.
	ErrorMessage string
	// Public controls whether the result is visible to other users.
	Public bool
	// CreatedAt is when the job row was created.
	CreatedAt time.Time
	// StartedAt is when the worker accepted the submission.
	StartedAt time.Time
	// CompletedAt is when the job reached a terminal state.
	CompletedAt time.Time
}

// New creates a PENDING job for a user and video.
func New(userID, videoID string, params Params) *Job {
	return &Job{
		ID:        id.Generate(),
		UserID:    userID,
		VideoID:   videoID,
		Name:      "Pending Job",
		Status:    StatusPending,
		Params:    params,
		CreatedAt: time.Now().UTC(),
	}
}

// Start transitions the job to PROCESSING after the worker accepted the
// submission, recording the worker ID and deriving the display name from it.
func (j *Job) Start(workerJobID string) error {
	if !canTransition(j.Status, StatusProcessing) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, StatusProcessing)
	}
	j.Status = StatusProcessing
	j.WorkerJobID = workerJobID
	j.StartedAt = time.Now().UTC()
	j.Name = "Job " + shortID(workerJobID)
	return nil
}

// Complete transitions the job to COMPLETED with a result URL and an
// optional informational message.
func (j *Job) Complete(resultURL, message string) error {
	if !canTransition(j.Status, StatusCompleted) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, StatusCompleted)
	}
	j.Status = StatusCompleted
	j.ResultURL = resultURL
	j.ErrorMessage = message
	j.CompletedAt = time.Now().UTC()
	return nil
}

// Fail transitions the job to FAILED with an error message.
func (j *Job) Fail(message string) error {
	if !canTransition(j.Status, StatusFailed) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, StatusFailed)
	}
	j.Status = StatusFailed
	j.ErrorMessage = message
	j.CompletedAt = time.Now().UTC()
	return nil
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	cp := *j
	if j.Params.Trim != nil {
		trim := *j.Params.Trim
		cp.Params.Trim = &trim
	}
	return &cp
}

// shortID returns the first four characters of the worker ID.
func shortID(workerJobID string) string {
	if len(workerJobID) <= 4 {
		return workerJobID
	}
	return workerJobID[:4]
}
