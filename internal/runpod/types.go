// Package runpod provides the HTTP gateway to the external GPU worker that
// performs video summarization. Jobs are submitted to the worker's /run
// endpoint with a webhook callback URL; the worker reports the result
// asynchronously by POSTing a WebhookPayload to that URL.
package runpod

// Task identifies the operation requested from the worker.
type Task string

const (
	// TaskProcessVideo runs the full summarization pipeline.
	TaskProcessVideo Task = "process_video"
	// TaskGenerateThumbnail extracts a thumbnail frame from a video.
	TaskGenerateThumbnail Task = "generate_thumbnail"
)

// SubmitOptions carries the processing parameters forwarded to the worker.
type SubmitOptions struct {
	Method         string   `json:"method,omitempty"`
	Subtitles      bool     `json:"subtitles"`
	SubtitleStyle  string   `json:"subtitle_style,omitempty"`
	Vertical       bool     `json:"vertical"`
	CropMethod     string   `json:"crop_method,omitempty"`
	Language       string   `json:"language,omitempty"`
	TargetDuration int      `json:"target_duration,omitempty"`
	TrimStart      *float64 `json:"trim_start,omitempty"`
	TrimEnd        *float64 `json:"trim_end,omitempty"`
}

// SubmitInput is a single submission to the worker's /run endpoint.
type SubmitInput struct {
	// JobID is the locally assigned job identifier, echoed back by the worker.
	JobID string
	// Task selects the worker operation.
	Task Task
	// VideoURL points at the source video in object storage.
	VideoURL string
	// WebhookURL is where the worker reports the result. Empty for
	// fire-and-forget tasks.
	WebhookURL string
	// Options are the processing parameters.
	Options SubmitOptions
}

// runRequest is the request body for the worker's /run endpoint.
type runRequest struct {
	Input runInput `json:"input"`
}

type runInput struct {
	JobID      string         `json:"job_id,omitempty"`
	Task       Task           `json:"task"`
	VideoURL   string         `json:"video_url"`
	WebhookURL string         `json:"webhook_url,omitempty"`
	Options    *SubmitOptions `json:"options,omitempty"`
}

// runResponse is the response from the worker's /run endpoint.
type runResponse struct {
	ID     string `json:"id"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// WebhookStatus is the status reported by the worker in a webhook callback.
type WebhookStatus string

const (
	// WebhookCompleted indicates the worker finished successfully.
	WebhookCompleted WebhookStatus = "completed"
	// WebhookPartial indicates the worker produced a result with fallback
	// processing, for example visual-only scoring when transcription failed.
	WebhookPartial WebhookStatus = "partial"
	// WebhookFailed indicates the worker could not produce a result.
	WebhookFailed WebhookStatus = "failed"
)

// ParseWebhookStatus maps the raw status string to a known status.
// The second return is false for unrecognized values.
func ParseWebhookStatus(raw string) (WebhookStatus, bool) {
	switch WebhookStatus(raw) {
	case WebhookCompleted, WebhookPartial, WebhookFailed:
		return WebhookStatus(raw), true
	default:
		return "", false
	}
}

// WebhookPayload is the body the worker POSTs to the webhook URL.
// The job_id field is auxiliary only; the job id embedded in the webhook
// URL path is authoritative.
type WebhookPayload struct {
	JobID            string         `json:"job_id,omitempty"`
	Status           string         `json:"status"`
	ResultURL        string         `json:"result_url,omitempty"`
	Error            string         `json:"error,omitempty"`
	ProcessingMethod string         `json:"processing_method,omitempty"`
	Message          string         `json:"message,omitempty"`
	HasSubtitles     bool           `json:"has_subtitles,omitempty"`
	Language         string         `json:"language,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}
