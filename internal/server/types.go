// Package server provides the HTTP server for the EchoClip API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "time"

// RegisterRequest is the HTTP request body for creating an account.
type RegisterRequest struct {
	// Email is the login identity, unique across users.
	Email string `json:"email" validate:"required,email"`
	// Username is the display name.
	Username string `json:"username" validate:"required,min=2,max=64"`
	// Password is the plaintext password, hashed before storage.
	Password string `json:"password" validate:"required,min=8"`
}

// LoginRequest is the HTTP request body for opening a session.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// MessageResponse is a minimal acknowledgment body.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserResponse is the HTTP response describing the authenticated user.
type UserResponse struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Credit   int    `json:"credit"`
}

// CreditRequest is the HTTP request body for manual credit changes.
type CreditRequest struct {
	// Amount is the number of credits to add or use. Always positive.
	Amount int `json:"amount" validate:"required,min=1"`
}

// CreditResponse carries the balance after a ledger operation.
type CreditResponse struct {
	Credit int `json:"credit"`
}

// YouTubeUploadRequest is the HTTP request body for importing a video.
type YouTubeUploadRequest struct {
	YouTubeID string `json:"youtube_id" validate:"required"`
}

// PresignResponse is the HTTP response for a presigned upload slot.
type PresignResponse struct {
	// VideoID identifies the registered video record.
	VideoID string `json:"video_uuid"`
	// UploadURL is where the client PUTs the file directly.
	UploadURL string `json:"upload_url"`
}

// UploadDoneRequest confirms a presigned upload finished.
type UploadDoneRequest struct {
	VideoID string `json:"video_uuid" validate:"required"`
}

// RenameRequest is the HTTP request body for renaming a video.
type RenameRequest struct {
	VideoID string `json:"video_id" validate:"required"`
	Name    string `json:"name" validate:"required,max=256"`
}

// VideoResponse is the HTTP response describing a video.
type VideoResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Source       string    `json:"source"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// DownloadResponse carries a time-limited download link.
type DownloadResponse struct {
	URL string `json:"url"`
}

// TrimRangeRequest bounds the processed segment of the source video.
type TrimRangeRequest struct {
	Start float64 `json:"start" validate:"min=0"`
	End   float64 `json:"end" validate:"min=0"`
}

// SummarizeRequest is the HTTP request body for creating a summarization job.
type SummarizeRequest struct {
	VideoID        string            `json:"video_id" validate:"required"`
	Method         string            `json:"method" validate:"required,oneof=llm_only echofusion"`
	Subtitle       bool              `json:"subtitle"`
	SubtitleStyle  string            `json:"subtitle_style,omitempty"`
	Vertical       bool              `json:"vertical"`
	CropMethod     string            `json:"crop_method,omitempty"`
	Language       string            `json:"language,omitempty"`
	TargetDuration int               `json:"target_duration,omitempty" validate:"min=0"`
	TrimRange      *TrimRangeRequest `json:"trim_range,omitempty"`
}

// SummarizeResponse is the HTTP response after submitting a job.
type SummarizeResponse struct {
	JobID       string `json:"job_id"`
	WorkerJobID string `json:"worker_job_id,omitempty"`
	Status      string `json:"status"`
}

// JobResponse is the HTTP response describing a job.
type JobResponse struct {
	ID           string     `json:"id"`
	VideoID      string     `json:"video_id"`
	Name         string     `json:"name"`
	Status       string     `json:"status"`
	ResultURL    string     `json:"result_url,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Public       bool       `json:"public"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// PublicRequest is the HTTP request body for toggling result visibility.
type PublicRequest struct {
	JobID  string `json:"job_id" validate:"required"`
	Public bool   `json:"public"`
}

// WebhookAckResponse acknowledges a worker callback.
type WebhookAckResponse struct {
	Status    string `json:"status"`
	JobID     string `json:"job_id"`
	JobStatus string `json:"job_status"`
	Applied   bool   `json:"applied"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Detail is the human-readable error message.
	Detail string `json:"detail"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
