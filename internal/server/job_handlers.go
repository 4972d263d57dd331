package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/echoclip/echoclip-api/internal/job"
	"github.com/echoclip/echoclip-api/internal/runpod"
	"github.com/echoclip/echoclip-api/internal/user"
	"github.com/echoclip/echoclip-api/internal/video"
)

// Summarize handles POST /runpod/summarize requests.
func (h *Handlers) Summarize(w http.ResponseWriter, r *http.Request) {
	auth, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	req, ok := decodeValid[SummarizeRequest](h, w, r)
	if !ok {
		return
	}

	params := job.Params{
		Method:         job.Method(req.Method),
		Subtitle:       req.Subtitle,
		SubtitleStyle:  req.SubtitleStyle,
		Vertical:       req.Vertical,
		CropMethod:     req.CropMethod,
		Language:       req.Language,
		TargetDuration: req.TargetDuration,
	}
	if req.TrimRange != nil {
		params.Trim = &job.TrimRange{Start: req.TrimRange.Start, End: req.TrimRange.End}
	}

	j, err := h.jobs.Summarize(r.Context(), auth.user.ID, req.VideoID, params)
	if err != nil {
		switch {
		case errors.Is(err, job.ErrInvalidMethod), errors.Is(err, job.ErrInvalidTrimRange):
			writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		case errors.Is(err, user.ErrInsufficientCredit):
			writeError(w, http.StatusPaymentRequired, "insufficient credit", "INSUFFICIENT_CREDIT")
		case errors.Is(err, video.ErrNotFound):
			writeError(w, http.StatusNotFound, "video not found", "VIDEO_NOT_FOUND")
		case errors.Is(err, job.ErrUpstream):
			// The job row exists as FAILED; the caller sees the submission error.
			writeError(w, http.StatusInternalServerError, "worker submission failed", "UPSTREAM_FAILURE")
		default:
			h.logger.Error("summarize failed",
				slog.String("user_id", auth.user.ID),
				slog.String("video_id", req.VideoID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, SummarizeResponse{
		JobID:       j.ID,
		WorkerJobID: j.WorkerJobID,
		Status:      string(j.Status),
	})
}

// JobMy handles GET /runpod/job/my requests.
func (h *Handlers) JobMy(w http.ResponseWriter, r *http.Request) {
	auth, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	jobs, err := h.jobs.ListByUser(r.Context(), auth.user.ID)
	if err != nil {
		h.logger.Error("failed to list jobs",
			slog.String("user_id", auth.user.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list jobs", "JOB_LIST_FAILED")
		return
	}

	out := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, jobResponse(j))
	}
	writeJSON(w, http.StatusOK, out)
}

// JobStatus handles GET /runpod/job/{id}/status requests.
func (h *Handlers) JobStatus(w http.ResponseWriter, r *http.Request) {
	auth, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	jobID := r.PathValue("id")

	j, err := h.jobs.Get(r.Context(), auth.user.ID, jobID)
	if err != nil {
		h.writeJobError(w, jobID, err)
		return
	}

	writeJSON(w, http.StatusOK, jobResponse(j))
}

// JobPublic handles PATCH /runpod/job/public requests.
func (h *Handlers) JobPublic(w http.ResponseWriter, r *http.Request) {
	auth, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	req, ok := decodeValid[PublicRequest](h, w, r)
	if !ok {
		return
	}

	j, err := h.jobs.SetPublic(r.Context(), auth.user.ID, req.JobID, req.Public)
	if err != nil {
		h.writeJobError(w, req.JobID, err)
		return
	}

	writeJSON(w, http.StatusOK, jobResponse(j))
}

// JobDelete handles DELETE /runpod/job/{id} requests.
func (h *Handlers) JobDelete(w http.ResponseWriter, r *http.Request) {
	auth, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	jobID := r.PathValue("id")

	if err := h.jobs.Delete(r.Context(), auth.user.ID, jobID); err != nil {
		h.writeJobError(w, jobID, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "job deleted"})
}

// Webhook handles POST /runpod/webhook/{job_id} requests. The endpoint is
// unauthenticated: the caller is the worker, not a browser session. The job
// id in the path is authoritative; the payload body is auxiliary.
func (h *Handlers) Webhook(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job id is required", "MISSING_JOB_ID")
		return
	}

	var payload runpod.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.logger.Warn("failed to decode webhook payload",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	result, err := h.jobs.HandleWebhook(r.Context(), jobID, payload)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		// A 5xx tells the worker's retry policy to re-deliver.
		h.logger.Error("webhook processing failed",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "webhook processing failed", "WEBHOOK_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, WebhookAckResponse{
		Status:    "ok",
		JobID:     result.JobID,
		JobStatus: string(result.Status),
		Applied:   result.Applied,
	})
}

// writeJobError maps job lifecycle errors to HTTP responses.
func (h *Handlers) writeJobError(w http.ResponseWriter, jobID string, err error) {
	switch {
	case errors.Is(err, job.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
	case errors.Is(err, job.ErrNotOwner):
		writeError(w, http.StatusForbidden, "job is not yours", "FORBIDDEN")
	case errors.Is(err, job.ErrJobStillRunning):
		writeError(w, http.StatusConflict, "job is still running", "JOB_STILL_RUNNING")
	default:
		h.logger.Error("job operation failed",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "job operation failed", "JOB_FAILED")
	}
}

func jobResponse(j *job.Job) JobResponse {
	resp := JobResponse{
		ID:           j.ID,
		VideoID:      j.VideoID,
		Name:         j.Name,
		Status:       string(j.Status),
		ResultURL:    j.ResultURL,
		ErrorMessage: j.ErrorMessage,
		Public:       j.Public,
		CreatedAt:    j.CreatedAt,
	}
	resp.StartedAt = optionalTime(j.StartedAt)
	resp.CompletedAt = optionalTime(j.CompletedAt)
	return resp
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
