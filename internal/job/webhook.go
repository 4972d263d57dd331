package job

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/echoclip/echoclip-api/internal/runpod"
)

// WebhookResult is the outcome of reconciling one webhook delivery.
type WebhookResult struct {
	// JobID is the reconciled job.
	JobID string
	// Status is the job status after reconciliation.
	Status Status
	// Applied is false when the delivery was a no-op: the job was already
	// terminal (duplicate or late delivery) or the payload status was not
	// recognized.
	Applied bool
}

// HandleWebhook reconciles a worker callback with the locally held job.
//
// The jobID comes from the webhook URL path and is authoritative; the
// payload's own job_id field is ignored for resolution. The whole decision
// runs under the job's row lock, so duplicate or out-of-order deliveries
// observe the terminal state written by the first one and degrade to
// acknowledged no-ops: the refund is issued at most once and a recorded
// result is never overwritten.
func (s *Service) HandleWebhook(ctx context.Context, jobID string, payload runpod.WebhookPayload) (*WebhookResult, error) {
	var applied bool
	var refund bool

	updated, err := s.repo.Update(ctx, jobID, func(j *Job) error {
		applied = false
		refund = false

		if j.Status.IsTerminal() {
			return nil
		}

		status, ok := runpod.ParseWebhookStatus(payload.Status)
		if !ok {
			// Keep the job in its current state but record the stray
			// status for diagnosis.
			j.ErrorMessage = fmt.Sprintf("Unknown status from webhook: %s", payload.Status)
			return nil
		}

		wasProcessing := j.Status == StatusProcessing

		switch status {
		case runpod.WebhookCompleted, runpod.WebhookPartial:
			if err := j.Complete(payload.ResultURL, completionMessage(status, payload)); err != nil {
				// Completion cannot apply before the worker acceptance
				// was recorded; acknowledge so the worker stops retrying.
				j.ErrorMessage = "Result delivered before submission was acknowledged"
				return nil
			}
		case runpod.WebhookFailed:
			errMsg := payload.Error
			if errMsg == "" {
				errMsg = "Unknown processing error"
			}
			if err := j.Fail(errMsg); err != nil {
				return nil
			}
			// Only a job the worker actually accepted was debited.
			refund = wasProcessing
		}
		applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if refund {
		if _, err := s.users.AdjustCredit(ctx, updated.UserID, 1); err != nil {
			s.logger.Error("credit refund failed",
				slog.String("job_id", updated.ID),
				slog.String("user_id", updated.UserID),
				slog.String("error", err.Error()),
			)
		} else {
			s.logger.Info("credit refunded for failed job",
				slog.String("job_id", updated.ID),
				slog.String("user_id", updated.UserID),
			)
		}
	}

	s.logger.Info("webhook reconciled",
		slog.String("job_id", updated.ID),
		slog.String("payload_status", payload.Status),
		slog.String("job_status", string(updated.Status)),
		slog.Bool("applied", applied),
	)

	return &WebhookResult{
		JobID:   updated.ID,
		Status:  updated.Status,
		Applied: applied,
	}, nil
}

// completionMessage derives the informational note recorded on a completed
// job. Subtitle presence wins over the processing method, which wins over
// the worker's free-text message: a run that produced any subtitles must
// never report "no speech detected", and a clean multimodal run carries no
// note at all.
func completionMessage(status runpod.WebhookStatus, p runpod.WebhookPayload) string {
	var msg string
	switch {
	case p.HasSubtitles:
		lang := p.Language
		if lang == "" || lang == "auto" {
			lang = "detected"
		}
		msg = fmt.Sprintf("Completed with subtitles. (%s)", lang)
	case p.ProcessingMethod == "visual_only":
		msg = "Completed (visual features only - no speech detected)"
	case p.ProcessingMethod == "text_only":
		msg = "Completed (text features only)"
	case p.ProcessingMethod == "multimodal":
		msg = ""
	default:
		msg = p.Message
	}

	if status == runpod.WebhookPartial {
		if msg == "" {
			return "Completed with partial results"
		}
		return msg + " (partial result)"
	}
	return msg
}
