package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/echoclip/echoclip-api/internal/runpod"
	"github.com/echoclip/echoclip-api/internal/storage"
	"github.com/echoclip/echoclip-api/internal/user"
)

// Static errors for lifecycle operations.
var (
	// ErrNotOwner is returned when the requester does not own the job.
	ErrNotOwner = errors.New("job: not owned by requester")
	// ErrUpstream is returned when the worker rejects or never receives
	// the submission. The job is FAILED and no credit was debited.
	ErrUpstream = errors.New("job: worker submission failed")
)

// VideoSource resolves a video ID to its storage URL. Implemented by the
// video registry; kept narrow here so the registry can depend on this
// package for its deletion guard.
type VideoSource interface {
	VideoURL(ctx context.Context, videoID string) (string, error)
}

// Service is the job lifecycle manager. It creates job records, submits
// them to the external worker, reconciles webhook callbacks, and keeps the
// credit ledger consistent: debit once on acceptance, refund once on a
// confirmed failure, never either twice.
type Service struct {
	repo       Repository
	users      user.Repository
	videos     VideoSource
	gateway    runpod.Client
	store      storage.ObjectStorage
	webhookURL string
	logger     *slog.Logger
}

// NewService creates a job lifecycle service. webhookBaseURL is the
// externally reachable base of this backend; the per-job callback URL is
// derived from it.
func NewService(
	repo Repository,
	users user.Repository,
	videos VideoSource,
	gateway runpod.Client,
	store storage.ObjectStorage,
	webhookBaseURL string,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:       repo,
		users:      users,
		videos:     videos,
		gateway:    gateway,
		store:      store,
		webhookURL: webhookBaseURL + "/runpod/webhook/",
		logger:     logger,
	}
}

// Summarize creates a job and submits it to the worker.
//
// The credit precondition (balance >= 1) is checked before the PENDING row
// is created, but the debit itself only happens once the worker accepts
// the submission and assigns a worker job ID. A failed submission leaves
// the job FAILED with the balance untouched.
func (s *Service) Summarize(ctx context.Context, userID, videoID string, params Params) (*Job, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Credit < 1 {
		return nil, user.ErrInsufficientCredit
	}

	videoURL, err := s.videos.VideoURL(ctx, videoID)
	if err != nil {
		return nil, err
	}

	j := New(userID, videoID, params)
	if err := s.repo.Save(ctx, j); err != nil {
		return nil, err
	}

	s.logger.Info("job created",
		slog.String("job_id", j.ID),
		slog.String("user_id", userID),
		slog.String("video_id", videoID),
		slog.String("method", string(params.Method)),
	)

	workerJobID, err := s.gateway.Submit(ctx, runpod.SubmitInput{
		JobID:      j.ID,
		Task:       runpod.TaskProcessVideo,
		VideoURL:   videoURL,
		WebhookURL: s.webhookURL + j.ID,
		Options:    submitOptions(params),
	})
	if err != nil {
		failMsg := "Failed to submit job to worker: " + err.Error()
		failed, updateErr := s.repo.Update(ctx, j.ID, func(j *Job) error {
			return j.Fail(failMsg)
		})
		if updateErr != nil {
			s.logger.Error("failed to mark job as failed",
				slog.String("job_id", j.ID),
				slog.String("error", updateErr.Error()),
			)
			failed = j
		}
		s.logger.Error("worker submission failed",
			slog.String("job_id", failed.ID),
			slog.String("error", err.Error()),
		)
		return failed, fmt.Errorf("%w: %s", ErrUpstream, err)
	}

	updated, err := s.repo.Update(ctx, j.ID, func(j *Job) error {
		return j.Start(workerJobID)
	})
	if err != nil {
		// The webhook beat the submit response; leave the job as the
		// webhook left it and skip the debit.
		s.logger.Warn("job already finalized before submission was acknowledged",
			slog.String("job_id", j.ID),
			slog.String("worker_job_id", workerJobID),
			slog.String("error", err.Error()),
		)
		return s.repo.FindByID(ctx, j.ID)
	}

	if _, err := s.users.AdjustCredit(ctx, userID, -1); err != nil {
		s.logger.Error("credit debit failed after worker accepted job",
			slog.String("job_id", j.ID),
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("job submitted",
		slog.String("job_id", updated.ID),
		slog.String("worker_job_id", workerJobID),
	)
	return updated, nil
}

// Get returns a job if the requester owns it.
func (s *Service) Get(ctx context.Context, userID, jobID string) (*Job, error) {
	j, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.UserID != userID {
		return nil, ErrNotOwner
	}
	return j, nil
}

// ListByUser returns all jobs belonging to the user.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]*Job, error) {
	return s.repo.ListByUser(ctx, userID)
}

// SetPublic toggles the result visibility flag on a job the requester owns.
func (s *Service) SetPublic(ctx context.Context, userID, jobID string, public bool) (*Job, error) {
	return s.repo.Update(ctx, jobID, func(j *Job) error {
		if j.UserID != userID {
			return ErrNotOwner
		}
		j.Public = public
		return nil
	})
}

// Delete removes a terminal job owned by the requester. The result
// artifact is removed from storage best-effort; a storage error is logged
// and the row deletion proceeds.
func (s *Service) Delete(ctx context.Context, userID, jobID string) error {
	j, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	if j.UserID != userID {
		return ErrNotOwner
	}
	if !j.Status.IsTerminal() {
		return ErrJobStillRunning
	}

	if j.ResultURL != "" {
		if err := s.store.Delete(ctx, j.ResultURL); err != nil {
			s.logger.Warn("failed to delete result artifact",
				slog.String("job_id", j.ID),
				slog.String("result_url", j.ResultURL),
				slog.String("error", err.Error()),
			)
		}
	}
	return s.repo.Delete(ctx, jobID)
}

// submitOptions maps job parameters onto the worker wire format.
func submitOptions(p Params) runpod.SubmitOptions {
	opts := runpod.SubmitOptions{
		Method:         string(p.Method),
		Subtitles:      p.Subtitle,
		SubtitleStyle:  p.SubtitleStyle,
		Vertical:       p.Vertical,
		CropMethod:     p.CropMethod,
		Language:       p.Language,
		TargetDuration: p.TargetDuration,
	}
	if p.Trim != nil {
		start, end := p.Trim.Start, p.Trim.End
		opts.TrimStart = &start
		opts.TrimEnd = &end
	}
	return opts
}
