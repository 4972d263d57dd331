package job

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/echoclip/echoclip-api/internal/runpod"
	"github.com/echoclip/echoclip-api/internal/storage"
	"github.com/echoclip/echoclip-api/internal/user"
)

// fakeGateway implements runpod.Client for testing.
type fakeGateway struct {
	workerJobID string
	err         error
	calls       int
	lastInput   runpod.SubmitInput
}

func (f *fakeGateway) Submit(_ context.Context, input runpod.SubmitInput) (string, error) {
	f.calls++
	f.lastInput = input
	if f.err != nil {
		return "", f.err
	}
	return f.workerJobID, nil
}

// fakeVideos implements VideoSource for testing.
type fakeVideos struct {
	urls map[string]string
}

var errVideoNotFound = errors.New("video not found")

func (f *fakeVideos) VideoURL(_ context.Context, videoID string) (string, error) {
	url, ok := f.urls[videoID]
	if !ok {
		return "", errVideoNotFound
	}
	return url, nil
}

type fixture struct {
	svc      *Service
	repo     *MemoryRepository
	userRepo *user.MemoryRepository
	gateway  *fakeGateway
	store    *storage.MemoryStorage
	owner    *user.User
}

func newFixture(t *testing.T, credit int) *fixture {
	t.Helper()

	repo := NewMemoryRepository()
	userRepo := user.NewMemoryRepository()
	gateway := &fakeGateway{workerJobID: "abc123xyz"}
	store := storage.NewMemoryStorage()

	owner, err := user.New("owner@example.com", "owner", "pw")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	owner.Credit = credit
	if err := userRepo.Create(context.Background(), owner); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	videos := &fakeVideos{urls: map[string]string{
		"video-1": "https://bucket/videos/v1.mp4",
	}}

	svc := NewService(repo, userRepo, videos, gateway, store, "https://backend.example.com", nil)
	return &fixture{
		svc:      svc,
		repo:     repo,
		userRepo: userRepo,
		gateway:  gateway,
		store:    store,
		owner:    owner,
	}
}

func (f *fixture) credit(t *testing.T) int {
	t.Helper()
	u, err := f.userRepo.FindByID(context.Background(), f.owner.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return u.Credit
}

func TestSummarize_DebitOnAcceptance(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	j, err := f.svc.Summarize(ctx, f.owner.ID, "video-1", Params{Method: MethodEchoFusion})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if j.Status != StatusProcessing {
		t.Errorf("expected processing, got %s", j.Status)
	}
	if j.WorkerJobID != "abc123xyz" {
		t.Errorf("expected worker job ID recorded, got %q", j.WorkerJobID)
	}
	if !strings.HasPrefix(j.Name, "Job abc1") {
		t.Errorf("expected name starting with 'Job abc1', got %q", j.Name)
	}
	if got := f.credit(t); got != 0 {
		t.Errorf("expected credit 0 after debit, got %d", got)
	}

	// Webhook URL carries the local job id.
	wantWebhook := "https://backend.example.com/runpod/webhook/" + j.ID
	if f.gateway.lastInput.WebhookURL != wantWebhook {
		t.Errorf("expected webhook URL %q, got %q", wantWebhook, f.gateway.lastInput.WebhookURL)
	}
}

func TestSummarize_SubmitFailureNoDebit(t *testing.T) {
	f := newFixture(t, 3)
	f.gateway.err = errors.New("dial tcp: connection refused")
	ctx := context.Background()

	j, err := f.svc.Summarize(ctx, f.owner.ID, "video-1", Params{Method: MethodEchoFusion})
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}

	if j.Status != StatusFailed {
		t.Errorf("expected failed, got %s", j.Status)
	}
	if j.ErrorMessage == "" {
		t.Error("expected error message recorded")
	}
	if got := f.credit(t); got != 3 {
		t.Errorf("expected credit untouched at 3, got %d", got)
	}
}

func TestSummarize_InsufficientCredit(t *testing.T) {
	f := newFixture(t, 0)

	_, err := f.svc.Summarize(context.Background(), f.owner.ID, "video-1", Params{Method: MethodEchoFusion})
	if !errors.Is(err, user.ErrInsufficientCredit) {
		t.Fatalf("expected ErrInsufficientCredit, got %v", err)
	}
	if f.gateway.calls != 0 {
		t.Error("expected no submission for a caller without credit")
	}
}

func TestSummarize_UnknownVideo(t *testing.T) {
	f := newFixture(t, 1)

	_, err := f.svc.Summarize(context.Background(), f.owner.ID, "video-404", Params{Method: MethodEchoFusion})
	if !errors.Is(err, errVideoNotFound) {
		t.Fatalf("expected video lookup error, got %v", err)
	}
}

func TestSummarize_InvalidTrimRejected(t *testing.T) {
	f := newFixture(t, 1)

	_, err := f.svc.Summarize(context.Background(), f.owner.ID, "video-1", Params{
		Method: MethodEchoFusion,
		Trim:   &TrimRange{Start: 10, End: 5},
	})
	if !errors.Is(err, ErrInvalidTrimRange) {
		t.Fatalf("expected ErrInvalidTrimRange, got %v", err)
	}
	if f.gateway.calls != 0 {
		t.Error("expected no submission for invalid params")
	}
}

func summarized(t *testing.T, f *fixture) *Job {
	t.Helper()
	j, err := f.svc.Summarize(context.Background(), f.owner.ID, "video-1", Params{Method: MethodEchoFusion})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return j
}

func TestHandleWebhook_Completed(t *testing.T) {
	f := newFixture(t, 1)
	j := summarized(t, f)

	result, err := f.svc.HandleWebhook(context.Background(), j.ID, runpod.WebhookPayload{
		Status:    "completed",
		ResultURL: "https://bucket/outputs/summary.mp4",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Applied {
		t.Error("expected delivery to be applied")
	}

	stored, _ := f.repo.FindByID(context.Background(), j.ID)
	if stored.Status != StatusCompleted {
		t.Errorf("expected completed, got %s", stored.Status)
	}
	if stored.ResultURL != "https://bucket/outputs/summary.mp4" {
		t.Errorf("unexpected result URL %q", stored.ResultURL)
	}
	if stored.CompletedAt.IsZero() {
		t.Error("expected completed_at set")
	}
	// Completion never refunds.
	if got := f.credit(t); got != 0 {
		t.Errorf("expected credit 0, got %d", got)
	}
}

func TestHandleWebhook_FailedRefundsExactlyOnce(t *testing.T) {
	f := newFixture(t, 1)
	j := summarized(t, f)

	if got := f.credit(t); got != 0 {
		t.Fatalf("expected credit 0 after debit, got %d", got)
	}

	payload := runpod.WebhookPayload{Status: "failed", Error: "oom"}

	result, err := f.svc.HandleWebhook(context.Background(), j.ID, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Applied {
		t.Error("expected delivery to be applied")
	}

	stored, _ := f.repo.FindByID(context.Background(), j.ID)
	if stored.Status != StatusFailed {
		t.Errorf("expected failed, got %s", stored.Status)
	}
	if stored.ErrorMessage != "oom" {
		t.Errorf("expected error message 'oom', got %q", stored.ErrorMessage)
	}
	if got := f.credit(t); got != 1 {
		t.Errorf("expected credit refunded to 1, got %d", got)
	}

	// Duplicate delivery must not refund again.
	result, err = f.svc.HandleWebhook(context.Background(), j.ID, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Applied {
		t.Error("expected duplicate delivery to be a no-op")
	}
	if got := f.credit(t); got != 1 {
		t.Errorf("expected credit still 1 after duplicate, got %d", got)
	}
}

func TestHandleWebhook_FailedDefaultError(t *testing.T) {
	f := newFixture(t, 1)
	j := summarized(t, f)

	_, err := f.svc.HandleWebhook(context.Background(), j.ID, runpod.WebhookPayload{Status: "failed"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := f.repo.FindByID(context.Background(), j.ID)
	if stored.ErrorMessage != "Unknown processing error" {
		t.Errorf("expected default error message, got %q", stored.ErrorMessage)
	}
}

func TestHandleWebhook_DuplicateCompletedKeepsFirstResult(t *testing.T) {
	f := newFixture(t, 1)
	j := summarized(t, f)
	ctx := context.Background()

	_, err := f.svc.HandleWebhook(ctx, j.ID, runpod.WebhookPayload{
		Status:    "completed",
		ResultURL: "https://bucket/outputs/first.mp4",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first, _ := f.repo.FindByID(ctx, j.ID)

	result, err := f.svc.HandleWebhook(ctx, j.ID, runpod.WebhookPayload{
		Status:    "completed",
		ResultURL: "https://bucket/outputs/second.mp4",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Applied {
		t.Error("expected duplicate delivery to be a no-op")
	}

	second, _ := f.repo.FindByID(ctx, j.ID)
	if second.ResultURL != first.ResultURL {
		t.Errorf("result URL overwritten: %q -> %q", first.ResultURL, second.ResultURL)
	}
	if !second.CompletedAt.Equal(first.CompletedAt) {
		t.Error("completed_at changed on duplicate delivery")
	}
}

func TestHandleWebhook_SubtitlesOverrideNoSpeech(t *testing.T) {
	f := newFixture(t, 1)
	j := summarized(t, f)

	_, err := f.svc.HandleWebhook(context.Background(), j.ID, runpod.WebhookPayload{
		Status:           "completed",
		ResultURL:        "https://bucket/outputs/s.mp4",
		ProcessingMethod: "visual_only",
		Message:          "[OK] Completed (Visual features only - no speech detected)",
		HasSubtitles:     true,
		Language:         "en",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := f.repo.FindByID(context.Background(), j.ID)
	if !strings.Contains(stored.ErrorMessage, "en") {
		t.Errorf("expected message to name the language, got %q", stored.ErrorMessage)
	}
	if strings.Contains(stored.ErrorMessage, "no speech detected") {
		t.Errorf("subtitles present must suppress 'no speech detected', got %q", stored.ErrorMessage)
	}
}

func TestHandleWebhook_UnknownStatusStaysProcessing(t *testing.T) {
	f := newFixture(t, 1)
	j := summarized(t, f)

	result, err := f.svc.HandleWebhook(context.Background(), j.ID, runpod.WebhookPayload{Status: "warming_up"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Applied {
		t.Error("expected unknown status to be a no-op transition")
	}

	stored, _ := f.repo.FindByID(context.Background(), j.ID)
	if stored.Status != StatusProcessing {
		t.Errorf("expected job to remain processing, got %s", stored.Status)
	}
	if !strings.Contains(stored.ErrorMessage, "warming_up") {
		t.Errorf("expected stray status recorded, got %q", stored.ErrorMessage)
	}
	if got := f.credit(t); got != 0 {
		t.Errorf("expected no refund for unknown status, got credit %d", got)
	}
}

func TestHandleWebhook_UnknownJob(t *testing.T) {
	f := newFixture(t, 1)

	_, err := f.svc.HandleWebhook(context.Background(), "job-404", runpod.WebhookPayload{Status: "completed"})
	if !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestHandleWebhook_PartialFlagsMessage(t *testing.T) {
	f := newFixture(t, 1)
	j := summarized(t, f)

	_, err := f.svc.HandleWebhook(context.Background(), j.ID, runpod.WebhookPayload{
		Status:           "partial",
		ResultURL:        "https://bucket/outputs/p.mp4",
		ProcessingMethod: "visual_only",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := f.repo.FindByID(context.Background(), j.ID)
	if stored.Status != StatusCompleted {
		t.Errorf("expected partial to complete the job, got %s", stored.Status)
	}
	if !strings.Contains(stored.ErrorMessage, "partial") {
		t.Errorf("expected partial marker in message, got %q", stored.ErrorMessage)
	}
}

func TestDelete_RunningJobRejected(t *testing.T) {
	f := newFixture(t, 1)
	j := summarized(t, f)

	err := f.svc.Delete(context.Background(), f.owner.ID, j.ID)
	if !errors.Is(err, ErrJobStillRunning) {
		t.Fatalf("expected ErrJobStillRunning, got %v", err)
	}
}

func TestDelete_TerminalJobRemovesArtifact(t *testing.T) {
	f := newFixture(t, 1)
	j := summarized(t, f)
	ctx := context.Background()

	resultURL, err := f.store.Store(ctx, storage.PrefixOutputs, "summary.mp4", "video/mp4", strings.NewReader("bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = f.svc.HandleWebhook(ctx, j.ID, runpod.WebhookPayload{Status: "completed", ResultURL: resultURL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := f.svc.Delete(ctx, f.owner.ID, j.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.store.Has(resultURL) {
		t.Error("expected result artifact removed from storage")
	}
	if _, err := f.repo.FindByID(ctx, j.ID); !errors.Is(err, ErrJobNotFound) {
		t.Error("expected job row removed")
	}
}

func TestDelete_NotOwner(t *testing.T) {
	f := newFixture(t, 1)
	j := summarized(t, f)

	err := f.svc.Delete(context.Background(), "someone-else", j.ID)
	if !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
}

func TestSetPublic(t *testing.T) {
	f := newFixture(t, 1)
	j := summarized(t, f)
	ctx := context.Background()

	updated, err := f.svc.SetPublic(ctx, f.owner.ID, j.ID, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !updated.Public {
		t.Error("expected job to be public")
	}

	if _, err := f.svc.SetPublic(ctx, "someone-else", j.ID, false); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
}

func TestGet_OwnerCheck(t *testing.T) {
	f := newFixture(t, 1)
	j := summarized(t, f)
	ctx := context.Background()

	found, err := f.svc.Get(ctx, f.owner.ID, j.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found.ID != j.ID {
		t.Errorf("expected job %s, got %s", j.ID, found.ID)
	}

	if _, err := f.svc.Get(ctx, "someone-else", j.ID); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
}

func TestCompletionMessage(t *testing.T) {
	tests := []struct {
		name    string
		status  runpod.WebhookStatus
		payload runpod.WebhookPayload
		want    string
	}{
		{
			name:    "subtitles with language",
			status:  runpod.WebhookCompleted,
			payload: runpod.WebhookPayload{HasSubtitles: true, Language: "ko"},
			want:    "Completed with subtitles. (ko)",
		},
		{
			name:    "subtitles auto language",
			status:  runpod.WebhookCompleted,
			payload: runpod.WebhookPayload{HasSubtitles: true, Language: "auto"},
			want:    "Completed with subtitles. (detected)",
		},
		{
			name:    "visual only",
			status:  runpod.WebhookCompleted,
			payload: runpod.WebhookPayload{ProcessingMethod: "visual_only"},
			want:    "Completed (visual features only - no speech detected)",
		},
		{
			name:    "text only",
			status:  runpod.WebhookCompleted,
			payload: runpod.WebhookPayload{ProcessingMethod: "text_only"},
			want:    "Completed (text features only)",
		},
		{
			name:    "multimodal clean success",
			status:  runpod.WebhookCompleted,
			payload: runpod.WebhookPayload{ProcessingMethod: "multimodal", Message: "ignored"},
			want:    "",
		},
		{
			name:    "fallback to worker message",
			status:  runpod.WebhookCompleted,
			payload: runpod.WebhookPayload{Message: "done in 42s"},
			want:    "done in 42s",
		},
		{
			name:    "partial with message",
			status:  runpod.WebhookPartial,
			payload: runpod.WebhookPayload{ProcessingMethod: "visual_only"},
			want:    "Completed (visual features only - no speech detected) (partial result)",
		},
		{
			name:    "partial without message",
			status:  runpod.WebhookPartial,
			payload: runpod.WebhookPayload{ProcessingMethod: "multimodal"},
			want:    "Completed with partial results",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := completionMessage(tt.status, tt.payload); got != tt.want {
				t.Errorf("completionMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}
