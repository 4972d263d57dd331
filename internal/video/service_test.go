package video

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/echoclip/echoclip-api/internal/job"
	"github.com/echoclip/echoclip-api/internal/runpod"
	"github.com/echoclip/echoclip-api/internal/storage"
)

// fakeGateway records submissions on a channel so tests can wait for the
// fire-and-forget thumbnail task.
type fakeGateway struct {
	submissions chan runpod.SubmitInput
	err         error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{submissions: make(chan runpod.SubmitInput, 8)}
}

func (f *fakeGateway) Submit(_ context.Context, input runpod.SubmitInput) (string, error) {
	f.submissions <- input
	if f.err != nil {
		return "", f.err
	}
	return "worker-1", nil
}

func (f *fakeGateway) wait(t *testing.T) runpod.SubmitInput {
	t.Helper()
	select {
	case input := <-f.submissions:
		return input
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for worker submission")
		return runpod.SubmitInput{}
	}
}

type fakeDownloader struct {
	name        string
	contentType string
	content     string
	err         error
}

func (f *fakeDownloader) Download(_ context.Context, _ string) (string, string, io.ReadCloser, error) {
	if f.err != nil {
		return "", "", nil, f.err
	}
	return f.name, f.contentType, io.NopCloser(strings.NewReader(f.content)), nil
}

func newService(t *testing.T) (*Service, *MemoryRepository, *job.MemoryRepository, *storage.MemoryStorage, *fakeGateway) {
	t.Helper()
	repo := NewMemoryRepository()
	jobs := job.NewMemoryRepository()
	store := storage.NewMemoryStorage()
	gateway := newFakeGateway()
	svc := NewService(repo, jobs, store, gateway, nil, nil)
	return svc, repo, jobs, store, gateway
}

func TestUpload(t *testing.T) {
	svc, repo, _, store, gateway := newService(t)
	ctx := context.Background()

	v, err := svc.Upload(ctx, "user-1", "clip.mp4", "video/mp4", strings.NewReader("bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Source != SourceUpload {
		t.Errorf("expected upload source, got %s", v.Source)
	}
	if v.Name != "clip.mp4" {
		t.Errorf("expected name kept, got %q", v.Name)
	}
	if !store.Has(v.StorageURL) {
		t.Error("expected video object in storage")
	}
	if _, err := repo.FindByID(ctx, v.ID); err != nil {
		t.Errorf("expected video registered, got %v", err)
	}

	// The thumbnail task is fired for the new video.
	input := gateway.wait(t)
	if input.Task != runpod.TaskGenerateThumbnail {
		t.Errorf("expected thumbnail task, got %s", input.Task)
	}
	if input.JobID != v.ID {
		t.Errorf("expected video ID as task ID, got %q", input.JobID)
	}
}

func TestUpload_ObjectNameKeepsExtension(t *testing.T) {
	svc, _, _, _, gateway := newService(t)

	v, err := svc.Upload(context.Background(), "user-1", "talk.webm", "video/webm", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gateway.wait(t)

	if !strings.HasSuffix(v.StorageURL, ".webm") {
		t.Errorf("expected object to keep .webm extension, got %q", v.StorageURL)
	}
	if strings.Contains(v.StorageURL, "talk") {
		t.Errorf("expected uploaded filename replaced by a generated one, got %q", v.StorageURL)
	}
}

func TestStartUpload(t *testing.T) {
	svc, repo, _, _, _ := newService(t)
	ctx := context.Background()

	v, uploadURL, err := svc.StartUpload(ctx, "user-1", "clip.mp4", "video/mp4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if uploadURL == "" {
		t.Error("expected a presigned upload URL")
	}
	if _, err := repo.FindByID(ctx, v.ID); err != nil {
		t.Errorf("expected video registered before the bytes arrive, got %v", err)
	}
}

func TestFinishUpload_FiresThumbnail(t *testing.T) {
	svc, _, _, _, gateway := newService(t)
	ctx := context.Background()

	v, _, err := svc.StartUpload(ctx, "user-1", "clip.mp4", "video/mp4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.FinishUpload(ctx, "user-1", v.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	input := gateway.wait(t)
	if input.Task != runpod.TaskGenerateThumbnail {
		t.Errorf("expected thumbnail task, got %s", input.Task)
	}
}

func TestFinishUpload_NotOwner(t *testing.T) {
	svc, _, _, _, _ := newService(t)
	ctx := context.Background()

	v, _, err := svc.StartUpload(ctx, "user-1", "clip.mp4", "video/mp4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.FinishUpload(ctx, "user-2", v.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestImport(t *testing.T) {
	repo := NewMemoryRepository()
	store := storage.NewMemoryStorage()
	gateway := newFakeGateway()
	dl := &fakeDownloader{name: "lecture.mp4", contentType: "video/mp4", content: "bytes"}
	svc := NewService(repo, job.NewMemoryRepository(), store, gateway, dl, nil)

	v, err := svc.Import(context.Background(), "user-1", "https://youtube.com/watch?v=abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gateway.wait(t)

	if v.Source != SourceYouTube {
		t.Errorf("expected youtube source, got %s", v.Source)
	}
	if !store.Has(v.StorageURL) {
		t.Error("expected imported video in storage")
	}
}

func TestImport_Unavailable(t *testing.T) {
	svc, _, _, _, _ := newService(t)

	_, err := svc.Import(context.Background(), "user-1", "https://youtube.com/watch?v=abc")
	if !errors.Is(err, ErrImportUnavailable) {
		t.Fatalf("expected ErrImportUnavailable, got %v", err)
	}
}

func TestRename(t *testing.T) {
	svc, repo, _, _, _ := newService(t)
	ctx := context.Background()

	v := New("user-1", "old", "memory://storage/videos/a.mp4", SourceUpload)
	_ = repo.Save(ctx, v)

	renamed, err := svc.Rename(ctx, "user-1", v.ID, "new name")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if renamed.Name != "new name" {
		t.Errorf("expected new name, got %q", renamed.Name)
	}

	if _, err := svc.Rename(ctx, "user-2", v.ID, "stolen"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestRecent_LimitAndOrder(t *testing.T) {
	svc, repo, _, _, _ := newService(t)
	ctx := context.Background()

	for i, name := range []string{"first", "second", "third"} {
		v := New("user-1", name, "memory://storage/videos/"+name, SourceUpload)
		v.CreatedAt = time.Now().Add(time.Duration(i) * time.Minute)
		_ = repo.Save(ctx, v)
	}

	videos, err := svc.Recent(ctx, "user-1", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("expected 2 videos, got %d", len(videos))
	}
	if videos[0].Name != "third" || videos[1].Name != "second" {
		t.Errorf("expected newest first, got %q then %q", videos[0].Name, videos[1].Name)
	}
}

func TestDownloadURL_Signed(t *testing.T) {
	svc, repo, _, store, _ := newService(t)
	ctx := context.Background()

	url, err := store.Store(ctx, storage.PrefixVideos, "a.mp4", "video/mp4", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v := New("user-1", "a", url, SourceUpload)
	_ = repo.Save(ctx, v)

	signed, err := svc.DownloadURL(ctx, "user-1", v.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(signed, "expires=") {
		t.Errorf("expected a signed URL, got %q", signed)
	}
}

func TestDelete(t *testing.T) {
	svc, repo, jobs, store, _ := newService(t)
	ctx := context.Background()

	url, _ := store.Store(ctx, storage.PrefixVideos, "a.mp4", "video/mp4", strings.NewReader("x"))
	v := New("user-1", "a", url, SourceUpload)
	_ = repo.Save(ctx, v)

	resultURL, _ := store.Store(ctx, storage.PrefixOutputs, "r.mp4", "video/mp4", strings.NewReader("y"))
	done := job.New("user-1", v.ID, job.Params{Method: job.MethodEchoFusion})
	_ = done.Start("w1")
	_ = done.Complete(resultURL, "")
	_ = jobs.Save(ctx, done)

	if err := svc.Delete(ctx, "user-1", v.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := repo.FindByID(ctx, v.ID); !errors.Is(err, ErrNotFound) {
		t.Error("expected video row removed")
	}
	if store.Has(url) {
		t.Error("expected video object removed from storage")
	}
	if store.Has(resultURL) {
		t.Error("expected purged job artifact removed from storage")
	}
	if _, err := jobs.FindByID(ctx, done.ID); !errors.Is(err, job.ErrJobNotFound) {
		t.Error("expected referencing job purged")
	}
}

func TestDelete_ActiveJobConflicts(t *testing.T) {
	svc, repo, jobs, _, _ := newService(t)
	ctx := context.Background()

	v := New("user-1", "a", "memory://storage/videos/a.mp4", SourceUpload)
	_ = repo.Save(ctx, v)

	running := job.New("user-1", v.ID, job.Params{Method: job.MethodEchoFusion})
	_ = running.Start("w1")
	_ = jobs.Save(ctx, running)

	if err := svc.Delete(ctx, "user-1", v.ID); !errors.Is(err, job.ErrJobStillRunning) {
		t.Fatalf("expected ErrJobStillRunning, got %v", err)
	}
	if _, err := repo.FindByID(ctx, v.ID); err != nil {
		t.Error("expected video kept when a job is still running")
	}
}

func TestDelete_NotOwner(t *testing.T) {
	svc, repo, _, _, _ := newService(t)
	ctx := context.Background()

	v := New("user-1", "a", "memory://storage/videos/a.mp4", SourceUpload)
	_ = repo.Save(ctx, v)

	if err := svc.Delete(ctx, "user-2", v.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestDelete_NotFound(t *testing.T) {
	svc, _, _, _, _ := newService(t)

	if err := svc.Delete(context.Background(), "user-1", "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestVideoURL(t *testing.T) {
	svc, repo, _, store, _ := newService(t)
	ctx := context.Background()

	url, _ := store.Store(ctx, storage.PrefixVideos, "a.mp4", "video/mp4", strings.NewReader("x"))
	v := New("user-1", "a", url, SourceUpload)
	_ = repo.Save(ctx, v)

	got, err := svc.VideoURL(ctx, v.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(got, url) {
		t.Errorf("expected worker URL derived from %q, got %q", url, got)
	}

	if _, err := svc.VideoURL(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
