package video

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/echoclip/echoclip-api/internal/job"
	"github.com/echoclip/echoclip-api/internal/runpod"
	"github.com/echoclip/echoclip-api/internal/storage"
)

// ErrImportUnavailable is returned when no downloader is configured for
// URL imports.
var ErrImportUnavailable = errors.New("video: import not available")

// Compile-time check that Service satisfies the job package's video lookup.
var _ job.VideoSource = (*Service)(nil)

const (
	// signedURLTTL bounds how long a download link stays valid.
	signedURLTTL = 1 * time.Hour
	// workerURLTTL bounds how long the worker can fetch the source video.
	workerURLTTL = 4 * time.Hour
	// uploadURLTTL bounds how long a presigned upload slot stays open.
	uploadURLTTL = 15 * time.Minute
)

// Downloader fetches a remote video for import. Implementations resolve
// the URL to a media stream; the service owns storing it.
type Downloader interface {
	Download(ctx context.Context, url string) (name, contentType string, data io.ReadCloser, err error)
}

// Service is the video registry. It owns upload and import flows, metadata
// edits, and deletion, which is guarded by the job repository: a video with
// a non-terminal job cannot be removed.
type Service struct {
	repo       Repository
	jobs       job.Repository
	store      storage.ObjectStorage
	gateway    runpod.Client
	downloader Downloader
	logger     *slog.Logger
}

// NewService creates a video registry service. downloader may be nil, which
// disables URL imports.
func NewService(
	repo Repository,
	jobs job.Repository,
	store storage.ObjectStorage,
	gateway runpod.Client,
	downloader Downloader,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:       repo,
		jobs:       jobs,
		store:      store,
		gateway:    gateway,
		downloader: downloader,
		logger:     logger,
	}
}

// Upload stores a video streamed through the backend and registers it.
func (s *Service) Upload(ctx context.Context, ownerID, name, contentType string, data io.Reader) (*Video, error) {
	url, err := s.store.Store(ctx, storage.PrefixVideos, objectName(name), contentType, data)
	if err != nil {
		return nil, err
	}

	v := New(ownerID, name, url, SourceUpload)
	if err := s.repo.Save(ctx, v); err != nil {
		return nil, err
	}

	s.logger.Info("video uploaded",
		slog.String("video_id", v.ID),
		slog.String("owner_id", ownerID),
	)
	s.fireThumbnail(v)
	return v, nil
}

// StartUpload registers a video and returns a presigned URL the client
// uploads the file to directly. The registry row exists before the bytes
// do; FinishUpload confirms the transfer.
func (s *Service) StartUpload(ctx context.Context, ownerID, name, contentType string) (*Video, string, error) {
	object := objectName(name)
	uploadURL, err := s.store.PresignUpload(ctx, storage.PrefixVideos, object, contentType, uploadURLTTL)
	if err != nil {
		return nil, "", err
	}

	v := New(ownerID, name, s.store.PublicURL(storage.PrefixVideos, object), SourceUpload)
	if err := s.repo.Save(ctx, v); err != nil {
		return nil, "", err
	}

	s.logger.Info("upload presigned",
		slog.String("video_id", v.ID),
		slog.String("owner_id", ownerID),
	)
	return v, uploadURL, nil
}

// FinishUpload confirms a direct upload completed and kicks off thumbnail
// generation.
func (s *Service) FinishUpload(ctx context.Context, ownerID, videoID string) (*Video, error) {
	v, err := s.owned(ctx, ownerID, videoID)
	if err != nil {
		return nil, err
	}
	s.fireThumbnail(v)
	return v, nil
}

// Import fetches a video from a remote URL and registers it.
func (s *Service) Import(ctx context.Context, ownerID, url string) (*Video, error) {
	if s.downloader == nil {
		return nil, ErrImportUnavailable
	}

	name, contentType, data, err := s.downloader.Download(ctx, url)
	if err != nil {
		return nil, err
	}
	defer data.Close()

	storageURL, err := s.store.Store(ctx, storage.PrefixVideos, objectName(name), contentType, data)
	if err != nil {
		return nil, err
	}

	v := New(ownerID, name, storageURL, SourceYouTube)
	if err := s.repo.Save(ctx, v); err != nil {
		return nil, err
	}

	s.logger.Info("video imported",
		slog.String("video_id", v.ID),
		slog.String("owner_id", ownerID),
	)
	s.fireThumbnail(v)
	return v, nil
}

// Rename changes the display name of a video the requester owns.
func (s *Service) Rename(ctx context.Context, ownerID, videoID, name string) (*Video, error) {
	return s.repo.Update(ctx, videoID, func(v *Video) error {
		if v.OwnerID != ownerID {
			return ErrForbidden
		}
		v.Name = name
		return nil
	})
}

// Recent returns the owner's newest videos, at most limit entries.
func (s *Service) Recent(ctx context.Context, ownerID string, limit int) ([]*Video, error) {
	return s.repo.ListByOwner(ctx, ownerID, limit)
}

// Detail returns a video the requester owns.
func (s *Service) Detail(ctx context.Context, ownerID, videoID string) (*Video, error) {
	return s.owned(ctx, ownerID, videoID)
}

// DownloadURL returns a time-limited link to the video object.
func (s *Service) DownloadURL(ctx context.Context, ownerID, videoID string) (string, error) {
	v, err := s.owned(ctx, ownerID, videoID)
	if err != nil {
		return "", err
	}
	return s.signed(ctx, v.StorageURL, signedURLTTL), nil
}

// Delete removes a video the requester owns. All jobs referencing the
// video must be terminal: the purge and the active-jobs check run atomically
// in the job repository, so a webhook arriving mid-delete cannot orphan a
// running job. Storage cleanup is best-effort.
func (s *Service) Delete(ctx context.Context, ownerID, videoID string) error {
	v, err := s.owned(ctx, ownerID, videoID)
	if err != nil {
		return err
	}

	purged, err := s.jobs.PurgeByVideo(ctx, videoID)
	if err != nil {
		return err
	}

	for _, j := range purged {
		if j.ResultURL != "" {
			s.removeObject(ctx, v.ID, j.ResultURL)
		}
	}
	s.removeObject(ctx, v.ID, v.StorageURL)
	if v.ThumbnailURL != "" {
		s.removeObject(ctx, v.ID, v.ThumbnailURL)
	}

	if err := s.repo.Delete(ctx, videoID); err != nil {
		return err
	}

	s.logger.Info("video deleted",
		slog.String("video_id", videoID),
		slog.String("owner_id", ownerID),
		slog.Int("purged_jobs", len(purged)),
	)
	return nil
}

// VideoURL resolves a video ID to a URL the worker can fetch the source
// from. Used by the job lifecycle manager at submission time.
func (s *Service) VideoURL(ctx context.Context, videoID string) (string, error) {
	v, err := s.repo.FindByID(ctx, videoID)
	if err != nil {
		return "", err
	}
	return s.signed(ctx, v.StorageURL, workerURLTTL), nil
}

// owned loads a video and verifies ownership.
func (s *Service) owned(ctx context.Context, ownerID, videoID string) (*Video, error) {
	v, err := s.repo.FindByID(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if v.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return v, nil
}

// removeObject deletes one storage object, logging instead of failing.
func (s *Service) removeObject(ctx context.Context, videoID, url string) {
	if err := s.store.Delete(ctx, url); err != nil && !errors.Is(err, storage.ErrNotManaged) {
		s.logger.Warn("failed to delete storage object",
			slog.String("video_id", videoID),
			slog.String("url", url),
			slog.String("error", err.Error()),
		)
	}
}

// signed returns a time-limited URL when the object is under managed
// storage, the raw URL otherwise.
func (s *Service) signed(ctx context.Context, url string, ttl time.Duration) string {
	signedURL, err := s.store.SignURL(ctx, url, ttl)
	if err != nil {
		if !errors.Is(err, storage.ErrNotManaged) {
			s.logger.Warn("failed to sign storage URL",
				slog.String("url", url),
				slog.String("error", err.Error()),
			)
		}
		return url
	}
	return signedURL
}

// fireThumbnail asks the worker to extract a thumbnail frame. Fire and
// forget: the worker writes the object to the thumbnails prefix under the
// video ID, which is recorded immediately; a failed submission only costs
// the preview image.
func (s *Service) fireThumbnail(v *Video) {
	thumbnailURL := s.store.PublicURL(storage.PrefixThumbnails, v.ID+".jpg")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		_, err := s.gateway.Submit(ctx, runpod.SubmitInput{
			JobID:    v.ID,
			Task:     runpod.TaskGenerateThumbnail,
			VideoURL: s.signed(ctx, v.StorageURL, workerURLTTL),
		})
		if err != nil {
			s.logger.Warn("thumbnail generation failed",
				slog.String("video_id", v.ID),
				slog.String("error", err.Error()),
			)
			return
		}

		if _, err := s.repo.Update(ctx, v.ID, func(v *Video) error {
			v.ThumbnailURL = thumbnailURL
			return nil
		}); err != nil {
			s.logger.Warn("failed to record thumbnail URL",
				slog.String("video_id", v.ID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// objectName derives a collision-free storage object name, keeping the
// original extension.
func objectName(name string) string {
	return uuid.NewString() + path.Ext(name)
}
