package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/echoclip/echoclip-api/internal/job"
	"github.com/echoclip/echoclip-api/internal/video"
)

// maxUploadBytes bounds multipart video uploads routed through the backend.
const maxUploadBytes = 2 << 30 // 2 GiB

// VideoUploadFile handles POST /video/upload/file requests (multipart).
func (h *Handlers) VideoUploadFile(w http.ResponseWriter, r *http.Request) {
	auth, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required", "MISSING_FILE")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	v, err := h.videos.Upload(r.Context(), auth.user.ID, header.Filename, contentType, file)
	if err != nil {
		h.logger.Error("video upload failed",
			slog.String("user_id", auth.user.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "upload failed", "UPLOAD_FAILED")
		return
	}

	writeJSON(w, http.StatusCreated, videoResponse(v))
}

// VideoUploadYouTube handles POST /video/upload/youtube requests.
func (h *Handlers) VideoUploadYouTube(w http.ResponseWriter, r *http.Request) {
	auth, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	req, ok := decodeValid[YouTubeUploadRequest](h, w, r)
	if !ok {
		return
	}

	v, err := h.videos.Import(r.Context(), auth.user.ID, "https://www.youtube.com/watch?v="+req.YouTubeID)
	if err != nil {
		if errors.Is(err, video.ErrImportUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "video import is not available", "IMPORT_UNAVAILABLE")
			return
		}
		h.logger.Error("video import failed",
			slog.String("user_id", auth.user.ID),
			slog.String("youtube_id", req.YouTubeID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "video import failed", "IMPORT_FAILED")
		return
	}

	writeJSON(w, http.StatusCreated, videoResponse(v))
}

// VideoPresign handles GET /video/upload/presign requests.
func (h *Handlers) VideoPresign(w http.ResponseWriter, r *http.Request) {
	auth, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	filename := r.URL.Query().Get("filename")
	contentType := r.URL.Query().Get("content_type")
	if filename == "" || contentType == "" {
		writeError(w, http.StatusBadRequest, "filename and content_type are required", "MISSING_PARAMS")
		return
	}

	v, uploadURL, err := h.videos.StartUpload(r.Context(), auth.user.ID, filename, contentType)
	if err != nil {
		h.logger.Error("presign failed",
			slog.String("user_id", auth.user.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "presign failed", "PRESIGN_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, PresignResponse{VideoID: v.ID, UploadURL: uploadURL})
}

// VideoUploadDone handles POST /video/upload/done requests.
func (h *Handlers) VideoUploadDone(w http.ResponseWriter, r *http.Request) {
	auth, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	req, ok := decodeValid[UploadDoneRequest](h, w, r)
	if !ok {
		return
	}

	v, err := h.videos.FinishUpload(r.Context(), auth.user.ID, req.VideoID)
	if err != nil {
		h.writeVideoError(w, req.VideoID, err)
		return
	}

	writeJSON(w, http.StatusOK, videoResponse(v))
}

// VideoMy handles GET /video/my requests.
func (h *Handlers) VideoMy(w http.ResponseWriter, r *http.Request) {
	auth, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	videos, err := h.videos.Recent(r.Context(), auth.user.ID, 0)
	if err != nil {
		h.logger.Error("failed to list videos",
			slog.String("user_id", auth.user.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list videos", "VIDEO_LIST_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, videoResponses(videos))
}

// VideosRecent handles GET /videos/recent requests.
func (h *Handlers) VideosRecent(w http.ResponseWriter, r *http.Request) {
	auth, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", "INVALID_LIMIT")
			return
		}
		limit = parsed
	}

	videos, err := h.videos.Recent(r.Context(), auth.user.ID, limit)
	if err != nil {
		h.logger.Error("failed to list videos",
			slog.String("user_id", auth.user.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list videos", "VIDEO_LIST_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, videoResponses(videos))
}

// VideoDetail handles GET /video/{id}/detail requests.
func (h *Handlers) VideoDetail(w http.ResponseWriter, r *http.Request) {
	auth, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	videoID := r.PathValue("id")

	v, err := h.videos.Detail(r.Context(), auth.user.ID, videoID)
	if err != nil {
		h.writeVideoError(w, videoID, err)
		return
	}

	writeJSON(w, http.StatusOK, videoResponse(v))
}

// VideoDownload handles GET /video/download requests.
func (h *Handlers) VideoDownload(w http.ResponseWriter, r *http.Request) {
	auth, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	videoID := r.URL.Query().Get("video_id")
	if videoID == "" {
		writeError(w, http.StatusBadRequest, "video_id is required", "MISSING_VIDEO_ID")
		return
	}

	url, err := h.videos.DownloadURL(r.Context(), auth.user.ID, videoID)
	if err != nil {
		h.writeVideoError(w, videoID, err)
		return
	}

	writeJSON(w, http.StatusOK, DownloadResponse{URL: url})
}

// VideoRename handles PATCH /video/rename requests.
func (h *Handlers) VideoRename(w http.ResponseWriter, r *http.Request) {
	auth, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	req, ok := decodeValid[RenameRequest](h, w, r)
	if !ok {
		return
	}

	v, err := h.videos.Rename(r.Context(), auth.user.ID, req.VideoID, req.Name)
	if err != nil {
		h.writeVideoError(w, req.VideoID, err)
		return
	}

	writeJSON(w, http.StatusOK, videoResponse(v))
}

// VideoDelete handles DELETE /video/{id}/delete requests.
func (h *Handlers) VideoDelete(w http.ResponseWriter, r *http.Request) {
	auth, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	videoID := r.PathValue("id")

	if err := h.videos.Delete(r.Context(), auth.user.ID, videoID); err != nil {
		if errors.Is(err, job.ErrJobStillRunning) {
			writeError(w, http.StatusConflict, "video has running jobs", "JOB_STILL_RUNNING")
			return
		}
		h.writeVideoError(w, videoID, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "video deleted"})
}

// writeVideoError maps video registry errors to HTTP responses.
func (h *Handlers) writeVideoError(w http.ResponseWriter, videoID string, err error) {
	switch {
	case errors.Is(err, video.ErrNotFound):
		writeError(w, http.StatusNotFound, "video not found", "VIDEO_NOT_FOUND")
	case errors.Is(err, video.ErrForbidden):
		writeError(w, http.StatusForbidden, "video is not yours", "FORBIDDEN")
	default:
		h.logger.Error("video operation failed",
			slog.String("video_id", videoID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "video operation failed", "VIDEO_FAILED")
	}
}

func videoResponse(v *video.Video) VideoResponse {
	return VideoResponse{
		ID:           v.ID,
		Name:         v.Name,
		Source:       string(v.Source),
		ThumbnailURL: v.ThumbnailURL,
		CreatedAt:    v.CreatedAt,
	}
}

func videoResponses(videos []*video.Video) []VideoResponse {
	out := make([]VideoResponse, 0, len(videos))
	for _, v := range videos {
		out = append(out, videoResponse(v))
	}
	return out
}
