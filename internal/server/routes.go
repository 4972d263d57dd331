package server

import (
	"log/slog"
	"net/http"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)

	// Auth
	mux.HandleFunc("POST /auth/register", h.Register)
	mux.HandleFunc("POST /auth/login", h.Login)
	mux.HandleFunc("POST /auth/logout", h.Logout)
	mux.HandleFunc("DELETE /auth/withdraw", h.Withdraw)
	mux.HandleFunc("GET /auth/me", h.Me)

	// Credit ledger
	mux.HandleFunc("POST /credit/add", h.CreditAdd)
	mux.HandleFunc("POST /credit/use", h.CreditUse)

	// Video registry
	mux.HandleFunc("POST /video/upload/file", h.VideoUploadFile)
	mux.HandleFunc("POST /video/upload/youtube", h.VideoUploadYouTube)
	mux.HandleFunc("GET /video/upload/presign", h.VideoPresign)
	mux.HandleFunc("POST /video/upload/done", h.VideoUploadDone)
	mux.HandleFunc("GET /video/my", h.VideoMy)
	mux.HandleFunc("GET /video/{id}/detail", h.VideoDetail)
	mux.HandleFunc("GET /video/download", h.VideoDownload)
	mux.HandleFunc("PATCH /video/rename", h.VideoRename)
	mux.HandleFunc("DELETE /video/{id}/delete", h.VideoDelete)
	mux.HandleFunc("GET /videos/recent", h.VideosRecent)

	// Jobs
	mux.HandleFunc("POST /runpod/summarize", h.Summarize)
	mux.HandleFunc("GET /runpod/job/my", h.JobMy)
	mux.HandleFunc("GET /runpod/job/{id}/status", h.JobStatus)
	mux.HandleFunc("PATCH /runpod/job/public", h.JobPublic)
	mux.HandleFunc("DELETE /runpod/job/{id}", h.JobDelete)

	// Worker callback
	mux.HandleFunc("POST /runpod/webhook/{job_id}", h.Webhook)

	// Apply middleware chain
	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
