// Package bootstrap provides dependency initialization for the EchoClip API.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/echoclip/echoclip-api/internal/config"
	"github.com/echoclip/echoclip-api/internal/job"
	"github.com/echoclip/echoclip-api/internal/runpod"
	"github.com/echoclip/echoclip-api/internal/session"
	"github.com/echoclip/echoclip-api/internal/storage"
	"github.com/echoclip/echoclip-api/internal/user"
	"github.com/echoclip/echoclip-api/internal/video"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Users    user.Repository
	Sessions session.Store
	Videos   *video.Service
	Jobs     *job.Service
	Sweeper  *session.Sweeper

	pool        *pgxpool.Pool
	redisCloser func() error
}

// Close releases pooled connections.
func (d *Dependencies) Close() {
	if d.redisCloser != nil {
		_ = d.redisCloser()
	}
	if d.pool != nil {
		d.pool.Close()
	}
}

// NewDependencies creates and initializes all dependencies for the application.
// Postgres repositories are used when DATABASE_URL is set, Redis sessions when
// REDIS_ADDR is set; everything falls back to in-memory implementations so the
// service runs without external backends in development.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{}

	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	gateway, err := runpod.NewClient(cfg.RunPodURL,
		runpod.WithAPIKey(cfg.RunPodAPIKey),
		runpod.WithTimeout(cfg.SubmitTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("create worker client: %w", err)
	}

	var jobRepo job.Repository
	var videoRepo video.Repository
	if cfg.PostgresEnabled() {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		deps.pool = pool

		deps.Users = user.NewPostgresRepository(pool)
		jobRepo = job.NewPostgresRepository(pool)
		videoRepo = video.NewPostgresRepository(pool)
		logger.Info("postgres repositories configured")
	} else {
		deps.Users = user.NewMemoryRepository()
		jobRepo = job.NewMemoryRepository()
		videoRepo = video.NewMemoryRepository()
		logger.Info("in-memory repositories configured")
	}

	deps.Sessions, err = initSessions(ctx, cfg, deps, logger)
	if err != nil {
		deps.Close()
		return nil, err
	}

	deps.Videos = video.NewService(videoRepo, jobRepo, store, gateway, nil, logger)
	deps.Jobs = job.NewService(jobRepo, deps.Users, deps.Videos, gateway, store, cfg.BackendURL, logger)
	deps.Sweeper = session.NewSweeper(deps.Sessions, cfg.SessionTTL, logger)

	return deps, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.ObjectStorage, error) {
	if cfg.S3Enabled() {
		s3Store, err := storage.NewS3Storage(storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	logger.Info("in-memory storage configured")
	return storage.NewMemoryStorage(), nil
}

// initSessions picks the session store: Redis when configured, else the
// Postgres pool when available, else memory.
func initSessions(ctx context.Context, cfg *config.Config, deps *Dependencies, logger *slog.Logger) (session.Store, error) {
	if cfg.RedisEnabled() {
		redisStore, err := session.NewRedisStore(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		deps.redisCloser = redisStore.Close
		logger.Info("redis session store configured",
			slog.String("addr", cfg.RedisAddr),
		)
		return redisStore, nil
	}
	if deps.pool != nil {
		logger.Info("postgres session store configured")
		return session.NewPostgresStore(deps.pool), nil
	}
	logger.Info("in-memory session store configured")
	return session.NewMemoryStore(), nil
}
