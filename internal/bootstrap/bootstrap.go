// Package bootstrap wires together all application components.
package bootstrap

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mediaremix/studio-api/internal/config"
	"github.com/mediaremix/studio-api/internal/gemini"
	"github.com/mediaremix/studio-api/internal/generate"
	"github.com/mediaremix/studio-api/internal/job"
	"github.com/mediaremix/studio-api/internal/media"
	"github.com/mediaremix/studio-api/internal/server"
	"github.com/mediaremix/studio-api/internal/storage"
)

// App holds the wired application components.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Handler http.Handler
	Jobs    *job.Service
}

// New builds the full dependency graph from configuration: storage,
// provider client, media tooling, generation and job services, and the
// HTTP handler.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	store, err := newStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	client, err := gemini.NewClient(gemini.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	processor := media.NewFFmpegProcessor(cfg.FFmpegPath)

	gen := generate.NewService(client, processor, store, logger,
		generate.WithModels(cfg.ImageModel, cfg.VideoModel, cfg.SpeechModel),
		generate.WithVoice(cfg.SpeechVoice),
		generate.WithPollIntervals(cfg.VideoPollInterval, cfg.RemixPollInterval),
		generate.WithPollTimeout(cfg.PollTimeout),
	)

	jobs := job.NewService(job.NewMemoryRepository(), gen, store, logger)

	handlers := server.NewHandlers(gen, jobs, store, logger)
	handler := server.NewRouter(handlers, logger)

	return &App{
		Config:  cfg,
		Logger:  logger,
		Handler: handler,
		Jobs:    jobs,
	}, nil
}

func newStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		logger.Info("using S3 storage", "bucket", cfg.S3Bucket, "region", cfg.S3Region)
		store, err := storage.NewS3Storage(cfg.WorkDir, storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		return store, nil
	}

	logger.Info("using local storage", "work_dir", cfg.WorkDir)
	store, err := storage.NewLocalStorage(cfg.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	return store, nil
}
