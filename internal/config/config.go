// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// ErrGeminiAPIKeyRequired is returned when GEMINI_API_KEY is not set.
// The API key is the one required external credential; starting without
// it is a fatal condition.
var ErrGeminiAPIKeyRequired = errors.New("config: GEMINI_API_KEY is required")

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Gemini settings
	GeminiAPIKey string `env:"GEMINI_API_KEY, required" json:"-"` // Masked in JSON
	ImageModel   string `env:"IMAGE_MODEL, default=gemini-2.5-flash-image" json:"image_model"`
	VideoModel   string `env:"VIDEO_MODEL, default=veo-3.0-generate-001" json:"video_model"`
	SpeechModel  string `env:"SPEECH_MODEL, default=gemini-2.5-flash-preview-tts" json:"speech_model"`
	SpeechVoice  string `env:"SPEECH_VOICE, default=Kore" json:"speech_voice"`

	// Polling settings. Remix jobs poll faster because they are expected
	// to finish sooner.
	VideoPollInterval time.Duration `env:"VIDEO_POLL_INTERVAL, default=10s" json:"video_poll_interval"`
	RemixPollInterval time.Duration `env:"REMIX_POLL_INTERVAL, default=5s" json:"remix_poll_interval"`
	PollTimeout       time.Duration `env:"POLL_TIMEOUT, default=10m" json:"poll_timeout"`

	// Storage settings
	WorkDir string `env:"WORK_DIR, default=/tmp/remixstudio" json:"work_dir"`

	// Media tooling
	FFmpegPath string `env:"FFMPEG_PATH" json:"ffmpeg_path,omitempty"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if required variables are not set.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		if strings.Contains(err.Error(), "GEMINI_API_KEY") {
			return nil, ErrGeminiAPIKeyRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	// An empty value satisfies envconfig's required check but is still
	// unusable.
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return ErrGeminiAPIKeyRequired
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, ImageModel: %s, VideoModel: %s, SpeechModel: %s, SpeechVoice: %s, VideoPollInterval: %s, RemixPollInterval: %s, PollTimeout: %s, WorkDir: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.ImageModel,
		c.VideoModel,
		c.SpeechModel,
		c.SpeechVoice,
		c.VideoPollInterval,
		c.RemixPollInterval,
		c.PollTimeout,
		c.WorkDir,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
