// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/maauso/framecut/internal/video"
	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrInvalidPreviewSize is returned when the preview dimensions are not positive.
	ErrInvalidPreviewSize = errors.New("config: PREVIEW_WIDTH and PREVIEW_HEIGHT must be positive")
	// ErrInvalidPlaybackFPS is returned when PLAYBACK_FPS is not positive.
	ErrInvalidPlaybackFPS = errors.New("config: PLAYBACK_FPS must be positive")
	// ErrUnknownCodec is returned when EXPORT_CODEC names no supported codec.
	ErrUnknownCodec = errors.New("config: EXPORT_CODEC is not supported")
	// ErrInvalidFrameDuration is returned when GIF_FRAME_DURATION_MS is not positive.
	ErrInvalidFrameDuration = errors.New("config: GIF_FRAME_DURATION_MS must be positive")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Playback settings
	CameraDevice  int `env:"CAMERA_DEVICE, default=0" json:"camera_device"`
	PreviewWidth  int `env:"PREVIEW_WIDTH, default=640" json:"preview_width"`
	PreviewHeight int `env:"PREVIEW_HEIGHT, default=480" json:"preview_height"`
	PlaybackFPS   int `env:"PLAYBACK_FPS, default=30" json:"playback_fps"`

	// Export settings
	ExportCodec        string   `env:"EXPORT_CODEC, default=mpeg4" json:"export_codec"`
	ImageExtension     string   `env:"IMAGE_EXTENSION, default=.jpg" json:"image_extension"`
	GIFExtensions      []string `env:"GIF_EXTENSIONS, default=.jpg" json:"gif_extensions"`
	GIFFrameDurationMs int      `env:"GIF_FRAME_DURATION_MS, default=100" json:"gif_frame_duration_ms"`

	// Storage settings
	ArtifactsDir string `env:"ARTIFACTS_DIR, default=/tmp/framecut" json:"artifacts_dir"`
	JobDBPath    string `env:"JOB_DB_PATH" json:"job_db_path,omitempty"` // Empty keeps jobs in memory

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
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

// GIFFrameDuration returns the GIF frame display time.
func (c *Config) GIFFrameDuration() time.Duration {
	return time.Duration(c.GIFFrameDurationMs) * time.Millisecond
}

// Load reads configuration from environment variables using go-envconfig
// and validates it.
func Load() (*Config, error) {
	return LoadFrom(context.Background(), envconfig.OsLookuper())
}

// LoadFrom reads configuration through lookuper.
func LoadFrom(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.PreviewWidth <= 0 || c.PreviewHeight <= 0 {
		return ErrInvalidPreviewSize
	}
	if c.PlaybackFPS <= 0 {
		return ErrInvalidPlaybackFPS
	}
	if _, err := video.FourCC(c.ExportCodec); err != nil {
		return fmt.Errorf("%w: %w", ErrUnknownCodec, err)
	}
	if c.GIFFrameDurationMs <= 0 {
		return ErrInvalidFrameDuration
	}
	return nil
}

// NewLogger creates a structured logger writing to stdout.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	return c.NewLoggerTo(os.Stdout)
}

// NewLoggerTo creates a structured logger writing to w.
func (c *Config) NewLoggerTo(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.LogLevel)}

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, CameraDevice: %d, Preview: %dx%d, PlaybackFPS: %d, ExportCodec: %s, ImageExtension: %s, GIFExtensions: %v, GIFFrameDurationMs: %d, ArtifactsDir: %s, JobDBPath: %s, S3Bucket: %s, S3Region: %s, S3Endpoint: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.CameraDevice,
		c.PreviewWidth,
		c.PreviewHeight,
		c.PlaybackFPS,
		c.ExportCodec,
		c.ImageExtension,
		c.GIFExtensions,
		c.GIFFrameDurationMs,
		c.ArtifactsDir,
		c.JobDBPath,
		c.S3Bucket,
		c.S3Region,
		c.S3Endpoint,
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
