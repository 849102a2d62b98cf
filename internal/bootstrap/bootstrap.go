// Package bootstrap provides dependency initialization for framecut.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maauso/framecut/internal/config"
	"github.com/maauso/framecut/internal/export"
	"github.com/maauso/framecut/internal/job"
	"github.com/maauso/framecut/internal/playback"
	"github.com/maauso/framecut/internal/segment"
	"github.com/maauso/framecut/internal/server"
	"github.com/maauso/framecut/internal/storage"
	"github.com/maauso/framecut/internal/video"
)

// Dependencies holds the export pipeline shared by the server and the CLI.
type Dependencies struct {
	Exporter *export.Exporter
	Exports  *job.ExportService
	Storage  storage.Storage

	closers []func() error
}

// NewDependencies creates and initializes the export dependencies.
func NewDependencies(cfg *config.Config, backend video.Backend, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{}

	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}
	deps.Storage = store

	repo, err := initRepository(cfg, logger)
	if err != nil {
		return nil, err
	}
	if closer, ok := repo.(interface{ Close() error }); ok {
		deps.closers = append(deps.closers, closer.Close)
	}

	deps.Exporter = export.NewExporter(backend,
		export.WithCodec(cfg.ExportCodec),
		export.WithImageExtension(cfg.ImageExtension),
		export.WithGIFExtensions(cfg.GIFExtensions...),
		export.WithLogger(logger),
	)
	deps.Exports = job.NewExportService(repo, deps.Exporter, logger, job.WithPublisher(store), job.WithCleaner(store))

	return deps, nil
}

// NewPlayer creates the live preview components and starts playback. A camera
// that cannot be opened is tolerated; file playback still works. The returned
// function stops playback and releases the capture devices.
func NewPlayer(cfg *config.Config, backend video.Backend, logger *slog.Logger) (server.Player, func() error) {
	model := segment.NewModel()
	unsubscribe := model.Subscribe(func(start, end int) {
		logger.Debug("segment range changed", slog.Int("start_frame", start), slog.Int("end_frame", end))
	})
	// Camera errors are logged by the switcher.
	switcher, _ := playback.NewSwitcher(backend, model, playback.SwitcherConfig{
		CameraDevice:  cfg.CameraDevice,
		PreviewWidth:  cfg.PreviewWidth,
		PreviewHeight: cfg.PreviewHeight,
	}, logger)

	preview := playback.NewPreviewBuffer()
	clock := playback.NewClock(switcher, preview, cfg.PlaybackFPS, logger)
	player := server.Player{
		Model:    model,
		Switcher: switcher,
		Clock:    clock,
		Preview:  preview,
	}
	clock.Play(context.Background())
	return player, func() error {
		clock.Pause()
		unsubscribe()
		return switcher.Close()
	}
}

// LogEvents logs export completion events until ctx is done.
func (d *Dependencies) LogEvents(ctx context.Context, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-d.Exports.Events():
			attrs := []any{
				slog.String("job_id", ev.JobID),
				slog.String("kind", string(ev.Kind)),
				slog.String("status", string(ev.Status)),
			}
			if ev.Err != nil {
				attrs = append(attrs, slog.String("error", ev.Err.Error()))
			}
			logger.Info(ev.Message, attrs...)
		}
	}
}

// Close releases the job store.
func (d *Dependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = append(errs, d.closers[i]())
	}
	return errors.Join(errs...)
}

// initRepository opens the SQLite job store when JOB_DB_PATH is set.
func initRepository(cfg *config.Config, logger *slog.Logger) (job.Repository, error) {
	if cfg.JobDBPath == "" {
		logger.Info("job store configured", slog.String("backend", "memory"))
		return job.NewMemoryRepository(), nil
	}
	repo, err := job.OpenSQLiteRepository(cfg.JobDBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}
	logger.Info("job store configured",
		slog.String("backend", "sqlite"),
		slog.String("path", cfg.JobDBPath),
	)
	return repo, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.ArtifactsDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.ArtifactsDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("artifacts_dir", localStore.Dir()),
	)
	return localStore, nil
}
