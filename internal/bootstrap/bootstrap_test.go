package bootstrap

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/maauso/framecut/internal/config"
	"github.com/maauso/framecut/internal/export"
	"github.com/maauso/framecut/internal/job"
	"github.com/maauso/framecut/internal/playback"
	"github.com/maauso/framecut/internal/segment"
	"github.com/maauso/framecut/internal/storage"
	"github.com/maauso/framecut/internal/video/videotest"
	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"ARTIFACTS_DIR": t.TempDir(),
	}))
	require.NoError(t, err)
	return cfg
}

func TestNewDependencies_MemoryAndLocal(t *testing.T) {
	cfg := testConfig(t)

	deps, err := NewDependencies(cfg, videotest.NewBackend(), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close() })

	assert.IsType(t, &storage.LocalStorage{}, deps.Storage)
	assert.Equal(t, "mpeg4", deps.Exporter.Codec())
	assert.NotNil(t, deps.Exports)
}

func TestNewDependencies_SQLiteStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.JobDBPath = filepath.Join(t.TempDir(), "jobs", "framecut.db")

	backend := videotest.NewBackend()
	backend.AddFile("clip.mp4", 20, 10, 8, 6)

	deps, err := NewDependencies(cfg, backend, testLogger())
	require.NoError(t, err)

	submitted, err := deps.Exports.Submit(context.Background(), job.Input{
		Kind:       export.KindVideo,
		SourcePath: "clip.mp4",
		Segment:    segment.Segment{TotalFrames: 20, Start: 0, End: 9},
		OutputPath: filepath.Join(t.TempDir(), "clip.avi"),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done, err := deps.Exports.Wait(ctx, submitted.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, done.Status)

	require.NoError(t, deps.Exports.Shutdown(context.Background()))
	require.NoError(t, deps.Close())
	assert.FileExists(t, cfg.JobDBPath)

	// The job survives a restart.
	deps, err = NewDependencies(cfg, backend, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close() })
	reloaded, err := deps.Exports.Get(context.Background(), submitted.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, reloaded.Status)
}

func TestNewPlayer_WithoutCamera(t *testing.T) {
	cfg := testConfig(t)
	backend := videotest.NewBackend()
	backend.CameraAvailable = false
	backend.AddFile("clip.mp4", 20, 10, 8, 6)

	player, closePlayer := NewPlayer(cfg, backend, testLogger())
	t.Cleanup(func() { _ = closePlayer() })

	assert.True(t, player.Clock.Playing())
	assert.Equal(t, playback.SourceCamera, player.Switcher.Active())
	require.NoError(t, player.Switcher.LoadFile("clip.mp4"))
	assert.Equal(t, 20, player.Model.Snapshot().TotalFrames)
	assert.Equal(t, 33*time.Millisecond, player.Clock.Interval())
}

func TestNewPlayer_PreviewPlaysFromLaunch(t *testing.T) {
	player, closePlayer := NewPlayer(testConfig(t), videotest.NewBackend(), testLogger())

	require.True(t, player.Clock.Playing())
	assert.Eventually(t, func() bool {
		_, shown := player.Preview.Latest()
		return shown > 0
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, closePlayer())
	assert.False(t, player.Clock.Playing())
}

func TestNewPlayer_LogsRangeChanges(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	backend := videotest.NewBackend()
	backend.AddFile("clip.mp4", 100, 25, 8, 6)

	player, closePlayer := NewPlayer(testConfig(t), backend, logger)
	require.NoError(t, player.Switcher.LoadFile("clip.mp4"))
	require.Equal(t, segment.DragEnd, player.Model.BeginDrag(99, 100))
	player.Model.UpdateDrag(40, 100)
	player.Model.EndDrag()
	require.NoError(t, closePlayer())

	out := buf.String()
	assert.Contains(t, out, "segment range changed")
	assert.Contains(t, out, "start_frame=0 end_frame=40")
}

func TestLogEvents_StopsOnCancel(t *testing.T) {
	deps, err := NewDependencies(testConfig(t), videotest.NewBackend(), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		deps.LogEvents(ctx, testLogger())
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("LogEvents did not return after cancel")
	}
}
