// Package playback drives the live preview: it switches between the camera and
// an opened video file, loops file playback inside the selected segment and
// feeds frames to a sink on a fixed tick.
package playback

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/maauso/framecut/internal/segment"
	"github.com/maauso/framecut/internal/video"
)

// ErrNoSource is returned when an operation needs a loaded file source.
var ErrNoSource = errors.New("playback: no video file loaded")

// Source identifies the active frame source.
type Source int

const (
	// SourceCamera is the live camera, mirrored for display.
	SourceCamera Source = iota
	// SourceFile is the loaded video file, looped inside the segment.
	SourceFile
)

// String returns "camera" or "file".
func (s Source) String() string {
	if s == SourceFile {
		return "file"
	}
	return "camera"
}

// SwitcherConfig configures a Switcher.
type SwitcherConfig struct {
	CameraDevice  int
	PreviewWidth  int
	PreviewHeight int
}

// Switcher owns the camera and file captures and the active-source flag.
type Switcher struct {
	mu       sync.Mutex
	backend  video.Backend
	segment  *segment.Model
	cfg      SwitcherConfig
	logger   *slog.Logger
	camera   video.Capture
	file     video.Capture
	filePath string
	fps      float64
	active   Source
}

// NewSwitcher creates a Switcher with the camera active. A camera that fails to
// open is logged and returned as an error alongside a usable Switcher: file
// playback still works without it.
func NewSwitcher(backend video.Backend, model *segment.Model, cfg SwitcherConfig, logger *slog.Logger) (*Switcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Switcher{
		backend: backend,
		segment: model,
		cfg:     cfg,
		logger:  logger,
		active:  SourceCamera,
	}

	camera, err := backend.OpenCamera(cfg.CameraDevice, cfg.PreviewWidth, cfg.PreviewHeight)
	if err != nil {
		logger.Warn("camera unavailable",
			slog.Int("device", cfg.CameraDevice),
			slog.String("error", err.Error()),
		)
		return s, err
	}
	s.camera = camera
	return s, nil
}

// LoadFile opens path as the file source, resets the segment to its full
// length and makes it active. On failure nothing changes.
func (s *Switcher) LoadFile(path string) error {
	capture, err := s.backend.OpenFile(path)
	if err != nil {
		s.logger.Warn("failed to load video",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		if !errors.Is(err, video.ErrSourceOpen) {
			err = fmt.Errorf("%w: %w", video.ErrSourceOpen, err)
		}
		return err
	}

	total := int(capture.Get(video.FrameCount))
	fps := capture.Get(video.FPS)

	s.mu.Lock()
	previous := s.file
	s.file = capture
	s.filePath = path
	s.fps = fps
	s.active = SourceFile
	s.segment.SetRange(total)
	s.mu.Unlock()

	if previous != nil {
		_ = previous.Close()
	}

	s.logger.Info("video loaded",
		slog.String("path", path),
		slog.Int("total_frames", total),
		slog.Float64("fps", fps),
	)
	return nil
}

// LoadDropped loads the first of the dropped paths.
func (s *Switcher) LoadDropped(paths []string) error {
	if len(paths) == 0 {
		return ErrNoSource
	}
	return s.LoadFile(paths[0])
}

// Toggle flips between camera and file. The file capture stays open while the
// camera is shown, so switching back resumes where playback left off.
func (s *Switcher) Toggle() (Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == SourceCamera {
		if s.file == nil {
			return s.active, ErrNoSource
		}
		s.active = SourceFile
	} else {
		s.active = SourceCamera
	}
	return s.active, nil
}

// Active returns the active source.
func (s *Switcher) Active() Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// FilePath returns the path of the loaded file, or "" when none is loaded.
func (s *Switcher) FilePath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filePath
}

// Snapshot returns the loaded file path together with the selected range.
// LoadFile swaps both under the same lock, so the pair always belongs to one
// source.
func (s *Switcher) Snapshot() (path string, seg segment.Segment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filePath, s.segment.Snapshot()
}

// FPS returns the frame rate of the loaded file, or 0.
func (s *Switcher) FPS() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fps
}

// NextFrame decodes the frame to display for this tick. ok is false when the
// read failed; the caller keeps showing the previous frame.
func (s *Switcher) NextFrame() (img image.Image, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == SourceCamera {
		return s.nextCameraFrame()
	}
	return s.nextFileFrame()
}

func (s *Switcher) nextCameraFrame() (image.Image, bool) {
	if s.camera == nil {
		return nil, false
	}
	img, ok := readImage(s.camera)
	if !ok {
		return nil, false
	}
	return imaging.FlipH(img), true
}

func (s *Switcher) nextFileFrame() (image.Image, bool) {
	if s.file == nil {
		return nil, false
	}
	seg := s.segment.Snapshot()
	// The position check precedes the read, so the frame shown after a wrap
	// is seg.Start itself.
	if pos := int(s.file.Get(video.Position)); pos > seg.End {
		video.Seek(s.file, seg.Start)
	}
	img, ok := readImage(s.file)
	if !ok {
		return nil, false
	}
	if s.cfg.PreviewWidth > 0 && s.cfg.PreviewHeight > 0 {
		img = imaging.Resize(img, s.cfg.PreviewWidth, s.cfg.PreviewHeight, imaging.Box)
	}
	return img, true
}

func readImage(c video.Capture) (image.Image, bool) {
	frame, err := c.Read()
	if err != nil {
		return nil, false
	}
	defer func() { _ = frame.Close() }()
	img, err := frame.ToImage()
	if err != nil {
		return nil, false
	}
	return img, true
}

// Close releases both captures.
func (s *Switcher) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	if s.camera != nil {
		errs = append(errs, s.camera.Close())
		s.camera = nil
	}
	if s.file != nil {
		errs = append(errs, s.file.Close())
		s.file = nil
	}
	return errors.Join(errs...)
}
