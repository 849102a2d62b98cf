package export

import (
	"context"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/maauso/framecut/internal/video"
)

// DefaultFrameDuration is the display time of each GIF frame.
const DefaultFrameDuration = 100 * time.Millisecond

// StillReader decodes a still image.
type StillReader func(path string) (image.Image, error)

// AnimationWriter accumulates frames of an animated image.
type AnimationWriter interface {
	Append(img image.Image) error
	Close() error
}

// AnimationOpener opens an AnimationWriter at path.
type AnimationOpener func(path string, frameDuration time.Duration) (AnimationWriter, error)

// GIFRequest assembles the stills in SourceDir into OutputPath.
type GIFRequest struct {
	SourceDir     string
	OutputPath    string
	FrameDuration time.Duration
	Progress      ProgressFunc
}

// ReadStill decodes path with imaging.
func ReadStill(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", video.ErrRead, err)
	}
	return img, nil
}

// CollectStills lists the files in dir whose extension is one of exts, sorted
// by name.
func CollectStills(dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoInput, err)
	}
	var stills []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if slices.Contains(exts, strings.ToLower(filepath.Ext(entry.Name()))) {
			stills = append(stills, entry.Name())
		}
	}
	slices.Sort(stills)
	for i, name := range stills {
		stills[i] = filepath.Join(dir, name)
	}
	return stills, nil
}

// AssembleGIF appends every matching still in SourceDir, in filename order, to
// an animation at OutputPath. An empty directory fails with ErrNoFrames before
// the output is created. A still that cannot be decoded ends the assembly and
// the frames appended so far are kept.
func (e *Exporter) AssembleGIF(ctx context.Context, req GIFRequest) (res Result, err error) {
	res = Result{Kind: KindGIF, Output: req.OutputPath}
	if req.SourceDir == "" || req.OutputPath == "" {
		return res, fmt.Errorf("%w: source directory and output path are required", ErrNoInput)
	}

	stills, err := CollectStills(req.SourceDir, e.gifExtensions)
	if err != nil {
		return res, err
	}
	if len(stills) == 0 {
		return res, ErrNoFrames
	}
	res.Requested = len(stills)

	duration := req.FrameDuration
	if duration <= 0 {
		duration = DefaultFrameDuration
	}
	writer, err := e.openAnimation(req.OutputPath, duration)
	if err != nil {
		return res, err
	}
	res.Started = true

	logger := e.logger.With(
		slog.String("kind", string(KindGIF)),
		slog.String("dir", req.SourceDir),
		slog.String("output", req.OutputPath),
	)
	logger.Info("export started", slog.Int("stills", len(stills)), slog.Duration("frame_duration", duration))

	defer func() {
		if cerr := writer.Close(); cerr != nil && err == nil {
			err = cerr
			logger.Error("failed to encode animation", slog.String("error", cerr.Error()))
		}
		res.recordFailure(ctx, err)
	}()

	for _, path := range stills {
		if err := ctx.Err(); err != nil {
			logger.Info("export cancelled", slog.Int("written", res.Written))
			return res, err
		}
		img, err := e.readStill(path)
		if err != nil {
			logger.Warn("failed to read still", slog.String("path", path), slog.String("error", err.Error()))
			break
		}
		if err := writer.Append(img); err != nil {
			return res, err
		}
		res.Written++
		if req.Progress != nil {
			req.Progress(res.Written, res.Requested)
		}
	}

	logger.Info("export finished", slog.String("result", res.String()))
	return res, nil
}

type gifWriter struct {
	file  *os.File
	delay int
	size  image.Point
	anim  gif.GIF
}

// OpenGIF creates path and returns a writer that palettises frames with
// Floyd-Steinberg dithering and encodes them on Close. Every frame is scaled
// to the size of the first one. Closing a writer with no frames removes path.
func OpenGIF(path string, frameDuration time.Duration) (AnimationWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", video.ErrWrite, err)
	}
	// GIF delays are in hundredths of a second.
	delay := int(frameDuration / (10 * time.Millisecond))
	if delay < 1 {
		delay = 1
	}
	return &gifWriter{file: f, delay: delay}, nil
}

func (w *gifWriter) Append(img image.Image) error {
	size := img.Bounds().Size()
	if size.X <= 0 || size.Y <= 0 {
		return fmt.Errorf("%w: empty frame", video.ErrWrite)
	}
	if len(w.anim.Image) == 0 {
		w.size = size
	}
	if size != w.size {
		img = imaging.Resize(img, w.size.X, w.size.Y, imaging.Lanczos)
	}
	rect := image.Rectangle{Max: w.size}
	paletted := image.NewPaletted(rect, palette.Plan9)
	draw.FloydSteinberg.Draw(paletted, rect, img, img.Bounds().Min)
	w.anim.Image = append(w.anim.Image, paletted)
	w.anim.Delay = append(w.anim.Delay, w.delay)
	return nil
}

func (w *gifWriter) Close() error {
	if len(w.anim.Image) == 0 {
		_ = w.file.Close()
		if err := os.Remove(w.file.Name()); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("%w: %w", video.ErrWrite, err)
		}
		return nil
	}
	defer func() { _ = w.file.Close() }()
	if err := gif.EncodeAll(w.file, &w.anim); err != nil {
		return fmt.Errorf("%w: %w", video.ErrWrite, err)
	}
	return nil
}
