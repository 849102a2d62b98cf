package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/maauso/framecut/internal/segment"
	"github.com/maauso/framecut/internal/video"
)

// DefaultImageExtension is the extension of exported stills.
const DefaultImageExtension = ".jpg"

// ProgressFunc is called after each written frame.
type ProgressFunc func(written, requested int)

// ImageRequest exports a segment as numbered stills into Dir.
type ImageRequest struct {
	SourcePath string
	Segment    segment.Segment
	Dir        string
	// Discard removes the stills written so far when the export is cancelled.
	Discard  bool
	Progress ProgressFunc
}

// VideoRequest re-encodes a segment into OutputPath.
type VideoRequest struct {
	SourcePath string
	Segment    segment.Segment
	OutputPath string
	// Discard removes the partial clip when the export is cancelled.
	Discard  bool
	Progress ProgressFunc
}

// Exporter runs the export pipelines. Every export opens its own decoder, so
// exports never disturb the playback cursor.
type Exporter struct {
	backend       video.Backend
	codec         string
	imageExt      string
	gifExtensions []string
	readStill     StillReader
	openAnimation AnimationOpener
	logger        *slog.Logger
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithCodec sets the clip codec.
func WithCodec(codec string) Option {
	return func(e *Exporter) { e.codec = codec }
}

// WithImageExtension sets the extension of exported stills.
func WithImageExtension(ext string) Option {
	return func(e *Exporter) { e.imageExt = normalizeExt(ext) }
}

// WithGIFExtensions sets the still extensions collected by AssembleGIF.
func WithGIFExtensions(exts ...string) Option {
	return func(e *Exporter) {
		e.gifExtensions = e.gifExtensions[:0]
		for _, ext := range exts {
			if ext = normalizeExt(ext); ext != "" {
				e.gifExtensions = append(e.gifExtensions, ext)
			}
		}
	}
}

// WithStillReader replaces the still decoder used by AssembleGIF.
func WithStillReader(r StillReader) Option {
	return func(e *Exporter) { e.readStill = r }
}

// WithAnimationOpener replaces the animated image writer used by AssembleGIF.
func WithAnimationOpener(o AnimationOpener) Option {
	return func(e *Exporter) { e.openAnimation = o }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Exporter) { e.logger = l }
}

// NewExporter creates an Exporter with the mpeg4 codec, ".jpg" stills and
// the default GIF reader and writer.
func NewExporter(backend video.Backend, opts ...Option) *Exporter {
	e := &Exporter{
		backend:       backend,
		codec:         "mpeg4",
		imageExt:      DefaultImageExtension,
		gifExtensions: []string{DefaultImageExtension},
		readStill:     ReadStill,
		openAnimation: OpenGIF,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if len(e.gifExtensions) == 0 {
		e.gifExtensions = []string{DefaultImageExtension}
	}
	return e
}

// Codec returns the clip codec.
func (e *Exporter) Codec() string {
	return e.codec
}

// FrameFileName returns the still name for frame index i.
func (e *Exporter) FrameFileName(i int) string {
	return fmt.Sprintf("frame_%05d%s", i, e.imageExt)
}

// ExportImages writes frames Start..End of the segment as numbered stills. A
// read failure ends the export early without an error; the result reports
// the shortfall.
func (e *Exporter) ExportImages(ctx context.Context, req ImageRequest) (Result, error) {
	res := Result{Kind: KindImages, Requested: req.Segment.Len(), Output: req.Dir}
	if err := checkInput(req.SourcePath, req.Segment); err != nil {
		return res, err
	}
	if req.Dir == "" {
		return res, fmt.Errorf("%w: output directory is required", ErrNoInput)
	}

	capture, err := e.backend.OpenFile(req.SourcePath)
	if err != nil {
		return res, err
	}
	defer func() { _ = capture.Close() }()

	if err := os.MkdirAll(req.Dir, 0o755); err != nil {
		return res, fmt.Errorf("%w: %w", video.ErrWrite, err)
	}
	res.Started = true

	logger := e.logger.With(
		slog.String("kind", string(KindImages)),
		slog.String("source", req.SourcePath),
		slog.String("dir", req.Dir),
	)
	logger.Info("export started",
		slog.Int("start_frame", req.Segment.Start),
		slog.Int("end_frame", req.Segment.End),
	)

	video.Seek(capture, req.Segment.Start)
	for index := req.Segment.Start; index <= req.Segment.End; index++ {
		if err := ctx.Err(); err != nil {
			if req.Discard {
				removeAll(logger, res.Files)
				res.Files = nil
			}
			logger.Info("export cancelled", slog.Int("written", res.Written))
			return res, err
		}

		frame, err := capture.Read()
		if err != nil {
			logger.Warn("source exhausted", slog.Int("frame", index))
			break
		}
		path := filepath.Join(req.Dir, e.FrameFileName(index))
		err = e.backend.WriteImage(path, frame)
		_ = frame.Close()
		if err != nil {
			logger.Error("failed to write frame", slog.String("path", path), slog.String("error", err.Error()))
			res.recordFailure(ctx, err)
			return res, err
		}

		res.Files = append(res.Files, path)
		res.Written++
		if req.Progress != nil {
			req.Progress(res.Written, res.Requested)
		}
	}

	logger.Info("export finished", slog.String("result", res.String()))
	return res, nil
}

// ExportVideo re-encodes frames Start..End of the segment into a clip that
// inherits the source width, height and frame rate.
func (e *Exporter) ExportVideo(ctx context.Context, req VideoRequest) (res Result, err error) {
	res = Result{Kind: KindVideo, Requested: req.Segment.Len(), Output: req.OutputPath}
	if err := checkInput(req.SourcePath, req.Segment); err != nil {
		return res, err
	}
	if req.OutputPath == "" {
		return res, fmt.Errorf("%w: output path is required", ErrNoInput)
	}

	capture, err := e.backend.OpenFile(req.SourcePath)
	if err != nil {
		return res, err
	}
	defer func() { _ = capture.Close() }()

	video.Seek(capture, req.Segment.Start)
	params := video.EncoderParams{
		Path:   req.OutputPath,
		Codec:  e.codec,
		FPS:    capture.Get(video.FPS),
		Width:  int(capture.Get(video.Width)),
		Height: int(capture.Get(video.Height)),
	}
	if dir := filepath.Dir(req.OutputPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return res, fmt.Errorf("%w: %w", video.ErrWrite, err)
		}
	}
	encoder, err := e.backend.OpenEncoder(params)
	if err != nil {
		return res, err
	}
	res.Started = true

	logger := e.logger.With(
		slog.String("kind", string(KindVideo)),
		slog.String("source", req.SourcePath),
		slog.String("output", req.OutputPath),
	)
	logger.Info("export started",
		slog.Int("start_frame", req.Segment.Start),
		slog.Int("end_frame", req.Segment.End),
		slog.String("codec", e.codec),
		slog.Float64("fps", params.FPS),
		slog.Int("width", params.Width),
		slog.Int("height", params.Height),
	)

	defer func() {
		if cerr := encoder.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: %w", video.ErrWrite, cerr)
			logger.Error("failed to finalise clip", slog.String("error", cerr.Error()))
		}
		res.recordFailure(ctx, err)
		if req.Discard && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			removeAll(logger, []string{req.OutputPath})
		}
	}()

	for index := req.Segment.Start; index <= req.Segment.End; index++ {
		if err := ctx.Err(); err != nil {
			logger.Info("export cancelled", slog.Int("written", res.Written))
			return res, err
		}

		frame, err := capture.Read()
		if err != nil {
			logger.Warn("source exhausted", slog.Int("frame", index))
			break
		}
		err = encoder.Write(frame)
		_ = frame.Close()
		if err != nil {
			logger.Error("failed to encode frame", slog.Int("frame", index), slog.String("error", err.Error()))
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

func checkInput(source string, seg segment.Segment) error {
	if source == "" {
		return fmt.Errorf("%w: no source loaded", ErrNoInput)
	}
	if err := seg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrNoInput, err)
	}
	return nil
}

func normalizeExt(ext string) string {
	ext = strings.TrimSpace(strings.ToLower(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func removeAll(logger *slog.Logger, paths []string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("failed to discard partial output", slog.String("path", p), slog.String("error", err.Error()))
		}
	}
}
