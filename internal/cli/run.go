package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/maauso/framecut/internal/bootstrap"
	"github.com/maauso/framecut/internal/config"
	"github.com/maauso/framecut/internal/export"
	"github.com/maauso/framecut/internal/job"
	"github.com/maauso/framecut/internal/segment"
	"github.com/maauso/framecut/internal/video"
)

var (
	// ErrExportFailed is returned when the export wrote nothing.
	ErrExportFailed = errors.New("export failed")
	// ErrExportCancelled is returned when the export was interrupted.
	ErrExportCancelled = errors.New("export cancelled")
)

const progressInterval = 250 * time.Millisecond

type segmentExport int

const (
	exportImages segmentExport = iota
	exportVideo
)

func runSegmentExport(cmd *cobra.Command, backend video.Backend, kind segmentExport, input string) error {
	start, _ := cmd.Flags().GetInt("start")
	end, _ := cmd.Flags().GetInt("end")
	out, _ := cmd.Flags().GetString("out")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	seg, err := probeSegment(backend, input, start, end)
	if err != nil {
		return err
	}

	in := job.Input{
		SourcePath: input,
		Segment:    seg,
		OutputPath: out,
	}
	switch kind {
	case exportImages:
		in.Kind = export.KindImages
	case exportVideo:
		in.Kind = export.KindVideo
		if in.OutputPath == "" {
			in.OutputPath = defaultClipPath(input, cfg.ExportCodec)
		}
	}
	return submitAndFollow(cmd, cfg, backend, in)
}

func runGIFExport(cmd *cobra.Command, backend video.Backend, dir string) error {
	out, _ := cmd.Flags().GetString("out")
	frameMs, _ := cmd.Flags().GetInt("frame-ms")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	in := job.Input{
		Kind:          export.KindGIF,
		SourceDir:     dir,
		OutputPath:    out,
		FrameDuration: cfg.GIFFrameDuration(),
	}
	if frameMs > 0 {
		in.FrameDuration = time.Duration(frameMs) * time.Millisecond
	}
	return submitAndFollow(cmd, cfg, backend, in)
}

// probeSegment opens input to learn its frame count and resolves the
// requested range against it. A negative end selects the last frame.
func probeSegment(backend video.Backend, input string, start, end int) (segment.Segment, error) {
	capture, err := backend.OpenFile(input)
	if err != nil {
		return segment.Segment{}, err
	}
	total := int(capture.Get(video.FrameCount))
	_ = capture.Close()

	if end < 0 {
		end = total - 1
	}
	seg := segment.Segment{TotalFrames: total, Start: start, End: end}
	if err := seg.Validate(); err != nil {
		return segment.Segment{}, fmt.Errorf("%w: %w", export.ErrNoInput, err)
	}
	return seg, nil
}

func defaultClipPath(input, codec string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(filepath.Dir(input), base+"_cut"+video.FileExtension(codec))
}

func submitAndFollow(cmd *cobra.Command, cfg *config.Config, backend video.Backend, in job.Input) error {
	in.Discard, _ = cmd.Flags().GetBool("discard")
	in.Publish, _ = cmd.Flags().GetBool("publish")

	logger := cfg.NewLoggerTo(cmd.ErrOrStderr())
	deps, err := bootstrap.NewDependencies(cfg, backend, logger)
	if err != nil {
		return err
	}
	defer func() { _ = deps.Close() }()
	defer func() { _ = deps.Exports.Shutdown(context.Background()) }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	submitted, err := deps.Exports.Submit(ctx, in)
	if err != nil {
		return err
	}

	final, err := follow(ctx, deps.Exports, submitted.ID, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s %s: %s\n", final.Kind, final.ID, final.Summary())
	fmt.Fprintln(w, final.OutputPath)
	if final.ArtifactURL != "" {
		fmt.Fprintln(w, final.ArtifactURL)
	}
	if final.Error != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", final.Error)
	}

	switch final.Status {
	case job.StatusFailed:
		return fmt.Errorf("%w: %s", ErrExportFailed, final.Error)
	case job.StatusCancelled:
		return ErrExportCancelled
	}
	return nil
}

// follow reports progress until the job finishes. Cancelling ctx cancels the
// job and still waits for its final state.
func follow(ctx context.Context, svc *job.ExportService, id string, progress io.Writer) (*job.Job, error) {
	type outcome struct {
		job *job.Job
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		j, err := svc.Wait(context.WithoutCancel(ctx), id)
		done <- outcome{j, err}
	}()

	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	last := -1
	for {
		select {
		case o := <-done:
			if last >= 0 {
				fmt.Fprintln(progress)
			}
			return o.job, o.err
		case <-ctx.Done():
			if err := svc.Cancel(context.WithoutCancel(ctx), id); err != nil && !errors.Is(err, job.ErrNotRunning) {
				return nil, err
			}
			ctx = context.WithoutCancel(ctx)
		case <-ticker.C:
			j, err := svc.Get(ctx, id)
			if err != nil {
				continue
			}
			if j.Progress != last {
				last = j.Progress
				fmt.Fprintf(progress, "\r%s %d%% (%d/%d)", j.Kind, j.Progress, j.Written, j.Requested)
			}
		}
	}
}
