package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/maauso/framecut/internal/export"
	"github.com/maauso/framecut/internal/segment"
)

// Service errors.
var (
	// ErrKindBusy is returned when a job of the same kind is already running.
	ErrKindBusy = errors.New("an export of this kind is already running")
	// ErrNotRunning is returned when cancelling a job that is not running.
	ErrNotRunning = errors.New("job is not running")
	// ErrJobActive is returned when deleting a job that is still running.
	ErrJobActive = errors.New("job is still running")
	// ErrShutdown is returned by Submit once Shutdown has been called.
	ErrShutdown = errors.New("export service is shutting down")
)

// Exporter runs the export pipelines.
type Exporter interface {
	ExportImages(ctx context.Context, req export.ImageRequest) (export.Result, error)
	ExportVideo(ctx context.Context, req export.VideoRequest) (export.Result, error)
	AssembleGIF(ctx context.Context, req export.GIFRequest) (export.Result, error)
}

// Publisher uploads a finished artifact and returns where it can be fetched.
type Publisher interface {
	Publish(ctx context.Context, key, localPath string) (string, error)
}

// Input describes an export to submit.
type Input struct {
	Kind export.Kind
	// SourcePath and Segment are required for image and video exports.
	SourcePath string
	Segment    segment.Segment
	// SourceDir is required for GIF assembly.
	SourceDir string
	// OutputPath is the output directory for image exports and the output
	// file otherwise.
	OutputPath    string
	FrameDuration time.Duration
	Discard       bool
	Publish       bool
}

// Validate checks that in carries what its kind needs.
func (in Input) Validate() error {
	if !in.Kind.Valid() {
		return fmt.Errorf("%w: unknown export kind %q", export.ErrNoInput, in.Kind)
	}
	if in.OutputPath == "" {
		return fmt.Errorf("%w: output path is required", export.ErrNoInput)
	}
	if in.Kind == export.KindGIF {
		if in.SourceDir == "" {
			return fmt.Errorf("%w: source directory is required", export.ErrNoInput)
		}
		return nil
	}
	if in.SourcePath == "" {
		return fmt.Errorf("%w: no source loaded", export.ErrNoInput)
	}
	if err := in.Segment.Validate(); err != nil {
		return fmt.Errorf("%w: %w", export.ErrNoInput, err)
	}
	return nil
}

// Event reports the end of a job.
type Event struct {
	JobID  string
	Kind   export.Kind
	Status Status
	// Message is the user-facing outcome, such as "completed partially (6 of 10 frames)".
	Message string
	Err     error
}

// Cleaner removes output files.
type Cleaner interface {
	Cleanup(ctx context.Context, paths []string) error
}

// ServiceOption configures an ExportService.
type ServiceOption func(*ExportService)

// WithPublisher enables artifact publishing for jobs that request it.
func WithPublisher(p Publisher) ServiceOption {
	return func(s *ExportService) { s.publisher = p }
}

// WithCleaner enables removal of output files by Purge.
func WithCleaner(c Cleaner) ServiceOption {
	return func(s *ExportService) { s.cleaner = c }
}

// WithEventBuffer sets the capacity of the event channel.
func WithEventBuffer(n int) ServiceOption {
	return func(s *ExportService) {
		if n > 0 {
			s.events = make(chan Event, n)
		}
	}
}

type runningJob struct {
	kind   export.Kind
	cancel context.CancelFunc
	done   chan struct{}
}

// ExportService runs each export on its own goroutine. At most one job per
// kind runs at a time; jobs of different kinds run concurrently.
type ExportService struct {
	repo      Repository
	exporter  Exporter
	publisher Publisher
	cleaner   Cleaner
	logger    *slog.Logger
	events    chan Event

	mu      sync.Mutex
	running map[string]*runningJob
	byKind  map[export.Kind]string
	closed  bool
	wg      sync.WaitGroup
}

// NewExportService creates an ExportService.
func NewExportService(repo Repository, exporter Exporter, logger *slog.Logger, opts ...ServiceOption) *ExportService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ExportService{
		repo:     repo,
		exporter: exporter,
		logger:   logger,
		events:   make(chan Event, 64),
		running:  make(map[string]*runningJob),
		byKind:   make(map[export.Kind]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Events delivers one Event per finished job. Events are dropped when the
// channel is full.
func (s *ExportService) Events() <-chan Event {
	return s.events
}

// Submit validates in, persists a queued job and starts it in the background.
// The job keeps running after ctx is done; use Cancel to stop it.
func (s *ExportService) Submit(ctx context.Context, in Input) (*Job, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	job := New(in.Kind)
	job.SourcePath = in.SourcePath
	job.SourceDir = in.SourceDir
	job.OutputPath = in.OutputPath
	job.FrameDuration = in.FrameDuration
	job.Discard = in.Discard
	job.Publish = in.Publish
	if in.Kind != export.KindGIF {
		job.Segment = in.Segment
		job.Requested = in.Segment.Len()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrShutdown
	}
	if busy, ok := s.byKind[in.Kind]; ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrKindBusy, busy)
	}
	if err := s.repo.Save(ctx, job); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	rj := &runningJob{kind: in.Kind, cancel: cancel, done: make(chan struct{})}
	s.running[job.ID] = rj
	s.byKind[in.Kind] = job.ID
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("export job submitted",
		slog.String("job_id", job.ID),
		slog.String("kind", string(in.Kind)),
		slog.Int("start_frame", job.Segment.Start),
		slog.Int("end_frame", job.Segment.End),
	)

	snapshot := job.Clone()
	go s.run(jobCtx, job, rj)
	return snapshot, nil
}

func (s *ExportService) run(ctx context.Context, job *Job, rj *runningJob) {
	defer s.wg.Done()
	defer close(rj.done)
	defer rj.cancel()
	defer func() {
		s.mu.Lock()
		delete(s.running, job.ID)
		if s.byKind[rj.kind] == job.ID {
			delete(s.byKind, rj.kind)
		}
		s.mu.Unlock()
	}()

	logger := s.logger.With(slog.String("job_id", job.ID), slog.String("kind", string(job.Kind)))
	// Bookkeeping writes must land even after the job is cancelled.
	saveCtx := context.WithoutCancel(ctx)

	if err := job.Start(); err != nil {
		logger.Error("failed to start job", slog.String("error", err.Error()))
		return
	}
	s.save(saveCtx, logger, job)

	lastProgress := -1
	progress := func(written, requested int) {
		job.UpdateProgress(written, requested)
		if p := percent(written, requested); p != lastProgress {
			lastProgress = p
			s.save(saveCtx, logger, job)
		}
	}

	res, err := s.execute(ctx, job, progress)

	switch {
	case err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()):
		job.UpdateProgress(res.Written, res.Requested)
		_ = job.Cancel()
	case !res.Started:
		msg := "failed before starting"
		if err != nil {
			msg = err.Error()
		}
		_ = job.Fail(msg)
	default:
		_ = job.Finish(res)
		if err != nil {
			job.SetError(err.Error())
		}
		switch {
		case !job.Publish || s.publisher == nil:
		case res.Err != nil:
			logger.Warn("skipping publish of truncated output", slog.String("error", res.Err.Error()))
		default:
			s.publish(saveCtx, logger, job, res)
		}
	}
	s.save(saveCtx, logger, job)

	final := job.Clone()
	logger.Info("export job finished",
		slog.String("status", string(final.Status)),
		slog.Int("written", final.Written),
		slog.Int("requested", final.Requested),
	)
	s.emit(Event{JobID: final.ID, Kind: final.Kind, Status: final.Status, Message: final.Summary(), Err: err})
}

func (s *ExportService) execute(ctx context.Context, job *Job, progress export.ProgressFunc) (export.Result, error) {
	j := job.Clone()
	switch j.Kind {
	case export.KindImages:
		return s.exporter.ExportImages(ctx, export.ImageRequest{
			SourcePath: j.SourcePath,
			Segment:    j.Segment,
			Dir:        j.OutputPath,
			Discard:    j.Discard,
			Progress:   progress,
		})
	case export.KindVideo:
		return s.exporter.ExportVideo(ctx, export.VideoRequest{
			SourcePath: j.SourcePath,
			Segment:    j.Segment,
			OutputPath: j.OutputPath,
			Discard:    j.Discard,
			Progress:   progress,
		})
	case export.KindGIF:
		return s.exporter.AssembleGIF(ctx, export.GIFRequest{
			SourceDir:     j.SourceDir,
			OutputPath:    j.OutputPath,
			FrameDuration: j.FrameDuration,
			Progress:      progress,
		})
	}
	return export.Result{Kind: j.Kind}, fmt.Errorf("%w: unknown export kind %q", export.ErrNoInput, j.Kind)
}

func (s *ExportService) publish(ctx context.Context, logger *slog.Logger, job *Job, res export.Result) {
	paths := res.Files
	if len(paths) == 0 && job.Kind != export.KindImages {
		paths = []string{res.Output}
	}

	var url string
	for _, p := range paths {
		key := job.ID + "/" + filepath.Base(p)
		u, err := s.publisher.Publish(ctx, key, p)
		if err != nil {
			logger.Error("failed to publish artifact", slog.String("path", p), slog.String("error", err.Error()))
			job.SetError(fmt.Sprintf("publish: %v", err))
			return
		}
		url = u
	}
	if url == "" {
		return
	}
	if job.Kind == export.KindImages {
		// Stills share a prefix; expose the prefix rather than one frame.
		url = url[:strings.LastIndex(url, "/")+1]
	}
	job.SetArtifactURL(url)
	logger.Info("artifact published", slog.String("url", url))
}

func (s *ExportService) save(ctx context.Context, logger *slog.Logger, job *Job) {
	if err := s.repo.Save(ctx, job); err != nil {
		logger.Error("failed to save job", slog.String("error", err.Error()))
	}
}

func (s *ExportService) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.logger.Warn("export event dropped", slog.String("job_id", ev.JobID))
	}
}

// Get returns a job by ID.
func (s *ExportService) Get(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// List returns every job, oldest first.
func (s *ExportService) List(ctx context.Context) ([]*Job, error) {
	return s.repo.List(ctx)
}

// Cancel stops a running job. The job records CANCELLED once its export
// notices, which is before the next frame is written.
func (s *ExportService) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	rj, ok := s.running[id]
	s.mu.Unlock()
	if ok {
		rj.cancel()
		s.logger.Info("export job cancel requested", slog.String("job_id", id))
		return nil
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return err
	}
	return ErrNotRunning
}

// Delete removes a finished job's record. Output files are left alone.
func (s *ExportService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	_, ok := s.running[id]
	s.mu.Unlock()
	if ok {
		return ErrJobActive
	}
	return s.repo.Delete(ctx, id)
}

// Purge removes a finished job's record together with its output files.
// Without a Cleaner only the record is removed.
func (s *ExportService) Purge(ctx context.Context, id string) error {
	s.mu.Lock()
	_, ok := s.running[id]
	s.mu.Unlock()
	if ok {
		return ErrJobActive
	}

	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if paths := outputPaths(job); s.cleaner != nil && len(paths) > 0 {
		if err := s.cleaner.Cleanup(ctx, paths); err != nil {
			return fmt.Errorf("remove output: %w", err)
		}
		s.logger.Info("export output removed",
			slog.String("job_id", id),
			slog.Int("files", len(paths)),
		)
	}
	return s.repo.Delete(ctx, id)
}

// outputPaths lists the files a job wrote. Stills are matched by their
// numbered name inside the output directory.
func outputPaths(job *Job) []string {
	if job.OutputPath == "" {
		return nil
	}
	if job.Kind == export.KindImages {
		matches, _ := filepath.Glob(filepath.Join(job.OutputPath, "frame_[0-9]*"))
		return matches
	}
	return []string{job.OutputPath}
}

// Wait blocks until the job has finished or ctx is done, and returns its
// final state.
func (s *ExportService) Wait(ctx context.Context, id string) (*Job, error) {
	s.mu.Lock()
	rj, ok := s.running[id]
	s.mu.Unlock()
	if ok {
		select {
		case <-rj.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.repo.FindByID(ctx, id)
}

// Busy reports whether a job of kind is running.
func (s *ExportService) Busy(kind export.Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byKind[kind]
	return ok
}

// Shutdown rejects new jobs, cancels running ones and waits for them to
// record their final state.
func (s *ExportService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	for _, rj := range s.running {
		rj.cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
