package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/framecut/internal/export"
	"github.com/maauso/framecut/internal/job"
	"github.com/maauso/framecut/internal/job/id"
	"github.com/maauso/framecut/internal/playback"
	"github.com/maauso/framecut/internal/segment"
	"github.com/maauso/framecut/internal/video"
)

// Player groups the live preview components the API drives.
type Player struct {
	Model    *segment.Model
	Switcher *playback.Switcher
	Clock    *playback.Clock
	Preview  *playback.PreviewBuffer
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	exports        *job.ExportService
	player         Player
	validator      *validator.Validate
	logger         *slog.Logger
	frameDuration  time.Duration
	previewQuality int
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithGIFFrameDuration sets the GIF frame duration used when a request does
// not override it.
func WithGIFFrameDuration(d time.Duration) HandlerOption {
	return func(h *Handlers) {
		if d > 0 {
			h.frameDuration = d
		}
	}
}

// WithPreviewQuality sets the JPEG quality of GET /preview.
func WithPreviewQuality(q int) HandlerOption {
	return func(h *Handlers) {
		if q > 0 && q <= 100 {
			h.previewQuality = q
		}
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(exports *job.ExportService, player Player, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		exports:        exports,
		player:         player,
		validator:      validator.New(),
		logger:         logger,
		frameDuration:  export.DefaultFrameDuration,
		previewQuality: 80,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// GetSegment handles GET /segment requests.
func (h *Handlers) GetSegment(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.segmentResponse())
}

// Drag handles POST /segment/drag requests.
func (h *Handlers) Drag(w http.ResponseWriter, r *http.Request) {
	var req DragRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Action != "end" && req.Width <= 0 {
		writeError(w, http.StatusBadRequest, "width must be positive for begin and update", "VALIDATION_ERROR")
		return
	}

	model := h.player.Model
	switch req.Action {
	case "begin":
		model.BeginDrag(req.X, req.Width)
	case "update":
		model.UpdateDrag(req.X, req.Width)
	case "end":
		model.EndDrag()
	}
	writeJSON(w, http.StatusOK, h.segmentResponse())
}

// LoadSource handles POST /source requests.
func (h *Handlers) LoadSource(w http.ResponseWriter, r *http.Request) {
	var req LoadSourceRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.player.Switcher.LoadDropped(req.Paths); err != nil {
		if errors.Is(err, video.ErrSourceOpen) {
			writeError(w, http.StatusUnprocessableEntity, err.Error(), "SOURCE_OPEN_FAILED")
			return
		}
		h.logger.Error("failed to load source", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load source", "SOURCE_LOAD_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, h.segmentResponse())
}

// ToggleSource handles POST /source/toggle requests.
func (h *Handlers) ToggleSource(w http.ResponseWriter, _ *http.Request) {
	active, err := h.player.Switcher.Toggle()
	if errors.Is(err, playback.ErrNoSource) {
		writeError(w, http.StatusConflict, "no video file loaded", "NO_SOURCE")
		return
	}
	writeJSON(w, http.StatusOK, ToggleSourceResponse{Source: active.String()})
}

// TogglePlayback handles POST /playback/toggle requests. Playback outlives
// the request.
func (h *Handlers) TogglePlayback(w http.ResponseWriter, r *http.Request) {
	playing := h.player.Clock.Toggle(context.WithoutCancel(r.Context()))
	writeJSON(w, http.StatusOK, PlaybackResponse{Playing: playing})
}

// Preview handles GET /preview requests with the latest frame as JPEG.
func (h *Handlers) Preview(w http.ResponseWriter, _ *http.Request) {
	data, ok, err := h.player.Preview.JPEG(h.previewQuality)
	if err != nil {
		h.logger.Error("failed to encode preview", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to encode preview", "PREVIEW_FAILED")
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// CreateExport handles POST /exports requests. The current segment is
// captured here; later drags do not affect the job.
func (h *Handlers) CreateExport(w http.ResponseWriter, r *http.Request) {
	var req CreateExportRequest
	if !h.decode(w, r, &req) {
		return
	}

	input := job.Input{
		Kind:          export.Kind(req.Kind),
		FrameDuration: h.frameDuration,
		Discard:       req.DiscardOnCancel,
		Publish:       req.Publish,
	}
	if req.FrameDurationMs > 0 {
		input.FrameDuration = time.Duration(req.FrameDurationMs) * time.Millisecond
	}
	switch input.Kind {
	case export.KindImages:
		input.OutputPath = req.OutputDir
	default:
		input.OutputPath = req.OutputPath
	}
	if input.Kind == export.KindGIF {
		input.SourceDir = req.SourceDir
	} else {
		input.SourcePath, input.Segment = h.player.Switcher.Snapshot()
	}

	created, err := h.exports.Submit(r.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, export.ErrNoInput):
			writeError(w, http.StatusUnprocessableEntity, err.Error(), "NO_INPUT")
		case errors.Is(err, job.ErrKindBusy):
			writeError(w, http.StatusConflict, err.Error(), "EXPORT_BUSY")
		case errors.Is(err, job.ErrShutdown):
			writeError(w, http.StatusServiceUnavailable, err.Error(), "SHUTTING_DOWN")
		default:
			h.logger.Error("failed to create export", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "failed to create export", "EXPORT_CREATION_FAILED")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, toExportResponse(created))
}

// ListExports handles GET /exports requests.
func (h *Handlers) ListExports(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.exports.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list exports", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list exports", "EXPORT_LIST_FAILED")
		return
	}
	resp := ListExportsResponse{Exports: make([]ExportResponse, 0, len(jobs))}
	for _, j := range jobs {
		resp.Exports = append(resp.Exports, toExportResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetExport handles GET /exports/{id} requests.
func (h *Handlers) GetExport(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathJobID(w, r)
	if !ok {
		return
	}

	found, err := h.exports.Get(r.Context(), jobID)
	if err != nil {
		h.writeJobError(w, jobID, err, "failed to get export", "EXPORT_FETCH_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, toExportResponse(found))
}

// DeleteExport handles DELETE /exports/{id} requests. A running export is
// cancelled; a finished one has its record removed, and with ?purge=true its
// output files too.
func (h *Handlers) DeleteExport(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathJobID(w, r)
	if !ok {
		return
	}

	err := h.exports.Cancel(r.Context(), jobID)
	switch {
	case err == nil:
		found, err := h.exports.Get(r.Context(), jobID)
		if err != nil {
			h.writeJobError(w, jobID, err, "failed to get export", "EXPORT_FETCH_FAILED")
			return
		}
		writeJSON(w, http.StatusAccepted, toExportResponse(found))
		return
	case !errors.Is(err, job.ErrNotRunning):
		h.writeJobError(w, jobID, err, "failed to cancel export", "EXPORT_CANCEL_FAILED")
		return
	}

	remove := h.exports.Delete
	if r.URL.Query().Get("purge") == "true" {
		remove = h.exports.Purge
	}
	if err := remove(r.Context(), jobID); err != nil {
		if errors.Is(err, job.ErrJobActive) {
			writeError(w, http.StatusConflict, err.Error(), "EXPORT_ACTIVE")
			return
		}
		h.writeJobError(w, jobID, err, "failed to delete export", "EXPORT_DELETE_FAILED")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) segmentResponse() SegmentResponse {
	path, seg := h.player.Switcher.Snapshot()
	fps := h.player.Switcher.FPS()
	startSec, endSec := seg.Seconds(fps)
	return SegmentResponse{
		TotalFrames:  seg.TotalFrames,
		StartFrame:   seg.Start,
		EndFrame:     seg.End,
		StartSeconds: startSec,
		EndSeconds:   endSec,
		FPS:          fps,
		Label:        fmt.Sprintf("Selected segment: %ds - %ds", startSec, endSec),
		Drag:         h.player.Model.Drag().String(),
		Source:       h.player.Switcher.Active().String(),
		SourcePath:   path,
		Playing:      h.player.Clock.Playing(),
	}
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return false
	}
	return true
}

func (h *Handlers) writeJobError(w http.ResponseWriter, jobID string, err error, msg, code string) {
	if errors.Is(err, job.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "export not found", "EXPORT_NOT_FOUND")
		return
	}
	h.logger.Error(msg,
		slog.String("job_id", jobID),
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusInternalServerError, msg, code)
}

func pathJobID(w http.ResponseWriter, r *http.Request) (string, bool) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "export ID is required", "MISSING_EXPORT_ID")
		return "", false
	}
	if !id.Valid(jobID) {
		writeError(w, http.StatusBadRequest, "malformed export ID", "INVALID_EXPORT_ID")
		return "", false
	}
	return jobID, true
}

func toExportResponse(j *job.Job) ExportResponse {
	resp := ExportResponse{
		ID:          j.ID,
		Kind:        string(j.Kind),
		Status:      string(j.Status),
		Summary:     j.Summary(),
		StartFrame:  j.Segment.Start,
		EndFrame:    j.Segment.End,
		SourcePath:  j.SourcePath,
		SourceDir:   j.SourceDir,
		OutputPath:  j.OutputPath,
		Requested:   j.Requested,
		Written:     j.Written,
		Progress:    j.Progress,
		Error:       j.Error,
		ArtifactURL: j.ArtifactURL,
		CreatedAt:   j.CreatedAt,
	}
	if !j.CompletedAt.IsZero() {
		completed := j.CompletedAt
		resp.CompletedAt = &completed
	}
	return resp
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
