// Package server provides the HTTP API for framecut.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "time"

// DragRequest is the HTTP request body for a pointer gesture on the range bar.
type DragRequest struct {
	// Action is the gesture phase.
	Action string `json:"action" validate:"required,oneof=begin update end"`
	// X is the pointer position in pixels along the bar.
	X float64 `json:"x"`
	// Width is the bar width in pixels. Required for begin and update.
	Width float64 `json:"width" validate:"omitempty,gt=0"`
}

// LoadSourceRequest is the HTTP request body for loading a video file.
// Several paths may be dropped at once; the first one is loaded.
type LoadSourceRequest struct {
	Paths []string `json:"paths" validate:"required,min=1,dive,required"`
}

// SegmentResponse describes the selected range and the player state.
type SegmentResponse struct {
	TotalFrames  int     `json:"total_frames"`
	StartFrame   int     `json:"start_frame"`
	EndFrame     int     `json:"end_frame"`
	StartSeconds int     `json:"start_seconds"`
	EndSeconds   int     `json:"end_seconds"`
	FPS          float64 `json:"fps"`
	// Label is the human readable range, e.g. "Selected segment: 1s - 4s".
	Label      string `json:"label"`
	Drag       string `json:"drag"`
	Source     string `json:"source"`
	SourcePath string `json:"source_path,omitempty"`
	Playing    bool   `json:"playing"`
}

// ToggleSourceResponse is the HTTP response after switching sources.
type ToggleSourceResponse struct {
	Source string `json:"source"`
}

// PlaybackResponse is the HTTP response after toggling playback.
type PlaybackResponse struct {
	Playing bool `json:"playing"`
}

// CreateExportRequest is the HTTP request body for starting an export.
type CreateExportRequest struct {
	// Kind selects the pipeline.
	Kind string `json:"kind" validate:"required,oneof=images video gif"`
	// OutputDir receives the stills of an image export.
	OutputDir string `json:"output_dir" validate:"required_if=Kind images"`
	// OutputPath is the clip or GIF file to write.
	OutputPath string `json:"output_path" validate:"required_unless=Kind images"`
	// SourceDir holds the stills assembled into a GIF.
	SourceDir string `json:"source_dir" validate:"required_if=Kind gif"`
	// FrameDurationMs overrides the GIF frame duration.
	FrameDurationMs int `json:"frame_duration_ms" validate:"omitempty,min=1,max=60000"`
	// Publish uploads the artifact when the export finishes.
	Publish bool `json:"publish"`
	// DiscardOnCancel removes partial output if the export is cancelled.
	DiscardOnCancel bool `json:"discard_on_cancel"`
}

// ExportResponse is the HTTP response describing an export job.
type ExportResponse struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Status      string     `json:"status"`
	Summary     string     `json:"summary"`
	StartFrame  int        `json:"start_frame"`
	EndFrame    int        `json:"end_frame"`
	SourcePath  string     `json:"source_path,omitempty"`
	SourceDir   string     `json:"source_dir,omitempty"`
	OutputPath  string     `json:"output_path"`
	Requested   int        `json:"requested"`
	Written     int        `json:"written"`
	Progress    int        `json:"progress"`
	Error       string     `json:"error,omitempty"`
	ArtifactURL string     `json:"artifact_url,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ListExportsResponse is the HTTP response for listing export jobs.
type ListExportsResponse struct {
	Exports []ExportResponse `json:"exports"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
