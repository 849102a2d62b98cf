// Package export writes a selected segment of a video file out as numbered
// stills or a re-encoded clip, and assembles directories of stills into
// animated GIFs.
package export

import (
	"context"
	"errors"
	"fmt"
)

// Static errors for the export failure taxonomy. Decoder and encoder failures
// surface as the video package's ErrSourceOpen, ErrRead and ErrWrite.
var (
	// ErrNoInput is returned when an export has nothing to read.
	ErrNoInput = errors.New("export: no input")
	// ErrNoFrames is returned when GIF assembly finds no matching stills.
	ErrNoFrames = fmt.Errorf("%w: no frames found", ErrNoInput)
)

// Kind identifies an export pipeline.
type Kind string

const (
	KindImages Kind = "images"
	KindVideo  Kind = "video"
	KindGIF    Kind = "gif"
)

// Valid reports whether k names a pipeline.
func (k Kind) Valid() bool {
	switch k {
	case KindImages, KindVideo, KindGIF:
		return true
	}
	return false
}

// Status is the final outcome of an export.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusPartial   Status = "partial"
	StatusFailed    Status = "failed"
)

// Result describes what an export produced.
type Result struct {
	Kind Kind
	// Requested is the number of frames the export set out to write.
	Requested int
	// Written is the number of frames actually written.
	Written int
	// Output is the output directory or file.
	Output string
	// Files lists the stills written by an image export.
	Files []string
	// Started is false when the export failed before any I/O on the output.
	Started bool
	// Err is the write or flush error that ended a started export. The
	// output may be truncated even when every frame was handed over.
	Err error
}

// Status classifies the result. A started export that hit a write error is
// never completed.
func (r Result) Status() Status {
	switch {
	case !r.Started:
		return StatusFailed
	case r.Err != nil, r.Written < r.Requested:
		return StatusPartial
	default:
		return StatusCompleted
	}
}

// String renders the user-facing outcome message.
func (r Result) String() string {
	switch r.Status() {
	case StatusCompleted:
		return "completed fully"
	case StatusPartial:
		msg := fmt.Sprintf("completed partially (%d of %d frames)", r.Written, r.Requested)
		if r.Err != nil {
			msg += ": " + r.Err.Error()
		}
		return msg
	default:
		return "failed before starting"
	}
}

// recordFailure keeps err on a started result unless it is the cancellation
// of ctx.
func (r *Result) recordFailure(ctx context.Context, err error) {
	if err == nil || !r.Started {
		return
	}
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return
	}
	r.Err = err
}
