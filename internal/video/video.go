// Package video defines the decode/encode capability the player and the
// export pipelines are written against, and a gocv-backed implementation.
package video

import (
	"errors"
	"image"
)

// Static errors forming the I/O failure taxonomy.
var (
	// ErrSourceOpen is returned when a camera, file or encoder cannot be opened.
	ErrSourceOpen = errors.New("video: source open failed")
	// ErrRead is returned when no further frame could be decoded.
	ErrRead = errors.New("video: frame read failed")
	// ErrWrite is returned when a frame could not be written to its destination.
	ErrWrite = errors.New("video: frame write failed")
)

// Property identifies a numeric capture property.
type Property int

const (
	// FrameCount is the number of frames reported by the container.
	FrameCount Property = iota
	// FPS is the nominal frame rate.
	FPS
	// Width is the frame width in pixels.
	Width
	// Height is the frame height in pixels.
	Height
	// Position is the index of the next frame to be decoded.
	Position
)

// Frame is one decoded picture. Callers own it and must Close it.
type Frame interface {
	ToImage() (image.Image, error)
	Close() error
}

// Capture is an open camera or file decoder.
type Capture interface {
	// Read decodes the next frame and advances the cursor. It returns ErrRead
	// when the decoder delivers nothing.
	Read() (Frame, error)
	Get(p Property) float64
	Set(p Property, v float64)
	Close() error
}

// Encoder is an open video writer.
type Encoder interface {
	Write(f Frame) error
	Close() error
}

// EncoderParams describes the output of an Encoder.
type EncoderParams struct {
	Path   string
	Codec  string
	FPS    float64
	Width  int
	Height int
}

// Backend opens captures and encoders and writes still images.
type Backend interface {
	OpenFile(path string) (Capture, error)
	OpenCamera(device, width, height int) (Capture, error)
	OpenEncoder(p EncoderParams) (Encoder, error)
	WriteImage(path string, f Frame) error
}

// Seek moves the decode cursor of c to frame.
func Seek(c Capture, frame int) {
	c.Set(Position, float64(frame))
}
