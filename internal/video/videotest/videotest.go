// Package videotest provides an in-memory video.Backend for tests that must
// not depend on OpenCV.
package videotest

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/maauso/framecut/internal/video"
)

// Compile-time check that Backend implements video.Backend.
var _ video.Backend = (*Backend)(nil)

// Frame is a synthetic frame whose pixels encode its index as a gray level.
type Frame struct {
	Index  int
	Width  int
	Height int
	Closed bool
}

// ToImage renders the frame as a solid gray image.
func (f *Frame) ToImage() (image.Image, error) {
	w, h := f.Width, f.Height
	if w <= 0 || h <= 0 {
		w, h = 8, 6
	}
	return imaging.New(w, h, color.Gray{Y: uint8(f.Index % 256)}), nil
}

// Close marks the frame released.
func (f *Frame) Close() error {
	f.Closed = true
	return nil
}

// Source describes a fake video file.
type Source struct {
	Frames int
	FPS    float64
	Width  int
	Height int
	// FailAfter makes every read of a frame index greater than it fail.
	// Negative disables the failure.
	FailAfter int
}

// Capture is a fake decoder over a Source.
type Capture struct {
	mu       sync.Mutex
	src      Source
	camera   bool
	pos      int
	closed   bool
	failRead bool
	// Seeks records every Position set, in order.
	Seeks []int
}

// Read returns the frame at the cursor and advances it.
func (c *Capture) Read() (video.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.failRead {
		return nil, video.ErrRead
	}
	if !c.camera {
		if c.pos >= c.src.Frames || (c.src.FailAfter >= 0 && c.pos > c.src.FailAfter) {
			return nil, video.ErrRead
		}
	}
	f := &Frame{Index: c.pos, Width: c.src.Width, Height: c.src.Height}
	c.pos++
	return f, nil
}

// Get reports source properties and the cursor.
func (c *Capture) Get(p video.Property) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch p {
	case video.FrameCount:
		return float64(c.src.Frames)
	case video.FPS:
		return c.src.FPS
	case video.Width:
		return float64(c.src.Width)
	case video.Height:
		return float64(c.src.Height)
	case video.Position:
		return float64(c.pos)
	}
	return 0
}

// Set moves the cursor when p is Position.
func (c *Capture) Set(p video.Property, v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p == video.Position {
		c.pos = int(v)
		c.Seeks = append(c.Seeks, c.pos)
	}
}

// Close releases the capture.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Closed reports whether Close was called.
func (c *Capture) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// FailReads makes every subsequent Read fail.
func (c *Capture) FailReads(fail bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failRead = fail
}

// Encoder records written frame indexes.
type Encoder struct {
	mu     sync.Mutex
	Params video.EncoderParams
	Frames []int
	closed bool
	// FailAt makes the write of the n-th frame (zero based) fail. Negative disables.
	FailAt int
	// CloseErr is returned by Close.
	CloseErr error
}

// Write records f.
func (e *Encoder) Write(f video.Frame) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.FailAt >= 0 && len(e.Frames) == e.FailAt {
		return video.ErrWrite
	}
	idx := -1
	if ff, ok := f.(*Frame); ok {
		idx = ff.Index
	}
	e.Frames = append(e.Frames, idx)
	return nil
}

// Close marks the encoder closed.
func (e *Encoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return e.CloseErr
}

// Closed reports whether Close was called.
func (e *Encoder) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Backend is an in-memory video.Backend.
type Backend struct {
	mu sync.Mutex
	// Files maps paths to fake sources. Unknown paths fail to open.
	Files map[string]Source
	// CameraAvailable controls whether OpenCamera succeeds.
	CameraAvailable bool
	// EncoderFailAt is copied into each new Encoder.
	EncoderFailAt int
	// FailEncoderOpen makes OpenEncoder fail.
	FailEncoderOpen bool
	// EncoderCloseErr is copied into each new Encoder.
	EncoderCloseErr error
	// SaveImages makes WriteImage encode real files to disk.
	SaveImages bool
	// ImageFailAt makes the n-th WriteImage call (zero based) fail. Negative disables.
	ImageFailAt int

	Captures []*Capture
	Cameras  []*Capture
	Encoders []*Encoder
	Images   []string
}

// NewBackend creates a backend with a working camera and no files.
func NewBackend() *Backend {
	return &Backend{
		Files:           make(map[string]Source),
		CameraAvailable: true,
		EncoderFailAt:   -1,
		ImageFailAt:     -1,
	}
}

// AddFile registers a fake source with no read failures.
func (b *Backend) AddFile(path string, frames int, fps float64, width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Files[path] = Source{Frames: frames, FPS: fps, Width: width, Height: height, FailAfter: -1}
}

// OpenFile opens a registered source.
func (b *Backend) OpenFile(path string) (video.Capture, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	src, ok := b.Files[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", video.ErrSourceOpen, path)
	}
	c := &Capture{src: src}
	b.Captures = append(b.Captures, c)
	return c, nil
}

// OpenCamera opens the fake camera.
func (b *Backend) OpenCamera(device, width, height int) (video.Capture, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.CameraAvailable {
		return nil, fmt.Errorf("%w: camera %d", video.ErrSourceOpen, device)
	}
	c := &Capture{camera: true, src: Source{Width: width, Height: height, FailAfter: -1}}
	b.Cameras = append(b.Cameras, c)
	return c, nil
}

// OpenEncoder records the parameters and returns a recording Encoder.
func (b *Backend) OpenEncoder(p video.EncoderParams) (video.Encoder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailEncoderOpen {
		return nil, fmt.Errorf("%w: encoder %s", video.ErrSourceOpen, p.Path)
	}
	e := &Encoder{Params: p, FailAt: b.EncoderFailAt, CloseErr: b.EncoderCloseErr}
	b.Encoders = append(b.Encoders, e)
	return e, nil
}

// WriteImage records path and, when SaveImages is set, writes the frame to it.
func (b *Backend) WriteImage(path string, f video.Frame) error {
	b.mu.Lock()
	save := b.SaveImages
	fail := b.ImageFailAt >= 0 && len(b.Images) == b.ImageFailAt
	b.mu.Unlock()

	if fail {
		return fmt.Errorf("%w: %s", video.ErrWrite, path)
	}

	if save {
		img, err := f.ToImage()
		if err != nil {
			return err
		}
		if err := imaging.Save(img, path); err != nil {
			return fmt.Errorf("%w: %w", video.ErrWrite, err)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.Images = append(b.Images, path)
	return nil
}

// SetFailAfter changes the read failure point of a registered source.
func (b *Backend) SetFailAfter(path string, frame int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	src := b.Files[path]
	src.FailAfter = frame
	b.Files[path] = src
}

// ImageCount returns the number of WriteImage calls.
func (b *Backend) ImageCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Images)
}

// LastCapture returns the most recently opened file capture.
func (b *Backend) LastCapture() *Capture {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.Captures) == 0 {
		return nil
	}
	return b.Captures[len(b.Captures)-1]
}
