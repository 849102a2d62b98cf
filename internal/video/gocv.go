package video

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Compile-time check that GoCVBackend implements Backend.
var _ Backend = (*GoCVBackend)(nil)

var properties = map[Property]gocv.VideoCaptureProperties{
	FrameCount: gocv.VideoCaptureFrameCount,
	FPS:        gocv.VideoCaptureFPS,
	Width:      gocv.VideoCaptureFrameWidth,
	Height:     gocv.VideoCaptureFrameHeight,
	Position:   gocv.VideoCapturePosFrames,
}

// GoCVBackend implements Backend with OpenCV through gocv.
type GoCVBackend struct{}

// NewGoCVBackend creates a gocv-backed Backend.
func NewGoCVBackend() *GoCVBackend {
	return &GoCVBackend{}
}

// OpenFile opens a video file for decoding.
func (b *GoCVBackend) OpenFile(path string) (Capture, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceOpen, path, err)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return nil, fmt.Errorf("%w: %s", ErrSourceOpen, path)
	}
	return &gocvCapture{vc: vc}, nil
}

// OpenCamera opens a capture device and requests the given resolution.
func (b *GoCVBackend) OpenCamera(device, width, height int) (Capture, error) {
	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("%w: camera %d: %w", ErrSourceOpen, device, err)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return nil, fmt.Errorf("%w: camera %d", ErrSourceOpen, device)
	}
	if width > 0 && height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}
	return &gocvCapture{vc: vc}, nil
}

// OpenEncoder opens a video writer.
func (b *GoCVBackend) OpenEncoder(p EncoderParams) (Encoder, error) {
	fourCC, err := FourCC(p.Codec)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceOpen, err)
	}
	vw, err := gocv.VideoWriterFile(p.Path, fourCC, p.FPS, p.Width, p.Height, true)
	if err != nil {
		return nil, fmt.Errorf("%w: encoder %s: %w", ErrSourceOpen, p.Path, err)
	}
	if !vw.IsOpened() {
		_ = vw.Close()
		return nil, fmt.Errorf("%w: encoder %s", ErrSourceOpen, p.Path)
	}
	return &gocvEncoder{vw: vw}, nil
}

// WriteImage encodes f to path; the format follows the path extension.
func (b *GoCVBackend) WriteImage(path string, f Frame) error {
	mat, release, err := toMat(f)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
	}
	defer release()
	if ok := gocv.IMWrite(path, mat); !ok {
		return fmt.Errorf("%w: %s", ErrWrite, path)
	}
	return nil
}

type gocvCapture struct {
	vc *gocv.VideoCapture
}

func (c *gocvCapture) Read() (Frame, error) {
	mat := gocv.NewMat()
	if ok := c.vc.Read(&mat); !ok || mat.Empty() {
		_ = mat.Close()
		return nil, ErrRead
	}
	return &mat, nil
}

func (c *gocvCapture) Get(p Property) float64 {
	return c.vc.Get(properties[p])
}

func (c *gocvCapture) Set(p Property, v float64) {
	c.vc.Set(properties[p], v)
}

func (c *gocvCapture) Close() error {
	return c.vc.Close()
}

type gocvEncoder struct {
	vw *gocv.VideoWriter
}

func (e *gocvEncoder) Write(f Frame) error {
	mat, release, err := toMat(f)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	defer release()
	if err := e.vw.Write(mat); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}

func (e *gocvEncoder) Close() error {
	return e.vw.Close()
}

// toMat returns the Mat behind f, converting frames that did not come from
// gocv. release frees only what toMat allocated.
func toMat(f Frame) (gocv.Mat, func(), error) {
	if m, ok := f.(*gocv.Mat); ok {
		return *m, func() {}, nil
	}
	img, err := f.ToImage()
	if err != nil {
		return gocv.Mat{}, nil, err
	}
	m, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.Mat{}, nil, err
	}
	return m, func() { _ = m.Close() }, nil
}
