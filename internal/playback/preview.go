package playback

import (
	"bytes"
	"image"
	"sync"

	"github.com/disintegration/imaging"
)

// PreviewBuffer is a Sink that keeps the most recent frame.
type PreviewBuffer struct {
	mu    sync.RWMutex
	img   image.Image
	count uint64
}

// NewPreviewBuffer creates an empty buffer.
func NewPreviewBuffer() *PreviewBuffer {
	return &PreviewBuffer{}
}

// Show replaces the held frame.
func (p *PreviewBuffer) Show(img image.Image) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.img = img
	p.count++
}

// Latest returns the held frame and the number of frames shown so far.
func (p *PreviewBuffer) Latest() (image.Image, uint64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.img, p.count
}

// JPEG encodes the held frame. ok is false before the first frame.
func (p *PreviewBuffer) JPEG(quality int) (data []byte, ok bool, err error) {
	img, _ := p.Latest()
	if img == nil {
		return nil, false, nil
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, false, err
	}
	return buf.Bytes(), true, nil
}
