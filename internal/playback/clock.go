package playback

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"time"
)

// FrameSource supplies the frame for each tick.
type FrameSource interface {
	NextFrame() (image.Image, bool)
}

// Sink receives every successfully decoded frame.
type Sink interface {
	Show(img image.Image)
}

// Clock ticks a FrameSource at a fixed rate while playing. Pausing stops the
// ticker only; the decode position is untouched.
type Clock struct {
	mu       sync.Mutex
	source   FrameSource
	sink     Sink
	interval time.Duration
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewClock creates a paused clock ticking every 1000/fps milliseconds.
func NewClock(source FrameSource, sink Sink, fps int, logger *slog.Logger) *Clock {
	if fps <= 0 {
		fps = 30
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Clock{
		source:   source,
		sink:     sink,
		interval: time.Duration(1000/fps) * time.Millisecond,
		logger:   logger,
	}
}

// Interval returns the tick period.
func (c *Clock) Interval() time.Duration {
	return c.interval
}

// Play starts ticking until Pause is called or ctx is done. Calling Play on a
// running clock does nothing.
func (c *Clock) Play(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	go c.run(ctx, done)
	c.logger.Debug("playback started", slog.Duration("interval", c.interval))
}

// Pause stops ticking and waits for the in-flight tick to finish.
func (c *Clock) Pause() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	c.logger.Debug("playback paused")
}

// Toggle pauses a playing clock or resumes a paused one and reports whether
// the clock is now playing.
func (c *Clock) Toggle(ctx context.Context) bool {
	if c.Playing() {
		c.Pause()
		return false
	}
	c.Play(ctx)
	return true
}

// Playing reports whether the clock is ticking.
func (c *Clock) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

// Tick runs one tick synchronously.
func (c *Clock) Tick() bool {
	img, ok := c.source.NextFrame()
	if !ok {
		return false
	}
	c.sink.Show(img)
	return true
}

func (c *Clock) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Tick()
		}
	}
}
