package segment

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
)

// ErrEmpty is returned when an operation needs a loaded source but the model
// has no frames.
var ErrEmpty = errors.New("segment: no source loaded")

// DragState identifies which range handle, if any, is being dragged.
type DragState int

const (
	// DragNone means no handle is grabbed.
	DragNone DragState = iota
	// DragStart means the start handle is grabbed.
	DragStart
	// DragEnd means the end handle is grabbed.
	DragEnd
)

// String returns the lower-case handle name.
func (d DragState) String() string {
	switch d {
	case DragStart:
		return "start"
	case DragEnd:
		return "end"
	default:
		return "none"
	}
}

// Segment is an immutable snapshot of the selected range.
type Segment struct {
	TotalFrames int
	Start       int
	End         int
}

// Empty reports whether no source is loaded.
func (s Segment) Empty() bool {
	return s.TotalFrames <= 0
}

// Len returns the number of frames in the inclusive range.
func (s Segment) Len() int {
	if s.Empty() {
		return 0
	}
	return s.End - s.Start + 1
}

// Seconds returns the range boundaries in whole seconds at the given rate.
func (s Segment) Seconds(fps float64) (start, end int) {
	if fps <= 0 {
		return 0, 0
	}
	return int(math.Floor(float64(s.Start) / fps)), int(math.Floor(float64(s.End) / fps))
}

// Validate checks 0 <= Start <= End <= TotalFrames-1.
func (s Segment) Validate() error {
	if s.Empty() {
		return ErrEmpty
	}
	if s.Start < 0 || s.Start > s.End || s.End > s.TotalFrames-1 {
		return fmt.Errorf("segment: invalid range [%d, %d] for %d frames", s.Start, s.End, s.TotalFrames)
	}
	return nil
}

// Listener is invoked with the new range after a drag moves a handle.
type Listener func(start, end int)

type subscription struct {
	id int
	fn Listener
}

// Model owns the selected range and the transient drag state. It is safe for
// concurrent use. Listeners are called without the lock held, in the order
// they subscribed.
type Model struct {
	mu        sync.Mutex
	total     int
	start     int
	end       int
	drag      DragState
	nextID    int
	listeners []subscription
}

// NewModel creates a model in the "no source loaded" state.
func NewModel() *Model {
	return &Model{}
}

// SetRange resets the selection to cover every frame of a newly loaded source.
func (m *Model) SetRange(totalFrames int) {
	if totalFrames < 0 {
		totalFrames = 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total = totalFrames
	m.start = 0
	m.end = totalFrames - 1
	if totalFrames == 0 {
		m.end = 0
	}
	m.drag = DragNone
}

// BeginDrag grabs the handle within total/100 frames of the pointer. The start
// handle is tested first, so it wins when both are within tolerance.
func (m *Model) BeginDrag(pixel, width float64) DragState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.total <= 0 {
		return DragNone
	}
	pos := float64(PixelToFrame(pixel, width, m.total))
	tolerance := float64(m.total) / 100.0
	switch {
	case math.Abs(pos-float64(m.start)) < tolerance:
		m.drag = DragStart
	case math.Abs(pos-float64(m.end)) < tolerance:
		m.drag = DragEnd
	}
	return m.drag
}

// UpdateDrag moves the grabbed handle to the pointer, clamped to the source,
// and notifies listeners. It returns false when no drag is active.
func (m *Model) UpdateDrag(pixel, width float64) bool {
	m.mu.Lock()
	if m.drag == DragNone || m.total <= 0 {
		m.mu.Unlock()
		return false
	}
	frame := PixelToFrame(pixel, width, m.total)
	frame = max(0, min(frame, m.total-1))
	switch m.drag {
	case DragStart:
		m.start = min(frame, m.end)
	case DragEnd:
		m.end = max(frame, m.start)
	}
	start, end := m.start, m.end
	listeners := slices.Clone(m.listeners)
	m.mu.Unlock()

	for _, l := range listeners {
		l.fn(start, end)
	}
	return true
}

// EndDrag releases whatever handle is held.
func (m *Model) EndDrag() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drag = DragNone
}

// Drag returns the current drag state.
func (m *Model) Drag() DragState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drag
}

// Snapshot returns a copy of the current range.
func (m *Model) Snapshot() Segment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Segment{TotalFrames: m.total, Start: m.start, End: m.end}
}

// Subscribe registers l for range-changed notifications. The returned func
// removes the registration.
func (m *Model) Subscribe(l Listener) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners = append(m.listeners, subscription{id: id, fn: l})
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.listeners = slices.DeleteFunc(m.listeners, func(s subscription) bool { return s.id == id })
	}
}
