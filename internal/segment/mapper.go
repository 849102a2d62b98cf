// Package segment holds the frame-range selection model: the mapping between a
// linear UI coordinate and a frame index, and the drag-based editing of an
// inclusive [start, end] frame range.
package segment

import "math"

// PixelToFrame converts a pointer position along a bar of the given width into
// a frame index. The result is not clamped; callers decide whether an
// out-of-range index is meaningful.
func PixelToFrame(pixel, width float64, totalFrames int) int {
	if width <= 0 {
		return 0
	}
	return int(math.Floor(pixel / width * float64(totalFrames)))
}

// FrameToPixel converts a frame index back into a position along a bar of the
// given width. It is the floor-inverse of PixelToFrame.
func FrameToPixel(frame int, width float64, totalFrames int) int {
	if totalFrames <= 0 {
		return 0
	}
	return int(math.Floor(float64(frame) / float64(totalFrames) * width))
}
