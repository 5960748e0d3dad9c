// Package heatengine turns geotagged, timestamped edit events into a
// time-ordered sequence of activity rasters: events are binned into
// frames, projected onto a pixel grid, aggregated into sparse per-frame
// counts and replayed through a decaying intensity raster.
package heatengine

import (
	"errors"
	"fmt"
)

// Epoch is the origin of the frame timeline: 2005-03-01T00:00:00Z, just
// before the oldest surviving edits in full-history planet files.
const Epoch int64 = 1109635200

// ErrBeforeEpoch marks a timestamp older than Epoch. Such input is a
// data-integrity violation and aborts the whole run.
var ErrBeforeEpoch = errors.New("timestamp before epoch")

// FrameForTimestamp returns the frame an event at unix time ts falls
// into when every frame covers secPerFrame seconds of history.
func FrameForTimestamp(ts int64, secPerFrame uint32) (uint32, error) {
	if secPerFrame == 0 {
		return 0, errors.New("seconds per frame must be positive")
	}
	if ts < Epoch {
		return 0, fmt.Errorf("%w: %d", ErrBeforeEpoch, ts)
	}
	return uint32((ts - Epoch) / int64(secPerFrame)), nil
}

// FrameStart is the inverse of FrameForTimestamp for a frame's first
// second. Used for stamping absolute dates onto rendered frames.
func FrameStart(frame uint32, secPerFrame uint32) int64 {
	return Epoch + int64(frame)*int64(secPerFrame)
}
