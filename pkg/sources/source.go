// Package sources streams geotagged edit events into the aggregation
// pass: a full-history OpenStreetMap PBF scanner and a deterministic
// synthetic generator for demo runs.
package sources

import "context"

// Event is a single geotagged, timestamped edit.
type Event struct {
	Lat       float64
	Lon       float64
	Timestamp int64
}

// Source streams events to fn. A non-nil error from fn aborts the scan
// and is returned unchanged.
type Source interface {
	Each(ctx context.Context, fn func(Event) error) error
}
