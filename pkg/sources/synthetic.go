package sources

import (
	"context"
	"math/rand"

	"github.com/rs/zerolog/log"
)

// Synthetic generates a deterministic stream of plausible edit events
// without needing a planet file. City hotspots light up one after
// another across the simulated span, the way mapping communities grow
// region by region.
type Synthetic struct {
	Events int
	Seed   int64
	// Start is the timestamp of the first event in unix seconds.
	Start int64
}

// Fifteen simulated years of editing.
const demoSpanSeconds = 15 * 365 * 24 * 3600

// Hotspot centres with a spread in degrees and the fraction of the
// span at which each community comes alive. Ordered by activation.
var demoHotspots = []struct {
	lat, lon, spread, from float64
}{
	{51.51, -0.13, 0.8, 0},      // London
	{52.52, 13.41, 0.9, 0},      // Berlin
	{48.85, 2.35, 0.7, 0.05},    // Paris
	{37.77, -122.42, 0.9, 0.1},  // San Francisco
	{40.71, -74.01, 1.0, 0.15},  // New York
	{35.68, 139.69, 0.8, 0.2},   // Tokyo
	{55.75, 37.62, 1.1, 0.3},    // Moscow
	{-33.87, 151.21, 0.8, 0.4},  // Sydney
	{28.61, 77.21, 1.2, 0.45},   // Delhi
	{-23.55, -46.63, 1.0, 0.55}, // Sao Paulo
	{-1.29, 36.82, 0.9, 0.65},   // Nairobi
}

func (s Synthetic) Each(ctx context.Context, fn func(Event) error) error {
	log.Info().
		Int("events", s.Events).
		Int64("seed", s.Seed).
		Msg("Generating synthetic events")

	rng := rand.New(rand.NewSource(s.Seed))
	active := 1
	for i := 0; i < s.Events; i++ {
		if i&0xffff == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		progress := float64(i) / float64(s.Events)
		for active < len(demoHotspots) && demoHotspots[active].from <= progress {
			active++
		}
		h := demoHotspots[rng.Intn(active)]

		ev := Event{
			Lat:       h.lat + rng.NormFloat64()*h.spread,
			Lon:       h.lon + rng.NormFloat64()*h.spread,
			Timestamp: s.Start + int64(progress*demoSpanSeconds) + rng.Int63n(86400),
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
	return nil
}
