package heatengine

import (
	"fmt"
	"math"
	"sort"

	"github.com/editpulse/editpulse/pkg/utils"
	"github.com/rs/zerolog/log"
)

// MaxPixelCount is the saturation cap for a single (frame, pixel)
// counter. Additions clamp here instead of wrapping.
const MaxPixelCount uint16 = math.MaxUint16

const progressEvery = 50_000_000

// Aggregator folds an event stream into sparse per-frame pixel counts.
// Memory grows with the number of distinct (frame, pixel) pairs, not
// with the event count; an optional spill store bounds even that.
type Aggregator struct {
	proj        Projector
	secPerFrame uint32

	counts map[uint64]uint16
	first  uint32
	last   uint32

	store    *utils.CountStore
	maxPairs int

	events    uint64
	offCanvas uint64
	flushes   int
}

func NewAggregator(proj Projector, secPerFrame uint32) *Aggregator {
	return &Aggregator{
		proj:        proj,
		secPerFrame: secPerFrame,
		counts:      make(map[uint64]uint16),
	}
}

// SetSpill merges buffered counts into store whenever more than
// maxPairs distinct (frame, pixel) pairs are held in memory. The store
// must start empty.
func (a *Aggregator) SetSpill(store *utils.CountStore, maxPairs int) {
	a.store = store
	a.maxPairs = maxPairs
}

// Record bins one event into its frame and pixel. The observed frame
// range grows for every in-epoch event, including ones that project
// off canvas; those are otherwise skipped.
func (a *Aggregator) Record(lat, lon float64, ts int64) error {
	frame, err := FrameForTimestamp(ts, a.secPerFrame)
	if err != nil {
		return err
	}

	if a.events == 0 {
		a.first, a.last = frame, frame
	} else if frame < a.first {
		a.first = frame
	} else if frame > a.last {
		a.last = frame
	}
	a.events++
	if a.events%progressEvery == 0 {
		log.Info().
			Uint64("events", a.events).
			Int("flushes", a.flushes).
			Msg("Aggregating edits")
	}

	pixel, ok := a.proj.Project(lat, lon)
	if !ok {
		a.offCanvas++
		return nil
	}

	// Frame in the high bits keeps spill-store iteration frame-major.
	key := uint64(frame)<<32 | uint64(pixel)
	if c := a.counts[key]; c < MaxPixelCount {
		a.counts[key] = c + 1
	}

	if a.store != nil && len(a.counts) > a.maxPairs {
		return a.flush()
	}
	return nil
}

func (a *Aggregator) flush() error {
	if err := a.store.Merge(a.counts); err != nil {
		return err
	}
	a.flushes++
	clear(a.counts)
	return nil
}

// Finalize renumbers the observed frame range from zero and gap-fills
// it into a dense, ordered sequence: one FrameRecord per integer frame
// between the first and last event, empty where nothing happened. A
// run that recorded no events yields an empty sequence.
func (a *Aggregator) Finalize() ([]FrameRecord, error) {
	if a.events == 0 {
		return nil, nil
	}

	if a.store != nil {
		if len(a.counts) > 0 {
			if err := a.flush(); err != nil {
				return nil, err
			}
		}
		return a.finalizeSpilled()
	}

	byFrame := make(map[uint32][]PixelDelta)
	for key, count := range a.counts {
		frame := uint32(key >> 32)
		byFrame[frame] = append(byFrame[frame], PixelDelta{Pixel: uint32(key), Count: count})
	}
	for _, deltas := range byFrame {
		sort.Slice(deltas, func(i, j int) bool { return deltas[i].Pixel < deltas[j].Pixel })
	}

	records := make([]FrameRecord, 0, a.last-a.first+1)
	for f := a.first; ; f++ {
		records = append(records, FrameRecord{Frame: f - a.first, Deltas: byFrame[f]})
		if f == a.last {
			break
		}
	}
	return records, nil
}

func (a *Aggregator) finalizeSpilled() ([]FrameRecord, error) {
	records := make([]FrameRecord, a.last-a.first+1)
	for i := range records {
		records[i].Frame = uint32(i)
	}
	err := a.store.ForEach(func(frame, pixel uint32, count uint16) error {
		if frame < a.first || frame > a.last {
			return fmt.Errorf("stored frame %d outside observed range [%d, %d]; stale spill dir?", frame, a.first, a.last)
		}
		i := frame - a.first
		records[i].Deltas = append(records[i].Deltas, PixelDelta{Pixel: pixel, Count: count})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// AggregateStats summarizes the ingest pass for the run report.
type AggregateStats struct {
	Events     uint64
	OffCanvas  uint64
	Flushes    int
	FirstFrame uint32
	LastFrame  uint32
}

func (a *Aggregator) Stats() AggregateStats {
	return AggregateStats{
		Events:     a.events,
		OffCanvas:  a.offCanvas,
		Flushes:    a.flushes,
		FirstFrame: a.first,
		LastFrame:  a.last,
	}
}
