package heatengine

import (
	"testing"

	"github.com/editpulse/editpulse/pkg/utils"
)

// singlePixel projects every coordinate onto pixel 0.
type singlePixel struct{}

func (singlePixel) Project(lat, lon float64) (uint32, bool) { return 0, true }

func TestAggregatorSaturation(t *testing.T) {
	a := NewAggregator(singlePixel{}, 60)

	// 70k events on one (frame, pixel) must clamp at the cap, not wrap.
	for i := 0; i < 70000; i++ {
		if err := a.Record(0, 0, Epoch); err != nil {
			t.Fatal(err)
		}
	}

	records, err := a.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || len(records[0].Deltas) != 1 {
		t.Fatalf("records = %+v; want one frame with one delta", records)
	}
	if got := records[0].Deltas[0].Count; got != MaxPixelCount {
		t.Errorf("count = %d; want %d", got, MaxPixelCount)
	}
}

func TestAggregatorDenseRenumbering(t *testing.T) {
	p := Equirectangular{BBox: WorldBBox, Width: 360, Height: 180}
	a := NewAggregator(p, 3600)

	// Events in hours 5, 7 and 10: the output must cover 5..10 densely,
	// renumbered from zero, with empty records filling the gaps.
	for _, hour := range []int64{5, 7, 10, 7} {
		if err := a.Record(10, 10, Epoch+hour*3600); err != nil {
			t.Fatal(err)
		}
	}

	records, err := a.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 6 {
		t.Fatalf("got %d records; want 6", len(records))
	}
	for i, rec := range records {
		if rec.Frame != uint32(i) {
			t.Errorf("record %d carries frame number %d", i, rec.Frame)
		}
	}
	if len(records[0].Deltas) != 1 || records[0].Deltas[0].Count != 1 {
		t.Errorf("frame 0 deltas = %+v; want a single count-1 delta", records[0].Deltas)
	}
	if len(records[1].Deltas) != 0 || len(records[3].Deltas) != 0 || len(records[4].Deltas) != 0 {
		t.Error("gap frames must carry no deltas")
	}
	if records[2].Deltas[0].Count != 2 {
		t.Errorf("frame 2 count = %d; want 2", records[2].Deltas[0].Count)
	}
}

func TestAggregatorOffCanvasExtendsRange(t *testing.T) {
	// Only the middle event is on canvas; the off-canvas ones still
	// stretch the observed frame range.
	p := Equirectangular{BBox: BBox{Left: -10, Bottom: -10, Right: 10, Top: 10}, Width: 20, Height: 20}
	a := NewAggregator(p, 60)

	if err := a.Record(50, 50, Epoch); err != nil { // off canvas, frame 0
		t.Fatal(err)
	}
	if err := a.Record(5, 5, Epoch+120); err != nil { // frame 2
		t.Fatal(err)
	}
	if err := a.Record(50, 50, Epoch+240); err != nil { // off canvas, frame 4
		t.Fatal(err)
	}

	records, err := a.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 5 {
		t.Fatalf("got %d records; want 5", len(records))
	}

	stats := a.Stats()
	if stats.Events != 3 || stats.OffCanvas != 2 {
		t.Errorf("stats = %+v; want 3 events with 2 off canvas", stats)
	}
	if stats.FirstFrame != 0 || stats.LastFrame != 4 {
		t.Errorf("frame range = [%d, %d]; want [0, 4]", stats.FirstFrame, stats.LastFrame)
	}
}

func TestAggregatorEmptyStream(t *testing.T) {
	a := NewAggregator(singlePixel{}, 60)
	records, err := a.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records from an empty stream; want none", len(records))
	}
}

func TestAggregatorRejectsPreEpoch(t *testing.T) {
	a := NewAggregator(singlePixel{}, 60)
	if err := a.Record(0, 0, Epoch-100); err == nil {
		t.Fatal("want error for a pre-epoch timestamp")
	}
}

func TestAggregatorSpill(t *testing.T) {
	store, err := utils.OpenCountStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	p := Equirectangular{BBox: WorldBBox, Width: 36, Height: 18}
	a := NewAggregator(p, 60)
	a.SetSpill(store, 2) // tiny threshold so the test forces flushes

	coords := []struct{ lat, lon float64 }{
		{10, 10}, {20, 20}, {-30, 40}, {10, 10}, {55, -120},
	}
	for i, c := range coords {
		if err := a.Record(c.lat, c.lon, Epoch+int64(i%2)*60); err != nil {
			t.Fatal(err)
		}
	}

	records, err := a.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records; want 2", len(records))
	}
	if a.Stats().Flushes == 0 {
		t.Error("expected at least one spill flush")
	}

	total := 0
	for _, rec := range records {
		for _, d := range rec.Deltas {
			total += int(d.Count)
		}
	}
	if total != len(coords) {
		t.Errorf("total count = %d; want %d", total, len(coords))
	}
}

// BenchmarkAggregatorRecord measures the hot ingest path on a large
// world canvas. Allocations here multiply across billions of events.
func BenchmarkAggregatorRecord(b *testing.B) {
	p := Equirectangular{BBox: WorldBBox, Width: 7200, Height: 3600}
	a := NewAggregator(p, 86400)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		lat := float64(i%170) - 85
		lon := float64(i%350) - 175
		if err := a.Record(lat, lon, Epoch+int64(i%1000000)); err != nil {
			b.Fatal(err)
		}
	}
}
