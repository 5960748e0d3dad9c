package utils

import (
	"errors"
	"math"
	"os"
	"testing"
)

func packCount(frame, pixel uint32) uint64 {
	return uint64(frame)<<32 | uint64(pixel)
}

func TestCountStore(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "countstore-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			t.Logf("Error removing temp dir: %v", err)
		}
	}()

	store, err := OpenCountStore(tmpDir)
	if err != nil {
		t.Fatalf("Failed to open CountStore: %v", err)
	}

	testCountStoreMerge(t, store)
	testCountStoreSaturation(t, store)
	testCountStoreMissing(t, store)

	if err := store.Close(); err != nil {
		t.Fatalf("Failed to close store: %v", err)
	}

	testCountStorePersistence(t, tmpDir)
}

func testCountStoreMerge(t *testing.T, store *CountStore) {
	batch := map[uint64]uint16{
		packCount(0, 7):  3,
		packCount(2, 10): 1,
	}
	if err := store.Merge(batch); err != nil {
		t.Errorf("Merge failed: %v", err)
	}
	// A second batch on the same key accumulates.
	if err := store.Merge(map[uint64]uint16{packCount(0, 7): 5}); err != nil {
		t.Errorf("Second merge failed: %v", err)
	}

	count, err := store.Count(0, 7)
	if err != nil {
		t.Errorf("Count failed: %v", err)
	}
	if count != 8 {
		t.Errorf("Count(0, 7) = %d, want 8", count)
	}
}

func testCountStoreSaturation(t *testing.T, store *CountStore) {
	for i := 0; i < 2; i++ {
		if err := store.Merge(map[uint64]uint16{packCount(1, 0): 40000}); err != nil {
			t.Errorf("Merge failed: %v", err)
		}
	}

	count, err := store.Count(1, 0)
	if err != nil {
		t.Errorf("Count failed: %v", err)
	}
	if count != math.MaxUint16 {
		t.Errorf("Count(1, 0) = %d, want saturation at %d", count, math.MaxUint16)
	}
}

func testCountStoreMissing(t *testing.T, store *CountStore) {
	count, err := store.Count(9, 9)
	if err != nil {
		t.Errorf("Count for missing key failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Count for missing key = %d, want 0", count)
	}
}

func testCountStorePersistence(t *testing.T, path string) {
	store, err := OpenCountStore(path)
	if err != nil {
		t.Fatalf("Failed to reopen CountStore: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			t.Logf("Error closing store: %v", err)
		}
	}()

	count, err := store.Count(0, 7)
	if err != nil {
		t.Errorf("Count after reopen failed: %v", err)
	}
	if count != 8 {
		t.Errorf("Count(0, 7) after reopen = %d, want 8", count)
	}
}

func TestCountStoreForEachOrder(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "countstore-order-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			t.Logf("Error removing temp dir: %v", err)
		}
	}()
	store, err := OpenCountStore(tmpDir)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			t.Logf("Error closing store: %v", err)
		}
	}()

	// Scrambled insertion order; the scan must come back frame-major
	// with pixels ascending within each frame.
	batch := map[uint64]uint16{
		packCount(3, 1): 1,
		packCount(0, 9): 2,
		packCount(3, 0): 3,
		packCount(0, 2): 4,
		packCount(1, 5): 5,
	}
	if err := store.Merge(batch); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	type entry struct {
		frame, pixel uint32
		count        uint16
	}
	want := []entry{
		{0, 2, 4},
		{0, 9, 2},
		{1, 5, 5},
		{3, 0, 3},
		{3, 1, 1},
	}

	var got []entry
	err = store.ForEach(func(frame, pixel uint32, count uint16) error {
		got = append(got, entry{frame, pixel, count})
		return nil
	})
	if err != nil {
		t.Fatalf("ForEach failed: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("ForEach visited %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	// Callback errors must abort the scan and surface to the caller.
	wantErr := errors.New("stop")
	err = store.ForEach(func(frame, pixel uint32, count uint16) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("ForEach error = %v, want %v", err, wantErr)
	}
}

func BenchmarkCountStoreMerge(b *testing.B) {
	tmpDir, err := os.MkdirTemp("", "countstore-bench-*")
	if err != nil {
		b.Fatalf("Failed to create temp dir: %v", err)
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			b.Logf("Error removing temp dir: %v", err)
		}
	}()
	store, err := OpenCountStore(tmpDir)
	if err != nil {
		b.Fatalf("Failed to open store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			b.Logf("Error closing store: %v", err)
		}
	}()

	batch := make(map[uint64]uint16, 1000)
	for i := 0; i < 1000; i++ {
		batch[packCount(uint32(i%32), uint32(i))] = uint16(i%100) + 1
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := store.Merge(batch); err != nil {
			b.Fatalf("Merge failed: %v", err)
		}
	}
}
