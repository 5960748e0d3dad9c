package utils

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/dgraph-io/badger/v4"
)

// CountStore is a disk-backed saturating counter keyed by (frame,
// pixel). It bounds the memory of the aggregation pass on planet-scale
// inputs: the in-memory map is merged in and cleared whenever it grows
// too large, and the final frame sequence is rebuilt from an ordered
// scan. Keys are big-endian frame then pixel, so iteration is
// frame-major ascending.
type CountStore struct {
	db *badger.DB
}

func OpenCountStore(path string) (*CountStore, error) {
	opts := badger.DefaultOptions(path)
	// Decrease logging verbosity
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &CountStore{db: db}, nil
}

func (s *CountStore) Close() error {
	return s.db.Close()
}

// Merge folds a batch of packed (frame<<32|pixel) counts into the
// store, clamping every total at math.MaxUint16. The clamp makes
// merging idempotent at the cap regardless of batch order.
func (s *CountStore) Merge(counts map[uint64]uint16) error {
	txn := s.db.NewTransaction(true)
	defer func() { txn.Discard() }()

	for packed, add := range counts {
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, packed)

		total := uint32(add)
		item, err := txn.Get(key)
		switch {
		case err == nil:
			err = item.Value(func(v []byte) error {
				total += uint32(binary.BigEndian.Uint16(v))
				return nil
			})
			if err != nil {
				return err
			}
		case errors.Is(err, badger.ErrKeyNotFound):
		default:
			return err
		}
		if total > math.MaxUint16 {
			total = math.MaxUint16
		}

		val := make([]byte, 2)
		binary.BigEndian.PutUint16(val, uint16(total))

		if err := txn.Set(key, val); errors.Is(err, badger.ErrTxnTooBig) {
			if err := txn.Commit(); err != nil {
				return err
			}
			txn = s.db.NewTransaction(true)
			if err := txn.Set(key, val); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
	}
	return txn.Commit()
}

// Count reads one counter; missing keys read as zero.
func (s *CountStore) Count(frame, pixel uint32) (uint16, error) {
	key := make([]byte, 8)
	binary.BigEndian.PutUint32(key, frame)
	binary.BigEndian.PutUint32(key[4:], pixel)

	var count uint16
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			count = binary.BigEndian.Uint16(v)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	return count, err
}

// ForEach scans every counter in frame-major, pixel-ascending order.
func (s *CountStore) ForEach(fn func(frame, pixel uint32, count uint16) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			k := item.Key()
			frame := binary.BigEndian.Uint32(k[:4])
			pixel := binary.BigEndian.Uint32(k[4:])
			err := item.Value(func(v []byte) error {
				return fn(frame, pixel, binary.BigEndian.Uint16(v))
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}
