package contentstore

import (
	"encoding/binary"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// metaStore tracks repository-local bookkeeping in badger: which root
// identifiers are pinned, and per-block size records used for stats.
type metaStore struct {
	db *badger.DB
}

var (
	pinPrefix   = []byte("pin/")
	blockPrefix = []byte("block/")
)

func openMetaStore(dir string) (*metaStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening datastore: %w", err)
	}
	return &metaStore{db: db}, nil
}

func (m *metaStore) Close() error {
	return m.db.Close()
}

func (m *metaStore) SetPin(id string) error {
	err := m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(append(pinPrefix, id...), nil)
	})
	if err != nil {
		return fmt.Errorf("recording pin for %s: %w", id, err)
	}
	return nil
}

func (m *metaStore) RemovePin(id string) error {
	err := m.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(append(pinPrefix, id...))
	})
	if err != nil {
		return fmt.Errorf("removing pin for %s: %w", id, err)
	}
	return nil
}

func (m *metaStore) IsPinned(id string) (bool, error) {
	var pinned bool
	err := m.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(append(pinPrefix, id...))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		pinned = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("checking pin for %s: %w", id, err)
	}
	return pinned, nil
}

// RecordBlock notes a locally stored block and its plaintext size.
// Recording the same block twice overwrites with the same value.
func (m *metaStore) RecordBlock(id string, size int64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(size))
	err := m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(append(blockPrefix, id...), buf)
	})
	if err != nil {
		return fmt.Errorf("recording block %s: %w", id, err)
	}
	return nil
}

// BlockStats returns the count and total plaintext bytes of recorded blocks.
func (m *metaStore) BlockStats() (count int64, bytes int64, err error) {
	err = m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = blockPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(blockPrefix); it.ValidForPrefix(blockPrefix); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			if len(val) == 8 {
				bytes += int64(binary.BigEndian.Uint64(val))
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("scanning block records: %w", err)
	}
	return count, bytes, nil
}

// PinCount returns the number of pinned root identifiers.
func (m *metaStore) PinCount() (int64, error) {
	var count int64
	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = pinPrefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(pinPrefix); it.ValidForPrefix(pinPrefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scanning pins: %w", err)
	}
	return count, nil
}
