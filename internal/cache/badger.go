package cache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Badger is a durable response cache backed by BadgerDB, using the
// store's native per-key TTL instead of the lazy/active expiry the
// in-memory Memory cache implements by hand.
type Badger struct {
	db *badger.DB
}

// NewBadgerCache opens (or creates) a BadgerDB cache at path.
func NewBadgerCache(path string) (*Badger, error) {
	opts := badger.DefaultOptions(path)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("cache: open badger at %s: %w", path, err)
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Get(hash string) ([]byte, bool) {
	var payload []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(hash))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			payload = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, false
	}
	return payload, true
}

func (b *Badger) Set(hash string, payload []byte, ttlMS int64) {
	_ = b.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(hash), payload)
		if ttlMS >= 0 {
			e = e.WithTTL(time.Duration(ttlMS) * time.Millisecond)
		}
		return txn.SetEntry(e)
	})
}

func (b *Badger) Close() error { return b.db.Close() }
