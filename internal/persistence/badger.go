package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

const recordKeyPrefix = "req:"

// Badger is a durable persistence controller backed by BadgerDB,
// storing each Record as its own JSON-encoded key so Rgetall can
// recover the full in-flight request set after a crash without
// holding the whole table in memory between writes.
type Badger struct {
	db *badger.DB
}

func NewBadgerController(path string) (*Badger, error) {
	db, err := badger.Open(badger.DefaultOptions(path))
	if err != nil {
		return nil, fmt.Errorf("persistence: open badger at %s: %w", path, err)
	}
	return &Badger{db: db}, nil
}

func recordKey(rid string) []byte {
	return append([]byte(recordKeyPrefix), rid...)
}

func (b *Badger) Rset(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("persistence: marshal record %s: %w", rec.RID, err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(rec.RID), data)
	})
}

func (b *Badger) Rdel(ctx context.Context, rid string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(recordKey(rid))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

func (b *Badger) Rget(ctx context.Context, rid string) (Record, bool, error) {
	var rec Record
	found := false
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(rid))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return Record{}, false, fmt.Errorf("persistence: rget %s: %w", rid, err)
	}
	return rec, found, nil
}

func (b *Badger) Rgetall(ctx context.Context) ([]Record, error) {
	var out []Record
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			if err := item.Value(func(val []byte) error {
				var rec Record
				if err := json.Unmarshal(val, &rec); err != nil {
					return err
				}
				out = append(out, rec)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("persistence: rgetall: %w", err)
	}
	return out, nil
}

func (b *Badger) Close() error { return b.db.Close() }
