package state

import (
	"errors"

	"paylane/storage"
)

// Txn is a copy-on-write overlay over a Database. Reads fall through to the
// backend until a key is written; writes are buffered until Commit. Discarded
// transactions leave the backend untouched, which is what makes each ledger
// operation all-or-nothing.
type Txn struct {
	db     storage.Database
	writes map[string][]byte
}

// NewTxn starts an overlay transaction on top of db.
func NewTxn(db storage.Database) *Txn {
	return &Txn{db: db, writes: make(map[string][]byte)}
}

// Get returns the buffered value when present, otherwise reads through.
func (t *Txn) Get(key []byte) ([]byte, error) {
	if value, ok := t.writes[string(key)]; ok {
		return append([]byte(nil), value...), nil
	}
	return t.db.Get(key)
}

// Put buffers a write until Commit.
func (t *Txn) Put(key, value []byte) error {
	t.writes[string(key)] = append([]byte(nil), value...)
	return nil
}

// Has reports key presence across the overlay and the backend.
func (t *Txn) Has(key []byte) (bool, error) {
	if _, ok := t.writes[string(key)]; ok {
		return true, nil
	}
	_, err := t.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Commit flushes the buffered writes to the backend. The caller serializes
// operations, so no concurrent writer can interleave with the flush.
func (t *Txn) Commit() error {
	for key, value := range t.writes {
		if err := t.db.Put([]byte(key), value); err != nil {
			return err
		}
	}
	t.writes = make(map[string][]byte)
	return nil
}
