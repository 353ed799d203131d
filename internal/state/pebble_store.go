package state

import (
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
)

// PebbleStore implements Store using PebbleDB.
type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(dir string) (*PebbleStore, error) {
	opts := &pebble.Options{
		// Records are small and few; keep the footprint of a phone-sized store.
		MemTableSize:          4 << 20,
		L0CompactionThreshold: 4,
		L0StopWritesThreshold: 8,
	}
	d, err := pebble.Open(filepath.Clean(dir), opts)
	if err != nil {
		return nil, errors.Wrap(err, "pebble open")
	}
	return &PebbleStore{db: d}, nil
}

func (p *PebbleStore) Close() error { return p.db.Close() }

func (p *PebbleStore) Get(key string) (string, bool, error) {
	v, closer, err := p.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "pebble get %s", key)
	}
	defer closer.Close()
	return string(v), true, nil
}

// Set syncs the WAL so a record survives an app kill right after the write.
func (p *PebbleStore) Set(key string, value string) error {
	if err := p.db.Set([]byte(key), []byte(value), pebble.Sync); err != nil {
		return errors.Wrapf(err, "pebble set %s", key)
	}
	return nil
}

func (p *PebbleStore) Remove(key string) error {
	if err := p.db.Delete([]byte(key), pebble.Sync); err != nil {
		return errors.Wrapf(err, "pebble delete %s", key)
	}
	return nil
}

func (p *PebbleStore) ClearAll() error {
	return p.LoadAll(nil)
}

func (p *PebbleStore) Range(fn func(key string, value string) error) error {
	it, err := p.db.NewIter(nil)
	if err != nil {
		return errors.Wrap(err, "pebble iter")
	}
	defer it.Close()
	for it.First(); it.Valid(); it.Next() {
		k := string(it.Key())
		v := string(it.Value())
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return it.Error()
}

// LoadAll replaces every key with the contents of all in one batch.
func (p *PebbleStore) LoadAll(all map[string]string) error {
	var toDelete [][]byte
	it, err := p.db.NewIter(nil)
	if err != nil {
		return errors.Wrap(err, "pebble iter")
	}
	for it.First(); it.Valid(); it.Next() {
		toDelete = append(toDelete, append([]byte(nil), it.Key()...))
	}
	if err := it.Close(); err != nil {
		return errors.Wrap(err, "pebble iter close")
	}

	wb := p.db.NewBatch()
	defer wb.Close()
	for _, k := range toDelete {
		if err := wb.Delete(k, nil); err != nil {
			return errors.Wrap(err, "pebble batch delete")
		}
	}
	for k, v := range all {
		if err := wb.Set([]byte(k), []byte(v), nil); err != nil {
			return errors.Wrap(err, "pebble batch set")
		}
	}
	if err := wb.Commit(pebble.Sync); err != nil {
		return errors.Wrap(err, "pebble batch commit")
	}
	return nil
}
