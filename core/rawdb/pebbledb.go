package rawdb

import (
	"path/filepath"

	"github.com/cockroachdb/pebble"
	"github.com/gofrs/flock"

	"github.com/aitbc-network/chain-node/log"
)

var pebbleLog = log.New("rawdb.pebble")

// pebbleDatabase is the durable ordered KV backend of spec.md §4.1,
// backed by github.com/cockroachdb/pebble, the same engine the teacher
// itself depends on. The data directory is locked for the process lifetime
// via github.com/gofrs/flock, the same way the teacher locks its instance
// directory.
type pebbleDatabase struct {
	db   *pebble.DB
	lock *flock.Flock
}

// NewPebbleDatabase opens (creating if necessary) a durable database rooted
// at dir.
func NewPebbleDatabase(dir string) (KeyValueStore, error) {
	lockPath := filepath.Join(dir, "LOCK")
	fl := flock.New(lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, errAlreadyLocked
	}

	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		fl.Unlock()
		return nil, err
	}
	pebbleLog.Info("opened durable store", "dir", dir)
	return &pebbleDatabase{db: db, lock: fl}, nil
}

var errAlreadyLocked = lockedError{}

type lockedError struct{}

func (lockedError) Error() string { return "rawdb: data directory already locked by another process" }

func (db *pebbleDatabase) Has(key []byte) (bool, error) {
	_, closer, err := db.db.Get(key)
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	closer.Close()
	return true, nil
}

func (db *pebbleDatabase) Get(key []byte) ([]byte, error) {
	v, closer, err := db.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(v))
	copy(out, v)
	closer.Close()
	return out, nil
}

func (db *pebbleDatabase) Put(key, value []byte) error {
	return db.db.Set(key, value, pebble.Sync)
}

func (db *pebbleDatabase) Delete(key []byte) error {
	return db.db.Delete(key, pebble.Sync)
}

func (db *pebbleDatabase) Close() error {
	defer db.lock.Unlock()
	return db.db.Close()
}

func (db *pebbleDatabase) NewBatch() Batch {
	return &pebbleBatch{db: db.db, batch: db.db.NewBatch()}
}

type pebbleBatch struct {
	db    *pebble.DB
	batch *pebble.Batch
}

func (b *pebbleBatch) Put(key, value []byte) error {
	return b.batch.Set(key, value, nil)
}

func (b *pebbleBatch) Delete(key []byte) error {
	return b.batch.Delete(key, nil)
}

func (b *pebbleBatch) Commit() error {
	return b.batch.Commit(pebble.Sync)
}

func (b *pebbleBatch) Reset() {
	b.batch.Reset()
}

func (db *pebbleDatabase) NewIterator(prefix []byte) Iterator {
	upper := upperBound(prefix)
	it, _ := db.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	it.First()
	return &pebbleIterator{it: it, started: true, valid: it.Valid()}
}

// upperBound returns the smallest key greater than every key with the given
// prefix, bounding a prefix scan in Pebble's range-iterator API.
func upperBound(prefix []byte) []byte {
	if len(prefix) == 0 {
		return nil
	}
	upper := make([]byte, len(prefix))
	copy(upper, prefix)
	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper[:i+1]
		}
	}
	return nil // prefix was all 0xff
}

type pebbleIterator struct {
	it      *pebble.Iterator
	started bool
	valid   bool
}

func (it *pebbleIterator) Next() bool {
	if it.started {
		it.started = false
		return it.valid
	}
	it.valid = it.it.Next()
	return it.valid
}

func (it *pebbleIterator) Key() []byte {
	k := it.it.Key()
	out := make([]byte, len(k))
	copy(out, k)
	return out
}

func (it *pebbleIterator) Value() []byte {
	v := it.it.Value()
	out := make([]byte, len(v))
	copy(out, v)
	return out
}

func (it *pebbleIterator) Release() { it.it.Close() }
