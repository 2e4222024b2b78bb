// Adapted from the teacher's storage/database/leveldb_database.go: same
// constructor shape and option defaults, trimmed of the block/header/
// receipt compaction meters this chain has no use for, and re-pointed at
// this package's smaller Database/Batch interfaces.
package database

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/concilium-labs/conciliumd/log"
)

// OpenFileLimit mirrors the teacher's default handle ceiling.
var OpenFileLimit = 64

type levelDB struct {
	fn  string
	db  *leveldb.DB
	log log.Logger
}

func ldbOptions(cacheMB, numHandles int) *opt.Options {
	return &opt.Options{
		OpenFilesCacheCapacity: numHandles,
		BlockCacheCapacity:     cacheMB / 2 * opt.MiB,
		WriteBuffer:            cacheMB / 4 * opt.MiB,
		Filter:                 filter.NewBloomFilter(10),
	}
}

// NewLevelDBDatabase opens (or creates) a LevelDB store at file, matching
// the teacher's NewLDBDatabase call shape.
func NewLevelDBDatabase(file string, cacheMB, numHandles int) (Database, error) {
	logger := log.New("database", file, "backend", "leveldb")
	if cacheMB < 16 {
		cacheMB = 16
	}
	if numHandles < 16 {
		numHandles = 16
	}
	logger.Info("opening leveldb", "cacheMB", cacheMB, "handles", numHandles)

	db, err := leveldb.OpenFile(file, ldbOptions(cacheMB, numHandles))
	if _, corrupted := err.(*errors.ErrCorrupted); corrupted {
		db, err = leveldb.RecoverFile(file, nil)
	}
	if err != nil {
		return nil, err
	}
	return &levelDB{fn: file, db: db, log: logger}, nil
}

func (l *levelDB) Has(key []byte) (bool, error) {
	return l.db.Has(key, nil)
}

func (l *levelDB) Get(key []byte) ([]byte, error) {
	v, err := l.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	return v, err
}

func (l *levelDB) Put(key, value []byte) error {
	return l.db.Put(key, value, nil)
}

func (l *levelDB) Delete(key []byte) error {
	return l.db.Delete(key, nil)
}

func (l *levelDB) Close() {
	if err := l.db.Close(); err != nil {
		l.log.Error("failed to close leveldb", "err", err)
	} else {
		l.log.Info("database closed")
	}
}

func (l *levelDB) NewBatch() Batch {
	return &levelDBBatch{db: l.db, b: new(leveldb.Batch)}
}

type levelDBBatch struct {
	db   *leveldb.DB
	b    *leveldb.Batch
	size int
}

func (b *levelDBBatch) Put(key, value []byte) error {
	b.b.Put(key, value)
	b.size += len(key) + len(value)
	return nil
}

func (b *levelDBBatch) Delete(key []byte) error {
	b.b.Delete(key)
	b.size += len(key)
	return nil
}

func (b *levelDBBatch) Write() error {
	return b.db.Write(b.b, nil)
}

func (b *levelDBBatch) Reset() {
	b.b.Reset()
	b.size = 0
}

func (b *levelDBBatch) ValueSize() int { return b.size }
