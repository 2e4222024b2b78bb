// Adapted from the teacher's storage/database/badger_database.go: same
// directory-bootstrap and periodic value-log GC shape, trimmed to this
// package's Database/Batch interfaces.
package database

import (
	"os"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/pkg/errors"

	"github.com/concilium-labs/conciliumd/log"
)

const (
	gcThreshold      = int64(1 << 30) // 1 GiB
	sizeGCTickerTime = time.Minute
)

type badgerDB struct {
	fn       string
	db       *badger.DB
	gcTicker *time.Ticker
	log      log.Logger
}

// NewBadgerDatabase opens (or creates) a Badger store at dir, matching the
// teacher's NewBadgerDB directory-bootstrap behavior.
func NewBadgerDatabase(dir string) (Database, error) {
	logger := log.New("database", dir, "backend", "badger")

	if fi, err := os.Stat(dir); err == nil {
		if !fi.IsDir() {
			return nil, errors.Errorf("database: %s exists and is not a directory", dir)
		}
	} else if os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, "database: creating badger dir %s", dir)
		}
	} else {
		return nil, errors.Wrapf(err, "database: checking badger dir %s", dir)
	}

	opts := badger.DefaultOptions
	opts.Dir = dir
	opts.ValueDir = dir

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "database: opening badger at %s", dir)
	}

	bg := &badgerDB{
		fn:       dir,
		db:       db,
		log:      logger,
		gcTicker: time.NewTicker(sizeGCTickerTime),
	}
	go bg.runValueLogGC()
	return bg, nil
}

func (bg *badgerDB) runValueLogGC() {
	_, lastSize := bg.db.Size()
	for range bg.gcTicker.C {
		_, curSize := bg.db.Size()
		if curSize-lastSize < gcThreshold {
			continue
		}
		if err := bg.db.RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
			bg.log.Warn("badger value log gc failed", "err", err)
			continue
		}
		_, lastSize = bg.db.Size()
	}
}

func (bg *badgerDB) Has(key []byte) (bool, error) {
	var found bool
	err := bg.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

func (bg *badgerDB) Get(key []byte) ([]byte, error) {
	var out []byte
	err := bg.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = append([]byte(nil), val...)
			return nil
		})
	})
	return out, err
}

func (bg *badgerDB) Put(key, value []byte) error {
	return bg.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (bg *badgerDB) Delete(key []byte) error {
	return bg.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (bg *badgerDB) Close() {
	bg.gcTicker.Stop()
	if err := bg.db.Close(); err != nil {
		bg.log.Error("failed to close badger", "err", err)
	} else {
		bg.log.Info("database closed")
	}
}

func (bg *badgerDB) NewBatch() Batch {
	return &badgerBatch{db: bg.db, wb: bg.db.NewWriteBatch()}
}

type badgerBatch struct {
	db   *badger.DB
	wb   *badger.WriteBatch
	size int
}

func (b *badgerBatch) Put(key, value []byte) error {
	b.size += len(key) + len(value)
	return b.wb.Set(key, value, 0)
}

func (b *badgerBatch) Delete(key []byte) error {
	b.size += len(key)
	return b.wb.Delete(key)
}

func (b *badgerBatch) Write() error {
	return b.wb.Flush()
}

func (b *badgerBatch) Reset() {
	b.wb.Cancel()
	b.wb = b.db.NewWriteBatch()
	b.size = 0
}

func (b *badgerBatch) ValueSize() int { return b.size }
