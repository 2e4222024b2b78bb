package database

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by Get when the key is absent, mirroring
// leveldb's/badger's not-found sentinel so callers can branch on it.
var ErrNotFound = errors.New("database: key not found")

// MemDatabase is an in-memory Database, used for ephemeral nodes and
// tests — the same role as the teacher's MemDatabase referenced from
// node.ServiceContext.OpenDatabase.
type MemDatabase struct {
	mu sync.RWMutex
	db map[string][]byte
}

// NewMemDatabase returns an empty in-memory database.
func NewMemDatabase() *MemDatabase {
	return &MemDatabase{db: make(map[string][]byte)}
}

func (m *MemDatabase) Has(key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.db[string(key)]
	return ok, nil
}

func (m *MemDatabase) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.db[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *MemDatabase) Put(key []byte, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	m.db[string(key)] = cp
	return nil
}

func (m *MemDatabase) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.db, string(key))
	return nil
}

func (m *MemDatabase) Close() {}

func (m *MemDatabase) NewBatch() Batch {
	return &memBatch{parent: m}
}

type memBatchOp struct {
	key     []byte
	value   []byte
	deleted bool
}

type memBatch struct {
	parent *MemDatabase
	ops    []memBatchOp
	size   int
}

func (b *memBatch) Put(key, value []byte) error {
	b.ops = append(b.ops, memBatchOp{key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
	b.size += len(key) + len(value)
	return nil
}

func (b *memBatch) Delete(key []byte) error {
	b.ops = append(b.ops, memBatchOp{key: append([]byte(nil), key...), deleted: true})
	b.size += len(key)
	return nil
}

func (b *memBatch) Write() error {
	b.parent.mu.Lock()
	defer b.parent.mu.Unlock()
	for _, op := range b.ops {
		if op.deleted {
			delete(b.parent.db, string(op.key))
			continue
		}
		b.parent.db[string(op.key)] = op.value
	}
	return nil
}

func (b *memBatch) Reset() {
	b.ops = b.ops[:0]
	b.size = 0
}

func (b *memBatch) ValueSize() int { return b.size }
