package epoch

import (
	"sync"
	"sync/atomic"

	"github.com/concilium-labs/conciliumd/cerrors"
	"github.com/concilium-labs/conciliumd/common"
)

// PoolRetentionBehind and PoolRetentionAhead bound EpochPool.keys() to
// [current-47, current+2], per spec.md §3/§6 (48-cycle retention).
const (
	PoolRetentionBehind = 47
	PoolRetentionAhead  = 2
)

// Epoch is the per-epoch accumulator of spec.md §3.
type Epoch struct {
	ID            uint64
	LastNodeID    common.NodeID
	FinalHash     common.Hash256
	RandomNumbers []uint64
	Hashes        map[common.Hash256]uint64
}

// Clone deep-copies the epoch so a writer's in-flight mutation never
// aliases a published snapshot (readers must never observe torn state —
// spec.md invariant 5).
func (e Epoch) Clone() Epoch {
	out := Epoch{ID: e.ID, LastNodeID: e.LastNodeID, FinalHash: e.FinalHash}
	out.RandomNumbers = append([]uint64(nil), e.RandomNumbers...)
	out.Hashes = make(map[common.Hash256]uint64, len(e.Hashes))
	for k, v := range e.Hashes {
		out.Hashes[k] = v
	}
	return out
}

// Pool is the concurrent sliding-window map of spec.md §4.3: a single
// writer stages updates into a working copy, Publish() atomically swaps
// the copy readers observe via atomic.Pointer, so readers never block
// writers and never observe a partial update.
type Pool struct {
	mu      sync.Mutex          // serializes writer-side mutations
	staged  map[uint64]Epoch    // writer's working copy
	current atomic.Pointer[map[uint64]Epoch]
}

// NewPool returns an empty Pool.
func NewPool() *Pool {
	p := &Pool{staged: make(map[uint64]Epoch)}
	empty := map[uint64]Epoch{}
	p.current.Store(&empty)
	return p
}

// Insert stages a new epoch entry. Not visible to readers until Publish.
func (p *Pool) Insert(e Epoch) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.staged[e.ID] = e
}

// Update replaces an existing staged epoch entry (same semantics as
// Insert — both just set the map key; kept as a distinct method name to
// mirror spec.md §4.3's named operations).
func (p *Pool) Update(e Epoch) {
	p.Insert(e)
}

// Remove stages the eviction of an epoch id.
func (p *Pool) Remove(id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.staged, id)
}

// Publish atomically swaps the published snapshot for the current staged
// contents. Readers obtained before or after a call to Publish each see a
// fully consistent map — never a torn mix of old and new entries.
func (p *Pool) Publish() {
	p.mu.Lock()
	snapshot := make(map[uint64]Epoch, len(p.staged))
	for k, v := range p.staged {
		snapshot[k] = v.Clone()
	}
	p.mu.Unlock()
	p.current.Store(&snapshot)
}

// EvictBefore stages removal of all entries with id <= threshold and
// publishes immediately, matching the beacon engine's phase-2 eviction
// step (spec.md §4.4 phase 2, step 4).
func (p *Pool) EvictBefore(threshold uint64) {
	p.mu.Lock()
	for id := range p.staged {
		if id <= threshold {
			delete(p.staged, id)
		}
	}
	p.mu.Unlock()
	p.Publish()
}

// Reader is a cheap read-only handle over the most recently published
// snapshot.
type Reader struct {
	pool *Pool
}

// Reader returns a reader factory handle for the pool.
func (p *Pool) Reader() Reader {
	return Reader{pool: p}
}

// Get returns the published Epoch for id, or cerrors KindStaleEpoch if the
// id has been evicted or never inserted (spec.md §4.3).
func (r Reader) Get(id uint64) (Epoch, error) {
	snap := *r.pool.current.Load()
	e, ok := snap[id]
	if !ok {
		return Epoch{}, cerrors.E("epoch.Pool.Get", cerrors.KindStaleEpoch, nil)
	}
	return e, nil
}

// Keys returns the set of published epoch ids.
func (r Reader) Keys() []uint64 {
	snap := *r.pool.current.Load()
	out := make([]uint64, 0, len(snap))
	for id := range snap {
		out = append(out, id)
	}
	return out
}

// Len returns the number of published entries.
func (r Reader) Len() int {
	return len(*r.pool.current.Load())
}
