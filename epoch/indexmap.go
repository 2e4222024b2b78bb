package epoch

import (
	"sync"
	"sync/atomic"

	"github.com/concilium-labs/conciliumd/cerrors"
	"github.com/concilium-labs/conciliumd/common"
)

// IndexMapRetentionBehind and IndexMapRetentionAhead bound
// TemporaryIndexMap.keys() to [current-48, current+1] per spec.md §3/§6
// (49-cycle retention).
const (
	IndexMapRetentionBehind = 48
	IndexMapRetentionAhead  = 1
)

// Permutation is the per-epoch positional mapping {1..N -> NodeID} derived
// from the epoch's finalized seed (spec.md §3).
type Permutation map[uint64]common.NodeID

func (p Permutation) clone() Permutation {
	out := make(Permutation, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// IndexMap is the TemporaryIndexMap of spec.md §3/§4.4, using the same
// stage-then-publish double-buffer as Pool.
type IndexMap struct {
	mu      sync.Mutex
	staged  map[uint64]Permutation
	current atomic.Pointer[map[uint64]Permutation]
}

// NewIndexMap returns an empty IndexMap.
func NewIndexMap() *IndexMap {
	m := &IndexMap{staged: make(map[uint64]Permutation)}
	empty := map[uint64]Permutation{}
	m.current.Store(&empty)
	return m
}

// Set stages the permutation for epochID.
func (m *IndexMap) Set(epochID uint64, perm Permutation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staged[epochID] = perm
}

// Publish atomically swaps the published snapshot.
func (m *IndexMap) Publish() {
	m.mu.Lock()
	snapshot := make(map[uint64]Permutation, len(m.staged))
	for k, v := range m.staged {
		snapshot[k] = v.clone()
	}
	m.mu.Unlock()
	m.current.Store(&snapshot)
}

// EvictBefore stages removal of entries with id <= threshold and
// publishes immediately (spec.md §4.4 phase 2, step 4).
func (m *IndexMap) EvictBefore(threshold uint64) {
	m.mu.Lock()
	for id := range m.staged {
		if id <= threshold {
			delete(m.staged, id)
		}
	}
	m.mu.Unlock()
	m.Publish()
}

// IndexMapReader is a cheap read-only handle over the most recently
// published snapshot.
type IndexMapReader struct {
	m *IndexMap
}

// Reader returns a reader factory handle.
func (m *IndexMap) Reader() IndexMapReader {
	return IndexMapReader{m: m}
}

// Get returns the published permutation for epochID, or cerrors
// KindStaleEpoch if absent.
func (r IndexMapReader) Get(epochID uint64) (Permutation, error) {
	snap := *r.m.current.Load()
	p, ok := snap[epochID]
	if !ok {
		return nil, cerrors.E("epoch.IndexMap.Get", cerrors.KindStaleEpoch, nil)
	}
	return p, nil
}

// Keys returns the set of published epoch ids.
func (r IndexMapReader) Keys() []uint64 {
	snap := *r.m.current.Load()
	out := make([]uint64, 0, len(snap))
	for id := range snap {
		out = append(out, id)
	}
	return out
}
