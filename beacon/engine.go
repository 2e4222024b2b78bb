// Package beacon implements the three-phase randomness protocol of
// spec.md §4.4. Grounded on original_source/core-ext/src/epoch.rs for the
// phase bodies and original_source/rpc/src/epoch/{client,server}.rs for
// the InitialRequest/SyncRequest wire shapes; the wake-every-50ms,
// act-at-most-once-per-phase loop shape is modeled on the teacher's
// istanbul consensus/istanbul/core round-state idiom (explicit phase,
// explicit "already acted this round" guard).
package beacon

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"sort"
	"time"

	"github.com/concilium-labs/conciliumd/common"
	"github.com/concilium-labs/conciliumd/drng"
	"github.com/concilium-labs/conciliumd/epoch"
	"github.com/concilium-labs/conciliumd/log"
	"github.com/concilium-labs/conciliumd/registry"
)

// pollInterval is how often the loop re-checks elapsed time within a
// phase window (spec.md §4.4 timing invariants: "wakes every ≤50 ms").
const pollInterval = 50 * time.Millisecond

// Engine drives the three-phase beacon protocol for one node.
type Engine struct {
	Clock    epoch.Clock
	Pool     *epoch.Pool
	IndexMap *epoch.IndexMap
	Registry *registry.Registry
	SelfID   common.NodeID

	log log.Logger

	lastContribute int64
	lastVote       int64
	lastCommit     int64
}

// NewEngine constructs an Engine over the given collaborators.
func NewEngine(clock epoch.Clock, pool *epoch.Pool, idx *epoch.IndexMap, reg *registry.Registry, selfID common.NodeID) *Engine {
	return &Engine{
		Clock:          clock,
		Pool:           pool,
		IndexMap:       idx,
		Registry:       reg,
		SelfID:         selfID,
		log:            log.NewModuleLogger(log.ModuleBeacon),
		lastContribute: -1,
		lastVote:       -1,
		lastCommit:     -1,
	}
}

// Run aligns to the next 12s cycle boundary and then drives the beacon
// loop until ctx is cancelled (spec.md §4.4 timing invariants).
func (e *Engine) Run(ctx context.Context) error {
	now := time.Now()
	boundary := e.Clock.NextCycleBoundary(now)
	timer := time.NewTimer(boundary.Sub(now))
	select {
	case <-timer.C:
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.tick(ctx, time.Now())
		}
	}
}

// tick runs whichever phase body is due, each at most once per cycle.
func (e *Engine) tick(ctx context.Context, now time.Time) {
	cur := e.Clock.Current(now)
	cycle := int64(cur)
	phase := e.Clock.PhaseIndex(now)

	switch phase {
	case 0:
		if e.lastContribute != cycle {
			e.lastContribute = cycle
			e.contribute(ctx, cur)
		}
	case 1:
		if e.lastVote != cycle {
			e.lastVote = cycle
			e.voteHash(ctx, cur)
		}
	case 2:
		if e.lastCommit != cycle {
			e.lastCommit = cycle
			e.commitAndDerive(ctx, cur)
		}
	}
}

// ensureEpochs implements spec.md §4.4 phase 0 step 1: make sure entries
// exist for current+1 and current+2, inheriting last_node_id from the
// nearest present earlier epoch.
func (e *Engine) ensureEpochs(current uint64) {
	r := e.Pool.Reader()
	for _, id := range []uint64{current + 1, current + 2} {
		if _, err := r.Get(id); err == nil {
			continue
		}
		lastNodeID := e.nearestLastNodeID(r, id)
		e.Pool.Insert(epoch.Epoch{
			ID:         id,
			LastNodeID: lastNodeID,
			Hashes:     map[common.Hash256]uint64{},
		})
	}
	e.Pool.Publish()
}

func (e *Engine) nearestLastNodeID(r epoch.Reader, id uint64) common.NodeID {
	for probe := id - 1; probe > 0; probe-- {
		if ep, err := r.Get(probe); err == nil {
			return ep.LastNodeID
		}
		if id-probe > epoch.PoolRetentionBehind+epoch.PoolRetentionAhead {
			break
		}
	}
	return 0
}

// contribute implements spec.md §4.4 phase 0.
func (e *Engine) contribute(ctx context.Context, current uint64) {
	target := current + 1
	e.ensureEpochs(current)

	r, err := cryptoRandUint64()
	if err != nil {
		e.log.Error("failed to draw local random contribution", "err", err)
		return
	}

	reader := e.Pool.Reader()
	ep, err := reader.Get(target)
	if err != nil {
		e.log.Error("contribute: epoch missing after ensureEpochs", "epoch", target, "err", err)
		return
	}
	ep = ep.Clone()
	ep.RandomNumbers = append(ep.RandomNumbers, r)
	e.Pool.Update(ep)
	e.Pool.Publish()

	e.Registry.ForEach(func(n *registry.ActiveNode) {
		if err := n.Streams.Epoch().InitialRequest(ctx, target, r); err != nil {
			e.log.Warn("InitialRequest fanout failed", "peer", n.Descriptor.ID, "err", err)
		}
	})
}

// voteHash implements spec.md §4.4 phase 1.
func (e *Engine) voteHash(ctx context.Context, current uint64) {
	target := current + 1
	reader := e.Pool.Reader()
	ep, err := reader.Get(target)
	if err != nil {
		e.log.Error("voteHash: epoch missing", "epoch", target, "err", err)
		return
	}
	h := HashRandomNumbers(ep.RandomNumbers)

	ep = ep.Clone()
	ep.Hashes[h]++
	e.Pool.Update(ep)
	e.Pool.Publish()

	e.Registry.ForEach(func(n *registry.ActiveNode) {
		if err := n.Streams.Epoch().SyncRequest(ctx, target, h); err != nil {
			e.log.Warn("SyncRequest fanout failed", "peer", n.Descriptor.ID, "err", err)
		}
	})
}

// commitAndDerive implements spec.md §4.4 phase 2.
func (e *Engine) commitAndDerive(ctx context.Context, current uint64) {
	target := current + 1
	reader := e.Pool.Reader()
	ep, err := reader.Get(target)
	if err != nil {
		e.log.Error("commitAndDerive: epoch missing", "epoch", target, "err", err)
		return
	}

	hStar := PluralityWinner(ep.Hashes)

	ep = ep.Clone()
	ep.FinalHash = hStar
	e.Pool.Update(ep)
	e.Pool.Publish()

	perm, err := drng.Draw(hStar, uint64(ep.LastNodeID), uint64(ep.LastNodeID))
	if err != nil {
		e.log.Error("commitAndDerive: failed to derive permutation", "epoch", target, "err", err)
		return
	}
	mapping := make(epoch.Permutation, len(perm))
	for i, nodeID := range perm {
		mapping[uint64(i+1)] = common.NodeID(nodeID)
	}
	e.IndexMap.Set(target, mapping)
	e.IndexMap.Publish()

	if current > epoch.IndexMapRetentionBehind+1 {
		e.IndexMap.EvictBefore(current - epoch.IndexMapRetentionBehind - 1)
	}
	if current > epoch.PoolRetentionBehind+1 {
		e.Pool.EvictBefore(current - epoch.PoolRetentionBehind - 1)
	}
}

// HashRandomNumbers implements spec.md §4.4 phase 1 step 1: sort ascending,
// binary-encode, SHA-256.
func HashRandomNumbers(randoms []uint64) common.Hash256 {
	sorted := append([]uint64(nil), randoms...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	buf := make([]byte, 8*len(sorted))
	for i, r := range sorted {
		binary.BigEndian.PutUint64(buf[i*8:i*8+8], r)
	}
	return common.SHA256(buf)
}

// PluralityWinner implements spec.md §4.4 phase 2 step 1: the hash with
// the highest vote count, ties broken by lexicographically smallest hash.
// An empty vote set yields the all-zero fallback hash.
func PluralityWinner(hashes map[common.Hash256]uint64) common.Hash256 {
	var winner common.Hash256
	var winnerCount uint64
	first := true
	for h, count := range hashes {
		if first || count > winnerCount || (count == winnerCount && h.Less(winner)) {
			winner = h
			winnerCount = count
			first = false
		}
	}
	return winner
}

func cryptoRandUint64() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

// OnInitialRequest handles a peer-received InitialRequest (spec.md §4.4
// "Peer-received contributions"): accepted iff epochID == current+1.
func (e *Engine) OnInitialRequest(current uint64, epochID uint64, r uint64) bool {
	if epochID != current+1 {
		return false
	}
	reader := e.Pool.Reader()
	ep, err := reader.Get(epochID)
	if err != nil {
		return false
	}
	ep = ep.Clone()
	ep.RandomNumbers = append(ep.RandomNumbers, r)
	e.Pool.Update(ep)
	e.Pool.Publish()
	return true
}

// OnSyncRequest handles a peer-received SyncRequest.
func (e *Engine) OnSyncRequest(current uint64, epochID uint64, h common.Hash256) bool {
	if epochID != current+1 {
		return false
	}
	reader := e.Pool.Reader()
	ep, err := reader.Get(epochID)
	if err != nil {
		return false
	}
	ep = ep.Clone()
	ep.Hashes[h]++
	e.Pool.Update(ep)
	e.Pool.Publish()
	return true
}
