// Package committee implements the deterministic Committee Selector of
// spec.md §4.5: given a transaction and the current epoch state, it
// derives the leader, accreditation council, and broadcast set purely
// from public inputs — no network calls, identical output on every peer
// (spec.md §8 property 2). Grounded on
// original_source/jrpc/src/send_raw_transaction.rs (nnr sizing and the
// k_prev/k_cur/k_tx split) and the teacher's istanbul ValidatorSet
// sub-list naming (consensus/istanbul/validator.go), adapted from a
// contiguous sub-list to an expanding deterministic draw.
package committee

import (
	"math"

	"github.com/concilium-labs/conciliumd/cerrors"
	"github.com/concilium-labs/conciliumd/common"
	"github.com/concilium-labs/conciliumd/drng"
	"github.com/concilium-labs/conciliumd/epoch"
	"github.com/concilium-labs/conciliumd/ledger"
)

// Tunables from spec.md §6.
const (
	MinNNR         = 128
	MaxBroadcast   = 128
	BroadcastRatio = 0.10
	NTP            = 500.0
	StakedPerNode  = 500.0
)

// Selection is the pure output of Selector.Select: identical
// inputs on different peers must yield an identical Selection (spec.md §8
// property 2).
type Selection struct {
	EpochID         uint64
	LeaderID        common.NodeID
	LeaderIsSelf    bool
	Council         []common.NodeID
	SelfOnCommittee bool
	Broadcast       []common.NodeID
}

// ActiveCount reports how many nodes (including self) are available for
// committee sizing.
type ActiveCount func() uint64

// Selector selects leader/council/broadcast sets against published epoch
// and permutation snapshots.
type Selector struct {
	Epochs      epoch.Reader
	Permutation epoch.IndexMapReader
	SelfID      common.NodeID
	ActiveCount ActiveCount
}

// The hashing inputs (tx.From, tx bytes, BroadcastTemp bytes) are kept as
// plain []byte since the codec package already renders each into its
// deterministic form.

// SelectLeader implements spec.md §4.5 step 2.
func (s Selector) SelectLeader(epochID uint64, from common.PubKey32) (common.NodeID, bool, error) {
	e, err := s.Epochs.Get(epochID)
	if err != nil {
		return 0, false, cerrors.E("committee.SelectLeader", cerrors.KindStaleEpoch, err)
	}
	perm, err := s.Permutation.Get(epochID)
	if err != nil {
		return 0, false, cerrors.E("committee.SelectLeader", cerrors.KindStaleEpoch, err)
	}

	hFrom := common.SHA256(from[:])
	pos, err := drng.Draw(hFrom, uint64(e.LastNodeID), 1)
	if err != nil {
		return 0, false, cerrors.E("committee.SelectLeader", cerrors.KindInternal, err)
	}
	id := perm[pos[0]]
	return id, id == s.SelfID, nil
}

// nnr computes the accreditation council size (spec.md §4.5 step 3).
func nnr(sumOut common.Amount, activeCount uint64) uint64 {
	raw := 24.0 * NTP * (float64(sumOut) / 100.0) / StakedPerNode
	n := uint64(math.Ceil(raw))
	if n < MinNNR {
		n = MinNNR
	}
	if n > activeCount {
		n = activeCount
	}
	return n
}

// Select implements the full spec.md §4.5 algorithm for tx. It hashes
// tx.Encode() itself; the caller supplies the BroadcastTemp envelope
// bytes. The package makes no network or storage calls.
func (s Selector) Select(epochID uint64, tx *ledger.Transaction, broadcastTempBytes []byte) (Selection, error) {
	e, err := s.Epochs.Get(epochID)
	if err != nil {
		return Selection{}, cerrors.E("committee.Select", cerrors.KindStaleEpoch, err)
	}
	permCur, err := s.Permutation.Get(epochID)
	if err != nil {
		return Selection{}, cerrors.E("committee.Select", cerrors.KindStaleEpoch, err)
	}

	leaderID, leaderIsSelf, err := s.SelectLeader(epochID, tx.From)
	if err != nil {
		return Selection{}, err
	}

	active := s.ActiveCount()
	n := nnr(tx.SumVout(), active)
	kPrev := n / 3
	kCur := kPrev
	kTx := n - 2*kPrev

	hPubkey := common.SHA256(tx.From[:])
	hTx := common.SHA256(tx.Encode())
	hBroadcast := common.SHA256(broadcastTempBytes)

	exclude := make(map[common.NodeID]bool)
	selfOnCommittee := false

	// Current-cycle slice: members unknown locally don't add to the node
	// set, but mark selfOnCommittee if the drawn id is this node's own.
	curDraw, err := drng.Draw(hPubkey, uint64(e.LastNodeID), kCur)
	if err != nil {
		return Selection{}, cerrors.E("committee.Select", cerrors.KindInternal, err)
	}
	var curNodes []common.NodeID
	for _, pos := range curDraw {
		id := permCur[pos]
		if id == s.SelfID {
			selfOnCommittee = true
			continue
		}
		curNodes = append(curNodes, id)
		exclude[id] = true
	}

	// Previous-cycle slice: exclude current-cycle members, grow by 1 each
	// round until exactly kPrev new distinct nodes collected.
	prevEpoch, err := s.Epochs.Get(epochID - 1)
	if err != nil {
		return Selection{}, cerrors.E("committee.Select", cerrors.KindStaleEpoch, err)
	}
	permPrev, err := s.Permutation.Get(epochID - 1)
	if err != nil {
		return Selection{}, cerrors.E("committee.Select", cerrors.KindStaleEpoch, err)
	}
	// The previous-cycle slice never drives the tx-slice self-discount
	// (spec.md §4.5 step 6, original_source/transaction/src/lib.rs's
	// get_accreditation_council_node only flips exist_self_on_consensus
	// from the current-cycle loop's resolved behavior) — a self id drawn
	// here is simply dropped from the committee, not recorded.
	prevSelfOnCommittee := false
	prevNodes, err := expandingDraw(hPubkey, uint64(prevEpoch.LastNodeID), permPrev, kPrev, exclude, s.SelfID, &prevSelfOnCommittee)
	if err != nil {
		return Selection{}, cerrors.E("committee.Select", cerrors.KindInternal, err)
	}
	for _, id := range prevNodes {
		exclude[id] = true
	}

	// Transaction slice: exclude everything chosen so far; if self already
	// landed on the committee, the target shrinks by one (spec.md §4.5
	// step 6, and the self-double-count fix of spec.md §9 item 4 when
	// leaderIsSelf additionally removes self from consideration).
	txTarget := kTx
	if selfOnCommittee {
		txTarget--
	}
	if leaderIsSelf {
		exclude[s.SelfID] = true
	}
	txNodes, err := expandingDraw(hTx, uint64(e.LastNodeID), permCur, txTarget, exclude, s.SelfID, &selfOnCommittee)
	if err != nil {
		return Selection{}, cerrors.E("committee.Select", cerrors.KindInternal, err)
	}

	council := make([]common.NodeID, 0, len(curNodes)+len(prevNodes)+len(txNodes))
	council = append(council, curNodes...)
	council = append(council, prevNodes...)
	council = append(council, txNodes...)

	kBC := uint64(math.Ceil(BroadcastRatio * float64(n)))
	if kBC > MaxBroadcast {
		kBC = MaxBroadcast
	}
	broadcast, err := expandingDraw(hBroadcast, uint64(e.LastNodeID), permCur, kBC, map[common.NodeID]bool{}, s.SelfID, new(bool))
	if err != nil {
		return Selection{}, cerrors.E("committee.Select", cerrors.KindInternal, err)
	}

	return Selection{
		EpochID:         epochID,
		LeaderID:        leaderID,
		LeaderIsSelf:    leaderIsSelf,
		Council:         council,
		SelfOnCommittee: selfOnCommittee,
		Broadcast:       broadcast,
	}, nil
}

// expandingDraw implements the "expanding-set draw" shape shared by
// spec.md §4.5 steps 5-7: draw increasing counts of positions from seed
// over perm, excluding ids already in exclude (and self, which is marked
// via selfFlag rather than added to the returned node set), until target
// distinct new nodes are collected.
func expandingDraw(seed [32]byte, upper uint64, perm epoch.Permutation, target uint64, exclude map[common.NodeID]bool, selfID common.NodeID, selfFlag *bool) ([]common.NodeID, error) {
	if target == 0 {
		return nil, nil
	}
	for size := target; size <= upper; size++ {
		positions, err := drng.Draw(seed, upper, size)
		if err != nil {
			return nil, err
		}
		var fresh []common.NodeID
		for _, pos := range positions {
			id := perm[pos]
			if id == selfID {
				*selfFlag = true
				continue
			}
			if exclude[id] {
				continue
			}
			fresh = append(fresh, id)
			if uint64(len(fresh)) == target {
				return fresh, nil
			}
		}
	}
	return nil, cerrors.E("committee.expandingDraw", cerrors.KindInternal, errInsufficientUniverse)
}

var errInsufficientUniverse = &insufficientUniverseError{}

type insufficientUniverseError struct{}

func (e *insufficientUniverseError) Error() string {
	return "committee: universe too small to satisfy expanding draw target"
}
