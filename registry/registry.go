// Package registry implements the Active Node Registry of spec.md §2/§3:
// indexed live membership with streaming RPC channels to each peer.
// Grounded on original_source/core-ext/src/mempool/active_nodes.rs and
// the teacher's networks/p2p peer-set idiom (a map guarded by a single
// RWMutex, snapshots are cheap clones) — adapted, since this spec has no
// devp2p handshake, only the four named streaming channels of §4.8.
package registry

import (
	"sync"
	"time"

	"github.com/concilium-labs/conciliumd/common"
)

// Descriptor is the self-describing identity a node advertises during
// bootstrap/join (spec.md §3 SelfNode / ActiveNode peer descriptor).
type Descriptor struct {
	ID        common.NodeID
	Name      string
	BLSPublic common.PubKey48
	IPv4      [4]byte
	Port      uint16
	Version   uint32
	CreatedAt time.Time
}

// Streams is the set of channels a peer exposes (spec.md §4.8): leader,
// council (accreditation), broadcast, save, and epoch; each call is a
// request/response. Implementations live in rpc/peer; this package only depends on
// the interface so committee selection and the transaction pipeline never
// import the transport layer directly.
type Streams interface {
	Leader() LeaderStream
	Council() CouncilStream
	Broadcast() BroadcastStream
	Save() SaveStream
	Epoch() EpochStream
	Close() error
}

// EpochStream carries the beacon engine's InitialRequest/SyncRequest
// fanout (spec.md §4.4, §4.8).
type EpochStream interface {
	InitialRequest(ctx Context, epochID uint64, random uint64) error
	SyncRequest(ctx Context, epochID uint64, hash common.Hash256) error
}

// LeaderStream forwards a transaction to a peer elected leader and awaits
// the aggregated signatures.
type LeaderStream interface {
	Forward(ctx Context, requestID common.RequestID, txBytes []byte) (LeaderResponse, error)
}

// CouncilStream requests a single council member's co-signature.
type CouncilStream interface {
	Accredit(ctx Context, requestID common.RequestID, txBytes []byte) (CouncilResponse, error)
}

// BroadcastStream requests a single broadcast-set member's co-signature
// over a BroadcastTemp envelope.
type BroadcastStream interface {
	Relay(ctx Context, requestID common.RequestID, envelopeBytes []byte) (BroadcastResponse, error)
}

// SaveStream delivers a fire-and-forget committed-transaction replica.
type SaveStream interface {
	Save(ctx Context, requestID common.RequestID, txBytes []byte) error
}

// Context is a narrow alias kept so this package doesn't need to import
// context directly in every signature above; rpc/peer implementations
// accept a real context.Context.
type Context = interface {
	Done() <-chan struct{}
	Err() error
}

// LeaderResponse carries the aggregated signatures the leader returns to
// a forwarding submitter (spec.md §4.6 step 3).
type LeaderResponse struct {
	Status         bool
	CouncilSig     common.Sig96
	BroadcastSig   common.Sig96
	CommittedTxid  common.Hash256
}

// CouncilResponse is a single council member's reply (spec.md §4.6c).
type CouncilResponse struct {
	Status    bool
	Signature common.Sig96
}

// BroadcastResponse is a single broadcast-set member's reply (spec.md
// §4.6e).
type BroadcastResponse struct {
	Signature common.Sig96
}

// ActiveNode is a remote peer descriptor plus its open streams.
type ActiveNode struct {
	Descriptor Descriptor
	Streams    Streams
}

// Registry is the indexed live membership set, guarded by a single
// RWMutex per spec.md §5 ("Active-node registry is a read/write lock;
// snapshots are cheap clones").
type Registry struct {
	mu    sync.RWMutex
	peers map[common.NodeID]*ActiveNode
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{peers: make(map[common.NodeID]*ActiveNode)}
}

// Insert adds or replaces a peer, called upon successful bootstrap
// admission (spec.md §3 Lifecycles).
func (r *Registry) Insert(n *ActiveNode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[n.Descriptor.ID] = n
}

// Get returns the peer for id, or (nil, false) if unknown to this node —
// the "leader not locally known" case of spec.md §4.5 step 2.
func (r *Registry) Get(id common.NodeID) (*ActiveNode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.peers[id]
	return n, ok
}

// Remove drops a peer. Per spec.md §3 Lifecycles this node removes peers
// only on process restart; exposed for completeness and tests.
func (r *Registry) Remove(id common.NodeID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peers, id)
}

// Snapshot returns a cheap copy of every currently known peer id,
// matching spec.md §5's "snapshots are cheap clones" requirement.
func (r *Registry) Snapshot() []common.NodeID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]common.NodeID, 0, len(r.peers))
	for id := range r.peers {
		out = append(out, id)
	}
	return out
}

// Len returns the number of known peers (excluding self).
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// ForEach invokes fn for every currently known peer, under the read lock.
// fn must not call back into the Registry.
func (r *Registry) ForEach(fn func(*ActiveNode)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, n := range r.peers {
		fn(n)
	}
}
