package bootstrap

import (
	"sync"
	"time"

	"github.com/concilium-labs/conciliumd/blscrypto"
	"github.com/concilium-labs/conciliumd/cerrors"
	"github.com/concilium-labs/conciliumd/common"
	"github.com/concilium-labs/conciliumd/log"
	"github.com/concilium-labs/conciliumd/registry"
)

// Bootstrap is one bootstrap-committee member's side of admission: it
// assigns ids to newly-seen nodes and co-signs their records.
type Bootstrap struct {
	mu       sync.Mutex
	blsKey   *blscrypto.PrivateKey
	awaiting map[common.PubKey48]Record
	lastID   common.NodeID
	log      log.Logger
}

// NewBootstrap constructs a Bootstrap seeded with the highest id already
// known to the registry (spec.md §4.9 step 1).
func NewBootstrap(blsKey *blscrypto.PrivateKey, reg *registry.Registry) *Bootstrap {
	var last common.NodeID
	reg.ForEach(func(n *registry.ActiveNode) {
		if n.Descriptor.ID > last {
			last = n.Descriptor.ID
		}
	})
	return &Bootstrap{
		blsKey:   blsKey,
		awaiting: make(map[common.PubKey48]Record),
		lastID:   last,
		log:      log.NewModuleLogger(log.ModuleBootstrap),
	}
}

// GetID implements spec.md §4.9 step 1: assign (or recall) an id for a
// newly-seen public key, stage it as awaiting confirmation, and return a
// co-signature over its record.
func (b *Bootstrap) GetID(name string, pub common.PubKey48, ipv4 [4]byte, port uint16, version uint32, createdAt int64) (Record, common.Sig96, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, known := b.awaiting[pub]
	if !known {
		b.lastID++
		rec = Record{
			ID:        b.lastID,
			Name:      name,
			BLSPublic: pub,
			IPv4:      ipv4,
			Port:      port,
			Version:   version,
		}
		rec.CreatedAt = time.Unix(createdAt, 0).UTC()
		b.awaiting[pub] = rec
	}

	sig, err := b.blsKey.Sign(rec.Encode())
	if err != nil {
		return Record{}, common.Sig96{}, cerrors.E("bootstrap.GetID", cerrors.KindInternal, err)
	}
	return rec, sig, nil
}

// Admission is the joining node's side: it collects co-signatures from a
// quorum of bootstrap committee members and builds the aggregate proof it
// presents to every peer it wants to connect to (spec.md §4.9 steps 2-3).
type Admission struct {
	Table Table
}

// Collected is one bootstrap committee member's reply to GetID.
type Collected struct {
	BootstrapKey common.PubKey48
	Signature    common.Sig96
}

// Aggregate folds a quorum of Collected replies into the single aggregate
// signature and aggregate public key InitialConnect verifies against.
func (a Admission) Aggregate(replies []Collected) (aggSig common.Sig96, aggPub common.PubKey48, err error) {
	if len(replies) < BootstrapQuorum {
		return common.Sig96{}, common.PubKey48{}, cerrors.E("bootstrap.Aggregate", cerrors.KindJoinRejected, nil)
	}
	sigs := make([]common.Sig96, 0, len(replies))
	pubs := make([]common.PubKey48, 0, len(replies))
	seen := make(map[common.PubKey48]bool, len(replies))
	for _, r := range replies {
		if !a.Table.Contains(r.BootstrapKey) || seen[r.BootstrapKey] {
			return common.Sig96{}, common.PubKey48{}, cerrors.E("bootstrap.Aggregate", cerrors.KindJoinRejected, nil)
		}
		seen[r.BootstrapKey] = true
		sigs = append(sigs, r.Signature)
		pubs = append(pubs, r.BootstrapKey)
	}
	aggSig, err = blscrypto.Aggregate(sigs)
	if err != nil {
		return common.Sig96{}, common.PubKey48{}, cerrors.E("bootstrap.Aggregate", cerrors.KindInternal, err)
	}
	aggPub, err = blscrypto.AggregatePublicKeys(pubs)
	if err != nil {
		return common.Sig96{}, common.PubKey48{}, cerrors.E("bootstrap.Aggregate", cerrors.KindInternal, err)
	}
	return aggSig, aggPub, nil
}

// VerifyAdmission is what a receiving node runs on InitialConnect (spec.md
// §4.9 step 4): the presented aggregate public key must be composed
// entirely of bootstrap committee keys, and the aggregate signature must
// verify over the joining node's record.
func VerifyAdmission(table Table, rec Record, aggPub common.PubKey48, aggSig common.Sig96, contributingKeys []common.PubKey48) error {
	if len(contributingKeys) < BootstrapQuorum {
		return cerrors.E("bootstrap.VerifyAdmission", cerrors.KindJoinRejected, nil)
	}
	seen := make(map[common.PubKey48]bool, len(contributingKeys))
	for _, k := range contributingKeys {
		if !table.Contains(k) || seen[k] {
			return cerrors.E("bootstrap.VerifyAdmission", cerrors.KindJoinRejected, nil)
		}
		seen[k] = true
	}
	recomputed, err := blscrypto.AggregatePublicKeys(contributingKeys)
	if err != nil || recomputed != aggPub {
		return cerrors.E("bootstrap.VerifyAdmission", cerrors.KindJoinRejected, err)
	}
	ok, err := blscrypto.VerifyAggregate([]common.PubKey48{aggPub}, rec.Encode(), aggSig)
	if err != nil {
		return cerrors.E("bootstrap.VerifyAdmission", cerrors.KindInternal, err)
	}
	if !ok {
		return cerrors.E("bootstrap.VerifyAdmission", cerrors.KindJoinRejected, nil)
	}
	return nil
}
