// Package pipeline implements the transaction finality path of spec.md
// §4.6: client submission, leader forwarding, accreditation-council
// fanout, broadcast-set fanout, and the ledger commit that finalizes a
// transaction. Grounded on
// original_source/transaction/src/validation.rs (the forward/verify/sign
// order of operations) and
// original_source/core-ext/src/mempool/send_raw_transaction.rs
// (council/broadcast fanout shape); the bounded concurrent fanout itself
// follows the teacher's consensus/istanbul/core round quorum idiom,
// generalized from a fixed validator set to the per-transaction committee
// this spec derives.
package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/concilium-labs/conciliumd/blscrypto"
	"github.com/concilium-labs/conciliumd/cerrors"
	"github.com/concilium-labs/conciliumd/committee"
	"github.com/concilium-labs/conciliumd/common"
	"github.com/concilium-labs/conciliumd/epoch"
	"github.com/concilium-labs/conciliumd/ledger"
	"github.com/concilium-labs/conciliumd/log"
	"github.com/concilium-labs/conciliumd/registry"
	"github.com/concilium-labs/conciliumd/wallet"
)

// FanoutTimeout bounds how long the leader waits for the committee's
// signatures before giving up on a transaction (resolves spec.md §9 open
// question 1 — see SPEC_FULL.md §5).
const FanoutTimeout = 8 * time.Second

// Leader drives the work a node performs once it discovers it is the
// elected leader for a transaction (spec.md §4.6 steps 2-6).
type Leader struct {
	SelfID   common.NodeID
	BLSKey   *blscrypto.PrivateKey
	Registry *registry.Registry
	Ledger   *ledger.Ledger
	Selector committee.Selector
	Clock    epoch.Clock
	log      log.Logger
}

// NewLeader constructs a Leader driver over the node's collaborators.
func NewLeader(selfID common.NodeID, blsKey *blscrypto.PrivateKey, reg *registry.Registry, l *ledger.Ledger, sel committee.Selector, clock epoch.Clock) *Leader {
	return &Leader{
		SelfID:   selfID,
		BLSKey:   blsKey,
		Registry: reg,
		Ledger:   l,
		Selector: sel,
		Clock:    clock,
		log:      log.NewModuleLogger(log.ModulePipeline),
	}
}

// Result is what a successful Drive returns to the submitter (spec.md
// §4.6 step 3's LeaderResponse).
type Result struct {
	CommittedTxid common.Hash256
	CouncilSig    common.Sig96
	BroadcastSig  common.Sig96
}

// Drive implements spec.md §4.6 steps 2-6 for a transaction this node has
// been elected leader for.
func (l *Leader) Drive(ctx context.Context, tx *ledger.Transaction) (Result, error) {
	if recomputed := tx.ComputeTxid(); recomputed != tx.Txid {
		return Result{}, cerrors.E("pipeline.Drive", cerrors.KindInvalidSignature, nil)
	}
	if !wallet.Verify(tx.From, tx.Txid, tx.Signature) {
		return Result{}, cerrors.E("pipeline.Drive", cerrors.KindInvalidSignature, nil)
	}
	if err := l.Ledger.Verify(tx); err != nil {
		return Result{}, cerrors.E("pipeline.Drive", cerrors.KindInvalidUTXO, err)
	}

	envelope := (&ledger.BroadcastTemp{Transaction: *tx}).Encode()
	epochID := l.Clock.Current(time.Now())
	sel, err := l.Selector.Select(epochID, tx, envelope)
	if err != nil {
		return Result{}, err
	}

	selfSig, err := l.BLSKey.Sign(tx.Encode())
	if err != nil {
		return Result{}, cerrors.E("pipeline.Drive", cerrors.KindInternal, err)
	}

	fctx, cancel := context.WithTimeout(ctx, FanoutTimeout)
	defer cancel()

	councilSigs, err := l.fanoutCouncil(fctx, sel, tx)
	if err != nil {
		return Result{}, err
	}
	councilSigs = append(councilSigs, selfSig)
	councilAgg, err := blscrypto.Aggregate(councilSigs)
	if err != nil {
		return Result{}, cerrors.E("pipeline.Drive", cerrors.KindInternal, err)
	}

	// spec.md §4.6 steps e-f: build BroadcastTemp, fanout, aggregate —
	// any failure aborts with BroadcastRejected, before the ledger commit
	// of step g.
	envelope = (&ledger.BroadcastTemp{Transaction: *tx, CouncilAggSig: councilAgg}).Encode()
	broadcastSigs, err := l.fanoutBroadcast(fctx, sel, envelope)
	if err != nil {
		return Result{}, err
	}
	broadcastAgg, err := blscrypto.Aggregate(broadcastSigs)
	if err != nil {
		return Result{}, cerrors.E("pipeline.Drive", cerrors.KindInternal, err)
	}

	if err := l.Ledger.Commit(tx); err != nil {
		return Result{}, cerrors.E("pipeline.Drive", cerrors.KindStorageError, err)
	}

	l.fanoutSave(context.Background(), tx)

	return Result{CommittedTxid: tx.Txid, CouncilSig: councilAgg, BroadcastSig: broadcastAgg}, nil
}

// fanoutCouncil implements spec.md §4.6 steps c-d: every council member
// must respond with status=true and a valid signature, or the whole
// transaction aborts with CouncilRejected — this is not a quorum vote.
func (l *Leader) fanoutCouncil(ctx context.Context, sel committee.Selection, tx *ledger.Transaction) ([]common.Sig96, error) {
	txBytes := tx.Encode()

	g, gctx := errgroup.WithContext(ctx)
	sigs := make([]common.Sig96, len(sel.Council))
	reqID := common.NewRequestID(l.SelfID, 0, 0)

	for i, id := range sel.Council {
		i, id := i, id
		node, ok := l.Registry.Get(id)
		if !ok {
			return nil, cerrors.E("pipeline.fanoutCouncil", cerrors.KindCouncilRejected, nil)
		}
		g.Go(func() error {
			resp, err := node.Streams.Council().Accredit(gctx, reqID, txBytes)
			if err != nil {
				l.log.Warn("council accredit failed", "peer", id, "err", err)
				return cerrors.E("pipeline.fanoutCouncil", cerrors.KindCouncilRejected, err)
			}
			if !resp.Status {
				return cerrors.E("pipeline.fanoutCouncil", cerrors.KindCouncilRejected, nil)
			}
			ok, err := blscrypto.Verify(node.Descriptor.BLSPublic, txBytes, resp.Signature)
			if err != nil || !ok {
				return cerrors.E("pipeline.fanoutCouncil", cerrors.KindCouncilRejected, err)
			}
			sigs[i] = resp.Signature
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sigs, nil
}

// fanoutBroadcast implements spec.md §4.6 steps e-f: every broadcast-set
// member signs unconditionally (replication quorum, not re-validation);
// any transport failure still aborts with BroadcastRejected.
func (l *Leader) fanoutBroadcast(ctx context.Context, sel committee.Selection, envelope []byte) ([]common.Sig96, error) {
	reqID := common.NewRequestID(l.SelfID, 0, 1)

	g, gctx := errgroup.WithContext(ctx)
	sigs := make([]common.Sig96, len(sel.Broadcast))

	for i, id := range sel.Broadcast {
		i, id := i, id
		node, ok := l.Registry.Get(id)
		if !ok {
			return nil, cerrors.E("pipeline.fanoutBroadcast", cerrors.KindBroadcastRejected, nil)
		}
		g.Go(func() error {
			resp, err := node.Streams.Broadcast().Relay(gctx, reqID, envelope)
			if err != nil {
				l.log.Warn("broadcast relay failed", "peer", id, "err", err)
				return cerrors.E("pipeline.fanoutBroadcast", cerrors.KindBroadcastRejected, err)
			}
			sigs[i] = resp.Signature
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sigs, nil
}

// fanoutSave implements spec.md §4.6 step h: fire-and-forget the
// committed transaction to every active node, not only the broadcast set.
func (l *Leader) fanoutSave(ctx context.Context, tx *ledger.Transaction) {
	txBytes := tx.Encode()
	reqID := common.NewRequestID(l.SelfID, 0, 2)
	l.Registry.ForEach(func(n *registry.ActiveNode) {
		go func(n *registry.ActiveNode) {
			if err := n.Streams.Save().Save(ctx, reqID, txBytes); err != nil {
				l.log.Warn("save fanout failed", "peer", n.Descriptor.ID, "err", err)
			}
		}(n)
	})
}
