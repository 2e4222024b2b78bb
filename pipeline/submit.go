package pipeline

import (
	"context"
	"time"

	"github.com/concilium-labs/conciliumd/cerrors"
	"github.com/concilium-labs/conciliumd/committee"
	"github.com/concilium-labs/conciliumd/common"
	"github.com/concilium-labs/conciliumd/epoch"
	"github.com/concilium-labs/conciliumd/ledger"
	"github.com/concilium-labs/conciliumd/log"
	"github.com/concilium-labs/conciliumd/registry"
)

// Submit is the client entry path of spec.md §4.6 step 1-2: resolve this
// cycle's elected leader and either drive the transaction locally (if this
// node is the leader) or forward it over the registry's leader stream.
type Submit struct {
	SelfID   common.NodeID
	Registry *registry.Registry
	Selector committee.Selector
	Clock    epoch.Clock
	Leader   *Leader
	log      log.Logger
}

// NewSubmit constructs a Submit entry point.
func NewSubmit(selfID common.NodeID, reg *registry.Registry, sel committee.Selector, clock epoch.Clock, leader *Leader) *Submit {
	return &Submit{
		SelfID:   selfID,
		Registry: reg,
		Selector: sel,
		Clock:    clock,
		Leader:   leader,
		log:      log.NewModuleLogger(log.ModulePipeline),
	}
}

// Handle implements spec.md §4.6 step 1 (resolve leader) and step 2
// (local drive vs. forward), returning the leader's aggregate response.
func (s *Submit) Handle(ctx context.Context, tx *ledger.Transaction) (Result, error) {
	epochID := s.Clock.Current(time.Now())
	leaderID, isSelf, err := s.Selector.SelectLeader(epochID, tx.From)
	if err != nil {
		return Result{}, err
	}

	if isSelf {
		return s.Leader.Drive(ctx, tx)
	}

	node, ok := s.Registry.Get(leaderID)
	if !ok {
		return Result{}, cerrors.E("pipeline.Submit.Handle", cerrors.KindTransportError, nil)
	}

	reqID := common.NewRequestID(s.SelfID, 0, 0)
	resp, err := node.Streams.Leader().Forward(ctx, reqID, tx.Encode())
	if err != nil {
		return Result{}, cerrors.E("pipeline.Submit.Handle", cerrors.KindTransportError, err)
	}
	if !resp.Status {
		return Result{}, cerrors.E("pipeline.Submit.Handle", cerrors.KindCouncilRejected, nil)
	}
	return Result{
		CommittedTxid: resp.CommittedTxid,
		CouncilSig:    resp.CouncilSig,
		BroadcastSig:  resp.BroadcastSig,
	}, nil
}
