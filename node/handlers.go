package node

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/concilium-labs/conciliumd/bootstrap"
	"github.com/concilium-labs/conciliumd/ledger"
	"github.com/concilium-labs/conciliumd/registry"
	peerrpc "github.com/concilium-labs/conciliumd/rpc/peer"
)

// handleForward implements the leader sub-stream's receiving side (spec.md
// §4.8 Transaction service): decode, drive, and reply with the leader's
// aggregate signatures.
func (s *Service) handleForward(ctx context.Context, req *peerrpc.ForwardRequest) (*peerrpc.ForwardResponse, error) {
	tx, err := ledger.DecodeTransaction(req.TxBytes)
	if err != nil {
		return &peerrpc.ForwardResponse{Status: false}, nil
	}
	result, err := s.Leader.Drive(ctx, tx)
	if err != nil {
		s.log.Warn("forward: leader drive failed", "err", err)
		return &peerrpc.ForwardResponse{Status: false}, nil
	}
	return &peerrpc.ForwardResponse{
		Status:        true,
		CouncilSig:    result.CouncilSig,
		BroadcastSig:  result.BroadcastSig,
		CommittedTxid: result.CommittedTxid,
	}, nil
}

// handleAccredit implements the accreditation council sub-stream's
// receiving side (spec.md §4.6c).
func (s *Service) handleAccredit(ctx context.Context, req *peerrpc.AccreditRequest) (*peerrpc.AccreditResponse, error) {
	ok, sig := s.Council.Accredit(req.TxBytes)
	return &peerrpc.AccreditResponse{Status: ok, Signature: sig}, nil
}

// handleRelay implements the broadcast-set sub-stream's receiving side
// (spec.md §4.6e).
func (s *Service) handleRelay(ctx context.Context, req *peerrpc.RelayRequest) (*peerrpc.RelayResponse, error) {
	sig, err := s.BCast.Relay(req.EnvelopeByte)
	if err != nil {
		return &peerrpc.RelayResponse{}, err
	}
	return &peerrpc.RelayResponse{Signature: sig}, nil
}

// handleSave implements the save sub-stream's receiving side (spec.md
// §4.6h): it reports success when decoding and commit both succeed
// (commit is idempotent, so a re-delivered txid succeeds too) and returns
// the error otherwise.
func (s *Service) handleSave(ctx context.Context, req *peerrpc.SaveRequest) (*peerrpc.SaveResponse, error) {
	if err := s.Saver.Save(req.TxBytes); err != nil {
		s.log.Warn("save: commit failed", "err", err)
		return &peerrpc.SaveResponse{}, err
	}
	return &peerrpc.SaveResponse{}, nil
}

// handleInitialRequest implements spec.md §4.4's "Peer-received
// contributions": accepted iff epochID == current+1.
func (s *Service) handleInitialRequest(ctx context.Context, req *peerrpc.InitialRequestMsg) (*peerrpc.EpochAck, error) {
	cur := s.Clock.Current(time.Now())
	s.Beacon.OnInitialRequest(cur, req.EpochID, req.Random)
	return &peerrpc.EpochAck{}, nil
}

// handleSyncRequest implements spec.md §4.4's SyncRequest peer handler.
func (s *Service) handleSyncRequest(ctx context.Context, req *peerrpc.SyncRequestMsg) (*peerrpc.EpochAck, error) {
	cur := s.Clock.Current(time.Now())
	s.Beacon.OnSyncRequest(cur, req.EpochID, req.Hash)
	return &peerrpc.EpochAck{}, nil
}

// handleGetID implements spec.md §4.9 step 1's receiving side: this node,
// acting as a bootstrap committee member, assigns or recalls an id for the
// caller and co-signs the resulting record.
func (s *Service) handleGetID(ctx context.Context, req *peerrpc.GetIDRequest) (*peerrpc.GetIDResponse, error) {
	pub, err := s.Self.BLSKey.Public()
	if err != nil {
		return nil, err
	}
	rec, sig, err := s.Bootstrap.GetID(req.Name, req.BLSPublic, req.IPv4, req.Port, req.Version, req.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &peerrpc.GetIDResponse{ID: rec.ID, BootstrapKey: pub, BootstrapNodeID: s.Self.ID, Signature: sig}, nil
}

// handleConnect implements spec.md §4.9 steps 2-4's receiving side:
// verify the presented aggregate admission proof against this node's
// bootstrap table, dial the joiner back to open the four sub-streams, and
// admit it into the active-node registry.
func (s *Service) handleConnect(ctx context.Context, req *peerrpc.ConnectRequest) (*peerrpc.ConnectResponse, error) {
	rec, err := bootstrap.DecodeRecord(req.RecordBytes)
	if err != nil {
		return &peerrpc.ConnectResponse{Accepted: false}, nil
	}
	if err := bootstrap.VerifyAdmission(s.BootstrapTable, rec, req.AggPub, req.AggSig, req.ContributingKeys); err != nil {
		return &peerrpc.ConnectResponse{Accepted: false}, nil
	}

	client, err := peerrpc.Dial(recordAddr(rec))
	if err != nil {
		s.log.Warn("connect: dial back to joiner failed", "peer", rec.ID, "err", err)
		return &peerrpc.ConnectResponse{Accepted: false}, nil
	}
	s.Registry.Insert(&registry.ActiveNode{
		Descriptor: registry.Descriptor{
			ID:        rec.ID,
			Name:      rec.Name,
			BLSPublic: rec.BLSPublic,
			IPv4:      rec.IPv4,
			Port:      rec.Port,
			Version:   rec.Version,
			CreatedAt: rec.CreatedAt,
		},
		Streams: client,
	})

	// spec.md §4.9 step 5: a late-arriving peer's join adjusts
	// last_node_id on the epoch located epoch_of(new_node.created_at)+5.
	s.bumpLastNodeID(rec)

	return &peerrpc.ConnectResponse{Accepted: true}, nil
}

// recordAddr renders a bootstrap.Record's advertised address as the
// host:port string rpc/peer.Dial expects.
func recordAddr(rec bootstrap.Record) string {
	ip := net.IPv4(rec.IPv4[0], rec.IPv4[1], rec.IPv4[2], rec.IPv4[3])
	return fmt.Sprintf("%s:%d", ip.String(), rec.Port)
}
