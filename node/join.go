package node

import (
	"context"

	"github.com/concilium-labs/conciliumd/bootstrap"
	"github.com/concilium-labs/conciliumd/cerrors"
	"github.com/concilium-labs/conciliumd/common"
	peerrpc "github.com/concilium-labs/conciliumd/rpc/peer"
	"github.com/concilium-labs/conciliumd/registry"
)

// BecomeBootstrap implements spec.md §4.9's "Self is bootstrap" path,
// taken when no other bootstrap is reachable: assign id=1 and seed the
// epoch pool so the beacon loop has somewhere to write.
func (s *Service) BecomeBootstrap() {
	s.Self.ID = 1
	s.SeedEpochs(1)
}

// Join implements spec.md §4.9's "Self is joiner" path: collect a quorum
// of bootstrap co-signatures over self's descriptor, verify the
// aggregate, require every bootstrap to accept the resulting admission
// proof, then seed the epoch pool and open streams to the bootstrap
// committee itself.
func (s *Service) Join(ctx context.Context, table bootstrap.Table) error {
	rec, err := s.Self.Record()
	if err != nil {
		return err
	}

	type reached struct {
		client *peerrpc.Client
		nodeID common.NodeID
		addr   string
		pubKey common.PubKey48
	}
	var live []reached
	var replies []bootstrap.Collected
	var assignedID common.NodeID

	for _, entry := range table.Entries {
		client, err := peerrpc.Dial(entry.Addr)
		if err != nil {
			s.log.Warn("join: dial bootstrap failed", "addr", entry.Addr, "err", err)
			continue
		}

		resp, err := client.GetID(ctx, &peerrpc.GetIDRequest{
			Name:      rec.Name,
			BLSPublic: rec.BLSPublic,
			IPv4:      rec.IPv4,
			Port:      rec.Port,
			Version:   rec.Version,
			CreatedAt: rec.CreatedAt.Unix(),
		})
		if err != nil {
			s.log.Warn("join: GetID failed", "addr", entry.Addr, "err", err)
			_ = client.Close()
			continue
		}

		assignedID = resp.ID
		replies = append(replies, bootstrap.Collected{BootstrapKey: resp.BootstrapKey, Signature: resp.Signature})
		live = append(live, reached{client: client, nodeID: resp.BootstrapNodeID, addr: entry.Addr, pubKey: entry.PublicKey})
	}
	if len(live) == 0 {
		return cerrors.E("node.Join", cerrors.KindJoinRejected, nil)
	}

	admission := bootstrap.Admission{Table: table}
	aggSig, aggPub, err := admission.Aggregate(replies)
	if err != nil {
		return err
	}

	// spec.md §4.9 step 5 begins here: the record every bootstrap verifies
	// against must carry the id just assigned.
	s.Self.ID = assignedID
	rec, err = s.Self.Record()
	if err != nil {
		return err
	}

	contributingKeys := make([]common.PubKey48, len(replies))
	for i, r := range replies {
		contributingKeys[i] = r.BootstrapKey
	}
	if err := bootstrap.VerifyAdmission(table, rec, aggPub, aggSig, contributingKeys); err != nil {
		return err
	}
	connReq := &peerrpc.ConnectRequest{
		RecordBytes:      rec.Encode(),
		AggPub:           aggPub,
		AggSig:           aggSig,
		ContributingKeys: contributingKeys,
	}

	// spec.md §4.9 step 4: require all bootstraps to accept.
	for _, l := range live {
		resp, err := l.client.Connect(ctx, connReq)
		if err != nil {
			return cerrors.E("node.Join", cerrors.KindJoinRejected, err)
		}
		if !resp.Accepted {
			return cerrors.E("node.Join", cerrors.KindJoinRejected, nil)
		}
	}

	s.SeedEpochs(assignedID)

	for _, l := range live {
		s.Registry.Insert(&registry.ActiveNode{
			Descriptor: registry.Descriptor{ID: l.nodeID, BLSPublic: l.pubKey},
			Streams:    l.client,
		})
	}

	return nil
}
