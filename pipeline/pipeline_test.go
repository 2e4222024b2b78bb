package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/concilium-labs/conciliumd/blscrypto"
	"github.com/concilium-labs/conciliumd/cerrors"
	"github.com/concilium-labs/conciliumd/committee"
	"github.com/concilium-labs/conciliumd/common"
	"github.com/concilium-labs/conciliumd/epoch"
	"github.com/concilium-labs/conciliumd/ledger"
	"github.com/concilium-labs/conciliumd/registry"
	"github.com/concilium-labs/conciliumd/storage/database"
	"github.com/concilium-labs/conciliumd/wallet"
)

// fakeStreams is an in-process registry.Streams stand-in that always
// signs with the given key, letting pipeline tests exercise fanout
// aggregation without a real transport.
type fakeStreams struct {
	key *blscrypto.PrivateKey
}

func (f fakeStreams) Leader() registry.LeaderStream       { panic("not used in these tests") }
func (f fakeStreams) Council() registry.CouncilStream     { return fakeCouncil{f.key} }
func (f fakeStreams) Broadcast() registry.BroadcastStream { return fakeBroadcast{f.key} }
func (f fakeStreams) Save() registry.SaveStream           { return fakeSave{} }
func (f fakeStreams) Epoch() registry.EpochStream         { panic("not used in these tests") }
func (f fakeStreams) Close() error                        { return nil }

type fakeCouncil struct{ key *blscrypto.PrivateKey }

func (c fakeCouncil) Accredit(ctx registry.Context, requestID common.RequestID, txBytes []byte) (registry.CouncilResponse, error) {
	sig, err := c.key.Sign(txBytes)
	if err != nil {
		return registry.CouncilResponse{}, err
	}
	return registry.CouncilResponse{Status: true, Signature: sig}, nil
}

type fakeBroadcast struct{ key *blscrypto.PrivateKey }

func (b fakeBroadcast) Relay(ctx registry.Context, requestID common.RequestID, envelopeBytes []byte) (registry.BroadcastResponse, error) {
	sig, err := b.key.Sign(envelopeBytes)
	if err != nil {
		return registry.BroadcastResponse{}, err
	}
	return registry.BroadcastResponse{Signature: sig}, nil
}

type fakeSave struct{}

func (fakeSave) Save(ctx registry.Context, requestID common.RequestID, txBytes []byte) error {
	return nil
}

func buildLeaderFixture(t *testing.T, activeCount uint64) (*Leader, *ledger.Ledger, *wallet.KeyPair) {
	t.Helper()

	pool := epoch.NewPool()
	idx := epoch.NewIndexMap()
	reg := registry.New()

	for _, id := range []uint64{9, 10} {
		pool.Insert(epoch.Epoch{ID: id, LastNodeID: common.NodeID(activeCount), Hashes: map[common.Hash256]uint64{}})
		perm := epoch.Permutation{}
		for i := uint64(1); i <= activeCount; i++ {
			perm[i] = common.NodeID(i)
		}
		idx.Set(id, perm)
	}
	pool.Publish()
	idx.Publish()

	selfID := common.NodeID(activeCount + 1)
	for i := uint64(1); i <= activeCount; i++ {
		key, err := blscrypto.GenerateKey()
		require.NoError(t, err)
		pub, err := key.Public()
		require.NoError(t, err)
		reg.Insert(&registry.ActiveNode{
			Descriptor: registry.Descriptor{ID: common.NodeID(i), BLSPublic: pub},
			Streams:    fakeStreams{key: key},
		})
	}

	sel := committee.Selector{
		Epochs:      pool.Reader(),
		Permutation: idx.Reader(),
		SelfID:      selfID,
		ActiveCount: func() uint64 { return activeCount },
	}

	blsKey, err := blscrypto.GenerateKey()
	require.NoError(t, err)

	db := database.NewMemDatabase()
	l := ledger.New(db)
	require.NoError(t, l.EnsureGenesis())

	clock := epoch.NewClock(time.Now().Add(-9 * epoch.CyclePeriod))

	leader := NewLeader(selfID, blsKey, reg, l, sel, clock)
	return leader, l, nil
}

func TestLeaderDriveCommitsTransaction(t *testing.T) {
	leader, l, _ := buildLeaderFixture(t, 200)

	alice, err := wallet.Generate()
	require.NoError(t, err)
	bob, err := wallet.Generate()
	require.NoError(t, err)

	sourceTxid := common.Hash256{0x01}
	l.SeedGenesisUTXO(sourceTxid, 0, ledger.TXOutput{Value: common.AmountFromFloat32(10.0), PublicKey: alice.Public})

	tx := &ledger.Transaction{
		From:      alice.Public,
		Nonce:     1,
		CreatedAt: time.Unix(1000, 0).UTC(),
		Vin:       []ledger.TXInput{{Txid: sourceTxid, VoutIndex: 0}},
		Vout: []ledger.TXOutput{
			{Value: common.AmountFromFloat32(10.0), PublicKey: bob.Public},
		},
	}
	tx.Txid = tx.ComputeTxid()
	tx.Signature = alice.Sign(tx.Txid)

	result, err := leader.Drive(context.Background(), tx)
	require.NoError(t, err)
	require.Equal(t, tx.Txid, result.CommittedTxid)
	require.True(t, l.IsCommitted(tx.Txid))
	require.Equal(t, common.AmountFromFloat32(10.0), l.Balance(bob.Public))
}

// Scenario C — forged signature rejected before any committee fanout.
func TestScenarioCForgedSignatureRejected(t *testing.T) {
	leader, l, _ := buildLeaderFixture(t, 50)

	alice, err := wallet.Generate()
	require.NoError(t, err)
	mallory, err := wallet.Generate()
	require.NoError(t, err)
	bob, err := wallet.Generate()
	require.NoError(t, err)

	sourceTxid := common.Hash256{0x02}
	l.SeedGenesisUTXO(sourceTxid, 0, ledger.TXOutput{Value: common.AmountFromFloat32(3.0), PublicKey: alice.Public})

	tx := &ledger.Transaction{
		From: alice.Public,
		Vin:  []ledger.TXInput{{Txid: sourceTxid, VoutIndex: 0}},
		Vout: []ledger.TXOutput{{Value: common.AmountFromFloat32(3.0), PublicKey: bob.Public}},
	}
	tx.Txid = tx.ComputeTxid()
	tx.Signature = mallory.Sign(tx.Txid)

	_, err = leader.Drive(context.Background(), tx)
	require.Error(t, err)
	require.False(t, l.IsCommitted(tx.Txid))
}

// fakeRejectingCouncil always reports status=false, regardless of the
// transaction presented — used to exercise the all-or-nothing council
// fanout: spec.md §4.6 steps c-d require every member to accredit, not a
// quorum, so a single rejection must abort the whole transaction.
type fakeRejectingCouncil struct{}

func (fakeRejectingCouncil) Accredit(ctx registry.Context, requestID common.RequestID, txBytes []byte) (registry.CouncilResponse, error) {
	return registry.CouncilResponse{Status: false}, nil
}

type fakeRejectingStreams struct{ fakeStreams }

func (f fakeRejectingStreams) Council() registry.CouncilStream { return fakeRejectingCouncil{} }

// Scenario: one council member rejects, the whole fanout is all-or-nothing
// (not quorum), so Drive must abort and the ledger must not be mutated.
func TestScenarioCouncilRejectionAbortsAllOrNothing(t *testing.T) {
	const activeCount = 5

	pool := epoch.NewPool()
	idx := epoch.NewIndexMap()
	reg := registry.New()

	for _, id := range []uint64{9, 10} {
		pool.Insert(epoch.Epoch{ID: id, LastNodeID: common.NodeID(activeCount), Hashes: map[common.Hash256]uint64{}})
		perm := epoch.Permutation{}
		for i := uint64(1); i <= activeCount; i++ {
			perm[i] = common.NodeID(i)
		}
		idx.Set(id, perm)
	}
	pool.Publish()
	idx.Publish()

	selfID := common.NodeID(activeCount + 1)
	var rejectingID common.NodeID
	for i := uint64(1); i <= activeCount; i++ {
		key, err := blscrypto.GenerateKey()
		require.NoError(t, err)
		pub, err := key.Public()
		require.NoError(t, err)
		id := common.NodeID(i)
		var streams registry.Streams = fakeStreams{key: key}
		if i == 1 {
			rejectingID = id
			streams = fakeRejectingStreams{fakeStreams{key: key}}
		}
		reg.Insert(&registry.ActiveNode{
			Descriptor: registry.Descriptor{ID: id, BLSPublic: pub},
			Streams:    streams,
		})
	}
	require.NotZero(t, rejectingID)

	sel := committee.Selector{
		Epochs:      pool.Reader(),
		Permutation: idx.Reader(),
		SelfID:      selfID,
		ActiveCount: func() uint64 { return activeCount },
	}

	blsKey, err := blscrypto.GenerateKey()
	require.NoError(t, err)

	db := database.NewMemDatabase()
	l := ledger.New(db)
	require.NoError(t, l.EnsureGenesis())
	clock := epoch.NewClock(time.Now().Add(-9 * epoch.CyclePeriod))
	leader := NewLeader(selfID, blsKey, reg, l, sel, clock)

	alice, err := wallet.Generate()
	require.NoError(t, err)
	bob, err := wallet.Generate()
	require.NoError(t, err)

	sourceTxid := common.Hash256{0x03}
	l.SeedGenesisUTXO(sourceTxid, 0, ledger.TXOutput{Value: common.AmountFromFloat32(1.0), PublicKey: alice.Public})

	tx := &ledger.Transaction{
		From: alice.Public,
		Vin:  []ledger.TXInput{{Txid: sourceTxid, VoutIndex: 0}},
		Vout: []ledger.TXOutput{{Value: common.AmountFromFloat32(1.0), PublicKey: bob.Public}},
	}
	tx.Txid = tx.ComputeTxid()
	tx.Signature = alice.Sign(tx.Txid)

	_, err = leader.Drive(context.Background(), tx)
	require.Error(t, err)
	require.True(t, cerrors.Is(err, cerrors.KindCouncilRejected))
	require.False(t, l.IsCommitted(tx.Txid))
}
