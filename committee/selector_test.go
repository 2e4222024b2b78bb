package committee

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/concilium-labs/conciliumd/common"
	"github.com/concilium-labs/conciliumd/epoch"
	"github.com/concilium-labs/conciliumd/ledger"
)

func buildFixture(t *testing.T, activeCount uint64) (epoch.Reader, epoch.IndexMapReader, common.NodeID) {
	t.Helper()

	pool := epoch.NewPool()
	idx := epoch.NewIndexMap()

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

	return pool.Reader(), idx.Reader(), common.NodeID(1)
}

func sampleTx() *ledger.Transaction {
	tx := &ledger.Transaction{
		From:      common.PubKey32{0xAB},
		Nonce:     7,
		CreatedAt: time.Unix(5000, 0).UTC(),
		Vin:       []ledger.TXInput{{Txid: common.Hash256{0x01}, VoutIndex: 0}},
		Vout: []ledger.TXOutput{
			{Value: common.AmountFromFloat32(1.0), PublicKey: common.PubKey32{0xCD}},
		},
	}
	tx.Txid = tx.ComputeTxid()
	return tx
}

func TestCommitteeDeterminismAcrossPeers(t *testing.T) {
	epochs, perms, selfID := buildFixture(t, 200)
	tx := sampleTx()
	envelope := (&ledger.BroadcastTemp{Transaction: *tx}).Encode()

	selA := Selector{Epochs: epochs, Permutation: perms, SelfID: selfID, ActiveCount: func() uint64 { return 200 }}
	selB := Selector{Epochs: epochs, Permutation: perms, SelfID: selfID, ActiveCount: func() uint64 { return 200 }}

	outA, err := selA.Select(10, tx, envelope)
	require.NoError(t, err)
	outB, err := selB.Select(10, tx, envelope)
	require.NoError(t, err)

	require.Equal(t, outA, outB)
}

func TestCommitteeNonOverlap(t *testing.T) {
	epochs, perms, selfID := buildFixture(t, 200)
	tx := sampleTx()
	envelope := (&ledger.BroadcastTemp{Transaction: *tx}).Encode()

	sel := Selector{Epochs: epochs, Permutation: perms, SelfID: selfID, ActiveCount: func() uint64 { return 200 }}
	out, err := sel.Select(10, tx, envelope)
	require.NoError(t, err)

	seen := map[common.NodeID]int{}
	for _, id := range out.Council {
		seen[id]++
	}
	for id, count := range seen {
		require.Equal(t, 1, count, "node %d appears in council more than once", id)
	}
}

func TestCommitteeLeaderDeterministic(t *testing.T) {
	epochs, perms, selfID := buildFixture(t, 50)
	sel := Selector{Epochs: epochs, Permutation: perms, SelfID: selfID, ActiveCount: func() uint64 { return 50 }}

	id1, self1, err := sel.SelectLeader(10, common.PubKey32{0x01})
	require.NoError(t, err)
	id2, self2, err := sel.SelectLeader(10, common.PubKey32{0x01})
	require.NoError(t, err)
	require.Equal(t, id1, id2)
	require.Equal(t, self1, self2)
}

func TestCommitteeStaleEpoch(t *testing.T) {
	epochs, perms, selfID := buildFixture(t, 50)
	sel := Selector{Epochs: epochs, Permutation: perms, SelfID: selfID, ActiveCount: func() uint64 { return 50 }}

	_, _, err := sel.SelectLeader(999, common.PubKey32{0x01})
	require.Error(t, err)
}
