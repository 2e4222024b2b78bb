package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/concilium-labs/conciliumd/common"
	"github.com/concilium-labs/conciliumd/storage/database"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	db := database.NewMemDatabase()
	l := New(db)
	require.NoError(t, l.EnsureGenesis())
	return l
}

func seedUTXO(t *testing.T, l *Ledger, txid common.Hash256, index uint32, out TXOutput) {
	t.Helper()
	l.utxo.insert(UTXOKey{Txid: txid, VoutIndex: index}, out)
}

func TestTxidDeterminism(t *testing.T) {
	alice := common.PubKey32{1}
	bob := common.PubKey32{2}

	tx := &Transaction{
		From:      alice,
		Nonce:     42,
		CreatedAt: time.Unix(1000, 0).UTC(),
		Vin:       []TXInput{{Txid: common.Hash256{0x01}, VoutIndex: 0}},
		Vout: []TXOutput{
			{Value: common.AmountFromFloat32(5.0), PublicKey: bob},
			{Value: common.AmountFromFloat32(5.0), PublicKey: alice},
		},
	}
	tx.Txid = tx.ComputeTxid()

	recomputed := common.SHA256(tx.signableEncoding())
	require.Equal(t, recomputed, tx.Txid)

	encoded := tx.Encode()
	decoded, err := DecodeTransaction(encoded)
	require.NoError(t, err)
	require.Equal(t, tx.Txid, decoded.Txid)
	require.Equal(t, tx.SumVout(), decoded.SumVout())
}

// Scenario A — transfer between users.
func TestScenarioATransferBetweenUsers(t *testing.T) {
	l := newTestLedger(t)

	alice := common.PubKey32{0xA1}
	bob := common.PubKey32{0xB0}

	sourceTxid := common.Hash256{0x00, 0x01}
	seedUTXO(t, l, sourceTxid, 0, TXOutput{Value: common.AmountFromFloat32(10.0), PublicKey: alice})

	tx := &Transaction{
		From:      alice,
		Nonce:     42,
		CreatedAt: time.Unix(2000, 0).UTC(),
		Vin:       []TXInput{{Txid: sourceTxid, VoutIndex: 0}},
		Vout: []TXOutput{
			{Value: common.AmountFromFloat32(5.0), PublicKey: bob},
			{Value: common.AmountFromFloat32(5.0), PublicKey: alice},
		},
	}
	tx.Txid = tx.ComputeTxid()

	require.NoError(t, l.Verify(tx))
	require.NoError(t, l.Commit(tx))

	_, stillThere := l.UTXO(UTXOKey{Txid: sourceTxid, VoutIndex: 0})
	require.False(t, stillThere)

	bobOut, ok := l.UTXO(UTXOKey{Txid: tx.Txid, VoutIndex: 0})
	require.True(t, ok)
	require.Equal(t, bob, bobOut.PublicKey)
	require.Equal(t, common.AmountFromFloat32(5.0), bobOut.Value)

	aliceOut, ok := l.UTXO(UTXOKey{Txid: tx.Txid, VoutIndex: 1})
	require.True(t, ok)
	require.Equal(t, alice, aliceOut.PublicKey)

	require.Equal(t, common.AmountFromFloat32(5.0), l.Balance(bob))
}

// Scenario B — under-spend rejected.
func TestScenarioBUnderSpendRejected(t *testing.T) {
	l := newTestLedger(t)

	alice := common.PubKey32{0xA1}
	bob := common.PubKey32{0xB0}
	sourceTxid := common.Hash256{0x00, 0x01}
	seedUTXO(t, l, sourceTxid, 0, TXOutput{Value: common.AmountFromFloat32(10.0), PublicKey: alice})

	tx := &Transaction{
		From: alice,
		Vin:  []TXInput{{Txid: sourceTxid, VoutIndex: 0}},
		Vout: []TXOutput{
			{Value: common.AmountFromFloat32(5.0), PublicKey: bob},
			{Value: common.AmountFromFloat32(4.99), PublicKey: alice},
		},
	}
	tx.Txid = tx.ComputeTxid()

	err := l.Verify(tx)
	require.Error(t, err)

	_, stillThere := l.UTXO(UTXOKey{Txid: sourceTxid, VoutIndex: 0})
	require.True(t, stillThere, "rejected verify must not mutate state")
}

func TestUTXOIdempotence(t *testing.T) {
	l := newTestLedger(t)

	alice := common.PubKey32{0xA1}
	bob := common.PubKey32{0xB0}
	sourceTxid := common.Hash256{0x00, 0x01}
	seedUTXO(t, l, sourceTxid, 0, TXOutput{Value: common.AmountFromFloat32(10.0), PublicKey: alice})

	tx := &Transaction{
		From: alice,
		Vin:  []TXInput{{Txid: sourceTxid, VoutIndex: 0}},
		Vout: []TXOutput{
			{Value: common.AmountFromFloat32(10.0), PublicKey: bob},
		},
	}
	tx.Txid = tx.ComputeTxid()
	require.NoError(t, l.Commit(tx))

	balanceAfterFirst := l.Balance(bob)
	utxoAfterFirst, _ := l.UTXO(UTXOKey{Txid: tx.Txid, VoutIndex: 0})

	require.NoError(t, l.Commit(tx))

	require.Equal(t, balanceAfterFirst, l.Balance(bob))
	utxoAfterSecond, _ := l.UTXO(UTXOKey{Txid: tx.Txid, VoutIndex: 0})
	require.Equal(t, utxoAfterFirst, utxoAfterSecond)
}

func TestReplayRebuildsState(t *testing.T) {
	db := database.NewMemDatabase()
	l := New(db)
	require.NoError(t, l.EnsureGenesis())

	alice := common.PubKey32{0xA1}
	bob := common.PubKey32{0xB0}
	sourceTxid := common.Hash256{0x00, 0x01}
	seedUTXO(t, l, sourceTxid, 0, TXOutput{Value: common.AmountFromFloat32(10.0), PublicKey: alice})

	tx := &Transaction{
		From: alice,
		Vin:  []TXInput{{Txid: sourceTxid, VoutIndex: 0}},
		Vout: []TXOutput{{Value: common.AmountFromFloat32(10.0), PublicKey: bob}},
	}
	tx.Txid = tx.ComputeTxid()
	require.NoError(t, l.Commit(tx))

	fresh := New(db)
	require.NoError(t, fresh.Replay())
	require.Equal(t, common.AmountFromFloat32(10.0), fresh.Balance(bob))
	require.True(t, fresh.IsCommitted(tx.Txid))
}
