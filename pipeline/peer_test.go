package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/concilium-labs/conciliumd/blscrypto"
	"github.com/concilium-labs/conciliumd/common"
	"github.com/concilium-labs/conciliumd/ledger"
	"github.com/concilium-labs/conciliumd/storage/database"
	"github.com/concilium-labs/conciliumd/wallet"
)

func buildSignedTransfer(t *testing.T, l *ledger.Ledger, seed byte, amount float32) *ledger.Transaction {
	t.Helper()

	from, err := wallet.Generate()
	require.NoError(t, err)
	to, err := wallet.Generate()
	require.NoError(t, err)

	sourceTxid := common.Hash256{seed}
	l.SeedGenesisUTXO(sourceTxid, 0, ledger.TXOutput{Value: common.AmountFromFloat32(amount), PublicKey: from.Public})

	tx := &ledger.Transaction{
		From:      from.Public,
		CreatedAt: time.Unix(1000, 0).UTC(),
		Vin:       []ledger.TXInput{{Txid: sourceTxid, VoutIndex: 0}},
		Vout:      []ledger.TXOutput{{Value: common.AmountFromFloat32(amount), PublicKey: to.Public}},
	}
	tx.Txid = tx.ComputeTxid()
	tx.Signature = from.Sign(tx.Txid)
	return tx
}

func TestCouncilMemberAccreditValidTransaction(t *testing.T) {
	db := database.NewMemDatabase()
	l := ledger.New(db)
	require.NoError(t, l.EnsureGenesis())

	tx := buildSignedTransfer(t, l, 0x10, 5.0)

	key, err := blscrypto.GenerateKey()
	require.NoError(t, err)
	pub, err := key.Public()
	require.NoError(t, err)

	member := NewCouncilMember(key, l)
	ok, sig := member.Accredit(tx.Encode())
	require.True(t, ok)

	valid, err := blscrypto.Verify(pub, tx.Encode(), sig)
	require.NoError(t, err)
	require.True(t, valid)

	// Accredit never mutates the ledger — only the leader commits.
	require.False(t, l.IsCommitted(tx.Txid))
}

func TestCouncilMemberRejectsForgedSignature(t *testing.T) {
	db := database.NewMemDatabase()
	l := ledger.New(db)
	require.NoError(t, l.EnsureGenesis())

	tx := buildSignedTransfer(t, l, 0x11, 2.0)

	mallory, err := wallet.Generate()
	require.NoError(t, err)
	tx.Signature = mallory.Sign(tx.Txid)

	key, err := blscrypto.GenerateKey()
	require.NoError(t, err)
	member := NewCouncilMember(key, l)

	ok, _ := member.Accredit(tx.Encode())
	require.False(t, ok)
}

func TestCouncilMemberRejectsAlreadySpentUTXO(t *testing.T) {
	db := database.NewMemDatabase()
	l := ledger.New(db)
	require.NoError(t, l.EnsureGenesis())

	tx := buildSignedTransfer(t, l, 0x12, 4.0)
	require.NoError(t, l.Commit(tx))

	key, err := blscrypto.GenerateKey()
	require.NoError(t, err)
	member := NewCouncilMember(key, l)

	// The leader's own commit above already spent tx's source UTXO; a
	// council member asked to accredit the identical bytes a second time
	// (e.g. a retransmitted Forward) must find nothing left to spend.
	ok, _ := member.Accredit(tx.Encode())
	require.False(t, ok)
}

func TestCouncilMemberRejectsMalformedBytes(t *testing.T) {
	db := database.NewMemDatabase()
	l := ledger.New(db)
	require.NoError(t, l.EnsureGenesis())

	key, err := blscrypto.GenerateKey()
	require.NoError(t, err)
	member := NewCouncilMember(key, l)

	ok, sig := member.Accredit([]byte("not a transaction"))
	require.False(t, ok)
	require.Equal(t, common.Sig96{}, sig)
}

func TestBroadcastMemberSignsUnconditionally(t *testing.T) {
	key, err := blscrypto.GenerateKey()
	require.NoError(t, err)
	pub, err := key.Public()
	require.NoError(t, err)

	member := NewBroadcastMember(key)
	envelope := []byte("arbitrary council-approved envelope")

	sig, err := member.Relay(envelope)
	require.NoError(t, err)

	valid, err := blscrypto.Verify(pub, envelope, sig)
	require.NoError(t, err)
	require.True(t, valid)
}

func TestSaveMemberCommitIsIdempotent(t *testing.T) {
	db := database.NewMemDatabase()
	l := ledger.New(db)
	require.NoError(t, l.EnsureGenesis())

	tx := buildSignedTransfer(t, l, 0x13, 7.0)

	saver := NewSaveMember(l)
	require.NoError(t, saver.Save(tx.Encode()))
	require.True(t, l.IsCommitted(tx.Txid))

	// A second save of the same transaction (e.g. the leader's own
	// commit racing the fire-and-forget save fanout) must not error.
	require.NoError(t, saver.Save(tx.Encode()))
}

func TestSaveMemberRejectsMalformedBytes(t *testing.T) {
	db := database.NewMemDatabase()
	l := ledger.New(db)
	require.NoError(t, l.EnsureGenesis())

	saver := NewSaveMember(l)
	err := saver.Save([]byte("garbage"))
	require.Error(t, err)
}
