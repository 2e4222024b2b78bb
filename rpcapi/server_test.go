package rpcapi

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/concilium-labs/conciliumd/common"
	"github.com/concilium-labs/conciliumd/ledger"
	"github.com/concilium-labs/conciliumd/storage/database"
	"github.com/concilium-labs/conciliumd/wallet"
)

func buildLedgerFixture(t *testing.T) (*ledger.Ledger, *wallet.KeyPair, common.Hash256) {
	t.Helper()
	db := database.NewMemDatabase()
	l := ledger.New(db)
	require.NoError(t, l.EnsureGenesis())

	alice, err := wallet.Generate()
	require.NoError(t, err)
	bob, err := wallet.Generate()
	require.NoError(t, err)

	sourceTxid := common.Hash256{0x07}
	l.SeedGenesisUTXO(sourceTxid, 0, ledger.TXOutput{Value: common.AmountFromFloat32(5.0), PublicKey: alice.Public})

	tx := &ledger.Transaction{
		From:      alice.Public,
		Nonce:     1,
		CreatedAt: time.Unix(2000, 0).UTC(),
		Vin:       []ledger.TXInput{{Txid: sourceTxid, VoutIndex: 0}},
		Vout:      []ledger.TXOutput{{Value: common.AmountFromFloat32(5.0), PublicKey: bob.Public}},
	}
	tx.Txid = tx.ComputeTxid()
	tx.Signature = alice.Sign(tx.Txid)
	require.NoError(t, l.Commit(tx))

	return l, bob, tx.Txid
}

func doRPC(t *testing.T, s *Server, method string, params interface{}) response {
	t.Helper()
	paramBytes, err := json.Marshal(params)
	require.NoError(t, err)
	body, err := json.Marshal(request{JSONRPC: "2.0", ID: 1, Method: method, Params: paramBytes})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/", bytes.NewReader(body))
	s.Router().ServeHTTP(rr, req)

	var resp response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestGetTransactionByHashFound(t *testing.T) {
	l, _, txid := buildLedgerFixture(t)
	s := NewServer(nil, l)

	resp := doRPC(t, s, "get_transaction_by_hash", map[string]string{"txid": hex.EncodeToString(txid[:])})
	require.Nil(t, resp.Error)

	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var got GetTransactionByHashResponse
	require.NoError(t, json.Unmarshal(raw, &got))
	require.True(t, got.Status)
	require.NotNil(t, got.Transaction)
	require.Equal(t, hex.EncodeToString(txid[:]), got.Transaction.Txid)
}

func TestGetTransactionByHashNotFound(t *testing.T) {
	l, _, _ := buildLedgerFixture(t)
	s := NewServer(nil, l)

	resp := doRPC(t, s, "get_transaction_by_hash", map[string]string{"txid": hex.EncodeToString(common.Hash256{0xFF}[:])})
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var got GetTransactionByHashResponse
	require.NoError(t, json.Unmarshal(raw, &got))
	require.False(t, got.Status)
}

func TestGetAccountTransactions(t *testing.T) {
	l, bob, txid := buildLedgerFixture(t)
	s := NewServer(nil, l)

	resp := doRPC(t, s, "get_account_transactions", map[string]string{"public_key": hex.EncodeToString(bob.Public[:])})
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var got GetAccountTransactionsResponse
	require.NoError(t, json.Unmarshal(raw, &got))
	require.True(t, got.Status)
	require.Len(t, got.Transactions, 1)
	require.Equal(t, hex.EncodeToString(txid[:]), got.Transactions[0].Txid)
}

func TestGetAddressUtxos(t *testing.T) {
	l, bob, txid := buildLedgerFixture(t)
	s := NewServer(nil, l)

	resp := doRPC(t, s, "get_address_utxos", map[string]string{"public_key": hex.EncodeToString(bob.Public[:])})
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var got GetAddressUtxosResponse
	require.NoError(t, json.Unmarshal(raw, &got))
	require.True(t, got.Status)
	require.Len(t, got.Vout, 1)
	require.Equal(t, hex.EncodeToString(txid[:]), got.Vout[0].Txid)
	require.Equal(t, int64(common.AmountFromFloat32(5.0)), got.Vout[0].Value)
}

func TestSendRawTransactionRejectsForgedSignature(t *testing.T) {
	l, _, _ := buildLedgerFixture(t)
	s := NewServer(nil, l)

	alice, err := wallet.Generate()
	require.NoError(t, err)
	mallory, err := wallet.Generate()
	require.NoError(t, err)

	sourceTxid := common.Hash256{0x08}
	l.SeedGenesisUTXO(sourceTxid, 0, ledger.TXOutput{Value: common.AmountFromFloat32(1.0), PublicKey: alice.Public})

	req := SendRawTransactionRequest{
		From:      hex.EncodeToString(alice.Public[:]),
		Nonce:     1,
		CreatedAt: 3000,
		Vin:       []txInputRequest{{Txid: hex.EncodeToString(sourceTxid[:]), VoutIndex: 0}},
		Vout:      []txOutputRequest{{Value: int64(common.AmountFromFloat32(1.0)), PublicKey: hex.EncodeToString(alice.Public[:])}},
	}
	forged := mallory.Sign(common.Hash256{})
	req.Signature = hex.EncodeToString(forged[:])

	resp := doRPC(t, s, "send_raw_transaction", req)
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var got SendRawTransactionResponse
	require.NoError(t, json.Unmarshal(raw, &got))
	require.False(t, got.Status)
}

func TestUnknownMethodReturnsError(t *testing.T) {
	l, _, _ := buildLedgerFixture(t)
	s := NewServer(nil, l)

	resp := doRPC(t, s, "not_a_real_method", map[string]string{})
	require.NotNil(t, resp.Error)
}
