// Package rpcapi is the client-facing JSON-RPC edge (spec.md §4.8): four
// methods for submitting and querying transactions, carried over HTTP.
// Grounded on original_source/jrpc/src/*.rs for the method names and
// response shapes; transport follows the teacher's networks/rpc reliance
// on github.com/julienschmidt/httprouter.
package rpcapi

import (
	"encoding/hex"
	"encoding/json"
	"errors"

	"github.com/concilium-labs/conciliumd/common"
	"github.com/concilium-labs/conciliumd/ledger"
)

var errInvalidLength = errors.New("rpcapi: invalid hex field length")

// request is the JSON-RPC 2.0 envelope, mirroring jsonrpsee's
// Params::parse(single object) convention on the Rust side.
type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *rpcError   `json:"error,omitempty"`
}

// SendRawTransactionRequest mirrors jrpc::transaction::SendRawTransactionRequest.
type SendRawTransactionRequest struct {
	From      string            `json:"from"`
	Signature string            `json:"signature"`
	Nonce     uint64            `json:"nonce"`
	CreatedAt int64             `json:"created_at"`
	Vin       []txInputRequest  `json:"vin"`
	Vout      []txOutputRequest `json:"vout"`
}

type txInputRequest struct {
	Txid      string `json:"txid"`
	VoutIndex uint32 `json:"vout"`
}

type txOutputRequest struct {
	Value     int64  `json:"value"`
	PublicKey string `json:"public_key"`
}

// SendRawTransactionResponse mirrors jrpc::transaction::SendRawTransactionResponse.
type SendRawTransactionResponse struct {
	Status                         bool   `json:"status"`
	Txid                           string `json:"txid"`
	AccreditationCouncilAggregated string `json:"accreditation_council_aggregated_signature"`
	BroadcastAggregated            string `json:"broadcast_aggregated_signature"`
}

// GetTransactionByHashResponse mirrors jrpc::transaction::GetTransactionByHashResponse.
type GetTransactionByHashResponse struct {
	Status      bool                    `json:"status"`
	Transaction *transactionByHashEntry `json:"transaction,omitempty"`
}

type transactionByHashEntry struct {
	Txid      string                `json:"txid"`
	From      string                `json:"from"`
	Signature string                `json:"signature"`
	Nonce     uint64                `json:"nonce"`
	CreatedAt int64                 `json:"created_at"`
	Vin       []txInputRequest      `json:"vin"`
	Vout      []txOutputResponse    `json:"vout"`
}

type txOutputResponse struct {
	Value     int64  `json:"value"`
	PublicKey string `json:"public_key"`
}

// GetAccountTransactionsResponse mirrors jrpc::transaction::GetAccountTransactionsResponse.
type GetAccountTransactionsResponse struct {
	Status       bool                     `json:"status"`
	Transactions []transactionByHashEntry `json:"transactions"`
}

// GetAddressUtxosResponse mirrors jrpc::utxo::GetAddressUtxosResponse.
type GetAddressUtxosResponse struct {
	Status bool                     `json:"status"`
	Vout   []getAddressUtxosVoutRow `json:"vout"`
}

type getAddressUtxosVoutRow struct {
	Txid      string `json:"txid"`
	VoutIndex uint32 `json:"vout"`
	Value     int64  `json:"value"`
}

func toEntry(tx *ledger.Transaction) transactionByHashEntry {
	vin := make([]txInputRequest, len(tx.Vin))
	for i, in := range tx.Vin {
		vin[i] = txInputRequest{Txid: hex.EncodeToString(in.Txid[:]), VoutIndex: in.VoutIndex}
	}
	vout := make([]txOutputResponse, len(tx.Vout))
	for i, out := range tx.Vout {
		vout[i] = txOutputResponse{Value: int64(out.Value), PublicKey: hex.EncodeToString(out.PublicKey[:])}
	}
	return transactionByHashEntry{
		Txid:      hex.EncodeToString(tx.Txid[:]),
		From:      hex.EncodeToString(tx.From[:]),
		Signature: hex.EncodeToString(tx.Signature[:]),
		Nonce:     tx.Nonce,
		CreatedAt: tx.CreatedAt.Unix(),
		Vin:       vin,
		Vout:      vout,
	}
}

func decodeHash256(s string) (common.Hash256, error) {
	var h common.Hash256
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}
	if len(b) != len(h) {
		return h, errInvalidLength
	}
	copy(h[:], b)
	return h, nil
}

func decodePubKey32(s string) (common.PubKey32, error) {
	var p common.PubKey32
	b, err := hex.DecodeString(s)
	if err != nil {
		return p, err
	}
	if len(b) != len(p) {
		return p, errInvalidLength
	}
	copy(p[:], b)
	return p, nil
}

func decodeSig64(s string) (common.Sig64, error) {
	var sig common.Sig64
	b, err := hex.DecodeString(s)
	if err != nil {
		return sig, err
	}
	if len(b) != len(sig) {
		return sig, errInvalidLength
	}
	copy(sig[:], b)
	return sig, nil
}
