package rpcapi

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/concilium-labs/conciliumd/common"
	"github.com/concilium-labs/conciliumd/ledger"
	"github.com/concilium-labs/conciliumd/log"
	"github.com/concilium-labs/conciliumd/pipeline"
	"github.com/concilium-labs/conciliumd/wallet"
)

const contentType = "application/json"

// Server exposes the four spec.md §4.8 jrpc methods over a single JSON-RPC
// 2.0 HTTP endpoint, matching the teacher's networks/rpc reliance on
// httprouter for its HTTP transport.
type Server struct {
	Submit *pipeline.Submit
	Ledger *ledger.Ledger
	log    log.Logger
}

// NewServer constructs an rpcapi Server over submit (the transaction entry
// path) and l (for the three read-only query methods).
func NewServer(submit *pipeline.Submit, l *ledger.Ledger) *Server {
	return &Server{Submit: submit, Ledger: l, log: log.NewModuleLogger(log.ModuleJSONRPC)}
}

// Router builds the httprouter.Router serving this Server at POST /.
func (s *Server) Router() *httprouter.Router {
	r := httprouter.New()
	r.POST("/", s.handle)
	return r
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", contentType)

	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, nil, -32700, "parse error")
		return
	}

	switch req.Method {
	case "send_raw_transaction":
		s.handleSendRawTransaction(w, r, req)
	case "get_transaction_by_hash":
		s.handleGetTransactionByHash(w, req)
	case "get_account_transactions":
		s.handleGetAccountTransactions(w, req)
	case "get_address_utxos":
		s.handleGetAddressUtxos(w, req)
	default:
		writeError(w, req.ID, -32601, "method not found")
	}
}

func (s *Server) handleSendRawTransaction(w http.ResponseWriter, r *http.Request, req request) {
	var p SendRawTransactionRequest
	if err := json.Unmarshal(req.Params, &p); err != nil {
		writeError(w, req.ID, -32602, "invalid params(convert to SendRawTransactionRequest is failed)")
		return
	}

	tx, err := sendRawTransactionRequestToTransaction(p)
	if err != nil {
		writeError(w, req.ID, -32602, "invalid params(convert to Transaction is failed)")
		return
	}

	if !wallet.Verify(tx.From, tx.Txid, tx.Signature) {
		writeResult(w, req.ID, SendRawTransactionResponse{Status: false})
		return
	}

	result, err := s.Submit.Handle(r.Context(), tx)
	if err != nil {
		writeResult(w, req.ID, SendRawTransactionResponse{Status: false})
		return
	}

	writeResult(w, req.ID, SendRawTransactionResponse{
		Status:                         true,
		Txid:                           hex.EncodeToString(result.CommittedTxid[:]),
		AccreditationCouncilAggregated: hex.EncodeToString(result.CouncilSig[:]),
		BroadcastAggregated:            hex.EncodeToString(result.BroadcastSig[:]),
	})
}

func (s *Server) handleGetTransactionByHash(w http.ResponseWriter, req request) {
	var p struct {
		Txid string `json:"txid"`
	}
	if err := json.Unmarshal(req.Params, &p); err != nil {
		writeResult(w, req.ID, GetTransactionByHashResponse{Status: false})
		return
	}
	txid, err := decodeHash256(p.Txid)
	if err != nil {
		writeResult(w, req.ID, GetTransactionByHashResponse{Status: false})
		return
	}
	tx, ok, err := s.Ledger.TransactionByTxid(txid)
	if err != nil || !ok {
		writeResult(w, req.ID, GetTransactionByHashResponse{Status: false})
		return
	}
	entry := toEntry(tx)
	writeResult(w, req.ID, GetTransactionByHashResponse{Status: true, Transaction: &entry})
}

func (s *Server) handleGetAccountTransactions(w http.ResponseWriter, req request) {
	var p struct {
		PublicKey string `json:"public_key"`
	}
	if err := json.Unmarshal(req.Params, &p); err != nil {
		writeResult(w, req.ID, GetAccountTransactionsResponse{Status: false})
		return
	}
	pub, err := decodePubKey32(p.PublicKey)
	if err != nil {
		writeResult(w, req.ID, GetAccountTransactionsResponse{Status: false})
		return
	}

	txids := s.Ledger.AccountTransactions(pub)
	entries := make([]transactionByHashEntry, 0, len(txids))
	for _, txid := range txids {
		tx, ok, err := s.Ledger.TransactionByTxid(txid)
		if err != nil || !ok {
			continue
		}
		entries = append(entries, toEntry(tx))
	}
	writeResult(w, req.ID, GetAccountTransactionsResponse{Status: true, Transactions: entries})
}

func (s *Server) handleGetAddressUtxos(w http.ResponseWriter, req request) {
	var p struct {
		PublicKey string `json:"public_key"`
	}
	if err := json.Unmarshal(req.Params, &p); err != nil {
		writeResult(w, req.ID, GetAddressUtxosResponse{Status: false})
		return
	}
	pub, err := decodePubKey32(p.PublicKey)
	if err != nil {
		writeResult(w, req.ID, GetAddressUtxosResponse{Status: false})
		return
	}

	entries := s.Ledger.UTXOsByOwner(pub)
	rows := make([]getAddressUtxosVoutRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, getAddressUtxosVoutRow{
			Txid:      hex.EncodeToString(e.Key.Txid[:]),
			VoutIndex: e.Key.VoutIndex,
			Value:     int64(e.Output.Value),
		})
	}
	writeResult(w, req.ID, GetAddressUtxosResponse{Status: true, Vout: rows})
}

func sendRawTransactionRequestToTransaction(p SendRawTransactionRequest) (*ledger.Transaction, error) {
	from, err := decodePubKey32(p.From)
	if err != nil {
		return nil, err
	}
	sig, err := decodeSig64(p.Signature)
	if err != nil {
		return nil, err
	}

	vin := make([]ledger.TXInput, len(p.Vin))
	for i, in := range p.Vin {
		txid, err := decodeHash256(in.Txid)
		if err != nil {
			return nil, err
		}
		vin[i] = ledger.TXInput{Txid: txid, VoutIndex: in.VoutIndex}
	}
	vout := make([]ledger.TXOutput, len(p.Vout))
	for i, out := range p.Vout {
		pub, err := decodePubKey32(out.PublicKey)
		if err != nil {
			return nil, err
		}
		vout[i] = ledger.TXOutput{Value: common.Amount(out.Value), PublicKey: pub}
	}

	tx := &ledger.Transaction{
		From:      from,
		Signature: sig,
		Nonce:     p.Nonce,
		CreatedAt: time.Unix(p.CreatedAt, 0).UTC(),
		Vin:       vin,
		Vout:      vout,
	}
	tx.Txid = tx.ComputeTxid()
	return tx, nil
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	_ = json.NewEncoder(w).Encode(response{JSONRPC: "2.0", ID: id, Result: result})
}

func writeError(w http.ResponseWriter, id interface{}, code int, message string) {
	_ = json.NewEncoder(w).Encode(response{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}})
}
