// Package ledger implements the UTXO set, ChainState, and Transaction
// types of spec.md §3/§4.7. No teacher file covers a UTXO model (klaytn is
// account-based); this package is built fresh in the teacher's locking and
// persistence idiom, grounded on original_source/core-ext/src/chain_state.rs
// and original_source/transaction/src/lib.rs for the exact field shapes.
package ledger

import (
	"time"

	"github.com/concilium-labs/conciliumd/codec"
	"github.com/concilium-labs/conciliumd/common"
)

// TXInput references an unspent output being consumed.
type TXInput struct {
	Txid     common.Hash256
	VoutIndex uint32
}

// TXOutput is a newly minted value assigned to a public key.
type TXOutput struct {
	Value     common.Amount
	PublicKey common.PubKey32
}

// Transaction is the spec.md §3 payment transaction.
type Transaction struct {
	Txid      common.Hash256
	From      common.PubKey32
	Signature common.Sig64
	Nonce     uint64
	CreatedAt time.Time
	Vin       []TXInput
	Vout      []TXOutput
}

// encode writes the deterministic binary encoding of tx. When
// zeroSignable is true, Txid and Signature are written as all-zero,
// matching spec.md §3's txid formula: SHA-256(binary(tx with txid and
// signature zeroed)).
func (tx *Transaction) encode(w *codec.Writer, zeroSignable bool) {
	if zeroSignable {
		w.Fixed(make([]byte, 32))
		w.Fixed(make([]byte, 64))
	} else {
		w.Fixed(tx.Txid[:])
		w.Fixed(tx.Signature[:])
	}
	w.Fixed(tx.From[:])
	w.U64(tx.Nonce)
	w.I64(tx.CreatedAt.Unix())
	w.U32(uint32(len(tx.Vin)))
	for _, in := range tx.Vin {
		w.Fixed(in.Txid[:])
		w.U32(in.VoutIndex)
	}
	w.U32(uint32(len(tx.Vout)))
	for _, out := range tx.Vout {
		w.I64(int64(out.Value))
		w.Fixed(out.PublicKey[:])
	}
}

// Encode returns the full deterministic encoding of tx, txid and
// signature included, used for Ed25519/BLS signing surfaces and on-disk
// storage (spec.md §4.6b signs binary(tx), §6 transaction.{txid_hex}).
func (tx *Transaction) Encode() []byte {
	w := codec.NewWriter()
	tx.encode(w, false)
	return w.Bytes()
}

// signableEncoding returns the encoding used to derive Txid: the same
// layout with Txid and Signature zeroed.
func (tx *Transaction) signableEncoding() []byte {
	w := codec.NewWriter()
	tx.encode(w, true)
	return w.Bytes()
}

// ComputeTxid returns SHA-256(binary(tx with txid and signature zeroed)),
// per spec.md §3 and testable property 1 (§8).
func (tx *Transaction) ComputeTxid() common.Hash256 {
	return common.SHA256(tx.signableEncoding())
}

// DecodeTransaction parses the encoding produced by Encode.
func DecodeTransaction(b []byte) (*Transaction, error) {
	r := codec.NewReader(b)
	tx := &Transaction{}

	if err := r.Fixed(tx.Txid[:]); err != nil {
		return nil, err
	}
	if err := r.Fixed(tx.Signature[:]); err != nil {
		return nil, err
	}
	if err := r.Fixed(tx.From[:]); err != nil {
		return nil, err
	}
	nonce, err := r.U64()
	if err != nil {
		return nil, err
	}
	tx.Nonce = nonce

	createdAt, err := r.I64()
	if err != nil {
		return nil, err
	}
	tx.CreatedAt = time.Unix(createdAt, 0).UTC()

	vinCount, err := r.U32()
	if err != nil {
		return nil, err
	}
	tx.Vin = make([]TXInput, vinCount)
	for i := range tx.Vin {
		if err := r.Fixed(tx.Vin[i].Txid[:]); err != nil {
			return nil, err
		}
		idx, err := r.U32()
		if err != nil {
			return nil, err
		}
		tx.Vin[i].VoutIndex = idx
	}

	voutCount, err := r.U32()
	if err != nil {
		return nil, err
	}
	tx.Vout = make([]TXOutput, voutCount)
	for i := range tx.Vout {
		v, err := r.I64()
		if err != nil {
			return nil, err
		}
		tx.Vout[i].Value = common.Amount(v)
		if err := r.Fixed(tx.Vout[i].PublicKey[:]); err != nil {
			return nil, err
		}
	}

	if err := r.Done(); err != nil {
		return nil, err
	}
	return tx, nil
}

// SumVin returns the sum of a transaction's output values it would
// consume, given their resolved TXOutput records (conservation check
// input side, spec.md invariant 1).
func SumVin(outputs []TXOutput) common.Amount {
	var total common.Amount
	for _, o := range outputs {
		total += o.Value
	}
	return total
}

// SumVout returns the sum of a transaction's declared output values.
func (tx *Transaction) SumVout() common.Amount {
	var total common.Amount
	for _, o := range tx.Vout {
		total += o.Value
	}
	return total
}

// BroadcastTemp is the object the broadcast committee signs (spec.md §3).
type BroadcastTemp struct {
	Transaction     Transaction
	CouncilAggSig   common.Sig96
}

// Encode returns the deterministic encoding of a BroadcastTemp, the
// binary(BroadcastTemp) the broadcast committee signs (spec.md §4.6e).
func (b *BroadcastTemp) Encode() []byte {
	w := codec.NewWriter()
	b.Transaction.encode(w, false)
	w.Fixed(b.CouncilAggSig[:])
	return w.Bytes()
}

// DecodeBroadcastTemp parses the encoding produced by Encode, used by a
// broadcast-set member on receipt of a Relay request (spec.md §4.6e).
func DecodeBroadcastTemp(b []byte) (*BroadcastTemp, error) {
	r := codec.NewReader(b)
	tx := Transaction{}

	if err := r.Fixed(tx.Txid[:]); err != nil {
		return nil, err
	}
	if err := r.Fixed(tx.Signature[:]); err != nil {
		return nil, err
	}
	if err := r.Fixed(tx.From[:]); err != nil {
		return nil, err
	}
	nonce, err := r.U64()
	if err != nil {
		return nil, err
	}
	tx.Nonce = nonce

	createdAt, err := r.I64()
	if err != nil {
		return nil, err
	}
	tx.CreatedAt = time.Unix(createdAt, 0).UTC()

	vinCount, err := r.U32()
	if err != nil {
		return nil, err
	}
	tx.Vin = make([]TXInput, vinCount)
	for i := range tx.Vin {
		if err := r.Fixed(tx.Vin[i].Txid[:]); err != nil {
			return nil, err
		}
		idx, err := r.U32()
		if err != nil {
			return nil, err
		}
		tx.Vin[i].VoutIndex = idx
	}

	voutCount, err := r.U32()
	if err != nil {
		return nil, err
	}
	tx.Vout = make([]TXOutput, voutCount)
	for i := range tx.Vout {
		v, err := r.I64()
		if err != nil {
			return nil, err
		}
		tx.Vout[i].Value = common.Amount(v)
		if err := r.Fixed(tx.Vout[i].PublicKey[:]); err != nil {
			return nil, err
		}
	}

	bt := &BroadcastTemp{Transaction: tx}
	if err := r.Fixed(bt.CouncilAggSig[:]); err != nil {
		return nil, err
	}
	if err := r.Done(); err != nil {
		return nil, err
	}
	return bt, nil
}
