package ledger

import "github.com/concilium-labs/conciliumd/common"

// UTXOKey identifies a single unspent output (spec.md §3).
type UTXOKey struct {
	Txid      common.Hash256
	VoutIndex uint32
}

// UTXOSet maps (txid, vout_index) to its output record. Unexported so all
// mutation flows through Ledger.Commit's single critical section (spec.md
// §4.7, §5).
type utxoSet map[UTXOKey]TXOutput

func newUTXOSet() utxoSet {
	return make(utxoSet)
}

func (s utxoSet) get(k UTXOKey) (TXOutput, bool) {
	v, ok := s[k]
	return v, ok
}

func (s utxoSet) insert(k UTXOKey, out TXOutput) {
	s[k] = out
}

func (s utxoSet) remove(k UTXOKey) {
	delete(s, k)
}
