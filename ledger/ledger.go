package ledger

import (
	"encoding/binary"
	"sync"

	"github.com/concilium-labs/conciliumd/cerrors"
	"github.com/concilium-labs/conciliumd/common"
	"github.com/concilium-labs/conciliumd/log"
	"github.com/concilium-labs/conciliumd/storage/database"
)

// Ledger owns the UTXO set, ChainState, and the persisted transaction log,
// guarded by a single logical read/write lock per spec.md §4.7/§5.
type Ledger struct {
	mu        sync.RWMutex
	db        database.Database
	utxo      utxoSet
	state     *chainState
	committed map[common.Hash256]struct{}
	lastTxID  uint64
	log       log.Logger
}

// New constructs a Ledger over db. Genesis bootstrapping is applied by
// calling EnsureGenesis on the returned Ledger.
func New(db database.Database) *Ledger {
	return &Ledger{
		db:        db,
		utxo:      newUTXOSet(),
		state:     newChainState(),
		committed: make(map[common.Hash256]struct{}),
		log:       log.NewModuleLogger(log.ModuleLedger),
	}
}

// EnsureGenesis writes the genesis sentinel key on first start, matching
// spec.md §6's included_genesis_transactions key.
func (l *Ledger) EnsureGenesis() error {
	has, err := l.db.Has([]byte(database.KeyIncludedGenesisTransactions))
	if err != nil {
		return cerrors.E("ledger.EnsureGenesis", cerrors.KindStorageError, err)
	}
	if has {
		return nil
	}
	if err := l.db.Put([]byte(database.KeyIncludedGenesisTransactions), []byte(database.ValueGenesisIncluded)); err != nil {
		return cerrors.E("ledger.EnsureGenesis", cerrors.KindStorageError, err)
	}
	return l.db.Put([]byte(database.KeyLastTransactionID), encodeU64(0))
}

// Replay reloads UTXO/ChainState from the persisted transaction log on
// startup, applying each recorded transaction in insertion order.
func (l *Ledger) Replay() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	raw, err := l.db.Get([]byte(database.KeyLastTransactionID))
	if err != nil {
		if err == database.ErrNotFound {
			return nil
		}
		return cerrors.E("ledger.Replay", cerrors.KindStorageError, err)
	}
	last := decodeU64(raw)

	for n := uint64(1); n <= last; n++ {
		txidHex, err := l.db.Get(database.TransactionIDKey(n))
		if err != nil {
			return cerrors.E("ledger.Replay", cerrors.KindStorageError, err)
		}
		txBytes, err := l.db.Get(database.TransactionKey(string(txidHex)))
		if err != nil {
			return cerrors.E("ledger.Replay", cerrors.KindStorageError, err)
		}
		tx, err := DecodeTransaction(txBytes)
		if err != nil {
			return cerrors.E("ledger.Replay", cerrors.KindStorageError, err)
		}
		l.applyLocked(tx)
	}
	l.lastTxID = last
	return nil
}

// Commit applies tx to the UTXO set and ChainState under the ledger's
// single critical section, persisting the transaction and advancing the
// transaction-id counter (spec.md §4.7). A second Commit of an
// already-committed txid is a verified no-op (spec.md §4.7, §8 property 5;
// resolves the open question of spec.md §9 item 2).
func (l *Ledger) Commit(tx *Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, already := l.committed[tx.Txid]; already {
		l.log.Debug("commit is a no-op, txid already applied", "txid", tx.Txid)
		return nil
	}

	txBytes := tx.Encode()
	txidHex := database.EncodeTxidHex(tx.Txid)
	if err := l.db.Put(database.TransactionKey(txidHex), txBytes); err != nil {
		return cerrors.E("ledger.Commit", cerrors.KindStorageError, err)
	}

	l.lastTxID++
	if err := l.db.Put(database.TransactionIDKey(l.lastTxID), []byte(txidHex)); err != nil {
		return cerrors.E("ledger.Commit", cerrors.KindStorageError, err)
	}
	if err := l.db.Put([]byte(database.KeyLastTransactionID), encodeU64(l.lastTxID)); err != nil {
		return cerrors.E("ledger.Commit", cerrors.KindStorageError, err)
	}

	l.applyLocked(tx)
	return nil
}

// applyLocked mutates UTXO/ChainState for tx; caller holds l.mu.
func (l *Ledger) applyLocked(tx *Transaction) {
	for _, in := range tx.Vin {
		l.utxo.remove(UTXOKey{Txid: in.Txid, VoutIndex: in.VoutIndex})
	}
	for i, out := range tx.Vout {
		key := UTXOKey{Txid: tx.Txid, VoutIndex: uint32(i)}
		l.utxo.insert(key, out)
		l.state.credit(out.PublicKey, out.Value, tx.Txid)
	}
	l.state.debit(tx.From, tx.SumVout(), tx.Txid)
	l.committed[tx.Txid] = struct{}{}
}

// Verify checks UTXO existence, ownership, and conservation for tx without
// mutating state (spec.md §4.6a leader/council revalidation).
func (l *Ledger) Verify(tx *Transaction) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	resolved := make([]TXOutput, 0, len(tx.Vin))
	for _, in := range tx.Vin {
		out, ok := l.utxo.get(UTXOKey{Txid: in.Txid, VoutIndex: in.VoutIndex})
		if !ok {
			return cerrors.E("ledger.Verify", cerrors.KindInvalidUTXO, nil)
		}
		if out.PublicKey != tx.From {
			return cerrors.E("ledger.Verify", cerrors.KindInvalidUTXO, nil)
		}
		resolved = append(resolved, out)
	}
	if SumVin(resolved) != tx.SumVout() {
		return cerrors.E("ledger.Verify", cerrors.KindInvalidUTXO, nil)
	}
	return nil
}

// SeedGenesisUTXO inserts an unspent output with no parent transaction,
// the mechanism by which genesis allocations enter a UTXO chain (spec.md
// §6 genesis bootstrapping).
func (l *Ledger) SeedGenesisUTXO(txid common.Hash256, index uint32, out TXOutput) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.utxo.insert(UTXOKey{Txid: txid, VoutIndex: index}, out)
}

// UTXO returns the output at key, if unspent.
func (l *Ledger) UTXO(key UTXOKey) (TXOutput, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.utxo.get(key)
}

// Balance returns the current balance for pub.
func (l *Ledger) Balance(pub common.PubKey32) common.Amount {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.balance(pub)
}

// SumBalances totals every tracked account balance (testable property 4).
func (l *Ledger) SumBalances() common.Amount {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.sumBalances()
}

// IsCommitted reports whether txid has already been applied.
func (l *Ledger) IsCommitted(txid common.Hash256) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.committed[txid]
	return ok
}

// TransactionByTxid loads a committed transaction from the persisted log
// (spec.md §4.8 jrpc get_transaction_by_hash).
func (l *Ledger) TransactionByTxid(txid common.Hash256) (*Transaction, bool, error) {
	txidHex := database.EncodeTxidHex(txid)
	raw, err := l.db.Get(database.TransactionKey(txidHex))
	if err != nil {
		if err == database.ErrNotFound {
			return nil, false, nil
		}
		return nil, false, cerrors.E("ledger.TransactionByTxid", cerrors.KindStorageError, err)
	}
	tx, err := DecodeTransaction(raw)
	if err != nil {
		return nil, false, cerrors.E("ledger.TransactionByTxid", cerrors.KindStorageError, err)
	}
	return tx, true, nil
}

// AccountTransactions returns every txid that credited or debited pub
// (spec.md §4.8 jrpc get_account_transactions).
func (l *Ledger) AccountTransactions(pub common.PubKey32) []common.Hash256 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	set, ok := l.state.transactions[pub]
	if !ok {
		return nil
	}
	out := make([]common.Hash256, 0, len(set))
	for txid := range set {
		out = append(out, txid)
	}
	return out
}

// UTXOEntry pairs a UTXOKey with its output for enumeration by owner.
type UTXOEntry struct {
	Key    UTXOKey
	Output TXOutput
}

// UTXOsByOwner enumerates every unspent output owned by pub (spec.md §4.8
// jrpc get_address_utxos).
func (l *Ledger) UTXOsByOwner(pub common.PubKey32) []UTXOEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []UTXOEntry
	for k, v := range l.utxo {
		if v.PublicKey == pub {
			out = append(out, UTXOEntry{Key: k, Output: v})
		}
	}
	return out
}

func encodeU64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func decodeU64(b []byte) uint64 {
	if len(b) < 8 {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}
