package database

import (
	"encoding/hex"
	"strconv"
)

// Key names required by spec.md §6.
const (
	KeyIncludedGenesisTransactions = "included_genesis_transactions"
	KeyLastTransactionID           = "last_transaction_id"
)

// ValueGenesisIncluded is the sentinel value stored under
// KeyIncludedGenesisTransactions once genesis bootstrapping completes.
const ValueGenesisIncluded = "true"

// TransactionKey builds the "transaction.{txid_hex}" key.
func TransactionKey(txidHex string) []byte {
	return []byte("transaction." + txidHex)
}

// TransactionIDKey builds the "transaction.id.{n}" key.
func TransactionIDKey(n uint64) []byte {
	return []byte("transaction.id." + strconv.FormatUint(n, 10))
}

// EncodeTxidHex renders a 32-byte txid as the lowercase hex string used in
// TransactionKey.
func EncodeTxidHex(txid [32]byte) string {
	return hex.EncodeToString(txid[:])
}
