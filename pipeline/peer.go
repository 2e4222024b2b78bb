package pipeline

import (
	"github.com/concilium-labs/conciliumd/blscrypto"
	"github.com/concilium-labs/conciliumd/cerrors"
	"github.com/concilium-labs/conciliumd/common"
	"github.com/concilium-labs/conciliumd/ledger"
	"github.com/concilium-labs/conciliumd/log"
	"github.com/concilium-labs/conciliumd/wallet"
)

// CouncilMember is the receiving side of spec.md §4.6 step c: a node
// asked to accredit a transaction it did not originate. It performs the
// same signature, txid, and UTXO checks the leader does and either
// co-signs or reports status=false — it never mutates the ledger.
type CouncilMember struct {
	BLSKey *blscrypto.PrivateKey
	Ledger *ledger.Ledger
	log    log.Logger
}

// NewCouncilMember constructs a CouncilMember over the node's identity
// key and ledger.
func NewCouncilMember(blsKey *blscrypto.PrivateKey, l *ledger.Ledger) *CouncilMember {
	return &CouncilMember{BLSKey: blsKey, Ledger: l, log: log.NewModuleLogger(log.ModulePipeline)}
}

// Accredit implements spec.md §4.6 step c's per-member check.
func (c *CouncilMember) Accredit(txBytes []byte) (ok bool, sig common.Sig96) {
	tx, err := ledger.DecodeTransaction(txBytes)
	if err != nil {
		c.log.Warn("accredit: decode failed", "err", err)
		return false, sig
	}
	if recomputed := tx.ComputeTxid(); recomputed != tx.Txid {
		c.log.Warn("accredit: txid mismatch", "txid", tx.Txid)
		return false, sig
	}
	if !wallet.Verify(tx.From, tx.Txid, tx.Signature) {
		c.log.Warn("accredit: signature verify failed", "txid", tx.Txid)
		return false, sig
	}
	if err := c.Ledger.Verify(tx); err != nil {
		c.log.Warn("accredit: utxo verify failed", "txid", tx.Txid, "err", err)
		return false, sig
	}
	out, err := c.BLSKey.Sign(txBytes)
	if err != nil {
		c.log.Error("accredit: sign failed", "txid", tx.Txid, "err", err)
		return false, sig
	}
	return true, out
}

// BroadcastMember is the receiving side of spec.md §4.6 step e: a node
// asked to co-sign a council-approved envelope. Its role is replication
// quorum, not re-validation, so it signs unconditionally.
type BroadcastMember struct {
	BLSKey *blscrypto.PrivateKey
	log    log.Logger
}

// NewBroadcastMember constructs a BroadcastMember over the node's
// identity key.
func NewBroadcastMember(blsKey *blscrypto.PrivateKey) *BroadcastMember {
	return &BroadcastMember{BLSKey: blsKey, log: log.NewModuleLogger(log.ModulePipeline)}
}

// Relay signs envelopeBytes (binary(BroadcastTemp)) unconditionally.
func (b *BroadcastMember) Relay(envelopeBytes []byte) (common.Sig96, error) {
	sig, err := b.BLSKey.Sign(envelopeBytes)
	if err != nil {
		return sig, cerrors.E("pipeline.BroadcastMember.Relay", cerrors.KindInternal, err)
	}
	return sig, nil
}

// SaveMember is the receiving side of spec.md §4.6 step h: applies a
// leader's fire-and-forget replica of a committed transaction. Commit is
// idempotent on txid (spec.md §4.7, §9 item 2), so a save arriving before,
// after, or never relative to the leader's own commit converges to the
// same ledger state.
type SaveMember struct {
	Ledger *ledger.Ledger
	log    log.Logger
}

// NewSaveMember constructs a SaveMember over the node's ledger.
func NewSaveMember(l *ledger.Ledger) *SaveMember {
	return &SaveMember{Ledger: l, log: log.NewModuleLogger(log.ModulePipeline)}
}

// Save decodes and commits txBytes.
func (s *SaveMember) Save(txBytes []byte) error {
	tx, err := ledger.DecodeTransaction(txBytes)
	if err != nil {
		return cerrors.E("pipeline.SaveMember.Save", cerrors.KindTransportError, err)
	}
	if err := s.Ledger.Commit(tx); err != nil {
		return cerrors.E("pipeline.SaveMember.Save", cerrors.KindStorageError, err)
	}
	return nil
}
