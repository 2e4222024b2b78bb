package peer

import (
	"github.com/concilium-labs/conciliumd/codec"
	"github.com/concilium-labs/conciliumd/common"
)

// ForwardRequest carries a client-submitted transaction to the elected
// leader (spec.md §4.6 step 2, §4.8 Transaction/leader sub-stream).
type ForwardRequest struct {
	RequestID common.RequestID
	TxBytes   []byte
}

func (m *ForwardRequest) Marshal() ([]byte, error) {
	w := codec.NewWriter()
	w.Fixed(m.RequestID[:])
	w.VarBytes(m.TxBytes)
	return w.Bytes(), nil
}

func (m *ForwardRequest) Unmarshal(b []byte) error {
	r := codec.NewReader(b)
	var id common.RequestID
	if err := r.Fixed(id[:]); err != nil {
		return err
	}
	tx, err := r.VarBytes()
	if err != nil {
		return err
	}
	m.RequestID = id
	m.TxBytes = tx
	return r.Done()
}

// ForwardResponse is the leader's reply once committee signing resolves.
type ForwardResponse struct {
	Status        bool
	CouncilSig    common.Sig96
	BroadcastSig  common.Sig96
	CommittedTxid common.Hash256
}

func (m *ForwardResponse) Marshal() ([]byte, error) {
	w := codec.NewWriter()
	w.U8(boolByte(m.Status))
	w.Fixed(m.CouncilSig[:])
	w.Fixed(m.BroadcastSig[:])
	w.Fixed(m.CommittedTxid[:])
	return w.Bytes(), nil
}

func (m *ForwardResponse) Unmarshal(b []byte) error {
	r := codec.NewReader(b)
	status, err := r.U8()
	if err != nil {
		return err
	}
	var council, broadcast common.Sig96
	var txid common.Hash256
	if err := r.Fixed(council[:]); err != nil {
		return err
	}
	if err := r.Fixed(broadcast[:]); err != nil {
		return err
	}
	if err := r.Fixed(txid[:]); err != nil {
		return err
	}
	m.Status = status != 0
	m.CouncilSig = council
	m.BroadcastSig = broadcast
	m.CommittedTxid = txid
	return r.Done()
}

// AccreditRequest asks a single accreditation council member to verify
// and co-sign a transaction (spec.md §4.6c).
type AccreditRequest struct {
	RequestID common.RequestID
	TxBytes   []byte
}

func (m *AccreditRequest) Marshal() ([]byte, error) {
	w := codec.NewWriter()
	w.Fixed(m.RequestID[:])
	w.VarBytes(m.TxBytes)
	return w.Bytes(), nil
}

func (m *AccreditRequest) Unmarshal(b []byte) error {
	r := codec.NewReader(b)
	var id common.RequestID
	if err := r.Fixed(id[:]); err != nil {
		return err
	}
	tx, err := r.VarBytes()
	if err != nil {
		return err
	}
	m.RequestID = id
	m.TxBytes = tx
	return r.Done()
}

// AccreditResponse is a council member's signature reply.
type AccreditResponse struct {
	Status    bool
	Signature common.Sig96
}

func (m *AccreditResponse) Marshal() ([]byte, error) {
	w := codec.NewWriter()
	w.U8(boolByte(m.Status))
	w.Fixed(m.Signature[:])
	return w.Bytes(), nil
}

func (m *AccreditResponse) Unmarshal(b []byte) error {
	r := codec.NewReader(b)
	status, err := r.U8()
	if err != nil {
		return err
	}
	var sig common.Sig96
	if err := r.Fixed(sig[:]); err != nil {
		return err
	}
	m.Status = status != 0
	m.Signature = sig
	return r.Done()
}

// RelayRequest asks a single broadcast-set member to co-sign a
// BroadcastTemp envelope (spec.md §4.6e).
type RelayRequest struct {
	RequestID    common.RequestID
	EnvelopeByte []byte
}

func (m *RelayRequest) Marshal() ([]byte, error) {
	w := codec.NewWriter()
	w.Fixed(m.RequestID[:])
	w.VarBytes(m.EnvelopeByte)
	return w.Bytes(), nil
}

func (m *RelayRequest) Unmarshal(b []byte) error {
	r := codec.NewReader(b)
	var id common.RequestID
	if err := r.Fixed(id[:]); err != nil {
		return err
	}
	env, err := r.VarBytes()
	if err != nil {
		return err
	}
	m.RequestID = id
	m.EnvelopeByte = env
	return r.Done()
}

// RelayResponse is a broadcast-set member's signature reply.
type RelayResponse struct {
	Signature common.Sig96
}

func (m *RelayResponse) Marshal() ([]byte, error) {
	w := codec.NewWriter()
	w.Fixed(m.Signature[:])
	return w.Bytes(), nil
}

func (m *RelayResponse) Unmarshal(b []byte) error {
	r := codec.NewReader(b)
	var sig common.Sig96
	if err := r.Fixed(sig[:]); err != nil {
		return err
	}
	m.Signature = sig
	return r.Done()
}

// SaveRequest is the fire-and-forget committed-transaction replica
// delivery (spec.md §4.6f).
type SaveRequest struct {
	RequestID common.RequestID
	TxBytes   []byte
}

func (m *SaveRequest) Marshal() ([]byte, error) {
	w := codec.NewWriter()
	w.Fixed(m.RequestID[:])
	w.VarBytes(m.TxBytes)
	return w.Bytes(), nil
}

func (m *SaveRequest) Unmarshal(b []byte) error {
	r := codec.NewReader(b)
	var id common.RequestID
	if err := r.Fixed(id[:]); err != nil {
		return err
	}
	tx, err := r.VarBytes()
	if err != nil {
		return err
	}
	m.RequestID = id
	m.TxBytes = tx
	return r.Done()
}

// SaveResponse acknowledges a save (empty body, kept for grpc's unary
// request/response shape).
type SaveResponse struct{}

func (m *SaveResponse) Marshal() ([]byte, error) { return nil, nil }
func (m *SaveResponse) Unmarshal(b []byte) error  { return nil }

// InitialRequestMsg carries one peer's local random contribution (spec.md
// §4.4 phase 0).
type InitialRequestMsg struct {
	EpochID uint64
	Random  uint64
}

func (m *InitialRequestMsg) Marshal() ([]byte, error) {
	w := codec.NewWriter()
	w.U64(m.EpochID)
	w.U64(m.Random)
	return w.Bytes(), nil
}

func (m *InitialRequestMsg) Unmarshal(b []byte) error {
	r := codec.NewReader(b)
	epochID, err := r.U64()
	if err != nil {
		return err
	}
	random, err := r.U64()
	if err != nil {
		return err
	}
	m.EpochID = epochID
	m.Random = random
	return r.Done()
}

// SyncRequestMsg carries one peer's vote for the hash of its
// randomness-number set (spec.md §4.4 phase 1).
type SyncRequestMsg struct {
	EpochID uint64
	Hash    common.Hash256
}

func (m *SyncRequestMsg) Marshal() ([]byte, error) {
	w := codec.NewWriter()
	w.U64(m.EpochID)
	w.Fixed(m.Hash[:])
	return w.Bytes(), nil
}

func (m *SyncRequestMsg) Unmarshal(b []byte) error {
	r := codec.NewReader(b)
	epochID, err := r.U64()
	if err != nil {
		return err
	}
	var h common.Hash256
	if err := r.Fixed(h[:]); err != nil {
		return err
	}
	m.EpochID = epochID
	m.Hash = h
	return r.Done()
}

// EpochAck acknowledges an InitialRequest/SyncRequest delivery.
type EpochAck struct{}

func (m *EpochAck) Marshal() ([]byte, error) { return nil, nil }
func (m *EpochAck) Unmarshal(b []byte) error  { return nil }

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
