// Package bootstrap implements the admission protocol of spec.md §4.9: a
// joining node collects BLS co-signatures from the fixed bootstrap
// committee over its own node record, then presents the aggregate to
// every node it wants to connect to. Grounded on
// original_source/rpc/src/identifier/{client,server}.rs (id assignment,
// the awaiting-confirmation stage) and
// original_source/rpc/src/connection/{client,server}.rs (the
// aggregate-signature admission check on the receiving side); the
// original's validate_id step checks a single signature against an
// aggregate of candidate bootstrap public keys, which isn't actually
// sound BLS aggregate verification — this package instead requires and
// verifies a true aggregate signature over a quorum of individual
// bootstrap co-signatures (documented in DESIGN.md).
package bootstrap

import (
	"time"

	"github.com/concilium-labs/conciliumd/codec"
	"github.com/concilium-labs/conciliumd/common"
)

// Record is the node descriptor a joining node asks the bootstrap
// committee to co-sign (spec.md §3 SelfNode/ActiveNode descriptor).
type Record struct {
	ID        common.NodeID
	Name      string
	BLSPublic common.PubKey48
	IPv4      [4]byte
	Port      uint16
	Version   uint32
	CreatedAt time.Time
}

// Encode returns the deterministic encoding bootstrap nodes sign and
// verify (spec.md §6 codec conventions apply here too).
func (r Record) Encode() []byte {
	w := codec.NewWriter()
	w.U32(uint32(r.ID))
	w.VarBytes([]byte(r.Name))
	w.Fixed(r.BLSPublic[:])
	w.Fixed(r.IPv4[:])
	w.U32(uint32(r.Port))
	w.U32(r.Version)
	w.I64(r.CreatedAt.Unix())
	return w.Bytes()
}

// DecodeRecord parses the encoding produced by Encode, mirroring the
// field order exactly.
func DecodeRecord(b []byte) (Record, error) {
	r := codec.NewReader(b)
	id, err := r.U32()
	if err != nil {
		return Record{}, err
	}
	name, err := r.VarBytes()
	if err != nil {
		return Record{}, err
	}
	var pub common.PubKey48
	if err := r.Fixed(pub[:]); err != nil {
		return Record{}, err
	}
	var ipv4 [4]byte
	if err := r.Fixed(ipv4[:]); err != nil {
		return Record{}, err
	}
	port, err := r.U32()
	if err != nil {
		return Record{}, err
	}
	version, err := r.U32()
	if err != nil {
		return Record{}, err
	}
	createdAt, err := r.I64()
	if err != nil {
		return Record{}, err
	}
	if err := r.Done(); err != nil {
		return Record{}, err
	}
	return Record{
		ID:        common.NodeID(id),
		Name:      string(name),
		BLSPublic: pub,
		IPv4:      ipv4,
		Port:      uint16(port),
		Version:   version,
		CreatedAt: time.Unix(createdAt, 0).UTC(),
	}, nil
}
