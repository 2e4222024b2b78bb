// Package common holds the node's core value types, in the spirit of the
// teacher's common package (common.Address/common.Hash) but shaped for
// this spec's data model (§3): node ids, BLS/Ed25519 key sizes, and the
// fixed-point Amount that replaces the wire format's legacy f32.
package common

import (
	"crypto/sha256"
	"encoding/binary"
)

// NodeID is the permanent, monotonically-increasing node identifier.
// Bootstrap nodes are assigned id 1.
type NodeID uint32

// PubKey48 is a compressed BLS12-381 G1 public key.
type PubKey48 [48]byte

// Sig96 is a compressed BLS12-381 G2 signature, used both for single
// signatures and their aggregate.
type Sig96 [96]byte

// PrivKey32 is a 32-byte scalar private key, shared shape for both the
// node's BLS identity key and an end-user Ed25519 wallet key.
type PrivKey32 [32]byte

// PubKey32 is an Ed25519 public key, used only to identify transaction
// senders.
type PubKey32 [32]byte

// Sig64 is an Ed25519 signature over a transaction id.
type Sig64 [64]byte

// Hash256 is a SHA-256 digest, used for txids, epoch seeds, and epoch
// hashes.
type Hash256 [32]byte

// RequestID is the 16-byte peer-RPC correlation id: node_id(4) ∥
// nonce(8) ∥ random(4), little-endian, per spec.md §4.8.
type RequestID [16]byte

// NewRequestID builds a RequestID from the issuing node's id, a
// caller-supplied monotonic nonce, and 4 bytes of randomness.
func NewRequestID(nodeID NodeID, nonce uint64, rnd uint32) RequestID {
	var id RequestID
	binary.LittleEndian.PutUint32(id[0:4], uint32(nodeID))
	binary.LittleEndian.PutUint64(id[4:12], nonce)
	binary.LittleEndian.PutUint32(id[12:16], rnd)
	return id
}

// SHA256 returns the SHA-256 digest of b as a Hash256.
func SHA256(b []byte) Hash256 {
	return Hash256(sha256.Sum256(b))
}

// IsZero reports whether h is the all-zero fallback hash used when a
// beacon phase produces no votes (spec.md §4.4 phase 2, step 1).
func (h Hash256) IsZero() bool {
	return h == Hash256{}
}

// Less gives the lexicographic ordering over hash bytes used to break
// plurality ties deterministically (spec.md §4.4 phase 2, step 1).
func (h Hash256) Less(other Hash256) bool {
	for i := range h {
		if h[i] != other[i] {
			return h[i] < other[i]
		}
	}
	return false
}
