// Package drng implements the deterministic, seeded permutation draws
// spec.md §4.2 requires: given a 32-byte seed, every peer must derive the
// exact same sequence of distinct draws in [1, upper]. Grounded on
// original_source/shared/src/chacha20.rs; built on
// golang.org/x/crypto/chacha20, an indirect dependency already pulled in
// by the teacher's golang.org/x/crypto requirement. Any deviation here is
// a consensus break (spec.md §4.2), so the stream construction is fixed:
// a 12-byte all-zero nonce, reading 8-byte little-endian keystream words.
package drng

import (
	"encoding/binary"

	"golang.org/x/crypto/chacha20"

	"github.com/pkg/errors"
)

var zeroNonce = make([]byte, chacha20.NonceSize)

// Draw returns the first count distinct draws from ChaCha20Rng(seed)
// sampling uniformly over [1, upper]. Determinism across peers is
// mandatory; do not change the stream construction without updating every
// peer in lockstep (spec.md §4.2).
func Draw(seed [32]byte, upper uint64, count uint64) ([]uint64, error) {
	if upper == 0 {
		if count == 0 {
			return nil, nil
		}
		return nil, errors.New("drng: upper must be > 0 to draw")
	}
	if count > upper {
		return nil, errors.Errorf("drng: cannot draw %d distinct values from universe of size %d", count, upper)
	}

	stream, err := chacha20.NewUnauthenticatedCipher(seed[:], zeroNonce)
	if err != nil {
		return nil, errors.Wrap(err, "drng: init chacha20 stream")
	}

	// Rejection-sampling threshold to avoid modulo bias: the largest
	// multiple of upper that fits in 64 bits.
	limit := (^uint64(0) / upper) * upper

	seen := make(map[uint64]struct{}, count)
	out := make([]uint64, 0, count)
	var word [8]byte
	zero := make([]byte, 8)

	for uint64(len(out)) < count {
		stream.XORKeyStream(word[:], zero)
		v := binary.LittleEndian.Uint64(word[:])
		if v >= limit {
			continue
		}
		draw := v%upper + 1
		if _, dup := seen[draw]; dup {
			continue
		}
		seen[draw] = struct{}{}
		out = append(out, draw)
	}
	return out, nil
}

// DrawFromHash is sugar for Draw(seed, upper, count) where seed is a
// common.Hash256-shaped 32-byte array.
func DrawFromHash(seed [32]byte, upper uint64, count uint64) ([]uint64, error) {
	return Draw(seed, upper, count)
}
