// Package wallet generates and uses the Ed25519 keypairs end users sign
// transactions with — distinct from a node's BLS12-381 identity key
// (blscrypto). Grounded on original_source/core-ext/src/node/self_node.rs's
// separation of node identity from transaction signer; stdlib
// crypto/ed25519 is used directly since it is the standard, not a
// third-party, Ed25519 implementation (see DESIGN.md).
package wallet

import (
	"crypto/ed25519"
	"crypto/rand"

	"github.com/pkg/errors"

	"github.com/concilium-labs/conciliumd/common"
)

// KeyPair is an end-user wallet keypair.
type KeyPair struct {
	Public  common.PubKey32
	private ed25519.PrivateKey
}

// Generate creates a fresh Ed25519 wallet keypair.
func Generate() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "wallet: generate key")
	}
	var pk common.PubKey32
	copy(pk[:], pub)
	return &KeyPair{Public: pk, private: priv}, nil
}

// FromSeed reconstructs a keypair from a 32-byte private seed.
func FromSeed(seed common.PrivKey32) *KeyPair {
	priv := ed25519.NewKeyFromSeed(seed[:])
	var pk common.PubKey32
	copy(pk[:], priv.Public().(ed25519.PublicKey))
	return &KeyPair{Public: pk, private: priv}
}

// Sign signs txid with the wallet's private key, producing the
// tx.signature field (spec.md §3: signature = Ed25519(txid)).
func (k *KeyPair) Sign(txid common.Hash256) common.Sig64 {
	sig := ed25519.Sign(k.private, txid[:])
	var out common.Sig64
	copy(out[:], sig)
	return out
}

// Verify checks a transaction signature under the claimed sender public
// key (spec.md §4.6 step 1).
func Verify(pub common.PubKey32, txid common.Hash256, sig common.Sig64) bool {
	return ed25519.Verify(ed25519.PublicKey(pub[:]), txid[:], sig[:])
}
