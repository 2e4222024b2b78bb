// Package blscrypto wraps BLS12-381 G1 public keys and G2 signatures for
// node identity attestation and committee co-signing (spec.md §3, §6),
// built on github.com/kilic/bls12-381 — a pure-Go BLS12-381 implementation
// also exercised by validator-style chains in the retrieval pack (see
// DESIGN.md). The domain separation tag matches spec.md §6 exactly.
package blscrypto

import (
	"crypto/rand"
	"math/big"

	bls12381 "github.com/kilic/bls12-381"
	"github.com/pkg/errors"

	"github.com/concilium-labs/conciliumd/common"
)

// DST is the domain separation tag required by spec.md §6.
const DST = "BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_NUL_"

// PrivateKey is a node's BLS12-381 scalar identity key.
type PrivateKey struct {
	scalar *big.Int
}

// GenerateKey draws a fresh private scalar in [1, r).
func GenerateKey() (*PrivateKey, error) {
	order := bls12381.NewG1().Q()
	for {
		k, err := rand.Int(rand.Reader, order)
		if err != nil {
			return nil, errors.Wrap(err, "blscrypto: generate key")
		}
		if k.Sign() != 0 {
			return &PrivateKey{scalar: k}, nil
		}
	}
}

// PrivateKeyFromBytes interprets 32 big-endian bytes as a scalar.
func PrivateKeyFromBytes(b common.PrivKey32) *PrivateKey {
	return &PrivateKey{scalar: new(big.Int).SetBytes(b[:])}
}

// Bytes returns the 32-byte big-endian encoding of the scalar.
func (k *PrivateKey) Bytes() common.PrivKey32 {
	var out common.PrivKey32
	k.scalar.FillBytes(out[:])
	return out
}

// Public derives the G1 public key self·G1.
func (k *PrivateKey) Public() (common.PubKey48, error) {
	g1 := bls12381.NewG1()
	p := g1.New()
	g1.MulScalar(p, g1.One(), k.scalar)
	var out common.PubKey48
	copy(out[:], g1.ToCompressed(p))
	return out, nil
}

// Sign signs msg, returning a compressed G2 signature. msg is hashed to a
// G2 point under DST before multiplication by the private scalar, per the
// standard BLS signature scheme.
func (k *PrivateKey) Sign(msg []byte) (common.Sig96, error) {
	g2 := bls12381.NewG2()
	h, err := g2.HashToCurve(msg, []byte(DST))
	if err != nil {
		return common.Sig96{}, errors.Wrap(err, "blscrypto: hash to curve")
	}
	sig := g2.New()
	g2.MulScalar(sig, h, k.scalar)
	var out common.Sig96
	copy(out[:], g2.ToCompressed(sig))
	return out, nil
}

// Verify checks a single signature against a single public key and
// message.
func Verify(pub common.PubKey48, msg []byte, sig common.Sig96) (bool, error) {
	g1 := bls12381.NewG1()
	g2 := bls12381.NewG2()

	pubPoint, err := g1.FromCompressed(pub[:])
	if err != nil {
		return false, errors.Wrap(err, "blscrypto: decode public key")
	}
	sigPoint, err := g2.FromCompressed(sig[:])
	if err != nil {
		return false, errors.Wrap(err, "blscrypto: decode signature")
	}
	h, err := g2.HashToCurve(msg, []byte(DST))
	if err != nil {
		return false, errors.Wrap(err, "blscrypto: hash to curve")
	}

	engine := bls12381.NewEngine()
	engine.AddPairInv(g1.One(), sigPoint)
	engine.AddPair(pubPoint, h)
	return engine.Check(), nil
}

// Aggregate sums G2 signature points into a single aggregate signature,
// used for both committee co-signatures (spec.md §4.6d/f) and bootstrap
// admission aggregates (§4.9).
func Aggregate(sigs []common.Sig96) (common.Sig96, error) {
	if len(sigs) == 0 {
		return common.Sig96{}, errors.New("blscrypto: aggregate of zero signatures")
	}
	g2 := bls12381.NewG2()
	acc := g2.Zero()
	for i, s := range sigs {
		p, err := g2.FromCompressed(s[:])
		if err != nil {
			return common.Sig96{}, errors.Wrapf(err, "blscrypto: decode signature %d", i)
		}
		g2.Add(acc, acc, p)
	}
	var out common.Sig96
	copy(out[:], g2.ToCompressed(acc))
	return out, nil
}

// AggregatePublicKeys sums G1 public key points, used to verify a
// bootstrap aggregate signature against the bootstrap table's combined
// key (spec.md §4.9).
func AggregatePublicKeys(pubs []common.PubKey48) (common.PubKey48, error) {
	if len(pubs) == 0 {
		return common.PubKey48{}, errors.New("blscrypto: aggregate of zero public keys")
	}
	g1 := bls12381.NewG1()
	acc := g1.Zero()
	for i, p := range pubs {
		pt, err := g1.FromCompressed(p[:])
		if err != nil {
			return common.PubKey48{}, errors.Wrapf(err, "blscrypto: decode public key %d", i)
		}
		g1.Add(acc, acc, pt)
	}
	var out common.PubKey48
	copy(out[:], g1.ToCompressed(acc))
	return out, nil
}

// VerifyAggregate checks an aggregate signature where every signer signed
// the same message under their own public key (the shape used by bootstrap
// admission and council/broadcast co-signing once keys are aggregated).
func VerifyAggregate(pubs []common.PubKey48, msg []byte, agg common.Sig96) (bool, error) {
	combined, err := AggregatePublicKeys(pubs)
	if err != nil {
		return false, err
	}
	return Verify(combined, msg, agg)
}
