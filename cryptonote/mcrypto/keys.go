// Copyright (c) 2024-2025 The xmrsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package mcrypto implements the curve and hash primitives a viewkey
// scanner needs: key derivations, derived one-time keys, and RingCT
// amount decoding.  Point arithmetic is delegated to
// filippo.io/edwards25519 and hashing to the legacy keccak from
// golang.org/x/crypto.
package mcrypto

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"io"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/sha3"

	"github.com/xmrsuite/lwsd/cryptonote"
)

// Errors returned for malformed key material.
var (
	// ErrBadScalar describes a secret key that is not a canonical
	// scalar.
	ErrBadScalar = errors.New("secret key is not a canonical scalar")

	// ErrBadPoint describes a public key that is not a valid curve
	// point.
	ErrBadPoint = errors.New("public key is not a valid curve point")
)

// Keccak256 computes the legacy keccak hash over the concatenation of
// the given byte slices.
func Keccak256(data ...[]byte) cryptonote.Hash {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out cryptonote.Hash
	h.Sum(out[:0])
	return out
}

// scalarFromSecret interprets a stored secret key, requiring canonical
// form.
func scalarFromSecret(key cryptonote.SecretKey) (*edwards25519.Scalar, error) {
	s, err := edwards25519.NewScalar().SetCanonicalBytes(key[:])
	if err != nil {
		return nil, ErrBadScalar
	}
	return s, nil
}

func pointFromPublic(key cryptonote.PublicKey) (*edwards25519.Point, error) {
	p, err := new(edwards25519.Point).SetBytes(key[:])
	if err != nil {
		return nil, ErrBadPoint
	}
	// SetBytes accepts non-canonical encodings; only the canonical
	// encoding of a point is a valid key.
	if !bytes.Equal(p.Bytes(), key[:]) {
		return nil, ErrBadPoint
	}
	return p, nil
}

// reduce32 interprets 32 little-endian bytes as an integer and reduces
// it modulo the group order.
func reduce32(b cryptonote.Hash) *edwards25519.Scalar {
	var wide [64]byte
	copy(wide[:32], b[:])
	s, _ := edwards25519.NewScalar().SetUniformBytes(wide[:])
	return s
}

// HashToScalar is the cryptonote H_s function: keccak followed by
// reduction modulo the group order.
func HashToScalar(data ...[]byte) *edwards25519.Scalar {
	return reduce32(Keccak256(data...))
}

// SecretKeyToPublic returns the public key corresponding to a secret
// scalar, or an error if the scalar is not canonical.  This is the
// viewkey/address consistency check used on every credentialed call.
func SecretKeyToPublic(key cryptonote.SecretKey) (cryptonote.PublicKey, error) {
	s, err := scalarFromSecret(key)
	if err != nil {
		return cryptonote.PublicKey{}, err
	}

	var pub cryptonote.PublicKey
	copy(pub[:], new(edwards25519.Point).ScalarBaseMult(s).Bytes())
	return pub, nil
}

// GenerateKeyDerivation computes the shared-secret point 8·(sec·pub)
// between a transaction public key and an account view key.
func GenerateKeyDerivation(pub cryptonote.PublicKey,
	sec cryptonote.SecretKey) (cryptonote.KeyDerivation, error) {

	s, err := scalarFromSecret(sec)
	if err != nil {
		return cryptonote.KeyDerivation{}, err
	}
	p, err := pointFromPublic(pub)
	if err != nil {
		return cryptonote.KeyDerivation{}, err
	}

	shared := new(edwards25519.Point).ScalarMult(s, p)
	shared.MultByCofactor(shared)

	var out cryptonote.KeyDerivation
	copy(out[:], shared.Bytes())
	return out, nil
}

// DerivationToScalar computes H_s(derivation || varint(index)).
func DerivationToScalar(derivation cryptonote.KeyDerivation,
	index uint32) *edwards25519.Scalar {

	buf := make([]byte, 0, 32+binary.MaxVarintLen32)
	buf = append(buf, derivation[:]...)
	buf = binary.AppendUvarint(buf, uint64(index))
	return HashToScalar(buf)
}

// DerivePublicKey computes the one-time output key
// H_s(derivation || varint(index))·G + spendPub.  An output at position
// index belongs to the account iff this equals the output's key.
func DerivePublicKey(derivation cryptonote.KeyDerivation, index uint32,
	spendPub cryptonote.PublicKey) (cryptonote.PublicKey, error) {

	base, err := pointFromPublic(spendPub)
	if err != nil {
		return cryptonote.PublicKey{}, err
	}

	scalar := DerivationToScalar(derivation, index)
	derived := new(edwards25519.Point).ScalarBaseMult(scalar)
	derived.Add(derived, base)

	var out cryptonote.PublicKey
	copy(out[:], derived.Bytes())
	return out, nil
}

// GenerateKeys produces a random keypair.  Only the test harnesses and
// address tooling create keys; the server itself never holds spend
// secrets.
func GenerateKeys(r io.Reader) (cryptonote.SecretKey, cryptonote.PublicKey, error) {
	if r == nil {
		r = rand.Reader
	}

	var wide [64]byte
	if _, err := io.ReadFull(r, wide[:]); err != nil {
		return cryptonote.SecretKey{}, cryptonote.PublicKey{}, err
	}

	s, err := edwards25519.NewScalar().SetUniformBytes(wide[:])
	if err != nil {
		return cryptonote.SecretKey{}, cryptonote.PublicKey{}, err
	}

	var sec cryptonote.SecretKey
	var pub cryptonote.PublicKey
	copy(sec[:], s.Bytes())
	copy(pub[:], new(edwards25519.Point).ScalarBaseMult(s).Bytes())
	return sec, pub, nil
}
