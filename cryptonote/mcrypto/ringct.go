// Copyright (c) 2024-2025 The xmrsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mcrypto

import (
	"bytes"
	"encoding/binary"

	"filippo.io/edwards25519"

	"github.com/xmrsuite/lwsd/cryptonote"
)

// pedersenH is the alternate generator of the Pedersen commitment scheme,
// H = to_point(keccak(G)).
var pedersenH = mustPoint([]byte{
	0x8b, 0x65, 0x59, 0x70, 0x15, 0x37, 0x99, 0xaf,
	0x2a, 0xea, 0xdc, 0x9f, 0xf1, 0xad, 0xd0, 0xea,
	0x6c, 0x72, 0x51, 0xd5, 0x41, 0x54, 0xcf, 0xa9,
	0x2c, 0x17, 0x3a, 0x0d, 0xd3, 0x9c, 0x1f, 0x94,
})

func mustPoint(b []byte) *edwards25519.Point {
	p, err := new(edwards25519.Point).SetBytes(b)
	if err != nil {
		panic(err)
	}
	return p
}

func scalarFromUint64(v uint64) *edwards25519.Scalar {
	var b [32]byte
	binary.LittleEndian.PutUint64(b[:8], v)
	s, _ := edwards25519.NewScalar().SetCanonicalBytes(b[:])
	return s
}

// Commit computes the Pedersen commitment mask·G + amount·H.
func Commit(amount uint64, mask *edwards25519.Scalar) cryptonote.Key {
	c := new(edwards25519.Point).VarTimeDoubleScalarBaseMult(
		scalarFromUint64(amount), pedersenH, mask,
	)
	var out cryptonote.Key
	copy(out[:], c.Bytes())
	return out
}

// genCommitmentMask derives the deterministic mask of the short-amount
// ECDH variant: H_s("commitment_mask" || sharedSec).
func genCommitmentMask(sharedSec []byte) *edwards25519.Scalar {
	return HashToScalar([]byte("commitment_mask"), sharedSec)
}

// ecdhHash is the keystream of the short-amount variant:
// keccak("amount" || sharedSec).
func ecdhHash(sharedSec []byte) cryptonote.Hash {
	return Keccak256([]byte("amount"), sharedSec)
}

// DecodeRingCTAmount decrypts the confidential amount of the output at
// position index using the account's key derivation, and verifies the
// result against the output's commitment.  It returns ok=false when the
// commitment does not match, which means the output, despite its one-time
// key matching, cannot be decoded with this viewkey.
//
// Both ECDH variants are supported: the original long form, where the
// tuple carries an encrypted mask, and the short form introduced with
// bulletproof2, where the mask is derived and only 8 bytes of amount are
// encrypted.  A zero tuple mask selects the short form, mirroring what
// the daemon serializes.
func DecodeRingCTAmount(commitment cryptonote.Key, ecdh cryptonote.EcdhTuple,
	derivation cryptonote.KeyDerivation,
	index uint32) (amount uint64, mask cryptonote.Key, ok bool) {

	sharedScalar := DerivationToScalar(derivation, index)
	sharedSec := sharedScalar.Bytes()

	var maskScalar *edwards25519.Scalar
	if ecdh.Mask == (cryptonote.Key{}) {
		// Short form: amount ^= first 8 bytes of the keystream.
		stream := ecdhHash(sharedSec)
		var amt [8]byte
		for i := range amt {
			amt[i] = ecdh.Amount[i] ^ stream[i]
		}
		amount = binary.LittleEndian.Uint64(amt[:])
		maskScalar = genCommitmentMask(sharedSec)
	} else {
		// Long form: both mask and amount are scalar-subtracted.
		maskIn, err := edwards25519.NewScalar().SetCanonicalBytes(ecdh.Mask[:])
		if err != nil {
			return 0, cryptonote.Key{}, false
		}
		amountIn, err := edwards25519.NewScalar().SetCanonicalBytes(ecdh.Amount[:])
		if err != nil {
			return 0, cryptonote.Key{}, false
		}

		first := HashToScalar(sharedSec)
		second := HashToScalar(first.Bytes())

		maskScalar = edwards25519.NewScalar().Subtract(maskIn, first)
		amountScalar := edwards25519.NewScalar().Subtract(amountIn, second)

		amtBytes := amountScalar.Bytes()
		if !bytes.Equal(amtBytes[8:], make([]byte, 24)) {
			return 0, cryptonote.Key{}, false
		}
		amount = binary.LittleEndian.Uint64(amtBytes[:8])
	}

	if Commit(amount, maskScalar) != commitment {
		return 0, cryptonote.Key{}, false
	}

	copy(mask[:], maskScalar.Bytes())
	return amount, mask, true
}

// EncodeRingCTAmount builds the commitment and short-form ECDH tuple for
// an amount, as a sender would.  Test harnesses use this to fabricate
// confidential outputs the scanner must decode.
func EncodeRingCTAmount(amount uint64, derivation cryptonote.KeyDerivation,
	index uint32) (cryptonote.Key, cryptonote.EcdhTuple) {

	sharedSec := DerivationToScalar(derivation, index).Bytes()
	maskScalar := genCommitmentMask(sharedSec)
	stream := ecdhHash(sharedSec)

	var tuple cryptonote.EcdhTuple
	var amt [8]byte
	binary.LittleEndian.PutUint64(amt[:], amount)
	for i := range amt {
		tuple.Amount[i] = amt[i] ^ stream[i]
	}
	return Commit(amount, maskScalar), tuple
}
