// Copyright (c) 2024-2025 The xmrsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mcrypto

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xmrsuite/lwsd/cryptonote"
)

func testDerivation(t *testing.T) cryptonote.KeyDerivation {
	t.Helper()
	sec, pub, err := GenerateKeys(nil)
	require.NoError(t, err)
	derivation, err := GenerateKeyDerivation(pub, sec)
	require.NoError(t, err)
	return derivation
}

func TestRingCTAmountRoundTrip(t *testing.T) {
	derivation := testDerivation(t)

	amounts := []uint64{0, 1, 1000000, ^uint64(0)}
	for _, amount := range amounts {
		commitment, tuple := EncodeRingCTAmount(amount, derivation, 0)

		got, mask, ok := DecodeRingCTAmount(
			commitment, tuple, derivation, 0,
		)
		require.True(t, ok, "amount %d", amount)
		require.Equal(t, amount, got)
		require.NotEqual(t, cryptonote.Key{}, mask)
	}
}

// TestRingCTWrongDerivation ensures an unrelated viewer cannot decode,
// which the scanner relies on to skip outputs it cannot prove.
func TestRingCTWrongDerivation(t *testing.T) {
	derivation := testDerivation(t)
	other := testDerivation(t)

	commitment, tuple := EncodeRingCTAmount(123456, derivation, 0)
	_, _, ok := DecodeRingCTAmount(commitment, tuple, other, 0)
	require.False(t, ok)
}

func TestRingCTWrongIndex(t *testing.T) {
	derivation := testDerivation(t)

	commitment, tuple := EncodeRingCTAmount(555, derivation, 1)
	_, _, ok := DecodeRingCTAmount(commitment, tuple, derivation, 2)
	require.False(t, ok)

	_, _, ok = DecodeRingCTAmount(commitment, tuple, derivation, 1)
	require.True(t, ok)
}

func TestRingCTTamperedCommitment(t *testing.T) {
	derivation := testDerivation(t)

	commitment, tuple := EncodeRingCTAmount(987, derivation, 0)
	tuple.Amount[0] ^= 0x01

	_, _, ok := DecodeRingCTAmount(commitment, tuple, derivation, 0)
	require.False(t, ok)
}

func TestCommitDeterministic(t *testing.T) {
	mask := HashToScalar([]byte("test mask"))
	require.Equal(t, Commit(42, mask), Commit(42, mask))
	require.NotEqual(t, Commit(42, mask), Commit(43, mask))
}
