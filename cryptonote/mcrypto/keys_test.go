// Copyright (c) 2024-2025 The xmrsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mcrypto

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xmrsuite/lwsd/cryptonote"
)

// TestDerivationAgreement checks the core ECDH property the scanner
// relies on: the receiver's derivation from (tx pub, view key) matches
// the sender's derivation from (view pub, tx secret).
func TestDerivationAgreement(t *testing.T) {
	viewSec, viewPub, err := GenerateKeys(nil)
	require.NoError(t, err)
	txSec, txPub, err := GenerateKeys(nil)
	require.NoError(t, err)

	receiver, err := GenerateKeyDerivation(txPub, viewSec)
	require.NoError(t, err)
	sender, err := GenerateKeyDerivation(viewPub, txSec)
	require.NoError(t, err)

	require.Equal(t, sender, receiver)
}

// TestDerivePublicKey builds a one-time output key the way a sender
// would and checks the receiver-side match, plus a negative control.
func TestDerivePublicKey(t *testing.T) {
	viewSec, viewPub, err := GenerateKeys(nil)
	require.NoError(t, err)
	_, spendPub, err := GenerateKeys(nil)
	require.NoError(t, err)
	txSec, txPub, err := GenerateKeys(nil)
	require.NoError(t, err)

	senderDerivation, err := GenerateKeyDerivation(viewPub, txSec)
	require.NoError(t, err)
	oneTime, err := DerivePublicKey(senderDerivation, 3, spendPub)
	require.NoError(t, err)

	receiverDerivation, err := GenerateKeyDerivation(txPub, viewSec)
	require.NoError(t, err)

	matched, err := DerivePublicKey(receiverDerivation, 3, spendPub)
	require.NoError(t, err)
	require.Equal(t, oneTime, matched)

	// A different output index must not match.
	other, err := DerivePublicKey(receiverDerivation, 4, spendPub)
	require.NoError(t, err)
	require.NotEqual(t, oneTime, other)

	// Neither may a different wallet's view key.
	wrongSec, _, err := GenerateKeys(nil)
	require.NoError(t, err)
	wrongDerivation, err := GenerateKeyDerivation(txPub, wrongSec)
	require.NoError(t, err)
	mismatch, err := DerivePublicKey(wrongDerivation, 3, spendPub)
	require.NoError(t, err)
	require.NotEqual(t, oneTime, mismatch)
}

func TestSecretKeyToPublic(t *testing.T) {
	sec, pub, err := GenerateKeys(nil)
	require.NoError(t, err)

	got, err := SecretKeyToPublic(sec)
	require.NoError(t, err)
	require.Equal(t, pub, got)
}

func TestSecretKeyToPublicRejectsNonCanonical(t *testing.T) {
	var sec cryptonote.SecretKey
	for i := range sec {
		sec[i] = 0xff
	}
	_, err := SecretKeyToPublic(sec)
	require.ErrorIs(t, err, ErrBadScalar)
}

func TestGenerateKeyDerivationRejectsBadPoint(t *testing.T) {
	sec, _, err := GenerateKeys(nil)
	require.NoError(t, err)

	var bad cryptonote.PublicKey
	for i := range bad {
		bad[i] = 0xff
	}
	_, err = GenerateKeyDerivation(bad, sec)
	require.ErrorIs(t, err, ErrBadPoint)
}

func TestDerivationToScalarVariesByIndex(t *testing.T) {
	sec, pub, err := GenerateKeys(nil)
	require.NoError(t, err)
	derivation, err := GenerateKeyDerivation(pub, sec)
	require.NoError(t, err)

	a := DerivationToScalar(derivation, 0)
	b := DerivationToScalar(derivation, 1)
	require.NotEqual(t, a.Bytes(), b.Bytes())
}
