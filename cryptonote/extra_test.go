// Copyright (c) 2024-2025 The xmrsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cryptonote

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseExtraPubKey(t *testing.T) {
	var pub PublicKey
	for i := range pub {
		pub[i] = byte(i + 1)
	}

	fields := ParseExtra(BuildExtra(pub, nil))
	require.NotNil(t, fields.PubKey)
	require.Equal(t, pub, *fields.PubKey)
	require.Nil(t, fields.Nonce)
}

func TestParseExtraPaymentIDs(t *testing.T) {
	var pub PublicKey

	t.Run("long", func(t *testing.T) {
		nonce := make([]byte, 1+HashSize)
		nonce[0] = 0x00
		for i := 1; i < len(nonce); i++ {
			nonce[i] = byte(i)
		}

		fields := ParseExtra(BuildExtra(pub, nonce))
		length, id := fields.PaymentID()
		require.Equal(t, uint8(HashSize), length)
		require.Equal(t, nonce[1:], id[:])
	})

	t.Run("short", func(t *testing.T) {
		nonce := make([]byte, 1+ShortHashSize)
		nonce[0] = 0x01
		for i := 1; i < len(nonce); i++ {
			nonce[i] = byte(0xf0 + i)
		}

		fields := ParseExtra(BuildExtra(pub, nonce))
		length, id := fields.PaymentID()
		require.Equal(t, uint8(ShortHashSize), length)
		require.Equal(t, nonce[1:], id[:ShortHashSize])
	})

	t.Run("absent", func(t *testing.T) {
		fields := ParseExtra(BuildExtra(pub, nil))
		length, _ := fields.PaymentID()
		require.Equal(t, uint8(0), length)
	})

	t.Run("garbage nonce", func(t *testing.T) {
		fields := ParseExtra(BuildExtra(pub, []byte{0x42, 0x42}))
		length, _ := fields.PaymentID()
		require.Equal(t, uint8(0), length)
	})
}

// TestParseExtraPartial ensures unparseable suffixes are tolerated, the
// way wallets treat extra in the wild.
func TestParseExtraPartial(t *testing.T) {
	var pub PublicKey
	pub[0] = 0xaa

	extra := BuildExtra(pub, nil)
	extra = append(extra, 0x99, 0x01, 0x02) // unknown tag and junk

	fields := ParseExtra(extra)
	require.NotNil(t, fields.PubKey)
	require.Equal(t, pub, *fields.PubKey)
}

func TestParseExtraTruncatedKey(t *testing.T) {
	fields := ParseExtra([]byte{0x01, 0x01, 0x02})
	require.Nil(t, fields.PubKey)
}

func TestParseExtraPadding(t *testing.T) {
	fields := ParseExtra([]byte{0x00, 0x00, 0x00})
	require.Nil(t, fields.PubKey)
}

func TestParseExtraAdditionalKeys(t *testing.T) {
	extra := []byte{0x04, 0x02}
	for i := 0; i < 64; i++ {
		extra = append(extra, byte(i))
	}
	fields := ParseExtra(extra)
	require.Len(t, fields.AdditionalKeys, 2)
	require.Nil(t, fields.PubKey)
}

func TestAbsoluteOffsets(t *testing.T) {
	require.Equal(t,
		[]uint64{5, 8, 10},
		AbsoluteOffsets([]uint64{5, 3, 2}),
	)
	require.Empty(t, AbsoluteOffsets(nil))
}
