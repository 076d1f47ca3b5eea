// Copyright (c) 2024-2025 The xmrsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cryptonote

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestBase58RoundTrip ensures encode/decode is the identity for a range
// of input widths, including partial trailing blocks.
func TestBase58RoundTrip(t *testing.T) {
	for size := 0; size <= 95; size++ {
		src := make([]byte, size)
		for i := range src {
			src[i] = byte(i*7 + size)
		}

		encoded := EncodeBase58(src)
		decoded, err := DecodeBase58(encoded)
		require.NoError(t, err, "size %d", size)
		require.True(t, bytes.Equal(src, decoded), "size %d", size)
	}
}

// TestBase58EncodedLengths verifies the block-wise fixed encoded widths.
func TestBase58EncodedLengths(t *testing.T) {
	tests := []struct {
		size    int
		encoded int
	}{
		{0, 0},
		{1, 2},
		{8, 11},
		{9, 13},
		{16, 22},
		{69, 95}, // standard address payload
	}
	for _, test := range tests {
		got := len(EncodeBase58(make([]byte, test.size)))
		require.Equal(t, test.encoded, got, "size %d", test.size)
	}
}

func TestBase58DecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"invalid char", "00"},
		{"bad tail length", "1"},
		{"invalid char in block", "1111111111l"},
	}
	for _, test := range tests {
		_, err := DecodeBase58(test.src)
		require.Error(t, err, test.name)
	}
}

func TestAddressRoundTrip(t *testing.T) {
	var addr AccountAddress
	for i := range addr.SpendPublic {
		addr.SpendPublic[i] = byte(i)
		addr.ViewPublic[i] = byte(255 - i)
	}

	const tag = 18
	encoded := EncodeAddress(tag, addr)

	gotTag, gotAddr, err := DecodeAddress(encoded)
	require.NoError(t, err)
	require.Equal(t, uint64(tag), gotTag)
	require.Equal(t, addr, gotAddr)
}

func TestAddressChecksum(t *testing.T) {
	var addr AccountAddress
	encoded := EncodeAddress(53, addr)

	// Flipping any character must break either base58 decoding or the
	// checksum.
	for i := 0; i < len(encoded); i++ {
		mutated := []byte(encoded)
		if mutated[i] == '1' {
			mutated[i] = '2'
		} else {
			mutated[i] = '1'
		}
		_, _, err := DecodeAddress(string(mutated))
		require.Error(t, err, "mutation at %d", i)
	}
}

func TestAddressTruncated(t *testing.T) {
	_, _, err := DecodeAddress("1111")
	require.Error(t, err)
}
