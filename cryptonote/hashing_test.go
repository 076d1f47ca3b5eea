// Copyright (c) 2024-2025 The xmrsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cryptonote

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleTx(version uint64) *Transaction {
	var pub PublicKey
	pub[0] = 0x01
	return &Transaction{
		Version:    version,
		UnlockTime: 0,
		Inputs: []TxInput{
			{Gen: &GenInput{Height: 42}},
		},
		Outputs: []TxOutput{
			{Amount: 1000, ToKey: &KeyOutput{}},
		},
		Extra: BuildExtra(pub, nil),
	}
}

func TestSerializePrefixDeterministic(t *testing.T) {
	tx := sampleTx(1)
	require.Equal(t, SerializePrefix(tx), SerializePrefix(tx))

	other := sampleTx(1)
	other.UnlockTime = 60
	require.NotEqual(t, SerializePrefix(tx), SerializePrefix(other))
}

func TestTxHashV1MatchesPrefix(t *testing.T) {
	tx := sampleTx(1)
	hash, err := TxHash(tx)
	require.NoError(t, err)
	require.Equal(t, PrefixHash(tx), hash)
}

func TestTxHashV2Null(t *testing.T) {
	tx := sampleTx(2)
	tx.RingCT = &RctSignatures{Type: RctTypeNull}

	hash, err := TxHash(tx)
	require.NoError(t, err)
	require.NotEqual(t, PrefixHash(tx), hash)

	// Hash must not depend on whether the null signatures are elided.
	bare := sampleTx(2)
	bareHash, err := TxHash(bare)
	require.NoError(t, err)
	require.Equal(t, bareHash, hash)
}

func TestTxHashUnsupported(t *testing.T) {
	tx := sampleTx(2)
	tx.RingCT = &RctSignatures{Type: RctTypeBulletproof2}
	_, err := TxHash(tx)
	require.ErrorIs(t, err, ErrUnsupportedTx)
}

func TestTreeHash(t *testing.T) {
	hashes := make([]Hash, 9)
	for i := range hashes {
		hashes[i][0] = byte(i + 1)
	}

	t.Run("single", func(t *testing.T) {
		require.Equal(t, hashes[0], TreeHash(hashes[:1]))
	})

	t.Run("pair", func(t *testing.T) {
		want := keccak256(hashes[0][:], hashes[1][:])
		require.Equal(t, want, TreeHash(hashes[:2]))
	})

	t.Run("three", func(t *testing.T) {
		// Overflow pair folds into the tail first.
		folded := keccak256(hashes[1][:], hashes[2][:])
		want := keccak256(hashes[0][:], folded[:])
		require.Equal(t, want, TreeHash(hashes[:3]))
	})

	t.Run("deterministic", func(t *testing.T) {
		for n := 1; n <= len(hashes); n++ {
			require.Equal(t, TreeHash(hashes[:n]), TreeHash(hashes[:n]),
				"count %d", n)
		}
	})

	t.Run("order sensitive", func(t *testing.T) {
		reversed := make([]Hash, len(hashes))
		for i := range hashes {
			reversed[len(hashes)-1-i] = hashes[i]
		}
		require.NotEqual(t, TreeHash(hashes), TreeHash(reversed))
	})
}

func TestBlockHash(t *testing.T) {
	block := &Block{
		MajorVersion: 14,
		MinorVersion: 14,
		Timestamp:    1600000000,
		Nonce:        7,
		MinerTx:      *sampleTx(1),
	}

	first, err := block.BlockHash()
	require.NoError(t, err)

	again, err := block.BlockHash()
	require.NoError(t, err)
	require.Equal(t, first, again)

	block.Nonce++
	changed, err := block.BlockHash()
	require.NoError(t, err)
	require.NotEqual(t, first, changed)
}
