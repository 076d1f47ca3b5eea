// Copyright (c) 2024-2025 The xmrsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cryptonote

import (
	"encoding/binary"
	"errors"
)

// Binary archive variant tags from the cryptonote serialization format.
const (
	binTagTxInGen   = 0xff
	binTagTxInToKey = 0x02
	binTagTxOutToKey = 0x02
)

// ErrUnsupportedTx is returned when a transaction hash cannot be computed
// from the pruned representation the daemon serves.  The daemon supplies
// hashes for every non-miner transaction, so this only matters for miner
// transactions, which always use the null RingCT type.
var ErrUnsupportedTx = errors.New("cannot hash pruned non-null ringct tx")

// SerializePrefix returns the canonical binary serialization of the
// transaction prefix: version, unlock time, inputs, outputs, and extra.
func SerializePrefix(tx *Transaction) []byte {
	buf := make([]byte, 0, 256)
	buf = binary.AppendUvarint(buf, tx.Version)
	buf = binary.AppendUvarint(buf, tx.UnlockTime)

	buf = binary.AppendUvarint(buf, uint64(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		switch {
		case in.Gen != nil:
			buf = append(buf, binTagTxInGen)
			buf = binary.AppendUvarint(buf, in.Gen.Height)
		case in.ToKey != nil:
			buf = append(buf, binTagTxInToKey)
			buf = binary.AppendUvarint(buf, in.ToKey.Amount)
			buf = binary.AppendUvarint(buf, uint64(len(in.ToKey.KeyOffsets)))
			for _, offset := range in.ToKey.KeyOffsets {
				buf = binary.AppendUvarint(buf, offset)
			}
			buf = append(buf, in.ToKey.KeyImage[:]...)
		}
	}

	buf = binary.AppendUvarint(buf, uint64(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		buf = binary.AppendUvarint(buf, out.Amount)
		if out.ToKey != nil {
			buf = append(buf, binTagTxOutToKey)
			buf = append(buf, out.ToKey.Key[:]...)
		}
	}

	buf = binary.AppendUvarint(buf, uint64(len(tx.Extra)))
	buf = append(buf, tx.Extra...)
	return buf
}

// PrefixHash returns the keccak hash of the serialized transaction
// prefix.
func PrefixHash(tx *Transaction) Hash {
	return keccak256(SerializePrefix(tx))
}

// TxHash computes the transaction hash.  Version 1 transactions hash the
// full blob, which for signature-free transactions equals the prefix.
// Version 2 transactions hash the triple (prefix hash, ringct base hash,
// prunable hash); only the null RingCT type can be reconstructed from
// pruned data, which covers miner transactions.
func TxHash(tx *Transaction) (Hash, error) {
	if tx.Version < 2 {
		return PrefixHash(tx), nil
	}

	if tx.RingCT != nil && tx.RingCT.Type != RctTypeNull {
		return Hash{}, ErrUnsupportedTx
	}

	prefix := PrefixHash(tx)
	base := keccak256([]byte{RctTypeNull})
	var prunable Hash // null type has no prunable data; all-zero hash

	return keccak256(prefix[:], base[:], prunable[:]), nil
}

// TreeHash computes the cryptonote merkle root over transaction hashes.
// The algorithm is the tree used by block ids: count rounded down to a
// power of two, with the overflow pairs folded into the tail first.
func TreeHash(hashes []Hash) Hash {
	switch len(hashes) {
	case 0:
		return Hash{}
	case 1:
		return hashes[0]
	case 2:
		return keccak256(hashes[0][:], hashes[1][:])
	}

	cnt := 1
	for cnt*2 < len(hashes) {
		cnt *= 2
	}

	scratch := make([]Hash, cnt)
	copy(scratch, hashes[:2*cnt-len(hashes)])

	for i, j := 2*cnt-len(hashes), 2*cnt-len(hashes); j < cnt; i, j = i+2, j+1 {
		scratch[j] = keccak256(hashes[i][:], hashes[i+1][:])
	}

	for cnt > 2 {
		cnt /= 2
		for i := 0; i < cnt; i++ {
			scratch[i] = keccak256(scratch[2*i][:], scratch[2*i+1][:])
		}
	}
	return keccak256(scratch[0][:], scratch[1][:])
}
