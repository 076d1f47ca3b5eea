// Copyright (c) 2024-2025 The xmrsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cryptonote

import (
	"encoding/binary"
)

// Block models a cryptonote block as served by the daemon's block RPC.
type Block struct {
	MajorVersion uint64      `json:"major_version"`
	MinorVersion uint64      `json:"minor_version"`
	Timestamp    uint64      `json:"timestamp"`
	PrevID       Hash        `json:"prev_id"`
	Nonce        uint32      `json:"nonce"`
	MinerTx      Transaction `json:"miner_tx"`
	TxHashes     []Hash      `json:"tx_hashes"`
}

// serializeHeader writes the block header fields in archive order.
func (b *Block) serializeHeader() []byte {
	buf := make([]byte, 0, 64)
	buf = binary.AppendUvarint(buf, b.MajorVersion)
	buf = binary.AppendUvarint(buf, b.MinorVersion)
	buf = binary.AppendUvarint(buf, b.Timestamp)
	buf = append(buf, b.PrevID[:]...)

	var nonce [4]byte
	binary.LittleEndian.PutUint32(nonce[:], b.Nonce)
	return append(buf, nonce[:]...)
}

// HashingBlob returns the bytes the block id is computed over: the
// serialized header, the merkle root of all transaction hashes with the
// miner transaction first, and the transaction count.
func (b *Block) HashingBlob() ([]byte, error) {
	minerHash, err := TxHash(&b.MinerTx)
	if err != nil {
		return nil, err
	}

	hashes := make([]Hash, 0, 1+len(b.TxHashes))
	hashes = append(hashes, minerHash)
	hashes = append(hashes, b.TxHashes...)
	root := TreeHash(hashes)

	blob := b.serializeHeader()
	blob = append(blob, root[:]...)
	blob = binary.AppendUvarint(blob, uint64(len(hashes)))
	return blob, nil
}

// BlockHash computes the block id: the keccak hash of the hashing blob
// prefixed with its varint length.
func (b *Block) BlockHash() (Hash, error) {
	blob, err := b.HashingBlob()
	if err != nil {
		return Hash{}, err
	}
	sized := binary.AppendUvarint(make([]byte, 0, len(blob)+4), uint64(len(blob)))
	return keccak256(sized, blob), nil
}
