// Copyright (c) 2024-2025 The xmrsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cryptonote

import (
	"bytes"
	"encoding/binary"
	"errors"

	"golang.org/x/crypto/sha3"
)

const addrChecksumSize = 4

// Address encoding errors.
var (
	ErrBadAddress  = errors.New("malformed base58 address")
	ErrBadChecksum = errors.New("address checksum mismatch")
	ErrWrongNetwork = errors.New("address network tag mismatch")
)

// EncodeAddress returns the base58 form of an account address:
// varint network tag, spend public, view public, and a 4 byte keccak
// checksum over the preceding bytes.
func EncodeAddress(tag uint64, addr AccountAddress) string {
	buf := make([]byte, 0, binary.MaxVarintLen64+2*32+addrChecksumSize)
	buf = binary.AppendUvarint(buf, tag)
	buf = append(buf, addr.SpendPublic[:]...)
	buf = append(buf, addr.ViewPublic[:]...)

	k := keccak256(buf)
	buf = append(buf, k[:addrChecksumSize]...)
	return EncodeBase58(buf)
}

// DecodeAddress parses a base58 account address, verifying the checksum
// and returning the embedded network tag and keys.
func DecodeAddress(src string) (uint64, AccountAddress, error) {
	raw, err := DecodeBase58(src)
	if err != nil {
		return 0, AccountAddress{}, ErrBadAddress
	}

	tag, n := binary.Uvarint(raw)
	if n <= 0 || len(raw) != n+2*32+addrChecksumSize {
		return 0, AccountAddress{}, ErrBadAddress
	}

	body, sum := raw[:len(raw)-addrChecksumSize], raw[len(raw)-addrChecksumSize:]
	k := keccak256(body)
	if !bytes.Equal(k[:addrChecksumSize], sum) {
		return 0, AccountAddress{}, ErrBadChecksum
	}

	var addr AccountAddress
	copy(addr.SpendPublic[:], raw[n:n+32])
	copy(addr.ViewPublic[:], raw[n+32:n+64])
	return tag, addr, nil
}

func keccak256(data ...[]byte) Hash {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out Hash
	h.Sum(out[:0])
	return out
}
