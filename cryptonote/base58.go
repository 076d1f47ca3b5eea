// Copyright (c) 2024-2025 The xmrsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cryptonote

import (
	"errors"
	"math/big"
)

// Cryptonote base58 differs from the bitcoin variant: input is processed
// in 8 byte blocks, each encoded to a fixed 11 characters, so encoded
// strings have a length that is a pure function of the input length and
// can be decoded without ambiguity.

const (
	b58Alphabet      = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"
	fullBlockSize    = 8
	fullEncodedSize  = 11
)

// encodedBlockSizes[i] is the encoded length of an i byte trailing block.
var encodedBlockSizes = [fullBlockSize + 1]int{0, 2, 3, 5, 6, 7, 9, 10, 11}

var b58Index [256]int8

func init() {
	for i := range b58Index {
		b58Index[i] = -1
	}
	for i := 0; i < len(b58Alphabet); i++ {
		b58Index[b58Alphabet[i]] = int8(i)
	}
}

// ErrBase58 describes a malformed base58 string.
var ErrBase58 = errors.New("invalid base58")

func decodedBlockSize(encoded int) int {
	for i, n := range encodedBlockSizes {
		if n == encoded {
			return i
		}
	}
	return -1
}

func encodeBlock(dst []byte, block []byte) {
	num := new(big.Int).SetBytes(block)
	rem := new(big.Int)
	base := big.NewInt(58)
	for i := len(dst) - 1; i >= 0; i-- {
		num.QuoRem(num, base, rem)
		dst[i] = b58Alphabet[rem.Int64()]
	}
}

func decodeBlock(dst []byte, block string) error {
	num := new(big.Int)
	base := big.NewInt(58)
	for i := 0; i < len(block); i++ {
		digit := b58Index[block[i]]
		if digit < 0 {
			return ErrBase58
		}
		num.Mul(num, base)
		num.Add(num, big.NewInt(int64(digit)))
	}
	raw := num.Bytes()
	if len(raw) > len(dst) {
		return ErrBase58
	}
	for i := range dst {
		dst[i] = 0
	}
	copy(dst[len(dst)-len(raw):], raw)
	return nil
}

// EncodeBase58 encodes raw bytes using the block-wise cryptonote alphabet.
func EncodeBase58(src []byte) string {
	full := len(src) / fullBlockSize
	tail := len(src) % fullBlockSize

	out := make([]byte, full*fullEncodedSize+encodedBlockSizes[tail])
	for i := 0; i < full; i++ {
		encodeBlock(
			out[i*fullEncodedSize:(i+1)*fullEncodedSize],
			src[i*fullBlockSize:(i+1)*fullBlockSize],
		)
	}
	if tail != 0 {
		encodeBlock(
			out[full*fullEncodedSize:],
			src[full*fullBlockSize:],
		)
	}
	return string(out)
}

// DecodeBase58 decodes a block-wise cryptonote base58 string.
func DecodeBase58(src string) ([]byte, error) {
	full := len(src) / fullEncodedSize
	tailEncoded := len(src) % fullEncodedSize

	tail := decodedBlockSize(tailEncoded)
	if tail < 0 {
		return nil, ErrBase58
	}

	out := make([]byte, full*fullBlockSize+tail)
	for i := 0; i < full; i++ {
		err := decodeBlock(
			out[i*fullBlockSize:(i+1)*fullBlockSize],
			src[i*fullEncodedSize:(i+1)*fullEncodedSize],
		)
		if err != nil {
			return nil, err
		}
	}
	if tail != 0 {
		err := decodeBlock(out[full*fullBlockSize:], src[full*fullEncodedSize:])
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
