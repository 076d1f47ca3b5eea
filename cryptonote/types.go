// Copyright (c) 2024-2025 The xmrsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cryptonote

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// HashSize is the width in bytes of all cryptonote hashes and curve points.
const HashSize = 32

// CoinbaseUnlockWindow is the number of blocks mined coins stay locked
// after the block that minted them.
const CoinbaseUnlockWindow = 60

// ShortHashSize is the width of the truncated hash used by encrypted
// payment ids.
const ShortHashSize = 8

// Hash represents a 32 byte keccak hash.
type Hash [HashSize]byte

// ShortHash represents the 8 byte form of an encrypted payment id.
type ShortHash [ShortHashSize]byte

// PublicKey represents a compressed ed25519 point.
type PublicKey [32]byte

// SecretKey represents an ed25519 scalar.  The account store treats these
// as raw bytes; only the crypto package interprets them.
type SecretKey [32]byte

// KeyDerivation is the shared-secret point produced by
// mcrypto.GenerateKeyDerivation.
type KeyDerivation [32]byte

// KeyImage is the double-spend tag attached to a key input.
type KeyImage [32]byte

// Key is a 32 byte RingCT scalar or commitment, depending on context.
type Key [32]byte

// AccountAddress is the public half of a wallet: the spend and view keys
// that together form a base58 address.
type AccountAddress struct {
	SpendPublic PublicKey
	ViewPublic  PublicKey
}

// String returns the Hash as a hexadecimal string.  Cryptonote hashes are
// not byte-reversed for display.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// NewHashFromStr creates a Hash from a hash string.  The string must be 64
// hexadecimal characters.
func NewHashFromStr(src string) (Hash, error) {
	var h Hash
	if err := decodeFixed(h[:], src); err != nil {
		return Hash{}, err
	}
	return h, nil
}

func (k PublicKey) String() string    { return hex.EncodeToString(k[:]) }
func (k KeyImage) String() string     { return hex.EncodeToString(k[:]) }
func (k Key) String() string          { return hex.EncodeToString(k[:]) }
func (h ShortHash) String() string    { return hex.EncodeToString(h[:]) }
func (d KeyDerivation) String() string { return hex.EncodeToString(d[:]) }

func decodeFixed(dst []byte, src string) error {
	if len(src) != len(dst)*2 {
		return fmt.Errorf("invalid length %d, want %d", len(src),
			len(dst)*2)
	}
	_, err := hex.Decode(dst, []byte(src))
	return err
}

// The fixed-width types cross the daemon wire as plain hex strings.

func marshalHex(b []byte) ([]byte, error) {
	return json.Marshal(hex.EncodeToString(b))
}

func unmarshalHex(dst, data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return decodeFixed(dst, s)
}

func (h Hash) MarshalJSON() ([]byte, error)      { return marshalHex(h[:]) }
func (h *Hash) UnmarshalJSON(data []byte) error  { return unmarshalHex(h[:], data) }
func (k PublicKey) MarshalJSON() ([]byte, error) { return marshalHex(k[:]) }
func (k *PublicKey) UnmarshalJSON(data []byte) error {
	return unmarshalHex(k[:], data)
}
func (k KeyImage) MarshalJSON() ([]byte, error) { return marshalHex(k[:]) }
func (k *KeyImage) UnmarshalJSON(data []byte) error {
	return unmarshalHex(k[:], data)
}
func (k Key) MarshalJSON() ([]byte, error)     { return marshalHex(k[:]) }
func (k *Key) UnmarshalJSON(data []byte) error { return unmarshalHex(k[:], data) }

// HexBytes is a variable-width byte string that crosses the wire as hex,
// used for the tx extra field.
type HexBytes []byte

func (b HexBytes) MarshalJSON() ([]byte, error) {
	return marshalHex(b)
}

func (b *HexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	*b = raw
	return nil
}
