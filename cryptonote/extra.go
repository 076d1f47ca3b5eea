// Copyright (c) 2024-2025 The xmrsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cryptonote

import (
	"encoding/binary"
)

// Tags of the TLV-style records carried in a transaction's extra field.
const (
	extraTagPadding        = 0x00
	extraTagPubKey         = 0x01
	extraTagNonce          = 0x02
	extraTagMergeMining    = 0x03
	extraTagAdditionalKeys = 0x04

	// Nonce sub-tags.
	nonceTagPaymentID          = 0x00
	nonceTagEncryptedPaymentID = 0x01

	maxExtraNonceSize = 255
)

// ExtraFields holds the recognised records of a parsed extra field.
type ExtraFields struct {
	// PubKey is the transaction public key, if present.
	PubKey *PublicKey

	// AdditionalKeys are per-output tx public keys used by subaddress
	// sends.
	AdditionalKeys []PublicKey

	// Nonce is the raw extra nonce, if present.
	Nonce []byte
}

// ParseExtra scans the extra field of a transaction.  Parsing is lenient
// in the same way wallet software is: an unparseable suffix is ignored
// and whatever was recognised before it is returned.
func ParseExtra(extra []byte) ExtraFields {
	var fields ExtraFields

	for len(extra) > 0 {
		tag := extra[0]
		extra = extra[1:]

		switch tag {
		case extraTagPadding:
			// A padding run must be zero bytes through the end.
			for _, b := range extra {
				if b != 0 {
					return fields
				}
			}
			return fields

		case extraTagPubKey:
			if len(extra) < 32 {
				return fields
			}
			if fields.PubKey == nil {
				key := new(PublicKey)
				copy(key[:], extra[:32])
				fields.PubKey = key
			}
			extra = extra[32:]

		case extraTagNonce:
			size, n := binary.Uvarint(extra)
			if n <= 0 || size > maxExtraNonceSize ||
				uint64(len(extra[n:])) < size {

				return fields
			}
			extra = extra[n:]
			if fields.Nonce == nil {
				fields.Nonce = append([]byte(nil), extra[:size]...)
			}
			extra = extra[size:]

		case extraTagAdditionalKeys:
			count, n := binary.Uvarint(extra)
			if n <= 0 || uint64(len(extra[n:])) < count*32 {
				return fields
			}
			extra = extra[n:]
			for i := uint64(0); i < count; i++ {
				var key PublicKey
				copy(key[:], extra[:32])
				fields.AdditionalKeys = append(fields.AdditionalKeys, key)
				extra = extra[32:]
			}

		case extraTagMergeMining:
			// depth varint + 32 byte merkle root
			_, n := binary.Uvarint(extra)
			if n <= 0 || len(extra[n:]) < 32 {
				return fields
			}
			extra = extra[n+32:]

		default:
			return fields
		}
	}
	return fields
}

// PaymentID extracts a payment id from the parsed nonce.  The returned
// length is 0 (absent), ShortHashSize (encrypted short form), or
// HashSize (plaintext long form), with the id left-aligned in the
// returned array.
func (f ExtraFields) PaymentID() (uint8, [HashSize]byte) {
	var id [HashSize]byte
	switch {
	case len(f.Nonce) == 1+HashSize && f.Nonce[0] == nonceTagPaymentID:
		copy(id[:], f.Nonce[1:])
		return HashSize, id
	case len(f.Nonce) == 1+ShortHashSize && f.Nonce[0] == nonceTagEncryptedPaymentID:
		copy(id[:], f.Nonce[1:])
		return ShortHashSize, id
	}
	return 0, id
}

// BuildExtra assembles an extra field from a tx public key and an
// optional raw nonce.  Used by the test harnesses; the scanner itself
// only parses.
func BuildExtra(pubKey PublicKey, nonce []byte) []byte {
	extra := make([]byte, 0, 1+32+2+len(nonce))
	extra = append(extra, extraTagPubKey)
	extra = append(extra, pubKey[:]...)
	if len(nonce) > 0 {
		extra = append(extra, extraTagNonce)
		extra = binary.AppendUvarint(extra, uint64(len(nonce)))
		extra = append(extra, nonce...)
	}
	return extra
}
