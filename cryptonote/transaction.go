// Copyright (c) 2024-2025 The xmrsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cryptonote

// RingCT signature types carried in RctSignatures.Type.  Only the fields
// needed by a view-only scanner are modeled; prunable data never leaves
// the daemon when requesting pruned blocks.
const (
	RctTypeNull uint8 = iota
	RctTypeFull
	RctTypeSimple
	RctTypeBulletproof
	RctTypeBulletproof2
	RctTypeCLSAG
	RctTypeBulletproofPlus
)

// GenInput is the coinbase input, minting the block subsidy.
type GenInput struct {
	Height uint64 `json:"height"`
}

// KeyInput spends an output by reference to a ring of global output
// indices.  Offsets after the first are deltas from their predecessor.
type KeyInput struct {
	Amount     uint64   `json:"amount"`
	KeyOffsets []uint64 `json:"key_offsets"`
	KeyImage   KeyImage `json:"key_image"`
}

// TxInput is a tagged union of the input variants.  Exactly one field is
// non-nil in a well formed transaction.
type TxInput struct {
	Gen   *GenInput `json:"gen,omitempty"`
	ToKey *KeyInput `json:"to_key,omitempty"`
}

// KeyOutput is the standard one-time-key output target.
type KeyOutput struct {
	Key PublicKey `json:"key"`
}

// TxOutput is a single transaction output.  Amount is zero for
// confidential (RingCT) outputs.
type TxOutput struct {
	Amount uint64     `json:"amount"`
	ToKey  *KeyOutput `json:"to_key,omitempty"`
}

// EcdhTuple carries the encrypted amount for one output.  For pre
// bulletproof2 types Mask holds the encrypted commitment mask; later
// types derive the mask and encode the amount in the first 8 bytes of
// Amount.
type EcdhTuple struct {
	Mask   Key `json:"mask"`
	Amount Key `json:"amount"`
}

// RctSignatures is the non-prunable RingCT data of a transaction.
type RctSignatures struct {
	Type     uint8       `json:"type"`
	TxnFee   uint64      `json:"txn_fee"`
	EcdhInfo []EcdhTuple `json:"ecdh_info"`
	OutPk    []Key       `json:"out_pk"`
}

// Transaction models the subset of a cryptonote transaction needed for
// viewkey scanning.
type Transaction struct {
	Version    uint64         `json:"version"`
	UnlockTime uint64         `json:"unlock_time"`
	Inputs     []TxInput      `json:"inputs"`
	Outputs    []TxOutput     `json:"outputs"`
	Extra      HexBytes       `json:"extra"`
	RingCT     *RctSignatures `json:"ringct,omitempty"`
}

// IsCoinbase reports whether the transaction mints coins, which is the
// case exactly when it has no standard key inputs.
func (tx *Transaction) IsCoinbase() bool {
	for _, in := range tx.Inputs {
		if in.ToKey != nil {
			return false
		}
	}
	return true
}

// AbsoluteOffsets converts the delta-encoded ring member offsets of a key
// input into absolute global output indices.
func AbsoluteOffsets(offsets []uint64) []uint64 {
	out := make([]uint64, len(offsets))
	var id uint64
	for i, offset := range offsets {
		id += offset
		out[i] = id
	}
	return out
}
