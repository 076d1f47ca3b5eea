// Copyright (c) 2024-2025 The xmrsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package lwsdb

import (
	"time"

	"github.com/xmrsuite/lwsd/cryptonote"
)

// AccountID references an account stored in the database, faster than by
// address.  Distinct types keep ids, heights, and output numbers from
// being mixed in arithmetic.
type AccountID uint32

// InvalidAccountID always represents "not an account id".
const InvalidAccountID = AccountID(^uint32(0))

// AccountTime is seconds since the UNIX epoch, bounded by the 32 bit
// storage format.
type AccountTime uint32

// BlockHeight references a block by height.  Height 0 is genesis.
type BlockHeight uint64

// OutputID references a global output number, as determined by the
// daemon.
type OutputID uint64

// AccountStatus is the lifecycle state of an account.
type AccountStatus uint8

// Account lifecycle states.
const (
	// AccountActive accounts are scanned and reported by the API.
	AccountActive AccountStatus = iota

	// AccountInactive accounts are not scanned, but still reported.
	AccountInactive

	// AccountHidden accounts are neither scanned nor reported.
	AccountHidden
)

// String returns a human-readable status name.
func (s AccountStatus) String() string {
	switch s {
	case AccountActive:
		return "active"
	case AccountInactive:
		return "inactive"
	case AccountHidden:
		return "hidden"
	}
	return "unknown"
}

// RequestKind is the type of a pending operator request.
type RequestKind uint8

// Pending request kinds.
const (
	// RequestCreate adds a new account.
	RequestCreate RequestKind = iota

	// RequestImportScan lowers an account's start and scan height.
	RequestImportScan
)

// Account is the stored record of a registered wallet.
type Account struct {
	ID          AccountID
	Access      AccountTime // last credentialed API use
	Address     cryptonote.AccountAddress
	ViewKey     cryptonote.SecretKey // doubles as the API credential
	ScanHeight  BlockHeight          // last block scanned
	StartHeight BlockHeight          // scanning began at this height
	Creation    AccountTime
}

// BlockInfo pairs a height with the block id stored for it.
type BlockInfo struct {
	Height BlockHeight
	Hash   cryptonote.Hash
}

// ExtraTag is the 3 bit flag component of an output's packed extra byte.
type ExtraTag uint8

// Output flags.
const (
	ExtraNone     ExtraTag = 0
	ExtraCoinbase ExtraTag = 1
	ExtraRingCT   ExtraTag = 2
)

// ExtraAndLength packs an ExtraTag and a payment id length into one
// byte: the low 3 bits carry the tag and the high 5 bits the length
// (0, 8, or 32).
type ExtraAndLength uint8

// PackExtra packs tag and payment id length into a single byte.
func PackExtra(tag ExtraTag, length uint8) ExtraAndLength {
	return ExtraAndLength(uint8(tag)&0x7 | length<<3)
}

// UnpackExtra splits a packed byte back into tag and payment id length.
func UnpackExtra(v ExtraAndLength) (ExtraTag, uint8) {
	return ExtraTag(uint8(v) & 0x7), uint8(v) >> 3
}

// Output records an output received by an account.
type Output struct {
	Height       BlockHeight
	ID           OutputID
	Amount       uint64
	Timestamp    uint64
	UnlockTime   uint64 // not always a timestamp; mirrors the chain value
	RingSize     uint32
	Index        uint32 // offset within the transaction
	TxHash       cryptonote.Hash
	TxPrefixHash cryptonote.Hash
	TxPublic     cryptonote.PublicKey
	RingCTMask   cryptonote.Key
	Extra        ExtraAndLength
	PaymentID    [32]byte // left-aligned; Extra length selects 0, 8, or 32
}

// Spend records a possible spend of a received output.
type Spend struct {
	KeyImage cryptonote.KeyImage
	RingSize uint32
}

// SpendRecord keys a Spend by the output it spends, along with the
// bookkeeping needed to roll spends back with their chain suffix.
type SpendRecord struct {
	Output OutputID
	Spend  Spend
	Height BlockHeight
}

// RequestInfo is a pending operator request against an address.
type RequestInfo struct {
	Kind        RequestKind
	Address     cryptonote.AccountAddress
	ViewKey     cryptonote.SecretKey
	StartHeight BlockHeight
	Creation    AccountTime
}

// AccountUpdate carries one account's uncommitted scan results into the
// store's conditional commit.  ScanHeight is the height the snapshot was
// taken at; the commit skips the account if the stored height has moved.
type AccountUpdate struct {
	ID         AccountID
	Address    cryptonote.AccountAddress
	ScanHeight BlockHeight
	Outputs    []Output
	Spends     []SpendRecord
}

// accountTimeNow converts the current wall clock to storage form.
func accountTimeNow() (AccountTime, error) {
	now := time.Now().Unix()
	if now < 0 || now > int64(^uint32(0)) {
		return 0, storeError(ErrSystemClockRange,
			"system clock is outside the storable range", nil)
	}
	return AccountTime(now), nil
}
