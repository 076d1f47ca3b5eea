// Copyright (c) 2024-2025 The xmrsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package lwsdb

import (
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcwallet/walletdb"

	"github.com/xmrsuite/lwsd/cryptonote"
)

// Naming
//
// The following variables are commonly used in this file and given
// reserved names:
//
//   ns: The namespace (top level) bucket for this package
//   b:  The primary bucket being operated on
//   k:  A single bucket key
//   v:  A single bucket value
//   c:  A bucket cursor
//
// Functions use the naming scheme `Op[Raw]Type[Field]`, which performs
// the operation `Op` on the type `Type`, optionally dealing with raw
// keys and values if `Raw` is used.

// Big endian is the preferred byte order, due to cursor scans over
// integer keys iterating in order.
var byteOrder = binary.BigEndian

// Bucket names.
var (
	bucketBlocks      = []byte("b")
	bucketAccounts    = []byte("a")
	bucketAddrIndex   = []byte("ba")
	bucketHeightIndex = []byte("bh")
	bucketOutputs     = []byte("o")
	bucketSpends      = []byte("s")
	bucketRequests    = []byte("r")
)

// Root bucket keys.
var (
	rootCreateDate    = []byte("date")
	rootVersion       = []byte("vers")
	rootLastAccountID = []byte("acctid")
)

// LatestVersion is the most recent store version.
const LatestVersion = 1

// Fixed record widths.
const (
	accountRowSize = 4 + 4 + 64 + 32 + 8 + 8 + 4
	outputKeySize  = 8 + 8
	outputRowSize  = 8 + 8 + 8 + 4 + 4 + 32 + 32 + 32 + 32 + 1 + 32
	spendKeySize   = 8 + 32
	spendRowSize   = 4 + 4 + 8
	requestKeySize = 1 + 64
	requestRowSize = 32 + 8 + 4
	lookupRowSize  = 1 + 4
)

// The blocks bucket holds the contiguous chain tail:
//
//   [8] Height, big endian
//
// mapping to:
//
//   [32] Block id

func keyBlock(height BlockHeight) []byte {
	k := make([]byte, 8)
	byteOrder.PutUint64(k, uint64(height))
	return k
}

func putRawBlock(ns walletdb.ReadWriteBucket, k, v []byte) error {
	if err := ns.NestedReadWriteBucket(bucketBlocks).Put(k, v); err != nil {
		return storeError(ErrDatabase, "failed to store block", err)
	}
	return nil
}

func putBlock(ns walletdb.ReadWriteBucket, block BlockInfo) error {
	return putRawBlock(ns, keyBlock(block.Height), block.Hash[:])
}

func fetchBlockHash(ns walletdb.ReadBucket, height BlockHeight) (cryptonote.Hash, error) {
	v := ns.NestedReadBucket(bucketBlocks).Get(keyBlock(height))
	if len(v) != 32 {
		str := fmt.Sprintf("block %d: short read (expected 32 bytes, read %d)",
			height, len(v))
		return cryptonote.Hash{}, storeError(ErrData, str, nil)
	}
	var hash cryptonote.Hash
	copy(hash[:], v)
	return hash, nil
}

func existsBlock(ns walletdb.ReadBucket, height BlockHeight) bool {
	return ns.NestedReadBucket(bucketBlocks).Get(keyBlock(height)) != nil
}

func fetchLastBlock(ns walletdb.ReadBucket) (BlockInfo, error) {
	c := ns.NestedReadBucket(bucketBlocks).ReadCursor()
	k, v := c.Last()
	if len(k) != 8 || len(v) != 32 {
		return BlockInfo{}, storeError(ErrData, "blocks bucket is empty", nil)
	}
	var block BlockInfo
	block.Height = BlockHeight(byteOrder.Uint64(k))
	copy(block.Hash[:], v)
	return block, nil
}

// The accounts bucket nests one bucket per status byte, each mapping:
//
//   [4] Account id, big endian
//
// to the fixed account row:
//
//   [4]  Account id
//   [4]  Last access time
//   [32] Spend public key
//   [32] View public key
//   [32] View key
//   [8]  Scan height
//   [8]  Start height
//   [4]  Creation time

func keyAccount(id AccountID) []byte {
	k := make([]byte, 4)
	byteOrder.PutUint32(k, uint32(id))
	return k
}

func valueAccount(a *Account) []byte {
	v := make([]byte, accountRowSize)
	byteOrder.PutUint32(v[0:4], uint32(a.ID))
	byteOrder.PutUint32(v[4:8], uint32(a.Access))
	copy(v[8:40], a.Address.SpendPublic[:])
	copy(v[40:72], a.Address.ViewPublic[:])
	copy(v[72:104], a.ViewKey[:])
	byteOrder.PutUint64(v[104:112], uint64(a.ScanHeight))
	byteOrder.PutUint64(v[112:120], uint64(a.StartHeight))
	byteOrder.PutUint32(v[120:124], uint32(a.Creation))
	return v
}

func readAccount(v []byte, a *Account) error {
	if len(v) != accountRowSize {
		str := fmt.Sprintf("account row: short read (expected %d bytes, "+
			"read %d)", accountRowSize, len(v))
		return storeError(ErrData, str, nil)
	}
	a.ID = AccountID(byteOrder.Uint32(v[0:4]))
	a.Access = AccountTime(byteOrder.Uint32(v[4:8]))
	copy(a.Address.SpendPublic[:], v[8:40])
	copy(a.Address.ViewPublic[:], v[40:72])
	copy(a.ViewKey[:], v[72:104])
	a.ScanHeight = BlockHeight(byteOrder.Uint64(v[104:112]))
	a.StartHeight = BlockHeight(byteOrder.Uint64(v[112:120]))
	a.Creation = AccountTime(byteOrder.Uint32(v[120:124]))
	return nil
}

func accountBucket(ns walletdb.ReadBucket, status AccountStatus) walletdb.ReadBucket {
	return ns.NestedReadBucket(bucketAccounts).
		NestedReadBucket([]byte{byte(status)})
}

func accountBucketRW(ns walletdb.ReadWriteBucket, status AccountStatus) walletdb.ReadWriteBucket {
	return ns.NestedReadWriteBucket(bucketAccounts).
		NestedReadWriteBucket([]byte{byte(status)})
}

func putAccount(ns walletdb.ReadWriteBucket, status AccountStatus, a *Account) error {
	err := accountBucketRW(ns, status).Put(keyAccount(a.ID), valueAccount(a))
	if err != nil {
		return storeError(ErrDatabase, "failed to store account", err)
	}
	return nil
}

func fetchAccount(ns walletdb.ReadBucket, status AccountStatus,
	id AccountID) (Account, error) {

	var a Account
	v := accountBucket(ns, status).Get(keyAccount(id))
	if v == nil {
		return a, storeError(ErrNoSuchAccount, "no account for id", nil)
	}
	return a, readAccount(v, &a)
}

func deleteAccount(ns walletdb.ReadWriteBucket, status AccountStatus,
	id AccountID) error {

	err := accountBucketRW(ns, status).Delete(keyAccount(id))
	if err != nil {
		return storeError(ErrDatabase, "failed to delete account", err)
	}
	return nil
}

// The address index maps:
//
//   [64] Spend public key || view public key
//
// to:
//
//   [1] Status
//   [4] Account id

func keyAddress(addr *cryptonote.AccountAddress) []byte {
	k := make([]byte, 64)
	copy(k[0:32], addr.SpendPublic[:])
	copy(k[32:64], addr.ViewPublic[:])
	return k
}

func putAddrIndex(ns walletdb.ReadWriteBucket, addr *cryptonote.AccountAddress,
	status AccountStatus, id AccountID) error {

	v := make([]byte, lookupRowSize)
	v[0] = byte(status)
	byteOrder.PutUint32(v[1:5], uint32(id))
	err := ns.NestedReadWriteBucket(bucketAddrIndex).Put(keyAddress(addr), v)
	if err != nil {
		return storeError(ErrDatabase, "failed to store address index", err)
	}
	return nil
}

func fetchAddrIndex(ns walletdb.ReadBucket,
	addr *cryptonote.AccountAddress) (AccountStatus, AccountID, error) {

	v := ns.NestedReadBucket(bucketAddrIndex).Get(keyAddress(addr))
	if v == nil {
		return 0, InvalidAccountID,
			storeError(ErrNoSuchAccount, "no account for address", nil)
	}
	if len(v) != lookupRowSize {
		return 0, InvalidAccountID,
			storeError(ErrData, "address index row: bad length", nil)
	}
	return AccountStatus(v[0]), AccountID(byteOrder.Uint32(v[1:5])), nil
}

// The height index maps:
//
//   [8] Scan height || [4] Account id
//
// to an empty value, so rollbacks can find every account above a height
// with a single range scan.

func keyHeightIndex(height BlockHeight, id AccountID) []byte {
	k := make([]byte, 12)
	byteOrder.PutUint64(k[0:8], uint64(height))
	byteOrder.PutUint32(k[8:12], uint32(id))
	return k
}

func putHeightIndex(ns walletdb.ReadWriteBucket, height BlockHeight,
	id AccountID) error {

	err := ns.NestedReadWriteBucket(bucketHeightIndex).
		Put(keyHeightIndex(height, id), nil)
	if err != nil {
		return storeError(ErrDatabase, "failed to store height index", err)
	}
	return nil
}

func deleteHeightIndex(ns walletdb.ReadWriteBucket, height BlockHeight,
	id AccountID) error {

	err := ns.NestedReadWriteBucket(bucketHeightIndex).
		Delete(keyHeightIndex(height, id))
	if err != nil {
		return storeError(ErrDatabase, "failed to delete height index", err)
	}
	return nil
}

// The outputs bucket nests one bucket per account id, each mapping:
//
//   [8] Height || [8] Output id
//
// to the fixed output row:
//
//   [8]  Amount
//   [8]  Timestamp
//   [8]  Unlock time
//   [4]  Ring size
//   [4]  Index within tx
//   [32] Tx hash
//   [32] Tx prefix hash
//   [32] Tx public key
//   [32] RingCT mask
//   [1]  Packed extra tag and payment id length
//   [32] Payment id, left aligned

func keyOutput(height BlockHeight, id OutputID) []byte {
	k := make([]byte, outputKeySize)
	byteOrder.PutUint64(k[0:8], uint64(height))
	byteOrder.PutUint64(k[8:16], uint64(id))
	return k
}

func valueOutput(o *Output) []byte {
	v := make([]byte, outputRowSize)
	byteOrder.PutUint64(v[0:8], o.Amount)
	byteOrder.PutUint64(v[8:16], o.Timestamp)
	byteOrder.PutUint64(v[16:24], o.UnlockTime)
	byteOrder.PutUint32(v[24:28], o.RingSize)
	byteOrder.PutUint32(v[28:32], o.Index)
	copy(v[32:64], o.TxHash[:])
	copy(v[64:96], o.TxPrefixHash[:])
	copy(v[96:128], o.TxPublic[:])
	copy(v[128:160], o.RingCTMask[:])
	v[160] = byte(o.Extra)
	copy(v[161:193], o.PaymentID[:])
	return v
}

func readOutput(k, v []byte, o *Output) error {
	if len(k) != outputKeySize || len(v) != outputRowSize {
		str := fmt.Sprintf("output row: short read (expected %d/%d bytes, "+
			"read %d/%d)", outputKeySize, outputRowSize, len(k), len(v))
		return storeError(ErrData, str, nil)
	}
	o.Height = BlockHeight(byteOrder.Uint64(k[0:8]))
	o.ID = OutputID(byteOrder.Uint64(k[8:16]))
	o.Amount = byteOrder.Uint64(v[0:8])
	o.Timestamp = byteOrder.Uint64(v[8:16])
	o.UnlockTime = byteOrder.Uint64(v[16:24])
	o.RingSize = byteOrder.Uint32(v[24:28])
	o.Index = byteOrder.Uint32(v[28:32])
	copy(o.TxHash[:], v[32:64])
	copy(o.TxPrefixHash[:], v[64:96])
	copy(o.TxPublic[:], v[96:128])
	copy(o.RingCTMask[:], v[128:160])
	o.Extra = ExtraAndLength(v[160])
	copy(o.PaymentID[:], v[161:193])
	return nil
}

func outputBucketRW(ns walletdb.ReadWriteBucket, id AccountID) (walletdb.ReadWriteBucket, error) {
	b, err := ns.NestedReadWriteBucket(bucketOutputs).
		CreateBucketIfNotExists(keyAccount(id))
	if err != nil {
		return nil, storeError(ErrDatabase, "failed to create output bucket", err)
	}
	return b, nil
}

func putOutput(b walletdb.ReadWriteBucket, o *Output) error {
	if err := b.Put(keyOutput(o.Height, o.ID), valueOutput(o)); err != nil {
		return storeError(ErrDatabase, "failed to store output", err)
	}
	return nil
}

// The spends bucket maps:
//
//   [8] Output id || [32] Key image
//
// to:
//
//   [4] Ring size
//   [4] Spending account id
//   [8] Height the spend was seen at
//
// Keying by (output, image) makes spend uniqueness structural.

func keySpend(id OutputID, image cryptonote.KeyImage) []byte {
	k := make([]byte, spendKeySize)
	byteOrder.PutUint64(k[0:8], uint64(id))
	copy(k[8:40], image[:])
	return k
}

func putSpend(ns walletdb.ReadWriteBucket, acct AccountID, rec *SpendRecord) error {
	v := make([]byte, spendRowSize)
	byteOrder.PutUint32(v[0:4], rec.Spend.RingSize)
	byteOrder.PutUint32(v[4:8], uint32(acct))
	byteOrder.PutUint64(v[8:16], uint64(rec.Height))
	err := ns.NestedReadWriteBucket(bucketSpends).
		Put(keySpend(rec.Output, rec.Spend.KeyImage), v)
	if err != nil {
		return storeError(ErrDatabase, "failed to store spend", err)
	}
	return nil
}

func readSpend(k, v []byte, rec *SpendRecord) error {
	if len(k) != spendKeySize || len(v) != spendRowSize {
		return storeError(ErrData, "spend row: bad length", nil)
	}
	rec.Output = OutputID(byteOrder.Uint64(k[0:8]))
	copy(rec.Spend.KeyImage[:], k[8:40])
	rec.Spend.RingSize = byteOrder.Uint32(v[0:4])
	rec.Height = BlockHeight(byteOrder.Uint64(v[8:16]))
	return nil
}

func spendAccount(v []byte) AccountID {
	return AccountID(byteOrder.Uint32(v[4:8]))
}

// The requests bucket maps:
//
//   [1] Kind || [64] Spend public || view public
//
// to:
//
//   [32] View key
//   [8]  Requested start height
//   [4]  Creation time

func keyRequest(kind RequestKind, addr *cryptonote.AccountAddress) []byte {
	k := make([]byte, requestKeySize)
	k[0] = byte(kind)
	copy(k[1:33], addr.SpendPublic[:])
	copy(k[33:65], addr.ViewPublic[:])
	return k
}

func putRequest(ns walletdb.ReadWriteBucket, req *RequestInfo) error {
	v := make([]byte, requestRowSize)
	copy(v[0:32], req.ViewKey[:])
	byteOrder.PutUint64(v[32:40], uint64(req.StartHeight))
	byteOrder.PutUint32(v[40:44], uint32(req.Creation))
	err := ns.NestedReadWriteBucket(bucketRequests).
		Put(keyRequest(req.Kind, &req.Address), v)
	if err != nil {
		return storeError(ErrDatabase, "failed to store request", err)
	}
	return nil
}

func readRequest(k, v []byte, req *RequestInfo) error {
	if len(k) != requestKeySize || len(v) != requestRowSize {
		return storeError(ErrData, "request row: bad length", nil)
	}
	req.Kind = RequestKind(k[0])
	copy(req.Address.SpendPublic[:], k[1:33])
	copy(req.Address.ViewPublic[:], k[33:65])
	copy(req.ViewKey[:], v[0:32])
	req.StartHeight = BlockHeight(byteOrder.Uint64(v[32:40]))
	req.Creation = AccountTime(byteOrder.Uint32(v[40:44]))
	return nil
}

func existsRequest(ns walletdb.ReadBucket, kind RequestKind,
	addr *cryptonote.AccountAddress) bool {

	return ns.NestedReadBucket(bucketRequests).Get(keyRequest(kind, addr)) != nil
}

func deleteRequest(ns walletdb.ReadWriteBucket, kind RequestKind,
	addr *cryptonote.AccountAddress) error {

	err := ns.NestedReadWriteBucket(bucketRequests).Delete(keyRequest(kind, addr))
	if err != nil {
		return storeError(ErrDatabase, "failed to delete request", err)
	}
	return nil
}

// fetchLastAccountID reads the id allocation counter.
func fetchLastAccountID(ns walletdb.ReadBucket) AccountID {
	v := ns.Get(rootLastAccountID)
	if len(v) != 4 {
		return 0
	}
	return AccountID(byteOrder.Uint32(v))
}

func putLastAccountID(ns walletdb.ReadWriteBucket, id AccountID) error {
	v := make([]byte, 4)
	byteOrder.PutUint32(v, uint32(id))
	if err := ns.Put(rootLastAccountID, v); err != nil {
		return storeError(ErrDatabase, "failed to store account counter", err)
	}
	return nil
}

// createBuckets sets up a fresh namespace.
func createBuckets(ns walletdb.ReadWriteBucket) error {
	if _, err := ns.CreateBucketIfNotExists(bucketBlocks); err != nil {
		return storeError(ErrDatabase, "failed to create blocks bucket", err)
	}
	accounts, err := ns.CreateBucketIfNotExists(bucketAccounts)
	if err != nil {
		return storeError(ErrDatabase, "failed to create accounts bucket", err)
	}
	for _, status := range []AccountStatus{
		AccountActive, AccountInactive, AccountHidden,
	} {
		if _, err := accounts.CreateBucketIfNotExists([]byte{byte(status)}); err != nil {
			return storeError(ErrDatabase, "failed to create status bucket", err)
		}
	}
	for _, name := range [][]byte{
		bucketAddrIndex, bucketHeightIndex, bucketOutputs,
		bucketSpends, bucketRequests,
	} {
		if _, err := ns.CreateBucketIfNotExists(name); err != nil {
			return storeError(ErrDatabase, "failed to create bucket", err)
		}
	}
	return nil
}
