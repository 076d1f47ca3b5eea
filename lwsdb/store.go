// Copyright (c) 2024-2025 The xmrsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package lwsdb implements the durable account store of the light wallet
// server on top of walletdb's multi-reader single-writer transactional
// buckets.  Records use fixed, big-endian layouts so cursor order is
// sort order.
package lwsdb

import (
	"fmt"
	"os"
	"time"

	"github.com/btcsuite/btcwallet/walletdb"
	_ "github.com/btcsuite/btcwallet/walletdb/bdb" // bbolt driver

	"github.com/xmrsuite/lwsd/cryptonote"
	"github.com/xmrsuite/lwsd/netparams"
)

var namespaceKey = []byte("lws")

const (
	dbTimeout = 60 * time.Second

	// chainSyncRecent is how many recent tail hashes seed the probe
	// list before the exponentially spaced anchors.
	chainSyncRecent = 64

	// chainSyncAnchors caps the exponential anchor offsets (2 << i).
	chainSyncAnchors = 32
)

// Storage is a handle to the account database.  Handles are cheap to
// copy and safe for concurrent use; walletdb serializes the single
// writer internally.
type Storage struct {
	db             walletdb.DB
	createQueueMax uint32
}

// Open opens or creates the account database at path.  A fresh database
// is seeded with the network's genesis hash so the chain tail always has
// an anchor.
func Open(path string, params *netparams.Params, createQueueMax uint32) (*Storage, error) {
	var (
		db  walletdb.DB
		err error
	)
	if _, serr := os.Stat(path); os.IsNotExist(serr) {
		db, err = walletdb.Create("bdb", path, true, dbTimeout)
	} else {
		db, err = walletdb.Open("bdb", path, true, dbTimeout)
	}
	if err != nil {
		return nil, storeError(ErrDatabase, "failed to open database", err)
	}

	s := &Storage{db: db, createQueueMax: createQueueMax}
	err = walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		ns, err := tx.CreateTopLevelBucket(namespaceKey)
		if err != nil {
			return storeError(ErrDatabase, "failed to create namespace", err)
		}
		if err := createBuckets(ns); err != nil {
			return err
		}
		if ns.Get(rootVersion) == nil {
			v := make([]byte, 4)
			byteOrder.PutUint32(v, LatestVersion)
			if err := ns.Put(rootVersion, v); err != nil {
				return storeError(ErrDatabase, "failed to store version", err)
			}
			now := make([]byte, 8)
			byteOrder.PutUint64(now, uint64(time.Now().Unix()))
			if err := ns.Put(rootCreateDate, now); err != nil {
				return storeError(ErrDatabase, "failed to store create date", err)
			}
		}

		// Seed the chain tail with genesis on first open.
		blocks := ns.NestedReadWriteBucket(bucketBlocks)
		if k, _ := blocks.ReadCursor().First(); k == nil {
			return putBlock(ns, BlockInfo{Height: 0, Hash: params.GenesisHash})
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database.
func (s *Storage) Close() error {
	return s.db.Close()
}

// view runs f against a read-only snapshot of the namespace.
func (s *Storage) view(f func(ns walletdb.ReadBucket) error) error {
	return walletdb.View(s.db, func(tx walletdb.ReadTx) error {
		ns := tx.ReadBucket(namespaceKey)
		if ns == nil {
			return storeError(ErrData, "missing namespace", nil)
		}
		return f(ns)
	})
}

// update runs f inside the single writer transaction.  Any error rolls
// the transaction back, keeping writer operations all-or-nothing.
func (s *Storage) update(f func(ns walletdb.ReadWriteBucket) error) error {
	return walletdb.Update(s.db, func(tx walletdb.ReadWriteTx) error {
		ns := tx.ReadWriteBucket(namespaceKey)
		if ns == nil {
			return storeError(ErrData, "missing namespace", nil)
		}
		return f(ns)
	})
}

// Reader is a snapshot-isolated read capability.  It must be released
// with FinishRead; holding one does not block the writer.
type Reader struct {
	tx walletdb.ReadTx
	ns walletdb.ReadBucket
}

// StartRead opens a read transaction against the current snapshot.
func (s *Storage) StartRead() (*Reader, error) {
	tx, err := s.db.BeginReadTx()
	if err != nil {
		return nil, storeError(ErrDatabase, "failed to begin read", err)
	}
	ns := tx.ReadBucket(namespaceKey)
	if ns == nil {
		tx.Rollback()
		return nil, storeError(ErrData, "missing namespace", nil)
	}
	return &Reader{tx: tx, ns: ns}, nil
}

// FinishRead releases the snapshot.
func (r *Reader) FinishRead() {
	if r.tx != nil {
		r.tx.Rollback()
		r.tx = nil
	}
}

// GetAccounts returns every account with the given status, ordered by
// account id.
func (r *Reader) GetAccounts(status AccountStatus) ([]Account, error) {
	var out []Account
	err := accountBucket(r.ns, status).ForEach(func(k, v []byte) error {
		var a Account
		if err := readAccount(v, &a); err != nil {
			return err
		}
		out = append(out, a)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetAccount looks an account up by address, regardless of status.
func (r *Reader) GetAccount(addr *cryptonote.AccountAddress) (AccountStatus, Account, error) {
	status, id, err := fetchAddrIndex(r.ns, addr)
	if err != nil {
		return 0, Account{}, err
	}
	a, err := fetchAccount(r.ns, status, id)
	return status, a, err
}

// GetOutputs returns the received outputs of an account ordered by
// (height, output id).
func (r *Reader) GetOutputs(id AccountID) ([]Output, error) {
	b := r.ns.NestedReadBucket(bucketOutputs).NestedReadBucket(keyAccount(id))
	if b == nil {
		return nil, nil
	}
	var out []Output
	err := b.ForEach(func(k, v []byte) error {
		var o Output
		if err := readOutput(k, v, &o); err != nil {
			return err
		}
		out = append(out, o)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetOutputIDs returns just the sorted global ids of an account's
// received outputs, which is all the scanner needs for spend matching.
func (r *Reader) GetOutputIDs(id AccountID) ([]OutputID, error) {
	outputs, err := r.GetOutputs(id)
	if err != nil {
		return nil, err
	}
	ids := make([]OutputID, 0, len(outputs))
	for _, o := range outputs {
		ids = append(ids, o.ID)
	}
	return ids, nil
}

// GetSpends returns the spends recorded against a single output.
func (r *Reader) GetSpends(id OutputID) ([]Spend, error) {
	prefix := make([]byte, 8)
	byteOrder.PutUint64(prefix, uint64(id))

	var out []Spend
	c := r.ns.NestedReadBucket(bucketSpends).ReadCursor()
	for k, v := c.Seek(prefix); len(k) == spendKeySize &&
		byteOrder.Uint64(k[0:8]) == uint64(id); k, v = c.Next() {

		var rec SpendRecord
		if err := readSpend(k, v, &rec); err != nil {
			return nil, err
		}
		out = append(out, rec.Spend)
	}
	return out, nil
}

// GetLastBlock returns the newest block of the local chain tail.
func (r *Reader) GetLastBlock() (BlockInfo, error) {
	return fetchLastBlock(r.ns)
}

// GetChainSync builds the probe list presented to the daemon when
// searching for a common ancestor: the most recent tail hashes, then
// exponentially spaced anchors, then genesis.  Newest first.
func (r *Reader) GetChainSync() ([]cryptonote.Hash, error) {
	last, err := fetchLastBlock(r.ns)
	if err != nil {
		return nil, err
	}

	var out []cryptonote.Hash
	c := r.ns.NestedReadBucket(bucketBlocks).ReadCursor()
	k, v := c.Last()
	var oldest BlockHeight
	for n := 0; k != nil && n < chainSyncRecent; k, v = c.Prev() {
		var hash cryptonote.Hash
		copy(hash[:], v)
		out = append(out, hash)
		oldest = BlockHeight(byteOrder.Uint64(k))
		n++
	}

	// Exponential anchors below the recent window.  Heights that were
	// never stored are skipped; the tail is contiguous but may not
	// reach back to genesis.
	anchor := uint64(last.Height)
	for i := uint(1); i <= chainSyncAnchors; i++ {
		offset := uint64(2) << i
		if anchor < offset {
			break
		}
		h := BlockHeight(anchor - offset)
		if h >= oldest {
			continue
		}
		if !existsBlock(r.ns, h) {
			continue
		}
		hash, err := fetchBlockHash(r.ns, h)
		if err != nil {
			return nil, err
		}
		out = append(out, hash)
	}

	if oldest != 0 && existsBlock(r.ns, 0) {
		hash, err := fetchBlockHash(r.ns, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, hash)
	}
	return out, nil
}

// GetRequests enumerates the pending operator requests.
func (r *Reader) GetRequests() ([]RequestInfo, error) {
	var out []RequestInfo
	err := r.ns.NestedReadBucket(bucketRequests).ForEach(func(k, v []byte) error {
		var req RequestInfo
		if err := readRequest(k, v, &req); err != nil {
			return err
		}
		out = append(out, req)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// rollbackAccounts rolls every account whose scan height exceeds height
// back to height, pruning the outputs and spends above it.
func rollbackAccounts(ns walletdb.ReadWriteBucket, height BlockHeight) error {
	// Collect affected ids from the height index first; the index is
	// mutated while rolling back.
	type entry struct {
		height BlockHeight
		id     AccountID
	}
	var affected []entry

	c := ns.NestedReadBucket(bucketHeightIndex).ReadCursor()
	start := keyHeightIndex(height+1, 0)
	for k, _ := c.Seek(start); len(k) == 12; k, _ = c.Next() {
		affected = append(affected, entry{
			height: BlockHeight(byteOrder.Uint64(k[0:8])),
			id:     AccountID(byteOrder.Uint32(k[8:12])),
		})
	}

	for _, e := range affected {
		// The status bucket holding the account is unknown; check all.
		var (
			status AccountStatus
			acct   Account
			err    error
		)
		found := false
		for _, st := range []AccountStatus{
			AccountActive, AccountInactive, AccountHidden,
		} {
			acct, err = fetchAccount(ns, st, e.id)
			if err == nil {
				status, found = st, true
				break
			}
			if !IsError(err, ErrNoSuchAccount) {
				return err
			}
		}
		if !found {
			return storeError(ErrData, "height index references "+
				"unknown account", nil)
		}

		if acct.ScanHeight <= height {
			continue
		}
		acct.ScanHeight = height
		if err := putAccount(ns, status, &acct); err != nil {
			return err
		}
		if err := deleteHeightIndex(ns, e.height, e.id); err != nil {
			return err
		}
		if err := putHeightIndex(ns, height, e.id); err != nil {
			return err
		}
		if err := rollbackOutputs(ns, e.id, height); err != nil {
			return err
		}
	}
	return rollbackSpends(ns, height)
}

// rollbackOutputs deletes an account's outputs above height.
func rollbackOutputs(ns walletdb.ReadWriteBucket, id AccountID,
	height BlockHeight) error {

	b := ns.NestedReadWriteBucket(bucketOutputs).
		NestedReadWriteBucket(keyAccount(id))
	if b == nil {
		return nil
	}

	var stale [][]byte
	c := b.ReadCursor()
	start := keyOutput(height+1, 0)
	for k, _ := c.Seek(start); k != nil; k, _ = c.Next() {
		stale = append(stale, append([]byte(nil), k...))
	}
	for _, k := range stale {
		if err := b.Delete(k); err != nil {
			return storeError(ErrDatabase, "failed to delete output", err)
		}
	}
	return nil
}

// rollbackSpends deletes every spend recorded above height.
func rollbackSpends(ns walletdb.ReadWriteBucket, height BlockHeight) error {
	b := ns.NestedReadWriteBucket(bucketSpends)

	var stale [][]byte
	err := b.ForEach(func(k, v []byte) error {
		if len(v) == spendRowSize &&
			BlockHeight(byteOrder.Uint64(v[8:16])) > height {

			stale = append(stale, append([]byte(nil), k...))
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, k := range stale {
		if err := b.Delete(k); err != nil {
			return storeError(ErrDatabase, "failed to delete spend", err)
		}
	}
	return nil
}

// rollbackChain truncates the tail at height (inclusive) and rolls
// accounts back to the last surviving hash.
func rollbackChain(ns walletdb.ReadWriteBucket, height BlockHeight) error {
	b := ns.NestedReadWriteBucket(bucketBlocks)

	var stale [][]byte
	c := b.ReadCursor()
	for k, _ := c.Seek(keyBlock(height)); k != nil; k, _ = c.Next() {
		stale = append(stale, append([]byte(nil), k...))
	}
	for _, k := range stale {
		if err := b.Delete(k); err != nil {
			return storeError(ErrDatabase, "failed to delete block", err)
		}
	}
	return rollbackAccounts(ns, height-1)
}

// SyncChain aligns the stored tail with the continuation returned by the
// daemon: hashes[0] must match the stored hash at height, subsequent
// hashes replace any divergent suffix, and accounts above the fork point
// are rolled back to it.
func (s *Storage) SyncChain(height BlockHeight, hashes []cryptonote.Hash) error {
	if len(hashes) == 0 {
		return storeError(ErrInput, "empty chain for sync", nil)
	}

	return s.update(func(ns walletdb.ReadWriteBucket) error {
		stored, err := fetchBlockHash(ns, height)
		if err != nil {
			return err
		}
		if stored != hashes[0] {
			return storeError(ErrBadBlockchain,
				"daemon ancestor does not match stored tail", nil)
		}

		// Walk the overlap forward until divergence or the end of
		// the stored tail.
		current := height + 1
		rest := hashes[1:]
		for len(rest) > 0 && existsBlock(ns, current) {
			stored, err := fetchBlockHash(ns, current)
			if err != nil {
				return err
			}
			if stored != rest[0] {
				if err := rollbackChain(ns, current); err != nil {
					return err
				}
				break
			}
			rest = rest[1:]
			current++
		}

		for _, hash := range rest {
			err := putBlock(ns, BlockInfo{Height: current, Hash: hash})
			if err != nil {
				return err
			}
			current++
		}
		return nil
	})
}

// Update is the conditional commit used by scan workers.  chain[i] is
// the block at height+i.  The newest stored block the suffix covers, at
// min(tail height, height+len(chain)-1), must hash-match its entry in
// chain; on mismatch ErrBlockchainReorg is returned and nothing is
// written.  On success the suffix is
// appended, each account's outputs and spends are inserted, and its
// scan height advances to the end of the suffix.  The number of accounts
// actually advanced is returned; an account is skipped when its stored
// state moved underneath the scan.
func (s *Storage) Update(height BlockHeight, chain []cryptonote.Hash,
	accounts []AccountUpdate) (int, error) {

	if len(accounts) == 0 && len(chain) == 0 {
		return 0, nil
	}
	if len(chain) == 0 {
		return 0, storeError(ErrInput, "account update without chain", nil)
	}

	lastUpdate := height + BlockHeight(len(chain)) - 1

	var updated int
	err := s.update(func(ns walletdb.ReadWriteBucket) error {
		updated = 0

		lastBlock, err := fetchLastBlock(ns)
		if err != nil {
			return err
		}
		if lastBlock.Height < height {
			return storeError(ErrBadBlockchain,
				"commit height above stored tail", nil)
		}

		// The newest stored block inside the suffix must match; this
		// is the reorg gate between racing workers.
		lastSame := lastBlock.Height
		if lastUpdate < lastSame {
			lastSame = lastUpdate
		}
		stored, err := fetchBlockHash(ns, lastSame)
		if err != nil {
			return err
		}
		offset := uint64(lastSame - height)
		if stored != chain[offset] {
			return storeError(ErrBlockchainReorg,
				"chain tail changed during scan", nil)
		}

		next := lastSame + 1
		for _, hash := range chain[offset+1:] {
			err := putBlock(ns, BlockInfo{Height: next, Hash: hash})
			if err != nil {
				return err
			}
			next++
		}

		for i := range accounts {
			acct := &accounts[i]

			// Most accounts are still active; fall back to the
			// address index for the rest.
			status := AccountActive
			existing, err := fetchAccount(ns, status, acct.ID)
			if IsError(err, ErrNoSuchAccount) {
				var id AccountID
				status, id, err = fetchAddrIndex(ns, &acct.Address)
				if IsError(err, ErrNoSuchAccount) ||
					(err == nil && (id != acct.ID ||
						status == AccountHidden)) {

					continue // to next account
				}
				if err != nil {
					return err
				}
				existing, err = fetchAccount(ns, status, acct.ID)
			}
			if err != nil {
				return err
			}

			// Skip accounts whose progress moved (rescan, rollback)
			// since the snapshot was taken.
			if existing.ScanHeight != acct.ScanHeight {
				continue // to next account
			}

			oldHeight := existing.ScanHeight
			existing.ScanHeight = lastUpdate
			if err := putAccount(ns, status, &existing); err != nil {
				return err
			}
			if err := deleteHeightIndex(ns, oldHeight, acct.ID); err != nil {
				return err
			}
			if err := putHeightIndex(ns, lastUpdate, acct.ID); err != nil {
				return err
			}

			if len(acct.Outputs) > 0 {
				b, err := outputBucketRW(ns, acct.ID)
				if err != nil {
					return err
				}
				for j := range acct.Outputs {
					if err := putOutput(b, &acct.Outputs[j]); err != nil {
						return err
					}
				}
			}
			for j := range acct.Spends {
				if err := putSpend(ns, acct.ID, &acct.Spends[j]); err != nil {
					return err
				}
			}

			updated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

// nextAccountID allocates the next id, never reusing the sentinel.
func nextAccountID(ns walletdb.ReadWriteBucket) (AccountID, error) {
	next := fetchLastAccountID(ns) + 1
	if next == InvalidAccountID {
		return 0, storeError(ErrData, "account id space exhausted", nil)
	}
	return next, putLastAccountID(ns, next)
}

func addAccount(ns walletdb.ReadWriteBucket, addr *cryptonote.AccountAddress,
	key cryptonote.SecretKey, start BlockHeight) error {

	if _, _, err := fetchAddrIndex(ns, addr); err == nil {
		return storeError(ErrAccountExists, "account already exists", nil)
	} else if !IsError(err, ErrNoSuchAccount) {
		return err
	}

	now, err := accountTimeNow()
	if err != nil {
		return err
	}
	id, err := nextAccountID(ns)
	if err != nil {
		return err
	}

	acct := Account{
		ID:          id,
		Address:     *addr,
		ViewKey:     key,
		ScanHeight:  start,
		StartHeight: start,
		Creation:    now,
	}
	if err := putAccount(ns, AccountActive, &acct); err != nil {
		return err
	}
	if err := putAddrIndex(ns, addr, AccountActive, id); err != nil {
		return err
	}
	return putHeightIndex(ns, start, id)
}

// AddAccount registers a new active account scanning from start.
func (s *Storage) AddAccount(addr *cryptonote.AccountAddress,
	key cryptonote.SecretKey, start BlockHeight) error {

	return s.update(func(ns walletdb.ReadWriteBucket) error {
		return addAccount(ns, addr, key, start)
	})
}

// CreationRequest enqueues a pending account-creation request, subject
// to the configured queue cap.
func (s *Storage) CreationRequest(addr *cryptonote.AccountAddress,
	key cryptonote.SecretKey, start BlockHeight) error {

	return s.update(func(ns walletdb.ReadWriteBucket) error {
		if _, _, err := fetchAddrIndex(ns, addr); err == nil {
			return storeError(ErrAccountExists, "account already exists", nil)
		} else if !IsError(err, ErrNoSuchAccount) {
			return err
		}
		if existsRequest(ns, RequestCreate, addr) {
			return storeError(ErrDuplicateRequest,
				"creation already requested", nil)
		}

		var pending uint32
		err := ns.NestedReadBucket(bucketRequests).ForEach(func(k, v []byte) error {
			if len(k) == requestKeySize && RequestKind(k[0]) == RequestCreate {
				pending++
			}
			return nil
		})
		if err != nil {
			return err
		}
		if pending >= s.createQueueMax {
			return storeError(ErrCreateQueueMax,
				"pending creation queue is full", nil)
		}

		now, err := accountTimeNow()
		if err != nil {
			return err
		}
		return putRequest(ns, &RequestInfo{
			Kind:        RequestCreate,
			Address:     *addr,
			ViewKey:     key,
			StartHeight: start,
			Creation:    now,
		})
	})
}

// ImportRequest enqueues a request to rescan an existing account from an
// earlier height.
func (s *Storage) ImportRequest(addr *cryptonote.AccountAddress,
	height BlockHeight) error {

	return s.update(func(ns walletdb.ReadWriteBucket) error {
		_, _, err := fetchAddrIndex(ns, addr)
		if err != nil {
			return err
		}
		if existsRequest(ns, RequestImportScan, addr) {
			return storeError(ErrDuplicateRequest,
				"import already requested", nil)
		}
		now, err := accountTimeNow()
		if err != nil {
			return err
		}
		return putRequest(ns, &RequestInfo{
			Kind:        RequestImportScan,
			Address:     *addr,
			StartHeight: height,
			Creation:    now,
		})
	})
}

// AcceptRequests consumes pending requests of a kind for the given
// addresses, applying their effect.  Addresses with no pending request
// are ignored; the accepted subset is returned.
func (s *Storage) AcceptRequests(kind RequestKind,
	addrs []cryptonote.AccountAddress) ([]cryptonote.AccountAddress, error) {

	var accepted []cryptonote.AccountAddress
	err := s.update(func(ns walletdb.ReadWriteBucket) error {
		accepted = accepted[:0]
		for i := range addrs {
			addr := &addrs[i]
			b := ns.NestedReadBucket(bucketRequests)
			v := b.Get(keyRequest(kind, addr))
			if v == nil {
				continue
			}
			var req RequestInfo
			if err := readRequest(keyRequest(kind, addr), v, &req); err != nil {
				return err
			}

			switch kind {
			case RequestCreate:
				err := addAccount(ns, addr, req.ViewKey, req.StartHeight)
				if err != nil && !IsError(err, ErrAccountExists) {
					return err
				}
			case RequestImportScan:
				if err := rescanAccount(ns, addr, req.StartHeight); err != nil {
					return err
				}
			}

			if err := deleteRequest(ns, kind, addr); err != nil {
				return err
			}
			accepted = append(accepted, *addr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return accepted, nil
}

// RejectRequests drops pending requests of a kind for the given
// addresses.
func (s *Storage) RejectRequests(kind RequestKind,
	addrs []cryptonote.AccountAddress) error {

	return s.update(func(ns walletdb.ReadWriteBucket) error {
		for i := range addrs {
			if err := deleteRequest(ns, kind, &addrs[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func rescanAccount(ns walletdb.ReadWriteBucket,
	addr *cryptonote.AccountAddress, height BlockHeight) error {

	status, id, err := fetchAddrIndex(ns, addr)
	if err != nil {
		return err
	}
	acct, err := fetchAccount(ns, status, id)
	if err != nil {
		return err
	}

	if height < acct.StartHeight {
		acct.StartHeight = height
	}
	if height < acct.ScanHeight {
		if err := rollbackOutputs(ns, id, height); err != nil {
			return err
		}
		if err := deleteHeightIndex(ns, acct.ScanHeight, id); err != nil {
			return err
		}
		if err := putHeightIndex(ns, height, id); err != nil {
			return err
		}
		acct.ScanHeight = height
	}
	return putAccount(ns, status, &acct)
}

// Rescan lowers the scan height of the given accounts, deleting their
// outputs above the new height.  Spends already recorded for them are
// kept.
func (s *Storage) Rescan(height BlockHeight,
	addrs []cryptonote.AccountAddress) error {

	return s.update(func(ns walletdb.ReadWriteBucket) error {
		for i := range addrs {
			if err := rescanAccount(ns, &addrs[i], height); err != nil {
				return err
			}
		}
		return nil
	})
}

// ChangeStatus moves accounts between lifecycle states.  The changed
// subset is returned; unknown addresses are skipped.
func (s *Storage) ChangeStatus(status AccountStatus,
	addrs []cryptonote.AccountAddress) ([]cryptonote.AccountAddress, error) {

	var changed []cryptonote.AccountAddress
	err := s.update(func(ns walletdb.ReadWriteBucket) error {
		changed = changed[:0]
		for i := range addrs {
			addr := &addrs[i]
			old, id, err := fetchAddrIndex(ns, addr)
			if IsError(err, ErrNoSuchAccount) {
				continue
			}
			if err != nil {
				return err
			}
			if old == status {
				changed = append(changed, *addr)
				continue
			}

			acct, err := fetchAccount(ns, old, id)
			if err != nil {
				return err
			}
			if err := deleteAccount(ns, old, id); err != nil {
				return err
			}
			if err := putAccount(ns, status, &acct); err != nil {
				return err
			}
			if err := putAddrIndex(ns, addr, status, id); err != nil {
				return err
			}
			changed = append(changed, *addr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changed, nil
}

// UpdateAccessTime stamps the last credentialed use of an account.
func (s *Storage) UpdateAccessTime(addr *cryptonote.AccountAddress) error {
	return s.update(func(ns walletdb.ReadWriteBucket) error {
		status, id, err := fetchAddrIndex(ns, addr)
		if err != nil {
			return err
		}
		acct, err := fetchAccount(ns, status, id)
		if err != nil {
			return err
		}
		now, err := accountTimeNow()
		if err != nil {
			return err
		}
		acct.Access = now
		return putAccount(ns, status, &acct)
	})
}

// String implements fmt.Stringer for diagnostics.
func (s *Storage) String() string {
	return fmt.Sprintf("lwsdb.Storage(createQueueMax=%d)", s.createQueueMax)
}
