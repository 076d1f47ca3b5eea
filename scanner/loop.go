// Copyright (c) 2024-2025 The xmrsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package scanner

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/xmrsuite/lwsd/chain"
	"github.com/xmrsuite/lwsd/cryptonote"
	"github.com/xmrsuite/lwsd/lwsdb"
)

const (
	// blockRPCTimeout bounds each get_blocks_fast round trip.  The
	// request is idempotent, so a timeout just resends it.
	blockRPCTimeout = 2 * time.Minute

	// blockPollInterval is the idle wait once the worker has reached
	// the chain tip.
	blockPollInterval = 20 * time.Second
)

// workerBatch is the state one scan worker owns: its transport dialer,
// its slice of account snapshots ordered by scan height, and the shared
// restart signalling of its supervisor generation.
type workerBatch struct {
	dial  func() (NodeClient, error)
	db    *lwsdb.Storage
	users []*Account

	// update is the generation-wide restart flag.  Any worker that
	// exits sets it; the supervisor also sets it before joining.
	update *atomic.Bool

	// tip optionally delivers new-tip announcements that cut the idle
	// poll short.
	tip <-chan chain.TipNotification

	// quit is closed by the supervisor when the generation ends.
	quit chan struct{}

	wg *sync.WaitGroup
}

func (b *workerBatch) stopping() bool {
	if b.update.Load() {
		return true
	}
	select {
	case <-b.quit:
		return true
	default:
		return false
	}
}

// scanLoop is the worker state machine: request blocks, pipeline the
// next request, scan, commit, repeat.  Any exit flips the generation's
// update flag so the supervisor re-partitions.
//
// NOTE: This must be run as a goroutine.
func (b *workerBatch) scanLoop() {
	defer b.wg.Done()
	defer b.update.Store(true)
	defer func() {
		// A panicking worker must not take the process down; the
		// supervisor treats it like any other fatal worker error.
		if r := recover(); r != nil {
			log.Criticalf("Scan worker panic: %v", r)
		}
	}()

	client, err := b.dial()
	if err != nil {
		log.Errorf("Unable to connect scan worker to daemon: %v", err)
		return
	}
	defer client.Close()

	if len(b.users) == 0 {
		return
	}

	// The daemon reserves start_height == 0 for id-based requests,
	// which technically skips the genesis block.
	reqStart := uint64(b.users[0].ScanHeight())
	if reqStart < 1 {
		reqStart = 1
	}
	if err := b.send(client, reqStart); err != nil {
		return
	}

	for !b.stopping() {
		resp, err := client.ReceiveBlocks(blockRPCTimeout)
		switch {
		case err == nil:
		case errors.Is(err, chain.ErrAborted):
			return
		case errors.Is(err, chain.ErrTimeout):
			log.Warnf("Block retrieval timeout, retrying")
			if b.send(client, reqStart) != nil {
				return
			}
			continue
		default:
			log.Errorf("Failed to retrieve blocks from daemon: %v", err)
			return
		}

		if len(resp.Blocks) == 0 {
			log.Errorf("Daemon unexpectedly returned zero blocks")
			return
		}
		if resp.StartHeight != reqStart {
			log.Warnf("Daemon sent wrong blocks, resetting state")
			return
		}

		// Retrieve the next run in the background.  The last block
		// overlaps the next request, carrying the continuity check
		// forward.
		reqStart = resp.StartHeight + uint64(len(resp.Blocks)) - 1
		if err := b.send(client, reqStart); err != nil {
			return
		}

		if len(resp.Blocks) <= 1 {
			// Caught up with the tip; no forward progress is
			// possible right now, so poll again shortly.
			if b.idle(client) {
				return
			}
			continue
		}

		if err := b.processAndCommit(resp); err != nil {
			if !errors.Is(err, errRestart) {
				log.Errorf("Scan worker failed: %v", err)
			}
			return
		}
	}
}

// errRestart marks conditions already logged at lower severity that end
// the worker so the supervisor can rebuild its partitions.
var errRestart = errors.New("worker restart")

func (b *workerBatch) send(client NodeClient, start uint64) error {
	err := client.SendGetBlocks(start)
	if err != nil && !errors.Is(err, chain.ErrAborted) {
		log.Errorf("Unable to send block request: %v", err)
	}
	return err
}

// idle waits out the block poll interval, returning true if the worker
// should exit.  A tip announcement ends the wait early.
func (b *workerBatch) idle(client NodeClient) bool {
	if b.tip == nil {
		return client.Wait(blockPollInterval) != nil
	}
	select {
	case <-b.tip:
		return false
	case <-time.After(blockPollInterval):
		return false
	case <-b.quit:
		return true
	}
}

// processAndCommit scans every block of the response past the overlap
// and commits the results through the store's conditional update.
func (b *workerBatch) processAndCommit(resp *chain.GetBlocksResponse) error {
	if len(resp.Blocks) != len(resp.OutputIndices) {
		return fmt.Errorf("bad daemon response: %d blocks but %d "+
			"index vectors", len(resp.Blocks), len(resp.OutputIndices))
	}

	var chainHashes []cryptonote.Hash
	blocks := resp.Blocks
	indices := resp.OutputIndices
	height := resp.StartHeight
	if resp.StartHeight != 1 {
		// Skip the overlap block; it was scanned by the previous
		// round and only anchors the continuity check.
		firstHash, err := blocks[0].Block.BlockHash()
		if err != nil {
			return fmt.Errorf("bad daemon response: unhashable "+
				"block: %w", err)
		}
		chainHashes = append(chainHashes, firstHash)
		blocks = blocks[1:]
		indices = indices[1:]
	} else {
		// The daemon cannot serve genesis itself, so the first block
		// of a from-genesis request is new rather than overlap.
		height = 0
	}

	for i := range blocks {
		height++
		block := &blocks[i].Block
		txes := blocks[i].Transactions

		if len(block.TxHashes) != len(txes) {
			return fmt.Errorf("bad daemon response: %d tx hashes "+
				"but %d txes", len(block.TxHashes), len(txes))
		}
		blockIndices := indices[i]
		if len(blockIndices) != 1+len(txes) {
			return fmt.Errorf("bad daemon response: missing output " +
				"index vectors")
		}

		err := ScanTransaction(
			b.users, lwsdb.BlockHeight(height), block.Timestamp,
			fn.None[cryptonote.Hash](), &block.MinerTx,
			blockIndices[0],
		)
		if err != nil {
			return err
		}

		for j := range txes {
			err := ScanTransaction(
				b.users, lwsdb.BlockHeight(height),
				block.Timestamp,
				fn.Some(block.TxHashes[j]), &txes[j],
				blockIndices[j+1],
			)
			if err != nil {
				return err
			}
		}

		hash, err := block.BlockHash()
		if err != nil {
			return fmt.Errorf("bad daemon response: unhashable "+
				"block: %w", err)
		}
		chainHashes = append(chainHashes, hash)
	}

	updates := make([]lwsdb.AccountUpdate, len(b.users))
	for i, user := range b.users {
		updates[i] = user.Update()
	}

	// chainHashes[0] is always the block at the response's start
	// height, which anchors the store's continuity check.
	updated, err := b.db.Update(
		lwsdb.BlockHeight(resp.StartHeight), chainHashes, updates,
	)
	if err != nil {
		if lwsdb.IsError(err, lwsdb.ErrBlockchainReorg) {
			log.Infof("Blockchain reorg detected, resetting state")
			return errRestart
		}
		return fmt.Errorf("failed to update accounts on disk: %w", err)
	}

	log.Infof("Processed %d block(s) against %d account(s)",
		len(blocks), len(b.users))

	if updated != len(b.users) {
		log.Warnf("Only updated %d account(s) out of %d, resetting",
			updated, len(b.users))
		return errRestart
	}

	for _, user := range b.users {
		user.Updated(lwsdb.BlockHeight(height))
	}
	return nil
}
