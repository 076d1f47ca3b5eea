// Copyright (c) 2024-2025 The xmrsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package scanner

import (
	"errors"
	"time"

	"github.com/xmrsuite/lwsd/chain"
	"github.com/xmrsuite/lwsd/cryptonote"
	"github.com/xmrsuite/lwsd/lwsdb"
)

const (
	// syncRPCTimeout bounds each get_hashes_fast round trip.
	syncRPCTimeout = 30 * time.Second

	// syncCarryHashes is how many hashes of the previous reply seed
	// the next probe list.
	syncCarryHashes = 10
)

// ErrBadBlockchain is returned when the store yields an empty probe
// list.  A daemon chain that shares no ancestor with the stored tail
// (the server is pointed at the wrong network) is reported by the
// store's SyncChain as an lwsdb ErrBadBlockchain error instead.
var ErrBadBlockchain = errors.New("blockchain is invalid or wrong network")

// NodeClient is the transport a worker or the synchronizer drives.  It
// is satisfied by *chain.Client; tests substitute stubs.
type NodeClient interface {
	// SendGetBlocks issues a pipelined block request from a height.
	SendGetBlocks(start uint64) error

	// ReceiveBlocks collects the reply to the last SendGetBlocks.
	ReceiveBlocks(timeout time.Duration) (*chain.GetBlocksResponse, error)

	// SendGetHashes issues an ancestor probe.
	SendGetHashes(known []cryptonote.Hash) error

	// ReceiveHashes collects the reply to the last SendGetHashes.
	ReceiveHashes(timeout time.Duration) (*chain.GetHashesResponse, error)

	// Wait sleeps until the abort topic fires or the timeout elapses.
	Wait(timeout time.Duration) error

	// Close releases the transport.
	Close() error
}

// SyncChain aligns the store's chain tail with the daemon: it presents a
// probe list of known hashes, applies the returned continuation with
// Storage.SyncChain, and repeats until the daemon confirms the tip.
// Convergence takes O(log tail) round trips even under deep reorgs.
func SyncChain(client NodeClient, db *lwsdb.Storage) error {
	log.Infof("Starting blockchain sync with daemon")

	reader, err := db.StartRead()
	if err != nil {
		return err
	}
	probe, err := reader.GetChainSync()
	reader.FinishRead()
	if err != nil {
		return err
	}

	for {
		if len(probe) == 0 {
			return ErrBadBlockchain
		}

		if err := client.SendGetHashes(probe); err != nil {
			return err
		}
		resp, err := client.ReceiveHashes(syncRPCTimeout)
		if err != nil {
			return err
		}

		// A short reply, or one ending at our newest probe hash,
		// means the tail already matches the daemon.
		if len(resp.Hashes) <= 1 ||
			resp.Hashes[len(resp.Hashes)-1] == probe[0] {

			return nil
		}

		err = db.SyncChain(
			lwsdb.BlockHeight(resp.StartHeight), resp.Hashes,
		)
		if err != nil {
			return err
		}

		// Rebuild the probe: the newest returned hashes, newest
		// first, anchored by the oldest hash of the previous probe.
		anchor := probe[len(probe)-1]
		probe = probe[:0]
		for i := 0; i < syncCarryHashes && i < len(resp.Hashes); i++ {
			probe = append(probe, resp.Hashes[len(resp.Hashes)-1-i])
		}
		probe = append(probe, anchor)
	}
}
