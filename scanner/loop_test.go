// Copyright (c) 2024-2025 The xmrsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package scanner

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xmrsuite/lwsd/chain"
	"github.com/xmrsuite/lwsd/cryptonote"
	"github.com/xmrsuite/lwsd/lwsdb"
	"github.com/xmrsuite/lwsd/netparams"
)

// blockNode scripts a worker's view of the daemon: canned block
// responses keyed by requested start height, and an abort channel that
// wakes blocked receives the way the abort topic does.
type blockNode struct {
	mtx       sync.Mutex
	responses map[uint64]*chain.GetBlocksResponse
	requested []uint64

	abort  chan struct{}
	closed bool
}

func newBlockNode() *blockNode {
	return &blockNode{
		responses: make(map[uint64]*chain.GetBlocksResponse),
		abort:     make(chan struct{}),
	}
}

func (n *blockNode) SendGetBlocks(start uint64) error {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	n.requested = append(n.requested, start)
	return nil
}

func (n *blockNode) ReceiveBlocks(timeout time.Duration) (*chain.GetBlocksResponse, error) {
	n.mtx.Lock()
	last := n.requested[len(n.requested)-1]
	resp := n.responses[last]
	n.mtx.Unlock()

	if resp != nil {
		return resp, nil
	}

	// Nothing scripted: behave like a quiet daemon until abort.
	select {
	case <-n.abort:
		return nil, chain.ErrAborted
	case <-time.After(timeout):
		return nil, chain.ErrTimeout
	}
}

func (n *blockNode) SendGetHashes([]cryptonote.Hash) error { return nil }

func (n *blockNode) ReceiveHashes(time.Duration) (*chain.GetHashesResponse, error) {
	return nil, chain.ErrTimeout
}

func (n *blockNode) Wait(timeout time.Duration) error {
	select {
	case <-n.abort:
		return chain.ErrAborted
	case <-time.After(timeout):
		return nil
	}
}

func (n *blockNode) Close() error {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	n.closed = true
	return nil
}

// minerBlock builds a block whose miner transaction pays nobody we
// track.
func minerBlock(t *testing.T, height uint64, prev cryptonote.Hash) cryptonote.Block {
	t.Helper()
	w := newTestWallet(t)

	tx := payTx(t, w, false, 50, nil)
	tx.Inputs = []cryptonote.TxInput{{
		Gen: &cryptonote.GenInput{Height: height},
	}}

	return cryptonote.Block{
		MajorVersion: 14,
		Timestamp:    1600000000 + height,
		PrevID:       prev,
		MinerTx:      *tx,
	}
}

// buildRun assembles a contiguous run of miner-only blocks starting at
// a height, returning the response and the block hashes by height.
func buildRun(t *testing.T, start, count uint64) (*chain.GetBlocksResponse, []cryptonote.Hash) {
	t.Helper()

	resp := &chain.GetBlocksResponse{StartHeight: start}
	hashes := make([]cryptonote.Hash, 0, count)

	var prev cryptonote.Hash
	for i := uint64(0); i < count; i++ {
		block := minerBlock(t, start+i, prev)
		hash, err := block.BlockHash()
		require.NoError(t, err)
		hashes = append(hashes, hash)
		prev = hash

		resp.Blocks = append(resp.Blocks, chain.BlockEntry{Block: block})
		resp.OutputIndices = append(resp.OutputIndices,
			[][]uint64{{start + i}})
	}
	return resp, hashes
}

func startBatch(t *testing.T, db *lwsdb.Storage, node *blockNode,
	users []*Account) (*workerBatch, *sync.WaitGroup) {

	t.Helper()
	var (
		update atomic.Bool
		wg     sync.WaitGroup
	)
	batch := &workerBatch{
		dial:   func() (NodeClient, error) { return node, nil },
		db:     db,
		users:  users,
		update: &update,
		quit:   make(chan struct{}),
		wg:     &wg,
	}
	wg.Add(1)
	go batch.scanLoop()
	return batch, &wg
}

func waitDone(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("worker did not exit in time")
	}
}

// TestWorkerAbortDuringReceive: firing the abort while the worker is
// blocked in receive unwinds it promptly without committing anything.
func TestWorkerAbortDuringReceive(t *testing.T) {
	db := openTestStorage(t)
	node := newBlockNode()

	addr := cryptonote.AccountAddress{}
	addr.SpendPublic[0] = 7
	require.NoError(t, db.AddAccount(&addr, cryptonote.SecretKey{7}, 5))

	reader, err := db.StartRead()
	require.NoError(t, err)
	accounts, err := reader.GetAccounts(lwsdb.AccountActive)
	require.NoError(t, err)
	reader.FinishRead()
	users := []*Account{NewAccount(&accounts[0], nil)}

	batch, wg := startBatch(t, db, node, users)

	// Give the worker a moment to block in receive, then abort.
	time.Sleep(100 * time.Millisecond)
	close(node.abort)
	waitDone(t, wg)

	require.True(t, batch.update.Load())

	reader, err = db.StartRead()
	require.NoError(t, err)
	defer reader.FinishRead()
	_, acct, err := reader.GetAccount(&addr)
	require.NoError(t, err)
	require.Equal(t, lwsdb.BlockHeight(5), acct.ScanHeight)
}

// TestWorkerScansAndCommits drives a worker through one full round:
// request, scan, commit, pipelined next request, idle.
func TestWorkerScansAndCommits(t *testing.T) {
	db := openTestStorage(t)
	node := newBlockNode()

	// A run of 4 blocks from height 1; the store tail must hold the
	// overlap anchor, so sync it first.
	resp, hashes := buildRun(t, 1, 4)
	genesis := netparams.TestNetParams.GenesisHash
	require.NoError(t, db.SyncChain(
		0, []cryptonote.Hash{genesis, hashes[0]},
	))
	node.responses[1] = resp

	addr := cryptonote.AccountAddress{}
	addr.SpendPublic[0] = 9
	require.NoError(t, db.AddAccount(&addr, cryptonote.SecretKey{9}, 1))

	reader, err := db.StartRead()
	require.NoError(t, err)
	accounts, err := reader.GetAccounts(lwsdb.AccountActive)
	require.NoError(t, err)
	reader.FinishRead()
	users := []*Account{NewAccount(&accounts[0], nil)}

	_, wg := startBatch(t, db, node, users)

	// The worker commits the run, pipelines a request from height 4,
	// finds nothing scripted there, and parks until abort.
	require.Eventually(t, func() bool {
		reader, err := db.StartRead()
		if err != nil {
			return false
		}
		defer reader.FinishRead()
		_, acct, err := reader.GetAccount(&addr)
		return err == nil && acct.ScanHeight == 4
	}, 10*time.Second, 50*time.Millisecond)

	close(node.abort)
	waitDone(t, wg)

	node.mtx.Lock()
	defer node.mtx.Unlock()
	require.GreaterOrEqual(t, len(node.requested), 2)
	require.Equal(t, uint64(1), node.requested[0])
	require.Equal(t, uint64(4), node.requested[1])
	require.True(t, node.closed)
}

// TestWorkerWrongStartHeight: a response for a different height than
// requested ends the worker for a supervisor restart.
func TestWorkerWrongStartHeight(t *testing.T) {
	db := openTestStorage(t)
	node := newBlockNode()

	resp, _ := buildRun(t, 3, 2)
	node.responses[1] = resp // wrong: worker asks from 1

	addr := cryptonote.AccountAddress{}
	addr.SpendPublic[0] = 3
	require.NoError(t, db.AddAccount(&addr, cryptonote.SecretKey{3}, 1))

	reader, err := db.StartRead()
	require.NoError(t, err)
	accounts, err := reader.GetAccounts(lwsdb.AccountActive)
	require.NoError(t, err)
	reader.FinishRead()
	users := []*Account{NewAccount(&accounts[0], nil)}

	batch, wg := startBatch(t, db, node, users)
	waitDone(t, wg)
	require.True(t, batch.update.Load())
}
