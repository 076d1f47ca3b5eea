// Copyright (c) 2024-2025 The xmrsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package scanner

import (
	"testing"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"

	"github.com/xmrsuite/lwsd/cryptonote"
	"github.com/xmrsuite/lwsd/cryptonote/mcrypto"
	"github.com/xmrsuite/lwsd/lwsdb"
)

// testWallet owns a full keypair set so tests can act as the sender.
type testWallet struct {
	viewSec  cryptonote.SecretKey
	viewPub  cryptonote.PublicKey
	spendSec cryptonote.SecretKey
	spendPub cryptonote.PublicKey
}

func newTestWallet(t *testing.T) *testWallet {
	t.Helper()
	w := &testWallet{}
	var err error
	w.viewSec, w.viewPub, err = mcrypto.GenerateKeys(nil)
	require.NoError(t, err)
	w.spendSec, w.spendPub, err = mcrypto.GenerateKeys(nil)
	require.NoError(t, err)
	return w
}

func (w *testWallet) account(t *testing.T, id lwsdb.AccountID,
	scanHeight lwsdb.BlockHeight, received []lwsdb.OutputID) *Account {

	t.Helper()
	return NewAccount(&lwsdb.Account{
		ID: id,
		Address: cryptonote.AccountAddress{
			SpendPublic: w.spendPub,
			ViewPublic:  w.viewPub,
		},
		ViewKey:    w.viewSec,
		ScanHeight: scanHeight,
	}, received)
}

// payTx builds a transaction paying the wallet `amount` at output
// position 0, the way a sending wallet would.  If confidential is set
// the amount is RingCT encoded.
func payTx(t *testing.T, w *testWallet, confidential bool,
	amount uint64, nonce []byte) *cryptonote.Transaction {

	t.Helper()

	txSec, txPub, err := mcrypto.GenerateKeys(nil)
	require.NoError(t, err)

	derivation, err := mcrypto.GenerateKeyDerivation(w.viewPub, txSec)
	require.NoError(t, err)
	oneTime, err := mcrypto.DerivePublicKey(derivation, 0, w.spendPub)
	require.NoError(t, err)

	tx := &cryptonote.Transaction{
		Version: 1,
		Inputs: []cryptonote.TxInput{{
			ToKey: &cryptonote.KeyInput{
				KeyOffsets: []uint64{100, 1, 1},
				KeyImage:   cryptonote.KeyImage{0xaa},
			},
		}},
		Outputs: []cryptonote.TxOutput{{
			Amount: amount,
			ToKey:  &cryptonote.KeyOutput{Key: oneTime},
		}},
		Extra: cryptonote.BuildExtra(txPub, nonce),
	}

	if confidential {
		tx.Version = 2
		tx.Outputs[0].Amount = 0
		commitment, tuple := mcrypto.EncodeRingCTAmount(
			amount, derivation, 0,
		)
		tx.RingCT = &cryptonote.RctSignatures{
			Type:     cryptonote.RctTypeBulletproof2,
			EcdhInfo: []cryptonote.EcdhTuple{tuple},
			OutPk:    []cryptonote.Key{commitment},
		}
	}
	return tx
}

// TestScanSingleReceive is the single-receive scenario: a plaintext
// amount output derived for the wallet is recorded with the right
// metadata.
func TestScanSingleReceive(t *testing.T) {
	w := newTestWallet(t)
	user := w.account(t, 1, 50, nil)

	tx := payTx(t, w, false, 1000000, nil)
	txHash := cryptonote.Hash{0x11}

	err := ScanTransaction(
		[]*Account{user}, 60, 1650000000,
		fn.Some(txHash), tx, []uint64{9001},
	)
	require.NoError(t, err)

	update := user.Update()
	require.Len(t, update.Outputs, 1)
	require.Empty(t, update.Spends)

	out := update.Outputs[0]
	require.Equal(t, lwsdb.BlockHeight(60), out.Height)
	require.Equal(t, lwsdb.OutputID(9001), out.ID)
	require.Equal(t, uint64(1000000), out.Amount)
	require.Equal(t, uint32(0), out.Index)
	require.Equal(t, uint32(2), out.RingSize) // 3 offsets - 1
	require.Equal(t, txHash, out.TxHash)
	require.Equal(t, cryptonote.PrefixHash(tx), out.TxPrefixHash)

	tag, pidLen := lwsdb.UnpackExtra(out.Extra)
	require.Equal(t, lwsdb.ExtraNone, tag)
	require.Equal(t, uint8(0), pidLen)
}

func TestScanRingCTReceive(t *testing.T) {
	w := newTestWallet(t)
	user := w.account(t, 1, 10, nil)

	tx := payTx(t, w, true, 4444, nil)
	err := ScanTransaction(
		[]*Account{user}, 11, 0,
		fn.Some(cryptonote.Hash{0x22}), tx, []uint64{77},
	)
	require.NoError(t, err)

	update := user.Update()
	require.Len(t, update.Outputs, 1)

	out := update.Outputs[0]
	require.Equal(t, uint64(4444), out.Amount)
	require.NotEqual(t, cryptonote.Key{}, out.RingCTMask)

	tag, _ := lwsdb.UnpackExtra(out.Extra)
	require.Equal(t, lwsdb.ExtraRingCT, tag&lwsdb.ExtraRingCT)
}

// TestScanIgnoresForeignTx: a fresh sync over blocks paying someone
// else records nothing.
func TestScanIgnoresForeignTx(t *testing.T) {
	w := newTestWallet(t)
	other := newTestWallet(t)
	user := w.account(t, 1, 0, nil)

	for height := lwsdb.BlockHeight(1); height <= 100; height++ {
		tx := payTx(t, other, false, 50, nil)
		err := ScanTransaction(
			[]*Account{user}, height, 0,
			fn.None[cryptonote.Hash](), tx,
			[]uint64{uint64(height)},
		)
		require.NoError(t, err)
	}
	require.Empty(t, user.Update().Outputs)
}

// TestScanSpendMatching: a key input whose decoded ring offsets include
// a previously received output id records a spend keyed by that id.
func TestScanSpendMatching(t *testing.T) {
	w := newTestWallet(t)
	user := w.account(t, 1, 60, []lwsdb.OutputID{9001})

	other := newTestWallet(t)
	tx := payTx(t, other, false, 1, nil)
	tx.Inputs[0].ToKey.KeyOffsets = []uint64{9000, 1, 50} // 9000, 9001, 9051
	tx.Inputs[0].ToKey.KeyImage = cryptonote.KeyImage{0xdd}

	err := ScanTransaction(
		[]*Account{user}, 70, 0,
		fn.Some(cryptonote.Hash{0x33}), tx, []uint64{123},
	)
	require.NoError(t, err)

	update := user.Update()
	require.Empty(t, update.Outputs)
	require.Len(t, update.Spends, 1)

	spend := update.Spends[0]
	require.Equal(t, lwsdb.OutputID(9001), spend.Output)
	require.Equal(t, cryptonote.KeyImage{0xdd}, spend.Spend.KeyImage)
	require.Equal(t, uint32(2), spend.Spend.RingSize)
	require.Equal(t, lwsdb.BlockHeight(70), spend.Height)
}

// TestScanCoinbase: a transaction with no key inputs flags its outputs
// coinbase, and a miner tx hash is computed on demand.
func TestScanCoinbase(t *testing.T) {
	w := newTestWallet(t)
	user := w.account(t, 1, 0, nil)

	tx := payTx(t, w, false, 600000, nil)
	tx.Inputs = []cryptonote.TxInput{{
		Gen: &cryptonote.GenInput{Height: 5},
	}}

	err := ScanTransaction(
		[]*Account{user}, 5, 0,
		fn.None[cryptonote.Hash](), tx, []uint64{1},
	)
	require.NoError(t, err)

	update := user.Update()
	require.Len(t, update.Outputs, 1)

	out := update.Outputs[0]
	tag, _ := lwsdb.UnpackExtra(out.Extra)
	require.Equal(t, lwsdb.ExtraCoinbase, tag)
	require.Equal(t, uint32(0), out.RingSize)

	wantHash, err := cryptonote.TxHash(tx)
	require.NoError(t, err)
	require.Equal(t, wantHash, out.TxHash)
}

func TestScanPaymentID(t *testing.T) {
	w := newTestWallet(t)
	user := w.account(t, 1, 0, nil)

	nonce := make([]byte, 1+cryptonote.ShortHashSize)
	nonce[0] = 0x01
	copy(nonce[1:], []byte{1, 2, 3, 4, 5, 6, 7, 8})

	tx := payTx(t, w, false, 10, nonce)
	err := ScanTransaction(
		[]*Account{user}, 1, 0,
		fn.Some(cryptonote.Hash{0x44}), tx, []uint64{5},
	)
	require.NoError(t, err)

	update := user.Update()
	require.Len(t, update.Outputs, 1)

	_, pidLen := lwsdb.UnpackExtra(update.Outputs[0].Extra)
	require.Equal(t, uint8(cryptonote.ShortHashSize), pidLen)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8},
		update.Outputs[0].PaymentID[:8])
}

// TestScanHeightGate: transactions at or below the account's scan
// height are skipped entirely.
func TestScanHeightGate(t *testing.T) {
	w := newTestWallet(t)
	user := w.account(t, 1, 60, nil)

	tx := payTx(t, w, false, 1, nil)
	err := ScanTransaction(
		[]*Account{user}, 60, 0,
		fn.Some(cryptonote.Hash{0x55}), tx, []uint64{1},
	)
	require.NoError(t, err)
	require.Empty(t, user.Update().Outputs)
}

func TestScanRejectsFutureVersion(t *testing.T) {
	w := newTestWallet(t)
	user := w.account(t, 1, 0, nil)

	tx := payTx(t, w, false, 1, nil)
	tx.Version = 3
	err := ScanTransaction(
		[]*Account{user}, 1, 0,
		fn.Some(cryptonote.Hash{0x66}), tx, []uint64{1},
	)
	require.Error(t, err)
}

func TestScanNoPubKey(t *testing.T) {
	w := newTestWallet(t)
	user := w.account(t, 1, 0, nil)

	tx := payTx(t, w, false, 1, nil)
	tx.Extra = nil
	err := ScanTransaction(
		[]*Account{user}, 1, 0,
		fn.Some(cryptonote.Hash{0x77}), tx, []uint64{1},
	)
	require.NoError(t, err)
	require.Empty(t, user.Update().Outputs)
}

// TestPartition checks the partition cover property: the union of the
// partitions is the account set, partitions are disjoint, and accounts
// are ordered by scan height.
func TestPartition(t *testing.T) {
	w := newTestWallet(t)

	var users []*Account
	for i := 0; i < 10; i++ {
		users = append(users, w.account(
			t, lwsdb.AccountID(i+1),
			lwsdb.BlockHeight(1000-i*100), nil,
		))
	}

	for _, workers := range []int{1, 3, 4, 10, 16} {
		batches := partition(append([]*Account(nil), users...), workers)

		seen := make(map[lwsdb.AccountID]int)
		total := 0
		for _, batch := range batches {
			total += len(batch)
			for _, u := range batch {
				seen[u.ID()]++
			}
		}
		require.Equal(t, len(users), total, "workers=%d", workers)
		require.Len(t, seen, len(users), "workers=%d", workers)
		for id, count := range seen {
			require.Equal(t, 1, count, "workers=%d id=%d", workers, id)
		}
		require.LessOrEqual(t, len(batches), workers)

		// Earliest heights first so stragglers cluster.
		var prev lwsdb.BlockHeight
		for _, batch := range batches {
			for _, u := range batch {
				require.GreaterOrEqual(t, u.ScanHeight(), prev)
				prev = u.ScanHeight()
			}
		}
	}
}
