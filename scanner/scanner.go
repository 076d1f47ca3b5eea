// Copyright (c) 2024-2025 The xmrsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package scanner implements the concurrent blockchain scanning engine:
// viewkey matching of transactions against account snapshots, streaming
// scan workers, the supervisor that partitions accounts across them, and
// the chain synchronizer that reconciles reorgs with the daemon.
package scanner

import (
	"fmt"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/xmrsuite/lwsd/cryptonote"
	"github.com/xmrsuite/lwsd/cryptonote/mcrypto"
	"github.com/xmrsuite/lwsd/lwsdb"
)

// maxTxVersion is the newest transaction format the scanner understands.
// Anything newer is a fatal condition: silently skipping it would hide
// received funds.
const maxTxVersion = 2

// lazyTx carries the per-transaction values that are only computed once
// an output actually matches, since hashing and payment id extraction
// are wasted work for the overwhelming majority of transactions.
type lazyTx struct {
	tx     *cryptonote.Transaction
	extra  cryptonote.ExtraFields
	hash   fn.Option[cryptonote.Hash]
	prefix fn.Option[cryptonote.Hash]

	pidLen fn.Option[uint8]
	pid    [32]byte
}

func (l *lazyTx) prefixHash() cryptonote.Hash {
	if l.prefix.IsNone() {
		l.prefix = fn.Some(cryptonote.PrefixHash(l.tx))
	}
	return l.prefix.UnwrapOr(cryptonote.Hash{})
}

// txHash resolves the transaction hash, computing it for miner
// transactions that arrive without one.  ok is false when the pruned
// representation cannot be hashed.
func (l *lazyTx) txHash() (cryptonote.Hash, bool) {
	if l.hash.IsNone() {
		hash, err := cryptonote.TxHash(l.tx)
		if err != nil {
			return cryptonote.Hash{}, false
		}
		l.hash = fn.Some(hash)
	}
	return l.hash.UnwrapOr(cryptonote.Hash{}), true
}

func (l *lazyTx) paymentID() (uint8, [32]byte) {
	if l.pidLen.IsNone() {
		length, id := l.extra.PaymentID()
		l.pidLen = fn.Some(length)
		l.pid = id
	}
	return l.pidLen.UnwrapOr(0), l.pid
}

// ScanTransaction matches one transaction against every account whose
// scan height is below the containing block, recording received outputs
// and possible spends on the snapshots.  txHash is None for miner
// transactions, whose hash is derived on demand.  outIDs lists the
// global output id of each of the transaction's outputs in order.
func ScanTransaction(users []*Account, height lwsdb.BlockHeight,
	timestamp uint64, txHash fn.Option[cryptonote.Hash],
	tx *cryptonote.Transaction, outIDs []uint64) error {

	if tx.Version > maxTxVersion {
		return fmt.Errorf("unsupported tx version %d", tx.Version)
	}

	// Partial extra parsing is allowed; a transaction with no tx pub
	// key cannot pay anyone we can detect.
	extra := cryptonote.ParseExtra(tx.Extra)
	if extra.PubKey == nil {
		return nil
	}

	lazy := lazyTx{tx: tx, extra: extra}
	txHash.WhenSome(func(h cryptonote.Hash) {
		lazy.hash = fn.Some(h)
	})

	for _, user := range users {
		if height <= user.ScanHeight() {
			continue // to next user
		}

		derived, err := mcrypto.GenerateKeyDerivation(
			*extra.PubKey, user.ViewKey(),
		)
		if err != nil {
			if err == mcrypto.ErrBadPoint {
				// A garbage tx pub key matches nobody.
				return nil
			}
			return fmt.Errorf("key derivation failed: %w", err)
		}

		ringSize := 0
		for _, in := range tx.Inputs {
			if in.ToKey != nil {
				ringSize = len(in.ToKey.KeyOffsets)
				user.CheckSpends(
					in.ToKey.KeyImage, in.ToKey.KeyOffsets,
					height,
				)
			}
		}

		tag := lwsdb.ExtraNone
		if ringSize == 0 {
			tag = lwsdb.ExtraCoinbase
		}

		for index, out := range tx.Outputs {
			if out.ToKey == nil {
				continue // to next output
			}

			derivedPub, err := mcrypto.DerivePublicKey(
				derived, uint32(index), user.SpendPublic(),
			)
			if err != nil || derivedPub != out.ToKey.Key {
				continue // to next output
			}

			hash, ok := lazy.txHash()
			if !ok {
				log.Warnf("Failed to compute transaction hash at "+
					"height %d, skipping tx", height)
				continue // to next output
			}

			amount := out.Amount
			var mask cryptonote.Key
			outTag := tag
			if amount == 0 {
				rct := tx.RingCT
				if rct == nil || index >= len(rct.EcdhInfo) ||
					index >= len(rct.OutPk) {

					log.Warnf("Output %d of tx %v has no "+
						"ringct data, skipping output",
						index, hash)
					continue // to next output
				}

				var ok bool
				amount, mask, ok = mcrypto.DecodeRingCTAmount(
					rct.OutPk[index], rct.EcdhInfo[index],
					derived, uint32(index),
				)
				if !ok {
					log.Warnf("Account %d failed to decrypt "+
						"amount for tx %v, skipping output",
						user.ID(), hash)
					continue // to next output
				}
				outTag |= lwsdb.ExtraRingCT
			}

			pidLen, pid := lazy.paymentID()

			if uint64(index) >= uint64(len(outIDs)) {
				return fmt.Errorf("daemon output indices too "+
					"short for tx %v", hash)
			}

			mixin := ringSize
			if mixin < 1 {
				mixin = 1
			}

			log.Debugf("Found match for account %d on tx %v for "+
				"%d at height %d", user.ID(), hash, amount, height)

			user.AddOut(lwsdb.Output{
				Height:       height,
				ID:           lwsdb.OutputID(outIDs[index]),
				Amount:       amount,
				Timestamp:    timestamp,
				UnlockTime:   tx.UnlockTime,
				RingSize:     uint32(mixin - 1),
				Index:        uint32(index),
				TxHash:       hash,
				TxPrefixHash: lazy.prefixHash(),
				TxPublic:     *extra.PubKey,
				RingCTMask:   mask,
				Extra:        lwsdb.PackExtra(outTag, pidLen),
				PaymentID:    pid,
			})
		} // for all tx outs
	} // for all users
	return nil
}
