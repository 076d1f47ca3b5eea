// Copyright (c) 2024-2025 The xmrsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package scanner

import (
	"sort"

	"github.com/xmrsuite/lwsd/cryptonote"
	"github.com/xmrsuite/lwsd/lwsdb"
)

// Account is a scan-time snapshot of one registered wallet.  Identity
// (id, address, view key) is fixed at construction; only scan progress
// and the uncommitted output and spend lists mutate, and exactly one
// worker owns the snapshot at a time.
type Account struct {
	id      lwsdb.AccountID
	address cryptonote.AccountAddress
	viewKey cryptonote.SecretKey

	height   lwsdb.BlockHeight
	received []lwsdb.OutputID // sorted global ids of all received outputs

	outputs []lwsdb.Output
	spends  []lwsdb.SpendRecord
}

// NewAccount snapshots a stored account together with the sorted ids of
// its received outputs.
func NewAccount(src *lwsdb.Account, received []lwsdb.OutputID) *Account {
	sort.Slice(received, func(i, j int) bool {
		return received[i] < received[j]
	})
	return &Account{
		id:       src.ID,
		address:  src.Address,
		viewKey:  src.ViewKey,
		height:   src.ScanHeight,
		received: received,
	}
}

// ID returns the database id of the account.
func (a *Account) ID() lwsdb.AccountID { return a.id }

// Address returns the public keys of the account.
func (a *Account) Address() cryptonote.AccountAddress { return a.address }

// SpendPublic returns the spend public key used for output matching.
func (a *Account) SpendPublic() cryptonote.PublicKey {
	return a.address.SpendPublic
}

// ViewKey returns the secret view key used for derivations.
func (a *Account) ViewKey() cryptonote.SecretKey { return a.viewKey }

// ScanHeight returns the height up to which this snapshot has scanned.
func (a *Account) ScanHeight() lwsdb.BlockHeight { return a.height }

// hasReceived reports whether the account owns the global output id.
func (a *Account) hasReceived(id lwsdb.OutputID) bool {
	i := sort.Search(len(a.received), func(i int) bool {
		return a.received[i] >= id
	})
	return i < len(a.received) && a.received[i] == id
}

// AddOut tracks a newly matched output.
func (a *Account) AddOut(out lwsdb.Output) {
	a.outputs = append(a.outputs, out)

	i := sort.Search(len(a.received), func(i int) bool {
		return a.received[i] >= out.ID
	})
	if i < len(a.received) && a.received[i] == out.ID {
		return
	}
	a.received = append(a.received, 0)
	copy(a.received[i+1:], a.received[i:])
	a.received[i] = out.ID
}

// CheckSpends records a spend for every ring member the account has
// received.  Offsets are the raw delta-encoded ring of a key input.
func (a *Account) CheckSpends(image cryptonote.KeyImage, offsets []uint64,
	height lwsdb.BlockHeight) {

	ringSize := len(offsets)
	if ringSize < 1 {
		ringSize = 1
	}
	mixin := uint32(ringSize - 1)

	var id uint64
	for _, offset := range offsets {
		id += offset
		if a.hasReceived(lwsdb.OutputID(id)) {
			a.spends = append(a.spends, lwsdb.SpendRecord{
				Output: lwsdb.OutputID(id),
				Spend:  lwsdb.Spend{KeyImage: image, RingSize: mixin},
				Height: height,
			})
		}
	}
}

// Update packages the uncommitted state for the store's conditional
// commit.
func (a *Account) Update() lwsdb.AccountUpdate {
	return lwsdb.AccountUpdate{
		ID:         a.id,
		Address:    a.address,
		ScanHeight: a.height,
		Outputs:    a.outputs,
		Spends:     a.spends,
	}
}

// Updated flushes the uncommitted lists after a successful commit and
// advances the snapshot to the new height.
func (a *Account) Updated(newHeight lwsdb.BlockHeight) {
	a.height = newHeight
	a.outputs = nil
	a.spends = nil
}
