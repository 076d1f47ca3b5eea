// Copyright (c) 2024-2025 The xmrsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netparams

import (
	"github.com/xmrsuite/lwsd/cryptonote"
)

// Params is used to group parameters for the various monero networks.
type Params struct {
	// Name is the canonical network name.
	Name string

	// AddressTag is the varint prefix of standard base58 addresses.
	AddressTag uint64

	// GenesisHash is the block id at height 0.  A fresh account store
	// is seeded with it, and the chain synchronizer treats it as the
	// probe list anchor of last resort.
	GenesisHash cryptonote.Hash

	// DaemonRPCPort is the default ZMQ RPC port of the full node.
	DaemonRPCPort string
}

func mustHash(s string) cryptonote.Hash {
	h, err := cryptonote.NewHashFromStr(s)
	if err != nil {
		panic(err)
	}
	return h
}

// MainNetParams contains parameters specific to the main network.
var MainNetParams = Params{
	Name:          "mainnet",
	AddressTag:    18,
	GenesisHash:   mustHash("418015bb9ae982a1975da7d79277c2705727a56894ba0fb246adaabb1f4632e3"),
	DaemonRPCPort: "18082",
}

// TestNetParams contains parameters specific to the test network.
var TestNetParams = Params{
	Name:          "testnet",
	AddressTag:    53,
	GenesisHash:   mustHash("48ca7cd3c8de5b6a4d53d2861fbdaedca141553559f9be9520068053cda8430b"),
	DaemonRPCPort: "28082",
}

// StageNetParams contains parameters specific to the staging network.
var StageNetParams = Params{
	Name:          "stagenet",
	AddressTag:    24,
	GenesisHash:   mustHash("76ee3cc98646292206cd3e86f74d88b4dcc1d937088645e9b0cbca84b7ce74eb"),
	DaemonRPCPort: "38082",
}
