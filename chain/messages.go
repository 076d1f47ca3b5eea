// Copyright (c) 2024-2025 The xmrsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"encoding/json"
	"fmt"

	"github.com/xmrsuite/lwsd/cryptonote"
)

// RPC method names understood by the daemon's message socket.
const (
	methodGetBlocksFast = "get_blocks_fast"
	methodGetHashesFast = "get_hashes_fast"
)

// envelope is the JSON framing on the daemon's message socket.
type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("daemon rpc error %d: %s", e.Code, e.Message)
}

// makeMessage frames a request for the wire.
func makeMessage(method string, params interface{}) ([]byte, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{
		JSONRPC: "2.0",
		Method:  method,
		Params:  raw,
	})
}

// unpackMessage parses a response, unwrapping the result into dst.
func unpackMessage(msg []byte, dst interface{}) error {
	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		return fmt.Errorf("malformed daemon response: %w", err)
	}
	if env.Error != nil {
		return env.Error
	}
	if err := json.Unmarshal(env.Result, dst); err != nil {
		return fmt.Errorf("malformed daemon result: %w", err)
	}
	return nil
}

// GetBlocksRequest asks the daemon for a run of blocks starting at a
// height.  Height 0 is reserved by the daemon for id-based requests, so
// callers always ask from at least height 1.
type GetBlocksRequest struct {
	StartHeight uint64 `json:"start_height"`
	Prune       bool   `json:"prune"`
}

// BlockEntry pairs a block with its non-miner transactions, ordered by
// the block's tx hash list.
type BlockEntry struct {
	Block        cryptonote.Block         `json:"block"`
	Transactions []cryptonote.Transaction `json:"transactions"`
}

// GetBlocksResponse is the daemon's reply to GetBlocksRequest.
// OutputIndices carries one vector per block, each holding one
// sub-vector per transaction (miner first) listing the global output
// ids of that transaction's outputs in order.
type GetBlocksResponse struct {
	StartHeight   uint64       `json:"start_height"`
	CurrentHeight uint64       `json:"current_height"`
	Blocks        []BlockEntry `json:"blocks"`
	OutputIndices [][][]uint64 `json:"output_indices"`
}

// GetHashesRequest presents a probe list of known hashes, newest first,
// for the daemon to locate a common ancestor.
type GetHashesRequest struct {
	StartHeight uint64            `json:"start_height"`
	KnownHashes []cryptonote.Hash `json:"known_hashes"`
}

// GetHashesResponse continues the chain forward from the matched
// ancestor, whose height is StartHeight.
type GetHashesResponse struct {
	StartHeight   uint64            `json:"start_height"`
	CurrentHeight uint64            `json:"current_height"`
	Hashes        []cryptonote.Hash `json:"hashes"`
}
