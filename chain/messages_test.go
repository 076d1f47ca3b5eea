// Copyright (c) 2024-2025 The xmrsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xmrsuite/lwsd/cryptonote"
)

func TestMakeMessageFraming(t *testing.T) {
	msg, err := makeMessage(methodGetBlocksFast, &GetBlocksRequest{
		StartHeight: 123,
	})
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal(msg, &env))
	require.Equal(t, "2.0", env.JSONRPC)
	require.Equal(t, methodGetBlocksFast, env.Method)

	var req GetBlocksRequest
	require.NoError(t, json.Unmarshal(env.Params, &req))
	require.Equal(t, uint64(123), req.StartHeight)
	require.False(t, req.Prune)
}

func TestUnpackMessageResult(t *testing.T) {
	wire := []byte(`{
		"jsonrpc": "2.0",
		"id": 0,
		"result": {
			"start_height": 50,
			"current_height": 60,
			"hashes": [
				"0101010101010101010101010101010101010101010101010101010101010101",
				"0202020202020202020202020202020202020202020202020202020202020202"
			]
		}
	}`)

	var resp GetHashesResponse
	require.NoError(t, unpackMessage(wire, &resp))
	require.Equal(t, uint64(50), resp.StartHeight)
	require.Len(t, resp.Hashes, 2)

	want, err := cryptonote.NewHashFromStr(
		"0202020202020202020202020202020202020202020202020202020202020202")
	require.NoError(t, err)
	require.Equal(t, want, resp.Hashes[1])
}

func TestUnpackMessageError(t *testing.T) {
	wire := []byte(`{"jsonrpc":"2.0","id":0,` +
		`"error":{"code":-32601,"message":"method not found"}}`)

	var resp GetHashesResponse
	err := unpackMessage(wire, &resp)
	require.Error(t, err)
	require.Contains(t, err.Error(), "method not found")
}

func TestUnpackMessageGarbage(t *testing.T) {
	var resp GetBlocksResponse
	require.Error(t, unpackMessage([]byte("not json"), &resp))
}

// TestBlocksResponseRoundTrip exercises the nested block/tx wire
// encoding end to end.
func TestBlocksResponseRoundTrip(t *testing.T) {
	var pub cryptonote.PublicKey
	pub[5] = 0x55

	src := GetBlocksResponse{
		StartHeight:   10,
		CurrentHeight: 12,
		Blocks: []BlockEntry{{
			Block: cryptonote.Block{
				MajorVersion: 14,
				Timestamp:    1650000000,
				MinerTx: cryptonote.Transaction{
					Version: 1,
					Inputs: []cryptonote.TxInput{{
						Gen: &cryptonote.GenInput{Height: 10},
					}},
					Outputs: []cryptonote.TxOutput{{
						Amount: 50,
						ToKey:  &cryptonote.KeyOutput{},
					}},
					Extra: cryptonote.BuildExtra(pub, nil),
				},
			},
		}},
		OutputIndices: [][][]uint64{{{42}}},
	}

	raw, err := json.Marshal(src)
	require.NoError(t, err)

	var got GetBlocksResponse
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Equal(t, src, got)
}
