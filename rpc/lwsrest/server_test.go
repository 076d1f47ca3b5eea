// Copyright (c) 2024-2025 The xmrsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package lwsrest

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xmrsuite/lwsd/cryptonote"
	"github.com/xmrsuite/lwsd/cryptonote/mcrypto"
	"github.com/xmrsuite/lwsd/lwsdb"
	"github.com/xmrsuite/lwsd/netparams"
)

type testEnv struct {
	db     *lwsdb.Storage
	server *Server

	viewSec cryptonote.SecretKey
	addr    cryptonote.AccountAddress
	addr58  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := lwsdb.Open(
		filepath.Join(t.TempDir(), "lws.db"),
		&netparams.TestNetParams, 10,
	)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	env := &testEnv{db: db}

	var viewPub cryptonote.PublicKey
	env.viewSec, viewPub, err = mcrypto.GenerateKeys(nil)
	require.NoError(t, err)
	_, spendPub, err := mcrypto.GenerateKeys(nil)
	require.NoError(t, err)

	env.addr = cryptonote.AccountAddress{
		SpendPublic: spendPub,
		ViewPublic:  viewPub,
	}
	env.addr58 = cryptonote.EncodeAddress(
		netparams.TestNetParams.AddressTag, env.addr,
	)

	env.server = New(Config{
		DB:     db,
		Net:    &netparams.TestNetParams,
		Listen: "127.0.0.1:0",
	})
	return env
}

func (e *testEnv) post(t *testing.T, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(
		http.MethodPost, path, bytes.NewReader(raw),
	)
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func (e *testEnv) creds() credentials {
	return credentials{
		Address: e.addr58,
		ViewKey: hex.EncodeToString(e.viewSec[:]),
	}
}

// seedAccount registers the wallet and commits one received output at
// height 2 plus a spend against it.
func (e *testEnv) seedAccount(t *testing.T) {
	t.Helper()

	require.NoError(t, e.db.AddAccount(&e.addr, e.viewSec, 1))

	genesis := netparams.TestNetParams.GenesisHash
	h1, h2 := cryptonote.Hash{1}, cryptonote.Hash{2}
	require.NoError(t, e.db.SyncChain(
		0, []cryptonote.Hash{genesis, h1, h2},
	))

	_, err := e.db.Update(
		1, []cryptonote.Hash{h1, h2},
		[]lwsdb.AccountUpdate{{
			ID: 1, Address: e.addr, ScanHeight: 1,
			Outputs: []lwsdb.Output{{
				Height: 2,
				ID:     700,
				Amount: 1000000,
				Index:  0,
			}},
			Spends: []lwsdb.SpendRecord{{
				Output: 700,
				Spend: lwsdb.Spend{
					KeyImage: cryptonote.KeyImage{0xee},
					RingSize: 10,
				},
				Height: 2,
			}},
		}},
	)
	require.NoError(t, err)
}

func TestLoginRejectsWrongViewKey(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t)

	wrong, _, err := mcrypto.GenerateKeys(nil)
	require.NoError(t, err)

	w := env.post(t, "/login", loginRequest{
		credentials: credentials{
			Address: env.addr58,
			ViewKey: hex.EncodeToString(wrong[:]),
		},
	})
	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestLoginRejectsWrongNetwork(t *testing.T) {
	env := newTestEnv(t)

	mainnet := cryptonote.EncodeAddress(
		netparams.MainNetParams.AddressTag, env.addr,
	)
	w := env.post(t, "/login", loginRequest{
		credentials: credentials{
			Address: mainnet,
			ViewKey: hex.EncodeToString(env.viewSec[:]),
		},
	})
	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestLoginExistingAccount(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t)

	w := env.post(t, "/login", loginRequest{credentials: env.creds()})
	require.Equal(t, http.StatusOK, w.Code)

	var resp loginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.False(t, resp.NewAddress)
}

func TestLoginUnknownWithoutCreate(t *testing.T) {
	env := newTestEnv(t)
	w := env.post(t, "/login", loginRequest{credentials: env.creds()})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestLoginCreatesRequest(t *testing.T) {
	env := newTestEnv(t)

	w := env.post(t, "/login", loginRequest{
		credentials:   env.creds(),
		CreateAccount: true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp loginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.NewAddress)

	reader, err := env.db.StartRead()
	require.NoError(t, err)
	defer reader.FinishRead()
	requests, err := reader.GetRequests()
	require.NoError(t, err)
	require.Len(t, requests, 1)
	require.Equal(t, lwsdb.RequestCreate, requests[0].Kind)
	require.Equal(t, env.addr, requests[0].Address)

	// Logging in again with create still set reports the duplicate.
	w = env.post(t, "/login", loginRequest{
		credentials:   env.creds(),
		CreateAccount: true,
	})
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestGetAddressInfo(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t)

	w := env.post(t, "/get_address_info", env.creds())
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		TotalReceived    string `json:"total_received"`
		TotalSent        string `json:"total_sent"`
		ScannedHeight    uint64 `json:"scanned_block_height"`
		BlockchainHeight uint64 `json:"blockchain_height"`
		SpentOutputs     []struct {
			KeyImage string `json:"key_image"`
		} `json:"spent_outputs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "1000000", resp.TotalReceived)
	require.Equal(t, "1000000", resp.TotalSent)
	require.Equal(t, uint64(2), resp.ScannedHeight)
	require.Equal(t, uint64(2), resp.BlockchainHeight)
	require.Len(t, resp.SpentOutputs, 1)
}

func TestGetAddressTxs(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t)

	w := env.post(t, "/get_address_txs", env.creds())
	require.Equal(t, http.StatusOK, w.Code)

	var resp addressTxsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Transactions, 1)
	require.Equal(t, uint64(2), resp.Transactions[0].Height)
	require.Len(t, resp.Transactions[0].SpentOutputs, 1)
}

func TestGetUnspentOuts(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t)

	w := env.post(t, "/get_unspent_outs", unspentOutsRequest{
		credentials: env.creds(),
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Amount  string `json:"amount"`
		Outputs []struct {
			GlobalIndex    uint64   `json:"global_index"`
			SpendKeyImages []string `json:"spend_key_images"`
		} `json:"outputs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "1000000", resp.Amount)
	require.Len(t, resp.Outputs, 1)
	require.Equal(t, uint64(700), resp.Outputs[0].GlobalIndex)
	require.Len(t, resp.Outputs[0].SpendKeyImages, 1)
}

func TestHiddenAccountNotServed(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t)

	_, err := env.db.ChangeStatus(
		lwsdb.AccountHidden,
		[]cryptonote.AccountAddress{env.addr},
	)
	require.NoError(t, err)

	w := env.post(t, "/get_address_info", env.creds())
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddressQR(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/qr/"+env.addr58, nil)
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "image/png", w.Header().Get("Content-Type"))
	require.NotEmpty(t, w.Body.Bytes())

	req = httptest.NewRequest(http.MethodGet, "/qr/definitely-not-b58", nil)
	w = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
