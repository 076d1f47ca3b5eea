// Copyright (c) 2024-2025 The xmrsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package lwsrest exposes the light wallet REST API: balance and
// history reads plus login with optional account creation.  Every
// credentialed call verifies the presented view key against the
// account's view public key before touching any state.
package lwsrest

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/xmrsuite/lwsd/cryptonote"
	"github.com/xmrsuite/lwsd/cryptonote/mcrypto"
	"github.com/xmrsuite/lwsd/lwsdb"
	"github.com/xmrsuite/lwsd/netparams"
	"github.com/xmrsuite/lwsd/rates"
)

// Config supplies the server's collaborators.
type Config struct {
	// DB is the shared account store.
	DB *lwsdb.Storage

	// Net selects the address tag accepted from clients.
	Net *netparams.Params

	// Rates optionally supplies fiat conversions for balance
	// responses.  May be nil.
	Rates *rates.Source

	// Listen is the bind address, e.g. "127.0.0.1:8080".
	Listen string
}

// Server is the HTTP front end.
type Server struct {
	cfg    Config
	http   *http.Server
	router *httprouter.Router
}

// New builds the server and its routes.
func New(cfg Config) *Server {
	s := &Server{cfg: cfg}

	router := httprouter.New()
	router.POST("/login", s.login)
	router.POST("/get_address_info", s.getAddressInfo)
	router.POST("/get_address_txs", s.getAddressTxs)
	router.POST("/get_unspent_outs", s.getUnspentOuts)
	router.GET("/qr/:address", s.addressQR)
	s.router = router

	s.http = &http.Server{
		Addr:         cfg.Listen,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// ListenAndServe blocks serving requests until Shutdown.
func (s *Server) ListenAndServe() error {
	log.Infof("REST server listening on %s", s.cfg.Listen)
	listener, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return err
	}
	err = s.http.Serve(listener)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown closes the listener and all open connections at once;
// in-flight requests are not waited for.
func (s *Server) Shutdown() error {
	return s.http.Close()
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// credentials is the authentication envelope common to every request.
type credentials struct {
	Address string `json:"address"`
	ViewKey string `json:"view_key"`
}

// decode parses the credential pair, verifying the base58 network tag
// and the view key scalar against the address's view public key.
func (s *Server) decode(c *credentials) (cryptonote.AccountAddress,
	cryptonote.SecretKey, error) {

	var key cryptonote.SecretKey

	tag, addr, err := cryptonote.DecodeAddress(c.Address)
	if err != nil {
		return addr, key, errBadAddress
	}
	if tag != s.cfg.Net.AddressTag {
		return addr, key, errBadAddress
	}

	raw, err := hex.DecodeString(c.ViewKey)
	if err != nil || len(raw) != len(key) {
		return addr, key, errBadViewKey
	}
	copy(key[:], raw)

	pub, err := mcrypto.SecretKeyToPublic(key)
	if err != nil || pub != addr.ViewPublic {
		return addr, key, errBadViewKey
	}
	return addr, key, nil
}

// Handler-level errors and their HTTP mapping.  Authentication failures
// are deliberately indistinct from server errors.
var (
	errBadAddress = errors.New("invalid address")
	errBadViewKey = errors.New("address/viewkey mismatch")
)

func httpStatus(err error) int {
	switch {
	case err == errBadAddress, err == errBadViewKey:
		return http.StatusInternalServerError
	case lwsdb.IsError(err, lwsdb.ErrNoSuchAccount):
		return http.StatusNotFound
	case lwsdb.IsError(err, lwsdb.ErrAccountExists),
		lwsdb.IsError(err, lwsdb.ErrDuplicateRequest):
		return http.StatusConflict
	case lwsdb.IsError(err, lwsdb.ErrCreateQueueMax):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	log.Debugf("Request failed: %v", err)
	http.Error(w, http.StatusText(httpStatus(err)), httpStatus(err))
}

func writeJSON(w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warnf("Unable to write response: %v", err)
	}
}

// getAccount authenticates the request body and loads the account,
// hiding accounts in the hidden state.
func (s *Server) getAccount(r *http.Request,
	body interface{}, creds *credentials) (*lwsdb.Reader, lwsdb.Account, error) {

	if err := json.NewDecoder(r.Body).Decode(body); err != nil {
		return nil, lwsdb.Account{}, errBadAddress
	}

	addr, _, err := s.decode(creds)
	if err != nil {
		return nil, lwsdb.Account{}, err
	}

	reader, err := s.cfg.DB.StartRead()
	if err != nil {
		return nil, lwsdb.Account{}, err
	}

	status, acct, err := reader.GetAccount(&addr)
	if err != nil {
		reader.FinishRead()
		return nil, lwsdb.Account{}, err
	}
	if status == lwsdb.AccountHidden {
		reader.FinishRead()
		return nil, lwsdb.Account{}, lwsdb.StoreError{
			ErrorCode:   lwsdb.ErrNoSuchAccount,
			Description: "no account for address",
		}
	}
	return reader, acct, nil
}
