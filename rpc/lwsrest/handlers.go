// Copyright (c) 2024-2025 The xmrsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package lwsrest

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"github.com/xmrsuite/lwsd/cryptonote"
	"github.com/xmrsuite/lwsd/lwsdb"
)

// uint64String renders amounts the way the light wallet protocol
// expects: JSON strings, since 64 bit values overflow JS numbers.
type uint64String uint64

func (u uint64String) MarshalJSON() ([]byte, error) {
	return []byte(`"` + strconv.FormatUint(uint64(u), 10) + `"`), nil
}

func (u *uint64String) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return err
	}
	*u = uint64String(v)
	return nil
}

// spentOutput describes one possible spend of a received output.
type spentOutput struct {
	Amount   uint64String        `json:"amount"`
	KeyImage cryptonote.KeyImage `json:"key_image"`
	TxPubKey cryptonote.PublicKey `json:"tx_pub_key"`
	OutIndex uint32              `json:"out_index"`
	Mixin    uint32              `json:"mixin"`
}

// isLocked reports whether an output is still unspendable at the
// current tail height.  Only coinbase outputs carry a lock window here;
// unlock_time is mirrored to clients, who enforce it wallet-side.
func isLocked(out *lwsdb.Output, tail lwsdb.BlockHeight) bool {
	tag, _ := lwsdb.UnpackExtra(out.Extra)
	if tag&lwsdb.ExtraCoinbase == 0 {
		return false
	}
	return uint64(tail) <= uint64(out.Height)+cryptonote.CoinbaseUnlockWindow
}

// collectSpends gathers the spends recorded against an output.
func collectSpends(reader *lwsdb.Reader, out *lwsdb.Output) ([]spentOutput,
	uint64, error) {

	spends, err := reader.GetSpends(out.ID)
	if err != nil {
		return nil, 0, err
	}

	var (
		list []spentOutput
		sent uint64
	)
	for _, spend := range spends {
		list = append(list, spentOutput{
			Amount:   uint64String(out.Amount),
			KeyImage: spend.KeyImage,
			TxPubKey: out.TxPublic,
			OutIndex: out.Index,
			Mixin:    spend.RingSize,
		})
		sent += out.Amount
	}
	return list, sent, nil
}

type addressInfoResponse struct {
	LockedFunds        uint64String  `json:"locked_funds"`
	TotalReceived      uint64String  `json:"total_received"`
	TotalSent          uint64String  `json:"total_sent"`
	ScannedHeight      uint64        `json:"scanned_height"`
	ScannedBlockHeight uint64        `json:"scanned_block_height"`
	StartHeight        uint64        `json:"start_height"`
	TransactionHeight  uint64        `json:"transaction_height"`
	BlockchainHeight   uint64        `json:"blockchain_height"`
	SpentOutputs       []spentOutput `json:"spent_outputs"`
	Rates              interface{}   `json:"rates"`
}

func (s *Server) getAddressInfo(w http.ResponseWriter, r *http.Request,
	_ httprouter.Params) {

	var req credentials
	reader, acct, err := s.getAccount(r, &req, &req)
	if err != nil {
		writeError(w, err)
		return
	}
	defer reader.FinishRead()

	outputs, err := reader.GetOutputs(acct.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	last, err := reader.GetLastBlock()
	if err != nil {
		writeError(w, err)
		return
	}

	resp := addressInfoResponse{
		ScannedHeight:      uint64(acct.ScanHeight),
		ScannedBlockHeight: uint64(acct.ScanHeight),
		StartHeight:        uint64(acct.StartHeight),
		TransactionHeight:  uint64(last.Height),
		BlockchainHeight:   uint64(last.Height),
		SpentOutputs:       []spentOutput{},
	}

	for i := range outputs {
		out := &outputs[i]
		resp.TotalReceived += uint64String(out.Amount)
		if isLocked(out, last.Height) {
			resp.LockedFunds += uint64String(out.Amount)
		}

		spends, sent, err := collectSpends(reader, out)
		if err != nil {
			writeError(w, err)
			return
		}
		resp.SpentOutputs = append(resp.SpentOutputs, spends...)
		resp.TotalSent += uint64String(sent)
	}

	if s.cfg.Rates != nil {
		if current, ok := s.cfg.Rates.Current(); ok {
			resp.Rates = current
		}
	}
	if resp.Rates == nil {
		resp.Rates = struct{}{}
	}

	go s.touchAccess(acct.Address)
	writeJSON(w, resp)
}

type addressTx struct {
	ID            uint64          `json:"id"`
	Hash          cryptonote.Hash `json:"hash"`
	Timestamp     uint64          `json:"timestamp"`
	TotalReceived uint64String    `json:"total_received"`
	TotalSent     uint64String    `json:"total_sent"`
	UnlockTime    uint64          `json:"unlock_time"`
	Height        uint64          `json:"height"`
	PaymentID     string          `json:"payment_id,omitempty"`
	Coinbase      bool            `json:"coinbase"`
	Mempool       bool            `json:"mempool"`
	Mixin         uint32          `json:"mixin"`
	SpentOutputs  []spentOutput   `json:"spent_outputs"`
}

type addressTxsResponse struct {
	TotalReceived      uint64String `json:"total_received"`
	ScannedHeight      uint64       `json:"scanned_height"`
	ScannedBlockHeight uint64       `json:"scanned_block_height"`
	StartHeight        uint64       `json:"start_height"`
	BlockchainHeight   uint64       `json:"blockchain_height"`
	Transactions       []addressTx  `json:"transactions"`
}

func (s *Server) getAddressTxs(w http.ResponseWriter, r *http.Request,
	_ httprouter.Params) {

	var req credentials
	reader, acct, err := s.getAccount(r, &req, &req)
	if err != nil {
		writeError(w, err)
		return
	}
	defer reader.FinishRead()

	outputs, err := reader.GetOutputs(acct.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	last, err := reader.GetLastBlock()
	if err != nil {
		writeError(w, err)
		return
	}

	resp := addressTxsResponse{
		ScannedHeight:      uint64(acct.ScanHeight),
		ScannedBlockHeight: uint64(acct.ScanHeight),
		StartHeight:        uint64(acct.StartHeight),
		BlockchainHeight:   uint64(last.Height),
		Transactions:       []addressTx{},
	}

	// Outputs arrive ordered by (height, id); outputs of the same
	// transaction are adjacent, so grouping is a single pass.
	byHash := make(map[cryptonote.Hash]int)
	for i := range outputs {
		out := &outputs[i]
		resp.TotalReceived += uint64String(out.Amount)

		idx, ok := byHash[out.TxHash]
		if !ok {
			tag, pidLen := lwsdb.UnpackExtra(out.Extra)
			tx := addressTx{
				ID:           uint64(len(resp.Transactions)),
				Hash:         out.TxHash,
				Timestamp:    out.Timestamp,
				UnlockTime:   out.UnlockTime,
				Height:       uint64(out.Height),
				Coinbase:     tag&lwsdb.ExtraCoinbase != 0,
				Mixin:        out.RingSize,
				SpentOutputs: []spentOutput{},
			}
			if pidLen > 0 {
				tx.PaymentID = paymentIDHex(out.PaymentID, pidLen)
			}
			resp.Transactions = append(resp.Transactions, tx)
			idx = len(resp.Transactions) - 1
			byHash[out.TxHash] = idx
		}

		tx := &resp.Transactions[idx]
		tx.TotalReceived += uint64String(out.Amount)

		spends, sent, err := collectSpends(reader, out)
		if err != nil {
			writeError(w, err)
			return
		}
		tx.SpentOutputs = append(tx.SpentOutputs, spends...)
		tx.TotalSent += uint64String(sent)
	}

	go s.touchAccess(acct.Address)
	writeJSON(w, resp)
}

type unspentOut struct {
	Amount       uint64String          `json:"amount"`
	PublicKey    cryptonote.PublicKey  `json:"public_key"`
	Index        uint32                `json:"index"`
	GlobalIndex  uint64                `json:"global_index"`
	TxID         cryptonote.Hash       `json:"tx_id"`
	TxHash       cryptonote.Hash       `json:"tx_hash"`
	TxPrefixHash cryptonote.Hash       `json:"tx_prefix_hash"`
	TxPubKey     cryptonote.PublicKey  `json:"tx_pub_key"`
	Timestamp    uint64                `json:"timestamp"`
	Height       uint64                `json:"height"`
	SpendKeyImages []cryptonote.KeyImage `json:"spend_key_images"`
	RingCT       string                `json:"rct,omitempty"`
}

type unspentOutsRequest struct {
	credentials
	Amount      uint64String `json:"amount"`
	Mixin       uint32       `json:"mixin"`
	UseDust     bool         `json:"use_dust"`
	DustThreshold uint64String `json:"dust_threshold"`
}

type unspentOutsResponse struct {
	PerByteFee uint64String `json:"per_byte_fee"`
	Amount     uint64String `json:"amount"`
	Outputs    []unspentOut `json:"outputs"`
}

func (s *Server) getUnspentOuts(w http.ResponseWriter, r *http.Request,
	_ httprouter.Params) {

	var req unspentOutsRequest
	reader, acct, err := s.getAccount(r, &req, &req.credentials)
	if err != nil {
		writeError(w, err)
		return
	}
	defer reader.FinishRead()

	outputs, err := reader.GetOutputs(acct.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	dust := uint64(req.DustThreshold)
	resp := unspentOutsResponse{Outputs: []unspentOut{}}
	for i := range outputs {
		out := &outputs[i]

		tag, _ := lwsdb.UnpackExtra(out.Extra)
		if !req.UseDust && tag&lwsdb.ExtraRingCT == 0 &&
			out.Amount < dust {

			continue
		}
		if out.RingSize < req.Mixin {
			continue
		}

		spends, _, err := collectSpends(reader, out)
		if err != nil {
			writeError(w, err)
			return
		}
		images := make([]cryptonote.KeyImage, 0, len(spends))
		for _, spend := range spends {
			images = append(images, spend.KeyImage)
		}

		entry := unspentOut{
			Amount:         uint64String(out.Amount),
			Index:          out.Index,
			GlobalIndex:    uint64(out.ID),
			TxID:           out.TxHash,
			TxHash:         out.TxHash,
			TxPrefixHash:   out.TxPrefixHash,
			TxPubKey:       out.TxPublic,
			Timestamp:      out.Timestamp,
			Height:         uint64(out.Height),
			SpendKeyImages: images,
		}
		if tag&lwsdb.ExtraRingCT != 0 {
			entry.RingCT = out.RingCTMask.String()
		}
		resp.Amount += uint64String(out.Amount)
		resp.Outputs = append(resp.Outputs, entry)
	}

	writeJSON(w, resp)
}

type loginRequest struct {
	credentials
	CreateAccount    bool `json:"create_account"`
	GeneratedLocally bool `json:"generated_locally"`
}

type loginResponse struct {
	NewAddress       bool   `json:"new_address"`
	GeneratedLocally bool   `json:"generated_locally"`
	StartHeight      uint64 `json:"start_height,omitempty"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request,
	_ httprouter.Params) {

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errBadAddress)
		return
	}

	addr, key, err := s.decode(&req.credentials)
	if err != nil {
		writeError(w, err)
		return
	}

	reader, err := s.cfg.DB.StartRead()
	if err != nil {
		writeError(w, err)
		return
	}
	status, _, err := reader.GetAccount(&addr)
	var startHeight lwsdb.BlockHeight
	if last, lerr := reader.GetLastBlock(); lerr == nil {
		startHeight = last.Height
	}
	reader.FinishRead()

	switch {
	case err == nil && status != lwsdb.AccountHidden:
		// Existing account; login just touches access time.
		go s.touchAccess(addr)
		writeJSON(w, loginResponse{
			NewAddress:       false,
			GeneratedLocally: req.GeneratedLocally,
		})
		return

	case err == nil || lwsdb.IsError(err, lwsdb.ErrNoSuchAccount):
		if !req.CreateAccount {
			writeError(w, lwsdb.StoreError{
				ErrorCode:   lwsdb.ErrNoSuchAccount,
				Description: "no account for address",
			})
			return
		}

		// Creation requests scan from the current tip; importing
		// history is a separate operator-approved request.
		err := s.cfg.DB.CreationRequest(&addr, key, startHeight)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, loginResponse{
			NewAddress:       true,
			GeneratedLocally: req.GeneratedLocally,
			StartHeight:      uint64(startHeight),
		})
		return

	default:
		writeError(w, err)
	}
}

// touchAccess records a credentialed use without delaying the response.
func (s *Server) touchAccess(addr cryptonote.AccountAddress) {
	if err := s.cfg.DB.UpdateAccessTime(&addr); err != nil {
		log.Debugf("Unable to update access time: %v", err)
	}
}

func paymentIDHex(id [32]byte, length uint8) string {
	if int(length) > len(id) {
		length = uint8(len(id))
	}
	return hex.EncodeToString(id[:length])
}
