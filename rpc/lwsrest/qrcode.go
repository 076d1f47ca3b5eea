// Copyright (c) 2024-2025 The xmrsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package lwsrest

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/xmrsuite/lwsd/cryptonote"
)

const qrSize = 256

// addressQR renders a monero: payment URI for a valid address as a PNG,
// so wallet front ends can embed receive codes without their own
// generator.  No credential is required; addresses are public.
func (s *Server) addressQR(w http.ResponseWriter, r *http.Request,
	params httprouter.Params) {

	address := params.ByName("address")
	tag, _, err := cryptonote.DecodeAddress(address)
	if err != nil || tag != s.cfg.Net.AddressTag {
		http.Error(w, "invalid address", http.StatusBadRequest)
		return
	}

	png, err := qrcode.Encode("monero:"+address, qrcode.Medium, qrSize)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if _, err := w.Write(png); err != nil {
		log.Debugf("Unable to write QR response: %v", err)
	}
}
