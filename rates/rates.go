// Copyright (c) 2024-2025 The xmrsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package rates polls an exchange-rate service so the REST surface can
// decorate balance responses with fiat conversions.  The poller is
// optional; when disabled the API reports no rates.
package rates

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lightningnetwork/lnd/ticker"
	"github.com/shopspring/decimal"
)

const (
	// defaultURL asks cryptocompare for XMR prices in the currencies
	// the upstream wallet apps display.
	defaultURL = "https://min-api.cryptocompare.com/data/price?fsym=XMR&" +
		"tsyms=AUD,BRL,BTC,CAD,CHF,CNY,EUR,GBP,HKD,INR,JPY,KRW,MXN," +
		"NOK,NZD,SEK,SGD,TRY,USD,RUB,ZAR"

	fetchTimeout = 30 * time.Second
)

// Rates maps currency tickers to an XMR exchange rate.
type Rates map[string]decimal.Decimal

// Source periodically refreshes exchange rates in the background.
type Source struct {
	started int32 // To be used atomically.

	url    string
	client http.Client
	ticker *ticker.T

	current atomic.Value // Rates

	wg   sync.WaitGroup
	quit chan struct{}
}

// New creates a source polling at the given interval.
func New(interval time.Duration) *Source {
	return &Source{
		url:    defaultURL,
		client: http.Client{Timeout: fetchTimeout},
		ticker: ticker.New(interval),
		quit:   make(chan struct{}),
	}
}

// Start begins polling.  The first fetch happens immediately so early
// API calls already see rates.
func (s *Source) Start() {
	if !atomic.CompareAndSwapInt32(&s.started, 0, 1) {
		return
	}
	s.wg.Add(1)
	go s.pollLoop()
}

// Stop halts polling and waits for the poller to exit.
func (s *Source) Stop() {
	if atomic.LoadInt32(&s.started) == 0 {
		return
	}
	close(s.quit)
	s.wg.Wait()
}

// Current returns the most recent rates, if any fetch has succeeded.
func (s *Source) Current() (Rates, bool) {
	rates, ok := s.current.Load().(Rates)
	return rates, ok && rates != nil
}

// NOTE: This must be run as a goroutine.
func (s *Source) pollLoop() {
	defer s.wg.Done()
	defer s.ticker.Stop()

	s.ticker.Resume()

	if err := s.fetch(); err != nil {
		log.Warnf("Unable to retrieve exchange rates: %v", err)
	}

	for {
		select {
		case <-s.ticker.Ticks():
			if err := s.fetch(); err != nil {
				log.Warnf("Unable to retrieve exchange "+
					"rates: %v", err)
			}
		case <-s.quit:
			return
		}
	}
}

func (s *Source) fetch() error {
	resp, err := s.client.Get(s.url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rate service returned %s", resp.Status)
	}

	var rates Rates
	if err := json.NewDecoder(resp.Body).Decode(&rates); err != nil {
		return err
	}

	s.current.Store(rates)
	log.Debugf("Refreshed %d exchange rates", len(rates))
	return nil
}
