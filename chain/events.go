// Copyright (c) 2024-2025 The xmrsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"sync"
	"time"

	"github.com/lightninglabs/gozmq"
)

const (
	// chainMainZMQCommand is the topic the daemon publishes minimal
	// main-chain announcements under.
	chainMainZMQCommand = "json-minimal-chain_main"

	// maxTipEventSize is the maximum size in bytes for a tip
	// announcement received through ZMQ.
	maxTipEventSize = 1 << 20

	// defaultTipReadDeadline bounds each read so shutdown is prompt.
	defaultTipReadDeadline = 5 * time.Second
)

// TipNotification announces that the daemon's main chain grew.
type TipNotification struct {
	// Height is the height of the first block of the announcement.
	Height uint64
}

// tipAnnounce is the wire shape of a minimal chain_main event.
type tipAnnounce struct {
	FirstHeight uint64 `json:"first_height"`
}

// TipEvents listens on the daemon's public event socket for new-tip
// announcements and fans them out to subscribed scan workers, so idle
// workers re-request blocks without waiting out their poll interval.
// Scanning is correct without it; announcements only trim latency.
type TipEvents struct {
	conn *gozmq.Conn

	subMtx sync.Mutex
	subs   []chan TipNotification

	wg   sync.WaitGroup
	quit chan struct{}
}

// NewTipEvents subscribes to the daemon's pub endpoint.
func NewTipEvents(host string) (*TipEvents, error) {
	conn, err := gozmq.Subscribe(
		host, []string{chainMainZMQCommand}, defaultTipReadDeadline,
	)
	if err != nil {
		return nil, err
	}
	return &TipEvents{
		conn: conn,
		quit: make(chan struct{}),
	}, nil
}

// Start spins off the event handler goroutine.
func (t *TipEvents) Start() {
	t.wg.Add(1)
	go t.eventHandler()
}

// Stop closes the subscription and waits for the handler to exit.
func (t *TipEvents) Stop() error {
	err := t.conn.Close()
	close(t.quit)
	t.wg.Wait()
	return err
}

// Subscribe registers a notification channel.  Delivery is best effort:
// a subscriber that is not draining misses announcements rather than
// blocking the handler.
func (t *TipEvents) Subscribe() <-chan TipNotification {
	ch := make(chan TipNotification, 1)
	t.subMtx.Lock()
	t.subs = append(t.subs, ch)
	t.subMtx.Unlock()
	return ch
}

func (t *TipEvents) notify(n TipNotification) {
	t.subMtx.Lock()
	defer t.subMtx.Unlock()
	for _, ch := range t.subs {
		select {
		case ch <- n:
		default:
		}
	}
}

// eventHandler reads raw announcements from the ZMQ socket and forwards
// them to the current subscribers.
//
// NOTE: This must be run as a goroutine.
func (t *TipEvents) eventHandler() {
	defer t.wg.Done()

	log.Infof("Started listening for daemon tip notifications via ZMQ")

	// The daemon publishes single-frame messages of the form
	// "<topic>:<json payload>".  The buffer is reused across reads.
	data := make([]byte, maxTipEventSize)

	for {
		select {
		case <-t.quit:
			return
		default:
		}

		bufs, err := t.conn.Receive([][]byte{data})
		if err != nil {
			// EOF should only be returned if the connection was
			// explicitly closed, so we can exit at this point.
			if err == io.EOF {
				return
			}

			// Read deadlines fire constantly while the chain is
			// quiet; stay silent for those.
			netErr, ok := err.(net.Error)
			if ok && netErr.Timeout() {
				continue
			}

			log.Errorf("Unable to receive ZMQ %v message: %v",
				chainMainZMQCommand, err)
			continue
		}
		if len(bufs) == 0 {
			continue
		}

		frame := bufs[0]
		sep := bytes.IndexByte(frame, ':')
		if sep < 0 || string(frame[:sep]) != chainMainZMQCommand {
			continue
		}

		var announce tipAnnounce
		if err := json.Unmarshal(frame[sep+1:], &announce); err != nil {
			log.Warnf("Unable to decode tip announcement: %v", err)
			continue
		}

		log.Debugf("Daemon announced new tip at height %d",
			announce.FirstHeight)
		t.notify(TipNotification{Height: announce.FirstHeight})
	}
}
