// Copyright (c) 2024-2025 The xmrsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chain implements the message-oriented transport between the
// light wallet server and its upstream monero daemon: a ZMQ REQ channel
// per scan worker, an in-process abort topic every blocking wait
// subscribes to, and an optional SUB listener for new-tip
// announcements.
package chain

import (
	"errors"
	"syscall"
	"time"

	zmq "github.com/pebbe/zmq4"

	"github.com/xmrsuite/lwsd/cryptonote"
)

// abortEndpoint is the in-process topic the supervisor publishes to when
// workers must unwind.  Every client polls its subscription alongside
// the daemon socket, so aborts cut every blocking wait short.
const abortEndpoint = "inproc://lwsd/stopscan"

const (
	// sendTimeout bounds a single request send.
	sendTimeout = 30 * time.Second

	// pollQuantum bounds one poll so shutdown is never far away even
	// if the abort message is lost to a late subscription.
	pollQuantum = 500 * time.Millisecond
)

// Transport errors.
var (
	// ErrAborted is returned when the abort topic fires during a send,
	// receive, or wait.  It unwinds the worker and is not a failure.
	ErrAborted = errors.New("scan aborted")

	// ErrTimeout is returned when the daemon does not answer within
	// the deadline.  Callers retry; the request protocol is
	// idempotent.
	ErrTimeout = errors.New("daemon connection timed out")
)

// Context owns the process-wide ZMQ state: the underlying context and
// the PUB side of the abort topic.  It must outlive every client and be
// closed only after all workers have joined.
type Context struct {
	zctx *zmq.Context
	pub  *zmq.Socket
}

// NewContext creates the ZMQ context and binds the abort publisher.
func NewContext() (*Context, error) {
	zctx, err := zmq.NewContext()
	if err != nil {
		return nil, err
	}
	pub, err := zctx.NewSocket(zmq.PUB)
	if err != nil {
		zctx.Term()
		return nil, err
	}
	if err := pub.Bind(abortEndpoint); err != nil {
		pub.Close()
		zctx.Term()
		return nil, err
	}
	return &Context{zctx: zctx, pub: pub}, nil
}

// Abort fans an empty message out to every subscribed client, waking
// all blocked polls.  Safe to call repeatedly.
func (c *Context) Abort() {
	if _, err := c.pub.SendBytes(nil, zmq.DONTWAIT); err != nil {
		log.Warnf("Unable to publish abort: %v", err)
	}
}

// Close tears the context down.  Callers must have closed every client
// first or Term will block.
func (c *Context) Close() error {
	if err := c.pub.Close(); err != nil {
		return err
	}
	return c.zctx.Term()
}

// Client is a per-worker connection to the daemon: a REQ socket for the
// block and hash RPCs plus a SUB socket on the abort topic.  Clients are
// not safe for concurrent use; each worker owns its own.
type Client struct {
	daemon *zmq.Socket
	abort  *zmq.Socket
}

// NewClient connects a fresh client to the daemon at addr.
func (c *Context) NewClient(addr string) (*Client, error) {
	daemon, err := c.zctx.NewSocket(zmq.REQ)
	if err != nil {
		return nil, err
	}
	// Relaxed REQ allows reissuing a request after a timeout without
	// a matching reply, which the worker loop relies on.
	if err := daemon.SetReqRelaxed(1); err != nil {
		daemon.Close()
		return nil, err
	}
	if err := daemon.SetReqCorrelate(1); err != nil {
		daemon.Close()
		return nil, err
	}
	if err := daemon.SetLinger(0); err != nil {
		daemon.Close()
		return nil, err
	}
	if err := daemon.Connect(addr); err != nil {
		daemon.Close()
		return nil, err
	}

	abort, err := c.zctx.NewSocket(zmq.SUB)
	if err != nil {
		daemon.Close()
		return nil, err
	}
	if err := abort.SetSubscribe(""); err != nil {
		abort.Close()
		daemon.Close()
		return nil, err
	}
	if err := abort.SetLinger(0); err != nil {
		abort.Close()
		daemon.Close()
		return nil, err
	}
	if err := abort.Connect(abortEndpoint); err != nil {
		abort.Close()
		daemon.Close()
		return nil, err
	}

	return &Client{daemon: daemon, abort: abort}, nil
}

// Close releases the client's sockets.
func (c *Client) Close() error {
	err := c.daemon.Close()
	if aerr := c.abort.Close(); err == nil {
		err = aerr
	}
	return err
}

// wait polls the daemon socket for events and the abort subscription for
// anything, until the timeout elapses.  ErrAborted wins over readiness.
func (c *Client) wait(events zmq.State, timeout time.Duration) error {
	poller := zmq.NewPoller()
	if events != 0 {
		poller.Add(c.daemon, events)
	}
	poller.Add(c.abort, zmq.POLLIN)

	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}
		quantum := remaining
		if quantum > pollQuantum {
			quantum = pollQuantum
		}

		ready, err := poller.Poll(quantum)
		if err != nil {
			if zmq.AsErrno(err) == zmq.Errno(syscall.EINTR) {
				continue
			}
			return err
		}
		for _, polled := range ready {
			if polled.Socket == c.abort {
				return ErrAborted
			}
		}
		if len(ready) > 0 {
			return nil
		}
		if remaining == 0 {
			return ErrTimeout
		}
	}
}

// Wait blocks until the abort topic fires or the timeout elapses.  It is
// the worker's idle poll between block requests; a plain timeout returns
// nil.
func (c *Client) Wait(timeout time.Duration) error {
	err := c.wait(0, timeout)
	if err == ErrTimeout {
		return nil
	}
	return err
}

// send writes one framed request, waiting for socket writability under
// the send timeout.
func (c *Client) send(msg []byte) error {
	for {
		_, err := c.daemon.SendBytes(msg, zmq.DONTWAIT)
		if err == nil {
			return nil
		}
		switch zmq.AsErrno(err) {
		case zmq.Errno(syscall.EINTR):
			continue
		case zmq.Errno(syscall.EAGAIN):
			if werr := c.wait(zmq.POLLOUT, sendTimeout); werr != nil {
				return werr
			}
		default:
			return err
		}
	}
}

// receive reads one reply within the timeout and unwraps it into dst.
func (c *Client) receive(dst interface{}, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		msg, err := c.daemon.RecvBytes(zmq.DONTWAIT)
		if err == nil {
			return unpackMessage(msg, dst)
		}
		switch zmq.AsErrno(err) {
		case zmq.Errno(syscall.EINTR):
			continue
		case zmq.Errno(syscall.EAGAIN):
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return ErrTimeout
			}
			if werr := c.wait(zmq.POLLIN, remaining); werr != nil {
				return werr
			}
		default:
			return err
		}
	}
}

// SendGetBlocks issues a get_blocks_fast request from the given height.
// The reply is collected separately so callers can pipeline.
func (c *Client) SendGetBlocks(start uint64) error {
	msg, err := makeMessage(methodGetBlocksFast, &GetBlocksRequest{
		StartHeight: start,
	})
	if err != nil {
		return err
	}
	return c.send(msg)
}

// ReceiveBlocks collects the reply to the most recent SendGetBlocks.
func (c *Client) ReceiveBlocks(timeout time.Duration) (*GetBlocksResponse, error) {
	resp := new(GetBlocksResponse)
	if err := c.receive(resp, timeout); err != nil {
		return nil, err
	}
	return resp, nil
}

// SendGetHashes issues a get_hashes_fast request with the given probe
// list, newest hash first.
func (c *Client) SendGetHashes(known []cryptonote.Hash) error {
	msg, err := makeMessage(methodGetHashesFast, &GetHashesRequest{
		KnownHashes: known,
	})
	if err != nil {
		return err
	}
	return c.send(msg)
}

// ReceiveHashes collects the reply to the most recent SendGetHashes.
func (c *Client) ReceiveHashes(timeout time.Duration) (*GetHashesResponse, error) {
	resp := new(GetHashesResponse)
	if err := c.receive(resp, timeout); err != nil {
		return nil, err
	}
	return resp, nil
}
