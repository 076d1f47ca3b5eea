// Copyright (c) 2024-2025 The xmrsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package scanner

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xmrsuite/lwsd/chain"
	"github.com/xmrsuite/lwsd/lwsdb"
)

const (
	// accountPollInterval is how often the active account set is
	// re-enumerated while workers run, and the sleep while no account
	// is active.
	accountPollInterval = 10 * time.Second

	// supervisorWake is the quantum of the supervisor's wait between
	// account polls, keeping shutdown latency low.
	supervisorWake = time.Second

	// shutdownQuantum bounds idle sleeps with no other wake source.
	shutdownQuantum = 500 * time.Millisecond
)

// Config supplies everything the scanning supervisor needs.
type Config struct {
	// DB is the shared account store.
	DB *lwsdb.Storage

	// Dial opens a fresh node transport.  Each worker and the
	// synchronizer own their connection.
	Dial func() (NodeClient, error)

	// Interrupt fires the fan-out abort topic, waking every blocked
	// transport wait.  The supervisor fires it whenever a worker
	// generation must stop.
	Interrupt func()

	// Workers caps the number of concurrent scan workers.  Zero or
	// negative selects a single worker.
	Workers int

	// TipEvents optionally delivers daemon tip announcements so idle
	// workers wake early.  May be nil.
	TipEvents *chain.TipEvents
}

// Scanner is the supervisor: it enumerates active accounts, partitions
// them across scan workers, watches for membership changes, and runs the
// chain synchronizer between worker generations.
type Scanner struct {
	started int32 // To be used atomically.
	stopped int32 // To be used atomically.

	cfg Config

	// running is the process-wide scan flag.  Signal handlers and
	// fatal paths clear it; every loop checks it between waits.
	running int32

	quit chan struct{}
}

// New creates an unstarted scanner.
func New(cfg Config) *Scanner {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	cfg.Workers = workers
	return &Scanner{
		cfg:     cfg,
		running: 1,
		quit:    make(chan struct{}),
	}
}

// isRunning reports whether a stop has been requested.
func (s *Scanner) isRunning() bool {
	return atomic.LoadInt32(&s.running) == 1
}

// Stop requests a cooperative shutdown: the run flag is cleared, the
// abort topic fires, and Run returns once workers have joined.  Safe to
// call from a signal handler path and idempotent.
func (s *Scanner) Stop() {
	if !atomic.CompareAndSwapInt32(&s.stopped, 0, 1) {
		return
	}
	atomic.StoreInt32(&s.running, 0)
	close(s.quit)
	if s.cfg.Interrupt != nil {
		s.cfg.Interrupt()
	}
}

// checkedWait sleeps for the given duration in shutdown-sized quanta.
// It returns early, reporting false, when a stop is requested.
func (s *Scanner) checkedWait(d time.Duration) bool {
	deadline := time.Now().Add(d)
	for s.isRunning() {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return true
		}
		quantum := remaining
		if quantum > shutdownQuantum {
			quantum = shutdownQuantum
		}
		select {
		case <-s.quit:
			return false
		case <-time.After(quantum):
		}
	}
	return false
}

// Run executes the supervisor loop until Stop is called or the chain
// proves unrecoverable.  It performs the initial chain sync before the
// first worker generation.
func (s *Scanner) Run() error {
	if !atomic.CompareAndSwapInt32(&s.started, 0, 1) {
		return errors.New("scanner already started")
	}

	syncClient, err := s.cfg.Dial()
	if err != nil {
		return err
	}
	defer syncClient.Close()

	if err := SyncChain(syncClient, s.cfg.DB); err != nil {
		if errors.Is(err, chain.ErrAborted) {
			return nil
		}
		return err
	}

	for s.isRunning() {
		users, active, err := s.loadActive()
		if err != nil {
			return err
		}

		if len(users) == 0 {
			log.Infof("No active accounts")
			s.checkedWait(accountPollInterval)
		} else {
			s.checkLoop(users, active)
		}

		if !s.isRunning() {
			return nil
		}

		err = SyncChain(syncClient, s.cfg.DB)
		switch {
		case err == nil:
		case errors.Is(err, chain.ErrAborted):
			return nil
		case errors.Is(err, chain.ErrTimeout):
			log.Warnf("Failed to reach daemon for chain sync, " +
				"retrying")
		default:
			return err
		}
	}
	return nil
}

// loadActive snapshots every active account with its received output
// ids, plus the sorted id set used for membership-change detection.
func (s *Scanner) loadActive() ([]*Account, []lwsdb.AccountID, error) {
	log.Debugf("Retrieving current active account list")

	reader, err := s.cfg.DB.StartRead()
	if err != nil {
		return nil, nil, err
	}
	defer reader.FinishRead()

	accounts, err := reader.GetAccounts(lwsdb.AccountActive)
	if err != nil {
		return nil, nil, err
	}

	users := make([]*Account, 0, len(accounts))
	active := make([]lwsdb.AccountID, 0, len(accounts))
	for i := range accounts {
		received, err := reader.GetOutputIDs(accounts[i].ID)
		if err != nil {
			return nil, nil, err
		}
		users = append(users, NewAccount(&accounts[i], received))
		active = append(active, accounts[i].ID)
	}
	// GetAccounts iterates in id order, so active is already sorted.
	return users, active, nil
}

// partition sorts accounts by scan height and chunks them evenly across
// the worker cap, so stragglers cluster together instead of stalling
// fresh accounts.
func partition(users []*Account, workers int) [][]*Account {
	sort.SliceStable(users, func(i, j int) bool {
		return users[i].ScanHeight() < users[j].ScanHeight()
	})

	perWorker := (len(users) + workers - 1) / workers
	var out [][]*Account
	for len(users) > 0 {
		n := perWorker
		if n > len(users) {
			n = len(users)
		}
		out = append(out, users[:n])
		users = users[n:]
	}
	return out
}

// checkLoop spawns one worker per partition and re-enumerates the
// active set every account poll interval.  Any membership change, any
// worker exit, or a stop request ends the generation: the abort topic
// fires, workers join, and the caller re-partitions from scratch.
func (s *Scanner) checkLoop(users []*Account, active []lwsdb.AccountID) {
	var (
		update atomic.Bool
		wg     sync.WaitGroup
		quit   = make(chan struct{})
	)

	batches := partition(users, s.cfg.Workers)
	log.Infof("Starting scan loops on %d worker(s) with %d account(s)",
		len(batches), len(users))

	for _, batch := range batches {
		b := &workerBatch{
			dial:   s.cfg.Dial,
			db:     s.cfg.DB,
			users:  batch,
			update: &update,
			quit:   quit,
			wg:     &wg,
		}
		if s.cfg.TipEvents != nil {
			b.tip = s.cfg.TipEvents.Subscribe()
		}
		wg.Add(1)
		go b.scanLoop()
	}

	defer func() {
		update.Store(true)
		close(quit)
		if s.cfg.Interrupt != nil {
			s.cfg.Interrupt()
		}
		wg.Wait()
	}()

	lastCheck := time.Now()
	for s.isRunning() {
		select {
		case <-s.quit:
			return
		case <-time.After(supervisorWake):
		}
		if update.Load() {
			return
		}
		if time.Since(lastCheck) < accountPollInterval {
			continue
		}
		lastCheck = time.Now()

		changed, err := s.activeChanged(active)
		if err != nil {
			log.Warnf("Failed to re-check active accounts, "+
				"retrying later: %v", err)
			continue
		}
		if changed {
			log.Infof("Change in active user accounts detected")
			return
		}
	}
}

// activeChanged compares the stored active set against the generation's
// snapshot.
func (s *Scanner) activeChanged(active []lwsdb.AccountID) (bool, error) {
	reader, err := s.cfg.DB.StartRead()
	if err != nil {
		return false, err
	}
	defer reader.FinishRead()

	current, err := reader.GetAccounts(lwsdb.AccountActive)
	if err != nil {
		return false, err
	}
	if len(current) != len(active) {
		return true, nil
	}
	for i := range current {
		// Both sides are ordered by id.
		if current[i].ID != active[i] {
			return true, nil
		}
	}
	return false, nil
}
