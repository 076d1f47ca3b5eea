// Copyright (c) 2024-2025 The xmrsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/xmrsuite/lwsd/chain"
	"github.com/xmrsuite/lwsd/lwsdb"
	"github.com/xmrsuite/lwsd/rates"
	"github.com/xmrsuite/lwsd/rpc/lwsrest"
	"github.com/xmrsuite/lwsd/scanner"
)

func main() {
	// Use all processor cores.
	runtime.GOMAXPROCS(runtime.NumCPU())

	if err := lwsdMain(); err != nil {
		os.Exit(1)
	}
}

// lwsdMain is the real main function for lwsd.  It is necessary to work
// around the fact that deferred functions do not run when os.Exit() is
// called.
func lwsdMain() error {
	// Load configuration and parse command line.  This also initializes
	// logging and configures it accordingly.
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	log.Infof("Version %s", version())
	log.Infof("Network: %s, daemon: %s", activeNet.Name, cfg.Daemon)

	go mainInterruptHandler()

	// Open the account store, seeding the chain tail with genesis on
	// first run.
	dbPath := filepath.Join(cfg.DataDir, defaultDBName)
	db, err := lwsdb.Open(dbPath, activeNet, cfg.CreateQueueMax)
	if err != nil {
		log.Errorf("Unable to open account database: %v", err)
		return err
	}
	defer db.Close()

	// The ZMQ context carries the abort topic every worker transport
	// subscribes to.  It is torn down only after all workers join.
	zctx, err := chain.NewContext()
	if err != nil {
		log.Errorf("Unable to initialize ZMQ context: %v", err)
		return err
	}
	defer zctx.Close()

	var tipEvents *chain.TipEvents
	if cfg.DaemonPub != "" {
		tipEvents, err = chain.NewTipEvents(cfg.DaemonPub)
		if err != nil {
			log.Errorf("Unable to subscribe to daemon events: %v", err)
			return err
		}
		tipEvents.Start()
		defer tipEvents.Stop()
	}

	var rateSource *rates.Source
	if cfg.RatesInterval > 0 {
		rateSource = rates.New(cfg.RatesInterval)
		rateSource.Start()
		defer rateSource.Stop()
	}

	scn := scanner.New(scanner.Config{
		DB: db,
		Dial: func() (scanner.NodeClient, error) {
			return zctx.NewClient(cfg.Daemon)
		},
		Interrupt: zctx.Abort,
		Workers:   cfg.ScanThreads,
		TipEvents: tipEvents,
	})

	restServer := lwsrest.New(lwsrest.Config{
		DB:     db,
		Net:    activeNet,
		Rates:  rateSource,
		Listen: cfg.RESTListen,
	})

	addInterruptHandler(func() {
		scn.Stop()
		if err := restServer.Shutdown(); err != nil {
			log.Warnf("Unable to stop REST server: %v", err)
		}
	})

	var g errgroup.Group
	g.Go(func() error {
		// A fatal scanner error takes the whole daemon down.
		defer simulateInterrupt()
		if err := scn.Run(); err != nil {
			log.Errorf("Scanner failed: %v", err)
			return err
		}
		return nil
	})
	g.Go(restServer.ListenAndServe)

	err = g.Wait()
	<-interruptHandlersDone
	log.Info("Shutdown complete")
	return err
}
