// Copyright (c) 2024-2025 The xmrsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	flags "github.com/jessevdk/go-flags"

	"github.com/xmrsuite/lwsd/netparams"
)

const (
	defaultConfigFilename = "lwsd.conf"
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "lwsd.log"
	defaultDBName         = "lws.db"
	defaultRESTListen     = "127.0.0.1:8080"
	defaultCreateQueueMax = 10000
)

var (
	lwsdHomeDir       = appDataDir("lwsd")
	defaultConfigFile = filepath.Join(lwsdHomeDir, defaultConfigFilename)
	defaultDataDir    = lwsdHomeDir
	defaultLogDir     = filepath.Join(lwsdHomeDir, defaultLogDirname)
)

// activeNet is the network the server runs against, selected by config.
var activeNet = &netparams.MainNetParams

type config struct {
	// General application behavior
	ConfigFile  string `short:"C" long:"configfile" description:"Path to configuration file"`
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit"`
	DataDir     string `short:"b" long:"datadir" description:"Directory to store the account database"`
	LogDir      string `long:"logdir" description:"Directory to log output."`
	DebugLevel  string `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical}"`
	TestNet     bool   `long:"testnet" description:"Use the test network (default mainnet)"`
	StageNet    bool   `long:"stagenet" description:"Use the stage network (default mainnet)"`

	// Daemon and scanning options
	Daemon         string        `long:"daemon" description:"<protocol>://<address>:<port> of the daemon's ZMQ RPC"`
	DaemonPub      string        `long:"daemonpub" description:"Optional <address>:<port> of the daemon's ZMQ event publisher for tip notifications"`
	ScanThreads    int           `long:"scanthreads" description:"Maximum number of account scanning workers"`
	RESTListen     string        `long:"restlisten" description:"[address]:<port> for incoming REST connections"`
	CreateQueueMax uint32        `long:"createqueuemax" description:"Maximum pending account creation requests"`
	RatesInterval  time.Duration `long:"exchangerateinterval" description:"Exchange rate polling interval; 0 disables rate retrieval"`
}

// appDataDir returns an OS-appropriate home for the daemon's data.
func appDataDir(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "." + name
	}
	return filepath.Join(home, "."+name)
}

// cleanAndExpandPath expands environment variables and leading ~ in a
// path, then cleans it.
func cleanAndExpandPath(path string) string {
	if len(path) > 1 && path[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return filepath.Clean(os.ExpandEnv(path))
}

// loadConfig initializes and parses the config using a config file and
// command line options.
//
// The configuration proceeds as follows:
//      1) Start with a default config with sane settings
//      2) Pre-parse the command line to check for an alternative config
//         file
//      3) Load configuration file overwriting defaults with any
//         specified options
//      4) Parse CLI options and overwrite/add any specified options
func loadConfig() (*config, []string, error) {
	// Default config.
	cfg := config{
		ConfigFile:     defaultConfigFile,
		DataDir:        defaultDataDir,
		LogDir:         defaultLogDir,
		DebugLevel:     defaultLogLevel,
		ScanThreads:    runtime.NumCPU(),
		RESTListen:     defaultRESTListen,
		CreateQueueMax: defaultCreateQueueMax,
	}

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.Default)
	_, err := preParser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); !ok || e.Type != flags.ErrHelp {
			preParser.WriteHelp(os.Stderr)
		}
		return nil, nil, err
	}

	// Show the version and exit if the version flag was specified.
	if preCfg.ShowVersion {
		appName := filepath.Base(os.Args[0])
		fmt.Println(appName, "version", version())
		os.Exit(0)
	}

	// Load additional config from file.
	parser := flags.NewParser(&cfg, flags.Default)
	err = flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
	if err != nil {
		if _, ok := err.(*os.PathError); !ok {
			fmt.Fprintln(os.Stderr, err)
			parser.WriteHelp(os.Stderr)
			return nil, nil, err
		}
		// Missing config file is fine unless one was explicitly set.
		if preCfg.ConfigFile != defaultConfigFile {
			fmt.Fprintln(os.Stderr, err)
			return nil, nil, err
		}
	}

	// Parse command line options again to ensure they take precedence.
	remainingArgs, err := parser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); !ok || e.Type != flags.ErrHelp {
			parser.WriteHelp(os.Stderr)
		}
		return nil, nil, err
	}

	// Multiple networks can't be selected simultaneously.
	numNets := 0
	if cfg.TestNet {
		activeNet = &netparams.TestNetParams
		numNets++
	}
	if cfg.StageNet {
		activeNet = &netparams.StageNetParams
		numNets++
	}
	if numNets > 1 {
		str := "%s: the testnet and stagenet params can't be used " +
			"together -- choose one"
		err := fmt.Errorf(str, "loadConfig")
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}

	if cfg.Daemon == "" {
		cfg.Daemon = "tcp://127.0.0.1:" + activeNet.DaemonRPCPort
	}
	if cfg.ScanThreads < 1 {
		cfg.ScanThreads = 1
	}

	// Append the network type to the data and log directories so they
	// are "namespaced" per network.
	cfg.DataDir = filepath.Join(
		cleanAndExpandPath(cfg.DataDir), activeNet.Name,
	)
	cfg.LogDir = filepath.Join(
		cleanAndExpandPath(cfg.LogDir), activeNet.Name,
	)

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}

	// Initialize log rotation and parse, validate, and set debug log
	// level(s).
	initLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename))
	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		err := fmt.Errorf("loadConfig: %v", err)
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}

	return &cfg, remainingArgs, nil
}
