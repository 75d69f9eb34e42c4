// Command trconf-gateway serves IQRF transceiver configuration writes.
//
// The gateway connects to a DPA coordinator and exposes:
//   - the iqmeshNetwork_WriteTrConf JSON API over HTTP
//   - a write history backed by SQLite
//   - crash recovery of FRC settings through an unwind journal
//   - mDNS advertising, and mDNS lookup of network DPA bridges
//   - an optional interactive shell
//
// Usage:
//
//	trconf-gateway [flags]
//
// Flags:
//
//	-config string       YAML configuration file; flags override it
//	-link string         Coordinator link: serial, tcp, sim (default "sim")
//	-serial-port string  Serial device of the coordinator
//	-tcp-addr string     host:port of a DPA bridge (empty browses mDNS)
//	-listen string       HTTP API listen address (default ":8080")
//	-capture string      Protocol capture file (CBOR)
//	-log-level string    Log level: debug, info, warn, error (default "info")
//	-interactive         Start the interactive shell
//
// Examples:
//
//	# Simulated network of 10 nodes with a shell
//	trconf-gateway -link sim -sim-nodes 10 -interactive
//
//	# USB coordinator with a capture file
//	trconf-gateway -link serial -serial-port /dev/ttyACM0 -capture dpa.cbor
//
//	# First DPA bridge found on the LAN
//	trconf-gateway -link tcp -mdns
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

var config = defaultConfig()

func init() {
	flag.StringVar(&config.ConfigFile, "config", "", "YAML configuration file; flags override it")
	flag.StringVar(&config.LogLevel, "log-level", config.LogLevel, "Log level: debug, info, warn, error")
	flag.BoolVar(&config.Interactive, "interactive", false, "Start the interactive shell")

	flag.StringVar((*string)(&config.Link.Type), "link", string(config.Link.Type), "Coordinator link: serial, tcp, sim")
	flag.StringVar(&config.Link.Port, "serial-port", "", "Serial device of the coordinator")
	flag.IntVar(&config.Link.BaudRate, "baud", config.Link.BaudRate, "Serial baud rate")
	flag.StringVar(&config.Link.Address, "tcp-addr", "", "host:port of a DPA bridge (empty browses mDNS)")
	flag.StringVar(&config.Link.Bridge, "bridge", "", "mDNS instance name of the DPA bridge")
	flag.DurationVar(&config.Link.Timeout, "timeout", 0, "Timeout of one DPA exchange (0 uses the link default)")
	flag.DurationVar(&config.Link.FrcTimeout, "frc-timeout", config.Link.FrcTimeout, "Timeout of one FRC send")
	flag.IntVar(&config.Link.SimNodes, "sim-nodes", config.Link.SimNodes, "Number of simulated bonded nodes")
	flag.StringVar(&config.Link.SimDpaVersion, "sim-dpa", config.Link.SimDpaVersion, "DPA version of the simulated network")
	flag.StringVar(&config.Link.SimListen, "sim-listen", "", "Also serve the simulator as a TCP DPA bridge")

	flag.StringVar(&config.API.Listen, "listen", config.API.Listen, "HTTP API listen address (empty disables)")
	flag.StringVar(&config.Capture.File, "capture", "", "Protocol capture file (CBOR)")
	flag.BoolVar(&config.Capture.Slog, "capture-log", false, "Also log protocol events at debug level")
	flag.StringVar(&config.Journal.File, "journal", config.Journal.File, "FRC unwind journal file (empty disables)")
	flag.StringVar(&config.History.Database, "history-db", config.History.Database, "Write history database (empty disables)")
	flag.DurationVar(&config.History.Retention, "history-retention", config.History.Retention, "Age after which history is pruned")

	flag.BoolVar(&config.Discovery.Enabled, "mdns", false, "Advertise the gateway via mDNS")
	flag.StringVar(&config.Discovery.Instance, "mdns-name", "", "mDNS instance name (default derived from hostname)")
	flag.StringVar(&config.Discovery.Interface, "mdns-iface", "", "Network interface for mDNS (default all)")
}

func main() {
	flag.Parse()
	if config.ConfigFile != "" {
		if err := loadConfigFile(config.ConfigFile, &config); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		// Explicit flags win over the file.
		flag.Parse()
	}

	if err := validateConfig(&config); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	level, _ := parseLogLevel(config.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sh *shell
	var logOut io.Writer = os.Stderr
	if config.Interactive {
		var err error
		sh, err = newShell()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		logOut = sh.Stderr()
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))

	logger.Info("IQRF configuration gateway", "version", Version, "link", config.Link.Type)

	gw, err := newGateway(config, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	if err := gw.start(); err != nil {
		logger.Error("startup failed", "error", err)
		gw.close()
		os.Exit(1)
	}

	if sh != nil {
		go sh.Run(ctx, cancel, gw)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("received signal", "signal", sig.String())
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	gw.close()
}
