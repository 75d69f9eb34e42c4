package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/internal/meshsim"
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/api"
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/connection"
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/discovery"
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/log"
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/persistence"
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/transport"
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/trconf"
)

// gateway owns every long-lived component of the daemon.
type gateway struct {
	cfg    Config
	logger *slog.Logger

	capture *log.FileLogger
	plog    log.Logger

	sim    *meshsim.Network
	bridge *meshsim.Bridge

	conn       *transport.Conn
	supervisor *connection.Supervisor
	arbiter    *transport.Arbiter
	writerCfg  trconf.Config
	writer     *trconf.Writer
	journal    trconf.Journal
	history    *persistence.HistoryStore

	server     *api.Server
	httpServer *http.Server
	apiAddr    net.Addr
	advertiser *discovery.MDNSAdvertiser

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func newGateway(cfg Config, logger *slog.Logger) (*gateway, error) {
	ctx, cancel := context.WithCancel(context.Background())
	g := &gateway{cfg: cfg, logger: logger, ctx: ctx, cancel: cancel, plog: log.NoopLogger{}}

	if err := g.setupCapture(); err != nil {
		cancel()
		return nil, err
	}

	if cfg.Link.Type == LinkSim {
		version, err := parseDpaVersion(cfg.Link.SimDpaVersion)
		if err != nil {
			g.close()
			return nil, err
		}
		g.sim = meshsim.NewWithNodes(version, cfg.Link.SimNodes)
		g.bridge = &meshsim.Bridge{Network: g.sim, Logger: logger}
	}

	g.conn = transport.NewConn(transport.ConnConfig{
		DefaultTimeout: cfg.Link.Timeout,
		OnLinkDown: func(err error) {
			logger.Warn("coordinator link lost", "error", err)
			g.supervisor.NotifyLinkLost(err)
		},
		Logger:         logger,
		ProtocolLogger: g.plog,
	})
	g.supervisor = connection.NewSupervisor(g.conn, g.dialer(), connection.SupervisorConfig{
		Backoff:       connection.ProfileFor(cfg.Link.Type.linkKind()),
		DialTimeout:   cfg.Link.DialTimeout,
		OnStateChange: g.onLinkState,
		Logger:        logger,
	})
	g.arbiter = transport.NewArbiter(g.conn, transport.ArbiterConfig{
		Logger:         logger,
		ProtocolLogger: g.plog,
	})

	if cfg.Journal.File != "" {
		g.journal = persistence.NewJournalStore(cfg.Journal.File)
	}
	g.writerCfg = trconf.Config{
		Timeout:        cfg.Link.Timeout,
		FrcTimeout:     cfg.Link.FrcTimeout,
		Journal:        g.journal,
		Logger:         logger,
		ProtocolLogger: g.plog,
	}
	g.writer = trconf.NewWriter(g.arbiter, g.writerCfg)

	apiCfg := api.DefaultConfig()
	apiCfg.Version = Version
	if cfg.API.MaxBodyBytes > 0 {
		apiCfg.MaxBodyBytes = cfg.API.MaxBodyBytes
	}
	apiCfg.Link = g.conn
	apiCfg.Logger = logger

	var history api.History
	if cfg.History.Database != "" {
		store, err := persistence.NewHistoryStore(cfg.History.Database)
		if err != nil {
			g.close()
			return nil, fmt.Errorf("open history: %w", err)
		}
		g.history = store
		history = store
	}
	g.server = api.NewServer(g.writer, history, apiCfg)
	return g, nil
}

func (g *gateway) setupCapture() error {
	var loggers []log.Logger
	if g.cfg.Capture.File != "" {
		fl, err := log.NewFileLogger(g.cfg.Capture.File)
		if err != nil {
			return fmt.Errorf("open capture: %w", err)
		}
		g.capture = fl
		loggers = append(loggers, fl)
	}
	if g.cfg.Capture.Slog {
		loggers = append(loggers, log.NewSlogAdapter(g.logger))
	}
	switch len(loggers) {
	case 0:
	case 1:
		g.plog = loggers[0]
	default:
		g.plog = log.NewMultiLogger(loggers...)
	}
	return nil
}

// dialer returns the link factory for the configured link type.
func (g *gateway) dialer() connection.DialFunc {
	lc := g.cfg.Link
	switch lc.Type {
	case LinkSerial:
		return func(context.Context) (transport.Link, error) {
			link, err := transport.OpenSerial(transport.SerialConfig{
				Port:     lc.Port,
				BaudRate: lc.BaudRate,
				Logger:   g.plog,
			})
			if err != nil {
				return nil, err
			}
			return link, nil
		}

	case LinkTCP:
		return func(ctx context.Context) (transport.Link, error) {
			addr := lc.Address
			if addr == "" {
				browser := discovery.NewMDNSBrowser(discovery.BrowserConfig{
					BrowseTimeout: lc.DialTimeout,
					Interface:     g.cfg.Discovery.Interface,
				})
				svc, err := browser.FindBridge(ctx, lc.Bridge)
				if err != nil {
					return nil, fmt.Errorf("locate DPA bridge: %w", err)
				}
				addr = svc.Address()
				g.logger.Info("found DPA bridge", "instance", svc.InstanceName, "addr", addr, "dpa", trconf.FormatVersion(svc.DpaVersion))
			}
			link, err := transport.DialTCP(ctx, addr, lc.DialTimeout, g.plog)
			if err != nil {
				return nil, err
			}
			return link, nil
		}

	default:
		return func(context.Context) (transport.Link, error) {
			client, server := net.Pipe()
			g.wg.Add(1)
			go func() {
				defer g.wg.Done()
				defer server.Close()
				_ = g.bridge.ServeConn(g.ctx, server)
			}()
			return transport.NewStreamLink("sim", client, g.plog), nil
		}
	}
}

func (g *gateway) onLinkState(prev, next connection.State) {
	g.logger.Info("link state", "from", prev, "to", next)
	if next == connection.StateConnected && g.journal != nil {
		g.wg.Add(1)
		go func() {
			defer g.wg.Done()
			g.recoverJournal()
		}()
	}
}

// recoverJournal restores FRC settings left behind by an interrupted write.
func (g *gateway) recoverJournal() {
	ctx, cancel := context.WithTimeout(g.ctx, 30*time.Second)
	defer cancel()

	replayed, err := trconf.Recover(ctx, g.arbiter, g.journal, g.writerCfg)
	switch {
	case err != nil:
		g.logger.Error("FRC recovery failed", "error", err)
	case replayed:
		g.logger.Info("FRC settings restored from journal")
	}
}

// start dials the link and starts serving. A failed first dial is logged;
// the supervisor keeps retrying.
func (g *gateway) start() error {
	if g.cfg.Link.Type == LinkSim && g.cfg.Link.SimListen != "" {
		ln, err := net.Listen("tcp", g.cfg.Link.SimListen)
		if err != nil {
			return fmt.Errorf("listen simulator bridge: %w", err)
		}
		g.wg.Add(1)
		go func() {
			defer g.wg.Done()
			if err := g.bridge.Serve(g.ctx, ln); err != nil {
				g.logger.Error("simulator bridge stopped", "error", err)
			}
		}()
		g.logger.Info("simulator bridge listening", "addr", ln.Addr().String())
	}

	if err := g.supervisor.Start(g.ctx); err != nil {
		g.logger.Warn("initial link dial failed, retrying in background", "error", err)
	}

	if g.history != nil && g.cfg.History.Retention > 0 {
		g.wg.Add(1)
		go g.pruneHistory()
	}

	if g.cfg.API.Listen != "" {
		ln, err := net.Listen("tcp", g.cfg.API.Listen)
		if err != nil {
			return fmt.Errorf("listen API: %w", err)
		}
		g.apiAddr = ln.Addr()
		g.httpServer = &http.Server{
			Handler:           g.server,
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.wg.Add(1)
		go func() {
			defer g.wg.Done()
			if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				g.logger.Error("HTTP server stopped", "error", err)
			}
		}()
		g.logger.Info("HTTP API listening", "addr", ln.Addr().String())
	}

	if g.cfg.Discovery.Enabled {
		g.advertiser = discovery.NewMDNSAdvertiser(discovery.AdvertiserConfig{
			Interface: g.cfg.Discovery.Interface,
			TTL:       discovery.DefaultTTL,
		})
		info := &discovery.GatewayInfo{
			InstanceName: g.instanceName(),
			Port:         listenPort(g.cfg.API.Listen),
			Version:      Version,
			APIPath:      apiBasePath,
		}
		if err := g.advertiser.AdvertiseGateway(g.ctx, info); err != nil {
			g.logger.Warn("mDNS advertising failed", "error", err)
		} else {
			g.logger.Info("advertising gateway", "instance", info.InstanceName, "service", discovery.ServiceTypeGateway)
		}
	}
	return nil
}

func (g *gateway) instanceName() string {
	if g.cfg.Discovery.Instance != "" {
		return g.cfg.Discovery.Instance
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "iqrf-gateway"
	}
	return "iqrf-gateway-" + host
}

func (g *gateway) pruneHistory() {
	defer g.wg.Done()

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		n, err := g.history.Prune(time.Now().Add(-g.cfg.History.Retention))
		if err != nil {
			g.logger.Warn("history prune failed", "error", err)
		} else if n > 0 {
			g.logger.Debug("history pruned", "records", n)
		}
		select {
		case <-g.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// close stops everything in reverse start order. It is idempotent.
func (g *gateway) close() {
	g.closeOnce.Do(g.shutdown)
}

func (g *gateway) shutdown() {
	if g.advertiser != nil {
		g.advertiser.StopAll()
	}
	if g.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := g.httpServer.Shutdown(ctx); err != nil {
			g.logger.Warn("HTTP shutdown", "error", err)
		}
		cancel()
	}
	if g.supervisor != nil {
		g.supervisor.Close()
	}
	if g.conn != nil {
		_ = g.conn.Close()
	}
	g.cancel()
	g.wg.Wait()

	if g.history != nil {
		_ = g.history.Close()
	}
	if g.capture != nil {
		written, failed := g.capture.Stats()
		g.logger.Info("capture closed", "path", g.capture.Path(), "events", written, "failed", failed)
		_ = g.capture.Close()
	}
}
