package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/connection"
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/dpa"
)

// LinkType selects how the coordinator is reached.
type LinkType string

const (
	LinkSerial LinkType = "serial"
	LinkTCP    LinkType = "tcp"
	LinkSim    LinkType = "sim"
)

// linkKind returns the redial profile of the link type.
func (t LinkType) linkKind() connection.LinkKind {
	switch t {
	case LinkSerial:
		return connection.LinkSerial
	case LinkSim:
		return connection.LinkSim
	default:
		return connection.LinkTCP
	}
}

// Config holds the gateway configuration.
type Config struct {
	ConfigFile  string `yaml:"-"`
	LogLevel    string `yaml:"logLevel"`
	Interactive bool   `yaml:"interactive"`

	Link      LinkConfig      `yaml:"link"`
	API       APIConfig       `yaml:"api"`
	Capture   CaptureConfig   `yaml:"capture"`
	Journal   JournalConfig   `yaml:"journal"`
	History   HistoryConfig   `yaml:"history"`
	Discovery DiscoveryConfig `yaml:"discovery"`
}

// LinkConfig describes the coordinator link.
type LinkConfig struct {
	Type LinkType `yaml:"type"`

	// Serial
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baudRate"`

	// TCP bridge. An empty address browses mDNS for Bridge (any bridge
	// when Bridge is empty too).
	Address string `yaml:"address"`
	Bridge  string `yaml:"bridge"`

	DialTimeout time.Duration `yaml:"dialTimeout"`
	Timeout     time.Duration `yaml:"timeout"`
	FrcTimeout  time.Duration `yaml:"frcTimeout"`

	// Simulator
	SimNodes      int    `yaml:"simNodes"`
	SimDpaVersion string `yaml:"simDpaVersion"`
	SimListen     string `yaml:"simListen"`
}

// APIConfig configures the HTTP API.
type APIConfig struct {
	Listen       string `yaml:"listen"`
	MaxBodyBytes int64  `yaml:"maxBodyBytes"`
}

// CaptureConfig configures the protocol capture file.
type CaptureConfig struct {
	File string `yaml:"file"`
	Slog bool   `yaml:"slog"`
}

// JournalConfig configures the FRC unwind journal.
type JournalConfig struct {
	File string `yaml:"file"`
}

// HistoryConfig configures the write history database.
type HistoryConfig struct {
	Database  string        `yaml:"database"`
	Retention time.Duration `yaml:"retention"`
}

// DiscoveryConfig configures mDNS.
type DiscoveryConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Instance  string `yaml:"instance"`
	Interface string `yaml:"interface"`
}

// Version is set at build time.
var Version = "dev"

const apiBasePath = "/api/v1"

func defaultConfig() Config {
	return Config{
		LogLevel: "info",
		Link: LinkConfig{
			Type:          LinkSim,
			BaudRate:      57600,
			DialTimeout:   10 * time.Second,
			FrcTimeout:    10 * time.Second,
			SimNodes:      5,
			SimDpaVersion: "4.17",
		},
		API: APIConfig{
			Listen:       ":8080",
			MaxBodyBytes: 64 << 10,
		},
		Journal: JournalConfig{File: "trconf-journal.json"},
		History: HistoryConfig{Database: "trconf-history.db", Retention: 30 * 24 * time.Hour},
	}
}

// loadConfigFile overlays the YAML file at path onto cfg. Keys missing
// from the file keep their current values.
func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func validateConfig(cfg *Config) error {
	if _, err := parseLogLevel(cfg.LogLevel); err != nil {
		return err
	}
	switch cfg.Link.Type {
	case LinkSerial:
		if cfg.Link.Port == "" {
			return fmt.Errorf("serial link needs a port")
		}
		if cfg.Link.BaudRate <= 0 {
			return fmt.Errorf("invalid baud rate %d", cfg.Link.BaudRate)
		}
	case LinkTCP:
		// Address may be empty: the bridge is then located via mDNS.
	case LinkSim:
		if cfg.Link.SimNodes < 0 || cfg.Link.SimNodes > int(dpa.MaxNodeAddress) {
			return fmt.Errorf("simulated node count must be 0-%d, got %d", dpa.MaxNodeAddress, cfg.Link.SimNodes)
		}
		if _, err := parseDpaVersion(cfg.Link.SimDpaVersion); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown link type: %q", cfg.Link.Type)
	}
	if cfg.Link.Timeout < 0 || cfg.Link.FrcTimeout < 0 || cfg.Link.DialTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if cfg.API.Listen == "" && !cfg.Interactive {
		return fmt.Errorf("nothing to serve: set -listen or -interactive")
	}
	if cfg.Discovery.Enabled && cfg.API.Listen == "" {
		return fmt.Errorf("mDNS advertising needs the HTTP API")
	}
	return nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level: %q", s)
	}
}

// parseDpaVersion parses "major.minor" with hex digits, e.g. "4.17".
func parseDpaVersion(s string) (uint16, error) {
	major, minor, ok := strings.Cut(s, ".")
	if !ok || len(minor) != 2 {
		return 0, fmt.Errorf("invalid DPA version %q, want e.g. 4.17", s)
	}
	hi, err := strconv.ParseUint(major, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid DPA version %q: %w", s, err)
	}
	lo, err := strconv.ParseUint(minor, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid DPA version %q: %w", s, err)
	}
	return dpa.Version(uint8(hi), uint8(lo)), nil
}

// listenPort extracts the port of a listen address like ":8080".
func listenPort(addr string) uint16 {
	i := strings.LastIndexByte(addr, ':')
	if i < 0 {
		return 0
	}
	p, err := strconv.ParseUint(addr[i+1:], 10, 16)
	if err != nil {
		return 0
	}
	return uint16(p)
}
