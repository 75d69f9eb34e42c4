package discovery

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/dpa"
)

// Service type constants for mDNS.
const (
	// ServiceTypeGateway is the service type of the gateway HTTP API.
	ServiceTypeGateway = "_iqrfgw._tcp"

	// ServiceTypeBridge is the service type of TCP DPA bridges.
	ServiceTypeBridge = "_iqrfdpa._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultGatewayPort is the default HTTP API port.
	DefaultGatewayPort = 8080

	// DefaultBridgePort is the default TCP bridge port.
	DefaultBridgePort = 10000
)

// TXT record key constants.
const (
	TXTKeyVersion    = "ver"  // Software version
	TXTKeyAPI        = "api"  // API base path (gateway)
	TXTKeyBand       = "band" // RF band in MHz (optional)
	TXTKeyDpaVersion = "dpa"  // DPA version, four hex digits (bridge, optional)
	TXTKeyModuleID   = "id"   // Coordinator module ID (bridge, optional)
)

// Timing constants.
const (
	// BrowseTimeout is the default timeout for mDNS browsing.
	BrowseTimeout = 10 * time.Second

	// DefaultTTL is the default DNS record TTL.
	DefaultTTL = 120 * time.Second
)

// Limits.
const (
	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63

	// MaxTXTRecordSize is the maximum total TXT record size.
	MaxTXTRecordSize = 400
)

// Discovery errors.
var (
	ErrInvalidTXTRecord    = errors.New("invalid TXT record format")
	ErrMissingRequired     = errors.New("missing required field")
	ErrInstanceNameTooLong = errors.New("instance name exceeds 63 characters")
	ErrEmptyInstanceName   = errors.New("instance name is empty")
	ErrNotFound            = errors.New("service not found")
	ErrNotAdvertising      = errors.New("not advertising")
)

// GatewayInfo describes the advertised gateway.
type GatewayInfo struct {
	// InstanceName is the DNS-SD instance name.
	InstanceName string

	// Port is the HTTP API port. Zero selects DefaultGatewayPort.
	Port uint16

	// Version is the gateway version.
	Version string

	// APIPath is the API base path, e.g. "/api/v1".
	APIPath string

	// Band is the coordinator RF band, zero when unknown.
	Band dpa.RFBand
}

// BridgeInfo is the TXT content of a DPA bridge.
type BridgeInfo struct {
	Version    string
	DpaVersion uint16
	Band       dpa.RFBand
	ModuleID   string
}

// BridgeService is a discovered DPA bridge.
type BridgeService struct {
	BridgeInfo

	InstanceName string
	Host         string
	Port         uint16
	Addresses    []string
}

// Address returns host:port of the first address, or of the host name
// when no address was resolved.
func (s *BridgeService) Address() string {
	host := s.Host
	if len(s.Addresses) > 0 {
		host = s.Addresses[0]
	}
	return net.JoinHostPort(host, strconv.Itoa(int(s.Port)))
}

// ServiceEntry is a resolved DNS-SD entry, independent of the mDNS library.
type ServiceEntry struct {
	Instance  string
	Host      string
	Port      int
	Text      []string
	Addresses []string
}

// Advertiser advertises the gateway.
type Advertiser interface {
	// AdvertiseGateway starts advertising the gateway, replacing a previous
	// advertisement.
	AdvertiseGateway(ctx context.Context, info *GatewayInfo) error

	// UpdateGateway updates the TXT records of the advertisement.
	UpdateGateway(info *GatewayInfo) error

	// StopAll stops all advertisements.
	StopAll()
}

// Browser finds DPA bridges.
type Browser interface {
	// BrowseBridges streams bridges until ctx is done. Entries of one
	// instance seen on several interfaces are reported once.
	BrowseBridges(ctx context.Context) (<-chan *BridgeService, error)

	// FindBridge returns the first bridge named instance, or the first
	// bridge at all when instance is empty.
	FindBridge(ctx context.Context, instance string) (*BridgeService, error)
}

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// TTL is the DNS record TTL.
	// Default: 120 seconds.
	TTL time.Duration
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{TTL: DefaultTTL}
}

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// BrowseTimeout bounds FindBridge when ctx has no deadline.
	// Default: 10 seconds.
	BrowseTimeout time.Duration

	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{BrowseTimeout: BrowseTimeout}
}
