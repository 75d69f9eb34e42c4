package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

// MDNSAdvertiser implements the Advertiser interface using zeroconf.
type MDNSAdvertiser struct {
	config AdvertiserConfig

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewMDNSAdvertiser creates a new mDNS advertiser.
func NewMDNSAdvertiser(config AdvertiserConfig) *MDNSAdvertiser {
	return &MDNSAdvertiser{config: config}
}

// getInterfaces returns the network interfaces to use for advertising.
// Returns nil to use all interfaces.
func (a *MDNSAdvertiser) getInterfaces() []net.Interface {
	return selectInterface(a.config.Interface)
}

// AdvertiseGateway starts advertising the gateway API.
func (a *MDNSAdvertiser) AdvertiseGateway(ctx context.Context, info *GatewayInfo) error {
	if err := ValidateInstanceName(info.InstanceName); err != nil {
		return err
	}
	txt := TXTRecordsToStrings(EncodeGatewayTXT(info))
	if txtSize(txt) > MaxTXTRecordSize {
		return fmt.Errorf("%w: TXT records exceed %d bytes", ErrInvalidTXTRecord, MaxTXTRecordSize)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	port := int(info.Port)
	if port == 0 {
		port = DefaultGatewayPort
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	server, err := zeroconf.Register(
		info.InstanceName,
		ServiceTypeGateway,
		Domain,
		port,
		txt,
		a.getInterfaces(),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to register gateway service: %w", err)
	}
	a.server = server
	return nil
}

// UpdateGateway replaces the TXT records of the running advertisement.
func (a *MDNSAdvertiser) UpdateGateway(info *GatewayInfo) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return ErrNotAdvertising
	}
	a.server.SetText(TXTRecordsToStrings(EncodeGatewayTXT(info)))
	return nil
}

// StopAll stops the advertisement.
func (a *MDNSAdvertiser) StopAll() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// MDNSBrowser implements the Browser interface using zeroconf.
type MDNSBrowser struct {
	config BrowserConfig
}

// NewMDNSBrowser creates a new mDNS browser.
func NewMDNSBrowser(config BrowserConfig) *MDNSBrowser {
	if config.BrowseTimeout <= 0 {
		config.BrowseTimeout = BrowseTimeout
	}
	return &MDNSBrowser{config: config}
}

// BrowseBridges searches for DPA bridges.
func (b *MDNSBrowser) BrowseBridges(ctx context.Context) (<-chan *BridgeService, error) {
	out := make(chan *BridgeService)
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	added := make(chan ServiceEntry)
	gone := make(chan ServiceEntry)
	go forwardEntries(ctx, entries, added)
	go forwardEntries(ctx, removed, gone)
	go aggregateBridges(ctx, added, gone, out)

	go func() {
		_ = zeroconf.Browse(ctx, ServiceTypeBridge, Domain, entries, removed, b.browserOptions()...)
	}()
	return out, nil
}

// FindBridge returns the first matching bridge.
func (b *MDNSBrowser) FindBridge(ctx context.Context, instance string) (*BridgeService, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.config.BrowseTimeout)
		defer cancel()
	}

	results, err := b.BrowseBridges(ctx)
	if err != nil {
		return nil, err
	}
	return firstBridge(ctx, results, instance)
}

// browserOptions returns zeroconf client options based on config.
func (b *MDNSBrowser) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if ifaces := selectInterface(b.config.Interface); ifaces != nil {
		opts = append(opts, zeroconf.SelectIfaces(ifaces))
	}
	return opts
}

func selectInterface(name string) []net.Interface {
	if name == "" {
		return nil
	}
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// forwardEntries converts zeroconf entries until in is closed or ctx is done.
func forwardEntries(ctx context.Context, in <-chan *zeroconf.ServiceEntry, out chan<- ServiceEntry) {
	defer close(out)
	for {
		select {
		case e, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- fromZeroconf(e):
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func fromZeroconf(e *zeroconf.ServiceEntry) ServiceEntry {
	addrs := make([]string, 0, len(e.AddrIPv4)+len(e.AddrIPv6))
	for _, ip := range e.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range e.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return ServiceEntry{
		Instance:  e.Instance,
		Host:      e.HostName,
		Port:      e.Port,
		Text:      e.Text,
		Addresses: addrs,
	}
}

// aggregateBridges emits each bridge instance once, merging the addresses
// of later entries and dropping instances whose addresses are all removed.
// Entries with invalid TXT records are skipped. out is closed on return.
func aggregateBridges(ctx context.Context, added, removed <-chan ServiceEntry, out chan<- *BridgeService) {
	defer close(out)

	services := make(map[string]*BridgeService)
	for {
		select {
		case entry, ok := <-added:
			if !ok {
				return
			}
			svc, err := toBridgeService(entry)
			if err != nil {
				continue
			}
			if existing, found := services[svc.InstanceName]; found {
				existing.Addresses = mergeAddresses(existing.Addresses, svc.Addresses)
				continue
			}
			services[svc.InstanceName] = svc
			select {
			case out <- svc:
			case <-ctx.Done():
				return
			}

		case entry, ok := <-removed:
			if !ok {
				removed = nil
				continue
			}
			if existing, found := services[entry.Instance]; found {
				existing.Addresses = removeAddresses(existing.Addresses, entry.Addresses)
				if len(existing.Addresses) == 0 {
					delete(services, entry.Instance)
				}
			}

		case <-ctx.Done():
			return
		}
	}
}

func firstBridge(ctx context.Context, results <-chan *BridgeService, instance string) (*BridgeService, error) {
	for {
		select {
		case svc, ok := <-results:
			if !ok {
				return nil, ErrNotFound
			}
			if instance == "" || svc.InstanceName == instance {
				return svc, nil
			}
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrNotFound, ctx.Err())
		}
	}
}

// toBridgeService converts an entry to a BridgeService.
func toBridgeService(entry ServiceEntry) (*BridgeService, error) {
	info, err := DecodeBridgeTXT(StringsToTXTRecords(entry.Text))
	if err != nil {
		return nil, err
	}
	port := entry.Port
	if port == 0 {
		port = DefaultBridgePort
	}
	return &BridgeService{
		BridgeInfo:   *info,
		InstanceName: entry.Instance,
		Host:         entry.Host,
		Port:         uint16(port),
		Addresses:    append([]string(nil), entry.Addresses...),
	}, nil
}

// mergeAddresses adds new addresses to existing list, avoiding duplicates.
func mergeAddresses(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}
	for _, addr := range added {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

// removeAddresses drops the given addresses from the list.
func removeAddresses(addresses, gone []string) []string {
	toRemove := make(map[string]bool, len(gone))
	for _, addr := range gone {
		toRemove[addr] = true
	}

	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !toRemove[addr] {
			result = append(result, addr)
		}
	}
	return result
}

// Ensure MDNSAdvertiser implements Advertiser interface.
var _ Advertiser = (*MDNSAdvertiser)(nil)

// Ensure MDNSBrowser implements Browser interface.
var _ Browser = (*MDNSBrowser)(nil)
