package trconf

import (
	"context"
	"fmt"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/dpa"
)

// ProtocolSnapshot is the protocol state captured once per write.
type ProtocolSnapshot struct {
	// CoordinatorVersion is the DPA version reported by the coordinator.
	CoordinatorVersion uint16

	// DpaVersion selects the encoding rules. It is the version of the
	// written node for unicast writes and the coordinator's otherwise.
	DpaVersion uint16

	// Peripherals is the coordinator's embedded peripheral bitmap.
	Peripherals [4]byte
}

// AtLeast reports whether the encoding version is v or later.
func (p ProtocolSnapshot) AtLeast(v uint16) bool {
	return p.DpaVersion >= v
}

// HasPeripheral reports whether the coordinator has the peripheral enabled.
func (p ProtocolSnapshot) HasPeripheral(pnum uint8) bool {
	return dpa.PerInfo{EmbeddedPers: p.Peripherals}.HasPeripheral(pnum)
}

// VersionString formats the encoding version as "4.10".
func (p ProtocolSnapshot) VersionString() string {
	return FormatVersion(p.DpaVersion)
}

// FormatVersion formats a DPA version word as major.minor in hex digits.
func FormatVersion(v uint16) string {
	return fmt.Sprintf("%x.%02x", v>>8, v&0xFF)
}

// probeCoordinator enumerates the coordinator. It fails unless the
// COORDINATOR and OS peripherals are present.
func probeCoordinator(ctx context.Context, s *session) (ProtocolSnapshot, error) {
	rsp, out := s.exchangeRepeat(ctx, dpa.PerInfoRequest(dpa.CoordinatorAddress))
	if !out.OK() {
		return ProtocolSnapshot{}, newError(KindCapability, "coordinator peripheral enumeration failed", out.Err)
	}
	info, err := dpa.ParsePerInfo(rsp.PData)
	if err != nil {
		return ProtocolSnapshot{}, newError(KindCapability, "coordinator peripheral enumeration failed", err)
	}
	if !info.HasPeripheral(dpa.PNUMCoordinator) {
		return ProtocolSnapshot{}, newError(KindCapability, "Coordinator peripheral NOT found.", nil)
	}
	if !info.HasPeripheral(dpa.PNUMOS) {
		return ProtocolSnapshot{}, newError(KindCapability, "OS peripheral NOT found.", nil)
	}
	snap := ProtocolSnapshot{
		CoordinatorVersion: info.DpaVersion,
		DpaVersion:         info.DpaVersion,
		Peripherals:        info.EmbeddedPers,
	}
	s.debugLog("coordinator probed", "dpa", FormatVersion(info.DpaVersion))
	return snap, nil
}

// probeNode replaces the encoding version with the version of nadr.
func probeNode(ctx context.Context, s *session, nadr uint16, snap *ProtocolSnapshot) error {
	rsp, out := s.exchangeRepeat(ctx, dpa.PerInfoRequest(nadr))
	if !out.OK() {
		return newError(errorKind(out.Err), fmt.Sprintf("node %d peripheral enumeration failed", nadr), out.Err)
	}
	info, err := dpa.ParsePerInfo(rsp.PData)
	if err != nil {
		return newError(KindProtocol, fmt.Sprintf("node %d peripheral enumeration failed", nadr), err)
	}
	snap.DpaVersion = info.DpaVersion
	s.debugLog("node probed", "nadr", nadr, "dpa", FormatVersion(info.DpaVersion))
	return nil
}

// readBand reads the coordinator RF band.
func readBand(ctx context.Context, s *session) (dpa.RFBand, error) {
	rsp, out := s.exchangeRepeat(ctx, dpa.ReadCfgRequest(dpa.CoordinatorAddress))
	if !out.OK() {
		return 0, newError(errorKind(out.Err), "read coordinator configuration failed", out.Err)
	}
	cfg, err := dpa.ParseHWPConfiguration(rsp.PData)
	if err != nil {
		return 0, newError(KindProtocol, "read coordinator configuration failed", err)
	}
	band, err := cfg.RFBand()
	if err != nil {
		return 0, newError(KindRFBand, "coordinator RF band unknown", err)
	}
	return band, nil
}
