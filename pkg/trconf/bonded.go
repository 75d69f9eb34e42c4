package trconf

import (
	"context"
	"slices"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/dpa"
)

// BondedSet is the ascending list of bonded node addresses.
type BondedSet []uint16

// Contains reports whether addr is bonded. The coordinator always is.
func (b BondedSet) Contains(addr uint16) bool {
	if addr == dpa.CoordinatorAddress {
		return true
	}
	_, found := slices.BinarySearch(b, addr)
	return found
}

// Nodes returns the bonded addresses without the coordinator.
func (b BondedSet) Nodes() []uint16 {
	out := make([]uint16, 0, len(b))
	for _, a := range b {
		if a != dpa.CoordinatorAddress {
			out = append(out, a)
		}
	}
	return out
}

// resolveBonded reads the bonded devices bitmap from the coordinator.
func resolveBonded(ctx context.Context, s *session) (BondedSet, error) {
	rsp, out := s.exchangeRepeat(ctx, dpa.BondedDevicesRequest())
	if !out.OK() {
		return nil, newError(KindGetBondedNodes, "get bonded nodes failed", out.Err)
	}
	nodes, err := dpa.ParseBondedDevices(rsp.PData)
	if err != nil {
		return nil, newError(KindGetBondedNodes, "get bonded nodes failed", err)
	}
	s.debugLog("bonded nodes resolved", "count", len(nodes))
	return BondedSet(nodes), nil
}
