package trconf

import (
	"slices"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/dpa"
)

// AckSets classifies nodes after acknowledged broadcasts.
type AckSets struct {
	Matched      []uint16
	NotMatched   []uint16
	NotResponded []uint16
}

// ClassifyAck decodes the two bit planes for the pending nodes. A set
// bit0 means the node matched; bit1 alone means it answered with a
// selector mismatch; no bit means no response.
func ClassifyAck(p *dpa.AckPlanes, pending []uint16) AckSets {
	var s AckSets
	for _, addr := range pending {
		bit0, bit1 := p.Bits(addr)
		switch {
		case bit0:
			s.Matched = append(s.Matched, addr)
		case bit1:
			s.NotMatched = append(s.NotMatched, addr)
		default:
			s.NotResponded = append(s.NotResponded, addr)
		}
	}
	return s
}

type ackClass uint8

const (
	ackMatched ackClass = iota + 1
	ackNotMatched
	ackNotResponded
)

// ackTracker accumulates classifications across rounds and chunks.
// A node only moves towards worse classes: a mismatch is never undone
// by a later match, and a missing response overrides both.
type ackTracker map[uint16]ackClass

func (t ackTracker) observe(addrs []uint16, c ackClass) {
	for _, a := range addrs {
		if t[a] < c {
			t[a] = c
		}
	}
}

func (t ackTracker) sets() AckSets {
	var s AckSets
	addrs := make([]uint16, 0, len(t))
	for a := range t {
		addrs = append(addrs, a)
	}
	slices.Sort(addrs)
	for _, a := range addrs {
		switch t[a] {
		case ackMatched:
			s.Matched = append(s.Matched, a)
		case ackNotMatched:
			s.NotMatched = append(s.NotMatched, a)
		case ackNotResponded:
			s.NotResponded = append(s.NotResponded, a)
		}
	}
	return s
}
