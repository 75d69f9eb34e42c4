package trconf

import (
	"slices"
	"time"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/dpa"
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/transport"
)

// WriteOutcome is the per-node result of a write.
type WriteOutcome uint8

// Node outcomes.
const (
	NodeNoError WriteOutcome = iota
	NodeWriteFailed
	NodeSecurityPasswordFailed
	NodeSecurityUserKeyFailed
	NodeNotBonded
)

// String returns the outcome name.
func (o WriteOutcome) String() string {
	switch o {
	case NodeNoError:
		return "NoError"
	case NodeWriteFailed:
		return "Write"
	case NodeSecurityPasswordFailed:
		return "SecurityPassword"
	case NodeSecurityUserKeyFailed:
		return "SecurityUserKey"
	case NodeNotBonded:
		return "NodeNotBonded"
	default:
		return "Unknown"
	}
}

// NodeResult is the outcome for one node.
type NodeResult struct {
	Addr    uint16
	Outcome WriteOutcome
	Message string

	// Bytes counts the config bytes the node acknowledged.
	Bytes int
}

// Result is the outcome of one write operation.
type Result struct {
	DeviceAddr uint16
	HWPID      uint16
	Broadcast  bool
	Snapshot   ProtocolSnapshot

	WriteSuccess  bool
	RestartNeeded bool

	// Broadcast classification. Empty for unicast writes.
	Matched      []uint16
	NotMatched   []uint16
	NotResponded []uint16

	// Nodes holds one entry per addressed node, in ascending order.
	Nodes []NodeResult

	// ConfigBytes are the bytes the write carried.
	ConfigBytes []dpa.ConfigByte

	// Transactions is every exchange performed, in order.
	Transactions []transport.Transaction

	Started  time.Time
	Finished time.Time
}

// Failed returns the nodes with an outcome other than NoError.
func (r *Result) Failed() []NodeResult {
	var out []NodeResult
	for _, n := range r.Nodes {
		if n.Outcome != NodeNoError {
			out = append(out, n)
		}
	}
	return out
}

// Node returns the result of one node.
func (r *Result) Node(addr uint16) (NodeResult, bool) {
	i := slices.IndexFunc(r.Nodes, func(n NodeResult) bool { return n.Addr == addr })
	if i < 0 {
		return NodeResult{}, false
	}
	return r.Nodes[i], true
}

// resultBuilder is owned by one write and produces its Result.
type resultBuilder struct {
	res   Result
	nodes map[uint16]*NodeResult
	acks  ackTracker

	// population is the broadcast target set.
	population []uint16
}

func newResultBuilder(deviceAddr, hwpid uint16) *resultBuilder {
	return &resultBuilder{
		res: Result{
			DeviceAddr: deviceAddr,
			HWPID:      hwpid,
			Broadcast:  deviceAddr == dpa.BroadcastAddress,
			Started:    time.Now(),
		},
		nodes: make(map[uint16]*NodeResult),
		acks:  make(ackTracker),
	}
}

func (b *resultBuilder) addTransaction(tx transport.Transaction) {
	b.res.Transactions = append(b.res.Transactions, tx)
}

func (b *resultBuilder) node(addr uint16) *NodeResult {
	n, ok := b.nodes[addr]
	if !ok {
		n = &NodeResult{Addr: addr}
		b.nodes[addr] = n
	}
	return n
}

// acked counts acknowledged config bytes for addr.
func (b *resultBuilder) acked(addr uint16, bytes int) {
	b.node(addr).Bytes += bytes
}

// fail records the first failure of addr.
func (b *resultBuilder) fail(addr uint16, outcome WriteOutcome, msg string) {
	n := b.node(addr)
	if n.Outcome == NodeNoError {
		n.Outcome, n.Message = outcome, msg
	}
}

func (b *resultBuilder) finish(restart bool) *Result {
	res := &b.res
	res.RestartNeeded = restart
	res.Finished = time.Now()

	addrs := make([]uint16, 0, len(b.nodes))
	for a := range b.nodes {
		addrs = append(addrs, a)
	}
	slices.Sort(addrs)
	res.Nodes = make([]NodeResult, 0, len(addrs))
	for _, a := range addrs {
		res.Nodes = append(res.Nodes, *b.nodes[a])
	}

	if res.Broadcast {
		sets := b.acks.sets()
		res.Matched, res.NotMatched, res.NotResponded = sets.Matched, sets.NotMatched, sets.NotResponded
		res.WriteSuccess = BroadcastSucceeded(sets, b.population)
		if c, ok := b.nodes[dpa.CoordinatorAddress]; ok && c.Outcome != NodeNoError {
			res.WriteSuccess = false
		}
	} else {
		res.WriteSuccess = len(res.Nodes) > 0 && len(res.Failed()) == 0
	}
	return res
}

// BroadcastSucceeded applies the broadcast success rule: no node may be
// left without a response, and not every targeted node may have
// mismatched.
func BroadcastSucceeded(sets AckSets, population []uint16) bool {
	return len(sets.NotResponded) == 0 && len(sets.NotMatched) != len(population)
}
