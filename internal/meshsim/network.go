package meshsim

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/dpa"
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/transport"
)

// Fault makes matching requests fail.
type Fault struct {
	NADR uint16
	PNUM uint8
	PCMD uint8

	// Times is the number of exchanges affected. Negative means forever.
	Times int

	// Code is the ErrN returned. ErrorNone simulates a timeout.
	Code dpa.ErrorCode
}

func (f *Fault) matches(req dpa.Request) bool {
	return f.Times != 0 && f.NADR == req.NADR && f.PNUM == req.PNUM && f.PCMD == req.PCMD
}

// Network is a simulated coordinator with bonded nodes.
type Network struct {
	mu sync.Mutex

	coord *Node
	nodes map[uint16]*Node

	frcParams   uint8
	frcStatus   []uint8
	frcSendLen  int
	lastFrcData []byte
	faults      []*Fault
	requests    []dpa.Request
}

// New creates a network whose coordinator runs dpaVersion.
func New(dpaVersion uint16) *Network {
	return &Network{
		coord: NewNode(dpa.CoordinatorAddress, dpaVersion),
		nodes: make(map[uint16]*Node),
	}
}

// NewWithNodes creates a network with nodes 1..count, all on dpaVersion.
func NewWithNodes(dpaVersion uint16, count int) *Network {
	n := New(dpaVersion)
	for addr := 1; addr <= count; addr++ {
		n.Bond(NewNode(uint16(addr), dpaVersion))
	}
	return n
}

// Coordinator returns the coordinator node.
func (n *Network) Coordinator() *Node { return n.coord }

// Bond adds a node to the network.
func (n *Network) Bond(node *Node) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nodes[node.Addr] = node
}

// Node returns a bonded node, or nil.
func (n *Network) Node(addr uint16) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	if addr == dpa.CoordinatorAddress {
		return n.coord
	}
	return n.nodes[addr]
}

// Bonded returns the bonded node addresses in ascending order.
func (n *Network) Bonded() []uint16 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.bondedLocked()
}

func (n *Network) bondedLocked() []uint16 {
	out := make([]uint16, 0, len(n.nodes))
	for addr := range n.nodes {
		out = append(out, addr)
	}
	slices.Sort(out)
	return out
}

// SetFrcParams sets the coordinator FRC parameters.
func (n *Network) SetFrcParams(p uint8) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.frcParams = p
}

// FrcParams returns the coordinator FRC parameters.
func (n *Network) FrcParams() uint8 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.frcParams
}

// QueueFrcStatus makes the next FRC sends report the given status bytes.
func (n *Network) QueueFrcStatus(status ...uint8) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.frcStatus = append(n.frcStatus, status...)
}

// TruncateFrcSend limits the FRC data of FRC Send responses to size
// bytes, as some coordinators answer with less than the full 55 bytes.
// Zero restores full responses.
func (n *Network) TruncateFrcSend(size int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.frcSendLen = size
}

// Inject adds a fault.
func (n *Network) Inject(f Fault) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.faults = append(n.faults, &f)
}

// Requests returns every request received, in order.
func (n *Network) Requests() []dpa.Request {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.requests)
}

// Count returns the number of requests received for pnum/pcmd.
func (n *Network) Count(pnum, pcmd uint8) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, r := range n.requests {
		if r.PNUM == pnum && r.PCMD == pcmd {
			c++
		}
	}
	return c
}

// Reset clears the request log.
func (n *Network) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.requests = nil
}

// Exchange implements transport.Channel.
func (n *Network) Exchange(ctx context.Context, req dpa.Request, timeout time.Duration) (transport.Transaction, error) {
	raw, err := req.MarshalBinary()
	if err != nil {
		return transport.Transaction{}, err
	}
	tx := transport.Transaction{Request: raw, RequestTs: time.Now()}
	if err := ctx.Err(); err != nil {
		return tx, err
	}

	rsp, ok := n.handle(req)
	if !ok {
		return tx, fmt.Errorf("%w (nadr=%d pnum=%#02x pcmd=%#02x)", transport.ErrTimeout, req.NADR, req.PNUM, req.PCMD)
	}
	if req.NADR != dpa.CoordinatorAddress && req.NADR != dpa.LocalAddress {
		conf := dpa.Response{
			NADR: req.NADR, PNUM: req.PNUM, PCMD: req.PCMD, HWPID: req.HWPID,
			ErrN: dpa.StatusConfirmation, DpaValue: 1, PData: []byte{0x01, 0x08},
		}
		tx.Confirmation, _ = conf.MarshalBinary()
		tx.ConfirmationTs = time.Now()
	}
	tx.Response, _ = rsp.MarshalBinary()
	tx.ResponseTs = time.Now()
	tx.Parsed = rsp
	return tx, rsp.Err()
}

// handle returns the response, or false when nothing answers.
func (n *Network) handle(req dpa.Request) (dpa.Response, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.requests = append(n.requests, req)

	rsp := dpa.Response{NADR: req.NADR, PNUM: req.PNUM, PCMD: req.PCMD, HWPID: req.HWPID}

	for _, f := range n.faults {
		if !f.matches(req) {
			continue
		}
		if f.Times > 0 {
			f.Times--
		}
		if f.Code == dpa.ErrorNone {
			return rsp, false
		}
		rsp.ErrN = f.Code
		return rsp, true
	}

	var node *Node
	if req.NADR == dpa.CoordinatorAddress || req.NADR == dpa.LocalAddress {
		node = n.coord
	} else {
		node = n.nodes[req.NADR]
	}
	if node == nil || node.Unreachable {
		return rsp, false
	}
	if req.HWPID != dpa.HWPIDDoNotCheck && req.HWPID != node.HWPID {
		rsp.ErrN = dpa.ErrorHWPID
		return rsp, true
	}

	var code dpa.ErrorCode
	rsp.PData, code = n.dispatch(node, req)
	rsp.ErrN = code
	if code != dpa.ErrorNone {
		rsp.PData = nil
	}
	return rsp, true
}

func (n *Network) dispatch(node *Node, req dpa.Request) ([]byte, dpa.ErrorCode) {
	switch {
	case req.PNUM == dpa.PNUMEnumeration && req.PCMD == dpa.CmdGetPerInfo:
		return node.perInfo().Payload(), dpa.ErrorNone

	case req.PNUM == dpa.PNUMOS:
		return n.os(node, req)

	case req.PNUM == dpa.PNUMCoordinator && node == n.coord:
		if req.PCMD != dpa.CmdCoordinatorBondedDevices {
			return nil, dpa.ErrorPCMD
		}
		return dpa.BondedDevicesPayload(n.bondedLocked()), dpa.ErrorNone

	case req.PNUM == dpa.PNUMFRC && node == n.coord:
		if !n.frcAvailable() {
			return nil, dpa.ErrorPNUM
		}
		return n.frc(req)
	}
	return nil, dpa.ErrorPNUM
}

func (n *Network) os(node *Node, req dpa.Request) ([]byte, dpa.ErrorCode) {
	switch req.PCMD {
	case dpa.CmdOSReadCfg:
		return node.readConfig(), dpa.ErrorNone
	case dpa.CmdOSWriteCfgByte:
		bytes, err := dpa.ParseConfigBytes(req.PData)
		if err != nil {
			return nil, dpa.ErrorDataLen
		}
		return nil, node.writeTriplets(bytes)
	case dpa.CmdOSWriteCfg:
		return nil, node.writeConfig(req.PData)
	case dpa.CmdOSSetSecurity:
		return nil, node.setSecurity(req.PData)
	}
	return nil, dpa.ErrorPCMD
}

// frcAvailable reports whether the coordinator FRC peripheral is usable.
func (n *Network) frcAvailable() bool {
	return n.coord.DpaVersion >= dpa.Version(4, 0) || n.coord.Config.FrcEnabled()
}

func (n *Network) frc(req dpa.Request) ([]byte, dpa.ErrorCode) {
	switch req.PCMD {
	case dpa.CmdFRCSetParams:
		if len(req.PData) != 1 {
			return nil, dpa.ErrorDataLen
		}
		prev := n.frcParams
		n.frcParams = req.PData[0]
		return []byte{prev}, dpa.ErrorNone

	case dpa.CmdFRCSendSelective:
		sel, err := dpa.ParseFrcSendSelective(req.PData)
		if err != nil {
			return nil, dpa.ErrorDataLen
		}
		if sel.FrcCommand != dpa.FrcAcknowledgedBroadcastBits {
			return nil, dpa.ErrorData
		}
		return n.acknowledgedBroadcast(sel)

	case dpa.CmdFRCExtraResult:
		if len(n.lastFrcData) < dpa.FrcDataLen {
			return nil, dpa.ErrorGeneral
		}
		return slices.Clone(n.lastFrcData[dpa.FrcSendDataLen:dpa.FrcDataLen]), dpa.ErrorNone
	}
	return nil, dpa.ErrorPCMD
}

func (n *Network) acknowledgedBroadcast(sel dpa.FrcSendSelective) ([]byte, dpa.ErrorCode) {
	ud := sel.UserData
	if len(ud) < dpa.EmbeddedHeaderLen || int(ud[0]) != len(ud) || ud[1] != dpa.PNUMOS {
		return nil, dpa.ErrorData
	}
	embedded := dpa.Request{
		PNUM:  ud[1],
		PCMD:  ud[2],
		HWPID: uint16(ud[3]) | uint16(ud[4])<<8,
		PData: ud[dpa.EmbeddedHeaderLen:],
	}

	var planes dpa.AckPlanes
	acked := 0
	for _, addr := range sel.SelectedNodes {
		node := n.nodes[addr]
		if node == nil {
			continue
		}
		reply := FrcAuto
		if len(node.FrcScript) > 0 {
			reply, node.FrcScript = node.FrcScript[0], node.FrcScript[1:]
		}
		if reply == FrcAuto {
			switch {
			case node.Unreachable:
				reply = FrcSilent
			case embedded.HWPID != dpa.HWPIDDoNotCheck && embedded.HWPID != node.HWPID:
				reply = FrcMismatch
			default:
				reply = FrcAck
			}
		}
		switch reply {
		case FrcAck:
			embedded.NADR = addr
			if _, code := n.os(node, embedded); code != dpa.ErrorNone {
				planes.Set(addr, false, true)
				continue
			}
			planes.Set(addr, true, true)
			acked++
		case FrcMismatch:
			planes.Set(addr, false, true)
		}
	}
	n.lastFrcData = planes.Bytes()

	status := uint8(acked)
	if len(n.frcStatus) > 0 {
		status, n.frcStatus = n.frcStatus[0], n.frcStatus[1:]
	}
	data := n.lastFrcData[:dpa.FrcSendDataLen]
	if n.frcSendLen > 0 && n.frcSendLen < len(data) {
		data = data[:n.frcSendLen]
	}
	out := make([]byte, 0, 1+len(data))
	out = append(out, status)
	return append(out, data...), dpa.ErrorNone
}

var _ transport.Channel = (*Network)(nil)
