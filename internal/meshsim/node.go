package meshsim

import (
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/dpa"
)

// FrcReply scripts how a node answers one FRC acknowledged broadcast.
type FrcReply uint8

const (
	// FrcAuto executes the embedded request when the HWPID matches.
	FrcAuto FrcReply = iota

	// FrcAck sets bit0 and bit1 and executes the embedded request.
	FrcAck

	// FrcMismatch sets bit1 only.
	FrcMismatch

	// FrcSilent sets neither bit.
	FrcSilent
)

// String returns the reply name.
func (r FrcReply) String() string {
	switch r {
	case FrcAuto:
		return "AUTO"
	case FrcAck:
		return "ACK"
	case FrcMismatch:
		return "MISMATCH"
	case FrcSilent:
		return "SILENT"
	default:
		return "UNKNOWN"
	}
}

// Default configuration of a simulated transceiver.
const (
	// DefaultPeripherals0 enables COORDINATOR, NODE, OS, EEPROM, EEEPROM, RAM, LEDR and LEDG.
	DefaultPeripherals0 uint8 = 0xFF

	// DefaultPeripherals1 enables IO and FRC.
	DefaultPeripherals1 uint8 = 0x22

	// DefaultChannelA is the main RF channel A.
	DefaultChannelA uint8 = 52
)

// Node is one simulated transceiver.
type Node struct {
	Addr       uint16
	DpaVersion uint16
	HWPID      uint16
	Band       dpa.RFBand
	Config     dpa.HWPConfiguration

	Password [dpa.SecurityKeyLen]byte
	UserKey  [dpa.SecurityKeyLen]byte

	// FrcScript is consumed one entry per FRC round selecting the node.
	// FrcAuto applies once it is exhausted.
	FrcScript []FrcReply

	// Unreachable nodes never answer unicast requests.
	Unreachable bool

	// Writes counts applied configuration writes.
	Writes int
}

// NewNode creates a node with the default configuration.
func NewNode(addr, dpaVersion uint16) *Node {
	n := &Node{
		Addr:       addr,
		DpaVersion: dpaVersion,
		HWPID:      0x0000,
		Band:       dpa.RFBand868,
	}
	n.Config.SetByte(0x01, DefaultPeripherals0)
	n.Config.SetByte(0x02, DefaultPeripherals1)
	n.Config.SetByte(0x08, 7)
	n.Config.SetByte(0x09, 5)
	n.Config.SetByte(0x11, DefaultChannelA)
	n.Config.SetByte(0x12, 2)
	n.Config.SetByte(dpa.RFPGMAddress, 0xC3)
	return n
}

// perInfo reports the enumeration derived from configuration bytes 0x01..0x04.
func (n *Node) perInfo() dpa.PerInfo {
	info := dpa.PerInfo{DpaVersion: n.DpaVersion, HWPID: n.HWPID}
	for i := range info.EmbeddedPers {
		info.EmbeddedPers[i] = n.Config.Byte(uint8(i) + 1)
	}
	return info
}

// readConfig returns the Read-HWP-Configuration payload.
func (n *Node) readConfig() []byte {
	cfg := n.Config
	cfg.Checksum = checksum(&cfg)
	out := make([]byte, 0, 2+dpa.ConfigurationLen+1)
	out = append(out, cfg.Checksum)
	out = append(out, cfg.Configuration[:]...)
	out = append(out, cfg.RFPGM)
	return append(out, bandBits(n.Band))
}

func (n *Node) writeTriplets(bytes []dpa.ConfigByte) dpa.ErrorCode {
	for _, b := range bytes {
		if b.Address < dpa.ConfigAddrFirst || b.Address > dpa.RFPGMAddress {
			return dpa.ErrorData
		}
	}
	for _, b := range bytes {
		old := n.Config.Byte(b.Address)
		n.Config.SetByte(b.Address, old&^b.Mask|b.Value&b.Mask)
	}
	n.Writes++
	return dpa.ErrorNone
}

func (n *Node) writeConfig(pdata []byte) dpa.ErrorCode {
	if len(pdata) != 1+dpa.ConfigurationLen+1 {
		return dpa.ErrorDataLen
	}
	var cfg dpa.HWPConfiguration
	copy(cfg.Configuration[:], pdata[1:1+dpa.ConfigurationLen])
	cfg.RFPGM = pdata[1+dpa.ConfigurationLen]
	if n.DpaVersion < dpa.Version(3, 3) && pdata[0] != checksum(&cfg) {
		return dpa.ErrorData
	}
	n.Config.Configuration = cfg.Configuration
	n.Config.RFPGM = cfg.RFPGM
	n.Writes++
	return dpa.ErrorNone
}

func (n *Node) setSecurity(pdata []byte) dpa.ErrorCode {
	if len(pdata) != 1+dpa.SecurityKeyLen {
		return dpa.ErrorDataLen
	}
	switch dpa.SecurityType(pdata[0]) {
	case dpa.SecurityPassword:
		copy(n.Password[:], pdata[1:])
	case dpa.SecurityUserKey:
		copy(n.UserKey[:], pdata[1:])
	default:
		return dpa.ErrorData
	}
	return dpa.ErrorNone
}

// checksum is 0x5F XOR every general configuration byte.
func checksum(cfg *dpa.HWPConfiguration) uint8 {
	sum := uint8(0x5F)
	for _, b := range cfg.Configuration {
		sum ^= b
	}
	return sum
}

func bandBits(b dpa.RFBand) uint8 {
	switch b {
	case dpa.RFBand916:
		return 0x01
	case dpa.RFBand433:
		return 0x02
	default:
		return 0x00
	}
}
