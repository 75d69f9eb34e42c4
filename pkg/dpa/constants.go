package dpa

// Addresses.
const (
	// CoordinatorAddress is the NADR of the network coordinator.
	CoordinatorAddress uint16 = 0x00

	// MaxNodeAddress is the highest assignable node address.
	MaxNodeAddress uint16 = 0xEF

	// LocalAddress addresses the device attached to the interface.
	LocalAddress uint16 = 0xFC

	// BroadcastAddress addresses every bonded node without acknowledgment.
	BroadcastAddress uint16 = 0xFF
)

// HWPIDDoNotCheck disables the hardware profile check on the receiving node.
const HWPIDDoNotCheck uint16 = 0xFFFF

// Frame limits.
const (
	// HeaderSize is the size of the request header in bytes.
	HeaderSize = 6

	// ResponseHeaderSize is the size of the response header including ErrN and DpaValue.
	ResponseHeaderSize = 8

	// MaxDataLength is the maximum PData length of a request or response.
	MaxDataLength = 56

	// ResponseFlag is set in PCMD of every response.
	ResponseFlag uint8 = 0x80
)

// Peripheral numbers (PNUM).
const (
	PNUMCoordinator uint8 = 0x00
	PNUMNode        uint8 = 0x01
	PNUMOS          uint8 = 0x02
	PNUMEEPROM      uint8 = 0x03
	PNUMEEEPROM     uint8 = 0x04
	PNUMRAM         uint8 = 0x05
	PNUMLEDR        uint8 = 0x06
	PNUMLEDG        uint8 = 0x07
	PNUMSPI         uint8 = 0x08
	PNUMIO          uint8 = 0x09
	PNUMThermometer uint8 = 0x0A
	PNUMPWM         uint8 = 0x0B
	PNUMUART        uint8 = 0x0C
	PNUMFRC         uint8 = 0x0D
	PNUMEnumeration uint8 = 0xFF
)

// Coordinator commands.
const (
	CmdCoordinatorBondedDevices uint8 = 0x02
)

// OS commands.
const (
	CmdOSReadCfg      uint8 = 0x02
	CmdOSWriteCfgByte uint8 = 0x09
	CmdOSSetSecurity  uint8 = 0x0C
	CmdOSWriteCfg     uint8 = 0x0F
)

// FRC commands.
const (
	CmdFRCSend          uint8 = 0x00
	CmdFRCExtraResult   uint8 = 0x01
	CmdFRCSendSelective uint8 = 0x02
	CmdFRCSetParams     uint8 = 0x03
)

// CmdGetPerInfo is sent with PNUMEnumeration.
const CmdGetPerInfo uint8 = 0x3F

// FRC commands carried in FRC Send requests.
const (
	// FrcAcknowledgedBroadcastBits makes every selected node execute the
	// embedded DPA request and report a 2-bit result.
	FrcAcknowledgedBroadcastBits uint8 = 0x02
)

// Version returns the composite DPA version word (major<<8 | minor).
func Version(major, minor uint8) uint16 {
	return uint16(major)<<8 | uint16(minor)
}
