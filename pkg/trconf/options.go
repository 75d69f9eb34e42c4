package trconf

import (
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/dpa"
)

// EmbeddedPeripherals enables or disables embedded peripherals.
// Nil fields are left unchanged.
type EmbeddedPeripherals struct {
	Coordinator *bool
	Node        *bool
	OS          *bool
	EEPROM      *bool
	EEEPROM     *bool
	RAM         *bool
	LEDR        *bool
	LEDG        *bool
	SPI         *bool
	IO          *bool
	Thermometer *bool
	PWM         *bool
	UART        *bool
	FRC         *bool
}

func (p *EmbeddedPeripherals) fields() []struct {
	pnum uint8
	v    *bool
} {
	return []struct {
		pnum uint8
		v    *bool
	}{
		{dpa.PNUMCoordinator, p.Coordinator},
		{dpa.PNUMNode, p.Node},
		{dpa.PNUMOS, p.OS},
		{dpa.PNUMEEPROM, p.EEPROM},
		{dpa.PNUMEEEPROM, p.EEEPROM},
		{dpa.PNUMRAM, p.RAM},
		{dpa.PNUMLEDR, p.LEDR},
		{dpa.PNUMLEDG, p.LEDG},
		{dpa.PNUMSPI, p.SPI},
		{dpa.PNUMIO, p.IO},
		{dpa.PNUMThermometer, p.Thermometer},
		{dpa.PNUMPWM, p.PWM},
		{dpa.PNUMUART, p.UART},
		{dpa.PNUMFRC, p.FRC},
	}
}

// DPA flag bits of configuration byte 0x05.
const (
	FlagCustomDpaHandler uint8 = 0x01
	FlagNodeDpaInterface uint8 = 0x02 // DPA < 4.00
	FlagDpaPeerToPeer    uint8 = 0x02 // DPA >= 4.10
	FlagDpaAutoexec      uint8 = 0x04
	FlagRoutingOff       uint8 = 0x08
	FlagIOSetup          uint8 = 0x10
	FlagPeerToPeer       uint8 = 0x20
	FlagNeverSleep       uint8 = 0x40
	FlagStdAndLpNetwork  uint8 = 0x80
)

// RFPGM bits of configuration byte 0x20.
const (
	RFPGMDualChannel        uint8 = 0x03
	RFPGMLPMode             uint8 = 0x04
	RFPGMEnableAfterReset   uint8 = 0x10
	RFPGMTerminateAfter1Min uint8 = 0x40
	RFPGMTerminateMcuPin    uint8 = 0x80
)

// Integer option limits.
const (
	TxPowerMax     = 7
	RxFilterMax    = 64
	LPRxTimeoutMin = 1
	LPRxTimeoutMax = 255
)

// UART baud rates and their configuration codes.
var baudRateCodes = map[int]uint8{
	1200:   0,
	2400:   1,
	4800:   2,
	9600:   3,
	19200:  4,
	38400:  5,
	57600:  6,
	115200: 7,
	230400: 8,
}

// BaudRateCode returns the configuration code of a UART baud rate.
func BaudRateCode(baud int) (uint8, bool) {
	c, ok := baudRateCodes[baud]
	return c, ok
}

// Options are the named configuration options of a write. Nil fields are
// not written.
type Options struct {
	EmbPers EmbeddedPeripherals

	CustomDpaHandler *bool
	NodeDpaInterface *bool
	DpaPeerToPeer    *bool
	DpaAutoexec      *bool
	RoutingOff       *bool
	IOSetup          *bool
	PeerToPeer       *bool
	NeverSleep       *bool
	StdAndLpNetwork  *bool

	RFChannelA      *int
	RFChannelB      *int
	RFSubChannelA   *int
	RFSubChannelB   *int
	TxPower         *int
	RxFilter        *int
	LPRxTimeout     *int
	RFAltDsmChannel *int
	UARTBaudRate    *int

	RFPgmDualChannel        *bool
	RFPgmLPMode             *bool
	RFPgmEnableAfterReset   *bool
	RFPgmTerminateAfter1Min *bool
	RFPgmTerminateMcuPin    *bool
}

// NeedsBand reports whether the options carry RF channels, whose range
// depends on the RF band.
func (o *Options) NeedsBand() bool {
	return o.RFChannelA != nil || o.RFChannelB != nil || o.RFSubChannelA != nil || o.RFSubChannelB != nil
}

// Empty reports whether no option is set.
func (o *Options) Empty() bool {
	return *o == Options{}
}

// bitField accumulates requested bits of one configuration byte.
type bitField struct {
	value, mask uint8
}

func (f *bitField) set(bit uint8, v *bool) {
	if v == nil {
		return
	}
	f.mask |= bit
	if *v {
		f.value |= bit
	} else {
		f.value &^= bit
	}
}

func (f *bitField) emit(s *ConfigSet, addr uint8) error {
	if f.mask == 0 {
		return nil
	}
	return s.Add(dpa.ConfigByte{Address: addr, Value: f.value & f.mask, Mask: f.mask})
}

// ConfigBytes builds the config bytes of the options for the node
// version in snap. band bounds the RF channels; zero allows 0..255.
func (o *Options) ConfigBytes(snap ProtocolSnapshot, band dpa.RFBand) ([]dpa.ConfigByte, error) {
	s, err := o.build(snap, band)
	if err != nil {
		return nil, err
	}
	return s.Sorted(), nil
}

func (o *Options) build(snap ProtocolSnapshot, band dpa.RFBand) (*ConfigSet, error) {
	s := &ConfigSet{}

	var pers [2]bitField
	for _, f := range o.EmbPers.fields() {
		pers[f.pnum/8].set(1<<(f.pnum%8), f.v)
	}
	for i := range pers {
		if err := pers[i].emit(s, AddrEmbeddedPers0+uint8(i)); err != nil {
			return nil, err
		}
	}

	flags, err := o.dpaFlags(snap)
	if err != nil {
		return nil, err
	}
	if err := flags.emit(s, AddrDpaFlags); err != nil {
		return nil, err
	}

	if (o.RFSubChannelA != nil || o.RFSubChannelB != nil) && !subChannelsAt(snap.DpaVersion) {
		return nil, validationf(ErrUnsupportedAtVersion, "RF sub channels accessible only in DPA v3.03 and v3.04, node runs %s", snap.VersionString())
	}

	maxChannel := 255
	if band.Valid() {
		maxChannel = int(band.MaxChannel())
	}
	ints := []struct {
		addr     uint8
		v        *int
		min, max int
		msg      string
	}{
		{AddrSubChannelA, o.RFSubChannelA, 0, maxChannel, "RF sub channel A out of valid bounds"},
		{AddrSubChannelB, o.RFSubChannelB, 0, maxChannel, "RF sub channel B out of valid bounds"},
		{AddrTxPower, o.TxPower, 0, TxPowerMax, "Tx power out of valid bounds"},
		{AddrRxFilter, o.RxFilter, 0, RxFilterMax, "Rx filter out of valid bounds"},
		{AddrLPRxTimeout, o.LPRxTimeout, LPRxTimeoutMin, LPRxTimeoutMax, "LP Rx timeout out of valid bounds"},
		{AddrAltDsmChannel, o.RFAltDsmChannel, 0, 255, "Alternative DSM channel out of valid bounds"},
		{AddrChannelA, o.RFChannelA, 0, maxChannel, "RF channel A out of valid bounds"},
		{AddrChannelB, o.RFChannelB, 0, maxChannel, "RF channel B out of valid bounds"},
	}
	for _, f := range ints {
		if f.v == nil {
			continue
		}
		if *f.v < f.min || *f.v > f.max {
			return nil, validationf(ErrOutOfRange, "%s: %d not in [%d, %d]", f.msg, *f.v, f.min, f.max)
		}
		if err := s.Add(dpa.ConfigByte{Address: f.addr, Value: uint8(*f.v), Mask: 0xFF}); err != nil {
			return nil, err
		}
	}

	if o.UARTBaudRate != nil {
		code, ok := BaudRateCode(*o.UARTBaudRate)
		if !ok {
			return nil, validationf(ErrOutOfRange, "Unsupported UART baud rate: %d", *o.UARTBaudRate)
		}
		if err := s.Add(dpa.ConfigByte{Address: AddrUARTBaudRate, Value: code, Mask: 0xFF}); err != nil {
			return nil, err
		}
	}

	var rfpgm bitField
	rfpgm.set(RFPGMDualChannel, o.RFPgmDualChannel)
	rfpgm.set(RFPGMLPMode, o.RFPgmLPMode)
	rfpgm.set(RFPGMEnableAfterReset, o.RFPgmEnableAfterReset)
	rfpgm.set(RFPGMTerminateAfter1Min, o.RFPgmTerminateAfter1Min)
	rfpgm.set(RFPGMTerminateMcuPin, o.RFPgmTerminateMcuPin)
	if err := rfpgm.emit(s, AddrRFPGM); err != nil {
		return nil, err
	}

	return s, nil
}

// subChannelsAt reports whether configuration bytes 0x06 and 0x07 hold
// the subordinate network channels at dpaVersion.
func subChannelsAt(dpaVersion uint16) bool {
	return dpaVersion == dpa.Version(3, 3) || dpaVersion == dpa.Version(3, 4)
}

func (o *Options) dpaFlags(snap ProtocolSnapshot) (bitField, error) {
	var f bitField
	f.set(FlagCustomDpaHandler, o.CustomDpaHandler)
	f.set(FlagDpaAutoexec, o.DpaAutoexec)
	f.set(FlagRoutingOff, o.RoutingOff)
	f.set(FlagIOSetup, o.IOSetup)
	f.set(FlagPeerToPeer, o.PeerToPeer)

	if o.NodeDpaInterface != nil {
		if snap.AtLeast(dpa.Version(4, 0)) {
			return f, validationf(ErrUnsupportedAtVersion, "nodeDpaInterface is not available from DPA v4.00, node runs %s", snap.VersionString())
		}
		f.set(FlagNodeDpaInterface, o.NodeDpaInterface)
	}
	if o.DpaPeerToPeer != nil {
		if !snap.AtLeast(dpa.Version(4, 0x10)) {
			return f, validationf(ErrUnsupportedAtVersion, "dpaPeerToPeer parameter accessible from DPA v4.10, node runs %s", snap.VersionString())
		}
		f.set(FlagDpaPeerToPeer, o.DpaPeerToPeer)
	}
	if o.NeverSleep != nil {
		if !snap.AtLeast(dpa.Version(3, 3)) {
			return f, validationf(ErrUnsupportedAtVersion, "NeverSleep parameter accessible from DPA v3.03")
		}
		f.set(FlagNeverSleep, o.NeverSleep)
	}
	if o.StdAndLpNetwork != nil {
		if !snap.AtLeast(dpa.Version(4, 0)) {
			return f, validationf(ErrUnsupportedAtVersion, "stdAndLpNetwork parameter accessible from DPA v4.00")
		}
		f.set(FlagStdAndLpNetwork, o.StdAndLpNetwork)
	}
	return f, nil
}

// ReservedFlags returns the bits of configuration byte 0x05 that are
// reserved at dpaVersion.
func ReservedFlags(dpaVersion uint16) uint8 {
	if dpaVersion >= dpa.Version(4, 0) && dpaVersion < dpa.Version(4, 0x10) {
		return FlagNodeDpaInterface
	}
	return 0
}

// checkRawDpaFlags rejects DPA flags a raw byte 0x05 sets before the
// version that introduced them. Writing them as zero is allowed.
func checkRawDpaFlags(b dpa.ConfigByte, dpaVersion uint16) error {
	set := b.Value & b.Mask
	if set&FlagNeverSleep != 0 && dpaVersion < dpa.Version(3, 3) {
		return validationf(ErrUnsupportedAtVersion, "NeverSleep parameter accessible from DPA v3.03")
	}
	if set&FlagStdAndLpNetwork != 0 && dpaVersion < dpa.Version(4, 0) {
		return validationf(ErrUnsupportedAtVersion, "stdAndLpNetwork parameter accessible from DPA v4.00")
	}
	return nil
}

// Merge validates raw config bytes against the option bytes, applies the
// DPA flag version gates to raw byte 0x05, clears bits reserved at
// dpaVersion, and returns all bytes in ascending address order.
func Merge(options, raw []dpa.ConfigByte, dpaVersion uint16) ([]dpa.ConfigByte, error) {
	s, err := NewConfigSet(options...)
	if err != nil {
		return nil, err
	}
	for _, b := range raw {
		if b.Address == AddrDpaFlags {
			if err := checkRawDpaFlags(b, dpaVersion); err != nil {
				return nil, err
			}
		}
		if err := s.Add(b); err != nil {
			return nil, err
		}
	}
	if r := ReservedFlags(dpaVersion); r != 0 {
		s.mask(AddrDpaFlags, ^r)
	}
	return s.Sorted(), nil
}
