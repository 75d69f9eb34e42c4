package dpa

import (
	"errors"
	"fmt"
)

// Configuration memory layout.
const (
	// ConfigAddrFirst is the first writable configuration byte address.
	ConfigAddrFirst uint8 = 0x01

	// ConfigAddrLast is the last general configuration byte address.
	ConfigAddrLast uint8 = 0x1F

	// RFPGMAddress is the address of the RF programming byte.
	RFPGMAddress uint8 = 0x20

	// ConfigBytesLen is the number of addressable configuration bytes (0x01..0x20)
	// including the unused address 0.
	ConfigBytesLen = 32

	// ConfigurationLen is the size of the general configuration region (0x01..0x1F).
	ConfigurationLen = 31

	// MaxTripletsPerRequest bounds the triplets in one Write-Config-Byte request.
	MaxTripletsPerRequest = MaxDataLength / 3

	// SecurityKeyLen is the fixed width of a password or user key.
	SecurityKeyLen = 16

	// FrcEnableMask is the FRC peripheral bit in configuration byte 0x02.
	FrcEnableMask uint8 = 0x20
)

// ErrKeyTooLong indicates a security value over SecurityKeyLen bytes.
var ErrKeyTooLong = errors.New("dpa: security key too long")

// ConfigByte is one partially masked configuration byte write.
type ConfigByte struct {
	Address uint8
	Value   uint8
	Mask    uint8
}

func (b ConfigByte) String() string {
	return fmt.Sprintf("{%#02x %#02x/%#02x}", b.Address, b.Value, b.Mask)
}

// WriteCfgByteRequest builds an OS Write-HWP-Configuration-Byte request.
func WriteCfgByteRequest(nadr, hwpid uint16, bytes []ConfigByte) (Request, error) {
	if len(bytes) > MaxTripletsPerRequest {
		return Request{}, fmt.Errorf("%w: %d triplets > %d", ErrDataTooLong, len(bytes), MaxTripletsPerRequest)
	}
	pdata := make([]byte, 0, len(bytes)*3)
	for _, b := range bytes {
		pdata = append(pdata, b.Address, b.Value, b.Mask)
	}
	return Request{NADR: nadr, PNUM: PNUMOS, PCMD: CmdOSWriteCfgByte, HWPID: hwpid, PData: pdata}, nil
}

// ParseConfigBytes decodes triplets from a Write-Config-Byte PData.
func ParseConfigBytes(pdata []byte) ([]ConfigByte, error) {
	if len(pdata)%3 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of 3", ErrUnexpectedLength, len(pdata))
	}
	out := make([]ConfigByte, 0, len(pdata)/3)
	for i := 0; i < len(pdata); i += 3 {
		out = append(out, ConfigByte{Address: pdata[i], Value: pdata[i+1], Mask: pdata[i+2]})
	}
	return out, nil
}

// HWPConfiguration is the persistent configuration block of a node.
type HWPConfiguration struct {
	// Checksum is only meaningful on DPA below 3.03.
	Checksum uint8

	// Configuration holds bytes 0x01..0x1F; index 0 is address 0x01.
	Configuration [ConfigurationLen]byte

	// RFPGM is the RF programming byte at address 0x20.
	RFPGM uint8

	// Undocumented trails the RFPGM byte in read responses. Bits 0-1 of
	// the first byte carry the RF band.
	Undocumented []byte
}

// Byte returns the value at a configuration address.
func (c *HWPConfiguration) Byte(addr uint8) uint8 {
	switch {
	case addr == RFPGMAddress:
		return c.RFPGM
	case addr >= ConfigAddrFirst && addr <= ConfigAddrLast:
		return c.Configuration[addr-1]
	}
	return 0
}

// SetByte stores a value at a configuration address.
func (c *HWPConfiguration) SetByte(addr, value uint8) {
	switch {
	case addr == RFPGMAddress:
		c.RFPGM = value
	case addr >= ConfigAddrFirst && addr <= ConfigAddrLast:
		c.Configuration[addr-1] = value
	}
}

// FrcEnabled reports the FRC embedded peripheral bit.
func (c *HWPConfiguration) FrcEnabled() bool {
	return c.Byte(0x02)&FrcEnableMask != 0
}

// RFBand decodes the RF band from the undocumented trailer.
func (c *HWPConfiguration) RFBand() (RFBand, error) {
	if len(c.Undocumented) == 0 {
		return 0, fmt.Errorf("%w: RF band byte missing", ErrUnexpectedLength)
	}
	return ParseRFBand(c.Undocumented[0] & 0x03)
}

// WriteCfgRequest builds an OS Write-HWP-Configuration request.
func WriteCfgRequest(nadr uint16, cfg HWPConfiguration) Request {
	pdata := make([]byte, 0, 1+ConfigurationLen+1)
	pdata = append(pdata, cfg.Checksum)
	pdata = append(pdata, cfg.Configuration[:]...)
	pdata = append(pdata, cfg.RFPGM)
	return Request{NADR: nadr, PNUM: PNUMOS, PCMD: CmdOSWriteCfg, HWPID: HWPIDDoNotCheck, PData: pdata}
}

// ReadCfgRequest builds an OS Read-HWP-Configuration request.
func ReadCfgRequest(nadr uint16) Request {
	return NewRequest(nadr, PNUMOS, CmdOSReadCfg, nil)
}

// ParseHWPConfiguration decodes a Read-HWP-Configuration response payload.
func ParseHWPConfiguration(pdata []byte) (HWPConfiguration, error) {
	if len(pdata) < 1+ConfigurationLen+1 {
		return HWPConfiguration{}, fmt.Errorf("%w: read config %d bytes", ErrUnexpectedLength, len(pdata))
	}
	var cfg HWPConfiguration
	cfg.Checksum = pdata[0]
	copy(cfg.Configuration[:], pdata[1:1+ConfigurationLen])
	cfg.RFPGM = pdata[1+ConfigurationLen]
	if rest := pdata[2+ConfigurationLen:]; len(rest) > 0 {
		cfg.Undocumented = append([]byte(nil), rest...)
	}
	return cfg, nil
}

// SecurityType selects the value written by Set-Security.
type SecurityType uint8

const (
	// SecurityPassword sets the network access password.
	SecurityPassword SecurityType = 0x00
	// SecurityUserKey sets the user encryption key.
	SecurityUserKey SecurityType = 0x01
)

// String returns the security type name.
func (t SecurityType) String() string {
	switch t {
	case SecurityPassword:
		return "PASSWORD"
	case SecurityUserKey:
		return "USER_KEY"
	default:
		return "UNKNOWN"
	}
}

// SecurityPayload returns type followed by the key zero-padded to 16 bytes.
func SecurityPayload(typ SecurityType, key []byte) ([]byte, error) {
	if len(key) > SecurityKeyLen {
		return nil, fmt.Errorf("%w: %d > %d", ErrKeyTooLong, len(key), SecurityKeyLen)
	}
	out := make([]byte, 1+SecurityKeyLen)
	out[0] = uint8(typ)
	copy(out[1:], key)
	return out, nil
}

// SetSecurityRequest builds an OS Set-Security request.
func SetSecurityRequest(nadr, hwpid uint16, typ SecurityType, key []byte) (Request, error) {
	pdata, err := SecurityPayload(typ, key)
	if err != nil {
		return Request{}, err
	}
	return Request{NADR: nadr, PNUM: PNUMOS, PCMD: CmdOSSetSecurity, HWPID: hwpid, PData: pdata}, nil
}
