package trconf

import (
	"slices"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/dpa"
)

// Configuration byte addresses.
const (
	AddrEmbeddedPers0 uint8 = 0x01
	AddrEmbeddedPers1 uint8 = 0x02
	AddrDpaFlags      uint8 = 0x05
	AddrSubChannelA   uint8 = 0x06
	AddrSubChannelB   uint8 = 0x07
	AddrTxPower       uint8 = 0x08
	AddrRxFilter      uint8 = 0x09
	AddrLPRxTimeout   uint8 = 0x0A
	AddrUARTBaudRate  uint8 = 0x0B
	AddrAltDsmChannel uint8 = 0x0C
	AddrChannelA      uint8 = 0x11
	AddrChannelB      uint8 = 0x12
	AddrRFPGM               = dpa.RFPGMAddress
)

// ChecksumSeed initializes the configuration checksum.
const ChecksumSeed uint8 = 0x5F

// ValidAddress reports whether addr is a writable configuration byte.
func ValidAddress(addr uint8) bool {
	return addr >= dpa.ConfigAddrFirst && addr <= dpa.RFPGMAddress
}

// ConfigSet is an ordered set of config bytes with unique addresses.
type ConfigSet struct {
	bytes []dpa.ConfigByte
}

// NewConfigSet validates bytes and returns them as a set, keeping order.
func NewConfigSet(bytes ...dpa.ConfigByte) (*ConfigSet, error) {
	s := &ConfigSet{}
	for _, b := range bytes {
		if err := s.Add(b); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add appends b. The address must be valid and not present yet.
func (s *ConfigSet) Add(b dpa.ConfigByte) error {
	if !ValidAddress(b.Address) {
		return validationf(ErrOutOfRange, "Address of config byte out of valid range: %#02x", b.Address)
	}
	if s.Has(b.Address) {
		return validationf(ErrDuplicateAddress, "Config byte with the same address already exist: %#02x", b.Address)
	}
	s.bytes = append(s.bytes, b)
	return nil
}

// Has reports whether addr is in the set.
func (s *ConfigSet) Has(addr uint8) bool {
	return s.index(addr) >= 0
}

// Get returns the byte at addr.
func (s *ConfigSet) Get(addr uint8) (dpa.ConfigByte, bool) {
	if i := s.index(addr); i >= 0 {
		return s.bytes[i], true
	}
	return dpa.ConfigByte{}, false
}

// Len returns the number of bytes.
func (s *ConfigSet) Len() int { return len(s.bytes) }

// Bytes returns a copy of the bytes in insertion order.
func (s *ConfigSet) Bytes() []dpa.ConfigByte { return slices.Clone(s.bytes) }

// Sorted returns a copy of the bytes in ascending address order.
func (s *ConfigSet) Sorted() []dpa.ConfigByte {
	out := s.Bytes()
	slices.SortFunc(out, func(a, b dpa.ConfigByte) int { return int(a.Address) - int(b.Address) })
	return out
}

func (s *ConfigSet) index(addr uint8) int {
	return slices.IndexFunc(s.bytes, func(b dpa.ConfigByte) bool { return b.Address == addr })
}

// mask replaces the mask of the byte at addr and drops it when nothing remains.
func (s *ConfigSet) mask(addr, keep uint8) {
	i := s.index(addr)
	if i < 0 {
		return
	}
	s.bytes[i].Mask &= keep
	s.bytes[i].Value &= keep
	if s.bytes[i].Mask == 0 {
		s.bytes = slices.Delete(s.bytes, i, i+1)
	}
}

// Checksum returns 0x5F XOR the value of every byte outside the RFPGM address.
func Checksum(bytes []dpa.ConfigByte) uint8 {
	sum := ChecksumSeed
	for _, b := range bytes {
		if b.Address != dpa.RFPGMAddress {
			sum ^= b.Value
		}
	}
	return sum
}

// Chunk splits bytes into consecutive chunks of at most size triplets.
func Chunk(bytes []dpa.ConfigByte, size int) [][]dpa.ConfigByte {
	if size <= 0 || len(bytes) == 0 {
		return nil
	}
	out := make([][]dpa.ConfigByte, 0, (len(bytes)+size-1)/size)
	for len(bytes) > 0 {
		n := min(size, len(bytes))
		out = append(out, bytes[:n:n])
		bytes = bytes[n:]
	}
	return out
}

// Triplets encodes bytes as address, value, mask triplets.
func Triplets(bytes []dpa.ConfigByte) []byte {
	out := make([]byte, 0, len(bytes)*3)
	for _, b := range bytes {
		out = append(out, b.Address, b.Value, b.Mask)
	}
	return out
}

// WholeConfiguration returns the HWP configuration when bytes set every
// address 0x01..0x20 with a full mask. The checksum is filled in when the
// node runs DPA below 3.03, and left zero otherwise.
func WholeConfiguration(bytes []dpa.ConfigByte, dpaVersion uint16) (dpa.HWPConfiguration, bool) {
	var cfg dpa.HWPConfiguration
	if len(bytes) != dpa.ConfigBytesLen {
		return cfg, false
	}
	var seen [dpa.ConfigBytesLen + 1]bool
	for _, b := range bytes {
		if !ValidAddress(b.Address) || b.Mask != 0xFF || seen[b.Address] {
			return cfg, false
		}
		seen[b.Address] = true
		cfg.SetByte(b.Address, b.Value)
	}
	if dpaVersion < dpa.Version(3, 3) {
		cfg.Checksum = Checksum(bytes)
	}
	return cfg, true
}
