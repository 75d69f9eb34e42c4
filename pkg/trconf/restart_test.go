package trconf

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/dpa"
)

func full(addr uint8) dpa.ConfigByte { return dpa.ConfigByte{Address: addr, Value: 1, Mask: 0xFF} }

func TestNeedsRestart(t *testing.T) {
	tests := []struct {
		name  string
		bytes []dpa.ConfigByte
		ver   uint16
		want  bool
	}{
		{"channel A 4.00", []dpa.ConfigByte{full(AddrChannelA)}, dpa.Version(4, 0), false},
		{"channel A 3.01", []dpa.ConfigByte{full(AddrChannelA)}, dpa.Version(3, 1), true},
		{"channel A 3.02", []dpa.ConfigByte{full(AddrChannelA)}, dpa.Version(3, 2), false},
		{"tx power 3.00", []dpa.ConfigByte{full(AddrTxPower)}, dpa.Version(3, 0), true},
		{"tx power 3.01", []dpa.ConfigByte{full(AddrTxPower)}, dpa.Version(3, 1), true},
		{"tx power 3.02", []dpa.ConfigByte{full(AddrTxPower)}, dpa.Version(3, 2), false},
		{"channel B", []dpa.ConfigByte{full(AddrChannelB)}, dpa.Version(3, 0), false},
		{"rx filter 4.11", []dpa.ConfigByte{full(AddrRxFilter)}, dpa.Version(4, 0x11), true},
		{"rx filter 4.12", []dpa.ConfigByte{full(AddrRxFilter)}, dpa.Version(4, 0x12), false},
		{"dpa flags", []dpa.ConfigByte{{Address: AddrDpaFlags, Value: 0, Mask: 0x08}}, dpa.Version(4, 0x17), true},
		{"lp timeout", []dpa.ConfigByte{full(AddrLPRxTimeout)}, dpa.Version(4, 0x17), true},
		{"baud", []dpa.ConfigByte{full(AddrUARTBaudRate)}, dpa.Version(4, 0x17), true},
		{"spi", []dpa.ConfigByte{{Address: AddrEmbeddedPers1, Value: 0, Mask: 0x01}}, dpa.Version(4, 0x17), true},
		{"uart", []dpa.ConfigByte{{Address: AddrEmbeddedPers1, Value: 0x10, Mask: 0x10}}, dpa.Version(4, 0x17), true},
		{"frc bit", []dpa.ConfigByte{{Address: AddrEmbeddedPers1, Value: 0x20, Mask: 0x20}}, dpa.Version(4, 0x17), false},
		{"leds", []dpa.ConfigByte{{Address: AddrEmbeddedPers0, Value: 0xC0, Mask: 0xC0}}, dpa.Version(4, 0x17), false},
		{"rfpgm", []dpa.ConfigByte{full(AddrRFPGM)}, dpa.Version(4, 0x17), false},
		{"empty mask", []dpa.ConfigByte{{Address: AddrDpaFlags}}, dpa.Version(4, 0), false},
		{"none", nil, dpa.Version(4, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NeedsRestart(tt.bytes, tt.ver))
		})
	}
}

func TestNeedsRestartIsPure(t *testing.T) {
	bytes := []dpa.ConfigByte{full(AddrTxPower), full(AddrChannelB), full(AddrRxFilter), full(AddrRFPGM)}
	for _, ver := range []uint16{dpa.Version(3, 0), dpa.Version(4, 0), dpa.Version(4, 0x12)} {
		want := NeedsRestart(bytes, ver)
		if got := NeedsRestart(bytes, ver); got != want {
			t.Errorf("ver %s: second call %v, first %v", FormatVersion(ver), got, want)
		}

		rev := slices.Clone(bytes)
		slices.Reverse(rev)
		if got := NeedsRestart(rev, ver); got != want {
			t.Errorf("ver %s: reversed %v, want %v", FormatVersion(ver), got, want)
		}
		rot := append(slices.Clone(bytes[2:]), bytes[:2]...)
		if got := NeedsRestart(rot, ver); got != want {
			t.Errorf("ver %s: rotated %v, want %v", FormatVersion(ver), got, want)
		}
	}
}
