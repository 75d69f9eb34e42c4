package trconf

import (
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/dpa"
)

// Peripheral enable bits of configuration byte 0x02 whose change needs a restart.
const restartPeripherals = 1<<(dpa.PNUMSPI%8) | 1<<(dpa.PNUMUART%8)

// NeedsRestart reports whether the written bytes take effect only after
// the device restarts. It depends only on the set of addresses and masks.
func NeedsRestart(written []dpa.ConfigByte, dpaVersion uint16) bool {
	for _, b := range written {
		if b.Mask == 0 {
			continue
		}
		switch b.Address {
		case AddrEmbeddedPers1:
			if b.Mask&restartPeripherals != 0 {
				return true
			}
		case AddrDpaFlags, AddrLPRxTimeout, AddrUARTBaudRate:
			return true
		case AddrRxFilter:
			if dpaVersion < dpa.Version(4, 0x12) {
				return true
			}
		case AddrChannelA, AddrTxPower:
			if dpaVersion < dpa.Version(3, 2) {
				return true
			}
		}
	}
	return false
}
