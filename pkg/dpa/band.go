package dpa

import (
	"errors"
	"fmt"
	"strconv"
)

// RFBand is the transceiver RF band in MHz.
type RFBand uint16

// Supported bands.
const (
	RFBand433 RFBand = 433
	RFBand868 RFBand = 868
	RFBand916 RFBand = 916
)

// ErrUnknownBand indicates an RF band outside the supported set.
var ErrUnknownBand = errors.New("dpa: unknown RF band")

// ParseRFBand decodes the two band bits of the configuration trailer.
func ParseRFBand(bits uint8) (RFBand, error) {
	switch bits {
	case 0b00:
		return RFBand868, nil
	case 0b01:
		return RFBand916, nil
	case 0b10:
		return RFBand433, nil
	}
	return 0, fmt.Errorf("%w: bits %#02b", ErrUnknownBand, bits)
}

// ParseRFBandString decodes "433", "868" or "916".
func ParseRFBandString(s string) (RFBand, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownBand, s)
	}
	b := RFBand(n)
	if !b.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrUnknownBand, s)
	}
	return b, nil
}

// Valid reports whether b is a supported band.
func (b RFBand) Valid() bool {
	return b == RFBand433 || b == RFBand868 || b == RFBand916
}

// MaxChannel returns the highest RF channel of the band.
func (b RFBand) MaxChannel() uint8 {
	switch b {
	case RFBand433:
		return 16
	case RFBand868:
		return 67
	default:
		return 255
	}
}

// String returns the band as a decimal string.
func (b RFBand) String() string {
	return strconv.Itoa(int(b))
}
