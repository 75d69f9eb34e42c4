package dpa

import "fmt"

// BondedDevicesLen is the size of the bonded devices bitmap.
const BondedDevicesLen = 32

// BondedDevicesRequest builds a Coordinator Bonded Devices request.
func BondedDevicesRequest() Request {
	return NewRequest(CoordinatorAddress, PNUMCoordinator, CmdCoordinatorBondedDevices, nil)
}

// ParseBondedDevices decodes the bonded devices bitmap into node addresses.
// The coordinator bit is reported as present in the bitmap.
func ParseBondedDevices(pdata []byte) ([]uint16, error) {
	if len(pdata) < SelectedNodesLen {
		return nil, fmt.Errorf("%w: bonded devices %d bytes", ErrUnexpectedLength, len(pdata))
	}
	return BitmapNodes(pdata, MaxNodeAddress), nil
}

// BondedDevicesPayload encodes node addresses as a bonded devices bitmap.
func BondedDevicesPayload(nodes []uint16) []byte {
	out := make([]byte, BondedDevicesLen)
	for _, n := range nodes {
		if n <= MaxNodeAddress {
			out[n/8] |= 1 << (n % 8)
		}
	}
	return out
}
