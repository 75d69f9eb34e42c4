package dpa

import (
	"fmt"
)

// FRC layout.
const (
	// SelectedNodesLen is the size of the FRC selected-nodes bitmap.
	SelectedNodesLen = 30

	// FrcUserDataMax is the maximum user data of an FRC Send Selective request.
	FrcUserDataMax = 25

	// EmbeddedHeaderLen is the header of a DPA request embedded in FRC user data:
	// length, PNUM, PCMD, HWPID(2).
	EmbeddedHeaderLen = 5

	// FrcSendDataLen is the FRC data carried in the FRC Send response.
	FrcSendDataLen = 55

	// FrcDataLen is the full FRC data size after the extra result.
	FrcDataLen = 64

	// FrcPlaneLen is the size of one acknowledgment bit plane.
	FrcPlaneLen = 32

	// FrcStatusMaxValid is the highest FRC status reporting valid data.
	FrcStatusMaxValid uint8 = 0xEF

	// EmbeddedTripletsMax bounds the triplets in one embedded Write-Config-Byte.
	EmbeddedTripletsMax = (FrcUserDataMax - EmbeddedHeaderLen) / 3
)

// NodeBitmap returns the selected-nodes bitmap for the given addresses.
// Node n maps to byte n/8, bit n%8.
func NodeBitmap(nodes []uint16) ([SelectedNodesLen]byte, error) {
	var bm [SelectedNodesLen]byte
	for _, n := range nodes {
		if n > MaxNodeAddress {
			return bm, fmt.Errorf("dpa: node address %d out of range", n)
		}
		bm[n/8] |= 1 << (n % 8)
	}
	return bm, nil
}

// BitmapNodes returns the addresses whose bit is set, in ascending order.
func BitmapNodes(bm []byte, maxAddr uint16) []uint16 {
	var out []uint16
	for i, b := range bm {
		for bit := 0; bit < 8; bit++ {
			addr := uint16(i*8 + bit)
			if addr > maxAddr {
				return out
			}
			if b&(1<<bit) != 0 {
				out = append(out, addr)
			}
		}
	}
	return out
}

// EmbeddedRequest builds FRC user data carrying one DPA request.
func EmbeddedRequest(pnum, pcmd uint8, hwpid uint16, pdata []byte) ([]byte, error) {
	n := EmbeddedHeaderLen + len(pdata)
	if n > FrcUserDataMax {
		return nil, fmt.Errorf("%w: embedded request %d > %d", ErrDataTooLong, n, FrcUserDataMax)
	}
	out := make([]byte, 0, n)
	out = append(out, uint8(n), pnum, pcmd, uint8(hwpid), uint8(hwpid>>8))
	return append(out, pdata...), nil
}

// FrcSendSelectiveRequest builds an FRC Send Selective request to the coordinator.
func FrcSendSelectiveRequest(frcCommand uint8, nodes []uint16, userData []byte) (Request, error) {
	if len(userData) > FrcUserDataMax {
		return Request{}, fmt.Errorf("%w: user data %d > %d", ErrDataTooLong, len(userData), FrcUserDataMax)
	}
	bm, err := NodeBitmap(nodes)
	if err != nil {
		return Request{}, err
	}
	pdata := make([]byte, 0, 1+SelectedNodesLen+len(userData))
	pdata = append(pdata, frcCommand)
	pdata = append(pdata, bm[:]...)
	pdata = append(pdata, userData...)
	return NewRequest(CoordinatorAddress, PNUMFRC, CmdFRCSendSelective, pdata), nil
}

// FrcSendSelective is the decoded PData of an FRC Send Selective request.
type FrcSendSelective struct {
	FrcCommand    uint8
	SelectedNodes []uint16
	UserData      []byte
}

// ParseFrcSendSelective decodes an FRC Send Selective request payload.
func ParseFrcSendSelective(pdata []byte) (FrcSendSelective, error) {
	if len(pdata) < 1+SelectedNodesLen {
		return FrcSendSelective{}, fmt.Errorf("%w: frc selective %d bytes", ErrUnexpectedLength, len(pdata))
	}
	return FrcSendSelective{
		FrcCommand:    pdata[0],
		SelectedNodes: BitmapNodes(pdata[1:1+SelectedNodesLen], MaxNodeAddress),
		UserData:      append([]byte(nil), pdata[1+SelectedNodesLen:]...),
	}, nil
}

// FrcSendResult is the decoded FRC Send response.
type FrcSendResult struct {
	Status uint8
	Data   []byte
}

// StatusValid reports whether the status byte carries usable data.
func (r FrcSendResult) StatusValid() bool {
	return r.Status <= FrcStatusMaxValid
}

// ParseFrcSendResult decodes an FRC Send response payload.
func ParseFrcSendResult(pdata []byte) (FrcSendResult, error) {
	if len(pdata) < 1 {
		return FrcSendResult{}, fmt.Errorf("%w: frc send response empty", ErrUnexpectedLength)
	}
	data := pdata[1:]
	if len(data) > FrcSendDataLen {
		data = data[:FrcSendDataLen]
	}
	return FrcSendResult{Status: pdata[0], Data: append([]byte(nil), data...)}, nil
}

// FrcExtraResultRequest builds an FRC Extra Result request.
func FrcExtraResultRequest() Request {
	return NewRequest(CoordinatorAddress, PNUMFRC, CmdFRCExtraResult, nil)
}

// FrcSetParamsRequest builds an FRC Set Params request.
func FrcSetParamsRequest(params uint8) Request {
	return NewRequest(CoordinatorAddress, PNUMFRC, CmdFRCSetParams, []byte{params})
}

// ParseFrcSetParams returns the previous FRC parameters from the response.
func ParseFrcSetParams(pdata []byte) (uint8, error) {
	if len(pdata) < 1 {
		return 0, fmt.Errorf("%w: frc set params response empty", ErrUnexpectedLength)
	}
	return pdata[0], nil
}

// AckPlanes holds the two acknowledgment bit planes of FRC data.
type AckPlanes struct {
	Bit0 [FrcPlaneLen]byte
	Bit1 [FrcPlaneLen]byte
}

// SplitPlanes splits up to 64 bytes of FRC data into its bit planes.
// Missing bytes read as zero.
func SplitPlanes(frcData []byte) AckPlanes {
	var p AckPlanes
	n := copy(p.Bit0[:], frcData)
	if n == FrcPlaneLen && len(frcData) > FrcPlaneLen {
		copy(p.Bit1[:], frcData[FrcPlaneLen:])
	}
	return p
}

// JoinFrcData joins FRC Send data and FRC Extra Result data into the
// 64-byte FRC data. Short send data is zero padded so the extra result
// always starts at FrcSendDataLen; excess bytes are dropped.
func JoinFrcData(send, extra []byte) []byte {
	out := make([]byte, FrcDataLen)
	copy(out[:FrcSendDataLen], send)
	copy(out[FrcSendDataLen:], extra)
	return out
}

// Bits returns the two result bits of a node.
func (p *AckPlanes) Bits(addr uint16) (bit0, bit1 bool) {
	if addr >= FrcPlaneLen*8 {
		return false, false
	}
	i, m := addr/8, uint8(1)<<(addr%8)
	return p.Bit0[i]&m != 0, p.Bit1[i]&m != 0
}

// Set stores the two result bits of a node.
func (p *AckPlanes) Set(addr uint16, bit0, bit1 bool) {
	if addr >= FrcPlaneLen*8 {
		return
	}
	i, m := addr/8, uint8(1)<<(addr%8)
	if bit0 {
		p.Bit0[i] |= m
	}
	if bit1 {
		p.Bit1[i] |= m
	}
}

// Bytes returns the 64-byte FRC data of both planes.
func (p *AckPlanes) Bytes() []byte {
	out := make([]byte, 0, FrcDataLen)
	out = append(out, p.Bit0[:]...)
	return append(out, p.Bit1[:]...)
}
