package dpa

import (
	"encoding/binary"
	"fmt"
)

// PerInfoMinLen is the fixed part of a Get-Peripheral-Info response.
const PerInfoMinLen = 12

// PerInfo is the peripheral enumeration of a node.
type PerInfo struct {
	DpaVersion   uint16
	UserPerNr    uint8
	EmbeddedPers [4]byte
	HWPID        uint16
	HWPIDVer     uint16
	Flags        uint8
	UserPer      []byte
}

// PerInfoRequest builds a Get-Peripheral-Info enumeration request.
func PerInfoRequest(nadr uint16) Request {
	return NewRequest(nadr, PNUMEnumeration, CmdGetPerInfo, nil)
}

// ParsePerInfo decodes a Get-Peripheral-Info response payload.
func ParsePerInfo(pdata []byte) (PerInfo, error) {
	if len(pdata) < PerInfoMinLen {
		return PerInfo{}, fmt.Errorf("%w: peripheral info %d bytes", ErrUnexpectedLength, len(pdata))
	}
	info := PerInfo{
		DpaVersion: binary.LittleEndian.Uint16(pdata[0:2]),
		UserPerNr:  pdata[2],
		HWPID:      binary.LittleEndian.Uint16(pdata[7:9]),
		HWPIDVer:   binary.LittleEndian.Uint16(pdata[9:11]),
		Flags:      pdata[11],
	}
	copy(info.EmbeddedPers[:], pdata[3:7])
	if len(pdata) > PerInfoMinLen {
		info.UserPer = append([]byte(nil), pdata[PerInfoMinLen:]...)
	}
	return info, nil
}

// Payload encodes the enumeration as response PData.
func (p PerInfo) Payload() []byte {
	out := make([]byte, PerInfoMinLen, PerInfoMinLen+len(p.UserPer))
	binary.LittleEndian.PutUint16(out[0:2], p.DpaVersion)
	out[2] = p.UserPerNr
	copy(out[3:7], p.EmbeddedPers[:])
	binary.LittleEndian.PutUint16(out[7:9], p.HWPID)
	binary.LittleEndian.PutUint16(out[9:11], p.HWPIDVer)
	out[11] = p.Flags
	return append(out, p.UserPer...)
}

// HasPeripheral reports whether an embedded peripheral is enabled.
func (p PerInfo) HasPeripheral(pnum uint8) bool {
	if pnum >= 32 {
		return false
	}
	return p.EmbeddedPers[pnum/8]&(1<<(pnum%8)) != 0
}
