package dpa

import (
	"encoding/binary"
	"fmt"
)

// Request is a DPA request frame.
type Request struct {
	NADR  uint16
	PNUM  uint8
	PCMD  uint8
	HWPID uint16
	PData []byte
}

// NewRequest creates a request with HWPIDDoNotCheck.
func NewRequest(nadr uint16, pnum, pcmd uint8, pdata []byte) Request {
	return Request{NADR: nadr, PNUM: pnum, PCMD: pcmd, HWPID: HWPIDDoNotCheck, PData: pdata}
}

// MarshalBinary encodes the request into wire bytes.
func (r Request) MarshalBinary() ([]byte, error) {
	if len(r.PData) > MaxDataLength {
		return nil, fmt.Errorf("%w: %d > %d", ErrDataTooLong, len(r.PData), MaxDataLength)
	}
	buf := make([]byte, HeaderSize, HeaderSize+len(r.PData))
	binary.LittleEndian.PutUint16(buf[0:2], r.NADR)
	buf[2] = r.PNUM
	buf[3] = r.PCMD
	binary.LittleEndian.PutUint16(buf[4:6], r.HWPID)
	return append(buf, r.PData...), nil
}

// ParseRequest decodes wire bytes into a Request.
func ParseRequest(data []byte) (Request, error) {
	if len(data) < HeaderSize {
		return Request{}, fmt.Errorf("%w: %d bytes", ErrPacketTooShort, len(data))
	}
	if len(data)-HeaderSize > MaxDataLength {
		return Request{}, fmt.Errorf("%w: %d > %d", ErrDataTooLong, len(data)-HeaderSize, MaxDataLength)
	}
	req := Request{
		NADR:  binary.LittleEndian.Uint16(data[0:2]),
		PNUM:  data[2],
		PCMD:  data[3],
		HWPID: binary.LittleEndian.Uint16(data[4:6]),
	}
	if len(data) > HeaderSize {
		req.PData = append([]byte(nil), data[HeaderSize:]...)
	}
	return req, nil
}

// Response is a DPA response frame. PCMD holds the command without the
// response flag.
type Response struct {
	NADR     uint16
	PNUM     uint8
	PCMD     uint8
	HWPID    uint16
	ErrN     ErrorCode
	DpaValue uint8
	PData    []byte
}

// MarshalBinary encodes the response into wire bytes.
func (r Response) MarshalBinary() ([]byte, error) {
	if len(r.PData) > MaxDataLength {
		return nil, fmt.Errorf("%w: %d > %d", ErrDataTooLong, len(r.PData), MaxDataLength)
	}
	buf := make([]byte, ResponseHeaderSize, ResponseHeaderSize+len(r.PData))
	binary.LittleEndian.PutUint16(buf[0:2], r.NADR)
	buf[2] = r.PNUM
	buf[3] = r.PCMD | ResponseFlag
	binary.LittleEndian.PutUint16(buf[4:6], r.HWPID)
	buf[6] = uint8(r.ErrN)
	buf[7] = r.DpaValue
	return append(buf, r.PData...), nil
}

// ParseResponse decodes wire bytes into a Response.
// Confirmation frames parse as a Response with ErrN StatusConfirmation.
func ParseResponse(data []byte) (Response, error) {
	if len(data) < ResponseHeaderSize {
		return Response{}, fmt.Errorf("%w: %d bytes", ErrPacketTooShort, len(data))
	}
	if len(data)-ResponseHeaderSize > MaxDataLength {
		return Response{}, fmt.Errorf("%w: %d > %d", ErrDataTooLong, len(data)-ResponseHeaderSize, MaxDataLength)
	}
	errN := ErrorCode(data[6])
	if data[3]&ResponseFlag == 0 && errN != StatusConfirmation {
		return Response{}, ErrNotResponse
	}
	rsp := Response{
		NADR:     binary.LittleEndian.Uint16(data[0:2]),
		PNUM:     data[2],
		PCMD:     data[3] &^ ResponseFlag,
		HWPID:    binary.LittleEndian.Uint16(data[4:6]),
		ErrN:     errN,
		DpaValue: data[7],
	}
	if len(data) > ResponseHeaderSize {
		rsp.PData = append([]byte(nil), data[ResponseHeaderSize:]...)
	}
	return rsp, nil
}

// IsConfirmation reports whether the frame is a coordinator confirmation.
func (r Response) IsConfirmation() bool {
	return r.ErrN == StatusConfirmation
}

// Err returns a *ResponseError if the node reported a failure.
func (r Response) Err() error {
	if r.ErrN == ErrorNone || r.ErrN == StatusConfirmation {
		return nil
	}
	return &ResponseError{NADR: r.NADR, PNUM: r.PNUM, PCMD: r.PCMD, Code: r.ErrN}
}

// Matches reports whether the response answers req.
func (r Response) Matches(req Request) bool {
	return r.NADR == req.NADR && r.PNUM == req.PNUM && r.PCMD == req.PCMD
}

// Confirmation carries the routing parameters the coordinator reports when
// it accepts a request for a remote node.
type Confirmation struct {
	Hops           uint8
	TimeslotLength uint8
	HopsResponse   uint8
}

// ParseConfirmation decodes the confirmation payload.
func ParseConfirmation(r Response) (Confirmation, error) {
	if !r.IsConfirmation() {
		return Confirmation{}, fmt.Errorf("dpa: ErrN %s is not a confirmation", r.ErrN)
	}
	// DpaValue carries hops; PData holds timeslot and response hops.
	if len(r.PData) < 2 {
		return Confirmation{}, fmt.Errorf("%w: confirmation %d bytes", ErrUnexpectedLength, len(r.PData))
	}
	return Confirmation{Hops: r.DpaValue, TimeslotLength: r.PData[0], HopsResponse: r.PData[1]}, nil
}
