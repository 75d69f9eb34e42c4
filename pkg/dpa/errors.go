package dpa

import (
	"errors"
	"fmt"
)

// ErrorCode is the ErrN byte of a DPA response.
type ErrorCode uint8

// DPA error codes.
const (
	ErrorNone          ErrorCode = 0x00
	ErrorGeneral       ErrorCode = 0x01
	ErrorPCMD          ErrorCode = 0x02
	ErrorPNUM          ErrorCode = 0x03
	ErrorAddr          ErrorCode = 0x04
	ErrorDataLen       ErrorCode = 0x05
	ErrorData          ErrorCode = 0x06
	ErrorHWPID         ErrorCode = 0x07
	ErrorNADR          ErrorCode = 0x08
	ErrorIFaceCustom   ErrorCode = 0x09
	ErrorMissingCustom ErrorCode = 0x0A
	ErrorUserFrom      ErrorCode = 0x20
	ErrorUserTo        ErrorCode = 0x3F

	// StatusConfirmation marks a confirmation frame, not an error.
	StatusConfirmation ErrorCode = 0xFF
)

// String returns the error code name.
func (c ErrorCode) String() string {
	switch c {
	case ErrorNone:
		return "STATUS_NO_ERROR"
	case ErrorGeneral:
		return "ERROR_FAIL"
	case ErrorPCMD:
		return "ERROR_PCMD"
	case ErrorPNUM:
		return "ERROR_PNUM"
	case ErrorAddr:
		return "ERROR_ADDR"
	case ErrorDataLen:
		return "ERROR_DATA_LEN"
	case ErrorData:
		return "ERROR_DATA"
	case ErrorHWPID:
		return "ERROR_HWPID"
	case ErrorNADR:
		return "ERROR_NADR"
	case ErrorIFaceCustom:
		return "ERROR_IFACE_CUSTOM_HANDLER"
	case ErrorMissingCustom:
		return "ERROR_MISSING_CUSTOM_DPA_HANDLER"
	case StatusConfirmation:
		return "STATUS_CONFIRMATION"
	}
	if c >= ErrorUserFrom && c <= ErrorUserTo {
		return fmt.Sprintf("ERROR_USER(%#02x)", uint8(c))
	}
	return fmt.Sprintf("UNKNOWN(%#02x)", uint8(c))
}

// Packet errors.
var (
	// ErrPacketTooShort indicates fewer bytes than the fixed header.
	ErrPacketTooShort = errors.New("dpa: packet too short")

	// ErrDataTooLong indicates PData exceeds MaxDataLength.
	ErrDataTooLong = errors.New("dpa: data too long")

	// ErrNotResponse indicates PCMD lacks the response flag.
	ErrNotResponse = errors.New("dpa: not a response")

	// ErrUnexpectedLength indicates a response payload of the wrong size.
	ErrUnexpectedLength = errors.New("dpa: unexpected response length")
)

// ResponseError is returned when a node answers with a non-zero ErrN.
type ResponseError struct {
	NADR uint16
	PNUM uint8
	PCMD uint8
	Code ErrorCode
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("dpa error %s (nadr=%d pnum=%#02x pcmd=%#02x)", e.Code, e.NADR, e.PNUM, e.PCMD)
}
