package trconf

import (
	"errors"
	"fmt"
)

// Kind classifies a write failure.
type Kind uint8

// Error kinds.
const (
	KindValidation Kind = iota + 1
	KindCapability
	KindGetBondedNodes
	KindNoBondedNodes
	KindNodeNotBonded
	KindTransport
	KindProtocol
	KindBadFrcStatus
	KindEnableFrc
	KindDisableFrc
	KindSecurityWrite
	KindRFBand
)

// Kind sentinels. Every *Error matches the sentinel of its kind with errors.Is.
var (
	ErrValidation     = errors.New("trconf: validation error")
	ErrCapability     = errors.New("trconf: coordinator capability error")
	ErrGetBondedNodes = errors.New("trconf: get bonded nodes failed")
	ErrNoBondedNodes  = errors.New("trconf: no bonded nodes")
	ErrNodeNotBonded  = errors.New("trconf: node not bonded")
	ErrTransport      = errors.New("trconf: transport error")
	ErrProtocol       = errors.New("trconf: protocol error")
	ErrBadFrcStatus   = errors.New("trconf: bad FRC status")
	ErrEnableFrc      = errors.New("trconf: enable FRC failed")
	ErrDisableFrc     = errors.New("trconf: disable FRC failed")
	ErrSecurityWrite  = errors.New("trconf: security write failed")
	ErrRFBand         = errors.New("trconf: RF band mismatch")
)

// Validation causes, wrapped by KindValidation errors.
var (
	ErrOutOfRange           = errors.New("value out of range")
	ErrDuplicateAddress     = errors.New("duplicate config byte address")
	ErrUnsupportedAtVersion = errors.New("unsupported at DPA version")
)

var kindSentinels = map[Kind]error{
	KindValidation:     ErrValidation,
	KindCapability:     ErrCapability,
	KindGetBondedNodes: ErrGetBondedNodes,
	KindNoBondedNodes:  ErrNoBondedNodes,
	KindNodeNotBonded:  ErrNodeNotBonded,
	KindTransport:      ErrTransport,
	KindProtocol:       ErrProtocol,
	KindBadFrcStatus:   ErrBadFrcStatus,
	KindEnableFrc:      ErrEnableFrc,
	KindDisableFrc:     ErrDisableFrc,
	KindSecurityWrite:  ErrSecurityWrite,
	KindRFBand:         ErrRFBand,
}

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "Validation"
	case KindCapability:
		return "Capability"
	case KindGetBondedNodes:
		return "GetBondedNodes"
	case KindNoBondedNodes:
		return "NoBondedNodes"
	case KindNodeNotBonded:
		return "NodeNotBonded"
	case KindTransport:
		return "Transport"
	case KindProtocol:
		return "Protocol"
	case KindBadFrcStatus:
		return "BadFrcStatus"
	case KindEnableFrc:
		return "EnableFrc"
	case KindDisableFrc:
		return "DisableFrc"
	case KindSecurityWrite:
		return "SecurityWrite"
	case KindRFBand:
		return "RFBand"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Error is a classified write failure.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Msg != "" {
		return e.Msg + ": " + e.Err.Error()
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Msg
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinel.
func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func validationf(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// KindOf returns the kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
