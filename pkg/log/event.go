package log

import (
	"time"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/dpa"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the transport lease the event belongs to (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Link names the coordinator link (e.g. "serial:/dev/ttyACM0").
	Link string `cbor:"6,keyasint,omitempty"`

	// NodeAddr is the addressed node, when known.
	NodeAddr *uint16 `cbor:"7,keyasint,omitempty"`

	// MsgID is the API message ID that started the operation.
	MsgID string `cbor:"8,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Transport layer
	Packet      *PacketEvent      `cbor:"11,keyasint,omitempty"` // DPA layer
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Lease and coordinator side effects
	FrcRound    *FrcRoundEvent    `cbor:"13,keyasint,omitempty"` // Acknowledged broadcast rounds
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates data received from the coordinator.
	DirectionIn Direction = 0
	// DirectionOut indicates data sent to the coordinator.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the framing layer (raw bytes).
	LayerTransport Layer = 0
	// LayerDPA is the decoded DPA packet layer.
	LayerDPA Layer = 1
	// LayerService is the configuration writer.
	LayerService Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerDPA:
		return "DPA"
	case LayerService:
		return "SERVICE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a frame or packet.
	CategoryMessage Category = 0
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw frame data at the transport layer.
type FrameEvent struct {
	// Size is the encoded frame size in bytes (including framing overhead).
	Size int `cbor:"1,keyasint"`

	// Data is the DPA packet bytes (may be truncated).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// PacketKind distinguishes DPA packet types.
type PacketKind uint8

const (
	// PacketRequest is a request sent to a node.
	PacketRequest PacketKind = 0
	// PacketConfirmation is the coordinator's acceptance of a remote request.
	PacketConfirmation PacketKind = 1
	// PacketResponse is the node's response.
	PacketResponse PacketKind = 2
)

// String returns the packet kind name.
func (k PacketKind) String() string {
	switch k {
	case PacketRequest:
		return "REQUEST"
	case PacketConfirmation:
		return "CONFIRMATION"
	case PacketResponse:
		return "RESPONSE"
	default:
		return "UNKNOWN"
	}
}

// PacketEvent captures a decoded DPA header.
type PacketEvent struct {
	Kind  PacketKind `cbor:"1,keyasint"`
	NADR  uint16     `cbor:"2,keyasint"`
	PNUM  uint8      `cbor:"3,keyasint"`
	PCMD  uint8      `cbor:"4,keyasint"`
	HWPID uint16     `cbor:"5,keyasint"`

	// ErrN is set for confirmations and responses.
	ErrN *uint8 `cbor:"6,keyasint,omitempty"`

	// PData is the packet payload.
	PData []byte `cbor:"7,keyasint,omitempty"`

	// Elapsed is the time since the request was sent (confirmation/response only).
	Elapsed *time.Duration `cbor:"8,keyasint,omitempty"`
}

// RequestPacket builds a PacketEvent for a request.
func RequestPacket(req dpa.Request) *PacketEvent {
	return &PacketEvent{
		Kind:  PacketRequest,
		NADR:  req.NADR,
		PNUM:  req.PNUM,
		PCMD:  req.PCMD,
		HWPID: req.HWPID,
		PData: req.PData,
	}
}

// ResponsePacket builds a PacketEvent for a confirmation or response.
func ResponsePacket(rsp dpa.Response, elapsed time.Duration) *PacketEvent {
	kind := PacketResponse
	if rsp.IsConfirmation() {
		kind = PacketConfirmation
	}
	errN := uint8(rsp.ErrN)
	return &PacketEvent{
		Kind:    kind,
		NADR:    rsp.NADR,
		PNUM:    rsp.PNUM,
		PCMD:    rsp.PCMD,
		HWPID:   rsp.HWPID,
		ErrN:    &errN,
		PData:   rsp.PData,
		Elapsed: &elapsed,
	}
}

// StateChangeEvent captures lease and coordinator side-effect changes.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityLink indicates the coordinator link.
	StateEntityLink StateEntity = 0
	// StateEntityLease indicates the exclusive transport lease.
	StateEntityLease StateEntity = 1
	// StateEntityFrcPeripheral indicates the coordinator FRC enable bit.
	StateEntityFrcPeripheral StateEntity = 2
	// StateEntityFrcTiming indicates the FRC response time parameter.
	StateEntityFrcTiming StateEntity = 3
	// StateEntityWrite indicates a configuration write operation.
	StateEntityWrite StateEntity = 4
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityLink:
		return "LINK"
	case StateEntityLease:
		return "LEASE"
	case StateEntityFrcPeripheral:
		return "FRC_PERIPHERAL"
	case StateEntityFrcTiming:
		return "FRC_TIMING"
	case StateEntityWrite:
		return "WRITE"
	default:
		return "UNKNOWN"
	}
}

// FrcRoundEvent captures one acknowledged broadcast round and how its
// selected nodes answered.
type FrcRoundEvent struct {
	// Step names the broadcast ("config 0", "PASSWORD").
	Step string `cbor:"1,keyasint"`

	// Attempt counts from 0 within the step.
	Attempt int `cbor:"2,keyasint"`

	// Status is the FRC status byte.
	Status uint8 `cbor:"3,keyasint"`

	Selected     NodeSet `cbor:"4,keyasint,omitempty"`
	Matched      NodeSet `cbor:"5,keyasint,omitempty"`
	NotMatched   NodeSet `cbor:"6,keyasint,omitempty"`
	NotResponded NodeSet `cbor:"7,keyasint,omitempty"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the error code (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
