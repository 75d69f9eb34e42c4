package log

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/dpa"
)

// logEncMode encodes capture events deterministically with nanosecond timestamps.
var logEncMode cbor.EncMode

// logDecMode decodes capture events written by any gateway version.
var logDecMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	logEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("log: cbor encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	logDecMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("log: cbor decoder mode: %v", err))
	}
}

// EncodeEvent encodes an Event to CBOR bytes.
func EncodeEvent(event Event) ([]byte, error) {
	return logEncMode.Marshal(event)
}

// DecodeEvent decodes CBOR bytes into an Event.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	if err := logDecMode.Unmarshal(data, &event); err != nil {
		return Event{}, err
	}
	return event, nil
}

// NewEncoder creates a CBOR encoder for log events that writes to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return logEncMode.NewEncoder(w)
}

// NewDecoder creates a CBOR decoder for log events that reads from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return logDecMode.NewDecoder(r)
}

// NodeSet is a set of node addresses. It encodes as the 30-byte DPA node
// bitmap, the layout FRC selections use on the wire, and decodes in
// ascending address order.
type NodeSet []uint16

// MarshalCBOR encodes the set as a byte string bitmap.
func (s NodeSet) MarshalCBOR() ([]byte, error) {
	bm, err := dpa.NodeBitmap(s)
	if err != nil {
		return nil, err
	}
	return logEncMode.Marshal(bm[:])
}

// UnmarshalCBOR decodes a byte string bitmap.
func (s *NodeSet) UnmarshalCBOR(data []byte) error {
	var bm []byte
	if err := logDecMode.Unmarshal(data, &bm); err != nil {
		return err
	}
	if len(bm) > dpa.SelectedNodesLen {
		return fmt.Errorf("log: node set bitmap has %d bytes, max %d", len(bm), dpa.SelectedNodesLen)
	}
	*s = dpa.BitmapNodes(bm, dpa.MaxNodeAddress)
	return nil
}
