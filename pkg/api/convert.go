package api

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/dpa"
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/persistence"
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/trconf"
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/transport"
)

// Request parsing errors.
var (
	ErrUnsupportedMType = errors.New("unsupported message type")
	ErrMissingField     = errors.New("missing field")
	ErrInvalidField     = errors.New("invalid field")
)

// timestampLayout formats exchange timestamps in local time.
const timestampLayout = "2006-01-02T15:04:05.000000"

// Normalize checks the message type and fills the defaults of absent
// fields: a generated msgId, DefaultRepeat and HWPIDDoNotCheck.
func (r *Request) Normalize() error {
	if r.MType != MTypeWriteTrConf {
		return fmt.Errorf("%w: %q", ErrUnsupportedMType, r.MType)
	}
	if r.Data.MsgID == "" {
		r.Data.MsgID = uuid.NewString()
	}
	if r.Data.Repeat == nil {
		n := DefaultRepeat
		r.Data.Repeat = &n
	}
	if r.Data.Req.HWPID == nil {
		h := int(dpa.HWPIDDoNotCheck)
		r.Data.Req.HWPID = &h
	}
	return nil
}

// WriteRequest converts a normalized request to a configuration write.
func (r *Request) WriteRequest() (trconf.Request, error) {
	p := &r.Data.Req
	if p.DeviceAddr == nil {
		return trconf.Request{}, fmt.Errorf("%w: deviceAddr", ErrMissingField)
	}
	if *p.DeviceAddr < 0 || *p.DeviceAddr > 0xFFFF {
		return trconf.Request{}, fmt.Errorf("%w: Device address outside of valid range", ErrInvalidField)
	}
	hwpid := int(dpa.HWPIDDoNotCheck)
	if p.HWPID != nil {
		hwpid = *p.HWPID
	}
	if hwpid < 0 || hwpid > 0xFFFF {
		return trconf.Request{}, fmt.Errorf("%w: hwpId outside of valid range", ErrInvalidField)
	}

	req := trconf.Request{
		DeviceAddr:         uint16(*p.DeviceAddr),
		HWPID:              uint16(hwpid),
		Options:            p.options(),
		IncludeCoordinator: p.IncludeCoordinator,
	}
	if r.Data.Repeat != nil {
		req.Repeat = *r.Data.Repeat
	}
	if p.RFBand != "" {
		band, err := dpa.ParseRFBandString(p.RFBand)
		if err != nil {
			return trconf.Request{}, fmt.Errorf("%w: Unsupported RF band %q", ErrInvalidField, p.RFBand)
		}
		req.RFBand = band
	}
	if p.AccessPassword != "" {
		req.AccessPassword = []byte(p.AccessPassword)
	}
	if p.SecurityUserKey != "" {
		req.UserKey = []byte(p.SecurityUserKey)
	}
	for _, b := range p.ConfigBytes {
		req.ConfigBytes = append(req.ConfigBytes, dpa.ConfigByte{Address: b.Address, Value: b.Value, Mask: b.Mask})
	}
	return req, nil
}

func (p *WriteParams) options() trconf.Options {
	o := trconf.Options{
		CustomDpaHandler: p.CustomDpaHandler,
		NodeDpaInterface: p.NodeDpaInterface,
		DpaPeerToPeer:    p.DpaPeerToPeer,
		DpaAutoexec:      p.DpaAutoexec,
		RoutingOff:       p.RoutingOff,
		IOSetup:          p.IOSetup,
		PeerToPeer:       p.PeerToPeer,
		NeverSleep:       p.NeverSleep,
		StdAndLpNetwork:  p.StdAndLpNetwork,

		RFChannelA:      p.RFChannelA,
		RFChannelB:      p.RFChannelB,
		RFSubChannelA:   p.RFSubChannelA,
		RFSubChannelB:   p.RFSubChannelB,
		TxPower:         p.TxPower,
		RxFilter:        p.RxFilter,
		LPRxTimeout:     p.LPRxTimeout,
		RFAltDsmChannel: p.RFAltDsmChannel,
		UARTBaudRate:    p.UARTBaudRate,

		RFPgmDualChannel:        p.RFPgmDualChannel,
		RFPgmLPMode:             p.RFPgmLPMode,
		RFPgmEnableAfterReset:   p.RFPgmEnableAfterReset,
		RFPgmTerminateAfter1Min: p.RFPgmTerminateAfter1Min,
		RFPgmTerminateMcuPin:    p.RFPgmTerminateMcuPin,
	}
	if e := p.EmbPers; e != nil {
		o.EmbPers = trconf.EmbeddedPeripherals{
			Coordinator: e.Coordinator,
			Node:        e.Node,
			OS:          e.OS,
			EEPROM:      e.EEPROM,
			EEEPROM:     e.EEEPROM,
			RAM:         e.RAM,
			LEDR:        e.LEDR,
			LEDG:        e.LEDG,
			SPI:         e.SPI,
			IO:          e.IO,
			Thermometer: e.Thermometer,
			PWM:         e.PWM,
			UART:        e.UART,
			FRC:         e.FRC,
		}
	}
	return o
}

// NewResponse builds the response to a write. res may be nil when the
// write never reached the channel.
func NewResponse(msgID string, res *trconf.Result, err error, verbose bool) Response {
	status, statusStr := Status(res, err)
	resp := Response{
		MType: MTypeWriteTrConf,
		Data: ResponseData{
			MsgID:     msgID,
			Status:    status,
			StatusStr: statusStr,
		},
	}
	if res == nil {
		return resp
	}

	rsp := &WriteResult{
		DeviceAddr:    res.DeviceAddr,
		WriteSuccess:  res.WriteSuccess,
		RestartNeeded: res.RestartNeeded,
	}
	if res.Broadcast {
		rsp.NotRespondedNodes = res.NotResponded
		rsp.NotMatchedNodes = res.NotMatched
	}
	resp.Data.Rsp = rsp

	if verbose {
		resp.Data.Raw = make([]Raw, 0, len(res.Transactions))
		for _, tx := range res.Transactions {
			resp.Data.Raw = append(resp.Data.Raw, rawOf(tx))
		}
		for _, n := range res.Failed() {
			resp.Data.Nodes = append(resp.Data.Nodes, NodeStatus{
				Addr:    n.Addr,
				Outcome: n.Outcome.String(),
				Message: n.Message,
			})
		}
	}
	return resp
}

// ErrorResponse builds the response to a request that could not be parsed.
func ErrorResponse(msgID string, err error) Response {
	return Response{
		MType: MTypeWriteTrConf,
		Data: ResponseData{
			MsgID:     msgID,
			Status:    StatusServiceError,
			StatusStr: err.Error(),
		},
	}
}

func rawOf(tx transport.Transaction) Raw {
	return Raw{
		Request:        encodeBinary(tx.Request),
		RequestTs:      encodeTimestamp(tx.RequestTs),
		Confirmation:   encodeBinary(tx.Confirmation),
		ConfirmationTs: encodeTimestamp(tx.ConfirmationTs),
		Response:       encodeBinary(tx.Response),
		ResponseTs:     encodeTimestamp(tx.ResponseTs),
	}
}

// encodeBinary renders b as dot separated lower-case hex bytes.
func encodeBinary(b []byte) string {
	var sb strings.Builder
	for i, c := range b {
		if i > 0 {
			sb.WriteByte('.')
		}
		fmt.Fprintf(&sb, "%02x", c)
	}
	return sb.String()
}

func encodeTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(timestampLayout)
}

// NewRecord builds the history record of a completed write.
func NewRecord(msgID string, res *trconf.Result, status int, statusStr string) *persistence.Record {
	rec := &persistence.Record{
		MsgID:         msgID,
		DeviceAddr:    res.DeviceAddr,
		Broadcast:     res.Broadcast,
		WriteSuccess:  res.WriteSuccess,
		RestartNeeded: res.RestartNeeded,
		Status:        status,
		StatusStr:     statusStr,
		Transactions:  len(res.Transactions),
		NotResponded:  res.NotResponded,
		NotMatched:    res.NotMatched,
		StartedAt:     res.Started,
		FinishedAt:    res.Finished,
	}
	for _, n := range res.Failed() {
		rec.Failures = append(rec.Failures, persistence.NodeFailure{
			Addr:    n.Addr,
			Outcome: n.Outcome.String(),
			Message: n.Message,
		})
	}
	return rec
}
