package api

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/dpa"
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/trconf"
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/transport"
)

func decodeRequest(t *testing.T, s string) *Request {
	t.Helper()
	var req Request
	require.NoError(t, json.Unmarshal([]byte(s), &req))
	return &req
}

func TestNormalizeDefaults(t *testing.T) {
	req := decodeRequest(t, `{"mType":"iqmeshNetwork_WriteTrConf","data":{"req":{"deviceAddr":1}}}`)
	require.NoError(t, req.Normalize())

	if _, err := uuid.Parse(req.Data.MsgID); err != nil {
		t.Errorf("msgId %q is not a UUID: %v", req.Data.MsgID, err)
	}
	assert.Equal(t, DefaultRepeat, *req.Data.Repeat)
	assert.Equal(t, int(dpa.HWPIDDoNotCheck), *req.Data.Req.HWPID)
}

func TestNormalizeKeepsGivenValues(t *testing.T) {
	req := decodeRequest(t, `{"mType":"iqmeshNetwork_WriteTrConf","data":{"msgId":"m1","repeat":0,"req":{"deviceAddr":1,"hwpId":4097}}}`)
	require.NoError(t, req.Normalize())

	assert.Equal(t, "m1", req.Data.MsgID)
	assert.Equal(t, 0, *req.Data.Repeat)
	assert.Equal(t, 0x1001, *req.Data.Req.HWPID)
}

func TestNormalizeRejectsMType(t *testing.T) {
	req := &Request{MType: "iqmeshNetwork_EnumerateDevice"}
	err := req.Normalize()
	if !errors.Is(err, ErrUnsupportedMType) {
		t.Fatalf("expected ErrUnsupportedMType, got %v", err)
	}
}

func TestWriteRequestConversion(t *testing.T) {
	req := decodeRequest(t, `{
		"mType": "iqmeshNetwork_WriteTrConf",
		"data": {
			"msgId": "conv",
			"repeat": 2,
			"req": {
				"deviceAddr": 255,
				"hwpId": 2,
				"embPers": {"frc": true, "uart": false},
				"rfChannelA": 10,
				"txPower": 5,
				"uartBaudrate": 19200,
				"neverSleep": true,
				"rfPgmLpMode": true,
				"rfBand": "868",
				"accessPassword": "secret",
				"securityUserKey": "key",
				"configBytes": [{"address": 9, "value": 6, "mask": 255}],
				"includeCoordinator": true
			}
		}
	}`)
	require.NoError(t, req.Normalize())
	w, err := req.WriteRequest()
	require.NoError(t, err)

	assert.Equal(t, dpa.BroadcastAddress, w.DeviceAddr)
	assert.Equal(t, uint16(2), w.HWPID)
	assert.Equal(t, 2, w.Repeat)
	assert.Equal(t, dpa.RFBand868, w.RFBand)
	assert.True(t, w.IncludeCoordinator)
	assert.Equal(t, []byte("secret"), w.AccessPassword)
	assert.Equal(t, []byte("key"), w.UserKey)
	assert.Equal(t, []dpa.ConfigByte{{Address: 9, Value: 6, Mask: 0xFF}}, w.ConfigBytes)

	o := w.Options
	require.NotNil(t, o.RFChannelA)
	assert.Equal(t, 10, *o.RFChannelA)
	require.NotNil(t, o.TxPower)
	assert.Equal(t, 5, *o.TxPower)
	require.NotNil(t, o.UARTBaudRate)
	assert.Equal(t, 19200, *o.UARTBaudRate)
	require.NotNil(t, o.NeverSleep)
	assert.True(t, *o.NeverSleep)
	require.NotNil(t, o.RFPgmLPMode)
	assert.True(t, *o.RFPgmLPMode)
	require.NotNil(t, o.EmbPers.FRC)
	assert.True(t, *o.EmbPers.FRC)
	require.NotNil(t, o.EmbPers.UART)
	assert.False(t, *o.EmbPers.UART)
	assert.Nil(t, o.EmbPers.SPI)
	assert.Nil(t, o.RFChannelB)
}

func TestWriteRequestErrors(t *testing.T) {
	tests := []struct {
		name string
		req  string
		want error
	}{
		{"missing address", `{"req":{}}`, ErrMissingField},
		{"negative address", `{"req":{"deviceAddr":-1}}`, ErrInvalidField},
		{"hwpid too large", `{"req":{"deviceAddr":1,"hwpId":70000}}`, ErrInvalidField},
		{"unknown band", `{"req":{"deviceAddr":1,"rfBand":"315"}}`, ErrInvalidField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := decodeRequest(t, `{"mType":"iqmeshNetwork_WriteTrConf","data":`+tt.req+`}`)
			require.NoError(t, req.Normalize())
			_, err := req.WriteRequest()
			if !errors.Is(err, tt.want) {
				t.Errorf("WriteRequest() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	ok := &trconf.Result{WriteSuccess: true}
	failed := &trconf.Result{}

	tests := []struct {
		name   string
		res    *trconf.Result
		err    error
		status int
	}{
		{"success", ok, nil, StatusOK},
		{"write failed", failed, nil, StatusServiceError},
		{"validation", failed, &trconf.Error{Kind: trconf.KindValidation, Msg: "bad"}, StatusServiceError},
		{"capability", failed, &trconf.Error{Kind: trconf.KindCapability, Msg: "no OS"}, StatusInternal},
		{"bonded", failed, &trconf.Error{Kind: trconf.KindGetBondedNodes, Msg: "x"}, StatusGetBondedNodes},
		{"no bonded", failed, &trconf.Error{Kind: trconf.KindNoBondedNodes, Msg: "x"}, StatusNoBondedNodes},
		{"band", failed, &trconf.Error{Kind: trconf.KindRFBand, Msg: "x"}, StatusRFBand},
		{"enable frc", failed, &trconf.Error{Kind: trconf.KindEnableFrc, Msg: "x"}, StatusEnableFrc},
		{"disable frc", ok, &trconf.Error{Kind: trconf.KindDisableFrc, Msg: "x"}, StatusDisableFrc},
		{"transport", nil, &trconf.Error{Kind: trconf.KindTransport, Msg: "x"}, StatusServiceError},
		{"plain error", nil, errors.New("boom"), StatusServiceError},
		{
			"joined keeps primary",
			failed,
			errors.Join(
				&trconf.Error{Kind: trconf.KindTransport, Msg: "chunk"},
				&trconf.Error{Kind: trconf.KindDisableFrc, Msg: "restore"},
			),
			StatusServiceError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, str := Status(tt.res, tt.err)
			if status != tt.status {
				t.Errorf("Status() = %d, want %d", status, tt.status)
			}
			if tt.err != nil && str != tt.err.Error() {
				t.Errorf("statusStr = %q, want %q", str, tt.err.Error())
			}
		})
	}
}

func TestEncodeBinary(t *testing.T) {
	assert.Equal(t, "", encodeBinary(nil))
	assert.Equal(t, "0a", encodeBinary([]byte{0x0A}))
	assert.Equal(t, "01.00.09.ff.ff", encodeBinary([]byte{0x01, 0x00, 0x09, 0xFF, 0xFF}))
}

func TestEncodeTimestamp(t *testing.T) {
	assert.Equal(t, "", encodeTimestamp(time.Time{}))

	ts := time.Date(2026, 3, 4, 5, 6, 7, 8000, time.Local)
	assert.Equal(t, "2026-03-04T05:06:07.000008", encodeTimestamp(ts))
}

func TestNewResponseVerbose(t *testing.T) {
	reqTs := time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local)
	res := &trconf.Result{
		DeviceAddr:   dpa.BroadcastAddress,
		Broadcast:    true,
		NotResponded: []uint16{5},
		NotMatched:   []uint16{4},
		Nodes: []trconf.NodeResult{
			{Addr: 1},
			{Addr: 4, Outcome: trconf.NodeWriteFailed, Message: "HWPID does not match"},
			{Addr: 5, Outcome: trconf.NodeWriteFailed, Message: "no response"},
		},
		Transactions: []transport.Transaction{
			{Request: []byte{0x00, 0x00, 0x0D, 0x02}, RequestTs: reqTs},
		},
	}

	resp := NewResponse("v", res, nil, true)
	assert.Equal(t, MTypeWriteTrConf, resp.MType)
	assert.Equal(t, StatusServiceError, resp.Data.Status)
	require.NotNil(t, resp.Data.Rsp)
	assert.Equal(t, []uint16{5}, resp.Data.Rsp.NotRespondedNodes)
	assert.Equal(t, []uint16{4}, resp.Data.Rsp.NotMatchedNodes)

	require.Len(t, resp.Data.Raw, 1)
	assert.Equal(t, "00.00.0d.02", resp.Data.Raw[0].Request)
	assert.Equal(t, "2026-01-02T03:04:05.000000", resp.Data.Raw[0].RequestTs)
	assert.Empty(t, resp.Data.Raw[0].Response)
	assert.Empty(t, resp.Data.Raw[0].ResponseTs)

	require.Len(t, resp.Data.Nodes, 2)
	assert.Equal(t, NodeStatus{Addr: 4, Outcome: "Write", Message: "HWPID does not match"}, resp.Data.Nodes[0])

	quiet := NewResponse("v", res, nil, false)
	assert.Nil(t, quiet.Data.Raw)
	assert.Nil(t, quiet.Data.Nodes)
}

func TestNewResponseWithoutResult(t *testing.T) {
	resp := NewResponse("x", nil, &trconf.Error{Kind: trconf.KindTransport, Msg: "acquire channel"}, true)
	assert.Nil(t, resp.Data.Rsp)
	assert.Equal(t, StatusServiceError, resp.Data.Status)
	assert.Equal(t, "acquire channel", resp.Data.StatusStr)
}

func TestUnicastResponseOmitsNodeSets(t *testing.T) {
	res := &trconf.Result{DeviceAddr: 3, WriteSuccess: true, RestartNeeded: true}
	resp := NewResponse("u", res, nil, false)

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "notRespondedNodes")
	assert.Contains(t, string(data), `"restartNeeded":true`)
	assert.Contains(t, string(data), `"status":0`)
	assert.Contains(t, string(data), `"statusStr":"ok"`)
}

func TestNewRecord(t *testing.T) {
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	res := &trconf.Result{
		DeviceAddr:   dpa.BroadcastAddress,
		Broadcast:    true,
		NotResponded: []uint16{2},
		Nodes: []trconf.NodeResult{
			{Addr: 1},
			{Addr: 2, Outcome: trconf.NodeWriteFailed, Message: "no response"},
		},
		Transactions: make([]transport.Transaction, 3),
		Started:      start,
		Finished:     start.Add(time.Second),
	}

	rec := NewRecord("r", res, StatusServiceError, "Write failed")
	assert.Equal(t, "r", rec.MsgID)
	assert.True(t, rec.Broadcast)
	assert.Equal(t, 3, rec.Transactions)
	assert.Equal(t, []uint16{2}, rec.NotResponded)
	require.Len(t, rec.Failures, 1)
	assert.Equal(t, uint16(2), rec.Failures[0].Addr)
	assert.Equal(t, "Write", rec.Failures[0].Outcome)
	assert.Equal(t, time.Second, rec.Duration())
}
