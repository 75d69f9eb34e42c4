package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/internal/meshsim"
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/dpa"
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/persistence"
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/trconf"
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/transport"
)

type stubWriter struct{ mock.Mock }

func (s *stubWriter) Write(ctx context.Context, req trconf.Request) (*trconf.Result, error) {
	args := s.Called(ctx, req)
	res, _ := args.Get(0).(*trconf.Result)
	return res, args.Error(1)
}

type stubHistory struct{ mock.Mock }

func (s *stubHistory) Add(r *persistence.Record) error {
	return s.Called(r).Error(0)
}

func (s *stubHistory) List(limit, offset int) ([]persistence.Record, error) {
	args := s.Called(limit, offset)
	recs, _ := args.Get(0).([]persistence.Record)
	return recs, args.Error(1)
}

func (s *stubHistory) ListDevice(addr uint16, limit int) ([]persistence.Record, error) {
	args := s.Called(addr, limit)
	recs, _ := args.Get(0).([]persistence.Record)
	return recs, args.Error(1)
}

type linkState bool

func (l linkState) Connected() bool { return bool(l) }

// setupSimServer serves the API over a simulated network with an
// in-memory history.
func setupSimServer(t *testing.T, net *meshsim.Network) (*httptest.Server, *persistence.HistoryStore) {
	t.Helper()
	history, err := persistence.NewHistoryStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { history.Close() })

	writer := trconf.NewWriter(transport.NewArbiter(net, transport.ArbiterConfig{}), trconf.DefaultConfig())
	srv := httptest.NewServer(NewServer(writer, history, DefaultConfig()))
	t.Cleanup(srv.Close)
	return srv, history
}

func postWrite(t *testing.T, url, body string) (int, Response) {
	t.Helper()
	resp, err := http.Post(url+"/api/v1/trconf", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestHTTPUnicastWrite(t *testing.T) {
	net := meshsim.NewWithNodes(dpa.Version(4, 0), 3)
	srv, history := setupSimServer(t, net)

	code, resp := postWrite(t, srv.URL, `{
		"mType": "iqmeshNetwork_WriteTrConf",
		"data": {"msgId": "uni", "req": {"deviceAddr": 2, "rfChannelA": 10}, "returnVerbose": true}
	}`)
	require.Equal(t, http.StatusOK, code)

	assert.Equal(t, MTypeWriteTrConf, resp.MType)
	assert.Equal(t, "uni", resp.Data.MsgID)
	assert.Equal(t, StatusOK, resp.Data.Status)
	assert.Equal(t, "ok", resp.Data.StatusStr)
	require.NotNil(t, resp.Data.Rsp)
	assert.Equal(t, uint16(2), resp.Data.Rsp.DeviceAddr)
	assert.True(t, resp.Data.Rsp.WriteSuccess)
	assert.False(t, resp.Data.Rsp.RestartNeeded)
	assert.Equal(t, uint8(10), net.Node(2).Config.Byte(trconf.AddrChannelA))

	require.Len(t, resp.Data.Raw, len(net.Requests()))
	for i, raw := range resp.Data.Raw {
		if raw.Request == "" || raw.RequestTs == "" {
			t.Errorf("raw[%d] has no request: %+v", i, raw)
		}
	}
	assert.Empty(t, resp.Data.Nodes)

	recs, err := history.List(10, 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "uni", recs[0].MsgID)
	assert.True(t, recs[0].WriteSuccess)
	assert.Equal(t, len(resp.Data.Raw), recs[0].Transactions)
}

func TestHTTPBroadcastReportsSilentNodes(t *testing.T) {
	net := meshsim.NewWithNodes(dpa.Version(4, 0), 3)
	net.Node(3).FrcScript = []meshsim.FrcReply{meshsim.FrcSilent}
	srv, history := setupSimServer(t, net)

	_, resp := postWrite(t, srv.URL, `{
		"mType": "iqmeshNetwork_WriteTrConf",
		"data": {"msgId": "bc", "repeat": 0, "req": {"deviceAddr": 255, "configBytes": [{"address": 17, "value": 12, "mask": 255}]}, "returnVerbose": true}
	}`)

	assert.Equal(t, StatusServiceError, resp.Data.Status)
	require.NotNil(t, resp.Data.Rsp)
	assert.False(t, resp.Data.Rsp.WriteSuccess)
	assert.Equal(t, []uint16{3}, resp.Data.Rsp.NotRespondedNodes)
	assert.Empty(t, resp.Data.Rsp.NotMatchedNodes)
	require.Len(t, resp.Data.Nodes, 1)
	assert.Equal(t, uint16(3), resp.Data.Nodes[0].Addr)

	recs, err := history.ListDevice(dpa.BroadcastAddress, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, []uint16{3}, recs[0].NotResponded)
	require.Len(t, recs[0].Failures, 1)
}

func TestHTTPNoBondedNodes(t *testing.T) {
	net := meshsim.New(dpa.Version(4, 0))
	srv, _ := setupSimServer(t, net)

	_, resp := postWrite(t, srv.URL, `{
		"mType": "iqmeshNetwork_WriteTrConf",
		"data": {"msgId": "none", "req": {"deviceAddr": 255, "rfChannelB": 3}}
	}`)
	assert.Equal(t, StatusNoBondedNodes, resp.Data.Status)
	assert.Equal(t, "No bonded nodes", resp.Data.StatusStr)
	require.NotNil(t, resp.Data.Rsp)
	assert.False(t, resp.Data.Rsp.WriteSuccess)
}

func TestHTTPValidationError(t *testing.T) {
	net := meshsim.NewWithNodes(dpa.Version(4, 0), 1)
	srv, _ := setupSimServer(t, net)

	_, resp := postWrite(t, srv.URL, `{
		"mType": "iqmeshNetwork_WriteTrConf",
		"data": {"msgId": "bad", "req": {"deviceAddr": 300, "rfChannelA": 1}}
	}`)
	assert.Equal(t, StatusServiceError, resp.Data.Status)
	assert.Contains(t, resp.Data.StatusStr, "Device address outside of valid range")
	assert.Empty(t, net.Requests())
}

func TestHTTPRejectsBadRequests(t *testing.T) {
	srv := httptest.NewServer(NewServer(new(stubWriter), nil, Config{}))
	defer srv.Close()

	code, resp := postWrite(t, srv.URL, `{not json`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, StatusServiceError, resp.Data.Status)

	code, resp = postWrite(t, srv.URL, `{"mType":"iqmeshNetwork_Other","data":{"msgId":"x"}}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "x", resp.Data.MsgID)
	assert.Contains(t, resp.Data.StatusStr, "unsupported message type")

	code, resp = postWrite(t, srv.URL, `{"mType":"iqmeshNetwork_WriteTrConf","data":{"msgId":"y","req":{}}}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusServiceError, resp.Data.Status)
	assert.Contains(t, resp.Data.StatusStr, "deviceAddr")

	get, err := http.Get(srv.URL + "/api/v1/trconf")
	require.NoError(t, err)
	get.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, get.StatusCode)

	// No history store: the route is not registered.
	get, err = http.Get(srv.URL + "/api/v1/history")
	require.NoError(t, err)
	get.Body.Close()
	assert.Equal(t, http.StatusNotFound, get.StatusCode)
}

func TestHandlePassesConvertedRequest(t *testing.T) {
	w := new(stubWriter)
	h := new(stubHistory)
	result := &trconf.Result{DeviceAddr: 4, WriteSuccess: true}

	w.On("Write", mock.Anything, mock.MatchedBy(func(r trconf.Request) bool {
		return r.DeviceAddr == 4 && r.HWPID == dpa.HWPIDDoNotCheck && r.Repeat == DefaultRepeat && r.Options.TxPower != nil
	})).Return(result, nil)
	h.On("Add", mock.MatchedBy(func(r *persistence.Record) bool {
		return r.MsgID == "p" && r.DeviceAddr == 4 && r.Status == StatusOK
	})).Return(errors.New("disk full"))

	s := NewServer(w, h, Config{})
	txPower := 3
	addr := 4
	resp := s.Handle(context.Background(), &Request{
		MType: MTypeWriteTrConf,
		Data:  RequestData{MsgID: "p", Req: WriteParams{DeviceAddr: &addr, TxPower: &txPower}},
	})

	assert.Equal(t, StatusOK, resp.Data.Status)
	w.AssertExpectations(t)
	h.AssertExpectations(t)
}

func TestHandleLeaseFailure(t *testing.T) {
	w := new(stubWriter)
	h := new(stubHistory)
	w.On("Write", mock.Anything, mock.Anything).Return(nil, &trconf.Error{Kind: trconf.KindTransport, Msg: "acquire channel", Err: transport.ErrClosed})

	s := NewServer(w, h, Config{})
	addr := 1
	resp := s.Handle(context.Background(), &Request{
		MType: MTypeWriteTrConf,
		Data:  RequestData{MsgID: "l", Req: WriteParams{DeviceAddr: &addr, RFChannelA: &addr}},
	})

	assert.Equal(t, StatusServiceError, resp.Data.Status)
	assert.Nil(t, resp.Data.Rsp)
	h.AssertNotCalled(t, "Add", mock.Anything)
}

func TestHTTPHistory(t *testing.T) {
	h := new(stubHistory)
	recs := []persistence.Record{{ID: 2, MsgID: "b"}, {ID: 1, MsgID: "a"}}
	h.On("List", 2, 1).Return(recs, nil)
	h.On("List", 50, 0).Return(nil, nil)
	h.On("ListDevice", uint16(7), 50).Return(recs[:1], nil)

	srv := httptest.NewServer(NewServer(new(stubWriter), h, Config{}))
	defer srv.Close()

	get := func(path string) (int, []persistence.Record) {
		t.Helper()
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return resp.StatusCode, nil
		}
		var out []persistence.Record
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return resp.StatusCode, out
	}

	code, out := get("/api/v1/history?limit=2&offset=1")
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, out, 2)

	code, out = get("/api/v1/history")
	assert.Equal(t, http.StatusOK, code)
	assert.NotNil(t, out)
	assert.Empty(t, out)

	code, out = get("/api/v1/history?deviceAddr=7")
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, out, 1)
	assert.Equal(t, "b", out[0].MsgID)

	code, _ = get("/api/v1/history?limit=abc")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = get("/api/v1/history?offset=-1")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = get("/api/v1/history?deviceAddr=70000")
	assert.Equal(t, http.StatusBadRequest, code)

	h.AssertExpectations(t)
}

func TestHTTPHealth(t *testing.T) {
	srv := httptest.NewServer(NewServer(new(stubWriter), nil, Config{Version: "1.2.3", Link: linkState(true)}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "1.2.3", body["version"])
	assert.Equal(t, "up", body["link"])

	post, err := http.Post(srv.URL+"/api/v1/health", "application/json", bytes.NewReader(nil))
	require.NoError(t, err)
	post.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, post.StatusCode)
}
