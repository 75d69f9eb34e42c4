package transport

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/dpa"
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/log"
)

// fakeCoordinator answers requests on the far end of a pipe.
// reply returns the frames to send back for each request.
func fakeCoordinator(t *testing.T, reply func(req dpa.Request) []dpa.Response) (Link, func()) {
	t.Helper()
	near, far := net.Pipe()
	framer := NewFramer(far)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			data, err := framer.ReadFrame()
			if err != nil {
				return
			}
			req, err := dpa.ParseRequest(data)
			if err != nil {
				return
			}
			for _, rsp := range reply(req) {
				raw, _ := rsp.MarshalBinary()
				if err := framer.WriteFrame(raw); err != nil {
					return
				}
			}
		}
	}()

	stop := func() {
		far.Close()
		<-done
	}
	return NewStreamLink("pipe", near, nil), stop
}

func answer(req dpa.Request, errN dpa.ErrorCode, pdata []byte) dpa.Response {
	return dpa.Response{NADR: req.NADR, PNUM: req.PNUM, PCMD: req.PCMD, HWPID: req.HWPID, ErrN: errN, PData: pdata}
}

func TestConnCoordinatorExchange(t *testing.T) {
	link, stop := fakeCoordinator(t, func(req dpa.Request) []dpa.Response {
		return []dpa.Response{answer(req, dpa.ErrorNone, []byte{0x02})}
	})
	defer stop()

	rec := &recordingLogger{}
	c := NewConn(ConnConfig{ProtocolLogger: rec})
	require.NoError(t, c.Attach(link))
	defer c.Close()

	ctx := WithSessionID(context.Background(), "lease-1")
	tx, err := c.Exchange(ctx, dpa.BondedDevicesRequest(), time.Second)
	require.NoError(t, err)
	assert.True(t, tx.HasResponse())
	assert.Empty(t, tx.Confirmation)
	assert.Equal(t, []byte{0x02}, tx.Parsed.PData)
	assert.False(t, tx.ResponseTs.Before(tx.RequestTs))

	var packets int
	for _, e := range rec.events {
		if e.Packet != nil {
			packets++
			assert.Equal(t, "lease-1", e.SessionID)
		}
	}
	assert.Equal(t, 2, packets)
}

func TestConnRemoteNodeWithConfirmation(t *testing.T) {
	link, stop := fakeCoordinator(t, func(req dpa.Request) []dpa.Response {
		conf := answer(req, dpa.StatusConfirmation, []byte{0x08, 0x01})
		conf.DpaValue = 1
		return []dpa.Response{
			answer(dpa.Request{NADR: 99, PNUM: 9, PCMD: 9}, dpa.ErrorNone, nil), // unsolicited
			conf,
			answer(req, dpa.ErrorNone, nil),
		}
	})
	defer stop()

	c := NewConn(DefaultConnConfig())
	require.NoError(t, c.Attach(link))
	defer c.Close()

	req, err := dpa.WriteCfgByteRequest(5, dpa.HWPIDDoNotCheck, []dpa.ConfigByte{{Address: 0x11, Value: 10, Mask: 0xFF}})
	require.NoError(t, err)

	tx, err := c.Exchange(context.Background(), req, time.Second)
	require.NoError(t, err)
	assert.NotEmpty(t, tx.Confirmation)
	assert.NotEmpty(t, tx.Response)
	assert.Equal(t, uint16(5), tx.Parsed.NADR)
}

func TestConnResponseError(t *testing.T) {
	link, stop := fakeCoordinator(t, func(req dpa.Request) []dpa.Response {
		return []dpa.Response{answer(req, dpa.ErrorData, nil)}
	})
	defer stop()

	c := NewConn(DefaultConnConfig())
	require.NoError(t, c.Attach(link))
	defer c.Close()

	tx, err := c.Exchange(context.Background(), dpa.ReadCfgRequest(0), time.Second)
	var rerr *dpa.ResponseError
	require.True(t, errors.As(err, &rerr), "got %v", err)
	assert.Equal(t, dpa.ErrorData, rerr.Code)
	assert.True(t, tx.HasResponse())
}

func TestConnTimeout(t *testing.T) {
	link, stop := fakeCoordinator(t, func(dpa.Request) []dpa.Response { return nil })
	defer stop()

	c := NewConn(DefaultConnConfig())
	require.NoError(t, c.Attach(link))
	defer c.Close()

	tx, err := c.Exchange(context.Background(), dpa.ReadCfgRequest(0), 30*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.NotEmpty(t, tx.Request)
	assert.False(t, tx.HasResponse())
}

func TestConnLinkDown(t *testing.T) {
	link, stop := fakeCoordinator(t, func(dpa.Request) []dpa.Response { return nil })

	lost := make(chan error, 1)
	c := NewConn(ConnConfig{OnLinkDown: func(err error) { lost <- err }})
	require.NoError(t, c.Attach(link))
	defer c.Close()

	stop()
	select {
	case <-lost:
	case <-time.After(time.Second):
		t.Fatal("OnLinkDown not called")
	}
	assert.False(t, c.Connected())

	_, err := c.Exchange(context.Background(), dpa.ReadCfgRequest(0), time.Second)
	assert.ErrorIs(t, err, ErrLinkDown)
}

func TestConnClosed(t *testing.T) {
	c := NewConn(DefaultConnConfig())
	require.NoError(t, c.Close())
	_, err := c.Exchange(context.Background(), dpa.ReadCfgRequest(0), time.Second)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, c.Attach(NewStreamLink("x", nopRWC{}, log.NoopLogger{})), ErrClosed)
}

type nopRWC struct{}

func (nopRWC) Read([]byte) (int, error)    { return 0, errors.New("closed") }
func (nopRWC) Write(p []byte) (int, error) { return len(p), nil }
func (nopRWC) Close() error                { return nil }
