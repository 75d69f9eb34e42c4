package meshsim

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/dpa"
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/transport"
)

// Bridge serves a Network to length-prefixed stream clients.
type Bridge struct {
	Network *Network

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	wg sync.WaitGroup
}

// Serve accepts connections until ctx is done or ln fails.
func (b *Bridge) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	defer b.wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			defer conn.Close()
			if err := b.ServeConn(ctx, conn); err != nil {
				b.debugLog("bridge connection ended", "remote", conn.RemoteAddr().String(), "error", err)
			}
		}()
	}
}

// ServeConn answers requests on one stream until it fails. Remote node
// requests get a confirmation frame before the response.
func (b *Bridge) ServeConn(ctx context.Context, rw io.ReadWriter) error {
	framer := transport.NewFramer(rw)
	for {
		data, err := framer.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		req, err := dpa.ParseRequest(data)
		if err != nil {
			b.debugLog("dropping bad request", "error", err)
			continue
		}
		tx, _ := b.Network.Exchange(ctx, req, 0)
		for _, frame := range [][]byte{tx.Confirmation, tx.Response} {
			if len(frame) == 0 {
				continue
			}
			if err := framer.WriteFrame(frame); err != nil {
				return err
			}
		}
	}
}

func (b *Bridge) debugLog(msg string, args ...any) {
	if b.Logger != nil {
		b.Logger.Debug(msg, args...)
	}
}
