package transport

import (
	"context"
	"errors"
	"time"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/dpa"
)

// Transport errors.
var (
	// ErrTimeout indicates no confirmation or response arrived in time.
	ErrTimeout = errors.New("transport: timeout")

	// ErrClosed indicates the channel or link is closed.
	ErrClosed = errors.New("transport: closed")

	// ErrLinkDown indicates the coordinator link is not available.
	ErrLinkDown = errors.New("transport: link down")

	// ErrLeaseReleased indicates use of a lease after Release.
	ErrLeaseReleased = errors.New("transport: lease released")

	// ErrLeaseHeld indicates another operation holds the lease.
	ErrLeaseHeld = errors.New("transport: lease held by another operation")
)

// Transaction records one request and the frames exchanged for it.
// Byte fields are the raw packets; timestamps are zero when the frame
// was not received.
type Transaction struct {
	Request        []byte
	RequestTs      time.Time
	Confirmation   []byte
	ConfirmationTs time.Time
	Response       []byte
	ResponseTs     time.Time

	// Parsed is the decoded response, valid when Response is set.
	Parsed dpa.Response
}

// HasResponse reports whether a response frame was received.
func (t *Transaction) HasResponse() bool {
	return len(t.Response) > 0
}

// Channel performs blocking DPA exchanges.
//
// Exchange sends req and waits up to timeout for its response (a zero
// timeout selects the channel default). The returned Transaction holds
// whatever frames were exchanged, also on error. A node-reported failure
// is returned as *dpa.ResponseError; a missing response as ErrTimeout.
type Channel interface {
	Exchange(ctx context.Context, req dpa.Request, timeout time.Duration) (Transaction, error)
}

type sessionKey struct{}

// WithSessionID annotates ctx with the lease session ID for capture events.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

// SessionIDFrom returns the session ID stored by WithSessionID.
func SessionIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}
