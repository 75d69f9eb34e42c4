// Package transport carries DPA packets between the gateway and the
// coordinator.
//
// The stack, from the wire up:
//
//	┌────────────────────────────────┐
//	│  Lease (exclusive session)     │
//	├────────────────────────────────┤
//	│  Conn (request/confirmation/   │
//	│        response correlation)   │
//	├────────────────────────────────┤
//	│  Link: HDLC over serial, or    │
//	│        length prefix over TCP  │
//	└────────────────────────────────┘
//
// A Channel performs one blocking exchange: it sends a request and waits for
// the matching response, recording every frame with its timestamp in a
// Transaction. The Arbiter hands out exclusive Leases on a Channel so that
// only one logical operation drives the shared half-duplex radio at a time.
// Lease.Release is idempotent and must be deferred by the holder.
package transport
