package trconf

import (
	"context"
	"fmt"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/dpa"
)

// UnicastWriter writes config bytes to one node in chunks of at most
// dpa.MaxTripletsPerRequest triplets. After a chunk fails all retries the
// node is marked failed and no further chunk is sent. Chunks acknowledged
// earlier stay written.
type UnicastWriter struct {
	s       *session
	nadr    uint16
	hwpid   uint16
	pending []dpa.ConfigByte
	written int
	err     error
}

func newUnicastWriter(s *session, nadr, hwpid uint16, bytes []dpa.ConfigByte) *UnicastWriter {
	return &UnicastWriter{s: s, nadr: nadr, hwpid: hwpid, pending: bytes}
}

// Remaining returns the number of config bytes not yet sent.
func (w *UnicastWriter) Remaining() int { return len(w.pending) }

// Written returns the number of config bytes acknowledged by the node.
func (w *UnicastWriter) Written() int { return w.written }

// Err returns the failure that stopped the writer, or nil.
func (w *UnicastWriter) Err() error { return w.err }

// Done reports whether nothing more will be sent.
func (w *UnicastWriter) Done() bool { return len(w.pending) == 0 || w.err != nil }

// SendNext sends the next chunk from the front of the pending bytes.
func (w *UnicastWriter) SendNext(ctx context.Context) error {
	if w.Done() {
		return w.err
	}
	n := min(len(w.pending), dpa.MaxTripletsPerRequest)
	chunk := w.pending[:n]

	req, err := dpa.WriteCfgByteRequest(w.nadr, w.hwpid, chunk)
	if err != nil {
		w.err = validationf(ErrOutOfRange, "%v", err)
		return w.err
	}
	if _, out := w.s.exchangeRepeat(ctx, req); !out.OK() {
		w.err = newError(errorKind(out.Err), fmt.Sprintf("write config bytes to node %d failed", w.nadr), out.Err)
		w.s.rb.fail(w.nadr, NodeWriteFailed, out.Err.Error())
		w.s.errorEvent(w.nadr, "write config bytes", out.Err)
		return w.err
	}
	w.pending = w.pending[n:]
	w.written += n
	w.s.rb.acked(w.nadr, n)
	w.s.debugLog("config bytes written", "nadr", w.nadr, "count", n, "remaining", len(w.pending))
	return nil
}

// WriteAll sends chunks until done and returns the stopping error.
func (w *UnicastWriter) WriteAll(ctx context.Context) error {
	for !w.Done() {
		if err := w.SendNext(ctx); err != nil {
			return err
		}
	}
	return w.err
}

// writeWholeConfig writes every configuration byte in one request.
func writeWholeConfig(ctx context.Context, s *session, nadr, hwpid uint16, cfg dpa.HWPConfiguration) error {
	req := dpa.WriteCfgRequest(nadr, cfg)
	req.HWPID = hwpid
	if _, out := s.exchangeRepeat(ctx, req); !out.OK() {
		s.rb.fail(nadr, NodeWriteFailed, out.Err.Error())
		s.errorEvent(nadr, "write configuration", out.Err)
		return newError(errorKind(out.Err), fmt.Sprintf("write configuration to node %d failed", nadr), out.Err)
	}
	s.rb.acked(nadr, dpa.ConfigBytesLen)
	s.debugLog("whole configuration written", "nadr", nadr)
	return nil
}

// writeSecurityUnicast sets a password or user key on one node.
func writeSecurityUnicast(ctx context.Context, s *session, nadr, hwpid uint16, typ dpa.SecurityType, key []byte) error {
	req, err := dpa.SetSecurityRequest(nadr, hwpid, typ, key)
	if err != nil {
		return validationf(ErrOutOfRange, "%v", err)
	}
	if _, out := s.exchangeRepeat(ctx, req); !out.OK() {
		s.rb.fail(nadr, securityOutcome(typ), out.Err.Error())
		s.errorEvent(nadr, "set security "+typ.String(), out.Err)
		return newError(KindSecurityWrite, fmt.Sprintf("set %s on node %d failed", typ, nadr), out.Err)
	}
	s.rb.node(nadr)
	return nil
}

func securityOutcome(typ dpa.SecurityType) WriteOutcome {
	if typ == dpa.SecurityUserKey {
		return NodeSecurityUserKeyFailed
	}
	return NodeSecurityPasswordFailed
}
