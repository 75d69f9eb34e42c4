package trconf

import (
	"context"
	"log/slog"
	"time"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/dpa"
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/log"
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/transport"
)

// session is the per-write exchange context. It records every
// transaction into the result builder.
type session struct {
	ch         transport.Channel
	id         string
	timeout    time.Duration
	frcTimeout time.Duration
	repeat     int
	rb         *resultBuilder
	logger     *slog.Logger
	plog       log.Logger
}

func (s *session) exchange(ctx context.Context, req dpa.Request, timeout time.Duration) (dpa.Response, error) {
	tx, err := s.ch.Exchange(ctx, req, timeout)
	if len(tx.Request) > 0 {
		s.rb.addTransaction(tx)
	}
	return tx.Parsed, err
}

// exchangeRepeat retries req up to repeat times on transport and
// protocol errors.
func (s *session) exchangeRepeat(ctx context.Context, req dpa.Request) (dpa.Response, Outcome) {
	var rsp dpa.Response
	out, attempts := Do(ctx, s.repeat, func(attempt int) Outcome {
		var err error
		rsp, err = s.exchange(ctx, req, s.timeout)
		o := classify(err)
		if !o.OK() {
			s.debugLog("exchange failed", "nadr", req.NADR, "pnum", req.PNUM, "pcmd", req.PCMD, "attempt", attempt, "error", err)
		}
		return o
	})
	if !out.OK() && attempts > 1 {
		s.debugLog("exchange gave up", "nadr", req.NADR, "pnum", req.PNUM, "pcmd", req.PCMD, "attempts", attempts)
	}
	return rsp, out
}

func (s *session) stateEvent(entity log.StateEntity, from, to, reason string) {
	s.plog.Log(log.Event{
		Timestamp:   time.Now(),
		SessionID:   s.id,
		Layer:       log.LayerService,
		Category:    log.CategoryState,
		StateChange: &log.StateChangeEvent{Entity: entity, OldState: from, NewState: to, Reason: reason},
	})
}

func (s *session) roundEvent(step string, attempt int, status uint8, selected []uint16, sets AckSets) {
	s.plog.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: s.id,
		Direction: log.DirectionIn,
		Layer:     log.LayerService,
		Category:  log.CategoryMessage,
		FrcRound: &log.FrcRoundEvent{
			Step:         step,
			Attempt:      attempt,
			Status:       status,
			Selected:     log.NodeSet(selected),
			Matched:      log.NodeSet(sets.Matched),
			NotMatched:   log.NodeSet(sets.NotMatched),
			NotResponded: log.NodeSet(sets.NotResponded),
		},
	})
}

func (s *session) errorEvent(nadr uint16, op string, err error) {
	s.plog.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: s.id,
		Layer:     log.LayerService,
		Category:  log.CategoryError,
		NodeAddr:  &nadr,
		Error:     &log.ErrorEventData{Layer: log.LayerService, Message: err.Error(), Context: op},
	})
}

func (s *session) debugLog(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, append([]any{"session", s.id}, args...)...)
	}
}
