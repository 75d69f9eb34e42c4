package trconf

import (
	"context"
	"errors"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/dpa"
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/transport"
)

// OutcomeKind is the result class of one attempt.
type OutcomeKind uint8

// Outcome kinds.
const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeRetryable
	OutcomeFatal
)

// String returns the outcome name.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "SUCCESS"
	case OutcomeRetryable:
		return "RETRYABLE"
	case OutcomeFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Outcome is the result of one attempt.
type Outcome struct {
	Kind OutcomeKind
	Err  error
}

// Success is a successful attempt.
var Success = Outcome{Kind: OutcomeSuccess}

// RetryableError marks a failed attempt that may be repeated.
func RetryableError(err error) Outcome { return Outcome{Kind: OutcomeRetryable, Err: err} }

// FatalError marks a failed attempt that must not be repeated.
func FatalError(err error) Outcome { return Outcome{Kind: OutcomeFatal, Err: err} }

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool { return o.Kind == OutcomeSuccess }

// Do runs fn until it succeeds, fails fatally, or repeat+1 attempts have
// been made. It returns the last outcome and the number of attempts.
// A done ctx ends the loop with a fatal outcome before the next attempt.
func Do(ctx context.Context, repeat int, fn func(attempt int) Outcome) (Outcome, int) {
	if repeat < 0 {
		repeat = 0
	}
	var last Outcome
	for attempt := 0; attempt <= repeat; attempt++ {
		if err := ctx.Err(); err != nil {
			return FatalError(err), attempt
		}
		last = fn(attempt)
		if last.Kind != OutcomeRetryable {
			return last, attempt + 1
		}
	}
	return last, repeat + 1
}

// classify maps an exchange error to an outcome.
func classify(err error) Outcome {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, transport.ErrClosed), errors.Is(err, transport.ErrLeaseReleased):
		return FatalError(err)
	}
	return RetryableError(err)
}

// errorKind returns the kind for a failed exchange.
func errorKind(err error) Kind {
	var rerr *dpa.ResponseError
	switch {
	case errors.As(err, &rerr):
		return KindProtocol
	case errors.Is(err, ErrBadFrcStatus):
		return KindBadFrcStatus
	}
	return KindTransport
}
