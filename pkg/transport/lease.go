package transport

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/dpa"
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/log"
)

// Arbiter grants exclusive leases on a Channel.
type Arbiter struct {
	ch     Channel
	token  chan struct{}
	logger *slog.Logger
	plog   log.Logger

	mu     sync.Mutex
	holder string
}

// ArbiterConfig configures an Arbiter.
type ArbiterConfig struct {
	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// ProtocolLogger receives lease state changes. Optional.
	ProtocolLogger log.Logger
}

// NewArbiter creates an arbiter over ch.
func NewArbiter(ch Channel, cfg ArbiterConfig) *Arbiter {
	a := &Arbiter{
		ch:     ch,
		token:  make(chan struct{}, 1),
		logger: cfg.Logger,
		plog:   log.OrNoop(cfg.ProtocolLogger),
	}
	a.token <- struct{}{}
	return a
}

// Acquire blocks until the lease is free or ctx is done.
func (a *Arbiter) Acquire(ctx context.Context, purpose string) (*Lease, error) {
	select {
	case <-a.token:
		return a.grant(purpose), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryAcquire returns ErrLeaseHeld instead of waiting.
func (a *Arbiter) TryAcquire(purpose string) (*Lease, error) {
	select {
	case <-a.token:
		return a.grant(purpose), nil
	default:
		return nil, ErrLeaseHeld
	}
}

// Holder returns the purpose of the current lease, or "".
func (a *Arbiter) Holder() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.holder
}

func (a *Arbiter) grant(purpose string) *Lease {
	l := &Lease{id: uuid.New().String(), arbiter: a, acquired: time.Now()}
	a.mu.Lock()
	a.holder = purpose
	a.mu.Unlock()
	a.debugLog("lease acquired", "lease", l.id, "purpose", purpose)
	a.stateEvent(l.id, "free", "held", purpose)
	return l
}

func (a *Arbiter) release(l *Lease) {
	a.mu.Lock()
	a.holder = ""
	a.mu.Unlock()
	a.debugLog("lease released", "lease", l.id, "held", time.Since(l.acquired))
	a.stateEvent(l.id, "held", "free", "")
	a.token <- struct{}{}
}

func (a *Arbiter) stateEvent(id, from, to, reason string) {
	a.plog.Log(log.Event{
		Timestamp:   time.Now(),
		SessionID:   id,
		Layer:       log.LayerService,
		Category:    log.CategoryState,
		StateChange: &log.StateChangeEvent{Entity: log.StateEntityLease, OldState: from, NewState: to, Reason: reason},
	})
}

func (a *Arbiter) debugLog(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}

// Lease is exclusive use of the channel. It implements Channel.
type Lease struct {
	id       string
	arbiter  *Arbiter
	acquired time.Time

	mu       sync.Mutex
	released bool
	once     sync.Once
}

// ID returns the lease UUID.
func (l *Lease) ID() string { return l.id }

// Exchange forwards to the underlying channel while the lease is held.
func (l *Lease) Exchange(ctx context.Context, req dpa.Request, timeout time.Duration) (Transaction, error) {
	l.mu.Lock()
	released := l.released
	l.mu.Unlock()
	if released {
		return Transaction{}, ErrLeaseReleased
	}
	return l.arbiter.ch.Exchange(WithSessionID(ctx, l.id), req, timeout)
}

// Release returns the lease. Calling it more than once is a no-op.
func (l *Lease) Release() {
	l.once.Do(func() {
		l.mu.Lock()
		l.released = true
		l.mu.Unlock()
		l.arbiter.release(l)
	})
}

var _ Channel = (*Lease)(nil)
