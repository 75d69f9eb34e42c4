package connection

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/transport"
)

// Supervisor errors.
var (
	ErrSupervisorClosed = errors.New("connection: supervisor closed")
	ErrAlreadyStarted   = errors.New("connection: already started")
)

// State is the link state as seen by the supervisor.
type State uint8

const (
	// StateDisconnected indicates the supervisor has not started.
	StateDisconnected State = iota

	// StateConnecting indicates the first dial is in progress.
	StateConnecting

	// StateConnected indicates a link is attached.
	StateConnected

	// StateReconnecting indicates the link was lost and redials are running.
	StateReconnecting

	// StateClosed indicates the supervisor has been closed.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// DialFunc opens a new coordinator link.
type DialFunc func(ctx context.Context) (transport.Link, error)

// Attacher accepts a freshly dialed link. *transport.Conn implements it.
type Attacher interface {
	Attach(link transport.Link) error
}

// SupervisorConfig configures a Supervisor.
type SupervisorConfig struct {
	// Backoff tunes the redial delays. Zero fields take the defaults.
	Backoff BackoffConfig

	// DialTimeout bounds a single dial attempt (default 10s).
	DialTimeout time.Duration

	// OnStateChange is called on every state transition. Optional.
	OnStateChange func(oldState, newState State)

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// DefaultSupervisorConfig returns the default configuration.
func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		Backoff:     ProfileFor(LinkTCP),
		DialTimeout: 10 * time.Second,
	}
}

// Supervisor dials the coordinator link and redials it after loss.
type Supervisor struct {
	conn    Attacher
	dial    DialFunc
	cfg     SupervisorConfig
	backoff *Backoff

	mu      sync.Mutex
	state   State
	started bool
	lastErr error

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	reconnect chan struct{}
}

// NewSupervisor creates a supervisor attaching links from dial to conn.
func NewSupervisor(conn Attacher, dial DialFunc, cfg SupervisorConfig) *Supervisor {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultSupervisorConfig().DialTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		conn:      conn,
		dial:      dial,
		cfg:       cfg,
		backoff:   NewBackoffWithConfig(cfg.Backoff),
		ctx:       ctx,
		cancel:    cancel,
		reconnect: make(chan struct{}, 1),
	}
}

// State returns the current state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError returns the most recent dial or link error, or nil.
func (s *Supervisor) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Attempts returns the number of failed redials since the last attach.
func (s *Supervisor) Attempts() int {
	return s.backoff.Attempts()
}

// Start performs the first dial and starts the redial loop. If the first
// dial fails the error is returned and the supervisor keeps retrying in
// the background.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrSupervisorClosed
	}
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop()

	s.setState(StateConnecting)
	if err := s.connect(ctx); err != nil {
		s.debugLog("initial dial failed", "error", err)
		s.setState(StateReconnecting)
		s.trigger()
		return err
	}
	return nil
}

// NotifyLinkLost starts redialing. Wire it to transport.ConnConfig.OnLinkDown.
func (s *Supervisor) NotifyLinkLost(err error) {
	s.mu.Lock()
	if s.state != StateConnected {
		s.mu.Unlock()
		return
	}
	s.lastErr = err
	s.mu.Unlock()

	s.debugLog("link lost", "error", err)
	s.setState(StateReconnecting)
	s.trigger()
}

// Close stops the redial loop. It does not close the attached link.
func (s *Supervisor) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.setState(StateClosed)
	s.cancel()
	s.wg.Wait()
}

func (s *Supervisor) connect(ctx context.Context) error {
	dctx, cancel := context.WithTimeout(ctx, s.cfg.DialTimeout)
	defer cancel()

	link, err := s.dial(dctx)
	if err == nil {
		err = s.conn.Attach(link)
		if err != nil {
			_ = link.Close()
		}
	}
	if err != nil {
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	closed := s.state == StateClosed
	if !closed {
		s.lastErr = nil
	}
	s.mu.Unlock()
	if closed {
		return ErrSupervisorClosed
	}
	s.backoff.Reset()
	s.debugLog("link attached", "link", link.Name())
	s.setState(StateConnected)
	return nil
}

func (s *Supervisor) trigger() {
	select {
	case s.reconnect <- struct{}{}:
	default:
	}
}

func (s *Supervisor) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.reconnect:
			s.redial()
		}
	}
}

func (s *Supervisor) redial() {
	for {
		if st := s.State(); st == StateClosed || st == StateConnected {
			return
		}

		delay := s.backoff.Next()
		s.debugLog("redialing", "attempt", s.backoff.Attempts(), "delay", delay)

		timer := time.NewTimer(delay)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		err := s.connect(s.ctx)
		if err == nil {
			return
		}
		s.debugLog("redial failed", "error", err)
	}
}

func (s *Supervisor) setState(next State) {
	s.mu.Lock()
	prev := s.state
	if prev == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = next
	fn := s.cfg.OnStateChange
	s.mu.Unlock()

	if fn != nil && prev != next {
		fn(prev, next)
	}
}

func (s *Supervisor) debugLog(msg string, args ...any) {
	if s.cfg.Logger != nil {
		s.cfg.Logger.Debug(msg, args...)
	}
}

var _ Attacher = (*transport.Conn)(nil)
