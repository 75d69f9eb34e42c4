package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/dpa"
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/log"
)

// ConnConfig configures a Conn.
type ConnConfig struct {
	// DefaultTimeout applies when Exchange is called with a zero timeout.
	// For remote nodes the window restarts after the confirmation.
	DefaultTimeout time.Duration

	// RxQueue is the number of received frames buffered between the
	// read loop and Exchange.
	RxQueue int

	// OnLinkDown is called from the read loop when the link fails.
	OnLinkDown func(err error)

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// ProtocolLogger receives decoded packet events. Optional.
	ProtocolLogger log.Logger
}

// DefaultConnConfig returns the default Conn configuration.
func DefaultConnConfig() ConnConfig {
	return ConnConfig{
		DefaultTimeout: 2 * time.Second,
		RxQueue:        8,
	}
}

type rxFrame struct {
	rsp dpa.Response
	raw []byte
	at  time.Time
}

// Conn correlates DPA requests with confirmations and responses on a Link.
// Exchanges are serialized; frames that answer no pending request are dropped.
type Conn struct {
	cfg  ConnConfig
	plog log.Logger

	exMu sync.Mutex

	mu     sync.Mutex
	link   Link
	rx     chan rxFrame
	down   chan struct{}
	closed bool
	wg     sync.WaitGroup
}

// NewConn creates a Conn with no link attached.
func NewConn(cfg ConnConfig) *Conn {
	def := DefaultConnConfig()
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = def.DefaultTimeout
	}
	if cfg.RxQueue <= 0 {
		cfg.RxQueue = def.RxQueue
	}
	return &Conn{cfg: cfg, plog: log.OrNoop(cfg.ProtocolLogger)}
}

// Attach starts serving exchanges over link, closing any previous link.
func (c *Conn) Attach(link Link) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	old := c.link
	c.link = link
	c.rx = make(chan rxFrame, c.cfg.RxQueue)
	c.down = make(chan struct{})
	rx, down := c.rx, c.down
	c.wg.Add(1)
	c.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	c.debugLog("link attached", "link", link.Name())
	c.linkEvent(link.Name(), "down", "up", "")
	go c.readLoop(link, rx, down)
	return nil
}

// Connected reports whether a link is attached and healthy.
func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.link != nil
}

// LinkName returns the name of the attached link, or "".
func (c *Conn) LinkName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.link == nil {
		return ""
	}
	return c.link.Name()
}

// Close detaches and closes the link. Later exchanges fail with ErrClosed.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	link := c.link
	c.link = nil
	c.mu.Unlock()

	var err error
	if link != nil {
		err = link.Close()
	}
	c.wg.Wait()
	return err
}

func (c *Conn) readLoop(link Link, rx chan rxFrame, down chan struct{}) {
	defer c.wg.Done()
	for {
		data, err := link.ReadFrame()
		if err != nil {
			if errors.Is(err, ErrBadChecksum) || errors.Is(err, ErrMessageTooLarge) || errors.Is(err, ErrMessageEmpty) {
				c.debugLog("dropping bad frame", "link", link.Name(), "error", err)
				continue
			}
			c.linkLost(link, down, err)
			return
		}
		rsp, err := dpa.ParseResponse(data)
		if err != nil {
			c.debugLog("dropping unparsable frame", "link", link.Name(), "error", err)
			continue
		}
		select {
		case rx <- rxFrame{rsp: rsp, raw: data, at: time.Now()}:
		default:
			c.debugLog("rx queue full, dropping frame", "nadr", rsp.NADR, "pnum", rsp.PNUM)
		}
	}
}

func (c *Conn) linkLost(link Link, down chan struct{}, err error) {
	c.mu.Lock()
	current := c.link == link
	if current {
		c.link = nil
	}
	closed := c.closed
	c.mu.Unlock()

	close(down)
	if !current || closed {
		return
	}
	_ = link.Close()
	c.debugLog("link lost", "link", link.Name(), "error", err)
	c.linkEvent(link.Name(), "up", "down", err.Error())
	if c.cfg.OnLinkDown != nil {
		c.cfg.OnLinkDown(err)
	}
}

// Exchange implements Channel.
func (c *Conn) Exchange(ctx context.Context, req dpa.Request, timeout time.Duration) (Transaction, error) {
	c.exMu.Lock()
	defer c.exMu.Unlock()

	c.mu.Lock()
	link, rx, down, closed := c.link, c.rx, c.down, c.closed
	c.mu.Unlock()
	if closed {
		return Transaction{}, ErrClosed
	}
	if link == nil {
		return Transaction{}, ErrLinkDown
	}

	raw, err := req.MarshalBinary()
	if err != nil {
		return Transaction{}, err
	}
	if timeout <= 0 {
		timeout = c.cfg.DefaultTimeout
	}

	// Stale frames belong to earlier exchanges.
	for drained := false; !drained; {
		select {
		case <-rx:
		default:
			drained = true
		}
	}

	tx := Transaction{Request: raw, RequestTs: time.Now()}
	if err := link.WriteFrame(raw); err != nil {
		return tx, fmt.Errorf("%w: %v", ErrLinkDown, err)
	}
	session := SessionIDFrom(ctx)
	c.packetEvent(session, req.NADR, log.DirectionOut, log.RequestPacket(req))

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return tx, ctx.Err()
		case <-down:
			return tx, ErrLinkDown
		case <-timer.C:
			return tx, fmt.Errorf("%w after %s (nadr=%d pnum=%#02x pcmd=%#02x)", ErrTimeout, timeout, req.NADR, req.PNUM, req.PCMD)
		case f := <-rx:
			if !f.rsp.Matches(req) {
				continue
			}
			c.packetEvent(session, req.NADR, log.DirectionIn, log.ResponsePacket(f.rsp, f.at.Sub(tx.RequestTs)))
			if f.rsp.IsConfirmation() {
				tx.Confirmation, tx.ConfirmationTs = f.raw, f.at
				if req.NADR == dpa.BroadcastAddress {
					return tx, nil
				}
				timer.Reset(timeout)
				continue
			}
			tx.Response, tx.ResponseTs, tx.Parsed = f.raw, f.at, f.rsp
			return tx, f.rsp.Err()
		}
	}
}

func (c *Conn) packetEvent(session string, nadr uint16, dir log.Direction, p *log.PacketEvent) {
	c.plog.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: session,
		Direction: dir,
		Layer:     log.LayerDPA,
		Category:  log.CategoryMessage,
		Link:      c.LinkName(),
		NodeAddr:  &nadr,
		Packet:    p,
	})
}

func (c *Conn) linkEvent(name, from, to, reason string) {
	c.plog.Log(log.Event{
		Timestamp:   time.Now(),
		Layer:       log.LayerTransport,
		Category:    log.CategoryState,
		Link:        name,
		StateChange: &log.StateChangeEvent{Entity: log.StateEntityLink, OldState: from, NewState: to, Reason: reason},
	})
}

func (c *Conn) debugLog(msg string, args ...any) {
	if c.cfg.Logger != nil {
		c.cfg.Logger.Debug(msg, args...)
	}
}

var _ Channel = (*Conn)(nil)
