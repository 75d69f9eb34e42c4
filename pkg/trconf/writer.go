package trconf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/dpa"
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/log"
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/transport"
)

// Config configures a Writer.
type Config struct {
	// Timeout bounds one unicast exchange. Zero selects the channel default.
	Timeout time.Duration

	// FrcTimeout bounds one FRC send, which waits for the whole network.
	FrcTimeout time.Duration

	// RepeatMax replaces a request repeat count above MaxRepeat.
	RepeatMax int

	// Journal persists the FRC unwind. Optional.
	Journal Journal

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// ProtocolLogger receives FRC side-effect state changes. Optional.
	ProtocolLogger log.Logger
}

// DefaultConfig returns the default Writer configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:    0,
		FrcTimeout: 10 * time.Second,
		RepeatMax:  3,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Timeout < 0 {
		c.Timeout = def.Timeout
	}
	if c.FrcTimeout <= 0 {
		c.FrcTimeout = def.FrcTimeout
	}
	if c.RepeatMax <= 0 {
		c.RepeatMax = def.RepeatMax
	}
	if c.Journal == nil {
		c.Journal = noJournal{}
	}
	return c
}

// Request is one configuration write.
type Request struct {
	// DeviceAddr is a node address, 0 for the coordinator, or
	// dpa.BroadcastAddress for every bonded node.
	DeviceAddr uint16

	// HWPID selects the hardware profile the nodes must match;
	// dpa.HWPIDDoNotCheck accepts any.
	HWPID uint16

	Options     Options
	ConfigBytes []dpa.ConfigByte

	// AccessPassword and UserKey are written after the config bytes when set.
	AccessPassword []byte
	UserKey        []byte

	// RFBand, when set, must equal the coordinator band.
	RFBand dpa.RFBand

	// IncludeCoordinator also writes the coordinator on broadcast.
	IncludeCoordinator bool

	// Repeat is the retry budget per exchange.
	Repeat int
}

func (r *Request) secrets() []secret {
	var out []secret
	if len(r.AccessPassword) > 0 {
		out = append(out, secret{typ: dpa.SecurityPassword, key: r.AccessPassword})
	}
	if len(r.UserKey) > 0 {
		out = append(out, secret{typ: dpa.SecurityUserKey, key: r.UserKey})
	}
	return out
}

// validate performs the checks that need no protocol state.
func (r *Request) validate() error {
	if r.DeviceAddr > dpa.MaxNodeAddress && r.DeviceAddr != dpa.BroadcastAddress {
		return validationf(ErrOutOfRange, "Device address outside of valid range")
	}
	if r.Options.Empty() && len(r.ConfigBytes) == 0 && len(r.secrets()) == 0 {
		return validationf(ErrOutOfRange, "No config bytes specified")
	}
	if len(r.AccessPassword) > dpa.SecurityKeyLen {
		return validationf(ErrOutOfRange, "Access password too long")
	}
	if len(r.UserKey) > dpa.SecurityKeyLen {
		return validationf(ErrOutOfRange, "User key too long")
	}
	for _, b := range r.ConfigBytes {
		if !ValidAddress(b.Address) {
			return validationf(ErrOutOfRange, "Address of config byte out of valid range")
		}
	}
	return nil
}

// Writer runs configuration writes over a leased channel.
type Writer struct {
	arbiter *transport.Arbiter
	cfg     Config
}

// NewWriter creates a writer that leases arbiter's channel per write.
func NewWriter(arbiter *transport.Arbiter, cfg Config) *Writer {
	return &Writer{arbiter: arbiter, cfg: cfg.withDefaults()}
}

// MaxRepeat is the largest repeat count a request may carry.
const MaxRepeat = 0xFF

// RepeatMax returns the repeat count used for requests above MaxRepeat.
func (w *Writer) RepeatMax() int { return w.cfg.RepeatMax }

// clampRepeat maps a negative count to 0 and one above MaxRepeat to
// RepeatMax. Everything else is used as given.
func (w *Writer) clampRepeat(n int) int {
	if n < 0 {
		return 0
	}
	if n > MaxRepeat {
		return w.cfg.RepeatMax
	}
	return n
}

// Write performs req while holding the channel lease. The result is
// returned also on error when the channel was reached; it carries every
// exchange made. A failed FRC unwind is returned as a KindDisableFrc
// error next to an otherwise untouched result.
func (w *Writer) Write(ctx context.Context, req Request) (*Result, error) {
	lease, err := w.arbiter.Acquire(ctx, "trconf-write")
	if err != nil {
		return nil, newError(KindTransport, "acquire channel", err)
	}
	defer lease.Release()

	s := &session{
		ch:         lease,
		id:         lease.ID(),
		timeout:    w.cfg.Timeout,
		frcTimeout: w.cfg.FrcTimeout,
		repeat:     w.clampRepeat(req.Repeat),
		rb:         newResultBuilder(req.DeviceAddr, req.HWPID),
		logger:     w.cfg.Logger,
		plog:       log.OrNoop(w.cfg.ProtocolLogger),
	}
	s.stateEvent(log.StateEntityWrite, "", "started", fmt.Sprintf("nadr=%d", req.DeviceAddr))

	restart, err := w.run(ctx, s, &req)
	res := s.rb.finish(restart)

	state := "succeeded"
	if !res.WriteSuccess {
		state = "failed"
	}
	s.stateEvent(log.StateEntityWrite, "started", state, "")
	if w.cfg.Logger != nil {
		w.cfg.Logger.Info("config write finished",
			"session", s.id, "nadr", req.DeviceAddr, "success", res.WriteSuccess,
			"restart", res.RestartNeeded, "transactions", len(res.Transactions), "error", err)
	}
	return res, err
}

func (w *Writer) run(ctx context.Context, s *session, req *Request) (bool, error) {
	if err := req.validate(); err != nil {
		return false, err
	}

	snap, err := probeCoordinator(ctx, s)
	if err != nil {
		return false, err
	}
	s.rb.res.Snapshot = snap

	bonded, err := resolveBonded(ctx, s)
	if err != nil {
		return false, err
	}
	broadcast := req.DeviceAddr == dpa.BroadcastAddress
	if !broadcast && !bonded.Contains(req.DeviceAddr) {
		s.rb.fail(req.DeviceAddr, NodeNotBonded, "Node not bonded")
		return false, newError(KindNodeNotBonded, fmt.Sprintf("node %d is not bonded", req.DeviceAddr), nil)
	}
	if !broadcast && req.DeviceAddr != dpa.CoordinatorAddress {
		if err := probeNode(ctx, s, req.DeviceAddr, &snap); err != nil {
			s.rb.fail(req.DeviceAddr, NodeWriteFailed, err.Error())
			return false, err
		}
		s.rb.res.Snapshot = snap
	}

	var band dpa.RFBand
	if req.RFBand != 0 || req.Options.NeedsBand() {
		band, err = readBand(ctx, s)
		switch {
		case err != nil && req.RFBand == 0 && KindOf(err) == KindRFBand:
			band = 0
		case err != nil:
			return false, err
		case req.RFBand != 0 && band != req.RFBand:
			return false, newError(KindRFBand, fmt.Sprintf("RF band mismatch: coordinator %s, requested %s", band, req.RFBand), nil)
		}
	}

	optBytes, err := req.Options.ConfigBytes(snap, band)
	if err != nil {
		return false, err
	}
	bytes, err := Merge(optBytes, req.ConfigBytes, snap.DpaVersion)
	if err != nil {
		return false, err
	}
	secrets := req.secrets()
	if len(bytes) == 0 && len(secrets) == 0 {
		return false, validationf(ErrOutOfRange, "No config bytes specified")
	}
	s.rb.res.ConfigBytes = bytes
	restart := NeedsRestart(bytes, snap.DpaVersion)

	if broadcast {
		return restart, w.broadcast(ctx, s, snap, req, bonded, bytes, secrets)
	}
	return restart, w.unicast(ctx, s, snap, req.DeviceAddr, req.HWPID, bytes, secrets)
}

// unicast writes bytes and then secrets to one node. A config write
// failure skips the secrets; a failed secret does not stop the next one.
func (w *Writer) unicast(ctx context.Context, s *session, snap ProtocolSnapshot, nadr, hwpid uint16, bytes []dpa.ConfigByte, secrets []secret) error {
	s.rb.node(nadr)
	if cfg, ok := WholeConfiguration(bytes, snap.DpaVersion); ok {
		if err := writeWholeConfig(ctx, s, nadr, hwpid, cfg); err != nil {
			return err
		}
	} else if len(bytes) > 0 {
		if err := newUnicastWriter(s, nadr, hwpid, bytes).WriteAll(ctx); err != nil {
			return err
		}
	}

	var first error
	for _, sec := range secrets {
		if err := writeSecurityUnicast(ctx, s, nadr, hwpid, sec.typ, sec.key); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (w *Writer) broadcast(ctx context.Context, s *session, snap ProtocolSnapshot, req *Request, bonded BondedSet, bytes []dpa.ConfigByte, secrets []secret) error {
	population := bonded.Nodes()
	if len(population) == 0 {
		return newError(KindNoBondedNodes, "No bonded nodes", nil)
	}
	s.rb.population = population

	var coordErr error
	if req.IncludeCoordinator {
		coordErr = w.unicast(ctx, s, snap, dpa.CoordinatorAddress, req.HWPID, bytes, secrets)
	}

	e := &frcEngine{
		s:     s,
		hwpid: req.HWPID,
		guard: &frcGuard{s: s, journal: w.cfg.Journal},
	}
	err := e.run(ctx, snap, population, bytes, secrets)
	unwindErr := e.unwindErr
	if err == nil {
		err = coordErr
	}
	switch {
	case unwindErr == nil:
		return err
	case err == nil:
		return unwindErr
	default:
		return errors.Join(err, unwindErr)
	}
}
