package trconf

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/dpa"
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/log"
)

// frcState is a step of the broadcast state machine.
type frcState uint8

const (
	frcIdle frcState = iota
	frcProbeEnabled
	frcEnable
	frcSetTiming
	frcSendChunk
	frcDecodeAck
	frcNarrow
	frcRestore
	frcDone
)

func (s frcState) String() string {
	switch s {
	case frcIdle:
		return "Idle"
	case frcProbeEnabled:
		return "ProbeFrcEnabled"
	case frcEnable:
		return "EnableFrc"
	case frcSetTiming:
		return "SetFrcTiming"
	case frcSendChunk:
		return "SendChunk"
	case frcDecodeAck:
		return "DecodeAck"
	case frcNarrow:
		return "NarrowTargets"
	case frcRestore:
		return "Restore"
	case frcDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// errNoResponse marks a round that left nodes without a response.
var errNoResponse = errors.New("no response")

// secret is a security value propagated after the config bytes.
type secret struct {
	typ dpa.SecurityType
	key []byte
}

// frcEngine runs acknowledged broadcasts for one write.
type frcEngine struct {
	s     *session
	hwpid uint16
	state frcState
	guard *frcGuard

	// unwindErr is the restore failure of the last run.
	unwindErr error
}

func (e *frcEngine) enter(st frcState, args ...any) {
	e.s.debugLog("frc "+st.String(), append([]any{"from", e.state.String()}, args...)...)
	e.state = st
}

// run writes bytes and then secrets to population. The coordinator side
// effects are undone on every return path; a failed undo is left in
// e.unwindErr.
func (e *frcEngine) run(ctx context.Context, snap ProtocolSnapshot, population []uint16, bytes []dpa.ConfigByte, secrets []secret) error {
	defer func() {
		e.enter(frcRestore)
		e.unwindErr = e.guard.restore(context.WithoutCancel(ctx))
		e.enter(frcDone)
	}()

	if err := e.guard.enableFrc(ctx, snap, e); err != nil {
		return err
	}
	e.enter(frcSetTiming)
	if err := e.guard.setTiming(ctx); err != nil {
		return err
	}

	for i, chunk := range Chunk(bytes, dpa.EmbeddedTripletsMax) {
		ud, err := dpa.EmbeddedRequest(dpa.PNUMOS, dpa.CmdOSWriteCfgByte, e.hwpid, Triplets(chunk))
		if err != nil {
			return validationf(ErrOutOfRange, "%v", err)
		}
		e.enter(frcSendChunk, "chunk", i, "bytes", len(chunk))
		if err := e.broadcast(ctx, "config "+strconv.Itoa(i), population, ud, NodeWriteFailed, len(chunk)); err != nil {
			return newError(errorKind(err), fmt.Sprintf("FRC write of chunk %d failed", i), err)
		}
	}

	for _, sec := range secrets {
		payload, err := dpa.SecurityPayload(sec.typ, sec.key)
		if err != nil {
			return validationf(ErrOutOfRange, "%v", err)
		}
		ud, err := dpa.EmbeddedRequest(dpa.PNUMOS, dpa.CmdOSSetSecurity, e.hwpid, payload)
		if err != nil {
			return validationf(ErrOutOfRange, "%v", err)
		}
		e.enter(frcSendChunk, "security", sec.typ.String())
		if err := e.broadcast(ctx, sec.typ.String(), population, ud, securityOutcome(sec.typ), 0); err != nil {
			return newError(KindSecurityWrite, fmt.Sprintf("FRC set %s failed", sec.typ), err)
		}
	}
	return nil
}

// broadcast sends one embedded request until every node in population
// answered or the retry budget is spent. Nodes left without a response
// are classified NotResponded. A non-nil error means the last attempt
// failed and the run must stop.
func (e *frcEngine) broadcast(ctx context.Context, step string, population []uint16, userData []byte, failure WriteOutcome, bytes int) error {
	rb := e.s.rb
	pending := slices.Clone(population)
	var roundErr error

	Do(ctx, e.s.repeat, func(attempt int) Outcome {
		planes, status, err := e.round(ctx, pending, userData)
		if err != nil {
			roundErr = err
			e.s.debugLog("frc round failed", "attempt", attempt, "error", err)
			return classify(err)
		}
		roundErr = nil

		e.enter(frcDecodeAck, "attempt", attempt)
		sets := ClassifyAck(&planes, pending)
		e.s.roundEvent(step, attempt, status, pending, sets)
		rb.acks.observe(sets.Matched, ackMatched)
		rb.acks.observe(sets.NotMatched, ackNotMatched)
		for _, a := range sets.Matched {
			rb.acked(a, bytes)
		}
		for _, a := range sets.NotMatched {
			rb.fail(a, failure, "HWPID does not match")
		}

		e.enter(frcNarrow, "matched", len(sets.Matched), "notMatched", len(sets.NotMatched), "pending", len(sets.NotResponded))
		pending = sets.NotResponded
		if len(pending) == 0 {
			return Success
		}
		return RetryableError(errNoResponse)
	})
	if err := ctx.Err(); err != nil && roundErr == nil && len(pending) > 0 {
		roundErr = err
	}

	msg := errNoResponse.Error()
	if roundErr != nil {
		msg = roundErr.Error()
	}
	rb.acks.observe(pending, ackNotResponded)
	for _, a := range pending {
		rb.fail(a, failure, msg)
	}
	return roundErr
}

// round performs one FRC send plus extra result and returns the planes
// and the FRC status.
func (e *frcEngine) round(ctx context.Context, pending []uint16, userData []byte) (dpa.AckPlanes, uint8, error) {
	req, err := dpa.FrcSendSelectiveRequest(dpa.FrcAcknowledgedBroadcastBits, pending, userData)
	if err != nil {
		return dpa.AckPlanes{}, 0, err
	}
	rsp, err := e.s.exchange(ctx, req, e.s.frcTimeout)
	if err != nil {
		return dpa.AckPlanes{}, 0, err
	}
	res, err := dpa.ParseFrcSendResult(rsp.PData)
	if err != nil {
		return dpa.AckPlanes{}, 0, err
	}
	if !res.StatusValid() {
		return dpa.AckPlanes{}, res.Status, fmt.Errorf("%w: %#02x", ErrBadFrcStatus, res.Status)
	}

	extra, err := e.s.exchange(ctx, dpa.FrcExtraResultRequest(), e.s.timeout)
	if err != nil {
		return dpa.AckPlanes{}, res.Status, err
	}
	if len(res.Data) < dpa.FrcSendDataLen {
		e.s.debugLog("short frc send data", "len", len(res.Data))
	}
	return dpa.SplitPlanes(dpa.JoinFrcData(res.Data, extra.PData)), res.Status, nil
}

// frcGuard applies and undoes the coordinator FRC side effects.
type frcGuard struct {
	s       *session
	journal Journal
	undo    Unwind
}

func frcEnableRequest(enable bool) dpa.Request {
	var v uint8
	if enable {
		v = dpa.FrcEnableMask
	}
	req, _ := dpa.WriteCfgByteRequest(dpa.CoordinatorAddress, dpa.HWPIDDoNotCheck, []dpa.ConfigByte{
		{Address: AddrEmbeddedPers1, Value: v, Mask: dpa.FrcEnableMask},
	})
	return req
}

func (g *frcGuard) persist() {
	if g.undo.Empty() {
		if err := g.journal.Clear(); err != nil {
			g.s.debugLog("journal clear failed", "error", err)
		}
		return
	}
	g.undo.Session = g.s.id
	if g.undo.Created.IsZero() {
		g.undo.Created = time.Now()
	}
	if err := g.journal.Save(&g.undo); err != nil {
		g.s.debugLog("journal save failed", "error", err)
	}
}

// enableFrc turns on the coordinator FRC peripheral when it is off.
// From DPA 4.00 the peripheral is always available.
func (g *frcGuard) enableFrc(ctx context.Context, snap ProtocolSnapshot, e *frcEngine) error {
	if snap.CoordinatorVersion >= dpa.Version(4, 0) {
		return nil
	}
	e.enter(frcProbeEnabled)
	rsp, out := g.s.exchangeRepeat(ctx, dpa.ReadCfgRequest(dpa.CoordinatorAddress))
	if !out.OK() {
		return newError(KindEnableFrc, "read coordinator configuration failed", out.Err)
	}
	cfg, err := dpa.ParseHWPConfiguration(rsp.PData)
	if err != nil {
		return newError(KindEnableFrc, "read coordinator configuration failed", err)
	}
	if cfg.FrcEnabled() {
		return nil
	}

	e.enter(frcEnable)
	g.undo.DisableFrc = true
	g.persist()
	if _, out := g.s.exchangeRepeat(ctx, frcEnableRequest(true)); !out.OK() {
		g.undo.DisableFrc = false
		g.persist()
		return newError(KindEnableFrc, "enable FRC peripheral failed", out.Err)
	}
	g.s.stateEvent(log.StateEntityFrcPeripheral, "disabled", "enabled", "")
	return nil
}

// setTiming sets the FRC response time to 0 and remembers the old value.
func (g *frcGuard) setTiming(ctx context.Context) error {
	rsp, out := g.s.exchangeRepeat(ctx, dpa.FrcSetParamsRequest(0))
	if !out.OK() {
		return newError(KindEnableFrc, "set FRC response time failed", out.Err)
	}
	prev, err := dpa.ParseFrcSetParams(rsp.PData)
	if err != nil {
		return newError(KindEnableFrc, "set FRC response time failed", err)
	}
	if prev != 0 {
		g.undo.FrcParams = &prev
		g.persist()
	}
	g.s.stateEvent(log.StateEntityFrcTiming, strconv.Itoa(int(prev)), "0", "")
	return nil
}

// restore undoes the recorded side effects. What fails stays journaled.
func (g *frcGuard) restore(ctx context.Context) error {
	if g.undo.Empty() {
		return nil
	}
	var errs []error

	if p := g.undo.FrcParams; p != nil {
		if _, out := g.s.exchangeRepeat(ctx, dpa.FrcSetParamsRequest(*p)); out.OK() {
			g.undo.FrcParams = nil
			g.s.stateEvent(log.StateEntityFrcTiming, "0", strconv.Itoa(int(*p)), "restore")
		} else {
			errs = append(errs, fmt.Errorf("restore FRC response time %d: %w", *p, out.Err))
		}
	}
	if g.undo.DisableFrc {
		if _, out := g.s.exchangeRepeat(ctx, frcEnableRequest(false)); out.OK() {
			g.undo.DisableFrc = false
			g.s.stateEvent(log.StateEntityFrcPeripheral, "enabled", "disabled", "restore")
		} else {
			errs = append(errs, fmt.Errorf("disable FRC peripheral: %w", out.Err))
		}
	}
	g.persist()

	if len(errs) > 0 {
		return newError(KindDisableFrc, "FRC restore failed", errors.Join(errs...))
	}
	return nil
}
