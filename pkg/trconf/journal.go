package trconf

import (
	"context"
	"fmt"
	"time"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/dpa"
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/log"
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/transport"
)

// Unwind lists the coordinator side effects a broadcast has to undo.
type Unwind struct {
	Session string    `json:"session"`
	Created time.Time `json:"created"`

	// DisableFrc clears the FRC enable bit the write set.
	DisableFrc bool `json:"disableFrc,omitempty"`

	// FrcParams is the FRC response time to restore.
	FrcParams *uint8 `json:"frcParams,omitempty"`
}

// Empty reports whether nothing is left to undo.
func (u *Unwind) Empty() bool {
	return !u.DisableFrc && u.FrcParams == nil
}

// Journal persists the pending unwind across gateway restarts.
type Journal interface {
	Save(u *Unwind) error
	Load() (*Unwind, error)
	Clear() error
}

// noJournal discards everything.
type noJournal struct{}

func (noJournal) Save(*Unwind) error      { return nil }
func (noJournal) Load() (*Unwind, error) { return nil, nil }
func (noJournal) Clear() error           { return nil }

// Recover replays an unwind left in the journal by an interrupted write.
// It reports whether there was anything to replay.
func Recover(ctx context.Context, arbiter *transport.Arbiter, j Journal, cfg Config) (bool, error) {
	u, err := j.Load()
	if err != nil {
		return false, fmt.Errorf("load journal: %w", err)
	}
	if u == nil || u.Empty() {
		return false, nil
	}

	lease, err := arbiter.Acquire(ctx, "frc-recover")
	if err != nil {
		return true, err
	}
	defer lease.Release()

	cfg = cfg.withDefaults()
	s := &session{
		ch:         lease,
		id:         lease.ID(),
		timeout:    cfg.Timeout,
		frcTimeout: cfg.FrcTimeout,
		repeat:     cfg.RepeatMax,
		rb:         newResultBuilder(dpa.CoordinatorAddress, dpa.HWPIDDoNotCheck),
		logger:     cfg.Logger,
		plog:       log.OrNoop(cfg.ProtocolLogger),
	}
	g := &frcGuard{s: s, journal: j, undo: *u}
	s.debugLog("replaying FRC unwind", "from", u.Session, "created", u.Created)
	return true, g.restore(ctx)
}
