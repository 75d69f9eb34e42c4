package connection

import (
	"math/rand/v2"
	"sync"
	"time"
)

// LinkKind selects the redial profile of a coordinator link.
type LinkKind uint8

const (
	// LinkTCP is a DPA bridge reached over the network.
	LinkTCP LinkKind = iota
	// LinkSerial is a coordinator on a USB CDC or UART port.
	LinkSerial
	// LinkSim is the in-process simulated network.
	LinkSim
)

// String returns the link kind name.
func (k LinkKind) String() string {
	switch k {
	case LinkTCP:
		return "tcp"
	case LinkSerial:
		return "serial"
	case LinkSim:
		return "sim"
	default:
		return "unknown"
	}
}

// Redial timing for a DPA bridge reached over TCP.
const (
	// InitialBackoff is the delay before the first redial.
	InitialBackoff = 500 * time.Millisecond

	// MaxBackoff caps the redial delay.
	MaxBackoff = 30 * time.Second

	// BackoffMultiplier is the factor by which backoff increases.
	BackoffMultiplier = 2.0

	// JitterFactor is the maximum jitter as a fraction of base delay.
	JitterFactor = 0.25
)

// Redial timing for a serial coordinator. A USB CDC coordinator
// re-enumerates within a few seconds of a TR reset or replug.
const (
	SerialInitialBackoff = 1 * time.Second
	SerialMaxBackoff     = 5 * time.Second
)

// BackoffConfig allows customizing backoff parameters.
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

// ProfileFor returns the redial profile of a link kind. The serial and
// simulated profiles carry no jitter: only one gateway opens the port.
func ProfileFor(kind LinkKind) BackoffConfig {
	switch kind {
	case LinkSerial:
		return BackoffConfig{Initial: SerialInitialBackoff, Max: SerialMaxBackoff, Multiplier: BackoffMultiplier}
	case LinkSim:
		return BackoffConfig{Initial: 10 * time.Millisecond, Max: 100 * time.Millisecond, Multiplier: BackoffMultiplier}
	default:
		return BackoffConfig{Initial: InitialBackoff, Max: MaxBackoff, Multiplier: BackoffMultiplier, Jitter: JitterFactor}
	}
}

func (c BackoffConfig) withDefaults() BackoffConfig {
	if c.Initial <= 0 {
		c.Initial = InitialBackoff
	}
	if c.Max <= 0 {
		c.Max = MaxBackoff
	}
	if c.Max < c.Initial {
		c.Max = c.Initial
	}
	if c.Multiplier <= 1 {
		c.Multiplier = BackoffMultiplier
	}
	if c.Jitter < 0 {
		c.Jitter = 0
	}
	return c
}

// Backoff calculates exponential redial delays with jitter.
type Backoff struct {
	mu       sync.Mutex
	cfg      BackoffConfig
	current  time.Duration // base delay, before jitter
	attempts int
}

// NewBackoff creates a backoff with the TCP bridge profile.
func NewBackoff() *Backoff {
	return NewBackoffWithConfig(ProfileFor(LinkTCP))
}

// NewBackoffWithConfig creates a backoff calculator with custom settings.
// Zero fields take the TCP bridge defaults.
func NewBackoffWithConfig(cfg BackoffConfig) *Backoff {
	cfg = cfg.withDefaults()
	return &Backoff{cfg: cfg, current: cfg.Initial}
}

// Next returns the next delay (with jitter) and advances the backoff.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	delay := b.current
	if b.cfg.Jitter > 0 {
		delay += time.Duration(float64(delay) * b.cfg.Jitter * rand.Float64())
	}
	b.attempts++
	b.current = min(time.Duration(float64(b.current)*b.cfg.Multiplier), b.cfg.Max)
	return delay
}

// Reset returns to the initial delay after a successful attach.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.cfg.Initial
	b.attempts = 0
}

// Attempts returns the number of redials since the last reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// Current returns the current base delay (without jitter).
func (b *Backoff) Current() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}
