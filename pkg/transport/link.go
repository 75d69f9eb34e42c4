package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"go.bug.st/serial"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/log"
)

// Link carries whole DPA packets to and from the coordinator.
type Link interface {
	// ReadFrame blocks until the next packet arrives.
	ReadFrame() ([]byte, error)

	// WriteFrame sends one packet.
	WriteFrame(data []byte) error

	// Close releases the underlying device or socket.
	Close() error

	// Name identifies the link in logs (e.g. "serial:/dev/ttyACM0").
	Name() string
}

// frameCodec is implemented by Framer and HDLCCodec.
type frameCodec interface {
	ReadFrame() ([]byte, error)
	WriteFrame(data []byte) error
	SetLogger(logger log.Logger, link string)
}

// StreamLink is a Link over a byte stream with a frame codec.
type StreamLink struct {
	name  string
	rwc   io.ReadWriteCloser
	codec frameCodec
}

// NewStreamLink wraps rwc with length-prefix framing.
func NewStreamLink(name string, rwc io.ReadWriteCloser, logger log.Logger) *StreamLink {
	l := &StreamLink{name: name, rwc: rwc, codec: NewFramer(rwc)}
	l.codec.SetLogger(logger, name)
	return l
}

// NewHDLCLink wraps rwc with HDLC framing.
func NewHDLCLink(name string, rwc io.ReadWriteCloser, logger log.Logger) *StreamLink {
	l := &StreamLink{name: name, rwc: rwc, codec: NewHDLCCodec(rwc)}
	l.codec.SetLogger(logger, name)
	return l
}

// ReadFrame reads the next packet.
func (l *StreamLink) ReadFrame() ([]byte, error) { return l.codec.ReadFrame() }

// WriteFrame writes one packet.
func (l *StreamLink) WriteFrame(data []byte) error { return l.codec.WriteFrame(data) }

// Close closes the stream.
func (l *StreamLink) Close() error { return l.rwc.Close() }

// Name returns the link name.
func (l *StreamLink) Name() string { return l.name }

var _ Link = (*StreamLink)(nil)

// SerialConfig configures a serial coordinator link.
type SerialConfig struct {
	// Port is the device path, e.g. /dev/ttyACM0.
	Port string

	// BaudRate of the UART (default 57600).
	BaudRate int

	// Logger receives frame capture events. Optional.
	Logger log.Logger
}

// DefaultSerialBaudRate is the coordinator UART default.
const DefaultSerialBaudRate = 57600

// OpenSerial opens a coordinator attached over UART/USB CDC.
func OpenSerial(cfg SerialConfig) (*StreamLink, error) {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultSerialBaudRate
	}
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", cfg.Port, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("reset serial %s: %w", cfg.Port, err)
	}
	return NewHDLCLink("serial:"+cfg.Port, port, cfg.Logger), nil
}

// DialTCP connects to a network DPA bridge that speaks length-prefixed frames.
func DialTCP(ctx context.Context, addr string, timeout time.Duration, logger log.Logger) (*StreamLink, error) {
	d := net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return NewStreamLink("tcp:"+addr, conn, logger), nil
}
