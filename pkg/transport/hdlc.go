package transport

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/log"
)

// HDLC-like framing used on the coordinator UART.
const (
	hdlcFlag   byte = 0x7E
	hdlcEscape byte = 0x7D
	hdlcXor    byte = 0x20

	crcInit byte = 0xFF
)

// crc8 computes CRC-8/MAXIM (reflected polynomial 0x8C).
func crc8(init byte, data []byte) byte {
	crc := init
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x01 != 0 {
				crc = crc>>1 ^ 0x8C
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

func appendEscaped(dst []byte, b byte) []byte {
	if b == hdlcFlag || b == hdlcEscape {
		return append(dst, hdlcEscape, b^hdlcXor)
	}
	return append(dst, b)
}

// EncodeHDLC wraps a packet in flags, appends its CRC and escapes both.
func EncodeHDLC(packet []byte) []byte {
	out := make([]byte, 0, len(packet)*2+4)
	out = append(out, hdlcFlag)
	for _, b := range packet {
		out = appendEscaped(out, b)
	}
	out = appendEscaped(out, crc8(crcInit, packet))
	return append(out, hdlcFlag)
}

// HDLCCodec reads and writes HDLC frames on a byte stream.
type HDLCCodec struct {
	r   *bufio.Reader
	w   io.Writer
	mu  sync.Mutex
	tap frameTap

	maxMessageSize int
}

// NewHDLCCodec creates a codec over rw.
func NewHDLCCodec(rw io.ReadWriter) *HDLCCodec {
	return &HDLCCodec{
		r:              bufio.NewReader(rw),
		w:              rw,
		maxMessageSize: DefaultMaxMessageSize,
	}
}

// SetLogger configures capture for both directions.
func (c *HDLCCodec) SetLogger(logger log.Logger, link string) {
	c.tap = frameTap{logger: logger, link: link}
}

// WriteFrame encodes and writes one packet.
func (c *HDLCCodec) WriteFrame(data []byte) error {
	if len(data) == 0 {
		return ErrMessageEmpty
	}
	if len(data) > c.maxMessageSize {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, len(data), c.maxMessageSize)
	}
	frame := EncodeHDLC(data)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	c.tap.emit(log.DirectionOut, data, len(frame))
	return nil
}

// ReadFrame returns the next packet with a valid CRC. Bytes before the
// first flag and empty frames between consecutive flags are skipped.
func (c *HDLCCodec) ReadFrame() ([]byte, error) {
	for {
		if err := c.syncToFlag(); err != nil {
			return nil, err
		}
		raw, wire, err := c.readBody()
		if err != nil {
			return nil, err
		}
		if len(raw) == 0 {
			continue
		}
		if len(raw) < 2 {
			return nil, ErrFrameTruncated
		}
		packet, sum := raw[:len(raw)-1], raw[len(raw)-1]
		if crc8(crcInit, packet) != sum {
			return nil, ErrBadChecksum
		}
		c.tap.emit(log.DirectionIn, packet, wire)
		return packet, nil
	}
}

func (c *HDLCCodec) syncToFlag() error {
	for {
		b, err := c.r.ReadByte()
		if err != nil {
			return err
		}
		if b == hdlcFlag {
			return nil
		}
	}
}

// readBody reads up to the closing flag and leaves it unread so it can
// open the next frame.
func (c *HDLCCodec) readBody() (raw []byte, wire int, err error) {
	wire = 2
	escaped := false
	for {
		b, err := c.r.ReadByte()
		if err != nil {
			if err == io.EOF && len(raw) > 0 {
				return nil, wire, ErrFrameTruncated
			}
			return nil, wire, err
		}
		if b == hdlcFlag {
			if err := c.r.UnreadByte(); err != nil {
				return nil, wire, err
			}
			return raw, wire, nil
		}
		wire++
		switch {
		case escaped:
			raw = append(raw, b^hdlcXor)
			escaped = false
		case b == hdlcEscape:
			escaped = true
		default:
			raw = append(raw, b)
		}
		if len(raw) > c.maxMessageSize+1 {
			return nil, wire, fmt.Errorf("%w: over %d bytes", ErrMessageTooLarge, c.maxMessageSize)
		}
	}
}
