package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/dpa"
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/log"
)

// Framing constants.
const (
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4

	// DefaultMaxMessageSize is the largest DPA packet (response header plus data).
	DefaultMaxMessageSize = dpa.ResponseHeaderSize + dpa.MaxDataLength

	// MaxLogFrameDataSize bounds the frame bytes copied into capture events.
	MaxLogFrameDataSize = 128
)

// Framing errors.
var (
	// ErrMessageTooLarge indicates the message exceeds the maximum size.
	ErrMessageTooLarge = errors.New("message too large")

	// ErrMessageEmpty indicates an empty message.
	ErrMessageEmpty = errors.New("message is empty")

	// ErrFrameTruncated indicates the frame was truncated.
	ErrFrameTruncated = errors.New("frame truncated")

	// ErrBadChecksum indicates a frame failed its integrity check.
	ErrBadChecksum = errors.New("frame checksum mismatch")
)

// frameTap emits capture events for frames passing a codec.
type frameTap struct {
	logger log.Logger
	link   string
}

func (t *frameTap) emit(dir log.Direction, data []byte, wireSize int) {
	if t.logger == nil {
		return
	}
	frameData := data
	truncated := false
	if len(data) > MaxLogFrameDataSize {
		frameData = data[:MaxLogFrameDataSize]
		truncated = true
	}
	t.logger.Log(log.Event{
		Timestamp: time.Now(),
		Direction: dir,
		Layer:     log.LayerTransport,
		Category:  log.CategoryMessage,
		Link:      t.link,
		Frame: &log.FrameEvent{
			Size:      wireSize,
			Data:      append([]byte(nil), frameData...),
			Truncated: truncated,
		},
	})
}

// FrameWriter writes length-prefixed frames to an underlying writer.
type FrameWriter struct {
	w              io.Writer
	maxMessageSize uint32
	mu             sync.Mutex
	tap            frameTap
}

// NewFrameWriter creates a new frame writer.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w, maxMessageSize: DefaultMaxMessageSize}
}

// SetLogger configures capture for this writer. Pass nil to disable it.
func (fw *FrameWriter) SetLogger(logger log.Logger, link string) {
	fw.tap = frameTap{logger: logger, link: link}
}

// WriteFrame writes one length-prefixed frame. Safe for concurrent use.
func (fw *FrameWriter) WriteFrame(data []byte) error {
	if len(data) == 0 {
		return ErrMessageEmpty
	}
	if uint32(len(data)) > fw.maxMessageSize {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, len(data), fw.maxMessageSize)
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	buf := make([]byte, LengthPrefixSize, LengthPrefixSize+len(data))
	binary.BigEndian.PutUint32(buf, uint32(len(data)))
	buf = append(buf, data...)
	if _, err := fw.w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	fw.tap.emit(log.DirectionOut, data, len(buf))
	return nil
}

// FrameReader reads length-prefixed frames from an underlying reader.
type FrameReader struct {
	r              io.Reader
	maxMessageSize uint32
	lengthBuf      [LengthPrefixSize]byte
	tap            frameTap
}

// NewFrameReader creates a new frame reader.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r, maxMessageSize: DefaultMaxMessageSize}
}

// SetLogger configures capture for this reader. Pass nil to disable it.
func (fr *FrameReader) SetLogger(logger log.Logger, link string) {
	fr.tap = frameTap{logger: logger, link: link}
}

// ReadFrame reads one frame and returns its payload.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	if _, err := io.ReadFull(fr.r, fr.lengthBuf[:]); err != nil {
		if err == io.EOF {
			return nil, err
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrFrameTruncated
		}
		return nil, fmt.Errorf("read length prefix: %w", err)
	}

	length := binary.BigEndian.Uint32(fr.lengthBuf[:])
	if length == 0 {
		return nil, ErrMessageEmpty
	}
	if length > fr.maxMessageSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, length, fr.maxMessageSize)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(fr.r, payload); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || err == io.EOF {
			return nil, ErrFrameTruncated
		}
		return nil, fmt.Errorf("read payload: %w", err)
	}

	fr.tap.emit(log.DirectionIn, payload, LengthPrefixSize+len(payload))
	return payload, nil
}

// Framer combines frame reading and writing.
type Framer struct {
	*FrameReader
	*FrameWriter
}

// NewFramer creates a new framer for bidirectional communication.
func NewFramer(rw io.ReadWriter) *Framer {
	return &Framer{
		FrameReader: NewFrameReader(rw),
		FrameWriter: NewFrameWriter(rw),
	}
}

// SetLogger configures capture for both directions.
func (f *Framer) SetLogger(logger log.Logger, link string) {
	f.FrameReader.SetLogger(logger, link)
	f.FrameWriter.SetLogger(logger, link)
}
