// Package commands implements the dpa-log CLI commands.
package commands

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/dpa"
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/log"
)

// tsFormat is the timestamp layout of every command.
const tsFormat = "2006-01-02T15:04:05.000000Z"

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [session] DIRECTION LAYER Type
	ts := event.Timestamp.UTC().Format(tsFormat)
	fmt.Fprintf(w, "%s [%s] %-3s %s %s", ts, shortenID(event.SessionID), event.Direction, event.Layer, eventType(event))
	if event.NodeAddr != nil {
		fmt.Fprintf(w, " node=%d", *event.NodeAddr)
	}
	if event.MsgID != "" {
		fmt.Fprintf(w, " msg=%s", event.MsgID)
	}
	fmt.Fprintln(w)

	switch {
	case event.Frame != nil:
		formatFrameDetails(w, event.Frame)
	case event.Packet != nil:
		formatPacketDetails(w, event.Packet)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.FrcRound != nil:
		formatFrcRoundDetails(w, event.FrcRound)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}
	if event.Link != "" {
		fmt.Fprintf(w, "  Link: %s\n", event.Link)
	}

	fmt.Fprintln(w)
}

// eventType labels the payload of an event.
func eventType(event log.Event) string {
	switch {
	case event.Frame != nil:
		return "Frame"
	case event.Packet != nil:
		return event.Packet.Kind.String()
	case event.StateChange != nil:
		return "State"
	case event.FrcRound != nil:
		return "FrcRound"
	case event.Error != nil:
		return "Error"
	default:
		return "Unknown"
	}
}

// shortenID returns the first 8 characters of a session ID, or "-".
func shortenID(id string) string {
	if id == "" {
		return "-"
	}
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatFrameDetails(w io.Writer, frame *log.FrameEvent) {
	fmt.Fprintf(w, "  Size: %d bytes\n", frame.Size)
	if len(frame.Data) > 0 {
		fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(frame.Data))
		if frame.Truncated {
			fmt.Fprintf(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

func formatPacketDetails(w io.Writer, p *log.PacketEvent) {
	fmt.Fprintf(w, "  NADR: %d  PNUM: 0x%02x (%s)  PCMD: 0x%02x  HWPID: 0x%04x\n",
		p.NADR, p.PNUM, peripheralName(p.PNUM), p.PCMD, p.HWPID)
	if p.ErrN != nil {
		fmt.Fprintf(w, "  ErrN: %s (%d)\n", dpa.ErrorCode(*p.ErrN), *p.ErrN)
	}
	if p.Elapsed != nil {
		fmt.Fprintf(w, "  Elapsed: %s\n", formatDuration(*p.Elapsed))
	}
	if len(p.PData) > 0 {
		fmt.Fprintf(w, "  PData: %s\n", hex.EncodeToString(p.PData))
	}
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s\n", sc.Entity)
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatFrcRoundDetails(w io.Writer, r *log.FrcRoundEvent) {
	fmt.Fprintf(w, "  Step: %s (attempt %d, status 0x%02x)\n", r.Step, r.Attempt, r.Status)
	fmt.Fprintf(w, "  Selected: %v\n", []uint16(r.Selected))
	for _, set := range []struct {
		name  string
		nodes log.NodeSet
	}{
		{"Matched", r.Matched},
		{"NotMatched", r.NotMatched},
		{"NotResponded", r.NotResponded},
	} {
		if len(set.nodes) > 0 {
			fmt.Fprintf(w, "  %s: %v\n", set.name, []uint16(set.nodes))
		}
	}
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer)
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Code != nil {
		fmt.Fprintf(w, "  Code: %d\n", *err.Code)
	}
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

var peripheralNames = map[uint8]string{
	dpa.PNUMCoordinator: "coordinator",
	dpa.PNUMNode:        "node",
	dpa.PNUMOS:          "os",
	dpa.PNUMEEPROM:      "eeprom",
	dpa.PNUMEEEPROM:     "eeeprom",
	dpa.PNUMRAM:         "ram",
	dpa.PNUMLEDR:        "ledr",
	dpa.PNUMLEDG:        "ledg",
	dpa.PNUMSPI:         "spi",
	dpa.PNUMIO:          "io",
	dpa.PNUMThermometer: "thermometer",
	dpa.PNUMPWM:         "pwm",
	dpa.PNUMUART:        "uart",
	dpa.PNUMFRC:         "frc",
	dpa.PNUMEnumeration: "enumeration",
}

func peripheralName(pnum uint8) string {
	if name, ok := peripheralNames[pnum]; ok {
		return name
	}
	return "user"
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// ParseLayerFlag parses a layer name (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "dpa":
		return log.LayerDPA, nil
	case "service":
		return log.LayerService, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be transport, dpa, or service)", s)
	}
}

// ParseDirectionFlag parses a direction name (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// ParseCategoryFlag parses a category name (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "message":
		return log.CategoryMessage, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be message, state, or error)", s)
	}
}

// RunView writes every event matching filter to output.
func RunView(path string, filter log.Filter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}
}
