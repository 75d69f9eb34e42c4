package commands

import (
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/log"
)

// RunExport exports the capture file to format ("jsonl" or "csv"). An
// empty output writes to stdout.
func RunExport(path, format, output string, filter log.Filter) error {
	if format != "jsonl" && format != "csv" {
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}

	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if format == "csv" {
		return exportCSV(reader, w)
	}
	return exportJSONL(reader, w)
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := encoder.Encode(event); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
}

var csvHeader = []string{
	"timestamp", "session_id", "direction", "layer", "category", "type",
	"nadr", "pnum", "pcmd", "errn", "pdata", "msg_id",
}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := cw.Write(csvRow(event)); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvRow(event log.Event) []string {
	var nadr, pnum, pcmd, errn, pdata string
	if p := event.Packet; p != nil {
		nadr = strconv.Itoa(int(p.NADR))
		pnum = fmt.Sprintf("0x%02x", p.PNUM)
		pcmd = fmt.Sprintf("0x%02x", p.PCMD)
		if p.ErrN != nil {
			errn = strconv.Itoa(int(*p.ErrN))
		}
		pdata = hex.EncodeToString(p.PData)
	} else if event.NodeAddr != nil {
		nadr = strconv.Itoa(int(*event.NodeAddr))
	}
	return []string{
		event.Timestamp.UTC().Format(tsFormat),
		event.SessionID,
		event.Direction.String(),
		event.Layer.String(),
		event.Category.String(),
		eventType(event),
		nadr, pnum, pcmd, errn, pdata,
		event.MsgID,
	}
}
