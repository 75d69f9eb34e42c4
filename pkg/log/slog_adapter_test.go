package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/dpa"
)

func captureSlog(t *testing.T, event Event) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	NewSlogAdapter(slog.New(handler)).Log(event)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output %q: %v", buf.String(), err)
	}
	return entry
}

func TestSlogAdapterLogsFrameEvent(t *testing.T) {
	entry := captureSlog(t, Event{
		Timestamp: time.Now(),
		SessionID: "lease-123",
		Direction: DirectionIn,
		Layer:     LayerTransport,
		Link:      "serial:/dev/ttyACM0",
		Frame:     &FrameEvent{Size: 14, Data: []byte{0x01, 0x02}},
	})

	if entry["msg"] != "protocol" {
		t.Errorf("msg: got %v, want protocol", entry["msg"])
	}
	if entry["session"] != "lease-123" {
		t.Errorf("session: got %v", entry["session"])
	}
	if entry["link"] != "serial:/dev/ttyACM0" {
		t.Errorf("link: got %v", entry["link"])
	}
	if entry["frame_size"] != float64(14) {
		t.Errorf("frame_size: got %v, want 14", entry["frame_size"])
	}
}

func TestSlogAdapterLogsPacketEvent(t *testing.T) {
	nadr := uint16(3)
	entry := captureSlog(t, Event{
		Layer:    LayerDPA,
		NodeAddr: &nadr,
		Packet:   ResponsePacket(dpa.Response{NADR: 3, PNUM: dpa.PNUMOS, PCMD: dpa.CmdOSWriteCfgByte, ErrN: dpa.ErrorData}, time.Second),
	})

	if entry["kind"] != "RESPONSE" {
		t.Errorf("kind: got %v", entry["kind"])
	}
	if entry["nadr"] != float64(3) {
		t.Errorf("nadr: got %v", entry["nadr"])
	}
	if entry["errn"] != float64(dpa.ErrorData) {
		t.Errorf("errn: got %v", entry["errn"])
	}
}

func TestSlogAdapterLogsStateAndError(t *testing.T) {
	entry := captureSlog(t, Event{
		Layer:       LayerService,
		Category:    CategoryState,
		StateChange: &StateChangeEvent{Entity: StateEntityFrcPeripheral, OldState: "disabled", NewState: "enabled", Reason: "broadcast write"},
	})
	if entry["entity"] != "FRC_PERIPHERAL" || entry["reason"] != "broadcast write" {
		t.Errorf("unexpected state entry: %v", entry)
	}

	code := 5
	entry = captureSlog(t, Event{
		Category: CategoryError,
		Error:    &ErrorEventData{Layer: LayerDPA, Message: "ERROR_DATA_LEN", Code: &code, Context: "write config"},
	})
	if entry["error_msg"] != "ERROR_DATA_LEN" || entry["error_code"] != float64(5) {
		t.Errorf("unexpected error entry: %v", entry)
	}
}
