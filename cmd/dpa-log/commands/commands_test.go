package commands

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/dpa"
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/log"
)

const session = "0b9e4f2a-6789-0123-4567-890abcdef012"

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.cbor")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()
	return path
}

func u8(v uint8) *uint8    { return &v }
func u16(v uint16) *uint16 { return &v }

// exchange returns a request to node 3 followed by its confirmation and
// response.
func exchange(ts time.Time) []log.Event {
	ms := 40 * time.Millisecond
	rspElapsed := 180 * time.Millisecond
	return []log.Event{
		{
			Timestamp: ts, SessionID: session, Direction: log.DirectionOut,
			Layer: log.LayerDPA, Category: log.CategoryMessage, NodeAddr: u16(3), MsgID: "m1",
			Packet: &log.PacketEvent{Kind: log.PacketRequest, NADR: 3, PNUM: dpa.PNUMOS, PCMD: 0x0F, HWPID: 0xFFFF, PData: []byte{0x08, 0x05, 0xFF}},
		},
		{
			Timestamp: ts.Add(ms), SessionID: session, Direction: log.DirectionIn,
			Layer: log.LayerDPA, Category: log.CategoryMessage, NodeAddr: u16(3),
			Packet: &log.PacketEvent{Kind: log.PacketConfirmation, NADR: 3, PNUM: dpa.PNUMOS, PCMD: 0x0F, ErrN: u8(0xFF), Elapsed: &ms},
		},
		{
			Timestamp: ts.Add(rspElapsed), SessionID: session, Direction: log.DirectionIn,
			Layer: log.LayerDPA, Category: log.CategoryMessage, NodeAddr: u16(3),
			Packet: &log.PacketEvent{Kind: log.PacketResponse, NADR: 3, PNUM: dpa.PNUMOS, PCMD: 0x8F, ErrN: u8(0), Elapsed: &rspElapsed},
		},
	}
}

func TestFormatPacketEvent(t *testing.T) {
	ts := time.Date(2026, 3, 2, 9, 30, 0, 250000000, time.UTC)
	var buf bytes.Buffer
	formatEvent(&buf, exchange(ts)[0])
	output := buf.String()

	for _, want := range []string{
		"2026-03-02T09:30:00.250000Z",
		"[0b9e4f2a]",
		"OUT DPA REQUEST",
		"node=3",
		"msg=m1",
		"PNUM: 0x02 (os)",
		"HWPID: 0xffff",
		"PData: 0805ff",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestFormatResponseEvent(t *testing.T) {
	var buf bytes.Buffer
	formatEvent(&buf, exchange(time.Now())[2])
	output := buf.String()

	assert.Contains(t, output, "IN  DPA RESPONSE")
	assert.Contains(t, output, "ErrN: STATUS_NO_ERROR (0)")
	assert.Contains(t, output, "Elapsed: 180.000ms")
}

func TestFormatOtherEvents(t *testing.T) {
	ts := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	code := 7

	tests := []struct {
		name  string
		event log.Event
		want  []string
	}{
		{
			name: "frame",
			event: log.Event{Timestamp: ts, Layer: log.LayerTransport, Link: "serial:/dev/ttyACM0",
				Frame: &log.FrameEvent{Size: 12, Data: []byte{0x7e, 0x01}, Truncated: true}},
			want: []string{"[-]", "TRANSPORT Frame", "Size: 12 bytes", "Data: 7e01 (truncated)", "Link: serial:/dev/ttyACM0"},
		},
		{
			name: "state",
			event: log.Event{Timestamp: ts, SessionID: session, Layer: log.LayerService, Category: log.CategoryState,
				StateChange: &log.StateChangeEvent{Entity: log.StateEntityFrcPeripheral, OldState: "disabled", NewState: "enabled", Reason: "broadcast"}},
			want: []string{"SERVICE State", "Entity: FRC_PERIPHERAL", "disabled -> enabled", "Reason: broadcast"},
		},
		{
			name: "state without old",
			event: log.Event{Timestamp: ts, Category: log.CategoryState,
				StateChange: &log.StateChangeEvent{Entity: log.StateEntityLease, NewState: "acquired"}},
			want: []string{"Entity: LEASE", "-> acquired"},
		},
		{
			name: "frc round",
			event: log.Event{Timestamp: ts, SessionID: session, Layer: log.LayerService, Category: log.CategoryMessage,
				FrcRound: &log.FrcRoundEvent{Step: "config 0", Attempt: 1, Status: 0x02,
					Selected: log.NodeSet{1, 2}, Matched: log.NodeSet{1}, NotResponded: log.NodeSet{2}}},
			want: []string{"SERVICE FrcRound", "Step: config 0 (attempt 1, status 0x02)", "Selected: [1 2]", "Matched: [1]", "NotResponded: [2]"},
		},
		{
			name: "error",
			event: log.Event{Timestamp: ts, Category: log.CategoryError,
				Error: &log.ErrorEventData{Layer: log.LayerDPA, Message: "timeout", Code: &code, Context: "write config"}},
			want: []string{"Error", "Message: timeout", "Code: 7", "Context: write config"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			formatEvent(&buf, tt.event)
			for _, want := range tt.want {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("output missing %q:\n%s", want, buf.String())
				}
			}
		})
	}
}

func TestParseFlags(t *testing.T) {
	l, err := ParseLayerFlag("DPA")
	require.NoError(t, err)
	assert.Equal(t, log.LayerDPA, l)
	_, err = ParseLayerFlag("wire")
	assert.Error(t, err)

	d, err := ParseDirectionFlag("In")
	require.NoError(t, err)
	assert.Equal(t, log.DirectionIn, d)
	_, err = ParseDirectionFlag("up")
	assert.Error(t, err)

	c, err := ParseCategoryFlag("state")
	require.NoError(t, err)
	assert.Equal(t, log.CategoryState, c)
	_, err = ParseCategoryFlag("control")
	assert.Error(t, err)
}

func TestFilterOptionsBuild(t *testing.T) {
	f, err := FilterOptions{
		SessionID: session,
		NodeAddr:  "0x03",
		TimeStart: "2026-03-02T09:00:00Z",
		Layer:     "dpa",
		Direction: "out",
		Category:  "message",
	}.Build()
	require.NoError(t, err)
	assert.Equal(t, session, f.SessionID)
	require.NotNil(t, f.NodeAddr)
	assert.Equal(t, uint16(3), *f.NodeAddr)
	require.NotNil(t, f.TimeStart)
	assert.Nil(t, f.TimeEnd)
	assert.Equal(t, log.LayerDPA, *f.Layer)
	assert.Equal(t, log.DirectionOut, *f.Direction)
	assert.Equal(t, log.CategoryMessage, *f.Category)

	for _, bad := range []FilterOptions{
		{NodeAddr: "node3"},
		{TimeStart: "yesterday"},
		{TimeEnd: "2026-13-01T00:00:00Z"},
		{Layer: "wire"},
		{Direction: "sideways"},
		{Category: "snapshot"},
	} {
		if _, err := bad.Build(); err == nil {
			t.Errorf("Build(%+v) succeeded, want error", bad)
		}
	}
}

func TestRunViewFilters(t *testing.T) {
	ts := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	events := append(exchange(ts), log.Event{
		Timestamp: ts, Direction: log.DirectionOut, Layer: log.LayerService, Category: log.CategoryState,
		StateChange: &log.StateChangeEvent{Entity: log.StateEntityLease, NewState: "released"},
	})
	path := createTestLogFile(t, events)

	dir := log.DirectionIn
	var buf bytes.Buffer
	require.NoError(t, RunView(path, log.Filter{Direction: &dir}, &buf))

	output := buf.String()
	assert.Contains(t, output, "CONFIRMATION")
	assert.Contains(t, output, "RESPONSE")
	assert.NotContains(t, output, "REQUEST")
	assert.NotContains(t, output, "released")
}

func TestRunViewMissingFile(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, RunView(filepath.Join(t.TempDir(), "none.cbor"), log.Filter{}, &buf))
}

func TestRunFilter(t *testing.T) {
	ts := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	other := log.Event{Timestamp: ts, SessionID: "other", Category: log.CategoryState,
		StateChange: &log.StateChangeEvent{Entity: log.StateEntityLease, NewState: "acquired"}}
	path := createTestLogFile(t, append(exchange(ts), other))
	out := filepath.Join(t.TempDir(), "filtered.cbor")

	n, err := RunFilter(path, out, FilterOptions{SessionID: session, Direction: "in"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	r, err := log.NewReader(out)
	require.NoError(t, err)
	defer r.Close()
	got, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, log.PacketConfirmation, got[0].Packet.Kind)
	assert.Equal(t, log.PacketResponse, got[1].Packet.Kind)

	_, err = RunFilter(path, out, FilterOptions{Layer: "wire"})
	assert.Error(t, err)
}

func TestRunStats(t *testing.T) {
	ts := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	events := exchange(ts)
	events = append(events, log.Event{
		Timestamp: ts.Add(time.Second), SessionID: session, Category: log.CategoryError,
		Error: &log.ErrorEventData{Layer: log.LayerDPA, Message: "timeout"},
	})
	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	require.NoError(t, RunStats(path, &buf))
	output := buf.String()

	for _, want := range []string{
		"Total Events: 4",
		"DPA:",
		"Packets: 1 requests, 1 confirmations, 1 responses",
		"os:",
		"STATUS_NO_ERROR:",
		"Response Time: mean 180.000ms, max 180.000ms",
		"Sessions: 1",
		"[0b9e4f2a] 4 events, 1 requests",
		"Nodes: [3]",
		"Errors: 1",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("stats missing %q:\n%s", want, output)
		}
	}
}

func TestStatsAggregation(t *testing.T) {
	s := newStats()
	ts := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	for _, e := range exchange(ts) {
		s.add(e)
	}
	for _, e := range exchange(ts.Add(-time.Minute)) {
		e.SessionID = ""
		s.add(e)
	}

	assert.Equal(t, 6, s.TotalEvents)
	assert.Equal(t, 2, s.Requests)
	assert.Equal(t, 2, s.ByPeripheral[dpa.PNUMOS])
	assert.Equal(t, 2, s.ByErrN[dpa.ErrorNone])
	assert.Equal(t, 180*time.Millisecond, s.ResponseTime.Mean())
	assert.Equal(t, ts.Add(-time.Minute), s.TimeRange.Start)
	assert.Len(t, s.Sessions, 1)
	assert.Equal(t, time.Duration(0), LatencyStats{}.Mean())
}

func TestStatsCountsFrcRounds(t *testing.T) {
	s := newStats()
	ts := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	for attempt := range 3 {
		s.add(log.Event{Timestamp: ts, SessionID: session, Layer: log.LayerService,
			FrcRound: &log.FrcRoundEvent{Step: "PASSWORD", Attempt: attempt, Selected: log.NodeSet{4}}})
	}

	assert.Equal(t, 3, s.FrcRounds)
	assert.Equal(t, 2, s.FrcRetries)

	var buf bytes.Buffer
	printStats(&buf, s)
	assert.Contains(t, buf.String(), "FRC Rounds: 3 (2 retries)")
}

func TestRunExportJSONL(t *testing.T) {
	path := createTestLogFile(t, exchange(time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)))
	out := filepath.Join(t.TempDir(), "out.jsonl")

	kind := log.LayerDPA
	require.NoError(t, RunExport(path, "jsonl", out, log.Filter{Layer: &kind}))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)

	var first log.Event
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, session, first.SessionID)
	require.NotNil(t, first.Packet)
	assert.Equal(t, uint16(3), first.Packet.NADR)
}

func TestRunExportCSV(t *testing.T) {
	path := createTestLogFile(t, exchange(time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)))
	out := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, RunExport(path, "csv", out, log.Filter{}))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{
		"2026-03-02T09:30:00.000000Z", session, "OUT", "DPA", "MESSAGE", "REQUEST",
		"3", "0x02", "0x0f", "", "0805ff", "m1",
	}, rows[1])
	assert.Equal(t, "255", rows[2][9])
}

func TestRunExportUnknownFormat(t *testing.T) {
	path := createTestLogFile(t, nil)
	assert.Error(t, RunExport(path, "xml", "", log.Filter{}))
}
