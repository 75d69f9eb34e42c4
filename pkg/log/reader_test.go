package log

import (
	"io"
	"path/filepath"
	"testing"
	"time"
)

func createTestLogFile(t *testing.T, events []Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.dlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create test log: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

func u16(v uint16) *uint16 { return &v }

func TestReaderIteratesEvents(t *testing.T) {
	events := []Event{
		{Timestamp: time.Now(), SessionID: "s-1", Direction: DirectionOut, Layer: LayerTransport},
		{Timestamp: time.Now(), SessionID: "s-2", Direction: DirectionIn, Layer: LayerDPA},
		{Timestamp: time.Now(), SessionID: "s-3", Layer: LayerService, Category: CategoryState},
	}
	path := createTestLogFile(t, events)

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	var read []Event
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		read = append(read, event)
	}

	if len(read) != 3 {
		t.Fatalf("got %d events, want 3", len(read))
	}
	if read[0].SessionID != "s-1" || read[2].SessionID != "s-3" {
		t.Errorf("unexpected order: %q .. %q", read[0].SessionID, read[2].SessionID)
	}
}

func TestReaderHandlesEmptyFile(t *testing.T) {
	path := createTestLogFile(t, nil)

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	if _, err := reader.Next(); err != io.EOF {
		t.Errorf("Next on empty file: got %v, want io.EOF", err)
	}
}

func TestFilteredReader(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []Event{
		{Timestamp: base, SessionID: "a", Layer: LayerDPA, NodeAddr: u16(1)},
		{Timestamp: base.Add(time.Second), SessionID: "a", Layer: LayerDPA, NodeAddr: u16(2), MsgID: "m1"},
		{Timestamp: base.Add(2 * time.Second), SessionID: "b", Layer: LayerService, Category: CategoryError},
		{Timestamp: base.Add(3 * time.Second), SessionID: "b", Layer: LayerTransport},
	}
	path := createTestLogFile(t, events)

	layer := LayerDPA
	category := CategoryError
	start := base.Add(time.Second)
	end := base.Add(3 * time.Second)

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"session", Filter{SessionID: "b"}, 2},
		{"layer", Filter{Layer: &layer}, 2},
		{"category", Filter{Category: &category}, 1},
		{"node", Filter{NodeAddr: u16(2)}, 1},
		{"msg", Filter{MsgID: "m1"}, 1},
		{"time range", Filter{TimeStart: &start, TimeEnd: &end}, 2},
		{"none", Filter{}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader, err := NewFilteredReader(path, tt.filter)
			if err != nil {
				t.Fatalf("NewFilteredReader failed: %v", err)
			}
			defer reader.Close()

			got, err := reader.ReadAll()
			if err != nil {
				t.Fatalf("ReadAll failed: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d events, want %d", len(got), tt.want)
			}
		})
	}
}

func TestFilterNodeMatchesFrcRounds(t *testing.T) {
	events := []Event{
		{Timestamp: time.Now(), SessionID: "a", NodeAddr: u16(3)},
		{Timestamp: time.Now(), SessionID: "b", FrcRound: &FrcRoundEvent{Step: "config 0", Selected: NodeSet{1, 3}}},
		{Timestamp: time.Now(), SessionID: "c", FrcRound: &FrcRoundEvent{Step: "config 1", Selected: NodeSet{1}}},
		{Timestamp: time.Now(), SessionID: "d", NodeAddr: u16(1)},
	}
	path := createTestLogFile(t, events)

	reader, err := NewFilteredReader(path, Filter{NodeAddr: u16(3)})
	if err != nil {
		t.Fatalf("NewFilteredReader failed: %v", err)
	}
	defer reader.Close()

	got, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != 2 || got[0].SessionID != "a" || got[1].SessionID != "b" {
		t.Errorf("got %d events, want sessions a and b: %+v", len(got), got)
	}
}
