package commands

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"
	"time"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/dpa"
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/log"
)

// Stats holds aggregate statistics about a capture file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Sessions          map[string]*SessionStats
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}

	Requests      int
	Responses     int
	Confirmations int
	ByPeripheral  map[uint8]int
	ByErrN        map[dpa.ErrorCode]int
	ResponseTime  LatencyStats

	FrcRounds  int
	FrcRetries int
}

// SessionStats holds statistics for a single lease.
type SessionStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	Requests  int
	Nodes     []uint16
}

// LatencyStats aggregates request-to-response times.
type LatencyStats struct {
	Count int
	Total time.Duration
	Max   time.Duration
}

// Mean returns the average latency, zero without samples.
func (l LatencyStats) Mean() time.Duration {
	if l.Count == 0 {
		return 0
	}
	return l.Total / time.Duration(l.Count)
}

func newStats() *Stats {
	return &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Sessions:          make(map[string]*SessionStats),
		ByPeripheral:      make(map[uint8]int),
		ByErrN:            make(map[dpa.ErrorCode]int),
	}
}

// add folds one event into the statistics.
func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	var sess *SessionStats
	if event.SessionID != "" {
		var ok bool
		sess, ok = s.Sessions[event.SessionID]
		if !ok {
			sess = &SessionStats{FirstSeen: event.Timestamp, LastSeen: event.Timestamp}
			s.Sessions[event.SessionID] = sess
		}
		sess.Events++
		if event.Timestamp.After(sess.LastSeen) {
			sess.LastSeen = event.Timestamp
		}
	}

	if p := event.Packet; p != nil {
		switch p.Kind {
		case log.PacketRequest:
			s.Requests++
			s.ByPeripheral[p.PNUM]++
			if sess != nil {
				sess.Requests++
				if !slices.Contains(sess.Nodes, p.NADR) {
					sess.Nodes = append(sess.Nodes, p.NADR)
				}
			}
		case log.PacketConfirmation:
			s.Confirmations++
		case log.PacketResponse:
			s.Responses++
			if p.ErrN != nil {
				s.ByErrN[dpa.ErrorCode(*p.ErrN)]++
			}
			if p.Elapsed != nil {
				s.ResponseTime.Count++
				s.ResponseTime.Total += *p.Elapsed
				s.ResponseTime.Max = max(s.ResponseTime.Max, *p.Elapsed)
			}
		}
	}

	if r := event.FrcRound; r != nil {
		s.FrcRounds++
		if r.Attempt > 0 {
			s.FrcRetries++
		}
	}

	if event.Error != nil {
		s.Errors++
	}
}

// RunStats analyzes the capture file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := newStats()
	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}

	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== DPA Capture Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerDPA, log.LayerService} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryMessage, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Packets: %d requests, %d confirmations, %d responses\n",
		stats.Requests, stats.Confirmations, stats.Responses)
	if len(stats.ByPeripheral) > 0 {
		pnums := make([]uint8, 0, len(stats.ByPeripheral))
		for pnum := range stats.ByPeripheral {
			pnums = append(pnums, pnum)
		}
		slices.Sort(pnums)
		fmt.Fprintln(w, "Requests by Peripheral:")
		for _, pnum := range pnums {
			fmt.Fprintf(w, "  %-14s %d\n", peripheralName(pnum)+":", stats.ByPeripheral[pnum])
		}
	}
	if len(stats.ByErrN) > 0 {
		codes := make([]dpa.ErrorCode, 0, len(stats.ByErrN))
		for code := range stats.ByErrN {
			codes = append(codes, code)
		}
		slices.Sort(codes)
		fmt.Fprintln(w, "Responses by ErrN:")
		for _, code := range codes {
			fmt.Fprintf(w, "  %-14s %d\n", code.String()+":", stats.ByErrN[code])
		}
	}
	if stats.FrcRounds > 0 {
		fmt.Fprintf(w, "FRC Rounds: %d (%d retries)\n", stats.FrcRounds, stats.FrcRetries)
	}
	if stats.ResponseTime.Count > 0 {
		fmt.Fprintf(w, "Response Time: mean %s, max %s\n",
			formatDuration(stats.ResponseTime.Mean()), formatDuration(stats.ResponseTime.Max))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Sessions: %d\n", len(stats.Sessions))
	if len(stats.Sessions) > 0 {
		type sessionInfo struct {
			id    string
			stats *SessionStats
		}
		sessions := make([]sessionInfo, 0, len(stats.Sessions))
		for id, ss := range stats.Sessions {
			sessions = append(sessions, sessionInfo{id, ss})
		}
		sort.Slice(sessions, func(i, j int) bool {
			return sessions[i].stats.FirstSeen.Before(sessions[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, s := range sessions {
			duration := s.stats.LastSeen.Sub(s.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, %d requests, duration %s\n",
				shortenID(s.id), s.stats.Events, s.stats.Requests, duration)
			if len(s.stats.Nodes) > 0 {
				fmt.Fprintf(w, "             Nodes: %v\n", s.stats.Nodes)
			}
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
