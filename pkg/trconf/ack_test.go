package trconf

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/dpa"
)

func TestClassifyAck(t *testing.T) {
	var p dpa.AckPlanes
	p.Set(1, true, true)
	p.Set(2, true, false)
	p.Set(3, false, true)
	p.Set(200, false, true)
	p.Set(7, true, true) // not targeted

	population := []uint16{1, 2, 3, 4, 200, 239}
	planes := dpa.SplitPlanes(p.Bytes())
	sets := ClassifyAck(&planes, population)

	assert.Equal(t, []uint16{1, 2}, sets.Matched)
	assert.Equal(t, []uint16{3, 200}, sets.NotMatched)
	assert.Equal(t, []uint16{4, 239}, sets.NotResponded)

	union := append(append(slices.Clone(sets.Matched), sets.NotMatched...), sets.NotResponded...)
	slices.Sort(union)
	assert.Equal(t, population, union)
	for _, a := range sets.Matched {
		if slices.Contains(sets.NotMatched, a) || slices.Contains(sets.NotResponded, a) {
			t.Errorf("node %d in more than one set", a)
		}
	}
	for _, a := range sets.NotMatched {
		if slices.Contains(sets.NotResponded, a) {
			t.Errorf("node %d in more than one set", a)
		}
	}
}

func TestAckTrackerOnlyUpgrades(t *testing.T) {
	tr := make(ackTracker)
	tr.observe([]uint16{1, 2, 3}, ackMatched)
	tr.observe([]uint16{2}, ackNotMatched)
	tr.observe([]uint16{2, 3}, ackMatched)
	tr.observe([]uint16{4}, ackNotMatched)
	tr.observe([]uint16{4}, ackNotResponded)
	tr.observe([]uint16{4}, ackMatched)

	sets := tr.sets()
	assert.Equal(t, []uint16{1, 3}, sets.Matched)
	assert.Equal(t, []uint16{2}, sets.NotMatched)
	assert.Equal(t, []uint16{4}, sets.NotResponded)
}

func TestBroadcastSucceeded(t *testing.T) {
	pop := []uint16{1, 2, 3}
	assert.True(t, BroadcastSucceeded(AckSets{Matched: pop}, pop))
	assert.True(t, BroadcastSucceeded(AckSets{Matched: []uint16{1}, NotMatched: []uint16{2, 3}}, pop))
	assert.False(t, BroadcastSucceeded(AckSets{NotMatched: pop}, pop))
	assert.False(t, BroadcastSucceeded(AckSets{Matched: []uint16{1, 2}, NotResponded: []uint16{3}}, pop))
}
