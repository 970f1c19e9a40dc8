package inspector

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/exp/slices"
)

// TypeStats counts the chunks accounted under one message type label.
type TypeStats struct {
	Count      uint64
	TotalBytes uint64
}

// DirectionStats are the running counters of one direction.
type DirectionStats struct {
	TotalBytes   uint64
	MessageCount uint64
	MessageTypes map[string]TypeStats
	// LastMessage is the arrival time of the most recent chunk.
	// It only feeds the inter-arrival delta of the live log line.
	LastMessage time.Time
}

// AverageBytes returns the mean chunk size, or 0 if nothing was observed.
func (s DirectionStats) AverageBytes() float64 {
	if s.MessageCount == 0 {
		return 0
	}
	return float64(s.TotalBytes) / float64(s.MessageCount)
}

// Bandwidth returns bytes per second over elapsed, or 0 if elapsed is not positive.
func (s DirectionStats) Bandwidth(elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(s.TotalBytes) / elapsed.Seconds()
}

// TypeBreakdown is one row of a per-type breakdown.
type TypeBreakdown struct {
	Label      string
	Count      uint64
	TotalBytes uint64
	// Percent is the share of the direction's total bytes, in the range [0, 100].
	Percent float64
}

// Breakdown lists the message types sorted by descending byte volume.
// Types with equal volume are ordered by label.
func (s DirectionStats) Breakdown() []TypeBreakdown {
	rows := make([]TypeBreakdown, 0, len(s.MessageTypes))
	for label, ts := range s.MessageTypes {
		var pct float64
		if s.TotalBytes > 0 {
			pct = float64(ts.TotalBytes) / float64(s.TotalBytes) * 100
		}
		rows = append(rows, TypeBreakdown{
			Label:      label,
			Count:      ts.Count,
			TotalBytes: ts.TotalBytes,
			Percent:    pct,
		})
	}
	slices.SortFunc(rows, func(a, b TypeBreakdown) int {
		switch {
		case a.TotalBytes > b.TotalBytes:
			return -1
		case a.TotalBytes < b.TotalBytes:
			return 1
		}
		return strings.Compare(a.Label, b.Label)
	})
	return rows
}

func (s DirectionStats) clone() DirectionStats {
	c := s
	c.MessageTypes = make(map[string]TypeStats, len(s.MessageTypes))
	for label, ts := range s.MessageTypes {
		c.MessageTypes[label] = ts
	}
	return c
}

// An Accumulator holds the DirectionStats of both directions.
// It is safe for concurrent use; a relay keeps one per connection
// and optionally one shared by all connections.
type Accumulator struct {
	mx      sync.Mutex
	started time.Time
	dirs    [len(directions)]DirectionStats
}

// NewAccumulator creates an empty Accumulator whose runtime starts at start.
func NewAccumulator(start time.Time) *Accumulator {
	a := &Accumulator{started: start}
	for i := range a.dirs {
		a.dirs[i].MessageTypes = make(map[string]TypeStats)
	}
	return a
}

// Record accounts one chunk of n bytes under label and returns the time
// since the previous chunk in the same direction. The first chunk of a
// direction is measured from the accumulator's start.
// Record never fails; a zero-length chunk counts as a zero-byte message.
func (a *Accumulator) Record(dir Direction, n int, label string, now time.Time) time.Duration {
	if n < 0 {
		n = 0
	}
	a.mx.Lock()
	defer a.mx.Unlock()

	s := &a.dirs[dir]
	s.TotalBytes += uint64(n)
	s.MessageCount++
	ts := s.MessageTypes[label]
	ts.Count++
	ts.TotalBytes += uint64(n)
	s.MessageTypes[label] = ts

	last := s.LastMessage
	if last.IsZero() {
		last = a.started
	}
	s.LastMessage = now
	if delta := now.Sub(last); delta > 0 {
		return delta
	}
	return 0
}

// Snapshot returns a copy of the current counters.
func (a *Accumulator) Snapshot(now time.Time) Snapshot {
	a.mx.Lock()
	defer a.mx.Unlock()

	snap := Snapshot{Started: a.started, Elapsed: now.Sub(a.started)}
	if snap.Elapsed < 0 {
		snap.Elapsed = 0
	}
	for i := range a.dirs {
		snap.Directions[i] = a.dirs[i].clone()
	}
	return snap
}

// A Snapshot is a point-in-time copy of an Accumulator.
type Snapshot struct {
	Started    time.Time
	Elapsed    time.Duration
	Directions [len(directions)]DirectionStats
}

// Direction returns the statistics of one direction.
func (s Snapshot) Direction(d Direction) DirectionStats { return s.Directions[d] }

// TotalBytes is the sum of both directions.
func (s Snapshot) TotalBytes() uint64 {
	var total uint64
	for _, d := range s.Directions {
		total += d.TotalBytes
	}
	return total
}

// MessageCount is the sum of both directions.
func (s Snapshot) MessageCount() uint64 {
	var total uint64
	for _, d := range s.Directions {
		total += d.MessageCount
	}
	return total
}

// Bandwidth is the combined bytes per second of both directions.
func (s Snapshot) Bandwidth() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.TotalBytes()) / s.Elapsed.Seconds()
}
