// Package runstate holds the mutable state of one simulation run: the rows
// decoded for each trace, the free-output lines, and the counters the
// decoder advances.
//
// The decoder appends while the recorder drains. Drain removes exactly the
// entries a Snapshot returned, so anything appended while a flush was being
// written stays buffered for the next one.
package runstate

import (
	"strconv"
	"sync"
	"time"
)

// TimeColumn heads the first column of every header row.
const TimeColumn = "@time"

// OutputLine is one line of free output and the logical time it was seen at.
type OutputLine struct {
	Time int64
	Text string
}

// String renders the line as written to the output log.
func (l OutputLine) String() string {
	return strconv.FormatInt(l.Time, 10) + ":" + l.Text
}

// State is the per-run buffer and counter set. It is safe for concurrent use.
type State struct {
	mu             sync.Mutex
	rows           map[string][][]string
	order          []string
	output         []OutputLine
	logicalTime    int64
	interruptCount int
	freeOutput     bool
	lastFlush      time.Time
}

// New returns an empty State whose last flush is now.
func New(now time.Time) *State {
	return &State{
		rows:      make(map[string][][]string),
		lastFlush: now,
	}
}

// AppendHeader records the column header row for a trace.
func (s *State) AppendHeader(trace string, cols []string) {
	row := make([]string, 0, len(cols)+1)
	row = append(row, TimeColumn)
	row = append(row, cols...)
	s.appendRow(trace, row)
}

// AppendValues records a data row stamped with the current logical time.
func (s *State) AppendValues(trace string, vals []string) {
	s.mu.Lock()
	now := s.logicalTime
	s.mu.Unlock()

	row := make([]string, 0, len(vals)+1)
	row = append(row, strconv.FormatInt(now, 10))
	row = append(row, vals...)
	s.appendRow(trace, row)
}

func (s *State) appendRow(trace string, row []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[trace]; !ok {
		s.order = append(s.order, trace)
	}
	s.rows[trace] = append(s.rows[trace], row)
}

// AppendOutput records a free-output line if output capture is active. It
// reports whether the line was kept.
func (s *State) AppendOutput(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.freeOutput {
		return false
	}
	s.output = append(s.output, OutputLine{Time: s.logicalTime, Text: text})
	return true
}

// Tick advances the logical clock by one.
func (s *State) Tick() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logicalTime++
	return s.logicalTime
}

// Interrupt increments and returns the interrupt counter.
func (s *State) Interrupt() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interruptCount++
	return s.interruptCount
}

// SetFreeOutput toggles free-output capture.
func (s *State) SetFreeOutput(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.freeOutput = active
}

// LogicalTime returns the current logical time.
func (s *State) LogicalTime() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logicalTime
}

// InterruptCount returns the number of interrupts seen.
func (s *State) InterruptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interruptCount
}

// FreeOutputActive reports whether free output is being captured.
func (s *State) FreeOutputActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.freeOutput
}

// LastFlush returns the time of the last completed flush.
func (s *State) LastFlush() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFlush
}

// MarkFlushed records t as the last flush time.
func (s *State) MarkFlushed(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFlush = t
}

// Snapshot is a point-in-time copy of the buffered rows and output.
type Snapshot struct {
	// Traces lists traces in first-seen order.
	Traces []string
	Rows   map[string][][]string
	Output []OutputLine
}

// Largest returns the length of the longest buffered collection.
func (s Snapshot) Largest() int {
	n := len(s.Output)
	for _, rows := range s.Rows {
		n = max(n, len(rows))
	}
	return n
}

// Snapshot copies the current buffers without clearing them.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Traces: append([]string(nil), s.order...),
		Rows:   make(map[string][][]string, len(s.rows)),
		Output: append([]OutputLine(nil), s.output...),
	}
	for trace, rows := range s.rows {
		snap.Rows[trace] = append([][]string(nil), rows...)
	}
	return snap
}

// DrainRows removes the first n rows buffered for trace.
func (s *State) DrainRows(trace string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.rows[trace]
	n = min(n, len(rows))
	s.rows[trace] = append(rows[:0:0], rows[n:]...)
}

// DrainOutput removes the first n buffered output lines.
func (s *State) DrainOutput(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n = min(n, len(s.output))
	s.output = append(s.output[:0:0], s.output[n:]...)
}
