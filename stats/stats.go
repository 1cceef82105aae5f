package stats

import (
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"
)

type Type int

const (
	Traversed Type = iota
	Descended
	Skipped
)

// Stats holds the counters for a single traversal. It is safe for concurrent use.
type Stats struct {
	start    time.Time
	counters map[Type]*atomic.Int32
}

func (s *Stats) Add(t Type, delta int32) int32 {
	return s.counters[t].Add(delta)
}

func (s *Stats) Value(t Type) int32 {
	return s.counters[t].Load()
}

func (s *Stats) Elapsed() time.Duration {
	return time.Since(s.start)
}

func (s *Stats) Print(w io.Writer) {
	components := []string{
		"traversed %d entries",
		"descended into %d directories",
		"skipped %d entries",
		"in %v",
		"",
	}

	fmt.Fprintf(
		w,
		strings.Join(components, "\n"),
		s.Value(Traversed),
		s.Value(Descended),
		s.Value(Skipped),
		s.Elapsed().Round(time.Millisecond),
	)
}

func New() Stats {
	// record start time
	start := time.Now()

	// init counters
	counters := make(map[Type]*atomic.Int32)
	counters[Traversed] = &atomic.Int32{}
	counters[Descended] = &atomic.Int32{}
	counters[Skipped] = &atomic.Int32{}

	return Stats{
		start:    start,
		counters: counters,
	}
}
