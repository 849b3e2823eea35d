// Package diag is the side channel for recoverable data-quality problems.
// Nothing reported here fails an operation; it only counts or logs.
package diag

import (
	"fmt"
	"log"
	"sync"
)

// Kind identifies a recoverable condition.
type Kind int

const (
	UnparseableDate Kind = iota + 1
	MalformedAddressEntry
	UntrustedSample
)

func (k Kind) String() string {
	switch k {
	case UnparseableDate:
		return "unparseable_date"
	case MalformedAddressEntry:
		return "malformed_address_entry"
	case UntrustedSample:
		return "untrusted_sample"
	default:
		return "unknown"
	}
}

// Warning is one recovered condition. Count is the number of occurrences it
// stands for (e.g. dropped address entries in a single field).
type Warning struct {
	Kind   Kind
	Entity string
	Field  string
	Detail string
	Count  int
}

func (w Warning) String() string {
	n := w.Count
	if n <= 0 {
		n = 1
	}
	return fmt.Sprintf("%s %s.%s x%d: %s", w.Kind, w.Entity, w.Field, n, w.Detail)
}

// Reporter receives warnings.
type Reporter interface {
	Warn(w Warning)
}

type discard struct{}

func (discard) Warn(Warning) {}

// Discard drops every warning.
var Discard Reporter = discard{}

// OrDiscard returns r, or Discard when r is nil.
func OrDiscard(r Reporter) Reporter {
	if r == nil {
		return Discard
	}
	return r
}

// Counter tallies warnings by kind. The zero value is ready to use and it is
// safe to share between goroutines.
type Counter struct {
	mu     sync.Mutex
	counts map[Kind]int
	last   []Warning
}

func (c *Counter) Warn(w Warning) {
	n := w.Count
	if n <= 0 {
		n = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[Kind]int)
	}
	c.counts[w.Kind] += n
	c.last = append(c.last, w)
	if len(c.last) > 64 {
		c.last = c.last[len(c.last)-64:]
	}
}

// Count returns the number of occurrences recorded for k.
func (c *Counter) Count(k Kind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[k]
}

// Total returns the occurrences recorded across all kinds.
func (c *Counter) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, n := range c.counts {
		total += n
	}
	return total
}

// Recent returns a copy of the most recent warnings, oldest first.
func (c *Counter) Recent() []Warning {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Warning, len(c.last))
	copy(out, c.last)
	return out
}

// LogReporter writes each warning as one log line.
type LogReporter struct {
	Logger *log.Logger
}

func (l LogReporter) Warn(w Warning) {
	if l.Logger == nil {
		log.Printf("data warning: %s", w)
		return
	}
	l.Logger.Printf("data warning: %s", w)
}

// Multi fans a warning out to several reporters.
type Multi []Reporter

func (m Multi) Warn(w Warning) {
	for _, r := range m {
		if r != nil {
			r.Warn(w)
		}
	}
}
