// Package idgen provides widget id generators.
//
// Counter is the default: an in-process atomic sequence that can be resumed
// from a known high-water mark. Redis shares one sequence between processes.
package idgen

import (
	"context"
	"sync/atomic"

	"github.com/roach88/widgetd/internal/widget"
)

// Counter is a monotonic id sequence.
//
// Thread-safety: Counter is safe for concurrent use (atomic operations).
type Counter struct {
	seq atomic.Int64
}

// NewCounter creates a counter whose first id is 1.
func NewCounter() *Counter {
	return &Counter{}
}

// NewCounterAt creates a counter that resumes after start.
// Used by persistent stores so ids are never reused across restarts.
func NewCounterAt(start widget.ID) *Counter {
	c := &Counter{}
	c.seq.Store(int64(start))
	return c
}

// Next returns the next id. Calls are linearizable; each returns a unique,
// increasing value. The error is always nil.
func (c *Counter) Next(context.Context) (widget.ID, error) {
	return widget.ID(c.seq.Add(1)), nil
}

// Current returns the last id handed out without advancing.
func (c *Counter) Current() widget.ID {
	return widget.ID(c.seq.Load())
}
