package repository

import (
	"sync/atomic"

	"github.com/roach88/widgetd/internal/widget"
)

// Snapshot is one committed version of the ordered widget sequence.
// Neither the struct nor its slice is modified after publication.
type Snapshot struct {
	// Version increases by one with every published mutation. The initial,
	// empty snapshot is version 0.
	Version uint64

	// Widgets is sorted ascending by z.
	Widgets []widget.Widget
}

// Publisher hands committed snapshots from the single writer to any number of
// lock-free readers.
//
// Thread-safety: Load is safe from any goroutine. Publish must only be called
// by the goroutine holding the repository's write lock.
type Publisher struct {
	current atomic.Pointer[Snapshot]
}

// NewPublisher creates a publisher holding the empty version 0 snapshot.
func NewPublisher() *Publisher {
	p := &Publisher{}
	p.current.Store(&Snapshot{Widgets: []widget.Widget{}})
	return p
}

// Publish makes widgets the current snapshot. The caller hands over
// ownership of the slice.
func (p *Publisher) Publish(widgets []widget.Widget) *Snapshot {
	next := &Snapshot{
		Version: p.current.Load().Version + 1,
		Widgets: widgets[:len(widgets):len(widgets)],
	}
	p.current.Store(next)
	return next
}

// Load returns the most recently published snapshot.
func (p *Publisher) Load() *Snapshot {
	return p.current.Load()
}
