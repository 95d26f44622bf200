// Package repository exposes widget storage behind a single Repository
// interface and provides the in-memory implementation plus the decorators
// that make any implementation safe for concurrent use.
//
// # Locking Discipline
//
// A typical stack is
//
//	repository.NewMeasured(repository.NewGuard(repository.NewInMemory(factory)))
//
//   - Create, Update and Delete hold the Guard's exclusive lock for the whole
//     operation, including the shift cascade, so no reader can observe a
//     half-shifted z sequence or an id index that disagrees with it.
//   - Get holds the shared lock; the id index is an ordinary map.
//   - List and ListPage take no lock at all. After each mutation InMemory
//     publishes a fresh copy of the ordered sequence through an atomic
//     pointer, and readers only ever see a complete, committed Snapshot.
//
// Widgets are immutable values, which is what allows snapshots to be shallow
// copies shared freely between goroutines.
package repository
