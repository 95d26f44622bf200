// Package store provides SQL-backed durable storage for widgets.
//
// Widgets live in a single table whose z column carries a UNIQUE constraint,
// so the database itself rejects any state with two widgets on one z. Every
// mutation runs in one transaction; a shift cascade is applied highest-first
// so the constraint holds after each statement.
//
// Two drivers are supported:
//   - sqlite3 (github.com/mattn/go-sqlite3): the default, file-backed
//   - pgx (github.com/jackc/pgx/v5/stdlib): PostgreSQL
//
// # SQLite Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Timestamps are stored as unix nanoseconds in UTC so they survive a round
// trip through either driver without losing precision.
package store
