package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/roach88/widgetd/internal/repository"
	"github.com/roach88/widgetd/internal/widget"
)

// Repository implements repository.Repository on a Store.
//
// Each mutation is a single transaction. Reads see only committed state.
//
// Thread-safety: concurrent mutations may interleave between the statements
// of a shift cascade on drivers with more than one connection; wrap the
// repository in a repository.Guard to serialize writers.
type Repository struct {
	store   *Store
	factory *widget.Factory
	logger  *slog.Logger
}

var _ repository.Repository = (*Repository)(nil)

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the logger for mutation records.
func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) {
		r.logger = l
	}
}

// NewRepository creates a repository over s that builds widgets with factory.
// The factory's id generator should be seeded from s.MaxID.
func NewRepository(s *Store, factory *widget.Factory, opts ...Option) *Repository {
	r := &Repository{
		store:   s,
		factory: factory,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create implements repository.Repository.
func (r *Repository) Create(ctx context.Context, req widget.Request) (widget.Widget, error) {
	var created widget.Widget
	err := r.inTx(ctx, nil, func(tx *sql.Tx) error {
		// Placement is checked before the factory allocates an id.
		var (
			run      []widget.Widget
			defaultZ int
			err      error
		)
		if req.Z != nil {
			run, err = r.roomAt(ctx, tx, *req.Z)
		} else {
			defaultZ, err = r.defaultZ(ctx, tx)
		}
		if err != nil {
			return err
		}

		w, err := r.factory.Create(ctx, req, defaultZ)
		if err != nil {
			return err
		}

		if err := r.shiftRun(ctx, tx, run); err != nil {
			return err
		}
		rw := rowOf(w)
		if err := r.insert(ctx, tx, &rw); err != nil {
			return err
		}
		created = w
		return nil
	})
	if err != nil {
		return widget.Widget{}, err
	}

	r.logger.Info("widget created", "id", created.ID, "z", created.Z)
	return created, nil
}

// Update implements repository.Repository. The stored row is loaded into a
// mutable adapter, changed in place and written back.
func (r *Repository) Update(ctx context.Context, id widget.ID, req widget.Request) (widget.Widget, error) {
	var (
		updated widget.Widget
		oldZ    int
	)
	err := r.inTx(ctx, nil, func(tx *sql.Tx) error {
		rw, err := scanRow(tx.QueryRowContext(ctx,
			r.store.rebind(`SELECT `+widgetColumns+` FROM widgets WHERE id = ?`), int64(id)))
		if errors.Is(err, sql.ErrNoRows) {
			return widget.NewNotFoundError(id)
		}
		if err != nil {
			return fmt.Errorf("load widget %d: %w", id, err)
		}

		oldZ = rw.z
		if err := r.factory.ApplyInPlace(&rw, req); err != nil {
			return err
		}

		if rw.z == oldZ {
			_, err := tx.ExecContext(ctx, r.store.rebind(`
				UPDATE widgets
				SET x = ?, y = ?, width = ?, height = ?, last_updated_at = ?
				WHERE id = ?
			`), rw.x, rw.y, rw.width, rw.height, rw.lastUpdatedAt, rw.id)
			if err != nil {
				return fmt.Errorf("update widget %d: %w", id, err)
			}
			updated = rw.Widget()
			return nil
		}

		// The widget leaves its old slot before the new one is cleared, the
		// same as removing it and inserting it again.
		if _, err := tx.ExecContext(ctx, r.store.rebind(`DELETE FROM widgets WHERE id = ?`), rw.id); err != nil {
			return fmt.Errorf("update widget %d: %w", id, err)
		}
		if err := r.makeRoom(ctx, tx, rw.z); err != nil {
			return err
		}
		if err := r.insert(ctx, tx, &rw); err != nil {
			return err
		}
		updated = rw.Widget()
		return nil
	})
	if err != nil {
		return widget.Widget{}, err
	}

	r.logger.Info("widget updated", "id", id, "old_z", oldZ, "z", updated.Z)
	return updated, nil
}

// Get implements repository.Repository.
func (r *Repository) Get(ctx context.Context, id widget.ID) (widget.Widget, error) {
	rw, err := scanRow(r.store.db.QueryRowContext(ctx,
		r.store.rebind(`SELECT `+widgetColumns+` FROM widgets WHERE id = ?`), int64(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return widget.Widget{}, widget.NewNotFoundError(id)
	}
	if err != nil {
		return widget.Widget{}, fmt.Errorf("get widget %d: %w", id, err)
	}
	return rw.Widget(), nil
}

// List implements repository.Repository.
//
// Returns an empty slice (not nil) if no widgets exist.
func (r *Repository) List(ctx context.Context) ([]widget.Widget, error) {
	return r.query(ctx, r.store.db, `SELECT `+widgetColumns+` FROM widgets ORDER BY z ASC`)
}

// ListPage implements repository.Repository with the same bounds as the
// in-memory listing. Count and page are read from one snapshot: SQLite has a
// single connection, PostgreSQL reads under REPEATABLE READ.
func (r *Repository) ListPage(ctx context.Context, page, size int) ([]widget.Widget, error) {
	var out []widget.Widget
	err := r.inTx(ctx, r.pageTxOptions(), func(tx *sql.Tx) error {
		var total int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM widgets`).Scan(&total); err != nil {
			return fmt.Errorf("count widgets: %w", err)
		}

		start, end, err := repository.PageBounds(total, page, size)
		if err != nil {
			return err
		}
		if start == end {
			out = []widget.Widget{}
			return nil
		}

		out, err = r.query(ctx, tx,
			`SELECT `+widgetColumns+` FROM widgets ORDER BY z ASC LIMIT ? OFFSET ?`, end-start, start)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete implements repository.Repository.
func (r *Repository) Delete(ctx context.Context, id widget.ID) error {
	res, err := r.store.db.ExecContext(ctx, r.store.rebind(`DELETE FROM widgets WHERE id = ?`), int64(id))
	if err != nil {
		return fmt.Errorf("delete widget %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete widget %d: %w", id, err)
	}
	if n == 0 {
		r.logger.Debug("delete: widget not found", "id", id)
		return nil
	}

	r.logger.Info("widget deleted", "id", id)
	return nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *Repository) query(ctx context.Context, q queryer, query string, args ...any) ([]widget.Widget, error) {
	rows, err := q.QueryContext(ctx, r.store.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query widgets: %w", err)
	}
	defer rows.Close()

	out := []widget.Widget{}
	for rows.Next() {
		rw, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan widget: %w", err)
		}
		out = append(out, rw.Widget())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate widgets: %w", err)
	}
	return out, nil
}

// defaultZ returns one above the current top, or 0 for an empty table.
func (r *Repository) defaultZ(ctx context.Context, tx *sql.Tx) (int, error) {
	var top sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(z) FROM widgets`).Scan(&top); err != nil {
		return 0, fmt.Errorf("query top z: %w", err)
	}
	if !top.Valid {
		return 0, nil
	}
	if top.Int64 >= math.MaxInt {
		return 0, widget.NewZOverflowError(int(top.Int64))
	}
	return int(top.Int64) + 1, nil
}

// makeRoom frees z by moving the contiguous run of widgets starting at z up
// by one.
func (r *Repository) makeRoom(ctx context.Context, tx *sql.Tx, z int) error {
	run, err := r.roomAt(ctx, tx, z)
	if err != nil {
		return err
	}
	return r.shiftRun(ctx, tx, run)
}

// roomAt returns the run that placing a widget at z would shift, or a
// validation error if the run ends at math.MaxInt.
func (r *Repository) roomAt(ctx context.Context, tx *sql.Tx, z int) ([]widget.Widget, error) {
	run, err := r.occupiedRun(ctx, tx, z)
	if err != nil {
		return nil, err
	}
	if len(run) > 0 && run[len(run)-1].Z == math.MaxInt {
		return nil, widget.NewZOverflowError(z)
	}
	return run, nil
}

// shiftRun moves each widget of run up by one. The run is updated
// highest-first so no statement ever produces a duplicate z.
func (r *Repository) shiftRun(ctx context.Context, tx *sql.Tx, run []widget.Widget) error {
	if len(run) == 0 {
		return nil
	}

	for i := len(run) - 1; i >= 0; i-- {
		moved := rowOf(r.factory.Move(run[i], run[i].Z+1))
		_, err := tx.ExecContext(ctx, r.store.rebind(`
			UPDATE widgets SET z = ?, last_updated_at = ? WHERE id = ?
		`), moved.z, moved.lastUpdatedAt, moved.id)
		if err != nil {
			return fmt.Errorf("shift widget %d: %w", moved.id, err)
		}
	}

	r.logger.Debug("shifted widgets", "from_z", run[0].Z, "count", len(run))
	return nil
}

// occupiedRun returns the widgets at z, z+1, ... up to the first free slot.
func (r *Repository) occupiedRun(ctx context.Context, tx *sql.Tx, z int) ([]widget.Widget, error) {
	rows, err := tx.QueryContext(ctx,
		r.store.rebind(`SELECT `+widgetColumns+` FROM widgets WHERE z >= ? ORDER BY z ASC`), z)
	if err != nil {
		return nil, fmt.Errorf("query shift run: %w", err)
	}
	defer rows.Close()

	var run []widget.Widget
	next := z
	for rows.Next() {
		rw, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan widget: %w", err)
		}
		if rw.z != next {
			break
		}
		run = append(run, rw.Widget())
		if next == math.MaxInt {
			break
		}
		next++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shift run: %w", err)
	}
	return run, nil
}

func (r *Repository) insert(ctx context.Context, tx *sql.Tx, rw *row) error {
	_, err := tx.ExecContext(ctx, r.store.rebind(`
		INSERT INTO widgets (`+widgetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), rw.args()...)
	if err != nil {
		return fmt.Errorf("insert widget %d: %w", rw.id, err)
	}

	_, err = tx.ExecContext(ctx, r.store.rebind(`UPDATE id_high_water SET value = ? WHERE value < ?`), rw.id, rw.id)
	if err != nil {
		return fmt.Errorf("record id %d: %w", rw.id, err)
	}
	return nil
}

// pageTxOptions returns the transaction options for ListPage. Under
// PostgreSQL's default READ COMMITTED each statement takes a fresh snapshot,
// so COUNT and the page query could see different rows.
func (r *Repository) pageTxOptions() *sql.TxOptions {
	if r.store.driver != DriverPostgres {
		return nil
	}
	return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
}

// inTx runs fn in a transaction, committing only if fn succeeds.
func (r *Repository) inTx(ctx context.Context, opts *sql.TxOptions, fn func(tx *sql.Tx) error) error {
	tx, err := r.store.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
