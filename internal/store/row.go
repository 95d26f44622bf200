package store

import (
	"time"

	"github.com/roach88/widgetd/internal/widget"
)

// widgetColumns is the column list every widget query selects, in scan order.
const widgetColumns = `id, x, y, z, width, height, last_updated_at`

// row is a widget as stored in the widgets table. It implements
// widget.Mutable so updates can be applied to the loaded row directly.
type row struct {
	id            int64
	x, y, z       int
	width, height int
	lastUpdatedAt int64 // unix nanoseconds
}

var _ widget.Mutable = (*row)(nil)

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRow(sc scanner) (row, error) {
	var r row
	err := sc.Scan(&r.id, &r.x, &r.y, &r.z, &r.width, &r.height, &r.lastUpdatedAt)
	return r, err
}

func rowOf(w widget.Widget) row {
	return row{
		id:            int64(w.ID),
		x:             w.X,
		y:             w.Y,
		z:             w.Z,
		width:         w.Width,
		height:        w.Height,
		lastUpdatedAt: w.LastUpdatedAt.UnixNano(),
	}
}

// args returns the row's values in widgetColumns order.
func (r *row) args() []any {
	return []any{r.id, r.x, r.y, r.z, r.width, r.height, r.lastUpdatedAt}
}

func (r *row) Widget() widget.Widget {
	return widget.Widget{
		ID:            widget.ID(r.id),
		X:             r.x,
		Y:             r.y,
		Z:             r.z,
		Width:         r.width,
		Height:        r.height,
		LastUpdatedAt: time.Unix(0, r.lastUpdatedAt).UTC(),
	}
}

func (r *row) SetX(x int) { r.x = x }
func (r *row) SetY(y int) { r.y = y }
func (r *row) SetZ(z int) { r.z = z }
func (r *row) SetWidth(width int) { r.width = width }
func (r *row) SetHeight(height int) { r.height = height }
func (r *row) SetLastUpdatedAt(t time.Time) { r.lastUpdatedAt = t.UnixNano() }
