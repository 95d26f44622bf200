package repository

import (
	"context"

	"github.com/roach88/widgetd/internal/widget"
)

// Repository stores widgets with globally unique z-indices.
//
// Errors returned for caller mistakes are *widget.Error values; classify them
// with widget.IsValidation, widget.IsNotFound and widget.IsPageError.
// Anything else is an infrastructure failure.
type Repository interface {
	// Create builds a widget from req. When req.Z is absent the widget is
	// placed one above the current top (0 for an empty repository); an
	// explicit z that is taken displaces the occupants upward.
	Create(ctx context.Context, req widget.Request) (widget.Widget, error)

	// Update merges req into the widget with the given id. Fails with a
	// not-found error if the id is not live.
	Update(ctx context.Context, id widget.ID, req widget.Request) (widget.Widget, error)

	// Get returns the widget with the given id.
	Get(ctx context.Context, id widget.ID) (widget.Widget, error)

	// List returns all widgets in ascending z order. The returned slice is
	// shared with other readers and must not be modified.
	List(ctx context.Context) ([]widget.Widget, error)

	// ListPage returns the size widgets starting at page*size of the List
	// ordering. Fails with a page error if the page starts past the end.
	ListPage(ctx context.Context, page, size int) ([]widget.Widget, error)

	// Delete removes the widget with the given id. Deleting an id that is not
	// live is a no-op.
	Delete(ctx context.Context, id widget.ID) error
}

// Page cuts page number page of the given size out of all.
//
// The result aliases all with its capacity clipped, so appending to it never
// writes into all.
func Page(all []widget.Widget, page, size int) ([]widget.Widget, error) {
	start, end, err := PageBounds(len(all), page, size)
	if err != nil {
		return nil, err
	}
	return all[start:end:end], nil
}

// PageBounds returns the half-open range [start, end) covered by page number
// page of the given size in a listing of total widgets.
//
// page must be non-negative and size positive. A page that starts exactly at
// the end of the listing is empty; one that starts beyond it is an error.
func PageBounds(total, page, size int) (start, end int, err error) {
	if page < 0 || size <= 0 {
		return 0, 0, widget.NewPageError(page, size, total)
	}
	// Compared by division so page*size cannot overflow.
	if page > total/size {
		return 0, 0, widget.NewPageError(page, size, total)
	}
	start = page * size
	return start, min(start+size, total), nil
}
