package widget

import (
	"fmt"
	"time"
)

// ID identifies a widget. IDs are assigned once at creation and never reused.
type ID int64

// Widget is an immutable rectangle on the plane.
//
// Values are never modified after construction. An update builds a new Widget
// which replaces the old one wherever it is indexed, so a Widget can be shared
// with concurrent readers without copying.
type Widget struct {
	ID            ID        `json:"id"`
	X             int       `json:"x"`
	Y             int       `json:"y"`
	Z             int       `json:"z"`
	Width         int       `json:"width"`
	Height        int       `json:"height"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
}

func (w Widget) String() string {
	return fmt.Sprintf("widget[%d](x=%d, y=%d, z=%d, %dx%d)", w.ID, w.X, w.Y, w.Z, w.Width, w.Height)
}

// Mutable is implemented by persistence-backed widgets that are changed in
// place before being written back. In-memory code never uses it.
type Mutable interface {
	Widget() Widget

	SetX(x int)
	SetY(y int)
	SetZ(z int)
	SetWidth(width int)
	SetHeight(height int)
	SetLastUpdatedAt(t time.Time)
}
