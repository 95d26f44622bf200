package testutil

import "github.com/roach88/widgetd/internal/widget"

// CreateRequest returns a valid creation request at the given z.
// A nil z leaves placement to the repository.
func CreateRequest(z *int) widget.Request {
	return widget.Request{
		X:      widget.Int(10),
		Y:      widget.Int(20),
		Z:      z,
		Width:  widget.Int(100),
		Height: widget.Int(100),
	}
}

// At is shorthand for CreateRequest(widget.Int(z)).
func At(z int) widget.Request {
	return CreateRequest(widget.Int(z))
}
