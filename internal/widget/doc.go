// Package widget defines the widget value type and everything needed to build
// one from a client request.
//
// # Values
//
// A Widget is an immutable placement of a rectangle on a 2D plane. Its Z field
// is the stacking order and is unique among all live widgets; the uniqueness is
// maintained by the repositories, not by this package.
//
// Persistence layers that load rows and change them in place implement the
// Mutable interface instead. Both variants are produced by the same Factory so
// defaulting, validation and timestamping rules are shared:
//
//	f := widget.NewFactory(idgen.NewCounter(), widget.SystemClock{})
//	w, err := f.Create(ctx, req, defaultZ)     // immutable value
//	next, err := f.Update(w, patch)            // new value, w untouched
//	err = f.ApplyInPlace(row, patch)           // mutable adapter
//
// # Errors
//
// Every failure surfaced to callers is an *Error carrying a Code. Use
// IsValidation, IsNotFound and IsPageError to classify wrapped errors.
package widget
