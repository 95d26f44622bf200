package widget

import (
	"fmt"
	"strings"
)

// Request carries the client-supplied fields of a create or update call.
// A nil field is absent: creation falls back to defaults (z only), updates
// inherit the existing value.
type Request struct {
	X      *int `json:"x,omitempty" yaml:"x,omitempty"`
	Y      *int `json:"y,omitempty" yaml:"y,omitempty"`
	Z      *int `json:"z,omitempty" yaml:"z,omitempty"`
	Width  *int `json:"width,omitempty" yaml:"width,omitempty"`
	Height *int `json:"height,omitempty" yaml:"height,omitempty"`
}

// Int returns a pointer to v, for building requests inline.
func Int(v int) *int {
	return &v
}

// String renders present fields only, e.g. "{x=1 z=5}".
func (r Request) String() string {
	var parts []string
	add := func(name string, v *int) {
		if v != nil {
			parts = append(parts, fmt.Sprintf("%s=%d", name, *v))
		}
	}
	add("x", r.X)
	add("y", r.Y)
	add("z", r.Z)
	add("width", r.Width)
	add("height", r.Height)
	return "{" + strings.Join(parts, " ") + "}"
}

func valueOr(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}
