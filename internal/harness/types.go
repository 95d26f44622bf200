package harness

import (
	"fmt"
	"strconv"

	"github.com/roach88/widgetd/internal/widget"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step met its expectation.
	Pass bool `json:"pass"`

	// Errors contains one message per failed step.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final is the listing after the last step, ascending z.
	Final []widget.Widget `json:"final"`

	// Refs maps widget ids to the refs bound by create steps.
	Refs map[widget.ID]string `json:"refs"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
		Refs:   make(map[widget.ID]string),
	}
}

// AddError records a failed step and marks the result as failed.
func (r *Result) AddError(step int, op, format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf("step[%d] %s: %s", step, op, fmt.Sprintf(format, args...)))
	r.Pass = false
}

// RefOf returns the ref bound to id, or "#<id>" for unnamed widgets.
func (r *Result) RefOf(id widget.ID) string {
	if ref, ok := r.Refs[id]; ok {
		return ref
	}
	return "#" + strconv.FormatInt(int64(id), 10)
}
