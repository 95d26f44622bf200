package harness

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/widgetd/internal/widget"
)

// Scenario is a named sequence of repository operations with expectations.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Steps run in order against one repository.
	Steps []Step `yaml:"steps"`
}

// Step is one repository call.
type Step struct {
	// Op is one of the Op* constants.
	Op string `yaml:"op"`

	// Ref names the widget. Create binds it; other ops look it up.
	Ref string `yaml:"ref,omitempty"`

	// ID addresses a widget by literal id instead of by ref.
	ID widget.ID `yaml:"id,omitempty"`

	// Request is the payload of create and update.
	Request widget.Request `yaml:"request,omitempty"`

	// Page and Size parameterize a page op.
	Page int `yaml:"page,omitempty"`
	Size int `yaml:"size,omitempty"`

	// Expect is checked against the outcome. Nil requires success only.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes the outcome of a step.
type Expect struct {
	Z      *int            `yaml:"z,omitempty"`
	Widget *widget.Request `yaml:"widget,omitempty"`
	Error  string          `yaml:"error,omitempty"`
	Order  []string        `yaml:"order,omitempty"`
	Count  *int            `yaml:"count,omitempty"`
}

// Step operations.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpGet    = "get"
	OpDelete = "delete"
	OpList   = "list"
	OpPage   = "page"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "expects:" vs "expect:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse YAML: empty document")
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, step *Step) error {
	switch step.Op {
	case OpCreate:
		if step.ID != 0 {
			return fmt.Errorf("steps[%d]: create cannot take an id", i)
		}
	case OpUpdate, OpGet, OpDelete:
		if step.Ref == "" && step.ID == 0 {
			return fmt.Errorf("steps[%d]: %s requires ref or id", i, step.Op)
		}
		if step.Ref != "" && step.ID != 0 {
			return fmt.Errorf("steps[%d]: ref and id are mutually exclusive", i)
		}
	case OpList, OpPage:
	case "":
		return fmt.Errorf("steps[%d]: op is required", i)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
	}

	if step.Expect == nil {
		return nil
	}
	switch widget.ErrorCode(step.Expect.Error) {
	case "", widget.CodeValidation, widget.CodeNotFound, widget.CodePage:
	default:
		return fmt.Errorf("steps[%d].expect: unknown error code %q", i, step.Expect.Error)
	}
	listing := step.Op == OpList || step.Op == OpPage
	if (step.Expect.Order != nil || step.Expect.Count != nil) && !listing {
		return fmt.Errorf("steps[%d].expect: order and count apply to list and page only", i)
	}
	if (step.Expect.Z != nil || step.Expect.Widget != nil) && listing {
		return fmt.Errorf("steps[%d].expect: z and widget do not apply to %s", i, step.Op)
	}
	return nil
}
