package widget

import "fmt"

// Validator checks a request before a widget is built from it.
// Implementations return an *Error with CodeValidation.
type Validator interface {
	Validate(req Request) error
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(req Request) error

// Validate calls f(req).
func (f ValidatorFunc) Validate(req Request) error {
	return f(req)
}

// CreateValidator requires x and y, and positive width and height.
// Z is optional.
type CreateValidator struct{}

// Validate implements Validator.
func (CreateValidator) Validate(req Request) error {
	if err := requirePresent(req.X, "x"); err != nil {
		return err
	}
	if err := requirePresent(req.Y, "y"); err != nil {
		return err
	}
	if err := requirePositive(req.Width, "width"); err != nil {
		return err
	}
	return requirePositive(req.Height, "height")
}

// UpdateValidator accepts any subset of fields; width and height must be
// positive when present.
type UpdateValidator struct{}

// Validate implements Validator.
func (UpdateValidator) Validate(req Request) error {
	if err := requireAbsentOrPositive(req.Width, "width"); err != nil {
		return err
	}
	return requireAbsentOrPositive(req.Height, "height")
}

func requirePresent(v *int, name string) error {
	if v == nil {
		return NewValidationError(fmt.Sprintf("%s: expected: integer; got: nothing", name))
	}
	return nil
}

func requirePositive(v *int, name string) error {
	if v == nil {
		return NewValidationError(fmt.Sprintf("%s: expected: positive integer; got: nothing", name))
	}
	if *v <= 0 {
		return NewValidationError(fmt.Sprintf("%s: expected: positive integer; got: %d", name, *v))
	}
	return nil
}

func requireAbsentOrPositive(v *int, name string) error {
	if v != nil && *v <= 0 {
		return NewValidationError(fmt.Sprintf("%s: expected: absent or positive integer; got: %d", name, *v))
	}
	return nil
}
