// Package contract defines the interface implemented by every type generated from a template, along with the
// errors generated code reports. Generated sources import this package, so it must only depend on the standard
// library: sandboxed builds resolve it without any further module downloads.
package contract

import (
	"errors"
	"fmt"
)

// ImportPath is the import path generated sources use to reference this package.
const ImportPath = "github.com/crytic/stencil/contract"

// Result describes a type generated from a template. Execute runs the template body against a model, appending
// text through Write and WriteLine, which can then be obtained through Content.
type Result interface {
	// Execute runs the template body against the provided model.
	Execute(modelAsAny any) error

	// Write appends text to the accumulated content.
	Write(text string)

	// WriteLine appends text followed by a line terminator to the accumulated content.
	WriteLine(text string)

	// Content returns the content accumulated so far.
	Content() string
}

// ErrModelTypeMismatch is matched (errors.Is) by every ModelTypeMismatchError.
var ErrModelTypeMismatch = errors.New("model type mismatch")

// ModelTypeMismatchError is returned by a generated Result's Execute method when the provided model does not match
// the model type the template declared.
type ModelTypeMismatchError struct {
	// Expected is the model type declared by the template.
	Expected string

	// Actual is the dynamic type of the model that was provided.
	Actual string
}

// NewModelTypeMismatch creates a ModelTypeMismatchError for the expected type name and the provided model.
func NewModelTypeMismatch(expected string, model any) *ModelTypeMismatchError {
	return &ModelTypeMismatchError{
		Expected: expected,
		Actual:   fmt.Sprintf("%T", model),
	}
}

// Error returns the error message string, implementing the `error` interface.
func (e *ModelTypeMismatchError) Error() string {
	return fmt.Sprintf("model must be of type '%s', got '%s'", e.Expected, e.Actual)
}

// Is reports whether target is ErrModelTypeMismatch.
func (e *ModelTypeMismatchError) Is(target error) bool {
	return target == ErrModelTypeMismatch
}
