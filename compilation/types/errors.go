package types

import (
	"errors"
	"fmt"
)

// ErrDuplicateUnit is matched (errors.Is) by every DuplicateUnitError.
var ErrDuplicateUnit = errors.New("duplicate translation unit")

// ErrInvalidUnitName indicates a translation unit namespace or name which cannot be mapped to a Go package and file.
var ErrInvalidUnitName = errors.New("invalid translation unit name")

// DuplicateUnitError is returned when a translation unit is added with a qualified name which already exists in a
// CompilationDescriptor.
type DuplicateUnitError struct {
	// QualifiedName is the namespace-qualified name which was added more than once.
	QualifiedName string
}

// Error returns the error message string, implementing the `error` interface.
func (e *DuplicateUnitError) Error() string {
	return fmt.Sprintf("translation unit '%s' already exists", e.QualifiedName)
}

// Is reports whether target is ErrDuplicateUnit.
func (e *DuplicateUnitError) Is(target error) bool {
	return target == ErrDuplicateUnit
}
