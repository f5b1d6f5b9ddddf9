package template

import (
	"errors"
	"fmt"
)

// ErrDuplicateTag is matched (errors.Is) by every DuplicateTagError.
var ErrDuplicateTag = errors.New("duplicate tag")

// DuplicateTagError is returned when a template declares a base or model tag more than once.
type DuplicateTagError struct {
	// Tag is the block type which was declared more than once.
	Tag BlockType
}

// Error returns the error message string, implementing the `error` interface.
func (e *DuplicateTagError) Error() string {
	return fmt.Sprintf("duplicate %s tag", e.Tag)
}

// Is reports whether target is ErrDuplicateTag.
func (e *DuplicateTagError) Is(target error) bool {
	return target == ErrDuplicateTag
}
