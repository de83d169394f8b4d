package schema

import (
	"errors"
	"fmt"
)

// Definition error codes (E100-E199)
const (
	ErrInvalidType        = "E101" // type tag is not legal
	ErrMissingItemType    = "E102" // list field without item type
	ErrDefaultType        = "E103" // default does not type-check
	ErrNegativeOccurrence = "E104" // min occurrence below zero
	ErrPatternType        = "E105" // pattern on a non string/number field
	ErrInvalidPattern     = "E106" // pattern does not compile
	ErrDuplicateField     = "E107" // field name already registered
	ErrDefaultConstraint  = "E108" // default violates its own constraint
	ErrInvalidFieldName   = "E109" // empty, dotted or $-prefixed name
	ErrInvertedBounds     = "E110" // min_length greater than max_length
)

// Validation error codes (E200-E299)
const (
	ErrRequired         = "E201" // null on a non-nullable field
	ErrTypeMismatch     = "E202" // value has the wrong shape
	ErrItemType         = "E203" // list item has the wrong shape
	ErrTooShort         = "E204" // string or list below min_length
	ErrTooLong          = "E205" // string or list above max_length
	ErrBelowMinimum     = "E206" // number below min_length
	ErrAboveMaximum     = "E207" // number above max_length
	ErrPatternMismatch  = "E208" // string does not match pattern
	ErrUnresolvedRecord = "E209" // reference to a record that was not found
)

// DefinitionError reports an illegal Field or Schema definition.
type DefinitionError struct {
	Schema  string `json:"schema"`
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *DefinitionError) Error() string {
	return fmt.Sprintf("[%s] %s.%s: %s", e.Code, e.Schema, e.Field, e.Message)
}

// IsDefinitionError reports whether err is (or wraps) a DefinitionError.
func IsDefinitionError(err error) bool {
	var de *DefinitionError
	return errors.As(err, &de)
}

// ValidationError describes one value that failed a Field's checks.
// Path is the field name, qualified with an index for list items
// ("tags[2]").
type ValidationError struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("Field '%s': %s", e.Path, e.Message)
}
