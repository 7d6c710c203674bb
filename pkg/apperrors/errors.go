package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedInput  = errors.New("malformed input")
	ErrCyclicHierarchy = errors.New("cyclic hierarchy")
)

// MalformedInputError describes a structural parse failure. No partial
// report is produced for a document that fails with it.
type MalformedInputError struct {
	Section string // "document", "groups" or "tables"
	Table   string
	Column  string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *MalformedInputError) Error() string {
	var parts []string
	parts = append(parts, ErrMalformedInput.Error())
	if e.Section != "" {
		parts = append(parts, fmt.Sprintf("section=%s", e.Section))
	}
	if e.Table != "" {
		parts = append(parts, fmt.Sprintf("table=%s", e.Table))
	}
	if e.Column != "" {
		parts = append(parts, fmt.Sprintf("column=%q", e.Column))
	}
	msg := strings.Join(parts, " ") + ": " + e.Message
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Is reports whether target is ErrMalformedInput.
func (e *MalformedInputError) Is(target error) bool {
	return target == ErrMalformedInput
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *MalformedInputError) Unwrap() error {
	return e.Cause
}

// NewMalformedInput creates a MalformedInputError for a section of the document.
func NewMalformedInput(section, message string, cause error) *MalformedInputError {
	return &MalformedInputError{Section: section, Message: message, Cause: cause}
}

// NewMalformedTable creates a MalformedInputError scoped to one table.
func NewMalformedTable(table, message string) *MalformedInputError {
	return &MalformedInputError{Section: "tables", Table: table, Message: message}
}

// NewMalformedColumn creates a MalformedInputError scoped to one column spec.
func NewMalformedColumn(table, columnSpec, message string) *MalformedInputError {
	return &MalformedInputError{Section: "tables", Table: table, Column: columnSpec, Message: message}
}

// CyclicHierarchyError reports a group that is its own ancestor. Cycle lists
// the groups along the cycle, starting and ending with the same group.
type CyclicHierarchyError struct {
	Cycle []string
}

// Error implements the error interface.
func (e *CyclicHierarchyError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCyclicHierarchy.Error(), strings.Join(e.Cycle, " -> "))
}

// Is reports whether target is ErrCyclicHierarchy.
func (e *CyclicHierarchyError) Is(target error) bool {
	return target == ErrCyclicHierarchy
}
