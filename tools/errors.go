package tools

import (
	"fmt"
)

// DuplicateToolError is returned by Register when the name is taken
type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool already registered: %s", e.Name)
}

// UnknownToolError is returned by Lookup when no tool has the name
type UnknownToolError struct {
	Name string
	// Suggestions lists registered names close to Name
	Suggestions []string
}

func (e *UnknownToolError) Error() string {
	return "unknown tool: " + e.Name
}

// ValidationError describes the first missing or invalid argument
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid argument %q: %s", e.Field, e.Reason)
}

// DomainError is a failure of the computation itself,
// such as division by zero.
type DomainError struct {
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError returns a new DomainError
func NewDomainError(format string, args ...any) *DomainError {
	if len(args) == 0 {
		return &DomainError{Message: format}
	}
	return &DomainError{Message: fmt.Sprintf(format, args...)}
}
