package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid matches every *ValidationError through errors.Is.
var ErrInvalid = errors.New("invalid entity")

// IssueKind classifies a construction failure on one field.
type IssueKind int

const (
	MissingField IssueKind = iota + 1
	TypeMismatch
	OutOfRangeValue
)

func (k IssueKind) String() string {
	switch k {
	case MissingField:
		return "missing field"
	case TypeMismatch:
		return "type mismatch"
	case OutOfRangeValue:
		return "out of range"
	default:
		return "unknown issue"
	}
}

// Issue is one failed field. Field is the backend key.
type Issue struct {
	Field  string
	Kind   IssueKind
	Detail string
}

func (i Issue) String() string {
	if i.Detail == "" {
		return fmt.Sprintf("%s: %s", i.Field, i.Kind)
	}
	return fmt.Sprintf("%s: %s (%s)", i.Field, i.Kind, i.Detail)
}

// ValidationError aggregates every issue found while building one entity,
// so callers can show a single message.
type ValidationError struct {
	Entity string
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		parts[i] = is.String()
	}
	return fmt.Sprintf("invalid %s: %s", e.Entity, strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalid }

// Has reports whether an issue of kind was recorded for field.
func (e *ValidationError) Has(field string, kind IssueKind) bool {
	for _, is := range e.Issues {
		if is.Field == field && is.Kind == kind {
			return true
		}
	}
	return false
}

// ListError reports the rows of a list response that could not be built.
// The valid rows are still returned alongside it.
type ListError struct {
	Entity  string
	Skipped map[int]error
}

func (e *ListError) Error() string {
	return fmt.Sprintf("%d %s row(s) skipped", len(e.Skipped), e.Entity)
}
