package core

import (
	"fmt"
	"strings"
)

// Violation names one validation rule a candidate value broke.
type Violation struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError carries every rule a candidate broke. Nothing is written
// when one is returned.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Rule+": "+v.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// NotFoundError marks a lookup of a missing user, group or inbound tag.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.Key)
}

// ConflictError marks a state transition that raced a concurrent edit.
// Callers re-read under the per-user lock and evaluate again.
type ConflictError struct {
	Resource string
	Key      string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("concurrent modification of %s %q", e.Resource, e.Key)
}
