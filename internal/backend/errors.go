package backend

import (
	"fmt"
	"sort"
	"strings"

	"github.com/juju/errors"
)

const (
	// BlankMessage is the only validation complaint the sync engine tolerates.
	BlankMessage = "This field cannot be blank."

	alreadyExists = "already exists"
)

// ErrDirectAssignment is returned by SetField for many-relations, which
// must go through SetManyToMany.
var ErrDirectAssignment = errors.ConstError("direct assignment to a many-relation is prohibited")

// ValidationError carries per-field validation messages.
type ValidationError struct {
	Model  string
	Fields map[string][]string
}

// NewValidationError returns an empty ValidationError for model.
func NewValidationError(model string) *ValidationError {
	return &ValidationError{Model: model, Fields: map[string][]string{}}
}

// Add records msg against field.
func (e *ValidationError) Add(field, msg string) {
	e.Fields[field] = append(e.Fields[field], msg)
}

// Empty reports whether no messages were recorded.
func (e *ValidationError) Empty() bool { return len(e.Fields) == 0 }

func (e *ValidationError) fieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		names = append(names, f)
	}
	sort.Strings(names)
	return names
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.fieldNames() {
		parts = append(parts, fmt.Sprintf("%s: %s", f, strings.Join(e.Fields[f], " ")))
	}
	return fmt.Sprintf("%s validation failed: %s", e.Model, strings.Join(parts, "; "))
}

// Uniqueness returns the fields whose messages report an existing value.
func (e *ValidationError) Uniqueness() []string {
	var out []string
	for _, f := range e.fieldNames() {
		for _, msg := range e.Fields[f] {
			if strings.Contains(msg, alreadyExists) {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

// OnlyBlank reports whether every message is BlankMessage.
func (e *ValidationError) OnlyBlank() bool {
	for _, msgs := range e.Fields {
		for _, msg := range msgs {
			if msg != BlankMessage {
				return false
			}
		}
	}
	return true
}

// Is lets errors.Is match NotValid, and AlreadyExists for uniqueness failures.
func (e *ValidationError) Is(target error) bool {
	switch target {
	case errors.NotValid:
		return true
	case errors.AlreadyExists:
		return len(e.Uniqueness()) > 0
	}
	return false
}

// UniqueMessage formats the uniqueness complaint for a field.
func UniqueMessage(model string, f Field) string {
	return fmt.Sprintf("%s with this %s already exists.", model, f.DisplayLabel())
}

// AsValidationError extracts a *ValidationError from err.
func AsValidationError(err error) (*ValidationError, bool) {
	return errors.AsType[*ValidationError](err)
}
