package models

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError reports rejected input fields. It is returned instead of
// applying a mutation; nothing is persisted when it occurs.
type ValidationError struct {
	Fields map[string]string
}

// Add records a problem with a field
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = message
}

// OrNil returns nil when no field was rejected
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func checkNonNegative(v *ValidationError, field string, value float64) {
	if value < 0 {
		v.Add(field, "must not be negative")
	}
}
