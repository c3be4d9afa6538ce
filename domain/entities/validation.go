package entities

import "strings"

// ValidationResult is the outcome of checking plugin metadata.
type ValidationResult struct {
	Errors []ValidationError
	Valid  bool
}

// ValidationError is one failed field.
type ValidationError struct {
	Field   string
	Message string
}

// Summary lists every failed field, one per line.
func (r *ValidationResult) Summary() string {
	var b strings.Builder
	b.WriteString("invalid metadata:")
	for _, e := range r.Errors {
		b.WriteString("\n- ")
		b.WriteString(e.Field)
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}
