// Package template renders command results through Go text templates, as
// in `tsuki-host search --format '{{range .Items}}{{.ID}}{{"\n"}}{{end}}'`.
package template

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/tsuki-dev/tsuki-host/domain/ports"
)

// templateConfig holds configuration for the GoTemplateEngine.
type templateConfig struct {
	strict bool // Fail on missing keys
}

func defaultTemplateConfig() templateConfig {
	return templateConfig{
		strict: true,
	}
}

// TemplateOption configures a GoTemplateEngine.
type TemplateOption func(*templateConfig)

// WithStrict enables/disables strict mode for missing keys.
// When enabled (default), rendering fails if a referenced map key is missing.
func WithStrict(enabled bool) TemplateOption {
	return func(c *templateConfig) {
		c.strict = enabled
	}
}

// GoTemplateEngine implements TemplateEngine using standard text/template.
type GoTemplateEngine struct {
	config templateConfig
}

// NewGoTemplateEngine creates a new GoTemplateEngine.
func NewGoTemplateEngine(opts ...TemplateOption) ports.TemplateEngine {
	cfg := defaultTemplateConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &GoTemplateEngine{config: cfg}
}

var funcs = template.FuncMap{
	"json": func(v any) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	},
	"join":  strings.Join,
	"deref": deref,
}

// deref returns the string behind an optional field, or "".
func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Render executes format against data.
func (e *GoTemplateEngine) Render(format string, data any) ([]byte, error) {
	tmpl := template.New("format").Funcs(funcs)
	if e.config.strict {
		tmpl = tmpl.Option("missingkey=error")
	}

	tmpl, err := tmpl.Parse(format)
	if err != nil {
		return nil, fmt.Errorf("failed to parse format template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute format template: %w", err)
	}
	return buf.Bytes(), nil
}
