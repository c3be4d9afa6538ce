package ports

// TemplateEngine renders command results through a user-supplied template.
type TemplateEngine interface {
	// Render executes format against data.
	Render(format string, data any) ([]byte, error)
}
