package ports

// SchemaRegistry manages JSON schemas for wire types.
type SchemaRegistry interface {
	// Register adds a schema generated from a Go struct.
	Register(name string, model any) error

	// GetSchema retrieves the JSON Schema registered under name.
	GetSchema(name string) (string, bool)

	// List returns all registered names.
	List() []string
}
