// Package schema generates JSON schemas for the values exchanged with guests.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// GenerateSchema creates a JSON schema from a Go value using
// invopop/jsonschema. Struct roots are expanded inline; nested types are
// emitted as $defs. Handles and optional pointers are plain properties: the
// schema describes shape, not ownership.
func GenerateSchema(v any) ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct:            true,
		AllowAdditionalProperties: true,
	}
	s := reflector.Reflect(v)

	jsonBytes, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return jsonBytes, nil
}
