package ports

import "github.com/tsuki-dev/tsuki-host/domain/entities"

// MetadataParser parses a plugin's metadata document.
type MetadataParser interface {
	// Parse unmarshals a YAML or JSON document into PluginMetadata.
	Parse(data []byte) (*entities.PluginMetadata, error)
}
