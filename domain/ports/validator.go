package ports

import "github.com/tsuki-dev/tsuki-host/domain/entities"

// MetadataValidator checks plugin metadata before a plugin is linked.
type MetadataValidator interface {
	// Validate reports every field that breaks its constraints.
	Validate(meta *entities.PluginMetadata) (*entities.ValidationResult, error)
}
