package entities

// Contract names the fixed interface a plugin fulfils.
type Contract string

const (
	// ContractExtension is the content-discovery contract.
	ContractExtension Contract = "extension"

	// ContractProcessor is the media-resolution / raw HTTP contract.
	ContractProcessor Contract = "processor"
)

// PluginMetadata is what a plugin package declares about itself.
type PluginMetadata struct {
	Name        string   `json:"name" yaml:"name" validate:"required"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string   `json:"version" yaml:"version" validate:"required,semver"`
	Kind        Contract `json:"kind" yaml:"kind" validate:"required,oneof=extension processor"`
}

// PluginPackage is a loadable plugin: module bytes plus metadata.
// It is discarded once a template has been built from it.
type PluginPackage struct {
	Binary   []byte
	Metadata PluginMetadata
}
