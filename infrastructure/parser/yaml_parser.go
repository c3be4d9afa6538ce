package parser

import (
	"github.com/tsuki-dev/tsuki-host/domain/entities"
	"github.com/tsuki-dev/tsuki-host/domain/ports"
	"gopkg.in/yaml.v3"
)

// YamlMetadataParser implements MetadataParser for YAML. JSON documents parse
// too, being valid YAML.
type YamlMetadataParser struct{}

// NewYamlMetadataParser creates a new YamlMetadataParser.
func NewYamlMetadataParser() ports.MetadataParser {
	return &YamlMetadataParser{}
}

// Parse unmarshals YAML bytes into a PluginMetadata struct.
func (p *YamlMetadataParser) Parse(data []byte) (*entities.PluginMetadata, error) {
	var meta entities.PluginMetadata
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}
