package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw []byte) map[string]any {
	t.Helper()
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	return doc
}

func TestGenerateSchema_Struct(t *testing.T) {
	type searchInput struct {
		Page  *uint32 `json:"page"`
		Query string  `json:"query"`
	}

	raw, err := GenerateSchema(searchInput{})
	require.NoError(t, err)

	doc := decode(t, raw)
	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "page")
	assert.Contains(t, props, "query")
	assert.Equal(t, "object", doc["type"])
}

func TestGenerateSchema_NestedDefinitions(t *testing.T) {
	type option struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	type filter struct {
		ID      string   `json:"id"`
		Options []option `json:"options"`
	}

	raw, err := GenerateSchema(filter{})
	require.NoError(t, err)

	doc := decode(t, raw)
	defs, ok := doc["$defs"].(map[string]any)
	require.True(t, ok, "nested structs are emitted as definitions")
	assert.Contains(t, defs, "option")
}

func TestGenerateSchema_Slice(t *testing.T) {
	type video struct {
		URL string `json:"url"`
	}

	raw, err := GenerateSchema([]video{})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"array"`)
	assert.Contains(t, string(raw), "url")
}
