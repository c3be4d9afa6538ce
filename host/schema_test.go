package host

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWireSchemas(t *testing.T) {
	for _, gen := range Generations() {
		t.Run(gen.String(), func(t *testing.T) {
			reg, err := WireSchemas(gen)
			require.NoError(t, err)

			names := reg.List()
			for _, export := range gen.Exports() {
				assert.Contains(t, names, export+".output")
			}
			for _, name := range names {
				s, ok := reg.GetSchema(name)
				require.True(t, ok)
				assert.True(t, json.Valid([]byte(s)), name)
			}
		})
	}
}

func TestWireSchemas_CaseFollowsGeneration(t *testing.T) {
	v001, err := WireSchemas(generation(t, "extension", "0.0.1"))
	require.NoError(t, err)
	s, _ := v001.GetSchema(ExportSeriesVideos + ".input")
	assert.Contains(t, s, `"series_id"`)

	v010, err := WireSchemas(generation(t, "extension", "0.1.0"))
	require.NoError(t, err)
	s, _ = v010.GetSchema(ExportSeriesVideos + ".input")
	assert.Contains(t, s, `"series-id"`)
	_, ok := v010.GetSchema(ExportFilters + ".output")
	assert.True(t, ok)
}
