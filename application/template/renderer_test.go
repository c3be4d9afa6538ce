package template_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsuki-dev/tsuki-host/application/template"
	"github.com/tsuki-dev/tsuki-host/domain/entities"
)

func TestGoTemplateEngine_Render(t *testing.T) {
	engine := template.NewGoTemplateEngine()
	synopsis := "A mage outlives her party."
	page := entities.Page[entities.Series]{
		Items: []entities.Series{
			{ID: "s1", Title: "Frieren", Synopsis: &synopsis},
			{ID: "s2", Title: "Dungeon Meshi"},
		},
		HasNextPage: true,
	}

	t.Run("Fields", func(t *testing.T) {
		out, err := engine.Render(`{{range .Items}}{{.ID}}	{{.Title}}	{{deref .Synopsis}}{{"\n"}}{{end}}`, page)
		require.NoError(t, err)
		assert.Equal(t, "s1\tFrieren\tA mage outlives her party.\ns2\tDungeon Meshi\t\n", string(out))
	})

	t.Run("Funcs", func(t *testing.T) {
		out, err := engine.Render(`{{.ID}}={{join .Values ","}} {{json .}}`,
			entities.FilterSelection{ID: "genre", Values: []string{"drama", "action"}})
		require.NoError(t, err)
		assert.Equal(t, `genre=drama,action {"id":"genre","values":["drama","action"]}`, string(out))
	})

	t.Run("Unknown Field Fails", func(t *testing.T) {
		_, err := engine.Render(`{{.HasNextPage}}`, entities.FilterSelection{ID: "genre"})
		require.Error(t, err)
	})

	t.Run("Missing Key Fails", func(t *testing.T) {
		_, err := engine.Render(`{{.missing}}`, map[string]any{"name": "something"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "map has no entry for key")
	})

	t.Run("Missing Key Allowed", func(t *testing.T) {
		lenient := template.NewGoTemplateEngine(template.WithStrict(false))
		out, err := lenient.Render(`[{{.missing}}]`, map[string]any{})
		require.NoError(t, err)
		assert.Equal(t, "[<no value>]", string(out))
	})

	t.Run("Invalid Template Syntax", func(t *testing.T) {
		_, err := engine.Render(`{{.ID`, page)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse format template")
	})
}
