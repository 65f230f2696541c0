package schemas

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllSchemaFiles_ValidJSON(t *testing.T) {
	for _, schemaFile := range Names() {
		t.Run(schemaFile, func(t *testing.T) {
			data, err := FS.ReadFile(schemaFile)
			require.NoError(t, err, "should be able to read schema file")

			var v map[string]any
			require.NoError(t, json.Unmarshal(data, &v), "schema file should be valid JSON: %s", schemaFile)

			// Check for required JSON Schema fields
			_, hasType := v["type"]
			_, hasSchema := v["$schema"]
			assert.True(t, hasType && hasSchema, "schema should declare $schema and type")
			assert.NotEmpty(t, v["title"])
		})
	}
}

func TestEmbeddedFiles_MatchNames(t *testing.T) {
	entries, err := FS.ReadDir(".")
	require.NoError(t, err)

	var embedded []string
	for _, e := range entries {
		embedded = append(embedded, e.Name())
	}
	assert.ElementsMatch(t, Names(), embedded)
}
