package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fariz/warden/pkg/coretools"
	"github.com/fariz/warden/pkg/toolexec"
)

func TestSchemasFrom(t *testing.T) {
	registry := toolexec.NewRegistry()
	require.NoError(t, coretools.Register(registry))

	schemas := SchemasFrom(registry)

	require.Len(t, schemas, 4)
	names := make([]string, 0, len(schemas))
	for _, s := range schemas {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"delete_file", "list_directory", "read_file", "write_file"}, names)

	var write ToolSchema
	for _, s := range schemas {
		if s.Name == "write_file" {
			write = s
		}
	}
	assert.Equal(t, "object", write.Parameters.Type)
	assert.Equal(t, []string{"path", "content"}, write.Parameters.Required)
	assert.Equal(t, "string", write.Parameters.Properties["path"].Type)
	assert.NotEmpty(t, write.Description)
}

func TestToolSchema_WireShape(t *testing.T) {
	registry := toolexec.NewRegistry()
	require.NoError(t, coretools.Register(registry))

	data, err := json.Marshal(SchemasFrom(registry)[2])
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "read_file", decoded["name"])
	params, ok := decoded["parameters"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "object", params["type"])
	_, hasProps := params["properties"]
	assert.True(t, hasProps)
}
