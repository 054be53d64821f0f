// Package model defines the collaborator interface to a language model.
// No provider is implemented here; callers inject their own Client.
package model

import (
	"context"

	"github.com/fariz/warden/pkg/toolexec"
)

// Message is one turn of conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response is the model's reply: text, tool calls, or both.
type Response struct {
	Message   string              `json:"message"`
	ToolCalls []toolexec.ToolCall `json:"tool_calls,omitempty"`
}

// Client is the injected model collaborator.
type Client interface {
	SendMessage(ctx context.Context, history []Message, tools []ToolSchema) (*Response, error)
}

// Property describes one parameter in a tool schema.
type Property struct {
	Type        string      `json:"type"`
	Description string      `json:"description,omitempty"`
	Default     interface{} `json:"default,omitempty"`
}

// Parameters is the JSON-schema shaped parameter object sent to the model.
type Parameters struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// ToolSchema is the shape a tool is advertised to the model in.
type ToolSchema struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  Parameters `json:"parameters"`
}

// SchemasFrom builds the advertised tool schemas from a registry, in the
// registry's sorted name order.
func SchemasFrom(registry *toolexec.Registry) []ToolSchema {
	defs := registry.Definitions()
	schemas := make([]ToolSchema, 0, len(defs))

	for _, def := range defs {
		params := Parameters{
			Type:       "object",
			Properties: make(map[string]Property, len(def.Parameters)),
		}
		for _, p := range def.Parameters {
			params.Properties[p.Name] = Property{
				Type:        p.Type,
				Description: p.Description,
				Default:     p.Default,
			}
			if p.Required {
				params.Required = append(params.Required, p.Name)
			}
		}
		schemas = append(schemas, ToolSchema{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  params,
		})
	}
	return schemas
}
