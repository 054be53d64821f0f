package toolexec

import (
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"

	"github.com/fariz/warden/pkg/errkit"
)

// Registry owns the immutable set of registered tool definitions and their
// compiled parameter schemas
type Registry struct {
	mu      sync.RWMutex
	defs    map[string]*ToolDefinition
	schemas map[string]*gojsonschema.Schema
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		defs:    make(map[string]*ToolDefinition),
		schemas: make(map[string]*gojsonschema.Schema),
	}
}

// Register adds a tool definition. Duplicate names and malformed
// definitions are configuration errors.
func (r *Registry) Register(def ToolDefinition) error {
	if err := validateDefinition(def); err != nil {
		return err
	}

	schema, err := compileSchema(def)
	if err != nil {
		return errkit.Wrap(errkit.KindConfiguration, err, "failed to compile parameter schema").
			WithContext("tool", def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[def.Name]; exists {
		return errkit.Newf(errkit.KindConfiguration, "tool already registered: %s", def.Name)
	}

	r.defs[def.Name] = &def
	r.schemas[def.Name] = schema

	log.Info().Str("tool", def.Name).Bool("destructive", def.Destructive).Msg("Tool registered")
	return nil
}

// Get returns a definition by name, or nil
func (r *Registry) Get(name string) *ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defs[name]
}

// List returns all registered tool names, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns all registered definitions sorted by name
func (r *Registry) Definitions() []*ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]*ToolDefinition, 0, len(r.defs))
	for _, def := range r.defs {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// CreateInvocation validates a tool call's parameters against the tool's
// schema and binds them into an invocation ready for the pipeline
func (r *Registry) CreateInvocation(call ToolCall) (*Invocation, error) {
	r.mu.RLock()
	def := r.defs[call.Name]
	schema := r.schemas[call.Name]
	r.mu.RUnlock()

	if def == nil {
		return nil, errkit.Newf(errkit.KindNotFound, "unknown tool: %s", call.Name).
			WithContext("known_tools", r.List())
	}

	params := call.Parameters
	if params == nil {
		params = map[string]interface{}{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return nil, errkit.Wrap(errkit.KindValidation, err, "parameter validation failed").
			WithContext("tool", call.Name)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		first := ""
		for _, e := range result.Errors() {
			if first == "" {
				first = e.Field()
			}
			details = append(details, e.String())
		}
		return nil, errkit.Newf(errkit.KindValidation, "invalid parameters for %s: %s",
			call.Name, strings.Join(details, "; ")).
			WithContext("tool", call.Name).
			WithContext("field", first)
	}

	return newInvocation(call, def, params), nil
}

// validateDefinition checks structural requirements of a definition
func validateDefinition(def ToolDefinition) error {
	if def.Name == "" {
		return errkit.New(errkit.KindConfiguration, "tool name cannot be empty")
	}
	if def.Description == "" {
		return errkit.Newf(errkit.KindConfiguration, "tool description cannot be empty: %s", def.Name)
	}
	if def.Handler == nil {
		return errkit.Newf(errkit.KindConfiguration, "tool handler cannot be nil: %s", def.Name)
	}

	validTypes := map[string]bool{
		"string": true, "number": true, "boolean": true,
		"object": true, "array": true, "integer": true,
	}
	for _, param := range def.Parameters {
		if param.Name == "" {
			return errkit.Newf(errkit.KindConfiguration, "parameter name cannot be empty in tool %s", def.Name)
		}
		if !validTypes[param.Type] {
			return errkit.Newf(errkit.KindConfiguration, "invalid parameter type %s for %s.%s",
				param.Type, def.Name, param.Name)
		}
	}
	return nil
}

// compileSchema builds the JSON Schema for a definition's parameters
func compileSchema(def ToolDefinition) (*gojsonschema.Schema, error) {
	properties := make(map[string]interface{}, len(def.Parameters))
	required := []string{}

	for _, param := range def.Parameters {
		paramSchema := map[string]interface{}{
			"type":        param.Type,
			"description": param.Description,
		}
		if param.Default != nil {
			paramSchema["default"] = param.Default
		}
		properties[param.Name] = paramSchema

		if param.Required {
			required = append(required, param.Name)
		}
	}

	schemaMap := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           properties,
	}
	if len(required) > 0 {
		schemaMap["required"] = required
	}

	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaMap))
}
