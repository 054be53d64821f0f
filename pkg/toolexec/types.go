// Package toolexec owns the set of available tools and drives each tool call
// through validation, security check, rate admission, confirmation, and
// execution, in that order.
package toolexec

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fariz/warden/pkg/security"
)

// ToolParameter declares one parameter of a tool's schema
type ToolParameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
}

// ToolHandler executes a validated invocation's parameters
type ToolHandler func(ctx context.Context, params map[string]interface{}) (*Output, error)

// LocationsFunc lists the filesystem locations an invocation will touch,
// derived from its parameters before anything executes
type LocationsFunc func(params map[string]interface{}) []FileLocation

// DescribeFunc renders a human-readable description of an invocation
type DescribeFunc func(params map[string]interface{}) string

// ToolDefinition is a tool's metadata, schema and handler. Immutable after
// registration. Destructive is a policy flag: tools declare their own
// confirmation requirement instead of being matched by name.
type ToolDefinition struct {
	Name        string          `json:"name"`
	DisplayName string          `json:"display_name"`
	Description string          `json:"description"`
	Destructive bool            `json:"destructive"`
	Parameters  []ToolParameter `json:"parameters"`
	Handler     ToolHandler     `json:"-"`
	Locations   LocationsFunc   `json:"-"`
	Describe    DescribeFunc    `json:"-"`
}

// ToolCall is the untrusted request parsed from a model response
type ToolCall struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Parameters map[string]interface{} `json:"parameters"`
}

// FileLocation is a filesystem location a tool declares it will touch.
// Size carries the payload length for writes.
type FileLocation struct {
	Path string             `json:"path"`
	Op   security.Operation `json:"op"`
	Size int64              `json:"size,omitempty"`
}

// ResolvedLocation is a FileLocation after the security stage: canonical,
// contained, and annotated with whether pre-existing state would be touched.
type ResolvedLocation struct {
	FileLocation
	CanonicalPath string `json:"canonical_path"`
	Exists        bool   `json:"exists"`
}

// Output is what a tool handler produces on success
type Output struct {
	LLMContent    string                 `json:"llm_content"`
	ReturnDisplay string                 `json:"return_display"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// ToolResult is the outcome of one tool call, returned to the model and UI
type ToolResult struct {
	CallID        string                 `json:"call_id"`
	ToolName      string                 `json:"tool_name"`
	Success       bool                   `json:"success"`
	LLMContent    string                 `json:"llm_content"`
	ReturnDisplay string                 `json:"return_display"`
	Error         string                 `json:"error,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	Duration      time.Duration          `json:"duration"`
}

// describeDefault renders "name(key=value, ...)" with sorted keys
func describeDefault(name string, params map[string]interface{}) string {
	if len(params) == 0 {
		return name + "()"
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := fmt.Sprintf("%v", params[k])
		if len(v) > 40 {
			v = v[:40] + "..."
		}
		parts = append(parts, fmt.Sprintf("%s=%s", k, v))
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(parts, ", "))
}
