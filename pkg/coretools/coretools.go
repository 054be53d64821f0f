// Package coretools registers the baseline workspace tools: read_file,
// write_file, list_directory, delete_file. Handlers operate only on the
// canonical paths resolved by the security stage.
package coretools

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fariz/warden/pkg/errkit"
	"github.com/fariz/warden/pkg/security"
	"github.com/fariz/warden/pkg/toolexec"
)

// DefaultReadLimit caps read_file output when max_bytes is not given.
const DefaultReadLimit = 200_000

// Register adds the core workspace tools to a registry.
func Register(registry *toolexec.Registry) error {
	tools := []toolexec.ToolDefinition{
		readFileTool(),
		writeFileTool(),
		listDirectoryTool(),
		deleteFileTool(),
	}

	for _, tool := range tools {
		if err := registry.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

func readFileTool() toolexec.ToolDefinition {
	return toolexec.ToolDefinition{
		Name:        "read_file",
		DisplayName: "Read File",
		Description: "Read a file from the workspace.",
		Parameters: []toolexec.ToolParameter{
			{Name: "path", Type: "string", Description: "Relative file path", Required: true},
			{Name: "max_bytes", Type: "number", Description: "Maximum bytes to return", Required: false, Default: DefaultReadLimit},
		},
		Locations: func(params map[string]interface{}) []toolexec.FileLocation {
			path, _ := params["path"].(string)
			return []toolexec.FileLocation{{Path: path, Op: security.OpRead}}
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (*toolexec.Output, error) {
			target, err := canonicalTarget(ctx, params)
			if err != nil {
				return nil, err
			}

			limit := int64(DefaultReadLimit)
			if raw, ok := params["max_bytes"].(float64); ok && raw > 0 {
				limit = int64(raw)
			}

			data, truncated, err := readWithLimit(target.CanonicalPath, limit)
			if err != nil {
				return nil, err
			}

			content := string(data)
			if truncated {
				content += "\n... [output truncated]"
			}

			return &toolexec.Output{
				LLMContent:    content,
				ReturnDisplay: fmt.Sprintf("Read %d bytes from %s", len(data), target.Path),
				Metadata: map[string]interface{}{
					"bytes":     len(data),
					"truncated": truncated,
				},
			}, nil
		},
	}
}

func writeFileTool() toolexec.ToolDefinition {
	return toolexec.ToolDefinition{
		Name:        "write_file",
		DisplayName: "Write File",
		Description: "Write content to a file in the workspace, creating it if needed.",
		Destructive: true,
		Parameters: []toolexec.ToolParameter{
			{Name: "path", Type: "string", Description: "Relative file path", Required: true},
			{Name: "content", Type: "string", Description: "File content", Required: true},
		},
		Locations: func(params map[string]interface{}) []toolexec.FileLocation {
			path, _ := params["path"].(string)
			content, _ := params["content"].(string)
			return []toolexec.FileLocation{{Path: path, Op: security.OpWrite, Size: int64(len(content))}}
		},
		Describe: func(params map[string]interface{}) string {
			path, _ := params["path"].(string)
			content, _ := params["content"].(string)
			return fmt.Sprintf("write %d bytes to %s", len(content), path)
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (*toolexec.Output, error) {
			target, err := canonicalTarget(ctx, params)
			if err != nil {
				return nil, err
			}
			content, _ := params["content"].(string)

			if err := atomicWriteFile(target.CanonicalPath, []byte(content), 0o644); err != nil {
				return nil, err
			}

			summary := fmt.Sprintf("Wrote %d bytes to %s", len(content), target.Path)
			return &toolexec.Output{
				LLMContent:    summary,
				ReturnDisplay: summary,
				Metadata:      map[string]interface{}{"bytes": len(content)},
			}, nil
		},
	}
}

func listDirectoryTool() toolexec.ToolDefinition {
	return toolexec.ToolDefinition{
		Name:        "list_directory",
		DisplayName: "List Directory",
		Description: "List the entries of a workspace directory.",
		Parameters: []toolexec.ToolParameter{
			{Name: "path", Type: "string", Description: "Relative directory path, workspace root when omitted", Required: false, Default: "."},
		},
		Locations: func(params map[string]interface{}) []toolexec.FileLocation {
			return []toolexec.FileLocation{{Path: listPath(params), Op: security.OpList}}
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (*toolexec.Output, error) {
			ec := toolexec.ExecContextFromContext(ctx)
			if ec == nil {
				return nil, errkit.New(errkit.KindInternal, "execution context is required")
			}
			requested := listPath(params)
			target, ok := ec.CanonicalFor(requested)
			if !ok {
				return nil, errkit.New(errkit.KindInternal, "no canonical path resolved for list target")
			}

			entries, err := os.ReadDir(target.CanonicalPath)
			if err != nil {
				return nil, errkit.Wrap(errkit.KindFileSystem, err, "failed to list directory").
					WithContext("op", "list").
					WithContext("path", requested)
			}

			sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

			lines := make([]string, 0, len(entries))
			for _, entry := range entries {
				if entry.IsDir() {
					lines = append(lines, entry.Name()+"/")
					continue
				}
				size := int64(0)
				if info, infoErr := entry.Info(); infoErr == nil {
					size = info.Size()
				}
				lines = append(lines, fmt.Sprintf("%s (%d bytes)", entry.Name(), size))
			}

			content := strings.Join(lines, "\n")
			if content == "" {
				content = "(empty directory)"
			}

			return &toolexec.Output{
				LLMContent:    content,
				ReturnDisplay: fmt.Sprintf("Listed %d entries in %s", len(entries), requested),
				Metadata:      map[string]interface{}{"entries": len(entries)},
			}, nil
		},
	}
}

func deleteFileTool() toolexec.ToolDefinition {
	return toolexec.ToolDefinition{
		Name:        "delete_file",
		DisplayName: "Delete File",
		Description: "Delete a file from the workspace.",
		Destructive: true,
		Parameters: []toolexec.ToolParameter{
			{Name: "path", Type: "string", Description: "Relative file path", Required: true},
		},
		Locations: func(params map[string]interface{}) []toolexec.FileLocation {
			path, _ := params["path"].(string)
			return []toolexec.FileLocation{{Path: path, Op: security.OpDelete}}
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (*toolexec.Output, error) {
			target, err := canonicalTarget(ctx, params)
			if err != nil {
				return nil, err
			}

			if err := os.Remove(target.CanonicalPath); err != nil {
				if os.IsNotExist(err) {
					return nil, errkit.Newf(errkit.KindFileSystem, "file not found: %s", target.Path).
						WithContext("op", "delete")
				}
				return nil, errkit.Wrap(errkit.KindFileSystem, err, "failed to delete file").
					WithContext("op", "delete").
					WithContext("path", target.Path)
			}

			summary := fmt.Sprintf("Deleted %s", target.Path)
			return &toolexec.Output{LLMContent: summary, ReturnDisplay: summary}, nil
		},
	}
}

// canonicalTarget extracts the canonical location for a tool's path
// parameter from the execution context.
func canonicalTarget(ctx context.Context, params map[string]interface{}) (toolexec.ResolvedLocation, error) {
	ec := toolexec.ExecContextFromContext(ctx)
	if ec == nil {
		return toolexec.ResolvedLocation{}, errkit.New(errkit.KindInternal, "execution context is required")
	}
	path, _ := params["path"].(string)
	loc, ok := ec.CanonicalFor(path)
	if !ok {
		return toolexec.ResolvedLocation{}, errkit.New(errkit.KindInternal, "no canonical path resolved for target")
	}
	return loc, nil
}

func listPath(params map[string]interface{}) string {
	if path, ok := params["path"].(string); ok && path != "" {
		return path
	}
	return "."
}

// readWithLimit reads at most limit bytes and reports whether the file
// was longer than that.
func readWithLimit(path string, limit int64) ([]byte, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, errkit.New(errkit.KindFileSystem, "file not found").
				WithContext("op", "read").
				WithContext("path", path)
		}
		return nil, false, errkit.Wrap(errkit.KindFileSystem, err, "failed to open file").
			WithContext("op", "read")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, false, errkit.Wrap(errkit.KindFileSystem, err, "failed to read file").
			WithContext("op", "read")
	}

	if int64(len(data)) > limit {
		return data[:limit], true, nil
	}
	return data, false, nil
}
