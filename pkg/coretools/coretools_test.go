package coretools

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fariz/warden/pkg/ratelimit"
	"github.com/fariz/warden/pkg/security"
	"github.com/fariz/warden/pkg/toolexec"
)

type fixture struct {
	root     string
	executor *toolexec.Executor
	handler  *toolexec.StaticConfirmationHandler
	limiter  *ratelimit.Limiter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	root := t.TempDir()
	policy, err := security.NewPolicy(security.Policy{
		RootDirectory:     root,
		AllowedExtensions: []string{".txt", ".json", ".md", ".go"},
		BlockedPaths:      []string{".git", "secrets"},
	})
	require.NoError(t, err)

	limiter, err := ratelimit.New(ratelimit.Config{
		Algorithm:         "token_bucket",
		RequestsPerMinute: 600,
		BurstLimit:        100,
		WindowSize:        time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(limiter.Stop)

	handler := &toolexec.StaticConfirmationHandler{
		Response: toolexec.ConfirmationResponse{Outcome: toolexec.OutcomeApproved},
	}

	registry := toolexec.NewRegistry()
	require.NoError(t, Register(registry))

	executor := toolexec.NewExecutor(
		registry,
		security.NewValidator(policy),
		limiter,
		toolexec.NewConfirmationManager(handler, time.Second),
	)

	return &fixture{root: root, executor: executor, handler: handler, limiter: limiter}
}

func (f *fixture) run(t *testing.T, name string, params map[string]interface{}) toolexec.ToolResult {
	t.Helper()
	inv, err := f.executor.Registry().CreateInvocation(toolexec.ToolCall{ID: "c1", Name: name, Parameters: params})
	require.NoError(t, err)
	return f.executor.Run(context.Background(), inv, &toolexec.ExecutionContext{Actor: "tester"})
}

func TestRegister_AllToolsPresent(t *testing.T) {
	registry := toolexec.NewRegistry()
	require.NoError(t, Register(registry))

	assert.Equal(t, []string{"delete_file", "list_directory", "read_file", "write_file"}, registry.List())
}

func TestReadFile(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "notes.txt"), []byte("hello world"), 0o644))

	result := f.run(t, "read_file", map[string]interface{}{"path": "notes.txt"})

	require.True(t, result.Success, result.Error)
	assert.Equal(t, "hello world", result.LLMContent)
	assert.Equal(t, 11, result.Metadata["bytes"])
	assert.Equal(t, false, result.Metadata["truncated"])
}

func TestReadFile_Truncation(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "big.txt"), []byte("0123456789"), 0o644))

	result := f.run(t, "read_file", map[string]interface{}{"path": "big.txt", "max_bytes": float64(4)})

	require.True(t, result.Success, result.Error)
	assert.Contains(t, result.LLMContent, "0123")
	assert.Contains(t, result.LLMContent, "truncated")
	assert.Equal(t, true, result.Metadata["truncated"])
}

func TestReadFile_Missing(t *testing.T) {
	f := newFixture(t)

	result := f.run(t, "read_file", map[string]interface{}{"path": "ghost.txt"})

	assert.False(t, result.Success)
	assert.Equal(t, "filesystem", result.Metadata["kind"])
}

func TestReadFile_TraversalDenied(t *testing.T) {
	f := newFixture(t)

	result := f.run(t, "read_file", map[string]interface{}{"path": "../../etc/passwd"})

	assert.False(t, result.Success)
	assert.Equal(t, "security", result.Metadata["kind"])
}

func TestWriteFile_NewFileAutoApproved(t *testing.T) {
	f := newFixture(t)
	f.handler.Response = toolexec.ConfirmationResponse{Outcome: toolexec.OutcomeDenied}

	result := f.run(t, "write_file", map[string]interface{}{"path": "out.txt", "content": "hello"})

	require.True(t, result.Success, result.Error)
	assert.Empty(t, f.handler.Requests, "creating a new file must not prompt")

	data, err := os.ReadFile(filepath.Join(f.root, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestWriteFile_NestedDirectoriesCreated(t *testing.T) {
	f := newFixture(t)

	result := f.run(t, "write_file", map[string]interface{}{"path": "a/b/c.txt", "content": "deep"})

	require.True(t, result.Success, result.Error)
	data, err := os.ReadFile(filepath.Join(f.root, "a", "b", "c.txt"))
	require.NoError(t, err)
	assert.Equal(t, "deep", string(data))
}

func TestWriteFile_OverwriteRequiresConfirmation(t *testing.T) {
	f := newFixture(t)
	target := filepath.Join(f.root, "config.json")
	require.NoError(t, os.WriteFile(target, []byte(`{"keep":true}`), 0o644))

	f.handler.Response = toolexec.ConfirmationResponse{Outcome: toolexec.OutcomeDenied, Reason: "not today"}
	result := f.run(t, "write_file", map[string]interface{}{"path": "config.json", "content": "clobbered"})

	assert.False(t, result.Success)
	assert.Empty(t, result.Error)
	assert.Contains(t, result.LLMContent, "denied")
	require.Len(t, f.handler.Requests, 1)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, `{"keep":true}`, string(data), "denied write must leave the file untouched")
}

func TestWriteFile_OverwriteApproved(t *testing.T) {
	f := newFixture(t)
	target := filepath.Join(f.root, "config.json")
	require.NoError(t, os.WriteFile(target, []byte("old"), 0o644))

	result := f.run(t, "write_file", map[string]interface{}{"path": "config.json", "content": "new"})

	require.True(t, result.Success, result.Error)
	require.Len(t, f.handler.Requests, 1)
	assert.True(t, f.handler.Requests[0].Destructive)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestListDirectory(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "b.txt"), []byte("bb"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(f.root, "sub"), 0o755))

	result := f.run(t, "list_directory", map[string]interface{}{})

	require.True(t, result.Success, result.Error)
	assert.Equal(t, "a.txt (1 bytes)\nb.txt (2 bytes)\nsub/", result.LLMContent)
	assert.Equal(t, 3, result.Metadata["entries"])
}

func TestListDirectory_Empty(t *testing.T) {
	f := newFixture(t)

	result := f.run(t, "list_directory", map[string]interface{}{})

	require.True(t, result.Success, result.Error)
	assert.Equal(t, "(empty directory)", result.LLMContent)
}

func TestDeleteFile_ConfirmationGated(t *testing.T) {
	f := newFixture(t)
	target := filepath.Join(f.root, "old.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	f.handler.Response = toolexec.ConfirmationResponse{Outcome: toolexec.OutcomeDenied}
	result := f.run(t, "delete_file", map[string]interface{}{"path": "old.txt"})

	assert.False(t, result.Success)
	assert.FileExists(t, target)

	f.handler.Response = toolexec.ConfirmationResponse{Outcome: toolexec.OutcomeApproved}
	result = f.run(t, "delete_file", map[string]interface{}{"path": "old.txt"})

	require.True(t, result.Success, result.Error)
	assert.NoFileExists(t, target)
}

func TestDeleteFile_MissingIsAutoApprovedButFails(t *testing.T) {
	f := newFixture(t)
	f.handler.Response = toolexec.ConfirmationResponse{Outcome: toolexec.OutcomeDenied}

	result := f.run(t, "delete_file", map[string]interface{}{"path": "ghost.txt"})

	assert.False(t, result.Success)
	assert.Empty(t, f.handler.Requests, "deleting a nonexistent file affects no existing state")
	assert.Equal(t, "filesystem", result.Metadata["kind"])
}

func TestAtomicWriteFile_ReplacesContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")

	require.NoError(t, atomicWriteFile(path, []byte("one"), 0o644))
	require.NoError(t, atomicWriteFile(path, []byte("two"), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}
