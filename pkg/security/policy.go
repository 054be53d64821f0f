// Package security decides whether filesystem operations requested by tool
// invocations are permitted under a static workspace policy. Paths are
// canonicalized (symlink-resolved) before any decision is made.
package security

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/fariz/warden/pkg/errkit"
)

// Operation is the kind of filesystem access being requested
type Operation string

const (
	OpRead   Operation = "read"
	OpWrite  Operation = "write"
	OpDelete Operation = "delete"
	OpList   Operation = "list"
	OpStat   Operation = "stat"
)

// Policy is the static security policy. Loaded once at startup and read-only
// for the process lifetime.
type Policy struct {
	RootDirectory     string   `json:"root_directory" mapstructure:"root_directory"`
	AllowedExtensions []string `json:"allowed_extensions" mapstructure:"allowed_extensions"`
	BlockedPaths      []string `json:"blocked_paths" mapstructure:"blocked_paths"`
	MaxFileSize       int64    `json:"max_file_size" mapstructure:"max_file_size"`
	MaxRequestSize    int64    `json:"max_request_size" mapstructure:"max_request_size"`

	canonicalRoot string
	extensions    map[string]bool
}

const (
	// DefaultMaxFileSize caps files read back to the model (10MB)
	DefaultMaxFileSize = 10 * 1024 * 1024
	// DefaultMaxRequestSize caps write payloads (1MB)
	DefaultMaxRequestSize = 1024 * 1024
)

// NewPolicy resolves the canonical root and prepares lookup structures.
// A root that does not exist or cannot be resolved is a configuration error.
func NewPolicy(p Policy) (*Policy, error) {
	if p.RootDirectory == "" {
		return nil, errkit.New(errkit.KindConfiguration, "root directory is required")
	}

	abs, err := filepath.Abs(p.RootDirectory)
	if err != nil {
		return nil, errkit.Wrap(errkit.KindConfiguration, err, "failed to resolve root directory")
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, errkit.Wrap(errkit.KindConfiguration, err, "failed to canonicalize root directory")
	}

	info, err := os.Stat(canonical)
	if err != nil {
		return nil, errkit.Wrap(errkit.KindConfiguration, err, "failed to stat root directory")
	}
	if !info.IsDir() {
		return nil, errkit.Newf(errkit.KindConfiguration, "root is not a directory: %s", p.RootDirectory)
	}

	if p.MaxFileSize <= 0 {
		p.MaxFileSize = DefaultMaxFileSize
	}
	if p.MaxRequestSize <= 0 {
		p.MaxRequestSize = DefaultMaxRequestSize
	}

	p.canonicalRoot = canonical
	p.extensions = make(map[string]bool, len(p.AllowedExtensions))
	for _, ext := range p.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		p.extensions[ext] = true
	}

	return &p, nil
}

// CanonicalRoot returns the symlink-resolved absolute root directory
func (p *Policy) CanonicalRoot() string {
	return p.canonicalRoot
}

// extensionAllowed reports whether a file extension passes the allowlist.
// An empty allowlist allows everything.
func (p *Policy) extensionAllowed(path string) bool {
	if len(p.extensions) == 0 {
		return true
	}
	return p.extensions[strings.ToLower(filepath.Ext(path))]
}
