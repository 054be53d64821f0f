package security

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Denial codes returned when a request is refused
const (
	DenialMaliciousPattern  = "malicious_pattern"
	DenialPathTraversal     = "path_traversal"
	DenialBlockedPath       = "blocked_path"
	DenialInvalidExtension  = "invalid_extension"
	DenialSizeLimitExceeded = "size_limit_exceeded"
)

// Result is the outcome of a security check. Reason is safe for caller
// display: it never contains paths the caller did not supply.
type Result struct {
	Allowed       bool   `json:"allowed"`
	CanonicalPath string `json:"canonical_path,omitempty"`
	Denial        string `json:"denial,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// Validator authorizes filesystem operations against a policy and records
// every decision in a bounded access log.
type Validator struct {
	policy    *Policy
	accessLog *AccessLog
}

// NewValidator creates a validator with the default access-log capacity
func NewValidator(policy *Policy) *Validator {
	return &Validator{
		policy:    policy,
		accessLog: NewAccessLog(DefaultAccessLogCapacity),
	}
}

// AccessLog returns the validator's access log
func (v *Validator) AccessLog() *AccessLog {
	return v.accessLog
}

// Policy returns the active security policy
func (v *Validator) Policy() *Policy {
	return v.policy
}

// Validate decides whether an operation on the requested path is permitted.
// size is the payload length for writes and is ignored for other operations.
// Checks run in a fixed order and the first failure wins.
func (v *Validator) Validate(op Operation, requested string, size int64) Result {
	result := v.check(op, requested, size)
	v.accessLog.Record(op, requested, result)

	if !result.Allowed {
		log.Warn().
			Str("op", string(op)).
			Str("requested", requested).
			Str("denial", result.Denial).
			Msg("Filesystem access denied")
	}
	return result
}

func (v *Validator) check(op Operation, requested string, size int64) Result {
	if requested == "" {
		return deny(DenialMaliciousPattern, "path is empty")
	}
	if hasMaliciousPattern(requested) {
		return deny(DenialMaliciousPattern, "path contains disallowed characters")
	}

	canonical, err := v.canonicalize(requested)
	if err != nil {
		// Resolution failures are treated as traversal attempts rather than
		// leaking filesystem details back to the caller.
		return deny(DenialPathTraversal, "path could not be resolved inside the allowed root")
	}

	root := v.policy.canonicalRoot
	if canonical != root && !strings.HasPrefix(canonical, root+string(filepath.Separator)) {
		return deny(DenialPathTraversal, "path is outside allowed root")
	}

	rel, err := filepath.Rel(root, canonical)
	if err != nil {
		return deny(DenialPathTraversal, "path is outside allowed root")
	}
	rel = filepath.ToSlash(rel)

	for _, blocked := range v.policy.BlockedPaths {
		blocked = strings.Trim(filepath.ToSlash(blocked), "/")
		if blocked == "" {
			continue
		}
		if rel == blocked || strings.HasPrefix(rel, blocked+"/") {
			return deny(DenialBlockedPath, "path is blocked by policy")
		}
	}

	if op != OpList && rel != "." && !v.policy.extensionAllowed(canonical) {
		return deny(DenialInvalidExtension, "file extension is not allowed")
	}

	switch op {
	case OpRead, OpStat:
		if info, err := os.Stat(canonical); err == nil && !info.IsDir() {
			if info.Size() > v.policy.MaxFileSize {
				return deny(DenialSizeLimitExceeded, "file exceeds maximum allowed size")
			}
		}
	case OpWrite:
		if size > v.policy.MaxRequestSize {
			return deny(DenialSizeLimitExceeded, "content exceeds maximum request size")
		}
	}

	return Result{Allowed: true, CanonicalPath: canonical}
}

// canonicalize resolves the symlink-free absolute form of a requested path.
// Relative paths are anchored at the canonical root. For targets that do not
// exist yet (the write case) the nearest existing ancestor is resolved and
// the remaining components are reattached.
func (v *Validator) canonicalize(requested string) (string, error) {
	path := filepath.Clean(requested)
	if !filepath.IsAbs(path) {
		path = filepath.Join(v.policy.canonicalRoot, path)
	}

	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}

	// Walk up to the nearest existing ancestor, then reattach the suffix.
	var suffix []string
	current := path
	for {
		parent := filepath.Dir(current)
		suffix = append([]string{filepath.Base(current)}, suffix...)
		resolved, err = filepath.EvalSymlinks(parent)
		if err == nil {
			return filepath.Join(append([]string{resolved}, suffix...)...), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		if parent == current {
			return "", err
		}
		current = parent
	}
}

// hasMaliciousPattern reports whether a path contains null bytes or control
// characters that have no business in a filename
func hasMaliciousPattern(path string) bool {
	for _, r := range path {
		if r == 0 || r < 0x20 || r == 0x7f {
			return true
		}
	}
	return false
}

func deny(denial, reason string) Result {
	return Result{Allowed: false, Denial: denial, Reason: reason}
}
