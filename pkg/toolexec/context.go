package toolexec

import (
	"context"
	"time"
)

// ExecutionContext carries runtime information for one invocation through
// the pipeline into tool handlers
type ExecutionContext struct {
	// Actor identifies the caller for rate limiting and audit; defaults to
	// the tool name when empty
	Actor string
	// Timeout bounds the execution stage
	Timeout time.Duration
	// Locations are the canonical paths resolved by the security stage.
	// Handlers must use these instead of re-resolving paths themselves.
	Locations []ResolvedLocation
}

// CanonicalFor returns the canonical path resolved for a requested path
func (ec *ExecutionContext) CanonicalFor(requested string) (ResolvedLocation, bool) {
	for _, loc := range ec.Locations {
		if loc.Path == requested {
			return loc, true
		}
	}
	return ResolvedLocation{}, false
}

type execContextKey struct{}

// WithExecutionContext attaches an execution context to a context.Context
func WithExecutionContext(ctx context.Context, ec *ExecutionContext) context.Context {
	return context.WithValue(ctx, execContextKey{}, ec)
}

// ExecContextFromContext extracts the execution context, or nil
func ExecContextFromContext(ctx context.Context) *ExecutionContext {
	ec, _ := ctx.Value(execContextKey{}).(*ExecutionContext)
	return ec
}
