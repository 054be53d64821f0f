package toolexec

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fariz/warden/pkg/errkit"
	"github.com/fariz/warden/pkg/ratelimit"
	"github.com/fariz/warden/pkg/security"
)

// MetricsSink receives pipeline observations. Implemented by
// internal/metrics; a nil sink disables metrics.
type MetricsSink interface {
	ObserveExecution(tool, status string, duration time.Duration)
	SecurityDenial(reason string)
	RateLimited(tool string)
	ConfirmationOutcome(outcome string)
	RetryAttempt(tool string)
}

// AuditEvent is a pipeline decision worth persisting
type AuditEvent struct {
	CorrelationID string
	Actor         string
	Action        string
	Status        string
	Reason        string
	Path          string
}

// AuditSink persists audit events. Implemented by internal/audit; a nil
// sink disables persistence.
type AuditSink interface {
	Record(ctx context.Context, event AuditEvent)
}

// Executor drives invocations through the pipeline in strict order:
// security check, rate admission, confirmation, execution. Earlier stages
// are read-only; only the execution stage touches the filesystem.
type Executor struct {
	registry  *Registry
	validator *security.Validator
	limiter   *ratelimit.Limiter
	confirm   *ConfirmationManager
	retrier   *errkit.Retrier

	metrics MetricsSink
	audit   AuditSink

	defaultTimeout time.Duration
}

// ExecutorOption configures an Executor
type ExecutorOption func(*Executor)

// WithMetrics attaches a metrics sink
func WithMetrics(sink MetricsSink) ExecutorOption {
	return func(e *Executor) { e.metrics = sink }
}

// WithAudit attaches an audit sink
func WithAudit(sink AuditSink) ExecutorOption {
	return func(e *Executor) { e.audit = sink }
}

// WithRetrier overrides the retry executor used for the execution stage
func WithRetrier(r *errkit.Retrier) ExecutorOption {
	return func(e *Executor) { e.retrier = r }
}

// WithDefaultTimeout sets the execution timeout applied when the caller's
// execution context does not specify one
func WithDefaultTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.defaultTimeout = d }
}

// NewExecutor wires the pipeline. All collaborators are explicit instances
// passed by the owner; there is no package-level state.
func NewExecutor(registry *Registry, validator *security.Validator, limiter *ratelimit.Limiter, confirm *ConfirmationManager, opts ...ExecutorOption) *Executor {
	e := &Executor{
		registry:       registry,
		validator:      validator,
		limiter:        limiter,
		confirm:        confirm,
		retrier:        errkit.NewRetrier(errkit.DefaultRetryConfig()),
		defaultTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the executor's tool registry
func (e *Executor) Registry() *Registry {
	return e.registry
}

// RunAll processes the tool calls of one model turn sequentially, in the
// order received: later calls may depend on the side effects of earlier
// ones, and history must reflect a deterministic order.
func (e *Executor) RunAll(ctx context.Context, calls []ToolCall, ec *ExecutionContext) []ToolResult {
	results := make([]ToolResult, 0, len(calls))
	for _, call := range calls {
		inv, err := e.registry.CreateInvocation(call)
		if err != nil {
			results = append(results, e.failedResult(call.ID, call.Name, err, 0))
			continue
		}
		results = append(results, e.Run(ctx, inv, ec))
	}
	return results
}

// Run drives one invocation through the pipeline, short-circuiting on the
// first failing stage
func (e *Executor) Run(ctx context.Context, inv *Invocation, ec *ExecutionContext) ToolResult {
	start := time.Now()

	if inv.State() != StateValidated {
		err := errkit.Newf(errkit.KindInternal, "invocation in unexpected state: %s", inv.State())
		return e.failAndRecord(ctx, inv, err, start)
	}
	if err := ctx.Err(); err != nil {
		return e.failAndRecord(ctx, inv, errkit.Wrap(errkit.KindInternal, err, "cancelled before security check"), start)
	}

	if err := e.securityStage(ctx, inv); err != nil {
		return e.failAndRecord(ctx, inv, err, start)
	}

	if err := e.rateStage(inv, ec); err != nil {
		return e.failAndRecord(ctx, inv, err, start)
	}

	aborted, result := e.confirmStage(ctx, inv, start)
	if aborted {
		return result
	}
	if err := ctx.Err(); err != nil {
		return e.failAndRecord(ctx, inv, errkit.Wrap(errkit.KindInternal, err, "cancelled before execution"), start)
	}

	return e.executeStage(ctx, inv, ec, start)
}

// securityStage authorizes every filesystem location the invocation
// declares, recording canonical paths for later stages
func (e *Executor) securityStage(ctx context.Context, inv *Invocation) error {
	def := inv.Definition()

	for _, loc := range inv.DeclaredLocations() {
		result := e.validator.Validate(loc.Op, loc.Path, loc.Size)
		if !result.Allowed {
			if e.metrics != nil {
				e.metrics.SecurityDenial(result.Denial)
			}
			err := errkit.Newf(errkit.KindSecurity, "%s: %s", loc.Path, result.Reason).
				WithContext("denial", result.Denial).
				WithContext("tool", def.Name)
			e.recordAudit(ctx, AuditEvent{
				CorrelationID: err.CorrelationID,
				Action:        "security_check:" + def.Name,
				Status:        "denied",
				Reason:        result.Denial,
				Path:          loc.Path,
			})
			return err
		}

		exists := false
		if info, statErr := os.Stat(result.CanonicalPath); statErr == nil && !info.IsDir() {
			exists = true
		}
		inv.locations = append(inv.locations, ResolvedLocation{
			FileLocation:  loc,
			CanonicalPath: result.CanonicalPath,
			Exists:        exists,
		})
	}

	return inv.transition(StateSecurityChecked)
}

// rateStage admits the call under the configured ceiling, keyed by caller
// identity when provided and tool name otherwise
func (e *Executor) rateStage(inv *Invocation, ec *ExecutionContext) error {
	key := inv.Definition().Name
	if ec != nil && ec.Actor != "" {
		key = ec.Actor + ":" + key
	}

	if err := e.limiter.Consume(key); err != nil {
		if e.metrics != nil {
			e.metrics.RateLimited(inv.Definition().Name)
		}
		return err
	}
	return inv.transition(StateRateAdmitted)
}

// confirmStage resolves the approval gate. Denied and cancelled outcomes
// abort the pipeline without side effects and without an error.
func (e *Executor) confirmStage(ctx context.Context, inv *Invocation, start time.Time) (bool, ToolResult) {
	response, auto := e.confirm.Decide(ctx, inv)

	if e.metrics != nil {
		e.metrics.ConfirmationOutcome(string(response.Outcome))
	}

	if response.Outcome == OutcomeApproved {
		next := StateAutoApproved
		if !auto {
			_ = inv.transition(StatePendingConfirm)
			next = StateApproved
		}
		if err := inv.transition(next); err != nil {
			return true, e.failAndRecord(ctx, inv, err, start)
		}
		return false, ToolResult{}
	}

	if !auto {
		_ = inv.transition(StatePendingConfirm)
	}
	_ = inv.transition(StateAborted)

	def := inv.Definition()
	reason := response.Reason
	if reason == "" {
		reason = string(response.Outcome) + " by user"
	}

	e.recordAudit(ctx, AuditEvent{
		Action: "confirmation:" + def.Name,
		Status: string(response.Outcome),
		Reason: reason,
	})

	message := fmt.Sprintf("Tool call %s was %s: %s", def.Name, response.Outcome, reason)
	return true, ToolResult{
		CallID:        inv.Call.ID,
		ToolName:      def.Name,
		Success:       false,
		LLMContent:    message,
		ReturnDisplay: message,
		Metadata: map[string]interface{}{
			"outcome": string(response.Outcome),
		},
		Duration: time.Since(start),
	}
}

// executeStage runs the tool handler under a timeout, retrying transient
// failures with bounded backoff
func (e *Executor) executeStage(ctx context.Context, inv *Invocation, ec *ExecutionContext, start time.Time) ToolResult {
	def := inv.Definition()

	if err := inv.transition(StateExecuting); err != nil {
		return e.failAndRecord(ctx, inv, err, start)
	}

	timeout := e.defaultTimeout
	if ec != nil && ec.Timeout > 0 {
		timeout = ec.Timeout
	}

	runCtx := &ExecutionContext{Timeout: timeout, Locations: inv.ResolvedLocations()}
	if ec != nil {
		runCtx.Actor = ec.Actor
	}

	timeoutCtx, cancel := context.WithTimeout(WithExecutionContext(ctx, runCtx), timeout)
	defer cancel()

	var output *Output
	done := make(chan error, 1)
	go func() {
		done <- e.retrier.Do(timeoutCtx, func(ctx context.Context) error {
			out, err := def.Handler(ctx, inv.Params())
			if err == nil {
				output = out
			} else if e.metrics != nil && errkit.IsRetryable(err) {
				e.metrics.RetryAttempt(def.Name)
			}
			return err
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			return e.failAndRecord(ctx, inv, errkit.Wrap(errkit.KindInternal, err, "tool execution failed"), start)
		}
	case <-timeoutCtx.Done():
		err := errkit.Newf(errkit.KindInternal, "tool execution timeout after %v", timeout).
			WithContext("tool", def.Name)
		return e.failAndRecord(ctx, inv, err, start)
	}

	if err := inv.transition(StateCompleted); err != nil {
		return e.failAndRecord(ctx, inv, err, start)
	}

	duration := time.Since(start)
	if e.metrics != nil {
		e.metrics.ObserveExecution(def.Name, "success", duration)
	}
	e.recordAudit(ctx, AuditEvent{
		Action: "execute:" + def.Name,
		Status: "success",
	})

	log.Debug().
		Str("tool", def.Name).
		Str("invocation", inv.ID).
		Dur("duration", duration).
		Msg("Tool execution completed")

	result := ToolResult{
		CallID:        inv.Call.ID,
		ToolName:      def.Name,
		Success:       true,
		Duration:      duration,
		Metadata:      map[string]interface{}{"state": string(inv.State())},
	}
	if output != nil {
		result.LLMContent = output.LLMContent
		result.ReturnDisplay = output.ReturnDisplay
		for k, v := range output.Metadata {
			result.Metadata[k] = v
		}
	}
	return result
}

// failAndRecord marks the invocation failed and builds a caller-safe result
func (e *Executor) failAndRecord(ctx context.Context, inv *Invocation, err error, start time.Time) ToolResult {
	if inv.State() != StateFailed && inv.State() != StateAborted {
		_ = inv.transition(StateFailed)
	}

	def := inv.Definition()
	duration := time.Since(start)

	if e.metrics != nil {
		e.metrics.ObserveExecution(def.Name, "failure", duration)
	}

	classified := errkit.As(err)
	if classified == nil {
		classified = errkit.Wrap(errkit.KindInternal, err, "tool execution failed")
	}

	e.recordAudit(ctx, AuditEvent{
		CorrelationID: classified.CorrelationID,
		Action:        "execute:" + def.Name,
		Status:        "failure",
		Reason:        string(classified.Kind),
	})

	log.Warn().
		Str("tool", def.Name).
		Str("invocation", inv.ID).
		Str("kind", string(classified.Kind)).
		Str("correlation_id", classified.CorrelationID).
		Msg("Tool invocation failed")

	return e.failedResult(inv.Call.ID, def.Name, classified, duration)
}

// failedResult maps a classified error to a result that is safe to show the
// caller: no raw paths beyond what the caller supplied, no stack traces
func (e *Executor) failedResult(callID, toolName string, err error, duration time.Duration) ToolResult {
	classified := errkit.As(err)
	if classified == nil {
		classified = errkit.Wrap(errkit.KindInternal, err, "tool call failed")
	}

	message := classified.Message
	if classified.Kind == errkit.KindInternal {
		message = "an internal error occurred"
	}

	metadata := map[string]interface{}{
		"kind":           string(classified.Kind),
		"correlation_id": classified.CorrelationID,
	}
	if classified.Kind == errkit.KindRateLimit && classified.RetryAfter > 0 {
		metadata["retry_after_seconds"] = int64((classified.RetryAfter + time.Second - 1) / time.Second)
	}
	if known, ok := classified.Context["known_tools"]; ok {
		metadata["known_tools"] = known
	}

	return ToolResult{
		CallID:        callID,
		ToolName:      toolName,
		Success:       false,
		Error:         message,
		LLMContent:    fmt.Sprintf("Error (%s): %s", classified.Kind, message),
		ReturnDisplay: fmt.Sprintf("Error: %s", message),
		Metadata:      metadata,
		Duration:      duration,
	}
}

func (e *Executor) recordAudit(ctx context.Context, event AuditEvent) {
	if e.audit == nil {
		return
	}
	e.audit.Record(ctx, event)
}
