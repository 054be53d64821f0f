package toolexec

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fariz/warden/pkg/errkit"
	"github.com/fariz/warden/pkg/security"
)

// Outcome is the explicit result of a confirmation request. Deny and cancel
// are ordinary values matched by the pipeline, never control-flow errors.
type Outcome string

const (
	OutcomeApproved  Outcome = "approved"
	OutcomeDenied    Outcome = "denied"
	OutcomeCancelled Outcome = "cancelled"
)

// ConfirmationRequest describes a destructive action awaiting approval
type ConfirmationRequest struct {
	ToolName    string   `json:"tool_name"`
	Description string   `json:"description"`
	Destructive bool     `json:"destructive"`
	Locations   []string `json:"locations"`
}

// ConfirmationResponse carries the human's decision
type ConfirmationResponse struct {
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"`
}

// ConfirmationHandler is the injected UI/CLI collaborator that presents a
// request and returns the decision
type ConfirmationHandler interface {
	RequestConfirmation(ctx context.Context, req ConfirmationRequest) (ConfirmationResponse, error)
}

// ConfirmationManager gates destructive invocations behind explicit
// approval. Read-only tools, and destructive tools that would not overwrite
// any pre-existing state, are auto-approved.
type ConfirmationManager struct {
	handler ConfirmationHandler
	timeout time.Duration
}

// DefaultConfirmationTimeout bounds how long a confirmation may stay pending
const DefaultConfirmationTimeout = 60 * time.Second

// NewConfirmationManager creates a confirmation manager. A nil handler
// denies every request that needs human approval.
func NewConfirmationManager(handler ConfirmationHandler, timeout time.Duration) *ConfirmationManager {
	if timeout <= 0 {
		timeout = DefaultConfirmationTimeout
	}
	return &ConfirmationManager{handler: handler, timeout: timeout}
}

// Decide returns the confirmation outcome for an invocation whose security
// stage has already resolved its locations. The bool reports whether the
// decision was automatic.
func (cm *ConfirmationManager) Decide(ctx context.Context, inv *Invocation) (ConfirmationResponse, bool) {
	if !inv.Definition().Destructive {
		return ConfirmationResponse{Outcome: OutcomeApproved, Reason: "read-only tool"}, true
	}

	if !touchesExistingState(inv.ResolvedLocations()) {
		return ConfirmationResponse{Outcome: OutcomeApproved, Reason: "no existing state affected"}, true
	}

	if cm.handler == nil {
		log.Warn().Str("tool", inv.Definition().Name).Msg("Destructive invocation with no confirmation handler")
		return ConfirmationResponse{Outcome: OutcomeDenied, Reason: "no confirmation handler configured"}, true
	}

	req := ConfirmationRequest{
		ToolName:    inv.Definition().Name,
		Description: inv.Description(),
		Destructive: true,
		Locations:   canonicalPaths(inv.ResolvedLocations()),
	}

	return cm.request(ctx, req), false
}

// request asks the handler for a decision, bounded by the manager's timeout.
// Timeout and cancellation map to the Cancelled outcome.
func (cm *ConfirmationManager) request(ctx context.Context, req ConfirmationRequest) ConfirmationResponse {
	timeoutCtx, cancel := context.WithTimeout(ctx, cm.timeout)
	defer cancel()

	log.Info().
		Str("tool", req.ToolName).
		Strs("locations", req.Locations).
		Msg("Requesting confirmation")

	responseChan := make(chan ConfirmationResponse, 1)
	errChan := make(chan error, 1)

	go func() {
		response, err := cm.handler.RequestConfirmation(timeoutCtx, req)
		if err != nil {
			errChan <- err
		} else {
			responseChan <- response
		}
	}()

	select {
	case response := <-responseChan:
		switch response.Outcome {
		case OutcomeApproved, OutcomeDenied, OutcomeCancelled:
			log.Info().
				Str("tool", req.ToolName).
				Str("outcome", string(response.Outcome)).
				Str("reason", response.Reason).
				Msg("Confirmation resolved")
			return response
		default:
			// A malformed outcome from the handler never approves anything.
			return ConfirmationResponse{Outcome: OutcomeDenied, Reason: "invalid confirmation outcome"}
		}

	case err := <-errChan:
		wrapped := errkit.Wrap(errkit.KindInternal, err, "confirmation handler failed")
		return ConfirmationResponse{Outcome: OutcomeDenied, Reason: wrapped.Message}

	case <-timeoutCtx.Done():
		log.Warn().
			Str("tool", req.ToolName).
			Dur("timeout", cm.timeout).
			Msg("Confirmation timed out")
		return ConfirmationResponse{Outcome: OutcomeCancelled, Reason: "confirmation timed out"}
	}
}

// touchesExistingState reports whether any destructive location already
// exists on disk
func touchesExistingState(locations []ResolvedLocation) bool {
	for _, loc := range locations {
		if loc.Op != security.OpWrite && loc.Op != security.OpDelete {
			continue
		}
		if loc.Exists {
			return true
		}
	}
	return false
}

func canonicalPaths(locations []ResolvedLocation) []string {
	paths := make([]string, 0, len(locations))
	for _, loc := range locations {
		paths = append(paths, loc.CanonicalPath)
	}
	return paths
}

// StaticConfirmationHandler answers every request with a fixed response.
// Useful for tests and non-interactive runs.
type StaticConfirmationHandler struct {
	Response ConfirmationResponse
	Delay    time.Duration
	Err      error

	Requests []ConfirmationRequest
}

// RequestConfirmation implements ConfirmationHandler
func (h *StaticConfirmationHandler) RequestConfirmation(ctx context.Context, req ConfirmationRequest) (ConfirmationResponse, error) {
	h.Requests = append(h.Requests, req)

	if h.Delay > 0 {
		select {
		case <-time.After(h.Delay):
		case <-ctx.Done():
			return ConfirmationResponse{}, ctx.Err()
		}
	}
	if h.Err != nil {
		return ConfirmationResponse{}, h.Err
	}
	return h.Response, nil
}
