package toolexec

import (
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/fariz/warden/pkg/errkit"
)

// State is an invocation's position in its lifecycle
type State string

const (
	StateCreated         State = "created"
	StateValidated       State = "validated"
	StateSecurityChecked State = "security_checked"
	StateRateAdmitted    State = "rate_admitted"
	StateAutoApproved    State = "auto_approved"
	StatePendingConfirm  State = "pending_confirmation"
	StateApproved        State = "approved"
	StateExecuting       State = "executing"
	StateCompleted       State = "completed"
	StateFailed          State = "failed"
	StateAborted         State = "aborted"
)

// transitions maps each state to the states reachable from it.
// Completed, Failed, and Aborted are terminal.
var transitions = map[State][]State{
	StateCreated:         {StateValidated, StateFailed},
	StateValidated:       {StateSecurityChecked, StateFailed},
	StateSecurityChecked: {StateRateAdmitted, StateFailed},
	StateRateAdmitted:    {StateAutoApproved, StatePendingConfirm, StateFailed},
	StateAutoApproved:    {StateExecuting, StateFailed},
	StatePendingConfirm:  {StateApproved, StateAborted, StateFailed},
	StateApproved:        {StateExecuting, StateFailed},
	StateExecuting:       {StateCompleted, StateFailed},
}

// Invocation is a tool call whose parameters passed schema validation, bound
// to its definition. Owned exclusively by the executor for the duration of
// one call.
type Invocation struct {
	ID        string
	Call      ToolCall
	def       *ToolDefinition
	params    map[string]interface{}
	state     State
	locations []ResolvedLocation
}

func newInvocation(call ToolCall, def *ToolDefinition, params map[string]interface{}) *Invocation {
	id := call.ID
	if id == "" {
		id, _ = gonanoid.New()
	}
	return &Invocation{
		ID:     id,
		Call:   call,
		def:    def,
		params: params,
		state:  StateValidated,
	}
}

// Definition returns the tool definition this invocation is bound to
func (inv *Invocation) Definition() *ToolDefinition {
	return inv.def
}

// Params returns the schema-validated parameters
func (inv *Invocation) Params() map[string]interface{} {
	return inv.params
}

// State returns the current lifecycle state
func (inv *Invocation) State() State {
	return inv.state
}

// ResolvedLocations returns the canonical locations produced by the
// security stage; empty before that stage has run
func (inv *Invocation) ResolvedLocations() []ResolvedLocation {
	return inv.locations
}

// DeclaredLocations lists the filesystem locations the invocation will
// touch, derived from its parameters
func (inv *Invocation) DeclaredLocations() []FileLocation {
	if inv.def.Locations == nil {
		return nil
	}
	return inv.def.Locations(inv.params)
}

// Description renders the invocation for humans (confirmation prompts, logs)
func (inv *Invocation) Description() string {
	if inv.def.Describe != nil {
		return inv.def.Describe(inv.params)
	}
	return describeDefault(inv.def.Name, inv.params)
}

// transition moves the invocation to the next state, rejecting anything the
// lifecycle does not permit
func (inv *Invocation) transition(to State) error {
	for _, allowed := range transitions[inv.state] {
		if allowed == to {
			inv.state = to
			return nil
		}
	}
	return errkit.Newf(errkit.KindInternal, "invalid invocation transition %s -> %s", inv.state, to).
		WithContext("invocation", inv.ID)
}
