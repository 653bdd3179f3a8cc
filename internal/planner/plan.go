package planner

import (
	"time"

	"github.com/google/uuid"

	"github.com/calder/pennyworth/internal/tools"
)

// StepStatus tracks a step through its lifecycle. Failure is terminal;
// steps are never rolled back.
type StepStatus string

const (
	StepPending          StepStatus = "pending"
	StepInProgress       StepStatus = "in_progress"
	StepAwaitingApproval StepStatus = "awaiting_approval"
	StepCompleted        StepStatus = "completed"
	StepFailed           StepStatus = "failed"
	StepSkipped          StepStatus = "skipped"
)

// Step is a single capability invocation within a plan. Only the
// executor mutates it.
type Step struct {
	ID          uuid.UUID
	Order       int
	Capability  string
	Action      string
	Parameters  map[string]any
	Description string
	DependsOn   []uuid.UUID
	Status      StepStatus
	Approval    tools.ApprovalLevel
	Result      any
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
}

func newStep(order int, capability, action string, params map[string]any, description string) *Step {
	if params == nil {
		params = map[string]any{}
	}
	return &Step{
		ID:          uuid.New(),
		Order:       order,
		Capability:  capability,
		Action:      action,
		Parameters:  params,
		Description: description,
		Status:      StepPending,
	}
}

// Plan is an ordered, linear sequence of steps derived from an intent.
// Zero steps is a valid plan (pure conversational turn).
type Plan struct {
	ID          uuid.UUID
	Intent      Intent
	Steps       []*Step
	Description string
	Status      StepStatus
	CreatedAt   time.Time
	UserMessage string
}

func newPlan(intent Intent, description string, steps []*Step) *Plan {
	return &Plan{
		ID:          uuid.New(),
		Intent:      intent,
		Steps:       steps,
		Description: description,
		Status:      StepPending,
		CreatedAt:   time.Now(),
		UserMessage: intent.RawMessage,
	}
}

// StepByID finds a step, or nil.
func (p *Plan) StepByID(id uuid.UUID) *Step {
	for _, s := range p.Steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// Remaining returns the pending steps in order.
func (p *Plan) Remaining() []*Step {
	var out []*Step
	for _, s := range p.Steps {
		if s.Status == StepPending {
			out = append(out, s)
		}
	}
	return out
}

// Complete reports whether every step finished or was skipped.
func (p *Plan) Complete() bool {
	for _, s := range p.Steps {
		if s.Status != StepCompleted && s.Status != StepSkipped {
			return false
		}
	}
	return true
}

// Failed reports whether any step failed.
func (p *Plan) Failed() bool {
	for _, s := range p.Steps {
		if s.Status == StepFailed {
			return true
		}
	}
	return false
}

// Terminal reports whether the plan can no longer advance.
func (p *Plan) Terminal() bool {
	return p.Failed() || p.Complete()
}

// chainSteps gives every step without explicit dependencies a link to
// its predecessor, keeping plans a linear chain with no fan-out.
func chainSteps(steps []*Step) {
	for i, s := range steps {
		if i > 0 && len(s.DependsOn) == 0 {
			s.DependsOn = []uuid.UUID{steps[i-1].ID}
		}
	}
}
