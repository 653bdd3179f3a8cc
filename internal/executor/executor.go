package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/calder/pennyworth/internal/approval"
	"github.com/calder/pennyworth/internal/audit"
	"github.com/calder/pennyworth/internal/planner"
	"github.com/calder/pennyworth/internal/tools"
)

// ExecutionResult is the outcome of running a step or a whole plan.
// RequiresApproval means nothing was invoked and the turn must pause.
type ExecutionResult struct {
	Success          bool
	Data             any
	Error            string
	Summary          string
	Response         string
	RequiresApproval bool
	Approval         *approval.PendingApproval
	Options          []tools.Option
}

// Executor runs plan steps against registered capability providers,
// pausing on approval tiers and recording every invocation.
type Executor struct {
	Registry  *tools.Registry
	Approvals *approval.Manager
	Audit     audit.Recorder
	Log       *zap.Logger
}

func NewExecutor(registry *tools.Registry, approvals *approval.Manager, rec audit.Recorder, log *zap.Logger) *Executor {
	return &Executor{Registry: registry, Approvals: approvals, Audit: rec, Log: log}
}

// ExecuteStep runs one step. Steps whose resolved approval tier needs
// confirmation are parked behind a pending approval without invoking
// the provider or writing an audit entry.
func (e *Executor) ExecuteStep(ctx context.Context, plan *planner.Plan, step *planner.Step, userID, channel string) *ExecutionResult {
	prov := e.Registry.Get(step.Capability)
	if prov == nil {
		step.Status = planner.StepFailed
		step.Error = fmt.Sprintf("unknown capability: %s", step.Capability)
		return &ExecutionResult{Success: false, Error: step.Error}
	}

	cost := estimatedCost(step.Parameters)
	level := prov.ApprovalLevel(step.Action, cost)
	if step.Approval > level {
		level = step.Approval
	}

	if level.RequiresConfirmation() {
		step.Status = planner.StepAwaitingApproval
		appr := e.Approvals.Create(approval.CreateRequest{
			UserID:        userID,
			Capability:    step.Capability,
			Action:        step.Action,
			Parameters:    step.Parameters,
			Description:   stepDescription(step),
			EstimatedCost: cost,
			PlanID:        plan.ID,
			StepID:        step.ID,
			Channel:       channel,
		})
		return &ExecutionResult{
			RequiresApproval: true,
			Approval:         appr,
			Response:         appr.Message(),
		}
	}

	return e.invoke(ctx, plan, step, prov, userID, nil)
}

// invoke validates parameters, calls the provider, and writes exactly
// one audit entry for the attempt.
func (e *Executor) invoke(ctx context.Context, plan *planner.Plan, step *planner.Step, prov tools.Provider, userID string, appr *approval.PendingApproval) *ExecutionResult {
	entry := audit.Entry{
		UserID:     userID,
		Capability: step.Capability,
		Action:     step.Action,
		Parameters: step.Parameters,
		PlanID:     plan.ID,
		StepID:     step.ID,
	}
	if appr != nil {
		entry.ApprovalID = appr.ID
	}

	action, found := prov.Action(step.Action)
	if found {
		if err := action.Validate(step.Parameters); err != nil {
			step.Status = planner.StepFailed
			step.Error = err.Error()
			entry.Outcome = audit.OutcomeFailure
			entry.Error = err.Error()
			e.Audit.Append(entry)
			return &ExecutionResult{Success: false, Error: err.Error()}
		}
	}

	now := time.Now()
	step.Status = planner.StepInProgress
	step.StartedAt = &now

	res, err := prov.Execute(ctx, step.Action, step.Parameters, userID)
	done := time.Now()
	step.CompletedAt = &done
	entry.Duration = done.Sub(now)

	switch {
	case err != nil:
		step.Status = planner.StepFailed
		step.Error = err.Error()
		entry.Outcome = audit.OutcomeError
		entry.Error = err.Error()
		e.Audit.Append(entry)
		e.Log.Error("step execution errored",
			zap.String("action", step.Capability+"."+step.Action), zap.Error(err))
		return &ExecutionResult{Success: false, Error: err.Error()}

	case !res.Success:
		step.Status = planner.StepFailed
		step.Error = res.Error
		entry.Outcome = audit.OutcomeFailure
		entry.Error = res.Error
		e.Audit.Append(entry)
		return &ExecutionResult{Success: false, Error: res.Error, Data: res.Data}

	default:
		step.Status = planner.StepCompleted
		step.Result = res.Data
		entry.Outcome = audit.OutcomeSuccess
		e.Audit.Append(entry)
		return &ExecutionResult{
			Success: true,
			Data:    res.Data,
			Summary: res.Summary,
			Options: res.Options,
		}
	}
}

// ExecutePlan runs pending steps in order, halting on the first
// approval gate or failure. The returned result's Response is the
// user-facing text for the turn so far.
func (e *Executor) ExecutePlan(ctx context.Context, plan *planner.Plan, userID, channel string) *ExecutionResult {
	remaining := plan.Remaining()
	if len(remaining) == 0 {
		if plan.Complete() {
			plan.Status = planner.StepCompleted
		}
		return &ExecutionResult{Success: true, Response: "No actions to execute"}
	}

	plan.Status = planner.StepInProgress
	var summaries []string
	for _, step := range remaining {
		res := e.ExecuteStep(ctx, plan, step, userID, channel)

		if res.RequiresApproval {
			plan.Status = planner.StepAwaitingApproval
			res.Summary = strings.Join(summaries, "\n")
			return res
		}
		if !res.Success {
			plan.Status = planner.StepFailed
			res.Response = fmt.Sprintf("Sorry, I encountered an error: %s", res.Error)
			res.Summary = strings.Join(summaries, "\n")
			return res
		}
		if res.Summary != "" {
			summaries = append(summaries, res.Summary)
		}
	}

	plan.Status = planner.StepCompleted
	joined := strings.Join(summaries, "\n")
	return &ExecutionResult{Success: true, Summary: joined, Response: joined}
}

// ResumeAfterApproval runs the step an approval was guarding, merging
// the selected option's parameters first, then continues the rest of
// the plan.
func (e *Executor) ResumeAfterApproval(ctx context.Context, plan *planner.Plan, appr *approval.PendingApproval, userID, channel string) *ExecutionResult {
	if appr.Status != approval.StatusApproved {
		return &ExecutionResult{Success: false, Response: "Action cancelled."}
	}

	step := plan.StepByID(appr.StepID)
	if step == nil {
		return &ExecutionResult{Success: false, Response: "Sorry, I lost track of that action. Please try again."}
	}

	if appr.SelectedOption != nil && *appr.SelectedOption < len(appr.Options) {
		for k, v := range appr.Options[*appr.SelectedOption].Params {
			step.Parameters[k] = v
		}
	}

	prov := e.Registry.Get(step.Capability)
	if prov == nil {
		step.Status = planner.StepFailed
		return &ExecutionResult{Success: false, Response: "Sorry, that capability is no longer available."}
	}

	res := e.invoke(ctx, plan, step, prov, userID, appr)
	if !res.Success {
		plan.Status = planner.StepFailed
		res.Response = fmt.Sprintf("Sorry, that didn't work: %s", res.Error)
		return res
	}

	if len(plan.Remaining()) == 0 {
		plan.Status = planner.StepCompleted
		res.Response = res.Summary
		return res
	}

	rest := e.ExecutePlan(ctx, plan, userID, channel)
	if res.Summary != "" {
		if rest.Summary != "" {
			rest.Summary = res.Summary + "\n" + rest.Summary
		} else {
			rest.Summary = res.Summary
		}
		if rest.Success && !rest.RequiresApproval {
			rest.Response = rest.Summary
		}
	}
	return rest
}

func stepDescription(step *planner.Step) string {
	if step.Description != "" {
		return step.Description
	}
	return fmt.Sprintf("Execute %s.%s", step.Capability, step.Action)
}

// estimatedCost reads a monetary amount out of step parameters so the
// tier check can escalate expensive actions.
func estimatedCost(params map[string]any) float64 {
	for _, key := range []string{"amount", "price", "estimated_cost"} {
		switch v := params[key].(type) {
		case float64:
			return v
		case int:
			return float64(v)
		}
	}
	return 0
}
