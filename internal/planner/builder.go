package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/calder/pennyworth/internal/tools"
)

const plannerSystemPrompt = `You are a task planner for a personal financial-advisory assistant.

Given a user intent, create an execution plan with steps that:
1. Gather needed information first (read-only operations)
2. Present options to the user when appropriate
3. Execute actions that modify data last
4. Respect approval requirements (booking, payments, sending email need approval)

Submit the plan with the propose_plan tool. When the results you are shown
already answer the user, reply with a short final message instead of
proposing more steps. Keep plans focused and minimal.`

// proposePlanTool is the function-call schema the planner model uses to
// return structured plans.
var proposePlanTool = []llms.Tool{
	{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        "propose_plan",
			Description: "Submit a structured plan consisting of ordered steps.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"description": map[string]any{"type": "string"},
					"steps": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"order":          map[string]any{"type": "integer"},
								"capability":     map[string]any{"type": "string"},
								"action":         map[string]any{"type": "string"},
								"parameters":     map[string]any{"type": "object"},
								"description":    map[string]any{"type": "string"},
								"needs_approval": map[string]any{"type": "boolean"},
							},
							"required": []string{"order", "capability", "action"},
						},
					},
				},
				"required": []string{"steps"},
			},
		},
	},
}

type planSpec struct {
	Description string `json:"description"`
	Steps       []struct {
		Order         int            `json:"order"`
		Capability    string         `json:"capability"`
		Action        string         `json:"action"`
		Parameters    map[string]any `json:"parameters"`
		Description   string         `json:"description"`
		NeedsApproval bool           `json:"needs_approval"`
	} `json:"steps"`
}

// Builder turns intents into plans via the LLM collaborator, with the
// capability catalogue and constraints folded into the prompt.
type Builder struct {
	Model        llms.Model
	Registry     *tools.Registry
	SystemPrompt string
	Log          *zap.Logger
}

func NewBuilder(model llms.Model, registry *tools.Registry, log *zap.Logger) *Builder {
	return &Builder{Model: model, Registry: registry, SystemPrompt: plannerSystemPrompt, Log: log}
}

func (b *Builder) systemMessage() llms.MessageContent {
	prompt := fmt.Sprintf("%s\n\n## Available capabilities and actions:\n%s",
		b.SystemPrompt, b.Registry.Catalog())
	return llms.MessageContent{
		Role:  llms.ChatMessageTypeSystem,
		Parts: []llms.ContentPart{llms.TextPart(prompt)},
	}
}

// CreatePlan builds a plan for the intent. Conversation intents get a
// zero-step plan; malformed model output degrades to a single-step
// fallback mapping the category to its default capability.
func (b *Builder) CreatePlan(ctx context.Context, intent Intent, userContext map[string]any) *Plan {
	if intent.Category == CategoryConversation || intent.Category == CategoryUnknown {
		return newPlan(intent, "Conversational response", nil)
	}

	prompt := intentSummary(intent)
	if len(userContext) > 0 {
		if blob, err := json.Marshal(userContext); err == nil {
			prompt += "\nUser context: " + string(blob)
		}
	}

	msgs := []llms.MessageContent{
		b.systemMessage(),
		{Role: llms.ChatMessageTypeHuman, Parts: []llms.ContentPart{llms.TextPart(prompt)}},
	}

	spec, _, err := b.propose(ctx, msgs)
	if err != nil || spec == nil || len(spec.Steps) == 0 {
		if err != nil {
			b.Log.Warn("planning failed, using fallback plan", zap.Error(err))
		}
		return b.fallbackPlan(intent)
	}

	steps := b.buildSteps(spec, 0)
	return newPlan(intent, spec.Description, steps)
}

// Replan regenerates only the remaining steps, preserving completed
// history. On any model failure the original plan is kept.
func (b *Builder) Replan(ctx context.Context, plan *Plan, feedback string) *Plan {
	remaining := plan.Remaining()
	if len(remaining) == 0 {
		return plan
	}

	var done []string
	var kept []*Step
	for _, s := range plan.Steps {
		if s.Status == StepCompleted || s.Status == StepSkipped {
			done = append(done, s.Description)
			kept = append(kept, s)
		}
	}

	prompt := fmt.Sprintf(
		"Original plan: %s\nCompleted steps: %s\nFeedback: %s\nOriginal message: %s\n\nAdjust the remaining plan based on this feedback.",
		plan.Description, strings.Join(done, "; "), feedback, plan.UserMessage)

	msgs := []llms.MessageContent{
		b.systemMessage(),
		{Role: llms.ChatMessageTypeHuman, Parts: []llms.ContentPart{llms.TextPart(prompt)}},
	}

	spec, _, err := b.propose(ctx, msgs)
	if err != nil || spec == nil || len(spec.Steps) == 0 {
		return plan
	}

	steps := b.buildSteps(spec, len(kept))
	plan.Steps = append(kept, steps...)
	if spec.Description != "" {
		plan.Description = spec.Description
	}
	return plan
}

// Continue asks the planner to react to execution results: either more
// steps (appended to the plan) or a final text reply. Returns the new
// steps and/or the final text; both empty means the model gave nothing
// usable and the caller should compose its own summary.
func (b *Builder) Continue(ctx context.Context, plan *Plan, results string) ([]*Step, string) {
	prompt := fmt.Sprintf(
		"Plan: %s\nOriginal message: %s\n\nExecution results so far:\n%s\n\nIf more steps are needed, propose them. Otherwise reply with the final answer for the user.",
		plan.Description, plan.UserMessage, results)

	msgs := []llms.MessageContent{
		b.systemMessage(),
		{Role: llms.ChatMessageTypeHuman, Parts: []llms.ContentPart{llms.TextPart(prompt)}},
	}

	spec, text, err := b.propose(ctx, msgs)
	if err != nil {
		b.Log.Warn("plan continuation failed", zap.Error(err))
		return nil, ""
	}
	if spec != nil && len(spec.Steps) > 0 {
		steps := b.buildSteps(spec, len(plan.Steps))
		plan.Steps = append(plan.Steps, steps...)
		return steps, ""
	}
	return nil, text
}

// propose runs one planner turn: a propose_plan tool call yields a
// spec, a plain text answer yields text.
func (b *Builder) propose(ctx context.Context, msgs []llms.MessageContent) (*planSpec, string, error) {
	resp, err := b.Model.GenerateContent(ctx, msgs, llms.WithTools(proposePlanTool))
	if err != nil {
		return nil, "", err
	}
	if len(resp.Choices) == 0 {
		return nil, "", fmt.Errorf("planner returned no choices")
	}
	choice := resp.Choices[0]

	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil || tc.FunctionCall.Name != "propose_plan" {
			continue
		}
		var spec planSpec
		if err := json.Unmarshal([]byte(tc.FunctionCall.Arguments), &spec); err != nil {
			return nil, "", fmt.Errorf("failed to parse propose_plan arguments: %w", err)
		}
		return &spec, "", nil
	}

	if choice.Content != "" {
		return nil, strings.TrimSpace(choice.Content), nil
	}
	return nil, "", fmt.Errorf("planner provided neither a plan nor a reply")
}

func (b *Builder) buildSteps(spec *planSpec, orderOffset int) []*Step {
	steps := make([]*Step, 0, len(spec.Steps))
	for i, sd := range spec.Steps {
		order := sd.Order
		if order == 0 {
			order = orderOffset + i + 1
		}
		step := newStep(order, sd.Capability, sd.Action, sd.Parameters, sd.Description)
		step.Approval = b.declaredLevel(sd.Capability, sd.Action)
		if sd.NeedsApproval && step.Approval < tools.ApprovalConfirm {
			step.Approval = tools.ApprovalConfirm
		}
		steps = append(steps, step)
	}
	chainSteps(steps)
	return steps
}

func (b *Builder) declaredLevel(capability, action string) tools.ApprovalLevel {
	prov := b.Registry.Get(capability)
	if prov == nil {
		return tools.ApprovalNone
	}
	if a, found := prov.Action(action); found {
		return a.Approval
	}
	return tools.ApprovalNone
}

// fallbackPlan maps the intent's category straight to its default
// capability as a single step.
func (b *Builder) fallbackPlan(intent Intent) *Plan {
	capability := map[IntentCategory]string{
		CategoryTravel:   "travel",
		CategoryFinance:  "finance",
		CategoryCalendar: "calendar",
		CategoryEmail:    "email",
		CategoryResearch: "research",
	}[intent.Category]
	if capability == "" {
		capability = "research"
	}

	step := newStep(1, capability, intent.Action, intent.Parameters, fmt.Sprintf("Execute %s", intent.Action))
	step.Approval = b.declaredLevel(capability, intent.Action)
	return newPlan(intent, fmt.Sprintf("Execute %s action", intent.Category), []*Step{step})
}
