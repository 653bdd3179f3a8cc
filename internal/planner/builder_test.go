package planner

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/calder/pennyworth/internal/tools"
)

func testRegistry() *tools.Registry {
	r := tools.NewRegistry()
	r.Register(tools.NewFinanceProvider())
	r.Register(tools.NewTravelProvider())
	return r
}

func testIntent(category IntentCategory, action string) Intent {
	return Intent{
		ID:         uuid.New(),
		Category:   category,
		Action:     action,
		Parameters: map[string]any{},
		Confidence: 0.9,
		RawMessage: "test message",
		ParsedAt:   time.Now(),
	}
}

func TestCreatePlanConversationalIsZeroStep(t *testing.T) {
	b := NewBuilder(&fakeModel{}, testRegistry(), zap.NewNop())

	plan := b.CreatePlan(context.Background(), testIntent(CategoryConversation, "greeting"), nil)
	require.NotNil(t, plan)
	assert.Empty(t, plan.Steps)
	assert.True(t, plan.Complete())
}

func TestCreatePlanFromProposal(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{toolCallResponse("propose_plan", `{
		"description": "Book a flight to New York",
		"steps": [
			{"order": 1, "capability": "travel", "action": "search_flights",
			 "parameters": {"from": "SFO", "to": "JFK"}, "description": "Find flights"},
			{"order": 2, "capability": "travel", "action": "book_flight",
			 "parameters": {}, "description": "Book the chosen flight", "needs_approval": true}
		]
	}`)}}
	b := NewBuilder(model, testRegistry(), zap.NewNop())

	plan := b.CreatePlan(context.Background(), testIntent(CategoryTravel, "book_flight"), nil)
	require.Len(t, plan.Steps, 2)

	first, second := plan.Steps[0], plan.Steps[1]
	assert.Equal(t, "search_flights", first.Action)
	assert.Equal(t, tools.ApprovalNone, first.Approval)
	assert.Empty(t, first.DependsOn)

	assert.Equal(t, "book_flight", second.Action)
	assert.GreaterOrEqual(t, second.Approval, tools.ApprovalConfirm)
	require.Len(t, second.DependsOn, 1)
	assert.Equal(t, first.ID, second.DependsOn[0])
}

func TestCreatePlanFallsBackOnModelFailure(t *testing.T) {
	model := &fakeModel{} // no scripted responses: every call errors
	b := NewBuilder(model, testRegistry(), zap.NewNop())

	intent := testIntent(CategoryFinance, "list_accounts")
	plan := b.CreatePlan(context.Background(), intent, nil)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, "finance", plan.Steps[0].Capability)
	assert.Equal(t, "list_accounts", plan.Steps[0].Action)
}

func TestReplanPreservesCompletedSteps(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{toolCallResponse("propose_plan", `{
		"steps": [{"order": 2, "capability": "finance", "action": "get_transactions"}]
	}`)}}
	b := NewBuilder(model, testRegistry(), zap.NewNop())

	plan := newPlan(testIntent(CategoryFinance, "spending_summary"), "Review spending", []*Step{
		newStep(1, "finance", "list_accounts", nil, "List accounts"),
		newStep(2, "finance", "spending_summary", nil, "Summarize"),
	})
	plan.Steps[0].Status = StepCompleted

	updated := b.Replan(context.Background(), plan, "use last month instead")
	require.Len(t, updated.Steps, 2)
	assert.Equal(t, "list_accounts", updated.Steps[0].Action)
	assert.Equal(t, StepCompleted, updated.Steps[0].Status)
	assert.Equal(t, "get_transactions", updated.Steps[1].Action)
}

func TestContinueReturnsFinalText(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{textResponse("Your checking balance is $3,240.")}}
	b := NewBuilder(model, testRegistry(), zap.NewNop())

	plan := newPlan(testIntent(CategoryFinance, "list_accounts"), "Check balance", []*Step{
		newStep(1, "finance", "list_accounts", nil, "List accounts"),
	})
	plan.Steps[0].Status = StepCompleted

	steps, text := b.Continue(context.Background(), plan, "list_accounts: ok")
	assert.Empty(t, steps)
	assert.Equal(t, "Your checking balance is $3,240.", text)
}

func TestContinueAppendsNewSteps(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{toolCallResponse("propose_plan", `{
		"steps": [{"order": 2, "capability": "finance", "action": "get_transactions"}]
	}`)}}
	b := NewBuilder(model, testRegistry(), zap.NewNop())

	plan := newPlan(testIntent(CategoryFinance, "spending_summary"), "Review spending", []*Step{
		newStep(1, "finance", "list_accounts", nil, "List accounts"),
	})
	plan.Steps[0].Status = StepCompleted

	steps, text := b.Continue(context.Background(), plan, "accounts listed")
	assert.Empty(t, text)
	require.Len(t, steps, 1)
	assert.Len(t, plan.Steps, 2)
	assert.Equal(t, "get_transactions", steps[0].Action)
}
