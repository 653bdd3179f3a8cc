package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/calder/pennyworth/internal/approval"
	"github.com/calder/pennyworth/internal/audit"
	"github.com/calder/pennyworth/internal/planner"
	"github.com/calder/pennyworth/internal/tools"
)

// stubProvider is a controllable capability for executor tests.
type stubProvider struct {
	name    string
	actions map[string]tools.Action
	results map[string]*tools.Result
	errs    map[string]error
	invoked []string
}

func newStubProvider(name string) *stubProvider {
	return &stubProvider{
		name:    name,
		actions: map[string]tools.Action{},
		results: map[string]*tools.Result{},
		errs:    map[string]error{},
	}
}

func (p *stubProvider) Name() string        { return p.name }
func (p *stubProvider) Description() string { return "stub" }

func (p *stubProvider) Actions() []tools.Action {
	var out []tools.Action
	for _, a := range p.actions {
		out = append(out, a)
	}
	return out
}

func (p *stubProvider) Action(name string) (tools.Action, bool) {
	a, found := p.actions[name]
	return a, found
}

func (p *stubProvider) ApprovalLevel(action string, estimatedCost float64) tools.ApprovalLevel {
	level := tools.ApprovalNone
	if a, found := p.actions[action]; found {
		level = a.Approval
	}
	if estimatedCost > 100 && level < tools.ApprovalConfirm {
		level = tools.ApprovalConfirm
	}
	return level
}

func (p *stubProvider) Execute(ctx context.Context, action string, params map[string]any, userID string) (*tools.Result, error) {
	p.invoked = append(p.invoked, action)
	if err := p.errs[action]; err != nil {
		return nil, err
	}
	if res := p.results[action]; res != nil {
		return res, nil
	}
	return &tools.Result{Success: true, Summary: action + " done"}, nil
}

type fixture struct {
	exec      *Executor
	provider  *stubProvider
	approvals *approval.Manager
	audit     *audit.MemoryLog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	provider := newStubProvider("finance")
	registry := tools.NewRegistry()
	registry.Register(provider)

	approvals := approval.NewManager(approval.NewMemoryStore(), 0, zap.NewNop())
	log := audit.NewMemoryLog()
	return &fixture{
		exec:      NewExecutor(registry, approvals, log, zap.NewNop()),
		provider:  provider,
		approvals: approvals,
		audit:     log,
	}
}

func makePlan(steps ...*planner.Step) *planner.Plan {
	return &planner.Plan{ID: uuid.New(), Steps: steps, Status: planner.StepPending}
}

func makeStep(capability, action string, params map[string]any) *planner.Step {
	if params == nil {
		params = map[string]any{}
	}
	return &planner.Step{
		ID:         uuid.New(),
		Capability: capability,
		Action:     action,
		Parameters: params,
		Status:     planner.StepPending,
	}
}

func TestExecutePlanUngatedStepsRunAndAudit(t *testing.T) {
	f := newFixture(t)
	f.provider.actions["list_accounts"] = tools.Action{Name: "list_accounts"}
	f.provider.results["list_accounts"] = &tools.Result{Success: true, Summary: "2 accounts found"}

	plan := makePlan(makeStep("finance", "list_accounts", nil))
	res := f.exec.ExecutePlan(context.Background(), plan, "u1", "telegram")

	require.True(t, res.Success)
	assert.False(t, res.RequiresApproval)
	assert.Equal(t, "2 accounts found", res.Response)
	assert.Equal(t, planner.StepCompleted, plan.Status)
	assert.Equal(t, []string{"list_accounts"}, f.provider.invoked)

	entries := f.audit.ListByUser("u1", 0)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.OutcomeSuccess, entries[0].Outcome)
	assert.Equal(t, plan.ID, entries[0].PlanID)
}

func TestExecutePlanGatedStepPausesWithoutInvoking(t *testing.T) {
	f := newFixture(t)
	f.provider.actions["schedule_payment"] = tools.Action{Name: "schedule_payment", Approval: tools.ApprovalConfirm}

	step := makeStep("finance", "schedule_payment", map[string]any{"amount": 50.0})
	plan := makePlan(step)
	res := f.exec.ExecutePlan(context.Background(), plan, "u1", "telegram")

	require.True(t, res.RequiresApproval)
	require.NotNil(t, res.Approval)
	assert.Equal(t, planner.StepAwaitingApproval, step.Status)
	assert.Equal(t, planner.StepAwaitingApproval, plan.Status)
	assert.Contains(t, res.Response, "Approval required")

	// Nothing ran, so nothing was audited.
	assert.Empty(t, f.provider.invoked)
	assert.Empty(t, f.audit.ListByUser("u1", 0))
}

func TestExecutePlanCostEscalationGatesCheapTier(t *testing.T) {
	f := newFixture(t)
	f.provider.actions["transfer"] = tools.Action{Name: "transfer", Approval: tools.ApprovalNone}

	plan := makePlan(makeStep("finance", "transfer", map[string]any{"amount": 500.0}))
	res := f.exec.ExecutePlan(context.Background(), plan, "u1", "telegram")

	assert.True(t, res.RequiresApproval)
	assert.InDelta(t, 500.0, res.Approval.EstimatedCost, 1e-9)
}

func TestExecutePlanHaltsOnFailure(t *testing.T) {
	f := newFixture(t)
	f.provider.actions["first"] = tools.Action{Name: "first"}
	f.provider.actions["second"] = tools.Action{Name: "second"}
	f.provider.errs["first"] = errors.New("upstream down")

	next := makeStep("finance", "second", nil)
	plan := makePlan(makeStep("finance", "first", nil), next)
	res := f.exec.ExecutePlan(context.Background(), plan, "u1", "telegram")

	require.False(t, res.Success)
	assert.Contains(t, res.Response, "Sorry, I encountered an error")
	assert.Equal(t, planner.StepFailed, plan.Status)
	// The failed step halts the plan; later steps are never attempted.
	assert.Equal(t, planner.StepPending, next.Status)
	assert.Equal(t, []string{"first"}, f.provider.invoked)

	entries := f.audit.ListByUser("u1", 0)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.OutcomeError, entries[0].Outcome)
	assert.Equal(t, "upstream down", entries[0].Error)
}

func TestExecutePlanValidationFailureIsAudited(t *testing.T) {
	f := newFixture(t)
	f.provider.actions["book_flight"] = tools.Action{
		Name:       "book_flight",
		Parameters: map[string]tools.Param{"flight_id": {Type: "string", Required: true}},
	}

	plan := makePlan(makeStep("finance", "book_flight", nil))
	res := f.exec.ExecutePlan(context.Background(), plan, "u1", "telegram")

	require.False(t, res.Success)
	assert.Empty(t, f.provider.invoked)

	entries := f.audit.ListByUser("u1", 0)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.OutcomeFailure, entries[0].Outcome)
}

func TestResumeAfterApprovalMergesSelectedOption(t *testing.T) {
	f := newFixture(t)
	f.provider.actions["book_flight"] = tools.Action{Name: "book_flight", Approval: tools.ApprovalConfirm}
	f.provider.results["book_flight"] = &tools.Result{Success: true, Summary: "Booked UA123"}

	step := makeStep("finance", "book_flight", map[string]any{})
	plan := makePlan(step)

	res := f.exec.ExecutePlan(context.Background(), plan, "u1", "telegram")
	require.True(t, res.RequiresApproval)

	// Simulate search options attached out of band, then pick the second.
	appr, found := f.approvals.Get(res.Approval.ID)
	require.True(t, found)
	appr.Options = []tools.Option{
		{Label: "UA 999", Params: map[string]any{"flight_id": "UA999"}},
		{Label: "UA 123", Params: map[string]any{"flight_id": "UA123", "price": 310.0}},
	}
	selected := 1
	approved, err := f.approvals.Approve(appr.ID, &selected)
	require.NoError(t, err)

	resumed := f.exec.ResumeAfterApproval(context.Background(), plan, approved, "u1", "telegram")
	require.True(t, resumed.Success)
	assert.Equal(t, "Booked UA123", resumed.Response)
	assert.Equal(t, "UA123", step.Parameters["flight_id"])
	assert.Equal(t, 310.0, step.Parameters["price"])
	assert.Equal(t, planner.StepCompleted, plan.Status)

	entries := f.audit.ListByUser("u1", 0)
	require.Len(t, entries, 1)
	assert.Equal(t, approved.ID, entries[0].ApprovalID)
}

func TestResumeAfterApprovalRejected(t *testing.T) {
	f := newFixture(t)
	f.provider.actions["send"] = tools.Action{Name: "send", Approval: tools.ApprovalConfirm}

	step := makeStep("finance", "send", nil)
	plan := makePlan(step)
	res := f.exec.ExecutePlan(context.Background(), plan, "u1", "telegram")
	require.True(t, res.RequiresApproval)

	rejected, err := f.approvals.Reject(res.Approval.ID, "user declined")
	require.NoError(t, err)

	resumed := f.exec.ResumeAfterApproval(context.Background(), plan, rejected, "u1", "telegram")
	assert.False(t, resumed.Success)
	assert.Equal(t, "Action cancelled.", resumed.Response)
	assert.Empty(t, f.provider.invoked)
}

func TestResumeContinuesRemainingSteps(t *testing.T) {
	f := newFixture(t)
	f.provider.actions["pay"] = tools.Action{Name: "pay", Approval: tools.ApprovalConfirm}
	f.provider.actions["receipt"] = tools.Action{Name: "receipt"}
	f.provider.results["pay"] = &tools.Result{Success: true, Summary: "Paid $50"}
	f.provider.results["receipt"] = &tools.Result{Success: true, Summary: "Receipt emailed"}

	plan := makePlan(makeStep("finance", "pay", nil), makeStep("finance", "receipt", nil))
	res := f.exec.ExecutePlan(context.Background(), plan, "u1", "telegram")
	require.True(t, res.RequiresApproval)

	approved, err := f.approvals.Approve(res.Approval.ID, nil)
	require.NoError(t, err)

	resumed := f.exec.ResumeAfterApproval(context.Background(), plan, approved, "u1", "telegram")
	require.True(t, resumed.Success)
	assert.Equal(t, []string{"pay", "receipt"}, f.provider.invoked)
	assert.Equal(t, planner.StepCompleted, plan.Status)
	assert.Contains(t, resumed.Response, "Paid $50")
	assert.Contains(t, resumed.Response, "Receipt emailed")
}

func TestEstimatedCost(t *testing.T) {
	assert.Equal(t, 42.5, estimatedCost(map[string]any{"amount": 42.5}))
	assert.Equal(t, 100.0, estimatedCost(map[string]any{"price": 100}))
	assert.Equal(t, 7.0, estimatedCost(map[string]any{"estimated_cost": 7.0}))
	assert.Zero(t, estimatedCost(map[string]any{"note": "free"}))
}
