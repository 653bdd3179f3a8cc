package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionValidate(t *testing.T) {
	action := Action{
		Name: "book_flight",
		Parameters: map[string]Param{
			"flight_id": {Type: "string", Required: true},
			"price":     {Type: "number"},
			"seats":     {Type: "integer"},
			"class":     {Type: "string", Enum: []string{"economy", "business"}},
		},
	}

	assert.NoError(t, action.Validate(map[string]any{"flight_id": "FL-1"}))
	assert.NoError(t, action.Validate(map[string]any{"flight_id": "FL-1", "price": 420.50, "seats": float64(2)}))
	assert.NoError(t, action.Validate(map[string]any{"flight_id": "FL-1", "class": "economy"}))

	assert.Error(t, action.Validate(map[string]any{}), "missing required parameter")
	assert.Error(t, action.Validate(map[string]any{"flight_id": 7}), "wrong type")
	assert.Error(t, action.Validate(map[string]any{"flight_id": "FL-1", "seats": 1.5}), "non-integral")
	assert.Error(t, action.Validate(map[string]any{"flight_id": "FL-1", "class": "first"}), "enum violation")
}

func TestApprovalLevelEscalation(t *testing.T) {
	set := &ActionSet{NotifyThreshold: 100}
	set.register(Action{Name: "read", Approval: ApprovalNone})
	set.register(Action{Name: "pay", Approval: ApprovalConfirm})

	// Zero cost keeps the declared tier.
	assert.Equal(t, ApprovalNone, set.ApprovalLevel("read", 0))
	assert.Equal(t, ApprovalConfirm, set.ApprovalLevel("pay", 0))

	// Any positive cost notifies at minimum.
	assert.Equal(t, ApprovalNotify, set.ApprovalLevel("read", 50))

	// Crossing the threshold forces confirmation.
	assert.Equal(t, ApprovalConfirm, set.ApprovalLevel("read", 150))

	// Escalation never lowers a declared tier.
	set.register(Action{Name: "wire", Approval: ApprovalStrict})
	assert.Equal(t, ApprovalStrict, set.ApprovalLevel("wire", 150))
}

func TestRegistryCatalog(t *testing.T) {
	r := NewRegistry()
	r.Register(NewFinanceProvider())
	r.Register(NewTravelProvider())

	require.NotNil(t, r.Get("finance"))
	require.Nil(t, r.Get("nope"))
	assert.Len(t, r.List(), 2)

	catalog := r.Catalog()
	assert.Contains(t, catalog, "finance")
	assert.Contains(t, catalog, "book_flight")
	assert.Contains(t, catalog, "requires confirm approval")
}

func TestFinanceProviderActions(t *testing.T) {
	p := NewFinanceProvider()
	ctx := context.Background()

	res, err := p.Execute(ctx, "list_accounts", map[string]any{}, "u1")
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.NotEmpty(t, res.Summary)

	res, err = p.Execute(ctx, "bogus_action", map[string]any{}, "u1")
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestTravelSearchReturnsOptions(t *testing.T) {
	p := NewTravelProvider()
	res, err := p.Execute(context.Background(), "search_flights",
		map[string]any{"origin": "SFO", "destination": "JFK", "departure_date": "2026-09-01"}, "u1")
	require.NoError(t, err)
	require.True(t, res.Success)
	require.NotEmpty(t, res.Options)
	// Each option must carry the parameters a booking step needs.
	for _, opt := range res.Options {
		assert.Contains(t, opt.Params, "flight_id")
		assert.Contains(t, opt.Params, "price")
	}
}
