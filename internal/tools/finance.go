package tools

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// BankAccount is a connected account snapshot.
type BankAccount struct {
	ID          string  `json:"id"`
	Institution string  `json:"institution"`
	Name        string  `json:"name"`
	Type        string  `json:"type"` // checking, savings, credit, investment
	Balance     float64 `json:"balance"`
	Currency    string  `json:"currency"`
}

// Transaction is one ledger line on an account.
type Transaction struct {
	ID          string  `json:"id"`
	AccountID   string  `json:"account_id"`
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
}

// FinanceProvider exposes banking, spending, tax and payment actions.
// Data is sample-backed until an aggregator integration lands behind it.
type FinanceProvider struct {
	ActionSet
	accounts     []BankAccount
	transactions []Transaction
}

func NewFinanceProvider() *FinanceProvider {
	p := &FinanceProvider{
		accounts: []BankAccount{
			{ID: "acc_checking", Institution: "First National", Name: "Everyday Checking", Type: "checking", Balance: 4821.50, Currency: "USD"},
			{ID: "acc_savings", Institution: "First National", Name: "Rainy Day Savings", Type: "savings", Balance: 12250.00, Currency: "USD"},
			{ID: "acc_credit", Institution: "Apex Card", Name: "Travel Rewards Card", Type: "credit", Balance: -1340.22, Currency: "USD"},
		},
		transactions: []Transaction{
			{ID: "txn_1", AccountID: "acc_checking", Date: "2025-08-20", Description: "Grocery Mart", Amount: -86.40, Category: "groceries"},
			{ID: "txn_2", AccountID: "acc_checking", Date: "2025-08-19", Description: "Monthly Rent", Amount: -1850.00, Category: "housing"},
			{ID: "txn_3", AccountID: "acc_credit", Date: "2025-08-18", Description: "Skyline Airlines", Amount: -412.80, Category: "travel"},
			{ID: "txn_4", AccountID: "acc_checking", Date: "2025-08-15", Description: "Salary", Amount: 5200.00, Category: "income"},
			{ID: "txn_5", AccountID: "acc_credit", Date: "2025-08-12", Description: "Bistro Nove", Amount: -74.15, Category: "dining"},
		},
	}
	p.NotifyThreshold = 100

	p.register(Action{
		Name:        "list_accounts",
		Description: "List connected bank accounts and balances",
		Parameters: map[string]Param{
			"account_type": {Type: "string", Enum: []string{"all", "checking", "savings", "credit", "investment"}},
		},
	})
	p.register(Action{
		Name:        "get_transactions",
		Description: "Get recent transactions for an account",
		Parameters: map[string]Param{
			"account_id": {Type: "string", Description: "Account ID, omit for all accounts"},
			"category":   {Type: "string", Description: "Filter by spending category"},
			"limit":      {Type: "integer"},
		},
	})
	p.register(Action{
		Name:        "spending_summary",
		Description: "Get spending summary by category",
		Parameters: map[string]Param{
			"period": {Type: "string", Enum: []string{"week", "month", "quarter", "year"}, Required: true},
		},
	})
	p.register(Action{
		Name:        "tax_summary",
		Description: "Get tax-relevant summary for a year",
		Parameters: map[string]Param{
			"year": {Type: "integer", Required: true},
		},
	})
	p.register(Action{
		Name:        "estimate_taxes",
		Description: "Estimate taxes owed for a year",
		Parameters: map[string]Param{
			"year": {Type: "integer", Required: true},
		},
	})
	p.register(Action{
		Name:        "schedule_payment",
		Description: "Schedule a payment from an account",
		Parameters: map[string]Param{
			"account_id": {Type: "string", Required: true},
			"payee":      {Type: "string", Required: true},
			"amount":     {Type: "number", Required: true},
			"date":       {Type: "string", Description: "Payment date (YYYY-MM-DD)"},
		},
		Approval: ApprovalConfirm,
	})
	p.register(Action{
		Name:        "submit_tax_return",
		Description: "Submit a prepared tax return for filing",
		Parameters: map[string]Param{
			"year": {Type: "integer", Required: true},
		},
		Approval: ApprovalStrict,
	})
	return p
}

func (p *FinanceProvider) Name() string { return "finance" }

func (p *FinanceProvider) Description() string {
	return "View accounts, track spending, manage taxes, and handle payments."
}

// Accounts returns the account snapshot; used by the proactive triggers.
func (p *FinanceProvider) Accounts(userID string) []BankAccount {
	return p.accounts
}

func (p *FinanceProvider) Execute(ctx context.Context, action string, params map[string]any, userID string) (*Result, error) {
	switch action {
	case "list_accounts":
		return p.listAccounts(params), nil
	case "get_transactions":
		return p.getTransactions(params), nil
	case "spending_summary":
		return p.spendingSummary(params), nil
	case "tax_summary":
		return p.taxSummary(params), nil
	case "estimate_taxes":
		return p.estimateTaxes(params), nil
	case "schedule_payment":
		return p.schedulePayment(params), nil
	case "submit_tax_return":
		year := intParam(params, "year", time.Now().Year()-1)
		return ok(fmt.Sprintf("Tax return for %d submitted for filing. Confirmation ref TX-%d-7741.", year, year), nil), nil
	default:
		return fail("unknown finance action: %s", action), nil
	}
}

func (p *FinanceProvider) listAccounts(params map[string]any) *Result {
	accType, _ := params["account_type"].(string)
	var (
		lines []string
		total float64
		out   []BankAccount
	)
	for _, a := range p.accounts {
		if accType != "" && accType != "all" && a.Type != accType {
			continue
		}
		out = append(out, a)
		total += a.Balance
		lines = append(lines, fmt.Sprintf("%s (%s, %s): $%.2f", a.Name, a.Institution, a.Type, a.Balance))
	}
	if len(out) == 0 {
		return fail("no %s accounts connected", accType)
	}
	summary := fmt.Sprintf("You have %d accounts, net $%.2f:\n%s", len(out), total, strings.Join(lines, "\n"))
	return ok(summary, out)
}

func (p *FinanceProvider) getTransactions(params map[string]any) *Result {
	accountID, _ := params["account_id"].(string)
	category, _ := params["category"].(string)
	limit := intParam(params, "limit", 50)

	var out []Transaction
	for _, t := range p.transactions {
		if accountID != "" && t.AccountID != accountID {
			continue
		}
		if category != "" && t.Category != category {
			continue
		}
		out = append(out, t)
		if len(out) >= limit {
			break
		}
	}
	lines := make([]string, 0, len(out))
	for _, t := range out {
		lines = append(lines, fmt.Sprintf("%s  %-20s $%.2f (%s)", t.Date, t.Description, t.Amount, t.Category))
	}
	return ok(fmt.Sprintf("%d transactions:\n%s", len(out), strings.Join(lines, "\n")), out)
}

func (p *FinanceProvider) spendingSummary(params map[string]any) *Result {
	period, _ := params["period"].(string)
	byCategory := map[string]float64{}
	for _, t := range p.transactions {
		if t.Amount < 0 {
			byCategory[t.Category] += -t.Amount
		}
	}
	var lines []string
	var total float64
	for cat, amt := range byCategory {
		total += amt
		lines = append(lines, fmt.Sprintf("%s: $%.2f", cat, amt))
	}
	summary := fmt.Sprintf("Spending this %s: $%.2f\n%s", period, total, strings.Join(lines, "\n"))
	return ok(summary, byCategory)
}

func (p *FinanceProvider) taxSummary(params map[string]any) *Result {
	year := intParam(params, "year", time.Now().Year()-1)
	data := map[string]any{
		"year":             year,
		"gross_income":     98400.00,
		"withheld":         17230.00,
		"deductible_spend": 4120.00,
	}
	summary := fmt.Sprintf("Tax year %d: gross income $98,400.00, $17,230.00 withheld, $4,120.00 in deductible spending.", year)
	return ok(summary, data)
}

func (p *FinanceProvider) estimateTaxes(params map[string]any) *Result {
	year := intParam(params, "year", time.Now().Year()-1)
	estimate := 19874.00
	summary := fmt.Sprintf("Estimated total tax for %d is $%.2f; roughly $%.2f beyond what was withheld.", year, estimate, estimate-17230.00)
	return ok(summary, map[string]any{"year": year, "estimated_tax": estimate})
}

func (p *FinanceProvider) schedulePayment(params map[string]any) *Result {
	payee, _ := params["payee"].(string)
	amount := floatParam(params, "amount")
	date, _ := params["date"].(string)
	if date == "" {
		date = time.Now().AddDate(0, 0, 1).Format("2006-01-02")
	}
	summary := fmt.Sprintf("Payment of $%.2f to %s scheduled for %s.", amount, payee, date)
	return ok(summary, map[string]any{"payee": payee, "amount": amount, "date": date})
}

func intParam(params map[string]any, key string, def int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}

func floatParam(params map[string]any, key string) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}
