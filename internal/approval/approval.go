package approval

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/calder/pennyworth/internal/tools"
)

// Status of an approval request. Pending items lazily flip to expired
// once read past their expiry.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// DefaultTTL is how long an approval waits for a human before expiring.
const DefaultTTL = 24 * time.Hour

// PendingApproval is an action held back until the user confirms it.
type PendingApproval struct {
	ID              uuid.UUID      `json:"id"`
	UserID          string         `json:"user_id"`
	Capability      string         `json:"capability"`
	Action          string         `json:"action"`
	Parameters      map[string]any `json:"parameters"`
	Description     string         `json:"description"`
	EstimatedCost   float64        `json:"estimated_cost,omitempty"`
	Options         []tools.Option `json:"options,omitempty"`
	SelectedOption  *int           `json:"selected_option,omitempty"`
	Status          Status         `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
	ExpiresAt       time.Time      `json:"expires_at"`
	ResolvedAt      *time.Time     `json:"resolved_at,omitempty"`
	RejectionReason string         `json:"rejection_reason,omitempty"`
	PlanID          uuid.UUID      `json:"plan_id,omitempty"`
	StepID          uuid.UUID      `json:"step_id,omitempty"`
	Channel         string         `json:"channel,omitempty"`
}

// ExpiredAt reports whether the item is pending but past expiry.
func (a *PendingApproval) ExpiredAt(now time.Time) bool {
	return a.Status == StatusPending && now.After(a.ExpiresAt)
}

// Resolved reports whether the item reached a terminal status.
func (a *PendingApproval) Resolved() bool {
	return a.Status != StatusPending
}

// Message formats the approval prompt sent back over the channel.
func (a *PendingApproval) Message() string {
	var b strings.Builder
	b.WriteString("*Approval required*\n\n")
	b.WriteString(a.Description)
	b.WriteString("\n")

	if a.EstimatedCost > 0 {
		fmt.Fprintf(&b, "\nEstimated cost: $%.2f\n", a.EstimatedCost)
	}

	if len(a.Options) > 0 {
		b.WriteString("\nOptions:\n")
		for i, opt := range a.Options {
			fmt.Fprintf(&b, "%d. %s\n", i+1, opt.Label)
		}
		b.WriteString("\nReply with an option number, 'approve', or 'cancel'.")
	} else {
		b.WriteString("\nReply 'approve' to proceed or 'cancel' to abort.")
	}

	fmt.Fprintf(&b, "\n\n_Expires in %s_", untilExpiry(a.ExpiresAt, time.Now()))
	return b.String()
}

func untilExpiry(expiresAt, now time.Time) string {
	d := expiresAt.Sub(now)
	switch {
	case d >= 48*time.Hour:
		return fmt.Sprintf("%d days", int(d.Hours())/24)
	case d >= time.Hour:
		return fmt.Sprintf("%d hours", int(d.Hours()))
	case d > 0:
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	default:
		return "0 minutes"
	}
}

// DecisionKind classifies a free-text reply against the approval
// protocol's canonical tokens.
type DecisionKind int

const (
	DecisionNone DecisionKind = iota
	DecisionApprove
	DecisionReject
	DecisionOption
)

// Decision is the parsed form of a user's reply to an approval prompt.
type Decision struct {
	Kind   DecisionKind
	Option int // 1-based, valid when Kind == DecisionOption
}

var (
	approveTokens = map[string]bool{"approve": true, "yes": true, "ok": true, "confirm": true, "y": true, "proceed": true}
	rejectTokens  = map[string]bool{"cancel": true, "no": true, "reject": true, "n": true, "stop": true, "abort": true}
)

// ParseDecision maps free text to an approval decision. A bare integer
// is an option selection; anything unrecognized is DecisionNone.
func ParseDecision(text string) Decision {
	t := strings.ToLower(strings.TrimSpace(text))
	if approveTokens[t] {
		return Decision{Kind: DecisionApprove}
	}
	if rejectTokens[t] {
		return Decision{Kind: DecisionReject}
	}
	if n, err := parsePositiveInt(t); err == nil {
		return Decision{Kind: DecisionOption, Option: n}
	}
	return Decision{Kind: DecisionNone}
}

func parsePositiveInt(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty")
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("not a number")
		}
		n = n*10 + int(r-'0')
	}
	if n == 0 {
		return 0, fmt.Errorf("zero")
	}
	return n, nil
}
