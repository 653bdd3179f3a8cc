package proactive

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/calder/pennyworth/internal/tools"
)

// maxPerTurn caps how many notifications ride along with one reply.
const maxPerTurn = 2

// Notification is an unprompted heads-up appended to a reply.
type Notification struct {
	Message  string
	Kind     string
	Priority int
}

// Source produces notifications for a user. Sources must be cheap;
// they run at the end of every turn.
type Source interface {
	Check(ctx context.Context, userID string) ([]Notification, error)
}

// Engine fans out to all registered sources. Source errors are logged
// and swallowed, never surfaced to the user.
type Engine struct {
	sources []Source
	log     *zap.Logger
}

func NewEngine(log *zap.Logger, sources ...Source) *Engine {
	return &Engine{sources: sources, log: log}
}

func (e *Engine) Check(ctx context.Context, userID string) []Notification {
	var out []Notification
	for _, src := range e.sources {
		ns, err := src.Check(ctx, userID)
		if err != nil {
			e.log.Warn("proactive source failed", zap.Error(err))
			continue
		}
		out = append(out, ns...)
		if len(out) >= maxPerTurn {
			return out[:maxPerTurn]
		}
	}
	return out
}

// LowBalanceTrigger warns when any non-credit account dips below the
// threshold.
type LowBalanceTrigger struct {
	Finance   *tools.FinanceProvider
	Threshold float64
}

func (t *LowBalanceTrigger) Check(ctx context.Context, userID string) ([]Notification, error) {
	var out []Notification
	for _, acct := range t.Finance.Accounts(userID) {
		if acct.Type == "credit" {
			continue
		}
		if acct.Balance < t.Threshold {
			out = append(out, Notification{
				Kind:     "low_balance",
				Priority: 1,
				Message: fmt.Sprintf("Heads up: your %s balance is down to $%.2f.",
					acct.Name, acct.Balance),
			})
		}
	}
	return out, nil
}

// UpcomingEventsTrigger mentions events starting within the window,
// one day by default.
type UpcomingEventsTrigger struct {
	Calendar *tools.CalendarProvider
	Window   time.Duration
}

func (t *UpcomingEventsTrigger) Check(ctx context.Context, userID string) ([]Notification, error) {
	window := t.Window
	if window == 0 {
		window = 24 * time.Hour
	}
	now := time.Now()
	var out []Notification
	for _, ev := range t.Calendar.Upcoming(userID, 1) {
		start, err := time.ParseInLocation("2006-01-02 15:04", ev.Start, time.Local)
		if err != nil {
			continue
		}
		if start.After(now) && start.Before(now.Add(window)) {
			out = append(out, Notification{
				Kind:     "upcoming_event",
				Priority: 2,
				Message:  fmt.Sprintf("Reminder: %q at %s.", ev.Title, start.Format("Mon 15:04")),
			})
		}
	}
	return out, nil
}
