package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Outcome of an executed action. Failure is an action that ran and
// reported a problem; error is one that never ran cleanly.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeError   Outcome = "error"
)

// Entry records one executed action. Approval-gated actions carry the
// approval that authorized them.
type Entry struct {
	ID         uuid.UUID      `json:"id"`
	UserID     string         `json:"user_id"`
	Capability string         `json:"capability"`
	Action     string         `json:"action"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Outcome    Outcome        `json:"outcome"`
	Error      string         `json:"error,omitempty"`
	PlanID     uuid.UUID      `json:"plan_id,omitempty"`
	StepID     uuid.UUID      `json:"step_id,omitempty"`
	ApprovalID uuid.UUID      `json:"approval_id,omitempty"`
	At         time.Time      `json:"at"`
	Duration   time.Duration  `json:"duration"`
}

// Recorder is an append-only log of executed actions.
type Recorder interface {
	Append(e Entry)
	ListByUser(userID string, limit int) []Entry
}

// MemoryLog keeps entries in memory, newest first on read.
type MemoryLog struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

func (l *MemoryLog) Append(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	l.entries = append(l.entries, e)
}

func (l *MemoryLog) ListByUser(userID string, limit int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Entry
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].UserID != userID {
			continue
		}
		out = append(out, l.entries[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
