package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/calder/pennyworth/internal/approval"
	"github.com/calder/pennyworth/internal/audit"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestHistoryRoundTrip(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.AddMessage("chat1", "human", "what's my balance?"))
	require.NoError(t, s.AddMessage("chat1", "ai", "You have $3,240."))
	require.NoError(t, s.AddMessage("chat2", "human", "other chat"))

	history, err := s.GetHistory("chat1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)

	// Chronological order, roles mapped.
	assert.Equal(t, llms.ChatMessageTypeHuman, history[0].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, history[1].Role)
}

func TestRecentUsers(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddMessage("chat1", "human", "hi"))
	require.NoError(t, s.AddMessage("chat2", "human", "hello"))

	users, err := s.RecentUsers(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"chat1", "chat2"}, users)
}

func TestApprovalStorePersistence(t *testing.T) {
	s := newTestStore(t)
	m := approval.NewManager(s.Approvals(), 0, zap.NewNop())

	created := m.Create(approval.CreateRequest{
		UserID:      "u1",
		Capability:  "finance",
		Action:      "schedule_payment",
		Description: "Pay rent",
		Parameters:  map[string]any{"amount": 1200.0},
	})

	got, found := m.Get(created.ID)
	require.True(t, found)
	assert.Equal(t, approval.StatusPending, got.Status)
	assert.Equal(t, "schedule_payment", got.Action)
	assert.Equal(t, 1200.0, got.Parameters["amount"])

	// Status updates overwrite the stored row.
	_, err := m.Approve(created.ID, nil)
	require.NoError(t, err)
	got, _ = m.Get(created.ID)
	assert.Equal(t, approval.StatusApproved, got.Status)

	assert.Len(t, s.Approvals().ListByUser("u1"), 1)
	assert.Empty(t, s.Approvals().ListByUser("u2"))
}

func TestAuditLogPersistence(t *testing.T) {
	s := newTestStore(t)
	l := s.AuditLog()

	base := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	l.Append(audit.Entry{UserID: "u1", Capability: "finance", Action: "first", Outcome: audit.OutcomeSuccess, At: base})
	l.Append(audit.Entry{UserID: "u1", Capability: "finance", Action: "second", Outcome: audit.OutcomeFailure, At: base.Add(time.Minute)})

	entries := l.ListByUser("u1", 10)
	require.Len(t, entries, 2)
	assert.Equal(t, "second", entries[0].Action)
	assert.Equal(t, audit.OutcomeFailure, entries[0].Outcome)
	assert.Equal(t, "first", entries[1].Action)
}
