package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLogNewestFirst(t *testing.T) {
	l := NewMemoryLog()
	base := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)

	l.Append(Entry{UserID: "u1", Action: "first", At: base})
	l.Append(Entry{UserID: "u1", Action: "second", At: base.Add(time.Minute)})
	l.Append(Entry{UserID: "u2", Action: "other", At: base})

	entries := l.ListByUser("u1", 0)
	require.Len(t, entries, 2)
	assert.Equal(t, "second", entries[0].Action)
	assert.Equal(t, "first", entries[1].Action)
}

func TestMemoryLogLimit(t *testing.T) {
	l := NewMemoryLog()
	for i := 0; i < 5; i++ {
		l.Append(Entry{UserID: "u1", Action: "a"})
	}
	assert.Len(t, l.ListByUser("u1", 3), 3)
	assert.Empty(t, l.ListByUser("nobody", 0))
}

func TestAppendFillsDefaults(t *testing.T) {
	l := NewMemoryLog()
	l.Append(Entry{UserID: "u1", Action: "a", Outcome: OutcomeSuccess})

	entries := l.ListByUser("u1", 1)
	require.Len(t, entries, 1)
	assert.NotZero(t, entries[0].ID)
	assert.False(t, entries[0].At.IsZero())
}
