package agent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptManagerDefaults(t *testing.T) {
	pm := NewPromptManager("")
	assert.Contains(t, pm.PersonaPrompt(), "Penny")
}

func TestPromptManagerFileOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "persona.md"), []byte("Custom persona"), 0644))

	pm := NewPromptManager(dir)
	assert.Equal(t, "Custom persona", pm.PersonaPrompt())

	// A missing file falls back to the default.
	pm = NewPromptManager(t.TempDir())
	assert.Contains(t, pm.PersonaPrompt(), "Penny")
}
