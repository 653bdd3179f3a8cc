package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
		"app": {"name": "penny", "environment": "development"},
		"gateways": {"telegram": {"token": "tg-token", "enabled": true}},
		"providers": {"openai": {"api_key": "sk-test", "model": "gpt-4o", "enabled": true}},
		"agent": {"max_iterations": 5}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "penny", cfg.App.Name)
	assert.Equal(t, 5, cfg.Agent.MaxIterations)

	name, p := cfg.DefaultProvider()
	assert.Equal(t, "openai", name)
	assert.Equal(t, "gpt-4o", p.Model)

	gw, enabled := cfg.Gateway("telegram")
	require.True(t, enabled)
	assert.Equal(t, "tg-token", gw.Token)

	_, enabled = cfg.Gateway("discord")
	assert.False(t, enabled)
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
app:
  name: penny
providers:
  openrouter:
    api_key: or-key
    model: gpt-4o-mini
    base_url: https://openrouter.ai/api/v1
    enabled: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	name, p := cfg.DefaultProvider()
	assert.Equal(t, "openrouter", name)
	assert.Equal(t, "https://openrouter.ai/api/v1", p.BaseURL)
}

func TestDefaultsApplied(t *testing.T) {
	path := writeConfig(t, "config.json", `{}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Agent.MaxIterations)
	assert.Equal(t, 24, cfg.Agent.ApprovalTTLHours)
	assert.Equal(t, 0.5, cfg.Agent.MinActionConfidence)
	assert.Equal(t, 10, cfg.Agent.HistoryWindow)
	assert.Equal(t, "production", cfg.App.Environment)
	assert.NotEmpty(t, cfg.Memory.Path)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.json")
	assert.Error(t, err)
}
