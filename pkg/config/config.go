package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App       AppConfig                 `json:"app" yaml:"app"`
	Gateways  map[string]GatewayConfig  `json:"gateways" yaml:"gateways"`
	Providers map[string]ProviderConfig `json:"providers" yaml:"providers"`
	Memory    MemoryConfig              `json:"memory" yaml:"memory"`
	Agent     AgentConfig               `json:"agent" yaml:"agent"`
}

type AppConfig struct {
	Name        string `json:"name" yaml:"name"`
	Environment string `json:"environment" yaml:"environment"` // development or production
	PromptsDir  string `json:"prompts_dir" yaml:"prompts_dir"`
}

type GatewayConfig struct {
	Token   string `json:"token" yaml:"token"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

type ProviderConfig struct {
	APIKey  string `json:"api_key" yaml:"api_key"`
	Model   string `json:"model" yaml:"model"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

type MemoryConfig struct {
	Path string `json:"path" yaml:"path"`
}

type AgentConfig struct {
	// MaxIterations bounds the plan/execute loop within a single turn.
	MaxIterations int `json:"max_iterations" yaml:"max_iterations"`
	// ApprovalTTLHours is the default lifetime of a pending approval.
	ApprovalTTLHours int `json:"approval_ttl_hours" yaml:"approval_ttl_hours"`
	// MinActionConfidence is the classifier confidence below which a
	// message is handled as plain conversation.
	MinActionConfidence float64 `json:"min_action_confidence" yaml:"min_action_confidence"`
	// HistoryWindow is how many prior messages feed the classifier.
	HistoryWindow int `json:"history_window" yaml:"history_window"`
}

// Load reads a JSON or YAML config file, picking the decoder by extension.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "pennyworth"
	}
	if c.App.Environment == "" {
		c.App.Environment = "production"
	}
	if c.App.PromptsDir == "" {
		c.App.PromptsDir = "./prompts"
	}
	if c.Memory.Path == "" {
		c.Memory.Path = "pennyworth.db"
	}
	if c.Agent.MaxIterations <= 0 {
		c.Agent.MaxIterations = 8
	}
	if c.Agent.ApprovalTTLHours <= 0 {
		c.Agent.ApprovalTTLHours = 24
	}
	if c.Agent.MinActionConfidence <= 0 {
		c.Agent.MinActionConfidence = 0.5
	}
	if c.Agent.HistoryWindow <= 0 {
		c.Agent.HistoryWindow = 10
	}
}

// DefaultProvider returns the first enabled LLM provider.
func (c *Config) DefaultProvider() (string, ProviderConfig) {
	for name, p := range c.Providers {
		if p.Enabled {
			return name, p
		}
	}
	return "", ProviderConfig{}
}

// Gateway returns the named gateway config if enabled.
func (c *Config) Gateway(name string) (GatewayConfig, bool) {
	g, ok := c.Gateways[name]
	if ok && g.Enabled && g.Token != "" {
		return g, true
	}
	return GatewayConfig{}, false
}
