// Package config defines the runtime configuration and its YAML loader.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the relay runtime.
type Config struct {
	Workspace string `yaml:"workspace"`

	LLM        LLMConfig        `yaml:"llm"`
	Agent      AgentConfig      `yaml:"agent"`
	Compaction CompactionConfig `yaml:"compaction"`
	Session    SessionConfig    `yaml:"session"`
	Channels   ChannelsConfig   `yaml:"channels"`
	Cron       CronConfig       `yaml:"cron"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// LLMConfig selects and configures the model provider.
type LLMConfig struct {
	// Provider is "anthropic" or "openai".
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`

	// ContextWindow is the token budget for a single request. Compaction
	// keeps cumulative history within a fraction of this budget.
	ContextWindow int `yaml:"context_window"`

	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// AgentConfig tunes the turn-processing loop.
type AgentConfig struct {
	MaxIterations int     `yaml:"max_iterations"`
	MaxTokens     int     `yaml:"max_tokens"`
	Temperature   float64 `yaml:"temperature"`

	// ShellTimeout bounds the exec tool.
	ShellTimeout time.Duration `yaml:"shell_timeout"`
}

// CompactionConfig tunes background history compaction.
type CompactionConfig struct {
	// MessageThreshold triggers compaction when history grows past it.
	MessageThreshold int `yaml:"message_threshold"`

	// TokenPercent triggers compaction when estimated history tokens
	// exceed this percentage of the context window.
	TokenPercent int `yaml:"token_percent"`

	// RecentKeep is the number of most recent messages retained verbatim.
	RecentKeep int `yaml:"recent_keep"`

	// BatchThreshold is the survivor count above which summarization is
	// split into two batches plus a merge pass.
	BatchThreshold int `yaml:"batch_threshold"`
}

// SessionConfig selects session persistence.
type SessionConfig struct {
	// Backend is "sqlite" or "memory".
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// ChannelsConfig enables platform adapters.
type ChannelsConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Slack    SlackConfig    `yaml:"slack"`
}

// TelegramConfig configures the Telegram adapter.
type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

// SlackConfig configures the Slack Socket Mode adapter.
type SlackConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	AppToken string `yaml:"app_token"`
}

// CronConfig holds scheduled agent jobs.
type CronConfig struct {
	Jobs []CronJob `yaml:"jobs"`
}

// CronJob is one scheduled prompt. When it fires, the scheduler publishes a
// system message whose chat id carries "channel:chatId" so the reply can be
// routed back to the originating conversation.
type CronJob struct {
	Name     string `yaml:"name"`
	Schedule string `yaml:"schedule"`
	Message  string `yaml:"message"`
	Channel  string `yaml:"channel"`
	ChatID   string `yaml:"chat_id"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Default returns a configuration with all tunables at their defaults.
func Default() *Config {
	return &Config{
		Workspace: defaultWorkspace(),
		LLM: LLMConfig{
			Provider:      "anthropic",
			Model:         "claude-sonnet-4-20250514",
			ContextWindow: 200000,
			MaxRetries:    3,
			RetryDelay:    time.Second,
		},
		Agent: AgentConfig{
			MaxIterations: 10,
			MaxTokens:     8192,
			Temperature:   0.7,
			ShellTimeout:  60 * time.Second,
		},
		Compaction: CompactionConfig{
			MessageThreshold: 20,
			TokenPercent:     75,
			RecentKeep:       4,
			BatchThreshold:   10,
		},
		Session: SessionConfig{
			Backend: "sqlite",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9091",
		},
	}
}

// Load reads a YAML config file, expands ${ENV} references, and applies
// defaults for any unset tunables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadOrDefault loads the config at path if it exists, otherwise returns
// the defaults.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.Workspace == "" {
		c.Workspace = d.Workspace
	}
	if c.LLM.Model == "" {
		c.LLM.Model = d.LLM.Model
	}
	if c.LLM.ContextWindow <= 0 {
		c.LLM.ContextWindow = d.LLM.ContextWindow
	}
	if c.LLM.MaxRetries <= 0 {
		c.LLM.MaxRetries = d.LLM.MaxRetries
	}
	if c.LLM.RetryDelay <= 0 {
		c.LLM.RetryDelay = d.LLM.RetryDelay
	}
	if c.Agent.MaxIterations <= 0 {
		c.Agent.MaxIterations = d.Agent.MaxIterations
	}
	if c.Agent.MaxTokens <= 0 {
		c.Agent.MaxTokens = d.Agent.MaxTokens
	}
	if c.Agent.Temperature <= 0 {
		c.Agent.Temperature = d.Agent.Temperature
	}
	if c.Agent.ShellTimeout <= 0 {
		c.Agent.ShellTimeout = d.Agent.ShellTimeout
	}
	if c.Compaction.MessageThreshold <= 0 {
		c.Compaction.MessageThreshold = d.Compaction.MessageThreshold
	}
	if c.Compaction.TokenPercent <= 0 {
		c.Compaction.TokenPercent = d.Compaction.TokenPercent
	}
	if c.Compaction.RecentKeep <= 0 {
		c.Compaction.RecentKeep = d.Compaction.RecentKeep
	}
	if c.Compaction.BatchThreshold <= 0 {
		c.Compaction.BatchThreshold = d.Compaction.BatchThreshold
	}
	if c.Session.Backend == "" {
		c.Session.Backend = d.Session.Backend
	}
	if c.Session.Path == "" {
		c.Session.Path = filepath.Join(c.Workspace, "sessions.db")
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = d.Metrics.Addr
	}
}

func defaultWorkspace() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".relay"
	}
	return filepath.Join(home, ".relay", "workspace")
}
