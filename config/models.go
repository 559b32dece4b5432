package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Gate      GateConfig      `mapstructure:"gate"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	AutoMerge AutoMergeConfig `mapstructure:"automerge"`
	Journal   JournalConfig   `mapstructure:"journal"`
	Logs      LogsConfig      `mapstructure:"logs"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// Validate ensures required fields are present.
func (c Config) Validate() error {
	if c.Server.Port == 0 {
		return errors.New("server.port is required")
	}
	if c.Gate.ConfigPath == "" {
		return errors.New("gate.config_path is required")
	}
	if c.Gate.IntegrationBranch == "" {
		return errors.New("gate.integration_branch is required")
	}
	if c.AutoMerge.Enabled && c.AutoMerge.Identity == "" {
		return errors.New("automerge.identity is required when automerge is enabled")
	}
	return nil
}

// ServerAddr returns host:port for HTTP server binding.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ServerConfig contains HTTP server options.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// GateConfig locates the gate configuration and scopes evaluations.
type GateConfig struct {
	ConfigPath        string        `mapstructure:"config_path"`
	IntegrationBranch string        `mapstructure:"integration_branch"`
	RepoRoot          string        `mapstructure:"repo_root"`
	RunTimeout        time.Duration `mapstructure:"run_timeout"`
}

// WebhookConfig authenticates the event feed.
type WebhookConfig struct {
	Secret string `mapstructure:"secret"`
}

// AutoMergeConfig gates the auto-merge actor.
type AutoMergeConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Identity string `mapstructure:"identity"`
}

// JournalConfig locates the run journal and its signing keys.
type JournalConfig struct {
	Path   string `mapstructure:"path"`
	KeyDir string `mapstructure:"key_dir"`
}

// LogsConfig locates run log storage.
type LogsConfig struct {
	Dir string `mapstructure:"dir"`
}

// AgentConfig points at a remote execution agent. Empty URL means runs
// execute locally.
type AgentConfig struct {
	URL string `mapstructure:"url"`
}

// LoggingConfig contains logger preferences.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}
