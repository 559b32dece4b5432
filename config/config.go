// Package config loads application configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envFile = "config/.env"

// NewConfig loads configuration from environment using viper with typed
// defaults and validation.
func NewConfig() (*Config, error) {
	v := viper.New()
	if envMap, err := godotenv.Read(envFile); err == nil {
		for k, val := range envMap {
			if _, exists := os.LookupEnv(k); !exists {
				_ = os.Setenv(k, val)
			}
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvs(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("gate.config_path", "gate.yaml")
	v.SetDefault("gate.integration_branch", "main")
	v.SetDefault("gate.repo_root", ".")
	v.SetDefault("gate.run_timeout", 5*time.Minute)

	v.SetDefault("automerge.enabled", false)
	v.SetDefault("automerge.identity", "")

	v.SetDefault("journal.path", "journal.jsonl")
	v.SetDefault("journal.key_dir", "keys")

	v.SetDefault("logs.dir", "logs")
}

func bindEnvs(v *viper.Viper) {
	keys := []string{
		"logging.level",
		"server.host",
		"server.port",
		"server.shutdown_timeout",
		"gate.config_path",
		"gate.integration_branch",
		"gate.repo_root",
		"gate.run_timeout",
		"webhook.secret",
		"automerge.enabled",
		"automerge.identity",
		"journal.path",
		"journal.key_dir",
		"logs.dir",
		"agent.url",
	}

	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}
