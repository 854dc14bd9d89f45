package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"contract-engine/service"
)

// Env override names. The YAML file is optional; env vars win over it.
const (
	ConfigPathEnv  = "CONTRACT_ENGINE_CONFIG"
	databaseDSNEnv = "DATABASE_DSN"
	jwtSecretEnv   = "JWT_SECRET"
	ollamaPathEnv  = "OLLAMA_PATH"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig selects the storage driver: "postgres" for deployments,
// "memory" for single-node dev mode.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type ExtractorConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type SchedulerConfig struct {
	CronSpec                string `yaml:"cron_spec"`
	service.SchedulerConfig `yaml:",inline"`
}

// getEnv returns the env value or a fallback.
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// Load reads the YAML file (optional) and applies env overrides and
// defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.Database.DSN = getEnv(databaseDSNEnv, cfg.Database.DSN)
	cfg.Auth.JWTSecret = getEnv(jwtSecretEnv, cfg.Auth.JWTSecret)
	cfg.Extractor.BaseURL = getEnv(ollamaPathEnv, cfg.Extractor.BaseURL)

	// Defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8081
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "memory"
	}
	if cfg.Extractor.BaseURL == "" {
		cfg.Extractor.BaseURL = "http://localhost:11434"
	}
	if cfg.Extractor.Model == "" {
		cfg.Extractor.Model = "qwen2.5:3b"
	}
	if cfg.Scheduler.CronSpec == "" {
		cfg.Scheduler.CronSpec = "@hourly"
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth.jwt_secret is required (set %s)", jwtSecretEnv)
	}
	if cfg.Database.Driver == "postgres" && cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required for the postgres driver (set %s)", databaseDSNEnv)
	}
	return &cfg, nil
}
