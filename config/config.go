//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.
// All rights reserved.
//
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tRPC source code is licensed under the  Apache 2.0 License,
// A copy of the Apache 2.0 License is included in this file.
//
//

// Package config loads consultd settings from a yaml file, CONSULT_*
// environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultConfigName is the file looked up when no path is given.
const DefaultConfigName = "consultd"

// EnvPrefix prefixes every environment override, e.g. CONSULT_SERVER_ADDR.
const EnvPrefix = "CONSULT"

// Checkpoint backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Agent backends.
const (
	AgentScripted = "scripted"
	AgentOpenAI   = "openai"
)

// Config is the full consultd configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	Executor   ExecutorConfig   `mapstructure:"executor"`
	Agent      AgentConfig      `mapstructure:"agent"`
	Log        LogConfig        `mapstructure:"log"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	BasePath        string        `mapstructure:"base_path"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// CheckpointConfig selects and tunes the checkpoint store.
type CheckpointConfig struct {
	Backend       string        `mapstructure:"backend"`
	SQLitePath    string        `mapstructure:"sqlite_path"`
	RedisURL      string        `mapstructure:"redis_url"`
	TTL           time.Duration `mapstructure:"ttl"`
	MaxPerLineage int           `mapstructure:"max_per_lineage"`
}

// ExecutorConfig tunes the graph executor.
type ExecutorConfig struct {
	MaxSteps   int `mapstructure:"max_steps"`
	BufferSize int `mapstructure:"buffer_size"`
	// PoolSize bounds concurrently running turns. Zero runs each turn on its
	// own goroutine.
	PoolSize int `mapstructure:"pool_size"`
}

// AgentConfig selects the agents that staff the workflow.
type AgentConfig struct {
	Backend string `mapstructure:"backend"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// LogConfig configures the log package.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig configures OTLP export.
type TelemetryConfig struct {
	Traces   bool   `mapstructure:"traces"`
	Metrics  bool   `mapstructure:"metrics"`
	Endpoint string `mapstructure:"endpoint"`
	Protocol string `mapstructure:"protocol"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.base_path", "/api")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("checkpoint.backend", BackendMemory)
	v.SetDefault("checkpoint.sqlite_path", "consult.db")
	v.SetDefault("checkpoint.redis_url", "redis://localhost:6379/0")
	v.SetDefault("checkpoint.ttl", 24*time.Hour)
	v.SetDefault("checkpoint.max_per_lineage", 100)

	v.SetDefault("executor.max_steps", 50)
	v.SetDefault("executor.buffer_size", 64)
	v.SetDefault("executor.pool_size", 256)

	v.SetDefault("agent.backend", AgentScripted)
	v.SetDefault("agent.model", "gpt-4o-mini")
	v.SetDefault("agent.base_url", "")
	v.SetDefault("agent.api_key", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("telemetry.traces", false)
	v.SetDefault("telemetry.metrics", false)
	v.SetDefault("telemetry.endpoint", "localhost:4317")
	v.SetDefault("telemetry.protocol", "grpc")
}

// Load reads cfgFile, or ./consultd.yaml when cfgFile is empty, applies
// environment overrides and returns the validated result. A missing default
// file is not an error.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	SetDefaults(v)
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config %s: %w", v.ConfigFileUsed(), err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the enumerated keys and the settings each backend needs.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	switch c.Checkpoint.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Checkpoint.SQLitePath == "" {
			return errors.New("checkpoint.sqlite_path is required for the sqlite backend")
		}
	case BackendRedis:
		if c.Checkpoint.RedisURL == "" {
			return errors.New("checkpoint.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown checkpoint.backend %q (memory, sqlite, redis)", c.Checkpoint.Backend)
	}
	if c.Checkpoint.TTL < 0 {
		return fmt.Errorf("invalid checkpoint.ttl: %s", c.Checkpoint.TTL)
	}
	if c.Checkpoint.MaxPerLineage < 1 {
		return fmt.Errorf("invalid checkpoint.max_per_lineage: %d (must be >= 1)", c.Checkpoint.MaxPerLineage)
	}
	if c.Executor.MaxSteps < 1 {
		return fmt.Errorf("invalid executor.max_steps: %d (must be >= 1)", c.Executor.MaxSteps)
	}
	if c.Executor.BufferSize < 0 || c.Executor.PoolSize < 0 {
		return errors.New("executor.buffer_size and executor.pool_size must not be negative")
	}
	switch c.Agent.Backend {
	case AgentScripted:
	case AgentOpenAI:
		if c.Agent.Model == "" {
			return errors.New("agent.model is required for the openai backend")
		}
	default:
		return fmt.Errorf("unknown agent.backend %q (scripted, openai)", c.Agent.Backend)
	}
	switch c.Telemetry.Protocol {
	case "grpc", "http":
	default:
		return fmt.Errorf("unknown telemetry.protocol %q (grpc, http)", c.Telemetry.Protocol)
	}
	return nil
}
