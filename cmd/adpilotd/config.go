// Copyright 2026 AdPilot
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"fmt"

	"github.com/spf13/viper"
)

// DefaultConfigFileName is the name of the config file.
const DefaultConfigFileName = "adpilotd"

// Config holds all configuration for the AdPilot server.
// Priority: CLI flags > config file > env vars > defaults
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	LLM         LLMConfig         `mapstructure:"llm"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Chat        ChatConfig        `mapstructure:"chat"`
	Summarizer  SummarizerConfig  `mapstructure:"summarizer"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LLMConfig holds model gateway configuration.
type LLMConfig struct {
	Provider string `mapstructure:"provider"` // anthropic, bedrock

	// Anthropic-specific
	AnthropicAPIKey string `mapstructure:"anthropic_api_key"` // From CLI/env only
	AnthropicModel  string `mapstructure:"anthropic_model"`

	// Bedrock-specific
	BedrockRegion          string `mapstructure:"bedrock_region"`
	BedrockAccessKeyID     string `mapstructure:"bedrock_access_key_id"`     // From CLI/env only
	BedrockSecretAccessKey string `mapstructure:"bedrock_secret_access_key"` // From CLI/env only
	BedrockSessionToken    string `mapstructure:"bedrock_session_token"`     // From CLI/env only
	BedrockProfile         string `mapstructure:"bedrock_profile"`
	BedrockModelID         string `mapstructure:"bedrock_model_id"`

	// Common generation parameters
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int64   `mapstructure:"max_tokens"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ChatConfig holds turn pipeline configuration.
type ChatConfig struct {
	// MaxRounds bounds the tool-calling loop per turn.
	MaxRounds int `mapstructure:"max_rounds"`

	// WindowSize is the number of recent turns loaded as model context.
	WindowSize int `mapstructure:"window_size"`
}

// SummarizerConfig holds background summarization configuration.
type SummarizerConfig struct {
	// ThresholdTokens is the cumulative size that triggers summarization.
	ThresholdTokens int `mapstructure:"threshold_tokens"`
}

// MaintenanceConfig holds the housekeeping sweep configuration.
type MaintenanceConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Schedule is a cron expression or descriptor like "@hourly".
	Schedule string `mapstructure:"schedule"`

	// EmptyTTLHours is how long an empty conversation survives.
	EmptyTTLHours int `mapstructure:"empty_ttl_hours"`
}

// RateLimitConfig holds gateway rate limiting configuration.
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	BurstCapacity     int     `mapstructure:"burst_capacity"`
	MaxRetries        int     `mapstructure:"max_retries"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json
}

// LoadConfig loads configuration from multiple sources with proper priority:
// 1. Command line flags (highest priority)
// 2. Config file
// 3. Environment variables
// 4. Defaults (lowest priority)
func LoadConfig(cfgFile string) (*Config, error) {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/adpilot/")
		viper.SetConfigName(DefaultConfigFileName)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file %s: %w", viper.ConfigFileUsed(), err)
		}
		// Config file not found; using defaults + env vars + flags
	}

	viper.SetEnvPrefix("ADPILOT")
	viper.AutomaticEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 5080)

	viper.SetDefault("llm.provider", "anthropic")
	viper.SetDefault("llm.anthropic_model", "claude-sonnet-4-5")
	viper.SetDefault("llm.bedrock_region", "us-west-2")
	viper.SetDefault("llm.bedrock_model_id", "us.anthropic.claude-sonnet-4-5-20250929-v1:0")
	viper.SetDefault("llm.temperature", 0.7)
	viper.SetDefault("llm.max_tokens", 4096)

	viper.SetDefault("database.path", "./adpilot.db")

	viper.SetDefault("chat.max_rounds", 5)
	viper.SetDefault("chat.window_size", 80)

	viper.SetDefault("summarizer.threshold_tokens", 24000)

	viper.SetDefault("maintenance.enabled", true)
	viper.SetDefault("maintenance.schedule", "@hourly")
	viper.SetDefault("maintenance.empty_ttl_hours", 24)

	viper.SetDefault("rate_limit.enabled", false)
	viper.SetDefault("rate_limit.requests_per_second", 2.0)
	viper.SetDefault("rate_limit.burst_capacity", 5)
	viper.SetDefault("rate_limit.max_retries", 5)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Server.Port)
	}

	switch c.LLM.Provider {
	case "anthropic":
		// API key may come from ANTHROPIC_API_KEY at client construction.
	case "bedrock":
		if c.LLM.BedrockRegion == "" {
			return fmt.Errorf("bedrock region is required (set llm.bedrock_region in config or ADPILOT_LLM_BEDROCK_REGION env var)")
		}
	default:
		return fmt.Errorf("unsupported LLM provider: %s (must be anthropic or bedrock)", c.LLM.Provider)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	return nil
}
