// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package chat

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the deployment configuration for the chat service and its
// downstream clients. Values come from sophia.config.yaml when present,
// with environment variables taking precedence for secrets.
type Config struct {
	// Port is the HTTP listen port.
	Port int `yaml:"port"`

	// MaxTurns caps the per-conversation history window.
	MaxTurns int `yaml:"max_turns"`

	// BMC configures the incident lookup client.
	BMC BMCConfig `yaml:"bmc"`

	// Reset configures the password reset job client.
	Reset ResetConfig `yaml:"reset"`
}

// BMCConfig holds the ticketing endpoint settings. The password never comes
// from YAML.
type BMCConfig struct {
	BaseURL  string `yaml:"base_url"`
	Username string `yaml:"username"`
	Password string `yaml:"-"`
}

// ResetConfig holds the reset job service settings. The bearer token never
// comes from YAML.
type ResetConfig struct {
	BaseURL      string        `yaml:"base_url"`
	BearerToken  string        `yaml:"-"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxAttempts  int           `yaml:"max_attempts"`
}

// LoadConfig builds the service configuration.
//
// Description:
//
//	Reads sophia.config.yaml from the working directory when it exists (a
//	missing file is not an error), then overlays environment variables:
//	SOPHIA_PORT, SOPHIA_MAX_TURNS, BMC_BASE_URL, BMC_USERNAME,
//	BMC_PASSWORD, RESET_BASE_URL, RESET_BEARER_TOKEN,
//	RESET_POLL_INTERVAL_SECONDS, RESET_MAX_ATTEMPTS. Secrets are
//	env-only. The Gemini settings (GEMINI_API_KEY, GEMINI_MODEL) are read
//	by the llm package directly.
//
// Outputs:
//
//	*Config - The merged configuration with defaults applied.
//	error - Non-nil only if the config file exists but has invalid YAML.
//
// Thread Safety: Safe for concurrent use (stateless function).
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:     8080,
		MaxTurns: 12,
		Reset: ResetConfig{
			PollInterval: 5 * time.Second,
			MaxAttempts:  12,
		},
	}

	data, err := os.ReadFile("sophia.config.yaml")
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("chat: reading sophia.config.yaml: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("chat: parsing sophia.config.yaml: %w", err)
	}

	cfg.Port = envInt("SOPHIA_PORT", cfg.Port)
	cfg.MaxTurns = envInt("SOPHIA_MAX_TURNS", cfg.MaxTurns)

	cfg.BMC.BaseURL = envString("BMC_BASE_URL", cfg.BMC.BaseURL)
	cfg.BMC.Username = envString("BMC_USERNAME", cfg.BMC.Username)
	cfg.BMC.Password = os.Getenv("BMC_PASSWORD")

	cfg.Reset.BaseURL = envString("RESET_BASE_URL", cfg.Reset.BaseURL)
	cfg.Reset.BearerToken = os.Getenv("RESET_BEARER_TOKEN")
	if secs := envInt("RESET_POLL_INTERVAL_SECONDS", 0); secs > 0 {
		cfg.Reset.PollInterval = time.Duration(secs) * time.Second
	}
	cfg.Reset.MaxAttempts = envInt("RESET_MAX_ATTEMPTS", cfg.Reset.MaxAttempts)

	return cfg, nil
}

// envString reads a string environment variable with a default value.
func envString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// envInt reads an integer environment variable with a default value.
func envInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
