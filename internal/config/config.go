// Package config handles time capsule daemon configuration.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config holds all configuration
type Config struct {
	// Paths
	DataDir string `json:"data_dir"`

	// Server
	Server ServerConfig `json:"server"`

	// Scheduler
	Scheduler SchedulerConfig `json:"scheduler"`

	// Webhook delivery
	Webhook WebhookConfig `json:"webhook"`

	// Features
	Features FeatureConfig `json:"features"`
}

// ServerConfig for HTTP server
type ServerConfig struct {
	Port int    `json:"port"`
	Host string `json:"host"`
}

// SchedulerConfig for the delivery loop
type SchedulerConfig struct {
	IntervalSeconds       int `json:"interval_seconds"`
	ChannelTimeoutSeconds int `json:"channel_timeout_seconds"`
}

// WebhookConfig for the outbound webhook channel
type WebhookConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
	Token   string `json:"token"`
}

// FeatureConfig for feature flags
type FeatureConfig struct {
	EnableWebSocket bool `json:"enable_websocket"`
	EnableConsole   bool `json:"enable_console"`
	DebugMode       bool `json:"debug_mode"`
}

// Default returns default configuration
func Default() *Config {
	home, _ := os.UserHomeDir()

	return &Config{
		DataDir: filepath.Join(home, ".timecapsule"),
		Server: ServerConfig{
			Port: 8090,
			Host: "localhost",
		},
		Scheduler: SchedulerConfig{
			IntervalSeconds:       60,
			ChannelTimeoutSeconds: 10,
		},
		Webhook: WebhookConfig{
			Enabled: false,
			Token:   os.Getenv("TIMECAPSULE_WEBHOOK_TOKEN"),
		},
		Features: FeatureConfig{
			EnableWebSocket: true,
			EnableConsole:   true,
			DebugMode:       false,
		},
	}
}

// Load loads config from file, falling back to defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = filepath.Join(cfg.DataDir, "config.json")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Use defaults
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// Override token from env if set
	if token := os.Getenv("TIMECAPSULE_WEBHOOK_TOKEN"); token != "" {
		cfg.Webhook.Token = token
	}

	return cfg, nil
}

// Save saves config to file
func (c *Config) Save(path string) error {
	if path == "" {
		path = filepath.Join(c.DataDir, "config.json")
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	// Don't save the webhook token to file
	safeCfg := *c
	safeCfg.Webhook.Token = ""

	data, err := json.MarshalIndent(safeCfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// DatabasePath returns the sqlite file location under the data dir
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "timecapsule.db")
}
