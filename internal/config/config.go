// Package config handles thinkpartner configuration loading.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/thinkpartner/config.yaml, /etc/thinkpartner/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "thinkpartner", "config.yaml"))
	}

	paths = append(paths, "/etc/thinkpartner/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all thinkpartner configuration.
type Config struct {
	DataDir      string             `yaml:"data_dir"`
	LogLevel     string             `yaml:"log_level"`
	LogFormat    string             `yaml:"log_format"` // text or json
	Models       ModelsConfig       `yaml:"models"`
	Anthropic    AnthropicConfig    `yaml:"anthropic"`
	Gemini       GeminiConfig       `yaml:"gemini"`
	Synthesis    SynthesisConfig    `yaml:"synthesis"`
	Sweep        SweepConfig        `yaml:"sweep"`
	Conversation ConversationConfig `yaml:"conversation"`
}

// AnthropicConfig defines Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
}

// GeminiConfig defines Gemini API settings.
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
}

// ModelsConfig defines which models serve conversation and background work.
type ModelsConfig struct {
	// Default answers the client.
	Default string `yaml:"default"`
	// Background runs synthesis and title generation. Falls back to Default.
	Background string `yaml:"background"`
	// Providers maps model names to a provider: ollama, anthropic, or gemini.
	// Unlisted models go to ollama.
	Providers map[string]string `yaml:"providers"`
	OllamaURL string            `yaml:"ollama_url"`
}

// SynthesisConfig controls document reconciliation.
type SynthesisConfig struct {
	// Incremental enables synthesis after every exchange.
	Incremental bool          `yaml:"incremental"`
	Timeout     time.Duration `yaml:"timeout"`
	// SessionIdle is how long a conversation is quiet before the sweep
	// treats its session as over.
	SessionIdle time.Duration `yaml:"session_idle"`
}

// SweepConfig schedules the idle-session sweep.
type SweepConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"`
}

// ConversationConfig controls how the history window is labeled.
type ConversationConfig struct {
	// ThreeWay prefixes turns with [COACH] or [CLIENT] so the model can
	// tell the human participants apart.
	ThreeWay bool `yaml:"three_way"`
}

// BackgroundModel returns the model for background work.
func (c *Config) BackgroundModel() string {
	if c.Models.Background != "" {
		return c.Models.Background
	}
	return c.Models.Default
}

// DatabasePath returns the sqlite file under DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "thinkpartner.db")
}

var validProviders = map[string]bool{"ollama": true, "anthropic": true, "gemini": true}

// Validate reports configuration problems. All problems are joined into
// one error.
func (c *Config) Validate() error {
	var errs []error

	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	if c.Models.Default == "" {
		errs = append(errs, errors.New("models.default is required"))
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log_format %q (valid: text, json)", c.LogFormat))
	}
	for model, provider := range c.Models.Providers {
		if !validProviders[provider] {
			errs = append(errs, fmt.Errorf("model %s: unknown provider %q", model, provider))
			continue
		}
		if provider == "anthropic" && c.Anthropic.APIKey == "" {
			errs = append(errs, fmt.Errorf("model %s uses anthropic but anthropic.api_key is empty", model))
		}
		if provider == "gemini" && c.Gemini.APIKey == "" {
			errs = append(errs, fmt.Errorf("model %s uses gemini but gemini.api_key is empty", model))
		}
	}
	if c.Synthesis.Timeout < 0 {
		errs = append(errs, errors.New("synthesis.timeout must not be negative"))
	}
	if c.Synthesis.SessionIdle < 0 {
		errs = append(errs, errors.New("synthesis.session_idle must not be negative"))
	}
	if c.Sweep.Enabled {
		p := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := p.Parse(c.Sweep.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("sweep.schedule: %w", err))
		}
	}

	return errors.Join(errs...)
}

// LoadEnvFiles loads .env and .env.local from the working directory.
// Existing environment variables are never overwritten.
func LoadEnvFiles() {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}
}

// Load reads configuration from a YAML file. Values missing from the
// file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	LoadEnvFiles()

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	dataDir := "data"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".local", "share", "thinkpartner")
	}
	return &Config{
		DataDir:   dataDir,
		LogLevel:  "info",
		LogFormat: "text",
		Models: ModelsConfig{
			Default:   "qwen3:8b",
			Providers: map[string]string{},
		},
		Synthesis: SynthesisConfig{
			Incremental: true,
			Timeout:     2 * time.Minute,
			SessionIdle: 30 * time.Minute,
		},
		Sweep: SweepConfig{
			Enabled:  true,
			Schedule: "*/15 * * * *",
		},
		Conversation: ConversationConfig{ThreeWay: true},
	}
}
