// Package config loads the daemon configuration. Defaults cover a local
// single-node deployment; a YAML file overlays only the fields it names.
// Secrets never live in the file — they come from the environment.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aegischain/aegisd/internal/alert"
	"github.com/aegischain/aegisd/internal/guardrail"
	"github.com/aegischain/aegisd/internal/reasoner"
	"github.com/aegischain/aegisd/internal/registry"
)

// Config is the full daemon configuration.
type Config struct {
	// Listen is the HTTP API bind address.
	Listen string `yaml:"listen"`
	// DBPath is the SQLite database location.
	DBPath string `yaml:"db_path"`
	// AuditPath is the hash-chained JSONL audit log.
	AuditPath string `yaml:"audit_path"`
	// PendingDir holds transactions parked for manual approval.
	PendingDir string `yaml:"pending_dir"`
	// ThreatsPath points at the pattern overlay file.
	ThreatsPath string `yaml:"threats_path"`

	Engine   guardrail.Config `yaml:"engine"`
	Registry registry.Config  `yaml:"registry"`
	Reasoner ReasonerConfig   `yaml:"reasoner"`
	Alerts   []alert.Config   `yaml:"alerts"`
}

// ReasonerConfig is the YAML-facing shape of the LLM client settings.
// The API key is injected from the environment, never parsed from disk.
type ReasonerConfig struct {
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// RegistryTimeoutSeconds overlays registry.Config.Timeout, which is not
// YAML-visible.
type registryOverlay struct {
	Registry struct {
		TimeoutSeconds int `yaml:"timeout_seconds"`
	} `yaml:"registry"`
}

// Default returns the stock configuration rooted under ~/.aegisd.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	base := filepath.Join(home, ".aegisd")
	return &Config{
		Listen:      "127.0.0.1:8547",
		DBPath:      filepath.Join(base, "aegis.db"),
		AuditPath:   filepath.Join(base, "audit.jsonl"),
		PendingDir:  filepath.Join(base, "pending"),
		ThreatsPath: filepath.Join(base, "threats.yaml"),
		Engine:      guardrail.DefaultConfig(),
		Reasoner: ReasonerConfig{
			Model:          "llama-3.3-70b-versatile",
			TimeoutSeconds: 20,
		},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "aegisd.yaml")
	}
	return filepath.Join(home, ".aegisd", "config.yaml")
}

// Load reads configuration from a YAML file. Empty path falls back to
// DefaultPath. Missing file returns defaults. Invalid YAML is an error.
func Load(path string) (*Config, error) {
	cfg, _, err := LoadWithHash(path)
	return cfg, err
}

// LoadWithHash loads configuration and returns the SHA-256 of the raw
// YAML bytes. When no file exists the hash is over empty input, so a
// defaults-only run is still attributable in logs.
func LoadWithHash(path string) (*Config, string, error) {
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			h := sha256.Sum256(nil)
			return Default(), "sha256:" + hex.EncodeToString(h[:]), nil
		}
		return nil, "", fmt.Errorf("config: read %s: %w", path, err)
	}

	h := sha256.Sum256(data)
	hash := "sha256:" + hex.EncodeToString(h[:])

	// Defaults first; the file overwrites only what it names.
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", fmt.Errorf("config: parse %s: %w", path, err)
	}

	var ov registryOverlay
	if err := yaml.Unmarshal(data, &ov); err == nil && ov.Registry.TimeoutSeconds > 0 {
		cfg.Registry.Timeout = time.Duration(ov.Registry.TimeoutSeconds) * time.Second
	}

	return cfg, hash, nil
}

// ReasonerSettings assembles the LLM client config, pulling the API key
// from AEGIS_LLM_API_KEY with GROQ_API_KEY as a fallback.
func (c *Config) ReasonerSettings() reasoner.Config {
	key := os.Getenv("AEGIS_LLM_API_KEY")
	if key == "" {
		key = os.Getenv("GROQ_API_KEY")
	}
	return reasoner.Config{
		BaseURL: c.Reasoner.BaseURL,
		APIKey:  key,
		Model:   c.Reasoner.Model,
		Timeout: time.Duration(c.Reasoner.TimeoutSeconds) * time.Second,
	}
}

// DefaultConfigYAML returns a commented YAML string for init-config.
func DefaultConfigYAML() string {
	return `# aegisd configuration
# Generated by: aegisd init-config
#
# Defaults are used for anything omitted here. Secrets are read from the
# environment (AEGIS_LLM_API_KEY or GROQ_API_KEY), never from this file.

# HTTP API bind address.
listen: 127.0.0.1:8547

# Storage locations.
# db_path: ~/.aegisd/aegis.db
# audit_path: ~/.aegisd/audit.jsonl
# pending_dir: ~/.aegisd/pending
# threats_path: ~/.aegisd/threats.yaml

# Decision thresholds.
engine:
  block_threshold: 75
  high_value_threshold_eth: 0.5
  daily_limit_eth: 5.0

# On-chain AgentRegistry lookup (optional). Leave rpc_url empty to rely on
# the local store and the conservative default trust score.
registry:
  rpc_url: ""
  contract: ""
  timeout_seconds: 3

# LLM explanations and outcome analysis (optional).
reasoner:
  model: llama-3.3-70b-versatile
  timeout_seconds: 20

# Webhook alerts. Events match verdict decisions.
# alerts:
#   - url: https://hooks.slack.com/services/XXX
#     format: slack
#     events: ["BLOCKED", "PENDING"]
`
}
