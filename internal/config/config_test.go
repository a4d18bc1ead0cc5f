package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, hash, err := LoadWithHash(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != "127.0.0.1:8547" || cfg.Engine.BlockThreshold != 75 {
		t.Errorf("defaults = %+v", cfg)
	}
	// SHA-256 of empty input.
	if hash != "sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("hash = %s", hash)
	}
}

func TestLoadOverlaysOnlyNamedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
listen: 0.0.0.0:9000
engine:
  daily_limit_eth: 10.0
registry:
  rpc_url: http://localhost:8545
  contract: "0x5fbdb2315678afecb367f032d93f642f64180aa3"
  timeout_seconds: 7
`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, hash, err := LoadWithHash(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != "0.0.0.0:9000" {
		t.Errorf("listen = %s", cfg.Listen)
	}
	if cfg.Engine.DailyLimit != 10.0 {
		t.Errorf("daily limit = %v", cfg.Engine.DailyLimit)
	}
	// Unspecified engine fields keep defaults.
	if cfg.Engine.BlockThreshold != 75 || cfg.Engine.HighValueThreshold != 0.5 {
		t.Errorf("engine = %+v", cfg.Engine)
	}
	if cfg.Registry.RPCURL != "http://localhost:8545" {
		t.Errorf("registry = %+v", cfg.Registry)
	}
	if cfg.Registry.Timeout != 7*time.Second {
		t.Errorf("registry timeout = %v", cfg.Registry.Timeout)
	}
	if !strings.HasPrefix(hash, "sha256:") {
		t.Errorf("hash = %s", hash)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("listen: [not, a, string"), 0600)
	if _, err := Load(path); err == nil {
		t.Error("invalid YAML accepted")
	}
}

func TestReasonerSettingsPullsKeyFromEnv(t *testing.T) {
	t.Setenv("AEGIS_LLM_API_KEY", "primary")
	t.Setenv("GROQ_API_KEY", "fallback")

	cfg := Default()
	rc := cfg.ReasonerSettings()
	if rc.APIKey != "primary" {
		t.Errorf("api key = %q", rc.APIKey)
	}
	if rc.Model != "llama-3.3-70b-versatile" || rc.Timeout != 20*time.Second {
		t.Errorf("settings = %+v", rc)
	}

	t.Setenv("AEGIS_LLM_API_KEY", "")
	if rc := cfg.ReasonerSettings(); rc.APIKey != "fallback" {
		t.Errorf("fallback key = %q", rc.APIKey)
	}
}

func TestDefaultConfigYAMLRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(DefaultConfigYAML()), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Engine.BlockThreshold != 75 || cfg.Reasoner.Model == "" {
		t.Errorf("parsed template = %+v", cfg)
	}
}
