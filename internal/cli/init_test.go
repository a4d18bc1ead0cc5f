package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunInitCreatesFiles(t *testing.T) {
	tmpDir := t.TempDir()
	cfgFile = filepath.Join(tmpDir, "config.yaml")
	initForce = false
	defer func() { cfgFile = "" }()

	if err := runInit(nil, nil); err != nil {
		t.Fatalf("runInit failed: %v", err)
	}

	data, err := os.ReadFile(cfgFile)
	if err != nil {
		t.Fatalf("config.yaml not created: %v", err)
	}
	if !strings.Contains(string(data), "block_threshold") {
		t.Error("config.yaml missing engine thresholds")
	}

	data, err = os.ReadFile(filepath.Join(tmpDir, "threats.yaml"))
	if err != nil {
		t.Fatalf("threats.yaml not created: %v", err)
	}
	for _, section := range []string{"exploit_signatures:", "injection_phrases:", "safe_protocols:"} {
		if !strings.Contains(string(data), section) {
			t.Errorf("threats.yaml missing section %q", section)
		}
	}
}

func TestRunInitNoOverwriteWithoutForce(t *testing.T) {
	tmpDir := t.TempDir()
	cfgFile = filepath.Join(tmpDir, "config.yaml")
	initForce = false
	defer func() { cfgFile = "" }()

	sentinel := "# sentinel content\n"
	if err := os.WriteFile(cfgFile, []byte(sentinel), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := runInit(nil, nil); err != nil {
		t.Fatalf("runInit failed: %v", err)
	}

	data, _ := os.ReadFile(cfgFile)
	if string(data) != sentinel {
		t.Error("config.yaml was overwritten without --force")
	}
}

func TestRunInitForceOverwrites(t *testing.T) {
	tmpDir := t.TempDir()
	cfgFile = filepath.Join(tmpDir, "config.yaml")
	initForce = true
	defer func() {
		cfgFile = ""
		initForce = false
	}()

	sentinel := "# sentinel content\n"
	if err := os.WriteFile(cfgFile, []byte(sentinel), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := runInit(nil, nil); err != nil {
		t.Fatalf("runInit failed: %v", err)
	}

	data, _ := os.ReadFile(cfgFile)
	if string(data) == sentinel {
		t.Error("config.yaml was NOT overwritten with --force")
	}
}

func TestWriteIfMissing(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "test.txt")

	initForce = false
	wrote, err := writeIfMissing(path, "hello")
	if err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if !wrote {
		t.Error("first write should return true")
	}

	wrote, err = writeIfMissing(path, "world")
	if err != nil {
		t.Fatalf("second write failed: %v", err)
	}
	if wrote {
		t.Error("second write should return false without force")
	}
	data, _ := os.ReadFile(path)
	if string(data) != "hello" {
		t.Errorf("content changed without force: %q", string(data))
	}

	initForce = true
	defer func() { initForce = false }()
	wrote, err = writeIfMissing(path, "world")
	if err != nil {
		t.Fatalf("force write failed: %v", err)
	}
	if !wrote {
		t.Error("force write should return true")
	}
	data, _ = os.ReadFile(path)
	if string(data) != "world" {
		t.Errorf("force write didn't overwrite: %q", string(data))
	}
}

func TestDefaultThreatsYAML(t *testing.T) {
	content, err := defaultThreatsYAML()
	if err != nil {
		t.Fatalf("defaultThreatsYAML failed: %v", err)
	}
	if !strings.HasPrefix(content, "# aegisd threat patterns") {
		t.Error("missing header comment")
	}
	if !strings.Contains(content, "0x853828b6") && !strings.Contains(content, "0x853828B6") {
		t.Error("missing known exploit selector")
	}
}
