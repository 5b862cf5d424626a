package main

import (
	"path/filepath"
	"strings"
	"testing"

	"funcsmith/internal/config"
)

func TestConfigSetPersists(t *testing.T) {
	t.Setenv("FUNCSMITH_MAX_REPAIRS", "")
	t.Setenv("FUNCSMITH_PROVIDER", "")

	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	rt := &runtime{cfg: cfg}

	if _, err := runConfigCommand(rt, []string{"set", "max_repairs", "5"}); err != nil {
		t.Fatalf("config set: %v", err)
	}
	if _, err := runConfigCommand(rt, []string{"set", "log_path", "logs/other.log"}); err != nil {
		t.Fatalf("config set: %v", err)
	}

	reloaded, err := config.Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.MaxRepairs != 5 {
		t.Fatalf("max_repairs = %d, want 5", reloaded.MaxRepairs)
	}
	if reloaded.LogPath != "logs/other.log" {
		t.Fatalf("log_path = %q", reloaded.LogPath)
	}
}

func TestSetConfigFieldRejectsBadInput(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	if err := setConfigField(&cfg, "nonsense", "x"); err == nil {
		t.Fatal("unknown key accepted")
	}
	if err := setConfigField(&cfg, "max_repairs", "many"); err == nil {
		t.Fatal("non-integer max_repairs accepted")
	}
	if err := setConfigField(&cfg, "exec_timeout_seconds", "0"); err == nil {
		t.Fatal("zero timeout accepted")
	}
}

func TestRenderConfigMasksKey(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.APIKey = "sk-secret"
	out := renderConfig(cfg)
	if strings.Contains(out, "sk-secret") {
		t.Fatalf("api key leaked into output:\n%s", out)
	}
	if !strings.Contains(out, "max_repairs") {
		t.Fatalf("missing field in output:\n%s", out)
	}
}
