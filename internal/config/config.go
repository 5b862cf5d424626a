// Package config loads the persisted funcsmith configuration. Environment
// variables override file values so containerized runs never need a config
// file on disk.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config is the only persisted config file schema.
type Config struct {
	// Provider selects the oracle backend: "openai", "anthropic" or "stub".
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`

	// StoreDriver selects the function store backend: "file" or "sqlite".
	StoreDriver string `toml:"store_driver"`
	StorePath   string `toml:"store_path"`

	// MaxRepairs bounds the repair loop: one synthesis call plus up to
	// MaxRepairs repair calls.
	MaxRepairs int `toml:"max_repairs"`
	// ExecTimeoutSeconds is the sandbox wall-clock deadline.
	ExecTimeoutSeconds int `toml:"exec_timeout_seconds"`

	LogPath string `toml:"log_path"`

	Source string `toml:"-"`
}

func Default() Config {
	return Config{
		Provider:           "stub",
		StoreDriver:        "file",
		MaxRepairs:         3,
		ExecTimeoutSeconds: 10,
	}
}

func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".funcsmith", "config.toml")
}

func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}
	if path == "" {
		return cfg, errors.New("config path is empty and $HOME is not set")
	}
	cfg.Source = path

	content, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, err
	}
	if err == nil {
		if err := toml.Unmarshal(content, &cfg); err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

// Save persists cfg to its Source path (or the default path) as TOML.
func Save(cfg Config) error {
	path := cfg.Source
	if path == "" {
		path = DefaultPath()
	}
	if path == "" {
		return errors.New("config path is empty and $HOME is not set")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func applyEnv(cfg *Config) {
	if env := strings.TrimSpace(os.Getenv("FUNCSMITH_PROVIDER")); env != "" {
		cfg.Provider = env
	}
	if env := strings.TrimSpace(os.Getenv("FUNCSMITH_MODEL")); env != "" {
		cfg.Model = env
	}
	if env := strings.TrimSpace(os.Getenv("FUNCSMITH_STORE")); env != "" {
		cfg.StorePath = env
	}
	if env := strings.TrimSpace(os.Getenv("FUNCSMITH_MAX_REPAIRS")); env != "" {
		if n, err := strconv.Atoi(env); err == nil && n >= 0 {
			cfg.MaxRepairs = n
		}
	}
	switch strings.ToLower(cfg.Provider) {
	case "anthropic":
		if env := strings.TrimSpace(os.Getenv("ANTHROPIC_AUTH_TOKEN")); env != "" {
			cfg.APIKey = env
		}
		if env := strings.TrimSpace(os.Getenv("ANTHROPIC_BASE_URL")); env != "" {
			cfg.BaseURL = env
		}
	case "openai":
		if env := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); env != "" {
			cfg.APIKey = env
		}
		if env := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")); env != "" {
			cfg.BaseURL = env
		}
	}
}
