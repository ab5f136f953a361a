package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigDir  = ".promptshield"
	DefaultConfigFile = "config.yaml"
	DefaultPolicyFile = "policy.yaml"
	DefaultPacksDir   = "packs"
	DefaultStoreFile  = "records.jsonl"
)

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Store        StoreConfig        `yaml:"store"`
	Policy       PolicyConfig       `yaml:"policy"`
	Verification VerificationConfig `yaml:"verification"`
	Pipeline     PipelineConfig     `yaml:"pipeline"`
	Logging      LoggingConfig      `yaml:"logging"`

	// ConfigDir is where relative paths and defaults are resolved from.
	ConfigDir string `yaml:"-"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	MetricsAddr    string   `yaml:"metrics_addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type StoreConfig struct {
	Path      string `yaml:"path"`
	Ephemeral bool   `yaml:"ephemeral"`
}

type PolicyConfig struct {
	Path     string `yaml:"path"`
	PacksDir string `yaml:"packs_dir"`
}

type VerificationConfig struct {
	Provider     string        `yaml:"provider"`
	APIKeyEnv    string        `yaml:"api_key_env"`
	Model        string        `yaml:"model"`
	BaseURL      string        `yaml:"base_url"`
	Timeout      time.Duration `yaml:"timeout"`
	LookupWindow time.Duration `yaml:"lookup_window"`
}

// APIKey reads the secondary model's key from the configured environment
// variable.
func (v VerificationConfig) APIKey() string {
	if v.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(v.APIKeyEnv)
}

type PipelineConfig struct {
	PendingTimeout time.Duration `yaml:"pending_timeout"`
	RecentPrompts  int           `yaml:"recent_prompts"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file exists.
func Default(configDir string) *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        ":5000",
			MetricsAddr: ":9090",
			AllowedOrigins: []string{
				"chrome-extension://*",
				"http://localhost:3000",
			},
		},
		Store:  StoreConfig{Path: filepath.Join(configDir, DefaultStoreFile)},
		Policy: PolicyConfig{Path: filepath.Join(configDir, DefaultPolicyFile), PacksDir: filepath.Join(configDir, DefaultPacksDir)},
		Verification: VerificationConfig{
			Provider:     "gemini",
			APIKeyEnv:    "GEMINI_API_KEY",
			Model:        "gemini-pro",
			Timeout:      10 * time.Second,
			LookupWindow: 5 * time.Minute,
		},
		Pipeline: PipelineConfig{
			PendingTimeout: 2 * time.Minute,
			RecentPrompts:  10,
		},
		Logging:   LoggingConfig{Level: "info", Format: "auto"},
		ConfigDir: configDir,
	}
}

// Load reads the config file at path, or ~/.promptshield/config.yaml when
// path is empty. A missing file yields defaults. Fields absent from the file
// keep their defaults. PROMPTSHIELD_ADDR and PROMPTSHIELD_STORE override the
// file.
func Load(path string) (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	configDir := filepath.Join(homeDir, DefaultConfigDir)
	if err := ensureDir(configDir); err != nil {
		return nil, err
	}

	if path == "" {
		path = filepath.Join(configDir, DefaultConfigFile)
	}
	return LoadFrom(path, configDir)
}

// LoadFrom is Load with an explicit config directory.
func LoadFrom(path, configDir string) (*Config, error) {
	cfg := Default(configDir)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}

	if v := os.Getenv("PROMPTSHIELD_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("PROMPTSHIELD_STORE"); v != "" {
		cfg.Store.Path = v
	}

	cfg.Store.Path = cfg.resolve(cfg.Store.Path)
	cfg.Policy.Path = cfg.resolve(cfg.Policy.Path)
	cfg.Policy.PacksDir = cfg.resolve(cfg.Policy.PacksDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Verification.Provider {
	case "", "none", "gemini", "openai":
	default:
		return fmt.Errorf("config: unknown verification provider %q", c.Verification.Provider)
	}
	if c.Verification.Timeout < 0 || c.Pipeline.PendingTimeout < 0 {
		return fmt.Errorf("config: timeouts must not be negative")
	}
	if c.Pipeline.RecentPrompts < 0 {
		return fmt.Errorf("config: pipeline.recent_prompts must not be negative")
	}
	return nil
}

// resolve expands ~ and makes relative paths relative to ConfigDir.
func (c *Config) resolve(p string) string {
	if p == "" {
		return p
	}
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	if !filepath.IsAbs(p) {
		return filepath.Join(c.ConfigDir, p)
	}
	return p
}

func ensureDir(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, 0700)
	}
	return nil
}
