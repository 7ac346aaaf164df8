package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/user/secaudit/pkg/engine"
)

type ProviderConfig struct {
	APIKey string `yaml:"api_key"`
}

// ActorConfig is the identity the CLI acts as
type ActorConfig struct {
	ID   string `yaml:"id"`
	Role string `yaml:"role"`
}

// ScanConfig tunes the file walker and engine
type ScanConfig struct {
	IgnoreDirs  []string      `yaml:"ignore_dirs"`
	Extensions  []string      `yaml:"extensions"`
	MaxDepth    int           `yaml:"max_depth"`
	MaxFiles    int           `yaml:"max_files"`
	MaxFileSize int64         `yaml:"max_file_size"`
	Timeout     time.Duration `yaml:"scan_timeout"`
	Parallel    bool          `yaml:"parallel"`
}

type Config struct {
	DatabasePath     string                    `yaml:"database_path"`
	TrailPath        string                    `yaml:"trail_path"`
	Actor            ActorConfig               `yaml:"actor"`
	Scan             ScanConfig                `yaml:"scan"`
	SelectedProvider string                    `yaml:"selected_provider"`
	SelectedModel    string                    `yaml:"selected_model"`
	Providers        map[string]ProviderConfig `yaml:"providers"`
}

// ConfigDirOverride replaces ~/.secaudit when set (tests, --config)
var ConfigDirOverride string

func GetConfigDir() (string, error) {
	dir := ConfigDirOverride
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, ".secaudit")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}

func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Default returns the configuration used when no file exists
func Default(dir string) *Config {
	user := os.Getenv("USER")
	if user == "" {
		user = "auditor"
	}
	return &Config{
		DatabasePath: filepath.Join(dir, "secaudit.db"),
		TrailPath:    filepath.Join(dir, "audit.log"),
		Actor:        ActorConfig{ID: user, Role: "AUDITOR"},
		Scan: ScanConfig{
			IgnoreDirs:  engine.DefaultIgnoreDirs,
			Extensions:  engine.DefaultExtensions,
			MaxDepth:    engine.DefaultMaxDepth,
			MaxFiles:    engine.DefaultMaxFiles,
			MaxFileSize: engine.DefaultMaxFileSize,
			Timeout:     2 * time.Minute,
		},
		SelectedProvider: "gemini",
		SelectedModel:    "gemini-1.5-flash",
		Providers:        make(map[string]ProviderConfig),
	}
}

func LoadConfig() (*Config, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "config.yaml")
	cfg := Default(dir)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	// Unmarshal over the defaults so missing keys keep their default value
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// 0600 permissions for security (api keys)
	return os.WriteFile(path, data, 0600)
}

func (c *Config) SetAPIKey(provider, key string) {
	p := c.Providers[provider]
	p.APIKey = key
	c.Providers[provider] = p
}

// GetAPIKey prefers SECAUDIT_<PROVIDER>_API_KEY over the stored key
func (c *Config) GetAPIKey(provider string) string {
	if v := os.Getenv(envKey(provider)); v != "" {
		return v
	}
	return c.Providers[provider].APIKey
}

func envKey(provider string) string {
	return "SECAUDIT_" + strings.ToUpper(provider) + "_API_KEY"
}

// Walker builds a file walker from the scan settings
func (c *Config) Walker() *engine.Walker {
	w := engine.NewWalker()
	if len(c.Scan.IgnoreDirs) > 0 {
		w.IgnoreDirs = c.Scan.IgnoreDirs
	}
	if len(c.Scan.Extensions) > 0 {
		w.Extensions = c.Scan.Extensions
	}
	if c.Scan.MaxDepth > 0 {
		w.MaxDepth = c.Scan.MaxDepth
	}
	if c.Scan.MaxFiles > 0 {
		w.MaxFiles = c.Scan.MaxFiles
	}
	if c.Scan.MaxFileSize > 0 {
		w.MaxFileSize = c.Scan.MaxFileSize
	}
	return w
}

// Engine builds the scanning engine from the scan settings
func (c *Config) Engine(cat *engine.Catalog) *engine.Engine {
	e := engine.NewEngine(cat)
	e.Walker = c.Walker()
	e.Timeout = c.Scan.Timeout
	e.Parallel = c.Scan.Parallel
	return e
}
