// Package config loads budgetopt settings from TOML, .env files and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/budgetopt/budgetopt/internal/model"
	"github.com/budgetopt/budgetopt/internal/rules"
)

// Storage backends.
const (
	BackendFile = "file"
	BackendS3   = "s3"
)

// Config holds all budgetopt configuration.
type Config struct {
	General    GeneralConfig    `toml:"general"`
	Storage    StorageConfig    `toml:"storage"`
	Rules      RulesConfig      `toml:"rules"`
	Server     ServerConfig     `toml:"server"`
	Log        LogConfig        `toml:"log"`
	Appearance AppearanceConfig `toml:"appearance"`
}

// GeneralConfig holds general preferences.
type GeneralConfig struct {
	DefaultArea string `toml:"default_area"`
	Currency    string `toml:"currency"`
}

// StorageConfig selects where model artifacts live.
type StorageConfig struct {
	Backend  string   `toml:"backend"`
	ModelDir string   `toml:"model_dir"`
	S3       S3Config `toml:"s3"`
}

// S3Config holds bucket settings for the s3 backend.
type S3Config struct {
	Bucket   string `toml:"bucket,omitempty"`
	Prefix   string `toml:"prefix,omitempty"`
	Region   string `toml:"region,omitempty"`
	Endpoint string `toml:"endpoint,omitempty"`
}

// RulesConfig holds the percentage tables for the rule-based path.
type RulesConfig struct {
	Rural TableConfig `toml:"rural"`
	Urban TableConfig `toml:"urban"`
}

// TableConfig is one percentage table as written in the config file.
type TableConfig struct {
	Housing        float64 `toml:"housing"`
	Transportation float64 `toml:"transportation"`
	Food           float64 `toml:"food"`
	Utilities      float64 `toml:"utilities"`
	Entertainment  float64 `toml:"entertainment"`
	Savings        float64 `toml:"savings"`
}

// ServerConfig holds HTTP service settings.
type ServerConfig struct {
	Addr        string   `toml:"addr"`
	ReloadEvery string   `toml:"reload_every"`
	CORSOrigins []string `toml:"cors_origins,omitempty"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

// AppearanceConfig holds theme settings.
type AppearanceConfig struct {
	Theme string `toml:"theme"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		General: GeneralConfig{
			DefaultArea: "rural",
			Currency:    "₹",
		},
		Storage: StorageConfig{
			Backend:  BackendFile,
			ModelDir: "model",
		},
		Rules: RulesConfig{
			Rural: TableFromPercentages(model.DefaultRuralTable()),
			Urban: TableFromPercentages(model.DefaultUrbanTable()),
		},
		Server: ServerConfig{
			Addr:        "127.0.0.1:8090",
			ReloadEvery: "1m",
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
		Appearance: AppearanceConfig{
			Theme: "flexoki-dark",
		},
	}
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "budgetopt")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "budgetopt")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// CacheDir returns the XDG-compliant cache directory.
func CacheDir() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "budgetopt")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cache", "budgetopt")
}

// CachePath returns the full path to the artifact cache database.
func CachePath() string {
	return filepath.Join(CacheDir(), "artifacts.db")
}

// Load reads the default config file, returning defaults if it doesn't exist.
func Load() (Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads the config file at path, returning defaults if it doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path) //nolint:gosec // path is chosen by the local user
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Save writes the config to the default path.
func Save(cfg Config) error {
	return SaveTo(ConfigPath(), cfg)
}

// SaveTo writes the config to path.
func SaveTo(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600) //nolint:gosec // path is chosen by the local user
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// Exists returns true if a config file exists at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set.
// Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides config values from BUDGETOPT_* environment variables.
// Environment wins over the config file.
func ApplyEnv(cfg Config) Config {
	if v := os.Getenv("BUDGETOPT_MODEL_DIR"); v != "" {
		cfg.Storage.ModelDir = v
	}
	if v := os.Getenv("BUDGETOPT_S3_BUCKET"); v != "" {
		cfg.Storage.Backend = BackendS3
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("BUDGETOPT_S3_PREFIX"); v != "" {
		cfg.Storage.S3.Prefix = v
	}
	if v := os.Getenv("BUDGETOPT_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
	if v := os.Getenv("BUDGETOPT_CURRENCY"); v != "" {
		cfg.General.Currency = v
	}
	if v := os.Getenv("BUDGETOPT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("BUDGETOPT_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	return cfg
}

// Validate checks settings that would otherwise fail later at request time.
func (c Config) Validate() error {
	switch strings.ToLower(c.Storage.Backend) {
	case "", BackendFile:
		if strings.TrimSpace(c.Storage.ModelDir) == "" {
			return errors.New("storage.model_dir is required for the file backend")
		}
	case BackendS3:
		if c.Storage.S3.Bucket == "" {
			return errors.New("storage.s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if _, err := model.ParseAreaType(c.General.DefaultArea); err != nil {
		return fmt.Errorf("general.default_area: %w", err)
	}
	if _, err := c.Server.ReloadInterval(); err != nil {
		return err
	}
	if err := c.Rules.Tables().Validate(); err != nil {
		return fmt.Errorf("rules: %w", err)
	}
	return nil
}

// DefaultAreaType returns the configured default area, falling back to rural.
func (c Config) DefaultAreaType() model.AreaType {
	a, err := model.ParseAreaType(c.General.DefaultArea)
	if err != nil {
		return model.Rural
	}
	return a
}

// ReloadInterval parses reload_every; empty disables reloading.
func (s ServerConfig) ReloadInterval() (time.Duration, error) {
	if s.ReloadEvery == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.ReloadEvery)
	if err != nil {
		return 0, fmt.Errorf("server.reload_every: %w", err)
	}
	return d, nil
}

// Tables converts the configured tables for the allocator.
func (r RulesConfig) Tables() rules.Tables {
	return rules.Tables{
		Rural: r.Rural.Percentages(),
		Urban: r.Urban.Percentages(),
	}
}

// Percentages converts the table into canonical category order.
func (t TableConfig) Percentages() model.PercentageTable {
	return model.PercentageTable{
		model.Housing:        t.Housing,
		model.Transportation: t.Transportation,
		model.Food:           t.Food,
		model.Utilities:      t.Utilities,
		model.Entertainment:  t.Entertainment,
		model.Savings:        t.Savings,
	}
}

// TableFromPercentages is the inverse of TableConfig.Percentages.
func TableFromPercentages(p model.PercentageTable) TableConfig {
	return TableConfig{
		Housing:        p[model.Housing],
		Transportation: p[model.Transportation],
		Food:           p[model.Food],
		Utilities:      p[model.Utilities],
		Entertainment:  p[model.Entertainment],
		Savings:        p[model.Savings],
	}
}
