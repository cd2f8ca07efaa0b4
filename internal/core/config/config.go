package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Version       int           `toml:"version" yaml:"version"`
	Workspace     Workspace     `toml:"workspace" yaml:"workspace"`
	Imports       Imports       `toml:"imports" yaml:"imports"`
	Diagnostics   Diagnostics   `toml:"diagnostics" yaml:"diagnostics"`
	Index         Index         `toml:"index" yaml:"index"`
	Watch         Watch         `toml:"watch" yaml:"watch"`
	Observability Observability `toml:"observability" yaml:"observability"`
}

type Workspace struct {
	Roots            []string `toml:"roots" yaml:"roots"`
	Include          []string `toml:"include" yaml:"include"`
	Exclude          []string `toml:"exclude" yaml:"exclude"`
	RespectGitignore bool     `toml:"respect_gitignore" yaml:"respect_gitignore"`
}

type Imports struct {
	AutoSort         bool   `toml:"auto_sort" yaml:"auto_sort"`
	SortMode         string `toml:"sort_mode" yaml:"sort_mode"`
	LeadingSeparator bool   `toml:"leading_separator" yaml:"leading_separator"`
}

type Diagnostics struct {
	HighlightNotImported *bool         `toml:"highlight_not_imported" yaml:"highlight_not_imported"`
	HighlightNotUsed     *bool         `toml:"highlight_not_used" yaml:"highlight_not_used"`
	IgnoreList           []string      `toml:"ignore_list" yaml:"ignore_list"`
	Debounce             time.Duration `toml:"debounce" yaml:"debounce"`
}

type Index struct {
	Driver            string        `toml:"driver" yaml:"driver"`
	Path              string        `toml:"path" yaml:"path"`
	FileDebounce      time.Duration `toml:"file_debounce" yaml:"file_debounce"`
	PersistDebounce   time.Duration `toml:"persist_debounce" yaml:"persist_debounce"`
	BatchSize         int           `toml:"batch_size" yaml:"batch_size"`
	StatBatchSize     int           `toml:"stat_batch_size" yaml:"stat_batch_size"`
	MaxFilesPerSecond int           `toml:"max_files_per_second" yaml:"max_files_per_second"`
	BusyTimeout       time.Duration `toml:"busy_timeout" yaml:"busy_timeout"`
}

type Watch struct {
	ExcludeDirs []string `toml:"exclude_dirs" yaml:"exclude_dirs"`
}

type Observability struct {
	MetricsAddress string `toml:"metrics_address" yaml:"metrics_address"`
	OTLPEndpoint   string `toml:"otlp_endpoint" yaml:"otlp_endpoint"`
}

const (
	SortLength       = "length"
	SortAlphabetical = "alphabetical"
	SortNatural      = "natural"

	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

// DefaultConfig is the configuration used when no file is found.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads a TOML file, or YAML when the extension is .yml/.yaml, then
// applies defaults and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("invalid YAML config: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("invalid TOML config: %w", err)
		}
	}

	applyDefaults(&cfg)
	ApplyEnvOverrides(&cfg)

	if errs := Validate(&cfg); len(errs) > 0 {
		return nil, errs[0]
	}
	return &cfg, nil
}

// LoadOrDefault loads path when it exists and falls back to DefaultConfig.
func LoadOrDefault(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		cfg := DefaultConfig()
		ApplyEnvOverrides(cfg)
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		ApplyEnvOverrides(cfg)
		return cfg, nil
	}
	return Load(path)
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if len(cfg.Workspace.Roots) == 0 {
		cfg.Workspace.Roots = []string{"."}
	}
	if len(cfg.Workspace.Include) == 0 {
		cfg.Workspace.Include = []string{"**/*.php"}
	}
	if len(cfg.Workspace.Exclude) == 0 {
		cfg.Workspace.Exclude = []string{"**/node_modules/**"}
	}

	if strings.TrimSpace(cfg.Imports.SortMode) == "" {
		cfg.Imports.SortMode = SortLength
	}

	if cfg.Diagnostics.HighlightNotImported == nil {
		enabled := true
		cfg.Diagnostics.HighlightNotImported = &enabled
	}
	if cfg.Diagnostics.HighlightNotUsed == nil {
		enabled := true
		cfg.Diagnostics.HighlightNotUsed = &enabled
	}
	if cfg.Diagnostics.Debounce == 0 {
		cfg.Diagnostics.Debounce = 800 * time.Millisecond
	}

	if strings.TrimSpace(cfg.Index.Driver) == "" {
		cfg.Index.Driver = DriverJSON
	}
	if strings.TrimSpace(cfg.Index.Path) == "" {
		if cfg.Index.Driver == DriverSQLite {
			cfg.Index.Path = ".nsresolve/index.db"
		} else {
			cfg.Index.Path = ".nsresolve/index.json"
		}
	}
	if cfg.Index.FileDebounce == 0 {
		cfg.Index.FileDebounce = 300 * time.Millisecond
	}
	if cfg.Index.PersistDebounce == 0 {
		cfg.Index.PersistDebounce = 2 * time.Second
	}
	if cfg.Index.BatchSize <= 0 {
		cfg.Index.BatchSize = 64
	}
	if cfg.Index.StatBatchSize <= 0 {
		cfg.Index.StatBatchSize = 256
	}
	if cfg.Index.BusyTimeout <= 0 {
		cfg.Index.BusyTimeout = 5 * time.Second
	}

	if len(cfg.Watch.ExcludeDirs) == 0 {
		cfg.Watch.ExcludeDirs = []string{".git", "node_modules", "vendor", ".nsresolve"}
	}
}

// NotImportedEnabled reports whether not-imported findings are published.
func (d Diagnostics) NotImportedEnabled() bool {
	return d.HighlightNotImported == nil || *d.HighlightNotImported
}

// NotUsedEnabled reports whether not-used findings are published.
func (d Diagnostics) NotUsedEnabled() bool {
	return d.HighlightNotUsed == nil || *d.HighlightNotUsed
}
