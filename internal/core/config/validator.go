package config

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gobwas/glob"
)

// Validate returns every problem found in cfg, in section order.
func Validate(cfg *Config) []error {
	var errs []error
	for _, check := range []func(*Config) error{
		validateVersion,
		validateWorkspace,
		validateImports,
		validateDiagnostics,
		validateIndex,
		validateWatch,
	} {
		if err := check(cfg); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateWorkspace(cfg *Config) error {
	for i, root := range cfg.Workspace.Roots {
		if strings.TrimSpace(root) == "" {
			return fmt.Errorf("workspace.roots[%d] must not be empty", i)
		}
	}
	for i, pattern := range cfg.Workspace.Include {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("workspace.include[%d] %q is not a valid glob", i, pattern)
		}
	}
	for i, pattern := range cfg.Workspace.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("workspace.exclude[%d] %q is not a valid glob", i, pattern)
		}
	}
	return nil
}

func validateImports(cfg *Config) error {
	switch strings.ToLower(strings.TrimSpace(cfg.Imports.SortMode)) {
	case SortLength, SortAlphabetical, SortNatural:
		return nil
	default:
		return fmt.Errorf("imports.sort_mode must be one of: length, alphabetical, natural")
	}
}

func validateDiagnostics(cfg *Config) error {
	if cfg.Diagnostics.Debounce < 0 {
		return fmt.Errorf("diagnostics.debounce must not be negative")
	}
	seen := make(map[string]bool, len(cfg.Diagnostics.IgnoreList))
	for i, name := range cfg.Diagnostics.IgnoreList {
		name = strings.TrimSpace(name)
		if name == "" {
			return fmt.Errorf("diagnostics.ignore_list[%d] must not be empty", i)
		}
		if seen[name] {
			return fmt.Errorf("diagnostics.ignore_list repeats %q", name)
		}
		seen[name] = true
	}
	return nil
}

func validateIndex(cfg *Config) error {
	driver := strings.ToLower(strings.TrimSpace(cfg.Index.Driver))
	if driver != DriverJSON && driver != DriverSQLite {
		return fmt.Errorf("index.driver must be one of: json, sqlite, got %q", cfg.Index.Driver)
	}
	if strings.TrimSpace(cfg.Index.Path) == "" {
		return fmt.Errorf("index.path must not be empty")
	}
	if cfg.Index.MaxFilesPerSecond < 0 {
		return fmt.Errorf("index.max_files_per_second must not be negative")
	}
	if cfg.Index.FileDebounce < 0 || cfg.Index.PersistDebounce < 0 {
		return fmt.Errorf("index debounce durations must not be negative")
	}
	return nil
}

func validateWatch(cfg *Config) error {
	for i, pattern := range cfg.Watch.ExcludeDirs {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("watch.exclude_dirs[%d] %q: %w", i, pattern, err)
		}
	}
	return nil
}
