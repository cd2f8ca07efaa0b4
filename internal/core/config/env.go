package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: NSRESOLVE_[SECTION]_[KEY] (e.g., NSRESOLVE_INDEX_DRIVER).
func ApplyEnvOverrides(cfg *Config) {
	// Imports
	setEnvBool(&cfg.Imports.AutoSort, "NSRESOLVE_IMPORTS_AUTO_SORT")
	setEnvString(&cfg.Imports.SortMode, "NSRESOLVE_IMPORTS_SORT_MODE")
	setEnvBool(&cfg.Imports.LeadingSeparator, "NSRESOLVE_IMPORTS_LEADING_SEPARATOR")

	// Diagnostics
	setEnvDuration(&cfg.Diagnostics.Debounce, "NSRESOLVE_DIAGNOSTICS_DEBOUNCE")
	setEnvList(&cfg.Diagnostics.IgnoreList, "NSRESOLVE_DIAGNOSTICS_IGNORE_LIST")

	// Index
	setEnvString(&cfg.Index.Driver, "NSRESOLVE_INDEX_DRIVER")
	setEnvString(&cfg.Index.Path, "NSRESOLVE_INDEX_PATH")
	setEnvInt(&cfg.Index.MaxFilesPerSecond, "NSRESOLVE_INDEX_MAX_FILES_PER_SECOND")

	// Observability
	setEnvString(&cfg.Observability.MetricsAddress, "NSRESOLVE_OBSERVABILITY_METRICS_ADDRESS")
	setEnvString(&cfg.Observability.OTLPEndpoint, "NSRESOLVE_OBSERVABILITY_OTLP_ENDPOINT")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

func setEnvList(target *[]string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		var items []string
		for _, item := range strings.Split(val, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		*target = items
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
