package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: NSREF_[SECTION]_[KEY] (e.g., NSREF_DB_PATH).
func ApplyEnvOverrides(cfg *Config) {
	setEnvString(&cfg.Tokenizer.Backend, "NSREF_TOKENIZER_BACKEND")
	setEnvString(&cfg.Composer, "NSREF_COMPOSER")

	setEnvInt(&cfg.Cache.Capacity, "NSREF_CACHE_CAPACITY")

	setEnvBool(&cfg.DB.Enabled, "NSREF_DB_ENABLED")
	setEnvString(&cfg.DB.Path, "NSREF_DB_PATH")
	setEnvDuration(&cfg.DB.BusyTimeout, "NSREF_DB_BUSY_TIMEOUT")
	setEnvString(&cfg.DB.ProjectKey, "NSREF_DB_PROJECT_KEY")

	setEnvDuration(&cfg.Watch.Debounce, "NSREF_WATCH_DEBOUNCE")

	setEnvString(&cfg.Observability.MetricsAddr, "NSREF_OBSERVABILITY_METRICS_ADDR")
	setEnvString(&cfg.Observability.OTLPEndpoint, "NSREF_OBSERVABILITY_OTLP_ENDPOINT")

	setEnvString(&cfg.Output.Format, "NSREF_OUTPUT_FORMAT")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
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
		if b, err := strconv.ParseBool(strings.ToLower(val)); err == nil {
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
