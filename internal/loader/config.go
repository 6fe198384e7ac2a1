package loader

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

// Config selects where rows come from and where they go. An empty CSVPath
// means synthetic rows; an empty SQLitePath skips the SQLite file.
type Config struct {
	CSVPath    string
	Rows       int
	Seed       int64
	Start      time.Time
	SQLitePath string
	Upload     bool
	RunChecks  bool
}

func DefaultConfig() Config {
	return Config{
		Rows:       5000,
		Seed:       42,
		Start:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		SQLitePath: "transactions.db",
		RunChecks:  true,
	}
}

func LoadConfigFromEnv(lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	cfg := DefaultConfig()
	if err := applyString(lookup, "INSIGHTX_LOAD_CSV", &cfg.CSVPath); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "INSIGHTX_LOAD_ROWS", &cfg.Rows); err != nil {
		return Config{}, err
	}
	if err := applyInt64(lookup, "INSIGHTX_LOAD_SEED", &cfg.Seed); err != nil {
		return Config{}, err
	}
	if err := applyDate(lookup, "INSIGHTX_LOAD_START", &cfg.Start); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "INSIGHTX_LOAD_SQLITE_PATH", &cfg.SQLitePath); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "INSIGHTX_LOAD_UPLOAD", &cfg.Upload); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "INSIGHTX_LOAD_RUN_CHECKS", &cfg.RunChecks); err != nil {
		return Config{}, err
	}

	if cfg.CSVPath == "" && cfg.Rows <= 0 {
		return Config{}, fmt.Errorf("INSIGHTX_LOAD_ROWS must be > 0")
	}
	if cfg.SQLitePath == "" && !cfg.Upload {
		return Config{}, fmt.Errorf("nothing to write: set INSIGHTX_LOAD_SQLITE_PATH or INSIGHTX_LOAD_UPLOAD")
	}
	return cfg, nil
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt64(lookup LookupFunc, key string, dst *int64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyDate(lookup LookupFunc, key string, dst *time.Time) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := time.Parse(time.DateOnly, strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}
