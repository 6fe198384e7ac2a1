package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverDuckDB   = "duckdb"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Dataset       DatasetConfig
	ObjectStore   ObjectStoreConfig
	AI            AIConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatasetConfig selects where the transactions table lives. DSN is a SQLite
// file or Postgres URL; Objects lists parquet snapshot keys for DuckDB.
type DatasetConfig struct {
	Driver          string
	DSN             string
	Objects         []string
	LedgerLimit     int
	MaxOpenConns    int
	ConnMaxIdleTime time.Duration
}

type ObjectStoreConfig struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

// AIConfig configures the translation backend. An empty Model means the
// provider's default model.
type AIConfig struct {
	Provider     string
	BaseURL      string
	APIKey       string
	Model        string
	Timeout      time.Duration
	MaxTokens    int
	RateLimitRPS float64
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

var providerKeyFallbacks = map[string]string{
	"gemini":    "GEMINI_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("INSIGHTX_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid INSIGHTX_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	appliers := []func() error{
		func() error { return applyString(lookup, "INSIGHTX_SERVICE_NAME", &cfg.Service.Name) },
		func() error { return applyString(lookup, "INSIGHTX_HTTP_ADDR", &cfg.HTTP.Address) },
		func() error { return applyDuration(lookup, "INSIGHTX_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout) },
		func() error { return applyDuration(lookup, "INSIGHTX_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout) },
		func() error { return applyDuration(lookup, "INSIGHTX_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout) },
		func() error { return applyString(lookup, "INSIGHTX_DATASET_DRIVER", &cfg.Dataset.Driver) },
		func() error { return applyString(lookup, "INSIGHTX_DATASET_DSN", &cfg.Dataset.DSN) },
		func() error { return applyList(lookup, "INSIGHTX_DATASET_OBJECTS", &cfg.Dataset.Objects) },
		func() error { return applyInt(lookup, "INSIGHTX_DATASET_LEDGER_LIMIT", &cfg.Dataset.LedgerLimit) },
		func() error { return applyInt(lookup, "INSIGHTX_DATASET_MAX_OPEN_CONNS", &cfg.Dataset.MaxOpenConns) },
		func() error {
			return applyDuration(lookup, "INSIGHTX_DATASET_CONN_MAX_IDLE_TIME", &cfg.Dataset.ConnMaxIdleTime)
		},
		func() error { return applyString(lookup, "INSIGHTX_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint) },
		func() error { return applyString(lookup, "INSIGHTX_OBJECTSTORE_REGION", &cfg.ObjectStore.Region) },
		func() error { return applyString(lookup, "INSIGHTX_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket) },
		func() error { return applyString(lookup, "INSIGHTX_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID) },
		func() error {
			return applyString(lookup, "INSIGHTX_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey)
		},
		func() error { return applyBool(lookup, "INSIGHTX_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL) },
		func() error { return applyString(lookup, "INSIGHTX_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix) },
		func() error {
			return applyBool(lookup, "INSIGHTX_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket)
		},
		func() error { return applyString(lookup, "INSIGHTX_AI_PROVIDER", &cfg.AI.Provider) },
		func() error { return applyString(lookup, "INSIGHTX_AI_BASE_URL", &cfg.AI.BaseURL) },
		func() error { return applyString(lookup, "INSIGHTX_AI_API_KEY", &cfg.AI.APIKey) },
		func() error { return applyString(lookup, "INSIGHTX_AI_MODEL", &cfg.AI.Model) },
		func() error { return applyDuration(lookup, "INSIGHTX_AI_TIMEOUT", &cfg.AI.Timeout) },
		func() error { return applyInt(lookup, "INSIGHTX_AI_MAX_TOKENS", &cfg.AI.MaxTokens) },
		func() error { return applyFloat(lookup, "INSIGHTX_AI_RATE_LIMIT_RPS", &cfg.AI.RateLimitRPS) },
		func() error { return applyBool(lookup, "INSIGHTX_LOG_JSON", &cfg.Observability.LogJSON) },
		func() error { return applyLogLevel(lookup, "INSIGHTX_LOG_LEVEL", &cfg.Observability.LogLevel) },
		func() error { return applyBool(lookup, "INSIGHTX_AUTH_REQUIRED", &cfg.Auth.Required) },
		func() error { return applyString(lookup, "INSIGHTX_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys) },
	}
	for _, apply := range appliers {
		if err := apply(); err != nil {
			return Config{}, err
		}
	}

	cfg.Dataset.Driver = strings.ToLower(cfg.Dataset.Driver)
	cfg.AI.Provider = strings.ToLower(cfg.AI.Provider)
	if cfg.AI.APIKey == "" {
		if fallback, ok := providerKeyFallbacks[cfg.AI.Provider]; ok {
			if err := applyString(lookup, fallback, &cfg.AI.APIKey); err != nil {
				return Config{}, err
			}
		}
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.Service.Name == "" {
		return fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return fmt.Errorf("http address is required")
	}
	switch cfg.Dataset.Driver {
	case DriverSQLite, DriverPostgres:
		if cfg.Dataset.DSN == "" {
			return fmt.Errorf("INSIGHTX_DATASET_DSN is required for driver %q", cfg.Dataset.Driver)
		}
	case DriverDuckDB:
		if len(cfg.Dataset.Objects) == 0 {
			return fmt.Errorf("INSIGHTX_DATASET_OBJECTS is required for driver %q", cfg.Dataset.Driver)
		}
	default:
		return fmt.Errorf("invalid INSIGHTX_DATASET_DRIVER: %q", cfg.Dataset.Driver)
	}
	if cfg.Dataset.LedgerLimit <= 0 {
		return fmt.Errorf("INSIGHTX_DATASET_LEDGER_LIMIT must be > 0")
	}
	if _, ok := providerKeyFallbacks[cfg.AI.Provider]; !ok {
		return fmt.Errorf("invalid INSIGHTX_AI_PROVIDER: %q", cfg.AI.Provider)
	}
	if cfg.AI.Timeout <= 0 {
		return fmt.Errorf("INSIGHTX_AI_TIMEOUT must be > 0")
	}
	if cfg.AI.MaxTokens < 0 {
		return fmt.Errorf("INSIGHTX_AI_MAX_TOKENS must be >= 0")
	}
	return nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "insightx-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Dataset: DatasetConfig{
			Driver:          DriverSQLite,
			DSN:             "transactions.db",
			LedgerLimit:     100,
			MaxOpenConns:    4,
			ConnMaxIdleTime: 5 * time.Minute,
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "insightx",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			AutoCreateBucket: true,
		},
		AI: AIConfig{
			Provider: "gemini",
			Timeout:  30 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

// applyList reads a comma-separated value, dropping empty items.
func applyList(lookup LookupFunc, key string, dst *[]string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	*dst = items
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
