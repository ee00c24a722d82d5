package lingo

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config configures an opened database: its path, logging verbosity,
// cache budget, and the defaults applied to queries that don't specify
// their own deadline or result cap. Per spec §6, values come from the
// environment or direct struct construction; unknown environment
// values fall back to the declared defaults below, and invalid values
// (negative sizes, a non-positive timeout) fail construction.
type Config struct {
	Path             string
	LogLevel         slog.Level
	CacheBudgetBytes int64
	QueryTimeout     time.Duration
	MaxResultSize    int
	Profiling        bool
}

// Default values applied when an environment variable is absent.
const (
	DefaultCacheBudgetBytes = 64 << 20
	DefaultQueryTimeout     = 500 * time.Millisecond
	DefaultMaxResultSize    = 10_000
)

const (
	envPath             = "LINGODB_PATH"
	envLogLevel         = "LINGODB_LOG_LEVEL"
	envCacheBudgetBytes = "LINGODB_CACHE_BUDGET_BYTES"
	envQueryTimeout     = "LINGODB_QUERY_TIMEOUT_MS"
	envMaxResultSize    = "LINGODB_MAX_RESULT_SIZE"
	envProfiling        = "LINGODB_PROFILING"
)

// LoadConfig reads an optional .env file (a missing file is not an
// error) then builds a Config from the environment, applying defaults
// for anything unset. It fails if an explicitly set value is invalid.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load() // absent .env is normal; LINGODB_* env vars still apply

	cfg := &Config{
		Path:             os.Getenv(envPath),
		LogLevel:         slog.LevelInfo,
		CacheBudgetBytes: DefaultCacheBudgetBytes,
		QueryTimeout:     DefaultQueryTimeout,
		MaxResultSize:    DefaultMaxResultSize,
	}

	if v := os.Getenv(envLogLevel); v != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(v)); err != nil {
			return nil, newError(KindConfig, fmt.Sprintf("invalid %s", envLogLevel), err)
		}
		cfg.LogLevel = lvl
	}

	if v := os.Getenv(envCacheBudgetBytes); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, newError(KindConfig, fmt.Sprintf("invalid %s", envCacheBudgetBytes), err)
		}
		cfg.CacheBudgetBytes = n
	}

	if v := os.Getenv(envQueryTimeout); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return nil, newError(KindConfig, fmt.Sprintf("invalid %s", envQueryTimeout), err)
		}
		cfg.QueryTimeout = time.Duration(ms) * time.Millisecond
	}

	if v := os.Getenv(envMaxResultSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, newError(KindConfig, fmt.Sprintf("invalid %s", envMaxResultSize), err)
		}
		cfg.MaxResultSize = n
	}

	if v := os.Getenv(envProfiling); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, newError(KindConfig, fmt.Sprintf("invalid %s", envProfiling), err)
		}
		cfg.Profiling = b
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configuration values that would make the database
// unusable: negative sizes and a non-positive timeout.
func (c *Config) Validate() error {
	if c.CacheBudgetBytes < 0 {
		return newError(KindConfig, "cache budget must be non-negative", nil)
	}
	if c.QueryTimeout <= 0 {
		return newError(KindConfig, "query timeout must be positive", nil)
	}
	if c.MaxResultSize < 0 {
		return newError(KindConfig, "max result size must be non-negative", nil)
	}
	return nil
}
