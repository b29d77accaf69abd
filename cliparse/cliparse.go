// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cliparse

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Defaults
const (
	DefaultPort                = 3318
	DefaultDatabaseType        = "sqlite"
	DefaultLogLevel            = "info"
	DefaultCacheTTL            = 5 * time.Minute
	DefaultCacheMaxSize        = 1000
	DefaultCacheSweepInterval  = time.Minute
	DefaultStage2Window        = 24 * time.Hour
	DefaultStage2ExpiryPolicy  = "none"
	DefaultStage2SweepInterval = time.Minute
)

type Config struct {
	Port         int
	DatabaseURL  string
	DatabaseType string
	AdminKeySalt string
	LogLevel     string

	CacheTTL           time.Duration
	CacheMaxSize       int
	CacheSweepInterval time.Duration

	Stage2Window        time.Duration
	Stage2ExpiryPolicy  string
	Stage2SweepInterval time.Duration
}

// LoadEnvFile loads KEY=value pairs from path into the environment.
// Variables already set win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ParseFlags reads flags, falling back to environment variables and then
// to defaults
func ParseFlags(args []string) (Config, error) {
	var cfg Config

	fs := pflag.NewFlagSet("pollgate", pflag.ContinueOnError)

	// Network and storage (can be CLI args or env)
	fs.IntVarP(&cfg.Port, "port", "p", 0, "Server port")
	fs.StringVarP(&cfg.DatabaseURL, "database-url", "d", "", "Database URL, or SQLite file path")
	fs.StringVarP(&cfg.DatabaseType, "database-type", "t", "", "Database type (sqlite or postgres)")
	fs.StringVar(&cfg.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.AdminKeySalt, "admin-salt", "", "Admin key salt (prefer env)")

	// Cache
	fs.DurationVar(&cfg.CacheTTL, "cache-ttl", 0, "Lifetime of cached poll reads")
	fs.IntVar(&cfg.CacheMaxSize, "cache-max-size", 0, "Maximum cached entries")
	fs.DurationVar(&cfg.CacheSweepInterval, "cache-sweep-interval", 0, "Expired entry sweep interval (negative disables)")

	// Action initiatives
	fs.DurationVar(&cfg.Stage2Window, "stage2-window", 0, "How long Stage-2 voting stays open")
	fs.StringVar(&cfg.Stage2ExpiryPolicy, "stage2-expiry-policy", "", "Stage-2 without quorum at the deadline: none or reject")
	fs.DurationVar(&cfg.Stage2SweepInterval, "stage2-sweep-interval", 0, "How often expired Stage-2 votes are closed under the reject policy")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Fall back to environment variables
	if !fs.Changed("port") {
		if err := envInt("PORT", &cfg.Port, DefaultPort); err != nil {
			return Config{}, err
		}
	}
	if !fs.Changed("database-url") {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}
	if !fs.Changed("database-type") {
		envString("DATABASE_TYPE", &cfg.DatabaseType, DefaultDatabaseType)
	}
	if cfg.DatabaseType != "sqlite" && cfg.DatabaseType != "postgres" {
		return Config{}, fmt.Errorf("unsupported database type %q (sqlite or postgres)", cfg.DatabaseType)
	}
	if !fs.Changed("log-level") {
		envString("LOG_LEVEL", &cfg.LogLevel, DefaultLogLevel)
	}

	// Secrets - MUST be provided
	if !fs.Changed("admin-salt") {
		cfg.AdminKeySalt = os.Getenv("ADMIN_KEY_SALT")
	}
	if cfg.AdminKeySalt == "" {
		return Config{}, errors.New("ADMIN_KEY_SALT required")
	}

	if !fs.Changed("cache-ttl") {
		if err := envDuration("CACHE_TTL", &cfg.CacheTTL, DefaultCacheTTL); err != nil {
			return Config{}, err
		}
	}
	if cfg.CacheTTL <= 0 {
		return Config{}, errors.New("cache TTL must be positive")
	}
	if !fs.Changed("cache-max-size") {
		if err := envInt("CACHE_MAX_SIZE", &cfg.CacheMaxSize, DefaultCacheMaxSize); err != nil {
			return Config{}, err
		}
	}
	if cfg.CacheMaxSize <= 0 {
		return Config{}, errors.New("cache max size must be positive")
	}
	if !fs.Changed("cache-sweep-interval") {
		if err := envDuration("CACHE_SWEEP_INTERVAL", &cfg.CacheSweepInterval, DefaultCacheSweepInterval); err != nil {
			return Config{}, err
		}
	}

	if !fs.Changed("stage2-window") {
		if err := envDuration("STAGE2_WINDOW", &cfg.Stage2Window, DefaultStage2Window); err != nil {
			return Config{}, err
		}
	}
	if cfg.Stage2Window <= 0 {
		return Config{}, errors.New("stage 2 window must be positive")
	}
	if !fs.Changed("stage2-expiry-policy") {
		envString("STAGE2_EXPIRY_POLICY", &cfg.Stage2ExpiryPolicy, DefaultStage2ExpiryPolicy)
	}
	if cfg.Stage2ExpiryPolicy != "none" && cfg.Stage2ExpiryPolicy != "reject" {
		return Config{}, fmt.Errorf("unknown stage 2 expiry policy %q (none or reject)", cfg.Stage2ExpiryPolicy)
	}
	if !fs.Changed("stage2-sweep-interval") {
		if err := envDuration("STAGE2_SWEEP_INTERVAL", &cfg.Stage2SweepInterval, DefaultStage2SweepInterval); err != nil {
			return Config{}, err
		}
	}
	if cfg.Stage2SweepInterval <= 0 {
		return Config{}, errors.New("stage 2 sweep interval must be positive")
	}

	return cfg, nil
}

func envString(key string, dst *string, def string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
		return
	}
	*dst = def
}

func envInt(key string, dst *int, def int) error {
	v := os.Getenv(key)
	if v == "" {
		*dst = def
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s env variable", key)
	}
	*dst = n
	return nil
}

func envDuration(key string, dst *time.Duration, def time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		*dst = def
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s env variable: %w", key, err)
	}
	*dst = d
	return nil
}
