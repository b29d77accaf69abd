// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	if err := cliparse.LoadEnvFile(".env"); err != nil {
		log.Fatal(err)
	}
	cfg, err := cliparse.ParseFlags(os.Args[1:])

LoadEnvFile never overrides variables that are already set.

# CLI Flags

	-p, --port                   Server port (default 3318)
	-d, --database-url           Database URL or SQLite path (required)
	-t, --database-type          sqlite (default) or postgres
	    --log-level              debug, info (default), warn, error
	    --admin-salt             Admin key salt (required)
	    --cache-ttl              Cached read lifetime (default 5m)
	    --cache-max-size         Cached entries (default 1000)
	    --cache-sweep-interval   Expired entry sweep (default 1m, negative disables)
	    --stage2-window          Stage-2 voting window (default 24h)
	    --stage2-expiry-policy   none (default) or reject
	    --stage2-sweep-interval  Reject-policy sweep (default 1m)

# Environment Variables

Each flag falls back to an environment variable:

	PORT, DATABASE_URL, DATABASE_TYPE, LOG_LEVEL, ADMIN_KEY_SALT,
	CACHE_TTL, CACHE_MAX_SIZE, CACHE_SWEEP_INTERVAL,
	STAGE2_WINDOW, STAGE2_EXPIRY_POLICY, STAGE2_SWEEP_INTERVAL

CLI flags take precedence over environment variables. Durations use Go
syntax (30s, 5m, 24h).
*/
package cliparse
