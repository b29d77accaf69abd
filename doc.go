// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the pollgate API server.

pollgate records one vote per user per poll, approves polls once enough
distinct users have voted, and runs action initiatives through a second
ratification vote among the original voters. Reads go through an
in-process TTL+LRU cache that writes invalidate.

# Starting the Server

With no configuration the server uses a local SQLite file:

	go run .

Or with flags:

	go run . -p 3318 -t postgres -d "postgres://..." --admin-salt secret

A .env file in the working directory is loaded first; variables already
set in the environment win over it, and flags win over both.

# Configuration

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - DATABASE_URL (-d): SQLite path or PostgreSQL connection string
  - ADMIN_KEY_SALT (--admin-salt): Secret for admin key HMAC
  - LOG_LEVEL (--log-level): debug, info, warn or error
  - CACHE_TTL, CACHE_MAX_SIZE, CACHE_SWEEP_INTERVAL: read cache tuning
  - STAGE2_WINDOW: how long Stage-2 voting stays open (default: 24h)
  - STAGE2_EXPIRY_POLICY: none or reject
  - STAGE2_SWEEP_INTERVAL: how often expired Stage-2 votes are closed
    under the reject policy

# Architecture

  - voting: ledger, threshold approval, Stage-2 state machine, display
    assembly and cache invalidation
  - store: SQL access for polls, options and votes
  - cache: TTL+LRU read cache
  - handlers: HTTP request handlers
  - router: Route definitions using Go 1.22+ routing
  - middleware: CORS, logging, JSON helpers
  - models: Request/response and domain types
  - auth: ids, caller identity and admin keys
  - db: Schema creation
  - cliparse: Configuration parsing

See package documentation for each component.
*/
package main
