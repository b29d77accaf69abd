// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
// The DDL is accepted by both PostgreSQL and SQLite.
func CreateSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return nil
}

// DropSchema removes every table, children first.
func DropSchema(ctx context.Context, db *sql.DB) error {
	for _, table := range []string{"stage2_votes", "votes", "options", "polls"} {
		if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("failed to drop %s: %w", table, err)
		}
	}
	return nil
}

// One statement per entry.
var schema = []string{
	// Polls
	`CREATE TABLE IF NOT EXISTS polls (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    created_by TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    end_date TIMESTAMP NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
    vote_threshold INTEGER CHECK (vote_threshold IS NULL OR vote_threshold >= 1),
    is_approved BOOLEAN NOT NULL DEFAULT FALSE,
    approved_at TIMESTAMP,
    category TEXT NOT NULL DEFAULT 'general',
    poll_type TEXT NOT NULL DEFAULT 'simple',
    is_action_initiative BOOLEAN NOT NULL DEFAULT FALSE,
    action_plan TEXT,
    action_deadline TIMESTAMP,
    action_status TEXT NOT NULL DEFAULT 'pending'
        CHECK (action_status IN ('pending', 'stage2_voting', 'stage2_approved', 'action_rejected')),
    stage2_deadline TIMESTAMP
)`,
	`CREATE INDEX IF NOT EXISTS idx_polls_active ON polls(is_active, is_deleted, end_date)`,
	`CREATE INDEX IF NOT EXISTS idx_polls_action_status ON polls(action_status)`,

	// Options
	`CREATE TABLE IF NOT EXISTS options (
    id TEXT PRIMARY KEY,
    poll_id TEXT NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
    option_text TEXT NOT NULL,
    position INTEGER NOT NULL DEFAULT 0
)`,
	`CREATE INDEX IF NOT EXISTS idx_options_poll_id ON options(poll_id)`,

	// Stage-1 votes: one per (user, poll)
	`CREATE TABLE IF NOT EXISTS votes (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    poll_id TEXT NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
    option_id TEXT NOT NULL REFERENCES options(id) ON DELETE CASCADE,
    voted_at TIMESTAMP NOT NULL,
    UNIQUE (user_id, poll_id)
)`,
	`CREATE INDEX IF NOT EXISTS idx_votes_poll_id ON votes(poll_id)`,
	`CREATE INDEX IF NOT EXISTS idx_votes_option_id ON votes(option_id)`,

	// Stage-2 votes: one per (user, poll)
	`CREATE TABLE IF NOT EXISTS stage2_votes (
    user_id TEXT NOT NULL,
    poll_id TEXT NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
    approval TEXT NOT NULL CHECK (approval IN ('approve', 'reject')),
    voted_at TIMESTAMP NOT NULL,
    PRIMARY KEY (user_id, poll_id)
)`,
	`CREATE INDEX IF NOT EXISTS idx_stage2_votes_poll_id ON stage2_votes(poll_id)`,
}
