// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database schema creation.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(ctx, conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.
The same DDL runs on PostgreSQL and SQLite.

# Tables

  - polls: Poll metadata, approval flags, action initiative state
  - options: Voting options per poll
  - votes: One Stage-1 vote per (user_id, poll_id)
  - stage2_votes: One Stage-2 ballot per (user_id, poll_id)

# Relationships

	polls 1──* options
	polls 1──* votes *──1 options
	polls 1──* stage2_votes

All foreign keys use ON DELETE CASCADE. Polls are soft-deleted, so the
cascade only fires for hard deletes done by hand.

# Uniqueness

The UNIQUE (user_id, poll_id) constraint on votes and the primary key of
stage2_votes are what make "one vote per voter per poll" hold under
concurrent writers; the store upserts against them in a single statement.
*/
package db
