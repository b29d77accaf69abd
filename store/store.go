// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/danielhkuo/pollgate/models"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Database types accepted by Open
const (
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

// Open connects to the database and verifies the connection.
// SQLite gets a single connection so writers serialize instead of
// failing with SQLITE_BUSY.
func Open(ctx context.Context, dbType, url string) (*sql.DB, error) {
	var driver, dsn string
	switch strings.ToLower(dbType) {
	case TypeSQLite, "":
		driver, dsn = "sqlite", sqliteDSN(url)
	case TypePostgres, "postgresql":
		driver, dsn = "postgres", url
	default:
		return nil, fmt.Errorf("unsupported database type %q", dbType)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	return db, nil
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_time_format=sqlite"
}

// SQLStore runs every poll, option and vote query. All statements are
// written to run unchanged on PostgreSQL and SQLite.
type SQLStore struct {
	db *sql.DB
}

func New(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// classify maps unique-constraint violations from either driver to ErrConflict.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
	}

	return err
}

type scanner interface {
	Scan(dest ...any) error
}

const pollColumns = `p.id, p.title, p.description, p.created_by, p.created_at, p.end_date,
	p.is_active, p.is_deleted, p.vote_threshold, p.is_approved, p.approved_at,
	p.category, p.poll_type, p.is_action_initiative, p.action_plan,
	p.action_deadline, p.action_status, p.stage2_deadline`

// scanPoll reads pollColumns followed by any extra destinations.
func scanPoll(row scanner, extra ...any) (*models.Poll, error) {
	var (
		p              models.Poll
		threshold      sql.NullInt64
		approvedAt     sql.NullTime
		actionPlan     sql.NullString
		actionDeadline sql.NullTime
		stage2Deadline sql.NullTime
	)

	dest := []any{
		&p.ID, &p.Title, &p.Description, &p.CreatedBy, &p.CreatedAt, &p.EndDate,
		&p.IsActive, &p.IsDeleted, &threshold, &p.IsApproved, &approvedAt,
		&p.Category, &p.PollType, &p.IsActionInitiative, &actionPlan,
		&actionDeadline, &p.ActionStatus, &stage2Deadline,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	p.CreatedAt = p.CreatedAt.UTC()
	p.EndDate = p.EndDate.UTC()
	if threshold.Valid {
		n := int(threshold.Int64)
		p.VoteThreshold = &n
	}
	if actionPlan.Valid {
		p.ActionPlan = &actionPlan.String
	}
	p.ApprovedAt = timePtr(approvedAt)
	p.ActionDeadline = timePtr(actionDeadline)
	p.Stage2Deadline = timePtr(stage2Deadline)

	return &p, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func rowsAffected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}
