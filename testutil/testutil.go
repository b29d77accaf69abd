// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielhkuo/pollgate/auth"
	"github.com/danielhkuo/pollgate/cliparse"
	"github.com/danielhkuo/pollgate/db"
	"github.com/danielhkuo/pollgate/models"
	"github.com/danielhkuo/pollgate/store"
)

// SetupTestDB opens a fresh SQLite database in a temp dir with the full schema
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	conn, err := store.Open(ctx, store.TypeSQLite, path)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(ctx, conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:                3318,
		DatabaseURL:         "test.db",
		DatabaseType:        store.TypeSQLite,
		AdminKeySalt:        "test-admin-salt",
		LogLevel:            "info",
		CacheTTL:            5 * time.Minute,
		CacheMaxSize:        1000,
		CacheSweepInterval:  -1,
		Stage2Window:        24 * time.Hour,
		Stage2ExpiryPolicy:  "none",
		Stage2SweepInterval: time.Minute,
	}
}

// PollFixture describes a poll to insert. Zero values pick sensible defaults:
// two options, an end date a week out, no threshold.
type PollFixture struct {
	Title            string
	Options          []string
	CreatedBy        string
	CreatedAt        time.Time
	EndDate          time.Time
	VoteThreshold    int
	ActionInitiative bool
	Deleted          bool
}

// CreateTestPoll inserts a poll with its options and returns both
func CreateTestPoll(t *testing.T, conn *sql.DB, f PollFixture) (*models.Poll, []models.Option) {
	t.Helper()

	now := time.Now().UTC()
	if f.Title == "" {
		f.Title = "Test Poll"
	}
	if len(f.Options) == 0 {
		f.Options = []string{"Yes", "No"}
	}
	if f.CreatedBy == "" {
		f.CreatedBy = "creator"
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	if f.EndDate.IsZero() {
		f.EndDate = now.Add(7 * 24 * time.Hour)
	}

	p := &models.Poll{
		ID:                 auth.NewID(),
		Title:              f.Title,
		Description:        "A test poll",
		CreatedBy:          f.CreatedBy,
		CreatedAt:          f.CreatedAt,
		EndDate:            f.EndDate,
		IsActive:           !f.Deleted,
		IsDeleted:          f.Deleted,
		Category:           "general",
		PollType:           models.PollTypeSimple,
		IsActionInitiative: f.ActionInitiative,
		ActionStatus:       models.ActionPending,
	}
	if f.VoteThreshold > 0 {
		n := f.VoteThreshold
		p.VoteThreshold = &n
	}
	if f.ActionInitiative {
		plan := "Do the thing"
		p.ActionPlan = &plan
	}

	options := make([]models.Option, len(f.Options))
	for i, text := range f.Options {
		options[i] = models.Option{ID: auth.NewID(), PollID: p.ID, Text: text, Position: i}
	}

	if err := store.New(conn).CreatePoll(context.Background(), p, options); err != nil {
		t.Fatalf("Failed to create test poll: %v", err)
	}

	return p, options
}

// AddTestVote inserts a Stage-1 vote directly, bypassing the ledger
func AddTestVote(t *testing.T, conn *sql.DB, userID, pollID, optionID string) {
	t.Helper()

	_, _, err := store.New(conn).UpsertVote(context.Background(), models.Vote{
		ID:       auth.NewID(),
		UserID:   userID,
		PollID:   pollID,
		OptionID: optionID,
		VotedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Failed to add test vote: %v", err)
	}
}

// AddTestVoters casts n Stage-1 votes for optionID from voters user_0..user_{n-1}
func AddTestVoters(t *testing.T, conn *sql.DB, pollID, optionID string, n int) []string {
	t.Helper()

	users := make([]string, n)
	for i := range n {
		users[i] = fmt.Sprintf("user_%d", i)
		AddTestVote(t, conn, users[i], pollID, optionID)
	}
	return users
}

// SetPollField overwrites a single polls column. Used to reach states that
// the service only produces over time.
func SetPollField(t *testing.T, conn *sql.DB, pollID, column string, value any) {
	t.Helper()

	if _, err := conn.Exec(`UPDATE polls SET `+column+` = $1 WHERE id = $2`, value, pollID); err != nil {
		t.Fatalf("Failed to set %s: %v", column, err)
	}
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
