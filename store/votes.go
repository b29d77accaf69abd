// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/danielhkuo/pollgate/models"
)

// GetOption loads an option by id.
func (s *SQLStore) GetOption(ctx context.Context, optionID string) (*models.Option, error) {
	var o models.Option
	err := s.db.QueryRowContext(ctx, `
		SELECT id, poll_id, option_text, position FROM options WHERE id = $1
	`, optionID).Scan(&o.ID, &o.PollID, &o.Text, &o.Position)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get option: %w", err)
	}
	return &o, nil
}

// OptionTallies returns the poll's options in display order with their
// vote counts. Percentages are left to the caller.
func (s *SQLStore) OptionTallies(ctx context.Context, pollID string) ([]models.OptionTally, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT o.id, o.poll_id, o.option_text, o.position, COUNT(v.id)
		FROM options o
		LEFT JOIN votes v ON v.option_id = o.id
		WHERE o.poll_id = $1
		GROUP BY o.id, o.poll_id, o.option_text, o.position
		ORDER BY o.position, o.id
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to tally options: %w", err)
	}
	defer rows.Close()

	tallies := []models.OptionTally{}
	for rows.Next() {
		var t models.OptionTally
		if err := rows.Scan(&t.ID, &t.PollID, &t.Text, &t.Position, &t.VoteCount); err != nil {
			return nil, fmt.Errorf("failed to scan option tally: %w", err)
		}
		tallies = append(tallies, t)
	}
	return tallies, rows.Err()
}

// UpsertVote records the voter's choice, replacing any earlier vote on the
// same poll in a single statement. It returns the id of the stored row and
// whether an existing vote was updated.
func (s *SQLStore) UpsertVote(ctx context.Context, v models.Vote) (string, bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO votes (id, user_id, poll_id, option_id, voted_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, poll_id)
		DO UPDATE SET option_id = excluded.option_id, voted_at = excluded.voted_at
		RETURNING id
	`, v.ID, v.UserID, v.PollID, v.OptionID, v.VotedAt.UTC()).Scan(&id)
	if err != nil {
		return "", false, fmt.Errorf("failed to upsert vote: %w", classify(err))
	}
	return id, id != v.ID, nil
}

// GetUserVote returns the voter's Stage-1 vote on the poll.
func (s *SQLStore) GetUserVote(ctx context.Context, userID, pollID string) (*models.Vote, error) {
	var v models.Vote
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, poll_id, option_id, voted_at
		FROM votes WHERE user_id = $1 AND poll_id = $2
	`, userID, pollID).Scan(&v.ID, &v.UserID, &v.PollID, &v.OptionID, &v.VotedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vote: %w", err)
	}
	v.VotedAt = v.VotedAt.UTC()
	return &v, nil
}

// HasStage1Vote reports whether the voter cast a Stage-1 vote on the poll.
func (s *SQLStore) HasStage1Vote(ctx context.Context, userID, pollID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM votes WHERE user_id = $1 AND poll_id = $2
	`, userID, pollID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check stage 1 vote: %w", err)
	}
	return n > 0, nil
}

// CountVoters returns the number of distinct Stage-1 voters on the poll.
func (s *SQLStore) CountVoters(ctx context.Context, pollID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT user_id) FROM votes WHERE poll_id = $1
	`, pollID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count voters: %w", err)
	}
	return n, nil
}

// UpsertStage2Vote records the voter's Stage-2 ballot, replacing any
// earlier one in a single statement.
func (s *SQLStore) UpsertStage2Vote(ctx context.Context, v models.Stage2Vote) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stage2_votes (user_id, poll_id, approval, voted_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, poll_id)
		DO UPDATE SET approval = excluded.approval, voted_at = excluded.voted_at
	`, v.UserID, v.PollID, string(v.Approval), v.VotedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert stage 2 vote: %w", classify(err))
	}
	return nil
}

// GetStage2Vote returns the voter's Stage-2 ballot on the poll.
func (s *SQLStore) GetStage2Vote(ctx context.Context, userID, pollID string) (*models.Stage2Vote, error) {
	var v models.Stage2Vote
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, poll_id, approval, voted_at
		FROM stage2_votes WHERE user_id = $1 AND poll_id = $2
	`, userID, pollID).Scan(&v.UserID, &v.PollID, &v.Approval, &v.VotedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stage 2 vote: %w", err)
	}
	v.VotedAt = v.VotedAt.UTC()
	return &v, nil
}

// Stage2Tally counts approve and reject ballots on the poll.
func (s *SQLStore) Stage2Tally(ctx context.Context, pollID string) (models.Stage2Tally, error) {
	var t models.Stage2Tally
	rows, err := s.db.QueryContext(ctx, `
		SELECT approval, COUNT(*) FROM stage2_votes WHERE poll_id = $1 GROUP BY approval
	`, pollID)
	if err != nil {
		return t, fmt.Errorf("failed to tally stage 2 votes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			approval models.Approval
			n        int
		)
		if err := rows.Scan(&approval, &n); err != nil {
			return t, fmt.Errorf("failed to scan stage 2 tally: %w", err)
		}
		switch approval {
		case models.ApprovalApprove:
			t.Approve = n
		case models.ApprovalReject:
			t.Reject = n
		}
	}
	return t, rows.Err()
}
