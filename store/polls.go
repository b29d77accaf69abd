// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/danielhkuo/pollgate/models"
)

// GetPoll loads a poll by id, deleted or not.
func (s *SQLStore) GetPoll(ctx context.Context, pollID string) (*models.Poll, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+pollColumns+` FROM polls p WHERE p.id = $1`, pollID)
	p, err := scanPoll(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get poll: %w", err)
	}
	return p, nil
}

// CreatePoll inserts the poll and its options in one transaction.
func (s *SQLStore) CreatePoll(ctx context.Context, p *models.Poll, options []models.Option) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var threshold any
	if p.VoteThreshold != nil {
		threshold = *p.VoteThreshold
	}
	var actionPlan any
	if p.ActionPlan != nil {
		actionPlan = *p.ActionPlan
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO polls (id, title, description, created_by, created_at, end_date,
			is_active, is_deleted, vote_threshold, is_approved, category, poll_type,
			is_action_initiative, action_plan, action_deadline, action_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, p.ID, p.Title, p.Description, p.CreatedBy, p.CreatedAt.UTC(), p.EndDate.UTC(),
		p.IsActive, p.IsDeleted, threshold, p.IsApproved, p.Category, string(p.PollType),
		p.IsActionInitiative, actionPlan, nullTime(p.ActionDeadline), string(p.ActionStatus))
	if err != nil {
		return fmt.Errorf("failed to insert poll: %w", classify(err))
	}

	for _, o := range options {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO options (id, poll_id, option_text, position)
			VALUES ($1, $2, $3, $4)
		`, o.ID, o.PollID, o.Text, o.Position)
		if err != nil {
			return fmt.Errorf("failed to insert option: %w", classify(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit poll: %w", err)
	}
	return nil
}

// SoftDeletePoll marks a poll deleted and inactive.
func (s *SQLStore) SoftDeletePoll(ctx context.Context, pollID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE polls SET is_deleted = TRUE, is_active = FALSE WHERE id = $1
	`, pollID)
	if err != nil {
		return fmt.Errorf("failed to delete poll: %w", err)
	}
	ok, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// MarkApproved sets the approval flag if it is not already set.
// It reports whether this call made the transition.
func (s *SQLStore) MarkApproved(ctx context.Context, pollID string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE polls SET is_approved = TRUE, approved_at = $1
		WHERE id = $2 AND is_approved = FALSE
	`, at.UTC(), pollID)
	if err != nil {
		return false, fmt.Errorf("failed to approve poll: %w", err)
	}
	return rowsAffected(res)
}

// OpenStage2 moves a pending action initiative into Stage-2 voting.
// It reports whether this call made the transition.
func (s *SQLStore) OpenStage2(ctx context.Context, pollID string, deadline time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE polls SET action_status = 'stage2_voting', stage2_deadline = $1
		WHERE id = $2 AND is_action_initiative = TRUE AND action_status = 'pending'
	`, deadline.UTC(), pollID)
	if err != nil {
		return false, fmt.Errorf("failed to open stage 2: %w", err)
	}
	return rowsAffected(res)
}

// FinalizeStage2 records the Stage-2 outcome if the poll is still in
// Stage-2 voting. It reports whether this call made the transition.
func (s *SQLStore) FinalizeStage2(ctx context.Context, pollID string, outcome models.ActionStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE polls SET action_status = $1
		WHERE id = $2 AND action_status = 'stage2_voting'
	`, string(outcome), pollID)
	if err != nil {
		return false, fmt.Errorf("failed to finalize stage 2: %w", err)
	}
	return rowsAffected(res)
}

// ListExpiredStage2 returns polls still in Stage-2 voting whose deadline is before now.
func (s *SQLStore) ListExpiredStage2(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM polls
		WHERE action_status = 'stage2_voting' AND stage2_deadline < $1
		ORDER BY stage2_deadline
	`, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list expired stage 2 polls: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan poll id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ActivePolls lists open polls with their voter counts.
func (s *SQLStore) ActivePolls(ctx context.Context, now time.Time, sort string, limit int) ([]models.PollSummary, error) {
	var order string
	switch sort {
	case models.SortRecent:
		order = `p.created_at DESC`
	case models.SortActive:
		order = `MAX(v.voted_at) IS NULL, MAX(v.voted_at) DESC, p.created_at DESC`
	default:
		order = `COUNT(v.id) DESC, p.created_at DESC`
	}
	return s.openPolls(ctx, now, ``, order, limit)
}

// ActiveInitiatives lists open action initiatives still pending or in
// Stage-2 voting, most votes first.
func (s *SQLStore) ActiveInitiatives(ctx context.Context, now time.Time, limit int) ([]models.PollSummary, error) {
	return s.openPolls(ctx, now,
		`AND p.is_action_initiative = TRUE AND p.action_status IN ('pending', 'stage2_voting')`,
		`COUNT(v.id) DESC, p.created_at DESC`, limit)
}

// openPolls runs the open-poll listing with an extra filter and ordering.
// Both are fixed SQL fragments, never user input.
func (s *SQLStore) openPolls(ctx context.Context, now time.Time, filter, order string, limit int) ([]models.PollSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+pollColumns+`, COUNT(v.id)
		FROM polls p
		LEFT JOIN votes v ON v.poll_id = p.id
		WHERE p.is_active = TRUE AND p.is_deleted = FALSE AND p.end_date > $1 `+filter+`
		GROUP BY p.id
		ORDER BY `+order+`
		LIMIT $2
	`, now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list active polls: %w", err)
	}
	defer rows.Close()

	polls := []models.PollSummary{}
	for rows.Next() {
		var count int
		p, err := scanPoll(rows, &count)
		if err != nil {
			return nil, fmt.Errorf("failed to scan poll: %w", err)
		}
		polls = append(polls, models.PollSummary{Poll: *p, VoteCount: count})
	}
	return polls, rows.Err()
}
