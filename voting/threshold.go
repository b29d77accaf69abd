// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"log/slog"
	"time"

	"github.com/danielhkuo/pollgate/models"
)

// ThresholdEvaluator approves a poll once its distinct voter count reaches
// the poll's vote threshold.
type ThresholdEvaluator struct {
	store       Store
	stages      *StageManager
	invalidator *Invalidator
	now         func() time.Time
}

func NewThresholdEvaluator(st Store, stages *StageManager, invalidator *Invalidator, now func() time.Time) *ThresholdEvaluator {
	return &ThresholdEvaluator{store: st, stages: stages, invalidator: invalidator, now: now}
}

// Evaluate reports whether this call approved the poll. Polls without a
// threshold are left alone. Approving a pending action initiative also
// opens its Stage-2 vote; an approved initiative still pending (its opening
// failed earlier) gets the opening retried.
func (e *ThresholdEvaluator) Evaluate(ctx context.Context, pollID string) (bool, error) {
	poll, err := loadPoll(ctx, e.store, pollID)
	if err != nil {
		return false, err
	}
	if poll.VoteThreshold == nil {
		return false, nil
	}
	if poll.IsApproved {
		if awaitingStage2(poll) {
			e.openStage2(ctx, pollID)
		}
		return false, nil
	}

	voters, err := e.store.CountVoters(ctx, pollID)
	if err != nil {
		return false, err
	}
	if voters < *poll.VoteThreshold {
		return false, nil
	}

	approved, err := e.store.MarkApproved(ctx, pollID, e.now())
	if err != nil {
		return false, err
	}
	if !approved {
		// another caller got there first
		return false, nil
	}

	slog.Info("poll approved", "poll_id", pollID, "voters", voters, "threshold", *poll.VoteThreshold)

	if awaitingStage2(poll) {
		e.openStage2(ctx, pollID)
	}
	e.invalidator.AfterApproval(pollID)

	return true, nil
}

// openStage2 logs failures; the next Evaluate on the poll retries.
func (e *ThresholdEvaluator) openStage2(ctx context.Context, pollID string) {
	if _, err := e.stages.OpenStage2(ctx, pollID); err != nil {
		slog.Error("failed to open stage 2", "poll_id", pollID, "error", err)
	}
}

func awaitingStage2(p *models.Poll) bool {
	return p.IsActionInitiative && p.ActionStatus == models.ActionPending
}
