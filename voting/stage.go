// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielhkuo/pollgate/models"
	"github.com/danielhkuo/pollgate/store"
)

// DefaultStage2Window is how long Stage-2 voting stays open.
const DefaultStage2Window = 24 * time.Hour

// ExpiryPolicy decides what happens to a Stage-2 vote whose deadline
// passes without reaching quorum.
type ExpiryPolicy string

const (
	// ExpiryNone leaves the poll in stage2_voting; further ballots are refused.
	ExpiryNone ExpiryPolicy = "none"
	// ExpiryReject moves the poll to action_rejected.
	ExpiryReject ExpiryPolicy = "reject"
)

// ParseExpiryPolicy accepts "none" or "reject". Empty means none.
func ParseExpiryPolicy(s string) (ExpiryPolicy, error) {
	switch ExpiryPolicy(s) {
	case "", ExpiryNone:
		return ExpiryNone, nil
	case ExpiryReject:
		return ExpiryReject, nil
	}
	return "", fmt.Errorf("unknown stage 2 expiry policy %q", s)
}

// Stage2Receipt describes a recorded Stage-2 ballot and where the poll
// stands afterwards.
type Stage2Receipt struct {
	ActionStatus models.ActionStatus
	// Finalized is true when this ballot completed Stage 2.
	Finalized bool
}

// StageManager runs the action initiative workflow:
//
//	pending -> stage2_voting -> stage2_approved | action_rejected
//
// Every transition is a conditional update, so each fires at most once.
type StageManager struct {
	store       Store
	invalidator *Invalidator
	window      time.Duration
	policy      ExpiryPolicy
	now         func() time.Time
}

func NewStageManager(st Store, invalidator *Invalidator, window time.Duration, policy ExpiryPolicy, now func() time.Time) *StageManager {
	if window <= 0 {
		window = DefaultStage2Window
	}
	if policy == "" {
		policy = ExpiryNone
	}
	return &StageManager{store: st, invalidator: invalidator, window: window, policy: policy, now: now}
}

// Policy returns the configured expiry policy.
func (m *StageManager) Policy() ExpiryPolicy {
	return m.policy
}

// OpenStage2 starts Stage-2 voting on a pending action initiative. It
// reports false when the poll is not an initiative or has already moved on.
func (m *StageManager) OpenStage2(ctx context.Context, pollID string) (bool, error) {
	deadline := m.now().Add(m.window)
	opened, err := m.store.OpenStage2(ctx, pollID, deadline)
	if err != nil {
		return false, err
	}
	if opened {
		slog.Info("stage 2 opened", "poll_id", pollID, "deadline", deadline)
		m.invalidator.AfterStageTransition(pollID)
	}
	return opened, nil
}

// SubmitStage2Vote records voterID's approve/reject ballot. Only Stage-1
// voters may take part. A repeat ballot replaces the earlier one.
func (m *StageManager) SubmitStage2Vote(ctx context.Context, voterID, pollID string, approval models.Approval) (Stage2Receipt, error) {
	if voterID == "" {
		return Stage2Receipt{}, newError(ErrInvalid, "voter id is required")
	}

	poll, err := loadPoll(ctx, m.store, pollID)
	if err != nil {
		return Stage2Receipt{}, err
	}
	if !poll.IsActionInitiative {
		return Stage2Receipt{}, newError(ErrInvalid, "poll is not an action initiative")
	}
	if poll.ActionStatus != models.ActionStage2Voting {
		return Stage2Receipt{}, newError(ErrInvalid, "stage 2 voting is not open (status %s)", poll.ActionStatus)
	}
	if !approval.Valid() {
		return Stage2Receipt{}, newError(ErrInvalid, "approval must be %q or %q", models.ApprovalApprove, models.ApprovalReject)
	}

	now := m.now()
	if poll.Stage2Deadline != nil && now.After(*poll.Stage2Deadline) {
		return Stage2Receipt{}, newError(ErrExpired, "stage 2 voting has ended")
	}

	eligible, err := m.store.HasStage1Vote(ctx, voterID, pollID)
	if err != nil {
		return Stage2Receipt{}, err
	}
	if !eligible {
		return Stage2Receipt{}, newError(ErrForbidden, "only stage 1 voters can vote in stage 2")
	}

	err = m.store.UpsertStage2Vote(ctx, models.Stage2Vote{
		UserID:   voterID,
		PollID:   pollID,
		Approval: approval,
		VotedAt:  now,
	})
	if errors.Is(err, store.ErrConflict) {
		return Stage2Receipt{}, newError(ErrConflict, "stage 2 vote was changed concurrently, please retry")
	}
	if err != nil {
		return Stage2Receipt{}, fmt.Errorf("failed to record stage 2 vote: %w", err)
	}

	slog.Info("stage 2 vote recorded", "poll_id", pollID, "approval", approval)
	m.invalidator.AfterStage2Vote(pollID, voterID)

	status, finalized, err := m.CheckCompletion(ctx, pollID)
	if err != nil {
		slog.Error("stage 2 completion check failed", "poll_id", pollID, "error", err)
		status = models.ActionStage2Voting
	}

	return Stage2Receipt{ActionStatus: status, Finalized: finalized}, nil
}

// CheckCompletion finalizes Stage 2 once half of the Stage-1 voters
// (rounded up) have cast a Stage-2 ballot. Approval needs strictly more
// approve than reject ballots. It returns the poll's status and whether
// this call finalized it.
func (m *StageManager) CheckCompletion(ctx context.Context, pollID string) (models.ActionStatus, bool, error) {
	poll, err := loadPoll(ctx, m.store, pollID)
	if err != nil {
		return "", false, err
	}
	if poll.ActionStatus != models.ActionStage2Voting {
		return poll.ActionStatus, false, nil
	}

	stage1, err := m.store.CountVoters(ctx, pollID)
	if err != nil {
		return "", false, err
	}
	tally, err := m.store.Stage2Tally(ctx, pollID)
	if err != nil {
		return "", false, err
	}
	if !quorumReached(tally.Total(), stage1) {
		return models.ActionStage2Voting, false, nil
	}

	return m.finalize(ctx, pollID, outcome(tally), "quorum reached")
}

// CloseExpired applies the expiry policy to Stage-2 votes past their
// deadline and returns how many polls it finalized. Under ExpiryNone it
// does nothing.
func (m *StageManager) CloseExpired(ctx context.Context) (int, error) {
	if m.policy != ExpiryReject {
		return 0, nil
	}

	ids, err := m.store.ListExpiredStage2(ctx, m.now())
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, id := range ids {
		result := models.ActionRejected
		stage1, err := m.store.CountVoters(ctx, id)
		if err != nil {
			slog.Error("failed to close expired stage 2", "poll_id", id, "error", err)
			continue
		}
		tally, err := m.store.Stage2Tally(ctx, id)
		if err != nil {
			slog.Error("failed to close expired stage 2", "poll_id", id, "error", err)
			continue
		}
		if quorumReached(tally.Total(), stage1) {
			result = outcome(tally)
		}

		_, done, err := m.finalize(ctx, id, result, "deadline passed")
		if err != nil {
			slog.Error("failed to close expired stage 2", "poll_id", id, "error", err)
			continue
		}
		if done {
			closed++
		}
	}
	return closed, nil
}

// RunExpiryLoop calls CloseExpired every interval until ctx is done.
func (m *StageManager) RunExpiryLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.CloseExpired(ctx)
			if err != nil && ctx.Err() == nil {
				slog.Error("stage 2 expiry sweep failed", "error", err)
			}
			if n > 0 {
				slog.Info("stage 2 expiry sweep", "closed", n)
			}
		}
	}
}

func (m *StageManager) finalize(ctx context.Context, pollID string, result models.ActionStatus, reason string) (models.ActionStatus, bool, error) {
	done, err := m.store.FinalizeStage2(ctx, pollID, result)
	if err != nil {
		return "", false, err
	}
	if !done {
		// lost the race; report whatever the winner decided
		poll, err := loadPoll(ctx, m.store, pollID)
		if err != nil {
			return "", false, err
		}
		return poll.ActionStatus, false, nil
	}

	slog.Info("stage 2 finalized", "poll_id", pollID, "status", result, "reason", reason)
	m.invalidator.AfterStageTransition(pollID)
	return result, true, nil
}

// quorumNeeded is ceil(stage1 / 2).
func quorumNeeded(stage1 int) int {
	return (stage1 + 1) / 2
}

func quorumReached(stage2, stage1 int) bool {
	return stage2 > 0 && stage2 >= quorumNeeded(stage1)
}

func outcome(t models.Stage2Tally) models.ActionStatus {
	if t.Approve > t.Reject {
		return models.ActionStage2Approved
	}
	return models.ActionRejected
}
