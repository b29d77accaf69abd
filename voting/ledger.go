// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielhkuo/pollgate/auth"
	"github.com/danielhkuo/pollgate/models"
	"github.com/danielhkuo/pollgate/store"
)

// Receipt describes a recorded Stage-1 vote.
type Receipt struct {
	VoteID  string
	Updated bool
}

// Ledger records Stage-1 votes. A voter holds at most one vote per poll;
// casting again replaces the earlier choice.
type Ledger struct {
	store       Store
	evaluator   *ThresholdEvaluator
	invalidator *Invalidator
	now         func() time.Time
}

func NewLedger(st Store, evaluator *ThresholdEvaluator, invalidator *Invalidator, now func() time.Time) *Ledger {
	return &Ledger{store: st, evaluator: evaluator, invalidator: invalidator, now: now}
}

// CastVote records voterID's choice of optionID on pollID, then evaluates
// the poll's threshold and invalidates affected cache entries. Threshold
// failures are logged, never returned; the vote stands.
func (l *Ledger) CastVote(ctx context.Context, voterID, pollID, optionID string) (Receipt, error) {
	if voterID == "" {
		return Receipt{}, newError(ErrInvalid, "voter id is required")
	}

	poll, err := loadPoll(ctx, l.store, pollID)
	if err != nil {
		return Receipt{}, err
	}

	now := l.now()
	if !poll.IsActive || poll.IsDeleted {
		return Receipt{}, newError(ErrInvalid, "poll is not active")
	}
	if poll.Expired(now) {
		return Receipt{}, newError(ErrExpired, "poll has ended")
	}

	option, err := l.store.GetOption(ctx, optionID)
	if errors.Is(err, store.ErrNotFound) {
		return Receipt{}, newError(ErrInvalid, "option does not belong to this poll")
	}
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to load option: %w", err)
	}
	if option.PollID != poll.ID {
		return Receipt{}, newError(ErrInvalid, "option does not belong to this poll")
	}

	behavior, err := behaviorFor(poll.PollType)
	if err != nil {
		return Receipt{}, err
	}
	if err := behavior.Validate(Ballot{Poll: poll, Option: option, VoterID: voterID}); err != nil {
		return Receipt{}, err
	}

	voteID, updated, err := l.store.UpsertVote(ctx, models.Vote{
		ID:       auth.NewID(),
		UserID:   voterID,
		PollID:   poll.ID,
		OptionID: option.ID,
		VotedAt:  now,
	})
	if errors.Is(err, store.ErrConflict) {
		return Receipt{}, newError(ErrConflict, "vote was changed concurrently, please retry")
	}
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to record vote: %w", err)
	}

	if _, err := l.evaluator.Evaluate(ctx, poll.ID); err != nil {
		slog.Error("threshold evaluation failed", "poll_id", poll.ID, "error", err)
	}
	l.invalidator.AfterVote(poll.ID, voterID)

	slog.Info("vote recorded", "poll_id", poll.ID, "vote_id", voteID, "updated", updated)

	return Receipt{VoteID: voteID, Updated: updated}, nil
}
