// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danielhkuo/pollgate/cache"
	"github.com/danielhkuo/pollgate/models"
	"github.com/danielhkuo/pollgate/store"
)

// Assembler builds the per-viewer poll display and caches it.
type Assembler struct {
	store Store
	cache *cache.Cache
	ttl   time.Duration
	now   func() time.Time
}

func NewAssembler(st Store, c *cache.Cache, ttl time.Duration, now func() time.Time) *Assembler {
	return &Assembler{store: st, cache: c, ttl: ttl, now: now}
}

// Display returns pollID as seen by userID ("" for anonymous viewers).
// Soft-deleted polls are reported as not found. Errors are never cached.
func (a *Assembler) Display(ctx context.Context, pollID, userID string) (*models.PollDisplay, error) {
	return cache.GetOrSetTyped(ctx, a.cache, DisplayKey(pollID, userID), a.ttl,
		func(ctx context.Context) (*models.PollDisplay, error) {
			return a.assemble(ctx, pollID, userID)
		})
}

func (a *Assembler) assemble(ctx context.Context, pollID, userID string) (*models.PollDisplay, error) {
	poll, err := loadPoll(ctx, a.store, pollID)
	if err != nil {
		return nil, err
	}
	if poll.IsDeleted {
		return nil, newError(ErrNotFound, "poll %s not found", pollID)
	}

	tallies, err := a.store.OptionTallies(ctx, pollID)
	if err != nil {
		return nil, err
	}

	results := resultsFor(poll, tallies)

	now := a.now()
	d := &models.PollDisplay{
		Poll:        *poll,
		Status:      poll.Status(now),
		IsOpen:      poll.Open(now),
		Options:     results.Options,
		Results:     results,
		Progress:    progress(results.TotalVotes, poll.VoteThreshold),
		AssembledAt: now,
	}

	if userID != "" {
		vote, err := a.store.GetUserVote(ctx, userID, pollID)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return nil, err
		default:
			d.UserVote = vote
			d.HasVoted = true
			d.CanChangeVote = d.IsOpen
		}
	}

	if poll.IsActionInitiative && poll.ActionStatus != models.ActionPending {
		s2, err := a.stage2(ctx, poll, userID, d.HasVoted, results.TotalVotes, now)
		if err != nil {
			return nil, err
		}
		d.Stage2 = s2
	}

	return d, nil
}

func (a *Assembler) stage2(ctx context.Context, poll *models.Poll, userID string, hasVoted bool, stage1 int, now time.Time) (*models.Stage2Display, error) {
	tally, err := a.store.Stage2Tally(ctx, poll.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stage 2 tally: %w", err)
	}

	open := poll.ActionStatus == models.ActionStage2Voting
	expired := open && poll.Stage2Deadline != nil && now.After(*poll.Stage2Deadline)

	s := &models.Stage2Display{
		Deadline:      poll.Stage2Deadline,
		Expired:       expired,
		Eligible:      hasVoted && open && !expired,
		Approve:       tally.Approve,
		Reject:        tally.Reject,
		TotalVotes:    tally.Total(),
		Stage1Voters:  stage1,
		QuorumNeeded:  quorumNeeded(stage1),
		QuorumReached: quorumReached(tally.Total(), stage1),
	}

	if userID != "" {
		v, err := a.store.GetStage2Vote(ctx, userID, poll.ID)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return nil, err
		default:
			s.UserVote = v
		}
	}

	return s, nil
}
