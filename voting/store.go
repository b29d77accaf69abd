// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"time"

	"github.com/danielhkuo/pollgate/models"
)

// Store is the storage the voting core runs against. *store.SQLStore
// implements it. Transition methods report whether the call changed a
// row, so exactly one concurrent caller observes true.
type Store interface {
	GetPoll(ctx context.Context, pollID string) (*models.Poll, error)
	CreatePoll(ctx context.Context, p *models.Poll, options []models.Option) error
	SoftDeletePoll(ctx context.Context, pollID string) error
	ActivePolls(ctx context.Context, now time.Time, sort string, limit int) ([]models.PollSummary, error)
	ActiveInitiatives(ctx context.Context, now time.Time, limit int) ([]models.PollSummary, error)

	GetOption(ctx context.Context, optionID string) (*models.Option, error)
	OptionTallies(ctx context.Context, pollID string) ([]models.OptionTally, error)

	UpsertVote(ctx context.Context, v models.Vote) (voteID string, updated bool, err error)
	GetUserVote(ctx context.Context, userID, pollID string) (*models.Vote, error)
	HasStage1Vote(ctx context.Context, userID, pollID string) (bool, error)
	CountVoters(ctx context.Context, pollID string) (int, error)

	MarkApproved(ctx context.Context, pollID string, at time.Time) (bool, error)
	OpenStage2(ctx context.Context, pollID string, deadline time.Time) (bool, error)
	FinalizeStage2(ctx context.Context, pollID string, outcome models.ActionStatus) (bool, error)
	ListExpiredStage2(ctx context.Context, now time.Time) ([]string, error)

	UpsertStage2Vote(ctx context.Context, v models.Stage2Vote) error
	GetStage2Vote(ctx context.Context, userID, pollID string) (*models.Stage2Vote, error)
	Stage2Tally(ctx context.Context, pollID string) (models.Stage2Tally, error)
}
