// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/danielhkuo/pollgate/auth"
	"github.com/danielhkuo/pollgate/cache"
	"github.com/danielhkuo/pollgate/models"
	"github.com/danielhkuo/pollgate/store"
)

// Poll creation limits
const (
	MaxTitleLen       = 200
	MaxDescriptionLen = 1000
	MaxOptionLen      = 200
	MinOptions        = 2
	MaxOptions        = 10
	DefaultPollLength = 30 * 24 * time.Hour
	DefaultCategory   = "general"
)

// Active list limits
const (
	DefaultListLimit = 10
	MaxListLimit     = 50
)

// initiativesID names the initiatives list inside the active_polls namespace.
const initiativesID = "initiatives"

// PollManager creates, deletes and lists polls.
type PollManager struct {
	store       Store
	cache       *cache.Cache
	invalidator *Invalidator
	ttl         time.Duration
	now         func() time.Time
}

func NewPollManager(st Store, c *cache.Cache, invalidator *Invalidator, ttl time.Duration, now func() time.Time) *PollManager {
	return &PollManager{store: st, cache: c, invalidator: invalidator, ttl: ttl, now: now}
}

// CreatePoll validates req and stores the poll with its options.
func (m *PollManager) CreatePoll(ctx context.Context, creatorID string, req models.CreatePollRequest) (*models.Poll, error) {
	if creatorID == "" {
		return nil, newError(ErrInvalid, "creator id is required")
	}

	now := m.now()
	poll, texts, err := m.validate(req, now)
	if err != nil {
		return nil, err
	}

	poll.ID = auth.NewID()
	poll.CreatedBy = creatorID
	poll.CreatedAt = now

	options := make([]models.Option, len(texts))
	for i, text := range texts {
		options[i] = models.Option{ID: auth.NewID(), PollID: poll.ID, Text: text, Position: i}
	}

	if err := m.store.CreatePoll(ctx, poll, options); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, newError(ErrConflict, "poll already exists")
		}
		return nil, fmt.Errorf("failed to create poll: %w", err)
	}

	slog.Info("poll created", "poll_id", poll.ID, "creator", creatorID, "options", len(options),
		"action_initiative", poll.IsActionInitiative)
	m.invalidator.AfterPollCreated()

	return poll, nil
}

func (m *PollManager) validate(req models.CreatePollRequest, now time.Time) (*models.Poll, []string, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, nil, newError(ErrInvalid, "title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLen {
		return nil, nil, newError(ErrInvalid, "title must be at most %d characters", MaxTitleLen)
	}

	description := strings.TrimSpace(req.Description)
	if utf8.RuneCountInString(description) > MaxDescriptionLen {
		return nil, nil, newError(ErrInvalid, "description must be at most %d characters", MaxDescriptionLen)
	}

	var texts []string
	for _, o := range req.Options {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if utf8.RuneCountInString(o) > MaxOptionLen {
			return nil, nil, newError(ErrInvalid, "options must be at most %d characters", MaxOptionLen)
		}
		texts = append(texts, o)
	}
	if len(texts) < MinOptions || len(texts) > MaxOptions {
		return nil, nil, newError(ErrInvalid, "a poll needs between %d and %d options", MinOptions, MaxOptions)
	}

	endDate := now.Add(DefaultPollLength)
	if req.EndDate != nil {
		if !req.EndDate.After(now) {
			return nil, nil, newError(ErrInvalid, "end date must be in the future")
		}
		endDate = req.EndDate.UTC()
	}

	if req.VoteThreshold != nil && *req.VoteThreshold < 1 {
		return nil, nil, newError(ErrInvalid, "vote threshold must be at least 1")
	}

	pollType := req.PollType
	if pollType == "" {
		pollType = models.PollTypeSimple
	}
	if _, err := behaviorFor(pollType); err != nil {
		return nil, nil, err
	}

	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = DefaultCategory
	}

	p := &models.Poll{
		Title:              title,
		Description:        description,
		EndDate:            endDate,
		IsActive:           true,
		VoteThreshold:      req.VoteThreshold,
		Category:           category,
		PollType:           pollType,
		IsActionInitiative: req.IsActionInitiative,
		ActionStatus:       models.ActionPending,
	}

	if req.IsActionInitiative {
		if req.ActionPlan == nil || strings.TrimSpace(*req.ActionPlan) == "" {
			return nil, nil, newError(ErrInvalid, "action initiatives need an action plan")
		}
		plan := strings.TrimSpace(*req.ActionPlan)
		p.ActionPlan = &plan

		if req.ActionDeadline != nil {
			if !req.ActionDeadline.After(now) {
				return nil, nil, newError(ErrInvalid, "action deadline must be in the future")
			}
			d := req.ActionDeadline.UTC()
			p.ActionDeadline = &d
		}
	}

	return p, texts, nil
}

// DeletePoll soft-deletes a poll. Votes are kept.
func (m *PollManager) DeletePoll(ctx context.Context, pollID string) error {
	err := m.store.SoftDeletePoll(ctx, pollID)
	if errors.Is(err, store.ErrNotFound) {
		return newError(ErrNotFound, "poll %s not found", pollID)
	}
	if err != nil {
		return fmt.Errorf("failed to delete poll: %w", err)
	}

	slog.Info("poll deleted", "poll_id", pollID)
	m.invalidator.AfterPollDeleted(pollID)
	return nil
}

// NormalizeSort maps unknown sort orders to popular.
func NormalizeSort(sort string) string {
	switch sort {
	case models.SortRecent, models.SortActive:
		return sort
	}
	return models.SortPopular
}

// NormalizeLimit clamps limit to 1..MaxListLimit, defaulting to DefaultListLimit.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return min(limit, MaxListLimit)
}

// ActivePolls lists open polls with their threshold progress. Results are
// cached per sort order and limit.
func (m *PollManager) ActivePolls(ctx context.Context, sort string, limit int) ([]models.PollSummary, error) {
	sort = NormalizeSort(sort)
	limit = NormalizeLimit(limit)
	key := cache.GenerateKey(NamespaceActivePolls, sort, strconv.Itoa(limit))

	return cache.GetOrSetTyped(ctx, m.cache, key, m.ttl, func(ctx context.Context) ([]models.PollSummary, error) {
		polls, err := m.store.ActivePolls(ctx, m.now(), sort, limit)
		if err != nil {
			return nil, err
		}
		for i := range polls {
			polls[i].Progress = progress(polls[i].VoteCount, polls[i].VoteThreshold)
		}
		return polls, nil
	})
}

// ActiveInitiatives lists open action initiatives that are pending or in
// Stage-2 voting, most votes first, with option tallies and userID's own
// votes. Lists are cached per viewer.
func (m *PollManager) ActiveInitiatives(ctx context.Context, userID string) ([]models.InitiativeSummary, error) {
	key := cache.GenerateKey(NamespaceActivePolls, initiativesID, Scope(userID))

	return cache.GetOrSetTyped(ctx, m.cache, key, m.ttl, func(ctx context.Context) ([]models.InitiativeSummary, error) {
		polls, err := m.store.ActiveInitiatives(ctx, m.now(), DefaultListLimit)
		if err != nil {
			return nil, err
		}

		out := make([]models.InitiativeSummary, 0, len(polls))
		for _, p := range polls {
			item, err := m.initiative(ctx, p, userID)
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	})
}

func (m *PollManager) initiative(ctx context.Context, p models.PollSummary, userID string) (models.InitiativeSummary, error) {
	tallies, err := m.store.OptionTallies(ctx, p.ID)
	if err != nil {
		return models.InitiativeSummary{}, err
	}

	p.Progress = progress(p.VoteCount, p.VoteThreshold)
	item := models.InitiativeSummary{
		PollSummary: p,
		Options:     resultsFor(&p.Poll, tallies).Options,
	}
	if userID == "" {
		return item, nil
	}

	vote, err := m.store.GetUserVote(ctx, userID, p.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return models.InitiativeSummary{}, err
	default:
		item.UserVote = vote
		item.HasVoted = true
	}

	if p.ActionStatus == models.ActionStage2Voting {
		v, err := m.store.GetStage2Vote(ctx, userID, p.ID)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return models.InitiativeSummary{}, err
		default:
			item.Stage2Vote = v
			item.HasVotedStage2 = true
		}
	}

	return item, nil
}
