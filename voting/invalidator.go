// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"log/slog"

	"github.com/danielhkuo/pollgate/cache"
)

// Cache namespaces
const (
	NamespacePollDisplay = "poll_display"
	NamespaceActivePolls = "active_polls"
)

const anonymousScope = "anonymous"

// Scope returns the cache scope for a viewer: user_<id>, or anonymous.
func Scope(userID string) string {
	if userID == "" {
		return anonymousScope
	}
	return "user_" + userID
}

// DisplayKey is the cache key of a poll display as seen by userID.
func DisplayKey(pollID, userID string) string {
	return cache.GenerateKey(NamespacePollDisplay, pollID, Scope(userID))
}

// Invalidator drops cached reads after writes.
//
// A vote only touches the voter's own display, the anonymous display, and
// the active lists. Other viewers' displays of the same poll may show the
// old tally until their entries expire. Approval and stage transitions
// clear every display of the poll.
type Invalidator struct {
	cache *cache.Cache
}

func NewInvalidator(c *cache.Cache) *Invalidator {
	return &Invalidator{cache: c}
}

func (i *Invalidator) AfterVote(pollID, userID string) {
	i.cache.Delete(DisplayKey(pollID, userID))
	i.cache.Delete(DisplayKey(pollID, ""))
	i.cache.ClearByPrefix(NamespaceActivePolls)
}

func (i *Invalidator) AfterStage2Vote(pollID, userID string) {
	i.AfterVote(pollID, userID)
}

func (i *Invalidator) AfterPollCreated() {
	i.cache.ClearByPrefix(NamespaceActivePolls)
}

func (i *Invalidator) AfterPollDeleted(pollID string) {
	i.clearPoll(pollID)
}

func (i *Invalidator) AfterApproval(pollID string) {
	i.clearPoll(pollID)
}

func (i *Invalidator) AfterStageTransition(pollID string) {
	i.clearPoll(pollID)
}

func (i *Invalidator) clearPoll(pollID string) {
	n := i.cache.ClearByPrefix(cache.GenerateKey(NamespacePollDisplay, pollID))
	i.cache.ClearByPrefix(NamespaceActivePolls)
	slog.Debug("poll cache cleared", "poll_id", pollID, "entries", n)
}
