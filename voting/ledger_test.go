// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danielhkuo/pollgate/models"
	"github.com/danielhkuo/pollgate/testutil"
)

func TestCastVote(t *testing.T) {
	e := newEnv(t, Config{})
	ctx := context.Background()
	p, options := testutil.CreateTestPoll(t, e.db, testutil.PollFixture{})

	first, err := e.svc.Ledger.CastVote(ctx, "alice", p.ID, options[0].ID)
	if err != nil {
		t.Fatalf("CastVote: %v", err)
	}
	if first.VoteID == "" || first.Updated {
		t.Errorf("first receipt = %+v", first)
	}

	second, err := e.svc.Ledger.CastVote(ctx, "alice", p.ID, options[1].ID)
	if err != nil {
		t.Fatalf("CastVote: %v", err)
	}
	if second.VoteID != first.VoteID || !second.Updated {
		t.Errorf("revote should update the same row: %+v vs %+v", second, first)
	}

	vote, err := e.store.GetUserVote(ctx, "alice", p.ID)
	if err != nil {
		t.Fatalf("GetUserVote: %v", err)
	}
	if vote.OptionID != options[1].ID {
		t.Errorf("stored option = %s, want latest %s", vote.OptionID, options[1].ID)
	}
	if n, _ := e.store.CountVoters(ctx, p.ID); n != 1 {
		t.Errorf("voters = %d, want 1", n)
	}
}

func TestCastVoteErrors(t *testing.T) {
	e := newEnv(t, Config{})
	ctx := context.Background()
	now := e.clock.Now()

	open, openOpts := testutil.CreateTestPoll(t, e.db, testutil.PollFixture{})
	_, otherOpts := testutil.CreateTestPoll(t, e.db, testutil.PollFixture{})
	deleted, deletedOpts := testutil.CreateTestPoll(t, e.db, testutil.PollFixture{Deleted: true})
	ended, endedOpts := testutil.CreateTestPoll(t, e.db, testutil.PollFixture{EndDate: now.Add(-time.Minute)})
	inactive, inactiveOpts := testutil.CreateTestPoll(t, e.db, testutil.PollFixture{})
	testutil.SetPollField(t, e.db, inactive.ID, "is_active", false)

	tests := []struct {
		name     string
		voter    string
		pollID   string
		optionID string
		kind     error
	}{
		{"missing poll", "u", "nope", openOpts[0].ID, ErrNotFound},
		{"deleted poll", "u", deleted.ID, deletedOpts[0].ID, ErrInvalid},
		{"inactive poll", "u", inactive.ID, inactiveOpts[0].ID, ErrInvalid},
		{"ended poll", "u", ended.ID, endedOpts[0].ID, ErrExpired},
		{"option from another poll", "u", open.ID, otherOpts[0].ID, ErrInvalid},
		{"unknown option", "u", open.ID, "nope", ErrInvalid},
		{"no voter", "", open.ID, openOpts[0].ID, ErrInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.Ledger.CastVote(ctx, tt.voter, tt.pollID, tt.optionID)
			assertKind(t, err, tt.kind)
		})
	}

	if n, _ := e.store.CountVoters(ctx, open.ID); n != 0 {
		t.Errorf("rejected votes must not be stored, got %d", n)
	}
}

func TestCastVoteAtEndDate(t *testing.T) {
	e := newEnv(t, Config{})
	ctx := context.Background()
	end := e.clock.Now().Add(time.Hour)
	p, options := testutil.CreateTestPoll(t, e.db, testutil.PollFixture{EndDate: end})

	e.clock.Set(end.Add(-time.Second))
	if _, err := e.svc.Ledger.CastVote(ctx, "a", p.ID, options[0].ID); err != nil {
		t.Fatalf("vote before end date: %v", err)
	}

	e.clock.Set(end)
	_, err := e.svc.Ledger.CastVote(ctx, "b", p.ID, options[0].ID)
	assertKind(t, err, ErrExpired)
}

func TestConcurrentCastsSameVoter(t *testing.T) {
	e := newEnv(t, Config{})
	ctx := context.Background()
	p, options := testutil.CreateTestPoll(t, e.db, testutil.PollFixture{Options: []string{"A", "B", "C"}})

	const workers = 12
	var wg sync.WaitGroup
	var failures atomic.Int32

	for i := range workers {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if _, err := e.svc.Ledger.CastVote(ctx, "same-voter", p.ID, options[n%len(options)].ID); err != nil {
				t.Logf("CastVote: %v", err)
				failures.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if failures.Load() != 0 {
		t.Errorf("%d casts failed", failures.Load())
	}
	if n, _ := e.store.CountVoters(ctx, p.ID); n != 1 {
		t.Errorf("voters = %d, want exactly 1 row", n)
	}

	tallies, _ := e.store.OptionTallies(ctx, p.ID)
	total := 0
	for _, tally := range tallies {
		total += tally.VoteCount
	}
	if total != 1 {
		t.Errorf("total votes = %d, want 1", total)
	}
}

func TestThresholdApprovalOpensStage2(t *testing.T) {
	e := newEnv(t, Config{})
	ctx := context.Background()
	p, options := testutil.CreateTestPoll(t, e.db, testutil.PollFixture{VoteThreshold: 3, ActionInitiative: true})

	for i, voter := range []string{"A", "B", "C"} {
		if _, err := e.svc.Ledger.CastVote(ctx, voter, p.ID, options[0].ID); err != nil {
			t.Fatalf("CastVote(%s): %v", voter, err)
		}
		got := e.poll(t, p.ID)
		if i < 2 && (got.IsApproved || got.ActionStatus != models.ActionPending) {
			t.Fatalf("poll approved after %d votes", i+1)
		}
	}

	got := e.poll(t, p.ID)
	if !got.IsApproved || got.ApprovedAt == nil {
		t.Fatal("poll should be approved after the third voter")
	}
	if got.ActionStatus != models.ActionStage2Voting {
		t.Fatalf("ActionStatus = %q, want stage2_voting", got.ActionStatus)
	}
	want := e.clock.Now().Add(DefaultStage2Window)
	if got.Stage2Deadline == nil || !got.Stage2Deadline.Equal(want) {
		t.Errorf("Stage2Deadline = %v, want %v", got.Stage2Deadline, want)
	}
}

func TestThresholdCountsDistinctVoters(t *testing.T) {
	e := newEnv(t, Config{})
	ctx := context.Background()
	p, options := testutil.CreateTestPoll(t, e.db, testutil.PollFixture{VoteThreshold: 2})

	for range 3 {
		e.svc.Ledger.CastVote(ctx, "solo", p.ID, options[0].ID)
		e.svc.Ledger.CastVote(ctx, "solo", p.ID, options[1].ID)
	}
	if e.poll(t, p.ID).IsApproved {
		t.Fatal("revotes from one voter must not reach the threshold")
	}

	e.svc.Ledger.CastVote(ctx, "second", p.ID, options[0].ID)
	got := e.poll(t, p.ID)
	if !got.IsApproved {
		t.Fatal("poll should be approved with two distinct voters")
	}
	if got.ActionStatus != models.ActionPending {
		t.Errorf("plain polls keep status pending, got %q", got.ActionStatus)
	}
}

func TestEvaluate(t *testing.T) {
	e := newEnv(t, Config{})
	ctx := context.Background()

	noThreshold, opts := testutil.CreateTestPoll(t, e.db, testutil.PollFixture{})
	testutil.AddTestVoters(t, e.db, noThreshold.ID, opts[0].ID, 5)
	if ok, err := e.svc.Evaluator.Evaluate(ctx, noThreshold.ID); err != nil || ok {
		t.Errorf("no threshold: Evaluate = %v, %v", ok, err)
	}

	if _, err := e.svc.Evaluator.Evaluate(ctx, "nope"); err == nil {
		t.Error("missing poll should be an error")
	}

	p, opts := testutil.CreateTestPoll(t, e.db, testutil.PollFixture{VoteThreshold: 2})
	testutil.AddTestVoters(t, e.db, p.ID, opts[0].ID, 2)
	if ok, err := e.svc.Evaluator.Evaluate(ctx, p.ID); err != nil || !ok {
		t.Fatalf("Evaluate = %v, %v; want true", ok, err)
	}
	approvedAt := e.poll(t, p.ID).ApprovedAt

	e.clock.Advance(time.Hour)
	if ok, _ := e.svc.Evaluator.Evaluate(ctx, p.ID); ok {
		t.Error("an approved poll must not be approved again")
	}
	if got := e.poll(t, p.ID).ApprovedAt; !got.Equal(*approvedAt) {
		t.Errorf("ApprovedAt moved from %v to %v", approvedAt, got)
	}
}

func TestConcurrentApprovalFiresOnce(t *testing.T) {
	e := newEnv(t, Config{})
	ctx := context.Background()
	p, opts := testutil.CreateTestPoll(t, e.db, testutil.PollFixture{VoteThreshold: 2, ActionInitiative: true})
	testutil.AddTestVoters(t, e.db, p.ID, opts[0].ID, 2)

	const workers = 10
	var wg sync.WaitGroup
	var approvals atomic.Int32

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := e.svc.Evaluator.Evaluate(ctx, p.ID)
			if err != nil {
				t.Errorf("Evaluate: %v", err)
				return
			}
			if ok {
				approvals.Add(1)
			}
		}()
	}
	wg.Wait()

	if n := approvals.Load(); n != 1 {
		t.Errorf("approvals reported = %d, want exactly 1", n)
	}
	if got := e.poll(t, p.ID); got.ActionStatus != models.ActionStage2Voting {
		t.Errorf("ActionStatus = %q, want stage2_voting", got.ActionStatus)
	}
}

func TestCastVoteInvalidatesCache(t *testing.T) {
	e := newEnv(t, Config{})
	ctx := context.Background()
	p, options := testutil.CreateTestPoll(t, e.db, testutil.PollFixture{})
	c := e.svc.Cache()

	other := DisplayKey(p.ID, "bob")
	c.Set(DisplayKey(p.ID, "alice"), "x", 0)
	c.Set(DisplayKey(p.ID, ""), "x", 0)
	c.Set(other, "x", 0)
	c.Set(fmt.Sprintf("%s:popular:10", NamespaceActivePolls), "x", 0)

	if _, err := e.svc.Ledger.CastVote(ctx, "alice", p.ID, options[0].ID); err != nil {
		t.Fatalf("CastVote: %v", err)
	}

	if c.Has(DisplayKey(p.ID, "alice")) || c.Has(DisplayKey(p.ID, "")) {
		t.Error("voter and anonymous displays should be invalidated")
	}
	if c.Has(NamespaceActivePolls + ":popular:10") {
		t.Error("active lists should be invalidated")
	}
	if !c.Has(other) {
		t.Error("other viewers' displays are left to expire")
	}
}
