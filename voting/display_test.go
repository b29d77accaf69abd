// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"testing"

	"github.com/danielhkuo/pollgate/models"
	"github.com/danielhkuo/pollgate/testutil"
)

func TestDisplayAnonymous(t *testing.T) {
	e := newEnv(t, Config{})
	ctx := context.Background()
	p, options := testutil.CreateTestPoll(t, e.db, testutil.PollFixture{VoteThreshold: 4})
	testutil.AddTestVote(t, e.db, "a", p.ID, options[0].ID)
	testutil.AddTestVote(t, e.db, "b", p.ID, options[1].ID)
	testutil.AddTestVote(t, e.db, "c", p.ID, options[1].ID)

	d, err := e.svc.Assembler.Display(ctx, p.ID, "")
	if err != nil {
		t.Fatalf("Display: %v", err)
	}

	if d.Status != models.StatusActive || !d.IsOpen {
		t.Errorf("Status = %q IsOpen = %v", d.Status, d.IsOpen)
	}
	if d.HasVoted || d.UserVote != nil || d.CanChangeVote {
		t.Error("anonymous viewers have no vote")
	}
	if d.Results.TotalVotes != 3 || len(d.Options) != 2 {
		t.Fatalf("results = %+v", d.Results)
	}
	if d.Options[1].VoteCount != 2 || d.Options[1].Percentage < 66 || d.Options[1].Percentage > 67 {
		t.Errorf("option B = %+v", d.Options[1])
	}
	if d.Results.Winner == nil || d.Results.Winner.ID != options[1].ID {
		t.Errorf("Winner = %+v, want option B", d.Results.Winner)
	}
	if d.Progress == nil || *d.Progress != 75 {
		t.Errorf("Progress = %v, want 75", d.Progress)
	}
	if d.Stage2 != nil {
		t.Error("plain polls have no stage 2 section")
	}
}

func TestDisplayForVoter(t *testing.T) {
	e := newEnv(t, Config{})
	ctx := context.Background()
	p, options := testutil.CreateTestPoll(t, e.db, testutil.PollFixture{})

	if _, err := e.svc.Ledger.CastVote(ctx, "alice", p.ID, options[1].ID); err != nil {
		t.Fatalf("CastVote: %v", err)
	}

	d, err := e.svc.Assembler.Display(ctx, p.ID, "alice")
	if err != nil {
		t.Fatalf("Display: %v", err)
	}
	if !d.HasVoted || d.UserVote == nil || d.UserVote.OptionID != options[1].ID {
		t.Errorf("UserVote = %+v", d.UserVote)
	}
	if !d.CanChangeVote {
		t.Error("voters can change their vote while the poll is open")
	}
	if d.Progress != nil {
		t.Error("polls without a threshold have no progress")
	}

	bob, err := e.svc.Assembler.Display(ctx, p.ID, "bob")
	if err != nil {
		t.Fatalf("Display: %v", err)
	}
	if bob.HasVoted {
		t.Error("bob has not voted")
	}
}

func TestDisplayIsCachedUntilInvalidated(t *testing.T) {
	e := newEnv(t, Config{})
	ctx := context.Background()
	p, options := testutil.CreateTestPoll(t, e.db, testutil.PollFixture{})

	first, err := e.svc.Assembler.Display(ctx, p.ID, "")
	if err != nil {
		t.Fatalf("Display: %v", err)
	}
	if !e.svc.Cache().Has(DisplayKey(p.ID, "")) {
		t.Fatal("display should be cached under the anonymous key")
	}

	// written behind the service's back, so nothing is invalidated
	testutil.AddTestVote(t, e.db, "sneaky", p.ID, options[0].ID)
	cached, _ := e.svc.Assembler.Display(ctx, p.ID, "")
	if cached != first || cached.Results.TotalVotes != 0 {
		t.Error("second read should come from the cache")
	}

	if _, err := e.svc.Ledger.CastVote(ctx, "carol", p.ID, options[0].ID); err != nil {
		t.Fatalf("CastVote: %v", err)
	}
	fresh, _ := e.svc.Assembler.Display(ctx, p.ID, "")
	if fresh.Results.TotalVotes != 2 {
		t.Errorf("TotalVotes = %d after invalidation, want 2", fresh.Results.TotalVotes)
	}
}

func TestDisplayErrorsAreNotCached(t *testing.T) {
	e := newEnv(t, Config{})
	ctx := context.Background()

	_, err := e.svc.Assembler.Display(ctx, "nope", "")
	assertKind(t, err, ErrNotFound)
	if e.svc.Cache().Len() != 0 {
		t.Error("failed assembly must not be cached")
	}

	p, _ := testutil.CreateTestPoll(t, e.db, testutil.PollFixture{})
	if _, err := e.svc.Assembler.Display(ctx, p.ID, ""); err != nil {
		t.Fatalf("Display: %v", err)
	}
	if err := e.svc.Polls.DeletePoll(ctx, p.ID); err != nil {
		t.Fatalf("DeletePoll: %v", err)
	}
	_, err = e.svc.Assembler.Display(ctx, p.ID, "")
	assertKind(t, err, ErrNotFound)
}

func TestDisplayExpiredPoll(t *testing.T) {
	e := newEnv(t, Config{})
	ctx := context.Background()
	p, options := testutil.CreateTestPoll(t, e.db, testutil.PollFixture{})
	testutil.AddTestVote(t, e.db, "alice", p.ID, options[0].ID)

	e.clock.Set(p.EndDate)
	d, err := e.svc.Assembler.Display(ctx, p.ID, "alice")
	if err != nil {
		t.Fatalf("Display: %v", err)
	}
	if d.Status != models.StatusExpired || d.IsOpen || d.CanChangeVote {
		t.Errorf("Status = %q IsOpen = %v CanChangeVote = %v", d.Status, d.IsOpen, d.CanChangeVote)
	}
}

func TestDisplayStage2(t *testing.T) {
	e := newEnv(t, Config{})
	ctx := context.Background()
	p, options := testutil.CreateTestPoll(t, e.db, testutil.PollFixture{VoteThreshold: 3, ActionInitiative: true})

	viewer := "outsider"
	if _, err := e.svc.Assembler.Display(ctx, p.ID, viewer); err != nil {
		t.Fatalf("Display: %v", err)
	}

	for _, voter := range []string{"A", "B", "C"} {
		if _, err := e.svc.Ledger.CastVote(ctx, voter, p.ID, options[0].ID); err != nil {
			t.Fatalf("CastVote: %v", err)
		}
	}
	if e.svc.Cache().Has(DisplayKey(p.ID, viewer)) {
		t.Error("approval should clear every viewer's display")
	}

	if _, err := e.svc.Stages.SubmitStage2Vote(ctx, "A", p.ID, models.ApprovalApprove); err != nil {
		t.Fatalf("SubmitStage2Vote: %v", err)
	}

	d, err := e.svc.Assembler.Display(ctx, p.ID, "A")
	if err != nil {
		t.Fatalf("Display: %v", err)
	}
	s := d.Stage2
	if s == nil {
		t.Fatal("action initiative in stage 2 should have a stage 2 section")
	}
	if !s.Eligible || s.Expired {
		t.Errorf("Eligible = %v Expired = %v", s.Eligible, s.Expired)
	}
	if s.UserVote == nil || s.UserVote.Approval != models.ApprovalApprove {
		t.Errorf("UserVote = %+v", s.UserVote)
	}
	if s.Approve != 1 || s.TotalVotes != 1 || s.Stage1Voters != 3 || s.QuorumNeeded != 2 || s.QuorumReached {
		t.Errorf("stage 2 = %+v", s)
	}

	out, err := e.svc.Assembler.Display(ctx, p.ID, viewer)
	if err != nil {
		t.Fatalf("Display: %v", err)
	}
	if out.Stage2 == nil || out.Stage2.Eligible {
		t.Error("non-voters are not eligible for stage 2")
	}
}
