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

// stage2Poll returns an action initiative in Stage-2 voting with n Stage-1 voters.
func stage2Poll(t *testing.T, e *env, n int) (*models.Poll, []string) {
	t.Helper()

	p, opts := testutil.CreateTestPoll(t, e.db, testutil.PollFixture{ActionInitiative: true})
	voters := testutil.AddTestVoters(t, e.db, p.ID, opts[0].ID, n)
	opened, err := e.svc.Stages.OpenStage2(context.Background(), p.ID)
	if err != nil || !opened {
		t.Fatalf("OpenStage2 = %v, %v", opened, err)
	}
	return p, voters
}

func TestQuorumNeeded(t *testing.T) {
	tests := []struct {
		stage1 int
		want   int
	}{
		{0, 0},
		{1, 1},
		{2, 1},
		{9, 5},
		{10, 5},
		{11, 6},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.stage1), func(t *testing.T) {
			if got := quorumNeeded(tt.stage1); got != tt.want {
				t.Errorf("quorumNeeded(%d) = %d, want %d", tt.stage1, got, tt.want)
			}
		})
	}
}

func TestStage2Outcomes(t *testing.T) {
	tests := []struct {
		name    string
		ballots []models.Approval
		want    models.ActionStatus
	}{
		{
			name:    "majority approve",
			ballots: []models.Approval{"approve", "approve", "reject", "reject", "approve"},
			want:    models.ActionStage2Approved,
		},
		{
			name:    "majority reject",
			ballots: []models.Approval{"approve", "approve", "reject", "reject", "reject"},
			want:    models.ActionRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, Config{})
			ctx := context.Background()
			p, voters := stage2Poll(t, e, 10)

			for i, approval := range tt.ballots {
				receipt, err := e.svc.Stages.SubmitStage2Vote(ctx, voters[i], p.ID, approval)
				if err != nil {
					t.Fatalf("ballot %d: %v", i, err)
				}
				last := i == len(tt.ballots)-1
				if receipt.Finalized != last {
					t.Fatalf("ballot %d: Finalized = %v", i, receipt.Finalized)
				}
				if last && receipt.ActionStatus != tt.want {
					t.Errorf("receipt status = %q, want %q", receipt.ActionStatus, tt.want)
				}
				if !last && receipt.ActionStatus != models.ActionStage2Voting {
					t.Errorf("ballot %d: status = %q before quorum", i, receipt.ActionStatus)
				}
			}

			if got := e.poll(t, p.ID).ActionStatus; got != tt.want {
				t.Errorf("ActionStatus = %q, want %q", got, tt.want)
			}

			_, err := e.svc.Stages.SubmitStage2Vote(ctx, voters[9], p.ID, models.ApprovalApprove)
			assertKind(t, err, ErrInvalid)
		})
	}
}

func TestStage2TieRejects(t *testing.T) {
	e := newEnv(t, Config{})
	ctx := context.Background()
	p, voters := stage2Poll(t, e, 4)

	e.svc.Stages.SubmitStage2Vote(ctx, voters[0], p.ID, models.ApprovalApprove)
	receipt, err := e.svc.Stages.SubmitStage2Vote(ctx, voters[1], p.ID, models.ApprovalReject)
	if err != nil {
		t.Fatalf("SubmitStage2Vote: %v", err)
	}
	if !receipt.Finalized || receipt.ActionStatus != models.ActionRejected {
		t.Errorf("receipt = %+v, want rejected on a tie", receipt)
	}
}

func TestStage2RevoteReplacesBallot(t *testing.T) {
	e := newEnv(t, Config{})
	ctx := context.Background()
	p, voters := stage2Poll(t, e, 10)

	e.svc.Stages.SubmitStage2Vote(ctx, voters[0], p.ID, models.ApprovalApprove)
	e.svc.Stages.SubmitStage2Vote(ctx, voters[0], p.ID, models.ApprovalReject)

	tally, err := e.store.Stage2Tally(ctx, p.ID)
	if err != nil {
		t.Fatalf("Stage2Tally: %v", err)
	}
	if tally.Approve != 0 || tally.Reject != 1 {
		t.Errorf("tally = %+v, want one reject", tally)
	}
}

func TestSubmitStage2VoteErrors(t *testing.T) {
	e := newEnv(t, Config{})
	ctx := context.Background()

	running, voters := stage2Poll(t, e, 4)
	plain, plainOpts := testutil.CreateTestPoll(t, e.db, testutil.PollFixture{})
	testutil.AddTestVote(t, e.db, "v", plain.ID, plainOpts[0].ID)
	pending, pendingOpts := testutil.CreateTestPoll(t, e.db, testutil.PollFixture{ActionInitiative: true})
	testutil.AddTestVote(t, e.db, "v", pending.ID, pendingOpts[0].ID)

	tests := []struct {
		name     string
		voter    string
		pollID   string
		approval models.Approval
		kind     error
	}{
		{"missing poll", voters[0], "nope", models.ApprovalApprove, ErrNotFound},
		{"not an initiative", "v", plain.ID, models.ApprovalApprove, ErrInvalid},
		{"stage 2 not open", "v", pending.ID, models.ApprovalApprove, ErrInvalid},
		{"bad approval", voters[0], running.ID, "maybe", ErrInvalid},
		{"not a stage 1 voter", "outsider", running.ID, models.ApprovalApprove, ErrForbidden},
		{"no voter", "", running.ID, models.ApprovalApprove, ErrInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.Stages.SubmitStage2Vote(ctx, tt.voter, tt.pollID, tt.approval)
			assertKind(t, err, tt.kind)
		})
	}

	if tally, _ := e.store.Stage2Tally(ctx, running.ID); tally.Total() != 0 {
		t.Errorf("rejected ballots must not be stored, tally = %+v", tally)
	}
}

func TestStage2Deadline(t *testing.T) {
	e := newEnv(t, Config{Stage2Window: time.Hour})
	ctx := context.Background()
	p, voters := stage2Poll(t, e, 10)
	deadline := *e.poll(t, p.ID).Stage2Deadline

	e.clock.Set(deadline)
	if _, err := e.svc.Stages.SubmitStage2Vote(ctx, voters[0], p.ID, models.ApprovalApprove); err != nil {
		t.Fatalf("ballot at the deadline should be accepted: %v", err)
	}

	e.clock.Advance(time.Second)
	_, err := e.svc.Stages.SubmitStage2Vote(ctx, voters[1], p.ID, models.ApprovalApprove)
	assertKind(t, err, ErrExpired)
}

func TestOpenStage2Once(t *testing.T) {
	e := newEnv(t, Config{})
	ctx := context.Background()
	p, _ := testutil.CreateTestPoll(t, e.db, testutil.PollFixture{ActionInitiative: true})
	plain, _ := testutil.CreateTestPoll(t, e.db, testutil.PollFixture{})

	if ok, err := e.svc.Stages.OpenStage2(ctx, plain.ID); err != nil || ok {
		t.Errorf("OpenStage2 on a plain poll = %v, %v", ok, err)
	}

	var wg sync.WaitGroup
	var opened atomic.Int32
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := e.svc.Stages.OpenStage2(ctx, p.ID); ok {
				opened.Add(1)
			}
		}()
	}
	wg.Wait()

	if n := opened.Load(); n != 1 {
		t.Errorf("stage 2 opened %d times, want 1", n)
	}
}

func TestCheckCompletionLeavesFinalPolls(t *testing.T) {
	e := newEnv(t, Config{})
	ctx := context.Background()
	p, voters := stage2Poll(t, e, 2)

	receipt, err := e.svc.Stages.SubmitStage2Vote(ctx, voters[0], p.ID, models.ApprovalApprove)
	if err != nil || !receipt.Finalized {
		t.Fatalf("receipt = %+v, err = %v", receipt, err)
	}

	status, finalized, err := e.svc.Stages.CheckCompletion(ctx, p.ID)
	if err != nil {
		t.Fatalf("CheckCompletion: %v", err)
	}
	if finalized || status != models.ActionStage2Approved {
		t.Errorf("CheckCompletion = %q, %v", status, finalized)
	}
}

func TestExpiryPolicyNone(t *testing.T) {
	e := newEnv(t, Config{Stage2Window: time.Hour})
	ctx := context.Background()
	p, _ := stage2Poll(t, e, 10)

	e.clock.Advance(2 * time.Hour)
	n, err := e.svc.Stages.CloseExpired(ctx)
	if err != nil || n != 0 {
		t.Fatalf("CloseExpired = %d, %v; want 0", n, err)
	}
	if got := e.poll(t, p.ID).ActionStatus; got != models.ActionStage2Voting {
		t.Errorf("ActionStatus = %q, want stage2_voting", got)
	}

	d, err := e.svc.Assembler.Display(ctx, p.ID, "")
	if err != nil {
		t.Fatalf("Display: %v", err)
	}
	if d.Stage2 == nil || !d.Stage2.Expired {
		t.Errorf("display should report stage 2 as expired: %+v", d.Stage2)
	}
}

func TestExpiryPolicyReject(t *testing.T) {
	e := newEnv(t, Config{Stage2Window: time.Hour, ExpiryPolicy: ExpiryReject})
	ctx := context.Background()
	expired, voters := stage2Poll(t, e, 10)
	e.svc.Stages.SubmitStage2Vote(ctx, voters[0], expired.ID, models.ApprovalApprove)

	e.clock.Advance(30 * time.Minute)
	fresh, _ := stage2Poll(t, e, 10)

	e.clock.Advance(45 * time.Minute)
	n, err := e.svc.Stages.CloseExpired(ctx)
	if err != nil {
		t.Fatalf("CloseExpired: %v", err)
	}
	if n != 1 {
		t.Errorf("closed %d polls, want 1", n)
	}
	if got := e.poll(t, expired.ID).ActionStatus; got != models.ActionRejected {
		t.Errorf("expired poll status = %q, want action_rejected", got)
	}
	if got := e.poll(t, fresh.ID).ActionStatus; got != models.ActionStage2Voting {
		t.Errorf("running poll status = %q, want stage2_voting", got)
	}

	if n, _ := e.svc.Stages.CloseExpired(ctx); n != 0 {
		t.Errorf("second sweep closed %d polls", n)
	}
}

func TestRunExpiryLoopStops(t *testing.T) {
	e := newEnv(t, Config{ExpiryPolicy: ExpiryReject})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.svc.Stages.RunExpiryLoop(ctx, 5*time.Millisecond)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunExpiryLoop did not stop after cancel")
	}
}
