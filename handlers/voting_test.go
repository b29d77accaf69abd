// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielhkuo/pollgate/models"
	"github.com/danielhkuo/pollgate/testutil"
)

func (env *testEnv) castVote(t *testing.T, userID, pollID, optionID string) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.MakeRequest("POST", "/polls/"+pollID+"/votes",
		models.CastVoteRequest{OptionID: optionID}, userHeaders(userID))
	req.SetPathValue("id", pollID)
	w := httptest.NewRecorder()
	env.votes.CastVote(w, req)
	return w
}

func (env *testEnv) stage2Vote(t *testing.T, userID, pollID string, approval models.Approval) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.MakeRequest("POST", "/polls/"+pollID+"/stage2-votes",
		models.Stage2VoteRequest{Approval: approval}, userHeaders(userID))
	req.SetPathValue("id", pollID)
	w := httptest.NewRecorder()
	env.votes.SubmitStage2Vote(w, req)
	return w
}

func TestCastVote(t *testing.T) {
	env := setupEnv(t)
	poll, options := testutil.CreateTestPoll(t, env.db, testutil.PollFixture{})

	t.Run("first vote", func(t *testing.T) {
		w := env.castVote(t, "alice", poll.ID, options[0].ID)
		testutil.AssertStatus(t, w, http.StatusOK)

		var resp models.CastVoteResponse
		testutil.AssertJSON(t, w, &resp)
		if resp.Message != "Vote submitted" || resp.VoteID == "" {
			t.Errorf("Unexpected response %+v", resp)
		}
	})

	t.Run("changed vote", func(t *testing.T) {
		w := env.castVote(t, "alice", poll.ID, options[1].ID)
		testutil.AssertStatus(t, w, http.StatusOK)

		var resp models.CastVoteResponse
		testutil.AssertJSON(t, w, &resp)
		if resp.Message != "Vote updated" {
			t.Errorf("Expected 'Vote updated', got %q", resp.Message)
		}

		vote, err := env.svc.Assembler.Display(context.Background(), poll.ID, "alice")
		if err != nil {
			t.Fatalf("Display: %v", err)
		}
		if vote.UserVote == nil || vote.UserVote.OptionID != options[1].ID {
			t.Errorf("Expected alice's vote to point at option 2")
		}
	})

	ended, endedOpts := testutil.CreateTestPoll(t, env.db, testutil.PollFixture{EndDate: time.Now().Add(-time.Hour)})
	deleted, deletedOpts := testutil.CreateTestPoll(t, env.db, testutil.PollFixture{Deleted: true})

	testCases := []struct {
		name     string
		userID   string
		pollID   string
		optionID string
		expected int
	}{
		{"missing user", "", poll.ID, options[0].ID, http.StatusUnauthorized},
		{"missing option", "bob", poll.ID, "", http.StatusBadRequest},
		{"unknown poll", "bob", "missing", options[0].ID, http.StatusNotFound},
		{"option from another poll", "bob", poll.ID, endedOpts[0].ID, http.StatusBadRequest},
		{"ended poll", "bob", ended.ID, endedOpts[0].ID, http.StatusGone},
		{"deleted poll", "bob", deleted.ID, deletedOpts[0].ID, http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			testutil.AssertStatus(t, env.castVote(t, tc.userID, tc.pollID, tc.optionID), tc.expected)
		})
	}
}

func TestStage2Flow(t *testing.T) {
	env := setupEnv(t)
	poll, options := testutil.CreateTestPoll(t, env.db, testutil.PollFixture{
		ActionInitiative: true,
		VoteThreshold:    2,
	})

	t.Run("before stage 2 opens", func(t *testing.T) {
		testutil.AssertStatus(t, env.stage2Vote(t, "alice", poll.ID, models.ApprovalApprove), http.StatusBadRequest)
	})

	testutil.AssertStatus(t, env.castVote(t, "alice", poll.ID, options[0].ID), http.StatusOK)
	testutil.AssertStatus(t, env.castVote(t, "bob", poll.ID, options[1].ID), http.StatusOK)

	t.Run("invalid approval", func(t *testing.T) {
		testutil.AssertStatus(t, env.stage2Vote(t, "alice", poll.ID, "maybe"), http.StatusBadRequest)
	})

	t.Run("outsider forbidden", func(t *testing.T) {
		testutil.AssertStatus(t, env.stage2Vote(t, "carol", poll.ID, models.ApprovalApprove), http.StatusForbidden)
	})

	t.Run("quorum finalizes", func(t *testing.T) {
		w := env.stage2Vote(t, "alice", poll.ID, models.ApprovalApprove)
		testutil.AssertStatus(t, w, http.StatusOK)

		var resp models.Stage2VoteResponse
		testutil.AssertJSON(t, w, &resp)
		if !resp.Finalized || resp.ActionStatus != models.ActionStage2Approved {
			t.Errorf("Expected finalized approval, got %+v", resp)
		}
	})

	t.Run("closed after finalization", func(t *testing.T) {
		testutil.AssertStatus(t, env.stage2Vote(t, "bob", poll.ID, models.ApprovalReject), http.StatusBadRequest)
	})

	t.Run("not an initiative", func(t *testing.T) {
		plain, _ := testutil.CreateTestPoll(t, env.db, testutil.PollFixture{})
		testutil.AssertStatus(t, env.stage2Vote(t, "alice", plain.ID, models.ApprovalApprove), http.StatusBadRequest)
	})
}
