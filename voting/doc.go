// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package voting is the poll ledger and approval state machine.

# Flow

	Ledger.CastVote
	  -> ThresholdEvaluator.Evaluate   (approves at most once)
	       -> StageManager.OpenStage2  (action initiatives only)
	  -> Invalidator.AfterVote
	Assembler.Display                  (cached per viewer)

Each component is built by New and reachable from Service.

# Consistency

The store enforces every invariant. Votes and Stage-2 ballots are single
statement upserts against a unique (user_id, poll_id) key. Approval and
stage transitions are conditional updates; the caller whose update touched
a row is the one that fired the transition and the only one that logs it
and invalidates the cache.

# Errors

Failures carry one of the kinds ErrNotFound, ErrInvalid, ErrExpired,
ErrForbidden or ErrConflict:

	if errors.Is(err, voting.ErrExpired) {
		// poll closed
	}

Threshold evaluation and the Stage-2 completion check run after a vote is
stored; their failures are logged and the vote still succeeds.

# Stage 2

Approving an action initiative opens a Stage-2 vote for Stage2Window. Only
Stage-1 voters may cast approve/reject ballots. Once ceil(stage1/2) ballots
are in, the poll becomes stage2_approved if approve > reject and
action_rejected otherwise. What happens when the window closes without
quorum is the ExpiryPolicy: ExpiryNone keeps the poll in stage2_voting,
ExpiryReject lets CloseExpired reject it.
*/
package voting
