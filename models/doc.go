// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

  - CreatePollRequest: title, description, options, end_date, vote_threshold,
    category, poll_type, action initiative fields
  - CastVoteRequest: option_id
  - Stage2VoteRequest: approval ("approve" or "reject")

# Response Types

  - CreatePollResponse: poll_id, admin_key
  - CastVoteResponse: vote_id, message
  - Stage2VoteResponse: action_status, finalized, message
  - ActivePollsResponse: polls, sort
  - ErrorResponse: error, message

# Domain Types

  - Poll: poll metadata, approval flags and action initiative state
  - Option: voting option owned by exactly one poll
  - Vote: a voter's single, updatable Stage-1 choice
  - Stage2Vote: approve/reject ballot on an action initiative
  - OptionTally, Results, Stage2Tally: aggregated counts
  - PollDisplay, PollSummary: read models served through the cache

# Action Status

An action initiative moves forward only:

	pending → stage2_voting → stage2_approved | action_rejected

Poll status (active, expired, deleted) is derived from the flags and the end
date at read time and never stored.
*/
package models
