// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the pollgate API.

# Handler Types

Each handler is a struct around the voting service:

  - PollHandler: poll creation, soft deletion, the active list and the
    active action initiatives
  - VotingHandler: Stage-1 votes and Stage-2 ratification ballots
  - ResultsHandler: the assembled poll display
  - CacheHandler: read cache statistics

	svc := voting.New(store.New(db), c, voting.Config{})
	pollHandler := handlers.NewPollHandler(svc, cfg)

# Identity

Callers are identified by the X-User-ID header, set by the authenticating
proxy in front of the service. Writes require it; reads use it to include
the caller's own vote. Deleting a poll requires the X-Admin-Key returned
when the poll was created.

# Endpoints

	POST /polls                    → CreatePoll (returns admin_key)
	POST /polls/{id}/delete        → DeletePoll
	GET  /polls/active             → ActivePolls (?sort=popular|recent|active&limit=)
	GET  /initiatives/active       → ActiveInitiatives
	GET  /polls/{id}               → GetPoll
	POST /polls/{id}/votes         → CastVote
	POST /polls/{id}/stage2-votes  → SubmitStage2Vote
	GET  /cache/stats              → Stats

# Errors

Voting errors map to status codes by kind:

	not found  404
	invalid    400
	expired    410
	forbidden  403
	conflict   409

Anything else is logged and returned as a 500 without detail.
*/
package handlers
