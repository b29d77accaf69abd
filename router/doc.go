// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the pollgate API.

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(svc, cfg)

# Endpoints

Health:

	GET /health

Polls:

	POST /polls              - Create poll (requires X-User-ID)
	GET  /polls/active       - Open polls, ?sort=popular|recent|active&limit=
	POST /polls/{id}/delete  - Soft delete (requires X-Admin-Key)
	GET  /initiatives/active - Open action initiatives, with the caller's votes

Voting (requires X-User-ID):

	POST /polls/{id}/votes        - Cast or change a vote
	POST /polls/{id}/stage2-votes - Approve or reject an action initiative

Display:

	GET /polls/{id} - Poll, results and, with X-User-ID, the caller's vote

Cache:

	GET /cache/stats
*/
package router
