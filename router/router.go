// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/danielhkuo/pollgate/cliparse"
	"github.com/danielhkuo/pollgate/handlers"
	"github.com/danielhkuo/pollgate/middleware"
	"github.com/danielhkuo/pollgate/voting"
)

func NewRouter(svc *voting.Service, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	pollHandler := handlers.NewPollHandler(svc, cfg)
	votingHandler := handlers.NewVotingHandler(svc)
	resultsHandler := handlers.NewResultsHandler(svc)
	cacheHandler := handlers.NewCacheHandler(svc.Cache())

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Poll lifecycle
	mux.HandleFunc("POST /polls", middleware.WithLogging(pollHandler.CreatePoll))
	mux.HandleFunc("GET /polls/active", middleware.WithLogging(pollHandler.ActivePolls))
	mux.HandleFunc("POST /polls/{id}/delete", middleware.WithLogging(pollHandler.DeletePoll))
	mux.HandleFunc("GET /initiatives/active", middleware.WithLogging(pollHandler.ActiveInitiatives))

	// Voting
	mux.HandleFunc("POST /polls/{id}/votes", middleware.WithLogging(votingHandler.CastVote))
	mux.HandleFunc("POST /polls/{id}/stage2-votes", middleware.WithLogging(votingHandler.SubmitStage2Vote))

	// Display
	mux.HandleFunc("GET /polls/{id}", middleware.WithLogging(resultsHandler.GetPoll))

	// Cache
	mux.HandleFunc("GET /cache/stats", middleware.WithLogging(cacheHandler.Stats))

	// Root endpoint
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pollgate API v1"))
	})

	return mux
}
