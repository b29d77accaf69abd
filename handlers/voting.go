// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/pollgate/middleware"
	"github.com/danielhkuo/pollgate/models"
	"github.com/danielhkuo/pollgate/voting"
)

type VotingHandler struct {
	svc *voting.Service
}

func NewVotingHandler(svc *voting.Service) *VotingHandler {
	return &VotingHandler{svc: svc}
}

// CastVote handles POST /polls/{id}/votes
func (h *VotingHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req models.CastVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.OptionID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "option_id is required")
		return
	}

	receipt, err := h.svc.Ledger.CastVote(r.Context(), userID, r.PathValue("id"), req.OptionID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	message := "Vote submitted"
	if receipt.Updated {
		message = "Vote updated"
	}
	middleware.JSONResponse(w, http.StatusOK, models.CastVoteResponse{
		VoteID:  receipt.VoteID,
		Message: message,
	})
}

// SubmitStage2Vote handles POST /polls/{id}/stage2-votes
func (h *VotingHandler) SubmitStage2Vote(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req models.Stage2VoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	receipt, err := h.svc.Stages.SubmitStage2Vote(r.Context(), userID, r.PathValue("id"), req.Approval)
	if err != nil {
		writeError(w, r, err)
		return
	}

	message := "Stage 2 vote recorded"
	if receipt.Finalized {
		message = "Stage 2 vote recorded; voting is complete"
	}
	middleware.JSONResponse(w, http.StatusOK, models.Stage2VoteResponse{
		ActionStatus: receipt.ActionStatus,
		Finalized:    receipt.Finalized,
		Message:      message,
	})
}
