// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/pollgate/auth"
	"github.com/danielhkuo/pollgate/middleware"
	"github.com/danielhkuo/pollgate/voting"
)

type ResultsHandler struct {
	svc *voting.Service
}

func NewResultsHandler(svc *voting.Service) *ResultsHandler {
	return &ResultsHandler{svc: svc}
}

// GetPoll handles GET /polls/{id}. Anonymous callers get the shared view;
// an X-User-ID header adds that voter's own vote and eligibility.
func (h *ResultsHandler) GetPoll(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserFromRequest(r)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid "+auth.UserHeader+" header")
		return
	}

	display, err := h.svc.Assembler.Display(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, display)
}
