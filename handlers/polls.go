// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"strconv"

	"github.com/danielhkuo/pollgate/auth"
	"github.com/danielhkuo/pollgate/cliparse"
	"github.com/danielhkuo/pollgate/middleware"
	"github.com/danielhkuo/pollgate/models"
	"github.com/danielhkuo/pollgate/voting"
)

type PollHandler struct {
	svc *voting.Service
	cfg cliparse.Config
}

func NewPollHandler(svc *voting.Service, cfg cliparse.Config) *PollHandler {
	return &PollHandler{svc: svc, cfg: cfg}
}

// CreatePoll handles POST /polls
func (h *PollHandler) CreatePoll(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req models.CreatePollRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	poll, err := h.svc.Polls.CreatePoll(r.Context(), userID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, models.CreatePollResponse{
		PollID:   poll.ID,
		AdminKey: auth.GenerateAdminKey(poll.ID, h.cfg.AdminKeySalt),
	})
}

// DeletePoll handles POST /polls/{id}/delete
func (h *PollHandler) DeletePoll(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("id")
	if pollID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "poll_id is required")
		return
	}

	adminKey := r.Header.Get(auth.AdminHeader)
	if adminKey == "" {
		middleware.ErrorResponse(w, http.StatusUnauthorized, auth.AdminHeader+" header is required")
		return
	}
	if err := auth.ValidateAdminKey(pollID, adminKey, h.cfg.AdminKeySalt); err != nil {
		middleware.ErrorResponse(w, http.StatusForbidden, "Invalid admin key")
		return
	}

	if err := h.svc.Polls.DeletePoll(r.Context(), pollID); err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, map[string]string{
		"poll_id": pollID,
		"status":  models.StatusDeleted,
	})
}

// ActivePolls handles GET /polls/active?sort=&limit=
func (h *PollHandler) ActivePolls(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			middleware.ErrorResponse(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}
	sort := voting.NormalizeSort(q.Get("sort"))

	polls, err := h.svc.Polls.ActivePolls(r.Context(), sort, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.ActivePollsResponse{Polls: polls, Sort: sort})
}

// ActiveInitiatives handles GET /initiatives/active. An X-User-ID header
// adds the caller's own Stage-1 and Stage-2 votes to each entry.
func (h *PollHandler) ActiveInitiatives(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserFromRequest(r)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid "+auth.UserHeader+" header")
		return
	}

	items, err := h.svc.Polls.ActiveInitiatives(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := models.ActiveInitiativesResponse{Initiatives: items}
	if len(items) == 0 {
		resp.Message = "No active action initiatives found"
	}
	middleware.JSONResponse(w, http.StatusOK, resp)
}
