// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/pollgate/auth"
	"github.com/danielhkuo/pollgate/middleware"
	"github.com/danielhkuo/pollgate/voting"
)

// statusFor maps a voting error kind to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, voting.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, voting.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, voting.ErrExpired):
		return http.StatusGone
	case errors.Is(err, voting.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, voting.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError sends err as a JSON error response. Errors of no known kind
// are logged and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		middleware.ErrorResponse(w, status, "Internal server error")
		return
	}

	msg := err.Error()
	var verr *voting.Error
	if errors.As(err, &verr) {
		msg = verr.Message
	}
	middleware.ErrorResponse(w, status, msg)
}

// requireUser returns the caller's id or writes an error response.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := auth.UserFromRequest(r)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid "+auth.UserHeader+" header")
		return "", false
	}
	if userID == "" {
		middleware.ErrorResponse(w, http.StatusUnauthorized, auth.UserHeader+" header is required")
		return "", false
	}
	return userID, true
}
