// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// UserHeader carries the caller's identity, set by the authenticating proxy
const UserHeader = "X-User-ID"

// AdminHeader carries a poll's admin key
const AdminHeader = "X-Admin-Key"

const maxUserIDLen = 64

var (
	ErrInvalidAdminKey = errors.New("invalid admin key")
	ErrInvalidUserID   = errors.New("invalid user id")
	ErrMissingUserID   = errors.New("user id required")
)

// NewID returns a random UUIDv4 string for database records
func NewID() string {
	return uuid.NewString()
}

// GenerateAdminKey creates an HMAC-based admin key for a poll
// This is deterministic and verifiable
func GenerateAdminKey(pollID, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(pollID))
	sum := h.Sum(nil)
	// Use URL-safe base64 and trim padding for cleaner keys
	return strings.TrimRight(base64.URLEncoding.EncodeToString(sum), "=")
}

// ValidateAdminKey checks if the provided admin key is valid for the poll
func ValidateAdminKey(pollID, adminKey, salt string) error {
	expected := GenerateAdminKey(pollID, salt)
	if !hmac.Equal([]byte(adminKey), []byte(expected)) {
		return ErrInvalidAdminKey
	}
	return nil
}

// ValidateUserID rejects ids that cannot be used as a cache key scope.
// ':' separates key segments, so it may not appear in an id.
func ValidateUserID(id string) error {
	if id == "" {
		return ErrMissingUserID
	}
	if len(id) > maxUserIDLen || strings.ContainsAny(id, ": \t\r\n") {
		return ErrInvalidUserID
	}
	return nil
}

// UserFromRequest returns the caller's user id, or "" for anonymous callers.
// A malformed id is an error rather than silently anonymous.
func UserFromRequest(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.Header.Get(UserHeader))
	if id == "" {
		return "", nil
	}
	if err := ValidateUserID(id); err != nil {
		return "", err
	}
	return id, nil
}
