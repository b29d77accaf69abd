// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"errors"
	"fmt"

	"github.com/danielhkuo/pollgate/models"
	"github.com/danielhkuo/pollgate/store"
)

// Error kinds. Check with errors.Is.
var (
	ErrNotFound  = errors.New("not found")
	ErrInvalid   = errors.New("invalid")
	ErrExpired   = errors.New("expired")
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("conflict")
)

// Error is a failure of a known kind with a caller-facing message.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func loadPoll(ctx context.Context, st Store, pollID string) (*models.Poll, error) {
	poll, err := st.GetPoll(ctx, pollID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(ErrNotFound, "poll %s not found", pollID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load poll: %w", err)
	}
	return poll, nil
}
