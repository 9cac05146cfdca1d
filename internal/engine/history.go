package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/datatalk-io/datatalk/internal/conversation"
)

// RecentHistory returns the most recent messages of a session in
// chronological order, after verifying the session belongs to userID.
func (e *Engine) RecentHistory(ctx context.Context, sessionID uuid.UUID, userID string, limit int32) ([]conversation.Message, error) {
	owner, err := e.store.Owner(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if owner != userID {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotAuthorized)
	}
	if limit < 1 {
		limit = e.historyWindow
	}
	return e.store.Recent(ctx, sessionID, limit)
}

// ListConversations returns the user's sessions, most recently active
// first.
func (e *Engine) ListConversations(ctx context.Context, userID string, limit int32) ([]conversation.SessionSummary, error) {
	return e.store.ListForUser(ctx, userID, limit)
}
