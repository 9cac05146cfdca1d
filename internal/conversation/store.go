package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier defines the database operations the Store needs. Defined by the
// consumer so tests can mock it; PostgresQuerier is the production
// implementation.
type Querier interface {
	// MaxSequence returns the highest sequence number in a session, or 0
	// if the session has no turns.
	MaxSequence(ctx context.Context, sessionID uuid.UUID) (int32, error)

	// AppendTurn inserts a turn and its messages atomically.
	AppendTurn(ctx context.Context, arg AppendTurnParams) error

	// GetTurn fetches one turn by ID.
	GetTurn(ctx context.Context, id uuid.UUID) (TurnRow, error)

	// RecentMessages returns the last n messages of a session in
	// descending (sequence, ordinal) order.
	RecentMessages(ctx context.Context, sessionID uuid.UUID, limit int32) ([]MessageRow, error)

	// ThreadMessages returns all messages of a session ascending.
	ThreadMessages(ctx context.Context, sessionID uuid.UUID) ([]MessageRow, error)

	// ListSessions returns per-session summaries for a user, most
	// recently active first.
	ListSessions(ctx context.Context, userID string, limit int32) ([]SessionRow, error)

	// SessionUser returns the owning user of a session.
	SessionUser(ctx context.Context, sessionID uuid.UUID) (string, bool, error)

	// DeleteSession removes a session's turns (messages cascade) and
	// reports how many turns were removed.
	DeleteSession(ctx context.Context, sessionID uuid.UUID) (int64, error)
}

// AppendMessage is one message of an exchange being appended.
type AppendMessage struct {
	Role     Role
	Content  string
	Metadata map[string]any
}

// AppendParams describes one exchange to append.
type AppendParams struct {
	SessionID     uuid.UUID
	UserID        string
	Sequence      int32
	ParentQueryID *uuid.UUID
	Messages      []AppendMessage
}

// Store persists conversation threads. It is safe for concurrent use; the
// (session_id, sequence_number) unique constraint is the concurrency
// control, surfaced as ErrSequenceConflict for the caller's retry loop.
type Store struct {
	queries Querier
	logger  *slog.Logger
}

// New creates a Store. A nil logger falls back to slog.Default.
func New(querier Querier, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		queries: querier,
		logger:  logger,
	}
}

// NextSequence returns the sequence number a new turn should use:
// max(sequence)+1, or 1 for a fresh session. Two concurrent callers can
// observe the same value; only one of their appends will succeed.
func (s *Store) NextSequence(ctx context.Context, sessionID uuid.UUID) (int32, error) {
	maxSeq, err := s.queries.MaxSequence(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("reading max sequence for session %s: %w", sessionID, err)
	}
	return maxSeq + 1, nil
}

// Append inserts one exchange at the given sequence number. It fails with
// ErrSequenceConflict when the slot is already taken and with
// ErrInvalidParentRef when the parent reference does not point backward
// within the session. No implicit retry.
func (s *Store) Append(ctx context.Context, arg AppendParams) error {
	if arg.Sequence < 1 {
		return fmt.Errorf("sequence number must be >= 1, got %d", arg.Sequence)
	}
	if len(arg.Messages) == 0 {
		return fmt.Errorf("append requires at least one message")
	}

	if arg.ParentQueryID != nil {
		parent, err := s.queries.GetTurn(ctx, *arg.ParentQueryID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidParentRef, err)
		}
		if parent.SessionID != arg.SessionID || parent.Sequence > arg.Sequence {
			return ErrInvalidParentRef
		}
	}

	params := AppendTurnParams{
		TurnID:        uuid.New(),
		SessionID:     arg.SessionID,
		UserID:        arg.UserID,
		Sequence:      arg.Sequence,
		ParentQueryID: arg.ParentQueryID,
	}
	for i, msg := range arg.Messages {
		metadataJSON, err := json.Marshal(msg.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling message %d metadata: %w", i, err)
		}
		params.Messages = append(params.Messages, MessageParams{
			ID:       uuid.New(),
			Role:     string(msg.Role),
			Content:  msg.Content,
			Ordinal:  int16(i), // #nosec G115 -- exchanges hold a handful of messages
			Metadata: metadataJSON,
		})
	}

	if err := s.queries.AppendTurn(ctx, params); err != nil {
		if isUniqueViolation(err) || errors.Is(err, ErrSequenceConflict) {
			return fmt.Errorf("session %s sequence %d: %w",
				arg.SessionID, arg.Sequence, ErrSequenceConflict)
		}
		return fmt.Errorf("appending turn to session %s: %w", arg.SessionID, err)
	}

	s.logger.Debug("appended exchange",
		"session_id", arg.SessionID, "sequence", arg.Sequence, "messages", len(arg.Messages))
	return nil
}

// Recent returns up to the last n messages of a session, oldest of the
// window first, ready for prompt construction.
func (s *Store) Recent(ctx context.Context, sessionID uuid.UUID, n int32) ([]Message, error) {
	if n < 1 {
		return nil, fmt.Errorf("window size must be >= 1, got %d", n)
	}

	rows, err := s.queries.RecentMessages(ctx, sessionID, n)
	if err != nil {
		return nil, fmt.Errorf("reading recent messages for session %s: %w", sessionID, err)
	}

	// Rows arrive newest first; reverse into conversational order.
	messages := make([]Message, len(rows))
	for i, row := range rows {
		msg, err := s.rowToMessage(row)
		if err != nil {
			return nil, err
		}
		messages[len(rows)-1-i] = msg
	}
	return messages, nil
}

// Get returns the full ordered thread of a session.
func (s *Store) Get(ctx context.Context, sessionID uuid.UUID) ([]Message, error) {
	rows, err := s.queries.ThreadMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("reading thread for session %s: %w", sessionID, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
	}

	messages := make([]Message, 0, len(rows))
	for _, row := range rows {
		msg, err := s.rowToMessage(row)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// ListForUser returns session summaries for a user, most recently active
// first.
func (s *Store) ListForUser(ctx context.Context, userID string, limit int32) ([]SessionSummary, error) {
	if limit < 1 {
		limit = 50
	}

	rows, err := s.queries.ListSessions(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sessions for user %s: %w", userID, err)
	}

	summaries := make([]SessionSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, SessionSummary{
			SessionID: row.SessionID,
			UserID:    userID,
			TurnCount: int(row.TurnCount),
			CreatedAt: row.CreatedAt,
			UpdatedAt: row.UpdatedAt,
		})
	}
	return summaries, nil
}

// Owner returns the user owning a session, or ErrSessionNotFound.
func (s *Store) Owner(ctx context.Context, sessionID uuid.UUID) (string, error) {
	userID, found, err := s.queries.SessionUser(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("resolving owner of session %s: %w", sessionID, err)
	}
	if !found {
		return "", fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
	}
	return userID, nil
}

// Delete removes a session and all its messages.
func (s *Store) Delete(ctx context.Context, sessionID uuid.UUID) error {
	deleted, err := s.queries.DeleteSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", sessionID, err)
	}
	if deleted == 0 {
		return fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
	}

	s.logger.Debug("deleted session", "session_id", sessionID, "turns", deleted)
	return nil
}

func (s *Store) rowToMessage(row MessageRow) (Message, error) {
	var metadata map[string]any
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &metadata); err != nil {
			return Message{}, fmt.Errorf("parsing metadata of message %s: %w", row.ID, err)
		}
	}

	return Message{
		ID:        row.ID,
		TurnID:    row.TurnID,
		SessionID: row.SessionID,
		Sequence:  row.Sequence,
		Ordinal:   row.Ordinal,
		Role:      Role(row.Role),
		Content:   row.Content,
		Metadata:  metadata,
		CreatedAt: row.CreatedAt,
	}, nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
