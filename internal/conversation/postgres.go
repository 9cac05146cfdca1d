package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TurnRow mirrors one conversation_turns row.
type TurnRow struct {
	ID            uuid.UUID
	SessionID     uuid.UUID
	UserID        string
	Sequence      int32
	ParentQueryID *uuid.UUID
	CreatedAt     time.Time
}

// MessageParams carries one message of an AppendTurn call.
type MessageParams struct {
	ID       uuid.UUID
	Role     string
	Content  string
	Ordinal  int16
	Metadata []byte
}

// AppendTurnParams carries one exchange: the turn row plus its messages.
type AppendTurnParams struct {
	TurnID        uuid.UUID
	SessionID     uuid.UUID
	UserID        string
	Sequence      int32
	ParentQueryID *uuid.UUID
	Messages      []MessageParams
}

// MessageRow is one joined message row.
type MessageRow struct {
	ID        uuid.UUID
	TurnID    uuid.UUID
	SessionID uuid.UUID
	Sequence  int32
	Ordinal   int16
	Role      string
	Content   string
	Metadata  []byte
	CreatedAt time.Time
}

// SessionRow is one per-session aggregate row.
type SessionRow struct {
	SessionID uuid.UUID
	TurnCount int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PostgresQuerier implements Querier against PostgreSQL. AppendTurn uses a
// transaction so a turn and its messages land atomically.
type PostgresQuerier struct {
	pool *pgxpool.Pool
}

// NewPostgresQuerier creates a querier over the given pool.
func NewPostgresQuerier(pool *pgxpool.Pool) *PostgresQuerier {
	return &PostgresQuerier{pool: pool}
}

const maxSequenceSQL = `
SELECT COALESCE(MAX(sequence_number), 0)
FROM conversation_turns
WHERE session_id = $1
`

func (q *PostgresQuerier) MaxSequence(ctx context.Context, sessionID uuid.UUID) (int32, error) {
	var maxSeq int32
	if err := q.pool.QueryRow(ctx, maxSequenceSQL, sessionID).Scan(&maxSeq); err != nil {
		return 0, err
	}
	return maxSeq, nil
}

const insertTurnSQL = `
INSERT INTO conversation_turns (id, session_id, user_id, sequence_number, parent_query_id)
VALUES ($1, $2, $3, $4, $5)
`

const insertMessageSQL = `
INSERT INTO conversation_messages (id, turn_id, role, content, ordinal, metadata)
VALUES ($1, $2, $3, $4, $5, $6)
`

func (q *PostgresQuerier) AppendTurn(ctx context.Context, arg AppendTurnParams) error {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		// No-op after a successful commit.
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, insertTurnSQL,
		arg.TurnID, arg.SessionID, arg.UserID, arg.Sequence, arg.ParentQueryID,
	); err != nil {
		return err
	}

	for _, msg := range arg.Messages {
		if _, err := tx.Exec(ctx, insertMessageSQL,
			msg.ID, arg.TurnID, msg.Role, msg.Content, msg.Ordinal, msg.Metadata,
		); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

const getTurnSQL = `
SELECT id, session_id, user_id, sequence_number, parent_query_id, created_at
FROM conversation_turns
WHERE id = $1
`

func (q *PostgresQuerier) GetTurn(ctx context.Context, id uuid.UUID) (TurnRow, error) {
	var row TurnRow
	err := q.pool.QueryRow(ctx, getTurnSQL, id).Scan(
		&row.ID, &row.SessionID, &row.UserID, &row.Sequence, &row.ParentQueryID, &row.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TurnRow{}, fmt.Errorf("turn %s not found", id)
		}
		return TurnRow{}, err
	}
	return row, nil
}

const recentMessagesSQL = `
SELECT m.id, m.turn_id, t.session_id, t.sequence_number, m.ordinal,
       m.role, m.content, m.metadata, m.created_at
FROM conversation_messages m
JOIN conversation_turns t ON t.id = m.turn_id
WHERE t.session_id = $1
ORDER BY t.sequence_number DESC, m.ordinal DESC
LIMIT $2
`

func (q *PostgresQuerier) RecentMessages(ctx context.Context, sessionID uuid.UUID, limit int32) ([]MessageRow, error) {
	rows, err := q.pool.Query(ctx, recentMessagesSQL, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessageRows(rows)
}

const threadMessagesSQL = `
SELECT m.id, m.turn_id, t.session_id, t.sequence_number, m.ordinal,
       m.role, m.content, m.metadata, m.created_at
FROM conversation_messages m
JOIN conversation_turns t ON t.id = m.turn_id
WHERE t.session_id = $1
ORDER BY t.sequence_number ASC, m.ordinal ASC
`

func (q *PostgresQuerier) ThreadMessages(ctx context.Context, sessionID uuid.UUID) ([]MessageRow, error) {
	rows, err := q.pool.Query(ctx, threadMessagesSQL, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessageRows(rows)
}

const listSessionsSQL = `
SELECT session_id, COUNT(*) AS turn_count,
       MIN(created_at) AS created_at, MAX(created_at) AS updated_at
FROM conversation_turns
WHERE user_id = $1
GROUP BY session_id
ORDER BY MAX(created_at) DESC
LIMIT $2
`

func (q *PostgresQuerier) ListSessions(ctx context.Context, userID string, limit int32) ([]SessionRow, error) {
	rows, err := q.pool.Query(ctx, listSessionsSQL, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SessionRow
	for rows.Next() {
		var row SessionRow
		if err := rows.Scan(&row.SessionID, &row.TurnCount, &row.CreatedAt, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

const sessionUserSQL = `
SELECT user_id
FROM conversation_turns
WHERE session_id = $1
ORDER BY sequence_number ASC
LIMIT 1
`

func (q *PostgresQuerier) SessionUser(ctx context.Context, sessionID uuid.UUID) (string, bool, error) {
	var userID string
	err := q.pool.QueryRow(ctx, sessionUserSQL, sessionID).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return userID, true, nil
}

const deleteSessionSQL = `
DELETE FROM conversation_turns
WHERE session_id = $1
`

func (q *PostgresQuerier) DeleteSession(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	tag, err := q.pool.Exec(ctx, deleteSessionSQL, sessionID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanMessageRows(rows pgx.Rows) ([]MessageRow, error) {
	var results []MessageRow
	for rows.Next() {
		var row MessageRow
		if err := rows.Scan(
			&row.ID, &row.TurnID, &row.SessionID, &row.Sequence, &row.Ordinal,
			&row.Role, &row.Content, &row.Metadata, &row.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		results = append(results, row)
	}
	return results, rows.Err()
}
