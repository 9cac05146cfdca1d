package corpus

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// DB is the subset of pgxpool.Pool the querier uses.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// InsertItemParams carries one corpus_items row.
type InsertItemParams struct {
	ID        uuid.UUID
	Corpus    string
	Content   string
	Metadata  []byte
	Embedding []float32
}

// SearchItemsParams parameterizes a vector search. Filter may be nil;
// MinSimilarity zero disables the threshold.
type SearchItemsParams struct {
	Corpus        string
	Embedding     []float32
	Filter        []byte
	MinSimilarity float32
	Limit         int32
}

// ItemRow is one search result row.
type ItemRow struct {
	ID         uuid.UUID
	Content    string
	Metadata   []byte
	CreatedAt  time.Time
	Similarity float32
}

// PostgresQuerier implements Querier against PostgreSQL + pgvector.
type PostgresQuerier struct {
	db DB
}

// NewPostgresQuerier creates a querier over the given pool.
func NewPostgresQuerier(db DB) *PostgresQuerier {
	return &PostgresQuerier{db: db}
}

const insertItemSQL = `
INSERT INTO corpus_items (id, corpus, content, metadata, embedding)
VALUES ($1, $2, $3, $4, $5)
`

// InsertItem appends one item. All values are bound parameters; the
// metadata JSON is produced by json.Marshal, never concatenated.
func (q *PostgresQuerier) InsertItem(ctx context.Context, arg InsertItemParams) error {
	_, err := q.db.Exec(ctx, insertItemSQL,
		arg.ID,
		arg.Corpus,
		arg.Content,
		arg.Metadata,
		pgvector.NewVector(arg.Embedding),
	)
	return err
}

const searchItemsSQL = `
SELECT id, content, metadata, created_at,
       1 - (embedding <=> $1) AS similarity
FROM corpus_items
WHERE corpus = $2
  AND ($3::jsonb IS NULL OR metadata @> $3)
  AND ($4::float4 = 0 OR 1 - (embedding <=> $1) >= $4)
ORDER BY embedding <=> $1 ASC, created_at DESC
LIMIT $5
`

// SearchItems runs a cosine similarity search. The <=> operator returns
// cosine distance, so ordering ascending by distance yields similarity
// descending; created_at breaks ties most-recent first.
func (q *PostgresQuerier) SearchItems(ctx context.Context, arg SearchItemsParams) ([]ItemRow, error) {
	rows, err := q.db.Query(ctx, searchItemsSQL,
		pgvector.NewVector(arg.Embedding),
		arg.Corpus,
		arg.Filter,
		arg.MinSimilarity,
		arg.Limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ItemRow
	for rows.Next() {
		var row ItemRow
		if err := rows.Scan(&row.ID, &row.Content, &row.Metadata, &row.CreatedAt, &row.Similarity); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

const countItemsSQL = `SELECT COUNT(*) FROM corpus_items WHERE corpus = $1`

// CountItems counts the items in one corpus.
func (q *PostgresQuerier) CountItems(ctx context.Context, corpus string) (int64, error) {
	var count int64
	if err := q.db.QueryRow(ctx, countItemsSQL, corpus).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
