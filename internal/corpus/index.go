package corpus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
)

// Querier defines the database operations an Index needs. The interface is
// defined here, by the consumer, so tests can substitute a mock and the
// production implementation (PostgresQuerier) stays swappable.
type Querier interface {
	// InsertItem appends one item. Corpus rows are never updated.
	InsertItem(ctx context.Context, arg InsertItemParams) error

	// SearchItems runs a vector similarity search ordered by score
	// descending, ties broken by most recent first.
	SearchItems(ctx context.Context, arg SearchItemsParams) ([]ItemRow, error)

	// CountItems counts items in one corpus.
	CountItems(ctx context.Context, corpus string) (int64, error)
}

// Index is the retrieval handle for a single corpus. It is safe for
// concurrent use; the underlying store is read-mostly and append-only.
type Index struct {
	corpus  Corpus
	queries Querier
	logger  *slog.Logger
}

// NewIndex creates an Index over one corpus. A nil logger falls back to
// slog.Default.
func NewIndex(c Corpus, querier Querier, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		corpus:  c,
		queries: querier,
		logger:  logger,
	}
}

// Corpus returns the corpus this index serves.
func (ix *Index) Corpus() Corpus {
	return ix.corpus
}

// Add appends an item to the corpus. The embedding must already be
// computed and match VectorDimension; mixing dimensionalities corrupts
// similarity ordering for the whole corpus.
func (ix *Index) Add(ctx context.Context, item Item) error {
	if len(item.Embedding) != VectorDimension {
		return fmt.Errorf("corpus %s: embedding dimension %d, want %d",
			ix.corpus, len(item.Embedding), VectorDimension)
	}

	metadataJSON, err := json.Marshal(item.Metadata)
	if err != nil {
		return fmt.Errorf("corpus %s: marshaling metadata: %w", ix.corpus, err)
	}

	err = ix.queries.InsertItem(ctx, InsertItemParams{
		ID:        item.ID,
		Corpus:    string(ix.corpus),
		Content:   item.Content,
		Metadata:  metadataJSON,
		Embedding: item.Embedding,
	})
	if err != nil {
		return fmt.Errorf("corpus %s: inserting item %s: %w", ix.corpus, item.ID, err)
	}

	ix.logger.Debug("added corpus item",
		"corpus", ix.corpus, "id", item.ID, "content_length", len(item.Content))
	return nil
}

// Search returns the items most similar to the query embedding, ordered by
// similarity descending. All failures are reported as *RetrievalError so
// the assembler can degrade per corpus.
func (ix *Index) Search(ctx context.Context, embedding []float32, opts ...SearchOption) ([]Match, error) {
	if len(embedding) != VectorDimension {
		return nil, &RetrievalError{
			Corpus: ix.corpus,
			Err:    fmt.Errorf("query embedding dimension %d, want %d", len(embedding), VectorDimension),
		}
	}

	cfg := buildSearchConfig(opts)

	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	var filterJSON []byte
	if len(cfg.filter) > 0 {
		var err error
		filterJSON, err = json.Marshal(cfg.filter)
		if err != nil {
			return nil, &RetrievalError{Corpus: ix.corpus, Err: fmt.Errorf("marshaling filter: %w", err)}
		}
	}

	rows, err := ix.queries.SearchItems(queryCtx, SearchItemsParams{
		Corpus:        string(ix.corpus),
		Embedding:     embedding,
		Filter:        filterJSON,
		MinSimilarity: cfg.minSimilarity,
		Limit:         cfg.topK,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &RetrievalError{Corpus: ix.corpus, Err: fmt.Errorf("search timeout: %w", err)}
		}
		return nil, &RetrievalError{Corpus: ix.corpus, Err: err}
	}

	return ix.rowsToMatches(rows), nil
}

// Count returns the number of items in the corpus.
func (ix *Index) Count(ctx context.Context) (int, error) {
	count, err := ix.queries.CountItems(ctx, string(ix.corpus))
	if err != nil {
		return 0, fmt.Errorf("corpus %s: count failed: %w", ix.corpus, err)
	}

	// Guard 32-bit platforms against silent overflow.
	if count > math.MaxInt {
		return 0, fmt.Errorf("corpus %s: item count %d exceeds int capacity", ix.corpus, count)
	}

	return int(count), nil
}

func (ix *Index) rowsToMatches(rows []ItemRow) []Match {
	matches := make([]Match, 0, len(rows))
	for _, row := range rows {
		var metadata map[string]string
		if err := json.Unmarshal(row.Metadata, &metadata); err != nil {
			ix.logger.Warn("failed to parse item metadata",
				"corpus", ix.corpus, "id", row.ID, "error", err)
			metadata = make(map[string]string)
		}

		matches = append(matches, Match{
			Item: Item{
				ID:        row.ID,
				Content:   row.Content,
				Metadata:  metadata,
				CreatedAt: row.CreatedAt,
			},
			Similarity: row.Similarity,
		})
	}
	return matches
}
