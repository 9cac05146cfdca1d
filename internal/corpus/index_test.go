package corpus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

// mockQuerier implements Querier with programmable results.
type mockQuerier struct {
	insertErr  error
	searchErr  error
	searchRows []ItemRow
	countVal   int64
	countErr   error

	lastInsert InsertItemParams
	lastSearch SearchItemsParams
	calls      int
}

func (m *mockQuerier) InsertItem(ctx context.Context, arg InsertItemParams) error {
	m.calls++
	m.lastInsert = arg
	return m.insertErr
}

func (m *mockQuerier) SearchItems(ctx context.Context, arg SearchItemsParams) ([]ItemRow, error) {
	m.calls++
	m.lastSearch = arg
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.searchRows, nil
}

func (m *mockQuerier) CountItems(ctx context.Context, corpus string) (int64, error) {
	m.calls++
	return m.countVal, m.countErr
}

func testEmbedding() []float32 {
	v := make([]float32, VectorDimension)
	for i := range v {
		v[i] = float32(i) / VectorDimension
	}
	return v
}

func TestIndexAdd(t *testing.T) {
	tests := []struct {
		name      string
		item      Item
		insertErr error
		wantErr   bool
	}{
		{
			name:    "valid item",
			item:    NewSchemaItem("CREATE TABLE orders (id INT)", testEmbedding()),
			wantErr: false,
		},
		{
			name:    "wrong embedding dimension",
			item:    NewSchemaItem("CREATE TABLE orders (id INT)", make([]float32, 3)),
			wantErr: true,
		},
		{
			name:      "insert failure propagates",
			item:      NewSchemaItem("CREATE TABLE orders (id INT)", testEmbedding()),
			insertErr: errors.New("connection refused"),
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &mockQuerier{insertErr: tt.insertErr}
			ix := NewIndex(Schema, q, nil)

			err := ix.Add(context.Background(), tt.item)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Add() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && q.lastInsert.Corpus != string(Schema) {
				t.Errorf("inserted corpus = %q, want %q", q.lastInsert.Corpus, Schema)
			}
		})
	}
}

func TestIndexAddMarshalsMetadata(t *testing.T) {
	q := &mockQuerier{}
	ix := NewIndex(Examples, q, nil)

	item := NewExampleItem("total sales?", "SELECT SUM(amount) FROM sales", testEmbedding())
	if err := ix.Add(context.Background(), item); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	var metadata map[string]string
	if err := json.Unmarshal(q.lastInsert.Metadata, &metadata); err != nil {
		t.Fatalf("metadata is not valid JSON: %v", err)
	}
	if metadata[MetaQuery] != "SELECT SUM(amount) FROM sales" {
		t.Errorf("metadata[%s] = %q", MetaQuery, metadata[MetaQuery])
	}
}

func TestIndexSearch(t *testing.T) {
	now := time.Now()
	rows := []ItemRow{
		{ID: uuid.New(), Content: "first", Metadata: []byte(`{}`), CreatedAt: now, Similarity: 0.95},
		{ID: uuid.New(), Content: "second", Metadata: []byte(`{}`), CreatedAt: now, Similarity: 0.80},
	}

	q := &mockQuerier{searchRows: rows}
	ix := NewIndex(Documentation, q, nil)

	matches, err := ix.Search(context.Background(), testEmbedding(), WithTopK(2))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("len(matches) = %d, want 2", len(matches))
	}
	if matches[0].Similarity < matches[1].Similarity {
		t.Error("matches not ordered by similarity descending")
	}
	if q.lastSearch.Limit != 2 {
		t.Errorf("search limit = %d, want 2", q.lastSearch.Limit)
	}
}

func TestIndexSearchWrapsFailures(t *testing.T) {
	tests := []struct {
		name      string
		embedding []float32
		searchErr error
	}{
		{
			name:      "query failure",
			embedding: testEmbedding(),
			searchErr: errors.New("relation does not exist"),
		},
		{
			name:      "bad query dimension",
			embedding: make([]float32, 12),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &mockQuerier{searchErr: tt.searchErr}
			ix := NewIndex(ToolMemory, q, nil)

			_, err := ix.Search(context.Background(), tt.embedding)
			if err == nil {
				t.Fatal("Search() expected error")
			}

			var retErr *RetrievalError
			if !errors.As(err, &retErr) {
				t.Fatalf("error %T is not *RetrievalError", err)
			}
			if retErr.Corpus != ToolMemory {
				t.Errorf("RetrievalError.Corpus = %q, want %q", retErr.Corpus, ToolMemory)
			}
		})
	}
}

func TestIndexSearchFilterAndThreshold(t *testing.T) {
	q := &mockQuerier{}
	ix := NewIndex(ToolMemory, q, nil)

	_, err := ix.Search(context.Background(), testEmbedding(),
		WithFilter(MetaSucceeded, "true"),
		WithMinSimilarity(0.7))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	var filter map[string]string
	if err := json.Unmarshal(q.lastSearch.Filter, &filter); err != nil {
		t.Fatalf("filter is not valid JSON: %v", err)
	}
	if filter[MetaSucceeded] != "true" {
		t.Errorf("filter[%s] = %q, want %q", MetaSucceeded, filter[MetaSucceeded], "true")
	}
	if q.lastSearch.MinSimilarity != 0.7 {
		t.Errorf("MinSimilarity = %v, want 0.7", q.lastSearch.MinSimilarity)
	}
}

func TestIndexSearchMalformedMetadata(t *testing.T) {
	rows := []ItemRow{
		{ID: uuid.New(), Content: "ok", Metadata: []byte(`not json`), Similarity: 0.9},
	}
	ix := NewIndex(Schema, &mockQuerier{searchRows: rows}, nil)

	matches, err := ix.Search(context.Background(), testEmbedding())
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("len(matches) = %d, want 1", len(matches))
	}
	if matches[0].Item.Metadata == nil {
		t.Error("metadata should fall back to empty map, got nil")
	}
}

func TestIndexCount(t *testing.T) {
	ix := NewIndex(Schema, &mockQuerier{countVal: 42}, nil)

	n, err := ix.Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 42 {
		t.Errorf("Count() = %d, want 42", n)
	}
}

func TestNewToolMemoryItem(t *testing.T) {
	item, err := NewToolMemoryItem("top customers?", "generate_query",
		map[string]any{"query": "SELECT 1"}, "alice", true, testEmbedding())
	if err != nil {
		t.Fatalf("NewToolMemoryItem() error = %v", err)
	}
	if item.Metadata[MetaSucceeded] != "true" {
		t.Errorf("succeeded = %q, want true", item.Metadata[MetaSucceeded])
	}
	if item.Metadata[MetaToolName] != "generate_query" {
		t.Errorf("tool name = %q", item.Metadata[MetaToolName])
	}
	if item.Content != "top customers?" {
		t.Errorf("content = %q", item.Content)
	}
}
