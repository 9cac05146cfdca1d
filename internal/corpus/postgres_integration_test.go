package corpus_test

import (
	"context"
	"math"
	"testing"

	"github.com/datatalk-io/datatalk/internal/corpus"
	"github.com/datatalk-io/datatalk/internal/testutil"
)

// unitVector builds a VectorDimension vector pointing mostly along axis,
// normalized so cosine similarity against other unit vectors is exact.
func unitVector(axis int) []float32 {
	v := make([]float32, corpus.VectorDimension)
	v[axis] = 1
	return v
}

// blendVector mixes two axes so similarity against each is predictable.
func blendVector(axisA, axisB int, weightA float64) []float32 {
	v := make([]float32, corpus.VectorDimension)
	weightB := 1 - weightA
	norm := math.Sqrt(weightA*weightA + weightB*weightB)
	v[axisA] = float32(weightA / norm)
	v[axisB] = float32(weightB / norm)
	return v
}

func TestIndexAgainstPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	querier := corpus.NewPostgresQuerier(db.Pool)
	ix := corpus.NewIndex(corpus.Schema, querier, testutil.DiscardLogger())

	items := []corpus.Item{
		corpus.NewSchemaItem("CREATE TABLE orders (id INT)", unitVector(0)),
		corpus.NewSchemaItem("CREATE TABLE customers (id INT)", blendVector(0, 1, 0.6)),
		corpus.NewSchemaItem("CREATE TABLE shipments (id INT)", unitVector(2)),
	}
	for _, item := range items {
		if err := ix.Add(ctx, item); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	t.Run("similarity ordering", func(t *testing.T) {
		matches, err := ix.Search(ctx, unitVector(0), corpus.WithTopK(3))
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(matches) != 3 {
			t.Fatalf("len(matches) = %d, want 3", len(matches))
		}
		if matches[0].Item.Content != "CREATE TABLE orders (id INT)" {
			t.Errorf("best match = %q", matches[0].Item.Content)
		}
		for i := 1; i < len(matches); i++ {
			if matches[i].Similarity > matches[i-1].Similarity {
				t.Errorf("similarity not descending at %d: %v > %v",
					i, matches[i].Similarity, matches[i-1].Similarity)
			}
		}
	})

	t.Run("min similarity threshold", func(t *testing.T) {
		matches, err := ix.Search(ctx, unitVector(0),
			corpus.WithTopK(3), corpus.WithMinSimilarity(0.9))
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(matches) != 1 {
			t.Fatalf("len(matches) = %d, want 1 above threshold", len(matches))
		}
	})

	t.Run("count", func(t *testing.T) {
		n, err := ix.Count(ctx)
		if err != nil {
			t.Fatalf("Count() error = %v", err)
		}
		if n != 3 {
			t.Errorf("Count() = %d, want 3", n)
		}
	})

	t.Run("corpora are isolated", func(t *testing.T) {
		docs := corpus.NewIndex(corpus.Documentation, querier, testutil.DiscardLogger())
		matches, err := docs.Search(ctx, unitVector(0))
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(matches) != 0 {
			t.Errorf("documentation corpus should be empty, got %d", len(matches))
		}
	})
}

func TestToolMemoryFilterAgainstPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	ix := corpus.NewIndex(corpus.ToolMemory, corpus.NewPostgresQuerier(db.Pool), testutil.DiscardLogger())

	succeeded, err := corpus.NewToolMemoryItem("count orders", "generate_query",
		map[string]any{"query": "SELECT COUNT(*)"}, "alice", true, unitVector(0))
	if err != nil {
		t.Fatalf("NewToolMemoryItem() error = %v", err)
	}
	failed, err := corpus.NewToolMemoryItem("count orders badly", "generate_query",
		map[string]any{"query": "SELEC"}, "alice", false, unitVector(0))
	if err != nil {
		t.Fatalf("NewToolMemoryItem() error = %v", err)
	}

	for _, item := range []corpus.Item{succeeded, failed} {
		if err := ix.Add(ctx, item); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	matches, err := ix.Search(ctx, unitVector(0),
		corpus.WithFilter(corpus.MetaSucceeded, "true"))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("len(matches) = %d, want 1 (failed usage filtered out)", len(matches))
	}
	if matches[0].Item.Metadata[corpus.MetaSucceeded] != "true" {
		t.Errorf("filter returned an unsucceeded item: %+v", matches[0].Item.Metadata)
	}
}
