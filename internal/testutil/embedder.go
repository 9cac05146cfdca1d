package testutil

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"

	"github.com/datatalk-io/datatalk/internal/corpus"
)

// MockEmbedder implements ai.Embedder with deterministic output: the same
// text always maps to the same vector. Safe for concurrent use.
type MockEmbedder struct {
	mu        sync.Mutex
	Err       error
	CallCount int
	LastInput string
}

func (m *MockEmbedder) Name() string { return "mock-embedder" }

func (m *MockEmbedder) Register(r api.Registry) {}

func (m *MockEmbedder) Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallCount++
	var text string
	if len(req.Input) > 0 && len(req.Input[0].Content) > 0 {
		text = req.Input[0].Content[0].Text
	}
	m.LastInput = text

	if m.Err != nil {
		return nil, m.Err
	}
	return &ai.EmbedResponse{
		Embeddings: []*ai.Embedding{{Embedding: Vector(text)}},
	}, nil
}

// Vector derives a deterministic unit-ish vector from text. Texts sharing
// a prefix get nearby vectors, which is enough to exercise similarity
// ordering in tests.
func Vector(text string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	v := make([]float32, corpus.VectorDimension)
	for i := range v {
		seed = seed*6364136223846793005 + 1442695040888963407
		v[i] = float32(int64(seed>>33))/float32(1<<31) + 1e-6
	}
	return v
}
