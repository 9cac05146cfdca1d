package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"

	"github.com/datatalk-io/datatalk/internal/log"
)

// mockEmbedder implements ai.Embedder with programmable behavior.
type mockEmbedder struct {
	delay       time.Duration
	embedErr    error
	returnEmpty bool
	embeddings  []float32

	callCount int
	lastInput string
}

func (m *mockEmbedder) Name() string { return "mock-embedder" }

func (m *mockEmbedder) Register(r api.Registry) {}

func (m *mockEmbedder) Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	m.callCount++
	if len(req.Input) > 0 && len(req.Input[0].Content) > 0 {
		m.lastInput = req.Input[0].Content[0].Text
	}

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	if m.returnEmpty {
		return &ai.EmbedResponse{}, nil
	}

	embeddings := m.embeddings
	if embeddings == nil {
		embeddings = []float32{0.1, 0.2, 0.3}
	}
	return &ai.EmbedResponse{
		Embeddings: []*ai.Embedding{{Embedding: embeddings}},
	}, nil
}

func TestEmbedText(t *testing.T) {
	mock := &mockEmbedder{embeddings: []float32{0.5, 0.5}}
	e := NewEmbedder(mock, log.NewNop())

	vec, err := e.EmbedText(context.Background(), "how many orders last month?")
	if err != nil {
		t.Fatalf("EmbedText() error = %v", err)
	}
	if len(vec) != 2 {
		t.Fatalf("len(vec) = %d, want 2", len(vec))
	}
	if mock.lastInput != "how many orders last month?" {
		t.Errorf("input = %q", mock.lastInput)
	}
}

func TestEmbedTextFailures(t *testing.T) {
	tests := []struct {
		name string
		mock *mockEmbedder
		text string
	}{
		{name: "empty input", mock: &mockEmbedder{}, text: ""},
		{name: "provider error", mock: &mockEmbedder{embedErr: errors.New("quota")}, text: "q"},
		{name: "empty embedding", mock: &mockEmbedder{returnEmpty: true}, text: "q"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEmbedder(tt.mock, log.NewNop())
			_, err := e.EmbedText(context.Background(), tt.text)
			if err == nil {
				t.Fatal("EmbedText() expected error")
			}
			var embErr *EmbeddingError
			if !errors.As(err, &embErr) {
				t.Errorf("error %T is not *EmbeddingError", err)
			}
		})
	}
}

func TestEmbedTextTimeout(t *testing.T) {
	mock := &mockEmbedder{delay: 200 * time.Millisecond}
	e := NewEmbedder(mock, log.NewNop(), WithEmbedTimeout(20*time.Millisecond))

	_, err := e.EmbedText(context.Background(), "slow question")
	if err == nil {
		t.Fatal("EmbedText() expected timeout error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded in chain", err)
	}
}

func TestEmbedTextRateLimit(t *testing.T) {
	mock := &mockEmbedder{}
	e := NewEmbedder(mock, log.NewNop(), WithRateLimit(100, 1))

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := e.EmbedText(context.Background(), "q"); err != nil {
			t.Fatalf("EmbedText() error = %v", err)
		}
	}
	// Burst 1 at 100/s: the second and third calls wait ~10ms each.
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Errorf("three calls finished in %v, rate limit not applied", elapsed)
	}
}
