// Package provider adapts the external model services: a Genkit embedder
// for vectors and the Gemini API for generation. Both are plain injected
// values; nothing in here is package-level state.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"golang.org/x/time/rate"
)

const defaultEmbedTimeout = 15 * time.Second

// Embedder wraps an ai.Embedder with a rate limiter and per-call timeout.
// All failures surface as *EmbeddingError.
type Embedder struct {
	embedder ai.Embedder
	limiter  *rate.Limiter
	timeout  time.Duration
	logger   *slog.Logger
}

// EmbedderOption configures an Embedder.
type EmbedderOption func(*Embedder)

// WithEmbedTimeout bounds each embed call. Default 15s.
func WithEmbedTimeout(d time.Duration) EmbedderOption {
	return func(e *Embedder) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithRateLimit caps embed calls per second. Zero disables limiting.
func WithRateLimit(perSecond float64, burst int) EmbedderOption {
	return func(e *Embedder) {
		if perSecond > 0 {
			e.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// NewEmbedder wraps the given ai.Embedder. A nil logger falls back to
// slog.Default.
func NewEmbedder(embedder ai.Embedder, logger *slog.Logger, opts ...EmbedderOption) *Embedder {
	if logger == nil {
		logger = slog.Default()
	}

	e := &Embedder{
		embedder: embedder,
		timeout:  defaultEmbedTimeout,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EmbedText maps text to its embedding vector.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, &EmbeddingError{Err: fmt.Errorf("empty input text")}
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, &EmbeddingError{Err: fmt.Errorf("rate limiter: %w", err)}
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.embedder.Embed(callCtx, &ai.EmbedRequest{
		Input: []*ai.Document{
			ai.DocumentFromText(text, nil),
		},
	})
	if err != nil {
		return nil, &EmbeddingError{Err: err}
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, &EmbeddingError{Err: fmt.Errorf("empty embedding returned")}
	}

	return resp.Embeddings[0].Embedding, nil
}

// NewGoogleAIEmbedder initializes Genkit with the Google AI plugin and
// returns the named embedder. GEMINI_API_KEY is read by the plugin.
func NewGoogleAIEmbedder(ctx context.Context, model string) ai.Embedder {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	return googlegenai.GoogleAIEmbedder(g, model)
}
