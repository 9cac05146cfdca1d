// Package memory implements write-back memory: after a successful
// interaction the exchange is embedded and appended to the tool-memory
// corpus, where later similarity searches can retrieve it. Writing is
// best-effort and never fails the caller's primary flow.
package memory

import (
	"context"
	"log/slog"
	"time"

	"github.com/datatalk-io/datatalk/internal/corpus"
)

const defaultWriteTimeout = 20 * time.Second

// Appender is the corpus capability the writer needs; the tool-memory
// *corpus.Index satisfies it.
type Appender interface {
	Add(ctx context.Context, item corpus.Item) error
}

// EmbeddingProvider maps text to its embedding vector.
type EmbeddingProvider interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Usage describes one tool interaction worth remembering.
type Usage struct {
	Question  string
	ToolName  string
	Args      map[string]any
	UserID    string
	Succeeded bool
}

// Writer appends tool-usage records to the tool-memory corpus. Every call
// creates a new row; repeated questions produce duplicates, which are
// harmless for similarity retrieval.
type Writer struct {
	memory   Appender
	embedder EmbeddingProvider
	timeout  time.Duration
	logger   *slog.Logger
}

// New creates a Writer. A nil logger falls back to slog.Default.
func New(memory Appender, embedder EmbeddingProvider, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		memory:   memory,
		embedder: embedder,
		timeout:  defaultWriteTimeout,
		logger:   logger,
	}
}

// Record embeds the question and appends a tool-memory item. Failures are
// logged and swallowed: write-back must never block or fail the turn that
// triggered it. The write proceeds even if the caller has gone away.
func (w *Writer) Record(ctx context.Context, u Usage) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
	defer cancel()

	embedding, err := w.embedder.EmbedText(writeCtx, u.Question)
	if err != nil {
		w.logger.Warn("skipping memory write-back, embedding failed",
			"tool", u.ToolName, "error", err)
		return
	}

	item, err := corpus.NewToolMemoryItem(u.Question, u.ToolName, u.Args, u.UserID, u.Succeeded, embedding)
	if err != nil {
		w.logger.Warn("skipping memory write-back, args not serializable",
			"tool", u.ToolName, "error", err)
		return
	}

	if err := w.memory.Add(writeCtx, item); err != nil {
		w.logger.Warn("memory write-back failed",
			"tool", u.ToolName, "error", err)
		return
	}

	w.logger.Debug("recorded tool usage",
		"tool", u.ToolName, "user_id", u.UserID, "succeeded", u.Succeeded)
}
