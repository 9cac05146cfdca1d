// Package engine orchestrates question answering: retrieval context
// assembly, generation, conversation persistence, and memory write-back.
// It depends on narrow interfaces so each collaborator can be replaced
// in tests.
package engine

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/datatalk-io/datatalk/internal/artifact"
	"github.com/datatalk-io/datatalk/internal/conversation"
	"github.com/datatalk-io/datatalk/internal/corpus"
	"github.com/datatalk-io/datatalk/internal/log"
	"github.com/datatalk-io/datatalk/internal/memory"
	"github.com/datatalk-io/datatalk/internal/provider"
	"github.com/datatalk-io/datatalk/internal/rag"
	"github.com/datatalk-io/datatalk/internal/tool"
)

// Sentinel errors checked by callers with errors.Is.
var (
	// ErrEmptyQuestion indicates a blank question.
	ErrEmptyQuestion = errors.New("question is empty")

	// ErrNotPersisted indicates the answer was generated but the turn
	// could not be saved. The response accompanying this error is valid.
	ErrNotPersisted = errors.New("turn not persisted")

	// ErrNotAuthorized indicates the session belongs to another user.
	ErrNotAuthorized = errors.New("session not owned by user")

	// ErrUnknownTool indicates a tool name with no registration.
	ErrUnknownTool = errors.New("unknown tool")
)

// EmbeddingProvider turns text into a vector.
type EmbeddingProvider interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Generator produces a model completion.
type Generator interface {
	Generate(ctx context.Context, system string, history []provider.ChatMessage, prompt string) (string, error)
}

// ContextAssembler builds the augmentation block for a question vector.
type ContextAssembler interface {
	Assemble(ctx context.Context, embedding []float32, corpora []corpus.Corpus) *rag.Block
}

// ConversationStore is the subset of conversation.Store the engine uses.
type ConversationStore interface {
	NextSequence(ctx context.Context, sessionID uuid.UUID) (int32, error)
	Append(ctx context.Context, arg conversation.AppendParams) error
	Recent(ctx context.Context, sessionID uuid.UUID, n int32) ([]conversation.Message, error)
	ListForUser(ctx context.Context, userID string, limit int32) ([]conversation.SessionSummary, error)
	Owner(ctx context.Context, sessionID uuid.UUID) (string, error)
}

// Recorder persists tool usage into memory, best effort.
type Recorder interface {
	Record(ctx context.Context, u memory.Usage)
}

const (
	// appendRetries bounds the sequence-conflict retry loop.
	appendRetries = 3

	defaultHistoryWindow = 10
)

// Engine answers questions over tabular data with retrieval augmentation.
type Engine struct {
	embedder  EmbeddingProvider
	generator Generator
	assembler ContextAssembler
	store     ConversationStore
	recorder  Recorder
	artifacts *artifact.Cache
	tools     *tool.Registry

	historyWindow int32
	logger        log.Logger
}

// Params carries the engine's collaborators.
type Params struct {
	Embedder      EmbeddingProvider
	Generator     Generator
	Assembler     ContextAssembler
	Store         ConversationStore
	Recorder      Recorder
	Artifacts     *artifact.Cache
	Tools         *tool.Registry
	HistoryWindow int32
	Logger        log.Logger
}

// New builds an Engine. All collaborators except Recorder, Artifacts, and
// Tools are required.
func New(p Params) (*Engine, error) {
	switch {
	case p.Embedder == nil:
		return nil, errors.New("engine: embedder is required")
	case p.Generator == nil:
		return nil, errors.New("engine: generator is required")
	case p.Assembler == nil:
		return nil, errors.New("engine: assembler is required")
	case p.Store == nil:
		return nil, errors.New("engine: conversation store is required")
	}
	if p.HistoryWindow < 1 {
		p.HistoryWindow = defaultHistoryWindow
	}
	if p.Logger == nil {
		p.Logger = log.NewNop()
	}
	return &Engine{
		embedder:      p.Embedder,
		generator:     p.Generator,
		assembler:     p.Assembler,
		store:         p.Store,
		recorder:      p.Recorder,
		artifacts:     p.Artifacts,
		tools:         p.Tools,
		historyWindow: p.HistoryWindow,
		logger:        p.Logger,
	}, nil
}
